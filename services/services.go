// services/services.go
package services

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options are the engine tunables taken from the process config.
type Options struct {
	DefaultPromoCoins int
	CodeLength        int
	MembershipTimeout time.Duration
}

// Services is the wired engine and operator layer over one database.
type Services struct {
	Config    *TaskConfigService
	Versions  *VersionController
	Tracker   *ProgressTracker
	Evaluator *CompletionEvaluator
	Issuer    *CodeIssuer
	Engine    *TaskEngine
	Admin     *AdminService
	Export    *ExportService
}

func New(db *gorm.DB, checker MembershipChecker, opts Options, log *zap.Logger) *Services {
	cfg := NewTaskConfigService(db, opts.DefaultPromoCoins)
	versions := NewVersionController(db, opts.DefaultPromoCoins, log)
	tracker := NewProgressTracker(db, log)
	strategies := &Strategies{
		Membership:     &MembershipStrategy{Checker: checker, Timeout: opts.MembershipTimeout, Log: log},
		Acknowledgment: &AcknowledgmentStrategy{Tracker: tracker},
	}
	evaluator := &CompletionEvaluator{DB: db, Strategies: strategies, Log: log}
	issuer := &CodeIssuer{DB: db, Evaluator: evaluator, Generator: NewCodeGenerator(opts.CodeLength), Log: log}

	return &Services{
		Config:    cfg,
		Versions:  versions,
		Tracker:   tracker,
		Evaluator: evaluator,
		Issuer:    issuer,
		Engine: &TaskEngine{
			DB:        db,
			Config:    cfg,
			Evaluator: evaluator,
			Tracker:   tracker,
			Issuer:    issuer,
			Log:       log,
		},
		Admin:  &AdminService{DB: db, Config: cfg, Versions: versions, Log: log},
		Export: &ExportService{DB: db, Log: log},
	}
}
