// services/admin_service.go
package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"promo-task-bot/models"

	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	DefaultUsersLimit = 20
	DefaultCodesLimit = 30
	userSearchScan    = 1000
)

// RequirementInput is an operator request to add a requirement.
type RequirementInput struct {
	Kind models.RequirementKind `json:"type"`
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	URL  string                 `json:"url"`
}

type Stats struct {
	TaskVersion      int   `json:"task_version" yaml:"task_version"`
	PromoCoins       int   `json:"promo_coins" yaml:"promo_coins"`
	Requirements     int64 `json:"requirements" yaml:"requirements"`
	Users            int64 `json:"users" yaml:"users"`
	CompletedCurrent int64 `json:"completed_current" yaml:"completed_current"`
	Codes            int64 `json:"codes" yaml:"codes"`
	UsedCodes        int64 `json:"used_codes" yaml:"used_codes"`
	UnusedCodes      int64 `json:"unused_codes" yaml:"unused_codes"`
	PendingRequests  int64 `json:"pending_requests" yaml:"pending_requests"`
}

type UserInfo struct {
	User  models.BotUser     `json:"user"`
	Codes []models.PromoCode `json:"codes"`
}

type CodeFilter string

const (
	CodeFilterAll    CodeFilter = "all"
	CodeFilterUsed   CodeFilter = "used"
	CodeFilterUnused CodeFilter = "unused"
)

// ParseCodeFilter maps free text to a filter, defaulting to all.
func ParseCodeFilter(s string) CodeFilter {
	switch CodeFilter(strings.ToLower(strings.TrimSpace(s))) {
	case CodeFilterUsed:
		return CodeFilterUsed
	case CodeFilterUnused:
		return CodeFilterUnused
	default:
		return CodeFilterAll
	}
}

// AdminService backs the operator commands and the admin HTTP API.
type AdminService struct {
	DB       *gorm.DB
	Config   *TaskConfigService
	Versions *VersionController
	Log      *zap.Logger
}

func (s *AdminService) ListRequirements(ctx context.Context) ([]models.Requirement, error) {
	return s.Config.Requirements(ctx)
}

// AddRequirement appends a requirement and bumps the task version in the
// same transaction. Link requirements without an id get a slug of the name.
func (s *AdminService) AddRequirement(ctx context.Context, in RequirementInput) (*models.Requirement, int, error) {
	req, err := normalizeRequirement(in)
	if err != nil {
		return nil, 0, err
	}

	var version int
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Requirement{}).Where("id = ?", req.ID).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrDuplicateRequirement
		}
		var maxPos int
		if err := tx.Model(&models.Requirement{}).Select("COALESCE(MAX(position), 0)").Scan(&maxPos).Error; err != nil {
			return err
		}
		req.Position = maxPos + 1
		if err := tx.Create(req).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateRequirement
			}
			return err
		}
		var bumpErr error
		version, bumpErr = bumpVersionTx(tx, s.Config.DefaultPromoCoins)
		return bumpErr
	})
	if errors.Is(err, ErrDuplicateRequirement) {
		return nil, 0, err
	}
	if err != nil {
		return nil, 0, persistence("add requirement", err)
	}

	s.Log.Info("[ADMIN] requirement added",
		zap.String("requirement_id", req.ID),
		zap.String("kind", string(req.Kind)),
		zap.Int("task_version", version))
	return req, version, nil
}

func normalizeRequirement(in RequirementInput) (*models.Requirement, error) {
	kind := models.RequirementKind(strings.ToLower(strings.TrimSpace(string(in.Kind))))
	if kind == "" {
		kind = models.RequirementKindChannel
	}
	if !kind.Valid() {
		return nil, ErrInvalidRequirement
	}
	name := strings.TrimSpace(in.Name)
	url := strings.TrimSpace(in.URL)
	id := strings.TrimSpace(in.ID)
	if kind == models.RequirementKindLink && (id == "" || id == "-") {
		id = slug.Make(name)
	}
	if id == "" || name == "" || url == "" {
		return nil, ErrInvalidRequirement
	}
	return &models.Requirement{ID: id, DisplayName: name, DestinationURL: url, Kind: kind}, nil
}

// RemoveRequirement deletes a requirement and bumps the task version.
func (s *AdminService) RemoveRequirement(ctx context.Context, id string) (int, error) {
	var version int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Requirement{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRequirementNotFound
		}
		var err error
		version, err = bumpVersionTx(tx, s.Config.DefaultPromoCoins)
		return err
	})
	if errors.Is(err, ErrRequirementNotFound) {
		return 0, err
	}
	if err != nil {
		return 0, persistence("remove requirement", err)
	}
	s.Log.Info("[ADMIN] requirement removed", zap.String("requirement_id", id), zap.Int("task_version", version))
	return version, nil
}

func (s *AdminService) BumpVersion(ctx context.Context) (int, error) {
	return s.Versions.Bump(ctx)
}

// SetRewardAmount changes the coins stamped on codes issued from now on.
func (s *AdminService) SetRewardAmount(ctx context.Context, amount int) error {
	if amount < 0 {
		return ErrInvalidRewardAmount
	}
	if _, err := s.Config.EnsureSettings(ctx); err != nil {
		return err
	}
	err := s.DB.WithContext(ctx).Model(&models.BotSettings{}).
		Where("id = ?", models.SettingsRowID).
		Update("promo_coins", amount).Error
	if err != nil {
		return persistence("set reward amount", err)
	}
	s.Log.Info("[ADMIN] reward amount changed", zap.Int("promo_coins", amount))
	return nil
}

// Stats runs the counters in parallel.
func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	settings, err := s.Config.EnsureSettings(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{TaskVersion: settings.TaskVersion, PromoCoins: settings.PromoCoins}

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, model interface{}, query string, args ...interface{}) {
		g.Go(func() error {
			q := s.DB.WithContext(gctx).Model(model)
			if query != "" {
				q = q.Where(query, args...)
			}
			return q.Count(dst).Error
		})
	}
	count(&st.Requirements, &models.Requirement{}, "")
	count(&st.Users, &models.BotUser{}, "")
	count(&st.CompletedCurrent, &models.BotUser{}, "completed_version = ?", settings.TaskVersion)
	count(&st.Codes, &models.PromoCode{}, "")
	count(&st.UsedCodes, &models.PromoCode{}, "used = ?", true)
	count(&st.PendingRequests, &models.UserRequest{}, "task_version = ?", settings.TaskVersion)
	if err := g.Wait(); err != nil {
		return nil, persistence("stats", err)
	}
	st.UnusedCodes = st.Codes - st.UsedCodes
	return st, nil
}

// RecentUsers lists users by last activity. A non-empty query matches the
// uid prefix or the transliterated name.
func (s *AdminService) RecentUsers(ctx context.Context, query string, limit int) ([]models.BotUser, error) {
	if limit <= 0 {
		limit = DefaultUsersLimit
	}
	query = strings.TrimSpace(query)
	scan := limit
	if query != "" {
		scan = userSearchScan
	}

	var users []models.BotUser
	if err := s.DB.WithContext(ctx).Order("updated_at DESC").Limit(scan).Find(&users).Error; err != nil {
		return nil, persistence("list users", err)
	}
	if query == "" {
		return users, nil
	}

	needle := fold(query)
	out := make([]models.BotUser, 0, limit)
	for _, u := range users {
		if strings.HasPrefix(u.TelegramUID, query) || strings.Contains(fold(u.TelegramName), needle) {
			out = append(out, u)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func fold(s string) string {
	return strings.ToLower(unidecode.Unidecode(s))
}

func (s *AdminService) UserInfo(ctx context.Context, telegramUID string) (*UserInfo, error) {
	user, err := loadUser(ctx, s.DB, telegramUID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	info := &UserInfo{User: *user}
	err = s.DB.WithContext(ctx).
		Where("telegram_uid = ?", telegramUID).
		Order("task_version ASC, created_at ASC").
		Find(&info.Codes).Error
	if err != nil {
		return nil, persistence("list user codes", err)
	}
	return info, nil
}

func (s *AdminService) ListCodes(ctx context.Context, filter CodeFilter, limit int) ([]models.PromoCode, error) {
	if limit <= 0 {
		limit = DefaultCodesLimit
	}
	q := s.DB.WithContext(ctx).Order("created_at DESC").Limit(limit)
	switch filter {
	case CodeFilterUsed:
		q = q.Where("used = ?", true)
	case CodeFilterUnused:
		q = q.Where("used = ?", false)
	}
	var codes []models.PromoCode
	if err := q.Find(&codes).Error; err != nil {
		return nil, persistence("list codes", err)
	}
	return codes, nil
}

// RedeemCode marks a code used. A second redemption is rejected.
func (s *AdminService) RedeemCode(ctx context.Context, code, usedBy string) (*models.PromoCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	now := time.Now().UTC()
	res := s.DB.WithContext(ctx).Model(&models.PromoCode{}).
		Where("code = ? AND used = ?", code, false).
		Updates(map[string]interface{}{"used": true, "used_by": usedBy, "used_at": now})
	if res.Error != nil {
		return nil, persistence("redeem code", res.Error)
	}

	var promo models.PromoCode
	err := s.DB.WithContext(ctx).Where("code = ?", code).First(&promo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, persistence("load promo code", err)
	}
	if res.RowsAffected == 0 {
		return &promo, ErrCodeAlreadyRedeemed
	}
	s.Log.Info("[ADMIN] promo code redeemed", zap.String("code", code), zap.String("used_by", usedBy))
	return &promo, nil
}

// Recipients returns every known chat id for broadcasting.
func (s *AdminService) Recipients(ctx context.Context) ([]int64, error) {
	var uids []string
	if err := s.DB.WithContext(ctx).Model(&models.BotUser{}).Order("created_at ASC").Pluck("telegram_uid", &uids).Error; err != nil {
		return nil, persistence("list recipients", err)
	}
	out := make([]int64, 0, len(uids))
	for _, uid := range uids {
		id, err := strconv.ParseInt(uid, 10, 64)
		if err != nil {
			s.Log.Warn("[ADMIN] skipping non-numeric user id", zap.String("telegram_uid", uid))
			continue
		}
		out = append(out, id)
	}
	return out, nil
}
