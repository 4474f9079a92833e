// commands/root.go
package commands

import (
	"context"
	"fmt"

	"promo-task-bot/config"
	"promo-task-bot/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	cfg config.Config
	log *zap.Logger
}

// NewRootCmd builds the promobot command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "promobot",
		Short:         "Telegram task bot that rewards completed tasks with promo codes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.cfg = config.Load()
			log, err := logging.New(opts.cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			opts.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newBumpVersionCmd(opts),
		newStatsCmd(opts),
		newExportCodesCmd(opts),
	)
	return root
}

// Execute runs the CLI with ctx as the base context.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
