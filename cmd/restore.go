package cmd

import (
	"strconv"

	"github.com/foomo/actions-cache/pkg/actions"
	"github.com/foomo/keel/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewRestoreCommand() *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the cache into the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := log.Logger().Named("restore")

			// metrics are pushed for failed restores too
			defer pushMetrics(ctx, l, v)

			cfg, err := newConfig(v)
			if err != nil {
				return err
			}

			st, fs, err := newStateStore(v)
			if err != nil {
				return errors.Wrap(err, "failed to create state store")
			}
			// a new job starts with empty state
			if err := fs.Clear(); err != nil {
				return errors.Wrap(err, "failed to clear state")
			}

			c, closeFn, err := newCache(ctx, l, cfg, st)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeFn(); err != nil {
					l.Warn("failed to close storage", zap.Error(err))
				}
			}()

			res, err := c.Restore(ctx)
			if err != nil {
				return err
			}
			if err := actions.SetOutput("cache-hit", strconv.FormatBool(res.CacheHit)); err != nil {
				return errors.Wrap(err, "failed to set output")
			}

			return nil
		},
	}

	flags := cmd.Flags()
	addInputFlags(flags, v)
	addRunnerFlags(flags, v)

	return cmd
}
