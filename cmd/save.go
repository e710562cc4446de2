package cmd

import (
	"github.com/foomo/keel/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewSaveCommand() *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the workspace paths to the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := log.Logger().Named("save")

			// metrics are pushed for failed saves too
			defer pushMetrics(ctx, l, v)

			cfg, err := newConfig(v)
			if err != nil {
				return err
			}

			st, _, err := newStateStore(v)
			if err != nil {
				return errors.Wrap(err, "failed to create state store")
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

			return c.Save(ctx)
		},
	}

	flags := cmd.Flags()
	addInputFlags(flags, v)
	addRunnerFlags(flags, v)

	return cmd
}
