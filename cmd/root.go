package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/foomo/actions-cache/pkg/actions"
	"github.com/foomo/actions-cache/pkg/metrics"
	"github.com/foomo/keel/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logFormatGitHub = "github"

// NewRootCommand represents the base command when called without any subcommands
func NewRootCommand() *cobra.Command {
	v := newViper()
	cmd := &cobra.Command{
		Use:           "actions-cache",
		Short:         "Restores and saves build caches on S3 compatible object stores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zap.ReplaceGlobals(newLogger(
				logLevelFlag(v),
				logFormatFlag(v),
			))
		},
	}

	addLogLevelFlag(cmd.PersistentFlags(), v)
	addLogFormatFlag(cmd.PersistentFlags(), v)

	cmd.AddCommand(NewRestoreCommand())
	cmd.AddCommand(NewSaveCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		log.Logger().Fatal("failed to run command", zap.Error(err))
	}
}

// newViper prefixes automatic env lookups so inputs such as "path" never
// resolve to unrelated variables.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ACTIONS_CACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// newLogger renders workflow commands on GitHub runners. Step debugging
// forces the debug level.
func newLogger(level, format string) *zap.Logger {
	if actions.IsDebug() {
		level = "debug"
	}
	if format != logFormatGitHub {
		return log.NewLogger(level, format)
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	return actions.NewLogger(zapcore.Lock(os.Stdout), lvl)
}

// pushMetrics sends the collected metrics when a pushgateway is configured.
func pushMetrics(ctx context.Context, l *zap.Logger, v *viper.Viper) {
	url := inputString(v, "metrics-pushgateway")
	if url == "" {
		return
	}
	if err := metrics.Push(ctx, url); err != nil {
		l.Warn("failed to push metrics", zap.String("url", url), zap.Error(err))
	}
}
