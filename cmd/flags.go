package cmd

import (
	"os"
	"path/filepath"

	"github.com/foomo/actions-cache/pkg/actions"
	"github.com/foomo/actions-cache/pkg/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ------------------------------------------------------------------------------------------------
// ~ Logging
// ------------------------------------------------------------------------------------------------

func logLevelFlag(v *viper.Viper) string {
	return v.GetString("log.level")
}

func addLogLevelFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-level", "info", "log level")
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

func logFormatFlag(v *viper.Viper) string {
	return v.GetString("log.format")
}

func addLogFormatFlag(flags *pflag.FlagSet, v *viper.Viper) {
	format := "json"
	if actions.IsActions() {
		format = logFormatGitHub
	}
	flags.String("log-format", format, "log format (json, console or github)")
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = v.BindEnv("log.format", "LOG_FORMAT")
}

// ------------------------------------------------------------------------------------------------
// ~ Inputs
// ------------------------------------------------------------------------------------------------

// addInputString registers a string flag bound to the action input of the same name.
func addInputString(flags *pflag.FlagSet, v *viper.Viper, name, value, usage string, aliases ...string) {
	flags.String(name, value, usage)
	_ = v.BindPFlag(name, flags.Lookup(name))
	envs := []string{config.InputEnv(name)}
	for _, alias := range aliases {
		envs = append(envs, config.InputEnv(alias))
	}
	_ = v.BindEnv(append([]string{name}, envs...)...)
}

// addInputBool registers a boolean flag. Values are read back as strings so
// the action's coercion rules apply to environment input.
func addInputBool(flags *pflag.FlagSet, v *viper.Viper, name, usage string, aliases ...string) {
	flags.Bool(name, false, usage)
	_ = v.BindPFlag(name, flags.Lookup(name))
	envs := []string{config.InputEnv(name)}
	for _, alias := range aliases {
		envs = append(envs, config.InputEnv(alias))
	}
	_ = v.BindEnv(append([]string{name}, envs...)...)
}

func addInputFlags(flags *pflag.FlagSet, v *viper.Viper) {
	addInputString(flags, v, "bucket", "", "bucket name")
	addInputString(flags, v, "key", "", "primary cache key")
	addInputString(flags, v, "restore-keys", "", "newline separated restore key prefixes")
	addInputString(flags, v, "path", "", "newline separated paths or glob patterns to cache")
	addInputString(flags, v, "bucket_sub_folder", "", "folder inside the bucket all keys are stored in")
	addInputString(flags, v, "endpoint", config.DefaultEndpoint, "s3 endpoint host")
	addInputString(flags, v, "port", "", "s3 endpoint port")
	addInputBool(flags, v, "insecure", "use plain http")
	addInputString(flags, v, "accessKey", "", "s3 access key")
	addInputString(flags, v, "secretKey", "", "s3 secret key")
	addInputString(flags, v, "sessionToken", "", "s3 session token")
	addInputString(flags, v, "aws-region", "", "s3 region")
	addInputString(flags, v, "region", "", "s3 region, used when aws-region is empty")
	addInputBool(flags, v, "use-fallback", "use the fallback cache when the object store fails")
	addInputBool(flags, v, "require_aws_login", "require the environment of a previous aws login step", "requrie_aws_login")
	addInputString(flags, v, "compression", "", "compression method (zstd, zstd-without-long, gzip)")
	addInputString(flags, v, "storage", config.StorageS3, "object store (s3 or blob)")
	addInputString(flags, v, "blob-url", "", "gocloud bucket url template, {bucket} is replaced with the bucket name")
	addInputString(flags, v, "fallback-url", "", "gocloud bucket url of the fallback cache")
	addInputString(flags, v, "metrics-pushgateway", "", "prometheus pushgateway url")
}

func inputString(v *viper.Viper, name string) string {
	return v.GetString(name)
}

func inputBool(v *viper.Viper, name string) bool {
	return config.InputAsBool(v.GetString(name))
}

func inputArray(v *viper.Viper, name string) []string {
	return config.InputAsArray(v.GetString(name))
}

// ------------------------------------------------------------------------------------------------
// ~ Runner
// ------------------------------------------------------------------------------------------------

func addRunnerFlags(flags *pflag.FlagSet, v *viper.Viper) {
	cwd, _ := os.Getwd()

	flags.String("server-url", config.DefaultServerURL, "GitHub server url")
	_ = v.BindPFlag("runner.server_url", flags.Lookup("server-url"))
	_ = v.BindEnv("runner.server_url", "GITHUB_SERVER_URL")

	flags.String("ref", "", "git ref that triggered the workflow")
	_ = v.BindPFlag("runner.ref", flags.Lookup("ref"))
	_ = v.BindEnv("runner.ref", "GITHUB_REF")

	flags.String("event-name", "", "name of the event that triggered the workflow")
	_ = v.BindPFlag("runner.event_name", flags.Lookup("event-name"))
	_ = v.BindEnv("runner.event_name", "GITHUB_EVENT_NAME")

	flags.String("workspace", cwd, "directory cache paths are relative to")
	_ = v.BindPFlag("runner.workspace", flags.Lookup("workspace"))
	_ = v.BindEnv("runner.workspace", "GITHUB_WORKSPACE")

	flags.String("temp-dir", os.TempDir(), "directory for temporary archives")
	_ = v.BindPFlag("runner.temp_dir", flags.Lookup("temp-dir"))
	_ = v.BindEnv("runner.temp_dir", "RUNNER_TEMP")

	// the runner temp dir lives exactly as long as the job
	stateDir := os.Getenv("RUNNER_TEMP")
	if stateDir == "" {
		stateDir = os.TempDir()
	}
	flags.String("state-dir", filepath.Join(stateDir, "actions-cache-state"), "directory job state is kept in")
	_ = v.BindPFlag("state.dir", flags.Lookup("state-dir"))
	_ = v.BindEnv("state.dir", "ACTIONS_CACHE_STATE_DIR")

	flags.String("job", "local", "job the state belongs to")
	_ = v.BindPFlag("state.job", flags.Lookup("job"))
	_ = v.BindEnv("state.job", "GITHUB_RUN_ID")
}

func stateDirFlag(v *viper.Viper) string {
	return v.GetString("state.dir")
}

func stateJobFlag(v *viper.Viper) string {
	return v.GetString("state.job")
}
