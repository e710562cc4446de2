package actions

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const (
	EnvActions = "GITHUB_ACTIONS"
	EnvOutput  = "GITHUB_OUTPUT"
	EnvState   = "GITHUB_STATE"
	EnvDebug   = "RUNNER_DEBUG"
)

// IsActions reports whether we run inside a GitHub Actions runner.
func IsActions() bool {
	return os.Getenv(EnvActions) == "true"
}

// IsDebug reports whether step debug logging is enabled.
func IsDebug() bool {
	return os.Getenv(EnvDebug) == "1"
}

// issueCommand writes a legacy workflow command.
func issueCommand(w io.Writer, command string, properties map[string]string, message string) error {
	var props []string
	for k, v := range properties {
		props = append(props, k+"="+escapeProperty(v))
	}
	cmd := "::" + command
	if len(props) > 0 {
		cmd += " " + strings.Join(props, ",")
	}
	_, err := fmt.Fprintf(w, "%s::%s\n", cmd, escapeData(message))
	return err
}

// issueFileCommand appends a key/value pair to the file referenced by env.
func issueFileCommand(path, key, value string) (err error) {
	delimiter := "ghadelimiter_" + uuid.NewString()
	if strings.Contains(key, delimiter) || strings.Contains(value, delimiter) {
		return errors.Errorf("unexpected input: name or value contains the delimiter %s", delimiter)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrapf(err, "failed to open file command %s", path)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	_, err = fmt.Fprintf(f, "%s<<%s\n%s\n%s\n", key, delimiter, value, delimiter)
	return err
}

func escapeData(s string) string {
	return strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A").Replace(s)
}

func escapeProperty(s string) string {
	return strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C").Replace(s)
}
