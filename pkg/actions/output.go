package actions

import (
	"io"
	"os"
)

// SetOutput sets a step output.
func SetOutput(name, value string) error {
	return setOutput(os.Stdout, os.Getenv(EnvOutput), name, value)
}

func setOutput(w io.Writer, file, name, value string) error {
	if file != "" {
		return issueFileCommand(file, name, value)
	}
	return issueCommand(w, "set-output", map[string]string{"name": name}, value)
}
