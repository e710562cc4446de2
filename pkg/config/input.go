package config

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrValidation is returned for missing or malformed configuration.
var ErrValidation = errors.New("validation error")

var negationPrefix = regexp.MustCompile(`^!\s+`)

// InputEnv returns the environment variable the runner exposes an action input with.
func InputEnv(name string) string {
	return "INPUT_" + strings.ToUpper(strings.ReplaceAll(name, " ", "_"))
}

// Required returns an ErrValidation when value is empty.
func Required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.Wrapf(ErrValidation, "input required and not supplied: %s", name)
	}
	return nil
}

// InputAsBool is true for exactly "true".
func InputAsBool(value string) bool {
	return strings.TrimSpace(value) == "true"
}

// InputAsInt accepts non-negative integers only.
func InputAsInt(value string) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// InputAsArray splits a multi-line input. Lines are trimmed, empty lines dropped
// and whitespace after a leading "!" removed.
func InputAsArray(value string) []string {
	var ret []string
	for _, line := range strings.Split(value, "\n") {
		line = strings.TrimSpace(negationPrefix.ReplaceAllString(line, "!"))
		if line != "" {
			ret = append(ret, line)
		}
	}
	return ret
}
