package config

import (
	"github.com/pkg/errors"
)

var awsLoginEnv = []string{
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"AWS_SESSION_TOKEN",
	"AWS_DEFAULT_REGION",
	"AWS_REGION",
}

// CheckAWSLogin makes sure a previous aws login step exported its credentials.
func (s S3) CheckAWSLogin(getenv func(string) string) error {
	if !s.RequireAWSLogin {
		return nil
	}
	for _, name := range awsLoginEnv {
		if getenv(name) == "" {
			return errors.Wrapf(ErrValidation, "missing required environment value %s, are you performing aws login?", name)
		}
	}
	return nil
}
