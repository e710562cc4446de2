package config

import (
	"github.com/foomo/actions-cache/pkg/archive"
)

const (
	DefaultEndpoint  = "s3.amazonaws.com"
	DefaultServerURL = "https://github.com"

	StorageS3   = "s3"
	StorageBlob = "blob"
)

type (
	// Config is built once per command invocation and handed to every component.
	Config struct {
		Bucket      string
		Key         string
		RestoreKeys []string
		Paths       []string
		SubFolder   string
		UseFallback bool
		Compression archive.Method
		Storage     Storage
		Runner      Runner
	}
	Storage struct {
		// Type is either StorageS3 or StorageBlob
		Type string
		// BlobURL is a gocloud bucket url template, {bucket} is replaced with the bucket name
		BlobURL string
		// FallbackURL is the gocloud bucket url of the secondary cache backend
		FallbackURL string
		S3          S3
	}
	S3 struct {
		Endpoint        string
		Port            int
		Insecure        bool
		AccessKey       string
		SecretKey       string
		SessionToken    string
		Region          string
		RequireAWSLogin bool
	}
	// Runner describes the CI job the command runs in.
	Runner struct {
		ServerURL string
		Ref       string
		EventName string
		Workspace string
		TempDir   string
		Debug     bool
	}
)
