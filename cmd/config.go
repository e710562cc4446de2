package cmd

import (
	"context"
	"io"
	"os"

	"github.com/foomo/actions-cache/pkg/actions"
	"github.com/foomo/actions-cache/pkg/archive"
	"github.com/foomo/actions-cache/pkg/cache"
	"github.com/foomo/actions-cache/pkg/config"
	"github.com/foomo/actions-cache/pkg/fallback"
	"github.com/foomo/actions-cache/pkg/state"
	"github.com/foomo/actions-cache/pkg/store"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// newConfig reads all inputs and runner variables once.
func newConfig(v *viper.Viper) (config.Config, error) {
	compression, err := archive.ParseMethod(inputString(v, "compression"))
	if err != nil {
		return config.Config{}, errors.Wrap(config.ErrValidation, err.Error())
	}

	port, _ := config.InputAsInt(inputString(v, "port"))

	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = inputString(v, "aws-region")
	}
	if region == "" {
		region = inputString(v, "region")
	}

	endpoint := inputString(v, "endpoint")
	if endpoint == "" {
		endpoint = config.DefaultEndpoint
	}

	return config.Config{
		Bucket:      inputString(v, "bucket"),
		Key:         inputString(v, "key"),
		RestoreKeys: inputArray(v, "restore-keys"),
		Paths:       inputArray(v, "path"),
		SubFolder:   inputString(v, "bucket_sub_folder"),
		UseFallback: inputBool(v, "use-fallback"),
		Compression: compression,
		Storage: config.Storage{
			Type:        inputString(v, "storage"),
			BlobURL:     inputString(v, "blob-url"),
			FallbackURL: inputString(v, "fallback-url"),
			S3: config.S3{
				Endpoint:        endpoint,
				Port:            port,
				Insecure:        inputBool(v, "insecure"),
				AccessKey:       inputString(v, "accessKey"),
				SecretKey:       inputString(v, "secretKey"),
				SessionToken:    inputString(v, "sessionToken"),
				Region:          region,
				RequireAWSLogin: inputBool(v, "require_aws_login"),
			},
		},
		Runner: config.Runner{
			ServerURL: v.GetString("runner.server_url"),
			Ref:       v.GetString("runner.ref"),
			EventName: v.GetString("runner.event_name"),
			Workspace: v.GetString("runner.workspace"),
			TempDir:   v.GetString("runner.temp_dir"),
			Debug:     actions.IsDebug(),
		},
	}, nil
}

// newStateStore keeps job state in a file store below the state dir. On
// GitHub runners the values are also written as post step state, which is
// preferred when reading since only an action's post step receives it.
func newStateStore(v *viper.Viper) (state.Store, *state.FileStore, error) {
	fs, err := state.NewFileStore(stateDirFlag(v), stateJobFlag(v))
	if err != nil {
		return nil, nil, err
	}
	if actions.IsActions() || os.Getenv(actions.EnvState) != "" {
		return state.NewMulti(actions.NewStateStore(), fs), fs, nil
	}
	return fs, fs, nil
}

// newClient creates the primary object store. The returned closer, if any,
// releases opened buckets.
func newClient(ctx context.Context, l *zap.Logger, cfg config.Config, st state.Store) (store.Client, io.Closer, error) {
	switch cfg.Storage.Type {
	case config.StorageS3, "":
		if err := cfg.Storage.S3.CheckAWSLogin(os.Getenv); err != nil {
			return nil, nil, err
		}
		l.Info("using s3 storage",
			zap.String("endpoint", cfg.Storage.S3.Endpoint),
			zap.Int("port", cfg.Storage.S3.Port),
			zap.Bool("insecure", cfg.Storage.S3.Insecure),
			zap.String("region", cfg.Storage.S3.Region),
		)
		client, err := store.NewMinio(store.MinioConfig{
			Endpoint:    cfg.Storage.S3.Endpoint,
			Port:        cfg.Storage.S3.Port,
			Insecure:    cfg.Storage.S3.Insecure,
			Region:      cfg.Storage.S3.Region,
			Credentials: credentialValues(ctx, l, cfg.Storage.S3, st),
		})
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	case config.StorageBlob:
		if err := config.Required("blob-url", cfg.Storage.BlobURL); err != nil {
			return nil, nil, err
		}
		l.Info("using blob storage", zap.String("url", cfg.Storage.BlobURL))
		client := store.NewBlob(cfg.Storage.BlobURL)
		return client, client, nil
	default:
		return nil, nil, errors.Wrapf(config.ErrValidation, "unknown storage type: %s (supported: s3, blob)", cfg.Storage.Type)
	}
}

// credentialValues puts the aws environment first. The inputs persisted by
// the restore step come before the current inputs so they cannot drift
// between the phases.
func credentialValues(ctx context.Context, l *zap.Logger, s3 config.S3, st state.Store) []credentials.Value {
	get := func(name string) string {
		value, err := st.Get(ctx, name)
		if err != nil {
			l.Debug("failed to read state", zap.String("name", name), zap.Error(err))
		}
		return value
	}
	return []credentials.Value{
		{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			SignerType:      credentials.SignatureV4,
		},
		{
			AccessKeyID:     get(state.AccessKey),
			SecretAccessKey: get(state.SecretKey),
			SessionToken:    get(state.SessionToken),
			SignerType:      credentials.SignatureV4,
		},
		{
			AccessKeyID:     s3.AccessKey,
			SecretAccessKey: s3.SecretKey,
			SessionToken:    s3.SessionToken,
			SignerType:      credentials.SignatureV4,
		},
	}
}

// newCache wires the orchestrator with its object store, codec, state and
// optional fallback backend.
func newCache(ctx context.Context, l *zap.Logger, cfg config.Config, st state.Store) (*cache.Cache, func() error, error) {
	client, closer, err := newClient(ctx, l, cfg, st)
	if err != nil {
		return nil, nil, err
	}
	var closers []io.Closer
	if closer != nil {
		closers = append(closers, closer)
	}

	codec := archive.NewCodec(l, archive.CodecWithWorkspace(cfg.Runner.Workspace))
	opts := []cache.Option{}
	if cfg.Storage.FallbackURL != "" {
		backend := store.NewBlob(cfg.Storage.FallbackURL)
		closers = append(closers, backend)
		opts = append(opts, cache.WithFallback(fallback.NewBlob(l, backend, codec,
			fallback.BlobWithMethod(cfg.Compression),
			fallback.BlobWithTempDir(cfg.Runner.TempDir),
		)))
	}

	closeAll := func() error {
		var err error
		for _, c := range closers {
			err = multierr.Append(err, c.Close())
		}
		return err
	}
	return cache.New(l, cfg, client, codec, st, opts...), closeAll, nil
}
