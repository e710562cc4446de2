package store

import (
	"context"
	"net"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

type (
	// Minio implements Client on any S3 compatible endpoint.
	Minio struct {
		client *minio.Client
	}
	MinioConfig struct {
		Endpoint string
		// Port is optional, 0 keeps the scheme's default port
		Port     int
		Insecure bool
		Region   string
		// Credentials are tried in order, the first complete set wins
		Credentials []credentials.Value
	}
)

// NewMinio creates a minio-go backed client.
func NewMinio(cfg MinioConfig) (*Minio, error) {
	endpoint := cfg.Endpoint
	if cfg.Port > 0 {
		endpoint = net.JoinHostPort(endpoint, strconv.Itoa(cfg.Port))
	}

	providers := make([]credentials.Provider, 0, len(cfg.Credentials))
	for _, v := range cfg.Credentials {
		providers = append(providers, &credentials.Static{Value: v})
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewChainCredentials(providers),
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "minio.New")
	}

	return &Minio{client: client}, nil
}

func (m *Minio) ListObjects(ctx context.Context, bucket, prefix string, recursive bool) <-chan ListResult {
	ret := make(chan ListResult)
	objects := m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	})
	go func() {
		defer close(ret)
		for obj := range objects {
			res := ListResult{Err: obj.Err}
			if obj.Err == nil {
				res.Object = ObjectInfo{Name: obj.Key, LastModified: obj.LastModified, Size: obj.Size}
			}
			select {
			case ret <- res:
			case <-ctx.Done():
				return
			}
			if obj.Err != nil {
				return
			}
		}
	}()
	return ret
}

func (m *Minio) FGetObject(ctx context.Context, bucket, name, filePath string) error {
	return errors.Wrap(m.client.FGetObject(ctx, bucket, name, filePath, minio.GetObjectOptions{}), "client.FGetObject")
}

func (m *Minio) FPutObject(ctx context.Context, bucket, name, filePath string, opts PutOptions) error {
	_, err := m.client.FPutObject(ctx, bucket, name, filePath, minio.PutObjectOptions{ContentType: opts.ContentType})
	return errors.Wrap(err, "client.FPutObject")
}
