package archive

import (
	"github.com/pkg/errors"
)

// Method is the compression method of a cache archive.
type Method string

const (
	MethodZstd            Method = "zstd"
	MethodZstdWithoutLong Method = "zstd-without-long"
	MethodGzip            Method = "gzip"
)

const (
	fileNameGzip = "cache.tgz"
	fileNameZstd = "cache.tzst"
)

// ParseMethod parses a compression method name, an empty name selects MethodZstd.
func ParseMethod(v string) (Method, error) {
	switch m := Method(v); m {
	case "":
		return MethodZstd, nil
	case MethodZstd, MethodZstdWithoutLong, MethodGzip:
		return m, nil
	default:
		return "", errors.Errorf("unknown compression method: %s (supported: zstd, zstd-without-long, gzip)", v)
	}
}

// FileName returns the archive file name for the method. It is used both to
// name uploads and to filter listings for archives this method can decode.
func FileName(m Method) string {
	if m == MethodGzip {
		return fileNameGzip
	}
	return fileNameZstd
}
