package archive

import (
	"archive/tar"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// zstdLongWindow is the encoder window used by MethodZstd
	zstdLongWindow = 1 << 27
	// zstdMaxWindow bounds the decoder memory for archives we did not write ourselves
	zstdMaxWindow = 1 << 30
)

type (
	// Codec packs and unpacks cache archives. Archive entries are named
	// relative to the workspace, so paths outside of it start with "..".
	Codec struct {
		l         *zap.Logger
		workspace string
	}
	CodecOption func(*Codec)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewCodec(l *zap.Logger, opts ...CodecOption) *Codec {
	inst := &Codec{
		l:         l.Named("archive"),
		workspace: ".",
	}

	for _, opt := range opts {
		opt(inst)
	}

	if abs, err := filepath.Abs(inst.workspace); err == nil {
		inst.workspace = abs
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func CodecWithWorkspace(v string) CodecOption {
	return func(o *Codec) {
		if v != "" {
			o.workspace = v
		}
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Workspace returns the directory archive entries are relative to.
func (c *Codec) Workspace() string {
	return c.workspace
}

// Pack writes one entry per given path into archiveDir/FileName(m) and returns
// the archive path. Directories are not descended into, see ResolvePaths.
func (c *Codec) Pack(ctx context.Context, archiveDir string, paths []string, m Method) (ret string, err error) {
	ret = filepath.Join(archiveDir, FileName(m))

	f, err := os.Create(ret)
	if err != nil {
		return "", errors.Wrap(err, "failed to create archive")
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	cw, err := newCompressor(f, m)
	if err != nil {
		return "", err
	}
	tw := tar.NewWriter(cw)

	for _, p := range paths {
		if err := c.addEntry(ctx, tw, p); err != nil {
			return "", multierr.Combine(err, tw.Close(), cw.Close())
		}
	}

	if err := multierr.Combine(tw.Close(), cw.Close()); err != nil {
		return "", errors.Wrap(err, "failed to finish archive")
	}

	c.l.Debug("archive created", zap.String("path", ret), zap.Int("entries", len(paths)))
	return ret, nil
}

// Unpack extracts the archive into the workspace.
func (c *Codec) Unpack(ctx context.Context, archivePath string, m Method) error {
	return c.walk(ctx, archivePath, m, func(hdr *tar.Header, r io.Reader) error {
		return c.extract(hdr, r)
	})
}

// List logs the archive entries on debug level.
func (c *Codec) List(ctx context.Context, archivePath string, m Method) error {
	return c.walk(ctx, archivePath, m, func(hdr *tar.Header, _ io.Reader) error {
		c.l.Debug("archive entry",
			zap.String("name", hdr.Name),
			zap.Int64("size", hdr.Size),
			zap.String("mode", fs.FileMode(hdr.Mode).String()),
		)
		return nil
	})
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (c *Codec) addEntry(ctx context.Context, tw *tar.Writer, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name, err := filepath.Rel(c.workspace, path)
	if err != nil {
		return errors.Wrapf(err, "failed to name archive entry for %s", path)
	}

	info, err := os.Lstat(path)
	if err != nil {
		return err
	}

	var link string
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	case !info.Mode().IsRegular() && !info.IsDir():
		c.l.Debug("skipping special file", zap.String("path", path))
		return nil
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(name)
	if info.IsDir() {
		hdr.Name += "/"
	}
	hdr.Uname, hdr.Gname = "", ""
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return multierr.Append(err, f.Close())
}

func (c *Codec) walk(ctx context.Context, archivePath string, m Method, fn func(hdr *tar.Header, r io.Reader) error) (err error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrap(err, "failed to open archive")
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	dr, err := newDecompressor(f, m)
	if err != nil {
		return err
	}
	defer dr.Close()

	tr := tar.NewReader(dr)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return errors.Wrap(err, "failed to read archive")
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

func (c *Codec) extract(hdr *tar.Header, r io.Reader) error {
	target := filepath.Join(c.workspace, filepath.FromSlash(strings.TrimSuffix(hdr.Name, "/")))
	mode := fs.FileMode(hdr.Mode).Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, mode|0o700)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		_, err = io.Copy(f, r)
		if err := multierr.Append(err, f.Close()); err != nil {
			return errors.Wrapf(err, "failed to extract %s", hdr.Name)
		}
		return os.Chtimes(target, hdr.ModTime, hdr.ModTime)
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return err
		}
		return os.Symlink(hdr.Linkname, target)
	default:
		c.l.Debug("skipping unsupported archive entry", zap.String("name", hdr.Name), zap.Uint8("type", hdr.Typeflag))
		return nil
	}
}

func newCompressor(w io.Writer, m Method) (io.WriteCloser, error) {
	switch m {
	case MethodGzip:
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	case MethodZstd:
		return zstd.NewWriter(w, zstd.WithWindowSize(zstdLongWindow))
	case MethodZstdWithoutLong:
		return zstd.NewWriter(w)
	default:
		return nil, errors.Errorf("unsupported compression method: %s", m)
	}
}

type decompressor struct {
	io.Reader
	close func()
}

func (d decompressor) Close() {
	d.close()
}

func newDecompressor(r io.Reader, m Method) (*decompressor, error) {
	switch m {
	case MethodGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read gzip header")
		}
		return &decompressor{Reader: gr, close: func() { _ = gr.Close() }}, nil
	case MethodZstd, MethodZstdWithoutLong:
		zr, err := zstd.NewReader(r, zstd.WithDecoderMaxWindow(zstdMaxWindow), zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create zstd decoder")
		}
		return &decompressor{Reader: zr, close: zr.Close}, nil
	default:
		return nil, errors.Errorf("unsupported compression method: %s", m)
	}
}
