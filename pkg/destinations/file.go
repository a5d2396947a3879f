package destinations

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/data-fair/parquetexport/pkg/errors"
)

// File writes to a temporary file next to the target and renames it into
// place at the end of the stream, so readers never see a partial file.
type File struct {
	path   string
	tmp    *os.File
	logger *zap.Logger
	bytes  int64
}

// NewFile creates the temporary file for path.
func NewFile(path string, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to create temporary file").
			WithDetail("path", path)
	}
	return &File{path: path, tmp: tmp, logger: logger}, nil
}

// URI implements Destination.
func (f *File) URI() string { return f.path }

// OnData implements sink.Consumer.
func (f *File) OnData(_ context.Context, chunk []byte) error {
	n, err := f.tmp.Write(chunk)
	f.bytes += int64(n)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write file").
			WithDetail("path", f.tmp.Name())
	}
	return nil
}

// OnEnd syncs the temporary file and renames it to the target path.
func (f *File) OnEnd(context.Context) error {
	if err := f.tmp.Sync(); err != nil {
		f.discard()
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to sync file")
	}
	if err := f.tmp.Close(); err != nil {
		f.discard()
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to close file")
	}
	if err := os.Rename(f.tmp.Name(), f.path); err != nil {
		f.discard()
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to move file into place").
			WithDetail("path", f.path)
	}
	f.logger.Info("file written", zap.String("path", f.path), zap.Int64("bytes", f.bytes))
	return nil
}

// OnAbort removes the temporary file.
func (f *File) OnAbort(_ context.Context, cause error) {
	f.discard()
	f.logger.Warn("file export aborted", zap.String("path", f.path), zap.Error(cause))
}

func (f *File) discard() {
	_ = f.tmp.Close()
	if err := os.Remove(f.tmp.Name()); err != nil && !os.IsNotExist(err) {
		f.logger.Warn("failed to remove temporary file", zap.String("tmp", f.tmp.Name()), zap.Error(err))
	}
}

// Stream writes to an io.Writer it does not own, such as standard output.
type Stream struct {
	w    io.Writer
	name string
}

// NewStdout returns a destination writing to standard output.
func NewStdout() *Stream {
	return &Stream{w: os.Stdout, name: "-"}
}

// NewStream returns a destination writing to w.
func NewStream(w io.Writer, name string) *Stream {
	return &Stream{w: w, name: name}
}

// URI implements Destination.
func (s *Stream) URI() string { return s.name }

// OnData implements sink.Consumer.
func (s *Stream) OnData(_ context.Context, chunk []byte) error {
	if _, err := s.w.Write(chunk); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write output")
	}
	return nil
}

// OnEnd implements sink.Consumer.
func (s *Stream) OnEnd(context.Context) error { return nil }

// OnAbort implements sink.Aborter. Bytes already written stay written.
func (s *Stream) OnAbort(context.Context, error) {}
