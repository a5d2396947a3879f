package destinations

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/data-fair/parquetexport/pkg/errors"
)

// GCS streams chunks into an object writer. The object only becomes visible
// when the writer closes successfully.
type GCS struct {
	bucket string
	object string
	w      io.WriteCloser
	cancel context.CancelFunc
	close  func() error
	logger *zap.Logger
}

// NewGCS wraps an object writer. cancel must abort the upload in flight;
// closeClient, if set, runs once the stream has ended or aborted.
func NewGCS(bucket, object string, w io.WriteCloser, cancel context.CancelFunc, closeClient func() error, logger *zap.Logger) *GCS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GCS{
		bucket: bucket,
		object: object,
		w:      w,
		cancel: cancel,
		close:  closeClient,
		logger: logger,
	}
}

// URI implements Destination.
func (d *GCS) URI() string { return "gs://" + d.bucket + "/" + d.object }

// OnData implements sink.Consumer.
func (d *GCS) OnData(_ context.Context, chunk []byte) error {
	if _, err := d.w.Write(chunk); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to stream to gcs").
			WithDetail("uri", d.URI())
	}
	return nil
}

// OnEnd commits the object.
func (d *GCS) OnEnd(context.Context) error {
	defer d.release()
	if err := d.w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "gcs upload failed").
			WithDetail("uri", d.URI())
	}
	d.logger.Info("gcs upload complete", zap.String("uri", d.URI()))
	return nil
}

// OnAbort cancels the upload so no object is created.
func (d *GCS) OnAbort(_ context.Context, cause error) {
	defer d.release()
	d.cancel()
	_ = d.w.Close()
	d.logger.Warn("gcs upload aborted", zap.String("uri", d.URI()), zap.Error(cause))
}

func (d *GCS) release() {
	d.cancel()
	if d.close != nil {
		if err := d.close(); err != nil {
			d.logger.Warn("failed to close gcs client", zap.Error(err))
		}
	}
}
