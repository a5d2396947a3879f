package destinations

import (
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/data-fair/parquetexport/pkg/errors"
)

// Uploader is the part of manager.Uploader used by S3.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

var _ Uploader = (*manager.Uploader)(nil)

// S3 streams chunks into a multipart upload through a pipe. The upload runs
// on its own goroutine from construction; aborting closes the pipe with the
// cause, which makes the uploader abandon the multipart upload.
type S3 struct {
	bucket string
	key    string
	pw     *io.PipeWriter
	done   chan error
	logger *zap.Logger

	once sync.Once
	err  error
}

// NewS3 starts the upload of bucket/key.
func NewS3(ctx context.Context, uploader Uploader, bucket, key, contentType string, logger *zap.Logger) *S3 {
	if logger == nil {
		logger = zap.NewNop()
	}
	pr, pw := io.Pipe()
	d := &S3{
		bucket: bucket,
		key:    key,
		pw:     pw,
		done:   make(chan error, 1),
		logger: logger,
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   pr,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	go func() {
		out, err := uploader.Upload(ctx, input)
		if err != nil {
			_ = pr.CloseWithError(err)
			d.done <- err
			return
		}
		logger.Info("s3 upload complete", zap.String("location", out.Location))
		d.done <- nil
	}()
	return d
}

// URI implements Destination.
func (d *S3) URI() string { return "s3://" + d.bucket + "/" + d.key }

// OnData implements sink.Consumer.
func (d *S3) OnData(_ context.Context, chunk []byte) error {
	if _, err := d.pw.Write(chunk); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to stream to s3").
			WithDetail("uri", d.URI())
	}
	return nil
}

// OnEnd closes the pipe and waits for the upload to complete.
func (d *S3) OnEnd(context.Context) error {
	_ = d.pw.Close()
	if err := d.wait(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "s3 upload failed").
			WithDetail("uri", d.URI())
	}
	return nil
}

// OnAbort fails the upload and waits for it to unwind.
func (d *S3) OnAbort(_ context.Context, cause error) {
	_ = d.pw.CloseWithError(cause)
	if err := d.wait(); err == nil {
		d.logger.Warn("s3 upload completed despite abort", zap.String("uri", d.URI()))
	}
	d.logger.Warn("s3 upload aborted", zap.String("uri", d.URI()), zap.Error(cause))
}

// wait returns the upload result; it may be called more than once.
func (d *S3) wait() error {
	d.once.Do(func() { d.err = <-d.done })
	return d.err
}
