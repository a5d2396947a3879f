package destinations

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/data-fair/parquetexport/pkg/config"
	"github.com/data-fair/parquetexport/pkg/errors"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		uri  string
		want Location
	}{
		{"out.parquet", Location{Scheme: "file", Path: "out.parquet"}},
		{"/tmp/out.parquet", Location{Scheme: "file", Path: "/tmp/out.parquet"}},
		{"file:///tmp/out.parquet", Location{Scheme: "file", Path: "/tmp/out.parquet"}},
		{"s3://bucket/dir/key.parquet", Location{Scheme: "s3", Host: "bucket", Path: "dir/key.parquet"}},
		{"gs://bucket/key.parquet", Location{Scheme: "gs", Host: "bucket", Path: "key.parquet"}},
		{"kafka://a:9092,b:9092/exports", Location{Scheme: "kafka", Host: "a:9092,b:9092", Path: "exports"}},
		{"kafka:///exports", Location{Scheme: "kafka", Path: "exports"}},
	}
	for _, tt := range tests {
		got, err := ParseLocation(tt.uri)
		require.NoError(t, err, tt.uri)
		assert.Equal(t, tt.want, got, tt.uri)
	}

	loc, _ := ParseLocation("kafka://a:9092,b:9092/exports")
	assert.Equal(t, []string{"a:9092", "b:9092"}, loc.Brokers())

	for _, uri := range []string{"", "file://", "s3://bucket", "s3:///key", "gs://bucket/", "kafka://a:9092"} {
		_, err := ParseLocation(uri)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), uri)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewExportConfig()

	d, err := Open(ctx, cfg, "id", nil)
	require.NoError(t, err)
	assert.IsType(t, &Stream{}, d)

	target := filepath.Join(t.TempDir(), "out.parquet")
	cfg.Output.URI = target
	d, err = Open(ctx, cfg, "id", zaptest.NewLogger(t))
	require.NoError(t, err)
	require.IsType(t, &File{}, d)
	assert.Equal(t, target, d.URI())
	d.OnAbort(ctx, fmt.Errorf("not needed"))

	cfg.Output.URI = "kafka:///exports"
	_, err = Open(ctx, cfg, "id", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cfg.Output.URI = "s3://bucket"
	_, err = Open(ctx, cfg, "id", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	target := filepath.Join(dir, "out.parquet")

	f, err := NewFile(target, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, f.OnData(ctx, []byte("PAR1")))
	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err), "target appears only at end")

	require.NoError(t, f.OnData(ctx, []byte("-data-PAR1")))
	require.NoError(t, f.OnEnd(ctx))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "PAR1-data-PAR1", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is renamed, not copied")
}

func TestFileAbort(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	target := filepath.Join(dir, "out.parquet")

	f, err := NewFile(target, nil)
	require.NoError(t, err)
	require.NoError(t, f.OnData(ctx, []byte("PAR1")))
	f.OnAbort(ctx, fmt.Errorf("encoding failed"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = NewFile(filepath.Join(dir, "missing", "out.parquet"), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}

func TestStream(t *testing.T) {
	var buf bytes.Buffer
	s := NewStream(&buf, "buffer")
	require.NoError(t, s.OnData(context.Background(), []byte("a")))
	require.NoError(t, s.OnData(context.Background(), []byte("b")))
	require.NoError(t, s.OnEnd(context.Background()))
	assert.Equal(t, "ab", buf.String())
	assert.Equal(t, "buffer", s.URI())
}

// fakeUploader drains the body like the multipart uploader does.
type fakeUploader struct {
	mu       sync.Mutex
	body     []byte
	input    *s3.PutObjectInput
	failWith error
}

func (u *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	u.mu.Lock()
	u.input = input
	u.mu.Unlock()
	if u.failWith != nil {
		return nil, u.failWith
	}
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	u.body = body
	u.mu.Unlock()
	return &manager.UploadOutput{Location: "https://bucket.s3/" + aws.ToString(input.Key)}, nil
}

func (u *fakeUploader) Body() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.body
}

func TestS3(t *testing.T) {
	ctx := context.Background()
	up := &fakeUploader{}
	d := NewS3(ctx, up, "bucket", "dir/out.parquet", "application/vnd.apache.parquet", zaptest.NewLogger(t))
	assert.Equal(t, "s3://bucket/dir/out.parquet", d.URI())

	require.NoError(t, d.OnData(ctx, []byte("PAR1")))
	require.NoError(t, d.OnData(ctx, []byte("PAR1")))
	require.NoError(t, d.OnEnd(ctx))

	assert.Equal(t, "PAR1PAR1", string(up.Body()))
	assert.Equal(t, "bucket", aws.ToString(up.input.Bucket))
	assert.Equal(t, "application/vnd.apache.parquet", aws.ToString(up.input.ContentType))
}

func TestS3Abort(t *testing.T) {
	ctx := context.Background()
	up := &fakeUploader{}
	d := NewS3(ctx, up, "bucket", "out.parquet", "", nil)

	require.NoError(t, d.OnData(ctx, []byte("PAR1")))
	d.OnAbort(ctx, fmt.Errorf("encoding failed"))
	assert.Nil(t, up.Body(), "aborted upload never completes")
}

func TestS3UploadFailure(t *testing.T) {
	ctx := context.Background()
	denied := stderrors.New("access denied")
	d := NewS3(ctx, &fakeUploader{failWith: denied}, "bucket", "out.parquet", "", nil)

	err := d.OnData(ctx, []byte("PAR1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, denied)

	err = d.OnEnd(ctx)
	assert.ErrorIs(t, err, denied)
}

type fakeObjectWriter struct {
	bytes.Buffer
	cancelled bool
	closed    bool
	closeErr  error
}

func (w *fakeObjectWriter) Close() error {
	w.closed = true
	if w.cancelled {
		return context.Canceled
	}
	return w.closeErr
}

func TestGCS(t *testing.T) {
	ctx := context.Background()
	w := &fakeObjectWriter{}
	clientClosed := false
	d := NewGCS("bucket", "out.parquet", w, func() { w.cancelled = true }, func() error {
		clientClosed = true
		return nil
	}, zaptest.NewLogger(t))
	assert.Equal(t, "gs://bucket/out.parquet", d.URI())

	require.NoError(t, d.OnData(ctx, []byte("PAR1")))
	require.NoError(t, d.OnEnd(ctx))
	assert.Equal(t, "PAR1", w.String())
	assert.True(t, w.closed)
	assert.True(t, clientClosed)
}

func TestGCSAbortAndFailure(t *testing.T) {
	ctx := context.Background()
	w := &fakeObjectWriter{}
	d := NewGCS("bucket", "out.parquet", w, func() { w.cancelled = true }, nil, nil)
	require.NoError(t, d.OnData(ctx, []byte("PAR1")))
	d.OnAbort(ctx, fmt.Errorf("encoding failed"))
	assert.True(t, w.cancelled)
	assert.True(t, w.closed)

	w = &fakeObjectWriter{closeErr: fmt.Errorf("precondition failed")}
	d = NewGCS("bucket", "out.parquet", w, func() {}, nil, nil)
	err := d.OnEnd(ctx)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}

func header(msg *sarama.ProducerMessage, key string) string {
	for _, h := range msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func expectMessage(kind string, seq int, value string) mocks.MessageChecker {
	return func(msg *sarama.ProducerMessage) error {
		if got := header(msg, HeaderKind); got != kind {
			return fmt.Errorf("kind = %q, want %q", got, kind)
		}
		if got := header(msg, HeaderSeq); got != fmt.Sprint(seq) {
			return fmt.Errorf("seq = %q, want %d", got, seq)
		}
		if got := header(msg, HeaderExportID); got != "exp-1" {
			return fmt.Errorf("export_id = %q", got)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "exp-1" {
			return fmt.Errorf("key = %q", key)
		}
		var payload []byte
		if msg.Value != nil {
			payload, _ = msg.Value.Encode()
		}
		if string(payload) != value {
			return fmt.Errorf("value = %q, want %q", payload, value)
		}
		return nil
	}
}

func TestKafka(t *testing.T) {
	ctx := context.Background()
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(expectMessage(KindData, 0, "PAR1"))
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(expectMessage(KindData, 1, "rowgroup"))
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(expectMessage(KindEnd, 2, ""))

	d := NewKafka(producer, "exports", "exp-1", 0, zaptest.NewLogger(t))
	assert.Equal(t, "kafka:///exports", d.URI())
	require.NoError(t, d.OnData(ctx, []byte("PAR1")))
	require.NoError(t, d.OnData(ctx, []byte("rowgroup")))
	require.NoError(t, d.OnEnd(ctx))
}

func TestKafkaSplitsLargeChunks(t *testing.T) {
	ctx := context.Background()
	chunk := bytes.Repeat([]byte("x"), 2500)

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(expectMessage(KindData, 0, string(chunk[:1000])))
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(expectMessage(KindData, 1, string(chunk[1000:2000])))
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(expectMessage(KindData, 2, string(chunk[2000:])))
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(expectMessage(KindEnd, 3, ""))

	d := NewKafka(producer, "exports", "exp-1", 1000+messageOverhead, nil)
	require.NoError(t, d.OnData(ctx, chunk))
	require.NoError(t, d.OnEnd(ctx))
}

func TestKafkaAbort(t *testing.T) {
	ctx := context.Background()
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(expectMessage(KindData, 0, "PAR1"))
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if header(msg, HeaderKind) != KindAbort || header(msg, HeaderError) != "encoding failed" {
			return fmt.Errorf("unexpected abort message %v", msg.Headers)
		}
		return nil
	})

	d := NewKafka(producer, "exports", "exp-1", 0, nil)
	require.NoError(t, d.OnData(ctx, []byte("PAR1")))
	d.OnAbort(ctx, fmt.Errorf("encoding failed"))
}

func TestKafkaSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	d := NewKafka(producer, "exports", "exp-1", 0, nil)
	err := d.OnData(context.Background(), []byte("PAR1"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, producer.Close())
}

func TestNewSaramaConfig(t *testing.T) {
	cfg := config.NewExportConfig().Kafka
	sc, err := NewSaramaConfig(cfg)
	require.NoError(t, err)
	assert.True(t, sc.Producer.Return.Successes)
	assert.Equal(t, sarama.WaitForAll, sc.Producer.RequiredAcks)
	assert.Equal(t, 1, sc.Net.MaxOpenRequests)
	assert.Equal(t, "parquetexport", sc.ClientID)
	assert.Equal(t, cfg.MaxMessageBytes, sc.Producer.MaxMessageBytes)
	assert.NoError(t, sc.Validate())

	cfg.Version = "not-a-version"
	_, err = NewSaramaConfig(cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
