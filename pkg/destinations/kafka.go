package destinations

import (
	"context"
	"strconv"
	"strings"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/data-fair/parquetexport/pkg/config"
	"github.com/data-fair/parquetexport/pkg/errors"
)

// Message headers written on every Kafka message.
const (
	HeaderExportID = "export_id"
	HeaderSeq      = "seq"
	HeaderKind     = "kind"
	HeaderError    = "error"
)

// Message kinds.
const (
	KindData  = "data"
	KindEnd   = "end"
	KindAbort = "abort"
)

// messageOverhead is reserved for the key, headers and record framing.
const messageOverhead = 1024

// Kafka publishes the stream to a topic, keyed by export ID so that every
// message lands on the same partition in order. Chunks larger than the
// message limit are split. The stream ends with an empty "end" message, or
// an "abort" message carrying the cause.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	exportID string
	maxChunk int
	seq      int
	logger   *zap.Logger
}

// NewKafka takes ownership of producer and closes it at the end of the
// stream. maxMessageBytes of zero or less disables splitting.
func NewKafka(producer sarama.SyncProducer, topic, exportID string, maxMessageBytes int, logger *zap.Logger) *Kafka {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxChunk := 0
	if maxMessageBytes > messageOverhead {
		maxChunk = maxMessageBytes - messageOverhead
	}
	return &Kafka{
		producer: producer,
		topic:    topic,
		exportID: exportID,
		maxChunk: maxChunk,
		logger:   logger,
	}
}

func openKafka(cfg config.KafkaConfig, loc Location, exportID string, logger *zap.Logger) (Destination, error) {
	brokers := loc.Brokers()
	if len(brokers) == 0 {
		brokers = cfg.Brokers
	}
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "no kafka brokers configured")
	}

	saramaConfig, err := NewSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer(brokers, saramaConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to create Kafka producer").
			WithDetail("brokers", strings.Join(brokers, ","))
	}

	logger.Info("Kafka producer created",
		zap.Strings("brokers", brokers),
		zap.String("topic", loc.Path))
	return NewKafka(producer, loc.Path, exportID, cfg.MaxMessageBytes, logger), nil
}

// NewSaramaConfig builds a producer configuration that waits for every
// in-sync replica and keeps one request in flight, so messages of one
// export cannot be reordered by retries.
func NewSaramaConfig(cfg config.KafkaConfig) (*sarama.Config, error) {
	saramaConfig := sarama.NewConfig()
	if cfg.Version != "" {
		version, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid kafka version").
				WithDetail("version", cfg.Version)
		}
		saramaConfig.Version = version
	}
	if cfg.ClientID != "" {
		saramaConfig.ClientID = cfg.ClientID
	}
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	saramaConfig.Net.MaxOpenRequests = 1
	if cfg.MaxMessageBytes > 0 {
		saramaConfig.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	}
	if cfg.Timeout > 0 {
		saramaConfig.Net.DialTimeout = cfg.Timeout
		saramaConfig.Producer.Timeout = cfg.Timeout
	}
	return saramaConfig, nil
}

// URI implements Destination.
func (d *Kafka) URI() string { return "kafka:///" + d.topic }

// OnData sends chunk as one or more data messages.
func (d *Kafka) OnData(_ context.Context, chunk []byte) error {
	for len(chunk) > 0 {
		part := chunk
		if d.maxChunk > 0 && len(part) > d.maxChunk {
			part = chunk[:d.maxChunk]
		}
		if err := d.send(KindData, part, nil); err != nil {
			return err
		}
		chunk = chunk[len(part):]
	}
	return nil
}

// OnEnd sends the end marker and closes the producer.
func (d *Kafka) OnEnd(context.Context) error {
	err := d.send(KindEnd, nil, nil)
	if cerr := d.producer.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.ErrorTypeIO, "failed to close Kafka producer")
	}
	if err == nil {
		d.logger.Info("kafka stream complete", zap.String("topic", d.topic), zap.Int("messages", d.seq))
	}
	return err
}

// OnAbort sends an abort marker carrying the cause and closes the producer.
func (d *Kafka) OnAbort(_ context.Context, cause error) {
	var extra []sarama.RecordHeader
	if cause != nil {
		extra = append(extra, sarama.RecordHeader{Key: []byte(HeaderError), Value: []byte(cause.Error())})
	}
	if err := d.send(KindAbort, nil, extra); err != nil {
		d.logger.Error("failed to send abort marker", zap.Error(err))
	}
	if err := d.producer.Close(); err != nil {
		d.logger.Warn("failed to close Kafka producer", zap.Error(err))
	}
	d.logger.Warn("kafka stream aborted", zap.String("topic", d.topic), zap.Error(cause))
}

func (d *Kafka) send(kind string, value []byte, extra []sarama.RecordHeader) error {
	msg := &sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(d.exportID),
		Headers: append([]sarama.RecordHeader{
			{Key: []byte(HeaderExportID), Value: []byte(d.exportID)},
			{Key: []byte(HeaderSeq), Value: []byte(strconv.Itoa(d.seq))},
			{Key: []byte(HeaderKind), Value: []byte(kind)},
		}, extra...),
	}
	if value != nil {
		msg.Value = sarama.ByteEncoder(value)
	}

	partition, offset, err := d.producer.SendMessage(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to send message to Kafka").
			WithDetail("topic", d.topic).
			WithDetail("seq", d.seq)
	}
	d.logger.Debug("message produced",
		zap.String("kind", kind),
		zap.Int("seq", d.seq),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	d.seq++
	return nil
}
