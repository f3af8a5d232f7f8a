package reporter

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"firestige.xyz/ozwpan/internal/config"
	"firestige.xyz/ozwpan/internal/core"
	"firestige.xyz/ozwpan/internal/log"
)

const KafkaName = "kafka"

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
)

// KafkaOptions configures the Kafka reporter. Brokers, SASL and TLS are
// inherited from the global kafka section when left out.
type KafkaOptions struct {
	Brokers      []string          `mapstructure:"brokers"`       // required
	Topic        string            `mapstructure:"topic"`         // required
	BatchSize    int               `mapstructure:"batch_size"`    // default 100
	BatchTimeout time.Duration     `mapstructure:"batch_timeout"` // default 100ms
	Compression  string            `mapstructure:"compression"`   // none|gzip|snappy|lz4|zstd, default snappy
	MaxAttempts  int               `mapstructure:"max_attempts"`  // default 3
	Async        bool              `mapstructure:"async"`
	Tree         bool              `mapstructure:"tree"`
	Encoding     string            `mapstructure:"encoding"` // json|protobuf, default json
	SASL         config.SASLConfig `mapstructure:"sasl"`
	TLS          config.TLSConfig  `mapstructure:"tls"`
}

// messageWriter is the part of *kafka.Writer the reporter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes one JSON document per frame, keyed by the sender MAC so one
// device's frames stay in order on a partition, with the frame labels as headers.
type Kafka struct {
	writer messageWriter
	opts   KafkaOptions

	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

func init() {
	Register(KafkaName, func(options map[string]any, _ io.Writer) (core.Reporter, error) {
		opts := KafkaOptions{
			BatchSize:    defaultBatchSize,
			BatchTimeout: defaultBatchTimeout,
			Compression:  defaultCompression,
			MaxAttempts:  defaultMaxAttempts,
		}
		if err := decodeOptions(options, &opts); err != nil {
			return nil, err
		}
		return NewKafka(opts)
	})
}

// NewKafka validates opts and creates the kafka-go writer.
func NewKafka(opts KafkaOptions) (*Kafka, error) {
	if len(opts.Brokers) == 0 {
		return nil, fmt.Errorf("brokers is required")
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if err := checkEncoding(opts.Encoding); err != nil {
		return nil, err
	}
	w, err := newKafkaWriter(opts)
	if err != nil {
		return nil, err
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"brokers":     opts.Brokers,
		"topic":       opts.Topic,
		"batch_size":  opts.BatchSize,
		"compression": opts.Compression,
	}).Info("kafka reporter started")

	return newKafkaWithWriter(w, opts), nil
}

func newKafkaWithWriter(w messageWriter, opts KafkaOptions) *Kafka {
	return &Kafka{writer: w, opts: opts}
}

func newKafkaWriter(opts KafkaOptions) (*kafka.Writer, error) {
	compression, err := parseCompression(opts.Compression)
	if err != nil {
		return nil, err
	}

	transport := &kafka.Transport{ClientID: "ozwpan"}
	if opts.SASL.Enabled {
		mech, err := saslMechanism(opts.SASL)
		if err != nil {
			return nil, err
		}
		transport.SASL = mech
	}
	if opts.TLS.Enabled {
		tlsCfg, err := tlsConfig(opts.TLS)
		if err != nil {
			return nil, err
		}
		transport.TLS = tlsCfg
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(opts.Brokers...),
		Topic:        opts.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    opts.BatchSize,
		BatchTimeout: opts.BatchTimeout,
		MaxAttempts:  opts.MaxAttempts,
		Compression:  compression,
		Async:        opts.Async,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}, nil
}

func parseCompression(name string) (kafka.Compression, error) {
	switch name {
	case "none", "":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	default:
		return 0, fmt.Errorf("invalid compression type: %s", name)
	}
}

func saslMechanism(cfg config.SASLConfig) (sasl.Mechanism, error) {
	switch cfg.Mechanism {
	case "PLAIN", "":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("unsupported sasl mechanism: %s", cfg.Mechanism)
	}
}

func tlsConfig(cfg config.TLSConfig) (*tls.Config, error) {
	tc := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify, MinVersion: tls.VersionTLS12}
	if cfg.CACert != "" {
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read ca_cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", cfg.CACert)
		}
		tc.RootCAs = pool
	}
	if cfg.ClientCert != "" || cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

func (r *Kafka) Name() string { return KafkaName }

// Report sends a frame to Kafka.
func (r *Kafka) Report(ctx context.Context, f *core.OutputFrame) error {
	if f == nil {
		return fmt.Errorf("nil frame")
	}

	value, err := encodeDocument(NewDocument(f, r.opts.Tree), r.opts.Encoding)
	if err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("serialize frame failed: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(r.key(f)),
		Value: value,
		Time:  f.Timestamp,
	}
	msg.Headers = make([]kafka.Header, 0, len(f.Labels)+1)
	msg.Headers = append(msg.Headers, kafka.Header{Key: "content-type", Value: []byte(contentType(r.opts.Encoding))})
	for k, v := range f.Labels {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("kafka write failed: %w", err)
	}

	r.reportedCount.Add(1)
	return nil
}

func (r *Kafka) key(f *core.OutputFrame) string {
	if len(f.Ethernet.SrcMAC) > 0 {
		return f.Ethernet.SrcMAC.String()
	}
	return strconv.FormatUint(f.Number, 10)
}

// Flush is a no-op; synchronous writes are complete on return and Close drains async ones.
func (r *Kafka) Flush(ctx context.Context) error { return nil }

func (r *Kafka) Close() error {
	err := r.writer.Close()
	log.GetLogger().WithFields(map[string]interface{}{
		"total_reported": r.reportedCount.Load(),
		"total_errors":   r.errorCount.Load(),
	}).Info("kafka reporter stopped")
	if err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
