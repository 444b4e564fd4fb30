package store

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/bella-ai/chat-relay/internal/model"
	"github.com/bella-ai/chat-relay/pkg/logger"
)

const (
	// TaskBucket holds task continuation data per thread.
	TaskBucket = "lindy_task"

	// CallbackBucket holds pending callback payloads per thread.
	CallbackBucket = "lindy_callback"
)

// NATSConfig holds NATS connection configuration.
type NATSConfig struct {
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string

	TaskTTL     time.Duration
	CallbackTTL time.Duration
}

// NATSStore is a correlation store backed by two JetStream key-value buckets
// with bucket-level TTLs, mirroring the lindy:task:* / lindy:callback:* key
// scheme of the networked backend this replaces.
type NATSStore struct {
	conn      *nats.Conn
	tasks     jetstream.KeyValue
	callbacks jetstream.KeyValue
	logger    *logger.Logger
}

// NewNATSStore connects to NATS and ensures both buckets exist.
func NewNATSStore(ctx context.Context, cfg NATSConfig, log *logger.Logger) (*NATSStore, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	if cfg.CAFile != "" && cfg.CertFile != "" && cfg.KeyFile != "" {
		tlsConfig, err := createTLSConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}

	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	tasks, err := ensureBucket(ctx, js, TaskBucket, cfg.TaskTTL)
	if err != nil {
		nc.Close()
		return nil, err
	}
	callbacks, err := ensureBucket(ctx, js, CallbackBucket, cfg.CallbackTTL)
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &NATSStore{
		conn:      nc,
		tasks:     tasks,
		callbacks: callbacks,
		logger:    log,
	}, nil
}

func ensureBucket(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("failed to look up bucket %s: %w", bucket, err)
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// SetTask merge-writes continuation fields for a thread.
func (s *NATSStore) SetTask(ctx context.Context, threadID string, data model.TaskContinuation) error {
	existing, err := s.GetTask(ctx, threadID)
	if err != nil {
		return err
	}

	merged := model.TaskContinuation{}
	if existing != nil {
		merged = *existing
	}
	merged.Merge(data)

	raw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal task data: %w", err)
	}
	if _, err := s.tasks.Put(ctx, threadID, raw); err != nil {
		return fmt.Errorf("failed to store task data: %w", err)
	}
	return nil
}

// GetTask returns the continuation for a thread, or nil when unknown.
func (s *NATSStore) GetTask(ctx context.Context, threadID string) (*model.TaskContinuation, error) {
	entry, err := s.tasks.Get(ctx, threadID)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task data: %w", err)
	}

	var data model.TaskContinuation
	if err := json.Unmarshal(entry.Value(), &data); err != nil {
		return nil, fmt.Errorf("failed to parse task data: %w", err)
	}
	return &data, nil
}

// SetCallback overwrite-sets the pending callback for a thread.
func (s *NATSStore) SetCallback(ctx context.Context, threadID string, payload model.PendingCallback) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal callback payload: %w", err)
	}
	if _, err := s.callbacks.Put(ctx, threadID, raw); err != nil {
		return fmt.Errorf("failed to store callback payload: %w", err)
	}
	return nil
}

// GetCallback returns the pending callback, or nil when absent or expired.
func (s *NATSStore) GetCallback(ctx context.Context, threadID string) (*model.PendingCallback, error) {
	entry, err := s.callbacks.Get(ctx, threadID)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read callback payload: %w", err)
	}

	var payload model.PendingCallback
	if err := json.Unmarshal(entry.Value(), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse callback payload: %w", err)
	}
	return &payload, nil
}

// ClearCallback deletes the pending callback for a thread.
func (s *NATSStore) ClearCallback(ctx context.Context, threadID string) error {
	err := s.callbacks.Purge(ctx, threadID)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to clear callback payload: %w", err)
	}
	return nil
}

// Ping reports whether the NATS connection is healthy.
func (s *NATSStore) Ping(ctx context.Context) error {
	if s.conn == nil || !s.conn.IsConnected() {
		return errors.New("NATS not connected")
	}
	return nil
}

// Close closes the NATS connection.
func (s *NATSStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
