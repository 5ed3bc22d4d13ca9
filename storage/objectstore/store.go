package objectstore

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/metric"
	"github.com/c360/pixelflow/storage"
)

// Store implements storage.Store on a JetStream ObjectStore bucket.
type Store struct {
	conn    *nats.Conn
	owned   bool
	obs     jetstream.ObjectStore
	config  Config
	metrics *storeMetrics
	logger  *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithMetrics exports operation metrics to registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Store) {
		if registry != nil {
			m, err := newStoreMetrics(registry, s.config.Bucket)
			if err != nil {
				s.logger.Warn("objectstore metrics disabled", "error", err)
				return
			}
			s.metrics = m
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Dial connects to cfg.URL and opens the bucket. The returned Store owns the
// connection and drains it on Close.
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("pixelflow"),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, errors.WrapTransient(errors.Join(errors.ErrStorageUnavailable, err), "ObjectStore", "Dial", "connect to "+cfg.URL)
	}

	s, err := NewStore(ctx, conn, cfg, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewStore opens cfg.Bucket over an existing connection, creating the bucket
// if it does not exist.
func NewStore(ctx context.Context, conn *nats.Conn, cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	js, err := jetstream.New(conn)
	if err != nil {
		return nil, errors.WrapFatal(err, "ObjectStore", "NewStore", "create JetStream context")
	}

	opCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	obs, err := js.ObjectStore(opCtx, cfg.Bucket)
	if stderrors.Is(err, jetstream.ErrBucketNotFound) {
		obs, err = js.CreateObjectStore(opCtx, jetstream.ObjectStoreConfig{
			Bucket:      cfg.Bucket,
			Description: cfg.Description,
			MaxBytes:    maxBytes(cfg.MaxBytes),
		})
	}
	if err != nil {
		return nil, errors.WrapTransient(errors.Join(errors.ErrStorageUnavailable, err), "ObjectStore", "NewStore", "open bucket "+cfg.Bucket)
	}

	s := &Store{
		conn:   conn,
		obs:    obs,
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "objectstore", "bucket", cfg.Bucket)

	return s, nil
}

func maxBytes(n int64) int64 {
	if n <= 0 {
		return -1
	}
	return n
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}

// Put stores data under key. JetStream keeps the previous revision as history.
func (s *Store) Put(ctx context.Context, key string, data []byte) (err error) {
	start := time.Now()
	defer func() { s.metrics.observe("put", start, err) }()

	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if _, err := s.obs.PutBytes(ctx, key, data); err != nil {
		return s.classify(err, "Put", "put "+key)
	}
	s.metrics.written(len(data))
	return nil
}

// Get retrieves the latest revision of key.
func (s *Store) Get(ctx context.Context, key string) (data []byte, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("get", start, err) }()

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	data, err = s.obs.GetBytes(ctx, key)
	if err != nil {
		return nil, s.classify(err, "Get", "get "+key)
	}
	return data, nil
}

// List returns the names of live objects starting with prefix, sorted.
// ObjectStore has no server-side prefix filter, so filtering happens here.
func (s *Store) List(ctx context.Context, prefix string) (keys []string, err error) {
	start := time.Now()
	defer func() { s.metrics.observe("list", start, err) }()

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	infos, err := s.obs.List(ctx)
	if stderrors.Is(err, jetstream.ErrNoObjectsFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, s.classify(err, "List", "list bucket")
	}

	keys = make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Deleted || !strings.HasPrefix(info.Name, prefix) {
			continue
		}
		keys = append(keys, info.Name)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete marks key deleted. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { s.metrics.observe("delete", start, err) }()

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.obs.Delete(ctx, key); err != nil && !stderrors.Is(err, jetstream.ErrObjectNotFound) {
		return s.classify(err, "Delete", "delete "+key)
	}
	return nil
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.config.Bucket
}

// Close drains the connection if the store opened it.
func (s *Store) Close() error {
	if !s.owned || s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil {
		return errors.WrapTransient(err, "ObjectStore", "Close", "drain connection")
	}
	return nil
}

func (s *Store) classify(err error, method, action string) error {
	switch {
	case stderrors.Is(err, jetstream.ErrObjectNotFound):
		return errors.WrapInvalid(errors.Join(errors.ErrKeyNotFound, err), "ObjectStore", method, action)
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, nats.ErrTimeout):
		return errors.WrapTransient(errors.Join(errors.ErrConnectionTimeout, err), "ObjectStore", method, action)
	case stderrors.Is(err, nats.ErrConnectionClosed), stderrors.Is(err, nats.ErrDisconnected):
		return errors.WrapTransient(errors.Join(errors.ErrConnectionLost, err), "ObjectStore", method, action)
	default:
		s.logger.Debug("objectstore operation failed", "method", method, "error", err)
		return errors.WrapTransient(errors.Join(errors.ErrStorageUnavailable, err), "ObjectStore", method, action)
	}
}
