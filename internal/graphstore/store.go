package graphstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RedisGraph/redisgraph-go"
	"github.com/gomodule/redigo/redis"
)

// Config contains graph connection configuration.
type Config struct {
	Host       string
	Port       int
	GraphName  string
	Password   string
	MaxRetries int
	RetryDelay time.Duration

	// CommandTimeout bounds a single GRAPH.QUERY round trip on the
	// socket. Queries serialize on one connection, so a hung command
	// would otherwise stall every caller behind it.
	CommandTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           6379,
		GraphName:      "diveteacher",
		MaxRetries:     3,
		RetryDelay:     500 * time.Millisecond,
		CommandTimeout: 60 * time.Second,
	}
}

// Store is the FalkorDB-backed knowledge graph.
type Store struct {
	config    Config
	logger    *slog.Logger
	extractor Extractor
	embedder  Embedder

	mu        sync.Mutex
	conn      redis.Conn
	graph     redisgraph.Graph
	connected bool
}

// Embedder produces vectors for fact and query text. Satisfied by the
// llm package's embeddings client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Option configures the Store.
type Option func(*Store)

// WithConfig sets the connection configuration.
func WithConfig(cfg Config) Option {
	return func(s *Store) {
		s.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithExtractor sets the entity and relation extractor.
func WithExtractor(x Extractor) Option {
	return func(s *Store) {
		s.extractor = x
	}
}

// WithEmbedder sets the embeddings client.
func WithEmbedder(e Embedder) Option {
	return func(s *Store) {
		s.embedder = e
	}
}

// New creates a Store. Call Start before use.
func New(opts ...Option) *Store {
	s := &Store{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the component name.
func (s *Store) Name() string {
	return "graphstore"
}

// Start opens the FalkorDB connection and ensures indexes exist.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	dialOpts := []redis.DialOption{
		redis.DialConnectTimeout(10 * time.Second),
	}
	if s.config.CommandTimeout > 0 {
		dialOpts = append(dialOpts,
			redis.DialReadTimeout(s.config.CommandTimeout),
			redis.DialWriteTimeout(s.config.CommandTimeout))
	}
	if s.config.Password != "" {
		dialOpts = append(dialOpts, redis.DialPassword(s.config.Password))
	}

	conn, err := redis.Dial("tcp", addr, dialOpts...)
	if err != nil {
		return fmt.Errorf("failed to connect to FalkorDB at %s; %w", addr, err)
	}

	s.conn = conn
	s.graph = redisgraph.GraphNew(s.config.GraphName, conn)
	s.connected = true

	if err := s.ensureIndexesLocked(); err != nil {
		s.logger.Warn("failed to create graph indexes", "error", err)
	}

	s.logger.Info("connected to FalkorDB",
		"host", s.config.Host,
		"port", s.config.Port,
		"graph", s.config.GraphName)

	return nil
}

// Stop closes the graph connection.
func (s *Store) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.connected = false
	s.logger.Info("disconnected from FalkorDB")

	return nil
}

// IsConnected reports whether the store has an open connection.
func (s *Store) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// query runs a Cypher query with retry. The redis connection is not
// safe for concurrent use, so all queries serialize on the mutex; the
// socket read and write deadlines from CommandTimeout keep one slow
// query from pinning it forever. Retries back off exponentially and
// stop when ctx is done.
func (s *Store) query(ctx context.Context, cypher string) (*redisgraph.QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, fmt.Errorf("not connected to graph database")
	}

	var result *redisgraph.QueryResult
	var err error
	for i := 0; i <= s.config.MaxRetries; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		result, err = s.graph.Query(cypher)
		if err == nil {
			return result, nil
		}
		if i < s.config.MaxRetries {
			select {
			case <-time.After(s.config.RetryDelay * time.Duration(1<<i)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("query failed after %d retries; %w", s.config.MaxRetries, err)
}

// Query executes a raw Cypher query and returns a generic result.
func (s *Store) Query(ctx context.Context, cypher string) (*QueryResult, error) {
	result, err := s.query(ctx, cypher)
	if err != nil {
		return nil, err
	}
	return convertQueryResult(result), nil
}

// Ping verifies round-trip connectivity.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.query(ctx, "RETURN 1")
	return err
}

// Clear removes every node and relationship, then recreates indexes.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.query(ctx, "MATCH (n) DETACH DELETE n"); err != nil {
		return fmt.Errorf("failed to clear graph; %w", err)
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to recreate indexes after clear; %w", err)
	}
	s.logger.Warn("graph database cleared")
	return nil
}

// convertQueryResult flattens a redisgraph result into plain rows.
func convertQueryResult(result *redisgraph.QueryResult) *QueryResult {
	qr := &QueryResult{
		Stats: QueryStats{
			NodesCreated:     result.NodesCreated(),
			NodesDeleted:     result.NodesDeleted(),
			RelationsCreated: result.RelationshipsCreated(),
			RelationsDeleted: result.RelationshipsDeleted(),
			PropertiesSet:    result.PropertiesSet(),
			ExecutionTimeMs:  float64(result.RunTime()),
		},
	}

	for result.Next() {
		record := result.Record()
		values := record.Values()
		row := make([]any, len(values))
		copy(row, values)
		qr.Rows = append(qr.Rows, row)
		if qr.Columns == nil {
			qr.Columns = record.Keys()
		}
	}

	return qr
}

// Record accessor helpers. Graph values arrive as any; these normalize
// the numeric and string cases.

func getString(record *redisgraph.Record, index int) string {
	val := record.GetByIndex(index)
	if val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", val)
}

func getInt(record *redisgraph.Record, index int) int {
	val := record.GetByIndex(index)
	if val == nil {
		return 0
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func getFloat(record *redisgraph.Record, index int) float64 {
	val := record.GetByIndex(index)
	if val == nil {
		return 0
	}
	switch v := val.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func getFloatSlice(record *redisgraph.Record, index int) []float32 {
	val := record.GetByIndex(index)
	items, ok := val.([]any)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case float64:
			out = append(out, float32(v))
		case int64:
			out = append(out, float32(v))
		case int:
			out = append(out, float32(v))
		}
	}
	return out
}
