package vector

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"kanun/llm"
)

const (
	defaultEFConstruction = 200
	defaultM              = 16

	// Field names in the Redis hash.
	fieldText      = "text"
	fieldVector    = "vector"
	fieldSource    = "source"
	fieldLink      = "link"
	fieldSummary   = "document_summary"
	fieldNamespace = "namespace"
	fieldScore     = "score"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	PoolSize       int
	IndexName      string
	VectorDim      int
	EFConstruction int
	M              int
}

// RedisStore implements Store on Redis with RediSearch vector search. Records
// live in hashes under one shared HNSW index; a namespace TAG field scopes
// searches to a logical partition. Upserts are serialized per namespace so
// ID-based idempotency holds without blocking other namespaces.
type RedisStore struct {
	client *redis.Client
	config StoreConfig
	log    *zap.Logger

	efConstruction int
	m              int

	mu      sync.Mutex
	nsLocks map[string]*sync.Mutex
}

// NewRedisStore connects to Redis and ensures the vector index exists.
func NewRedisStore(ctx context.Context, cfg RedisConfig, log *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: connecting to redis at %s: %v", llm.ErrIndexUnavailable, cfg.Addr, err)
	}

	ef := cfg.EFConstruction
	if ef <= 0 {
		ef = defaultEFConstruction
	}
	m := cfg.M
	if m <= 0 {
		m = defaultM
	}

	store := &RedisStore{
		client: client,
		config: StoreConfig{
			EmbeddingDim: cfg.VectorDim,
			IndexName:    cfg.IndexName,
			KeyPrefix:    DefaultStoreConfig().KeyPrefix,
		},
		log:            log,
		efConstruction: ef,
		m:              m,
		nsLocks:        make(map[string]*sync.Mutex),
	}
	if err := store.ensureIndex(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return store, nil
}

// ensureIndex creates the HNSW vector index if it does not exist yet.
func (s *RedisStore) ensureIndex(ctx context.Context) error {
	if _, err := s.client.Do(ctx, "FT.INFO", s.config.IndexName).Result(); err == nil {
		return nil
	}

	_, err := s.client.Do(ctx, "FT.CREATE", s.config.IndexName,
		"ON", "HASH",
		"PREFIX", "1", s.config.KeyPrefix,
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.config.EmbeddingDim),
		"DISTANCE_METRIC", "COSINE",
		"EF_CONSTRUCTION", strconv.Itoa(s.efConstruction),
		"M", strconv.Itoa(s.m),
		fieldText, "TEXT",
		fieldSource, "TEXT",
		fieldNamespace, "TAG",
	).Result()
	if err != nil {
		return fmt.Errorf("%w: creating index %s: %v", llm.ErrIndexUnavailable, s.config.IndexName, err)
	}
	s.log.Info("created vector index",
		zap.String("index", s.config.IndexName),
		zap.Int("dim", s.config.EmbeddingDim))
	return nil
}

func (s *RedisStore) namespaceLock(namespace string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.nsLocks[namespace]
	if !ok {
		lock = &sync.Mutex{}
		s.nsLocks[namespace] = lock
	}
	return lock
}

// defaultKeySegment is the reserved namespace segment for default-namespace
// keys. Encoding a segment for every namespace keeps the default key space
// disjoint from category keys: without it, a category record "chunk_1" in
// "doc-num-1" and a default-namespace record with ID "doc-num-1:chunk_1"
// would share one key and the later write would clobber the namespace TAG.
const defaultKeySegment = "_default"

func (s *RedisStore) key(namespace, id string) string {
	if namespace == DefaultNamespace {
		namespace = defaultKeySegment
	}
	return s.config.KeyPrefix + namespace + ":" + id
}

// Upsert writes records into a namespace using a single pipeline. Re-writing
// an existing ID replaces its hash fields wholesale.
func (s *RedisStore) Upsert(ctx context.Context, namespace string, records []llm.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	lock := s.namespaceLock(namespace)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	for _, rec := range records {
		pipe.HSet(ctx, s.key(namespace, rec.ID),
			fieldText, rec.Metadata.Text,
			fieldVector, encodeVector(rec.Values),
			fieldSource, rec.Metadata.Source,
			fieldLink, rec.Metadata.Link,
			fieldSummary, rec.Metadata.DocumentSummary,
			fieldNamespace, namespace,
		)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: upserting %d records into namespace %q: %v", llm.ErrIndexUnavailable, len(records), namespace, err)
	}
	return nil
}

// Search runs a KNN query scoped to the namespace and converts cosine
// distance into similarity.
func (s *RedisStore) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]llm.ScoredRecord, error) {
	if topK <= 0 {
		topK = 5
	}

	filter := "*"
	if namespace != DefaultNamespace {
		filter = fmt.Sprintf("(@%s:{%s})", fieldNamespace, escapeTag(namespace))
	}
	query := fmt.Sprintf("%s=>[KNN %d @%s $query_vector AS %s]", filter, topK, fieldVector, fieldScore)

	result, err := s.client.Do(ctx, "FT.SEARCH", s.config.IndexName, query,
		"PARAMS", "2", "query_vector", encodeVector(vector),
		"RETURN", "6", fieldText, fieldSource, fieldLink, fieldSummary, fieldNamespace, fieldScore,
		"SORTBY", fieldScore,
		"LIMIT", "0", strconv.Itoa(topK),
		"DIALECT", "2",
	).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: namespace %q: %v", llm.ErrRetrievalTimeout, namespace, err)
		}
		return nil, fmt.Errorf("%w: searching namespace %q: %v", llm.ErrIndexUnavailable, namespace, err)
	}
	return s.parseSearchResults(result)
}

// parseSearchResults walks the FT.SEARCH reply: a count followed by
// alternating key and field-value pairs.
func (s *RedisStore) parseSearchResults(result interface{}) ([]llm.ScoredRecord, error) {
	values, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: unexpected search reply format", llm.ErrIndexUnavailable)
	}
	if len(values) < 2 {
		return nil, nil
	}

	var records []llm.ScoredRecord
	for i := 1; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		fields, ok := values[i+1].([]interface{})
		if !ok {
			continue
		}

		rec := llm.VectorRecord{ID: strings.TrimPrefix(key, s.config.KeyPrefix)}
		var dist float64
		for j := 0; j+1 < len(fields); j += 2 {
			name, ok := fields[j].(string)
			if !ok {
				continue
			}
			val, ok := fields[j+1].(string)
			if !ok {
				continue
			}
			switch name {
			case fieldText:
				rec.Metadata.Text = val
			case fieldSource:
				rec.Metadata.Source = val
			case fieldLink:
				rec.Metadata.Link = val
			case fieldSummary:
				rec.Metadata.DocumentSummary = val
			case fieldNamespace:
				rec.Metadata.Namespace = val
			case fieldScore:
				dist, _ = strconv.ParseFloat(val, 64)
			}
		}
		records = append(records, llm.ScoredRecord{
			Record: rec,
			Score:  float32(1 - dist),
		})
	}
	return records, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// encodeVector packs float32 values as little-endian bytes, the layout
// RediSearch expects for FLOAT32 vector fields.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// escapeTag escapes RediSearch TAG syntax characters in a namespace value.
func escapeTag(value string) string {
	var sb strings.Builder
	for _, r := range value {
		if strings.ContainsRune(`,.<>{}[]"':;!@#$%^&*()-+=~ `, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
