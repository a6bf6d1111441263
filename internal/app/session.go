// Package app assembles a query session from configuration: it loads the
// dataset, preprocesses and splits it, builds the reference table and the
// optional classifier, and answers closest-match queries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/wellmatch/internal/cache"
	"github.com/raaihank/wellmatch/internal/classifier"
	"github.com/raaihank/wellmatch/internal/config"
	"github.com/raaihank/wellmatch/internal/dataset"
	"github.com/raaihank/wellmatch/internal/logger"
	"github.com/raaihank/wellmatch/internal/match"
	"github.com/raaihank/wellmatch/internal/metrics"
	"github.com/raaihank/wellmatch/internal/store"
)

// MatchCache stores query results keyed by table fingerprint, k and input
type MatchCache interface {
	Get(ctx context.Context, fingerprint string, k int, input match.Vector) ([]match.Match, bool)
	Set(ctx context.Context, fingerprint string, k int, input match.Vector, matches []match.Match) error
}

// Session holds the read-only state needed to answer queries. It is safe
// for concurrent use.
type Session struct {
	table    *match.ReferenceTable
	model    *classifier.Model
	accuracy *float64
	encoder  *dataset.LabelEncoder
	cache    MatchCache
	k        int
	logger   *logger.Logger
}

// Option configures a Session
type Option func(*Session)

// WithCache enables result caching
func WithCache(c MatchCache) Option {
	return func(s *Session) { s.cache = c }
}

// WithClassifier attaches a trained classifier
func WithClassifier(m *classifier.Model) Option {
	return func(s *Session) { s.model = m }
}

// WithEncoder attaches the label encoder used to name predictions
func WithEncoder(e *dataset.LabelEncoder) Option {
	return func(s *Session) { s.encoder = e }
}

// WithDefaultK sets the k used when a query passes zero
func WithDefaultK(k int) Option {
	return func(s *Session) { s.k = k }
}

// Prediction is the classifier's guess for a query
type Prediction struct {
	Label int    `json:"label"`
	Name  string `json:"name,omitempty"`
}

// Result is the answer to a single query
type Result struct {
	Matches    []match.Match `json:"matches"`
	Prediction *Prediction   `json:"prediction,omitempty"`
	Cached     bool          `json:"cached"`
}

// Info describes the session's reference table and classifier
type Info struct {
	Rows        int      `json:"rows"`
	Labels      int      `json:"labels"`
	Width       int      `json:"width"`
	Fingerprint string   `json:"fingerprint"`
	DefaultK    int      `json:"default_k"`
	Classifier  string   `json:"classifier,omitempty"`
	Accuracy    *float64 `json:"accuracy,omitempty"`
}

// NewSession creates a session over an existing table
func NewSession(table *match.ReferenceTable, log *logger.Logger, opts ...Option) *Session {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Session{table: table, k: match.DefaultK, logger: log.WithComponent("session")}
	for _, opt := range opts {
		opt(s)
	}
	if table != nil {
		metrics.ReferenceRows.Set(float64(table.Len()))
	}
	return s
}

// Build loads, preprocesses and splits the configured dataset and returns a
// session over the configured reference split.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*Session, error) {
	start := time.Now()
	if log == nil {
		log = logger.NewNop()
	}

	records, err := LoadRecords(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	ds, err := dataset.Preprocess(records)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}

	part, err := dataset.Split(ds, cfg.Split.TestFraction, cfg.Split.Seed)
	if err != nil {
		return nil, fmt.Errorf("split failed: %w", err)
	}

	ref := part.Test
	if cfg.Reference.SourceSplit == "all" {
		ref = ds
	}

	table, err := ref.ReferenceTable()
	if err != nil {
		return nil, fmt.Errorf("failed to build reference table: %w", err)
	}

	all := append([]Option{WithEncoder(ds.Encoder), WithDefaultK(cfg.Search.K)}, opts...)
	s := NewSession(table, log, all...)

	if cfg.Classifier.Enabled {
		s.trainClassifier(cfg.Classifier, part)
	}

	s.logger.Info("Session ready",
		zap.Int("records", len(records)),
		zap.Int("kept", ds.Len()),
		zap.Int("dropped_tipo", ds.DroppedTipo),
		zap.Int("dropped_diameter", ds.DroppedDiameter),
		zap.Int("train_rows", part.Train.Len()),
		zap.Int("reference_rows", table.Len()),
		zap.Int("labels", table.DistinctLabels()),
		zap.String("fingerprint", table.Fingerprint()),
		zap.Duration("duration", time.Since(start)))

	return s, nil
}

// trainClassifier fits the optional classifier. Failures are logged and
// leave the session without predictions.
func (s *Session) trainClassifier(cfg config.ClassifierConfig, part *dataset.Partition) {
	model, err := classifier.Train(classifier.Config{
		Kind:       classifier.Kind(cfg.Kind),
		Neighbours: cfg.Neighbours,
	}, part.Train.Vectors(), part.Train.Labels, s.logger.Logger)
	if err != nil {
		s.logger.Warn("Classifier disabled", zap.Error(err))
		return
	}
	s.model = model

	if part.Test.Len() == 0 {
		return
	}
	accuracy, err := model.Evaluate(part.Test.Vectors(), part.Test.Labels)
	if err != nil {
		s.logger.Warn("Classifier evaluation failed", zap.Error(err))
		return
	}
	s.accuracy = &accuracy
}

// LoadRecords reads raw records from the configured reference source
func LoadRecords(ctx context.Context, cfg *config.Config, log *logger.Logger) ([]dataset.RawRecord, error) {
	switch cfg.Reference.Source {
	case "postgres":
		st, err := store.NewStore(StoreConfig(cfg), log.WithComponent("store").Logger)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		return st.LoadRecords(ctx)
	default:
		return LoadFile(ctx, cfg, log)
	}
}

// LoadFile reads raw records from the configured dataset file
func LoadFile(ctx context.Context, cfg *config.Config, log *logger.Logger) ([]dataset.RawRecord, error) {
	loader, err := dataset.NewLoader(cfg.Dataset.Format, log.WithComponent("loader").Logger)
	if err != nil {
		return nil, err
	}
	records, _, err := loader.Load(ctx, cfg.Dataset.Path)
	return records, err
}

// StoreConfig maps configuration onto the segment store
func StoreConfig(cfg *config.Config) *store.Config {
	return &store.Config{
		DatabaseURL:     cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}
}

// CacheConfig maps configuration onto the match cache
func CacheConfig(cfg *config.Config) *cache.Config {
	return &cache.Config{
		RedisURL:       cfg.Cache.RedisURL,
		MaxConnections: cfg.Cache.MaxConnections,
		MinIdleConns:   cfg.Cache.MinIdleConns,
		DefaultTTL:     cfg.Cache.DefaultTTL,
		KeyPrefix:      cfg.Cache.KeyPrefix,
	}
}

// Query returns the closest matches for input with pairwise-distinct
// codinomes. A k of zero uses the session default.
func (s *Session) Query(ctx context.Context, input match.Vector, k int) (*Result, error) {
	start := time.Now()
	defer func() { metrics.SearchLatency.Observe(time.Since(start).Seconds()) }()

	if k == 0 {
		k = s.k
	}
	if err := match.ValidateQuery(s.table, input, k); err != nil {
		s.record(err)
		return nil, err
	}

	result := &Result{}
	if s.cache != nil {
		if matches, ok := s.cache.Get(ctx, s.table.Fingerprint(), k, input); ok {
			metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
			result.Matches = matches
			result.Cached = true
		} else {
			metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
		}
	}

	if !result.Cached {
		matches, err := match.FindClosest(s.table, input, k)
		if err != nil {
			s.record(err)
			return nil, err
		}
		result.Matches = matches

		if s.cache != nil {
			if err := s.cache.Set(ctx, s.table.Fingerprint(), k, input, matches); err != nil {
				s.logger.Warn("Failed to cache matches", zap.Error(err))
			}
		}
	}

	result.Prediction = s.predict(input)
	s.record(nil)

	s.logger.Debug("Query answered",
		zap.Float64s("input", input),
		zap.Int("k", k),
		zap.Int("matches", len(result.Matches)),
		zap.Bool("cached", result.Cached),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

func (s *Session) predict(input match.Vector) *Prediction {
	if s.model == nil {
		return nil
	}
	label, err := s.model.Predict(input)
	if err != nil {
		s.logger.Warn("Prediction failed", zap.Error(err))
		return nil
	}
	p := &Prediction{Label: label}
	if s.encoder != nil {
		p.Name, _ = s.encoder.Decode(label)
	}
	return p
}

func (s *Session) record(err error) {
	outcome := "ok"
	if err != nil {
		outcome = match.Kind(err)
	}
	metrics.QueriesTotal.WithLabelValues(outcome).Inc()
}

// Info describes the session
func (s *Session) Info() Info {
	info := Info{DefaultK: s.k, Accuracy: s.accuracy}
	if s.table != nil {
		info.Rows = s.table.Len()
		info.Labels = s.table.DistinctLabels()
		info.Width = s.table.Width()
		info.Fingerprint = s.table.Fingerprint()
	}
	if s.model != nil {
		info.Classifier = string(s.model.Kind())
	}
	return info
}

// DefaultK returns the k used when a query passes zero
func (s *Session) DefaultK() int { return s.k }

// IsQueryError reports whether err was caused by the query rather than the session
func IsQueryError(err error) bool {
	return errors.Is(err, match.ErrInvalidInput) || errors.Is(err, match.ErrEmptyReference)
}
