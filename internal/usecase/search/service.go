// Package search implements relevance-ranked multi-term search over a
// collection. Results are scored client-side across weighted fields,
// cached, and degrade gracefully: a failed advanced query falls back to
// a basic prefix scan, and a failed basic scan yields an empty result
// rather than an error.
package search

import (
	"context"
	"encoding/json"
	"sort"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/meridian-cloud/docgate/internal/config"
	"github.com/meridian-cloud/docgate/internal/domain/document"
	domsearch "github.com/meridian-cloud/docgate/internal/domain/search"
)

// Stats is a snapshot of search activity counters.
type Stats struct {
	Queries       uint64 `json:"queries"`
	CacheHits     uint64 `json:"cache_hits"`
	AdvancedRuns  uint64 `json:"advanced_runs"`
	DegradedBasic uint64 `json:"degraded_to_basic"`
	DegradedEmpty uint64 `json:"degraded_to_empty"`
	RejectedShort uint64 `json:"rejected_short"`
}

// Service ranks documents against free-text queries.
type Service struct {
	repo     Repository
	cache    Cache
	weights  map[string]float64
	fields   []string // weight-descending scan order, deterministic
	minQuery int
	maxLimit int
	cacheTTL time.Duration
	duration *prometheus.HistogramVec
	logger   *zap.Logger

	queries       atomic.Uint64
	cacheHits     atomic.Uint64
	degradedBasic atomic.Uint64
	degradedEmpty atomic.Uint64
	rejectedShort atomic.Uint64
	advancedRuns  atomic.Uint64
}

// New creates a search service. duration may be nil.
func New(repo Repository, cache Cache, cfg config.SearchConfig, duration *prometheus.HistogramVec, logger *zap.Logger) *Service {
	weights := cfg.FieldWeights
	if len(weights) == 0 {
		weights = domsearch.DefaultFieldWeights
	}
	fields := make([]string, 0, len(weights))
	for field := range weights {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool {
		if weights[fields[i]] != weights[fields[j]] {
			return weights[fields[i]] > weights[fields[j]]
		}
		return fields[i] < fields[j]
	})

	return &Service{
		repo:     repo,
		cache:    cache,
		weights:  weights,
		fields:   fields,
		minQuery: cfg.MinQueryLength,
		maxLimit: cfg.MaxResults,
		cacheTTL: cfg.CacheTTL.Std(),
		duration: duration,
		logger:   logger,
	}
}

// Search runs a relevance query against one physical collection. The
// collection name is already routed; it doubles as the region component
// of the cache key so partitions never share cached pages.
func (s *Service) Search(ctx context.Context, collection, input string, limit int) ([]domsearch.ScoredResult, error) {
	s.queries.Add(1)

	if limit <= 0 || limit > s.maxLimit {
		limit = s.maxLimit
	}
	query, err := domsearch.New(input, s.weights, collection, limit)
	if err != nil {
		return nil, err
	}
	if query.TooShort(s.minQuery) {
		s.rejectedShort.Add(1)
		return nil, nil
	}

	key := query.CacheKey()
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			if results, err := decodeResults(raw); err == nil {
				s.cacheHits.Add(1)
				return results, nil
			}
			// Corrupt cached page: fall through and recompute.
		}
	}

	start := time.Now()
	mode := query.Mode()
	results := s.run(ctx, collection, &query, mode)
	if s.duration != nil {
		s.duration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	}

	if s.cache != nil && results != nil {
		if raw, err := encodeResults(results); err == nil {
			s.cache.Set(ctx, key, raw, s.cacheTTL)
		}
	}
	return results, nil
}

// Snapshot reports cumulative counters.
func (s *Service) Snapshot() Stats {
	return Stats{
		Queries:       s.queries.Load(),
		CacheHits:     s.cacheHits.Load(),
		AdvancedRuns:  s.advancedRuns.Load(),
		DegradedBasic: s.degradedBasic.Load(),
		DegradedEmpty: s.degradedEmpty.Load(),
		RejectedShort: s.rejectedShort.Load(),
	}
}

func (s *Service) run(ctx context.Context, collection string, query *domsearch.Query, mode domsearch.Mode) []domsearch.ScoredResult {
	if mode == domsearch.ModeAdvanced {
		s.advancedRuns.Add(1)
		results, err := s.advanced(ctx, collection, query)
		if err == nil {
			return results
		}
		s.degradedBasic.Add(1)
		s.logger.Warn("advanced search failed, degrading to basic",
			zap.String("collection", collection), zap.Error(err))
	}

	results, err := s.basic(ctx, collection, query)
	if err != nil {
		s.degradedEmpty.Add(1)
		s.logger.Warn("basic search failed, returning empty result",
			zap.String("collection", collection), zap.Error(err))
		return []domsearch.ScoredResult{}
	}
	return results
}

// basic runs a single prefix scan on the primary name field. Store order
// already ranks results; scores reflect the usual term scoring so basic
// and advanced pages stay comparable.
func (s *Service) basic(ctx context.Context, collection string, query *domsearch.Query) ([]domsearch.ScoredResult, error) {
	terms := query.Terms()
	if len(terms) == 0 {
		return nil, nil
	}

	docs, err := s.repo.PrefixScan(ctx, collection, document.FieldName, terms[0], query.Limit())
	if err != nil {
		return nil, err
	}

	results := make([]domsearch.ScoredResult, 0, len(docs))
	for i := range docs {
		score := documentScore(terms[:1], &docs[i], s.weights)
		results = append(results, domsearch.NewScoredResult(docs[i], score))
	}
	return results, nil
}

// advanced fans one scan out per (field, term) pair, accumulates
// candidates in first-seen order, scores them across all weighted
// fields, and ranks by descending score with the stable store order
// breaking ties.
func (s *Service) advanced(ctx context.Context, collection string, query *domsearch.Query) ([]domsearch.ScoredResult, error) {
	terms := query.Terms()
	seen := make(map[string]int) // id -> index into candidates
	var candidates []document.Document

	collect := func(docs []document.Document) {
		for i := range docs {
			if _, ok := seen[docs[i].ID()]; ok {
				continue
			}
			seen[docs[i].ID()] = len(candidates)
			candidates = append(candidates, docs[i])
		}
	}

	// Scan breadth is bounded per pair; scoring re-ranks the union.
	perScan := query.Limit()
	for _, field := range s.fields {
		for _, term := range terms {
			var (
				docs []document.Document
				err  error
			)
			if field == document.FieldTags {
				docs, err = s.repo.TagScan(ctx, collection, field, term, perScan)
			} else {
				docs, err = s.repo.PrefixScan(ctx, collection, field, term, perScan)
			}
			if err != nil {
				return nil, err
			}
			collect(docs)
		}
	}

	results := make([]domsearch.ScoredResult, 0, len(candidates))
	for i := range candidates {
		score := documentScore(terms, &candidates[i], s.weights)
		if score > 0 {
			results = append(results, domsearch.NewScoredResult(candidates[i], score))
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score() > results[j].Score()
	})
	if len(results) > query.Limit() {
		results = results[:query.Limit()]
	}
	return results, nil
}

// resultDTO is the cache wire form of a scored result.
type resultDTO struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
	Score  float64        `json:"score"`
}

func encodeResults(results []domsearch.ScoredResult) ([]byte, error) {
	dtos := make([]resultDTO, 0, len(results))
	for i := range results {
		doc := results[i].Document()
		dtos = append(dtos, resultDTO{ID: doc.ID(), Fields: doc.Fields(), Score: results[i].Score()})
	}
	return json.Marshal(dtos)
}

func decodeResults(raw []byte) ([]domsearch.ScoredResult, error) {
	var dtos []resultDTO
	if err := json.Unmarshal(raw, &dtos); err != nil {
		return nil, err
	}
	results := make([]domsearch.ScoredResult, 0, len(dtos))
	for _, dto := range dtos {
		doc := document.Reconstruct(dto.ID, dto.Fields)
		results = append(results, domsearch.NewScoredResult(doc, dto.Score))
	}
	return results, nil
}
