// Package sharding routes logical collections onto regional physical
// partitions. Jurisdiction codes resolve through a static table to one
// of five regions; unmapped codes stay unscoped and hit the unpartitioned
// collection. Cross-region search widens a query over the primary
// region's adjacency neighborhood.
package sharding

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-cloud/docgate/internal/config"
	"github.com/meridian-cloud/docgate/internal/domain/region"
	domsearch "github.com/meridian-cloud/docgate/internal/domain/search"
	"github.com/meridian-cloud/docgate/internal/events"
)

// Stats is a snapshot of routing activity.
type Stats struct {
	Regions             int    `json:"regions"`
	Jurisdictions       int    `json:"jurisdictions"`
	RoutedRegional      uint64 `json:"routed_regional"`
	RoutedUnscoped      uint64 `json:"routed_unscoped"`
	CrossRegionSearches uint64 `json:"cross_region_searches"`
}

// Service resolves jurisdictions to partitions and fans searches out
// across adjacent regions.
type Service struct {
	table       *region.Table
	docs        DocumentStore
	searcher    Searcher
	reports     ReportStore
	batchSize   int
	crossRegion bool
	migrated    *prometheus.CounterVec
	emitter     events.Emitter
	logger      *zap.Logger

	routedRegional atomic.Uint64
	routedUnscoped atomic.Uint64
	crossSearches  atomic.Uint64
}

// New creates a sharding service. migrated counts migration outcomes
// and may be nil.
func New(docs DocumentStore, searcher Searcher, reports ReportStore, cfg config.ShardingConfig, migrated *prometheus.CounterVec, logger *zap.Logger) *Service {
	crossRegion := cfg.EnableCrossRegionSearch == nil || *cfg.EnableCrossRegionSearch
	batch := cfg.MigrationBatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Service{
		table:       region.NewTable(cfg.RegionTable),
		docs:        docs,
		searcher:    searcher,
		reports:     reports,
		batchSize:   batch,
		crossRegion: crossRegion,
		migrated:    migrated,
		logger:      logger,
	}
}

// WithEmitter publishes migration lifecycle events through e.
func (s *Service) WithEmitter(e events.Emitter) *Service {
	s.emitter = e
	return s
}

// PartitionName returns the physical collection for a region. The
// unscoped pseudo-region maps to the unpartitioned collection itself.
func PartitionName(collection string, r region.Region) string {
	if r == region.Unscoped {
		return collection
	}
	return fmt.Sprintf("%s#%s", collection, r)
}

// Resolve maps a jurisdiction code to its region.
func (s *Service) Resolve(jurisdiction string) region.Region {
	return s.table.Resolve(jurisdiction)
}

// Route rewrites a logical collection to the physical partition owning
// the jurisdiction. Unmapped jurisdictions route to the unpartitioned
// collection unchanged.
func (s *Service) Route(collection, jurisdiction string) string {
	r := s.table.Resolve(jurisdiction)
	if r == region.Unscoped {
		s.routedUnscoped.Add(1)
		return collection
	}
	s.routedRegional.Add(1)
	return PartitionName(collection, r)
}

// CrossRegionSearch queries the primary region's partition and its
// adjacent regions' partitions concurrently, splitting the limit evenly
// (ceiling) across candidates and merging by descending score. Results
// are truncated once the limit is reached.
func (s *Service) CrossRegionSearch(ctx context.Context, collection, input, jurisdiction string, limit int) ([]domsearch.ScoredResult, error) {
	primary := s.table.Resolve(jurisdiction)
	if primary == region.Unscoped {
		results, err := s.searcher.Search(ctx, collection, input, limit)
		if err != nil {
			return nil, fmt.Errorf("unscoped search: %w", err)
		}
		return results, nil
	}
	if !s.crossRegion {
		partition := PartitionName(collection, primary)
		results, err := s.searcher.Search(ctx, partition, input, limit)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", partition, err)
		}
		return results, nil
	}
	s.crossSearches.Add(1)

	candidates := region.Candidates(primary)
	perRegion := (limit + len(candidates) - 1) / len(candidates)

	pages := make([][]domsearch.ScoredResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range candidates {
		i := i
		partition := PartitionName(collection, r)
		g.Go(func() error {
			results, err := s.searcher.Search(gctx, partition, input, perRegion)
			if err != nil {
				return fmt.Errorf("search %s: %w", partition, err)
			}
			pages[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Primary region's page leads so equal scores prefer home results.
	var merged []domsearch.ScoredResult
	for _, page := range pages {
		merged = append(merged, page...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score() > merged[j].Score()
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Snapshot reports table shape and routing counters.
func (s *Service) Snapshot() Stats {
	return Stats{
		Regions:             len(region.All),
		Jurisdictions:       s.table.Size(),
		RoutedRegional:      s.routedRegional.Load(),
		RoutedUnscoped:      s.routedUnscoped.Load(),
		CrossRegionSearches: s.crossSearches.Load(),
	}
}
