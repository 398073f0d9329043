package sharding

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-cloud/docgate/internal/domain/document"
	"github.com/meridian-cloud/docgate/internal/domain/region"
)

// reportTTL keeps finished migration reports readable for a month.
const reportTTL = 30 * 24 * time.Hour

// maxReportErrors caps how many per-document errors a report records.
const maxReportErrors = 50

// Report summarizes one migration run.
type Report struct {
	RunID      string         `json:"run_id"`
	Collection string         `json:"collection"`
	DryRun     bool           `json:"dry_run"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Scanned    int            `json:"scanned"`
	Migrated   int            `json:"migrated"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	PerRegion  map[string]int `json:"per_region"`
	Errors     []string       `json:"errors,omitempty"`
}

// Migrate copies documents from the unpartitioned collection into their
// regional partitions. Each document's target region derives from its
// jurisdiction field through the same table routing uses, so reruns are
// idempotent. Documents without a mapped jurisdiction are skipped. In
// live mode writes go out in batches; a failed batch is retried
// per-document so one bad record never aborts the run.
func (s *Service) Migrate(ctx context.Context, collection string, dryRun bool) (*Report, error) {
	report := &Report{
		RunID:      uuid.NewString(),
		Collection: collection,
		DryRun:     dryRun,
		StartedAt:  time.Now().UTC(),
		PerRegion:  make(map[string]int),
	}

	s.logger.Info("partition migration started",
		zap.String("run_id", report.RunID),
		zap.String("collection", collection),
		zap.Bool("dry_run", dryRun))
	s.emit("migration.started", map[string]any{
		"run_id":     report.RunID,
		"collection": collection,
		"dry_run":    dryRun,
	})

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("migration aborted: %w", err)
		}

		docs, next, err := s.docs.List(ctx, collection, document.ListFilter{}, cursor, s.batchSize)
		if err != nil {
			return nil, fmt.Errorf("list %s at cursor %q: %w", collection, cursor, err)
		}
		if len(docs) == 0 {
			break
		}

		s.migrateBatch(ctx, collection, docs, dryRun, report)

		if next == "" {
			break
		}
		cursor = next
	}

	report.FinishedAt = time.Now().UTC()
	s.persistReport(ctx, report)

	s.logger.Info("partition migration finished",
		zap.String("run_id", report.RunID),
		zap.Int("scanned", report.Scanned),
		zap.Int("migrated", report.Migrated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	s.emit("migration.finished", map[string]any{
		"run_id":   report.RunID,
		"scanned":  report.Scanned,
		"migrated": report.Migrated,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
	})
	return report, nil
}

func (s *Service) emit(name string, attrs map[string]any) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(name, attrs)
}

func (s *Service) migrateBatch(ctx context.Context, collection string, docs []document.Document, dryRun bool, report *Report) {
	// Group the page by target region; one pipelined write per region.
	byRegion := make(map[region.Region][]document.Document)
	for i := range docs {
		report.Scanned++
		r := s.table.Resolve(docs[i].String(document.FieldJurisdiction))
		if r == region.Unscoped {
			report.Skipped++
			s.countOutcome("skipped")
			continue
		}
		report.PerRegion[r.String()]++
		byRegion[r] = append(byRegion[r], docs[i])
	}

	if dryRun {
		return
	}

	for r, group := range byRegion {
		partition := PartitionName(collection, r)
		if err := s.docs.UpsertMulti(ctx, partition, group); err == nil {
			report.Migrated += len(group)
			s.countOutcomeN("migrated", len(group))
			continue
		}

		// Batch failed: write one by one so only the bad documents count
		// as failures.
		for i := range group {
			if _, err := s.docs.Upsert(ctx, partition, group[i]); err != nil {
				report.Failed++
				s.countOutcome("failed")
				if len(report.Errors) < maxReportErrors {
					report.Errors = append(report.Errors, fmt.Sprintf("%s -> %s: %v", group[i].ID(), partition, err))
				}
				s.logger.Warn("document migration failed",
					zap.String("id", group[i].ID()),
					zap.String("partition", partition),
					zap.Error(err))
				continue
			}
			report.Migrated++
			s.countOutcome("migrated")
		}
	}
}

// persistReport stores the report durably. A storage failure is logged
// but does not fail the migration itself.
func (s *Service) persistReport(ctx context.Context, report *Report) {
	if s.reports == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		s.logger.Warn("marshal migration report", zap.Error(err))
		return
	}
	key := fmt.Sprintf("migration:report:%s", report.RunID)
	if err := s.reports.SetWithTTL(ctx, key, data, reportTTL); err != nil {
		s.logger.Warn("persist migration report", zap.String("run_id", report.RunID), zap.Error(err))
	}
}

func (s *Service) countOutcome(outcome string) { s.countOutcomeN(outcome, 1) }

func (s *Service) countOutcomeN(outcome string, n int) {
	if s.migrated == nil {
		return
	}
	s.migrated.WithLabelValues(outcome).Add(float64(n))
}
