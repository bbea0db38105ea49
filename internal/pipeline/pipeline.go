// Package pipeline composes the analysis stages into one run-to-completion
// pass: normalize, enrich, rank, select, map techniques, build briefs.
// A run never fails; degraded inputs degrade individual fields, and a
// missing collaborator degrades briefs to the deterministic fallback.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rgsec/threatdeck/internal/attack"
	"github.com/rgsec/threatdeck/internal/brief"
	"github.com/rgsec/threatdeck/internal/geo"
	"github.com/rgsec/threatdeck/internal/intel"
	"github.com/rgsec/threatdeck/internal/logging"
	"github.com/rgsec/threatdeck/internal/normalize"
	"github.com/rgsec/threatdeck/internal/ranking"
	"github.com/rgsec/threatdeck/internal/telemetry"
)

// Snapshot is the complete result of one pipeline run. The serving layer
// holds the latest one; runs never mutate a published snapshot.
type Snapshot struct {
	RunID       string                   `json:"run_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	Items       []intel.Item             `json:"items"`
	Top         []intel.Item             `json:"top"`
	Briefs      []intel.RankedBrief      `json:"briefs"`
	Mappings    []intel.TechniqueMapping `json:"techniques"`
	Outcome     string                   `json:"brief_outcome"`
}

// Pipeline runs the stages with a fixed top-K and brief builder.
type Pipeline struct {
	builder *brief.Builder
	topK    int
}

// New creates a pipeline. topK bounds how many ranked items flow into the
// technique mapper and brief builder.
func New(builder *brief.Builder, topK int) *Pipeline {
	if topK <= 0 {
		topK = 5
	}
	return &Pipeline{builder: builder, topK: topK}
}

// Run executes one full pass over the raw batch and returns the snapshot.
func (p *Pipeline) Run(ctx context.Context, raws []intel.RawItem) *Snapshot {
	ctx, span := otel.Tracer("pipeline").Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(attribute.Int("raw.count", len(raws)))

	start := time.Now()

	items := p.stageItems(ctx, raws)
	top := ranking.SelectTop(items, p.topK)
	mappings := p.stageMap(ctx, top)
	briefs, outcome := p.stageBriefs(ctx, top)

	telemetry.PipelineRuns.Inc()
	telemetry.PipelineDuration.Observe(time.Since(start).Seconds())
	telemetry.RankedItems.Set(float64(len(items)))
	telemetry.BriefOutcomes.WithLabelValues(outcome.String()).Inc()

	logging.Info("pipeline run complete",
		"raw", len(raws),
		"ranked", len(items),
		"top", len(top),
		"outcome", outcome.String(),
		"took", time.Since(start).Round(time.Millisecond))

	return &Snapshot{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Items:       items,
		Top:         top,
		Briefs:      briefs,
		Mappings:    mappings,
		Outcome:     outcome.String(),
	}
}

// stageItems covers the deterministic front half: normalization, geo
// enrichment and composite ranking.
func (p *Pipeline) stageItems(ctx context.Context, raws []intel.RawItem) []intel.Item {
	_, span := otel.Tracer("pipeline").Start(ctx, "NormalizeEnrichRank")
	defer span.End()

	items := normalize.All(raws)
	items = geo.EnrichAll(items)
	items = ranking.ScoreAndGroup(items)

	span.SetAttributes(attribute.Int("item.count", len(items)))
	return items
}

func (p *Pipeline) stageMap(ctx context.Context, top []intel.Item) []intel.TechniqueMapping {
	_, span := otel.Tracer("pipeline").Start(ctx, "MapTechniques")
	defer span.End()

	mappings := attack.MapTechniques(top)
	span.SetAttributes(attribute.Int("mapping.count", len(mappings)))
	return mappings
}

func (p *Pipeline) stageBriefs(ctx context.Context, top []intel.Item) ([]intel.RankedBrief, brief.Outcome) {
	ctx, span := otel.Tracer("pipeline").Start(ctx, "BuildBriefs")
	defer span.End()

	briefs, outcome := p.builder.Build(ctx, top)
	span.SetAttributes(
		attribute.Int("brief.count", len(briefs)),
		attribute.String("outcome", outcome.String()),
	)
	return briefs, outcome
}
