// Package ingestion implements the Ingestion Pipeline: the per-sample
// path from a raw subscription notification to an enqueued entry on the
// Batch Sink, by way of tag resolution, enrichment, and validation.
package ingestion

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cuemby/acquisitiond/pkg/cache"
	"github.com/cuemby/acquisitiond/pkg/log"
	"github.com/cuemby/acquisitiond/pkg/metrics"
	"github.com/cuemby/acquisitiond/pkg/sink"
	"github.com/cuemby/acquisitiond/pkg/storage"
	"github.com/cuemby/acquisitiond/pkg/types"
	"github.com/cuemby/acquisitiond/pkg/validation"
)

// Sinker is the subset of *sink.Sink the pipeline depends on, so tests
// can substitute a recorder.
type Sinker interface {
	Enqueue(samples []types.Sample) int
}

var _ Sinker = (*sink.Sink)(nil)

// Pipeline resolves, enriches, validates, and forwards samples. It never
// propagates a per-sample failure to the caller: unknown tags and
// invalid samples are logged and dropped so a bad reading never tears
// down the subscription that produced it.
type Pipeline struct {
	cache *cache.TagCache
	sink  Sinker

	logger zerolog.Logger
}

// New creates a Pipeline backed by cache for tag resolution and sink for
// forwarding validated samples.
func New(tagCache *cache.TagCache, batchSink Sinker) *Pipeline {
	return &Pipeline{
		cache:  tagCache,
		sink:   batchSink,
		logger: log.WithComponent("ingestion"),
	}
}

// Ingest resolves, enriches, and validates a single sample, then hands
// it to the Batch Sink. It returns true if the sample was accepted.
func (p *Pipeline) Ingest(ctx context.Context, sample types.Sample) bool {
	accepted, enriched := p.prepare(ctx, sample)
	if !accepted {
		return false
	}
	p.sink.Enqueue([]types.Sample{enriched})
	metrics.SamplesIngestedTotal.Inc()
	return true
}

// IngestBatch runs resolution, enrichment, and validation over every
// element of samples, then enqueues only the accepted subset in a single
// call to the Batch Sink.
func (p *Pipeline) IngestBatch(ctx context.Context, samples []types.Sample) int {
	accepted := make([]types.Sample, 0, len(samples))
	for _, sample := range samples {
		if ok, enriched := p.prepare(ctx, sample); ok {
			accepted = append(accepted, enriched)
		}
	}
	if len(accepted) == 0 {
		return 0
	}
	p.sink.Enqueue(accepted)
	metrics.SamplesIngestedTotal.Add(float64(len(accepted)))
	return len(accepted)
}

// prepare runs steps 1-3 of the pipeline: resolve, enrich, validate. It
// never returns an error; every failure mode is a drop, logged with its
// reason.
func (p *Pipeline) prepare(ctx context.Context, sample types.Sample) (bool, types.Sample) {
	tag, err := p.cache.Resolve(ctx, sample.NodeID)
	if err != nil {
		reason := "lookup_error"
		if err == storage.ErrNotFound {
			reason = "unknown_tag"
		}
		metrics.SamplesDroppedTotal.WithLabelValues(reason).Inc()
		p.logger.Warn().Err(err).Str("node_id", sample.NodeID).Msg("dropping sample: tag resolution failed")
		return false, types.Sample{}
	}

	sample.TagID = tag.ID
	sample.MachineID = tag.MachineID
	sample.TagName = tag.Name

	result := validation.Validate(tag, sample.Value, sample.Quality)
	if !result.OK {
		metrics.SamplesDroppedTotal.WithLabelValues(string(result.Reason)).Inc()
		p.logger.Warn().
			Int32("machine_id", sample.MachineID).
			Int32("tag_id", sample.TagID).
			Str("tag_name", sample.TagName).
			Str("reason", string(result.Reason)).
			Msg("dropping sample: validation failed")
		return false, types.Sample{}
	}

	return true, sample
}
