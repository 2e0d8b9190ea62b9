package memory

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/BaSui01/sriflow/agent/memory")

var (
	admissionsTotal metric.Int64Counter
	rejectionsTotal metric.Int64Counter
	evictionsTotal  metric.Int64Counter
	recallsTotal    metric.Int64Counter
	recallHits      metric.Int64Histogram
	entriesGauge    metric.Int64Gauge
)

func init() {
	var err error
	admissionsTotal, err = meter.Int64Counter("episodic.admissions.total",
		metric.WithDescription("Experiences admitted into episodic memory"))
	if err != nil {
		admissionsTotal, _ = meter.Int64Counter("episodic.admissions.total.fallback")
	}

	rejectionsTotal, err = meter.Int64Counter("episodic.rejections.total",
		metric.WithDescription("Experiences rejected by the intensity gate"))
	if err != nil {
		rejectionsTotal, _ = meter.Int64Counter("episodic.rejections.total.fallback")
	}

	evictionsTotal, err = meter.Int64Counter("episodic.evictions.total",
		metric.WithDescription("Memories evicted for capacity"))
	if err != nil {
		evictionsTotal, _ = meter.Int64Counter("episodic.evictions.total.fallback")
	}

	recallsTotal, err = meter.Int64Counter("episodic.recalls.total",
		metric.WithDescription("Recall queries served"))
	if err != nil {
		recallsTotal, _ = meter.Int64Counter("episodic.recalls.total.fallback")
	}

	recallHits, err = meter.Int64Histogram("episodic.recall.hits",
		metric.WithDescription("Memories returned per recall"))
	if err != nil {
		recallHits, _ = meter.Int64Histogram("episodic.recall.hits.fallback")
	}

	entriesGauge, err = meter.Int64Gauge("episodic.entries.count",
		metric.WithDescription("Current number of episodic memories"))
	if err != nil {
		entriesGauge, _ = meter.Int64Gauge("episodic.entries.count.fallback")
	}
}

func recordAdmission(ctx context.Context, outcome string, admitted bool) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if admitted {
		admissionsTotal.Add(ctx, 1, attrs)
		return
	}
	rejectionsTotal.Add(ctx, 1, attrs)
}

func recordEvictions(ctx context.Context, n int) {
	if n > 0 {
		evictionsTotal.Add(ctx, int64(n))
	}
}

func recordRecall(ctx context.Context, hits int) {
	recallsTotal.Add(ctx, 1)
	recallHits.Record(ctx, int64(hits))
}

func recordEntries(ctx context.Context, n int) {
	entriesGauge.Record(ctx, int64(n))
}
