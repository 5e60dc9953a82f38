package ingest

import (
	"context"

	"alertcore/internal/domain"
)

// SampleSink receives decoded samples from ingest transports.
type SampleSink interface {
	EvaluateSample(ctx context.Context, sample domain.Sample) error
}

// batchSampleSink is implemented by sinks that evaluate a batch in one call.
type batchSampleSink interface {
	EvaluateSamples(ctx context.Context, samples []domain.Sample) error
}

// Recorder counts ingested samples per transport and result.
type Recorder interface {
	SampleIngested(transport, result string)
}

const (
	resultAccepted = "accepted"
	resultRejected = "rejected"
	resultFailed   = "failed"
)

// pushSamples sends samples to sink with optional batch support.
// Params: context, sink, and sample slice.
// Returns: first sink error or nil.
func pushSamples(ctx context.Context, sink SampleSink, samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	if batchSink, ok := sink.(batchSampleSink); ok {
		return batchSink.EvaluateSamples(ctx, samples)
	}
	for _, sample := range samples {
		if err := sink.EvaluateSample(ctx, sample); err != nil {
			return err
		}
	}
	return nil
}

func record(recorder Recorder, transport, result string, count int) {
	if recorder == nil {
		return
	}
	for i := 0; i < count; i++ {
		recorder.SampleIngested(transport, result)
	}
}
