package ingest

import (
	"testing"

	"alertcore/internal/domain"
)

func TestDecodeSamplePayloadIntoSingle(t *testing.T) {
	t.Parallel()

	scratch := acquireDecodeScratch()
	defer releaseDecodeScratch(scratch)

	samples, err := decodeSamplePayloadInto([]byte(testSampleJSON("acme", 3)), scratch)
	if err != nil {
		t.Fatalf("decode single payload: %v", err)
	}
	if len(samples) != 1 || samples[0].Value != 3 || samples[0].DT != 1739876543210 {
		t.Fatalf("unexpected samples %+v", samples)
	}
}

func TestDecodeSamplePayloadIntoBatchReportsIndex(t *testing.T) {
	t.Parallel()

	scratch := acquireDecodeScratch()
	defer releaseDecodeScratch(scratch)

	payload := []byte(`[` + testSampleJSON("acme", 1) + `,{"metric":"","value":1}]`)
	if _, err := decodeSamplePayloadInto(payload, scratch); err == nil || err.Error() != "sample[1]: metric is required" {
		t.Fatalf("expected indexed validation error, got %v", err)
	}
}

func TestReleaseDecodeScratchDropsOversizedBuffer(t *testing.T) {
	t.Parallel()

	scratch := &decodeScratch{
		samples: make([]domain.Sample, 0, maxPooledBatchCapacity+1),
	}
	releaseDecodeScratch(scratch)
	if cap(scratch.samples) > maxPooledBatchCapacity {
		t.Fatalf("expected capped pooled capacity, got %d", cap(scratch.samples))
	}
}
