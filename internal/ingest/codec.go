package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"alertcore/internal/domain"
)

const maxPooledBatchCapacity = 4096

type decodeScratch struct {
	samples []domain.Sample
}

var decodeScratchPool = sync.Pool{
	New: func() any {
		return &decodeScratch{samples: make([]domain.Sample, 0, 16)}
	},
}

// decodeSamplePayloadInto auto-detects batch vs single payload.
// Params: raw JSON bytes with one object or array, and pooled scratch buffer.
// Returns: validated samples backed by scratch; callers must not retain the slice.
func decodeSamplePayloadInto(raw []byte, scratch *decodeScratch) ([]domain.Sample, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	if payload[0] == '[' {
		return decodeBatchSamplesInto(decoder, scratch)
	}

	var sample domain.Sample
	if err := decoder.Decode(&sample); err != nil {
		return nil, fmt.Errorf("decode sample: %w", err)
	}
	if err := sample.Validate(); err != nil {
		return nil, err
	}
	if err := ensureJSONEOF(decoder); err != nil {
		return nil, err
	}
	samples := scratch.samples[:0]
	samples = append(samples, sample)
	scratch.samples = samples
	return samples, nil
}

func decodeBatchSamplesInto(decoder *json.Decoder, scratch *decodeScratch) ([]domain.Sample, error) {
	samples := scratch.samples[:0]
	if err := decoder.Decode(&samples); err != nil {
		return nil, fmt.Errorf("decode sample batch: %w", err)
	}
	if len(samples) == 0 {
		return nil, errors.New("sample batch must contain at least one sample")
	}
	for i := range samples {
		if err := samples[i].Validate(); err != nil {
			return nil, fmt.Errorf("sample[%d]: %w", i, err)
		}
	}
	if err := ensureJSONEOF(decoder); err != nil {
		return nil, err
	}
	scratch.samples = samples
	return samples, nil
}

func acquireDecodeScratch() *decodeScratch {
	return decodeScratchPool.Get().(*decodeScratch)
}

func releaseDecodeScratch(scratch *decodeScratch) {
	if scratch == nil {
		return
	}
	for i := range scratch.samples {
		scratch.samples[i] = domain.Sample{}
	}
	if cap(scratch.samples) > maxPooledBatchCapacity {
		scratch.samples = make([]domain.Sample, 0, 16)
	} else {
		scratch.samples = scratch.samples[:0]
	}
	decodeScratchPool.Put(scratch)
}

// ensureJSONEOF rejects trailing tokens after a decoded JSON payload.
func ensureJSONEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode trailing json: %w", err)
	}
	return errors.New("unexpected trailing json tokens")
}
