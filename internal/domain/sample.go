package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Sample is one metric observation pushed by a metric source.
// Params: metric name, numeric value, labels, and optional timestamp (unix ms).
// Returns: evaluator input.
type Sample struct {
	Metric string            `json:"metric"`
	Value  float64           `json:"value"`
	Labels map[string]string `json:"labels,omitempty"`
	DT     int64             `json:"dt,omitempty"`
}

// Time converts optional sample timestamp into UTC time.
// Params: fallback used when sample carries no timestamp.
// Returns: sample time.
func (s Sample) Time(fallback time.Time) time.Time {
	if s.DT <= 0 {
		return fallback
	}
	return time.UnixMilli(s.DT).UTC()
}

// Validate validates one sample against the ingest contract.
// Params: sample fields parsed from transport.
// Returns: validation error when schema is violated.
func (s Sample) Validate() error {
	if strings.TrimSpace(s.Metric) == "" {
		return errors.New("metric is required")
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return errors.New("value must be finite")
	}
	if s.DT < 0 {
		return errors.New("dt must be >=0")
	}
	for key := range s.Labels {
		if strings.TrimSpace(key) == "" {
			return errors.New("label names must be non-empty")
		}
	}
	return nil
}

// DecodeSample decodes and validates one sample payload.
// Params: JSON document bytes.
// Returns: validated sample or decode/validation error.
func DecodeSample(raw []byte) (Sample, error) {
	var sample Sample
	if err := json.Unmarshal(raw, &sample); err != nil {
		return Sample{}, fmt.Errorf("decode sample: %w", err)
	}
	if err := sample.Validate(); err != nil {
		return Sample{}, err
	}
	return sample, nil
}

// DecodeSamples decodes and validates one batch of samples.
// Params: JSON array bytes.
// Returns: validated samples or decode/validation error.
func DecodeSamples(raw []byte) ([]Sample, error) {
	var samples []Sample
	if err := json.Unmarshal(raw, &samples); err != nil {
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
	return samples, nil
}
