package engine

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestBuildAlertIDDeterministic(t *testing.T) {
	t.Parallel()

	idA := BuildAlertID("rule-a", map[string]string{"service": "api", "dc": "dc1"})
	idB := BuildAlertID("rule-a", map[string]string{"dc": "dc1", "service": "api"})
	if idA != idB {
		t.Fatalf("expected deterministic id, got %q and %q", idA, idB)
	}
	encoded, ok := strings.CutPrefix(idA, "rule-a_")
	if !ok {
		t.Fatalf("unexpected id format %q", idA)
	}
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode id suffix: %v", err)
	}
	if string(decoded) != "dc=dc1,service=api" {
		t.Fatalf("unexpected canonical labels %q", decoded)
	}
}

func TestBuildAlertIDDistinguishesLabelSets(t *testing.T) {
	t.Parallel()

	tenantA := BuildAlertID("rule-a", map[string]string{"tenant": "a"})
	tenantB := BuildAlertID("rule-a", map[string]string{"tenant": "b"})
	if tenantA == tenantB {
		t.Fatalf("different label sets must produce different ids")
	}
	if got := BuildAlertID("rule-a", nil); got != "rule-a_" {
		t.Fatalf("unexpected id for empty labels %q", got)
	}
}

func TestFingerprintStable(t *testing.T) {
	t.Parallel()

	first := Fingerprint("rule-a", map[string]string{"b": "2", "a": "1"})
	second := Fingerprint("rule-a", map[string]string{"a": "1", "b": "2"})
	if first != second || len(first) != 40 {
		t.Fatalf("unexpected fingerprints %q %q", first, second)
	}
	if first == Fingerprint("rule-b", map[string]string{"a": "1", "b": "2"}) {
		t.Fatalf("fingerprint must depend on rule id")
	}
}

func TestMatchFilters(t *testing.T) {
	t.Parallel()

	labels := map[string]string{"tenant": "acme", "region": "eu"}
	tests := []struct {
		filters map[string]string
		want    bool
	}{
		{filters: nil, want: true},
		{filters: map[string]string{"tenant": "acme"}, want: true},
		{filters: map[string]string{"tenant": "acme", "region": "us"}, want: false},
		{filters: map[string]string{"missing": ""}, want: false},
	}
	for _, tc := range tests {
		if got := MatchFilters(tc.filters, labels); got != tc.want {
			t.Fatalf("MatchFilters(%v): expected %v, got %v", tc.filters, tc.want, got)
		}
	}
}
