package engine

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strings"
)

// BuildAlertID builds deterministic alert id for rule and label set.
// Params: rule id and sample labels.
// Returns: ruleID + "_" + base64url(sorted "k=v" pairs joined by ",").
func BuildAlertID(ruleID string, labels map[string]string) string {
	canonical := canonicalLabels(labels, ',')
	encoded := base64.RawURLEncoding.EncodeToString(canonical)
	var builder strings.Builder
	builder.Grow(len(ruleID) + 1 + len(encoded))
	builder.WriteString(ruleID)
	builder.WriteByte('_')
	builder.WriteString(encoded)
	return builder.String()
}

// Fingerprint builds stable hash of rule and labels independent of id encoding.
// Params: rule id and sample labels.
// Returns: hex sha1 digest.
func Fingerprint(ruleID string, labels map[string]string) string {
	canonical := canonicalLabels(labels, '\n')
	payload := make([]byte, 0, len(ruleID)+1+len(canonical))
	payload = append(payload, ruleID...)
	payload = append(payload, '\n')
	payload = append(payload, canonical...)
	digest := sha1.Sum(payload)
	var hashValue [sha1.Size * 2]byte
	hex.Encode(hashValue[:], digest[:])
	return string(hashValue[:])
}

// canonicalLabels renders labels as sorted k=v pairs.
// Params: labels and pair separator.
// Returns: canonical byte form.
func canonicalLabels(labels map[string]string, separator byte) []byte {
	if len(labels) == 0 {
		return nil
	}
	keys := make([]string, 0, len(labels))
	capacity := len(labels) - 1
	for key, value := range labels {
		keys = append(keys, key)
		capacity += len(key) + 1 + len(value)
	}
	sort.Strings(keys)

	canonical := make([]byte, 0, capacity)
	for index, key := range keys {
		if index > 0 {
			canonical = append(canonical, separator)
		}
		canonical = append(canonical, key...)
		canonical = append(canonical, '=')
		canonical = append(canonical, labels[key]...)
	}
	return canonical
}
