package linkedinads

import (
	"context"
	"strings"

	jsonpool "github.com/ajitpratap0/linkedin-ads-tap/pkg/json"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/models"
)

// NameResolver maps identifier URNs to display names keyed by code.
type NameResolver interface {
	Resolve(ctx context.Context, urns []string) map[string]string
}

// MergeKey identifies one analytics row: a pivot value on a window start
// date rendered as "Y-M-D" without zero padding.
type MergeKey struct {
	PivotValue  string
	WindowStart string
}

// MergedSet holds the merged rows of one date window in first-seen order.
type MergedSet struct {
	keys    []MergeKey
	records map[MergeKey]models.Record
	skipped int
}

// Len returns the number of merged rows.
func (m *MergedSet) Len() int {
	return len(m.keys)
}

// Get returns the row for key.
func (m *MergedSet) Get(key MergeKey) (models.Record, bool) {
	r, ok := m.records[key]
	return r, ok
}

// Keys returns the row keys in first-seen order.
func (m *MergedSet) Keys() []MergeKey {
	return append([]MergeKey(nil), m.keys...)
}

// Records returns the rows in first-seen order.
func (m *MergedSet) Records() []models.Record {
	out := make([]models.Record, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.records[k]
	}
	return out
}

// Skipped returns how many elements lacked a date range or pivot value.
func (m *MergedSet) Skipped() int {
	return m.skipped
}

// MergeResponses combines the pages returned for each field chunk of one
// window. Elements sharing a key are merged field by field with later
// values winning. When resolver is non-nil, the distinct pivot values are
// resolved once and every row gets pivot_value_name.
func MergeResponses(ctx context.Context, pivot string, pages [][]map[string]interface{}, resolver NameResolver) *MergedSet {
	set := &MergedSet{records: make(map[MergeKey]models.Record)}

	for _, page := range pages {
		for _, element := range page {
			key, ok := mergeKeyOf(element)
			if !ok {
				set.skipped++
				continue
			}
			element["pivot"] = pivot
			element["pivot_value"] = key.PivotValue

			if existing, found := set.records[key]; found {
				existing.Merge(element)
				continue
			}
			set.records[key] = models.Record(element).Clone()
			set.keys = append(set.keys, key)
		}
	}

	if resolver == nil || len(set.keys) == 0 {
		return set
	}

	seen := make(map[string]bool)
	var urns []string
	for _, k := range set.keys {
		if !seen[k.PivotValue] {
			seen[k.PivotValue] = true
			urns = append(urns, k.PivotValue)
		}
	}

	names := resolver.Resolve(ctx, urns)
	for _, k := range set.keys {
		code := urnCode(k.PivotValue)
		name, ok := names[code]
		if !ok || name == "" {
			name = code
		}
		set.records[k]["pivot_value_name"] = name
	}
	return set
}

func mergeKeyOf(element map[string]interface{}) (MergeKey, bool) {
	dateRange, _ := element["dateRange"].(map[string]interface{})
	start, ok := dateRange["start"].(map[string]interface{})
	if !ok {
		return MergeKey{}, false
	}
	values, _ := element["pivotValues"].([]interface{})
	if len(values) == 0 {
		return MergeKey{}, false
	}
	pivotValue := jsonpool.String(values[0])
	if pivotValue == "" {
		return MergeKey{}, false
	}

	windowStart := jsonpool.String(start["year"]) + "-" + jsonpool.String(start["month"]) + "-" + jsonpool.String(start["day"])
	return MergeKey{PivotValue: pivotValue, WindowStart: windowStart}, true
}

// urnCode returns the trailing segment of a URN.
func urnCode(urn string) string {
	if i := strings.LastIndexByte(urn, ':'); i >= 0 {
		return urn[i+1:]
	}
	return urn
}
