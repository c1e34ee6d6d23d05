// Package models provides the data models shared by the tap's packages.
//
// A Record is the decoded JSON object of one API element after transform.
// Records are plain maps so that partial analytics responses can be merged
// field by field and emitted without a schema-bound struct.
package models

import (
	"time"

	jsonpool "github.com/ajitpratap0/linkedin-ads-tap/pkg/json"
)

// Record is a single extracted row keyed by field name.
type Record map[string]interface{}

// NewRecord creates an empty record with the given capacity hint.
func NewRecord(capacity int) Record {
	return make(Record, capacity)
}

// Get returns the field value and whether it is present and non-nil.
func (r Record) Get(field string) (interface{}, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// GetString returns the field rendered as a string, or "" when absent.
func (r Record) GetString(field string) string {
	v, ok := r.Get(field)
	if !ok {
		return ""
	}
	return jsonpool.String(v)
}

// Merge copies every field of other into r. Fields present in both take
// the value from other.
func (r Record) Merge(other Record) {
	for k, v := range other {
		r[k] = v
	}
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Schema describes a stream for SCHEMA messages. Properties is a JSON
// schema object passed through as-is.
type Schema struct {
	// Stream identifies the schema
	Stream string `json:"stream"`

	// Properties is the JSON schema document
	Properties map[string]interface{} `json:"schema"`

	// KeyProperties are the primary key fields
	KeyProperties []string `json:"key_properties"`

	// BookmarkProperties are the replication key fields
	BookmarkProperties []string `json:"bookmark_properties,omitempty"`
}

// RecordMessage is a record bound to its stream at extraction time.
type RecordMessage struct {
	Stream        string
	Record        Record
	TimeExtracted time.Time
}
