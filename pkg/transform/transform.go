// Package transform normalizes raw LinkedIn API elements into tap records.
//
// Every record gets snake_case keys (recursively). In addition:
//   - changeAuditStamps becomes created_time and last_modified_time
//   - epoch-millisecond timestamps (created/modified/published and
//     run_schedule start/end) become RFC 3339 strings
//   - URN references gain a flattened <field>_id (user_person_id for members)
//   - analytics dateRange becomes start_at and end_at, and CAMPAIGN or
//     CREATIVE pivots set campaign_id or creative_id
package transform

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	jsonpool "github.com/ajitpratap0/linkedin-ads-tap/pkg/json"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/models"
)

// TimeFormat is the layout for every timestamp the transform produces.
const TimeFormat = "2006-01-02T15:04:05.000000Z"

// Transform converts the collection under dataKey into records. Elements
// that are not JSON objects are skipped. A missing collection yields nil.
func Transform(body map[string]interface{}, dataKey, stream string) []models.Record {
	raw, ok := body[dataKey].([]interface{})
	if !ok {
		return nil
	}
	records := make([]models.Record, 0, len(raw))
	for _, el := range raw {
		obj, ok := el.(map[string]interface{})
		if !ok {
			continue
		}
		records = append(records, Record(obj, stream))
	}
	return records
}

// Record converts one raw element.
func Record(raw map[string]interface{}, stream string) models.Record {
	rec := models.Record(snakeKeys(raw))

	flattenAuditStamps(rec)
	convertMillis(rec, timeKeys)
	if schedule, ok := rec["run_schedule"].(map[string]interface{}); ok {
		convertMillis(schedule, scheduleKeys)
	}
	flattenURNs(rec)
	flattenDateRange(rec)
	flattenPivot(rec)

	if stream == "video_ads" {
		renameVideoTimes(rec)
	}
	return rec
}

// CamelToSnake converts an API field name to the tap's naming.
func CamelToSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SnakeToCamel converts a tap field name back to the API's naming.
func SnakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.Grow(len(s))
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

func snakeKeys(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[CamelToSnake(k)] = snakeValue(v)
	}
	return out
}

func snakeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return snakeKeys(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, el := range t {
			out[i] = snakeValue(el)
		}
		return out
	default:
		return v
	}
}

func flattenAuditStamps(rec models.Record) {
	stamps, ok := rec["change_audit_stamps"].(map[string]interface{})
	if !ok {
		return
	}
	for src, dst := range map[string]string{"created": "created_time", "last_modified": "last_modified_time"} {
		stamp, ok := stamps[src].(map[string]interface{})
		if !ok {
			continue
		}
		if ms, ok := jsonpool.Int64(stamp["time"]); ok {
			rec[dst] = FormatMillis(ms)
		}
	}
	delete(rec, "change_audit_stamps")
}

var (
	timeKeys     = map[string]bool{"created_at": true, "last_modified_at": true, "published_at": true, "created_time": true, "last_modified_time": true}
	scheduleKeys = map[string]bool{"start": true, "end": true}
)

// convertMillis rewrites epoch-millisecond fields named in keys.
func convertMillis(m map[string]interface{}, keys map[string]bool) {
	for k, v := range m {
		if !keys[k] {
			continue
		}
		if _, isString := v.(string); isString {
			continue
		}
		if ms, ok := jsonpool.Int64(v); ok {
			m[k] = FormatMillis(ms)
		}
	}
}

// FormatMillis renders epoch milliseconds in TimeFormat.
func FormatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(TimeFormat)
}

// urnSuffix overrides the flattened key suffix for some URN types.
var urnSuffix = map[string]string{
	"person": "_person_id",
}

var urnFields = []string{"account", "campaign", "campaign_group", "creative", "user", "owner"}

func flattenURNs(rec models.Record) {
	for _, field := range urnFields {
		urn, ok := rec[field].(string)
		if !ok {
			continue
		}
		kind, code, ok := ParseURN(urn)
		if !ok {
			continue
		}
		suffix := "_id"
		if s, found := urnSuffix[kind]; found {
			suffix = s
		}
		if _, exists := rec[field+suffix]; !exists {
			rec[field+suffix] = codeValue(code)
		}
	}

	if id, ok := rec["id"].(string); ok {
		if _, code, ok := ParseURN(id); ok {
			rec["id"] = codeValue(code)
		}
	}
}

// ParseURN splits "urn:li:<kind>:<code>" into kind and code.
func ParseURN(s string) (kind, code string, ok bool) {
	if !strings.HasPrefix(s, "urn:li:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(s, "urn:li:")
	kind, code, ok = strings.Cut(rest, ":")
	if !ok || code == "" {
		return "", "", false
	}
	return kind, code, true
}

// codeValue returns numeric codes as int64 so ids keep their JSON type.
func codeValue(code string) interface{} {
	if n, err := strconv.ParseInt(code, 10, 64); err == nil {
		return n
	}
	return code
}

func flattenDateRange(rec models.Record) {
	dr, ok := rec["date_range"].(map[string]interface{})
	if !ok {
		return
	}
	if start, ok := dateOf(dr["start"]); ok {
		rec["start_at"] = start
	}
	if end, ok := dateOf(dr["end"]); ok {
		rec["end_at"] = end
	}
	delete(rec, "date_range")
}

func dateOf(v interface{}) (string, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return "", false
	}
	y, okY := jsonpool.Int64(m["year"])
	mo, okM := jsonpool.Int64(m["month"])
	d, okD := jsonpool.Int64(m["day"])
	if !okY || !okM || !okD {
		return "", false
	}
	return time.Date(int(y), time.Month(mo), int(d), 0, 0, 0, 0, time.UTC).Format(TimeFormat), true
}

func flattenPivot(rec models.Record) {
	pivot, _ := rec["pivot"].(string)
	value, _ := rec["pivot_value"].(string)
	if pivot == "" || value == "" {
		return
	}
	_, code, ok := ParseURN(value)
	if !ok {
		return
	}
	switch pivot {
	case "CAMPAIGN":
		rec["campaign_id"] = codeValue(code)
	case "CREATIVE":
		rec["creative_id"] = codeValue(code)
	}
}

func renameVideoTimes(rec models.Record) {
	for src, dst := range map[string]string{"created_at": "created_time", "last_modified_at": "last_modified_time"} {
		if v, ok := rec[src]; ok {
			if _, exists := rec[dst]; !exists {
				rec[dst] = v
			}
		}
	}
	if _, ok := rec["content_reference"]; ok {
		return
	}
	if content, ok := rec["content"].(map[string]interface{}); ok {
		if media, ok := content["media"].(map[string]interface{}); ok {
			if id, ok := media["id"].(string); ok {
				rec["content_reference"] = id
				return
			}
		}
	}
	if id, ok := rec["id"]; ok {
		rec["content_reference"] = id
	}
}
