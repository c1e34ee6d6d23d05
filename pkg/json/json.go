// Package json wraps goccy/go-json with the decoding and line-encoding
// conventions the tap relies on: numbers are kept as json.Number so large
// LinkedIn IDs survive decoding, and messages are written one per line.
package json

import (
	"bytes"
	"io"
	"strconv"
	"sync"

	gojson "github.com/goccy/go-json"
)

// Number is a JSON number literal preserved as text.
type Number = gojson.Number

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1<<20 {
		return
	}
	bufferPool.Put(buf)
}

// Marshal encodes v using goccy/go-json
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal decodes data into v, keeping numbers as Number
func Unmarshal(data []byte, v interface{}) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// DecodeObject decodes a single JSON object from r.
func DecodeObject(r io.Reader) (map[string]interface{}, error) {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()

	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		body = map[string]interface{}{}
	}
	return body, nil
}

// LineEncoder writes one JSON document per line.
type LineEncoder struct {
	w io.Writer
}

// NewLineEncoder creates a line encoder on top of w
func NewLineEncoder(w io.Writer) *LineEncoder {
	return &LineEncoder{w: w}
}

// Encode writes v followed by a newline in a single Write call.
func (e *LineEncoder) Encode(v interface{}) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}

	_, err := e.w.Write(buf.Bytes())
	return err
}

// Int64 converts a decoded JSON scalar into an int64.
func Int64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case Number:
		i, err := n.Int64()
		if err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// String renders a decoded JSON scalar the way it appeared on the wire.
func String(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		b, err := gojson.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
