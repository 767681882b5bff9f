// Package envelope defines the uniform result returned for every tool call.
//
// Every call, whatever happens inside the dispatch pipeline, resolves into
// exactly one Envelope. Adapters never hand raw upstream errors to the
// protocol boundary; they go through this package first.
package envelope

import "encoding/json"

// Record is one normalized row of upstream data.
type Record = map[string]any

// Envelope is the uniform success/data/metadata/error shape.
// It serializes to {"success": bool, "data": [...], "metadata": {...}, "error": string|null}.
type Envelope struct {
	Success  bool           `json:"success"`
	Data     []Record       `json:"data"`
	Metadata map[string]any `json:"metadata"`
	Error    *string        `json:"error"`
}

// OK builds a success envelope. Nil data is normalized to an empty slice so
// the wire shape stays stable.
func OK(data []Record, metadata map[string]any) Envelope {
	if data == nil {
		data = []Record{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Envelope{
		Success:  true,
		Data:     data,
		Metadata: metadata,
	}
}

// Fail builds a failure envelope. The message must be non-empty; callers
// pass text produced by Describe or by the validation layer.
func Fail(message string, metadata map[string]any) Envelope {
	if message == "" {
		message = "unknown error"
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Envelope{
		Success:  false,
		Data:     []Record{},
		Metadata: metadata,
		Error:    &message,
	}
}

// JSON renders the envelope as indented JSON, the form handed to the
// protocol boundary as tool output text.
func (e Envelope) JSON() string {
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		// Envelope contains only JSON-safe values; this path is unreachable
		// for shapes produced by the pipeline.
		return `{"success": false, "data": [], "metadata": {}, "error": "envelope serialization failed"}`
	}
	return string(b)
}

// ErrorText returns the error message or "" for success envelopes.
func (e Envelope) ErrorText() string {
	if e.Error == nil {
		return ""
	}
	return *e.Error
}
