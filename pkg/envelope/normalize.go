package envelope

import (
	"fmt"

	"github.com/usdatahub/usdata-mcp/pkg/httpclient"
)

// Shaper is an adapter-supplied pure transform from a raw payload to the
// normalized record sequence plus metadata.
type Shaper func(raw *httpclient.RawResult) ([]Record, map[string]any, error)

// Normalize converts a raw payload or classified failure into the uniform
// Envelope. This is the single point where internal error kinds become the
// external vocabulary.
func Normalize(raw *httpclient.RawResult, cerr *httpclient.ClassifiedError, shape Shaper, metadata map[string]any) Envelope {
	if cerr != nil {
		return FromClassified(cerr, metadata)
	}
	data, shapedMeta, err := shape(raw)
	if err != nil {
		return FromClassified(&httpclient.ClassifiedError{
			Kind:       httpclient.KindTerminal,
			StatusCode: raw.StatusCode,
			Message:    fmt.Sprintf("malformed response payload: %v", err),
		}, metadata)
	}
	merged := mergeMetadata(metadata, shapedMeta)
	return OK(data, merged)
}

// FromClassified maps a ClassifiedError to a failure envelope with a stable
// error-description string.
func FromClassified(cerr *httpclient.ClassifiedError, metadata map[string]any) Envelope {
	var category string
	switch cerr.Kind {
	case httpclient.KindRateLimit:
		category = "RateLimitError"
	case httpclient.KindTransient:
		category = "TransientTransportError"
	default:
		category = "TerminalHttpError"
	}

	msg := category + ": " + cerr.Message
	if cerr.StatusCode > 0 {
		msg = fmt.Sprintf("%s: HTTP %d: %s", category, cerr.StatusCode, cerr.Message)
	}

	md := mergeMetadata(metadata, nil)
	if cerr.Attempts > 0 {
		md["attempts"] = cerr.Attempts
	}
	return Fail(msg, md)
}

// ValidationFailure builds the envelope for arguments or credentials
// rejected before any request is built.
func ValidationFailure(reason string, metadata map[string]any) Envelope {
	return Fail("ValidationError: "+reason, metadata)
}

// NotFound builds the envelope for an unknown tool name.
func NotFound(name string) Envelope {
	return Fail("ToolNotFound: "+name, map[string]any{})
}

func mergeMetadata(base, extra map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
