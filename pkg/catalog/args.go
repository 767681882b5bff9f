package catalog

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeArgs maps a validated argument map onto a typed request struct.
// Weak typing absorbs the float64 integers produced by JSON unmarshaling.
func DecodeArgs(args map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}
