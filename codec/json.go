package codec

import (
	"encoding/json"
	"errors"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"

	"github.com/elokus/StructGenie/types"
)

// JSON decodes completions written as JSON. Malformed documents go through
// a repair chain: strict JSON, then repaired JSON, then Hjson.
type JSON struct{}

// Name implements Decoder.
func (JSON) Name() string { return "json" }

// Decode implements Decoder.
func (JSON) Decode(text string) (any, error) {
	body := strings.TrimSpace(StripFence(text))
	if body == "" {
		return nil, types.NewError(types.ErrDecode, "json decode failed").WithCause(errors.New("empty document"))
	}

	var out any
	strictErr := json.Unmarshal([]byte(body), &out)
	if strictErr == nil {
		return NormalizeKeys(out), nil
	}

	if repaired, err := jsonrepair.RepairJSON(body); err == nil && isContainer(repaired) {
		if err := json.Unmarshal([]byte(repaired), &out); err == nil {
			return NormalizeKeys(out), nil
		}
	}

	if err := hjson.Unmarshal([]byte(body), &out); err == nil {
		return NormalizeKeys(out), nil
	}

	return nil, types.NewError(types.ErrDecode, "json decode failed").WithCause(strictErr)
}

// isContainer guards against the repairer turning prose into a bare string.
func isContainer(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}
