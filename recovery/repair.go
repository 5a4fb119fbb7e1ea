package recovery

import (
	"context"

	"github.com/elokus/StructGenie/llm"
	"github.com/elokus/StructGenie/schema"
)

// RepairKind names the built-in repair template a request is rendered with.
type RepairKind string

const (
	// RepairFull asks for the whole output again, given the offending text
	// as the "last_output" input.
	RepairFull RepairKind = "fix_parsing_error"
	// RepairPartial asks for a single key, given the partial error as the
	// "error_msg" input.
	RepairPartial RepairKind = "fix_partial_parsing"
)

// RepairRequest is a secondary generation scoped to Model.
type RepairRequest struct {
	Kind   RepairKind
	Model  *schema.Model
	Inputs map[string]any
}

// Repairer issues secondary generations on behalf of the parser. The engine
// implements it by re-entering its own run loop with a narrowed model and
// with LLM repair disabled for the nested run. The returned metrics cover
// every generation spent, also when the repair fails.
type Repairer interface {
	Repair(ctx context.Context, req RepairRequest) (map[string]any, []llm.Metrics, error)
}

// RepairFunc adapts a function to Repairer.
type RepairFunc func(ctx context.Context, req RepairRequest) (map[string]any, []llm.Metrics, error)

// Repair implements Repairer.
func (f RepairFunc) Repair(ctx context.Context, req RepairRequest) (map[string]any, []llm.Metrics, error) {
	return f(ctx, req)
}
