package pricing

import (
	"fmt"
	"strings"
)

// BatchOutcome is the result of applying a rule across the whole catalog.
type BatchOutcome struct {
	Action    Action    `json:"action"`
	Updated   []Outcome `json:"updated"`
	Compliant []Outcome `json:"compliant"`
	// Diverged lists low-stock products left alone because their live
	// price matches neither the base price nor the target.
	Diverged []Outcome `json:"diverged,omitempty"`
	// Skipped lists products that have no base price.
	Skipped []int  `json:"skipped,omitempty"`
	Message string `json:"message"`
}

// summarize fills Action and Message once every product has been evaluated.
//
// Rules (applied in order):
//  1. Any product updated: action is the rule's action, message counts updates.
//  2. Nothing updated but something compliant: action none, message cites the
//     first compliant product in evaluation order.
//  3. Nothing updated or compliant but something diverged: action none,
//     message lists the diverged ids.
//  4. Otherwise: action none, message says there was nothing to evaluate.
func (b *BatchOutcome) summarize(action Action) {
	if b.Updated == nil {
		b.Updated = []Outcome{}
	}
	if b.Compliant == nil {
		b.Compliant = []Outcome{}
	}

	switch {
	case len(b.Updated) > 0:
		b.Action = action
		b.Message = fmt.Sprintf("%s applied to %d product(s): %s",
			action, len(b.Updated), joinIDs(b.Updated))
	case len(b.Compliant) > 0:
		b.Action = ActionNone
		first := b.Compliant[0]
		b.Message = fmt.Sprintf("no product updated; first compliant: product %d (%s): %s",
			first.ProductID, first.Name, first.Message)
	case len(b.Diverged) > 0:
		b.Action = ActionNone
		b.Message = fmt.Sprintf("no product updated; price diverges from base price for product(s): %s",
			joinIDs(b.Diverged))
	default:
		b.Action = ActionNone
		b.Message = "no product updated; no product with a base price"
	}
}

func joinIDs(outcomes []Outcome) string {
	ids := make([]string, len(outcomes))
	for i, o := range outcomes {
		ids[i] = fmt.Sprint(o.ProductID)
	}
	return strings.Join(ids, ", ")
}
