package workflow

import (
	"encoding/json"
	"strings"

	"github.com/topodata/geoflow/internal/model"
)

// Step notes are a tagged union keyed by step kind: a checklist map for
// DOCUMENTATION, an {m,p,v} triple for POINT_CONTROL, a line-item array
// for BUDGET, free text otherwise. Decoding never fails: malformed JSON
// degrades to the variant's empty value so a corrupted note cannot make a
// project unusable.

type Checklist map[string]bool

func DecodeChecklist(notes string) Checklist {
	var checklist Checklist
	if err := json.Unmarshal([]byte(notes), &checklist); err != nil || checklist == nil {
		return Checklist{}
	}
	return checklist
}

func (c Checklist) Encode() string {
	if c == nil {
		c = Checklist{}
	}
	raw, _ := json.Marshal(c)
	return string(raw)
}

// Toggle flips one item, creating it when absent.
func (c Checklist) Toggle(itemID string) {
	c[itemID] = !c[itemID]
}

type PointControl struct {
	M string `json:"m"`
	P string `json:"p"`
	V string `json:"v"`
}

func DecodePointControl(notes string) PointControl {
	var pc PointControl
	if err := json.Unmarshal([]byte(notes), &pc); err != nil {
		return PointControl{}
	}
	return pc
}

func (p PointControl) Encode() string {
	raw, _ := json.Marshal(p)
	return string(raw)
}

type BudgetItem struct {
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	Price       float64 `json:"price"`
}

func DecodeBudgetItems(notes string) []BudgetItem {
	var items []BudgetItem
	if err := json.Unmarshal([]byte(notes), &items); err != nil || items == nil {
		return []BudgetItem{}
	}
	return items
}

func EncodeBudgetItems(items []BudgetItem) string {
	if items == nil {
		items = []BudgetItem{}
	}
	raw, _ := json.Marshal(items)
	return string(raw)
}

// NormalizeNotes canonicalizes a raw payload for its step kind before it
// is persisted: structured kinds are decoded and re-encoded (degrading
// malformed input to the empty value), free text is trimmed only.
func NormalizeNotes(kind model.StepKind, raw string) string {
	switch kind {
	case model.StepKindDocumentation:
		return DecodeChecklist(raw).Encode()
	case model.StepKindPointControl:
		return DecodePointControl(raw).Encode()
	case model.StepKindBudget:
		return EncodeBudgetItems(DecodeBudgetItems(raw))
	default:
		return strings.TrimSpace(raw)
	}
}

// SelfCertifying reports whether a step kind completes directly on
// approval request, with no separate approver action.
func SelfCertifying(kind model.StepKind) bool {
	return kind == model.StepKindDocumentation || kind == model.StepKindPointControl
}
