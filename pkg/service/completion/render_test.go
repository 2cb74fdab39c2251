package completion

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

func TestRender(t *testing.T) {
	call := &model.CapabilityCall{
		ID:        "c1",
		Name:      "get_product",
		Arguments: map[string]any{"product_id": "gel-01"},
	}
	transcript := []*model.Turn{
		{Role: types.RoleSystem, Content: "rules"},
		{Role: types.RoleSystem, Content: "signal"},
		{Role: types.RoleUser, Content: "tell me about gel-01"},
		{Role: types.RoleAssistant, Calls: []*model.CapabilityCall{call}},
		{Role: types.RoleCapability, Result: &model.CapabilityResult{
			CallID: "c1",
			Name:   "get_product",
			Err:    "product not found",
		}},
	}

	system, prompt := render(transcript)
	gt.Value(t, system).Equal("rules\n\nsignal")
	gt.String(t, prompt).Contains("[user]\ntell me about gel-01")
	gt.String(t, prompt).Contains(`-> call c1 get_product {"product_id":"gel-01"}`)
	gt.String(t, prompt).Contains(`[capability result c1 get_product]` + "\n" + `{"error":"product not found"}`)
	gt.String(t, prompt).Contains(closingInstruction)
}
