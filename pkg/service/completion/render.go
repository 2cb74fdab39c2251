package completion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

const closingInstruction = "Continue the conversation as the assistant. Call capabilities when you need data you do not have; otherwise answer the latest user message."

// render splits a transcript into the system prompt and the conversation prompt
func render(transcript []*model.Turn) (string, string) {
	var system []string
	var sb strings.Builder

	for _, t := range transcript {
		switch t.Role {
		case types.RoleSystem:
			system = append(system, t.Content)

		case types.RoleUser:
			fmt.Fprintf(&sb, "[user]\n%s\n\n", t.Content)

		case types.RoleAssistant:
			sb.WriteString("[assistant]\n")
			if t.Content != "" {
				sb.WriteString(t.Content)
				sb.WriteString("\n")
			}
			for _, c := range t.Calls {
				fmt.Fprintf(&sb, "-> call %s %s %s\n", c.ID, c.Name, compactJSON(c.Arguments))
			}
			sb.WriteString("\n")

		case types.RoleCapability:
			fmt.Fprintf(&sb, "[capability result %s %s]\n%s\n\n", t.Result.CallID, t.Result.Name, compactJSON(t.Result.Data()))
		}
	}

	sb.WriteString(closingInstruction)
	return strings.Join(system, "\n\n"), sb.String()
}

func compactJSON(v any) string {
	if v == nil {
		return "{}"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
