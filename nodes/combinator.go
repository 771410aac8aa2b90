package nodes

import (
	"encoding/json"
	"fmt"
	"strings"

	"comfynodes/logger"
)

// PromptRef identifies one upstream output the combinator should include.
type PromptRef struct {
	ID     string `json:"id"`
	Socket string `json:"socket"`
	Name   string `json:"name,omitempty"`
}

// InputKey is how the host names the input carrying this ref's value.
func (p PromptRef) InputKey() string {
	return p.ID + "_" + p.Socket
}

// Conditioning is an ordered list of opaque conditioning fragments.
type Conditioning []any

// ParseStoredPrompts reads the combinator's stored prompt list. Anything that
// is not a JSON list of objects yields an empty list; entries without an id or socket
// are skipped.
func ParseStoredPrompts(stored string) []PromptRef {
	log := logger.Node("multiclip_prompt_combinator")

	dec := json.NewDecoder(strings.NewReader(stored))
	dec.UseNumber()

	var entries []map[string]any
	if err := dec.Decode(&entries); err != nil {
		log.Debug("Stored prompts are not a list", "error", err)
		return []PromptRef{}
	}

	refs := make([]PromptRef, 0, len(entries))
	for _, entry := range entries {
		id, socket := scalarText(entry["id"]), scalarText(entry["socket"])
		if id == "" || socket == "" {
			log.Debug("Skipping stored prompt without id or socket", "entry", entry)
			continue
		}
		refs = append(refs, PromptRef{ID: id, Socket: socket, Name: scalarText(entry["name"])})
	}

	return refs
}

func scalarText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool, float64:
		return fmt.Sprint(x)
	default:
		return ""
	}
}

// CombinePrompts concatenates the conditioning of every stored ref found in
// inputs, in stored order. It returns nil when nothing contributes.
func CombinePrompts(stored string, inputs map[string]Conditioning) Conditioning {
	var combined Conditioning
	for _, ref := range ParseStoredPrompts(stored) {
		fragment, ok := inputs[ref.InputKey()]
		if !ok || fragment == nil {
			continue
		}
		combined = append(combined, fragment...)
	}

	logger.Node("multiclip_prompt_combinator").Debug("Combined conditioning", "fragments", len(combined))
	return combined
}
