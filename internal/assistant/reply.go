package assistant

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/wolfman30/billing-assistant/internal/llm"
)

const replySchemaName = "assistant_reply"

// reply is the JSON object a structured-output backend returns.
type reply struct {
	Message *string      `json:"message"`
	Action  *replyAction `json:"action"`
}

type replyAction struct {
	Type    DirectiveType  `json:"type"`
	Payload map[string]any `json:"payload"`
}

// ReplySchema returns the JSON Schema constraining replies to a message and
// at most one of the allowed directives. With no allowed types the action
// must be null.
func ReplySchema(allowed []DirectiveType) *llm.ReplySchema {
	action := map[string]any{"type": "null"}
	if len(allowed) > 0 {
		names := make([]string, 0, len(allowed))
		for _, t := range allowed {
			names = append(names, string(t))
		}
		action = map[string]any{
			"anyOf": []any{
				map[string]any{"type": "null"},
				map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type":    map[string]any{"type": "string", "enum": names},
						"payload": map[string]any{"type": "object"},
					},
					"required": []string{"type", "payload"},
				},
			},
		}
	}
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
			"action":  action,
		},
		"required": []string{"message", "action"},
	}
	data, _ := json.Marshal(schema)
	return &llm.ReplySchema{Name: replySchemaName, Schema: data}
}

// ParseStructured decodes a structured reply. It reports false when text is
// not a reply object or carries no message, in which case callers fall back
// to Parse. A reply with
// no action still goes through the tag grammar so a tag inside the message
// is honored; an action of unknown type is dropped.
func (p Parser) ParseStructured(text string) (Parsed, bool) {
	var r reply
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(text))))
	dec.UseNumber()
	if err := dec.Decode(&r); err != nil || r.Message == nil {
		return Parsed{}, false
	}
	if r.Action == nil {
		return p.Parse(*r.Message), true
	}
	out := Parsed{VisibleMessage: strings.TrimSpace(*r.Message)}
	if !r.Action.Type.Known() {
		return out, true
	}
	payload := r.Action.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	out.Directive = &Directive{
		Type:            r.Action.Type,
		Payload:         payload,
		ConfirmRequired: r.Action.Type.RequiresConfirmation(),
		State:           StateProposed,
	}
	return out, true
}
