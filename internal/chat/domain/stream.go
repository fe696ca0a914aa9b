package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// TypeToolRequest marks a stream event that asks the client to run tools
// the server could not handle itself.
const TypeToolRequest = "tool_request"

// ToolCreateSchedule is the tool that creates a calendar entry.
const ToolCreateSchedule = "create_schedule"

// ErrInvalidArguments is returned when tool arguments are neither a JSON
// object nor a JSON string holding one.
var ErrInvalidArguments = errors.New("tool arguments must be a JSON object")

// StreamResponse is one decoded SSE data payload.
type StreamResponse struct {
	Type         string         `json:"type"`
	Choices      []Choice       `json:"choices"`
	RawToolCalls []WireToolCall `json:"tool_calls"`
}

// Choice is a model completion choice carrying an incremental delta.
type Choice struct {
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Delta is the incremental content of a choice.
type Delta struct {
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []WireToolCall `json:"tool_calls,omitempty"`
}

// WireToolCall is a tool call as it appears on the wire.
type WireToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function WireFunction `json:"function"`
}

// WireFunction names the tool and carries its raw arguments.
type WireFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCall is a decoded tool invocation.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]string
	// Err is set when the arguments could not be decoded.
	Err error
}

// DecodeStreamResponse parses an SSE data payload.
func DecodeStreamResponse(payload []byte) (*StreamResponse, error) {
	var resp StreamResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delta returns the text of the first choice, if any.
func (r *StreamResponse) Delta() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Delta.Content
}

// IsToolRequest reports whether the event asks the client to run tools.
func (r *StreamResponse) IsToolRequest() bool {
	return r != nil && r.Type == TypeToolRequest
}

// ToolCalls decodes the top-level tool calls of a tool request.
func (r *StreamResponse) ToolCalls() []ToolCall {
	if r == nil {
		return nil
	}
	calls := make([]ToolCall, 0, len(r.RawToolCalls))
	for _, raw := range r.RawToolCalls {
		args, err := DecodeArguments(raw.Function.Arguments)
		calls = append(calls, ToolCall{
			ID:        raw.ID,
			Name:      raw.Function.Name,
			Arguments: args,
			Err:       err,
		})
	}
	return calls
}

// DecodeArguments accepts either a JSON object or a JSON string whose
// content is an object. Values that are not strings are rendered as JSON
// text; nulls are dropped.
func DecodeArguments(raw json.RawMessage) (map[string]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]string{}, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			return map[string]string{}, nil
		}
		raw = []byte(inner)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if values == nil {
		return nil, ErrInvalidArguments
	}

	args := make(map[string]string, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case nil:
		case string:
			args[k] = val
		case json.Number:
			args[k] = val.String()
		case bool:
			if val {
				args[k] = "true"
			} else {
				args[k] = "false"
			}
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
			}
			args[k] = string(b)
		}
	}
	return args, nil
}

// Keys returns the argument names in sorted order.
func (c ToolCall) Keys() []string {
	keys := make([]string, 0, len(c.Arguments))
	for k := range c.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
