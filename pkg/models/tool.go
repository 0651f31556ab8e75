package models

// RiskLevel classifies a tool for the policy layer.
type RiskLevel string

const (
	RiskSafe      RiskLevel = "safe"
	RiskConfirm   RiskLevel = "confirm"
	RiskDangerous RiskLevel = "dangerous"
)

// ToolSpec describes a registered tool. ArgsSchema is a JSON Schema object
// used both to advertise the tool to the model and to validate arguments at
// the gateway. Specs are immutable after registration.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ArgsSchema  map[string]any `json:"args_schema"`
	Risk        RiskLevel      `json:"risk"`
	TimeoutMs   int            `json:"timeout_ms"`
	Caps        []string       `json:"caps,omitempty"`
}

// Clone returns a copy with its own schema map and caps slice so callers
// cannot mutate a registered spec.
func (s ToolSpec) Clone() ToolSpec {
	out := s
	if s.ArgsSchema != nil {
		out.ArgsSchema = cloneValue(s.ArgsSchema).(map[string]any)
	}
	if s.Caps != nil {
		out.Caps = append([]string(nil), s.Caps...)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

// HasCap reports whether the spec carries the given capability tag.
func (s ToolSpec) HasCap(cap string) bool {
	for _, c := range s.Caps {
		if c == cap {
			return true
		}
	}
	return false
}

// ToolCall is a single requested invocation. It lives only during one agent
// turn; CallID is unique across the process lifetime.
type ToolCall struct {
	SessionID       string         `json:"session_id"`
	CallID          string         `json:"call_id"`
	ToolName        string         `json:"tool_name"`
	Args            map[string]any `json:"args"`
	RequiresConfirm bool           `json:"requires_confirm"`
}

// NewCallID returns a fresh tool call identifier.
func NewCallID() string {
	return "call_" + hexID()
}

// ToolResult is the outcome of one gateway execution.
type ToolResult struct {
	CallID    string         `json:"call_id"`
	OK        bool           `json:"ok"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	ElapsedMs int64          `json:"elapsed_ms"`
}

// ToolCallLog is the audit record written for every gateway execution.
// Args and Result are stored redacted.
type ToolCallLog struct {
	CallID    string         `json:"call_id"`
	SessionID string         `json:"session_id"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	Result    map[string]any `json:"result,omitempty"`
	OK        bool           `json:"ok"`
	ElapsedMs int64          `json:"elapsed_ms"`
	TS        int64          `json:"ts"`
}
