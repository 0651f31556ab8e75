// Package agent drives the tool-using turn loop: it consumes input.text
// events, alternates between the model and the tool gateway, and publishes
// one output.text per turn. Confirm-class tool calls suspend the turn until
// the user answers yes or no.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/steward-ai/steward/internal/bus"
	"github.com/steward-ai/steward/internal/llm"
	"github.com/steward-ai/steward/internal/observability"
	"github.com/steward-ai/steward/internal/sessions"
	"github.com/steward-ai/steward/internal/tools"
	"github.com/steward-ai/steward/internal/tools/gateway"
	"github.com/steward-ai/steward/pkg/models"
)

const (
	// defaultMaxToolSteps bounds the model/tool loop within one turn.
	defaultMaxToolSteps = 3

	// historyWindow is how many trailing history messages enter the prompt.
	historyWindow = 40
)

// pendingToolCall is the suspended continuation of a turn awaiting a user
// decision: the rebuilt call, the provider's tool_call_id it must answer,
// and the prompt snapshot to resume from.
type pendingToolCall struct {
	sessionID     string
	call          models.ToolCall
	llmToolCallID string
	messages      []llm.ChatMessage
}

// Runtime is the per-process agent. One pending confirmation exists at a
// time across all sessions; the mutex serializes turns, so the slot needs
// no further guarding.
type Runtime struct {
	bus          bus.Bus
	store        sessions.Store
	gateway      *gateway.Gateway
	registry     *tools.Registry
	llm          llm.Client
	prompts      Prompts
	maxToolSteps int
	logger       *slog.Logger
	metrics      *observability.Metrics
	tracer       *observability.Tracer
	now          func() time.Time

	mu      sync.Mutex
	pending *pendingToolCall
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLLM sets the chat client. Without one the runtime echoes input.
func WithLLM(client llm.Client) Option {
	return func(r *Runtime) { r.llm = client }
}

// WithPrompts sets the static prompt text.
func WithPrompts(p Prompts) Option {
	return func(r *Runtime) { r.prompts = p }
}

// WithMaxToolSteps overrides the per-turn tool loop bound.
func WithMaxToolSteps(n int) Option {
	return func(r *Runtime) {
		if n > 0 {
			r.maxToolSteps = n
		}
	}
}

// WithLogger sets the runtime's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records turn outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

// WithTracer wraps each turn in a span.
func WithTracer(t *observability.Tracer) Option {
	return func(r *Runtime) { r.tracer = t }
}

// WithNow overrides the clock for tests.
func WithNow(now func() time.Time) Option {
	return func(r *Runtime) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a Runtime over its collaborators. The bus is held to publish
// outputs only; call Subscribe to start consuming input.
func New(b bus.Bus, store sessions.Store, gw *gateway.Gateway, registry *tools.Registry, opts ...Option) *Runtime {
	r := &Runtime{
		bus:          b,
		store:        store,
		gateway:      gw,
		registry:     registry,
		maxToolSteps: defaultMaxToolSteps,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "agent")
	return r
}

// Subscribe attaches the runtime to input.text. A turn that fails outside
// the normal error paths still produces a single output event.
func (r *Runtime) Subscribe() {
	r.bus.Subscribe(bus.TopicInputText, func(ctx context.Context, msg any) error {
		in, ok := msg.(bus.InputText)
		if !ok {
			return nil
		}
		if err := r.HandleInputText(ctx, in); err != nil {
			r.logger.Error("turn failed", "session_id", in.SessionID, "error", err)
			r.recordTurn("error")
			return r.publish(ctx, in.SessionID, fmt.Sprintf("Runtime error: %v", err))
		}
		return nil
	})
}

// Awaiting reports whether a confirmation is pending, and for which tool.
func (r *Runtime) Awaiting() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return "", false
	}
	return r.pending.call.ToolName, true
}

// HandleInputText runs one turn. The user message is persisted first in
// every state, so confirmation answers also land in history.
func (r *Runtime) HandleInputText(ctx context.Context, in bus.InputText) error {
	ctx = observability.WithSessionID(ctx, in.SessionID)
	ctx = observability.WithMessageID(ctx, in.MessageID)
	ctx, span := r.tracer.Start(ctx, "agent.turn",
		attribute.String("session_id", in.SessionID),
		attribute.String("source", string(in.Source)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.store.AddMessage(ctx, in.SessionID, models.RoleUser, in.Text, in.TS); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}

	if r.pending != nil {
		return r.handleConfirmation(ctx, in)
	}

	if r.llm == nil {
		text := "Received: " + in.Text
		if _, err := r.store.AddMessage(ctx, in.SessionID, models.RoleAssistant, text, 0); err != nil {
			return fmt.Errorf("persist assistant message: %w", err)
		}
		r.recordTurn("echo")
		return r.publish(ctx, in.SessionID, text)
	}

	messages, err := r.buildPrompt(ctx, in.SessionID)
	if err != nil {
		return err
	}
	return r.runLoop(ctx, in.SessionID, messages)
}

// runLoop alternates between the model and the gateway until the model
// stops requesting tools, a confirmation suspends the turn, or the step
// bound is hit.
func (r *Runtime) runLoop(ctx context.Context, sessionID string, messages []llm.ChatMessage) error {
	specs := r.registry.Specs()

	for step := 0; step < r.maxToolSteps; step++ {
		resp, err := r.chat(ctx, messages, specs)
		if err != nil {
			r.logger.Warn("llm call failed", "session_id", sessionID, "error", err)
			r.recordTurn("error")
			return r.publish(ctx, sessionID, fmt.Sprintf("LLM error: %v", err))
		}

		if len(resp.ToolCalls) == 0 {
			return r.finalize(ctx, sessionID, resp.Content)
		}

		messages = append(messages, llm.ChatMessage{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		if resp.Content != "" {
			if _, err := r.store.AddMessage(ctx, sessionID, models.RoleAssistant, resp.Content, 0); err != nil {
				return fmt.Errorf("persist assistant message: %w", err)
			}
		}

		for _, call := range resp.ToolCalls {
			toolCall := r.buildToolCall(sessionID, call)
			result, err := r.gateway.Execute(ctx, toolCall)

			var confirm *gateway.ConfirmationRequiredError
			if errors.As(err, &confirm) {
				r.pending = &pendingToolCall{
					sessionID:     sessionID,
					call:          toolCall,
					llmToolCallID: call.ID,
					messages:      append([]llm.ChatMessage(nil), messages...),
				}
				r.recordTurn("confirm_prompt")
				return r.publish(ctx, sessionID,
					fmt.Sprintf("Confirm tool call %s? (yes/no)", confirm.Tool))
			}
			if err != nil {
				return fmt.Errorf("gateway: %w", err)
			}

			content := toolContent(result)
			if _, err := r.store.AddMessage(ctx, sessionID, models.RoleTool, content, 0); err != nil {
				return fmt.Errorf("persist tool message: %w", err)
			}
			messages = append(messages, llm.ChatMessage{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    content,
			})
		}
	}

	r.recordTurn("loop_cap")
	return r.publish(ctx, sessionID, "Tool loop exceeded max steps.")
}

// handleConfirmation resolves the pending slot from the user's answer.
// Anything but yes/no re-prompts without touching the slot.
func (r *Runtime) handleConfirmation(ctx context.Context, in bus.InputText) error {
	switch strings.ToLower(strings.TrimSpace(in.Text)) {
	case "y", "yes":
		pending := r.pending
		r.pending = nil

		call := pending.call
		call.RequiresConfirm = false
		result, err := r.gateway.Execute(ctx, call)
		if err != nil {
			return fmt.Errorf("gateway: %w", err)
		}

		content := toolContent(result)
		if _, err := r.store.AddMessage(ctx, in.SessionID, models.RoleTool, content, 0); err != nil {
			return fmt.Errorf("persist tool message: %w", err)
		}
		// Resume from the snapshot so the provider sees its own
		// tool_call_id answered.
		messages := append(pending.messages, llm.ChatMessage{
			Role:       llm.RoleTool,
			ToolCallID: pending.llmToolCallID,
			Content:    content,
		})
		if r.llm == nil {
			return r.publish(ctx, in.SessionID, content)
		}
		return r.runLoop(ctx, in.SessionID, messages)

	case "n", "no":
		r.pending = nil
		r.recordTurn("cancelled")
		return r.publish(ctx, in.SessionID, "Cancelled tool call.")

	default:
		return r.publish(ctx, in.SessionID, "Confirm with yes/no.")
	}
}

// finalize persists and publishes the turn's closing assistant message.
func (r *Runtime) finalize(ctx context.Context, sessionID, content string) error {
	if content == "" {
		content = "No response."
	}
	if _, err := r.store.AddMessage(ctx, sessionID, models.RoleAssistant, content, 0); err != nil {
		return fmt.Errorf("persist assistant message: %w", err)
	}
	r.recordTurn("reply")
	return r.publish(ctx, sessionID, content)
}

// buildPrompt assembles the system message plus the trailing history
// window mapped one-to-one by role and content.
func (r *Runtime) buildPrompt(ctx context.Context, sessionID string) ([]llm.ChatMessage, error) {
	history, err := r.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	messages := make([]llm.ChatMessage, 0, len(history)+1)
	messages = append(messages, llm.ChatMessage{
		Role:    llm.RoleSystem,
		Content: r.prompts.SystemMessage(),
	})
	for _, msg := range history {
		messages = append(messages, llm.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return messages, nil
}

func (r *Runtime) chat(ctx context.Context, messages []llm.ChatMessage, specs []models.ToolSpec) (llm.Response, error) {
	ctx, span := r.tracer.Start(ctx, "agent.llm_chat",
		attribute.String("provider", r.llm.Name()),
		attribute.Int("messages", len(messages)),
	)
	defer span.End()

	start := r.now()
	resp, err := r.llm.Chat(ctx, messages, specs)
	elapsed := r.now().Sub(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordLLMRequest(r.llm.Name(), status, elapsed)
	return resp, err
}

// buildToolCall maps a model-requested call onto the gateway's contract.
// Unknown tools pass through unconfirmed; the gateway reports them as
// failed results the model can see.
func (r *Runtime) buildToolCall(sessionID string, call llm.ToolCall) models.ToolCall {
	requiresConfirm := false
	if spec, err := r.registry.Get(call.Name); err == nil {
		requiresConfirm = spec.Risk != models.RiskSafe
	}
	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	return models.ToolCall{
		SessionID:       sessionID,
		CallID:          models.NewCallID(),
		ToolName:        call.Name,
		Args:            args,
		RequiresConfirm: requiresConfirm,
	}
}

func (r *Runtime) publish(ctx context.Context, sessionID, text string) error {
	out := bus.OutputText{
		SessionID: sessionID,
		MessageID: models.NewMessageID(),
		TS:        r.now().Unix(),
		Text:      text,
	}
	r.metrics.RecordBusPublish(bus.TopicOutputText)
	return r.bus.Publish(ctx, bus.TopicOutputText, out)
}

func (r *Runtime) recordTurn(outcome string) {
	r.metrics.RecordTurn(outcome)
}

// toolContent renders a gateway result as the JSON the model reads back: the
// wrapped result object on success, {"error": ...} otherwise.
func toolContent(result models.ToolResult) string {
	var payload any
	if result.Result != nil {
		payload = result.Result
	} else {
		payload = map[string]any{"error": result.Error}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return `{"error":"unencodable tool result"}`
	}
	return string(data)
}
