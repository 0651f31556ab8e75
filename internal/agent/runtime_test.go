package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/steward-ai/steward/internal/bus"
	"github.com/steward-ai/steward/internal/llm"
	"github.com/steward-ai/steward/internal/sessions"
	"github.com/steward-ai/steward/internal/tools"
	"github.com/steward-ai/steward/internal/tools/gateway"
	"github.com/steward-ai/steward/internal/tools/policy"
	"github.com/steward-ai/steward/pkg/models"
)

// scriptedClient replays canned responses in order and records every prompt
// it was handed.
type scriptedClient struct {
	responses []llm.Response
	errs      []error
	calls     [][]llm.ChatMessage
}

func (c *scriptedClient) Chat(ctx context.Context, messages []llm.ChatMessage, specs []models.ToolSpec) (llm.Response, error) {
	c.calls = append(c.calls, append([]llm.ChatMessage(nil), messages...))
	i := len(c.calls) - 1
	if i < len(c.errs) && c.errs[i] != nil {
		return llm.Response{}, c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return llm.Response{}, errors.New("script exhausted")
}

func (c *scriptedClient) Name() string { return "scripted" }

type harness struct {
	bus     *bus.InProc
	store   *sessions.Memory
	runtime *Runtime
	outputs *[]bus.OutputText
}

func newHarness(t *testing.T, client llm.Client) *harness {
	t.Helper()

	registry := tools.NewRegistry()
	if err := registry.Register(models.ToolSpec{Name: "greet", Risk: models.RiskSafe},
		func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"greeting": "hi"}, nil
		}); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register(models.ToolSpec{Name: "fs.write", Risk: models.RiskConfirm},
		func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"written": true}, nil
		}); err != nil {
		t.Fatal(err)
	}

	b := bus.NewInProc()
	store := sessions.NewMemory()
	gw := gateway.New(registry, policy.New(nil, nil))

	opts := []Option{}
	if client != nil {
		opts = append(opts, WithLLM(client))
	}
	rt := New(b, store, gw, registry, opts...)
	rt.Subscribe()

	outputs := &[]bus.OutputText{}
	b.Subscribe(bus.TopicOutputText, func(ctx context.Context, msg any) error {
		out, ok := msg.(bus.OutputText)
		if !ok {
			t.Errorf("output payload is %T", msg)
			return nil
		}
		*outputs = append(*outputs, out)
		return nil
	})

	return &harness{bus: b, store: store, runtime: rt, outputs: outputs}
}

func (h *harness) send(t *testing.T, text string) {
	t.Helper()
	err := h.bus.Publish(context.Background(), bus.TopicInputText, bus.InputText{
		SessionID: "s1",
		MessageID: models.NewMessageID(),
		TS:        1700000000,
		Text:      text,
		Source:    bus.SourceCLI,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func (h *harness) lastOutput(t *testing.T) string {
	t.Helper()
	outs := *h.outputs
	if len(outs) == 0 {
		t.Fatal("no output published")
	}
	return outs[len(outs)-1].Text
}

func (h *harness) roles(t *testing.T) []models.Role {
	t.Helper()
	msgs, err := h.store.ListMessages(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	roles := make([]models.Role, len(msgs))
	for i, m := range msgs {
		roles[i] = m.Role
	}
	return roles
}

func TestEchoWithoutLLM(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, "hello there")

	if got := h.lastOutput(t); got != "Received: hello there" {
		t.Errorf("output = %q", got)
	}
	roles := h.roles(t)
	if len(roles) != 2 || roles[0] != models.RoleUser || roles[1] != models.RoleAssistant {
		t.Errorf("history roles = %v", roles)
	}
}

func TestPlainReply(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{{Content: "hello back"}}}
	h := newHarness(t, client)
	h.send(t, "hi")

	if got := h.lastOutput(t); got != "hello back" {
		t.Errorf("output = %q", got)
	}
	if len(client.calls) != 1 {
		t.Fatalf("chat calls = %d", len(client.calls))
	}
	if client.calls[0][0].Role != llm.RoleSystem {
		t.Errorf("first prompt message role = %q", client.calls[0][0].Role)
	}
}

func TestSafeToolThenReply(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "greet", Args: map[string]any{}}}},
		{Content: "greeted"},
	}}
	h := newHarness(t, client)
	h.send(t, "say hi")

	if got := h.lastOutput(t); got != "greeted" {
		t.Errorf("output = %q", got)
	}
	roles := h.roles(t)
	want := []models.Role{models.RoleUser, models.RoleTool, models.RoleAssistant}
	if fmt.Sprint(roles) != fmt.Sprint(want) {
		t.Errorf("history roles = %v, want %v", roles, want)
	}

	// The second prompt must answer the provider's tool_call_id.
	if len(client.calls) != 2 {
		t.Fatalf("chat calls = %d", len(client.calls))
	}
	second := client.calls[1]
	last := second[len(second)-1]
	if last.Role != llm.RoleTool || last.ToolCallID != "call_1" {
		t.Errorf("resumed prompt tail = %+v", last)
	}
	if last.Content != `{"data":{"greeting":"hi"}}` {
		t.Errorf("tool content = %q", last.Content)
	}
}

func TestConfirmAccepted(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "fs.write", Args: map[string]any{}}}},
		{Content: "file written"},
	}}
	h := newHarness(t, client)

	h.send(t, "write it")
	if got := h.lastOutput(t); got != "Confirm tool call fs.write? (yes/no)" {
		t.Fatalf("confirm prompt = %q", got)
	}
	if tool, ok := h.runtime.Awaiting(); !ok || tool != "fs.write" {
		t.Fatalf("Awaiting = %q, %v", tool, ok)
	}

	h.send(t, "yes")
	if got := h.lastOutput(t); got != "file written" {
		t.Errorf("output = %q", got)
	}
	if _, ok := h.runtime.Awaiting(); ok {
		t.Error("pending slot not cleared after yes")
	}
	// user, confirm answer, tool result, assistant
	roles := h.roles(t)
	want := []models.Role{models.RoleUser, models.RoleUser, models.RoleTool, models.RoleAssistant}
	if fmt.Sprint(roles) != fmt.Sprint(want) {
		t.Errorf("history roles = %v, want %v", roles, want)
	}
}

func TestConfirmCancelled(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "fs.write", Args: map[string]any{}}}},
	}}
	h := newHarness(t, client)

	h.send(t, "write it")
	h.send(t, "no")
	if got := h.lastOutput(t); got != "Cancelled tool call." {
		t.Errorf("output = %q", got)
	}
	if _, ok := h.runtime.Awaiting(); ok {
		t.Error("pending slot not cleared after no")
	}
	// Only one chat call happened; nothing executed after cancellation.
	if len(client.calls) != 1 {
		t.Errorf("chat calls = %d", len(client.calls))
	}
}

func TestConfirmUnclearAnswerReprompts(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "fs.write", Args: map[string]any{}}}},
		{Content: "done"},
	}}
	h := newHarness(t, client)

	h.send(t, "write it")
	h.send(t, "maybe later")
	if got := h.lastOutput(t); got != "Confirm with yes/no." {
		t.Fatalf("output = %q", got)
	}
	if _, ok := h.runtime.Awaiting(); !ok {
		t.Fatal("pending slot dropped by unclear answer")
	}

	// Still resolvable afterwards.
	h.send(t, "YES")
	if got := h.lastOutput(t); got != "done" {
		t.Errorf("output = %q", got)
	}
}

func TestToolLoopCap(t *testing.T) {
	loop := llm.Response{ToolCalls: []llm.ToolCall{{ID: "c", Name: "greet", Args: map[string]any{}}}}
	client := &scriptedClient{responses: []llm.Response{loop, loop, loop, loop}}
	h := newHarness(t, client)
	h.send(t, "keep going")

	if got := h.lastOutput(t); got != "Tool loop exceeded max steps." {
		t.Errorf("output = %q", got)
	}
	if len(client.calls) != 3 {
		t.Errorf("chat calls = %d, want 3", len(client.calls))
	}
}

func TestLLMErrorSurfaced(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("rate limited")}}
	h := newHarness(t, client)
	h.send(t, "hi")

	if got := h.lastOutput(t); got != "LLM error: rate limited" {
		t.Errorf("output = %q", got)
	}
}

func TestEmptyFinalContent(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{{}}}
	h := newHarness(t, client)
	h.send(t, "hi")

	if got := h.lastOutput(t); got != "No response." {
		t.Errorf("output = %q", got)
	}
}

func TestUnknownToolReportedToModel(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "ghost.tool", Args: map[string]any{}}}},
		{Content: "no such tool"},
	}}
	h := newHarness(t, client)
	h.send(t, "use the ghost")

	if got := h.lastOutput(t); got != "no such tool" {
		t.Errorf("output = %q", got)
	}
	second := client.calls[1]
	last := second[len(second)-1]
	if last.Role != llm.RoleTool {
		t.Fatalf("resumed prompt tail role = %q", last.Role)
	}
	if last.Content == "" || last.Content[:9] != `{"error":` {
		t.Errorf("tool content = %q", last.Content)
	}
}

func TestHistoryWindow(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{{Content: "ok"}}}
	h := newHarness(t, client)
	ctx := context.Background()
	for i := 0; i < 45; i++ {
		if _, err := h.store.AddMessage(ctx, "s1", models.RoleUser, fmt.Sprintf("m%d", i), 0); err != nil {
			t.Fatal(err)
		}
	}

	h.send(t, "latest")
	if len(client.calls) != 1 {
		t.Fatalf("chat calls = %d", len(client.calls))
	}
	prompt := client.calls[0]
	if len(prompt) != 41 {
		t.Errorf("prompt length = %d, want system + 40 history", len(prompt))
	}
	if prompt[len(prompt)-1].Content != "latest" {
		t.Errorf("prompt tail = %q", prompt[len(prompt)-1].Content)
	}
}

func TestRuntimeErrorPublished(t *testing.T) {
	// A store rejection surfaces as a runtime error on the bus.
	h := newHarness(t, nil)
	err := h.bus.Publish(context.Background(), bus.TopicInputText, bus.InputText{
		SessionID: "",
		MessageID: models.NewMessageID(),
		Text:      "hi",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := h.lastOutput(t); len(got) < 14 || got[:14] != "Runtime error:" {
		t.Errorf("output = %q", got)
	}
}
