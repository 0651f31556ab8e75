package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/steward-ai/steward/internal/tools"
	"github.com/steward-ai/steward/internal/tools/policy"
	"github.com/steward-ai/steward/pkg/models"
)

type captureSink struct {
	mu      sync.Mutex
	entries []models.ToolCallLog
}

func (s *captureSink) Log(entry models.ToolCallLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *captureSink) all() []models.ToolCallLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ToolCallLog, len(s.entries))
	copy(out, s.entries)
	return out
}

func pathSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
		"required": []any{"path"},
	}
}

func newTestGateway(t *testing.T, sink AuditSink) (*Gateway, *tools.Registry) {
	t.Helper()
	reg := tools.NewRegistry()
	pol := policy.New(nil, []string{"blocked.tool"})
	opts := []Option{}
	if sink != nil {
		opts = append(opts, WithAudit(sink))
	}
	return New(reg, pol, opts...), reg
}

func TestExecuteUnknownTool(t *testing.T) {
	g, _ := newTestGateway(t, nil)
	res, err := g.Execute(context.Background(), models.ToolCall{
		SessionID: "s", CallID: "c1", ToolName: "ghost.tool",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.OK {
		t.Error("unknown tool reported ok")
	}
	if !strings.Contains(res.Error, "not registered") {
		t.Errorf("error = %q, want not registered", res.Error)
	}
}

func TestExecuteDenied(t *testing.T) {
	sink := &captureSink{}
	g, reg := newTestGateway(t, sink)
	called := false
	if err := reg.Register(models.ToolSpec{Name: "blocked.tool", Risk: models.RiskSafe, TimeoutMs: 1000},
		func(ctx context.Context, args map[string]any) (any, error) {
			called = true
			return nil, nil
		}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := g.Execute(context.Background(), models.ToolCall{CallID: "c1", ToolName: "blocked.tool"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.OK || res.Error != "Tool is blocked by policy" {
		t.Errorf("result = %+v", res)
	}
	if called {
		t.Error("denied handler ran")
	}
	if len(sink.all()) != 1 {
		t.Errorf("audit rows = %d, want 1", len(sink.all()))
	}
}

func TestExecuteConfirmationRequired(t *testing.T) {
	sink := &captureSink{}
	g, reg := newTestGateway(t, sink)
	if err := reg.Register(models.ToolSpec{Name: "fs.write", Risk: models.RiskConfirm, TimeoutMs: 1000, ArgsSchema: pathSchema()},
		func(ctx context.Context, args map[string]any) (any, error) {
			t.Error("handler ran before confirmation")
			return nil, nil
		}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := g.Execute(context.Background(), models.ToolCall{
		CallID: "c1", ToolName: "fs.write",
		Args:            map[string]any{"path": "a.txt"},
		RequiresConfirm: true,
	})
	var confirmErr *ConfirmationRequiredError
	if !errors.As(err, &confirmErr) {
		t.Fatalf("err = %v, want ConfirmationRequiredError", err)
	}
	if confirmErr.Tool != "fs.write" {
		t.Errorf("Tool = %q", confirmErr.Tool)
	}
	if len(sink.all()) != 0 {
		t.Error("confirmation raise wrote an audit row")
	}
}

func TestExecuteConfirmedCallRuns(t *testing.T) {
	g, reg := newTestGateway(t, nil)
	if err := reg.Register(models.ToolSpec{Name: "fs.write", Risk: models.RiskConfirm, TimeoutMs: 1000, ArgsSchema: pathSchema()},
		func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"path": args["path"]}, nil
		}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := g.Execute(context.Background(), models.ToolCall{
		CallID: "c1", ToolName: "fs.write",
		Args:            map[string]any{"path": "a.txt"},
		RequiresConfirm: false,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.OK {
		t.Fatalf("result = %+v", res)
	}
}

func TestExecuteValidationFailure(t *testing.T) {
	g, reg := newTestGateway(t, nil)
	called := false
	if err := reg.Register(models.ToolSpec{Name: "fs.read", Risk: models.RiskSafe, TimeoutMs: 1000, ArgsSchema: pathSchema()},
		func(ctx context.Context, args map[string]any) (any, error) {
			called = true
			return nil, nil
		}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := g.Execute(context.Background(), models.ToolCall{
		CallID: "c1", ToolName: "fs.read",
		Args: map[string]any{"path": 123},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.OK {
		t.Error("invalid args reported ok")
	}
	if !strings.Contains(res.Error, "invalid args") {
		t.Errorf("error = %q", res.Error)
	}
	if called {
		t.Error("handler ran on invalid args")
	}
}

func TestExecuteValidArgsNeverRejected(t *testing.T) {
	g, reg := newTestGateway(t, nil)
	if err := reg.Register(models.ToolSpec{Name: "fs.read", Risk: models.RiskSafe, TimeoutMs: 1000, ArgsSchema: pathSchema()},
		func(ctx context.Context, args map[string]any) (any, error) {
			return "ok", nil
		}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := g.Execute(context.Background(), models.ToolCall{
		CallID: "c1", ToolName: "fs.read",
		Args: map[string]any{"path": "notes/todo.txt"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.OK {
		t.Errorf("valid args rejected: %+v", res)
	}
}

func TestExecuteWrapsResult(t *testing.T) {
	g, reg := newTestGateway(t, nil)
	payload := []any{map[string]any{"title": "T"}}
	if err := reg.Register(models.ToolSpec{Name: "web.search", Risk: models.RiskSafe, TimeoutMs: 1000},
		func(ctx context.Context, args map[string]any) (any, error) {
			return payload, nil
		}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := g.Execute(context.Background(), models.ToolCall{CallID: "c1", ToolName: "web.search"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.OK {
		t.Fatalf("result = %+v", res)
	}
	data, ok := res.Result["data"]
	if !ok {
		t.Fatalf("Result = %v, want data key", res.Result)
	}
	if fmt.Sprintf("%v", data) != fmt.Sprintf("%v", payload) {
		t.Errorf("data = %v", data)
	}
}

func TestExecuteNilResultStaysNil(t *testing.T) {
	g, reg := newTestGateway(t, nil)
	if err := reg.Register(models.ToolSpec{Name: "noop", Risk: models.RiskSafe, TimeoutMs: 1000},
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, nil
		}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := g.Execute(context.Background(), models.ToolCall{CallID: "c1", ToolName: "noop"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.OK || res.Result != nil {
		t.Errorf("result = %+v, want ok with nil result", res)
	}
}

func TestExecuteHandlerError(t *testing.T) {
	g, reg := newTestGateway(t, nil)
	if err := reg.Register(models.ToolSpec{Name: "flaky", Risk: models.RiskSafe, TimeoutMs: 1000},
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("backend unavailable")
		}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := g.Execute(context.Background(), models.ToolCall{CallID: "c1", ToolName: "flaky"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.OK || res.Error != "backend unavailable" {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteTimeout(t *testing.T) {
	g, reg := newTestGateway(t, nil)
	if err := reg.Register(models.ToolSpec{Name: "slow", Risk: models.RiskSafe, TimeoutMs: 20},
		func(ctx context.Context, args map[string]any) (any, error) {
			select {
			case <-time.After(2 * time.Second):
				return "too late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	start := time.Now()
	res, err := g.Execute(context.Background(), models.ToolCall{CallID: "c1", ToolName: "slow"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.OK || res.Error != "timeout" {
		t.Errorf("result = %+v, want timeout error", res)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout did not cut the call short")
	}
}

func TestAuditEntriesRedacted(t *testing.T) {
	sink := &captureSink{}
	g, reg := newTestGateway(t, sink)
	if err := reg.Register(models.ToolSpec{Name: "mail.send", Risk: models.RiskSafe, TimeoutMs: 1000},
		func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"status": "sent to bob@example.com"}, nil
		}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := g.Execute(context.Background(), models.ToolCall{
		SessionID: "s1", CallID: "c9", ToolName: "mail.send",
		Args: map[string]any{"to": "alice@example.com", "auth": "api_key=sekret123"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	entries := sink.all()
	if len(entries) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Args["to"] != "[redacted-email]" {
		t.Errorf("args.to = %v", entry.Args["to"])
	}
	if entry.Args["auth"] != "api_key=[redacted]" {
		t.Errorf("args.auth = %v", entry.Args["auth"])
	}
	data, _ := entry.Result["data"].(map[string]any)
	if data == nil || data["status"] != "sent to [redacted-email]" {
		t.Errorf("result = %v", entry.Result)
	}
	if entry.SessionID != "s1" || entry.Tool != "mail.send" || !entry.OK {
		t.Errorf("entry = %+v", entry)
	}
}
