// Package gateway wraps tool handlers with the full invocation contract:
// policy evaluation, JSON Schema argument validation, a hard per-call
// deadline, and redacted audit logging.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/steward-ai/steward/internal/observability"
	"github.com/steward-ai/steward/internal/redact"
	"github.com/steward-ai/steward/internal/tools"
	"github.com/steward-ai/steward/internal/tools/policy"
	"github.com/steward-ai/steward/pkg/models"
)

// ConfirmationRequiredError signals that the call needs a user decision
// before anything runs. No side effects have happened and no audit row is
// written when Execute returns it.
type ConfirmationRequiredError struct {
	Tool   string
	Reason string
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("tool %s requires confirmation: %s", e.Tool, e.Reason)
}

// AuditSink receives one ToolCallLog per completed execution. Log must not
// block the caller.
type AuditSink interface {
	Log(entry models.ToolCallLog)
}

// Gateway executes tool calls against the registry under policy.
type Gateway struct {
	registry *tools.Registry
	policy   *policy.Policy
	audit    AuditSink
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithAudit attaches the audit sink. Without one, executions are not logged.
func WithAudit(sink AuditSink) Option {
	return func(g *Gateway) { g.audit = sink }
}

// WithMetrics records execution counters and durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithTracer wraps each execution in a span.
func WithTracer(t *observability.Tracer) Option {
	return func(g *Gateway) { g.tracer = t }
}

// WithLogger sets the gateway's logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New builds a Gateway over the registry and policy.
func New(registry *tools.Registry, pol *policy.Policy, opts ...Option) *Gateway {
	g := &Gateway{
		registry: registry,
		policy:   pol,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "gateway")
	return g
}

// Execute runs one tool call. The returned error is non-nil only for
// ConfirmationRequiredError; every other outcome, including unknown tools,
// denials, bad args, handler failures and timeouts, is reported inside the
// ToolResult so the agent loop can surface it to the model.
func (g *Gateway) Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.execute",
		attribute.String("tool", call.ToolName),
		attribute.String("call_id", call.CallID),
	)
	defer span.End()
	ctx = observability.WithToolCallID(ctx, call.CallID)

	spec, err := g.registry.Get(call.ToolName)
	if err != nil {
		return g.finish(call, models.ToolResult{
			CallID: call.CallID,
			Error:  err.Error(),
		}), nil
	}

	decision := g.policy.Evaluate(spec.Name, spec.Risk)
	switch decision.Action {
	case policy.Deny:
		return g.finish(call, models.ToolResult{
			CallID: call.CallID,
			Error:  decision.Reason,
		}), nil
	case policy.Confirm:
		if call.RequiresConfirm {
			return models.ToolResult{}, &ConfirmationRequiredError{Tool: spec.Name, Reason: decision.Reason}
		}
	}

	if err := validateArgs(spec.ArgsSchema, call.Args); err != nil {
		return g.finish(call, models.ToolResult{
			CallID: call.CallID,
			Error:  fmt.Sprintf("invalid args: %v", err),
		}), nil
	}

	handler, err := g.registry.Handler(spec.Name)
	if err != nil {
		return g.finish(call, models.ToolResult{
			CallID: call.CallID,
			Error:  err.Error(),
		}), nil
	}

	start := time.Now()
	value, err := runWithDeadline(ctx, spec.TimeoutMs, handler, call.Args)
	elapsed := time.Since(start).Milliseconds()

	result := models.ToolResult{CallID: call.CallID, ElapsedMs: elapsed}
	if err != nil {
		result.Error = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			result.Error = "timeout"
		}
	} else {
		result.OK = true
		if value != nil {
			result.Result = map[string]any{"data": value}
		}
	}
	return g.finish(call, result), nil
}

// finish records metrics and the audit row, then returns the result.
func (g *Gateway) finish(call models.ToolCall, result models.ToolResult) models.ToolResult {
	status := "success"
	if !result.OK {
		status = "error"
	}
	g.metrics.RecordToolExecution(call.ToolName, status, float64(result.ElapsedMs)/1000)

	if g.audit != nil {
		g.audit.Log(models.ToolCallLog{
			CallID:    result.CallID,
			SessionID: call.SessionID,
			Tool:      call.ToolName,
			Args:      redact.Map(call.Args),
			Result:    redact.Map(result.Result),
			OK:        result.OK,
			ElapsedMs: result.ElapsedMs,
			TS:        g.now().Unix(),
		})
	}
	return result
}

// runWithDeadline invokes the handler under the spec's timeout. The handler
// keeps running in its goroutine after a deadline fires; it is expected to
// honor ctx and unwind promptly.
func runWithDeadline(ctx context.Context, timeoutMs int, handler tools.Handler, args map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		value, err := handler(ctx, args)
		ch <- outcome{value: value, err: err}
	}()

	select {
	case out := <-ch:
		return out.value, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var schemaCache sync.Map

// validateArgs checks args against the spec's JSON Schema. A nil schema
// accepts anything.
func validateArgs(schema map[string]any, args map[string]any) error {
	if schema == nil {
		return nil
	}
	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("compile args schema: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	// Round-trip through JSON so handler-friendly Go values (ints, structs)
	// become the tree shape the validator expects.
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return compiled.Validate(decoded)
}

func compileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	text, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	key := string(text)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}
	compiled, err := jsonschema.CompileString("args.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}
