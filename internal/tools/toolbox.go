package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/charmbracelet/log"
	"github.com/invopop/jsonschema"

	"github.com/lazypower/mnemo/internal/engine"
)

// Tool is a named operation with a JSON-schema input contract.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`

	call func(ctx context.Context, sess *Session, args map[string]any) (Result, error)
}

// Toolbox routes tool calls to the engine.
type Toolbox struct {
	engine   *engine.Engine
	sessions *Sessions
	log      *log.Logger

	tools map[string]*Tool
	order []string
}

// New creates a Toolbox with every tool registered.
func New(e *engine.Engine, sessions *Sessions, logger *log.Logger) (*Toolbox, error) {
	if logger == nil {
		logger = log.Default()
	}
	tb := &Toolbox{
		engine:   e,
		sessions: sessions,
		log:      logger,
		tools:    make(map[string]*Tool),
	}
	if err := tb.registerAll(); err != nil {
		return nil, err
	}
	return tb, nil
}

// Sessions returns the session registry.
func (tb *Toolbox) Sessions() *Sessions { return tb.sessions }

// Tools returns the registered tools in registration order.
func (tb *Toolbox) Tools() []*Tool {
	out := make([]*Tool, 0, len(tb.order))
	for _, name := range tb.order {
		out = append(out, tb.tools[name])
	}
	return out
}

// Lookup returns a tool by name.
func (tb *Toolbox) Lookup(name string) (*Tool, bool) {
	t, ok := tb.tools[name]
	return t, ok
}

// Call runs a tool for a session. It never returns an error: failures,
// including panics in the handler, become results with success=false.
func (tb *Toolbox) Call(ctx context.Context, sessionID, name string, args map[string]any) (res Result) {
	logger := tb.log.With("tool", name)

	tool, ok := tb.tools[name]
	if !ok {
		return failure(CodeNotFound, fmt.Sprintf("unknown tool %q", name))
	}
	sess := tb.sessions.Get(sessionID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool panicked", "panic", r, "stack", string(debug.Stack()))
			res = failure(CodeInternal, fmt.Sprintf("internal error: %v", r))
		}
	}()

	res, err := tool.call(ctx, sess, args)
	if err != nil {
		code := classify(err)
		if code == CodeInternal {
			logger.Error("tool failed", "session", sess.ID, "err", err)
		} else {
			logger.Debug("tool rejected", "session", sess.ID, "code", code, "err", err)
		}
		return failure(code, err.Error())
	}
	return res
}

type validator interface {
	validate() error
}

// register adds a tool whose arguments decode into T.
func register[T any](tb *Toolbox, name, description string, fn func(ctx context.Context, sess *Session, req *T) (Result, error)) error {
	schema, err := inputSchema(new(T))
	if err != nil {
		return fmt.Errorf("schema for %s: %w", name, err)
	}

	tb.tools[name] = &Tool{
		Name:        name,
		Description: description,
		InputSchema: schema,
		call: func(ctx context.Context, sess *Session, args map[string]any) (Result, error) {
			req := new(T)
			if err := decodeArgs(args, req); err != nil {
				return nil, err
			}
			if v, ok := any(req).(validator); ok {
				if err := v.validate(); err != nil {
					return nil, err
				}
			}
			return fn(ctx, sess, req)
		},
	}
	tb.order = append(tb.order, name)
	return nil
}

var reflector = &jsonschema.Reflector{
	AllowAdditionalProperties:  true,
	RequiredFromJSONSchemaTags: true,
	ExpandedStruct:             true,
	DoNotReference:             true,
}

// inputSchema reflects the JSON schema of a request struct.
func inputSchema(v any) (json.RawMessage, error) {
	schema := reflector.Reflect(v)
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	return b, nil
}
