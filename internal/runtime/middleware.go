package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/vinodismyname/hidash/pkg/dasherr"
)

// Middleware enforces runtime limits for tool calls and HTTP passes using the
// Controller. It bounds global concurrency and applies the pass timeout.
type Middleware struct {
	ctrl *Controller
}

// NewMiddleware constructs a Middleware bound to the provided Controller.
func NewMiddleware(ctrl *Controller) *Middleware {
	return &Middleware{ctrl: ctrl}
}

// acquire waits for a request slot with a bounded wait.
func (m *Middleware) acquire(ctx context.Context) error {
	acquireCtx := ctx
	if m.ctrl.limits.AcquireRequestTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, m.ctrl.limits.AcquireRequestTimeout)
		defer cancel()
	}
	return m.ctrl.AcquireRequest(acquireCtx)
}

func (m *Middleware) busy() *dasherr.Error {
	return dasherr.Wrapf(dasherr.BusyResource, "concurrent request limit reached (max=%d). Please retry shortly.", m.ctrl.limits.MaxConcurrentPasses)
}

// ToolMiddleware implements mcp-go's tool handler middleware interface.
// It acquires a request slot, applies a timeout, and guarantees release.
func (m *Middleware) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := m.acquire(ctx); err != nil {
			// Return a tool-level error so the client can self-correct/retry.
			return m.busy().ToolResult(), nil
		}
		defer m.ctrl.ReleaseRequest()

		callCtx := ctx
		cancel := func() {}
		if m.ctrl.limits.PassTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, m.ctrl.limits.PassTimeout)
		}
		defer cancel()

		res, err := next(callCtx, req)

		// If the underlying handler surfaced a context deadline, prefer a tool-level timeout error.
		if errors.Is(err, context.DeadlineExceeded) || (callCtx.Err() == context.DeadlineExceeded && err == nil && res == nil) {
			return dasherr.New(dasherr.Timeout, "").ToolResult(), nil
		}
		return res, err
	}
}

// Handler is the HTTP counterpart of ToolMiddleware. Saturation answers 503
// with the coded JSON envelope; the pass timeout is applied to the request
// context and enforced by the pass itself.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := m.acquire(r.Context()); err != nil {
			WriteError(w, m.busy())
			return
		}
		defer m.ctrl.ReleaseRequest()

		ctx := r.Context()
		if m.ctrl.limits.PassTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.ctrl.limits.PassTimeout)
			defer cancel()
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WriteError writes the coded JSON error envelope with the code's status.
func WriteError(w http.ResponseWriter, e *dasherr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	_ = json.NewEncoder(w).Encode(map[string]any{"error": e.ToBody()})
}
