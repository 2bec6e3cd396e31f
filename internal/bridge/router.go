package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prismshell/prism/internal/contract"
	"github.com/prismshell/prism/internal/infrastructure/logging"
	"github.com/prismshell/prism/internal/infrastructure/monitoring"
	"github.com/prismshell/prism/internal/infrastructure/resilience"
	"github.com/prismshell/prism/internal/shared/id"
	"github.com/prismshell/prism/internal/transport"
	"github.com/prismshell/prism/internal/wire"
)

const defaultRequestTimeout = 30 * time.Second

// HandlerFunc serves one request-shaped channel. It must produce exactly one
// result per invocation; errors and panics are converted into error-bearing
// responses by the router.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// EventFunc consumes one fire-and-forget message.
type EventFunc func(payload json.RawMessage)

// PushFunc consumes one host-initiated push.
type PushFunc func(payload json.RawMessage)

type outcome struct {
	payload json.RawMessage
	err     error
}

// Router demultiplexes bridge traffic by declared channel, dispatches to
// registered handlers, and owns the pending request table. One router serves
// one transport; it dies with the transport.
type Router struct {
	tr       transport.Transport
	contract *contract.Contract
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	ids      *id.Generator

	timeout         time.Duration
	channelTimeouts map[string]time.Duration
	breakerSettings resilience.Settings

	baseCtx    context.Context
	cancelBase context.CancelFunc
	startOnce  sync.Once

	mu              sync.Mutex
	pending         map[id.CorrelationID]chan outcome
	requestHandlers map[string]HandlerFunc
	eventHandlers   map[string]EventFunc
	subscribers     map[string]map[uuid.UUID]PushFunc
	breakers        map[string]*resilience.Breaker
}

// Option configures a Router.
type Option func(*Router)

// WithLogger attaches a structured logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithRequestTimeout overrides the default request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithChannelTimeouts sets per-channel request deadline overrides.
func WithChannelTimeouts(timeouts map[string]time.Duration) Option {
	return func(r *Router) {
		for name, d := range timeouts {
			r.channelTimeouts[name] = d
		}
	}
}

// WithBreakerSettings tunes the per-channel handler circuit breakers.
func WithBreakerSettings(s resilience.Settings) Option {
	return func(r *Router) { r.breakerSettings = s }
}

// NewRouter builds a router over the given transport and declared contract.
// The contract is the allow-list: nothing outside it can be sent, served, or
// subscribed to. The router does not consume inbound frames until Start is
// called, so handlers registered in between cannot lose a race with traffic.
func NewRouter(tr transport.Transport, ct *contract.Contract, opts ...Option) *Router {
	baseCtx, cancel := context.WithCancel(context.Background())
	r := &Router{
		tr:              tr,
		contract:        ct,
		logger:          logging.NewNop(),
		ids:             id.Default(),
		timeout:         defaultRequestTimeout,
		channelTimeouts: make(map[string]time.Duration),
		baseCtx:         baseCtx,
		cancelBase:      cancel,
		pending:         make(map[id.CorrelationID]chan outcome),
		requestHandlers: make(map[string]HandlerFunc),
		eventHandlers:   make(map[string]EventFunc),
		subscribers:     make(map[string]map[uuid.UUID]PushFunc),
		breakers:        make(map[string]*resilience.Breaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breakerSettings.OnStateChange == nil {
		r.breakerSettings.OnStateChange = func(name string, from, to resilience.State) {
			r.logger.Warn("handler breaker state change",
				zap.String("channel", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}

	return r
}

// Start binds the transport and begins dispatching inbound frames. Call it
// after handler registration; frames arriving earlier are held by the
// transport. Idempotent.
func (r *Router) Start() {
	r.startOnce.Do(func() {
		r.tr.Bind(r.dispatch)
		go r.watchClose()
	})
}

// Contract returns the declared channel set.
func (r *Router) Contract() *contract.Contract {
	return r.contract
}

// ============================================================================
// Registration
// ============================================================================

// HandleRequest registers the host handler for a request-shaped channel.
func (r *Router) HandleRequest(name string, fn HandlerFunc) error {
	if err := r.checkShape(name, contract.ShapeRequest); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requestHandlers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, name)
	}
	r.requestHandlers[name] = fn
	return nil
}

// HandleEvent registers the host handler for a fire-and-forget channel.
func (r *Router) HandleEvent(name string, fn EventFunc) error {
	if err := r.checkShape(name, contract.ShapeEvent); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.eventHandlers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, name)
	}
	r.eventHandlers[name] = fn
	return nil
}

// Subscribe registers a sandbox-side consumer for a push channel. Multiple
// subscribers may coexist; the returned cancel func removes this one.
func (r *Router) Subscribe(name string, fn PushFunc) (func(), error) {
	if err := r.checkShape(name, contract.ShapePush); err != nil {
		return nil, err
	}
	token := uuid.New()
	r.mu.Lock()
	if r.subscribers[name] == nil {
		r.subscribers[name] = make(map[uuid.UUID]PushFunc)
	}
	r.subscribers[name][token] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subscribers[name], token)
		r.mu.Unlock()
	}, nil
}

func (r *Router) checkShape(name string, want contract.Shape) error {
	shape, ok := r.contract.Shape(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}
	if shape != want {
		return fmt.Errorf("%w: %s is %s, not %s", ErrShapeMismatch, name, shape, want)
	}
	return nil
}

// ============================================================================
// Outbound operations
// ============================================================================

// Emit sends a fire-and-forget message. No acknowledgment, no retry.
func (r *Router) Emit(ctx context.Context, name string, payload json.RawMessage) error {
	if err := r.checkShape(name, contract.ShapeEvent); err != nil {
		return err
	}
	return r.sendEnvelope(ctx, wire.Event(name, payload), "out")
}

// Push sends a host-initiated message to the sandbox. Best-effort.
func (r *Router) Push(ctx context.Context, name string, payload json.RawMessage) error {
	if err := r.checkShape(name, contract.ShapePush); err != nil {
		return err
	}
	return r.sendEnvelope(ctx, wire.Push(name, payload), "out")
}

// Request sends a correlated request and suspends the caller until the
// response arrives, the deadline elapses, the context is canceled, or the
// transport closes. Exactly one of those resolves the call.
func (r *Router) Request(ctx context.Context, name string, payload json.RawMessage) (json.RawMessage, error) {
	if err := r.checkShape(name, contract.ShapeRequest); err != nil {
		return nil, err
	}

	cid := r.ids.Correlation()
	ch := make(chan outcome, 1)
	r.mu.Lock()
	r.pending[cid] = ch
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.PendingRequests.Inc()
	}

	if err := r.sendEnvelope(ctx, wire.Request(name, cid.String(), payload), "out"); err != nil {
		r.removePending(cid)
		return nil, err
	}

	deadline := r.timeoutFor(name)
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case out := <-ch:
		return out.payload, out.err
	case <-timer.C:
		if !r.removePending(cid) {
			// The response won the race; take it.
			out := <-ch
			return out.payload, out.err
		}
		return nil, fmt.Errorf("%w: %s after %s", ErrRequestTimeout, name, deadline)
	case <-ctx.Done():
		if !r.removePending(cid) {
			out := <-ch
			return out.payload, out.err
		}
		return nil, ctx.Err()
	case <-r.tr.Done():
		if !r.removePending(cid) {
			out := <-ch
			return out.payload, out.err
		}
		return nil, fmt.Errorf("%w: %s", ErrTransportClosed, name)
	}
}

// PendingCount reports the number of in-flight requests.
func (r *Router) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Router) timeoutFor(name string) time.Duration {
	if d, ok := r.channelTimeouts[name]; ok {
		return d
	}
	return r.timeout
}

func (r *Router) sendEnvelope(ctx context.Context, env *wire.Envelope, direction string) error {
	data, err := wire.Encode(env)
	if err != nil {
		return err
	}
	if err := r.tr.Send(ctx, data); err != nil {
		if errors.Is(err, transport.ErrClosed) {
			return fmt.Errorf("%w: %s", ErrTransportClosed, env.Channel)
		}
		return err
	}
	if r.metrics != nil {
		r.metrics.MessagesTotal.WithLabelValues(env.Channel, string(env.Kind), direction).Inc()
	}
	return nil
}

// removePending deletes the entry and reports whether it was still present.
func (r *Router) removePending(cid id.CorrelationID) bool {
	r.mu.Lock()
	_, ok := r.pending[cid]
	if ok {
		delete(r.pending, cid)
	}
	r.mu.Unlock()
	if ok && r.metrics != nil {
		r.metrics.PendingRequests.Dec()
	}
	return ok
}

// ============================================================================
// Inbound dispatch
// ============================================================================

func (r *Router) dispatch(raw []byte) {
	env, err := wire.Decode(raw)
	if err != nil {
		r.drop("malformed", zap.Error(err))
		return
	}
	if r.metrics != nil {
		r.metrics.MessagesTotal.WithLabelValues(env.Channel, string(env.Kind), "in").Inc()
	}

	switch env.Kind {
	case wire.KindEvent:
		r.dispatchEvent(env)
	case wire.KindRequest:
		// Handlers run in their own goroutine so a slow handler cannot
		// stall responses and pushes behind it.
		go r.serveRequest(env)
	case wire.KindResponse:
		r.resolve(env)
	case wire.KindPush:
		r.dispatchPush(env)
	}
}

func (r *Router) dispatchEvent(env *wire.Envelope) {
	r.mu.Lock()
	fn, ok := r.eventHandlers[env.Channel]
	r.mu.Unlock()
	if !ok {
		r.drop("unknown_channel", zap.String("channel", env.Channel), zap.String("kind", "event"))
		return
	}
	fn(env.Payload)
}

func (r *Router) dispatchPush(env *wire.Envelope) {
	r.mu.Lock()
	fns := make([]PushFunc, 0, len(r.subscribers[env.Channel]))
	for _, fn := range r.subscribers[env.Channel] {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	if len(fns) == 0 && !r.contract.Has(env.Channel, contract.ShapePush) {
		r.drop("unknown_channel", zap.String("channel", env.Channel), zap.String("kind", "push"))
		return
	}
	for _, fn := range fns {
		fn(env.Payload)
	}
}

func (r *Router) serveRequest(env *wire.Envelope) {
	r.mu.Lock()
	fn, ok := r.requestHandlers[env.Channel]
	r.mu.Unlock()
	if !ok {
		r.respondError(env, fmt.Sprintf("unknown channel: %s", env.Channel))
		return
	}

	ctx, cancel := context.WithTimeout(r.baseCtx, r.timeoutFor(env.Channel))
	defer cancel()

	start := time.Now()
	var result json.RawMessage
	err := r.breakerFor(env.Channel).Execute(func() (execErr error) {
		defer func() {
			if p := recover(); p != nil {
				execErr = fmt.Errorf("handler panic: %v", p)
			}
		}()
		result, execErr = fn(ctx, env.Payload)
		return
	})

	if r.metrics != nil {
		r.metrics.HandlerDuration.WithLabelValues(env.Channel).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if r.metrics != nil {
			r.metrics.HandlerErrors.WithLabelValues(env.Channel).Inc()
		}
		r.logger.Warn("handler failed",
			zap.String("channel", env.Channel),
			zap.String("correlation_id", env.ID),
			zap.Error(err),
		)
		r.respondError(env, err.Error())
		return
	}

	resp := wire.Response(env.ID, result)
	if err := r.sendEnvelope(r.baseCtx, resp, "out"); err != nil {
		r.logger.Debug("response send failed", zap.String("channel", env.Channel), zap.Error(err))
	}
}

func (r *Router) respondError(env *wire.Envelope, message string) {
	resp := wire.ErrorResponse(env.ID, env.Channel, message)
	if err := r.sendEnvelope(r.baseCtx, resp, "out"); err != nil {
		r.logger.Debug("error response send failed", zap.String("channel", env.Channel), zap.Error(err))
	}
}

func (r *Router) resolve(env *wire.Envelope) {
	cid := id.CorrelationID(env.ID)
	r.mu.Lock()
	ch, ok := r.pending[cid]
	if ok {
		delete(r.pending, cid)
	}
	r.mu.Unlock()

	if !ok {
		// Late or duplicate response.
		r.drop("unmatched_response", zap.String("correlation_id", env.ID))
		return
	}
	if r.metrics != nil {
		r.metrics.PendingRequests.Dec()
	}

	if env.Error != "" {
		ch <- outcome{err: &HandlerError{Channel: env.Channel, Message: env.Error}}
		return
	}
	ch <- outcome{payload: env.Payload}
}

func (r *Router) breakerFor(name string) *resilience.Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	br, ok := r.breakers[name]
	if !ok {
		br = resilience.New(name, r.breakerSettings)
		r.breakers[name] = br
	}
	return br
}

func (r *Router) drop(reason string, fields ...zap.Field) {
	if r.metrics != nil {
		r.metrics.MessagesDropped.WithLabelValues(reason).Inc()
	}
	r.logger.Debug("message dropped", append([]zap.Field{zap.String("reason", reason)}, fields...)...)
}

// watchClose resolves every pending request with ErrTransportClosed once the
// transport is severed, leaving the table empty.
func (r *Router) watchClose() {
	<-r.tr.Done()
	r.cancelBase()

	r.mu.Lock()
	orphaned := r.pending
	r.pending = make(map[id.CorrelationID]chan outcome)
	r.mu.Unlock()

	for cid, ch := range orphaned {
		if r.metrics != nil {
			r.metrics.PendingRequests.Dec()
		}
		ch <- outcome{err: fmt.Errorf("%w: request %s abandoned", ErrTransportClosed, cid)}
	}
	if len(orphaned) > 0 {
		r.logger.Info("transport closed with requests in flight", zap.Int("abandoned", len(orphaned)))
	}
}
