// Package realtime is the consumer side of the push channel: one Hub per
// server hub (leads, messaging), fanning out named events to subscribers.
//
// A Hub is an explicit connection-manager object constructed once and handed
// to consumers by reference. There is no package-level shared state.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"leadflow/internal/common/database"
	"leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/common/metrics"
	"leadflow/internal/common/observability"
	"leadflow/internal/common/validation"
	"leadflow/internal/models"
)

// Status is the connection state exposed to consumers.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
)

// Handler receives the raw payload of one named event. Handlers run
// sequentially on the hub's receive goroutine; there is no queuing or
// backpressure, and missed events are not buffered. Consumers heal gaps by
// re-pulling.
type Handler func(payload []byte)

// Options tunes a Hub's reconnect envelope.
type Options struct {
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func (o Options) withDefaults() Options {
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 30 * time.Second
	}
	return o
}

// Hub subscribes to one pub/sub channel and dispatches enveloped events by
// name.
type Hub struct {
	name    string
	channel string
	rdb     *database.RedisClient
	logger  logger.Logger
	obs     *observability.Observability
	opts    Options

	mu        sync.Mutex
	handlers  map[string]map[uint64]Handler
	nextID    uint64
	status    Status
	onStatus  []func(Status)
	started   bool
	cancelRun context.CancelFunc
	done      chan struct{}
}

// NewHub creates a hub client for the named channel. obs may be nil. Call
// Start to connect.
func NewHub(name, channel string, rdb *database.RedisClient, log logger.Logger, obs *observability.Observability, opts Options) *Hub {
	return &Hub{
		name:     name,
		channel:  channel,
		rdb:      rdb,
		logger:   log,
		obs:      obs,
		opts:     opts.withDefaults(),
		handlers: map[string]map[uint64]Handler{},
		status:   StatusDisconnected,
	}
}

// Subscribe registers a handler for a named event and returns its
// unsubscribe function. Safe to call before or after Start.
func (h *Hub) Subscribe(event string, fn Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.handlers[event] == nil {
		h.handlers[event] = map[uint64]Handler{}
	}
	h.handlers[event][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.handlers[event], id)
	}
}

// Status returns the current connection state.
func (h *Hub) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Ready returns nil while the subscription is live and a HUB_DISCONNECTED
// error otherwise. Readiness probes key off this.
func (h *Hub) Ready() error {
	if h.Status() != StatusConnected {
		return errors.NewHubDisconnectedError(h.name)
	}
	return nil
}

// OnStatusChange registers a callback invoked on every state transition.
func (h *Hub) OnStatusChange(fn func(Status)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStatus = append(h.onStatus, fn)
}

// Start connects and begins dispatching. It returns once the first
// subscription attempt has been made; reconnects happen in the background
// until Close.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	runCtx, cancel := context.WithCancel(context.Background())
	h.cancelRun = cancel
	h.done = make(chan struct{})
	h.mu.Unlock()

	if err := h.rdb.Ping(ctx); err != nil {
		// Not fatal: the run loop backs off and retries.
		h.logger.Warn("hub transport not reachable yet", map[string]interface{}{
			"hub":   h.name,
			"error": err.Error(),
		})
	}

	go h.run(runCtx)
	return nil
}

// Close stops the run loop and marks the hub disconnected.
func (h *Hub) Close() error {
	h.mu.Lock()
	cancel := h.cancelRun
	done := h.done
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	h.setStatus(StatusDisconnected)
	return nil
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)

	backoff := h.opts.BackoffInitial
	for {
		if ctx.Err() != nil {
			return
		}

		pubsub := h.rdb.Subscribe(ctx, h.channel)
		_, err := pubsub.Receive(ctx)
		if err != nil {
			_ = pubsub.Close()
			h.setStatus(StatusReconnecting)
			metrics.HubReconnectsTotal.WithLabelValues(h.name).Inc()
			h.logger.Warn("hub subscribe failed, backing off", map[string]interface{}{
				"hub":     h.name,
				"error":   err.Error(),
				"backoff": backoff.String(),
			})
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, h.opts.BackoffMax)
			continue
		}

		h.setStatus(StatusConnected)
		metrics.HubConnected.WithLabelValues(h.name).Set(1)
		backoff = h.opts.BackoffInitial

		h.receiveLoop(ctx, pubsub)

		_ = pubsub.Close()
		metrics.HubConnected.WithLabelValues(h.name).Set(0)
		if ctx.Err() != nil {
			return
		}
		h.setStatus(StatusReconnecting)
		metrics.HubReconnectsTotal.WithLabelValues(h.name).Inc()
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, h.opts.BackoffMax)
	}
}

// receiveLoop reads messages until the connection drops or ctx ends.
func (h *Hub) receiveLoop(ctx context.Context, pubsub *redis.PubSub) {
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return
		}
		h.dispatch(ctx, []byte(msg.Payload))
	}
}

func (h *Hub) dispatch(ctx context.Context, frame []byte) {
	var env models.EventEnvelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
		metrics.HubEventsDropped.WithLabelValues(h.name, "bad_envelope").Inc()
		h.logger.Warn("dropping unparseable hub frame", map[string]interface{}{
			"hub": h.name,
		})
		return
	}

	if err := validation.ValidateEventPayload(env.Event, env.Payload); err != nil {
		metrics.HubEventsDropped.WithLabelValues(h.name, "bad_payload").Inc()
		h.logger.Warn("dropping invalid event payload", map[string]interface{}{
			"hub":   h.name,
			"event": env.Event,
			"error": err.Error(),
		})
		return
	}

	metrics.HubEventsReceived.WithLabelValues(h.name, env.Event).Inc()
	if h.obs != nil {
		h.obs.RecordHubEvent(ctx, h.name, env.Event)
	}

	h.mu.Lock()
	fns := make([]Handler, 0, len(h.handlers[env.Event]))
	for _, fn := range h.handlers[env.Event] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	// Sequential fan-out, matching the single-threaded callback model the
	// consumers are written against.
	for _, fn := range fns {
		fn(env.Payload)
	}
}

func (h *Hub) setStatus(s Status) {
	h.mu.Lock()
	if h.status == s {
		h.mu.Unlock()
		return
	}
	h.status = s
	cbs := make([]func(Status), len(h.onStatus))
	copy(cbs, h.onStatus)
	h.mu.Unlock()

	h.logger.Info("hub status changed", map[string]interface{}{
		"hub":    h.name,
		"status": string(s),
	})
	for _, cb := range cbs {
		cb(s)
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
