// Package alerts notifies the operator when a promising lead lands. It
// listens for lead arrivals on the leads hub, filters by score, renders the
// alert body from the template catalog, and fans it out to the configured
// delivery channels.
package alerts

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"leadflow/internal/common/logger"
	"leadflow/internal/common/metrics"
	"leadflow/internal/models"
	"leadflow/internal/realtime"
	"leadflow/pkg/templates"
)

// Options tunes the alerter.
type Options struct {
	// MinScore suppresses alerts for leads scoring below it.
	MinScore int
	// TemplateID names the catalog template used for the alert body.
	TemplateID string
	// SendTimeout bounds each delivery attempt.
	SendTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.TemplateID == "" {
		o.TemplateID = "new-lead-alert"
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
	return o
}

// Alerter watches for new leads and dispatches alerts.
type Alerter struct {
	senders []Sender
	catalog *templates.Catalog
	logger  logger.Logger
	opts    Options

	mu      sync.Mutex
	unsubs  []func()
	pending sync.WaitGroup
	closed  bool
}

// New creates an alerter. A nil catalog uses the built-in one; with no
// senders every alert is a no-op apart from the log line.
func New(senders []Sender, catalog *templates.Catalog, log logger.Logger, opts Options) *Alerter {
	if catalog == nil {
		catalog = templates.Default()
	}
	return &Alerter{
		senders: senders,
		catalog: catalog,
		logger:  log,
		opts:    opts.withDefaults(),
	}
}

// BindHub subscribes the alerter to lead arrivals.
func (a *Alerter) BindHub(hub *realtime.Hub) {
	unsub := hub.Subscribe(models.EventLeadCreated, a.onLeadCreated)

	a.mu.Lock()
	a.unsubs = append(a.unsubs, unsub)
	a.mu.Unlock()
}

// Close unbinds and waits for in-flight deliveries.
func (a *Alerter) Close() {
	a.mu.Lock()
	a.closed = true
	unsubs := a.unsubs
	a.unsubs = nil
	a.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	a.pending.Wait()
}

// Flush waits for in-flight deliveries. Test hook.
func (a *Alerter) Flush() {
	a.pending.Wait()
}

func (a *Alerter) onLeadCreated(payload []byte) {
	var lead models.Lead
	if err := json.Unmarshal(payload, &lead); err != nil || lead.ID == "" {
		return
	}
	if lead.LeadScore < a.opts.MinScore {
		return
	}

	tpl := a.catalog.Find(a.opts.TemplateID)
	if tpl == nil {
		a.logger.Warn("alert template missing from catalog", map[string]interface{}{
			"templateId": a.opts.TemplateID,
		})
		return
	}
	body := templates.Render(tpl.Body, lead)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.pending.Add(1)
	a.mu.Unlock()

	// Deliveries leave the hub's dispatch goroutine; a slow provider must
	// not stall event fan-out.
	go func() {
		defer a.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.opts.SendTimeout)
		defer cancel()

		for _, sender := range a.senders {
			if err := sender.Send(ctx, "New lead: "+lead.Address, body); err != nil {
				metrics.AlertsSentTotal.WithLabelValues("error").Inc()
				a.logger.WithError(err).Warn("alert delivery failed", map[string]interface{}{
					"leadId": lead.ID,
				})
				continue
			}
			metrics.AlertsSentTotal.WithLabelValues("success").Inc()
		}
	}()
}
