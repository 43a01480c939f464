// Package leadqueue keeps a client-side cache of the paginated, filtered
// lead queue consistent under three writers: optimistic local mutations,
// server-confirmed responses, and realtime push events.
//
// The cache is the single owner of its state. Every mutation goes through
// one of the exported actions; readers only ever see copies. Counts are
// never patched arithmetically after a state change, they are resynced by a
// full refetch, because queue membership rules are server-side and partly
// date-dependent.
package leadqueue

import (
	"context"
	"sync"
	"time"

	"leadflow/internal/api"
	"leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/common/metrics"
	"leadflow/internal/common/observability"
	"leadflow/internal/models"
)

// Options tunes the cache.
type Options struct {
	PageSize     int
	HighlightTTL time.Duration
	// Today returns the current date as YYYY-MM-DD. Follow-up due-ness is
	// decided by string comparison on purpose: parsing into a time.Time
	// reintroduces the timezone skew the string format sidesteps.
	Today func() string
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = 25
	}
	if o.HighlightTTL <= 0 {
		o.HighlightTTL = 2 * time.Second
	}
	if o.Today == nil {
		o.Today = func() string { return time.Now().Format("2006-01-02") }
	}
	return o
}

// State is the read-side view handed to consumers. Slices are copies.
type State struct {
	Leads      []models.Lead
	Counts     models.QueueCounts
	Selected   models.QueueType
	Search     string
	Page       int
	TotalPages int
	Loading    bool
	Err        error
}

// Queue is the lead queue cache.
type Queue struct {
	api      api.Client
	logger   logger.Logger
	notifier Notifier
	obs      *observability.Observability
	opts     Options

	mu         sync.Mutex
	leads      []models.Lead
	counts     models.QueueCounts
	selected   models.QueueType
	search     string
	page       int
	totalPages int
	loading    bool
	lastErr    error

	// reqSeq tags every fetch; a response is applied only while its tag
	// still equals the latest issued one (last-request-wins).
	reqSeq uint64

	highlightTimers map[string]*time.Timer
	unsubs          []func()
	background      sync.WaitGroup
	closed          bool
}

// New creates a queue cache over the given backend client. obs may be nil.
func New(client api.Client, log logger.Logger, notifier Notifier, obs *observability.Observability, opts Options) *Queue {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Queue{
		api:             client,
		logger:          log,
		notifier:        notifier,
		obs:             obs,
		opts:            opts.withDefaults(),
		selected:        models.QueueActionNow,
		page:            1,
		totalPages:      1,
		highlightTimers: map[string]*time.Timer{},
	}
}

// State returns a copy of the current cache state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	leads := make([]models.Lead, len(q.leads))
	for i := range q.leads {
		leads[i] = q.leads[i].Clone()
	}
	return State{
		Leads:      leads,
		Counts:     q.counts,
		Selected:   q.selected,
		Search:     q.search,
		Page:       q.page,
		TotalPages: q.totalPages,
		Loading:    q.loading,
		Err:        q.lastErr,
	}
}

// Refresh pulls the current page from the backend.
func (q *Queue) Refresh(ctx context.Context) error {
	return q.fetch(ctx, "manual")
}

// SelectQueue switches the visible queue and reloads from page 1.
func (q *Queue) SelectQueue(ctx context.Context, queue models.QueueType) error {
	if !queue.Valid() {
		return errors.NewValidationError("queue", string(queue))
	}
	q.mu.Lock()
	q.selected = queue
	q.page = 1
	q.mu.Unlock()
	return q.fetch(ctx, "select_queue")
}

// SetSearch applies a search filter and reloads from page 1.
func (q *Queue) SetSearch(ctx context.Context, search string) error {
	q.mu.Lock()
	q.search = search
	q.page = 1
	q.mu.Unlock()
	return q.fetch(ctx, "search")
}

// SetPage jumps to a page of the current queue.
func (q *Queue) SetPage(ctx context.Context, page int) error {
	if page < 1 {
		return errors.NewValidationError("page", "page starts at 1")
	}
	q.mu.Lock()
	q.page = page
	q.mu.Unlock()
	return q.fetch(ctx, "page")
}

// fetch is the only pull path. It issues a tagged request and discards the
// response when a newer request has been issued meanwhile, regardless of
// network completion order.
func (q *Queue) fetch(ctx context.Context, trigger string) error {
	q.mu.Lock()
	q.reqSeq++
	id := q.reqSeq
	query := models.QueueQuery{
		Queue:    q.selected,
		Search:   q.search,
		Page:     q.page,
		PageSize: q.opts.PageSize,
	}
	q.loading = true
	q.mu.Unlock()

	page, err := q.api.FetchQueue(ctx, query)

	q.mu.Lock()
	defer q.mu.Unlock()

	if id != q.reqSeq {
		metrics.QueueStaleResponsesTotal.Inc()
		q.logger.Debug("discarding stale queue fetch", map[string]interface{}{
			"requestId": id,
			"latest":    q.reqSeq,
			"trigger":   trigger,
		})
		return errors.NewStaleResponseError(id, q.reqSeq)
	}

	q.loading = false
	if err != nil {
		q.lastErr = err
		metrics.QueueRefreshesTotal.WithLabelValues(trigger, "error").Inc()
		return err
	}

	q.lastErr = nil
	q.applyPageLocked(page)
	metrics.QueueRefreshesTotal.WithLabelValues(trigger, "success").Inc()
	return nil
}

// applyPageLocked installs a fetched page, carrying highlight flags over for
// leads that are still inside their highlight window.
func (q *Queue) applyPageLocked(page *models.QueuePage) {
	highlighted := map[string]bool{}
	for _, l := range q.leads {
		if l.IsNew {
			highlighted[l.ID] = true
		}
	}

	q.leads = make([]models.Lead, len(page.Leads))
	for i := range page.Leads {
		q.leads[i] = page.Leads[i].Clone()
		if highlighted[q.leads[i].ID] {
			q.leads[i].IsNew = true
		}
	}
	q.counts = page.Counts
	if page.Page > 0 {
		q.page = page.Page
	}
	if page.TotalPages > 0 {
		q.totalPages = page.TotalPages
	}
	metrics.QueueLeadsCached.Set(float64(len(q.leads)))
}

// refetchAsync resyncs counts in the background after a state-changing
// action or push event.
func (q *Queue) refetchAsync(trigger string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.background.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.background.Done()
		if err := q.fetch(context.Background(), trigger); err != nil && !errors.IsStale(err) {
			q.logger.Warn("background resync failed", map[string]interface{}{
				"trigger": trigger,
				"error":   err.Error(),
			})
		}
	}()
}

// Flush waits for in-flight background resyncs. Test hook and shutdown aid.
func (q *Queue) Flush() {
	q.background.Wait()
}

// Close unbinds hub subscriptions and stops highlight timers.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	unsubs := q.unsubs
	q.unsubs = nil
	for id, t := range q.highlightTimers {
		t.Stop()
		delete(q.highlightTimers, id)
	}
	q.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	q.background.Wait()
}

// indexLocked returns the position of a lead in the visible list, -1 when
// not present (it may live on another page or queue).
func (q *Queue) indexLocked(id string) int {
	for i := range q.leads {
		if q.leads[i].ID == id {
			return i
		}
	}
	return -1
}

// snapshot is the rollback unit: the exact leads array and counts captured
// immediately before an optimistic patch.
type snapshot struct {
	leads  []models.Lead
	counts models.QueueCounts
}

func (q *Queue) snapshotLocked() snapshot {
	leads := make([]models.Lead, len(q.leads))
	for i := range q.leads {
		leads[i] = q.leads[i].Clone()
	}
	return snapshot{leads: leads, counts: q.counts}
}

func (q *Queue) restoreLocked(s snapshot) {
	q.leads = s.leads
	q.counts = s.counts
	metrics.QueueLeadsCached.Set(float64(len(q.leads)))
}
