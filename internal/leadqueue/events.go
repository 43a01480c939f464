package leadqueue

import (
	"encoding/json"
	"time"

	"leadflow/internal/common/metrics"
	"leadflow/internal/models"
	"leadflow/internal/realtime"
)

// BindHub subscribes the cache to the leads hub. Push events patch the
// visible list for immediacy, then schedule a background resync because the
// server owns queue membership and counts. Unsubscription happens in Close.
func (q *Queue) BindHub(hub *realtime.Hub) {
	unsubs := []func(){
		hub.Subscribe(models.EventLeadCreated, q.onLeadCreated),
		hub.Subscribe(models.EventLeadUpdated, q.onLeadUpserted),
		hub.Subscribe(models.EventLeadConsolidated, q.onLeadUpserted),
		hub.Subscribe(models.EventLeadDeleted, q.onLeadDeleted),
	}

	q.mu.Lock()
	q.unsubs = append(q.unsubs, unsubs...)
	q.mu.Unlock()
}

// onLeadCreated prepends the new lead with a highlight flag that clears
// after the highlight TTL.
func (q *Queue) onLeadCreated(payload []byte) {
	var lead models.Lead
	if err := json.Unmarshal(payload, &lead); err != nil || lead.ID == "" {
		metrics.HubEventsDropped.WithLabelValues("leads", "bad_lead").Inc()
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if i := q.indexLocked(lead.ID); i >= 0 {
		// Already visible (e.g. created locally); treat as an update.
		q.mu.Unlock()
		q.onLeadUpserted(payload)
		return
	}
	lead.IsNew = true
	q.leads = append([]models.Lead{lead}, q.leads...)
	q.counts.All++
	metrics.QueueLeadsCached.Set(float64(len(q.leads)))
	q.armHighlightLocked(lead.ID)
	q.mu.Unlock()

	q.refetchAsync("lead_created")
}

// onLeadUpserted merges an updated or consolidated lead into the visible
// list. A push carrying an older version than what we hold locally is
// dropped: it was emitted before our own write landed.
func (q *Queue) onLeadUpserted(payload []byte) {
	var lead models.Lead
	if err := json.Unmarshal(payload, &lead); err != nil || lead.ID == "" {
		metrics.HubEventsDropped.WithLabelValues("leads", "bad_lead").Inc()
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if i := q.indexLocked(lead.ID); i >= 0 {
		existing := &q.leads[i]
		if lead.Version != 0 && existing.Version > lead.Version {
			q.mu.Unlock()
			return
		}
		isNew := existing.IsNew
		q.leads[i] = lead
		q.leads[i].IsNew = isNew
	}
	q.mu.Unlock()

	q.refetchAsync("lead_updated")
}

// onLeadDeleted removes the lead and decrements the running total, floored
// at zero; the authoritative counts arrive with the resync.
func (q *Queue) onLeadDeleted(payload []byte) {
	var p models.LeadDeletedPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
		metrics.HubEventsDropped.WithLabelValues("leads", "bad_lead").Inc()
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.removeLocked(p.ID)
	if q.counts.All > 0 {
		q.counts.All--
	}
	if t, ok := q.highlightTimers[p.ID]; ok {
		t.Stop()
		delete(q.highlightTimers, p.ID)
	}
	metrics.QueueLeadsCached.Set(float64(len(q.leads)))
	q.mu.Unlock()

	q.refetchAsync("lead_deleted")
}

// armHighlightLocked schedules the IsNew flag to clear. Re-arming replaces
// any previous timer for the same lead.
func (q *Queue) armHighlightLocked(id string) {
	if t, ok := q.highlightTimers[id]; ok {
		t.Stop()
	}
	q.highlightTimers[id] = time.AfterFunc(q.opts.HighlightTTL, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.highlightTimers, id)
		if i := q.indexLocked(id); i >= 0 {
			q.leads[i].IsNew = false
		}
	})
}
