package leadqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/internal/api"
	"leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/models"
)

// fakeClient is a scriptable backend: every method can be overridden, and
// fetches can be gated to reproduce out-of-order completion.
type fakeClient struct {
	mu         sync.Mutex
	page       *models.QueuePage
	fetchErr   error
	fetchGate  chan struct{} // when set, FetchQueue blocks until a token arrives
	fetchCalls []models.QueueQuery

	updateStatusErr error
	deleteErr       error
	evalErr         error
	evalResult      *models.Lead
	scheduleErr     error
	notesErr        error
	phoneErr        error
	cancelErr       error
}

var _ api.Client = (*fakeClient)(nil)

func (f *fakeClient) FetchQueue(ctx context.Context, q models.QueueQuery) (*models.QueuePage, error) {
	f.mu.Lock()
	gate := f.fetchGate
	f.fetchCalls = append(f.fetchCalls, q)
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.page == nil {
		return &models.QueuePage{Page: 1, TotalPages: 1}, nil
	}
	out := *f.page
	out.Leads = make([]models.Lead, len(f.page.Leads))
	for i := range f.page.Leads {
		out.Leads[i] = f.page.Leads[i].Clone()
	}
	return &out, nil
}

func (f *fakeClient) setPage(p *models.QueuePage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.page = p
}

func (f *fakeClient) UpdateStatus(ctx context.Context, id string, s models.LeadStatus) error {
	return f.updateStatusErr
}
func (f *fakeClient) UpdateNotes(ctx context.Context, id, notes string) error  { return f.notesErr }
func (f *fakeClient) UpdateSellerPhone(ctx context.Context, id, p string) error {
	return f.phoneErr
}
func (f *fakeClient) SubmitEvaluation(ctx context.Context, id string, in api.EvaluationInput) (*models.Lead, error) {
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	return f.evalResult, nil
}
func (f *fakeClient) ScheduleFollowUp(ctx context.Context, id, d string) error { return f.scheduleErr }
func (f *fakeClient) CancelFollowUp(ctx context.Context, id string) error      { return f.cancelErr }
func (f *fakeClient) DeleteLead(ctx context.Context, id string) error          { return f.deleteErr }
func (f *fakeClient) ScoreFromURL(ctx context.Context, u string) (*models.Lead, error) {
	return nil, nil
}
func (f *fakeClient) EnrichComparables(ctx context.Context, id string) ([]models.Comparable, error) {
	return nil, nil
}
func (f *fakeClient) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	return nil, nil
}
func (f *fakeClient) ListTemplates(ctx context.Context) ([]models.Template, error) {
	return nil, nil
}
func (f *fakeClient) SendMessage(ctx context.Context, id, body string) (*models.Message, error) {
	return nil, nil
}

// recordingNotifier captures the user-facing outcomes.
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errs      []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, msg)
}

func (n *recordingNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errs)
}

func lead(id string, status models.LeadStatus) models.Lead {
	return models.Lead{
		ID: id, Address: id + " Test St", Status: status,
		ListingPrice: 150000,
		ARV:          models.Estimate{Value: 200000, Source: models.SourceAI, Confidence: 0.8},
		Rehab:        models.Estimate{Value: 30000, Source: models.SourceAI, Confidence: 0.6},
		MAO:          105000, SpreadPercent: 30, LeadScore: 6,
		Version: 1,
	}
}

func newTestQueue(t *testing.T, f *fakeClient) (*Queue, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	q := New(f, logger.NewTestLogger(t), n, nil, Options{
		HighlightTTL: 250 * time.Millisecond,
		Today:        func() string { return "2026-08-23" },
	})
	t.Cleanup(q.Close)
	return q, n
}

func TestRefreshLoadsPage(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{
		Leads:      []models.Lead{lead("a", models.StatusNew)},
		Counts:     models.QueueCounts{ActionNow: 1, All: 1},
		Page:       1,
		TotalPages: 1,
	})
	q, _ := newTestQueue(t, f)

	require.NoError(t, q.Refresh(context.Background()))

	st := q.State()
	require.Len(t, st.Leads, 1)
	assert.Equal(t, "a", st.Leads[0].ID)
	assert.Equal(t, 1, st.Counts.All)
	assert.False(t, st.Loading)
	assert.NoError(t, st.Err)
}

func TestStateReturnsCopies(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{Leads: []models.Lead{lead("a", models.StatusNew)}, Page: 1, TotalPages: 1})
	q, _ := newTestQueue(t, f)
	require.NoError(t, q.Refresh(context.Background()))

	st := q.State()
	st.Leads[0].Notes = "mutated by reader"

	assert.Empty(t, q.State().Leads[0].Notes)
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	f := &fakeClient{}
	gate := make(chan struct{})
	f.fetchGate = gate
	f.setPage(&models.QueuePage{
		Leads: []models.Lead{lead("slow", models.StatusNew)},
		Page:  1, TotalPages: 1,
	})

	q, _ := newTestQueue(t, f)

	// First fetch blocks on the gate.
	firstDone := make(chan error, 1)
	go func() { firstDone <- q.Refresh(context.Background()) }()

	// Wait until the first request is actually in flight.
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.fetchCalls) == 1
	}, time.Second, time.Millisecond)

	// Second fetch supersedes it and completes first.
	secondDone := make(chan error, 1)
	go func() { secondDone <- q.SetSearch(context.Background(), "oak") }()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.fetchCalls) == 2
	}, time.Second, time.Millisecond)

	f.setPage(&models.QueuePage{
		Leads: []models.Lead{lead("fresh", models.StatusNew)},
		Page:  1, TotalPages: 1,
	})
	gate <- struct{}{} // release in arrival order: first the superseded request
	gate <- struct{}{}

	err := <-firstDone
	require.Error(t, err)
	assert.True(t, errors.IsStale(err))
	require.NoError(t, <-secondDone)

	// Whatever the completion interleaving, the superseded response never
	// lands.
	st := q.State()
	require.Len(t, st.Leads, 1)
	assert.Equal(t, "fresh", st.Leads[0].ID)
}

func TestOptimisticStatusUpdate(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{Leads: []models.Lead{lead("a", models.StatusNew)}, Page: 1, TotalPages: 1})
	q, n := newTestQueue(t, f)
	require.NoError(t, q.Refresh(context.Background()))

	require.NoError(t, q.UpdateStatus(context.Background(), "a", models.StatusNegotiating))
	q.Flush()

	assert.Equal(t, 0, n.errorCount())
	assert.NotEmpty(t, n.successes)
}

func TestRollbackRestoresExactState(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{
		Leads:  []models.Lead{lead("a", models.StatusNew), lead("b", models.StatusResponding)},
		Counts: models.QueueCounts{ActionNow: 2, All: 2},
		Page:   1, TotalPages: 1,
	})
	q, n := newTestQueue(t, f)
	require.NoError(t, q.Refresh(context.Background()))
	before := q.State()

	f.updateStatusErr = errors.NewRequestFailedError(500, "boom")
	err := q.UpdateStatus(context.Background(), "a", models.StatusNegotiating)
	require.Error(t, err)

	after := q.State()
	assert.Equal(t, before.Leads, after.Leads)
	assert.Equal(t, before.Counts, after.Counts)
	assert.Equal(t, 1, n.errorCount())
}

func TestArchiveRollbackRestoresRowAndCounts(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{
		Leads:  []models.Lead{lead("a", models.StatusNew)},
		Counts: models.QueueCounts{ActionNow: 1, All: 1},
		Page:   1, TotalPages: 1,
	})
	q, n := newTestQueue(t, f)
	require.NoError(t, q.Refresh(context.Background()))

	f.updateStatusErr = errors.NewNetworkFailureError(context.DeadlineExceeded)
	require.Error(t, q.Archive(context.Background(), "a"))

	st := q.State()
	require.Len(t, st.Leads, 1)
	assert.Equal(t, "a", st.Leads[0].ID)
	assert.Equal(t, 1, st.Counts.All)
	assert.Equal(t, 0, st.Counts.Archived)
	assert.Equal(t, 1, n.errorCount())
}

func TestDeleteFailureRollsBackAndPropagates(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{
		Leads:  []models.Lead{lead("a", models.StatusNew)},
		Counts: models.QueueCounts{All: 1},
		Page:   1, TotalPages: 1,
	})
	q, n := newTestQueue(t, f)
	require.NoError(t, q.Refresh(context.Background()))

	f.deleteErr = errors.NewRequestFailedError(500, "boom")
	err := q.DeletePermanently(context.Background(), "a")

	// The caller gets the error back so its confirmation flow can react.
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRequestFailed, errors.AsStandard(err).Code)
	require.Len(t, q.State().Leads, 1)
	assert.Equal(t, 1, n.errorCount())
}

func TestEvaluationOptimisticThenServerAuthoritative(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{Leads: []models.Lead{lead("a", models.StatusNew)}, Page: 1, TotalPages: 1})
	q, _ := newTestQueue(t, f)
	require.NoError(t, q.Refresh(context.Background()))

	server := lead("a", models.StatusNew)
	server.ARV = models.Estimate{Value: 220000, Source: models.SourceManual}
	server.MAO = 119000 // server-side numbers win even when they differ
	server.SpreadPercent = 21
	server.Version = 2
	f.evalResult = &server

	arv := 220000.0
	require.NoError(t, q.UpdateEvaluation(context.Background(), "a", api.EvaluationInput{ARV: &arv}))

	st := q.State()
	require.Len(t, st.Leads, 1)
	assert.Equal(t, 220000.0, st.Leads[0].ARV.Value)
	assert.Equal(t, models.SourceManual, st.Leads[0].ARV.Source)
	assert.Equal(t, 119000.0, st.Leads[0].MAO)
	assert.Equal(t, int64(2), st.Leads[0].Version)
}

func TestEvaluationRollbackKeepsOriginalEstimates(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{Leads: []models.Lead{lead("a", models.StatusNew)}, Page: 1, TotalPages: 1})
	q, _ := newTestQueue(t, f)
	require.NoError(t, q.Refresh(context.Background()))
	before := q.State().Leads[0]

	f.evalErr = errors.NewRequestFailedError(500, "boom")
	arv := 999999.0
	require.Error(t, q.UpdateEvaluation(context.Background(), "a", api.EvaluationInput{ARV: &arv}))

	after := q.State().Leads[0]
	assert.Equal(t, before.ARV, after.ARV)
	assert.Equal(t, before.MAO, after.MAO)
	assert.Equal(t, before.LeadScore, after.LeadScore)
}

func TestScheduleFollowUpRemovesFromActionNow(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{Leads: []models.Lead{lead("a", models.StatusNew)}, Page: 1, TotalPages: 1})
	q, _ := newTestQueue(t, f)
	require.NoError(t, q.Refresh(context.Background()))
	require.Equal(t, models.QueueActionNow, q.State().Selected)

	// A future follow-up moves the lead out of the action-now view; the row
	// disappears immediately, before the resync confirms.
	f.setPage(&models.QueuePage{Page: 1, TotalPages: 1})
	require.NoError(t, q.ScheduleFollowUp(context.Background(), "a", "2026-09-01"))
	assert.Empty(t, q.State().Leads)
	q.Flush()
}

func TestScheduleFollowUpDueness(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{Leads: []models.Lead{lead("a", models.StatusNegotiating)}, Page: 1, TotalPages: 1})
	q, _ := newTestQueue(t, f)
	require.NoError(t, q.SelectQueue(context.Background(), models.QueueNegotiating))

	// Same-day follow-up is due immediately: string compare, no clock math.
	require.NoError(t, q.ScheduleFollowUp(context.Background(), "a", "2026-08-23"))
	st := q.State()
	require.Len(t, st.Leads, 1)
	assert.Equal(t, "2026-08-23", st.Leads[0].FollowUpDate)
	assert.True(t, st.Leads[0].FollowUpDue)
	q.Flush()

	require.NoError(t, q.ScheduleFollowUp(context.Background(), "a", "2026-12-31"))
	st = q.State()
	assert.False(t, st.Leads[0].FollowUpDue)
	q.Flush()

	err := q.ScheduleFollowUp(context.Background(), "a", "next tuesday")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.AsStandard(err).Code)
}

func TestCancelFollowUpRemovesFromActionNow(t *testing.T) {
	f := &fakeClient{}
	l := lead("a", models.StatusNegotiating)
	l.FollowUpDate = "2026-08-20"
	l.FollowUpDue = true // in action_now only because the follow-up is due
	f.setPage(&models.QueuePage{
		Leads:  []models.Lead{l},
		Counts: models.QueueCounts{ActionNow: 1, All: 1},
		Page:   1, TotalPages: 1,
	})
	q, _ := newTestQueue(t, f)
	require.NoError(t, q.Refresh(context.Background()))
	require.Equal(t, models.QueueActionNow, q.State().Selected)

	// Block the background resync so we observe the optimistic patch alone.
	gate := make(chan struct{})
	f.mu.Lock()
	f.fetchGate = gate
	f.mu.Unlock()

	// Without the due follow-up the lead no longer belongs here; the row
	// disappears immediately, not when the resync lands.
	require.NoError(t, q.CancelFollowUp(context.Background(), "a"))
	assert.Empty(t, q.State().Leads)

	close(gate)
	q.Flush()
}

func TestCancelFollowUpClearsBothFields(t *testing.T) {
	f := &fakeClient{}
	l := lead("a", models.StatusNegotiating)
	l.FollowUpDate = "2026-09-01"
	f.setPage(&models.QueuePage{Leads: []models.Lead{l}, Page: 1, TotalPages: 1})
	q, _ := newTestQueue(t, f)
	require.NoError(t, q.SelectQueue(context.Background(), models.QueueNegotiating))

	gate := make(chan struct{})
	f.mu.Lock()
	f.fetchGate = gate
	f.mu.Unlock()

	// In a status-driven view the row stays; date and due flag clear together.
	require.NoError(t, q.CancelFollowUp(context.Background(), "a"))
	st := q.State()
	require.Len(t, st.Leads, 1)
	assert.Empty(t, st.Leads[0].FollowUpDate)
	assert.False(t, st.Leads[0].FollowUpDue)

	close(gate)
	q.Flush()
}

func TestCancelFollowUpRollback(t *testing.T) {
	f := &fakeClient{}
	l := lead("a", models.StatusNegotiating)
	l.FollowUpDate = "2026-09-01"
	l.FollowUpDue = false
	f.setPage(&models.QueuePage{Leads: []models.Lead{l}, Page: 1, TotalPages: 1})
	q, n := newTestQueue(t, f)
	require.NoError(t, q.SelectQueue(context.Background(), models.QueueNegotiating))
	before := q.State()

	f.cancelErr = errors.NewRequestFailedError(500, "boom")
	require.Error(t, q.CancelFollowUp(context.Background(), "a"))

	after := q.State()
	assert.Equal(t, before.Leads, after.Leads)
	assert.Equal(t, "2026-09-01", after.Leads[0].FollowUpDate)
	assert.Equal(t, 1, n.errorCount())
}

func TestUnarchiveRestoresLeadToPipeline(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{
		Leads:  []models.Lead{lead("a", models.StatusArchived)},
		Counts: models.QueueCounts{Archived: 1, All: 3},
		Page:   1, TotalPages: 1,
	})
	q, n := newTestQueue(t, f)
	require.NoError(t, q.SelectQueue(context.Background(), models.QueueArchived))

	gate := make(chan struct{})
	f.mu.Lock()
	f.fetchGate = gate
	f.mu.Unlock()

	require.NoError(t, q.Unarchive(context.Background(), "a"))

	st := q.State()
	assert.Empty(t, st.Leads)
	assert.Equal(t, 0, st.Counts.Archived)
	assert.Equal(t, 4, st.Counts.All)
	assert.Equal(t, 0, n.errorCount())

	close(gate)
	q.Flush()
}

func TestUnarchiveRollbackRestoresCounts(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{
		Leads:  []models.Lead{lead("a", models.StatusArchived)},
		Counts: models.QueueCounts{Archived: 1, All: 3},
		Page:   1, TotalPages: 1,
	})
	q, n := newTestQueue(t, f)
	require.NoError(t, q.SelectQueue(context.Background(), models.QueueArchived))

	f.updateStatusErr = errors.NewNetworkFailureError(context.DeadlineExceeded)
	require.Error(t, q.Unarchive(context.Background(), "a"))

	st := q.State()
	require.Len(t, st.Leads, 1)
	assert.Equal(t, "a", st.Leads[0].ID)
	assert.Equal(t, 1, st.Counts.Archived)
	assert.Equal(t, 3, st.Counts.All)
	assert.Equal(t, 1, n.errorCount())
}

func TestPhoneAndNotesRollback(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{Leads: []models.Lead{lead("a", models.StatusNew)}, Page: 1, TotalPages: 1})
	q, n := newTestQueue(t, f)
	require.NoError(t, q.Refresh(context.Background()))

	f.phoneErr = errors.NewNetworkFailureError(context.DeadlineExceeded)
	require.Error(t, q.UpdateSellerPhone(context.Background(), "a", "555-0100"))
	assert.Empty(t, q.State().Leads[0].SellerPhone)

	f.notesErr = errors.NewNetworkFailureError(context.DeadlineExceeded)
	require.Error(t, q.UpdateNotes(context.Background(), "a", "scribble"))
	assert.Empty(t, q.State().Leads[0].Notes)
	assert.Equal(t, 2, n.errorCount())
}

func TestLeadCreatedEventHighlights(t *testing.T) {
	f := &fakeClient{}
	// The resync after the event returns the lead too, so the row survives.
	f.setPage(&models.QueuePage{
		Leads: []models.Lead{{ID: "n1", Address: "5 Pine Rd", Status: models.StatusNew, Version: 1}},
		Page:  1, TotalPages: 1,
	})
	q, _ := newTestQueue(t, f)

	q.onLeadCreated([]byte(`{"id":"n1","address":"5 Pine Rd","status":"new","version":1}`))
	q.Flush()

	st := q.State()
	require.Len(t, st.Leads, 1)
	assert.True(t, st.Leads[0].IsNew)

	// Highlight clears after the TTL.
	require.Eventually(t, func() bool {
		return !q.State().Leads[0].IsNew
	}, time.Second, 5*time.Millisecond)
}

func TestLeadUpdatedEventRespectsVersion(t *testing.T) {
	f := &fakeClient{}
	l := lead("a", models.StatusNew)
	l.Version = 5
	l.Notes = "local, newer"
	f.setPage(&models.QueuePage{Leads: []models.Lead{l}, Page: 1, TotalPages: 1})
	q, _ := newTestQueue(t, f)
	require.NoError(t, q.Refresh(context.Background()))

	// A push stamped older than the local copy is dropped.
	q.onLeadUpserted([]byte(`{"id":"a","notes":"stale push","version":3}`))
	assert.Equal(t, "local, newer", q.State().Leads[0].Notes)

	// A newer push lands.
	q.onLeadUpserted([]byte(`{"id":"a","notes":"fresh push","version":7}`))
	assert.Equal(t, "fresh push", q.State().Leads[0].Notes)
	q.Flush()
}

func TestLeadDeletedEventFloorsCounts(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{Page: 1, TotalPages: 1})
	q, _ := newTestQueue(t, f)
	require.NoError(t, q.Refresh(context.Background()))
	require.Equal(t, 0, q.State().Counts.All)

	// Deleting a lead we never displayed must not drive the total negative.
	q.onLeadDeleted([]byte(`{"id":"ghost"}`))
	assert.Equal(t, 0, q.State().Counts.All)
	q.Flush()
}

func TestSearchResetsToFirstPage(t *testing.T) {
	f := &fakeClient{}
	f.setPage(&models.QueuePage{Page: 3, TotalPages: 5})
	q, _ := newTestQueue(t, f)
	require.NoError(t, q.SetPage(context.Background(), 3))

	f.setPage(&models.QueuePage{Page: 1, TotalPages: 1})
	require.NoError(t, q.SetSearch(context.Background(), "oak"))

	f.mu.Lock()
	last := f.fetchCalls[len(f.fetchCalls)-1]
	f.mu.Unlock()
	assert.Equal(t, 1, last.Page)
	assert.Equal(t, "oak", last.Search)
}

func TestFetchErrorSurfacesAndRecovers(t *testing.T) {
	f := &fakeClient{}
	f.fetchErr = errors.NewNetworkFailureError(context.DeadlineExceeded)
	q, _ := newTestQueue(t, f)

	require.Error(t, q.Refresh(context.Background()))
	assert.Error(t, q.State().Err)

	f.mu.Lock()
	f.fetchErr = nil
	f.mu.Unlock()
	f.setPage(&models.QueuePage{Page: 1, TotalPages: 1})
	require.NoError(t, q.Refresh(context.Background()))
	assert.NoError(t, q.State().Err)
}
