package inbox

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/internal/api"
	"leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/models"
)

// fakeMessaging implements only the inbox-facing slice of the backend.
type fakeMessaging struct {
	mu           sync.Mutex
	conversation *models.Conversation
	convErr      error
	convCalls    int
	templates    []models.Template
	tplCalls     int
	sendErr      error
	sent         []string
}

var _ api.Client = (*fakeMessaging)(nil)

func (f *fakeMessaging) GetConversation(ctx context.Context, leadID string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convCalls++
	if f.convErr != nil {
		return nil, f.convErr
	}
	if f.conversation == nil {
		return nil, nil
	}
	out := *f.conversation
	out.Messages = append([]models.Message(nil), f.conversation.Messages...)
	return &out, nil
}

func (f *fakeMessaging) ListTemplates(ctx context.Context) ([]models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tplCalls++
	return f.templates, nil
}

func (f *fakeMessaging) SendMessage(ctx context.Context, leadID, body string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, body)
	return &models.Message{
		ID: "m-confirmed", LeadID: leadID, Direction: models.DirectionOutbound,
		Body: body, Status: models.MessageSent,
	}, nil
}

func (f *fakeMessaging) FetchQueue(context.Context, models.QueueQuery) (*models.QueuePage, error) {
	return nil, nil
}
func (f *fakeMessaging) UpdateStatus(context.Context, string, models.LeadStatus) error { return nil }
func (f *fakeMessaging) UpdateNotes(context.Context, string, string) error             { return nil }
func (f *fakeMessaging) UpdateSellerPhone(context.Context, string, string) error       { return nil }
func (f *fakeMessaging) SubmitEvaluation(context.Context, string, api.EvaluationInput) (*models.Lead, error) {
	return nil, nil
}
func (f *fakeMessaging) ScheduleFollowUp(context.Context, string, string) error { return nil }
func (f *fakeMessaging) CancelFollowUp(context.Context, string) error           { return nil }
func (f *fakeMessaging) DeleteLead(context.Context, string) error               { return nil }
func (f *fakeMessaging) ScoreFromURL(context.Context, string) (*models.Lead, error) {
	return nil, nil
}
func (f *fakeMessaging) EnrichComparables(context.Context, string) ([]models.Comparable, error) {
	return nil, nil
}

func TestConversationPullAndCache(t *testing.T) {
	f := &fakeMessaging{conversation: &models.Conversation{
		LeadID: "lead-1", SellerPhone: "555-0101",
		Messages: []models.Message{{ID: "m1", LeadID: "lead-1", Direction: models.DirectionInbound, Body: "hi"}},
	}}
	in := New(f, logger.NewTestLogger(t))

	conv, err := in.Conversation(context.Background(), "lead-1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Len(t, conv.Messages, 1)

	// Second access served from cache.
	_, err = in.Conversation(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.convCalls)
}

func TestConversationNoThreadYet(t *testing.T) {
	in := New(&fakeMessaging{}, logger.NewTestLogger(t))

	conv, err := in.Conversation(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestConversationErrorPropagates(t *testing.T) {
	f := &fakeMessaging{convErr: errors.NewRequestFailedError(500, "boom")}
	in := New(f, logger.NewTestLogger(t))

	_, err := in.Conversation(context.Background(), "lead-1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRequestFailed, errors.AsStandard(err).Code)
}

func TestInboundEventBumpsUnread(t *testing.T) {
	in := New(&fakeMessaging{}, logger.NewTestLogger(t))

	in.onMessage([]byte(`{"id":"m1","leadId":"lead-1","direction":"inbound","body":"hello?"}`))
	in.onMessage([]byte(`{"id":"m2","leadId":"lead-1","direction":"inbound","body":"anyone?"}`))
	// Duplicate delivery of the same message must not double-count.
	in.onMessage([]byte(`{"id":"m2","leadId":"lead-1","direction":"inbound","body":"anyone?"}`))

	assert.Equal(t, 2, in.UnreadCount("lead-1"))
	assert.Equal(t, 2, in.TotalUnread())

	in.MarkRead("lead-1")
	assert.Equal(t, 0, in.UnreadCount("lead-1"))
}

func TestOutboundEventDoesNotBumpUnread(t *testing.T) {
	in := New(&fakeMessaging{}, logger.NewTestLogger(t))

	in.onMessage([]byte(`{"id":"m1","leadId":"lead-1","direction":"outbound","body":"following up"}`))
	assert.Equal(t, 0, in.UnreadCount("lead-1"))
}

func TestSendReplacesPlaceholder(t *testing.T) {
	f := &fakeMessaging{}
	in := New(f, logger.NewTestLogger(t))

	msg, err := in.Send(context.Background(), "lead-1", "interested in selling?")
	require.NoError(t, err)
	assert.Equal(t, models.MessageSent, msg.Status)

	conv, err := in.Conversation(context.Background(), "lead-1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "m-confirmed", conv.Messages[0].ID)
	assert.Equal(t, []string{"interested in selling?"}, f.sent)
}

func TestSendFailureRemovesPlaceholder(t *testing.T) {
	f := &fakeMessaging{sendErr: errors.NewNetworkFailureError(context.DeadlineExceeded)}
	in := New(f, logger.NewTestLogger(t))

	_, err := in.Send(context.Background(), "lead-1", "hello")
	require.Error(t, err)

	conv, cErr := in.Conversation(context.Background(), "lead-1")
	require.NoError(t, cErr)
	require.NotNil(t, conv)
	assert.Empty(t, conv.Messages)
}

func TestStatusEventPatchesDelivery(t *testing.T) {
	f := &fakeMessaging{}
	in := New(f, logger.NewTestLogger(t))

	_, err := in.Send(context.Background(), "lead-1", "hello")
	require.NoError(t, err)

	in.onMessageStatus([]byte(`{"id":"m-confirmed","leadId":"lead-1","status":"delivered"}`))

	conv, err := in.Conversation(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, models.MessageDelivered, conv.Messages[0].Status)
}

func TestTemplatesCached(t *testing.T) {
	f := &fakeMessaging{templates: []models.Template{{ID: "tpl-1", Name: "Intro", Body: "Hi"}}}
	in := New(f, logger.NewTestLogger(t))

	tpls, err := in.Templates(context.Background())
	require.NoError(t, err)
	require.Len(t, tpls, 1)

	_, err = in.Templates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.tplCalls)
}
