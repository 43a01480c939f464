// Package inbox caches SMS conversations per lead. Threads are pulled on
// demand and patched in place by messaging hub events; sends are optimistic
// with a queued placeholder that the confirmed message replaces.
package inbox

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadflow/internal/api"
	"leadflow/internal/common/logger"
	"leadflow/internal/common/metrics"
	"leadflow/internal/models"
	"leadflow/internal/realtime"
)

// Inbox is the conversation cache.
type Inbox struct {
	api    api.Client
	logger logger.Logger

	mu            sync.Mutex
	conversations map[string]*models.Conversation
	templates     []models.Template
	unsubs        []func()
}

// New creates an empty inbox over the given backend client.
func New(client api.Client, log logger.Logger) *Inbox {
	return &Inbox{
		api:           client,
		logger:        log,
		conversations: map[string]*models.Conversation{},
	}
}

// BindHub subscribes the inbox to the messaging hub.
func (in *Inbox) BindHub(hub *realtime.Hub) {
	unsubs := []func(){
		hub.Subscribe(models.EventMessageReceived, in.onMessage),
		hub.Subscribe(models.EventMessageSent, in.onMessage),
		hub.Subscribe(models.EventMessageStatus, in.onMessageStatus),
	}

	in.mu.Lock()
	in.unsubs = append(in.unsubs, unsubs...)
	in.mu.Unlock()
}

// Close unbinds hub subscriptions.
func (in *Inbox) Close() {
	in.mu.Lock()
	unsubs := in.unsubs
	in.unsubs = nil
	in.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// Conversation returns the cached thread for a lead, pulling it from the
// backend on first access. A lead with no conversation yet yields nil.
func (in *Inbox) Conversation(ctx context.Context, leadID string) (*models.Conversation, error) {
	in.mu.Lock()
	if conv, ok := in.conversations[leadID]; ok {
		out := cloneConversation(conv)
		in.mu.Unlock()
		return out, nil
	}
	in.mu.Unlock()

	conv, err := in.api.GetConversation(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, nil
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	// A hub event may have created the thread while the pull was in flight;
	// the pulled thread is the complete one, keep it but fold in the unread
	// counter accumulated meanwhile.
	if existing, ok := in.conversations[leadID]; ok {
		conv.UnreadCount += existing.UnreadCount
	}
	stored := cloneConversation(conv)
	in.conversations[leadID] = stored
	return cloneConversation(stored), nil
}

// UnreadCount returns the number of unseen inbound messages for a lead.
func (in *Inbox) UnreadCount(leadID string) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	if conv, ok := in.conversations[leadID]; ok {
		return conv.UnreadCount
	}
	return 0
}

// TotalUnread sums unread counts across all cached threads.
func (in *Inbox) TotalUnread() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	total := 0
	for _, conv := range in.conversations {
		total += conv.UnreadCount
	}
	return total
}

// MarkRead clears the unread counter for a lead, typically when its thread
// is opened.
func (in *Inbox) MarkRead(leadID string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if conv, ok := in.conversations[leadID]; ok {
		conv.UnreadCount = 0
	}
}

// Templates returns the canned message bodies, fetched once and cached.
func (in *Inbox) Templates(ctx context.Context) ([]models.Template, error) {
	in.mu.Lock()
	if in.templates != nil {
		out := append([]models.Template(nil), in.templates...)
		in.mu.Unlock()
		return out, nil
	}
	in.mu.Unlock()

	tpls, err := in.api.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	in.templates = append([]models.Template(nil), tpls...)
	return append([]models.Template(nil), tpls...), nil
}

// Send appends a queued placeholder to the thread, issues the send, and
// replaces the placeholder with the confirmed message. On failure the
// placeholder is removed and the error returned.
func (in *Inbox) Send(ctx context.Context, leadID, body string) (*models.Message, error) {
	placeholder := models.Message{
		ID:        "pending-" + uuid.NewString(),
		LeadID:    leadID,
		Direction: models.DirectionOutbound,
		Body:      body,
		Status:    models.MessageQueued,
		SentAt:    time.Now().UTC(),
	}

	in.mu.Lock()
	conv := in.conversationLocked(leadID)
	conv.Messages = append(conv.Messages, placeholder)
	in.mu.Unlock()

	msg, err := in.api.SendMessage(ctx, leadID, body)

	in.mu.Lock()
	defer in.mu.Unlock()
	conv = in.conversationLocked(leadID)

	if err != nil {
		conv.Messages = removeMessage(conv.Messages, placeholder.ID)
		metrics.MessagesSentTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	conv.Messages = removeMessage(conv.Messages, placeholder.ID)
	in.upsertLocked(conv, *msg)
	metrics.MessagesSentTotal.WithLabelValues("success").Inc()
	out := *msg
	return &out, nil
}

// onMessage handles message:received and message:sent events.
func (in *Inbox) onMessage(payload []byte) {
	var msg models.Message
	if err := json.Unmarshal(payload, &msg); err != nil || msg.LeadID == "" {
		metrics.HubEventsDropped.WithLabelValues("messaging", "bad_message").Inc()
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	conv := in.conversationLocked(msg.LeadID)
	added := in.upsertLocked(conv, msg)
	if added && msg.Direction == models.DirectionInbound {
		conv.UnreadCount++
	}
}

// onMessageStatus patches the delivery state of an already-cached outbound
// message. Status updates for unknown messages are dropped; the full thread
// arrives on the next pull.
func (in *Inbox) onMessageStatus(payload []byte) {
	var msg models.Message
	if err := json.Unmarshal(payload, &msg); err != nil || msg.ID == "" || msg.LeadID == "" {
		metrics.HubEventsDropped.WithLabelValues("messaging", "bad_message").Inc()
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	conv, ok := in.conversations[msg.LeadID]
	if !ok {
		return
	}
	for i := range conv.Messages {
		if conv.Messages[i].ID == msg.ID {
			conv.Messages[i].Status = msg.Status
			return
		}
	}
}

// conversationLocked returns the cached thread for a lead, creating an empty
// one when needed.
func (in *Inbox) conversationLocked(leadID string) *models.Conversation {
	conv, ok := in.conversations[leadID]
	if !ok {
		conv = &models.Conversation{LeadID: leadID}
		in.conversations[leadID] = conv
	}
	return conv
}

// upsertLocked inserts or replaces a message by id, keeping send order.
// Returns true when the message was new to the thread.
func (in *Inbox) upsertLocked(conv *models.Conversation, msg models.Message) bool {
	for i := range conv.Messages {
		if conv.Messages[i].ID == msg.ID {
			conv.Messages[i] = msg
			return false
		}
	}
	conv.Messages = append(conv.Messages, msg)
	return true
}

func removeMessage(msgs []models.Message, id string) []models.Message {
	for i := range msgs {
		if msgs[i].ID == id {
			return append(msgs[:i], msgs[i+1:]...)
		}
	}
	return msgs
}

func cloneConversation(c *models.Conversation) *models.Conversation {
	out := *c
	out.Messages = append([]models.Message(nil), c.Messages...)
	return &out
}
