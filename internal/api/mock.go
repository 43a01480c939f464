package api

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadflow/internal/common/errors"
	"leadflow/internal/models"
	"leadflow/internal/scoring"
)

// MockClient is the in-memory backend behind the api.mock config toggle. It
// replicates the server's queue-membership and derived-value rules closely
// enough for development and tests, down to version stamping on every write.
type MockClient struct {
	mu            sync.Mutex
	leads         map[string]*models.Lead
	conversations map[string]*models.Conversation
	templates     []models.Template
	today         func() string // YYYY-MM-DD, swappable in tests
}

var _ Client = (*MockClient)(nil)

// NewMockClient returns a mock backend seeded with a few leads.
func NewMockClient() *MockClient {
	m := &MockClient{
		leads:         map[string]*models.Lead{},
		conversations: map[string]*models.Conversation{},
		templates: []models.Template{
			{ID: "tpl-intro", Name: "Intro", Body: "Hi, I saw your listing at {{address}}. Would you consider an offer?"},
			{ID: "tpl-follow-up", Name: "Follow up", Body: "Just checking back in about {{address}}."},
		},
		today: func() string { return time.Now().Format("2006-01-02") },
	}

	m.SeedLead(models.Lead{
		Address: "12 Oak St", City: "Dayton", State: "OH", Zip: "45402",
		ListingPrice: 150000,
		ARV:          models.Estimate{Value: 200000, Source: models.SourceAI, Confidence: 0.8},
		Rehab:        models.Estimate{Value: 30000, Source: models.SourceAI, Confidence: 0.6},
		Rent:         models.Estimate{Value: 1400, Source: models.SourceRentcast, Confidence: 0.9},
		Status:       models.StatusNew,
	})
	m.SeedLead(models.Lead{
		Address: "88 Maple Ave", City: "Dayton", State: "OH", Zip: "45403",
		ListingPrice: 95000,
		ARV:          models.Estimate{Value: 160000, Source: models.SourceAI, Confidence: 0.7},
		Rehab:        models.Estimate{Value: 25000, Source: models.SourceAI, Confidence: 0.5},
		Rent:         models.Estimate{Value: 1100, Source: models.SourceAI, Confidence: 0.5},
		Status:       models.StatusNegotiating,
	})
	return m
}

// SeedLead inserts a lead, filling in id, derived values and version.
func (m *MockClient) SeedLead(lead models.Lead) models.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	m.derive(&lead)
	lead.Version++
	lead.CreatedAt = time.Now().UTC()
	lead.UpdatedAt = lead.CreatedAt
	m.leads[lead.ID] = &lead
	return lead.Clone()
}

// derive recomputes MAO, spread, score and follow-up due flag.
func (m *MockClient) derive(l *models.Lead) {
	l.MAO = scoring.MAO(l.ARV.Value, l.Rehab.Value)
	l.SpreadPercent = scoring.SpreadPercent(l.ListingPrice, l.MAO)
	l.LeadScore = scoring.ScoreFromSpread(l.SpreadPercent)
	l.FollowUpDue = l.FollowUpDate != "" && l.FollowUpDate <= m.today()
}

// inQueue is the membership predicate the real server applies.
func (m *MockClient) inQueue(l *models.Lead, q models.QueueType) bool {
	switch q {
	case models.QueueArchived:
		return l.Status == models.StatusArchived
	case models.QueueAll:
		return l.Status != models.StatusArchived
	case models.QueueNegotiating:
		return l.Status == models.StatusNegotiating || l.Status == models.StatusUnderContract
	case models.QueueFollowUp:
		return l.Status != models.StatusArchived && l.FollowUpDate != "" && !l.FollowUpDue
	case models.QueueActionNow:
		if l.Status == models.StatusArchived {
			return false
		}
		return l.FollowUpDue || (l.FollowUpDate == "" && (l.Status == models.StatusNew || l.Status == models.StatusResponding))
	default:
		return false
	}
}

func (m *MockClient) counts() models.QueueCounts {
	var c models.QueueCounts
	for _, l := range m.leads {
		if m.inQueue(l, models.QueueActionNow) {
			c.ActionNow++
		}
		if m.inQueue(l, models.QueueFollowUp) {
			c.FollowUp++
		}
		if m.inQueue(l, models.QueueNegotiating) {
			c.Negotiating++
		}
		if m.inQueue(l, models.QueueAll) {
			c.All++
		}
		if m.inQueue(l, models.QueueArchived) {
			c.Archived++
		}
	}
	return c
}

func (m *MockClient) FetchQueue(ctx context.Context, q models.QueueQuery) (*models.QueuePage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue := q.Queue
	if queue == "" {
		queue = models.QueueAll
	}
	if !queue.Valid() {
		return nil, errors.NewValidationError("queue", string(queue))
	}

	matched := make([]models.Lead, 0, len(m.leads))
	for _, l := range m.leads {
		m.derive(l) // follow-up due is date-dependent
		if !m.inQueue(l, queue) {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(l.Address+" "+l.City+" "+l.Zip), strings.ToLower(q.Search)) {
			continue
		}
		matched = append(matched, l.Clone())
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	totalPages := (len(matched) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	return &models.QueuePage{
		Leads:      matched[start:end],
		Counts:     m.counts(),
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

func (m *MockClient) mutate(id string, fn func(*models.Lead) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leads[id]
	if !ok {
		return errors.NewNotFoundError("lead", id)
	}
	if err := fn(l); err != nil {
		return err
	}
	m.derive(l)
	l.Version++
	l.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockClient) UpdateStatus(ctx context.Context, id string, status models.LeadStatus) error {
	if !status.Valid() {
		return errors.NewValidationError("status", string(status))
	}
	return m.mutate(id, func(l *models.Lead) error {
		l.Status = status
		return nil
	})
}

func (m *MockClient) UpdateNotes(ctx context.Context, id, notes string) error {
	return m.mutate(id, func(l *models.Lead) error {
		l.Notes = notes
		return nil
	})
}

func (m *MockClient) UpdateSellerPhone(ctx context.Context, id, phone string) error {
	return m.mutate(id, func(l *models.Lead) error {
		l.SellerPhone = phone
		return nil
	})
}

func (m *MockClient) SubmitEvaluation(ctx context.Context, id string, input EvaluationInput) (*models.Lead, error) {
	if input.Empty() {
		return nil, errors.NewValidationError("evaluation", "no fields to update")
	}
	err := m.mutate(id, func(l *models.Lead) error {
		if input.ARV != nil {
			l.ARV = models.Estimate{Value: *input.ARV, Source: models.SourceManual}
		}
		if input.Rehab != nil {
			l.Rehab = models.Estimate{Value: *input.Rehab, Source: models.SourceManual}
		}
		if input.Rent != nil {
			l.Rent = models.Estimate{Value: *input.Rent, Source: models.SourceManual}
		}
		if input.Notes != nil {
			l.Notes = *input.Notes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	lead := m.leads[id].Clone()
	return &lead, nil
}

func (m *MockClient) ScheduleFollowUp(ctx context.Context, id, dateISO string) error {
	if len(dateISO) != 10 {
		return errors.NewValidationError("date", "expected YYYY-MM-DD")
	}
	return m.mutate(id, func(l *models.Lead) error {
		l.FollowUpDate = dateISO
		return nil
	})
}

func (m *MockClient) CancelFollowUp(ctx context.Context, id string) error {
	return m.mutate(id, func(l *models.Lead) error {
		l.FollowUpDate = ""
		l.FollowUpDue = false
		return nil
	})
}

func (m *MockClient) DeleteLead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leads[id]; !ok {
		return errors.NewNotFoundError("lead", id)
	}
	delete(m.leads, id)
	delete(m.conversations, id)
	return nil
}

func (m *MockClient) ScoreFromURL(ctx context.Context, listingURL string) (*models.Lead, error) {
	if !strings.HasPrefix(listingURL, "http") {
		return nil, errors.NewValidationError("url", listingURL)
	}
	lead := m.SeedLead(models.Lead{
		Address: fmt.Sprintf("Imported %s", listingURL), ListingPrice: 120000,
		ARV:    models.Estimate{Value: 180000, Source: models.SourceAI, Confidence: 0.7},
		Rehab:  models.Estimate{Value: 20000, Source: models.SourceAI, Confidence: 0.5},
		Rent:   models.Estimate{Value: 1200, Source: models.SourceAI, Confidence: 0.5},
		Status: models.StatusNew,
	})
	return &lead, nil
}

func (m *MockClient) EnrichComparables(ctx context.Context, id string) ([]models.Comparable, error) {
	comps := []models.Comparable{
		{Address: "14 Oak St", SalePrice: 185000, PricePerSqft: 132, SaleDate: time.Now().AddDate(0, -2, 0), DistanceMiles: 0.1, IsVerified: true},
		{Address: "31 Elm St", SalePrice: 172500, PricePerSqft: 128, SaleDate: time.Now().AddDate(0, -5, 0), DistanceMiles: 0.4, IsVerified: true},
	}
	err := m.mutate(id, func(l *models.Lead) error {
		l.Comparables = comps
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comps, nil
}

func (m *MockClient) GetConversation(ctx context.Context, leadID string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[leadID]
	if !ok {
		return nil, nil // no conversation yet is not an error
	}
	out := *conv
	out.Messages = append([]models.Message(nil), conv.Messages...)
	return &out, nil
}

func (m *MockClient) ListTemplates(ctx context.Context) ([]models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Template(nil), m.templates...), nil
}

func (m *MockClient) SendMessage(ctx context.Context, leadID, body string) (*models.Message, error) {
	if body == "" {
		return nil, errors.NewValidationError("body", "message body is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[leadID]
	if !ok {
		return nil, errors.NewNotFoundError("lead", leadID)
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		LeadID:    leadID,
		Direction: models.DirectionOutbound,
		Body:      body,
		Status:    models.MessageSent,
		SentAt:    time.Now().UTC(),
	}
	conv, ok := m.conversations[leadID]
	if !ok {
		conv = &models.Conversation{LeadID: leadID, SellerPhone: l.SellerPhone}
		m.conversations[leadID] = conv
	}
	conv.Messages = append(conv.Messages, msg)
	return &msg, nil
}
