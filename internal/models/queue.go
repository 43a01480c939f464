package models

// QueueType names a server-defined subset of leads. Membership rules live on
// the server (some are date-dependent), which is why counts are refreshed by
// full refetch rather than patched arithmetically.
type QueueType string

const (
	QueueActionNow   QueueType = "action_now"
	QueueFollowUp    QueueType = "follow_up"
	QueueNegotiating QueueType = "negotiating"
	QueueAll         QueueType = "all"
	QueueArchived    QueueType = "archived"
)

// Valid reports whether q is a known queue type.
func (q QueueType) Valid() bool {
	switch q {
	case QueueActionNow, QueueFollowUp, QueueNegotiating, QueueAll, QueueArchived:
		return true
	}
	return false
}

// QueueCounts holds per-queue cardinalities as reported by the server.
type QueueCounts struct {
	ActionNow   int `json:"action_now"`
	FollowUp    int `json:"follow_up"`
	Negotiating int `json:"negotiating"`
	All         int `json:"all"`
	Archived    int `json:"archived"`
}

// QueuePage is one page of the filtered lead queue.
type QueuePage struct {
	Leads      []Lead      `json:"leads"`
	Counts     QueueCounts `json:"counts"`
	Page       int         `json:"page"`
	TotalPages int         `json:"totalPages"`
}

// QueueQuery selects which slice of the queue to fetch.
type QueueQuery struct {
	Queue    QueueType
	Search   string
	Page     int
	PageSize int
}
