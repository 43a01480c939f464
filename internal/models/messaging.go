package models

import "time"

// MessageDirection tells apart inbound seller texts from outbound ones.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageStatus is the delivery state of an outbound SMS.
type MessageStatus string

const (
	MessageQueued    MessageStatus = "queued"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageFailed    MessageStatus = "failed"
)

// Message is a single SMS in a lead conversation.
type Message struct {
	ID        string           `json:"id"`
	LeadID    string           `json:"leadId"`
	Direction MessageDirection `json:"direction"`
	Body      string           `json:"body"`
	Status    MessageStatus    `json:"status,omitempty"`
	SentAt    time.Time        `json:"sentAt"`
}

// Conversation is the SMS thread with one seller.
type Conversation struct {
	LeadID      string    `json:"leadId"`
	SellerPhone string    `json:"sellerPhone"`
	Messages    []Message `json:"messages"`
	UnreadCount int       `json:"unreadCount"`
}

// Template is a canned SMS body with placeholder substitution handled
// server-side.
type Template struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Body  string `json:"body"`
	Usage string `json:"usage,omitempty"`
}
