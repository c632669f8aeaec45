package ticket

import (
	"time"

	"github.com/fkhayef/tourneyhub/internal/store"
)

// Collection holds tickets keyed by community and ticket id
const Collection = "tickets"

// Status represents where a ticket is in its lifecycle
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// transitions lists the statuses reachable from each status. Closed is terminal.
var transitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusClosed},
	StatusInProgress: {StatusResolved, StatusClosed},
	StatusResolved:   {StatusClosed, StatusInProgress},
	StatusClosed:     nil,
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a ticket in s may move to next
func (s Status) CanTransition(next Status) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Priority represents how urgent a ticket is
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Ticket is a support thread between a member and community staff
type Ticket struct {
	ID          string     `json:"id"`
	CommunityID string     `json:"community_id"`
	CreatedBy   string     `json:"created_by"`
	Category    string     `json:"category"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	Messages    []Message  `json:"messages"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// Message is one entry of a ticket thread. Messages are never edited.
type Message struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	IsStaff   bool      `json:"is_staff"`
}

// IsClosed reports whether the ticket accepts no more changes
func (t *Ticket) IsClosed() bool { return t.Status == StatusClosed }

// LastMessage returns the newest message, nil for an empty thread
func (t *Ticket) LastMessage() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}

// setStatus moves the ticket to next and stamps ClosedAt on close
func (t *Ticket) setStatus(next Status, now time.Time) {
	t.Status = next
	if next == StatusClosed {
		t.ClosedAt = &now
	}
}

// ID is the document id of a ticket
func ID(communityID, ticketID string) string {
	return store.Key(communityID, ticketID)
}
