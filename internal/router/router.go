package router

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrCommunicationBlocked distinguishes a topology rejection from other
// send failures. Blocked messages are counted but never enter history.
var ErrCommunicationBlocked = errors.New("communication blocked")

// Type classifies a message.
type Type string

const (
	TypeStatus     Type = "status"
	TypeTask       Type = "task"
	TypeQuestion   Type = "question"
	TypeEscalation Type = "escalation"
	TypeCompletion Type = "completion"

	// Sub-kinds carrying coordinator side effects.
	TypeTaskCompleted     Type = "task-completed"
	TypeTaskBlocked       Type = "task-blocked"
	TypeCodeReviewRequest Type = "code-review-request"
	TypeDeploymentRequest Type = "deployment-request"
)

// Message is one routed message. Immutable once created.
type Message struct {
	ID               string            `json:"id"`
	Timestamp        time.Time         `json:"timestamp"`
	FromAgent        string            `json:"fromAgent"`
	ToAgent          string            `json:"toAgent"`
	Type             Type              `json:"type"`
	Content          string            `json:"content"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	RequiresResponse bool              `json:"requiresResponse"`
	ParentMessageID  string            `json:"parentMessageId,omitempty"`
}

// Handler receives messages delivered to a subscribed agent.
type Handler func(Message)

// Archiver persists delivered messages. Optional; implemented by the
// sqlite store.
type Archiver interface {
	SaveMessage(Message) error
}

// Router is the in-memory message bus. It validates every send against the
// active communication topology, records delivery, and tracks statistics.
type Router struct {
	mu          sync.Mutex
	model       CommunicationModel
	supervisors map[string]string // agent id → supervisor id ("" = none)
	handlers    map[string]Handler
	log         []Message
	responded   map[string]bool // request message id → response recorded

	sent          int
	blocked       int
	escalated     int
	byType        map[Type]int
	responseTotal time.Duration
	responseCount int

	archive Archiver
}

func New(model CommunicationModel) *Router {
	return &Router{
		model:       model,
		supervisors: make(map[string]string),
		handlers:    make(map[string]Handler),
		responded:   make(map[string]bool),
		byType:      make(map[Type]int),
	}
}

// SetArchive attaches an optional message archive. Archive failures are
// logged, never surfaced to senders.
func (r *Router) SetArchive(a Archiver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.archive = a
}

// RegisterHierarchy records an agent and its supervisor. Registration is
// incremental during deployment, so the cycle check runs here rather than
// at config load.
func (r *Router) RegisterHierarchy(agentID, supervisorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Walk the supervisor chain upward from the proposed supervisor;
	// reaching agentID again would close a cycle.
	cur := supervisorID
	for cur != "" {
		if cur == agentID {
			return fmt.Errorf("registering %s under %s would create a supervisor cycle", agentID, supervisorID)
		}
		cur = r.supervisors[cur]
	}

	r.supervisors[agentID] = supervisorID
	return nil
}

// Subscribe installs the delivery handler for an agent.
func (r *Router) Subscribe(agentID string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[agentID] = h
}

// Send validates, records, and delivers a message. A topology rejection
// returns ErrCommunicationBlocked (wrapped) and leaves history untouched.
func (r *Router) Send(from, to string, typ Type, content string, metadata map[string]string, requiresResponse bool) (Message, error) {
	r.mu.Lock()

	if !r.allowed(from, to) {
		r.blocked++
		r.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %s -> %s under %s topology", ErrCommunicationBlocked, from, to, r.model)
	}

	m := Message{
		ID:               uuid.NewString(),
		Timestamp:        time.Now(),
		FromAgent:        from,
		ToAgent:          to,
		Type:             typ,
		Content:          content,
		Metadata:         metadata,
		RequiresResponse: requiresResponse,
	}
	r.record(m)
	handler := r.handlers[to]
	r.mu.Unlock()

	r.deliver(m, handler)
	return m, nil
}

// Broadcast sends to each recipient, silently dropping those that fail
// topology validation. Returns the delivered messages and the drop count.
func (r *Router) Broadcast(from string, recipients []string, typ Type, content string, metadata map[string]string) ([]Message, int) {
	var delivered []Message
	dropped := 0
	for _, to := range recipients {
		m, err := r.Send(from, to, typ, content, metadata, false)
		if err != nil {
			dropped++
			continue
		}
		delivered = append(delivered, m)
	}
	if dropped > 0 {
		slog.Debug("broadcast dropped recipients", "from", from, "dropped", dropped)
	}
	return delivered, dropped
}

// Respond records a response to an earlier message. The response links back
// through ParentMessageID; if the original required a response, the latency
// feeds the average-response statistic. Responses bypass topology
// validation: a delivered request implies a permitted reply path.
func (r *Router) Respond(originalMessageID, from, content string, metadata map[string]string) (Message, error) {
	r.mu.Lock()

	var original *Message
	for i := len(r.log) - 1; i >= 0; i-- {
		if r.log[i].ID == originalMessageID {
			original = &r.log[i]
			break
		}
	}
	if original == nil {
		r.mu.Unlock()
		return Message{}, fmt.Errorf("respond: message %s not found", originalMessageID)
	}

	m := Message{
		ID:              uuid.NewString(),
		Timestamp:       time.Now(),
		FromAgent:       from,
		ToAgent:         original.FromAgent,
		Type:            original.Type,
		Content:         content,
		Metadata:        metadata,
		ParentMessageID: original.ID,
	}
	if original.RequiresResponse && !r.responded[original.ID] {
		r.responseTotal += m.Timestamp.Sub(original.Timestamp)
		r.responseCount++
	}
	r.responded[original.ID] = true
	r.record(m)
	handler := r.handlers[m.ToAgent]
	r.mu.Unlock()

	r.deliver(m, handler)
	return m, nil
}

// record appends to history and updates counters. Caller holds r.mu.
func (r *Router) record(m Message) {
	r.log = append(r.log, m)
	r.sent++
	r.byType[m.Type]++
	if m.Type == TypeEscalation {
		r.escalated++
	}
	if r.archive != nil {
		if err := r.archive.SaveMessage(m); err != nil {
			slog.Warn("message archive failed", "id", m.ID, "error", err)
		}
	}
}

// deliver invokes the recipient's handler outside the router lock. A
// handler-less recipient is not an error: the message stays in history for
// later PendingFor lookups.
func (r *Router) deliver(m Message, h Handler) {
	if h == nil {
		slog.Debug("no handler for recipient, message held in history", "to", m.ToAgent, "id", m.ID)
		return
	}
	h(m)
}

// PendingFor returns messages addressed to an agent that require a response
// and have none recorded yet.
func (r *Router) PendingFor(agentID string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []Message
	for _, m := range r.log {
		if m.ToAgent == agentID && m.RequiresResponse && !r.responded[m.ID] {
			pending = append(pending, m)
		}
	}
	return pending
}

// RecentMessages returns the last n messages in chronological order.
func (r *Router) RecentMessages(n int) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > len(r.log) {
		n = len(r.log)
	}
	out := make([]Message, n)
	copy(out, r.log[len(r.log)-n:])
	return out
}

// Conversation returns every message exchanged between two agents, in order.
func (r *Router) Conversation(a, b string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.log {
		if (m.FromAgent == a && m.ToAgent == b) || (m.FromAgent == b && m.ToAgent == a) {
			out = append(out, m)
		}
	}
	return out
}

// Prune drops history entries older than maxAge and returns how many were
// removed. Response bookkeeping for pruned requests is dropped with them.
func (r *Router) Prune(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	kept := r.log[:0]
	removed := 0
	for _, m := range r.log {
		if m.Timestamp.Before(cutoff) {
			delete(r.responded, m.ID)
			removed++
			continue
		}
		kept = append(kept, m)
	}
	r.log = kept
	return removed
}

// Statistics is a point-in-time view of router counters.
type Statistics struct {
	TotalMessages   int
	ByType          map[Type]int
	Blocked         int
	Escalated       int
	Pending         int
	AverageResponse time.Duration
}

func (r *Router) Statistics() Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := 0
	for _, m := range r.log {
		if m.RequiresResponse && !r.responded[m.ID] {
			pending++
		}
	}

	byType := make(map[Type]int, len(r.byType))
	for k, v := range r.byType {
		byType[k] = v
	}

	var avg time.Duration
	if r.responseCount > 0 {
		avg = r.responseTotal / time.Duration(r.responseCount)
	}

	return Statistics{
		TotalMessages:   r.sent,
		ByType:          byType,
		Blocked:         r.blocked,
		Escalated:       r.escalated,
		Pending:         pending,
		AverageResponse: avg,
	}
}
