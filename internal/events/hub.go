// Package events is the in-process fan-out layer. State changes committed by
// the dispatcher are published to named rooms; websocket sessions (or any
// other transport) subscribe to rooms and drain a bounded per-subscriber
// buffer. Delivery is best-effort and never durable: a subscriber that is
// not present at emit time sees nothing, and a subscriber that cannot keep
// up loses events with a warning.
package events

import (
	"fmt"
	"log"
	"sync"

	"github.com/frontdesk-io/frontdesk-ce/internal/models"
)

// Canonical queue-updated payload types.
const (
	TypeQueueAdded            = "queue-added"
	TypeNextCalled            = "next-called"
	TypeNoMoreQueues          = "no-more-queues"
	TypeQueueRecalled         = "queue-recalled"
	TypePreviousRecalled      = "previous-recalled"
	TypeQueueSkipped          = "queue-skipped"
	TypeQueueTransferred      = "queue-transferred"
	TypeQueueRequeuedAll      = "queue-requeued-all"
	TypeQueueRequeuedSelected = "queue-requeued-selected"
	TypeQueueStatusUpdated    = "queue-status-updated"
)

// Channel-level message kinds carried to subscribers. Window pause/resume
// is published as serving-status-changed; there is no separate
// window-status kind on the wire.
const (
	TypeQueueUpdated         = "queue-updated"
	TypeServingStatusChanged = "serving-status-changed"
	TypeFAQUpdated           = "faq-updated"
	TypeForceLogout          = "force-logout"
)

// Room name builders.
const (
	RoomKiosk     = "kiosk"
	RoomSharedFAQ = "admin-shared-faq"
)

func RoomAdmin(office models.Office) string { return "admin-" + string(office) }
func RoomTicket(ticketID string) string     { return "queue-" + ticketID }

// Event is one structured record published to a room.
type Event struct {
	Type     string        `json:"type"`
	Office   models.Office `json:"office,omitempty"`
	WindowID string        `json:"window_id,omitempty"`
	Data     interface{}   `json:"data,omitempty"`
}

// Message is what a subscriber receives: the event plus the room it was
// published to.
type Message struct {
	Room  string `json:"room"`
	Event Event  `json:"event"`
}

// subscriberBuffer is the per-subscriber queue depth. Overflow drops.
const subscriberBuffer = 64

// Subscriber is one attached session.
type Subscriber struct {
	SessionID string
	UserID    string

	hub *Hub
	ch  chan Message
}

// C is the subscriber's receive channel. Closed on Unsubscribe.
func (s *Subscriber) C() <-chan Message { return s.ch }

// Hub routes events to room subscribers and tracks which sessions belong to
// which user for targeted force-logout.
type Hub struct {
	logger *log.Logger

	mu       sync.Mutex
	rooms    map[string]map[*Subscriber]struct{}
	sessions map[string]map[string]*Subscriber // userID -> sessionID -> sub
	closed   bool
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		logger:   logger,
		rooms:    make(map[string]map[*Subscriber]struct{}),
		sessions: make(map[string]map[string]*Subscriber),
	}
}

// Subscribe attaches a session. userID may be empty for anonymous kiosk or
// portal connections.
func (h *Hub) Subscribe(sessionID, userID string) *Subscriber {
	sub := &Subscriber{
		SessionID: sessionID,
		UserID:    userID,
		hub:       h,
		ch:        make(chan Message, subscriberBuffer),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	if userID != "" {
		byUser, ok := h.sessions[userID]
		if !ok {
			byUser = make(map[string]*Subscriber)
			h.sessions[userID] = byUser
		}
		byUser[sessionID] = sub
	}
	return sub
}

// Unsubscribe detaches the session from every room and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscriber) {
	for room, members := range h.rooms {
		if _, ok := members[sub]; ok {
			delete(members, sub)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	if sub.UserID != "" {
		if byUser, ok := h.sessions[sub.UserID]; ok {
			if byUser[sub.SessionID] == sub {
				delete(byUser, sub.SessionID)
			}
			if len(byUser) == 0 {
				delete(h.sessions, sub.UserID)
			}
		}
	}
	if sub.ch != nil {
		close(sub.ch)
		sub.ch = nil
	}
}

// Join adds the subscriber to a room.
func (h *Hub) Join(sub *Subscriber, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || sub.ch == nil {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Subscriber]struct{})
		h.rooms[room] = members
	}
	members[sub] = struct{}{}
}

// Leave removes the subscriber from a room.
func (h *Hub) Leave(sub *Subscriber, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Emit publishes an event to one room. Emits under the hub lock, so events
// land in every subscriber's buffer in emit order. A full buffer drops the
// event for that subscriber only.
func (h *Hub) Emit(room string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for sub := range h.rooms[room] {
		select {
		case sub.ch <- Message{Room: room, Event: ev}:
		default:
			h.logger.Printf("event dropped: room=%s type=%s session=%s (subscriber buffer full)",
				room, ev.Type, sub.SessionID)
		}
	}
}

// EmitAll publishes the same event to several rooms in order.
func (h *Hub) EmitAll(ev Event, rooms ...string) {
	for _, room := range rooms {
		h.Emit(room, ev)
	}
}

// ForceLogout delivers a force-logout message to every session of a user.
func (h *Hub) ForceLogout(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	byUser := h.sessions[userID]
	for _, sub := range byUser {
		msg := Message{Event: Event{Type: TypeForceLogout, Data: map[string]string{"user_id": userID}}}
		select {
		case sub.ch <- msg:
		default:
			h.logger.Printf("force-logout dropped: session=%s (subscriber buffer full)", sub.SessionID)
		}
	}
	return len(byUser)
}

// Sessions returns the live session ids for a user.
func (h *Hub) Sessions(userID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	byUser := h.sessions[userID]
	out := make([]string, 0, len(byUser))
	for id := range byUser {
		out = append(out, id)
	}
	return out
}

// Close detaches every subscriber. Part of server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	seen := make(map[*Subscriber]struct{})
	for _, members := range h.rooms {
		for sub := range members {
			seen[sub] = struct{}{}
		}
	}
	for _, byUser := range h.sessions {
		for _, sub := range byUser {
			seen[sub] = struct{}{}
		}
	}
	for sub := range seen {
		if sub.ch != nil {
			close(sub.ch)
			sub.ch = nil
		}
	}
	h.rooms = make(map[string]map[*Subscriber]struct{})
	h.sessions = make(map[string]map[string]*Subscriber)
}

// String implements fmt.Stringer for logging.
func (e Event) String() string {
	return fmt.Sprintf("%s office=%s window=%s", e.Type, e.Office, e.WindowID)
}
