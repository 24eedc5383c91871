// Package ws is the sync relay between a hotel's registers: every client
// joins its hotel's room, terminal snapshots pushed by one register are
// applied server-side and rebroadcast to the others, and server events
// (order updates, settlements) fan out to the whole room.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/annapurna-pos/api/internal/terminal"
)

// Event types carried over the relay.
const (
	EventSnapshot     = "terminal.snapshot"
	EventOrderUpdated = "order.updated"
	EventBillSettled  = "bill.settled"
)

// Event is a relay message. Snapshot events carry a full terminal.Snapshot;
// the relay never diffs, the last writer wins wholesale.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SnapshotApplier persists an inbound snapshot before it is rebroadcast.
// Implementations must serialize against local mutation.
type SnapshotApplier interface {
	ApplySnapshot(ctx context.Context, hotelID uuid.UUID, snap terminal.Snapshot) error
}

// hotelEvent routes an event to one hotel's room. exclude skips the sender
// so a register never echoes its own snapshot back.
type hotelEvent struct {
	HotelID uuid.UUID
	Event   Event
	exclude *Client
}

// Hub maintains the active clients grouped into hotel rooms.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *hotelEvent

	applier SnapshotApplier
	log     *zap.Logger

	mu sync.RWMutex
}

func NewHub(applier SnapshotApplier, log *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *hotelEvent, 256),
		applier:    applier,
		log:        log,
	}
}

// Run is the hub's main loop. Call as a goroutine: go hub.Run().
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.hotelID] == nil {
				h.rooms[client.hotelID] = make(map[*Client]bool)
			}
			h.rooms[client.hotelID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.hotelID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.hotelID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event *hotelEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.rooms[event.HotelID]

	message, err := json.Marshal(event.Event)
	if err != nil {
		h.log.Error("marshal relay event", zap.Error(err))
		return
	}

	for client := range clients {
		if client == event.exclude {
			continue
		}
		select {
		case client.send <- message:
		default:
			// Slow consumer: drop the connection, it will reconnect and
			// resync from a fresh snapshot.
			close(client.send)
			delete(h.rooms[event.HotelID], client)
			if len(h.rooms[event.HotelID]) == 0 {
				delete(h.rooms, event.HotelID)
			}
		}
	}
}

// handleInbound applies a client-pushed snapshot and rebroadcasts it to the
// rest of the room. Non-snapshot client messages are dropped.
func (h *Hub) handleInbound(sender *Client, raw []byte) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		h.log.Warn("relay: bad client message", zap.Error(err))
		return
	}
	if event.Type != EventSnapshot {
		return
	}

	var snap terminal.Snapshot
	if err := json.Unmarshal(event.Payload, &snap); err != nil {
		h.log.Warn("relay: bad snapshot payload", zap.Error(err))
		return
	}

	if h.applier != nil {
		if err := h.applier.ApplySnapshot(context.Background(), sender.hotelID, snap); err != nil {
			h.log.Error("relay: apply snapshot", zap.Error(err))
			return
		}
	}

	h.broadcast <- &hotelEvent{HotelID: sender.hotelID, Event: event, exclude: sender}
}

// PublishSnapshot pushes the local terminal state to every register in the
// hotel's room. Satisfies the service layer's Relay.
func (h *Hub) PublishSnapshot(hotelID uuid.UUID, snap terminal.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		h.log.Error("marshal snapshot", zap.Error(err))
		return
	}
	h.broadcast <- &hotelEvent{
		HotelID: hotelID,
		Event:   Event{Type: EventSnapshot, Payload: payload},
	}
}

// PublishEvent fans a server event out to the hotel's room.
func (h *Hub) PublishEvent(hotelID uuid.UUID, eventType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("marshal event payload", zap.String("type", eventType), zap.Error(err))
		return
	}
	h.broadcast <- &hotelEvent{
		HotelID: hotelID,
		Event:   Event{Type: eventType, Payload: raw},
	}
}
