package notify

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
	"time"
)

// Frame is the wire shape of one pushed event.
type Frame struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	SentAt    string         `json:"sent_at"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Peer is one live subscriber connection. Writes are serialized so
// concurrent events never interleave frames on the wire.
type Peer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// NewPeer wraps a connection writer as a subscriber peer.
func NewPeer(w io.Writer) *Peer {
	return &Peer{encoder: json.NewEncoder(w)}
}

func (p *Peer) writeFrame(frame Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// Hub fans session events out to each recipient's subscribed peers.
// One user may hold several connections; all of them receive every
// event addressed to that user.
type Hub struct {
	mu    sync.Mutex
	peers map[string]map[*Peer]struct{}
	clock func() time.Time
}

// NewHub creates an empty subscriber hub.
func NewHub() *Hub {
	return &Hub{
		peers: make(map[string]map[*Peer]struct{}),
		clock: time.Now,
	}
}

// Subscribe registers peer to receive events addressed to userID.
func (h *Hub) Subscribe(userID string, peer *Peer) {
	if userID == "" || peer == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.peers[userID]
	if !ok {
		set = make(map[*Peer]struct{})
		h.peers[userID] = set
	}
	set[peer] = struct{}{}
}

// Unsubscribe removes peer from userID's subscriber set.
func (h *Hub) Unsubscribe(userID string, peer *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(userID, peer)
}

func (h *Hub) removeLocked(userID string, peer *Peer) {
	set, ok := h.peers[userID]
	if !ok {
		return
	}
	delete(set, peer)
	if len(set) == 0 {
		delete(h.peers, userID)
	}
}

// SubscriberCount returns how many peers are subscribed for userID.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers[userID])
}

// Publish writes the event to every peer of every recipient. Failed
// writers are dropped from the hub; delivery problems are logged and
// never surfaced as errors.
func (h *Hub) Publish(_ context.Context, event Event) error {
	frame := Frame{
		Type:      string(event.Type),
		SessionID: event.SessionID,
		SentAt:    h.clock().UTC().Format(time.RFC3339),
		Payload:   event.Payload,
	}

	type delivery struct {
		userID string
		peer   *Peer
	}
	h.mu.Lock()
	var deliveries []delivery
	for _, userID := range event.Recipients {
		for peer := range h.peers[userID] {
			deliveries = append(deliveries, delivery{userID: userID, peer: peer})
		}
	}
	h.mu.Unlock()

	for _, d := range deliveries {
		if err := d.peer.writeFrame(frame); err != nil {
			log.Printf("notify: drop subscriber user_id=%s session_id=%s event=%s err=%v",
				d.userID, event.SessionID, event.Type, err)
			h.mu.Lock()
			h.removeLocked(d.userID, d.peer)
			h.mu.Unlock()
		}
	}
	return nil
}
