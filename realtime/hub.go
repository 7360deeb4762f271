package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/kendall-kelly/delyra-api/logger"
	"github.com/kendall-kelly/delyra-api/metrics"
	"github.com/kendall-kelly/delyra-api/services"
	"go.uber.org/zap"
)

// ChatStore persists messages and notifies receivers who missed the live event
type ChatStore interface {
	Send(ctx context.Context, in services.SendMessageInput) (*services.ChatMessage, error)
	NotifyReceiver(ctx context.Context, msg *services.ChatMessage) error
}

// Hub tracks room membership for the connections of this instance and fans
// messages out to them. Membership is never persisted.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	members map[*Client]map[string]struct{}

	closed      bool
	drained     chan struct{}
	drainedOnce sync.Once

	chat       ChatStore
	queue      *services.TaskQueue
	backplane  Backplane
	instanceID string
	metrics    *metrics.Metrics
	log        *zap.Logger
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithBackplane relays broadcasts through b so rooms span instances
func WithBackplane(b Backplane) HubOption {
	return func(h *Hub) { h.backplane = b }
}

// WithTaskQueue runs offline notifications on q instead of inline
func WithTaskQueue(q *services.TaskQueue) HubOption {
	return func(h *Hub) { h.queue = q }
}

// WithMetrics records connection and message metrics on m
func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates an empty hub backed by chat
func NewHub(chat ChatStore, opts ...HubOption) *Hub {
	h := &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		members:    make(map[*Client]map[string]struct{}),
		drained:    make(chan struct{}),
		chat:       chat,
		instanceID: uuid.NewString(),
		log:        zap.L().With(zap.String("component", "realtime")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InstanceID identifies this hub on the backplane
func (h *Hub) InstanceID() string {
	return h.instanceID
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.members[c] = make(map[string]struct{})
	closed := h.closed
	h.mu.Unlock()
	h.metrics.ConnectionOpened()
	if closed {
		c.shutdown()
	}
}

// unregister drops c from every room and closes its send channel
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	rooms, ok := h.members[c]
	if ok {
		for room := range rooms {
			h.removeLocked(room, c)
		}
		delete(h.members, c)
		close(c.Send)
		if h.closed && len(h.members) == 0 {
			h.drainedOnce.Do(func() { close(h.drained) })
		}
	}
	h.mu.Unlock()
	if ok {
		h.metrics.ConnectionClosed()
	}
}

// Close sends every local connection a going-away close frame and waits until
// all of them have unregistered or ctx ends. Connections registered afterwards
// are closed as soon as they arrive.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.members))
	for c := range h.members {
		clients = append(clients, c)
	}
	if len(clients) == 0 {
		h.drainedOnce.Do(func() { close(h.drained) })
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.shutdown()
	}
	h.log.Info("closing realtime connections", zap.Int("connections", len(clients)))

	select {
	case <-h.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join adds c to room
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.rooms[room]
	if !ok {
		set = make(map[*Client]struct{})
		h.rooms[room] = set
	}
	set[c] = struct{}{}
	if _, ok := h.members[c]; !ok {
		h.members[c] = make(map[string]struct{})
	}
	h.members[c][room] = struct{}{}
}

// Leave removes c from room
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(room, c)
	if rooms, ok := h.members[c]; ok {
		delete(rooms, room)
	}
}

func (h *Hub) removeLocked(room string, c *Client) {
	set, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.rooms, room)
	}
}

// RoomSize returns the number of local connections in room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// HasMember reports whether userID has a local connection in room
func (h *Hub) HasMember(room string, userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// broadcastLocal queues frame for every local member of room and returns how many got it
func (h *Hub) broadcastLocal(room string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.rooms[room] {
		if c.enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

// Broadcast delivers frame to local members of room and relays it on the backplane
func (h *Hub) Broadcast(ctx context.Context, room string, frame []byte) {
	h.broadcastLocal(room, frame)
	if h.backplane == nil {
		return
	}
	if err := h.backplane.Publish(ctx, h.instanceID, room, frame); err != nil {
		logger.WithContext(ctx, h.log).Warn("backplane publish failed", zap.String("room", room), zap.Error(err))
	}
}

// Deliver is the backplane callback for frames from other instances
func (h *Hub) Deliver(origin, room string, frame []byte) {
	if origin == h.instanceID {
		return
	}
	h.broadcastLocal(room, frame)
}

// HandleFrame dispatches one inbound socket frame from c
func (h *Hub) HandleFrame(ctx context.Context, c *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.SendError("invalid frame")
		return
	}

	switch frame.Event {
	case EventJoinChat, EventLeaveChat:
		var p JoinPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.SendError("invalid " + frame.Event + " payload")
			return
		}
		if p.UserID != 0 && p.UserID != c.UserID {
			c.SendError("userId does not match the authenticated user")
			return
		}
		room := RoomKey(c.UserID, p.OtherID, p.OrderID)
		if frame.Event == EventLeaveChat {
			h.Leave(c, room)
			return
		}
		h.Join(c, room)
		c.SendEvent(EventJoined, joinedPayload{Room: room})
		logger.WithContext(ctx, c.log).Debug("joined room", zap.String("room", room))

	case EventSendMessage:
		var p SendPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.SendError("invalid send-message payload")
			return
		}
		h.sendMessage(ctx, c, p)

	default:
		c.SendError("unknown event " + frame.Event)
	}
}

func (h *Hub) sendMessage(ctx context.Context, c *Client, p SendPayload) {
	if p.SenderID != 0 && p.SenderID != c.UserID {
		c.SendError("sender_id does not match the authenticated user")
		return
	}

	msg, err := h.chat.Send(ctx, services.SendMessageInput{
		SenderID:   c.UserID,
		ReceiverID: p.ReceiverID,
		OrderID:    p.OrderID,
		Body:       p.Message,
	})
	if err != nil {
		se := services.AsError(err)
		if se.Kind == services.KindDependency {
			logger.WithContext(ctx, c.log).Error("failed to persist chat message", zap.Error(err))
			c.SendError("message could not be sent")
			return
		}
		c.SendError(se.Message)
		return
	}

	room := RoomKey(msg.SenderID, msg.ReceiverID, msg.OrderID)
	frame, err := encodeFrame(EventReceiveMessage, msg)
	if err != nil {
		logger.WithContext(ctx, c.log).Error("failed to encode chat message", zap.Error(err))
		return
	}
	h.Broadcast(ctx, room, frame)

	if h.HasMember(room, msg.ReceiverID) {
		return
	}
	notify := func(ctx context.Context) error { return h.chat.NotifyReceiver(ctx, msg) }
	if h.queue != nil {
		h.queue.Submit(ctx, "notify_chat_message", notify)
		return
	}
	if err := notify(ctx); err != nil {
		logger.WithContext(ctx, c.log).Warn("chat notification failed", zap.Error(err))
	}
}
