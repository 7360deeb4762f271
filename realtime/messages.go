package realtime

import "encoding/json"

// Socket event names
const (
	EventJoinChat       = "join-chat"
	EventLeaveChat      = "leave-chat"
	EventSendMessage    = "send-message"
	EventReceiveMessage = "receive-message"
	EventJoined         = "joined"
	EventError          = "error"
)

// Frame is the wire shape of every socket message in both directions
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload is accepted by join-chat and leave-chat
type JoinPayload struct {
	UserID  uint  `json:"userId"`
	OtherID uint  `json:"otherId"`
	OrderID *uint `json:"orderId,omitempty"`
}

// SendPayload is accepted by send-message
type SendPayload struct {
	SenderID   uint   `json:"sender_id"`
	ReceiverID uint   `json:"receiver_id"`
	OrderID    *uint  `json:"order_id,omitempty"`
	Message    string `json:"message"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type joinedPayload struct {
	Room string `json:"room"`
}

func encodeFrame(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
