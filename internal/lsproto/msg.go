package lsproto

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ProtocolVersion is exchanged in HELLO; peers with a different major refuse the session
const ProtocolVersion = "1"

type Message struct {
	Id   string      `json:"id"`
	Type MessageType `json:"typ"`
	Data any         `json:"dat"`
}

func (m *Message) String() string {
	return fmt.Sprintf("%s(%s)", m.Type, m.Id)
}

// UnmarshalJSON decodes Data into the payload type registered for Type
func (m *Message) UnmarshalJSON(data []byte) error {
	var temp struct {
		Id   string          `json:"id"`
		Type MessageType     `json:"typ"`
		Data json.RawMessage `json:"dat"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	p, ok := payloads[temp.Type]
	if !ok {
		return fmt.Errorf("unknown message type: %d", temp.Type)
	}
	payload, err := p.decode(func(v any) error { return json.Unmarshal(temp.Data, v) })
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", temp.Type, err)
	}

	m.Id = temp.Id
	m.Type = temp.Type
	m.Data = payload
	return nil
}

// DataAs returns the payload of msg as T whether it was stored as a value or a pointer
func DataAs[T any](msg *Message) (T, bool) {
	switch v := msg.Data.(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	var zero T
	return zero, false
}

type payloadCodec struct {
	decode func(decode func(any) error) (any, error)
	accept func(data any) bool
}

func payload[T any]() payloadCodec {
	return payloadCodec{
		decode: func(decode func(any) error) (any, error) {
			var v T
			if err := decode(&v); err != nil {
				return nil, err
			}
			return v, nil
		},
		accept: func(data any) bool {
			switch data.(type) {
			case T, *T:
				return true
			}
			return false
		},
	}
}

var payloads = map[MessageType]payloadCodec{
	MsgHello:      payload[Hello](),
	MsgError:      payload[Error](),
	MsgFileWrite:  payload[FileWrite](),
	MsgFileDelete: payload[FileDelete](),
	MsgAck:        payload[Ack](),
	MsgNack:       payload[Nack](),
	MsgDoSync:     payload[DoSync](),
	MsgSyncDone:   payload[SyncDone](),
}

func generateID() string {
	return uuid.NewString()
}
