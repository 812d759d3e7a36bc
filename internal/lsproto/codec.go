package lsproto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coder/websocket"
	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding indicates which wire encoding is used for WebSocket messages.
type Encoding uint8

const (
	EncodingJSON Encoding = iota
	EncodingMsgPack
)

func (e Encoding) String() string {
	switch e {
	case EncodingMsgPack:
		return "msgpack"
	default:
		return "json"
	}
}

const (
	magic0  = byte('L')
	magic1  = byte('S')
	version = byte(1)

	envelopeSize = 4
)

// PreferredEncoding parses a comma-separated preference list (e.g. "msgpack,json").
// Returns EncodingJSON if list is empty/unknown.
func PreferredEncoding(list string) Encoding {
	for _, p := range strings.Split(list, ",") {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "msgpack":
			return EncodingMsgPack
		case "json":
			return EncodingJSON
		}
	}
	return EncodingJSON
}

// Marshal encodes msg for WebSocket transport. JSON is sent as a text frame;
// msgpack as a binary frame behind a [magic][magic][version][encoding] envelope.
func Marshal(msg *Message, enc Encoding) (websocket.MessageType, []byte, error) {
	p, ok := payloads[msg.Type]
	if !ok {
		return 0, nil, fmt.Errorf("unknown message type: %d", msg.Type)
	}
	if !p.accept(msg.Data) {
		return 0, nil, fmt.Errorf("invalid %s payload type: %T", msg.Type, msg.Data)
	}

	if enc == EncodingJSON {
		data, err := json.Marshal(msg)
		return websocket.MessageText, data, err
	}

	payload, err := msgpack.Marshal(msg.Data)
	if err != nil {
		return websocket.MessageBinary, nil, err
	}
	body, err := msgpack.Marshal(&wireMessage{Id: msg.Id, Type: msg.Type, Data: payload})
	if err != nil {
		return websocket.MessageBinary, nil, err
	}

	buf := make([]byte, envelopeSize+len(body))
	buf[0], buf[1], buf[2], buf[3] = magic0, magic1, version, byte(enc)
	copy(buf[envelopeSize:], body)
	return websocket.MessageBinary, buf, nil
}

// Unmarshal decodes a WebSocket frame and reports the encoding the peer used
func Unmarshal(typ websocket.MessageType, data []byte) (*Message, Encoding, error) {
	switch typ {
	case websocket.MessageText:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, EncodingJSON, err
		}
		return &msg, EncodingJSON, nil

	case websocket.MessageBinary:
		if len(data) < envelopeSize || data[0] != magic0 || data[1] != magic1 {
			return nil, EncodingMsgPack, errors.New("binary message missing LS envelope")
		}
		if data[2] != version {
			return nil, EncodingMsgPack, fmt.Errorf("unsupported ws envelope version: %d", data[2])
		}
		enc := Encoding(data[3])
		body := data[envelopeSize:]
		switch enc {
		case EncodingMsgPack:
			msg, err := unmarshalMsgpack(body)
			return msg, enc, err
		case EncodingJSON:
			var msg Message
			if err := json.Unmarshal(body, &msg); err != nil {
				return nil, enc, err
			}
			return &msg, enc, nil
		default:
			return nil, enc, fmt.Errorf("unknown ws encoding: %d", enc)
		}

	default:
		return nil, EncodingJSON, fmt.Errorf("unsupported websocket message type: %v", typ)
	}
}

type wireMessage struct {
	Id   string             `msgpack:"id"`
	Type MessageType        `msgpack:"typ"`
	Data msgpack.RawMessage `msgpack:"dat"`
}

func unmarshalMsgpack(body []byte) (*Message, error) {
	var w wireMessage
	if err := msgpack.Unmarshal(body, &w); err != nil {
		return nil, err
	}

	p, ok := payloads[w.Type]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %d", w.Type)
	}
	data, err := p.decode(func(v any) error { return msgpack.Unmarshal(w.Data, v) })
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", w.Type, err)
	}

	return &Message{Id: w.Id, Type: w.Type, Data: data}, nil
}
