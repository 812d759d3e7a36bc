package lsproto

import "fmt"

type MessageType uint16

const (
	MsgHello MessageType = iota
	MsgError
	MsgFileWrite
	MsgFileDelete
	MsgAck
	MsgNack
	MsgDoSync
	MsgSyncDone
)

func (t MessageType) String() string {
	switch t {
	case MsgHello:
		return "HELLO"
	case MsgError:
		return "ERROR"
	case MsgFileWrite:
		return "FILE_WRITE"
	case MsgFileDelete:
		return "FILE_DELETE"
	case MsgAck:
		return "ACK"
	case MsgNack:
		return "NACK"
	case MsgDoSync:
		return "DO_SYNC"
	case MsgSyncDone:
		return "SYNC_DONE"
	default:
		return fmt.Sprintf("???(%d)", t)
	}
}
