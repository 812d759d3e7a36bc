package lsproto

// Hello opens a session. The client sends it first and the agent answers with
// its own Hello carrying the same Id.
type Hello struct {
	AppID           string `json:"app"`
	DeviceID        string `json:"dev"`
	ProtocolVersion string `json:"ver"`
}

func NewHello(appID, deviceID string) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgHello,
		Data: &Hello{AppID: appID, DeviceID: deviceID, ProtocolVersion: ProtocolVersion},
	}
}

type Error struct {
	Code    int    `json:"cod"`
	Message string `json:"msg"`
}

func NewError(code int, message string) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgError,
		Data: &Error{Code: code, Message: message},
	}
}

// FileWrite carries a whole file. Path is relative to the app's sync root.
type FileWrite struct {
	Path    string `json:"pth"`
	Hash    string `json:"hsh"`
	Length  int64  `json:"len"`
	Content []byte `json:"con,omitempty"`
}

func NewFileWrite(path, hash string, content []byte) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgFileWrite,
		Data: &FileWrite{Path: path, Hash: hash, Length: int64(len(content)), Content: content},
	}
}

type FileDelete struct {
	Path string `json:"pth"`
}

func NewFileDelete(path string) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgFileDelete,
		Data: &FileDelete{Path: path},
	}
}

type Ack struct {
	OriginalId string `json:"oid"`
}

func NewAck(originalMsgId string) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgAck,
		Data: &Ack{OriginalId: originalMsgId},
	}
}

type Nack struct {
	OriginalId string `json:"oid"`
	Error      string `json:"err"`
}

func NewNack(originalMsgId string, err string) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgNack,
		Data: &Nack{OriginalId: originalMsgId, Error: err},
	}
}

// DoSync asks the app to apply every file written in the session
type DoSync struct {
	OperationID string `json:"oid"`
	FastSync    bool   `json:"fst"`
}

func NewDoSync(operationID string, fastSync bool) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgDoSync,
		Data: &DoSync{OperationID: operationID, FastSync: fastSync},
	}
}

// SyncDone completes a DoSync. A non-empty Error marks the operation failed.
type SyncDone struct {
	OperationID string `json:"oid"`
	DidRefresh  bool   `json:"ref"`
	Error       string `json:"err,omitempty"`
}

func NewSyncDone(operationID string, didRefresh bool, err string) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgSyncDone,
		Data: &SyncDone{OperationID: operationID, DidRefresh: didRefresh, Error: err},
	}
}
