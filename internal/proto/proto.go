// Package proto defines the message envelope and request/response
// payloads exchanged between client and server actors over the bus.
package proto

import "encoding/json"

// ClientID identifies a mailbox. ServerID is the reserved server mailbox.
type ClientID uint32

// ServerID is the mailbox address of the server actor (magic number, §6).
const ServerID ClientID = 0

// SentinelCellID denotes "before the first cell" — the head of the list.
const SentinelCellID CellID = 0

// MessageType tags the envelope payload. Reserved types occupy 0..4;
// application request/response kinds start at 1024.
type MessageType uint32

const (
	MessagePing    MessageType = 0
	MessagePong    MessageType = 1
	MessageString  MessageType = 2
	MessagePoison  MessageType = 3
	MessageConnect MessageType = 4

	MessageRequest  MessageType = 1024
	MessageResponse MessageType = 1025
)

// CellID identifies a cell. 0 is the sentinel "before first" id.
type CellID uint64

// IterationID is the server's monotonic mutation counter. 0 means
// "never observed".
type IterationID uint64

// Cell is a single (id, value) element of the ordered sequence.
type Cell struct {
	ID    CellID
	Value uint32
}

// ModKind tags a Modification's variant.
type ModKind uint8

const (
	ModUpdate ModKind = iota
	ModInsert
	ModDelete
)

// Modification is the sum type appended to history on every accepted
// mutation (spec §3). Only the fields relevant to Kind are populated.
type Modification struct {
	At IterationID // iteration this modification was recorded at
	K  ModKind

	Cell       Cell   // Update, Insert
	NearCellID CellID // Insert: anchor cell
	DeletedID  CellID // Delete
}

// RequestKind tags a Request's variant.
type RequestKind uint8

const (
	ReqLoadState RequestKind = iota
	ReqUpdateValue
	ReqInsertValue
	ReqDeleteValue
	ReqSync
)

// Request is the payload carried inside an application envelope of
// type MessageRequest. Only the fields relevant to Kind are populated.
type Request struct {
	Kind              RequestKind
	PreviousIteration IterationID

	CellID CellID // UpdateValue, DeleteValue
	Value  uint32 // UpdateValue, InsertValue

	NearCellID CellID // InsertValue
}

// Deltas is the three ordered streams shipped in every response body.
// Clients MUST apply inserts, then updates, then deletes (spec §4.4).
type Deltas struct {
	Updates []Modification
	Inserts []Modification
	Deletes []Modification
}

// ResponseBase is the payload shared by every response variant
// (design note "variant-to-variant subclassing": one base embedded by
// composition, each variant adds its own extras).
type ResponseBase struct {
	Iteration IterationID
	Deltas    Deltas
}

// Response is the payload carried inside an application envelope of
// type MessageResponse. NewCellID and Cells are populated only for
// InsertValue and LoadState responses respectively.
type Response struct {
	ResponseBase
	RequestKind RequestKind

	NewCellID CellID // InsertValue
	Cells     []Cell // LoadState
}

// Envelope is the message-bus frame (spec §6). The payload is Request
// or Reply depending on Type; Poison/Connect/Ping/Pong carry no payload.
type Envelope struct {
	Type    MessageType
	Sender  ClientID
	Request *Request
	Reply   *Response
	Size    uint64
}

// PoisonEnvelope builds the distinguished termination message (§5).
func PoisonEnvelope(sender ClientID) Envelope {
	return Envelope{Type: MessagePoison, Sender: sender}
}

// ComputeSize fills Size from the marshaled length of the populated
// payload when calc is true; otherwise Size stays zero. There is no
// wire transport to justify a binary codec (see DESIGN.md), so a JSON
// length is used purely for bookkeeping (§6 WithSizeCalculation).
func (e *Envelope) ComputeSize(calc bool) {
	if !calc {
		e.Size = 0
		return
	}
	var buf []byte
	switch {
	case e.Request != nil:
		buf, _ = json.Marshal(e.Request)
	case e.Reply != nil:
		buf, _ = json.Marshal(e.Reply)
	}
	e.Size = uint64(len(buf))
}
