// Package bus implements the in-process message-bus mock the core
// consumes: per-mailbox FIFO queues with blocking receive (spec §5,
// §9). It is the out-of-scope collaborator specified only through the
// interface C3/C4 need — a real deployment would put a network or RPC
// transport behind the same Mailbox interface.
package bus

import (
	"container/list"
	"fmt"
	"sync"

	"seqsync/internal/check"
	"seqsync/internal/proto"
)

// Mailbox is one actor's inbox: FIFO delivery, blocking receive.
type Mailbox struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    *list.List
	poisoned bool
}

func newMailbox() *Mailbox {
	m := &Mailbox{queue: list.New()}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Send enqueues an envelope and wakes a blocked receiver. Per mailbox,
// delivery is FIFO (spec §5). A send to a mailbox that already
// delivered its poison message is dropped rather than queued — the
// actor that owned it is gone, and nothing will ever drain the queue
// again (e.g. the server finishing a reply to a client that poisoned
// itself mid-flight).
func (m *Mailbox) Send(env proto.Envelope) {
	m.mu.Lock()
	if m.poisoned {
		m.mu.Unlock()
		return
	}
	m.queue.PushBack(env)
	m.cond.Signal()
	m.mu.Unlock()
}

// Receive blocks until a message is available and returns it. Once it
// returns a poison message, the mailbox is marked poisoned and every
// later Send is dropped.
func (m *Mailbox) Receive() proto.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.queue.Len() == 0 {
		m.cond.Wait()
	}
	front := m.queue.Front()
	m.queue.Remove(front)
	env := front.Value.(proto.Envelope)
	if env.Type == proto.MessagePoison {
		m.poisoned = true
	}
	return env
}

// TryReceive returns the next message without blocking, or ok=false
// if the mailbox is empty.
func (m *Mailbox) TryReceive() (proto.Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queue.Len() == 0 {
		return proto.Envelope{}, false
	}
	front := m.queue.Front()
	m.queue.Remove(front)
	env := front.Value.(proto.Envelope)
	if env.Type == proto.MessagePoison {
		m.poisoned = true
	}
	return env, true
}

// Bus is a fixed set of mailboxes addressed by proto.ClientID, shared
// by all actors. Mailboxes are independently locked — the bus itself
// holds no mutable state once constructed.
type Bus struct {
	boxes map[proto.ClientID]*Mailbox
}

// New allocates a bus with one mailbox per id in ids.
func New(ids ...proto.ClientID) *Bus {
	check.Assert(len(ids) > 0, "bus.New: at least one mailbox required")
	b := &Bus{boxes: make(map[proto.ClientID]*Mailbox, len(ids))}
	for _, id := range ids {
		b.boxes[id] = newMailbox()
	}
	return b
}

// Mailbox returns the mailbox for id. It panics if id was not passed
// to New.
func (b *Bus) Mailbox(id proto.ClientID) *Mailbox {
	box, ok := b.boxes[id]
	if !ok {
		panic(fmt.Sprintf("bus: no mailbox registered for id %d", id))
	}
	return box
}

// Send routes an envelope to its addressed mailbox. The caller sets
// env.Sender; the destination is passed explicitly since the envelope
// itself carries no "to" field (mirrors the two-argument
// Send(dest, msg) shape of the mocked transport).
func (b *Bus) Send(to proto.ClientID, env proto.Envelope) {
	b.Mailbox(to).Send(env)
}

// Poison sends the distinguished termination message to id. The actor
// finishes whatever message it has in hand before observing it (§5).
func (b *Bus) Poison(id proto.ClientID) {
	b.Send(id, proto.PoisonEnvelope(proto.ServerID))
}
