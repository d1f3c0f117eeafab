package proto

import "testing"

func TestComputeSizeZeroWhenDisabled(t *testing.T) {
	env := Envelope{Type: MessageRequest, Request: &Request{Kind: ReqUpdateValue, Value: 42}}
	env.ComputeSize(false)
	if env.Size != 0 {
		t.Fatalf("Size = %d, want 0 when calc is disabled", env.Size)
	}
}

func TestComputeSizeMarshalsPopulatedPayload(t *testing.T) {
	env := Envelope{Type: MessageRequest, Request: &Request{Kind: ReqUpdateValue, Value: 42}}
	env.ComputeSize(true)
	if env.Size == 0 {
		t.Fatalf("Size = 0, want nonzero for a populated request")
	}

	reply := Envelope{Type: MessageResponse, Reply: &Response{RequestKind: ReqSync}}
	reply.ComputeSize(true)
	if reply.Size == 0 {
		t.Fatalf("Size = 0, want nonzero for a populated reply")
	}
}

func TestComputeSizeZeroWhenNoPayload(t *testing.T) {
	env := Envelope{Type: MessagePoison}
	env.ComputeSize(true)
	if env.Size != 0 {
		t.Fatalf("Size = %d, want 0 for a payload-less envelope", env.Size)
	}
}

func TestPoisonEnvelopeHasNoPayload(t *testing.T) {
	env := PoisonEnvelope(ServerID)
	if env.Type != MessagePoison {
		t.Fatalf("Type = %v, want MessagePoison", env.Type)
	}
	if env.Request != nil || env.Reply != nil {
		t.Fatalf("PoisonEnvelope carries a payload: %+v", env)
	}
}
