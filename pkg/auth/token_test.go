package auth

import (
	"encoding/json"
	"testing"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestDecodeUnsigned(t *testing.T) {
	g := NewGateway("")
	raw := mustJSON(t, Token{
		ParticipantID: "p1",
		ItemID:        "i1",
		UserID:        "u1",
		IsMine:        true,
		CanWrite:      true,
	})
	c, err := g.Decode(raw, "conn-1")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.ConnectionID != "conn-1" || c.UserID != "u1" || c.ParticipantID != "p1" || c.ItemID != "i1" {
		t.Fatalf("unexpected caller: %+v", c)
	}
	if !c.IsMine || !c.CanWrite || c.CanWatch {
		t.Fatalf("unexpected rights: %+v", c)
	}
}

func TestDecodeRequiredFields(t *testing.T) {
	g := NewGateway("")
	cases := []json.RawMessage{
		nil,
		[]byte(`not json`),
		mustJSON(t, Token{ItemID: "i1", UserID: "u1"}),
		mustJSON(t, Token{ParticipantID: "p1", UserID: "u1"}),
		mustJSON(t, Token{ParticipantID: "p1", ItemID: "i1"}),
	}
	for _, raw := range cases {
		if _, err := g.Decode(raw, "conn-1"); err == nil {
			t.Fatalf("expected rejection of %s", raw)
		}
	}
}

func TestDecodeSignature(t *testing.T) {
	g := NewGateway("s3cret")
	tok := Token{ParticipantID: "p1", ItemID: "i1", UserID: "u1", CanWatch: true}

	if _, err := g.Decode(mustJSON(t, tok), "conn-1"); err == nil {
		t.Fatalf("expected unsigned token to be rejected")
	}

	tok.Signature = g.Sign(tok)
	c, err := g.Decode(mustJSON(t, tok), "conn-1")
	if err != nil {
		t.Fatalf("Decode signed: %v", err)
	}
	if !c.CanWatch {
		t.Fatalf("unexpected caller: %+v", c)
	}

	// the signature binds participant, item and user
	tok.UserID = "someone-else"
	if _, err := g.Decode(mustJSON(t, tok), "conn-1"); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}

	other := NewGateway("another-secret")
	if _, err := other.Decode(mustJSON(t, tok), "conn-1"); err == nil {
		t.Fatalf("expected token signed with a different secret to be rejected")
	}
}

func TestLimiterPool(t *testing.T) {
	p := NewLimiterPool(1, 2)
	for i := 0; i < 2; i++ {
		if !p.Allow("conn-1") {
			t.Fatalf("expected burst allowance at attempt %d", i)
		}
	}
	if p.Allow("conn-1") {
		t.Fatalf("expected the burst to be exhausted")
	}
	// independent keys have independent budgets
	if !p.Allow("conn-2") {
		t.Fatalf("expected a fresh key to be allowed")
	}
	// forgetting resets the budget
	p.Forget("conn-1")
	if !p.Allow("conn-1") {
		t.Fatalf("expected a forgotten key to start over")
	}
}
