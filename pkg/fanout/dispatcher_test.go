package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"threadcast/pkg/models"
	"threadcast/pkg/store"
	"threadcast/pkg/threadlog"
)

// fakePusher records pushes and fails the connections listed in errs.
type fakePusher struct {
	mu     sync.Mutex
	pushes map[string][][]byte
	errs   map[string]error
}

func newFakePusher() *fakePusher {
	return &fakePusher{pushes: map[string][][]byte{}, errs: map[string]error{}}
}

func (p *fakePusher) Push(ctx context.Context, connectionID string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.errs[connectionID]; ok {
		return err
	}
	p.pushes[connectionID] = append(p.pushes[connectionID], payload)
	return nil
}

func (p *fakePusher) sent(connectionID string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushes[connectionID]
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *threadlog.Log, *fakePusher) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	l := threadlog.New(s)
	p := newFakePusher()
	return New(l, p), l, p
}

func follow(t *testing.T, l *threadlog.Log, key models.ThreadKey, userID, connID string) {
	t.Helper()
	if _, _, err := l.Follow(context.Background(), key, userID, connID, time.Hour); err != nil {
		t.Fatalf("Follow %s/%s: %v", userID, connID, err)
	}
}

func TestDispatchExcludesActorAndDedups(t *testing.T) {
	d, l, p := newTestDispatcher(t)
	key := models.NewThreadKey("p1", "i1")
	follow(t, l, key, "u1", "A")
	follow(t, l, key, "u1b", "A") // same connection, second user
	follow(t, l, key, "u2", "B")

	events := []models.ThreadEvent{
		{ThreadKey: key, Time: 10, Payload: models.Message{UserID: "u1", Content: "hi"}},
	}
	results, err := d.Dispatch(context.Background(), Request{
		ThreadKey: key, Events: events, From: "A", ExcludeFrom: true,
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(results) != 1 || results[0].To != "B" || !results[0].Success {
		t.Fatalf("expected a single successful push to B; got %+v", results)
	}
	if got := p.sent("A"); len(got) != 0 {
		t.Fatalf("expected no push back to the actor; got %d", len(got))
	}

	var delivered []models.ThreadEvent
	if err := unmarshalBatch(p.sent("B")[0], &delivered); err != nil {
		t.Fatalf("decode delivered batch: %v", err)
	}
	if len(delivered) != 1 || delivered[0].Time != 10 {
		t.Fatalf("unexpected delivered batch: %+v", delivered)
	}
}

func TestDispatchDedupsSharedConnection(t *testing.T) {
	d, l, p := newTestDispatcher(t)
	key := models.NewThreadKey("p1", "i1")
	follow(t, l, key, "u1", "A")
	follow(t, l, key, "u2", "A")

	results, err := d.Dispatch(context.Background(), Request{
		ThreadKey: key,
		Events:    []models.ThreadEvent{{ThreadKey: key, Time: 1, Payload: models.ThreadClosed{ByUserID: "u1"}}},
		From:      "elsewhere",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one push for the shared connection; got %+v", results)
	}
	if got := p.sent("A"); len(got) != 1 {
		t.Fatalf("expected exactly one delivery to A; got %d", len(got))
	}
}

func TestDispatchPartialFailureIsolated(t *testing.T) {
	d, l, p := newTestDispatcher(t)
	key := models.NewThreadKey("p1", "i1")
	follow(t, l, key, "u1", "A")
	follow(t, l, key, "u2", "B")
	follow(t, l, key, "u3", "C")
	p.errs["B"] = fmt.Errorf("push: %w", ErrConnectionGone)
	p.errs["C"] = errors.New("write timeout")

	results, err := d.Dispatch(context.Background(), Request{
		ThreadKey: key,
		Events:    []models.ThreadEvent{{ThreadKey: key, Time: 1, Payload: models.Message{UserID: "u1", Content: "x"}}},
		From:      "A",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results; got %+v", results)
	}
	byTo := map[string]SendResult{}
	for _, r := range results {
		byTo[r.To] = r
	}
	if !byTo["A"].Success || byTo["B"].Success || byTo["C"].Success {
		t.Fatalf("unexpected outcomes: %+v", byTo)
	}
	if len(p.sent("A")) != 1 {
		t.Fatalf("expected A to receive the batch despite B and C failing")
	}

	gone := GoneConnectionIDs(results)
	sort.Strings(gone)
	if len(gone) != 1 || gone[0] != "B" {
		t.Fatalf("expected only B marked gone; got %v", gone)
	}
}

func TestDispatchNoFollowers(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	key := models.NewThreadKey("p1", "i1")
	results, err := d.Dispatch(context.Background(), Request{
		ThreadKey: key,
		Events:    []models.ThreadEvent{{ThreadKey: key, Time: 1, Payload: models.Message{UserID: "u1", Content: "x"}}},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results; got %+v", results)
	}
}

func TestPushTo(t *testing.T) {
	d, _, p := newTestDispatcher(t)
	r := d.PushTo(context.Background(), "A", "B", map[string]string{"status": "opened"})
	if !r.Success || r.To != "B" {
		t.Fatalf("unexpected result: %+v", r)
	}
	if len(p.sent("B")) != 1 {
		t.Fatalf("expected one delivery to B")
	}
}

func TestCleanupRemovesOnlyListed(t *testing.T) {
	d, l, _ := newTestDispatcher(t)
	key := models.NewThreadKey("p1", "i1")
	follow(t, l, key, "u1", "A")
	follow(t, l, key, "u2", "B")

	d.Cleanup(context.Background(), key, []string{"B", "never-followed"})

	left, err := l.Followers(context.Background(), key, threadlog.FollowerFilter{})
	if err != nil {
		t.Fatalf("Followers: %v", err)
	}
	if len(left) != 1 || left[0].Follow.ConnectionID != "A" {
		t.Fatalf("expected only A's subscription to survive; got %+v", left)
	}
}

// unmarshalBatch decodes a pushed batch back into events via the row codec.
func unmarshalBatch(data []byte, out *[]models.ThreadEvent) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	for _, row := range rows {
		e, ok := models.DecodeEvent(row)
		if !ok {
			return fmt.Errorf("undecodable row %s", row)
		}
		*out = append(*out, e)
	}
	return nil
}
