package store

import (
	"context"
	"testing"
	"time"

	"threadcast/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAssignsTime(t *testing.T) {
	s := openTestStore(t)
	key := models.NewThreadKey("p1", "i1")

	before := time.Now().UnixMilli()
	e, err := s.Append(context.Background(), models.ThreadEvent{
		ThreadKey: key,
		Payload:   models.ThreadOpened{ByUserID: "u1"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if e.Time < before {
		t.Fatalf("expected assigned time >= %d; got %d", before, e.Time)
	}

	got, err := s.Query(context.Background(), key, QueryOptions{Ascending: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].Time != e.Time {
		t.Fatalf("expected 1 event at time %d; got %+v", e.Time, got)
	}
}

func TestAppendBatchCollidingTimes(t *testing.T) {
	s := openTestStore(t)
	key := models.NewThreadKey("p1", "i1")

	batch := []models.ThreadEvent{
		{ThreadKey: key, Time: 5, Payload: models.Message{UserID: "u1", Content: "a"}},
		{ThreadKey: key, Time: 5, Payload: models.Message{UserID: "u1", Content: "b"}},
		{ThreadKey: key, Time: 5, Payload: models.Message{UserID: "u1", Content: "c"}},
	}
	out, err := s.AppendBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	want := []int64{5, 6, 7}
	for i, e := range out {
		if e.Time != want[i] {
			t.Fatalf("expected times %v; got [%d %d %d]", want, out[0].Time, out[1].Time, out[2].Time)
		}
	}
	// input order preserved in the returned slice
	for i, content := range []string{"a", "b", "c"} {
		if out[i].Payload.(models.Message).Content != content {
			t.Fatalf("expected returned order a,b,c; got %+v", out)
		}
	}
}

func TestAppendBatchPreservesNonCollidingOrder(t *testing.T) {
	s := openTestStore(t)
	key := models.NewThreadKey("p1", "i1")

	batch := []models.ThreadEvent{
		{ThreadKey: key, Time: 100, Payload: models.AttemptStarted{AttemptID: "a1"}},
		{ThreadKey: key, Time: 50, Payload: models.AttemptStarted{AttemptID: "a2"}},
		{ThreadKey: key, Time: 75, Payload: models.AttemptStarted{AttemptID: "a3"}},
	}
	out, err := s.AppendBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	for i, want := range []int64{100, 50, 75} {
		if out[i].Time != want {
			t.Fatalf("expected untouched time %d at index %d; got %d", want, i, out[i].Time)
		}
	}
}

func TestAppendBatchAssignsOrderedDefaults(t *testing.T) {
	s := openTestStore(t)
	key := models.NewThreadKey("p1", "i1")

	out, err := s.AppendBatch(context.Background(), []models.ThreadEvent{
		{ThreadKey: key, Payload: models.ThreadOpened{ByUserID: "u1"}},
		{ThreadKey: key, Payload: models.Follow{UserID: "u1", ConnectionID: "c1"}},
	})
	if err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	if out[0].Time >= out[1].Time {
		t.Fatalf("expected strictly increasing defaults; got %d then %d", out[0].Time, out[1].Time)
	}
}

func TestQueryOrderLimitFilter(t *testing.T) {
	s := openTestStore(t)
	key := models.NewThreadKey("p1", "i1")
	other := models.NewThreadKey("p2", "i1")

	seed := []models.ThreadEvent{
		{ThreadKey: key, Time: 1, Payload: models.ThreadOpened{ByUserID: "u1"}},
		{ThreadKey: key, Time: 2, Payload: models.Message{UserID: "u1", Content: "hi"}},
		{ThreadKey: key, Time: 3, Payload: models.ThreadClosed{ByUserID: "u1"}},
		{ThreadKey: other, Time: 2, Payload: models.Message{UserID: "u2", Content: "elsewhere"}},
	}
	if _, err := s.AppendBatch(context.Background(), seed); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}

	asc, err := s.Query(context.Background(), key, QueryOptions{Ascending: true})
	if err != nil {
		t.Fatalf("Query asc: %v", err)
	}
	if len(asc) != 3 || asc[0].Time != 1 || asc[2].Time != 3 {
		t.Fatalf("expected 3 events ascending; got %+v", asc)
	}

	desc, err := s.Query(context.Background(), key, QueryOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Query desc: %v", err)
	}
	if len(desc) != 2 || desc[0].Time != 3 || desc[1].Time != 2 {
		t.Fatalf("expected [3 2] descending; got %+v", desc)
	}

	msgs, err := s.Query(context.Background(), key, QueryOptions{
		Ascending: true,
		Filter:    func(e models.ThreadEvent) bool { return e.Payload.Kind() == models.KindMessage },
	})
	if err != nil {
		t.Fatalf("Query filter: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Time != 2 {
		t.Fatalf("expected one message at time 2; got %+v", msgs)
	}
}

func TestQueryDropsUndecodableRows(t *testing.T) {
	s := openTestStore(t)
	key := models.NewThreadKey("p1", "i1")

	if _, err := s.Append(context.Background(), models.ThreadEvent{
		ThreadKey: key, Time: 1, Payload: models.Message{UserID: "u1", Content: "ok"},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// a future event shape this build does not know
	if err := s.db.Set(eventKey(key, 2), []byte(`{"type":"reaction","time":2,"emoji":"+1"}`), nil); err != nil {
		t.Fatalf("Set raw: %v", err)
	}

	got, err := s.Query(context.Background(), key, QueryOptions{Ascending: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].Time != 1 {
		t.Fatalf("expected unknown row dropped; got %+v", got)
	}
}

func TestRemove(t *testing.T) {
	s := openTestStore(t)
	key := models.NewThreadKey("p1", "i1")

	e, err := s.Append(context.Background(), models.ThreadEvent{
		ThreadKey: key, Payload: models.Follow{UserID: "u1", ConnectionID: "c1"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Remove(context.Background(), key, e.Time); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	// removing again is idempotent
	if err := s.Remove(context.Background(), key, e.Time); err != nil {
		t.Fatalf("Remove twice: %v", err)
	}
	got, err := s.Query(context.Background(), key, QueryOptions{Ascending: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty thread; got %+v", got)
	}
}

func TestExpiredFollowHiddenAndSwept(t *testing.T) {
	s := openTestStore(t)
	key := models.NewThreadKey("p1", "i1")

	past := time.Now().Add(-time.Hour).Unix()
	future := time.Now().Add(time.Hour).Unix()
	seed := []models.ThreadEvent{
		{ThreadKey: key, Time: 1, Payload: models.Follow{UserID: "u1", ConnectionID: "dead", Expires: past}},
		{ThreadKey: key, Time: 2, Payload: models.Follow{UserID: "u2", ConnectionID: "live", Expires: future}},
	}
	if _, err := s.AppendBatch(context.Background(), seed); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}

	visible, err := s.Query(context.Background(), key, QueryOptions{Ascending: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(visible) != 1 || visible[0].Payload.(models.Follow).ConnectionID != "live" {
		t.Fatalf("expected only the live follow; got %+v", visible)
	}

	n, err := s.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row swept; got %d", n)
	}
	raw, err := s.Query(context.Background(), key, QueryOptions{Ascending: true, IncludeExpired: true})
	if err != nil {
		t.Fatalf("Query raw: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected expired row physically gone; got %+v", raw)
	}
}
