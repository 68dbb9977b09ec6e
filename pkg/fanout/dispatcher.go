// Package fanout pushes new event batches to every current follower of a
// thread and reconciles subscriptions whose connection is gone.
package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"threadcast/pkg/logger"
	"threadcast/pkg/metrics"
	"threadcast/pkg/models"
	"threadcast/pkg/threadlog"
)

// ErrConnectionGone marks a push failure meaning the remote connection no
// longer exists. Pusher implementations wrap it; it is the only push error
// kind that triggers subscription cleanup.
var ErrConnectionGone = errors.New("connection gone")

// Pusher delivers one serialized batch to one live connection. Transport
// timeouts and cancellation are the pusher's business; a failed push is
// terminal for that delivery attempt.
type Pusher interface {
	Push(ctx context.Context, connectionID string, payload []byte) error
}

// SendResult is the per-recipient outcome of one dispatch.
type SendResult struct {
	Success bool
	From    string
	To      string
	Err     error
}

// Dispatcher resolves followers from the thread log and fans batches out.
type Dispatcher struct {
	log    *threadlog.Log
	pusher Pusher
}

// New builds a Dispatcher.
func New(log *threadlog.Log, pusher Pusher) *Dispatcher {
	return &Dispatcher{log: log, pusher: pusher}
}

// Request describes one fan-out.
type Request struct {
	ThreadKey models.ThreadKey
	// Events are delivered to each recipient as a single ordered batch,
	// never split across pushes.
	Events []models.ThreadEvent
	// From is the acting connection, recorded on every result.
	From string
	// ExcludeFrom skips pushing back to From (the actor already has the
	// events via the synchronous response path).
	ExcludeFrom bool
}

// Dispatch pushes the batch to every current follower, each independently
// and in parallel. One recipient failing never aborts delivery to the
// others; partial failure is reported through the results, never as an
// error. The returned error covers only follower resolution.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) ([]SendResult, error) {
	followers, err := d.log.Followers(ctx, req.ThreadKey, threadlog.FollowerFilter{})
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	targets := make([]string, 0, len(followers))
	seen := make(map[string]struct{}, len(followers))
	for _, f := range followers {
		id := f.Follow.ConnectionID
		if req.ExcludeFrom && id == req.From {
			continue
		}
		// A user may hold one follow row per connection; never push twice
		// to the same connection in one dispatch.
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}
	if len(targets) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(req.Events)
	if err != nil {
		return nil, fmt.Errorf("dispatch: marshal events: %w", err)
	}

	results := make([]SendResult, len(targets))
	var wg sync.WaitGroup
	for i, to := range targets {
		wg.Add(1)
		go func(i int, to string) {
			defer wg.Done()
			results[i] = d.push(ctx, req.From, to, payload)
		}(i, to)
	}
	wg.Wait()
	return results, nil
}

// PushTo delivers an arbitrary one-shot payload (event replay, status
// summary) to a single connection, outside of follower resolution.
func (d *Dispatcher) PushTo(ctx context.Context, from, to string, v any) SendResult {
	payload, err := json.Marshal(v)
	if err != nil {
		return SendResult{From: from, To: to, Err: fmt.Errorf("marshal payload: %w", err)}
	}
	return d.push(ctx, from, to, payload)
}

func (d *Dispatcher) push(ctx context.Context, from, to string, payload []byte) SendResult {
	err := d.pusher.Push(ctx, to, payload)
	switch {
	case err == nil:
		metrics.Pushes.WithLabelValues(metrics.PushOK).Inc()
	case errors.Is(err, ErrConnectionGone):
		metrics.Pushes.WithLabelValues(metrics.PushGone).Inc()
	default:
		metrics.Pushes.WithLabelValues(metrics.PushTransient).Inc()
	}
	return SendResult{Success: err == nil, From: from, To: to, Err: err}
}

// GoneConnectionIDs filters dispatch results down to the recipients whose
// connection no longer exists. Transient failures are deliberately left
// out: a temporary blip must not delete a live subscription.
func GoneConnectionIDs(results []SendResult) []string {
	var out []string
	for _, r := range results {
		if !r.Success && errors.Is(r.Err, ErrConnectionGone) {
			out = append(out, r.To)
		}
	}
	return out
}

// LogResults records the outcome of a dispatch. Failures are warnings:
// the triggering action already succeeded in mutating the log.
func LogResults(results []SendResult) {
	for _, r := range results {
		if r.Success {
			logger.Debug("push_delivered", "from", r.From, "to", r.To)
			continue
		}
		logger.Warn("push_failed", "from", r.From, "to", r.To, "error", r.Err)
	}
}
