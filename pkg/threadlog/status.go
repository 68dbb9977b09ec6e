package threadlog

import (
	"context"
	"fmt"

	"threadcast/pkg/models"
)

// Status of a thread as derived from its log. Never stored.
type Status string

const (
	StatusNone   Status = "none"
	StatusOpened Status = "opened"
	StatusClosed Status = "closed"
)

// Status recomputes the thread status from the most recent thread_opened
// and thread_closed events. The log is the only state; replaying it always
// yields the same answer.
func (l *Log) Status(ctx context.Context, key models.ThreadKey) (Status, error) {
	opened, err := l.latest(ctx, key, models.KindThreadOpened)
	if err != nil {
		return StatusNone, fmt.Errorf("thread status: %w", err)
	}
	closed, err := l.latest(ctx, key, models.KindThreadClosed)
	if err != nil {
		return StatusNone, fmt.Errorf("thread status: %w", err)
	}
	return statusFromEvents(opened, closed), nil
}

func (l *Log) latest(ctx context.Context, key models.ThreadKey, kind string) (*models.ThreadEvent, error) {
	events, err := l.Events(ctx, key, QueryOptions{
		Ascending: false,
		Limit:     1,
		Filter:    func(e models.ThreadEvent) bool { return e.Payload.Kind() == kind },
	})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	e := events[0]
	return &e, nil
}

func statusFromEvents(opened, closed *models.ThreadEvent) Status {
	if opened == nil && closed == nil {
		return StatusNone
	}
	var openedTime int64
	if opened != nil {
		openedTime = opened.Time
	}
	if closed == nil || closed.Time < openedTime {
		return StatusOpened
	}
	return StatusClosed
}
