package threads

import (
	"context"
	"fmt"

	"threadcast/pkg/fanout"
	"threadcast/pkg/models"
	"threadcast/pkg/threadlog"
)

// OpenThread opens the caller's thread. The thread_opened event, a follow
// for the opener and any imported historical activity land in one batch
// with distinct ordered times, so the opener need not issue a separate
// follow call. The opener gets a replay of the most recent events; other
// followers get the full replay on a first-ever opening, or just the
// opened event on a reopening (they already hold the history).
func (s *Service) OpenThread(ctx context.Context, c Caller, history []ActivityLogEntry) error {
	if !c.IsMine && !c.CanWatch {
		return fmt.Errorf("%w: opening this thread requires it to be yours or watch rights", ErrForbidden)
	}
	key := c.ThreadKey()

	before, err := s.log.Status(ctx, key)
	if err != nil {
		return err
	}
	if before == threadlog.StatusOpened {
		return fmt.Errorf("%w: thread %s is already opened", ErrSkipped, key)
	}

	batch := make([]models.ThreadEvent, 0, 2+len(history))
	batch = append(batch,
		models.ThreadEvent{ThreadKey: key, Payload: models.ThreadOpened{ByUserID: c.UserID}},
		models.ThreadEvent{ThreadKey: key, Payload: threadlog.NewFollow(c.UserID, c.ConnectionID, s.followTTL)},
	)
	batch = append(batch, historyEvents(history)...)

	stored, err := s.log.AddEvents(ctx, batch)
	if err != nil {
		return err
	}
	openedEvent := stored[0]

	replay, err := s.recent(ctx, key)
	if err != nil {
		return err
	}
	fanout.LogResults([]fanout.SendResult{
		s.fan.PushTo(ctx, c.ConnectionID, c.ConnectionID, replay),
	})

	outbound := []models.ThreadEvent{openedEvent}
	if before == threadlog.StatusNone {
		// First opening: other followers have never seen this thread.
		outbound = replay
	}
	results, err := s.fan.Dispatch(ctx, fanout.Request{
		ThreadKey:   key,
		Events:      outbound,
		From:        c.ConnectionID,
		ExcludeFrom: true,
	})
	if err != nil {
		return err
	}
	fanout.LogResults(results)
	s.fan.Cleanup(ctx, key, fanout.GoneConnectionIDs(results))
	return nil
}
