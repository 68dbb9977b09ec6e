package threads

import (
	"context"
	"fmt"
	"time"

	"threadcast/pkg/fanout"
	"threadcast/pkg/logger"
	"threadcast/pkg/models"
)

// CloseThread appends a thread_closed event and fans it out to every
// follower, including the actor's own connection if it follows.
func (s *Service) CloseThread(ctx context.Context, c Caller) error {
	key := c.ThreadKey()
	closed, err := s.log.AddEvent(ctx, key, models.ThreadClosed{ByUserID: c.UserID})
	if err != nil {
		return err
	}
	return s.fanOut(ctx, key, []models.ThreadEvent{closed}, c.ConnectionID, false)
}

// SendMessage appends a message event and fans it out to every follower.
// The sender receives it too when subscribed; delivery is how a message
// becomes visible, there is no separate read path for live clients.
func (s *Service) SendMessage(ctx context.Context, c Caller, content string) error {
	if content == "" {
		return fmt.Errorf("empty message content")
	}
	if !c.CanWrite && !c.CanWatch && !c.IsMine {
		return fmt.Errorf("%w: sending a message requires write rights", ErrForbidden)
	}
	key := c.ThreadKey()
	msg, err := s.log.AddEvent(ctx, key, models.Message{UserID: c.UserID, Content: content})
	if err != nil {
		return err
	}
	return s.fanOut(ctx, key, []models.ThreadEvent{msg}, c.ConnectionID, false)
}

// Follow subscribes the caller's connection, replays the most recent
// events to it and, when the subscription is new, notifies the existing
// followers of the new follower.
func (s *Service) Follow(ctx context.Context, c Caller) error {
	key := c.ThreadKey()
	fe, created, err := s.log.Follow(ctx, key, c.UserID, c.ConnectionID, s.followTTL)
	if err != nil {
		return err
	}

	replay, err := s.recent(ctx, key)
	if err != nil {
		return err
	}
	fanout.LogResults([]fanout.SendResult{
		s.fan.PushTo(ctx, c.ConnectionID, c.ConnectionID, replay),
	})

	if !created {
		logger.Debug("follow_already_subscribed", "thread", string(key), "connection", c.ConnectionID)
		return nil
	}
	return s.fanOut(ctx, key, []models.ThreadEvent{fe.Event()}, c.ConnectionID, true)
}

// Unfollow retracts the caller's subscription and notifies the remaining
// followers with a synthesized unfollow event mirroring the removed
// follow. Unfollowing without a subscription is a logged no-op.
func (s *Service) Unfollow(ctx context.Context, c Caller) error {
	key := c.ThreadKey()
	removed, err := s.log.Unfollow(ctx, key, c.UserID, c.ConnectionID)
	if err != nil {
		return err
	}
	if removed == nil {
		logger.Info("unfollow_skipped", "thread", string(key), "connection", c.ConnectionID)
		return nil
	}
	unfollow := models.ThreadEvent{
		ThreadKey: key,
		Time:      time.Now().UnixMilli(),
		Payload: models.Unfollow{
			UserID:       removed.Follow.UserID,
			ConnectionID: removed.Follow.ConnectionID,
		},
	}
	return s.fanOut(ctx, key, []models.ThreadEvent{unfollow}, c.ConnectionID, true)
}

// StatusMessage is the one-shot summary pushed by ThreadStatus. Derived
// from the log, never stored.
type StatusMessage struct {
	Status string `json:"status"`
}

// ThreadStatus pushes the derived thread status to the caller's own
// connection.
func (s *Service) ThreadStatus(ctx context.Context, c Caller) error {
	status, err := s.log.Status(ctx, c.ThreadKey())
	if err != nil {
		return err
	}
	res := s.fan.PushTo(ctx, c.ConnectionID, c.ConnectionID, []StatusMessage{{Status: string(status)}})
	fanout.LogResults([]fanout.SendResult{res})
	if res.Err != nil {
		return fmt.Errorf("status push: %w", res.Err)
	}
	return nil
}

// fanOut dispatches a batch to the thread's followers and cleans up the
// subscriptions of connections reported gone.
func (s *Service) fanOut(ctx context.Context, key models.ThreadKey, events []models.ThreadEvent, from string, excludeFrom bool) error {
	results, err := s.fan.Dispatch(ctx, fanout.Request{
		ThreadKey:   key,
		Events:      events,
		From:        from,
		ExcludeFrom: excludeFrom,
	})
	if err != nil {
		return err
	}
	fanout.LogResults(results)
	s.fan.Cleanup(ctx, key, fanout.GoneConnectionIDs(results))
	return nil
}
