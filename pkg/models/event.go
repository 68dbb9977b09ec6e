package models

import (
	"encoding/json"
	"fmt"
)

// Event kind discriminants as stored in the row's "type" attribute.
const (
	KindThreadOpened   = "thread_opened"
	KindThreadClosed   = "thread_closed"
	KindFollow         = "follow"
	KindAttemptStarted = "attempt_started"
	KindSubmission     = "submission"
	KindMessage        = "message"
	// KindUnfollow is synthesized for delivery only; it is never stored.
	KindUnfollow = "unfollow"
)

// Payload is the tagged variant carried by a ThreadEvent.
type Payload interface {
	Kind() string
}

type ThreadOpened struct {
	ByUserID string `json:"byUserId"`
}

type ThreadClosed struct {
	ByUserID string `json:"byUserId"`
}

// Follow registers a live connection as a subscriber of the thread. Its
// presence in the log is the subscription's sole source of truth. Expires
// is an epoch-seconds deadline after which the row is treated as gone.
type Follow struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
	Expires      int64  `json:"ttl"`
}

type AttemptStarted struct {
	AttemptID string `json:"attemptId"`
}

type Submission struct {
	AttemptID string   `json:"attemptId"`
	AnswerID  string   `json:"answerId,omitempty"`
	Score     *float64 `json:"score,omitempty"`
	Validated *bool    `json:"validated,omitempty"`
}

type Message struct {
	UserID  string `json:"userId"`
	Content string `json:"content"`
}

// Unfollow mirrors a removed Follow. Synthesized for delivery only.
type Unfollow struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
}

func (ThreadOpened) Kind() string   { return KindThreadOpened }
func (ThreadClosed) Kind() string   { return KindThreadClosed }
func (Follow) Kind() string         { return KindFollow }
func (AttemptStarted) Kind() string { return KindAttemptStarted }
func (Submission) Kind() string     { return KindSubmission }
func (Message) Kind() string        { return KindMessage }
func (Unfollow) Kind() string       { return KindUnfollow }

// ThreadEvent is one immutable fact in a thread's log, ordered by Time.
// Time is a millisecond epoch value, strictly unique within a thread.
type ThreadEvent struct {
	ThreadKey ThreadKey
	Time      int64
	Payload   Payload
}

// FollowEvent is a ThreadEvent known to carry a Follow payload.
type FollowEvent struct {
	ThreadKey ThreadKey
	Time      int64
	Follow    Follow
}

// AsFollow narrows an event to a FollowEvent when its payload is a follow.
func AsFollow(e ThreadEvent) (FollowEvent, bool) {
	f, ok := e.Payload.(Follow)
	if !ok {
		return FollowEvent{}, false
	}
	return FollowEvent{ThreadKey: e.ThreadKey, Time: e.Time, Follow: f}, true
}

// Event returns the follow event back in its generic form.
func (f FollowEvent) Event() ThreadEvent {
	return ThreadEvent{ThreadKey: f.ThreadKey, Time: f.Time, Payload: f.Follow}
}

// record is the flat row shape written to the store and pushed to
// connections. All variant fields are optional; "type" discriminates.
type record struct {
	Type         string   `json:"type"`
	Thread       string   `json:"thread"`
	Time         int64    `json:"time"`
	ByUserID     string   `json:"byUserId,omitempty"`
	UserID       string   `json:"userId,omitempty"`
	ConnectionID string   `json:"connectionId,omitempty"`
	Expires      int64    `json:"ttl,omitempty"`
	AttemptID    string   `json:"attemptId,omitempty"`
	AnswerID     string   `json:"answerId,omitempty"`
	Score        *float64 `json:"score,omitempty"`
	Validated    *bool    `json:"validated,omitempty"`
	Content      string   `json:"content,omitempty"`
}

// MarshalJSON flattens the event into its row shape.
func (e ThreadEvent) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("event has no payload")
	}
	r := record{Type: e.Payload.Kind(), Thread: string(e.ThreadKey), Time: e.Time}
	switch p := e.Payload.(type) {
	case ThreadOpened:
		r.ByUserID = p.ByUserID
	case ThreadClosed:
		r.ByUserID = p.ByUserID
	case Follow:
		r.UserID = p.UserID
		r.ConnectionID = p.ConnectionID
		r.Expires = p.Expires
	case AttemptStarted:
		r.AttemptID = p.AttemptID
	case Submission:
		r.AttemptID = p.AttemptID
		r.AnswerID = p.AnswerID
		r.Score = p.Score
		r.Validated = p.Validated
	case Message:
		r.UserID = p.UserID
		r.Content = p.Content
	case Unfollow:
		r.UserID = p.UserID
		r.ConnectionID = p.ConnectionID
	default:
		return nil, fmt.Errorf("unknown event payload %T", e.Payload)
	}
	return json.Marshal(r)
}

// DecodeEvent parses a stored row. A row whose shape is unknown (future
// event kinds, malformed values) yields ok=false so read paths can drop it
// instead of failing the whole query.
func DecodeEvent(data []byte) (ThreadEvent, bool) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return ThreadEvent{}, false
	}
	e := ThreadEvent{ThreadKey: ThreadKey(r.Thread), Time: r.Time}
	switch r.Type {
	case KindThreadOpened:
		e.Payload = ThreadOpened{ByUserID: r.ByUserID}
	case KindThreadClosed:
		e.Payload = ThreadClosed{ByUserID: r.ByUserID}
	case KindFollow:
		if r.ConnectionID == "" {
			return ThreadEvent{}, false
		}
		e.Payload = Follow{UserID: r.UserID, ConnectionID: r.ConnectionID, Expires: r.Expires}
	case KindAttemptStarted:
		e.Payload = AttemptStarted{AttemptID: r.AttemptID}
	case KindSubmission:
		e.Payload = Submission{AttemptID: r.AttemptID, AnswerID: r.AnswerID, Score: r.Score, Validated: r.Validated}
	case KindMessage:
		e.Payload = Message{UserID: r.UserID, Content: r.Content}
	default:
		return ThreadEvent{}, false
	}
	return e, true
}
