package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"threadcast/pkg/logger"
	"threadcast/pkg/push"
	"threadcast/pkg/threads"
)

const pongWait = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Frames are authenticated individually by token; the socket itself
	// carries no ambient authority, so cross-origin upgrades are allowed.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWS upgrades the connection, attaches it to the hub and serves
// action frames until the socket closes.
func (a *API) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn := push.NewConn(r.URL.Query().Get("user"), ws)
	a.hub.Attach(conn)
	defer func() {
		a.hub.Detach(conn)
		a.limits.Forget(conn.ID)
	}()

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("ws_read_closed", "connection", conn.ID, "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		a.handleFrame(r.Context(), conn, data)
	}
}

// handleFrame decodes and executes one inbound action, replying with a
// per-frame ack on the same connection.
func (a *API) handleFrame(ctx context.Context, conn *push.Conn, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		a.reply(conn, "", outcomeBadRequest)
		return
	}
	if !a.limits.Allow(conn.ID) {
		logger.Warn("ws_rate_limited", "connection", conn.ID, "action", f.Action)
		a.reply(conn, f.Action, "rate_limited")
		return
	}
	caller, err := a.gw.Decode(f.Token, conn.ID)
	if err != nil {
		logger.Warn("ws_token_rejected", "connection", conn.ID, "action", f.Action, "error", err)
		a.reply(conn, f.Action, outcomeUnauthorized)
		return
	}

	err = a.dispatch(ctx, caller, f)
	if errors.Is(err, errBadPayload) {
		a.reply(conn, f.Action, outcomeBadRequest)
		return
	}
	out := outcome(err)
	switch {
	case err == nil:
	case errors.Is(err, threads.ErrSkipped):
		logger.Warn("action_skipped", "action", f.Action, "connection", conn.ID, "error", err)
	default:
		logger.Error("action_failed", "action", f.Action, "connection", conn.ID, "error", err)
	}
	a.reply(conn, f.Action, out)
}

var errBadPayload = errors.New("bad payload")

func (a *API) dispatch(ctx context.Context, caller threads.Caller, f Frame) error {
	switch f.Action {
	case ActionOpenThread:
		var p openPayload
		if len(f.Payload) > 0 {
			if err := json.Unmarshal(f.Payload, &p); err != nil {
				return errBadPayload
			}
		}
		return a.svc.OpenThread(ctx, caller, p.History)
	case ActionCloseThread:
		return a.svc.CloseThread(ctx, caller)
	case ActionSendMessage:
		var p messagePayload
		if err := json.Unmarshal(f.Payload, &p); err != nil || p.Message == "" {
			return errBadPayload
		}
		return a.svc.SendMessage(ctx, caller, p.Message)
	case ActionFollow:
		return a.svc.Follow(ctx, caller)
	case ActionUnfollow:
		return a.svc.Unfollow(ctx, caller)
	case ActionThreadStatus:
		return a.svc.ThreadStatus(ctx, caller)
	default:
		return errBadPayload
	}
}

func (a *API) reply(conn *push.Conn, action, status string) {
	msg := ack{Action: action, Status: outcomeOK}
	if status != outcomeOK {
		msg.Status = "error"
		msg.Error = status
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := conn.Send(b); err != nil {
		logger.Debug("ws_ack_dropped", "connection", conn.ID, "error", err)
	}
}
