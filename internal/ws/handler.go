package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nchavez4/monster-arena-backend/internal/auth"
	"github.com/nchavez4/monster-arena-backend/internal/hub"
	"github.com/nchavez4/monster-arena-backend/internal/types"
)

// Handler upgrades an authenticated client to a websocket and bridges it to
// the hub: one writer goroutine drains the outbox, the read loop turns client
// frames into hub messages. The outbox channel is owned here and never
// closed; the writer simply stops when the connection context ends.
func Handler(h *hub.Hub, tokens *auth.Service, log *zap.Logger) http.HandlerFunc {
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := tokens.VerifyToken(r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		outbox := make(chan types.ServerMessage, 16)

		h.Inbox() <- hub.Connect{
			ConnID:   connID,
			UserID:   claims.UserID,
			Username: claims.Username,
			Outbox:   outbox,
		}
		defer func() {
			h.Inbox() <- hub.Disconnect{ConnID: connID, UserID: claims.UserID}
		}()

		log.Info("client connected",
			zap.Int("user_id", claims.UserID), zap.String("username", claims.Username))

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case msg := <-outbox:
					payload, err := json.Marshal(msg)
					if err != nil {
						log.Error("marshal server message", zap.Error(err))
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
					_ = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
				case <-writeCtx.Done():
					return
				}
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"error","message":"bad json"}`))
				continue
			}

			msg, ok := toHubMsg(claims.UserID, cm)
			if !ok {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"error","message":"unknown type"}`))
				continue
			}
			h.Inbox() <- msg
		}
	}
}

func toHubMsg(userID int, m types.ClientMessage) (hub.HubMsg, bool) {
	switch m.Type {
	case types.MsgJoinLobby:
		return hub.JoinLobby{UserID: userID}, true
	case types.MsgSelectMonsters:
		return hub.SelectMonsters{UserID: userID, MonsterIDs: m.MonsterIDs}, true
	case types.MsgUseSkill:
		return hub.UseSkill{
			UserID:    userID,
			MonsterID: m.MonsterID,
			SkillID:   m.SkillID,
			TargetID:  m.TargetID,
		}, true
	case types.MsgLeaveLobby:
		return hub.LeaveLobby{UserID: userID}, true
	default:
		return nil, false
	}
}
