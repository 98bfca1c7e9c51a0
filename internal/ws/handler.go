// Package ws is the transport boundary: it decodes client events off a
// websocket and forwards them to the registry and room actors, keeping all
// draft semantics out of the connection handler.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smite-tools/draft-server/internal/draft"
	"github.com/smite-tools/draft-server/internal/registry"
	"github.com/smite-tools/draft-server/internal/room"
	"github.com/smite-tools/draft-server/internal/session"
	"github.com/smite-tools/draft-server/pkg/types"
)

const writeTimeout = 3 * time.Second

type Options struct {
	Registry *registry.Registry
	Store    session.Store // nil when persistence is not configured
	Sequence []draft.TurnSpec
	Log      *zap.Logger
	// OriginPatterns is passed through to the websocket accept options;
	// empty means same-origin only.
	OriginPatterns []string
}

func Handler(opts Options) http.HandlerFunc {
	log := opts.Log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		out := make(chan types.ServerEvent, 16)
		var cur *room.Room

		defer func() {
			if cur != nil {
				cur.Send(room.Leave{ConnID: connID})
			}
		}()

		// forward hands m to a room, reporting the stopped-room case to the
		// client; the caller then drops its handle so a rejoin can work.
		forward := func(rm *room.Room, m room.Msg) bool {
			if rm.Send(m) {
				return true
			}
			writeError(r.Context(), conn, "Room not found")
			return false
		}

		// Writer goroutine. The room closes out when this connection is
		// detached; writeCtx covers the never-joined case.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case ev, ok := <-out:
					if !ok {
						return
					}
					writeEvent(writeCtx, conn, ev)
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

			var ev types.ClientEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				writeError(r.Context(), conn, "Malformed message")
				continue
			}

			switch ev.Type {
			case types.EvCreateRoom:
				if cur != nil {
					writeError(r.Context(), conn, "Already in a room")
					continue
				}
				reply := make(chan registry.Created, 1)
				opts.Registry.Inbox() <- registry.CreateRoom{Reply: reply}
				created := <-reply
				if !forward(created.Room, room.Join{ConnID: connID, Name: ev.DisplayName, Outbox: out, Creator: true}) {
					continue
				}
				cur = created.Room
				log.Info("room created", zap.String("room", created.Code), zap.String("conn", connID))

			case types.EvJoinRoom:
				if cur != nil {
					writeError(r.Context(), conn, "Already in a room")
					continue
				}
				reply := make(chan *room.Room, 1)
				opts.Registry.Inbox() <- registry.GetRoom{Code: ev.RoomID, Reply: reply}
				rm := <-reply
				if rm == nil {
					writeError(r.Context(), conn, "Room not found")
					continue
				}
				if !forward(rm, room.Join{ConnID: connID, Name: ev.DisplayName, Outbox: out}) {
					continue
				}
				cur = rm

			case types.EvJoinSession:
				if cur != nil {
					writeError(r.Context(), conn, "Already in a room")
					continue
				}
				if ev.RoomID == "" {
					writeError(r.Context(), conn, "Missing session id")
					continue
				}
				state := loadOrFresh(r.Context(), opts, ev.RoomID, log)
				reply := make(chan *room.Room, 1)
				opts.Registry.Inbox() <- registry.EnsureRoom{Code: ev.RoomID, State: state, Reply: reply}
				rm := <-reply
				if !forward(rm, room.Join{ConnID: connID, Name: ev.DisplayName, Outbox: out, Session: true}) {
					continue
				}
				cur = rm

			case types.EvDraftAction:
				if cur == nil {
					writeError(r.Context(), conn, "Not in a room")
					continue
				}
				side, okSide := parseSide(ev.Side)
				kind, okKind := parseKind(ev.Kind)
				if !okSide || !okKind {
					writeError(r.Context(), conn, "Unknown side or action kind")
					continue
				}
				clientTurn := -1
				if ev.ClientTurnIndex != nil {
					clientTurn = *ev.ClientTurnIndex
				}
				if !forward(cur, room.Propose{
					ConnID:     connID,
					Side:       side,
					Kind:       kind,
					ItemID:     ev.ItemID,
					ClientTurn: clientTurn,
				}) {
					cur = nil
				}

			case types.EvUndoAction:
				if cur == nil {
					writeError(r.Context(), conn, "Not in a room")
					continue
				}
				if !forward(cur, room.UndoLast{ConnID: connID}) {
					cur = nil
				}

			case types.EvNextTurn:
				if cur == nil {
					writeError(r.Context(), conn, "Not in a room")
					continue
				}
				if ev.TurnIndex == nil {
					writeError(r.Context(), conn, "Missing turn index")
					continue
				}
				if !forward(cur, room.AdvanceTurn{ConnID: connID, TurnIndex: *ev.TurnIndex}) {
					cur = nil
				}

			case types.EvSendMessage:
				if cur == nil || ev.Text == "" {
					continue
				}
				if !cur.Send(room.Chat{ConnID: connID, Text: ev.Text}) {
					cur = nil
				}

			default:
				writeError(r.Context(), conn, "Unknown message type")
			}
		}
	}
}

// loadOrFresh seeds a session room from the store when a persisted record
// exists, otherwise starts empty. Store trouble degrades to a fresh state.
func loadOrFresh(ctx context.Context, opts Options, sessionID string, log *zap.Logger) draft.State {
	state := draft.NewState(opts.Sequence)
	if opts.Store == nil {
		return state
	}
	loaded, err := opts.Store.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			log.Warn("session load failed", zap.String("session", sessionID), zap.Error(err))
		}
		return state
	}
	loaded.Sequence = opts.Sequence
	if !loaded.Consistent() {
		log.Warn("persisted session state inconsistent, starting fresh",
			zap.String("session", sessionID),
			zap.Int("turn", loaded.TurnIndex),
			zap.Int("history", len(loaded.History)))
		return state
	}
	return loaded
}

func parseSide(s string) (draft.Side, bool) {
	switch s {
	case "order":
		return draft.SideOrder, true
	case "chaos":
		return draft.SideChaos, true
	default:
		return "", false
	}
}

func parseKind(s string) (draft.Kind, bool) {
	switch s {
	case "ban":
		return draft.KindBan, true
	case "pick":
		return draft.KindPick, true
	default:
		return "", false
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, reason string) {
	writeEvent(ctx, conn, types.ServerEvent{Type: types.EvRoomError, Error: reason})
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev types.ServerEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}
