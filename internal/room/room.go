// Package room owns one draft session: its participants, chat log and
// draft state. A single goroutine loop processes every message to
// completion (validate -> apply -> persist -> broadcast), which is what
// serializes access to the state without locks.
package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smite-tools/draft-server/internal/draft"
	"github.com/smite-tools/draft-server/internal/pubsub"
	"github.com/smite-tools/draft-server/internal/roster"
	"github.com/smite-tools/draft-server/internal/session"
	"github.com/smite-tools/draft-server/pkg/types"
)

// Chat log cap, matching the original room behavior.
const maxMessages = 100

const saveTimeout = 3 * time.Second

type Msg interface{ isRoomMsg() }

// Join registers a participant and immediately sends them a full snapshot.
// A prior participant with the same connection id is replaced, so a
// reconnect is idempotent.
type Join struct {
	ConnID  string
	Name    string
	Outbox  chan types.ServerEvent
	Creator bool // replies room-created instead of room-updated
	Session bool // replies session-state (persisted-session entry mode)
}

type Leave struct{ ConnID string }

// Propose is a candidate draft action. ClientTurn is the turn index the
// client believed was open; it is only a hint used to report staleness,
// never applied.
type Propose struct {
	ConnID     string
	Side       draft.Side
	Kind       draft.Kind
	ItemID     string
	ClientTurn int
}

type UndoLast struct{ ConnID string }

// AdvanceTurn is the next-turn override. The supplied index is validated
// against the authoritative cursor; it can only confirm it, never move it.
type AdvanceTurn struct {
	ConnID    string
	TurnIndex int
}

type Chat struct {
	ConnID string
	Text   string
}

type GetView struct{ Reply chan View }

type Shutdown struct{}

func (Join) isRoomMsg()        {}
func (Leave) isRoomMsg()       {}
func (Propose) isRoomMsg()     {}
func (UndoLast) isRoomMsg()    {}
func (AdvanceTurn) isRoomMsg() {}
func (Chat) isRoomMsg()        {}
func (GetView) isRoomMsg()     {}
func (Shutdown) isRoomMsg()    {}

type Participant struct {
	ConnID   string
	Name     string
	JoinedAt time.Time
}

// View is a read-only reflection of room internals for HTTP handlers and
// tests.
type View struct {
	ID           string
	Created      time.Time
	Participants int
	HasMessages  bool
	State        draft.State
}

type Room struct {
	id      string
	created time.Time
	inbox   chan Msg

	// mu guards closed. Everything else belongs to the loop goroutine.
	mu     sync.Mutex
	closed bool

	state        draft.State
	roster       *roster.Roster
	store        session.Store // nil when persistence is not configured
	participants []Participant
	messages     []types.ChatMessage
	broker       *pubsub.Broker[types.ServerEvent]
	onEmpty      func(id string)
	log          *zap.Logger
	ctx          context.Context
	cancel       context.CancelFunc
}

// New starts a room actor. onEmpty is invoked from the loop when the last
// participant leaves, just before the room stops itself.
func New(parent context.Context, id string, initial draft.State, ros *roster.Roster, store session.Store, onEmpty func(string), log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		id:       id,
		created:  time.Now(),
		inbox:    make(chan Msg, 64),
		state:    initial,
		roster:   ros,
		store:    store,
		broker:   pubsub.New[types.ServerEvent](),
		onEmpty:  onEmpty,
		log:      log.With(zap.String("room", id)),
		ctx:      ctx,
		cancel:   cancel,
		messages: []types.ChatMessage{},
	}
	go r.loop()
	return r
}

// Send enqueues m for the loop. It reports false once the room has
// stopped, so callers can fall back to a not-found reply instead of
// writing into a channel nobody reads.
func (r *Room) Send(m Msg) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	select {
	case r.inbox <- m:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// Closed reports whether the room loop has stopped.
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Room) ID() string { return r.id }

// View fetches a consistent snapshot from the loop; ok is false if the
// room has already stopped.
func (r *Room) View(timeout time.Duration) (View, bool) {
	reply := make(chan View, 1)
	select {
	case r.inbox <- GetView{Reply: reply}:
	case <-r.ctx.Done():
		return View{}, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-time.After(timeout):
		return View{}, false
	}
}

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)
			case Leave:
				if r.handleLeave(msg.ConnID) {
					return
				}
			case Propose:
				r.handlePropose(msg)
			case UndoLast:
				r.handleUndo(msg.ConnID)
			case AdvanceTurn:
				r.handleAdvanceTurn(msg)
			case Chat:
				r.handleChat(msg)
			case GetView:
				msg.Reply <- View{
					ID:           r.id,
					Created:      r.created,
					Participants: len(r.participants),
					HasMessages:  len(r.messages) > 0,
					State:        r.state.Clone(),
				}
			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) {
	r.removeParticipant(msg.ConnID)
	r.participants = append(r.participants, Participant{ConnID: msg.ConnID, Name: msg.Name, JoinedAt: time.Now()})
	r.broker.Attach(msg.ConnID, msg.Outbox)

	snap := r.snapshot()
	switch {
	case msg.Session:
		state := r.state.Clone()
		r.broker.SendTo(msg.ConnID, types.ServerEvent{Type: types.EvSessionState, RoomID: r.id, State: &state})
	case msg.Creator:
		r.broker.SendTo(msg.ConnID, types.ServerEvent{Type: types.EvRoomCreated, RoomID: r.id, Room: snap})
	default:
		r.broker.SendTo(msg.ConnID, types.ServerEvent{Type: types.EvRoomUpdated, RoomID: r.id, Room: snap})
	}

	r.broker.PublishExcept(msg.ConnID, types.ServerEvent{Type: types.EvUsersUpdated, Users: r.users()})
	r.broker.PublishExcept(msg.ConnID, types.ServerEvent{
		Type:    types.EvMessageReceived,
		Message: systemMessage(msg.Name + " joined the room"),
	})
	r.log.Info("participant joined", zap.String("conn", msg.ConnID), zap.String("name", msg.Name))
}

// handleLeave reports whether the room closed itself because its last
// participant left.
func (r *Room) handleLeave(connID string) bool {
	name, found := r.removeParticipant(connID)
	r.broker.Detach(connID)
	if !found {
		return false
	}

	if len(r.participants) == 0 {
		r.log.Info("room empty, closing")
		if r.onEmpty != nil {
			r.onEmpty(r.id)
		}
		r.shutdown()
		return true
	}

	r.broker.Publish(types.ServerEvent{Type: types.EvUsersUpdated, Users: r.users()})
	r.broker.Publish(types.ServerEvent{
		Type:    types.EvMessageReceived,
		Message: systemMessage(name + " left the room"),
	})
	r.log.Info("participant left", zap.String("conn", connID), zap.String("name", name))
	return false
}

func (r *Room) handlePropose(msg Propose) {
	item, ok := r.roster.Get(msg.ItemID)
	if !ok {
		r.sendError(msg.ConnID, "Unknown item: "+msg.ItemID)
		return
	}

	next, act, err := draft.Apply(r.state, draft.Proposal{Side: msg.Side, Kind: msg.Kind, Item: item})
	if err != nil {
		reason := rejectReason(err)
		if errors.Is(err, draft.ErrWrongTurn) && msg.ClientTurn >= 0 && msg.ClientTurn != r.state.TurnIndex {
			reason = "Your view is behind the room, wait for the next update"
		}
		r.sendError(msg.ConnID, reason)
		return
	}

	r.state = next
	r.persist()
	state := r.state.Clone()
	r.broker.Publish(types.ServerEvent{Type: types.EvDraftUpdate, RoomID: r.id, State: &state})
	r.log.Info("action applied",
		zap.String("side", string(act.Side)),
		zap.String("kind", string(act.Kind)),
		zap.String("item", act.Item.ID),
		zap.Int("turn", act.TurnIndex))
}

func (r *Room) handleUndo(connID string) {
	next, act, err := draft.Undo(r.state)
	if err != nil {
		r.sendError(connID, rejectReason(err))
		return
	}

	r.state = next
	r.persist()
	state := r.state.Clone()
	r.broker.Publish(types.ServerEvent{Type: types.EvDraftUpdate, RoomID: r.id, State: &state})
	r.log.Info("action undone", zap.String("item", act.Item.ID), zap.Int("turn", act.TurnIndex))
}

func (r *Room) handleAdvanceTurn(msg AdvanceTurn) {
	if msg.TurnIndex != r.state.TurnIndex {
		r.sendError(msg.ConnID, "Turn index out of sync with the room")
		return
	}
	idx := r.state.TurnIndex
	r.broker.Publish(types.ServerEvent{Type: types.EvTurnUpdate, TurnIndex: &idx})
}

func (r *Room) handleChat(msg Chat) {
	author := "Unknown"
	for _, p := range r.participants {
		if p.ConnID == msg.ConnID {
			author = p.Name
			break
		}
	}

	cm := types.ChatMessage{
		ID:        uuid.NewString(),
		Author:    author,
		Text:      msg.Text,
		Timestamp: time.Now().UnixMilli(),
	}
	r.messages = append(r.messages, cm)
	if len(r.messages) > maxMessages {
		r.messages = r.messages[len(r.messages)-maxMessages:]
	}
	r.broker.Publish(types.ServerEvent{Type: types.EvMessageReceived, Message: &cm})
}

// persist is best-effort: a failed save is logged and the in-memory state
// stays authoritative.
func (r *Room) persist() {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(r.ctx, saveTimeout)
	defer cancel()
	if err := r.store.Save(ctx, r.id, r.state); err != nil {
		r.log.Warn("session save failed", zap.Error(err))
	}
}

func (r *Room) sendError(connID, reason string) {
	r.broker.SendTo(connID, types.ServerEvent{Type: types.EvRoomError, Error: reason})
}

func (r *Room) snapshot() *types.RoomSnapshot {
	return &types.RoomSnapshot{
		ID:       r.id,
		Created:  r.created.UnixMilli(),
		State:    r.state.Clone(),
		Messages: append([]types.ChatMessage{}, r.messages...),
		Users:    r.users(),
	}
}

func (r *Room) users() []types.UserInfo {
	users := make([]types.UserInfo, 0, len(r.participants))
	for _, p := range r.participants {
		users = append(users, types.UserInfo{Name: p.Name, Connected: true})
	}
	return users
}

func (r *Room) removeParticipant(connID string) (name string, found bool) {
	kept := r.participants[:0]
	for _, p := range r.participants {
		if p.ConnID == connID {
			name, found = p.Name, true
			continue
		}
		kept = append(kept, p)
	}
	r.participants = kept
	return name, found
}

// shutdown stops the room: cancel first so blocked senders bail out, mark
// closed so Send starts refusing, then answer whatever made it into the
// inbox before the close. A Join that raced the last leave still gets a
// reply this way instead of vanishing into a dead channel.
func (r *Room) shutdown() {
	r.cancel()
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.broker.Close()
	r.drainInbox()
}

func (r *Room) drainInbox() {
	for {
		select {
		case m := <-r.inbox:
			if j, ok := m.(Join); ok {
				select {
				case j.Outbox <- types.ServerEvent{Type: types.EvRoomError, Error: "Room not found"}:
				default:
				}
			}
		default:
			return
		}
	}
}

func systemMessage(text string) *types.ChatMessage {
	return &types.ChatMessage{
		ID:        uuid.NewString(),
		Author:    "System",
		Role:      "system",
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, draft.ErrDraftTerminated):
		return "The draft is already complete"
	case errors.Is(err, draft.ErrWrongTurn):
		return "It is not that side's turn for that action"
	case errors.Is(err, draft.ErrItemUnavailable):
		return "That item is already picked or banned"
	case errors.Is(err, draft.ErrNoOpenSlot):
		return "No open pick slot for that side"
	case errors.Is(err, draft.ErrNothingToUndo):
		return "There is nothing to undo"
	default:
		return err.Error()
	}
}
