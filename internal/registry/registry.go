// Package registry is the single source of truth for room existence. A
// registry actor owns the roomID -> room map; rooms report back when they
// empty so the entry can be reclaimed.
package registry

import (
	"context"
	"crypto/rand"
	"math/big"

	"go.uber.org/zap"

	"github.com/smite-tools/draft-server/internal/draft"
	"github.com/smite-tools/draft-server/internal/room"
	"github.com/smite-tools/draft-server/internal/roster"
	"github.com/smite-tools/draft-server/internal/session"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6

type Msg interface{ isRegistryMsg() }

// CreateRoom makes a fresh room under a newly generated collision-free
// code and replies with it.
type CreateRoom struct {
	Reply chan Created
}

type Created struct {
	Code string
	Room *room.Room
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room // nil if absent
}

// EnsureRoom returns the room for Code, creating it with State when it
// does not exist yet (persisted-session entry path).
type EnsureRoom struct {
	Code  string
	State draft.State // only used if creation happens
	Reply chan *room.Room
}

// RemoveRoom reclaims the map entry for a room that emptied. Room pins the
// exact instance so a stale removal cannot evict a replacement spawned
// under the same code in the meantime.
type RemoveRoom struct {
	Code string
	Room *room.Room
}

type ListRooms struct {
	Reply chan []*room.Room
}

type Shutdown struct{}

func (CreateRoom) isRegistryMsg() {}
func (GetRoom) isRegistryMsg()    {}
func (EnsureRoom) isRegistryMsg() {}
func (RemoveRoom) isRegistryMsg() {}
func (ListRooms) isRegistryMsg()  {}
func (Shutdown) isRegistryMsg()   {}

type Registry struct {
	inbox   chan Msg
	rooms   map[string]*room.Room
	seq     []draft.TurnSpec
	roster  *roster.Roster
	store   session.Store // nil when persistence is not configured
	log     *zap.Logger
	roomLog *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, seq []draft.TurnSpec, ros *roster.Roster, store session.Store, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	g := &Registry{
		inbox:   make(chan Msg, 64),
		rooms:   make(map[string]*room.Room),
		seq:     seq,
		roster:  ros,
		store:   store,
		log:     log.Named("registry"),
		roomLog: log.Named("room"),
		ctx:     ctx,
		cancel:  cancel,
	}
	go g.loop()
	return g
}

func (g *Registry) Inbox() chan<- Msg { return g.inbox }

func (g *Registry) loop() {
	for {
		select {
		case <-g.ctx.Done():
			g.shutdown()
			return

		case m := <-g.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				code := g.freeCode()
				rm := g.spawn(code, draft.NewState(g.seq))
				g.rooms[code] = rm
				g.log.Info("room created", zap.String("room", code))
				msg.Reply <- Created{Code: code, Room: rm}

			case GetRoom:
				rm := g.rooms[msg.Code]
				// A room that emptied reports back asynchronously; until
				// its RemoveRoom lands the map can hold a stopped room.
				if rm != nil && rm.Closed() {
					delete(g.rooms, msg.Code)
					rm = nil
				}
				msg.Reply <- rm // may be nil

			case EnsureRoom:
				if rm := g.rooms[msg.Code]; rm != nil && !rm.Closed() {
					msg.Reply <- rm
					break
				}
				rm := g.spawn(msg.Code, msg.State)
				g.rooms[msg.Code] = rm
				g.log.Info("room ensured", zap.String("room", msg.Code))
				msg.Reply <- rm

			case RemoveRoom:
				if g.rooms[msg.Code] == msg.Room {
					delete(g.rooms, msg.Code)
					g.log.Info("room removed", zap.String("room", msg.Code))
				}

			case ListRooms:
				list := make([]*room.Room, 0, len(g.rooms))
				for _, rm := range g.rooms {
					list = append(list, rm)
				}
				msg.Reply <- list

			case Shutdown:
				g.shutdown()
				return
			}
		}
	}
}

func (g *Registry) spawn(code string, state draft.State) *room.Room {
	// rm is assigned before the room can see a Join, so the closure reads
	// it safely.
	var rm *room.Room
	onEmpty := func(id string) {
		// Called from the room loop; the registry inbox is buffered so the
		// dying room does not wedge on it.
		select {
		case g.inbox <- RemoveRoom{Code: id, Room: rm}:
		case <-g.ctx.Done():
		}
	}
	rm = room.New(g.ctx, code, state, g.roster, g.store, onEmpty, g.roomLog)
	return rm
}

// freeCode rejection-samples the code alphabet until the id is unused.
func (g *Registry) freeCode() string {
	for {
		code := generateCode()
		if _, taken := g.rooms[code]; !taken {
			return code
		}
		g.log.Debug("room code collision, regenerating", zap.String("room", code))
	}
}

func generateCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			// crypto/rand only fails if the platform source is broken.
			panic(err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code)
}

func (g *Registry) shutdown() {
	for code, rm := range g.rooms {
		rm.Send(room.Shutdown{})
		delete(g.rooms, code)
	}
	g.cancel()
}
