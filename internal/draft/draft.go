package draft

import (
	"encoding/json"
	"errors"
)

var ErrDraftTerminated = errors.New("draft already completed")
var ErrWrongTurn = errors.New("wrong side or action for this turn")
var ErrItemUnavailable = errors.New("item already picked or banned")
var ErrNoOpenSlot = errors.New("no open pick slot")
var ErrNothingToUndo = errors.New("nothing to undo")

type Side string

const (
	SideOrder Side = "order"
	SideChaos Side = "chaos"
)

type Kind string

const (
	KindBan  Kind = "ban"
	KindPick Kind = "pick"
)

// TurnSpec defines whose turn does what at one position in the sequence.
type TurnSpec struct {
	Side Side `json:"side"`
	Kind Kind `json:"kind"`
}

// Item is immutable roster reference data; the state machine only ever
// stores it, never mutates it.
type Item struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Tags  []string `json:"tags,omitempty"`
	Image string   `json:"image,omitempty"`
}

// TeamSize is the number of pick slots per side.
const TeamSize = 5

// Proposal is a candidate action as submitted by a client. Slot placement
// and the turn index are derived at apply time from authoritative state,
// never taken from the wire.
type Proposal struct {
	Side Side
	Kind Kind
	Item Item
}

// Action is the immutable record of one applied turn. Slot is the pick
// slot the item was placed into, -1 for bans; undo restores exactly that
// slot.
type Action struct {
	TurnIndex int  `json:"turnIndex"`
	Side      Side `json:"side"`
	Kind      Kind `json:"kind"`
	Item      Item `json:"item"`
	Slot      int  `json:"slot"`
}

// State holds one draft. Picks are fixed-size slot arrays (nil = empty),
// bans grow as they are applied. TurnIndex always equals len(History).
// Sequence is configuration and is excluded from the wire encoding; callers
// re-attach it after decoding.
type State struct {
	Sequence  []TurnSpec
	Picks     map[Side][]*Item
	Bans      map[Side][]Item
	TurnIndex int
	History   []Action
}

// NewState returns the canonical empty state for the given sequence.
func NewState(seq []TurnSpec) State {
	return State{
		Sequence:  seq,
		Picks:     map[Side][]*Item{SideOrder: make([]*Item, TeamSize), SideChaos: make([]*Item, TeamSize)},
		Bans:      map[Side][]Item{SideOrder: {}, SideChaos: {}},
		TurnIndex: 0,
		History:   []Action{},
	}
}

// Reset returns the empty state for the same configured sequence.
func Reset(s State) State {
	return NewState(s.Sequence)
}

// Clone deep-copies everything except Sequence and Items, which are
// immutable and safe to share.
func (s State) Clone() State {
	ns := State{
		Sequence:  s.Sequence,
		Picks:     make(map[Side][]*Item, len(s.Picks)),
		Bans:      make(map[Side][]Item, len(s.Bans)),
		TurnIndex: s.TurnIndex,
		History:   append([]Action{}, s.History...),
	}
	for side, slots := range s.Picks {
		ns.Picks[side] = append([]*Item{}, slots...)
	}
	for side, bans := range s.Bans {
		ns.Bans[side] = append([]Item{}, bans...)
	}
	return ns
}

// Complete reports whether every turn in the sequence has been consumed.
func (s State) Complete() bool {
	return s.TurnIndex >= len(s.Sequence)
}

// Consistent reports whether the cursor agrees with the history and fits
// the sequence. State from outside the process is checked with this before
// it enters a live room.
func (s State) Consistent() bool {
	return s.TurnIndex == len(s.History) && s.TurnIndex <= len(s.Sequence)
}

// CurrentTurn returns the spec for the open turn; done is true once the
// draft has terminated.
func (s State) CurrentTurn() (step TurnSpec, done bool) {
	if s.Complete() {
		return TurnSpec{}, true
	}
	return s.Sequence[s.TurnIndex], false
}

// Taken reports whether an item id already appears in any pick or ban list.
func (s State) Taken(id string) bool {
	for _, slots := range s.Picks {
		for _, it := range slots {
			if it != nil && it.ID == id {
				return true
			}
		}
	}
	for _, bans := range s.Bans {
		for _, it := range bans {
			if it.ID == id {
				return true
			}
		}
	}
	return false
}

// Apply validates the proposal against the open turn and returns the next
// state plus the recorded action. On rejection the input state is returned
// untouched. Never performs I/O.
func Apply(s State, p Proposal) (State, Action, error) {
	if s.Complete() {
		return s, Action{}, ErrDraftTerminated
	}

	step := s.Sequence[s.TurnIndex]
	if p.Side != step.Side || p.Kind != step.Kind {
		return s, Action{}, ErrWrongTurn
	}
	if s.Taken(p.Item.ID) {
		return s, Action{}, ErrItemUnavailable
	}

	ns := s.Clone()
	act := Action{TurnIndex: s.TurnIndex, Side: p.Side, Kind: p.Kind, Item: p.Item, Slot: -1}

	switch p.Kind {
	case KindPick:
		slot := firstEmptySlot(ns.Picks[p.Side])
		if slot < 0 {
			// Unreachable while the sequence has at most TeamSize picks
			// per side, but checked anyway.
			return s, Action{}, ErrNoOpenSlot
		}
		item := p.Item
		ns.Picks[p.Side][slot] = &item
		act.Slot = slot
	case KindBan:
		ns.Bans[p.Side] = append(ns.Bans[p.Side], p.Item)
	}

	ns.History = append(ns.History, act)
	ns.TurnIndex++
	return ns, act, nil
}

// Undo reverts exactly the last applied action. Picks are cleared at the
// recorded slot rather than the last occupied one.
func Undo(s State) (State, Action, error) {
	if len(s.History) == 0 {
		return s, Action{}, ErrNothingToUndo
	}

	ns := s.Clone()
	last := ns.History[len(ns.History)-1]
	ns.History = ns.History[:len(ns.History)-1]

	switch last.Kind {
	case KindPick:
		ns.Picks[last.Side][last.Slot] = nil
	case KindBan:
		bans := ns.Bans[last.Side]
		ns.Bans[last.Side] = bans[:len(bans)-1]
	}

	ns.TurnIndex = len(ns.History)
	return ns, last, nil
}

func firstEmptySlot(slots []*Item) int {
	for i, it := range slots {
		if it == nil {
			return i
		}
	}
	return -1
}

type stateJSON struct {
	OrderPicks []*Item  `json:"orderPicks"`
	ChaosPicks []*Item  `json:"chaosPicks"`
	OrderBans  []Item   `json:"orderBans"`
	ChaosBans  []Item   `json:"chaosBans"`
	TurnIndex  int      `json:"turnIndex"`
	History    []Action `json:"history"`
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		OrderPicks: s.Picks[SideOrder],
		ChaosPicks: s.Picks[SideChaos],
		OrderBans:  s.Bans[SideOrder],
		ChaosBans:  s.Bans[SideChaos],
		TurnIndex:  s.TurnIndex,
		History:    s.History,
	})
}

func (s *State) UnmarshalJSON(data []byte) error {
	var w stateJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Picks = map[Side][]*Item{
		SideOrder: padSlots(w.OrderPicks),
		SideChaos: padSlots(w.ChaosPicks),
	}
	s.Bans = map[Side][]Item{SideOrder: w.OrderBans, SideChaos: w.ChaosBans}
	if s.Bans[SideOrder] == nil {
		s.Bans[SideOrder] = []Item{}
	}
	if s.Bans[SideChaos] == nil {
		s.Bans[SideChaos] = []Item{}
	}
	s.TurnIndex = w.TurnIndex
	s.History = w.History
	if s.History == nil {
		s.History = []Action{}
	}
	return nil
}

func padSlots(slots []*Item) []*Item {
	for len(slots) < TeamSize {
		slots = append(slots, nil)
	}
	return slots[:TeamSize]
}
