package draft

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func item(id string) Item {
	return Item{ID: id, Name: "God " + id}
}

func TestApply_FollowsFullSequence(t *testing.T) {
	s := NewState(DefaultSequence)

	for i, step := range DefaultSequence {
		next, act, err := Apply(s, Proposal{Side: step.Side, Kind: step.Kind, Item: item(fmt.Sprintf("g%d", i))})
		if err != nil {
			t.Fatalf("turn %d: unexpected err %v", i, err)
		}
		if next.TurnIndex != i+1 {
			t.Fatalf("turn %d: want TurnIndex=%d, got %d", i, i+1, next.TurnIndex)
		}
		if len(next.History) != next.TurnIndex {
			t.Fatalf("turn %d: history length %d != turn index %d", i, len(next.History), next.TurnIndex)
		}
		if act.TurnIndex != i {
			t.Fatalf("turn %d: action recorded turn index %d", i, act.TurnIndex)
		}
		s = next
	}

	if !s.Complete() {
		t.Fatalf("expected draft complete after %d turns", len(DefaultSequence))
	}
	if got := len(s.Bans[SideOrder]); got != 3 {
		t.Fatalf("want 3 order bans, got %d", got)
	}
	if got := len(s.Bans[SideChaos]); got != 3 {
		t.Fatalf("want 3 chaos bans, got %d", got)
	}
	for _, side := range []Side{SideOrder, SideChaos} {
		for slot, it := range s.Picks[side] {
			if it == nil {
				t.Fatalf("%s slot %d still empty after full draft", side, slot)
			}
		}
	}
}

// The default order is six alternating bans starting with ORDER, then
// snake-order picks.
func TestDefaultSequenceOrdering(t *testing.T) {
	wantSides := []Side{
		SideOrder, SideChaos, SideOrder, SideChaos, SideOrder, SideChaos,
		SideOrder, SideChaos, SideChaos, SideOrder, SideOrder,
		SideChaos, SideChaos, SideOrder, SideOrder, SideChaos,
	}
	if len(DefaultSequence) != len(wantSides) {
		t.Fatalf("want %d turns, got %d", len(wantSides), len(DefaultSequence))
	}
	for i, step := range DefaultSequence {
		wantKind := KindBan
		if i >= 6 {
			wantKind = KindPick
		}
		if step.Side != wantSides[i] || step.Kind != wantKind {
			t.Fatalf("turn %d: want %s %s, got %s %s", i, wantSides[i], wantKind, step.Side, step.Kind)
		}
	}
}

func TestConsistent(t *testing.T) {
	s := NewState(DefaultSequence)
	if !s.Consistent() {
		t.Fatalf("fresh state reported inconsistent")
	}

	s, _, err := Apply(s, Proposal{Side: SideOrder, Kind: KindBan, Item: item("x")})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !s.Consistent() {
		t.Fatalf("applied state reported inconsistent")
	}

	bad := s.Clone()
	bad.TurnIndex = 9
	if bad.Consistent() {
		t.Fatalf("cursor/history mismatch accepted")
	}

	over := NewState([]TurnSpec{{Side: SideOrder, Kind: KindBan}})
	over.TurnIndex = 2
	over.History = make([]Action, 2)
	if over.Consistent() {
		t.Fatalf("cursor past end of sequence accepted")
	}
}

func TestApply_Rejections(t *testing.T) {
	seq := []TurnSpec{
		{Side: SideOrder, Kind: KindBan},
		{Side: SideChaos, Kind: KindBan},
	}

	cases := []struct {
		name    string
		setup   func() State
		prop    Proposal
		wantErr error
	}{
		{
			name:    "wrong side",
			setup:   func() State { return NewState(seq) },
			prop:    Proposal{Side: SideChaos, Kind: KindBan, Item: item("x")},
			wantErr: ErrWrongTurn,
		},
		{
			name:    "wrong kind",
			setup:   func() State { return NewState(seq) },
			prop:    Proposal{Side: SideOrder, Kind: KindPick, Item: item("x")},
			wantErr: ErrWrongTurn,
		},
		{
			name: "item already banned",
			setup: func() State {
				s := NewState(seq)
				s, _, _ = Apply(s, Proposal{Side: SideOrder, Kind: KindBan, Item: item("x")})
				return s
			},
			prop:    Proposal{Side: SideChaos, Kind: KindBan, Item: item("x")},
			wantErr: ErrItemUnavailable,
		},
		{
			name: "draft terminated",
			setup: func() State {
				s := NewState(seq)
				s, _, _ = Apply(s, Proposal{Side: SideOrder, Kind: KindBan, Item: item("x")})
				s, _, _ = Apply(s, Proposal{Side: SideChaos, Kind: KindBan, Item: item("y")})
				return s
			},
			prop:    Proposal{Side: SideOrder, Kind: KindBan, Item: item("z")},
			wantErr: ErrDraftTerminated,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := tc.setup()
			after, _, err := Apply(before, tc.prop)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			if !reflect.DeepEqual(before, after) {
				t.Fatalf("rejected apply mutated state:\nbefore=%+v\nafter=%+v", before, after)
			}
		})
	}
}

// Scenario: [ORDER-BAN, CHAOS-BAN]; a second ORDER ban right after the
// first must be rejected as a wrong turn.
func TestApply_SecondBanBySameSideRejected(t *testing.T) {
	seq := []TurnSpec{
		{Side: SideOrder, Kind: KindBan},
		{Side: SideChaos, Kind: KindBan},
	}
	s := NewState(seq)

	s, _, err := Apply(s, Proposal{Side: SideOrder, Kind: KindBan, Item: item("x")})
	if err != nil {
		t.Fatalf("first ban: %v", err)
	}
	if got := s.Bans[SideOrder]; len(got) != 1 || got[0].ID != "x" {
		t.Fatalf("want order bans [x], got %+v", got)
	}
	if s.TurnIndex != 1 {
		t.Fatalf("want TurnIndex=1, got %d", s.TurnIndex)
	}

	_, _, err = Apply(s, Proposal{Side: SideOrder, Kind: KindBan, Item: item("y")})
	if !errors.Is(err, ErrWrongTurn) {
		t.Fatalf("want ErrWrongTurn, got %v", err)
	}
}

// Scenario: five consecutive ORDER picks land in slots 0..4 in order, and a
// single undo clears slot 4 only.
func TestPickSlotAssignmentAndUndo(t *testing.T) {
	seq := make([]TurnSpec, TeamSize)
	for i := range seq {
		seq[i] = TurnSpec{Side: SideOrder, Kind: KindPick}
	}
	s := NewState(seq)

	ids := []string{"a", "b", "c", "d", "e"}
	for i, id := range ids {
		next, act, err := Apply(s, Proposal{Side: SideOrder, Kind: KindPick, Item: item(id)})
		if err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
		if act.Slot != i {
			t.Fatalf("pick %d: want slot %d, got %d", i, i, act.Slot)
		}
		s = next
	}
	for i, id := range ids {
		if s.Picks[SideOrder][i] == nil || s.Picks[SideOrder][i].ID != id {
			t.Fatalf("slot %d: want %q, got %+v", i, id, s.Picks[SideOrder][i])
		}
	}

	s, undone, err := Undo(s)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if undone.Slot != 4 {
		t.Fatalf("want undone slot 4, got %d", undone.Slot)
	}
	if s.Picks[SideOrder][4] != nil {
		t.Fatalf("slot 4 not cleared")
	}
	for i := 0; i < 4; i++ {
		if s.Picks[SideOrder][i] == nil {
			t.Fatalf("slot %d cleared by undo of slot 4", i)
		}
	}
	if s.TurnIndex != 4 || len(s.History) != 4 {
		t.Fatalf("want TurnIndex=4 history=4, got %d/%d", s.TurnIndex, len(s.History))
	}
}

// Undo must restore the recorded slot even when slots are non-contiguous:
// pick a,b,c -> undo twice -> pick d goes back into slot 1.
func TestUndo_RestoresRecordedSlot(t *testing.T) {
	seq := make([]TurnSpec, TeamSize)
	for i := range seq {
		seq[i] = TurnSpec{Side: SideChaos, Kind: KindPick}
	}
	s := NewState(seq)
	for _, id := range []string{"a", "b", "c"} {
		s, _, _ = Apply(s, Proposal{Side: SideChaos, Kind: KindPick, Item: item(id)})
	}
	s, _, _ = Undo(s)
	s, _, _ = Undo(s)

	s, act, err := Apply(s, Proposal{Side: SideChaos, Kind: KindPick, Item: item("d")})
	if err != nil {
		t.Fatalf("re-pick: %v", err)
	}
	if act.Slot != 1 {
		t.Fatalf("want slot 1, got %d", act.Slot)
	}
	if s.Picks[SideChaos][0].ID != "a" || s.Picks[SideChaos][1].ID != "d" {
		t.Fatalf("unexpected slots: %+v", s.Picks[SideChaos])
	}
}

func TestApplyUndoRoundTrip(t *testing.T) {
	for i := range DefaultSequence {
		s := NewState(DefaultSequence)
		for j := 0; j < i; j++ {
			step := DefaultSequence[j]
			s, _, _ = Apply(s, Proposal{Side: step.Side, Kind: step.Kind, Item: item(fmt.Sprintf("g%d", j))})
		}

		step := DefaultSequence[i]
		applied, _, err := Apply(s, Proposal{Side: step.Side, Kind: step.Kind, Item: item("extra")})
		if err != nil {
			t.Fatalf("turn %d apply: %v", i, err)
		}
		reverted, _, err := Undo(applied)
		if err != nil {
			t.Fatalf("turn %d undo: %v", i, err)
		}
		if !reflect.DeepEqual(s, reverted) {
			t.Fatalf("turn %d: undo did not restore prior state\nwant=%+v\ngot=%+v", i, s, reverted)
		}
	}
}

func TestUndo_EmptyHistory(t *testing.T) {
	_, _, err := Undo(NewState(DefaultSequence))
	if !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("want ErrNothingToUndo, got %v", err)
	}
}

func TestNoDuplicateIDsAcrossLists(t *testing.T) {
	s := NewState(DefaultSequence)
	for i, step := range DefaultSequence {
		s, _, _ = Apply(s, Proposal{Side: step.Side, Kind: step.Kind, Item: item(fmt.Sprintf("g%d", i))})
	}

	seen := map[string]bool{}
	record := func(id string) {
		if seen[id] {
			t.Fatalf("id %q appears twice", id)
		}
		seen[id] = true
	}
	for _, side := range []Side{SideOrder, SideChaos} {
		for _, it := range s.Picks[side] {
			if it != nil {
				record(it.ID)
			}
		}
		for _, it := range s.Bans[side] {
			record(it.ID)
		}
	}
}

func TestReset(t *testing.T) {
	s := NewState(DefaultSequence)
	s, _, _ = Apply(s, Proposal{Side: SideOrder, Kind: KindBan, Item: item("x")})

	fresh := Reset(s)
	if fresh.TurnIndex != 0 || len(fresh.History) != 0 {
		t.Fatalf("reset state not empty: %+v", fresh)
	}
	if len(fresh.Sequence) != len(DefaultSequence) {
		t.Fatalf("reset lost sequence")
	}
	if fresh.Taken("x") {
		t.Fatalf("reset state still holds old ban")
	}
}

func TestStateJSONRoundTrip(t *testing.T) {
	s := NewState(DefaultSequence)
	for i := 0; i < 6; i++ {
		step := DefaultSequence[i]
		s, _, _ = Apply(s, Proposal{Side: step.Side, Kind: step.Kind, Item: item(fmt.Sprintf("g%d", i))})
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// Wire shape: named pick/ban arrays, fixed-length pick slots.
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal wire: %v", err)
	}
	for _, key := range []string{"orderPicks", "chaosPicks", "orderBans", "chaosBans", "turnIndex", "history"} {
		if _, ok := wire[key]; !ok {
			t.Fatalf("missing wire key %q in %s", key, data)
		}
	}

	var back State
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	back.Sequence = s.Sequence
	if !reflect.DeepEqual(s, back) {
		t.Fatalf("round trip mismatch\nwant=%+v\ngot=%+v", s, back)
	}
}
