package queue

import (
	"testing"

	"github.com/nstehr/vimy/vimy-instance/model"
)

type fakeHouses struct {
	order []model.HouseID
	human map[model.HouseID]bool
}

func (f *fakeHouses) HouseCount() int { return len(f.order) }

func (f *fakeHouses) HouseAt(i int) (model.HouseID, bool) {
	if i < 0 || i >= len(f.order) || f.order[i] == model.HouseNone {
		return model.HouseNone, false
	}
	return f.order[i], true
}

func (f *fakeHouses) IsHuman(h model.HouseID) bool { return f.human[h] }

type recorder struct {
	ran []Command
}

func (r *recorder) Execute(cmd Command) { r.ran = append(r.ran, cmd) }

func twoHumans() *fakeHouses {
	return &fakeHouses{
		order: []model.HouseID{0, 1},
		human: map[model.HouseID]bool{0: true, 1: true},
	}
}

func produce(h model.HouseID, frame uint32) Command {
	return Command{
		Kind:   CommandProduce,
		House:  h,
		Object: model.ObjectRef{Kind: model.KindUnit, ID: 3, House: h},
		Cell:   model.NoCell,
		Frame:  frame,
	}
}

func TestOutgoingFIFO(t *testing.T) {
	out := NewOutgoing(2)
	a, _ := out.Push(produce(0, 1))
	b, _ := out.Push(produce(1, 1))
	if _, ok := out.Push(produce(0, 1)); ok {
		t.Fatal("expected push into a full ring to fail")
	}
	if a.Seq != 1 || b.Seq != 2 {
		t.Errorf("expected seq 1,2, got %d,%d", a.Seq, b.Seq)
	}

	got := out.Drain()
	if len(got) != 2 || got[0].House != 0 || got[1].House != 1 {
		t.Fatalf("expected FIFO drain, got %+v", got)
	}
	if out.Len() != 0 {
		t.Errorf("expected empty ring after drain, got %d", out.Len())
	}
	if c, _ := out.Push(produce(0, 1)); c.Seq != 3 {
		t.Errorf("expected numbering to continue at 3, got %d", c.Seq)
	}
}

func TestFrameGating(t *testing.T) {
	out := NewOutgoing(DefaultOutgoingCapacity)
	r := NewReconciler(0)
	rec := &recorder{}
	houses := twoHumans()

	out.Push(produce(0, 100))
	for frame := uint32(50); frame < 100; frame++ {
		r.ReconcileTick(frame, out, houses, rec)
		if len(rec.ran) != 0 {
			t.Fatalf("command ran at frame %d before its frame 100", frame)
		}
	}
	if r.Len() != 1 {
		t.Fatalf("expected the command to stay pending, got %d", r.Len())
	}

	res := r.ReconcileTick(100, out, houses, rec)
	if len(rec.ran) != 1 || len(res.Executed) != 1 {
		t.Fatalf("expected one execution at frame 100, got %d", len(rec.ran))
	}
	if rec.ran[0].House != 0 {
		t.Errorf("expected execution for house 0, got %v", rec.ran[0].House)
	}
	if r.Len() != 0 {
		t.Errorf("expected executed command compacted, %d left", r.Len())
	}
}

func TestAtMostOnce(t *testing.T) {
	out := NewOutgoing(DefaultOutgoingCapacity)
	r := NewReconciler(0)
	rec := &recorder{}
	houses := twoHumans()

	// The earlier future command at the head keeps the later ones pending
	// after they run.
	out.Push(produce(0, 20))
	out.Push(produce(1, 5))
	out.Push(produce(0, 5))

	for frame := uint32(0); frame < 40; frame++ {
		r.ReconcileTick(frame, out, houses, rec)
	}

	counts := map[uint64]int{}
	for _, c := range rec.ran {
		counts[c.Seq]++
	}
	for seq := uint64(1); seq <= 3; seq++ {
		if counts[seq] != 1 {
			t.Errorf("command %d ran %d times", seq, counts[seq])
		}
	}
	if rec.ran[0].Seq != 2 || rec.ran[1].Seq != 3 || rec.ran[2].Seq != 1 {
		t.Errorf("unexpected execution order %+v", rec.ran)
	}
}

func TestDrainBeforeExecute(t *testing.T) {
	out := NewOutgoing(DefaultOutgoingCapacity)
	r := NewReconciler(0)
	rec := &recorder{}

	cmd := produce(1, 7)
	cmd.Executed = true
	out.Push(cmd)

	res := r.ReconcileTick(7, out, twoHumans(), rec)
	if res.Drained != 1 {
		t.Fatalf("expected 1 drained, got %d", res.Drained)
	}
	if len(rec.ran) != 1 {
		t.Fatal("expected drained command to run in the same pass")
	}
}

func TestDisconnectStaleness(t *testing.T) {
	out := NewOutgoing(DefaultOutgoingCapacity)
	r := NewReconciler(0)
	rec := &recorder{}
	houses := twoHumans()

	out.Push(produce(1, 10))
	r.ReconcileTick(3, out, houses, rec)

	houses.human[1] = false

	var stale int
	for frame := uint32(4); frame <= 12; frame++ {
		stale += r.ReconcileTick(frame, out, houses, rec).Stale
	}
	if len(rec.ran) != 0 {
		t.Fatalf("command from disconnected house ran: %+v", rec.ran)
	}
	if r.Len() != 0 {
		t.Errorf("expected stale command removed, %d pending", r.Len())
	}
	if stale != 1 {
		t.Errorf("expected 1 stale drop, got %d", stale)
	}
}

func TestNoHumansNothingRuns(t *testing.T) {
	out := NewOutgoing(DefaultOutgoingCapacity)
	r := NewReconciler(0)
	rec := &recorder{}
	houses := &fakeHouses{
		order: []model.HouseID{0, model.HouseNone},
		human: map[model.HouseID]bool{},
	}

	out.Push(produce(0, 0))
	r.ReconcileTick(0, out, houses, rec)
	if len(rec.ran) != 0 {
		t.Fatal("expected nothing to run without a human house")
	}
	if r.Len() != 1 {
		t.Fatalf("expected command kept while frame not passed, got %d", r.Len())
	}
	r.ReconcileTick(1, out, houses, rec)
	if r.Len() != 0 {
		t.Errorf("expected late command dropped, got %d", r.Len())
	}
}

func TestPendingCapacity(t *testing.T) {
	out := NewOutgoing(DefaultOutgoingCapacity)
	r := NewReconciler(2)
	for i := 0; i < 3; i++ {
		out.Push(produce(0, 50))
	}
	res := r.ReconcileTick(0, out, twoHumans(), &recorder{})
	if res.Drained != 2 || res.Dropped != 1 {
		t.Errorf("expected 2 drained and 1 dropped, got %d and %d", res.Drained, res.Dropped)
	}
}

func TestRestoreKeepsOrder(t *testing.T) {
	r := NewReconciler(0)
	cmds := []Command{produce(0, 5), produce(1, 6), produce(0, 9)}
	for i := range cmds {
		cmds[i].Seq = uint64(i + 1)
	}
	r.Restore(cmds)
	cmds[0].Frame = 99

	got := r.Pending()
	if len(got) != 3 || got[0].Frame != 5 || got[2].Seq != 3 {
		t.Errorf("unexpected pending after restore %+v", got)
	}
	got[1].Frame = 0
	if r.Pending()[1].Frame != 6 {
		t.Error("Pending must return a copy")
	}
}

func TestParseCommandKind(t *testing.T) {
	if k, err := ParseCommandKind("special_place"); err != nil || k != CommandSpecialPlace {
		t.Errorf("expected special_place, got %q (%v)", k, err)
	}
	if _, err := ParseCommandKind("nuke"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestOutgoingPeekAndRestore(t *testing.T) {
	out := NewOutgoing(2)
	out.Push(produce(0, 5))
	out.Push(produce(1, 6))

	peeked := out.Peek()
	if len(peeked) != 2 || out.Len() != 2 {
		t.Fatalf("expected peek to leave 2 staged, got %d staged, %d peeked", out.Len(), len(peeked))
	}

	fresh := NewOutgoing(2)
	extra := produce(0, 7)
	extra.Seq = 9
	if dropped := fresh.Restore(append(peeked, extra), 9); dropped != 1 {
		t.Errorf("expected 1 dropped on restore, got %d", dropped)
	}
	got := fresh.Drain()
	if len(got) != 2 || got[0].Seq != 1 || got[1].Seq != 2 {
		t.Fatalf("expected seqs 1,2 kept, got %+v", got)
	}
	if c, _ := fresh.Push(produce(0, 8)); c.Seq != 10 {
		t.Errorf("expected numbering to continue at 10, got %d", c.Seq)
	}
}

func TestFixedDelayNeverStarvesLaterCommands(t *testing.T) {
	const delay = 8
	out := NewOutgoing(DefaultOutgoingCapacity)
	r := NewReconciler(16)
	rec := &recorder{}
	houses := twoHumans()

	dropped := 0
	for frame := uint32(0); frame < 2000; frame++ {
		if frame < 1500 {
			out.Push(produce(model.HouseID(frame%2), frame+delay))
		}
		res := r.ReconcileTick(frame, out, houses, rec)
		dropped += res.Dropped
		if r.Len() > delay+1 {
			t.Fatalf("pending list grew to %d at frame %d", r.Len(), frame)
		}
	}
	if dropped != 0 {
		t.Errorf("expected no drops, got %d", dropped)
	}
	if len(rec.ran) != 1500 {
		t.Fatalf("expected 1500 executions, got %d", len(rec.ran))
	}
	for i, c := range rec.ran {
		if c.Seq != uint64(i+1) {
			t.Fatalf("execution %d: expected seq %d, got %d", i, i+1, c.Seq)
		}
	}
}
