package instance

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nstehr/vimy/vimy-instance/model"
	"github.com/nstehr/vimy/vimy-instance/session"
)

// tauntOdds is the per-tick chance, 1 in tauntOdds, of a computer taunt in
// matches with AI houses.
const tauntOdds = 10000

// houseView walks registered houses in registration order. Single player
// sessions see only the local house.
type houseView struct{ in *Instance }

func (v houseView) HouseCount() int {
	if v.in.state.Mode() == session.SinglePlayer {
		return 1
	}
	return v.in.reg.Count()
}

func (v houseView) HouseAt(i int) (model.HouseID, bool) {
	if v.in.state.Mode() == session.SinglePlayer {
		h := v.in.state.ActiveHouse()
		return h, i == 0 && h.Valid()
	}
	s, ok := v.in.reg.Slot(i)
	if !ok || !s.House.Valid() {
		return model.HouseNone, false
	}
	return s.House, true
}

func (v houseView) IsHuman(h model.HouseID) bool { return v.in.engine.IsHuman(h) }

// AdvanceTick runs one frame. It returns false once the match has ended;
// callers then read GameOver and stop ticking.
func (in *Instance) AdvanceTick(ctx context.Context, requester model.PlayerID) (bool, error) {
	ctx, span := in.tracer.Start(ctx, "instance.AdvanceTick", trace.WithAttributes(
		attribute.Int64("requester", int64(requester)),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	in.mu.Lock()
	defer in.unlock()

	if !in.started {
		span.SetStatus(codes.Error, ErrNotStarted.Error())
		return false, ErrNotStarted
	}
	if in.gameOver != nil {
		return false, ErrGameOver
	}
	span.SetAttributes(
		attribute.String("instance", in.id.String()),
		attribute.Int64("frame", int64(in.frame)),
	)

	multiplayer := in.state.Mode() == session.Multiplayer
	if multiplayer {
		in.intake(requester)
		in.eachHouse(in.engine.SidebarAI)
		span.AddEvent("pre-pass")
	}

	if in.firstTick {
		in.firstTick = false
		span.AddEvent("shared tick skipped")
	} else {
		in.engine.AI()
	}

	res := in.rec.ReconcileTick(in.frame, in.out, houseView{in}, in.engine)
	span.AddEvent("reconciled", trace.WithAttributes(
		attribute.Int("drained", res.Drained),
		attribute.Int("executed", len(res.Executed)),
		attribute.Int("stale", res.Stale),
		attribute.Int("pending", in.rec.Len()),
	))
	if in.record != nil && len(res.Executed) > 0 {
		in.record.Executed(in.id, in.frame, res.Executed)
	}

	if multiplayer {
		in.eachHouse(in.engine.SidebarRecalc)
	} else {
		in.engine.SidebarRecalc(in.state.ActiveHouse())
	}

	if wins, loses := in.engine.Flags(); wins || loses {
		in.engine.ClearFlags()
		in.finish(wins)
		span.AddEvent("game over", trace.WithAttributes(attribute.Bool("playerWon", wins)))
		return false, nil
	}

	in.frame++

	if multiplayer && in.ghosts && in.rng.IntN(tauntOdds+1) == 1 {
		in.computerTaunt(false)
	}
	return true, nil
}

// intake binds the context to the requester, or to the first registered
// player when the requester is unknown.
func (in *Instance) intake(requester model.PlayerID) {
	if requester != model.NoPlayer && in.state.SetActive(requester, false) {
		return
	}
	if s, ok := in.reg.Slot(0); ok {
		in.state.SetActive(s.Player.ID, false)
	}
}

// eachHouse runs fn for every registered house under that house's context
// and restores the context that was active before.
func (in *Instance) eachHouse(fn func(model.HouseID)) {
	prev := in.state.ActiveHouse()
	for _, s := range in.reg.Slots() {
		if !s.House.Valid() {
			continue
		}
		in.state.SwitchForHouse(s.House)
		fn(s.House)
	}
	in.state.SwitchForHouse(prev)
}

// finish records the terminal event. It runs at most once per match.
func (in *Instance) finish(wins bool) {
	if in.gameOver != nil {
		return
	}
	ev := model.GameOver{
		Frame:       in.frame,
		Multiplayer: in.state.Mode() == session.Multiplayer,
		PlayerWon:   wins,
	}
	if ev.Multiplayer {
		for _, s := range in.reg.Slots() {
			hs, _ := in.engine.House(s.House)
			ev.Outcomes = append(ev.Outcomes, model.Outcome{
				Player:   s.Player.ID,
				Name:     s.Player.Name,
				House:    s.House,
				Team:     s.Player.Team,
				Human:    hs.IsHuman || hs.WasHuman,
				WasHuman: hs.WasHuman,
				Won:      wins && !hs.IsDefeated,
				Defeated: hs.IsDefeated,
			})
		}
	} else {
		h := in.state.ActiveHouse()
		hs, _ := in.engine.House(h)
		ev.Outcomes = []model.Outcome{{
			House:    h,
			Name:     hs.Name,
			Human:    true,
			Won:      wins,
			Defeated: !wins,
		}}
	}

	in.gameOver = &ev
	in.overs = append(in.overs, ev)
	if in.record != nil {
		in.record.GameOver(in.id, ev)
	}
	slog.Info("game over", "instance", in.id, "frame", ev.Frame, "multiplayer", ev.Multiplayer, "playerWon", wins)
}
