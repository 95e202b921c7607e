package tumble

import (
	"github.com/go-gl/mathgl/mgl32"
)

type ContactOutcome int

const (
	OutcomeIrrelevant ContactOutcome = iota
	OutcomeGoalEntered
	OutcomeBallContactBegin
	OutcomeBallContactEnd
)

// classifyContact turns one raw contact event into a typed gameplay
// outcome. Pure: the goal lookup is passed in, so the function tests
// without a live solver. Goal contacts never count as rolling
// contacts — a sensor exerts no surface to roll on.
func classifyContact(ev ContactEvent, ball EntityId, hasBall bool, isGoal func(EntityId) bool) ContactOutcome {
	goalInvolved := isGoal(ev.A) || isGoal(ev.B)
	if goalInvolved {
		if ev.Kind == ContactBegin {
			return OutcomeGoalEntered
		}
		return OutcomeIrrelevant
	}

	if !hasBall || (ev.A != ball && ev.B != ball) {
		return OutcomeIrrelevant
	}
	if ev.Kind == ContactBegin {
		return OutcomeBallContactBegin
	}
	return OutcomeBallContactEnd
}

// RollingAudio owns the lazily started rolling loop for the singleton
// ball.
type RollingAudio struct {
	handle *LoopHandle
}

func (r *RollingAudio) Handle() *LoopHandle {
	return r.handle
}

type GoalModule struct{}

func (GoalModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&RollingAudio{})
	app.UseSystem(System(contactClassifierSystem).InStage(Update))
	app.UseSystem(System(rollingVolumeSystem).InStage(Update))
	app.UseSystem(System(goalSpinSystem).InStage(Update))
}

// contactClassifierSystem drains this tick's contact events. A goal
// entry wins the level: win cue plus banner, replacing any previous
// win banner so repeated entries re-announce rather than stack. Ball
// surface contacts gate the rolling loop.
func contactClassifierSystem(contacts *Contacts, balls *BallRegistry, rolling *RollingAudio, audio *AudioServer, cmd *Commands) {
	ball, hasBall := balls.Ball()
	isGoal := func(eid EntityId) bool {
		_, ok := GetComponent[GoalTag](cmd, eid)
		return ok
	}

	for _, ev := range contacts.Events {
		switch classifyContact(ev, ball, hasBall, isGoal) {
		case OutcomeGoalEntered:
			audio.PlayCue(CueWin)
			DespawnBanners(cmd, BannerWin)
			SpawnBanner(cmd, BannerWin, "You Win!", [4]float32{1, 0.85, 0.2, 1})

		case OutcomeBallContactBegin:
			if rolling.handle == nil {
				rolling.handle = audio.StartLoop(LoopRolling)
			}
			rolling.handle.Unmute()

		case OutcomeBallContactEnd:
			if rolling.handle != nil {
				rolling.handle.Mute()
			}
		}
	}
}

// rollingVolumeSystem swells the rolling loop with the ball's linear
// speed. Volume tracks speed regardless of mute state; mute decides
// whether it is audible.
func rollingVolumeSystem(cfg *Config, balls *BallRegistry, rolling *RollingAudio, cmd *Commands) {
	if rolling.handle == nil {
		return
	}
	ball, ok := balls.Ball()
	if !ok {
		return
	}
	rb, ok := GetComponent[RigidBodyComponent](cmd, ball)
	if !ok {
		return
	}
	rolling.handle.SetVolume(rb.Velocity.Len() * cfg.Audio.RollingGain)
}

// goalSpinSystem rotates tagged entities about +Y, the goal's visual
// affordance.
func goalSpinSystem(timeRes *Time, cmd *Commands) {
	dt := float32(timeRes.Dt.Seconds())
	if dt <= 0 {
		return
	}
	MakeQuery2[Spinning, TransformComponent](cmd).Map(func(eid EntityId, spin *Spinning, tr *TransformComponent) bool {
		step := mgl32.QuatRotate(spin.Speed*dt, mgl32.Vec3{0, 1, 0})
		tr.Rotation = step.Mul(tr.Rotation).Normalize()
		return true
	})
}
