package voxstream

import (
	"time"
)

const (
	DefaultTickRate      = 60
	DefaultMaxFixedSteps = 5
)

type Time struct {
	Time time.Time
	Dt   time.Duration
}

// FixedTime accumulates frame time into whole ticks of Step. Steps is the
// number of times FixedTick stages run in the current frame.
type FixedTime struct {
	Step     time.Duration
	MaxSteps int
	Steps    int
	Ticks    uint64

	accumulator time.Duration
}

// TimeModule provides Time and FixedTime. In Manual mode the wall clock is
// ignored: every frame advances Time by one Step and runs exactly one tick.
type TimeModule struct {
	TickRate int
	Manual   bool
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	rate := mod.TickRate
	if rate <= 0 {
		rate = DefaultTickRate
	}
	step := time.Second / time.Duration(rate)

	cmd.AddResources(
		&Time{Time: time.Now()},
		&FixedTime{Step: step, MaxSteps: DefaultMaxFixedSteps},
	)

	if mod.Manual {
		app.UseSystem(System(manualTimeSystem).InStage(Prelude).RunAlways())
		return
	}
	app.UseSystem(System(timeSystem).InStage(Prelude).RunAlways())
	app.UseSystem(System(fixedTimeSystem).InStage(Prelude).RunAlways())
}

func timeSystem(timeResource *Time) {
	now := time.Now()

	timeResource.Dt = now.Sub(timeResource.Time)
	timeResource.Time = now
}

func manualTimeSystem(timeResource *Time, fixed *FixedTime) {
	timeResource.Dt = fixed.Step
	timeResource.Time = timeResource.Time.Add(fixed.Step)
	fixed.Steps = 1
	fixed.Ticks++
}

// fixedTimeSystem drops accumulated time beyond MaxSteps ticks so a long
// stall does not turn into a burst of catch-up ticks.
func fixedTimeSystem(timeResource *Time, fixed *FixedTime) {
	fixed.accumulator += timeResource.Dt
	steps := int(fixed.accumulator / fixed.Step)
	if fixed.MaxSteps > 0 && steps > fixed.MaxSteps {
		steps = fixed.MaxSteps
		fixed.accumulator = 0
	} else {
		fixed.accumulator -= time.Duration(steps) * fixed.Step
	}
	fixed.Steps = steps
	fixed.Ticks += uint64(steps)
}
