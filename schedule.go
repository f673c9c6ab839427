package voxstream

import (
	"fmt"
	"slices"
)

type State int

type UpdateType int

const (
	FixedUpdate UpdateType = iota
	DynamicUpdate
)

type Stage struct {
	Name       string
	UpdateType UpdateType
}

var (
	Prelude    = Stage{Name: "Prelude", UpdateType: DynamicUpdate}
	PreUpdate  = Stage{Name: "PreUpdate", UpdateType: DynamicUpdate}
	FixedTick  = Stage{Name: "FixedTick", UpdateType: FixedUpdate}
	Update     = Stage{Name: "Update", UpdateType: DynamicUpdate}
	PostUpdate = Stage{Name: "PostUpdate", UpdateType: DynamicUpdate}
	PreRender  = Stage{Name: "PreRender", UpdateType: DynamicUpdate}
	Render     = Stage{Name: "Render", UpdateType: DynamicUpdate}
	PostRender = Stage{Name: "PostRender", UpdateType: DynamicUpdate}
	Finale     = Stage{Name: "Finale", UpdateType: DynamicUpdate}
)

// DefaultStages is the stage order every app starts with.
func DefaultStages() []Stage {
	return []Stage{Prelude, PreUpdate, FixedTick, Update, PostUpdate, PreRender, Render, PostRender, Finale}
}

type statePhase int

const (
	enter   statePhase = 0
	execute statePhase = 1
	exit    statePhase = 2
)

type systemScheduleBuilder struct {
	inStage       Stage
	runAlways     bool
	inState       State
	inStatePhase  statePhase
	system        systemFn
	stateProvided bool
}

type stateScheduleBuilder struct {
	state  State
	phase  statePhase
	always bool
}

func OnEnter(state State) stateScheduleBuilder {
	return stateScheduleBuilder{state: state, phase: enter}
}

func OnExecute(state State) stateScheduleBuilder {
	return stateScheduleBuilder{state: state, phase: execute}
}

func OnExit(state State) stateScheduleBuilder {
	return stateScheduleBuilder{state: state, phase: exit}
}

func Always() stateScheduleBuilder {
	return stateScheduleBuilder{always: true}
}

// System starts a schedule entry; by default it runs in Update in every
// state.
func System(system systemFn) systemScheduleBuilder {
	return systemScheduleBuilder{
		system:  system,
		inStage: Update,
	}
}

func (sched systemScheduleBuilder) InStage(s Stage) systemScheduleBuilder {
	sched.inStage = s
	return sched
}

func (sched systemScheduleBuilder) InState(s stateScheduleBuilder) systemScheduleBuilder {
	sched.runAlways = s.always
	sched.inState = s.state
	sched.inStatePhase = s.phase
	sched.stateProvided = true
	return sched
}

func (sched systemScheduleBuilder) RunAlways() systemScheduleBuilder {
	sched.runAlways = true
	return sched
}

func (sched systemScheduleBuilder) InAnyState() systemScheduleBuilder {
	return sched.RunAlways()
}

type stagePosition int

const (
	stageBefore stagePosition = iota
	stageAfter
)

type stagePositionBuilder struct {
	position stagePosition
	target   Stage
}

func BeforeStage(s Stage) stagePositionBuilder {
	return stagePositionBuilder{position: stageBefore, target: s}
}

func AfterStage(s Stage) stagePositionBuilder {
	return stagePositionBuilder{position: stageAfter, target: s}
}

func (app *App) UseStage(stage Stage, where stagePositionBuilder) *App {
	stageIdx := slices.IndexFunc(app.stages, func(s Stage) bool { return s.Name == where.target.Name })
	if -1 == stageIdx {
		panic(fmt.Sprintf("Stage %v not found", where.target.Name))
	}

	insertAt := stageIdx
	if stageAfter == where.position {
		insertAt = stageIdx + 1
	}

	app.stages = slices.Insert(app.stages, insertAt, stage)
	app.initStage(stage)
	return app
}

func (app *App) UseSystem(system systemScheduleBuilder) *App {
	if _, ok := app.systemsStateless[system.inStage.Name]; !ok {
		panic(fmt.Sprintf("Stage %v doesn't exist", system.inStage.Name))
	}

	if system.runAlways || !system.stateProvided {
		app.systemsStateless[system.inStage.Name] = append(app.systemsStateless[system.inStage.Name], system.system)
		return app
	}

	if !app.stateful {
		panic("Trying to use a stateful system in a stateless app.")
	}
	systemsInState, ok := app.systems[system.inStage.Name][system.inState]
	if !ok {
		panic(fmt.Sprintf("State %v doesn't exist", system.inState))
	}
	systemsInState[system.inStatePhase] = append(systemsInState[system.inStatePhase], system.system)
	return app
}

func (app *App) initStage(stage Stage) {
	app.systemsStateless[stage.Name] = make([]systemFn, 0)

	if app.stateful {
		app.systems[stage.Name] = make(map[State]map[statePhase][]systemFn)
		for state := app.initialState; state <= app.finalState; state += 1 {
			app.systems[stage.Name][state] = map[statePhase][]systemFn{
				enter:   {},
				execute: {},
				exit:    {},
			}
		}
	}
}
