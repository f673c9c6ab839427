package voxstream

import (
	"fmt"
	"reflect"
	"runtime"
)

type systemFn any

// Module bundles resources and systems. Install runs once, from
// AppBuilder.Build, in the order modules were added.
type Module interface {
	Install(app *App, cmd *Commands)
}

type App struct {
	stateful           bool
	stateTransitioning bool
	initialState       State
	finalState         State
	nextState          State
	state              State
	stages             []Stage
	systems            map[string]map[State]map[statePhase][]systemFn
	systemsStateless   map[string][]systemFn
	resources          map[reflect.Type]any
	ecs                *Ecs

	pending []pendingOp

	started bool
	stopped bool
	frame   uint64
	closers []func()
}

type pendingOpKind int

const (
	opAddEntity pendingOpKind = iota
	opAddComponents
	opRemoveComponents
	opRemoveEntity
)

type pendingOp struct {
	kind       pendingOpKind
	eid        EntityId
	components []any
}

func (app *App) Commands() *Commands {
	return &Commands{app: app}
}

// Run steps the app until Stop is called or the final state is reached,
// then runs the registered closers.
func (app *App) Run() {
	defer app.Close()
	for !app.Step() {
	}
}

// Step runs one frame: every stage once, except FixedUpdate stages which
// run once per fixed tick accumulated this frame. It reports whether the
// app has finished.
func (app *App) Step() bool {
	if !app.started {
		app.start()
	}
	if app.stopped {
		return true
	}

	app.callSystems(app.state, execute)
	app.frame++

	if app.stateful {
		if app.stateTransitioning {
			app.stateTransitioning = false
			app.executeChangeState(app.nextState)
		}

		if app.state == app.finalState {
			app.callSystems(app.state, exit)
			app.stopped = true
		}
	}
	return app.stopped
}

// Frame is the number of completed Steps.
func (app *App) Frame() uint64 {
	return app.frame
}

// Stop makes the next Step report completion.
func (app *App) Stop() {
	app.stopped = true
}

// OnClose registers fn to run from Close. Closers run in reverse order.
func (app *App) OnClose(fn func()) {
	app.closers = append(app.closers, fn)
}

func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
}

func (app *App) start() {
	app.started = true
	if app.stateful {
		app.Logger().Debugf("running in stateful mode")
		app.state = app.initialState
		app.callSystems(app.state, enter)
	} else {
		app.Logger().Debugf("running in stateless mode")
	}
}

func (app *App) callSystems(state State, phase statePhase) {
	for _, stage := range app.stages {
		repeat := 1
		if phase == execute && stage.UpdateType == FixedUpdate {
			repeat = app.fixedSteps()
		}

		for i := 0; i < repeat; i++ {
			// On execute, call stateless/always run systems first
			if execute == phase {
				for _, system := range app.systemsStateless[stage.Name] {
					app.callSystem(system)
				}
			}

			if app.stateful {
				for _, system := range app.systems[stage.Name][state][phase] {
					app.callSystem(system)
				}
			}
			app.FlushCommands()
		}
	}
}

func (app *App) fixedSteps() int {
	if ft, ok := Resource[FixedTime](app); ok {
		return ft.Steps
	}
	return 1
}

func (app *App) changeState(newState State) {
	app.nextState = newState
	app.stateTransitioning = true
}

func (app *App) executeChangeState(newState State) {
	app.callSystems(app.state, exit)
	app.state = newState
	app.callSystems(app.state, enter)
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("resource %s must be a pointer", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
	}
	return app
}

func (app *App) hasResource(t reflect.Type) bool {
	_, ok := app.resources[t]
	return ok
}

// Resource returns the resource of type *T if one was added.
func Resource[T any](app *App) (*T, bool) {
	r, ok := app.resources[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	return r.(*T), true
}

var typeOfCommands = reflect.TypeOf(Commands{})

// callSystem resolves each *T parameter to the Commands handle or to the
// resource of type T, then calls the system.
func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		if argType.Kind() != reflect.Pointer {
			app.unresolved(systemType, systemValue, argType)
		}
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, argIsResource := app.resources[underlyingType]; argIsResource {
			args[i] = reflect.ValueOf(resource)
		} else {
			app.unresolved(systemType, systemValue, argType)
		}
	}
	systemValue.Call(args)
}

func (app *App) unresolved(systemType reflect.Type, systemValue reflect.Value, argType reflect.Type) {
	msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
		runtime.FuncForPC(systemValue.Pointer()).Name(),
		fmt.Sprint(systemType),
		fmt.Sprint(argType),
	)
	app.Logger().Errorf("%s", msg)
	panic(msg)
}

// FlushCommands applies buffered entity changes in the order they were
// issued.
func (app *App) FlushCommands() {
	if len(app.pending) == 0 {
		return
	}

	ops := app.pending
	app.pending = nil
	for _, op := range ops {
		switch op.kind {
		case opAddEntity:
			app.ecs.insertEntity(op.eid, op.components...)
		case opAddComponents:
			app.ecs.addComponents(op.eid, op.components...)
		case opRemoveComponents:
			app.ecs.removeComponents(op.eid, op.components...)
		case opRemoveEntity:
			app.ecs.removeEntity(op.eid)
		}
	}
}
