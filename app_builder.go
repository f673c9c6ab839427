package voxstream

import (
	"reflect"
)

type AppBuilder struct {
	app     *App
	modules []Module
}

func NewAppBuilder() *AppBuilder {
	ecs := MakeEcs()
	return &AppBuilder{app: &App{
		resources:        make(map[reflect.Type]any),
		systems:          make(map[string]map[State]map[statePhase][]systemFn),
		systemsStateless: make(map[string][]systemFn),
		ecs:              &ecs,
	}}
}

func (b *AppBuilder) UseStates(initialState State, finalState State) *AppBuilder {
	b.app.stateful = true
	b.app.initialState = initialState
	b.app.finalState = finalState
	return b
}

func (b *AppBuilder) UseModule(modules ...Module) *AppBuilder {
	b.modules = append(b.modules, modules...)
	return b
}

// Build lays out the default stages, then installs every module in order
// and applies the entities they spawned.
func (b *AppBuilder) Build() *App {
	app := b.app
	for _, stage := range DefaultStages() {
		app.stages = append(app.stages, stage)
		app.initStage(stage)
	}

	commands := app.Commands()
	for _, module := range b.modules {
		module.Install(app, commands)
	}
	app.FlushCommands()
	return app
}
