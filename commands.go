package voxstream

// Commands is the handle systems use to change the world. Entity and
// component changes are buffered and applied between stages.
type Commands struct {
	app *App
}

func (cmd *Commands) ChangeState(newState State) *Commands {
	cmd.app.changeState(newState)
	return cmd
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

func (cmd *Commands) AddEntity(components ...any) EntityId {
	eid := cmd.app.ecs.nextEntityId()
	cmd.app.pending = append(cmd.app.pending, pendingOp{
		kind:       opAddEntity,
		eid:        eid,
		components: components,
	})
	return eid
}

func (cmd *Commands) AddComponents(entityId EntityId, components ...any) {
	cmd.app.pending = append(cmd.app.pending, pendingOp{
		kind:       opAddComponents,
		eid:        entityId,
		components: components,
	})
}

func (cmd *Commands) RemoveComponents(entityId EntityId, components ...any) {
	cmd.app.pending = append(cmd.app.pending, pendingOp{
		kind:       opRemoveComponents,
		eid:        entityId,
		components: components,
	})
}

func (cmd *Commands) RemoveEntity(entityId EntityId) {
	cmd.app.pending = append(cmd.app.pending, pendingOp{
		kind: opRemoveEntity,
		eid:  entityId,
	})
}

func (cmd *Commands) GetAllComponents(entityId EntityId) []any {
	ecs := cmd.app.ecs
	archId, ok := ecs.entityIndex[entityId]
	if !ok {
		return nil
	}
	arch := ecs.archetypes[archId]
	row := arch.entities[entityId]

	res := make([]any, 0, len(arch.key))
	for _, componentId := range arch.key {
		val := reflectSliceGet(arch.componentData[componentId], int(row))
		res = append(res, val.Interface())
	}
	return res
}

// Logger returns the app logger, or a no-op logger if none is installed.
func (cmd *Commands) Logger() Logger {
	return cmd.app.Logger()
}

// Stop asks the app to finish after the current frame.
func (cmd *Commands) Stop() {
	cmd.app.Stop()
}
