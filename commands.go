package tumble

import (
	"reflect"
)

type Commands struct {
	app *App
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

// AddEntity reserves an EntityId immediately but defers the insertion
// until the next command flush, so it is safe to call mid-query.
func (cmd *Commands) AddEntity(components ...any) EntityId {
	eid := cmd.app.ecs.nextEntityId()
	cmd.app.pendingAdditions = append(cmd.app.pendingAdditions, pendingAdd{
		eid:        eid,
		components: components,
	})
	return eid
}

func (cmd *Commands) AddComponents(entityId EntityId, components ...any) {
	cmd.app.pendingCompAdds = append(cmd.app.pendingCompAdds, pendingCompAdd{
		eid:        entityId,
		components: components,
	})
}

func (cmd *Commands) RemoveComponents(entityId EntityId, components ...any) {
	cmd.app.pendingCompRemovals = append(cmd.app.pendingCompRemovals, pendingCompRemoval{
		eid:        entityId,
		components: components,
	})
}

func (cmd *Commands) RemoveEntity(entityId EntityId) {
	cmd.app.pendingRemovals = append(cmd.app.pendingRemovals, entityId)
}

// Quit asks the run loop to stop after the current tick completes.
func (cmd *Commands) Quit() {
	cmd.app.quitRequested = true
}

func (cmd *Commands) HasEntity(entityId EntityId) bool {
	return cmd.app.ecs.hasEntity(entityId)
}

func (cmd *Commands) GetAllComponents(entityId EntityId) []any {
	ecs := cmd.app.ecs
	archId, ok := ecs.entityIndex[entityId]
	if !ok {
		return nil
	}
	arch := ecs.archetypes[archId]

	row := arch.entities[entityId]

	var res []any
	for _, componentsSlice := range arch.componentData {
		val := reflectSliceGet(componentsSlice, int(row))
		res = append(res, val.Interface())
	}
	return res
}

// GetComponent resolves one component of one entity in place. The
// returned pointer stays valid until the next structural change
// (command flush) moves the entity between archetypes.
func GetComponent[T any](cmd *Commands, entityId EntityId) (*T, bool) {
	ecs := cmd.app.ecs

	archId, ok := ecs.entityIndex[entityId]
	if !ok {
		return nil, false
	}
	arch := ecs.archetypes[archId]
	row := arch.entities[entityId]

	var zero T
	id := ecs.getComponentId(reflect.TypeOf(zero))
	data, ok := arch.componentData[id]
	if !ok {
		return nil, false
	}
	comps := data.([]T)
	return &comps[row], true
}
