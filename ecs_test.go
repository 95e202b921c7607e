package tumble

import (
	"reflect"
	"testing"
)

type posComp struct {
	x, y float32
}

type velComp struct {
	dx, dy float32
}

type tagComp struct{}

func TestEcs_MakeEcs(t *testing.T) {
	ecs := MakeEcs()

	if len(ecs.archetypes) != 0 {
		t.Errorf("Expected archetypes to be empty, got %v", ecs.archetypes)
	}
	if len(ecs.entityIndex) != 0 {
		t.Errorf("Expected entityIndex to be empty, got %v", ecs.entityIndex)
	}
	if ecs.entityIdCounter != 0 {
		t.Errorf("Expected entityIdCounter to be 0, got %v", ecs.entityIdCounter)
	}
}

func TestEcs_AddEntity(t *testing.T) {
	ecs := MakeEcs()

	entityId := ecs.addEntity()
	if _, ok := ecs.entityIndex[entityId]; !ok {
		t.Errorf("Expected entityId %v to be in entityIndex", entityId)
	}

	entityId2 := ecs.addEntity(posComp{x: 1})
	if _, ok := ecs.entityIndex[entityId2]; !ok {
		t.Errorf("Expected entityId %v to be in entityIndex", entityId2)
	}

	if ecs.entityIndex[entityId] == ecs.entityIndex[entityId2] {
		t.Errorf("Entities with different components ended up in the same Archetype")
	}
}

func TestEcs_AddComponents(t *testing.T) {
	ecs := MakeEcs()

	eid := ecs.addEntity(posComp{x: 3, y: 4})
	before := ecs.entityIndex[eid]

	ecs.addComponents(eid, velComp{dx: 1})
	after := ecs.entityIndex[eid]

	if before == after {
		t.Errorf("Expected entity to move to a new archetype after addComponents")
	}

	arch := ecs.archetypes[after]
	if len(arch.key) != 2 {
		t.Errorf("Expected archetype key with 2 components, got %d", len(arch.key))
	}

	// Existing component survived the move
	row := arch.entities[eid]
	posId := ecs.getComponentId(reflect.TypeOf(posComp{}))
	pos := arch.componentData[posId].([]posComp)[row]
	if pos.x != 3 || pos.y != 4 {
		t.Errorf("Component data lost during archetype move: got %v", pos)
	}
}

func TestEcs_RemoveComponents(t *testing.T) {
	ecs := MakeEcs()

	eid := ecs.addEntity(posComp{x: 1}, velComp{dx: 2})
	ecs.removeComponents(eid, velComp{})

	arch := ecs.archetypes[ecs.entityIndex[eid]]
	if len(arch.key) != 1 {
		t.Errorf("Expected 1 component after removal, got %d", len(arch.key))
	}

	row := arch.entities[eid]
	posId := ecs.getComponentId(reflect.TypeOf(posComp{}))
	pos := arch.componentData[posId].([]posComp)[row]
	if pos.x != 1 {
		t.Errorf("Remaining component lost its data: got %v", pos)
	}
}

func TestEcs_RemoveEntity(t *testing.T) {
	ecs := MakeEcs()

	eid := ecs.addEntity(posComp{})
	if !ecs.hasEntity(eid) {
		t.Fatalf("Expected entity %v to exist", eid)
	}

	ecs.removeEntity(eid)
	if ecs.hasEntity(eid) {
		t.Errorf("Expected entity %v to be gone", eid)
	}

	// Removing twice is a no-op
	ecs.removeEntity(eid)
}

func TestEcs_RecycledRows(t *testing.T) {
	ecs := MakeEcs()

	a := ecs.addEntity(posComp{x: 1})
	ecs.addEntity(posComp{x: 2})
	ecs.removeEntity(a)

	// A new entity with the same shape reuses the freed row
	c := ecs.addEntity(posComp{x: 3})
	arch := ecs.archetypes[ecs.entityIndex[c]]
	if len(arch.recycled) != 0 {
		t.Errorf("Expected recycled row to be reused, %d still free", len(arch.recycled))
	}

	row := arch.entities[c]
	posId := ecs.getComponentId(reflect.TypeOf(posComp{}))
	pos := arch.componentData[posId].([]posComp)[row]
	if pos.x != 3 {
		t.Errorf("Recycled row holds stale data: got %v", pos)
	}
}
