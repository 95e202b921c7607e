package tumble

import (
	"reflect"
)

// Queries iterate every archetype that carries the requested component
// set. Components passed as optionals may be absent; their pointer is
// nil for entities that lack them. Returning false from the mapping
// function stops the iteration early.
type Query1[A any] struct{ ecs *Ecs }
type Query2[A, B any] struct{ ecs *Ecs }
type Query3[A, B, C any] struct{ ecs *Ecs }
type Query4[A, B, C, D any] struct{ ecs *Ecs }
type Query5[A, B, C, D, E any] struct{ ecs *Ecs }

func MakeQuery1[A any](cmd *Commands) Query1[A]             { return Query1[A]{ecs: cmd.app.ecs} }
func MakeQuery2[A, B any](cmd *Commands) Query2[A, B]       { return Query2[A, B]{ecs: cmd.app.ecs} }
func MakeQuery3[A, B, C any](cmd *Commands) Query3[A, B, C] { return Query3[A, B, C]{ecs: cmd.app.ecs} }
func MakeQuery4[A, B, C, D any](cmd *Commands) Query4[A, B, C, D] {
	return Query4[A, B, C, D]{ecs: cmd.app.ecs}
}
func MakeQuery5[A, B, C, D, E any](cmd *Commands) Query5[A, B, C, D, E] {
	return Query5[A, B, C, D, E]{ecs: cmd.app.ecs}
}

// archSlice resolves the typed component column of an archetype.
// The second result says whether the column exists, the third whether
// the archetype matches the query at all (missing non-optional
// component means no match).
func archSlice[T any](ecs *Ecs, arch *archetype, optionals set[componentId]) ([]T, bool, bool) {
	var zero T
	id := ecs.getComponentId(reflect.TypeOf(zero))
	if data, ok := arch.componentData[id]; ok {
		return data.([]T), true, true
	}
	if _, ok := optionals[id]; ok {
		return nil, false, true
	}
	return nil, false, false
}

func rowPtr[T any](comps []T, present bool, r row) *T {
	if !present {
		return nil
	}
	return &comps[r]
}

func (q Query1[A]) Map(m func(EntityId, *A) bool, optionals ...any) {
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		as, hasA, okA := archSlice[A](q.ecs, arch, opt)
		if !okA {
			continue
		}

		for entityId, row := range arch.entities {
			if !m(entityId, rowPtr(as, hasA, row)) {
				return
			}
		}
	}
}

func (q Query2[A, B]) Map(m func(EntityId, *A, *B) bool, optionals ...any) {
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		as, hasA, okA := archSlice[A](q.ecs, arch, opt)
		bs, hasB, okB := archSlice[B](q.ecs, arch, opt)
		if !okA || !okB {
			continue
		}

		for entityId, row := range arch.entities {
			if !m(entityId, rowPtr(as, hasA, row), rowPtr(bs, hasB, row)) {
				return
			}
		}
	}
}

func (q Query3[A, B, C]) Map(m func(EntityId, *A, *B, *C) bool, optionals ...any) {
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		as, hasA, okA := archSlice[A](q.ecs, arch, opt)
		bs, hasB, okB := archSlice[B](q.ecs, arch, opt)
		cs, hasC, okC := archSlice[C](q.ecs, arch, opt)
		if !okA || !okB || !okC {
			continue
		}

		for entityId, row := range arch.entities {
			if !m(entityId, rowPtr(as, hasA, row), rowPtr(bs, hasB, row), rowPtr(cs, hasC, row)) {
				return
			}
		}
	}
}

func (q Query4[A, B, C, D]) Map(m func(EntityId, *A, *B, *C, *D) bool, optionals ...any) {
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		as, hasA, okA := archSlice[A](q.ecs, arch, opt)
		bs, hasB, okB := archSlice[B](q.ecs, arch, opt)
		cs, hasC, okC := archSlice[C](q.ecs, arch, opt)
		ds, hasD, okD := archSlice[D](q.ecs, arch, opt)
		if !okA || !okB || !okC || !okD {
			continue
		}

		for entityId, row := range arch.entities {
			if !m(entityId, rowPtr(as, hasA, row), rowPtr(bs, hasB, row), rowPtr(cs, hasC, row), rowPtr(ds, hasD, row)) {
				return
			}
		}
	}
}

func (q Query5[A, B, C, D, E]) Map(m func(EntityId, *A, *B, *C, *D, *E) bool, optionals ...any) {
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.archetypes {
		as, hasA, okA := archSlice[A](q.ecs, arch, opt)
		bs, hasB, okB := archSlice[B](q.ecs, arch, opt)
		cs, hasC, okC := archSlice[C](q.ecs, arch, opt)
		ds, hasD, okD := archSlice[D](q.ecs, arch, opt)
		es, hasE, okE := archSlice[E](q.ecs, arch, opt)
		if !okA || !okB || !okC || !okD || !okE {
			continue
		}

		for entityId, row := range arch.entities {
			if !m(entityId, rowPtr(as, hasA, row), rowPtr(bs, hasB, row), rowPtr(cs, hasC, row), rowPtr(ds, hasD, row), rowPtr(es, hasE, row)) {
				return
			}
		}
	}
}

func identifyOptionals(ecs *Ecs, components ...any) set[componentId] {
	res := make(set[componentId])
	for _, c := range components {
		res[ecs.getComponentId(reflect.TypeOf(c))] = struct{}{}
	}

	return res
}
