package voxstream

import (
	"reflect"
	"slices"
)

// Query1..Query3 visit entities that carry every requested component.
// Components passed as optionals may be missing; their pointer is nil then.
// Entities are visited in archetype key order, then entity id order.
type Query1[A any] struct{ ecs *Ecs }
type Query2[A, B any] struct{ ecs *Ecs }
type Query3[A, B, C any] struct{ ecs *Ecs }

func MakeQuery1[A any](cmd *Commands) Query1[A]             { return Query1[A]{ecs: cmd.app.ecs} }
func MakeQuery2[A, B any](cmd *Commands) Query2[A, B]       { return Query2[A, B]{ecs: cmd.app.ecs} }
func MakeQuery3[A, B, C any](cmd *Commands) Query3[A, B, C] { return Query3[A, B, C]{ecs: cmd.app.ecs} }

func (q Query1[A]) Map(m func(EntityId, *A) bool, optionals ...any) {
	id1 := identifyComponent[A](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.matching(opt, id1) {
		comps1, _ := arch.componentData[id1].([]A)
		for _, entityId := range arch.sortedEntities() {
			row := arch.entities[entityId]
			if !m(entityId, componentAt(comps1, row)) {
				return
			}
		}
	}
}

func (q Query2[A, B]) Map(m func(EntityId, *A, *B) bool, optionals ...any) {
	id1 := identifyComponent[A](q.ecs)
	id2 := identifyComponent[B](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.matching(opt, id1, id2) {
		comps1, _ := arch.componentData[id1].([]A)
		comps2, _ := arch.componentData[id2].([]B)
		for _, entityId := range arch.sortedEntities() {
			row := arch.entities[entityId]
			if !m(entityId, componentAt(comps1, row), componentAt(comps2, row)) {
				return
			}
		}
	}
}

func (q Query3[A, B, C]) Map(m func(EntityId, *A, *B, *C) bool, optionals ...any) {
	id1 := identifyComponent[A](q.ecs)
	id2 := identifyComponent[B](q.ecs)
	id3 := identifyComponent[C](q.ecs)
	opt := identifyOptionals(q.ecs, optionals...)

	for _, arch := range q.ecs.matching(opt, id1, id2, id3) {
		comps1, _ := arch.componentData[id1].([]A)
		comps2, _ := arch.componentData[id2].([]B)
		comps3, _ := arch.componentData[id3].([]C)
		for _, entityId := range arch.sortedEntities() {
			row := arch.entities[entityId]
			if !m(entityId, componentAt(comps1, row), componentAt(comps2, row), componentAt(comps3, row)) {
				return
			}
		}
	}
}

// matching returns the archetypes holding every non-optional id.
func (ecs *Ecs) matching(optional set[componentId], ids ...componentId) []*archetype {
	required := make(archetypeKey, 0, len(ids))
	for _, id := range ids {
		if _, ok := optional[id]; !ok {
			required = append(required, id)
		}
	}
	required = dedupAndSortArchetypeKey(required)

	var res []*archetype
	for _, arch := range ecs.archetypes {
		if len(arch.entities) > 0 && arch.hasAll(required) {
			res = append(res, arch)
		}
	}
	slices.SortFunc(res, func(a, b *archetype) int {
		return slices.Compare(a.key, b.key)
	})
	return res
}

func componentAt[T any](comps []T, r row) *T {
	if comps == nil {
		return nil
	}
	return &comps[r]
}

func identifyOptionals(ecs *Ecs, components ...any) set[componentId] {
	res := make(set[componentId])
	for _, c := range components {
		res[ecs.getComponentId(componentType(c))] = struct{}{}
	}
	return res
}

func identifyComponent[A any](ecs *Ecs) componentId {
	var a A
	return ecs.getComponentId(reflect.TypeOf(a))
}
