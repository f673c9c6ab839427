package voxstream

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"reflect"
	"slices"
	"sync"
)

type EntityId uint64
type archetypeId uint64
type archetypeKey []componentId
type componentId uint32
type row int
type set[T comparable] = map[T]struct{}

// Ecs stores entities grouped by archetype: the sorted set of component ids
// they carry. Each archetype keeps one typed slice per component.
type Ecs struct {
	archetypes  map[archetypeId]*archetype
	entityIndex map[EntityId]archetypeId

	idGeneratorLock sync.Mutex
	entityIdCounter EntityId

	componentIdCounterLock sync.Mutex
	componentIdCounter     componentId
	componentTypeIdMap     map[reflect.Type]componentId
	componentIdTypeMap     map[componentId]reflect.Type
}

func MakeEcs() Ecs {
	return Ecs{
		archetypes:         make(map[archetypeId]*archetype),
		entityIndex:        make(map[EntityId]archetypeId),
		componentTypeIdMap: make(map[reflect.Type]componentId),
		componentIdTypeMap: make(map[componentId]reflect.Type),
	}
}

type archetype struct {
	id            archetypeId
	key           archetypeKey
	entities      map[EntityId]row
	componentData map[componentId]any // typed slices via reflection
	recycled      []row
	rows          int
}

// hasAll reports whether every id in required is part of the archetype.
// Both keys are sorted, so this is a merge-style set intersection.
func (arch *archetype) hasAll(required archetypeKey) bool {
	i := 0
	for _, id := range arch.key {
		if i == len(required) {
			break
		}
		if id == required[i] {
			i++
		} else if id > required[i] {
			return false
		}
	}
	return i == len(required)
}

// sortedEntities returns the archetype's entities in id order.
func (arch *archetype) sortedEntities() []EntityId {
	ids := make([]EntityId, 0, len(arch.entities))
	for id := range arch.entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (ecs *Ecs) addEntity(components ...any) EntityId {
	entityId := ecs.nextEntityId()
	return ecs.insertEntity(entityId, components...)
}

func (ecs *Ecs) insertEntity(entityId EntityId, components ...any) EntityId {
	archId, _, arch := ecs.archetypeFromComponents(components...)

	row := ecs.archetypeReserveRow(arch)
	arch.entities[entityId] = row
	for _, component := range components {
		ecs.writeComponent(arch, row, component)
	}

	ecs.entityIndex[entityId] = archId
	return entityId
}

func (ecs *Ecs) hasEntity(entityId EntityId) bool {
	_, ok := ecs.entityIndex[entityId]
	return ok
}

func (ecs *Ecs) removeEntity(entityId EntityId) {
	if !ecs.hasEntity(entityId) {
		return
	}
	ecs.recycleEntity(entityId)
}

func (ecs *Ecs) addComponents(entityId EntityId, components ...any) {
	srcArchId, ok := ecs.entityIndex[entityId]
	if !ok {
		return
	}
	srcArch := ecs.archetypes[srcArchId]
	srcRow := srcArch.entities[entityId]

	dstArchId, _, dstArch := ecs.archetypeFromExtraComponents(srcArch, components...)
	if dstArchId == srcArchId {
		for _, component := range components {
			ecs.writeComponent(srcArch, srcRow, component)
		}
		return
	}
	dstRow := ecs.archetypeReserveRow(dstArch)

	ecs.moveComponents(srcArch, srcRow, dstArch, dstRow)
	for _, component := range components {
		ecs.writeComponent(dstArch, dstRow, component)
	}

	ecs.recycleEntity(entityId)

	dstArch.entities[entityId] = dstRow
	ecs.entityIndex[entityId] = dstArchId
}

func (ecs *Ecs) removeComponents(entityId EntityId, components ...any) {
	srcArchId, ok := ecs.entityIndex[entityId]
	if !ok {
		return
	}
	srcArch := ecs.archetypes[srcArchId]
	srcRow := srcArch.entities[entityId]

	removeSet := make(set[componentId])
	for _, c := range components {
		removeSet[ecs.getComponentId(componentType(c))] = struct{}{}
	}

	var dstKey archetypeKey
	for _, compId := range srcArch.key {
		if _, shouldRemove := removeSet[compId]; !shouldRemove {
			dstKey = append(dstKey, compId)
		}
	}

	dstArchId, dstArch := ecs.getOrMakeArchetype(dstKey)
	if dstArchId == srcArchId {
		return
	}
	dstRow := ecs.archetypeReserveRow(dstArch)

	ecs.moveComponents(srcArch, srcRow, dstArch, dstRow)
	ecs.recycleEntity(entityId)

	dstArch.entities[entityId] = dstRow
	ecs.entityIndex[entityId] = dstArchId
}

// moveComponents copies the components both archetypes share.
func (ecs *Ecs) moveComponents(srcArch *archetype, srcRow row, dstArch *archetype, dstRow row) {
	for _, componentId := range srcArch.key {
		dstData, ok := dstArch.componentData[componentId]
		if !ok {
			continue
		}
		srcValue := reflectSliceGet(srcArch.componentData[componentId], int(srcRow))
		reflectSliceSet(dstData, int(dstRow), srcValue)
	}
}

func (ecs *Ecs) writeComponent(dstArch *archetype, dstRow row, component any) {
	reflectValue := reflect.ValueOf(component)
	if reflectValue.Kind() == reflect.Pointer {
		reflectValue = reflectValue.Elem()
	}

	componentId := ecs.getComponentId(componentType(component))
	reflectSliceSet(dstArch.componentData[componentId], int(dstRow), reflectValue)
}

func (ecs *Ecs) recycleEntity(entityId EntityId) {
	archId := ecs.entityIndex[entityId]
	arch := ecs.archetypes[archId]

	row := arch.entities[entityId]
	// Zero the row so recycled slots do not pin pointers held by components.
	for _, componentId := range arch.key {
		reflectSliceSet(arch.componentData[componentId], int(row), reflect.Zero(ecs.componentIdTypeMap[componentId]))
	}
	arch.recycled = append(arch.recycled, row)

	delete(arch.entities, entityId)
	delete(ecs.entityIndex, entityId)
}

func (ecs *Ecs) archetypeFromComponents(components ...any) (archetypeId, archetypeKey, *archetype) {
	archKey := ecs.getArchetypeKey(components...)
	archId, arch := ecs.getOrMakeArchetype(archKey)
	return archId, archKey, arch
}

func (ecs *Ecs) archetypeFromExtraComponents(srcArch *archetype, components ...any) (archetypeId, archetypeKey, *archetype) {
	dstArchKey := combineArchetypeKeys(
		srcArch.key,
		ecs.getArchetypeKey(components...),
	)

	dstArchId, dstArch := ecs.getOrMakeArchetype(dstArchKey)
	return dstArchId, dstArchKey, dstArch
}

func (ecs *Ecs) getOrMakeArchetype(key archetypeKey) (archetypeId, *archetype) {
	id := getArchetypeId(key)

	if arch, ok := ecs.archetypes[id]; ok {
		return id, arch
	}

	arch := &archetype{
		id:            id,
		key:           key,
		entities:      make(map[EntityId]row),
		componentData: make(map[componentId]any),
	}
	for _, componentId := range arch.key {
		arch.componentData[componentId] = reflectSliceMake(ecs.componentIdTypeMap[componentId])
	}

	ecs.archetypes[id] = arch
	return id, arch
}

func (ecs *Ecs) archetypeReserveRow(arch *archetype) row {
	if len(arch.recycled) > 0 {
		row := arch.recycled[len(arch.recycled)-1]
		arch.recycled = arch.recycled[:len(arch.recycled)-1]
		return row
	}

	row := row(arch.rows)
	arch.rows++
	for _, componentId := range arch.key {
		arch.componentData[componentId] = reflectSliceAppend(
			arch.componentData[componentId],
			reflect.Zero(ecs.componentIdTypeMap[componentId]),
		)
	}
	return row
}

// getArchetypeKey returns the canonical key: sorted, deduplicated component
// ids. The archetype id is a hash of it.
func (ecs *Ecs) getArchetypeKey(components ...any) archetypeKey {
	var res archetypeKey
	for _, component := range components {
		res = append(res, ecs.getComponentId(componentType(component)))
	}
	return dedupAndSortArchetypeKey(res)
}

func componentType(component any) reflect.Type {
	compType := reflect.TypeOf(component)
	if compType != nil && compType.Kind() == reflect.Pointer {
		compType = compType.Elem()
	}
	if compType == nil || compType.Kind() != reflect.Struct {
		panic(fmt.Errorf("expected component to be a struct or a pointer to a struct, got %v", compType))
	}
	return compType
}

func combineArchetypeKeys(a archetypeKey, b archetypeKey) archetypeKey {
	combined := make(archetypeKey, 0, len(a)+len(b))
	combined = append(combined, a...)
	return dedupAndSortArchetypeKey(append(combined, b...))
}

func dedupAndSortArchetypeKey(key archetypeKey) archetypeKey {
	res := slices.Clone(key)
	slices.Sort(res)
	return slices.Compact(res)
}

func getArchetypeId(key archetypeKey) archetypeId {
	hash := fnv.New64a()
	b := make([]byte, 4)
	for _, componentId := range key {
		binary.LittleEndian.PutUint32(b, uint32(componentId))
		hash.Write(b)
	}
	return archetypeId(hash.Sum64())
}

func (ecs *Ecs) nextEntityId() EntityId {
	ecs.idGeneratorLock.Lock()
	defer ecs.idGeneratorLock.Unlock()

	id := ecs.entityIdCounter
	ecs.entityIdCounter += 1
	return id
}

func (ecs *Ecs) getComponentId(componentType reflect.Type) componentId {
	ecs.componentIdCounterLock.Lock()
	defer ecs.componentIdCounterLock.Unlock()

	if id, ok := ecs.componentTypeIdMap[componentType]; ok {
		return id
	}
	id := ecs.componentIdCounter
	ecs.componentIdCounter += 1

	ecs.componentTypeIdMap[componentType] = id
	ecs.componentIdTypeMap[id] = componentType
	return id
}

func (ecs *Ecs) getComponentType(componentId componentId) reflect.Type {
	if t, ok := ecs.componentIdTypeMap[componentId]; ok {
		return t
	}
	panic("ComponentID not registered")
}

func reflectSliceMake(elem reflect.Type) any {
	return reflect.MakeSlice(reflect.SliceOf(elem), 0, 1).Interface()
}

func reflectSliceGet(slice any, idx int) reflect.Value {
	return reflect.ValueOf(slice).Index(idx)
}

func reflectSliceSet(slice any, idx int, val reflect.Value) {
	reflect.ValueOf(slice).Index(idx).Set(val)
}

func reflectSliceAppend(slice any, val reflect.Value) any {
	return reflect.Append(reflect.ValueOf(slice), val).Interface()
}
