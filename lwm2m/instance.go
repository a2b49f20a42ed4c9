package lwm2m

import "slices"

// InstanceList maps instance IDs to instance state and keeps the IDs in
// ascending order. The zero value is not usable; a nil list finds nothing.
type InstanceList[T any] struct {
	ids   []uint16
	items map[uint16]T
}

func NewInstanceList[T any]() *InstanceList[T] {
	return &InstanceList[T]{items: make(map[uint16]T)}
}

// Add stores v under id. It reports false and leaves the list unchanged if
// id is already present.
func (l *InstanceList[T]) Add(id uint16, v T) bool {
	if _, ok := l.items[id]; ok {
		return false
	}
	pos, _ := slices.BinarySearch(l.ids, id)
	l.ids = slices.Insert(l.ids, pos, id)
	l.items[id] = v
	return true
}

func (l *InstanceList[T]) Find(id uint16) (T, bool) {
	var zero T
	if l == nil {
		return zero, false
	}
	v, ok := l.items[id]
	if !ok {
		return zero, false
	}
	return v, true
}

func (l *InstanceList[T]) Remove(id uint16) (T, bool) {
	var zero T
	if l == nil {
		return zero, false
	}
	v, ok := l.items[id]
	if !ok {
		return zero, false
	}
	delete(l.items, id)
	pos, _ := slices.BinarySearch(l.ids, id)
	l.ids = slices.Delete(l.ids, pos, pos+1)
	return v, true
}

// IDs returns a copy of the instance IDs in ascending order.
func (l *InstanceList[T]) IDs() []uint16 {
	if l == nil {
		return nil
	}
	return slices.Clone(l.ids)
}

func (l *InstanceList[T]) Len() int {
	if l == nil {
		return 0
	}
	return len(l.ids)
}

func (l *InstanceList[T]) Clear() {
	if l == nil {
		return
	}
	l.ids = nil
	clear(l.items)
}
