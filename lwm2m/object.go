package lwm2m

import (
	"errors"
	"fmt"
	"slices"
)

var ErrObjectExists = errors.New("lwm2m: object already registered")

type WriteType uint8

const (
	// WriteReplace replaces the targeted resources (CoAP PUT).
	WriteReplace WriteType = iota
	// WriteUpdate partially updates the instance (CoAP POST).
	WriteUpdate
)

// Object is the set of callbacks the host engine dispatches to. The host
// invokes them one at a time; implementations do no locking of their own.
//
// Read and Discover take the requested entries and return the entries they
// filled. An empty request means every resource of the instance and the
// returned slice is freshly allocated. On a non-success status the returned
// entries must not be used as content.
type Object interface {
	ID() LwM2MObjectID
	InstanceIDs() []uint16
	Read(instanceID uint16, data []Data) ([]Data, Status)
	Discover(instanceID uint16, data []Data) ([]Data, Status)
	Write(instanceID uint16, data []Data, writeType WriteType) Status
	Execute(instanceID, resourceID uint16, payload []byte) Status
	Close() error
}

// Registry maps object type IDs to the objects serving them.
type Registry struct {
	objects map[LwM2MObjectID]Object
}

func NewRegistry() *Registry {
	return &Registry{objects: make(map[LwM2MObjectID]Object)}
}

func (r *Registry) Register(obj Object) error {
	id := obj.ID()
	if _, ok := r.objects[id]; ok {
		return fmt.Errorf("%w: /%d", ErrObjectExists, id)
	}
	r.objects[id] = obj
	return nil
}

func (r *Registry) Get(id LwM2MObjectID) (Object, bool) {
	obj, ok := r.objects[id]
	return obj, ok
}

// IDs returns the registered object IDs in ascending order.
func (r *Registry) IDs() []LwM2MObjectID {
	ids := make([]LwM2MObjectID, 0, len(r.objects))
	for id := range r.objects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close destroys every registered object and empties the registry.
func (r *Registry) Close() error {
	var errs []error
	for _, id := range r.IDs() {
		if err := r.objects[id].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close /%d: %w", id, err))
		}
		delete(r.objects, id)
	}
	return errors.Join(errs...)
}
