// Package temperature implements the LwM2M Temperature object (/173), a
// single-instance object holding the current reading and its bounds.
//
//	Resource  | ID | Oper. | Type    | Units
//	----------+----+-------+---------+------
//	Current   | 0  | RW    | Float   | du
//	Max       | 1  | RW    | Float   | du
//	Min       | 2  | RW    | Float   | du
//	Timestamp | 5  | R     | Time    | s
package temperature

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"temperature-simulator-coap/lwm2m"
)

const ObjectID = lwm2m.Temperature_173

const (
	ResCurrent   uint16 = 0
	ResMax       uint16 = 1
	ResMin       uint16 = 2
	ResTimestamp uint16 = 5
)

// ResetErrorCode is the only executable action.
const ResetErrorCode uint16 = 0

// maxCurrentLen bounds the encoded payload of a Current write.
const maxCurrentLen = 7

// resources lists every resource in declaration order; all are readable.
var resources = []uint16{ResCurrent, ResMax, ResMin, ResTimestamp}

var ErrInvalidConfig = errors.New("temperature: invalid config")

// Config holds the values the object starts with.
type Config struct {
	Current   float64
	Max       float64
	Min       float64
	Timestamp time.Time
}

func DefaultConfig() Config {
	return Config{
		Current:   27.986065,
		Max:       100.922623,
		Min:       -20.855,
		Timestamp: time.Now(),
	}
}

func (c Config) validate() error {
	for name, v := range map[string]float64{"current": c.Current, "max": c.Max, "min": c.Min} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is %v", ErrInvalidConfig, name, v)
		}
	}
	return nil
}

type values struct {
	current   float64
	max       float64
	min       float64
	timestamp int64
}

type Object struct {
	logger    *zap.Logger
	instances *lwm2m.InstanceList[*values]
	store     *values
}

var _ lwm2m.Object = (*Object)(nil)

// New builds the object with its single instance 0. A nil logger discards
// diagnostics.
func New(cfg Config, logger *zap.Logger) (*Object, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	store := &values{
		current:   cfg.Current,
		max:       cfg.Max,
		min:       cfg.Min,
		timestamp: cfg.Timestamp.Unix(),
	}
	instances := lwm2m.NewInstanceList[*values]()
	instances.Add(0, store)
	return &Object{
		logger:    logger.With(zap.Stringer("object", ObjectID)),
		instances: instances,
		store:     store,
	}, nil
}

// Close releases the instance list and the value store. Calling it on a nil
// or already closed object does nothing.
func (o *Object) Close() error {
	if o == nil {
		return nil
	}
	o.instances.Clear()
	o.instances = nil
	o.store = nil
	return nil
}

func (o *Object) ID() lwm2m.LwM2MObjectID { return ObjectID }

func (o *Object) InstanceIDs() []uint16 { return o.instances.IDs() }

func (o *Object) String() string {
	s := fmt.Sprintf("/%d: temperature object:", ObjectID)
	if o.store != nil {
		s += fmt.Sprintf(" current: %.6f, max: %.6f, min: %.6f, timestamp: %d",
			o.store.current, o.store.max, o.store.min, o.store.timestamp)
	}
	return s
}

// Snapshot reads every resource of instance 0.
func (o *Object) Snapshot() (lwm2m.LwM2MObjectInstance, lwm2m.Status) {
	data, status := o.Read(0, nil)
	return lwm2m.LwM2MObjectInstance{
		ObjectID:   ObjectID,
		InstanceID: 0,
		Resources:  data,
	}, status
}

func (o *Object) encode(d *lwm2m.Data, v *values) lwm2m.Status {
	switch d.ID {
	case ResCurrent:
		lwm2m.EncodeFloat(v.current, d)
	case ResMax:
		lwm2m.EncodeFloat(v.max, d)
	case ResMin:
		lwm2m.EncodeFloat(v.min, d)
	case ResTimestamp:
		lwm2m.EncodeInt(v.timestamp, d)
	default:
		return lwm2m.NotFound
	}
	return lwm2m.Content
}

func (o *Object) Read(instanceID uint16, data []lwm2m.Data) ([]lwm2m.Data, lwm2m.Status) {
	// single instance object
	if instanceID != 0 {
		return data, lwm2m.NotFound
	}
	v, ok := o.instances.Find(instanceID)
	if !ok {
		return data, lwm2m.NotFound
	}

	if len(data) == 0 {
		data = lwm2m.NewData(len(resources))
		for i, id := range resources {
			data[i].ID = id
		}
	}

	result := lwm2m.InternalServerError
	for i := range data {
		if data[i].Type == lwm2m.TypeMultipleResource {
			result = lwm2m.NotFound
		} else {
			result = o.encode(&data[i], v)
		}
		if result != lwm2m.Content {
			break
		}
	}
	return data, result
}

func (o *Object) Discover(instanceID uint16, data []lwm2m.Data) ([]lwm2m.Data, lwm2m.Status) {
	if instanceID != 0 {
		return data, lwm2m.NotFound
	}
	if _, ok := o.instances.Find(instanceID); !ok {
		return data, lwm2m.NotFound
	}

	if len(data) == 0 {
		data = lwm2m.NewData(len(resources))
		for i, id := range resources {
			data[i].ID = id
		}
		return data, lwm2m.Content
	}

	for i := range data {
		switch data[i].ID {
		case ResCurrent, ResMax, ResMin, ResTimestamp:
		default:
			return data, lwm2m.NotFound
		}
	}
	return data, lwm2m.Content
}

// Write applies the entries in order and stops at the first one that is not
// Changed. Entries applied before the failure stay applied.
func (o *Object) Write(instanceID uint16, data []lwm2m.Data, _ lwm2m.WriteType) lwm2m.Status {
	if instanceID != 0 {
		return lwm2m.NotFound
	}
	v, ok := o.instances.Find(instanceID)
	if !ok {
		return lwm2m.NotFound
	}
	if len(data) == 0 {
		return lwm2m.BadRequest
	}

	result := lwm2m.Changed
	for i := 0; i < len(data) && result == lwm2m.Changed; i++ {
		d := &data[i]
		if d.Type == lwm2m.TypeMultipleResource {
			result = lwm2m.NotFound
			continue
		}

		switch d.ID {
		case ResCurrent:
			if d.Len() > maxCurrentLen {
				o.logger.Debug("rejected oversized write",
					zap.Uint16("resource", d.ID), zap.Int("length", d.Len()))
				return lwm2m.BadRequest
			}
			result = o.decode(d, &v.current)
		case ResMax:
			result = o.decode(d, &v.max)
		case ResMin:
			result = o.decode(d, &v.min)
		default:
			result = lwm2m.MethodNotAllowed
		}
	}
	return result
}

func (o *Object) decode(d *lwm2m.Data, dst *float64) lwm2m.Status {
	f, ok := lwm2m.DecodeFloat(d)
	if !ok {
		o.logger.Debug("undecodable float",
			zap.Uint16("resource", d.ID), zap.Stringer("type", d.Type))
		return lwm2m.BadRequest
	}
	*dst = f
	o.logger.Info("value changed", zap.Uint16("resource", d.ID), zap.Float64("value", f))
	return lwm2m.Changed
}

func (o *Object) Execute(instanceID, resourceID uint16, payload []byte) lwm2m.Status {
	if instanceID != 0 {
		return lwm2m.NotFound
	}
	if _, ok := o.instances.Find(instanceID); !ok {
		return lwm2m.NotFound
	}
	if len(payload) != 0 {
		return lwm2m.BadRequest
	}

	switch resourceID {
	case ResetErrorCode:
		o.logger.Info("reset error code")
		return lwm2m.Changed
	default:
		return lwm2m.MethodNotAllowed
	}
}
