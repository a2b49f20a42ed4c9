package lwm2m

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	senML "github.com/farshidtz/senml/v2"
	senMLCodec "github.com/farshidtz/senml/v2/codec"
)

var ErrInvalidSenML = errors.New("lwm2m: invalid SenML pack")

// SenML renders the instance as a pack with base name "<object>/<instance>/"
// and one record per resource, in resource order. baseTime is set on the
// first record when non-zero.
func (i LwM2MObjectInstance) SenML(baseTime float64) senML.Pack {
	pack := make(senML.Pack, 0, len(i.Resources))
	for n := range i.Resources {
		d := &i.Resources[n]
		rec := senML.Record{Name: strconv.FormatUint(uint64(d.ID), 10)}
		if n == 0 {
			rec.BaseName = fmt.Sprintf("%d/%d/", i.ObjectID, i.InstanceID)
			rec.BaseTime = baseTime
		}
		switch d.Type {
		case TypeFloat, TypeInteger, TypeUnsigned:
			v, _ := DecodeFloat(d)
			rec.Value = &v
		case TypeBoolean:
			b := d.Bool
			rec.BoolValue = &b
		case TypeString:
			rec.StringValue = string(d.Buffer)
		case TypeOpaque:
			rec.DataValue = base64.RawURLEncoding.EncodeToString(d.Buffer)
		}
		pack = append(pack, rec)
	}
	return pack
}

// InstanceFromSenML collects the records of pack into one instance. The pack
// is resolved first (base name, base value) on a copy, so the caller's pack
// is left as is. Every record must name a resource of the same object
// instance.
func InstanceFromSenML(pack senML.Pack) (LwM2MObjectInstance, error) {
	var inst LwM2MObjectInstance
	if len(pack) == 0 {
		return inst, fmt.Errorf("%w: empty pack", ErrInvalidSenML)
	}
	if err := pack.Validate(); err != nil {
		return inst, fmt.Errorf("%w: %v", ErrInvalidSenML, err)
	}
	resolved := pack.Clone()
	resolved.Normalize()

	for n, rec := range resolved {
		objID, instID, resID, err := parseResourcePath(rec.Name)
		if err != nil {
			return inst, err
		}
		if n == 0 {
			inst.ObjectID, inst.InstanceID = objID, instID
		} else if objID != inst.ObjectID || instID != inst.InstanceID {
			return inst, fmt.Errorf("%w: record %q outside /%d/%d", ErrInvalidSenML, rec.Name, inst.ObjectID, inst.InstanceID)
		}
		d := Data{ID: resID}
		switch {
		case rec.BoolValue != nil:
			d.Type = TypeBoolean
			d.Bool = *rec.BoolValue
		case rec.DataValue != "":
			b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(rec.DataValue, "="))
			if err != nil {
				return inst, fmt.Errorf("%w: record %q: %v", ErrInvalidSenML, rec.Name, err)
			}
			d.Type = TypeOpaque
			d.Buffer = b
		case rec.StringValue != "":
			EncodeString(rec.StringValue, &d)
		case rec.Value != nil:
			EncodeFloat(*rec.Value, &d)
		default:
			return inst, fmt.Errorf("%w: record %q has no value", ErrInvalidSenML, rec.Name)
		}
		inst.Resources = append(inst.Resources, d)
	}
	return inst, nil
}

func parseResourcePath(name string) (LwM2MObjectID, uint16, uint16, error) {
	parts := strings.Split(strings.Trim(name, "/"), "/")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: name %q is not object/instance/resource", ErrInvalidSenML, name)
	}
	var ids [3]uint16
	for n, p := range parts {
		v, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: name %q: %v", ErrInvalidSenML, name, err)
		}
		ids[n] = uint16(v)
	}
	return LwM2MObjectID(ids[0]), ids[1], ids[2], nil
}

func EncodeSenMLCBOR(i LwM2MObjectInstance, baseTime float64) ([]byte, error) {
	pack := i.SenML(baseTime)
	if err := pack.Validate(); err != nil {
		return nil, fmt.Errorf("validate SenML: %w", err)
	}
	return senMLCodec.EncodeCBOR(pack)
}

// EncodeResolvedSenMLCBOR encodes the instance with every record resolved:
// full names and absolute times, no base fields.
func EncodeResolvedSenMLCBOR(i LwM2MObjectInstance, baseTime float64) ([]byte, error) {
	pack := i.SenML(baseTime)
	if err := pack.Validate(); err != nil {
		return nil, fmt.Errorf("validate SenML: %w", err)
	}
	pack.Normalize()
	return senMLCodec.EncodeCBOR(pack)
}

func EncodeSenMLJSON(i LwM2MObjectInstance, baseTime float64) ([]byte, error) {
	pack := i.SenML(baseTime)
	if err := pack.Validate(); err != nil {
		return nil, fmt.Errorf("validate SenML: %w", err)
	}
	return senMLCodec.EncodeJSON(pack)
}

func DecodeSenMLCBOR(b []byte) (LwM2MObjectInstance, error) {
	pack, err := senMLCodec.DecodeCBOR(b)
	if err != nil {
		return LwM2MObjectInstance{}, fmt.Errorf("%w: %v", ErrInvalidSenML, err)
	}
	return InstanceFromSenML(pack)
}

func DecodeSenMLJSON(b []byte) (LwM2MObjectInstance, error) {
	pack, err := senMLCodec.DecodeJSON(b)
	if err != nil {
		return LwM2MObjectInstance{}, fmt.Errorf("%w: %v", ErrInvalidSenML, err)
	}
	return InstanceFromSenML(pack)
}
