package lwm2m

import "strconv"

type LwM2MObjectID uint16

const (
	Temperature_173             LwM2MObjectID = 173
	Geolocation_14201           LwM2MObjectID = 14201
	BatteryAndPower_14202       LwM2MObjectID = 14202
	ConnectionInformation_14203 LwM2MObjectID = 14203
	DeviceInformation_14204     LwM2MObjectID = 14204
	Environment_14205           LwM2MObjectID = 14205
	SolarCharge_14210           LwM2MObjectID = 14210
	ButtonPress_14220           LwM2MObjectID = 14220
	SeaWaterLevel_14230         LwM2MObjectID = 14230
)

func (id LwM2MObjectID) String() string {
	switch id {
	case Temperature_173:
		return "Temperature"
	case Geolocation_14201:
		return "Geolocation"
	case BatteryAndPower_14202:
		return "BatteryAndPower"
	case ConnectionInformation_14203:
		return "ConnectionInformation"
	case DeviceInformation_14204:
		return "DeviceInformation"
	case Environment_14205:
		return "Environment"
	case SolarCharge_14210:
		return "SolarCharge"
	case ButtonPress_14220:
		return "ButtonPress"
	case SeaWaterLevel_14230:
		return "SeaWaterLevel"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// LwM2MObjectInstance is a snapshot of one object instance, resources in
// the order the object reported them.
type LwM2MObjectInstance struct {
	ObjectID      LwM2MObjectID
	InstanceID    uint16
	ObjectVersion string
	Resources     []Data
}
