package boiler

import (
	"strconv"
	"strings"
)

// Kind is the entity domain of the boiler proxy entity, e.g. "switch" for
// switch.boiler.
type Kind string

const (
	KindSwitch       Kind = "switch"
	KindBinarySensor Kind = "binary_sensor"
	KindClimate      Kind = "climate"
	KindSensor       Kind = "sensor"
)

const (
	StatusOn          = "on"
	StatusUnknown     = "unknown"
	StatusUnavailable = "unavailable"

	// AttrHvacAction carries the current activity of climate entities.
	AttrHvacAction = "hvac_action"
)

// KindFromEntityID returns the entity domain part of an entity id.
// "switch.boiler" -> "switch".
func KindFromEntityID(entityID string) Kind {
	domain, _, _ := strings.Cut(entityID, ".")
	return Kind(domain)
}

// Allowed reports whether the kind may be configured as a boiler proxy.
func Allowed(k Kind) bool {
	_, ok := classifiers[k]
	return ok
}

type classifyFunc func(status string, attrs map[string]string) bool

var classifiers = map[Kind]classifyFunc{
	KindSwitch:       classifyOnOff,
	KindBinarySensor: classifyOnOff,
	KindClimate:      classifyClimate,
	KindSensor:       classifyNumeric,
}

// Classify maps a raw entity status to a running/idle signal. Unknown or
// unavailable statuses and unsupported kinds are always idle.
func Classify(k Kind, status string, attrs map[string]string) bool {
	if status == StatusUnknown || status == StatusUnavailable {
		return false
	}
	classify, ok := classifiers[k]
	if !ok {
		return false
	}
	return classify(status, attrs)
}

func classifyOnOff(status string, _ map[string]string) bool {
	return status == StatusOn
}

func classifyClimate(_ string, attrs map[string]string) bool {
	// the mode string lies about actual burner activity, hvac_action does not
	return attrs[AttrHvacAction] == "heating"
}

func classifyNumeric(status string, _ map[string]string) bool {
	if v, err := strconv.ParseFloat(status, 64); err == nil {
		return v > 0
	}
	return strings.EqualFold(status, StatusOn)
}
