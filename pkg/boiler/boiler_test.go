package boiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	var tests = []struct {
		name     string
		kind     Kind
		status   string
		attrs    map[string]string
		expected bool
	}{
		{name: "switch on", kind: KindSwitch, status: "on", expected: true},
		{name: "switch off", kind: KindSwitch, status: "off", expected: false},
		{name: "binary sensor on", kind: KindBinarySensor, status: "on", expected: true},
		{name: "binary sensor off", kind: KindBinarySensor, status: "off", expected: false},
		{name: "climate heating", kind: KindClimate, status: "heat", attrs: map[string]string{"hvac_action": "heating"}, expected: true},
		{name: "climate idle", kind: KindClimate, status: "heat", attrs: map[string]string{"hvac_action": "idle"}, expected: false},
		{name: "climate no attrs", kind: KindClimate, status: "heat", expected: false},
		{name: "sensor positive number", kind: KindSensor, status: "12.5", expected: true},
		{name: "sensor zero", kind: KindSensor, status: "0", expected: false},
		{name: "sensor negative", kind: KindSensor, status: "-3", expected: false},
		{name: "sensor non numeric on", kind: KindSensor, status: "On", expected: true},
		{name: "sensor non numeric garbage", kind: KindSensor, status: "flame", expected: false},
		{name: "unknown status", kind: KindSwitch, status: "unknown", expected: false},
		{name: "unavailable status", kind: KindClimate, status: "unavailable", attrs: map[string]string{"hvac_action": "heating"}, expected: false},
		{name: "unsupported kind", kind: Kind("light"), status: "on", expected: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.kind, tt.status, tt.attrs))
		})
	}
}

func TestKindFromEntityID(t *testing.T) {
	assert.Equal(t, KindSwitch, KindFromEntityID("switch.boiler"))
	assert.Equal(t, KindClimate, KindFromEntityID("climate.living_room"))
	assert.Equal(t, Kind("boiler"), KindFromEntityID("boiler"))
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed(KindSwitch))
	assert.True(t, Allowed(KindBinarySensor))
	assert.True(t, Allowed(KindClimate))
	assert.True(t, Allowed(KindSensor))
	assert.False(t, Allowed(Kind("light")))
	assert.False(t, Allowed(Kind("")))
}
