package config

import (
	"fmt"
	"time"

	"github.com/vgmeter/controller/pkg/boiler"
)

type CliConfig struct {
	BoilerEntityID string `required:"true"`

	Unit                string  `default:"m3"`
	InitialMeterReading float64 `default:"0"`
	InitialAverageRate  float64 `default:"0"`

	UpdateIntervalSeconds int    `default:"60"`
	StateFile             string `default:"/var/lib/gasmeterd/state.json"`

	// MQTT status source and sensor publishing. Empty broker disables MQTT.
	MQTTBroker      string
	MQTTClientID    string `default:"gasmeterd"`
	MQTTStatusTopic string
	MQTTTopicPrefix string `default:"gasmeter"`

	// Modbus status source. Empty address disables it. Exactly one of
	// ModbusCoil / ModbusInputRegister selects what is polled.
	ModbusAddress       string
	ModbusSlaveID       int
	ModbusCoil          int `default:"-1"`
	ModbusInputRegister int `default:"-1"`

	WebListen    string `default:":8080"`
	BrokerListen string

	LogLevel string `default:"info"`
}

func (c *CliConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalSeconds) * time.Second
}

func (c *CliConfig) Validate() error {
	kind := boiler.KindFromEntityID(c.BoilerEntityID)
	if !boiler.Allowed(kind) {
		return fmt.Errorf("boiler entity kind %q is not supported", kind)
	}
	if c.Unit != "m3" && c.Unit != "CCF" {
		return fmt.Errorf("unit must be m3 or CCF, got %q", c.Unit)
	}
	if c.InitialMeterReading < 0 {
		return fmt.Errorf("initial meter reading must be >= 0")
	}
	if c.InitialAverageRate < 0 {
		return fmt.Errorf("initial average rate must be >= 0")
	}
	if c.UpdateIntervalSeconds <= 0 {
		return fmt.Errorf("update interval must be positive")
	}
	if c.MQTTBroker == "" && c.ModbusAddress == "" {
		return fmt.Errorf("no boiler status source configured, set MQTTBroker or ModbusAddress")
	}
	if c.ModbusAddress != "" {
		if (c.ModbusCoil < 0) == (c.ModbusInputRegister < 0) {
			return fmt.Errorf("modbus source needs exactly one of ModbusCoil or ModbusInputRegister")
		}
	}
	return nil
}

// StatusTopic defaults to <prefix>/boiler/state when not set explicitly.
func (c *CliConfig) StatusTopic() string {
	if c.MQTTStatusTopic != "" {
		return c.MQTTStatusTopic
	}
	return c.MQTTTopicPrefix + "/boiler/state"
}
