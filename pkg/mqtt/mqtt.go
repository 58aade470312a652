// Package mqtt connects the meter to an MQTT broker: it subscribes to the
// boiler status topic, serves the manual meter reading command topic and
// publishes the sensor read model.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/vgmeter/controller/pkg/meter"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

type Client struct {
	client paho.Client
}

func Connect(broker, clientID string) (*Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("error connecting to broker: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) Close() {
	c.client.Disconnect(1000)
}

// statusPayload is the JSON form of a boiler status message. A bare string
// payload is accepted too and treated as the state with no attributes.
type statusPayload struct {
	State      string            `json:"state"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SubscribeStatus feeds boiler status observations to handle.
func (c *Client) SubscribeStatus(topic string, handle func(status string, attrs map[string]string)) error {
	token := c.client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		status, attrs := decodeStatus(msg.Payload())
		logrus.WithFields(logrus.Fields{"topic": msg.Topic(), "status": status}).Debug("boiler status message")
		handle(status, attrs)
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe timeout for %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("error subscribing to %s: %w", topic, err)
	}
	return nil
}

func decodeStatus(payload []byte) (string, map[string]string) {
	s := statusPayload{}
	if err := json.Unmarshal(payload, &s); err == nil && s.State != "" {
		return s.State, s.Attributes
	}
	return strings.TrimSpace(string(payload)), nil
}

// ReadingCommand is the payload of the manual meter reading command topic,
// the service-call surface of the meter. meter_reading is mandatory; a
// missing field must not pass as 0.
type ReadingCommand struct {
	MeterReading           *float64   `json:"meter_reading"`
	Timestamp              *time.Time `json:"timestamp,omitempty"`
	RecalculateAverageRate *bool      `json:"recalculate_average_rate,omitempty"`
}

func decodeReadingCommand(payload []byte) (value float64, ts time.Time, recalculate bool, err error) {
	cmd := ReadingCommand{}
	if err = json.Unmarshal(payload, &cmd); err != nil {
		return 0, time.Time{}, false, err
	}
	if cmd.MeterReading == nil {
		return 0, time.Time{}, false, fmt.Errorf("meter_reading is required")
	}
	if *cmd.MeterReading < 0 {
		return 0, time.Time{}, false, fmt.Errorf("meter_reading must not be negative, got %v", *cmd.MeterReading)
	}
	ts = time.Now()
	if cmd.Timestamp != nil {
		ts = *cmd.Timestamp
	}
	recalculate = true
	if cmd.RecalculateAverageRate != nil {
		recalculate = *cmd.RecalculateAverageRate
	}
	return *cmd.MeterReading, ts, recalculate, nil
}

// SubscribeReadingCommand applies manual readings arriving on topic.
// Rejections are logged only, the transport has nobody to reply to.
func (c *Client) SubscribeReadingCommand(topic string, apply func(ctx context.Context, value float64, ts time.Time, recalculate bool) error) error {
	token := c.client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		value, ts, recalculate, err := decodeReadingCommand(msg.Payload())
		if err != nil {
			logrus.Errorf("malformed reading command on %s: %v", msg.Topic(), err)
			return
		}
		if err := apply(context.Background(), value, ts, recalculate); err != nil {
			logrus.Errorf("reading command on %s: %v", msg.Topic(), err)
		}
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe timeout for %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("error subscribing to %s: %w", topic, err)
	}
	return nil
}

// SensorPublisher publishes the read model as retained sensor state topics
// under <prefix>/. Implements meter.Notifier.
type SensorPublisher struct {
	client *Client
	prefix string
}

func NewSensorPublisher(client *Client, prefix string) *SensorPublisher {
	return &SensorPublisher{client: client, prefix: prefix}
}

func (p *SensorPublisher) MeterUpdated(r meter.Reading) {
	values := map[string]string{
		"gas_meter_total":           formatFloat(r.Total),
		"consumed_gas":              formatFloat(r.Consumed),
		"heating_interval":          r.HeatingInterval,
		"average_rate_per_h":        formatFloat(r.AverageRatePerHour),
		"last_real_meter_reading":   formatFloat(r.LastRealReading),
		"last_real_meter_timestamp": r.LastRealTimestamp.Format(time.RFC3339),
		"boiler_running":            strconv.FormatBool(r.BoilerRunning),
	}
	for sensor, value := range values {
		p.publish(p.prefix+"/"+sensor+"/state", []byte(value))
	}

	if b, err := json.Marshal(r); err == nil {
		p.publish(p.prefix+"/state", b)
	}
}

func (p *SensorPublisher) publish(topic string, payload []byte) {
	token := p.client.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		logrus.Errorf("publish timeout for %s", topic)
		return
	}
	if err := token.Error(); err != nil {
		logrus.Errorf("error publishing %s: %v", topic, err)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
