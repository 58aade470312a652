package app

import (
	"context"
	"strconv"
	"time"

	"github.com/goburrow/modbus"
	"github.com/sirupsen/logrus"
	"github.com/vgmeter/controller/pkg/boiler"
	"github.com/vgmeter/controller/pkg/modbusclient"
)

// startModbusPoller polls the configured coil or input register and feeds
// the observed value to the coordinator as a raw boiler status. Polling is
// faster than the tick interval so edges land between ticks.
func (a *App) startModbusPoller(ctx context.Context) {
	handler := modbus.NewTCPClientHandler(a.config.ModbusAddress)
	handler.Timeout = 5 * time.Second
	handler.SlaveId = byte(a.config.ModbusSlaveID)
	client := modbusclient.New(modbus.NewClient(handler), handler.Close)

	interval := a.config.UpdateInterval() / 6
	if interval < time.Second {
		interval = time.Second
	}

	a.wg.Add(1)
	go a.modbusPollLoop(ctx, client, interval)
}

func (a *App) modbusPollLoop(ctx context.Context, client modbusclient.Client, interval time.Duration) {
	defer a.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.pollModbus(ctx, client)
	for {
		select {
		case <-ticker.C:
			a.pollModbus(ctx, client)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) pollModbus(ctx context.Context, client modbusclient.Client) {
	status := boiler.StatusUnavailable

	if a.config.ModbusCoil >= 0 {
		on, err := client.ReadCoil(uint16(a.config.ModbusCoil))
		if err != nil {
			logrus.Warnf("modbus poll: %v", err)
		} else if on {
			status = boiler.StatusOn
		} else {
			status = "off"
		}
	} else {
		v, err := client.ReadInputRegister(uint16(a.config.ModbusInputRegister))
		if err != nil {
			logrus.Warnf("modbus poll: %v", err)
		} else {
			status = strconv.Itoa(v)
		}
	}

	a.coordinator.HandleStatus(ctx, status, nil)
}
