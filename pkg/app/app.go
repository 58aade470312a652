package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vgmeter/controller/pkg/api/v1/config"
	"github.com/vgmeter/controller/pkg/broker"
	"github.com/vgmeter/controller/pkg/meter"
	"github.com/vgmeter/controller/pkg/mqtt"
	"github.com/vgmeter/controller/pkg/store"
	"github.com/vgmeter/controller/pkg/web"
)

// App owns one configured meter: the coordinator, its snapshot store and
// every transport attached to it. No global state; the caller constructs it
// and controls its lifetime through ctx.
type App struct {
	wg          *sync.WaitGroup
	config      *config.CliConfig
	coordinator *meter.Coordinator
	mqttClient  *mqtt.Client
}

func New(config *config.CliConfig) *App {
	return &App{
		wg:     &sync.WaitGroup{},
		config: config,
	}
}

func (a *App) Start(ctx context.Context) error {
	err := a.config.Validate()
	if err != nil {
		return err
	}

	fileStore := store.NewFileStore(a.config.StateFile)
	snapshot, err := fileStore.Load(ctx)
	if err != nil {
		return err
	}
	state := snapshot.State(store.Defaults{
		InitialMeterReading: a.config.InitialMeterReading,
		InitialAverageRate:  a.config.InitialAverageRate,
		Unit:                meter.Unit(a.config.Unit),
	})
	if snapshot == nil {
		logrus.Info("no existing meter snapshot, starting from configured defaults")
	} else {
		logrus.WithFields(logrus.Fields{
			"reading":  state.LastRealReading,
			"consumed": state.ConsumedGas,
			"interval": state.HeatingInterval(),
			"rate":     state.AverageRatePerHour,
		}).Info("loaded meter snapshot")
	}

	a.coordinator = meter.NewCoordinator(a.config.BoilerEntityID, a.config.UpdateInterval(), state, fileStore)

	if a.config.BrokerListen != "" {
		_, err = broker.Start(ctx, a.wg, a.config.BrokerListen)
		if err != nil {
			return err
		}
		logrus.Infof("embedded mqtt broker listening on %s", a.config.BrokerListen)
	}

	if a.config.MQTTBroker != "" {
		err = a.startMQTT(ctx)
		if err != nil {
			return err
		}
	}

	if a.config.ModbusAddress != "" {
		a.startModbusPoller(ctx)
	}

	a.startWeb(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.coordinator.Run(ctx)
	}()
	return nil
}

func (a *App) Wait() {
	a.wg.Wait()
	if a.mqttClient != nil {
		a.mqttClient.Close()
	}
}

// Coordinator is exposed for tests and for callers embedding the app.
func (a *App) Coordinator() *meter.Coordinator {
	return a.coordinator
}

func (a *App) startMQTT(ctx context.Context) error {
	client, err := mqtt.Connect(a.config.MQTTBroker, a.config.MQTTClientID)
	if err != nil {
		return err
	}
	a.mqttClient = client

	a.coordinator.AddNotifier(mqtt.NewSensorPublisher(client, a.config.MQTTTopicPrefix))

	err = client.SubscribeStatus(a.config.StatusTopic(), func(status string, attrs map[string]string) {
		a.coordinator.HandleStatus(ctx, status, attrs)
	})
	if err != nil {
		return err
	}
	return client.SubscribeReadingCommand(a.config.MQTTTopicPrefix+"/reading/set", a.coordinator.ApplyReading)
}

func (a *App) startWeb(ctx context.Context) {
	if a.config.WebListen == "" {
		return
	}
	srv := &http.Server{
		Addr:    a.config.WebListen,
		Handler: web.New(a.coordinator),
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logrus.Error(err)
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			logrus.Error(err)
		}
	}()
}
