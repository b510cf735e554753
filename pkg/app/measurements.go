package app

import (
	"encoding/json"
	"time"

	"github.com/womat/debug"

	"github.com/wavicles/pslab-fossasia/pkg/port"
)

// counterGate is the gate interval of the background frequency
// measurement. The side counter is used so a capture started over the
// web api keeps running undisturbed.
const counterGate = 100 * time.Millisecond

// Measurement is one frame of the background measurement service.
type Measurement struct {
	// TimeStamp of the measurement
	TimeStamp time.Time
	// Channel is the monitored digital input
	Channel string
	// Frequency on the monitored input in Hz
	Frequency float64
	// States are the instantaneous levels of all digital inputs
	States map[string]port.StateType
}

// runMeasurementService periodically reads frequency and input states of
// the configured channel, keeps the last frame for the web api and
// publishes it to the mqtt broker.
func (app *App) runMeasurementService() {
	for range time.Tick(app.config.Interval) {
		m, err := app.readMeasurement()
		if err != nil {
			debug.ErrorLog.Printf("measurement on %s: %v", app.config.Channel, err)
			continue
		}

		debug.DebugLog.Printf("frame: %+v", m)

		app.measurement.Lock()
		app.measurement.data = m
		app.measurement.Unlock()

		app.sendMQTT(app.config.MQTT.Topic, m)
	}
}

// readMeasurement reads one frame from the instrument.
func (app *App) readMeasurement() (Measurement, error) {
	app.instrument.Lock()
	defer app.instrument.Unlock()

	f, err := app.la.MeasureFrequencyCounter(app.config.Channel, counterGate)
	if err != nil {
		return Measurement{}, err
	}

	states, err := app.la.GetStates()
	if err != nil {
		return Measurement{}, err
	}

	return Measurement{
		TimeStamp: time.Now(),
		Channel:   app.config.Channel,
		Frequency: f,
		States:    states,
	}, nil
}

// GetMeasurement returns the last frame read by the measurement service.
func (app *App) GetMeasurement() Measurement {
	app.measurement.RLock()
	defer app.measurement.RUnlock()
	return app.measurement.data
}

// sendMQTT send message struct to the mqtt broker.
func (app *App) sendMQTT(topic string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		debug.ErrorLog.Printf("marshaling mqtt frame: %v", err)
		return
	}

	if err := app.mqtt.Publish(topic, payload); err != nil {
		debug.ErrorLog.Printf("publishing topic %v: %v", topic, err)
	}
}
