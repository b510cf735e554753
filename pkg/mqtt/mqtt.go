// Package mqtt publishes measurement frames to an mqtt broker.
package mqtt

import (
	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/womat/debug"
)

// quiesce is the specified number of milliseconds to wait for existing work to be completed.
const quiesce = 250

// Handler contains the handler of the mqtt broker.
type Handler struct {
	handler mqttlib.Client
}

// New generate a new mqtt broker client.
func New() *Handler {
	return &Handler{}
}

// Connect connects to the mqtt broker.
// If no broker is defined, publishing is disabled and all sends succeed silently.
func (m *Handler) Connect(broker string) error {
	if broker == "" {
		return nil
	}

	opts := mqttlib.NewClientOptions().AddBroker(broker)
	m.handler = mqttlib.NewClient(opts)
	return m.ReConnect()
}

// ReConnect reconnects to the defined mqtt broker.
func (m *Handler) ReConnect() error {
	t := m.handler.Connect()
	<-t.Done()
	return t.Error()
}

// Disconnect will end the connection to the broker.
func (m *Handler) Disconnect() error {
	if m.handler == nil {
		return nil
	}

	m.handler.Disconnect(quiesce)
	return nil
}

// Publish sends one message to the broker, reconnecting first if the
// connection was lost. With no broker configured it is a no-op.
func (m *Handler) Publish(topic string, payload []byte) error {
	if m.handler == nil || topic == "" {
		return nil
	}

	if !m.handler.IsConnected() {
		debug.DebugLog.Print("mqtt broker isn't connected, reconnect it")

		if err := m.ReConnect(); err != nil {
			return err
		}
	}

	debug.DebugLog.Printf("publishing %v bytes to topic %v", len(payload), topic)
	t := m.handler.Publish(topic, 0, false, payload)
	<-t.Done()
	return t.Error()
}
