package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/jetsetgo/workshop-console/internal/config"
)

// MQTTClient carries the realtime channel over an MQTT broker. Inbound
// events arrive on <prefix>/events/<event>, outbound events are published
// to <prefix>/<event>.
type MQTTClient struct {
	*Hub

	prefix string
	client mqtt.Client
	mu     sync.Mutex

	lastError error
	lastSeen  time.Time
}

// NewMQTTClient creates an MQTT transport authenticating with token
func NewMQTTClient(cfg *config.RealtimeConfig, token string) *MQTTClient {
	c := &MQTTClient{
		Hub:    NewHub(),
		prefix: strings.TrimRight(cfg.MQTTTopicPrefix, "/"),
	}

	reconnect := cfg.WSMaxReconnect
	if reconnect <= 0 {
		reconnect = 30 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetPassword(token).
		SetUsername("bearer").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetMaxReconnectInterval(reconnect).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = mqtt.NewClient(opts)
	return c
}

// Start connects in the background; paho keeps retrying on its own
func (c *MQTTClient) Start() {
	go func() {
		token := c.client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			c.setError(err)
			log.WithError(err).Warn("MQTT connect failed")
			c.Dispatch(Event{Name: EventError, Err: err})
		}
	}()
}

// Stop disconnects from the broker
func (c *MQTTClient) Stop() {
	c.client.Disconnect(250)
}

// Connected reports whether the broker connection is open
func (c *MQTTClient) Connected() bool {
	return c.client.IsConnectionOpen()
}

// Status returns the current connection status
func (c *MQTTClient) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	errStr := ""
	if c.lastError != nil {
		errStr = c.lastError.Error()
	}
	return ConnectionStatus{
		Transport:    "mqtt",
		Connected:    c.client.IsConnectionOpen(),
		Reconnecting: c.client.IsConnected() && !c.client.IsConnectionOpen(),
		LastError:    errStr,
		LastSeen:     c.lastSeen,
	}
}

// Emit publishes an outbound event
func (c *MQTTClient) Emit(event string, data interface{}) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	token := c.client.Publish(c.prefix+"/"+event, 1, false, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publish %s timed out", event)
	}
	return token.Error()
}

func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.mu.Lock()
	c.lastError = nil
	c.lastSeen = time.Now()
	c.mu.Unlock()

	token := client.Subscribe(c.prefix+"/events/+", 1, c.onMessage)
	// Subscribe acks arrive on the network goroutine; do not block this callback on them
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.WithError(err).Warn("MQTT subscribe failed")
		}
	}()

	log.Info("Realtime channel connected over MQTT")
	c.Dispatch(Event{Name: EventConnect})
}

func (c *MQTTClient) onConnectionLost(_ mqtt.Client, err error) {
	c.setError(err)
	log.WithError(err).Warn("MQTT connection lost")
	c.Dispatch(Event{Name: EventDisconnect})
}

func (c *MQTTClient) onMessage(_ mqtt.Client, msg mqtt.Message) {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()

	e, ok := decodeMQTT(c.prefix, msg.Topic(), msg.Payload())
	if !ok {
		return
	}
	c.Dispatch(e)
}

func (c *MQTTClient) setError(err error) {
	c.mu.Lock()
	c.lastError = err
	c.mu.Unlock()
}

// decodeMQTT maps <prefix>/events/<event> plus a JSON body to an Event
func decodeMQTT(prefix, topic string, body []byte) (Event, bool) {
	name := strings.TrimPrefix(topic, prefix+"/events/")
	if name == topic {
		return Event{}, false
	}

	switch name {
	case EventNotification, EventNewBooking, EventBookingUpdate:
	default:
		log.WithField("topic", topic).Debug("Unknown realtime topic")
		return Event{}, false
	}

	var p Payload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &p); err != nil {
			log.WithError(err).WithField("topic", topic).Warn("Failed to parse realtime payload")
			return Event{}, false
		}
	}
	return Event{Name: name, Payload: p}, true
}
