// Package mqttc wraps the paho MQTT stack behind the control.Bus contract.
// Automatic reconnection is disabled: the supervisor loop owns the bounded
// reconnect policy.
package mqttc

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-logr/logr"
)

// DefaultBrokerURL is the public broker the fleet ships against.
const DefaultBrokerURL = "tcp://broker.emqx.io:1883"

const tokenTimeout = 3 * time.Second

type Client struct {
	id   string
	mqtt mqtt.Client
	log  logr.Logger
}

func NewClient(log logr.Logger, brokerURL, clientID string) *Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(tokenTimeout)

	log = log.WithName("mqttc")
	log.Info("Initialized MQTT client", "client_id", clientID, "broker", brokerURL)
	return &Client{
		id:   clientID,
		mqtt: mqtt.NewClient(opts),
		log:  log,
	}
}

// ID returns the client identity presented to the broker.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) Connect(ctx context.Context) error {
	if c.mqtt.IsConnected() {
		return nil
	}
	token := c.mqtt.Connect()
	if !token.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("MQTT connect timed out after %v", tokenTimeout)
	}
	if err := token.Error(); err != nil {
		return err
	}
	c.log.Info("MQTT client connected", "client_id", c.id)
	return nil
}

func (c *Client) Connected() bool {
	return c.mqtt.IsConnected()
}

func (c *Client) Subscribe(topic string, fn func(payload []byte)) error {
	token := c.mqtt.Subscribe(topic, 1 /*at-least-once*/, func(_ mqtt.Client, msg mqtt.Message) {
		fn(msg.Payload())
	})
	if !token.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("MQTT subscribe to %s timed out", topic)
	}
	return token.Error()
}

func (c *Client) Publish(topic string, payload []byte, retain bool) error {
	token := c.mqtt.Publish(topic, 1 /*at-least-once*/, retain, payload)
	if !token.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("MQTT publish to %s timed out", topic)
	}
	return token.Error()
}

func (c *Client) Close() {
	if c.mqtt.IsConnected() {
		c.mqtt.Disconnect(250 /* milliseconds */)
	}
}

// DeviceID derives a stable per-device client identity: the first hardware
// address on the host, falling back to hostname.
func DeviceID() string {
	if ifaces, err := net.Interfaces(); err == nil {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
				continue
			}
			return fmt.Sprintf("ApplianceControl_%x", []byte(iface.HardwareAddr))
		}
	}
	host, err := os.Hostname()
	if err != nil {
		host = fmt.Sprintf("pid%d", os.Getpid())
	}
	return "ApplianceControl_" + host
}
