package store

import (
	"context"
	"fmt"
	"strd/internal/structures"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttQoS         = 1
	mqttWaitTimeout = 5 * time.Second
)

type MQTTNotifier struct {
	client mqtt.Client
	topic  string
}

func NewMQTTNotifier(conf *structures.Config) (*MQTTNotifier, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(conf.Notifier.Broker)
	clientID := conf.Notifier.ClientID
	if clientID == "" {
		clientID = "strd-" + conf.Role
	}
	opts.SetClientID(clientID)
	if conf.Notifier.Username != "" {
		opts.SetUsername(conf.Notifier.Username)
	}
	if conf.Notifier.Password != "" {
		opts.SetPassword(conf.Notifier.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(mqttWaitTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &MQTTNotifier{client: client, topic: conf.Notifier.Channel}, nil
}

func (m *MQTTNotifier) Notify(_ context.Context) error {
	token := m.client.Publish(m.topic, mqttQoS, false, []byte("1"))
	token.WaitTimeout(mqttWaitTimeout)
	if token.Error() != nil {
		return unavailable("publish", m.topic, token.Error())
	}
	return nil
}

func (m *MQTTNotifier) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	bell := newDoorbell()
	token := m.client.Subscribe(m.topic, mqttQoS, func(_ mqtt.Client, _ mqtt.Message) {
		bell.ring()
	})
	token.WaitTimeout(mqttWaitTimeout)
	if token.Error() != nil {
		return nil, unavailable("subscribe", m.topic, token.Error())
	}

	go func() {
		<-ctx.Done()
		m.client.Unsubscribe(m.topic).WaitTimeout(mqttWaitTimeout)
		bell.close()
	}()
	return bell.ch, nil
}

func (m *MQTTNotifier) Close() error {
	m.client.Disconnect(250)
	return nil
}
