package mqtt

import (
	"errors"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	keepAlive         = 60 * time.Second
	disconnectQuiesce = 250 // миллисекунды
	maxPayloadSize    = 64 << 10

	availabilityOnline  = "online"
	availabilityOffline = "offline"
)

var (
	errNotConnected    = errors.New("mqtt: client not connected")
	errConnectFailed   = errors.New("mqtt: connection failed")
	errPublishFailed   = errors.New("mqtt: publish failed")
	errSubscribeFailed = errors.New("mqtt: subscribe failed")
)

// Config задает параметры подключения к брокеру.
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

func buildClientOptions(cfg Config, topics Topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	// Обработчик ждет очереди к колонке, поэтому не должен держать роутер paho.
	opts.SetOrderMatters(false)
	opts.SetWill(topics.Availability(), availabilityOffline, cfg.QoS, true)
	return opts
}
