package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"kefctl/internal/core"
	"kefctl/internal/transports/common"
)

const mqttSource = "mqtt"

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Adapter реализует MQTT-фасад: команды приходят из топиков, результаты и статус уходят в топики.
type Adapter struct {
	cfg    Config
	topics Topics
	svc    *common.Service
	logger *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	client pahomqtt.Client
	pub    publisher
}

type resultMessage struct {
	Command   string      `json:"command"`
	Success   bool        `json:"success"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id"`
}

type statusMessage struct {
	Success bool        `json:"success"`
	Online  bool        `json:"online"`
	Status  interface{} `json:"status,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// NewAdapter создает MQTT transport.
func NewAdapter(svc *common.Service, logger *slog.Logger, cfg Config) *Adapter {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "kefctl"
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	if cfg.ClientID == "" {
		cfg.ClientID = "kefctl"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		cfg:    cfg,
		topics: Topics{Prefix: cfg.TopicPrefix},
		svc:    svc,
		logger: logger,
		ctx:    context.Background(),
	}
}

func (a *Adapter) Name() string { return "mqtt" }

// Start подключается к брокеру и подписывается на командные топики.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.client != nil {
		a.mu.Unlock()
		return errors.New("mqtt transport already started")
	}
	a.mu.Unlock()

	client := pahomqtt.NewClient(buildClientOptions(a.cfg, a.topics))
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("%w: timeout after %v", errConnectFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", errConnectFailed, err)
	}

	a.mu.Lock()
	a.ctx = ctx
	a.client = client
	a.pub = pahoPublisher{client: client}
	a.mu.Unlock()

	for _, topic := range []string{a.topics.Command(), a.topics.CommandWildcard()} {
		token := client.Subscribe(topic, a.cfg.QoS, a.wrapHandler())
		if !token.WaitTimeout(publishTimeout) {
			_ = a.Stop(ctx)
			return fmt.Errorf("%w: %s: timeout", errSubscribeFailed, topic)
		}
		if err := token.Error(); err != nil {
			_ = a.Stop(ctx)
			return fmt.Errorf("%w: %s: %w", errSubscribeFailed, topic, err)
		}
	}
	if err := a.publish(a.topics.Availability(), true, []byte(availabilityOnline)); err != nil {
		a.logger.Warn("mqtt availability publish failed", "err", err)
	}
	a.logger.Info("mqtt transport connected", "broker", a.cfg.Broker, "prefix", a.cfg.TopicPrefix)
	return nil
}

// Stop публикует offline и отключается от брокера.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	client := a.client
	a.client = nil
	pub := a.pub
	a.pub = nil
	a.mu.Unlock()
	if client == nil {
		return nil
	}
	if pub != nil && client.IsConnected() {
		_ = pub.Publish(a.topics.Availability(), a.cfg.QoS, true, []byte(availabilityOffline))
	}
	client.Disconnect(disconnectQuiesce)
	return nil
}

func (a *Adapter) wrapHandler() pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("mqtt handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()
		a.mu.Lock()
		ctx := a.ctx
		a.mu.Unlock()
		if err := a.handle(ctx, msg.Topic(), msg.Payload()); err != nil {
			a.logger.Warn("mqtt handler returned error", "topic", msg.Topic(), "err", err)
		}
	}
}

// handle выполняет команду из сообщения и публикует результат.
func (a *Adapter) handle(ctx context.Context, topic string, payload []byte) error {
	requestID := common.NewRequestID()
	text := strings.TrimSpace(string(payload))

	var (
		command string
		res     core.Result
	)
	switch {
	case topic == a.topics.Command():
		command, res = a.svc.ExecuteText(ctx, mqttSource, requestID, text)
	default:
		name, ok := a.topics.commandName(topic)
		if !ok {
			return fmt.Errorf("unexpected topic %s", topic)
		}
		command = name
		var args []string
		if text != "" {
			args = []string{text}
		}
		res = a.svc.Execute(ctx, mqttSource, requestID, command, args...)
	}

	msg := resultMessage{Command: command, Success: res.Success, RequestID: requestID}
	if res.Success {
		msg.Result = res.Payload
	} else {
		msg.Error = res.Message()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return a.publish(a.topics.Result(), false, body)
}

// PublishStatus публикует retained-снимок статуса колонки.
func (a *Adapter) PublishStatus(res core.Result) error {
	msg := statusMessage{Success: res.Success}
	if res.Success {
		msg.Online = true
		msg.Status = res.Payload
	} else {
		msg.Online = !errors.Is(res.Err, core.ErrOffline)
		msg.Error = res.Message()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return a.publish(a.topics.Status(), true, body)
}

func (a *Adapter) publish(topic string, retained bool, payload []byte) error {
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds %d bytes", errPublishFailed, len(payload), maxPayloadSize)
	}
	a.mu.Lock()
	pub := a.pub
	a.mu.Unlock()
	if pub == nil {
		return errNotConnected
	}
	return pub.Publish(topic, a.cfg.QoS, retained, payload)
}

type pahoPublisher struct {
	client pahomqtt.Client
}

func (p pahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnected() {
		return errNotConnected
	}
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", errPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", errPublishFailed, err)
	}
	return nil
}
