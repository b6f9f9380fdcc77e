package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/esurat/apiserver/config"
)

const (
	defaultExchange      = "esurat.events"
	defaultConsumerGroup = "esurat"
)

// RabbitMQClient publishes to a topic exchange. Each channel is routed as
// "<channel>.<action>" and consumed through one queue per consumer group.
type RabbitMQClient struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	group    string
	durable  bool
	autoDel  bool

	mu    sync.Mutex
	bound map[string]bool
}

func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		exchange = defaultExchange
	}
	group := strings.TrimSpace(cfg.ConsumerGroup)
	if group == "" {
		group = defaultConsumerGroup
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	closeAll := func(err error) (*RabbitMQClient, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			return closeAll(err)
		}
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return closeAll(fmt.Errorf("declare exchange %s: %w", exchange, err))
	}

	return &RabbitMQClient{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		group:    group,
		durable:  cfg.QueueDurable,
		autoDel:  cfg.QueueAutoDelete,
		bound:    make(map[string]bool),
	}, nil
}

// Publish routes data by channel and the "action" attribute. The group
// queue is bound first so events sent before any consumer starts are kept.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}
	if _, err := r.bindQueue(channel); err != nil {
		return "", err
	}

	contentType := "application/octet-stream"
	headers := amqp.Table{}
	for key, value := range attrs {
		if key == "content_type" {
			contentType = value
			continue
		}
		headers[key] = value
	}

	messageID := uuid.NewString()
	err := r.channel.PublishWithContext(ctx, r.exchange, routingKey(channel, attrs["action"]), false, false, amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: r.deliveryMode(),
		MessageId:    messageID,
		Timestamp:    time.Now(),
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes the group queue of channel until ctx is done. A
// message whose handler fails is requeued once, then dropped.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}
	queue, err := r.bindQueue(channel)
	if err != nil {
		return err
	}

	consumerTag := fmt.Sprintf("%s-%s", r.group, uuid.NewString())
	deliveries, err := r.channel.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			if err := handler(ctx, toMessage(delivery)); err != nil {
				_ = delivery.Nack(false, !delivery.Redelivered)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// bindQueue declares the group queue of channel and binds every routing
// key of the channel to it.
func (r *RabbitMQClient) bindQueue(channel string) (string, error) {
	name := queueName(r.group, channel)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bound[channel] {
		return name, nil
	}
	if _, err := r.channel.QueueDeclare(name, r.durable, r.autoDel, false, false, nil); err != nil {
		return "", fmt.Errorf("declare queue %s: %w", name, err)
	}
	if err := r.channel.QueueBind(name, bindingKey(channel), r.exchange, false, nil); err != nil {
		return "", fmt.Errorf("bind queue %s: %w", name, err)
	}
	r.bound[channel] = true
	return name, nil
}

func (r *RabbitMQClient) deliveryMode() uint8 {
	if r.durable {
		return amqp.Persistent
	}
	return amqp.Transient
}

// routingKey is "<channel>.<action>". Dots inside the action would add
// topic words, so they are replaced.
func routingKey(channel, action string) string {
	action = strings.ToLower(strings.TrimSpace(action))
	if action == "" {
		return channel
	}
	return channel + "." + strings.ReplaceAll(action, ".", "_")
}

func bindingKey(channel string) string {
	return channel + ".#"
}

func queueName(group, channel string) string {
	return group + "." + channel
}

func toMessage(d amqp.Delivery) Message {
	attrs := headersToAttributes(d.Headers)
	if d.ContentType != "" {
		if attrs == nil {
			attrs = map[string]string{}
		}
		attrs["content_type"] = d.ContentType
	}
	if d.Redelivered {
		if attrs == nil {
			attrs = map[string]string{}
		}
		attrs["redelivered"] = "true"
	}
	return Message{ID: d.MessageId, Data: d.Body, Attributes: attrs}
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
