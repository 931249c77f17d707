package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// PublishMessage публикует message в JSON.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(exchange, routingkey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Publisher публикует уведомления в Exchange. Nil *Publisher ничего не
// публикует: брокер не настроен.
type Publisher struct {
	ch *amqp.Channel
}

// NewPublisher создает Publisher поверх канала.
func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{ch: ch}
}

// Publish публикует message с ключом routingKey.
func (p *Publisher) Publish(ctx context.Context, routingKey string, message any) error {
	if p == nil || p.ch == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return PublishMessage(p.ch, Exchange, routingKey, message)
}

// Ping сообщает, открыт ли канал.
func (p *Publisher) Ping(context.Context) error {
	if p == nil || p.ch == nil {
		return fmt.Errorf("rabbitmq disabled")
	}
	// канал без подтверждений: проверяем, что он не закрыт, объявлением Exchange
	if err := p.ch.ExchangeDeclarePassive(Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	return nil
}
