package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"secureChatServer/entities"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// PushBroker carries live push events to online recipients. Each user gets a
// durable queue; the recipient's own connection consumes it, encrypts every
// event under its session secret and writes it to the websocket. An event
// published just as the recipient disconnects stays parked in the queue and
// is delivered on the next session instead of being lost.
type PushBroker interface {
	Publish(username string, event *entities.PushEvent) error
	Subscribe(ctx context.Context, username string, handle func(*entities.PushEvent)) error
	Close()
}

type pushBroker struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewPushBroker(url string) (*pushBroker, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create a channel: %v", err)
	}

	return &pushBroker{
		conn:    conn,
		channel: ch,
	}, nil
}

func queueName(username string) string {
	return fmt.Sprintf("push_queue_%s", username)
}

func (pb *pushBroker) Publish(username string, event *entities.PushEvent) error {
	name := queueName(username)
	_, err := pb.channel.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)

	if err != nil {
		return fmt.Errorf("failed to declare queue: %v", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal push event: %v", err)
	}

	err = pb.channel.Publish(
		"",
		name,
		false,
		false,
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish push event: %v", err)
	}

	return nil
}

// Subscribe consumes the user's queue until ctx is cancelled. It blocks, the
// caller runs it in the connection's own goroutine.
func (pb *pushBroker) Subscribe(ctx context.Context, username string, handle func(*entities.PushEvent)) error {
	// Dedicated channel per subscription so cancelling one consumer does not
	// disturb the others.
	ch, err := pb.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to create consumer channel: %v", err)
	}

	name := queueName(username)
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("failed to declare queue: %v", err)
	}

	msgs, err := ch.Consume(
		name,
		"",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to consume push events: %v", err)
	}

	go func() {
		<-ctx.Done()
		ch.Close()
	}()

	for msg := range msgs {
		var event entities.PushEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			logrus.WithError(err).Warn("Dropping malformed push event")
			continue
		}
		handle(&event)
	}

	return nil
}

func (pb *pushBroker) Close() {
	pb.channel.Close()
	pb.conn.Close()
}
