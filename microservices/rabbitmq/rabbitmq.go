package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"github.com/the-monkeys/incentives/config"
	"github.com/the-monkeys/incentives/logger"
)

var log = logger.ZapForService("rabbitmq")

// Conn represents a RabbitMQ connection with a channel.
type Conn struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
}

// URL builds the amqp connection string for conf.
func URL(conf config.RabbitMQ) string {
	protocol := conf.Protocol
	if protocol == "" {
		protocol = "amqp"
	}
	return fmt.Sprintf("%s://%s:%s@%s:%s/%s", protocol, conf.Username, conf.Password, conf.Host, conf.Port, conf.VirtualHost)
}

// GetConn establishes a connection to RabbitMQ, declares the exchange and binds
// every configured queue to its routing key.
func GetConn(conf config.RabbitMQ) (Conn, error) {
	if len(conf.Queues) == 0 || len(conf.Queues) != len(conf.RoutingKeys) {
		return Conn{}, errors.New("queues and routing keys must be configured pairwise")
	}

	conn, err := amqp.DialConfig(URL(conf), amqp.Config{
		Heartbeat: 10 * time.Second,
	})
	if err != nil {
		return Conn{}, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		if cerr := conn.Close(); cerr != nil {
			log.Errorf("failed to close connection after channel error: %v", cerr)
		}
		return Conn{}, fmt.Errorf("failed to open a channel: %w", err)
	}

	connection := Conn{
		Connection: conn,
		Channel:    ch,
	}

	log.Debugf("Creating the exchange: %s", conf.Exchange)
	if err := ch.ExchangeDeclare(conf.Exchange, "direct", true, false, false, false, nil); err != nil {
		connection.Close()
		return Conn{}, fmt.Errorf("failed to declare exchange: %w", err)
	}

	for i, queue := range conf.Queues {
		log.Debugf("Creating a queue: %s", queue)
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			connection.Close()
			return Conn{}, fmt.Errorf("failed to declare queue: %w", err)
		}

		log.Debugf("Binding the queue %s with exchange %s using routing key %s", queue, conf.Exchange, conf.RoutingKeys[i])
		if err := ch.QueueBind(queue, conf.RoutingKeys[i], conf.Exchange, false, nil); err != nil {
			connection.Close()
			return Conn{}, fmt.Errorf("failed to bind queue: %w", err)
		}
	}

	if conf.Prefetch > 0 {
		if err := ch.Qos(conf.Prefetch, 0, false); err != nil {
			connection.Close()
			return Conn{}, fmt.Errorf("failed to set prefetch: %w", err)
		}
	}

	return connection, nil
}

// Reconnect retries GetConn every second until it succeeds or ctx is done.
func Reconnect(ctx context.Context, conf config.RabbitMQ) (Conn, error) {
	for {
		qConn, err := GetConn(conf)
		if err == nil {
			log.Debug("Connected to RabbitMQ")
			return qConn, nil
		}
		log.Errorf("cannot connect to RabbitMQ, retrying in 1 second: %v", err)
		select {
		case <-ctx.Done():
			return Conn{}, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// PublishMessage sends a persistent JSON message to the exchange with the given routing key.
func (c Conn) PublishMessage(exchangeName, routingKey string, message []byte) error {
	err := c.Channel.Publish(exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         message,
	})
	if err != nil {
		return fmt.Errorf("error publishing message: %w", err)
	}
	log.Debugw("message published", "exchange", exchangeName, "routing_key", routingKey)
	return nil
}

// Consume registers a manual-ack consumer on queueName.
func (c Conn) Consume(queueName, consumer string) (<-chan amqp.Delivery, error) {
	msgs, err := c.Channel.Consume(
		queueName, // queue
		consumer,  // consumer
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register a consumer for queue %s: %w", queueName, err)
	}
	return msgs, nil
}

// Close closes the RabbitMQ connection and channel gracefully.
func (c Conn) Close() {
	if c.Channel != nil {
		if err := c.Channel.Close(); err != nil {
			log.Errorf("failed to close channel: %v", err)
		}
	}
	if c.Connection != nil {
		if err := c.Connection.Close(); err != nil {
			log.Errorf("Error closing RabbitMQ connection: %v", err)
		} else {
			log.Debug("RabbitMQ connection closed")
		}
	}
}
