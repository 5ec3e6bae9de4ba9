package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/streadway/amqp"
)

// Producer interface provides the Publish method to publish messages to RabbitMQ.
type Producer interface {
	Publish(body []byte) error
}

// Consumer interface provides the Consume method to consume messages from RabbitMQ.
// Consume registers the consumer and handles deliveries in the background
// until ctx is cancelled or the delivery channel closes.
type Consumer interface {
	Consume(ctx context.Context) (<-chan amqp.Delivery, error)
}

// ProducerFactory creates producers on an open channel and declared queue.
type ProducerFactory interface {
	CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error)
}

// ConsumerFactory creates consumers on an open channel and declared queue.
type ConsumerFactory interface {
	CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error)
}

// Queue struct holds slices of Producers and Consumers which can be used to send and consume messages.
type Queue struct {
	Producers []Producer
	Consumers []Consumer

	conn *amqp.Connection
	next uint64
}

// connect establishes a connection to RabbitMQ and opens a channel in
// publisher confirm mode. Connection closures are logged.
func connect(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	if err = ch.Confirm(false); err != nil {
		conn.Close()
		return nil, nil, err
	}

	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err := <-notifyClose; err != nil {
			logger.Error("RabbitMQ connection closed", "err", err)
		}
	}()

	return conn, ch, nil
}

// InitQueue connects to RabbitMQ, declares the durable queue queueName and
// builds one producer or consumer per factory.
func InitQueue(url string, queueName string, prodFactories []ProducerFactory, consFactories []ConsumerFactory) (*Queue, error) {
	conn, ch, err := connect(url)
	if err != nil {
		return nil, fmt.Errorf("error connecting to RabbitMQ: %w", err)
	}

	queue, err := ch.QueueDeclare(
		queueName,
		true,  // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("error declaring queue: %w", err)
	}
	if err := ch.Qos(len(consFactories)*4, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error setting prefetch: %w", err)
	}

	q := &Queue{conn: conn}
	for _, prodFactory := range prodFactories {
		producer, err := prodFactory.CreateProducer(conn, ch, &queue)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("error creating producer: %w", err)
		}
		q.Producers = append(q.Producers, producer)
	}

	for _, consFactory := range consFactories {
		consumer, err := consFactory.CreateConsumer(conn, ch, &queue)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("error creating consumer: %w", err)
		}
		q.Consumers = append(q.Consumers, consumer)
	}
	return q, nil
}

// Publish hands body to the producers in round-robin order.
func (q *Queue) Publish(body []byte) error {
	if len(q.Producers) == 0 {
		return fmt.Errorf("no producers available")
	}
	n := atomic.AddUint64(&q.next, 1) - 1
	return q.Producers[n%uint64(len(q.Producers))].Publish(body)
}

// StartConsumers registers every consumer concurrently and returns the first
// registration error. Registered consumers keep handling deliveries until ctx
// is cancelled.
func (q *Queue) StartConsumers(ctx context.Context) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, consumer := range q.Consumers {
		wg.Add(1)
		go func(c Consumer) {
			defer wg.Done()
			if _, err := c.Consume(ctx); err != nil {
				logger.Error("error starting consumer", "err", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(consumer)
	}
	wg.Wait()
	return firstErr
}

// Close closes the RabbitMQ connection and with it every channel.
func (q *Queue) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}
