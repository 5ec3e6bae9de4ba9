package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/notifications/email"
	cache "github.com/Rodvdev/gainz-factory-sub003/backend/storage/cache"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Notification kinds.
const (
	KindConfirmEmail        = "confirm_email"
	KindAchievementUnlocked = "achievement_unlocked"
)

// QueueName is the RabbitMQ queue carrying notifications.
const QueueName = "notifications"

// NotificationMessage is the JSON body of a queued notification.
type NotificationMessage struct {
	Id      string `json:"id"`
	Kind    string `json:"kind"`
	To      string `json:"to"`
	Token   string `json:"token,omitempty"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// Handler delivers a notification.
type Handler func(ctx context.Context, msg *NotificationMessage) error

// SendEmail is the Handler that delivers notifications over SMTP.
func SendEmail(_ context.Context, msg *NotificationMessage) error {
	subject, body := msg.Subject, msg.Body
	if msg.Kind == KindConfirmEmail {
		var err error
		if body, err = email.ConfirmationBody(msg.Token); err != nil {
			return err
		}
		subject = "Confirm your Gainz Factory account"
	}
	if body == "" {
		return fmt.Errorf("notification %s of kind %q has no body", msg.Id, msg.Kind)
	}
	return email.SendEmail(msg.To, subject, body)
}

// processor de-duplicates notifications through the cache before handing them
// to the handler. A message is marked as processed once delivered.
type processor struct {
	cache   cache.CacheInterface
	handler Handler
}

func processedKey(id string) string { return "notification:" + id }

// process handles one delivery body and reports whether it should be
// acknowledged; unacknowledged deliveries are requeued.
func (p *processor) process(ctx context.Context, body []byte) bool {
	msg := &NotificationMessage{}
	if err := json.Unmarshal(body, msg); err != nil || msg.Id == "" {
		logger.Error("dropping malformed notification", "err", err)
		return true
	}

	var done bool
	err := p.cache.Get(ctx, processedKey(msg.Id), &done)
	switch {
	case err == nil && done:
		logger.Debug("skipping duplicate notification", "id", msg.Id)
		return true
	case err != nil && !errors.Is(err, cache.ErrMiss):
		logger.Warn("error checking cache", "id", msg.Id, "err", err)
		return false
	}

	if err := p.handler(ctx, msg); err != nil {
		logger.Warn("failed to deliver notification", "id", msg.Id, "kind", msg.Kind, "err", err)
		return false
	}
	if err := p.cache.Set(ctx, processedKey(msg.Id), true); err != nil {
		logger.Warn("failed to mark notification as processed", "id", msg.Id, "err", err)
	}
	return true
}

// NotificationProducerFactory creates NotificationProducer instances.
type NotificationProducerFactory struct{}

// NotificationConsumerFactory creates NotificationConsumer instances sharing
// Cache for de-duplication and Handler for delivery.
type NotificationConsumerFactory struct {
	Cache   cache.CacheInterface
	Handler Handler
}

// NotificationProducer publishes notifications on the queue.
type NotificationProducer struct {
	channel *amqp.Channel
	queue   *amqp.Queue
}

// NotificationConsumer consumes notifications from the queue.
type NotificationConsumer struct {
	channel *amqp.Channel
	queue   *amqp.Queue
	proc    *processor
}

func (f *NotificationProducerFactory) CreateProducer(_ *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error) {
	return &NotificationProducer{channel: ch, queue: queue}, nil
}

func (f *NotificationConsumerFactory) CreateConsumer(_ *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error) {
	if f.Handler == nil {
		return nil, errors.New("notification consumer needs a handler")
	}
	c := f.Cache
	if c == nil {
		c = cache.NopCache{}
	}
	return &NotificationConsumer{channel: ch, queue: queue, proc: &processor{cache: c, handler: f.Handler}}, nil
}

// Publish publishes body as a persistent message.
func (np *NotificationProducer) Publish(body []byte) error {
	err := np.channel.Publish(
		"",            // exchange
		np.queue.Name, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}
	return nil
}

// Consume registers the consumer and handles deliveries in a goroutine until
// ctx is done.
func (nc *NotificationConsumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	msgs, err := nc.channel.Consume(nc.queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case d, ok := <-msgs:
				if !ok {
					return
				}
				if nc.proc.process(ctx, d.Body) {
					d.Ack(false)
				} else {
					d.Nack(false, true)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return msgs, nil
}

// BuildNotificationQueue connects to RabbitMQ and builds a queue with the
// given number of producers and consumers.
func BuildNotificationQueue(rabbitMQURL string, numProducers, numConsumers int, c cache.CacheInterface, handler Handler) (*Queue, error) {
	prodFactories := make([]ProducerFactory, numProducers)
	for i := range prodFactories {
		prodFactories[i] = &NotificationProducerFactory{}
	}
	consFactories := make([]ConsumerFactory, numConsumers)
	for i := range consFactories {
		consFactories[i] = &NotificationConsumerFactory{Cache: c, Handler: handler}
	}
	return InitQueue(rabbitMQURL, QueueName, prodFactories, consFactories)
}

// Dispatcher accepts notifications for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *NotificationMessage) error
}

// Dispatch serialises msg and publishes it.
func (q *Queue) Dispatch(_ context.Context, msg *NotificationMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := q.Publish(body); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Direct delivers notifications synchronously, with the same de-duplication
// as the queue consumers. It is used when RabbitMQ is not configured.
type Direct struct {
	proc *processor
}

func NewDirect(c cache.CacheInterface, handler Handler) *Direct {
	if c == nil {
		c = cache.NopCache{}
	}
	return &Direct{proc: &processor{cache: c, handler: handler}}
}

func (d *Direct) Dispatch(ctx context.Context, msg *NotificationMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if !d.proc.process(ctx, body) {
		return fmt.Errorf("notification %s was not delivered", msg.Id)
	}
	return nil
}

// UserLookup finds the recipient of a notification.
type UserLookup interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// Notifier turns domain events into notification messages.
type Notifier struct {
	Dispatcher Dispatcher
	Users      UserLookup
}

// SendConfirmation queues the confirmation code email of a new account.
func (n *Notifier) SendConfirmation(ctx context.Context, to, code string) error {
	return n.Dispatcher.Dispatch(ctx, &NotificationMessage{
		Id:    uuid.NewString(),
		Kind:  KindConfirmEmail,
		To:    to,
		Token: code,
	})
}

// AchievementUnlocked queues the email announcing an unlocked achievement.
// The message id is derived from the user and achievement so an unlock is
// announced at most once.
func (n *Notifier) AchievementUnlocked(ctx context.Context, userID string, a *models.Achievement) error {
	user, err := n.Users.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	body, err := email.AchievementBody(a.Name, a.Description, a.XPReward)
	if err != nil {
		return err
	}
	return n.Dispatcher.Dispatch(ctx, &NotificationMessage{
		Id:      userID + ":" + a.ID,
		Kind:    KindAchievementUnlocked,
		To:      user.Email,
		Subject: "Achievement unlocked: " + a.Name,
		Body:    body,
	})
}
