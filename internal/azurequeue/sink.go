// Package azurequeue carries calculator events over Azure Queue Storage. It is
// the alternative to the AMQP broker for deployments that run on Azure.
package azurequeue

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"expensecalc/internal/amqp"
	"expensecalc/internal/log"
	"expensecalc/internal/widget"
)

const (
	// Standard Azurite account name and key
	azuriteAccountName = "devstoreaccount1"
	azuriteAccountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

	dequeueBatch      = 16
	visibilityTimeout = 30 // seconds
	pollInterval      = time.Second
)

type message struct {
	id, popReceipt, text string
}

// queue is the part of the queue client the sink uses.
type queue interface {
	create(ctx context.Context) error
	enqueue(ctx context.Context, text string) error
	dequeue(ctx context.Context, max int32) ([]message, error)
	delete(ctx context.Context, id, popReceipt string) error
}

// Sink publishes events as base64 JSON messages and consumes them back.
type Sink struct {
	q      queue
	name   string
	logger *log.Logger
	poll   time.Duration
}

// NewSink connects to the queue service at serviceURL. Plain http URLs are
// treated as the local Azurite emulator and use its shared key; anything else
// authenticates with the default Azure credential chain.
func NewSink(ctx context.Context, serviceURL, queueName string, logger *log.Logger) (*Sink, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentQueue)

	var client *azqueue.ServiceClient
	if isLocal(serviceURL) {
		logger.Info("Using Azurite shared key credentials", "queue_url", serviceURL)
		cred, err := azqueue.NewSharedKeyCredential(azuriteAccountName, azuriteAccountKey)
		if err != nil {
			return nil, fmt.Errorf("create shared key credential: %w", err)
		}
		client, err = azqueue.NewServiceClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("create queue service client with shared key: %w", err)
		}
	} else {
		logger.Info("Using default Azure credentials", "queue_url", serviceURL)
		cred, err := newDefaultAzureCredential()
		if err != nil {
			return nil, fmt.Errorf("create default azure credential: %w", err)
		}
		client, err = azqueue.NewServiceClient(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("create queue service client: %w", err)
		}
	}

	s := newSink(&azureQueue{client: client.NewQueueClient(queueName)}, queueName, logger)
	if err := s.q.create(ctx); err != nil {
		return nil, fmt.Errorf("create queue %s: %w", queueName, err)
	}
	return s, nil
}

func newSink(q queue, name string, logger *log.Logger) *Sink {
	return &Sink{q: q, name: name, logger: logger, poll: pollInterval}
}

// Publish enqueues one widget event.
func (s *Sink) Publish(ctx context.Context, ev widget.Event) error {
	body, err := amqp.NewExpenseEventMessage(ev).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	// Azure Functions hosts expect base64 message text by default.
	if err := s.q.enqueue(ctx, base64.StdEncoding.EncodeToString(body)); err != nil {
		return fmt.Errorf("enqueue message to %s: %w", s.name, err)
	}
	s.logger.DebugContext(ctx, "Enqueued calculator event",
		log.FieldEventKind, ev.Kind,
		log.FieldWidgetID, ev.WidgetID,
		"queue", s.name)
	return nil
}

// Consume polls the queue and hands each message to handler until ctx is
// done. Undecodable messages are deleted; messages whose handler fails stay
// on the queue and reappear after the visibility timeout.
func (s *Sink) Consume(ctx context.Context, handler func(*amqp.ExpenseEventMessage) error) error {
	s.logger.InfoContext(ctx, "Started consuming calculator events", "queue", s.name)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		msgs, err := s.q.dequeue(ctx, dequeueBatch)
		if err != nil && ctx.Err() == nil {
			s.logger.WarnContext(ctx, "Dequeue failed", log.FieldError, err, "queue", s.name)
		}
		for _, m := range msgs {
			s.handle(ctx, m, handler)
		}

		if len(msgs) < dequeueBatch {
			select {
			case <-ctx.Done():
				s.logger.InfoContext(ctx, "Stopping message consumption", log.FieldReason, ctx.Err())
				return ctx.Err()
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *Sink) handle(ctx context.Context, m message, handler func(*amqp.ExpenseEventMessage) error) {
	msg, err := decode(m.text)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to decode message", log.FieldError, err, "message_id", m.id)
		s.remove(ctx, m)
		return
	}
	if err := handler(msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to handle message",
			log.FieldError, err,
			log.FieldEventKind, msg.Kind,
			log.FieldWidgetID, msg.WidgetID)
		return
	}
	s.remove(ctx, m)
}

func (s *Sink) remove(ctx context.Context, m message) {
	if err := s.q.delete(ctx, m.id, m.popReceipt); err != nil {
		s.logger.WarnContext(ctx, "Failed to delete message", log.FieldError, err, "message_id", m.id)
	}
}

func decode(text string) (*amqp.ExpenseEventMessage, error) {
	body, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return amqp.ExpenseEventMessageFromJSON(body)
}

// isLocal reports whether serviceURL points at the emulator.
func isLocal(serviceURL string) bool {
	return strings.HasPrefix(serviceURL, "http://")
}

func newDefaultAzureCredential() (azcore.TokenCredential, error) {
	return azidentity.NewDefaultAzureCredential(nil)
}

// azureQueue adapts azqueue.QueueClient to queue.
type azureQueue struct {
	client *azqueue.QueueClient
}

func (a *azureQueue) create(ctx context.Context) error {
	_, err := a.client.Create(ctx, nil)
	if err != nil && !strings.Contains(err.Error(), "QueueAlreadyExists") {
		return err
	}
	return nil
}

func (a *azureQueue) enqueue(ctx context.Context, text string) error {
	_, err := a.client.EnqueueMessage(ctx, text, nil)
	return err
}

func (a *azureQueue) dequeue(ctx context.Context, max int32) ([]message, error) {
	timeout := int32(visibilityTimeout)
	resp, err := a.client.DequeueMessages(ctx, &azqueue.DequeueMessagesOptions{
		NumberOfMessages:  &max,
		VisibilityTimeout: &timeout,
	})
	if err != nil {
		return nil, err
	}
	out := make([]message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m == nil || m.MessageID == nil || m.PopReceipt == nil {
			continue
		}
		text := ""
		if m.MessageText != nil {
			text = *m.MessageText
		}
		out = append(out, message{id: *m.MessageID, popReceipt: *m.PopReceipt, text: text})
	}
	return out, nil
}

func (a *azureQueue) delete(ctx context.Context, id, popReceipt string) error {
	_, err := a.client.DeleteMessage(ctx, id, popReceipt, nil)
	return err
}
