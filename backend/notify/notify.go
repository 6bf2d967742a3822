// Package notify delivers volunteer notifications outside the request that
// triggered them, either through RabbitMQ or an in-process worker pool.
package notify

import (
	"context"
	"errors"
	"fmt"

	"cleanstreet/backend/email"
	"cleanstreet/backend/metrics"
	"cleanstreet/backend/rabbitmq"

	"github.com/apex/log"
)

type Kind string

const (
	KindComplaintAssigned Kind = "complaint_assigned"
	KindVolunteerApproved Kind = "volunteer_approved"
)

var ErrMalformed = errors.New("malformed notification")

type Notification struct {
	Kind       Kind              `json:"kind"`
	Assignment *email.Assignment `json:"assignment,omitempty"`
	Approval   *email.Approval   `json:"approval,omitempty"`
}

func Assigned(a *email.Assignment) *Notification {
	return &Notification{Kind: KindComplaintAssigned, Assignment: a}
}

func Approved(a *email.Approval) *Notification {
	return &Notification{Kind: KindVolunteerApproved, Approval: a}
}

// Render turns the notification into the email to send.
func (n *Notification) Render() (*email.Message, error) {
	switch n.Kind {
	case KindComplaintAssigned:
		if n.Assignment == nil {
			return nil, fmt.Errorf("%w: %s without assignment", ErrMalformed, n.Kind)
		}
		return email.AssignmentMessage(n.Assignment), nil
	case KindVolunteerApproved:
		if n.Approval == nil {
			return nil, fmt.Errorf("%w: %s without approval", ErrMalformed, n.Kind)
		}
		return email.ApprovalMessage(n.Approval), nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformed, n.Kind)
}

// Notifier accepts a notification for later delivery. Implementations must not
// block on the mail provider.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

type Sender interface {
	Send(ctx context.Context, msg *email.Message) error
}

// Deliver renders and sends n. An unconfigured mailer counts as skipped.
func Deliver(ctx context.Context, sender Sender, n *Notification) error {
	msg, err := n.Render()
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "dropped").Inc()
		return err
	}
	err = sender.Send(ctx, msg)
	switch {
	case errors.Is(err, email.ErrNotConfigured):
		metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "skipped").Inc()
		return nil
	case err != nil:
		return err
	}
	metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "sent").Inc()
	return nil
}

// QueueNotifier publishes notifications for the email_sender service.
type QueueNotifier struct {
	publisher *rabbitmq.Publisher
}

func NewQueueNotifier(p *rabbitmq.Publisher) *QueueNotifier {
	return &QueueNotifier{publisher: p}
}

func (q *QueueNotifier) Notify(ctx context.Context, n *Notification) error {
	if err := q.publisher.Publish(ctx, n); err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "failed").Inc()
		return fmt.Errorf("failed to queue %s notification: %w", n.Kind, err)
	}
	log.Infof("Queued %s notification", n.Kind)
	return nil
}

func (q *QueueNotifier) Close(ctx context.Context) error {
	return q.publisher.Close()
}

// Handler consumes queued notifications. Undecodable messages are dropped,
// send failures are retried by the subscriber.
func Handler(sender Sender) rabbitmq.CallbackFunc {
	return func(msg *rabbitmq.Message) error {
		var n Notification
		if err := msg.UnmarshalTo(&n); err != nil {
			return rabbitmq.Permanent(fmt.Errorf("failed to decode notification: %w", err))
		}
		err := Deliver(context.Background(), sender, &n)
		if errors.Is(err, ErrMalformed) {
			return rabbitmq.Permanent(err)
		}
		if err != nil {
			metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "retry").Inc()
		}
		return err
	}
}
