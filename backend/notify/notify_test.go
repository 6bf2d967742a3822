package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cleanstreet/backend/email"
	"cleanstreet/backend/rabbitmq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu       sync.Mutex
	failures int
	err      error
	sent     []*email.Message
	calls    int
}

func (f *fakeSender) Send(ctx context.Context, msg *email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("provider unavailable")
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) snapshot() (calls int, sent []*email.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]*email.Message(nil), f.sent...)
}

func assignment() *Notification {
	return Assigned(&email.Assignment{
		VolunteerName:  "Vic",
		VolunteerEmail: "vic@example.com",
		ComplaintId:    "c1",
		Title:          "Pothole",
		Priority:       "high",
		ReportedAt:     time.Now(),
	})
}

func TestRender(t *testing.T) {
	msg, err := assignment().Render()
	require.NoError(t, err)
	assert.Equal(t, "vic@example.com", msg.To)

	msg, err = Approved(&email.Approval{VolunteerName: "Val", VolunteerEmail: "val@example.com"}).Render()
	require.NoError(t, err)
	assert.Equal(t, "val@example.com", msg.To)

	_, err = (&Notification{Kind: KindComplaintAssigned}).Render()
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = (&Notification{Kind: "digest"}).Render()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDeliverSkipsWhenNotConfigured(t *testing.T) {
	s := &fakeSender{err: email.ErrNotConfigured}
	assert.NoError(t, Deliver(context.Background(), s, assignment()))
}

func TestAsyncNotifierRetriesThenSends(t *testing.T) {
	s := &fakeSender{failures: 2}
	a := NewAsyncNotifier(s, 1, 5, time.Millisecond)

	require.NoError(t, a.Notify(context.Background(), assignment()))
	require.NoError(t, a.Close(context.Background()))

	calls, sent := s.snapshot()
	assert.Equal(t, 3, calls)
	require.Len(t, sent, 1)
	assert.Equal(t, "New Complaint Assigned to You", sent[0].Subject)
}

func TestAsyncNotifierGivesUp(t *testing.T) {
	s := &fakeSender{failures: 100}
	a := NewAsyncNotifier(s, 2, 2, time.Millisecond)

	require.NoError(t, a.Notify(context.Background(), assignment()))
	require.NoError(t, a.Close(context.Background()))

	calls, sent := s.snapshot()
	assert.Equal(t, 3, calls)
	assert.Empty(t, sent)
}

func TestAsyncNotifierRejectsAfterClose(t *testing.T) {
	a := NewAsyncNotifier(&fakeSender{}, 1, 0, time.Millisecond)
	require.NoError(t, a.Close(context.Background()))
	assert.ErrorIs(t, a.Notify(context.Background(), assignment()), ErrClosed)
	assert.NoError(t, a.Close(context.Background()))
}

func TestHandler(t *testing.T) {
	s := &fakeSender{}
	h := Handler(s)

	err := h(&rabbitmq.Message{Body: []byte("{not json")})
	assert.True(t, rabbitmq.IsPermanent(err))

	err = h(&rabbitmq.Message{Body: []byte(`{"kind":"volunteer_approved"}`)})
	assert.True(t, rabbitmq.IsPermanent(err))

	err = h(&rabbitmq.Message{Body: []byte(`{"kind":"volunteer_approved","approval":{"volunteer_name":"Val","volunteer_email":"val@example.com"}}`)})
	assert.NoError(t, err)
	_, sent := s.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, "val@example.com", sent[0].To)

	failing := Handler(&fakeSender{failures: 1})
	err = failing(&rabbitmq.Message{Body: []byte(`{"kind":"volunteer_approved","approval":{"volunteer_email":"val@example.com"}}`)})
	assert.Error(t, err)
	assert.False(t, rabbitmq.IsPermanent(err))
}
