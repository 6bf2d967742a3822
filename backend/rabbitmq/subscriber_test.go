package rabbitmq

import (
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
)

func TestRetryCountFromHeaders(t *testing.T) {
	testCases := []struct {
		headers amqp.Table
		want    int
	}{
		{nil, 0},
		{amqp.Table{}, 0},
		{amqp.Table{retryCountHeaderKey: int32(3)}, 3},
		{amqp.Table{retryCountHeaderKey: int64(7)}, 7},
		{amqp.Table{retryCountHeaderKey: "2"}, 2},
		{amqp.Table{retryCountHeaderKey: "x"}, 0},
		{amqp.Table{retryCountHeaderKey: int32(-4)}, 0},
		{amqp.Table{retryCountHeaderKey: 1.5}, 0},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, retryCountFromHeaders(tc.headers), "headers %v", tc.headers)
	}
}

func TestWithRetryCountHeaderCopies(t *testing.T) {
	orig := amqp.Table{"trace": "abc", retryCountHeaderKey: int32(1)}
	next := withRetryCountHeader(orig, 2)

	assert.Equal(t, int32(2), next[retryCountHeaderKey])
	assert.Equal(t, "abc", next["trace"])
	assert.Equal(t, int32(1), orig[retryCountHeaderKey])
}

func TestDecide(t *testing.T) {
	transient := errors.New("sendgrid timeout")

	assert.Equal(t, actionAck, decide(nil, 0, 5))
	assert.Equal(t, actionRetry, decide(transient, 0, 5))
	assert.Equal(t, actionRetry, decide(transient, 4, 5))
	assert.Equal(t, actionDrop, decide(transient, 5, 5))
	assert.Equal(t, actionDrop, decide(Permanent(transient), 0, 5))
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	base := errors.New("bad json")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.True(t, errors.Is(err, base))
	assert.False(t, IsPermanent(base))
	assert.Equal(t, "bad json", err.Error())
}
