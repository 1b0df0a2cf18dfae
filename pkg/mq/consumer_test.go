package mq

import (
	"errors"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	transient := errors.New("db timeout")
	permanent := Permanent(errors.New("unknown sku"))

	tests := []struct {
		name     string
		err      error
		attempts int
		want     ackDecision
	}{
		{"success acks", nil, 1, decisionAck},
		{"transient failure retries", transient, 1, decisionRetry},
		{"transient below limit retries", transient, 4, decisionRetry},
		{"transient at limit dead-letters", transient, 5, decisionDeadLetter},
		{"permanent dead-letters immediately", permanent, 1, decisionDeadLetter},
		{"wrapped permanent dead-letters", fmt.Errorf("handle: %w", permanent), 1, decisionDeadLetter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decide(tt.err, tt.attempts, 5))
		})
	}
}

func TestAttemptsFrom(t *testing.T) {
	assert.Equal(t, 1, attemptsFrom(nil), "missing headers mean first delivery")
	assert.Equal(t, 1, attemptsFrom(amqp.Table{}))
	assert.Equal(t, 3, attemptsFrom(amqp.Table{attemptsHeader: int32(3)}))
	assert.Equal(t, 4, attemptsFrom(amqp.Table{attemptsHeader: int64(4)}))
	assert.Equal(t, 1, attemptsFrom(amqp.Table{attemptsHeader: "garbage"}))
}

func TestPermanentError(t *testing.T) {
	cause := errors.New("not found")
	err := Permanent(cause)

	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsPermanent(cause))
	assert.False(t, IsPermanent(nil))
	assert.Nil(t, Permanent(nil))
}
