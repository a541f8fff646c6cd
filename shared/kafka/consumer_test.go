package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	ID string `json:"id"`
}

func TestTypedMessageHandler(t *testing.T) {
	var processed []string
	processErr := errors.New("downstream busy")

	newHandler := func(skipInvalid bool) *TypedMessageHandler[message] {
		return &TypedMessageHandler[message]{
			Validate: func(m *message) error {
				if m.ID == "" {
					return errors.New("missing id")
				}
				return nil
			},
			Process: func(_ context.Context, m *message) error {
				if m.ID == "busy" {
					return processErr
				}
				processed = append(processed, m.ID)
				return nil
			},
			SkipInvalid: skipInvalid,
		}
	}

	cases := []struct {
		name        string
		skipInvalid bool
		payload     string
		wantMark    bool
		wantErr     error
	}{
		{"valid", false, `{"id":"a"}`, true, nil},
		{"invalid json marked", true, `{`, true, nil},
		{"invalid json kept", false, `{`, false, nil},
		{"validation failure marked", true, `{}`, true, nil},
		{"validation failure kept", false, `{}`, false, nil},
		{"process error retried", true, `{"id":"busy"}`, false, processErr},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mark, err := newHandler(c.skipInvalid).HandleMessage(context.Background(), []byte(c.payload))
			assert.Equal(t, c.wantMark, mark)
			if c.wantErr != nil {
				require.ErrorIs(t, err, c.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}

	assert.Equal(t, []string{"a"}, processed)
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer(ConsumerConfig{Topic: "t", GroupID: "g"})
	assert.Error(t, err)
}
