package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMessage(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		event := TestEvent{
			Kind:   "bid_placed",
			LotID:  "alpha",
			Seat:   2,
			Amount: 150,
		}

		values, err := EncodeMessage(event)
		require.NoError(t, err)
		assert.Contains(t, values, "data")

		decoded, err := DecodeMessage[TestEvent](values)
		require.NoError(t, err)
		assert.Equal(t, event, decoded)
	})

	t.Run("pointer type rejected", func(t *testing.T) {
		_, err := EncodeMessage(&TestEvent{})
		assert.ErrorIs(t, err, ErrPointerType)
	})

	t.Run("empty message yields zero value", func(t *testing.T) {
		decoded, err := DecodeMessage[TestEvent](map[string]any{})
		assert.NoError(t, err)
		assert.Equal(t, TestEvent{}, decoded)
	})

	t.Run("missing data field", func(t *testing.T) {
		_, err := DecodeMessage[TestEvent](map[string]any{"other": "value"})
		assert.Error(t, err)
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := DecodeMessage[TestEvent](map[string]any{"data": "not-base64!!"})
		assert.Error(t, err)
	})
}
