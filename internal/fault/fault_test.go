package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	f := New(KindSeatUnavailable, TargetSeat, "seat -s- is no longer available")

	assert.Equal(t, KindSeatUnavailable, KindOf(f))
	assert.True(t, Is(f, KindSeatUnavailable))
	assert.False(t, Is(f, KindNotFound))

	// Wrapping must not hide the classification.
	wrapped := fmt.Errorf("holding seat: %w", f)
	assert.Equal(t, KindSeatUnavailable, KindOf(wrapped))
}

func TestKindOfMechanicalError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("connection refused")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
