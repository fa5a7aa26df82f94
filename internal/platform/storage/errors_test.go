package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap("op", nil))
}

func TestWrap_IsUnavailableAndKeepsCause(t *testing.T) {
	err := Wrap("sessions.create", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "sessions.create")
}

func TestWrap_DoesNotDoubleWrap(t *testing.T) {
	inner := Wrap("inner", errors.New("conn reset"))
	outer := Wrap("outer", inner)
	assert.Same(t, inner, outer)
}
