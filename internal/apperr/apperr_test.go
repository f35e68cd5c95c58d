package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	err := New(Network, "getAccountInfo", base)
	assert.Equal(t, Network, KindOf(err))
	assert.True(t, Is(err, Network))
	assert.False(t, Is(err, Decode))
	assert.ErrorIs(t, err, base)

	wrapped := fmt.Errorf("fetch: %w", err)
	assert.Equal(t, Network, KindOf(wrapped))

	assert.Equal(t, Unknown, KindOf(base))
	assert.False(t, Is(nil, Network))
}

func TestNewNil(t *testing.T) {
	assert.NoError(t, New(Store, "op", nil))
}

func TestFatal(t *testing.T) {
	tests := []struct {
		kind  Kind
		fatal bool
	}{
		{Network, false},
		{Decode, false},
		{Validation, false},
		{Credential, true},
		{Store, true},
	}

	for _, tc := range tests {
		t.Run(tc.kind.String(), func(t *testing.T) {
			err := Newf(tc.kind, "op", "failed")
			assert.Equal(t, tc.fatal, Fatal(err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := Newf(Validation, "validate", "expected %d creators, got %d", 4, 2)
	assert.Equal(t, "validate: validation error: expected 4 creators, got 2", err.Error())

	err = New(Decode, "", errors.New("short"))
	assert.Equal(t, "decode error: short", err.Error())
}
