package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsCarryKindAndDetail(t *testing.T) {
	cases := []struct {
		err    *Error
		kind   Kind
		detail string
	}{
		{NotFound("User", 42), KindNotFound, "User with id 42 not found"},
		{InvalidCredentials(), KindInvalidCredentials, "Invalid email or password"},
		{AlreadyExists("User", "email", "a@b.co"), KindAlreadyExists, "User with email a@b.co already exists"},
		{InsufficientFunds(10, 20), KindInsufficientFunds, "Insufficient funds. Available: 10, required: 20"},
		{InvalidTransaction("same account"), KindInvalidTransaction, "Invalid transaction same account"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, tc.err.Kind)
		assert.Equal(t, tc.detail, tc.err.Error())
	}
}

func TestKindOfFollowsWrapping(t *testing.T) {
	wrapped := fmt.Errorf("register: %w", AlreadyExists("User", "email", "x@y.z"))
	assert.Equal(t, KindAlreadyExists, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindAlreadyExists))
	assert.True(t, errors.Is(wrapped, &Error{Kind: KindAlreadyExists}))
	assert.False(t, errors.Is(wrapped, &Error{Kind: KindNotFound}))
	assert.Equal(t, Kind(0), KindOf(errors.New("boom")))
}
