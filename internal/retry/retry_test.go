package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fast = Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func TestDo(t *testing.T) {
	errTransient := errors.New("transient")
	errFatal := errors.New("fatal")

	cases := []struct {
		name          string
		failures      []error
		expectedCalls int
		expectedErr   error
	}{
		{name: "first try", expectedCalls: 1},
		{name: "recovers", failures: []error{errTransient, errTransient}, expectedCalls: 3},
		{name: "exhausted", failures: []error{errTransient, errTransient, errTransient, errTransient}, expectedCalls: 3, expectedErr: errTransient},
		{name: "permanent", failures: []error{Permanent(errFatal)}, expectedCalls: 1, expectedErr: errFatal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), fast, func() error {
				calls++
				if calls <= len(tc.failures) {
					return tc.failures[calls-1]
				}
				return nil
			})

			assert.Equal(t, tc.expectedCalls, calls)
			if tc.expectedErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.expectedErr)
			}
		})
	}
}

func TestDo_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 10, InitialInterval: time.Millisecond}, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
