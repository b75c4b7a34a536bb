package jwttoken

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "accounts/pkg/domain-errors"
)

func newTestService() *Service {
	return NewService("test-secret", "accounts-test")
}

func TestIssueAndVerify(t *testing.T) {
	t.Run("payload survives the round trip structurally", func(t *testing.T) {
		svc := newTestService()
		payload := Payload{SessionID: "sess-1", IsImpersonated: true}

		token, err := svc.Issue(payload, 90*time.Minute)
		require.NoError(t, err)

		got, err := svc.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("empty refresh payload round trips", func(t *testing.T) {
		svc := newTestService()
		token, err := svc.Issue(Payload{}, 7*24*time.Hour)
		require.NoError(t, err)

		got, err := svc.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, Payload{}, got)
	})
}

func TestVerifyRejections(t *testing.T) {
	t.Run("expired token is invalid", func(t *testing.T) {
		svc := newTestService()
		token, err := svc.Issue(Payload{SessionID: "sess-1"}, -time.Minute)
		require.NoError(t, err)

		_, err = svc.Verify(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})

	t.Run("zero expiry is invalid", func(t *testing.T) {
		svc := newTestService()
		token, err := svc.Issue(Payload{SessionID: "sess-1"}, 0)
		require.NoError(t, err)

		_, err = svc.Verify(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})

	t.Run("token signed with another secret is invalid", func(t *testing.T) {
		other := NewService("other-secret", "accounts-test")
		token, err := other.Issue(Payload{SessionID: "sess-1"}, time.Hour)
		require.NoError(t, err)

		_, err = newTestService().Verify(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})

	t.Run("tampering with any character breaks verification", func(t *testing.T) {
		svc := newTestService()
		token, err := svc.Issue(Payload{SessionID: "sess-1"}, time.Hour)
		require.NoError(t, err)

		// First header char, a payload char, and the first signature char.
		sigStart := strings.LastIndex(token, ".") + 1
		for _, idx := range []int{0, len(token) / 2, sigStart} {
			mutated := []byte(token)
			if mutated[idx] == 'A' {
				mutated[idx] = 'B'
			} else {
				mutated[idx] = 'A'
			}
			_, err := svc.Verify(string(mutated))
			assert.Error(t, err, "mutation at index %d must invalidate the token", idx)
		}
	})

	t.Run("malformed token is invalid", func(t *testing.T) {
		svc := newTestService()
		for _, garbage := range []string{"", "not-a-token", strings.Repeat("x", 512)} {
			_, err := svc.Verify(garbage)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken))
		}
	})
}

func TestVerifySignature(t *testing.T) {
	t.Run("accepts an expired but genuine token", func(t *testing.T) {
		svc := newTestService()
		token, err := svc.Issue(Payload{SessionID: "sess-1"}, -time.Minute)
		require.NoError(t, err)

		got, err := svc.VerifySignature(token)
		require.NoError(t, err)
		assert.Equal(t, "sess-1", got.SessionID)
	})

	t.Run("still rejects a foreign signature", func(t *testing.T) {
		other := NewService("other-secret", "accounts-test")
		token, err := other.Issue(Payload{SessionID: "sess-1"}, -time.Minute)
		require.NoError(t, err)

		_, err = newTestService().VerifySignature(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})
}
