package identity

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kryptoscreener/upordown/internal/domain"
)

type recorder struct {
	changes [][2]domain.Identity
}

func (r *recorder) IdentityChanged(old, new domain.Identity) {
	r.changes = append(r.changes, [2]domain.Identity{old, new})
}

func testSource() *Source {
	return NewSource(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestConnectDisconnect(t *testing.T) {
	s := testSource()
	assert.True(t, s.Current().IsAnonymous())

	id, err := s.Connect("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, id, s.Current())
	assert.False(t, s.Current().IsAnonymous())

	s.Disconnect()
	assert.True(t, s.Current().IsAnonymous())
}

func TestConnectRejectsInvalidAddress(t *testing.T) {
	s := testSource()

	_, err := s.Connect("nope")
	assert.ErrorIs(t, err, domain.ErrInvalidIdentity)
	_, err = s.Connect("")
	assert.ErrorIs(t, err, domain.ErrInvalidIdentity)
	assert.True(t, s.Current().IsAnonymous())
}

func TestWatchNotifiesOnChange(t *testing.T) {
	s := testSource()
	rec := &recorder{}
	cancel := s.Watch(rec)

	id, err := s.Connect("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)

	// Reconnecting the same wallet is a no-op.
	_, err = s.Connect("0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED")
	require.NoError(t, err)

	s.Disconnect()

	require.Len(t, rec.changes, 2)
	assert.Equal(t, [2]domain.Identity{domain.Anonymous, id}, rec.changes[0])
	assert.Equal(t, [2]domain.Identity{id, domain.Anonymous}, rec.changes[1])

	// After cancel, no further notifications.
	cancel()
	_, err = s.Connect("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Len(t, rec.changes, 2)
}
