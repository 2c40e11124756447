package credentials

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "users.txt"))
	require.NoError(t, err)
	return store
}

func TestRegisterAndVerify(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Register("alice", "s3cret"))

	registered, err := store.IsRegistered("alice")
	require.NoError(t, err)
	assert.True(t, registered)

	ok, err := store.Verify("alice", "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Verify("alice", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPlaintextNeverPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.txt")
	store, err := NewStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Register("bob", "hunter2hunter2"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bob ")
	assert.NotContains(t, string(data), "hunter2hunter2")
}

func TestDuplicateUsername(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Register("carol", "first"))
	assert.ErrorIs(t, store.Register("carol", "second"), ErrUsernameTaken)

	// original password still wins
	ok, err := store.Verify("carol", "first")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyUnknownUser(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Verify("ghost", "whatever")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestIsRegisteredMissingFile(t *testing.T) {
	store := newTestStore(t)

	registered, err := store.IsRegistered("nobody")
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestConcurrentRegistrations(t *testing.T) {
	store := newTestStore(t)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			errs <- store.Register("dave", "pass")
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
		} else {
			assert.ErrorIs(t, err, ErrUsernameTaken)
		}
	}
	assert.Equal(t, 1, success, "exactly one racing registration should win")
}
