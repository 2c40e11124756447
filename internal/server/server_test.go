package server

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"innkeeper/internal/config"
	"innkeeper/internal/credentials"
	"innkeeper/internal/database"
	"innkeeper/internal/frame"
	"innkeeper/internal/repository"
	"innkeeper/internal/worker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, capacity, workers int) (addr string, cancel context.CancelFunc) {
	t.Helper()

	logger := zerolog.Nop()
	dir := t.TempDir()

	db, err := database.NewDB(filepath.Join(dir, "hotel.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	creds, err := credentials.NewStore(filepath.Join(dir, "users.txt"))
	require.NoError(t, err)

	fsm := NewFSM(FSMConfig{
		Credentials: creds,
		Bookings:    db,
		Limiter:     repository.NewMemoryLoginLimiter(),
		Capacity:    capacity,
		Year:        2020,
		Retry:       worker.RetryPolicy{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, BackoffFactor: 2},
		Logger:      &logger,
	})

	srv := New(config.ServerConfig{Listen: "127.0.0.1:0", Workers: workers},
		NewSessionHandler(fsm, &logger), &logger)
	require.NoError(t, srv.Listen())

	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancelCtx()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	return srv.Addr().String(), cancelCtx
}

type testClient struct {
	t    *testing.T
	conn net.Conn
}

func dialClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(msg string) {
	c.t.Helper()
	require.NoError(c.t, frame.Write(c.conn, msg))
}

func (c *testClient) recv() string {
	c.t.Helper()
	msg, err := frame.Read(c.conn)
	require.NoError(c.t, err)
	return msg
}

func (c *testClient) register(username, password string) {
	c.t.Helper()
	c.send("r")
	c.recv() // username prompt
	c.send(username)
	require.Equal(c.t, "Y", c.recv())
	c.send(password)
	require.Equal(c.t, "password OK.", c.recv())
	c.recv() // registration confirmation
}

func (c *testClient) reserve(date string) []string {
	c.t.Helper()
	c.send("res")
	c.send(date)
	first := c.recv()
	if first != "RESOK" {
		return []string{first}
	}
	return []string{first, c.recv(), c.recv()}
}

func (c *testClient) release(date, room, code string) string {
	c.t.Helper()
	c.send("rel")
	c.send(date)
	c.send(room)
	c.send(code)
	return c.recv()
}

// The capacity-1 contention scenario: one room, two users fighting over
// Christmas Eve.
func TestSingleRoomContention(t *testing.T) {
	addr, _ := startTestServer(t, 1, 4)

	alice := dialClient(t, addr)
	alice.register("alice", "password1")
	bob := dialClient(t, addr)
	bob.register("bob", "password2")

	replies := alice.reserve("24/12")
	require.Len(t, replies, 3)
	assert.Equal(t, "RESOK", replies[0])
	assert.Equal(t, "1", replies[1])
	code := replies[2]

	replies = bob.reserve("24/12")
	assert.Equal(t, []string{"NOAVAL"}, replies)

	assert.Equal(t, "OK. Reservation deleted successfully.", alice.release("24/12", "1", code))

	replies = bob.reserve("24/12")
	require.Len(t, replies, 3)
	assert.Equal(t, "1", replies[1], "freed room is handed to the next taker")
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	addr, _ := startTestServer(t, 5, 4)

	alice := dialClient(t, addr)
	alice.register("alice", "password1")
	alice.send("lgt")
	alice.send("l")
	assert.Equal(t, "OK", alice.recv())
	alice.send("alice")
	assert.Equal(t, "Y", alice.recv())
	alice.send("password1")
	assert.Equal(t, "Y", alice.recv())

	alice.send("v")
	assert.Equal(t, "You have 0 active reservations.", alice.recv())
}

func TestLoginWrongPasswordOverWire(t *testing.T) {
	addr, _ := startTestServer(t, 5, 4)

	alice := dialClient(t, addr)
	alice.register("alice", "password1")
	alice.send("lgt")
	alice.send("l")
	alice.recv()
	alice.send("alice")
	assert.Equal(t, "Y", alice.recv())
	alice.send("not-the-password")
	assert.Equal(t, "N", alice.recv())
}

func TestViewAfterReservations(t *testing.T) {
	addr, _ := startTestServer(t, 5, 4)

	alice := dialClient(t, addr)
	alice.register("alice", "password1")

	replies := alice.reserve("25/12")
	require.Len(t, replies, 3)
	replies = alice.reserve("24/12")
	require.Len(t, replies, 3)

	alice.send("v")
	listing := alice.recv()
	assert.Contains(t, listing, "Your active reservations in 2020")
	// date_key ordering puts Christmas Eve first even though it was booked second
	assert.Less(t, indexOf(listing, "24/12"), indexOf(listing, "25/12"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestConcurrentReservationsOverWire(t *testing.T) {
	const capacity = 5
	addr, _ := startTestServer(t, capacity, 8)

	results := make(chan string, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			client := dialClient(t, addr)
			client.register(string(rune('a'+i))+"user", "password1")
			replies := client.reserve("24/12")
			if replies[0] == "RESOK" {
				results <- replies[1]
			} else {
				results <- replies[0]
			}
		}(i)
	}

	rooms := make(map[string]int)
	noAvail := 0
	for i := 0; i < 8; i++ {
		select {
		case r := <-results:
			if r == "NOAVAL" {
				noAvail++
			} else {
				rooms[r]++
			}
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for reservations")
		}
	}

	assert.Equal(t, capacity, len(rooms), "exactly capacity reservations succeed")
	assert.Equal(t, 8-capacity, noAvail)
	for room, count := range rooms {
		assert.Equal(t, 1, count, "room %s assigned twice", room)
	}
}

// With a single worker the second connection is accepted but not served
// until the first session ends.
func TestExcessConnectionsWaitForWorker(t *testing.T) {
	addr, _ := startTestServer(t, 5, 1)

	first := dialClient(t, addr)
	first.send("h")
	assert.Equal(t, "H", first.recv())
	first.recv() // help text

	second := dialClient(t, addr)
	second.send("h")

	// The lone worker is parked on the first session, so nothing comes back
	// yet.
	require.NoError(t, second.conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, err := frame.Read(second.conn)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())

	first.send("q")

	require.NoError(t, second.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	msg, err := frame.Read(second.conn)
	require.NoError(t, err)
	assert.Equal(t, "H", msg)
}

func TestDisconnectFreesWorker(t *testing.T) {
	addr, _ := startTestServer(t, 5, 1)

	first := dialClient(t, addr)
	first.send("h")
	first.recv()
	first.recv()
	first.conn.Close()

	second := dialClient(t, addr)
	assert.Eventually(t, func() bool {
		second.send("h")
		require.NoError(t, second.conn.SetReadDeadline(time.Now().Add(time.Second)))
		msg, err := frame.Read(second.conn)
		return err == nil && msg == "H"
	}, 5*time.Second, 100*time.Millisecond)
}
