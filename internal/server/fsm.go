package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"innkeeper/internal/credentials"
	"innkeeper/internal/database"
	"innkeeper/internal/domain"
	"innkeeper/internal/events"
	"innkeeper/internal/metrics"
	"innkeeper/internal/models"
	"innkeeper/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State identifies where a session is in the protocol.
type State int

const (
	StateUnauthenticated State = iota
	StatePickUsername
	StatePickPassword
	StateVerifyUsername
	StateVerifyPassword
	StateAuthenticated
	StateAwaitReserveDate
	StateAwaitReleaseDate
	StateAwaitReleaseRoom
	StateAwaitReleaseCode
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StatePickUsername:
		return "pick_username"
	case StatePickPassword:
		return "pick_password"
	case StateVerifyUsername:
		return "verify_username"
	case StateVerifyPassword:
		return "verify_password"
	case StateAuthenticated:
		return "authenticated"
	case StateAwaitReserveDate:
		return "await_reserve_date"
	case StateAwaitReleaseDate:
		return "await_release_date"
	case StateAwaitReleaseRoom:
		return "await_release_room"
	case StateAwaitReleaseCode:
		return "await_release_code"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Command tokens as they appear on the wire.
const (
	cmdHelp     = "h"
	cmdHelpAuth = "hh"
	cmdRegister = "r"
	cmdLogin    = "l"
	cmdView     = "v"
	cmdReserve  = "res"
	cmdRelease  = "rel"
	cmdLogout   = "lgt"
	cmdQuit     = "q"
)

// Reply payloads.
const (
	replyYes            = "Y"
	replyNo             = "N"
	replyOK             = "OK"
	replyHelp           = "H"
	replyBadDate        = "BADDATE"
	replyNoAvail        = "NOAVAL"
	replyReserveOK      = "RESOK"
	replyUsernamePrompt = "Choose username: "
	replyPasswordOK     = "password OK."
	replyRegistered     = "Successfully registered, you are now logged-in."
	replyReleaseOK      = "OK. Reservation deleted successfully."
	replyReleaseFail    = "Failed. You have no such reservation."
	replyNoBookings     = "You have 0 active reservations."
)

const helpUnauthenticated = `Commands:
 h  --> show commands
 r  --> register an account
 l  --> log into the system
 q  --> quit`

const helpAuthenticated = `Commands:
 hh                       --> show commands
 res [dd/mm]              --> book a room
 rel [dd/mm] [room] [code] --> cancel a booking
 v                        --> show current bookings
 lgt                      --> log out
 q                        --> log out and quit`

// Session holds the per-connection protocol state. It is owned by exactly
// one worker for the lifetime of the connection.
type Session struct {
	ID       string
	State    State
	Username string

	releaseDate string
	releaseRoom string
}

// FSM drives the reservation protocol one inbound frame at a time. Step is
// a pure dispatch over (state, input): it consumes exactly one frame and
// returns the reply frames to send, never an error. Storage faults are
// logged and mapped to negative replies so a broken backend reads as "no"
// rather than tearing the session down.
type FSM struct {
	creds      domain.CredentialStore
	bookings   domain.BookingStore
	limiter    domain.LoginLimiter
	publisher  domain.EventPublisher
	validator  *Validator
	capacity   int
	year       int
	loginLimit int
	loginWin   time.Duration
	retry      worker.RetryPolicy
	logger     *zerolog.Logger
}

// FSMConfig collects the FSM's collaborators and tunables.
type FSMConfig struct {
	Credentials domain.CredentialStore
	Bookings    domain.BookingStore
	Limiter     domain.LoginLimiter
	Publisher   domain.EventPublisher
	Capacity    int
	Year        int
	LoginLimit  int
	LoginWindow time.Duration
	Retry       worker.RetryPolicy
	Logger      *zerolog.Logger
}

func NewFSM(cfg FSMConfig) *FSM {
	if cfg.Capacity < 1 {
		cfg.Capacity = models.DefaultCapacity
	}
	if cfg.Year == 0 {
		cfg.Year = models.DefaultYear
	}
	if cfg.LoginLimit <= 0 {
		cfg.LoginLimit = models.LoginAttemptLimit
	}
	if cfg.LoginWindow <= 0 {
		cfg.LoginWindow = models.LoginAttemptWindow * time.Second
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = worker.RetryPolicy{
			MaxRetries:    5,
			InitialDelay:  10 * time.Millisecond,
			MaxDelay:      500 * time.Millisecond,
			BackoffFactor: 2,
		}
	}
	return &FSM{
		creds:      cfg.Credentials,
		bookings:   cfg.Bookings,
		limiter:    cfg.Limiter,
		publisher:  cfg.Publisher,
		validator:  NewValidator(cfg.Year),
		capacity:   cfg.Capacity,
		year:       cfg.Year,
		loginLimit: cfg.LoginLimit,
		loginWin:   cfg.LoginWindow,
		retry:      cfg.Retry,
		logger:     cfg.Logger,
	}
}

// NewSession returns a fresh unauthenticated session.
func (f *FSM) NewSession() *Session {
	return &Session{
		ID:    uuid.NewString(),
		State: StateUnauthenticated,
	}
}

// Step advances the session with one inbound frame and returns the frames
// to reply with. Unknown input in a command state is a silent self-loop;
// only quit or disconnect ends a session.
func (f *FSM) Step(ctx context.Context, sess *Session, input string) []string {
	switch sess.State {
	case StateUnauthenticated:
		return f.stepUnauthenticated(sess, input)
	case StatePickUsername:
		return f.stepPickUsername(sess, input)
	case StatePickPassword:
		return f.stepPickPassword(sess, input)
	case StateVerifyUsername:
		return f.stepVerifyUsername(sess, input)
	case StateVerifyPassword:
		return f.stepVerifyPassword(ctx, sess, input)
	case StateAuthenticated:
		return f.stepAuthenticated(ctx, sess, input)
	case StateAwaitReserveDate:
		return f.stepReserveDate(ctx, sess, input)
	case StateAwaitReleaseDate:
		sess.releaseDate = input
		sess.State = StateAwaitReleaseRoom
		return nil
	case StateAwaitReleaseRoom:
		sess.releaseRoom = input
		sess.State = StateAwaitReleaseCode
		return nil
	case StateAwaitReleaseCode:
		return f.stepReleaseCode(ctx, sess, input)
	default:
		// Terminated sessions accept nothing.
		return nil
	}
}

func (f *FSM) stepUnauthenticated(sess *Session, input string) []string {
	switch input {
	case cmdHelp:
		metrics.IncCommand("help")
		return []string{replyHelp, helpUnauthenticated}
	case cmdRegister:
		metrics.IncCommand("register")
		sess.State = StatePickUsername
		return []string{replyUsernamePrompt}
	case cmdLogin:
		metrics.IncCommand("login")
		sess.State = StateVerifyUsername
		return []string{replyOK}
	case cmdQuit:
		metrics.IncCommand("quit")
		sess.State = StateTerminated
		return nil
	default:
		return nil
	}
}

func (f *FSM) stepPickUsername(sess *Session, input string) []string {
	username := strings.ToLower(strings.TrimSpace(input))
	if err := f.validator.Username(username); err != nil {
		return []string{replyNo}
	}

	registered, err := f.creds.IsRegistered(username)
	if err != nil {
		f.logger.Error().Err(err).Str("session_id", sess.ID).Msg("credential lookup failed")
		return []string{replyNo}
	}
	if registered {
		return []string{replyNo}
	}

	sess.Username = username
	sess.State = StatePickPassword
	return []string{replyYes}
}

func (f *FSM) stepPickPassword(sess *Session, input string) []string {
	if err := f.validator.Password(input); err != nil {
		return []string{replyNo}
	}

	if err := f.creds.Register(sess.Username, input); err != nil {
		f.logger.Error().Err(err).Str("session_id", sess.ID).Str("username", sess.Username).Msg("registration failed")
		sess.Username = ""
		sess.State = StatePickUsername
		return []string{replyNo}
	}

	f.publishEvent(events.EventUserRegistered, events.UserEventPayload{Username: sess.Username})
	metrics.IncLogin("registered")
	sess.State = StateAuthenticated
	return []string{replyPasswordOK, replyRegistered}
}

func (f *FSM) stepVerifyUsername(sess *Session, input string) []string {
	username := strings.ToLower(strings.TrimSpace(input))

	registered := false
	if err := f.validator.Username(username); err == nil {
		var lookupErr error
		registered, lookupErr = f.creds.IsRegistered(username)
		if lookupErr != nil {
			f.logger.Error().Err(lookupErr).Str("session_id", sess.ID).Msg("credential lookup failed")
			registered = false
		}
	}

	if !registered {
		sess.State = StateUnauthenticated
		return []string{replyNo}
	}

	sess.Username = username
	sess.State = StateVerifyPassword
	return []string{replyYes}
}

func (f *FSM) stepVerifyPassword(ctx context.Context, sess *Session, input string) []string {
	username := sess.Username

	if f.limiter != nil {
		allowed, err := f.limiter.Allow(ctx, username, f.loginLimit, f.loginWin)
		if err != nil {
			// Limiter faults must not lock everyone out.
			f.logger.Warn().Err(err).Str("username", username).Msg("login limiter unavailable")
		} else if !allowed {
			f.logger.Warn().Str("username", username).Msg("login attempts exhausted")
			metrics.IncLogin("limited")
			sess.Username = ""
			sess.State = StateUnauthenticated
			return []string{replyNo}
		}
	}

	match, err := f.creds.Verify(username, input)
	if err != nil && !errors.Is(err, credentials.ErrNotRegistered) {
		f.logger.Error().Err(err).Str("username", username).Msg("password verification failed")
	}
	if err != nil || !match {
		metrics.IncLogin("failure")
		sess.Username = ""
		sess.State = StateUnauthenticated
		return []string{replyNo}
	}

	if f.limiter != nil {
		if err := f.limiter.Reset(ctx, username); err != nil {
			f.logger.Warn().Err(err).Str("username", username).Msg("login limiter reset failed")
		}
	}
	metrics.IncLogin("success")
	sess.State = StateAuthenticated
	return []string{replyYes}
}

func (f *FSM) stepAuthenticated(ctx context.Context, sess *Session, input string) []string {
	switch input {
	case cmdHelp, cmdHelpAuth:
		metrics.IncCommand("help")
		return []string{replyHelp, helpAuthenticated}
	case cmdView:
		metrics.IncCommand("view")
		return []string{f.listBookings(ctx, sess)}
	case cmdReserve:
		metrics.IncCommand("reserve")
		sess.State = StateAwaitReserveDate
		return nil
	case cmdRelease:
		metrics.IncCommand("release")
		sess.releaseDate = ""
		sess.releaseRoom = ""
		sess.State = StateAwaitReleaseDate
		return nil
	case cmdLogout:
		metrics.IncCommand("logout")
		sess.Username = ""
		sess.State = StateUnauthenticated
		return nil
	case cmdQuit:
		metrics.IncCommand("quit")
		sess.State = StateTerminated
		return nil
	default:
		return nil
	}
}

func (f *FSM) stepReserveDate(ctx context.Context, sess *Session, input string) []string {
	sess.State = StateAuthenticated

	date := strings.TrimSpace(input)
	if err := f.validator.Date(date); err != nil {
		return []string{replyBadDate}
	}

	return f.reserve(ctx, sess, date)
}

// reserve picks a room and inserts the booking in one transaction, retrying
// on lock or uniqueness contention so concurrent sessions racing for the
// same date converge instead of double-assigning a room.
func (f *FSM) reserve(ctx context.Context, sess *Session, date string) []string {
	dateKey := models.DateKey(date, f.year)

	for attempt := 1; ; attempt++ {
		code, err := models.NewReservationCode()
		if err != nil {
			f.logger.Error().Err(err).Msg("reservation code generation failed")
			return []string{replyNoAvail}
		}

		room, err := f.bookings.Reserve(ctx, sess.Username, date, dateKey, code, f.capacity)
		if err == nil {
			metrics.IncReservations()
			f.publishEvent(events.EventReservationCreated, events.ReservationEventPayload{
				User: sess.Username,
				Date: date,
				Room: room,
				Code: code,
			})
			return []string{replyReserveOK, strconv.Itoa(room), code}
		}

		if errors.Is(err, database.ErrNoRooms) {
			metrics.IncNoAvailability()
			return []string{replyNoAvail}
		}

		if database.IsRetryable(err) && attempt <= f.retry.MaxRetries {
			select {
			case <-time.After(f.retry.NextDelay(attempt)):
				continue
			case <-ctx.Done():
				return []string{replyNoAvail}
			}
		}

		f.logger.Error().Err(err).Str("username", sess.Username).Str("date", date).Msg("reservation failed")
		return []string{replyNoAvail}
	}
}

func (f *FSM) stepReleaseCode(ctx context.Context, sess *Session, input string) []string {
	sess.State = StateAuthenticated

	date := strings.TrimSpace(sess.releaseDate)
	room, err := strconv.Atoi(strings.TrimSpace(sess.releaseRoom))
	code := strings.ToUpper(strings.TrimSpace(input))
	sess.releaseDate = ""
	sess.releaseRoom = ""

	if err != nil || room < 1 {
		return []string{replyReleaseFail}
	}

	switch err := f.bookings.Release(ctx, sess.Username, date, room, code); {
	case err == nil:
		metrics.IncReleases()
		f.publishEvent(events.EventReservationReleased, events.ReservationEventPayload{
			User: sess.Username,
			Date: date,
			Room: room,
		})
		return []string{replyReleaseOK}
	case errors.Is(err, database.ErrNotFound):
		return []string{replyReleaseFail}
	default:
		f.logger.Error().Err(err).Str("username", sess.Username).Msg("release failed")
		return []string{replyReleaseFail}
	}
}

func (f *FSM) listBookings(ctx context.Context, sess *Session) string {
	bookings, err := f.bookings.ListForUser(ctx, sess.Username)
	if err != nil {
		f.logger.Error().Err(err).Str("username", sess.Username).Msg("listing bookings failed")
		return replyNoBookings
	}
	if len(bookings) == 0 {
		return replyNoBookings
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your active reservations in %d sorted by DATE:\n", f.year)
	b.WriteString("+------+------+------+\n")
	b.WriteString("| date | room | code |\n")
	b.WriteString("+------+------+------+\n")
	for _, booking := range bookings {
		fmt.Fprintf(&b, "  %s    %d    %s\n", booking.Date, booking.Room, booking.Code)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (f *FSM) publishEvent(eventType string, payload interface{}) {
	if f.publisher == nil {
		return
	}
	if err := f.publisher.PublishJSON(eventType, payload); err != nil {
		f.logger.Warn().Err(err).Str("event", eventType).Msg("event publish failed")
	}
}
