package server

import (
	"context"
	"errors"
	"io"
	"net"

	"innkeeper/internal/frame"
	"innkeeper/internal/metrics"

	"github.com/rs/zerolog"
)

// SessionHandler runs the protocol loop for one accepted connection: read a
// frame, advance the FSM, write the replies. It implements worker.Handler.
type SessionHandler struct {
	fsm    *FSM
	logger *zerolog.Logger
}

func NewSessionHandler(fsm *FSM, logger *zerolog.Logger) *SessionHandler {
	return &SessionHandler{fsm: fsm, logger: logger}
}

// Handle serves the connection until quit or disconnect. A panic inside the
// dispatcher closes this connection only; the worker survives to take the
// next one.
func (h *SessionHandler) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sess := h.fsm.NewSession()
	logger := h.logger.With().
		Str("session_id", sess.ID).
		Str("remote_addr", conn.RemoteAddr().String()).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("state", sess.State.String()).Msg("session panicked")
		}
	}()

	metrics.SessionStarted()
	defer metrics.SessionEnded()
	logger.Info().Msg("session started")

	for sess.State != StateTerminated {
		msg, err := frame.Read(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				logger.Info().Str("state", sess.State.String()).Msg("client disconnected")
			} else {
				logger.Warn().Err(err).Str("state", sess.State.String()).Msg("frame read failed")
			}
			return
		}

		for _, reply := range h.fsm.Step(ctx, sess, msg) {
			if err := frame.Write(conn, reply); err != nil {
				logger.Warn().Err(err).Msg("frame write failed")
				return
			}
		}
	}

	logger.Info().Msg("session ended")
}
