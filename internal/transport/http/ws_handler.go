package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/liveboard-server/internal/config"
	"github.com/vovakirdan/liveboard-server/internal/core"
	"github.com/vovakirdan/liveboard-server/internal/proto"
)

const (
	// frameOverhead leaves room for the envelope around the largest allowed text.
	frameOverhead = 4096
	// maxEscapeFactor is the worst-case growth of a string under JSON escaping (\u00XX).
	maxEscapeFactor = 6
)

// Hub is the part of core.Hub the transport depends on.
type Hub interface {
	RegisterClient(c *core.Client)
	UnregisterClient(c *core.Client)
}

// closeError ends a connection with a specific close status.
type closeError struct {
	status websocket.StatusCode
	reason string
}

func (e *closeError) Error() string {
	return e.reason
}

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub             Hub
	log             *zerolog.Logger
	maxMessageBytes int64
	pingInterval    time.Duration
	ratePerSec      float64
	rateBurst       int
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub Hub, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:             hub,
		log:             logger,
		maxMessageBytes: cfg.MaxMessageBytes,
		pingInterval:    cfg.PingInterval,
		ratePerSec:      cfg.RateLimitPerSec,
		rateBurst:       cfg.RateLimitBurst,
	}
}

// ServeHTTP accepts a connection that has not joined any room yet.
func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	h.serve(w, r, "")
}

// ServeRoom accepts a connection and immediately asks to join token.
func (h *WSHandler) ServeRoom(w stdhttp.ResponseWriter, r *stdhttp.Request, token string) {
	h.serve(w, r, token)
}

func (h *WSHandler) serve(w stdhttp.ResponseWriter, r *stdhttp.Request, token string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if limit := readLimit(h.maxMessageBytes); limit > 0 {
		conn.SetReadLimit(limit)
	}

	client := core.NewClient(uuid.NewString())
	logger := h.log.With().Str("conn_id", client.ID).Logger()
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)
	logger.Debug().Str("remote", r.RemoteAddr).Msg("ws connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if token != "" {
		client.Commands <- &core.Command{Kind: core.CommandJoinRoom, Room: token}
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &logger)
	}()

	err = <-errCh

	// Closing before cancel lets the handshake finish; a cancelled read would tear the socket down.
	var ce *closeError
	if errors.As(err, &ce) {
		logger.Debug().Int("status", int(ce.status)).Str("reason", ce.reason).Msg("ws closing")
		conn.Close(ce.status, ce.reason)
		cancel()
		<-errCh
		return
	}

	cancel()
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	limiter := newConnLimiter(h.ratePerSec, h.rateBurst)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			logger.Debug().Err(err).Msg("read ws inbound")
			return err
		}

		if !limiter.allow() {
			if err := writeError(ctx, conn, &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many messages"}); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound, h.maxMessageBytes)
		if protoErr != nil {
			logger.Debug().Str("type", inbound.Type).Str("code", protoErr.Code).Msg("rejected inbound")
			if err := writeError(ctx, conn, protoErr); err != nil {
				return err
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	var ping <-chan time.Time
	if h.pingInterval > 0 {
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case ev, ok := <-client.Events:
			if !ok {
				return closedQueueError(client.CloseReason())
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(ev)); err != nil {
				logger.Warn().Err(err).Str("event", ev.Kind.String()).Msg("write ws event")
				return err
			}
			if ev.Terminal {
				return closeFor(ev)
			}
		case <-ping:
			pingCtx, cancel := context.WithTimeout(ctx, h.pingInterval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Debug().Err(err).Msg("ws ping failed")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// readLimit bounds a frame so that any text within maxMessageBytes fits however it is escaped.
// Longer text is rejected after decoding with a bad_request frame.
func readLimit(maxMessageBytes int64) int64 {
	if maxMessageBytes <= 0 {
		return 0
	}
	return maxEscapeFactor*maxMessageBytes + frameOverhead
}

// closedQueueError maps the reason the hub gave for closing Events to a close status.
func closedQueueError(reason string) error {
	switch reason {
	case "":
		return nil
	case core.CloseReasonShutdown:
		return &closeError{status: websocket.StatusGoingAway, reason: reason}
	case core.CloseReasonSlowConsumer:
		return &closeError{status: websocket.StatusPolicyViolation, reason: reason}
	default:
		return &closeError{status: websocket.StatusNormalClosure, reason: reason}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, protoErr *proto.Error) error {
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: protoErr,
	})
}
