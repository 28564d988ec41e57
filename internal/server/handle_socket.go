package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/stadtaev/beatstatus/internal/metrics"
)

func handleSocket(logger *slog.Logger, hub *Hub, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Debug("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		sub, err := hub.Subscribe()
		if err != nil {
			logger.Debug("subscribe rejected", "error", err)
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
		defer sub.Close()

		log := logger.With("subscriber", sub.ID.String())
		log.Debug("subscriber connected", "remote", r.RemoteAddr)

		// Inbound data frames are not part of the protocol; CloseRead
		// discards them and services pongs for Ping.
		ctx := conn.CloseRead(r.Context())

		ping := time.NewTicker(opts.PingInterval)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Debug("subscriber disconnected", "error", ctx.Err())
				return

			case <-sub.Done():
				code, reason := closeStatus(sub.Err())
				log.Debug("closing subscriber", "reason", reason)
				conn.Close(code, reason)
				return

			case data := <-sub.C():
				if err := writeFrame(ctx, conn, data, opts.WriteTimeout); err != nil {
					metrics.WriteFailures.Inc()
					log.Debug("websocket write failed", "error", err)
					return
				}

			case <-ping.C:
				pctx, cancel := context.WithTimeout(ctx, opts.PongTimeout)
				err := conn.Ping(pctx)
				cancel()
				if err != nil {
					metrics.WriteFailures.Inc()
					log.Debug("websocket ping failed", "error", err)
					return
				}
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, data []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

func closeStatus(err error) (websocket.StatusCode, string) {
	switch {
	case errors.Is(err, ErrSlowSubscriber):
		return websocket.StatusPolicyViolation, "too slow"
	case errors.Is(err, ErrHubClosed):
		return websocket.StatusGoingAway, "server shutting down"
	default:
		return websocket.StatusNormalClosure, ""
	}
}
