package http

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/livemap/internal/adapters/scene"
	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/usecases"
	"github.com/samirrijal/livemap/internal/pkg/metrics"
)

// Server-to-client message types.
const (
	wsTypeSession  = "session"
	wsTypeCommand  = "command"
	wsTypeState    = "state"
	wsTypePong     = "pong"
	wsTypeError    = "error"
	wsPingInterval = 30 * time.Second
)

// wsEnvelope wraps every message sent to the browser.
type wsEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// wsClientMessage is sent by the browser. Actions: "resize" (host element size changed),
// "window_resize" (window resized, with the new element size if known), "state" and "ping".
type wsClientMessage struct {
	Action string `json:"action"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type wsState struct {
	Snapshot domain.RouteSnapshot `json:"snapshot"`
	Viewport domain.ViewportState `json:"viewport"`
}

// RideMapSocketHandler streams a live map of one ride to a browser. The browser renders
// the canvas commands it receives and reports its size; everything else runs server side
// in a MapSession.
// Query: width, height (initial host size in pixels).
func RideMapSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		rideID := c.Params("id")
		log := deps.logger().With("ride_id", rideID, "remote_addr", c.RemoteAddr().String())

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		if !validRideID(rideID) {
			_ = writeJSON(wsEnvelope{Type: wsTypeError, Data: "invalid ride id"})
			return
		}

		cfg := deps.Session
		if w, err := strconv.Atoi(c.Query("width")); err == nil && w > 0 {
			cfg.Width = w
		}
		if h, err := strconv.Atoi(c.Query("height")); err == nil && h > 0 {
			cfg.Height = h
		}

		sink := scene.SinkFunc(func(cmd domain.CanvasCommand) {
			_ = writeJSON(wsEnvelope{Type: wsTypeCommand, Data: cmd})
		})
		sess := usecases.NewMapSession(rideID, scene.NewAttacher(sink), cfg, log)

		// Register before reading the snapshot so no update falls between the two.
		deps.Hub.Register(sess)
		defer deps.Hub.Unregister(sess)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		snap, err := deps.Feed.Snapshot(ctx, rideID)
		switch {
		case err == nil:
			_ = sess.Seed(domain.FullUpdate(*snap))
		case errors.Is(err, domain.ErrRideNotFound):
		default:
			log.Warn("ws snapshot load failed, starting empty", "error", err)
		}

		_ = writeJSON(wsEnvelope{Type: wsTypeSession, Data: map[string]string{
			"session_id": sess.ID,
			"ride_id":    rideID,
		}})

		runErr := make(chan error, 1)
		go func() {
			err := sess.Run(ctx)
			if err != nil {
				log.Error("map session failed", "error", err)
				_ = writeJSON(wsEnvelope{Type: wsTypeError, Data: "map unavailable"})
				_ = c.Close()
			}
			runErr <- err
		}()

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		log.Info("ws map client connected", "session_id", sess.ID)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsClientMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(wsEnvelope{Type: wsTypeError, Data: "invalid JSON"})
				continue
			}

			switch m.Action {
			case "resize", "window_resize":
				err = sess.Resize(m.Width, m.Height, m.Action == "window_resize")
			case "state":
				var st wsState
				err = sess.Call(func(ctrl *usecases.LiveMapController) {
					st = wsState{Snapshot: ctrl.Snapshot(), Viewport: ctrl.Viewport()}
				})
				if err == nil {
					_ = writeJSON(wsEnvelope{Type: wsTypeState, Data: st})
				}
			case "ping":
				_ = writeJSON(wsEnvelope{Type: wsTypePong})
			default:
				_ = writeJSON(wsEnvelope{Type: wsTypeError, Data: "unknown action: " + m.Action})
			}
			if errors.Is(err, domain.ErrSessionClosed) {
				break
			}
		}

		// Cleanup
		close(done)
		cancel()
		<-runErr
		log.Info("ws map client disconnected", "session_id", sess.ID)
	}
}
