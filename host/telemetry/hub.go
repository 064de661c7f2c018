// Package telemetry serves observer state over HTTP and streams it to
// websocket clients.
package telemetry

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"dcservo/host/mcu"
)

// MotorInfo describes a configured motor.
type MotorInfo struct {
	OID   uint8  `json:"oid"`
	Name  string `json:"name"`
	Model string `json:"model"`
}

// Source is what the hub polls.
type Source interface {
	Motors() []MotorInfo
	State(oid uint8) (mcu.State, error)
}

// Event is one websocket message.
type Event struct {
	Type  string      `json:"type"` // state or stall
	State *mcu.State  `json:"state,omitempty"`
	Stall *StallEvent `json:"stall,omitempty"`
}

// StallEvent is a dc_motor_stall report.
type StallEvent struct {
	OID      uint8  `json:"oid"`
	Clock    uint32 `json:"clock"`
	Duration uint32 `json:"duration"` // ms
}

type errorBody struct {
	Error string `json:"error"`
}

// Hub keeps the latest state per motor and fans events out to clients.
type Hub struct {
	mu      sync.RWMutex
	latest  map[uint8]mcu.State
	clients map[*client]struct{}

	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		latest:  make(map[uint8]mcu.State),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "telemetry").Logger(),
	}
}

// Publish records a state and sends it to every client.
func (h *Hub) Publish(st mcu.State) {
	h.mu.Lock()
	h.latest[st.OID] = st
	h.mu.Unlock()
	h.broadcast(Event{Type: "state", State: &st})
}

// PublishStall sends a stall report to every client.
func (h *Hub) PublishStall(ev StallEvent) {
	h.broadcast(Event{Type: "stall", Stall: &ev})
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.send(ev)
	}
}

// Latest returns the most recent state of every motor, by OID.
func (h *Hub) Latest() []mcu.State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	states := make([]mcu.State, 0, len(h.latest))
	for _, st := range h.latest {
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].OID < states[j].OID })
	return states
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Poll publishes the state of every motor of src each interval until ctx
// is done.
func (h *Hub) Poll(ctx context.Context, src Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, m := range src.Motors() {
				st, err := src.State(m.OID)
				if err != nil {
					h.log.Warn().Err(err).Uint8("oid", m.OID).Msg("state query failed")
					continue
				}
				h.Publish(st)
			}
		}
	}
}

// Router returns the HTTP API:
//
//	GET /api/motors       configured motors
//	GET /api/state        latest state of every motor
//	GET /api/state/{oid}  latest state of one motor
//	GET /ws/observer      websocket event stream
func (h *Hub) Router(motors func() []MotorInfo) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/motors", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, motors())
		})
		r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, h.Latest())
		})
		r.Get("/state/{oid}", h.getState)
	})
	r.Get("/ws/observer", h.serveWS)
	return r
}

func (h *Hub) getState(w http.ResponseWriter, r *http.Request) {
	oid, err := strconv.ParseUint(chi.URLParam(r, "oid"), 10, 8)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorBody{"bad oid"})
		return
	}
	h.mu.RLock()
	st, ok := h.latest[uint8(oid)]
	h.mu.RUnlock()
	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorBody{"no state for oid " + strconv.Itoa(int(oid))})
		return
	}
	render.JSON(w, r, st)
}

func (h *Hub) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http")
	})
}
