// Package server exposes hub devices over HTTP and streams their value
// changes over a websocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-gpiozero/internal/hub"
	"github.com/coreman2200/funtimes-gpiozero/internal/store"
)

type Server struct {
	Addr string

	Hub   *hub.Hub
	Store store.Store // nil disables the preset endpoints

	Logger zerolog.Logger
}

func New(addr string, h *hub.Hub, st store.Store) *Server {
	return &Server{
		Addr:   addr,
		Hub:    h,
		Store:  st,
		Logger: log.Logger.With().Str("component", "server").Logger(),
	}
}

// Handler returns the routes wrapped with CORS headers.
func (s *Server) Handler() http.Handler {
	mux := httprouter.New()

	mux.HandlerFunc(http.MethodGet, "/health", s.health)
	mux.HandlerFunc(http.MethodGet, "/ws", s.stream)

	mux.HandlerFunc(http.MethodGet, "/devices", s.devices)
	mux.HandlerFunc(http.MethodGet, "/devices/:name", s.getDevice)
	mux.HandlerFunc(http.MethodPost, "/devices/:name/on", s.command(s.Hub.On))
	mux.HandlerFunc(http.MethodPost, "/devices/:name/off", s.command(s.Hub.Off))
	mux.HandlerFunc(http.MethodPost, "/devices/:name/toggle", s.command(s.Hub.Toggle))
	mux.HandlerFunc(http.MethodPost, "/devices/:name/stop", s.command(s.Hub.Stop))
	mux.HandlerFunc(http.MethodPut, "/devices/:name/value", s.putValue)
	mux.HandlerFunc(http.MethodPut, "/devices/:name/color", s.putColor)
	mux.HandlerFunc(http.MethodPost, "/devices/:name/blink", s.blink)
	mux.HandlerFunc(http.MethodPost, "/devices/:name/pulse", s.pulse)
	mux.HandlerFunc(http.MethodPost, "/devices/:name/presets/:preset", s.playPreset)

	mux.HandlerFunc(http.MethodGet, "/presets", s.presets)
	mux.HandlerFunc(http.MethodGet, "/presets/:name", s.getPreset)
	mux.HandlerFunc(http.MethodPut, "/presets/:name", s.putPreset)
	mux.HandlerFunc(http.MethodDelete, "/presets/:name", s.deletePreset)

	return withCORS(mux)
}

// Run serves until ctx is done, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       time.Second * 15,
		ReadHeaderTimeout: time.Second * 15,
		IdleTimeout:       time.Second * 60,
		MaxHeaderBytes:    4096,
	}

	listenErrs := make(chan error, 1)
	go func() {
		s.Logger.Info().Str("addr", s.Addr).Msg("serving http")
		listenErrs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-listenErrs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}
