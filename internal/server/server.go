package server

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"hebrewvocab/internal/config"
	"hebrewvocab/internal/kv"
	"hebrewvocab/internal/logging"
	"hebrewvocab/internal/metrics"
	"hebrewvocab/internal/rooms"
)

const requestTimeout = 15 * time.Second

type Server struct {
	Store   *kv.Store
	Rooms   *rooms.Service
	Metrics *metrics.Metrics
	// BaseURL overrides the request origin in share links.
	BaseURL string

	log zerolog.Logger
}

func New(store *kv.Store, svc *rooms.Service, m *metrics.Metrics, cfg config.Config) *Server {
	return &Server{
		Store:   store,
		Rooms:   svc,
		Metrics: m,
		BaseURL: cfg.BaseURL,
		log:     logging.Component("server"),
	}
}

// Routes builds the router. Streaming endpoints sit outside the request
// timeout.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.Metrics.Handler())

	r.Get("/rooms/{code}/events", s.handleEvents)
	r.Get("/rooms/{code}/ws", s.handleWebsocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Route("/store", s.registerStoreRoutes)
		r.Route("/api/storage", s.registerStoreRoutes)
		s.registerRoomRoutes(r)
	})
	return r
}
