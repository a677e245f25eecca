package httpapi

import (
	"net/http"

	"github.com/DoyleJ11/hexbuzz/internal/store"
	"github.com/DoyleJ11/hexbuzz/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type Config struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	// PublicURL is the externally visible base URL encoded in join QR codes.
	// When empty it is derived from the request.
	PublicURL  string
	CellSize   float64
	OutboxSize int
}

func SetupRoutes(s *store.Store, cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = DefaultCellSize
	}
	api := &API{store: s, cfg: cfg, log: cfg.Logger.Named("http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(api.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedHeaders: []string{"*"},
	}).Handler)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(s, ws.Options{
		Logger:         cfg.Logger,
		OutboxSize:     cfg.OutboxSize,
		OriginPatterns: cfg.AllowedOrigins,
	}))

	r.Post("/rooms", api.CreateRoom)
	r.Route("/rooms/{id}", func(r chi.Router) {
		r.Get("/", api.GetRoom)
		r.Get("/winner", api.Winner)
		r.Get("/qr", api.QR)
		r.Get("/layout", api.Layout)

		r.Post("/players", api.JoinRoom)
		r.Delete("/players/{name}", api.RemovePlayer)

		r.Put("/cells/{cellID}", api.SetCell)
		r.Post("/cells/{cellID}/cycle", api.CycleCell)
		r.Post("/board/reset", api.ResetBoard)

		r.Post("/buzz", api.Buzz)
		r.Post("/buzzer/reset", api.ResetBuzzer)
	})
	return r
}
