package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"docsample/internal/config"
	"docsample/internal/http-server/handlers/collection"
	"docsample/internal/http-server/handlers/database"
	"docsample/internal/http-server/handlers/document"
	handlererrors "docsample/internal/http-server/handlers/errors"
	"docsample/internal/http-server/middleware/authenticate"
	"docsample/internal/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

const requestTimeout = 30 * time.Second

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	database.Core
	collection.Core
	document.Core
}

// NewRouter exposes handler through the document service REST dialect.
func NewRouter(log *slog.Logger, auth authenticate.Authenticate, handler Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))
	router.Use(authenticate.New(log, auth))

	router.NotFound(handlererrors.NotFound(log))
	router.MethodNotAllowed(handlererrors.NotAllowed(log))

	router.Route("/dbs", func(dbs chi.Router) {
		dbs.Post("/", database.Create(log, handler))
		dbs.Route("/{db}/colls", func(colls chi.Router) {
			colls.Post("/", collection.Create(log, handler))
			colls.Route("/{coll}/docs", func(docs chi.Router) {
				docs.Post("/", document.Post(log, handler))
				docs.Get("/", document.ReadFeed(log, handler))
				docs.Get("/{id}", document.Read(log, handler))
				docs.Put("/{id}", document.Replace(log, handler))
				docs.Delete("/{id}", document.Delete(log, handler))
			})
		})
	})

	return router
}

func New(conf *config.Config, log *slog.Logger, handler Handler) *Server {
	server := &Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:           NewRouter(log, authenticate.MasterKey(conf.Emulator.MasterKey), handler),
		ErrorLog:          httpLog,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Emulator.BindIP, s.conf.Emulator.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	s.log.Info("starting api server", slog.String("address", serverAddress))

	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("stopping api server")
	return s.httpServer.Shutdown(ctx)
}
