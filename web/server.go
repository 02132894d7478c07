// Package web serves skeleton, pose and export endpoints over HTTP and websockets.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mogaika/bvh_player/config"
	"github.com/mogaika/bvh_player/player"
	"github.com/mogaika/bvh_player/status"
	"github.com/mogaika/bvh_player/utils"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	session  *player.Session
	hub      *status.Hub
	cfg      config.Config
	log      zerolog.Logger
	upgrader websocket.Upgrader
	router   *mux.Router
}

func NewServer(session *player.Session, hub *status.Hub, cfg config.Config) *Server {
	s := &Server{
		session: session,
		hub:     hub,
		cfg:     cfg,
		log:     utils.WithComponent("web"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/json/skeleton", s.HandlerSkeleton).Methods(http.MethodGet)
	r.HandleFunc("/json/motion", s.HandlerMotion).Methods(http.MethodGet)
	r.HandleFunc("/json/sample/{time}", s.HandlerSample).Methods(http.MethodGet)
	r.HandleFunc("/json/pose/{time}", s.HandlerPoseAt).Methods(http.MethodGet)
	r.HandleFunc("/json/pose", s.HandlerPoseState).Methods(http.MethodPost)
	r.HandleFunc("/json/frame/{index}", s.HandlerFrame).Methods(http.MethodGet)
	r.HandleFunc("/dump/skeleton", s.HandlerDumpSkeleton).Methods(http.MethodGet)
	r.HandleFunc("/action/export/{format}/{time}", s.HandlerExport).Methods(http.MethodGet)
	r.HandleFunc("/action/export/{format}/{time}", s.HandlerExportSave).Methods(http.MethodPost)
	r.HandleFunc("/action/reload", s.HandlerReload).Methods(http.MethodPost)
	r.HandleFunc("/ws/pose", s.HandlerPoseStream)
	r.HandleFunc("/ws/status", s.HandlerStatus)
	r.Handle("/metrics", promhttp.Handler())

	if cfg.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir)))
	}
	s.router = r

	return s
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = handlers.LoggingHandler(s.log, h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.log}), handlers.PrintRecoveryStack(true))(h)
	return h
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("starting server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrapf(err, "Server on %q failed", s.cfg.Addr)
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrapf(err, "Failed to shut down server")
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info().Msg("server stopped")
	return nil
}

type recoveryLogger struct {
	log zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error().Interface("panic", v).Msg("recovered from panic")
}
