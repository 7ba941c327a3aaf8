package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snaplapse/snaplapse/pkg/log"
	"github.com/snaplapse/snaplapse/server/snapdb"
	"github.com/snaplapse/snaplapse/server/timelapse"
)

// Server is the HTTP glue around the snapshot database and the assembly
// engine. All domain logic lives in those two; handlers only translate.
type Server struct {
	Log    log.Log
	DB     *snapdb.SnapDB
	Engine *timelapse.Engine

	// ShutdownStarted is closed when shutdown begins
	ShutdownStarted chan bool
	// ShutdownComplete receives the final error once shutdown has finished
	ShutdownComplete chan error

	httpServer *http.Server
}

func NewServer(logger log.Log, db *snapdb.SnapDB, engine *timelapse.Engine) *Server {
	return &Server{
		Log:              logger,
		DB:               db,
		Engine:           engine,
		ShutdownStarted:  make(chan bool),
		ShutdownComplete: make(chan error, 1),
	}
}

// ListenHTTP blocks until Shutdown is called.
// port example: ":8080"
func (s *Server) ListenHTTP(port string) error {
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.setupRouter(),
	}
	s.Log.Infof("Listening on %v", port)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		err = nil
	}
	return err
}

// ListenForKillSignals starts a goroutine that runs Shutdown on SIGINT/SIGTERM.
func (s *Server) ListenForKillSignals() {
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case v := <-sig:
			s.Log.Infof("Received OS signal %v", v)
			s.Shutdown()
		case <-s.ShutdownStarted:
		}
	}()
}

// Shutdown stops the HTTP listener and waits for in-flight requests.
// Running generations finish on their own; their records stay consistent
// because an interrupted generation is re-submitted, never resumed.
func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown started")
	close(s.ShutdownStarted)

	var err error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err = s.httpServer.Shutdown(ctx)
	}

	s.Log.Infof("Shutdown complete")
	s.Log.Close()
	s.ShutdownComplete <- err
}
