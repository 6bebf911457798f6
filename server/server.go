package server

import (
	"context"
	"fmt"
	"net/http"

	"secureChatServer/transport"

	"github.com/sirupsen/logrus"
)

// Server hosts the websocket endpoint all clients connect to.
type Server struct {
	httpServer *http.Server
}

func NewServer(handler *transport.Handler) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.Handle)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &Server{
		httpServer: &http.Server{
			Handler: mux,
		},
	}
}

func (s *Server) Start(addr string) error {
	s.httpServer.Addr = addr
	logrus.Infof("Starting chat server on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %v", err)
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	logrus.Info("Server stopping")
	return s.httpServer.Shutdown(ctx)
}
