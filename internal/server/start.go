package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Start runs the websocket bridge and the HTTP server until an interrupt
// arrives, then shuts both down gracefully.
func (s *Server) Start() {
	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	go s.bridge.Run(bridgeCtx)

	go func() {
		if err := s.E.Start(s.Cfg.Addr); err != nil && err != http.ErrServerClosed {
			s.E.Logger.Fatalf("shutting down the server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopBridge()
	s.bus.Close()
	s.DB.Close(ctx)
	s.tracingCleanup()
	if err := s.E.Shutdown(ctx); err != nil {
		s.E.Logger.Fatal(err)
	}
}
