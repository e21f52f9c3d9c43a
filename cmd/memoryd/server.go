package main

import (
	"context"
	"net/http"
)

// httpServer wraps net/http.Server so main can start it in a goroutine and
// shut it down gracefully on signal, without net/http leaking beyond this
// one adapter.
type httpServer struct {
	addr    string
	handler http.Handler

	srv *http.Server
}

func (s *httpServer) run() error {
	s.srv = &http.Server{Addr: s.addr, Handler: s.handler}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *httpServer) shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
