// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeServer struct {
	listenErr   error
	shutdownErr error
	shutdown    chan struct{}
	release     chan struct{}
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		shutdown: make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
}

func (f *fakeServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.release
	return errors.New("http: Server closed")
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	f.shutdown <- struct{}{}
	close(f.release)
	return f.shutdownErr
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	srv := newFakeServer()
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	select {
	case <-srv.shutdown:
	default:
		t.Fatal("Shutdown was not called")
	}
}

func TestHTTPServiceStartupFailure(t *testing.T) {
	srv := newFakeServer()
	srv.listenErr = errors.New("listen tcp: address already in use")
	svc := NewHTTPService(srv, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, srv.listenErr) {
		t.Fatalf("Serve returned %v, want wrapped listen error", err)
	}
}
