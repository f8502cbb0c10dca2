package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/iho/txstats/internal/infrastructure/config"
)

func TestNewHTTPServer(t *testing.T) {
	cfg := &config.Config{
		HTTPPort:         "9090",
		HTTPReadTimeout:  time.Second,
		HTTPWriteTimeout: 2 * time.Second,
		HTTPIdleTimeout:  3 * time.Second,
	}

	srv := newHTTPServer(cfg, http.NotFoundHandler())

	if srv.Addr != ":9090" {
		t.Fatalf("expected addr :9090, got %s", srv.Addr)
	}
	if srv.ReadTimeout != time.Second || srv.WriteTimeout != 2*time.Second || srv.IdleTimeout != 3*time.Second {
		t.Fatalf("timeouts not applied: %+v", srv)
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := &config.Config{LogLevel: "debug", LogFormat: "console"}

	got := loggerConfig(cfg)

	if got.Level != "debug" || got.Format != "console" {
		t.Fatalf("unexpected logger config %+v", got)
	}
}
