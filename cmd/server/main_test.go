package main

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iho/rideledger/internal/infrastructure/auth"
	"github.com/iho/rideledger/internal/infrastructure/config"
	"github.com/iho/rideledger/internal/infrastructure/metrics"
)

func memoryConfig() *config.Config {
	return &config.Config{
		StorageDriver:      config.StorageMemory,
		AuthProvider:       config.AuthNone,
		RateLimitRPS:       100,
		RateLimitBurst:     100,
		IdempotencyTTL:     time.Hour,
		WatchPollInterval:  50 * time.Millisecond,
		OutboxPollInterval: 50 * time.Millisecond,
		OutboxBatchSize:    10,
		SettlementInterval: time.Second,
		AnalyticsCacheTTL:  time.Minute,
	}
}

func TestBuildApp_MemoryStorage(t *testing.T) {
	a, err := buildApp(context.Background(), memoryConfig(), zerolog.Nop(), metrics.NewWithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("buildApp failed: %v", err)
	}
	defer a.close()

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d: %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(`{"role":"driver"}`))
	req.Header.Set("X-Account-ID", "drv-1")
	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBuildApp_WorkersStopOnCancel(t *testing.T) {
	a, err := buildApp(context.Background(), memoryConfig(), zerolog.Nop(), metrics.NewWithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("buildApp failed: %v", err)
	}
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 3)
	go func() { done <- ignoreCancel(a.publisher.Start(ctx)) }()
	go func() { done <- ignoreCancel(a.settlement.Run(ctx, 10*time.Millisecond)) }()
	go func() { done <- ignoreCancel(a.rateLimiter.Run(ctx, 10*time.Millisecond)) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	for range 3 {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("expected clean stop, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not stop")
		}
	}
}

func TestServe_ShutdownEndsOpenWatchStreams(t *testing.T) {
	cfg := memoryConfig()
	cfg.HTTPShutdownTimeout = 2 * time.Second

	a, err := buildApp(context.Background(), cfg, zerolog.Nop(), metrics.NewWithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("buildApp failed: %v", err)
	}
	defer a.close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- serve(ctx, cfg, zerolog.Nop(), a, ln) }()

	req, err := http.NewRequest(http.MethodGet, "http://"+ln.Addr().String()+"/api/v1/orders/watch", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Account-ID", "drv-1")
	req.Header.Set("X-Account-Role", "driver")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	if !scanner.Scan() || scanner.Text() != "event: orders" {
		t.Fatalf("expected first snapshot, got %q", scanner.Text())
	}

	cancel()

	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(cfg.HTTPShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}

	var sawEnd bool
	for scanner.Scan() {
		if scanner.Text() == "event: end" {
			sawEnd = true
		}
	}
	if !sawEnd {
		t.Fatal("expected the stream to finish with an end frame")
	}
}

func TestNewAuthenticator(t *testing.T) {
	cfg := memoryConfig()

	got, err := newAuthenticator(context.Background(), cfg)
	if err != nil || got != nil {
		t.Fatalf("expected no authenticator for none, got %v, %v", got, err)
	}

	cfg.AuthProvider = config.AuthJWT
	cfg.JWTSecret = "secret"
	cfg.JWTExpiration = time.Hour
	got, err = newAuthenticator(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got.(*auth.JWTManager); !ok {
		t.Fatalf("expected *auth.JWTManager, got %T", got)
	}

	cfg.AuthProvider = "ldap"
	if _, err := newAuthenticator(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestIgnoreCancel(t *testing.T) {
	if err := ignoreCancel(context.Canceled); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := ignoreCancel(context.DeadlineExceeded); err == nil {
		t.Fatal("expected deadline error to pass through")
	}
}
