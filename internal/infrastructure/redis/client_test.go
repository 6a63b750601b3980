package redis

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestNewClientSelectsDatabaseFromURL(t *testing.T) {
	s := miniredis.RunT(t)

	ctx := context.Background()
	client, err := NewClient(ctx, fmt.Sprintf("redis://%s/2", s.Addr()))
	if err != nil {
		t.Fatalf("expected client, got error: %v", err)
	}
	defer client.Close()

	if got := client.Options().DB; got != 2 {
		t.Fatalf("expected db 2, got %d", got)
	}
	if got := client.Options().DialTimeout; got != 3*time.Second {
		t.Fatalf("expected default dial timeout, got %s", got)
	}

	if err := client.Set(ctx, "idempotency:probe", "1", time.Minute).Err(); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	s.Select(2)
	if !s.Exists("idempotency:probe") {
		t.Fatal("expected key in database 2")
	}
}

func TestNewClientInvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "://bad-url")
	if err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestNewClientPingFailure(t *testing.T) {
	s := miniredis.RunT(t)
	url := fmt.Sprintf("redis://%s", s.Addr())
	s.Close()

	_, err := NewClient(context.Background(), url)
	if err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error when server is down, got %v", err)
	}
}
