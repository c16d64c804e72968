package translate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loqalabs/loqa-interpret/internal/bus"
	"github.com/loqalabs/loqa-interpret/internal/config"
	"github.com/loqalabs/loqa-interpret/internal/natsserver"
	"github.com/loqalabs/loqa-interpret/internal/ratelimit"
)

func startBus(t *testing.T) *bus.Client {
	t.Helper()
	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, testLogger())
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	client, err := bus.Connect(context.Background(), config.BusConfig{
		Servers:        []string{srv.ClientURL()},
		ConnectTimeout: 2000,
	}, testLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestBusServiceRoundTrip(t *testing.T) {
	busClient := startBus(t)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(1, time.Minute))
	gw := RateLimited(NewGateway(reply("el paciente tiene fiebre"), testConfig(), testLogger()), limiter)

	svc := NewService(context.Background(), busClient, gw, testLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer svc.Close()
	if !svc.Healthy() {
		t.Fatal("service should be healthy after start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := NewBusClient(busClient, "kiosk-1")
	res, err := client.Translate(ctx, Request{Text: "the patient has a fever", TargetLang: "es", SourceLang: "en"})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if res.Translated != "el paciente tiene fiebre" {
		t.Fatalf("unexpected translation %q", res.Translated)
	}

	if _, err := client.Translate(ctx, Request{Text: "again", TargetLang: "es"}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit for the same client, got %v", err)
	}
	other := NewBusClient(busClient, "kiosk-2")
	if _, err := other.Translate(ctx, Request{Text: "", TargetLang: "es"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
