package bridge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loqalabs/loqa-interpret/internal/bus"
	"github.com/loqalabs/loqa-interpret/internal/config"
	"github.com/loqalabs/loqa-interpret/internal/live"
	"github.com/loqalabs/loqa-interpret/internal/natsserver"
	"github.com/loqalabs/loqa-interpret/internal/protocol"
	"github.com/loqalabs/loqa-interpret/internal/translate"
	"github.com/nats-io/nats.go"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionIDFromSubject(t *testing.T) {
	if got := sessionID("session.control.k1"); got != "k1" {
		t.Fatalf("unexpected id %q", got)
	}
	if got := sessionID("nodots"); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}

func TestBusDrivenSession(t *testing.T) {
	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, testLogger())
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	defer srv.Shutdown()
	client, err := bus.Connect(context.Background(), config.BusConfig{Servers: []string{srv.ClientURL()}, ConnectTimeout: 2000}, testLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	cfg := config.Default().Session
	cfg.DebounceMS = 30
	tr := translate.TranslatorFunc(func(ctx context.Context, req translate.Request) (translate.Result, error) {
		return translate.Result{Translated: "el paciente tiene fiebre"}, nil
	})
	svc := NewService(context.Background(), cfg, client, live.Deps{Translator: tr}, testLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer svc.Close()

	updates := make(chan protocol.SessionUpdate, 64)
	sub, err := client.Conn().Subscribe("session.update.k1", func(msg *nats.Msg) {
		var u protocol.SessionUpdate
		if err := json.Unmarshal(msg.Data, &u); err == nil {
			updates <- u
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	waitFor := func(match func(protocol.SessionUpdate) bool) protocol.SessionUpdate {
		t.Helper()
		timeout := time.After(3 * time.Second)
		for {
			select {
			case u := <-updates:
				if match(u) {
					return u
				}
			case <-timeout:
				t.Fatal("timed out waiting for update")
			}
		}
	}

	publish := func(subject, body string) {
		t.Helper()
		if err := client.Conn().Publish(subject, []byte(body)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	publish("session.control.k1", `{"type":"start","sourceLang":"en","targetLang":"es"}`)
	start := waitFor(func(u protocol.SessionUpdate) bool { return u.Type == protocol.UpdateRecognitionStart })
	if start.SessionID != "k1" || start.Config == nil || start.Config.Language != "en" {
		t.Fatalf("unexpected start %+v", start)
	}

	publish("stt.recognition.k1", `{"results":[{"alternatives":[{"transcript":"the patient has a fever","confidence":0.9}],"isFinal":true}]}`)
	waitFor(func(u protocol.SessionUpdate) bool {
		return u.Type == protocol.UpdateTranslated && u.Text == "el paciente tiene fiebre"
	})
	if svc.Sessions() != 1 {
		t.Fatalf("expected one session, got %d", svc.Sessions())
	}

	publish("session.control.k1", `{"type":"close"}`)
	deadline := time.Now().Add(2 * time.Second)
	for svc.Sessions() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if svc.Sessions() != 0 {
		t.Fatal("session should be released after close")
	}
}
