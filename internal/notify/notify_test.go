package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewJobSMS(t *testing.T) {
	got := NewJobSMS("123 Main St", "Airport")
	want := "🚗 New MinuteRide job:\nPickup: 123 Main St\nDropoff: Airport\nLog in now to claim it."
	if got != want {
		t.Fatalf("unexpected body:\n%q\nwant\n%q", got, want)
	}

	if got := NewJobSMS("", ""); !strings.Contains(got, "Pickup: N/A\nDropoff: N/A") {
		t.Fatalf("expected N/A placeholders, got %q", got)
	}
}

func TestNewJobPush(t *testing.T) {
	msg := NewJobPush("tok", "job-1", "", "Airport")
	if msg.Title != "New MinuteRide job available" {
		t.Errorf("unexpected title %q", msg.Title)
	}
	if msg.Body != "Pickup unknown → Airport" {
		t.Errorf("unexpected body %q", msg.Body)
	}
	if msg.Data["jobId"] != "job-1" {
		t.Errorf("expected jobId data, got %v", msg.Data)
	}
}

func TestExpoPusher_SendsArrayPayload(t *testing.T) {
	var received []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"data":[{"status":"ok","id":"ticket-1"}]}`))
	}))
	defer srv.Close()

	p := NewExpoPusher(srv.URL)
	if err := p.Push(context.Background(), NewJobPush("ExponentPushToken[abc]", "job-1", "A", "B")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(received) != 1 {
		t.Fatalf("expected 1 message, got %d", len(received))
	}
	if received[0]["to"] != "ExponentPushToken[abc]" || received[0]["body"] != "A → B" {
		t.Fatalf("unexpected payload %v", received[0])
	}
}

func TestExpoPusher_ErrorTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"status":"error","message":"DeviceNotRegistered"}]}`))
	}))
	defer srv.Close()

	err := NewExpoPusher(srv.URL).Push(context.Background(), NewJobPush("t", "j", "A", "B"))
	if err == nil || !strings.Contains(err.Error(), "DeviceNotRegistered") {
		t.Fatalf("expected ticket error, got %v", err)
	}
}

func TestExpoPusher_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errors":[{"code":"TOO_MANY_REQUESTS","message":"slow down"}]}`))
	}))
	defer srv.Close()

	err := NewExpoPusher(srv.URL).Push(context.Background(), NewJobPush("t", "j", "A", "B"))
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}
