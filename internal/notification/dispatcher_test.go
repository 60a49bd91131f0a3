package notification

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sapliy/baas-integration/pkg/observability"
)

type mockStore struct {
	due     []*Notification
	updated []*Notification
}

func (m *mockStore) Create(_ context.Context, n *Notification) error {
	n.ID = "n1"
	n.Status = StatusPending
	return nil
}

func (m *mockStore) Update(_ context.Context, n *Notification) error {
	cp := *n
	m.updated = append(m.updated, &cp)
	return nil
}

func (m *mockStore) ListDue(_ context.Context, _ time.Time) ([]*Notification, error) {
	return m.due, nil
}

func (m *mockStore) CountPending(_ context.Context) (int, error) {
	return len(m.due), nil
}

func newTestDispatcher(store Store, secret string) *Dispatcher {
	d := NewDispatcher(store, secret, observability.NewLogger("notification-test"))
	d.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return d
}

func TestSweepDeliversDueNotification(t *testing.T) {
	var gotType string
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("X-Notification-Type")
		gotSig = r.Header.Get("X-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload := json.RawMessage(`{"status":"approved"}`)
	store := &mockStore{due: []*Notification{{
		ID: "n1", Type: "onboarding", Status: StatusPending, URL: srv.URL, Payload: payload,
	}}}
	d := newTestDispatcher(store, "cb-secret")

	d.Sweep(context.Background())

	if len(store.updated) != 1 {
		t.Fatalf("updated %d notifications, want 1", len(store.updated))
	}
	n := store.updated[0]
	if n.Status != StatusDelivered {
		t.Errorf("status = %q, want %q", n.Status, StatusDelivered)
	}
	if n.NextAttempt != nil {
		t.Error("next attempt not cleared after delivery")
	}
	if n.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", n.Attempts)
	}
	if gotType != "onboarding" {
		t.Errorf("type header = %q, want onboarding", gotType)
	}
	mac := hmac.New(sha256.New, []byte("cb-secret"))
	mac.Write(payload)
	if want := "sha256=" + hex.EncodeToString(mac.Sum(nil)); gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
	if string(gotBody) != string(payload) {
		t.Errorf("body = %q, want %q", gotBody, payload)
	}
}

func TestSweepSchedulesRetryOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := &mockStore{due: []*Notification{{
		ID: "n1", Type: "account", Status: StatusPending, URL: srv.URL,
		Payload: json.RawMessage(`{}`), Attempts: 3,
	}}}
	d := newTestDispatcher(store, "")

	d.Sweep(context.Background())

	n := store.updated[0]
	if n.Status != StatusPending {
		t.Errorf("status = %q, want %q", n.Status, StatusPending)
	}
	if n.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", n.Attempts)
	}
	if n.LastError == "" {
		t.Error("last error not recorded")
	}
	if n.NextAttempt == nil {
		t.Fatal("next attempt not scheduled")
	}
	want := d.now().Add(RetryDelay)
	if !n.NextAttempt.Equal(want) {
		t.Errorf("next attempt = %v, want %v", n.NextAttempt, want)
	}
}

func TestSweepParksAfterFinalAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := &mockStore{due: []*Notification{{
		ID: "n1", Type: "account", Status: StatusPending, URL: srv.URL,
		Payload: json.RawMessage(`{}`), Attempts: MaxAttempts - 1,
	}}}
	d := newTestDispatcher(store, "")

	d.Sweep(context.Background())

	n := store.updated[0]
	if n.Status != StatusFailed {
		t.Errorf("status = %q, want %q", n.Status, StatusFailed)
	}
	if n.Attempts != MaxAttempts {
		t.Errorf("attempts = %d, want %d", n.Attempts, MaxAttempts)
	}
	if n.NextAttempt != nil {
		t.Error("next attempt not cleared for a parked notification")
	}
}

func TestSweepUnreachableCallback(t *testing.T) {
	store := &mockStore{due: []*Notification{{
		ID: "n1", Type: "account", Status: StatusPending,
		URL: "http://127.0.0.1:1", Payload: json.RawMessage(`{}`),
	}}}
	d := newTestDispatcher(store, "")

	d.Sweep(context.Background())

	n := store.updated[0]
	if n.Status != StatusPending {
		t.Errorf("status = %q, want %q", n.Status, StatusPending)
	}
	if n.NextAttempt == nil {
		t.Error("next attempt not scheduled after connection failure")
	}
}
