package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sapliy/baas-integration/internal/kyc"
	"github.com/sapliy/baas-integration/pkg/observability"
)

type fakeDelivery struct {
	body  []byte
	id    string
	acked int
}

func (f *fakeDelivery) Body() []byte      { return f.body }
func (f *fakeDelivery) MessageID() string { return f.id }
func (f *fakeDelivery) Ack() error        { f.acked++; return nil }

type fakeSource struct {
	delivery *fakeDelivery
	calls    int
}

func (f *fakeSource) GetOne(_ context.Context, queueName string, _ time.Duration) (Delivery, bool, error) {
	f.calls++
	if queueName != QueueName {
		return nil, false, errors.New("wrong queue " + queueName)
	}
	if f.delivery == nil {
		return nil, false, nil
	}
	d := f.delivery
	f.delivery = nil
	return d, true, nil
}

type fakeOnboarding struct {
	calls []string
	err   error
}

func (f *fakeOnboarding) ApplyWebhook(_ context.Context, id string, _ kyc.AnalysisStatus, _ json.RawMessage) error {
	f.calls = append(f.calls, id)
	return f.err
}

type fakeAccounts struct {
	keys     []string
	statuses []string
}

func (f *fakeAccounts) ApplyWebhook(_ context.Context, accountKey, providerStatus string) error {
	f.keys = append(f.keys, accountKey)
	f.statuses = append(f.statuses, providerStatus)
	return nil
}

type fakePix struct {
	requestKeys []string
}

func (f *fakePix) ApplyWebhook(_ context.Context, requestKey, _, _ string) error {
	f.requestKeys = append(f.requestKeys, requestKey)
	return nil
}

func envelope(t *testing.T, msgType string, data any) *fakeDelivery {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	body, err := json.Marshal(Message{ID: "m1", Type: msgType, Data: raw})
	if err != nil {
		t.Fatal(err)
	}
	return &fakeDelivery{body: body, id: "m1"}
}

func newTestProcessor(source Source, onb *fakeOnboarding, acc *fakeAccounts, pix *fakePix) *Processor {
	return NewProcessor(source, onb, acc, pix, nil, observability.NewLogger("webhook-test"))
}

func TestPollEmptyQueue(t *testing.T) {
	source := &fakeSource{}
	onb := &fakeOnboarding{}
	p := newTestProcessor(source, onb, &fakeAccounts{}, &fakePix{})

	p.Poll(context.Background())

	if source.calls != 1 {
		t.Errorf("GetOne calls = %d, want 1", source.calls)
	}
	if len(onb.calls) != 0 {
		t.Error("handler invoked with no message")
	}
}

func TestPollDispatchesOnboarding(t *testing.T) {
	d := envelope(t, TypeOnboarding, map[string]any{"id": "rec-1", "analysis_status": "manually_approved"})
	onb := &fakeOnboarding{}
	p := newTestProcessor(&fakeSource{delivery: d}, onb, &fakeAccounts{}, &fakePix{})

	p.Poll(context.Background())

	if len(onb.calls) != 1 || onb.calls[0] != "rec-1" {
		t.Errorf("onboarding calls = %v, want [rec-1]", onb.calls)
	}
	if d.acked != 1 {
		t.Errorf("acked = %d, want 1", d.acked)
	}
}

func TestPollDispatchesAccount(t *testing.T) {
	d := envelope(t, TypeAccountCreation, map[string]any{"account_key": "acct-1", "account_status": "opened"})
	acc := &fakeAccounts{}
	p := newTestProcessor(&fakeSource{delivery: d}, &fakeOnboarding{}, acc, &fakePix{})

	p.Poll(context.Background())

	if len(acc.keys) != 1 || acc.keys[0] != "acct-1" {
		t.Fatalf("account calls = %v, want [acct-1]", acc.keys)
	}
	if acc.statuses[0] != "opened" {
		t.Errorf("status = %q, want opened", acc.statuses[0])
	}
}

func TestPollRoutesPixByRequestKey(t *testing.T) {
	d := envelope(t, TypeBaaS, map[string]any{"pix_key_request_key": "req-1", "pix_key_status": "active"})
	acc := &fakeAccounts{}
	pix := &fakePix{}
	p := newTestProcessor(&fakeSource{delivery: d}, &fakeOnboarding{}, acc, pix)

	p.Poll(context.Background())

	if len(pix.requestKeys) != 1 || pix.requestKeys[0] != "req-1" {
		t.Errorf("pix calls = %v, want [req-1]", pix.requestKeys)
	}
	if len(acc.keys) != 0 {
		t.Error("account reconciler invoked for a pix webhook")
	}
}

func TestPollDropsUnknownType(t *testing.T) {
	d := envelope(t, "somethingElse", map[string]any{})
	onb := &fakeOnboarding{}
	acc := &fakeAccounts{}
	p := newTestProcessor(&fakeSource{delivery: d}, onb, acc, &fakePix{})

	p.Poll(context.Background())

	if len(onb.calls) != 0 || len(acc.keys) != 0 {
		t.Error("handler invoked for unknown type")
	}
	if d.acked != 1 {
		t.Errorf("acked = %d, want 1 (unknown types are still completed)", d.acked)
	}
}

func TestPollAcksDespiteHandlerFailure(t *testing.T) {
	d := envelope(t, TypeOnboarding, map[string]any{"id": "rec-1", "analysis_status": "pending"})
	onb := &fakeOnboarding{err: errors.New("db unavailable")}
	p := newTestProcessor(&fakeSource{delivery: d}, onb, &fakeAccounts{}, &fakePix{})

	p.Poll(context.Background())

	if d.acked != 1 {
		t.Errorf("acked = %d, want 1 (no requeue on handler failure)", d.acked)
	}
}

func TestPollAcksMalformedMessage(t *testing.T) {
	d := &fakeDelivery{body: []byte("{not json"), id: "m1"}
	p := newTestProcessor(&fakeSource{delivery: d}, &fakeOnboarding{}, &fakeAccounts{}, &fakePix{})

	p.Poll(context.Background())

	if d.acked != 1 {
		t.Errorf("acked = %d, want 1", d.acked)
	}
}

func TestPollReentrancyGuard(t *testing.T) {
	source := &fakeSource{}
	p := newTestProcessor(source, &fakeOnboarding{}, &fakeAccounts{}, &fakePix{})

	p.busy.Store(true)
	p.Poll(context.Background())

	if source.calls != 0 {
		t.Errorf("GetOne calls = %d, want 0 while another poll is active", source.calls)
	}
}
