package correlator

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/paulosouza-ec/Avotech/internal/models"
	"github.com/paulosouza-ec/Avotech/internal/session"
)

type sent struct{ to, body string }

type fakeNotifier struct {
	mu  sync.Mutex
	out []sent
}

func (f *fakeNotifier) SendMessage(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, sent{to, body})
	return nil
}

func setup(t *testing.T) (*Correlator, session.Store, *fakeNotifier) {
	t.Helper()
	st := session.NewMemoryStore()
	sess := models.NewSession("5511987654321")
	sess.PendingOrder = &models.PendingOrder{
		PharmacyName:  "Drogaria Central",
		PharmacyPhone: "551132221234",
		DrugName:      "dipirona",
	}
	st.Put(sess)
	st.Put(models.NewSession("5511900000000"))

	n := &fakeNotifier{}
	return New(st, session.NewLocker(), n), st, n
}

func TestObserve_AffirmativeReply(t *testing.T) {
	c, st, n := setup(t)

	if !c.Observe(context.Background(), models.InboundMessage{From: "551132221234", Body: "SIM, temos em estoque"}) {
		t.Fatal("expected the reply to be consumed")
	}
	c.Wait()

	if len(n.out) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(n.out))
	}
	if n.out[0].to != "5511987654321" {
		t.Errorf("notified wrong user %q", n.out[0].to)
	}
	if want := AffirmativeNotice("Drogaria Central", "dipirona"); n.out[0].body != want {
		t.Errorf("unexpected notification %q", n.out[0].body)
	}
	sess, _ := st.Get("5511987654321")
	if sess.PendingOrder != nil {
		t.Error("pending order should be cleared")
	}

	// A second reply from the same pharmacy no longer matches.
	if c.Observe(context.Background(), models.InboundMessage{From: "551132221234", Body: "sim"}) {
		t.Error("cleared order should not match again")
	}
	c.Wait()
	if len(n.out) != 1 {
		t.Errorf("expected no further notification, got %d", len(n.out))
	}
}

func TestObserve_OtherReplyIsRelayed(t *testing.T) {
	c, _, n := setup(t)
	c.Observe(context.Background(), models.InboundMessage{From: "(11) 3222-1234", Body: "Não temos, só amanhã"})
	c.Wait()

	if len(n.out) != 1 {
		t.Fatalf("expected one notification, got %d", len(n.out))
	}
	if !strings.Contains(n.out[0].body, "\"Não temos, só amanhã\"") || !strings.Contains(n.out[0].body, "Drogaria Central") {
		t.Errorf("reply not relayed verbatim: %q", n.out[0].body)
	}
}

func TestObserve_NonMatchingSender(t *testing.T) {
	c, st, n := setup(t)
	for _, from := range []string{"551199998888", "123", ""} {
		if c.Observe(context.Background(), models.InboundMessage{From: from, Body: "sim"}) {
			t.Errorf("sender %q should not match", from)
		}
	}
	c.Wait()
	if len(n.out) != 0 {
		t.Errorf("expected no notifications, got %d", len(n.out))
	}
	sess, _ := st.Get("5511987654321")
	if sess.PendingOrder == nil {
		t.Error("pending order must survive non-matching traffic")
	}
}

func TestIsAffirmative(t *testing.T) {
	tests := map[string]bool{
		"SIM":             true,
		"sim, temos":      true,
		"Yes we have it":  true,
		"não temos":       false,
		"qual o endereço": false,
	}
	for body, want := range tests {
		if got := IsAffirmative(body); got != want {
			t.Errorf("IsAffirmative(%q) = %v, want %v", body, got, want)
		}
	}
}

func TestObserve_CustomCountryCode(t *testing.T) {
	st := session.NewMemoryStore()
	sess := models.NewSession("12125559999")
	sess.PendingOrder = &models.PendingOrder{
		PharmacyName:  "Duane Reade",
		PharmacyPhone: "12125550123",
		DrugName:      "ibuprofen",
	}
	st.Put(sess)

	n := &fakeNotifier{}
	c := New(st, session.NewLocker(), n, WithCountryCode("1"))
	if !c.Observe(context.Background(), models.InboundMessage{From: "12125550123", Body: "sim"}) {
		t.Fatal("expected the reply to match with country code 1")
	}
	c.Wait()

	if len(n.out) != 1 || n.out[0].to != "12125559999" {
		t.Fatalf("expected one notification to the user, got %+v", n.out)
	}
	if got, _ := st.Get("12125559999"); got.PendingOrder != nil {
		t.Error("pending order should be cleared")
	}
}
