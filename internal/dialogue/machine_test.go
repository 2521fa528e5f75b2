package dialogue

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/paulosouza-ec/Avotech/internal/dispatch"
	"github.com/paulosouza-ec/Avotech/internal/models"
	"github.com/paulosouza-ec/Avotech/internal/session"
)

const user = "5511987654321"

type fakeResolver struct {
	pharmacies []models.Pharmacy
	err        error
	calls      []string
}

func (f *fakeResolver) Resolve(ctx context.Context, address, drugName string) ([]models.Pharmacy, error) {
	f.calls = append(f.calls, address+"|"+drugName)
	return f.pharmacies, f.err
}

type fakeEnricher struct {
	info  models.LiveInfo
	calls []models.Pharmacy
}

func (f *fakeEnricher) EnrichPharmacy(ctx context.Context, p models.Pharmacy) models.LiveInfo {
	f.calls = append(f.calls, p)
	return f.info
}

type fakeDispatcher struct {
	result dispatch.Result
	orders []dispatch.Order
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, order dispatch.Order) dispatch.Result {
	f.orders = append(f.orders, order)
	return f.result
}

type harness struct {
	m          *Machine
	sessions   *session.MemoryStore
	resolver   *fakeResolver
	enricher   *fakeEnricher
	dispatcher *fakeDispatcher
}

func newHarness() *harness {
	h := &harness{
		sessions: session.NewMemoryStore(),
		resolver: &fakeResolver{pharmacies: []models.Pharmacy{
			{Name: "Drogaria Central", Address: "Rua A, 10"},
			{Name: "Farmácia Popular", Address: "Rua B, 20"},
		}},
		enricher: &fakeEnricher{info: models.LiveInfo{Phone: "(11) 3222-1234", Status: models.PlainText("Aberta agora")}},
		dispatcher: &fakeDispatcher{result: dispatch.Result{
			Success: true, Message: dispatch.MsgSent, Phone: "551132221234",
		}},
	}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h.m = NewMachine(h.sessions, session.NewLocker(), h.resolver, h.enricher, h.dispatcher,
		WithClock(func() time.Time { return fixed }))
	return h
}

func (h *harness) say(t *testing.T, input string) string {
	t.Helper()
	return h.m.HandleInput(context.Background(), user, input, false)
}

func (h *harness) phase() models.Phase {
	sess, ok := h.sessions.Get(user)
	if !ok {
		return models.PhaseIdle
	}
	return sess.CurrentPhase()
}

// toPhase drives the conversation of user into the requested phase.
func (h *harness) toPhase(t *testing.T, p models.Phase) {
	t.Helper()
	steps := map[models.Phase][]string{
		models.PhaseIdle:                      nil,
		models.PhaseAwaitingDrugConfirmation:  {"dipirona"},
		models.PhaseAwaitingAddress:           {"dipirona", "sim"},
		models.PhaseAwaitingDrugName:          {"dipirona", "sim", "Rua X, Bairro Y, Cidade Z"},
		models.PhaseSelectingPharmacy:         {"dipirona", "sim", "Rua X, Bairro Y, Cidade Z", "dipirona"},
		models.PhaseAwaitingOrderConfirmation: {"dipirona", "sim", "Rua X, Bairro Y, Cidade Z", "dipirona", "1"},
	}
	for _, in := range steps[p] {
		h.say(t, in)
	}
	if got := h.phase(); got != p {
		t.Fatalf("setup reached %s, want %s", got, p)
	}
}

func TestEndToEndScenario(t *testing.T) {
	h := newHarness()

	reply := h.say(t, "Preciso de dipirona")
	if !strings.Contains(reply, "Este é o nome correto do remédio") || h.phase() != models.PhaseAwaitingDrugConfirmation {
		t.Fatalf("expected drug confirmation prompt, got %q in %s", reply, h.phase())
	}

	reply = h.say(t, "sim")
	if !strings.Contains(reply, "endereço completo") || h.phase() != models.PhaseAwaitingAddress {
		t.Fatalf("expected address prompt, got %q in %s", reply, h.phase())
	}

	reply = h.say(t, "Rua X, Bairro Y, Cidade Z")
	if !strings.Contains(reply, "nome do remédio") || h.phase() != models.PhaseAwaitingDrugName {
		t.Fatalf("expected drug name prompt, got %q in %s", reply, h.phase())
	}

	reply = h.say(t, "dipirona")
	if h.phase() != models.PhaseSelectingPharmacy {
		t.Fatalf("expected SelectingPharmacy, got %s", h.phase())
	}
	if len(h.resolver.calls) != 1 || h.resolver.calls[0] != "Rua X, Bairro Y, Cidade Z|dipirona" {
		t.Errorf("unexpected resolver calls: %v", h.resolver.calls)
	}
	if !strings.Contains(reply, "1. *Drogaria Central*") || !strings.Contains(reply, "2. *Farmácia Popular*") || !strings.Contains(reply, "(1 a 2)") {
		t.Errorf("pharmacy list not rendered: %q", reply)
	}

	reply = h.say(t, "1")
	if len(h.enricher.calls) != 1 || h.enricher.calls[0].Name != "Drogaria Central" {
		t.Fatalf("expected candidate 1 to be enriched, got %+v", h.enricher.calls)
	}
	if !strings.Contains(reply, "📞 (11) 3222-1234") || !strings.Contains(reply, "🟢 Aberta agora") || !strings.Contains(reply, "Deseja que eu envie uma mensagem") {
		t.Errorf("unexpected pharmacy info: %q", reply)
	}
	if h.phase() != models.PhaseAwaitingOrderConfirmation {
		t.Fatalf("expected AwaitingOrderConfirmation, got %s", h.phase())
	}

	reply = h.say(t, "sim")
	if !strings.HasPrefix(reply, "✅ Pedido enviado!") {
		t.Errorf("expected success reply, got %q", reply)
	}
	if len(h.dispatcher.orders) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(h.dispatcher.orders))
	}
	want := dispatch.Order{UserID: user, Phone: "(11) 3222-1234", PharmacyName: "Drogaria Central", DrugName: "dipirona", UserAddress: "Rua X, Bairro Y, Cidade Z"}
	if h.dispatcher.orders[0] != want {
		t.Errorf("dispatched %+v, want %+v", h.dispatcher.orders[0], want)
	}

	sess, _ := h.sessions.Get(user)
	if sess.CurrentPhase() != models.PhaseIdle || sess.PendingOrder == nil {
		t.Fatalf("expected Idle with a pending order, got %+v", sess)
	}
	if sess.PendingOrder.PharmacyPhone != "551132221234" || sess.PendingOrder.DrugName != "dipirona" || sess.PendingOrder.SentAt.IsZero() {
		t.Errorf("unexpected pending order: %+v", sess.PendingOrder)
	}
	if sess.SelectedPharmacy != nil || sess.CandidatePharmacies != nil {
		t.Error("stale sub-state survived the order")
	}
}

func TestSelectionWithoutPhoneSuggestsManualMessage(t *testing.T) {
	h := newHarness()
	h.enricher.info = models.LiveInfo{Status: models.Unavailable()}
	h.toPhase(t, models.PhaseSelectingPharmacy)

	reply := h.say(t, "2")
	if !strings.Contains(reply, "Telefone não encontrado") || !strings.Contains(reply, "*Mensagem sugerida:*") {
		t.Errorf("expected manual suggestion, got %q", reply)
	}
	if !strings.Contains(reply, models.StatusUnavailableText) {
		t.Errorf("expected unavailable status, got %q", reply)
	}
	if h.phase() != models.PhaseIdle {
		t.Errorf("expected Idle, got %s", h.phase())
	}
}

func TestCancellationFromEveryPhaseIsIdempotent(t *testing.T) {
	phases := []models.Phase{
		models.PhaseIdle, models.PhaseAwaitingDrugConfirmation, models.PhaseAwaitingAddress,
		models.PhaseAwaitingDrugName, models.PhaseSelectingPharmacy, models.PhaseAwaitingOrderConfirmation,
	}
	for _, p := range phases {
		for _, word := range []string{"cancelar", "Não", "STOP", "quero voltar"} {
			t.Run(fmt.Sprintf("%s/%s", p, word), func(t *testing.T) {
				h := newHarness()
				h.toPhase(t, p)
				for i := 0; i < 2; i++ {
					if reply := h.say(t, word); reply != MsgCancelled {
						t.Fatalf("attempt %d: expected cancellation, got %q", i, reply)
					}
					if _, ok := h.sessions.Get(user); ok {
						t.Fatalf("attempt %d: session should be cleared", i)
					}
				}
			})
		}
	}
}

func TestCancellationClearsPendingOrder(t *testing.T) {
	h := newHarness()
	h.toPhase(t, models.PhaseAwaitingOrderConfirmation)
	h.say(t, "sim")
	h.say(t, "cancelar")
	if _, ok := h.sessions.Get(user); ok {
		t.Error("pending order should be dropped with the session")
	}
}

func TestGreetingKeepsPhase(t *testing.T) {
	h := newHarness()
	h.toPhase(t, models.PhaseAwaitingAddress)
	if reply := h.say(t, "Oi, tudo bem?"); reply != MsgWelcome {
		t.Errorf("expected welcome, got %q", reply)
	}
	if h.phase() != models.PhaseAwaitingAddress {
		t.Errorf("greeting changed phase to %s", h.phase())
	}
}

func TestDrugConfirmationRejected(t *testing.T) {
	h := newHarness()
	h.toPhase(t, models.PhaseAwaitingDrugConfirmation)
	if reply := h.say(t, "é outro"); reply != MsgResendDrug {
		t.Errorf("expected resend prompt, got %q", reply)
	}
	sess, _ := h.sessions.Get(user)
	if sess.CurrentPhase() != models.PhaseIdle || sess.DrugNameCandidate != "" {
		t.Errorf("candidate should be cleared: %+v", sess)
	}
}

func TestInvalidSelectionRepromptsInPlace(t *testing.T) {
	h := newHarness()
	h.toPhase(t, models.PhaseSelectingPharmacy)
	for _, in := range []string{"9", "0", "nenhuma delas"} {
		reply := h.say(t, in)
		if reply != msgSelectRange(2, false) {
			t.Errorf("input %q: expected re-prompt, got %q", in, reply)
		}
		sess, _ := h.sessions.Get(user)
		if sess.CurrentPhase() != models.PhaseSelectingPharmacy || len(sess.CandidatePharmacies) != 2 {
			t.Fatalf("input %q: selection state lost: %+v", in, sess)
		}
	}
	if len(h.enricher.calls) != 0 {
		t.Error("invalid selection must not enrich")
	}
}

func TestOrderConfirmationPaths(t *testing.T) {
	t.Run("negative", func(t *testing.T) {
		h := newHarness()
		h.toPhase(t, models.PhaseAwaitingOrderConfirmation)
		if reply := h.say(t, "n"); reply != MsgOrderCancelled {
			t.Errorf("expected order cancelled, got %q", reply)
		}
		sess, _ := h.sessions.Get(user)
		if sess.CurrentPhase() != models.PhaseIdle || sess.Address == "" {
			t.Errorf("negative answer should keep the address: %+v", sess)
		}
		if len(h.dispatcher.orders) != 0 {
			t.Error("no dispatch expected")
		}
	})

	t.Run("unrecognized", func(t *testing.T) {
		h := newHarness()
		h.toPhase(t, models.PhaseAwaitingOrderConfirmation)
		if reply := h.say(t, "talvez"); reply != msgConfirmOrderReprompt(false) {
			t.Errorf("expected re-prompt, got %q", reply)
		}
		if h.phase() != models.PhaseAwaitingOrderConfirmation {
			t.Errorf("phase changed to %s", h.phase())
		}
	})

	t.Run("dispatch failure", func(t *testing.T) {
		h := newHarness()
		h.dispatcher.result = dispatch.Result{Message: dispatch.MsgNotRegistered, Err: models.ErrNotRegistered}
		h.toPhase(t, models.PhaseAwaitingOrderConfirmation)
		reply := h.say(t, "confirmo")
		if !strings.Contains(reply, dispatch.MsgNotRegistered) || !strings.Contains(reply, "manualmente pelo número: (11) 3222-1234") {
			t.Errorf("unexpected failure reply %q", reply)
		}
		sess, _ := h.sessions.Get(user)
		if sess.CurrentPhase() != models.PhaseIdle || sess.PendingOrder != nil {
			t.Errorf("failed dispatch must not leave a pending order: %+v", sess)
		}
	})
}

func TestSearchFailures(t *testing.T) {
	t.Run("address not found", func(t *testing.T) {
		h := newHarness()
		h.resolver.err = fmt.Errorf("geocode: %w", models.ErrAddressNotFound)
		h.toPhase(t, models.PhaseAwaitingDrugName)
		if reply := h.say(t, "dipirona"); reply != MsgAddressNotFound {
			t.Errorf("expected address not found, got %q", reply)
		}
		if h.phase() != models.PhaseAwaitingAddress {
			t.Errorf("expected AwaitingAddress, got %s", h.phase())
		}
	})

	t.Run("service unavailable", func(t *testing.T) {
		h := newHarness()
		h.resolver.err = fmt.Errorf("nearby: %w", models.ErrServiceUnavailable)
		h.toPhase(t, models.PhaseAwaitingDrugName)
		if reply := h.say(t, "dipirona"); reply != MsgSearchUnavailable {
			t.Errorf("expected retry later, got %q", reply)
		}
		sess, _ := h.sessions.Get(user)
		if sess.CurrentPhase() != models.PhaseIdle || sess.Address == "" {
			t.Errorf("address should be kept: %+v", sess)
		}
	})

	t.Run("no results", func(t *testing.T) {
		h := newHarness()
		h.resolver.pharmacies = nil
		h.toPhase(t, models.PhaseAwaitingDrugName)
		if reply := h.say(t, "dipirona"); reply != MsgNoPharmacies {
			t.Errorf("expected no results, got %q", reply)
		}
		if h.phase() != models.PhaseIdle {
			t.Errorf("expected Idle, got %s", h.phase())
		}
	})
}

func TestIdleWithAddressSearchesDirectly(t *testing.T) {
	h := newHarness()
	h.toPhase(t, models.PhaseSelectingPharmacy)
	h.enricher.info = models.LiveInfo{}
	h.say(t, "2")
	h.resolver.calls = nil

	h.say(t, "paracetamol")
	if len(h.resolver.calls) != 1 || h.resolver.calls[0] != "Rua X, Bairro Y, Cidade Z|paracetamol" {
		t.Errorf("expected a direct search, got %v", h.resolver.calls)
	}
	if h.phase() != models.PhaseSelectingPharmacy {
		t.Errorf("expected SelectingPharmacy, got %s", h.phase())
	}
}

func TestVoiceInputs(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	voice := func(in string) string { return h.m.HandleInput(ctx, user, in, true) }

	if reply := voice("dipirona"); !strings.Contains(reply, "por áudio") {
		t.Errorf("voice prompts should ask for audio, got %q", reply)
	}
	voice("sim, é esse mesmo")
	if h.phase() != models.PhaseAwaitingAddress {
		t.Fatalf("voice affirmative not recognized, phase %s", h.phase())
	}
	voice("rua x bairro y cidade z")
	voice("dipirona")
	voice("a segunda farmácia")
	if len(h.enricher.calls) != 1 || h.enricher.calls[0].Name != "Farmácia Popular" {
		t.Errorf("number word not parsed: %+v", h.enricher.calls)
	}
}

func TestEmptyInputGetsHelp(t *testing.T) {
	h := newHarness()
	if reply := h.say(t, "   "); reply != MsgHelp {
		t.Errorf("expected help, got %q", reply)
	}
	if reply := h.say(t, "ajuda"); reply != MsgHelp {
		t.Errorf("expected help, got %q", reply)
	}
}

func TestPhasesAreMutuallyExclusive(t *testing.T) {
	h := newHarness()
	inputs := []string{"dipirona", "sim", "Rua X", "dipirona", "7", "1", "talvez", "sim", "oi", "paracetamol", "2"}
	for _, in := range inputs {
		h.say(t, in)
		sess, ok := h.sessions.Get(user)
		if !ok {
			continue
		}
		if !sess.CurrentPhase().IsValid() {
			t.Fatalf("invalid phase %q after %q", sess.Phase, in)
		}
		if sess.CurrentPhase() != models.PhaseSelectingPharmacy && sess.CandidatePharmacies != nil {
			t.Errorf("candidates outside SelectingPharmacy after %q", in)
		}
		if sess.CurrentPhase() != models.PhaseAwaitingOrderConfirmation && sess.SelectedPharmacy != nil {
			t.Errorf("selection outside AwaitingOrderConfirmation after %q", in)
		}
	}
}
