package models

import "testing"

func TestPharmacy_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		pharmacy Pharmacy
		want     bool
	}{
		{"complete", Pharmacy{Name: "Drogasil", Address: "Rua A, 10"}, true},
		{"empty name", Pharmacy{Name: "", Address: "Rua A, 10"}, false},
		{"empty address", Pharmacy{Name: "Drogasil", Address: "  "}, false},
		{"unnamed placeholder", Pharmacy{Name: UnnamedPharmacy, Address: "Rua A"}, false},
		{"placeholder case-insensitive", Pharmacy{Name: "FARMÁCIA SEM NOME", Address: "Rua A"}, false},
		{"unknown address placeholder", Pharmacy{Name: "Pague Menos", Address: "endereço não informado"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pharmacy.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderStatus(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   string
	}{
		{"nil", nil, StatusUnavailableText},
		{"plain", PlainText("Aberta agora"), "Aberta agora"},
		{"blank plain", PlainText("  "), StatusUnavailableText},
		{"structured", StructuredHours{{Day: "segunda", Hours: "08:00–22:00"}, {Day: "domingo", Hours: "Fechado"}}, "segunda: 08:00–22:00; domingo: Fechado"},
		{"structured without day", StructuredHours{{Hours: "Aberto 24 horas"}}, "Aberto 24 horas"},
		{"empty structured", StructuredHours{}, StatusUnavailableText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderStatus(tt.status); got != tt.want {
				t.Errorf("RenderStatus() = %q, want %q", got, tt.want)
			}
		})
	}

	if !IsUnavailable(Unavailable()) {
		t.Error("Unavailable() should render as unavailable")
	}
}

func TestSession_TransitionClearsSubState(t *testing.T) {
	s := NewSession("5511999999999")
	s.CandidatePharmacies = []Pharmacy{{Name: "A", Address: "B"}}
	s.TransitionTo(PhaseSelectingPharmacy)
	if len(s.CandidatePharmacies) != 1 {
		t.Fatalf("candidates should survive entering SelectingPharmacy")
	}

	s.SelectedPharmacy = &Pharmacy{Name: "A", Address: "B"}
	s.TransitionTo(PhaseAwaitingOrderConfirmation)
	if s.CandidatePharmacies != nil {
		t.Error("leaving SelectingPharmacy should drop candidates")
	}
	if s.SelectedPharmacy == nil {
		t.Fatal("selection should survive entering AwaitingOrderConfirmation")
	}

	s.TransitionTo(PhaseIdle)
	if s.SelectedPharmacy != nil {
		t.Error("leaving AwaitingOrderConfirmation should drop the selection")
	}
	if s.CurrentPhase() != PhaseIdle {
		t.Errorf("expected Idle, got %s", s.CurrentPhase())
	}
}

func TestSession_ResetKeepsUser(t *testing.T) {
	s := NewSession("5511999999999")
	s.Address = "Rua X"
	s.PendingOrder = &PendingOrder{PharmacyName: "A"}
	s.TransitionTo(PhaseAwaitingDrugName)

	s.Reset()

	if s.UserID != "5511999999999" {
		t.Errorf("Reset lost user id: %q", s.UserID)
	}
	if s.Address != "" || s.PendingOrder != nil || s.CurrentPhase() != PhaseIdle {
		t.Errorf("Reset left state behind: %+v", s)
	}
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := NewSession("u1")
	s.CandidatePharmacies = []Pharmacy{{Name: "A", Address: "B"}}
	s.PendingOrder = &PendingOrder{PharmacyName: "A"}

	c := s.Clone()
	c.CandidatePharmacies[0].Name = "changed"
	c.PendingOrder.PharmacyName = "changed"

	if s.CandidatePharmacies[0].Name != "A" || s.PendingOrder.PharmacyName != "A" {
		t.Error("Clone shares memory with the original")
	}
}

func TestPhase_IsValid(t *testing.T) {
	if !PhaseSelectingPharmacy.IsValid() {
		t.Error("SelectingPharmacy should be valid")
	}
	if Phase("BOGUS").IsValid() {
		t.Error("unknown phase should be invalid")
	}
}
