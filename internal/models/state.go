// Package models defines the per-user conversation state for Avotech.
package models

import "time"

// Phase is the position of a session in the dialogue state machine.
type Phase string

const (
	PhaseIdle                      Phase = "IDLE"
	PhaseAwaitingDrugConfirmation  Phase = "AWAITING_DRUG_CONFIRMATION"
	PhaseAwaitingAddress           Phase = "AWAITING_ADDRESS"
	PhaseAwaitingDrugName          Phase = "AWAITING_DRUG_NAME"
	PhaseSelectingPharmacy         Phase = "SELECTING_PHARMACY"
	PhaseAwaitingOrderConfirmation Phase = "AWAITING_ORDER_CONFIRMATION"
)

// IsValid checks if the phase is one of the known phases.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseIdle, PhaseAwaitingDrugConfirmation, PhaseAwaitingAddress,
		PhaseAwaitingDrugName, PhaseSelectingPharmacy, PhaseAwaitingOrderConfirmation:
		return true
	default:
		return false
	}
}

// Session is the in-memory conversation state of one user.
// Exactly one Phase is active at a time; a zero Session is Idle.
type Session struct {
	UserID              string        `json:"user_id"`
	Phase               Phase         `json:"phase"`
	DrugNameCandidate   string        `json:"drug_name_candidate,omitempty"`
	ConfirmedDrugName   string        `json:"confirmed_drug_name,omitempty"`
	Address             string        `json:"address,omitempty"`
	CandidatePharmacies []Pharmacy    `json:"candidate_pharmacies,omitempty"`
	SelectedPharmacy    *Pharmacy     `json:"selected_pharmacy,omitempty"`
	PendingOrder        *PendingOrder `json:"pending_order,omitempty"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// NewSession creates an idle session for the given user.
func NewSession(userID string) *Session {
	return &Session{UserID: userID, Phase: PhaseIdle, UpdatedAt: time.Now()}
}

// CurrentPhase returns the active phase, treating an unset phase as Idle.
func (s *Session) CurrentPhase() Phase {
	if s.Phase == "" {
		return PhaseIdle
	}
	return s.Phase
}

// TransitionTo replaces the active phase. Leaving SelectingPharmacy drops the
// candidate list, and leaving AwaitingOrderConfirmation drops the selection,
// so no stale sub-state survives the transition.
func (s *Session) TransitionTo(p Phase) {
	prev := s.CurrentPhase()
	if prev == PhaseSelectingPharmacy && p != PhaseSelectingPharmacy {
		s.CandidatePharmacies = nil
	}
	if prev == PhaseAwaitingOrderConfirmation && p != PhaseAwaitingOrderConfirmation {
		s.SelectedPharmacy = nil
	}
	s.Phase = p
	s.UpdatedAt = time.Now()
}

// Reset clears the whole session, including any pending order.
func (s *Session) Reset() {
	*s = Session{UserID: s.UserID, Phase: PhaseIdle, UpdatedAt: time.Now()}
}

// Clone returns a deep copy so stored sessions are never shared between callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.CandidatePharmacies != nil {
		c.CandidatePharmacies = append([]Pharmacy(nil), s.CandidatePharmacies...)
	}
	if s.SelectedPharmacy != nil {
		p := *s.SelectedPharmacy
		c.SelectedPharmacy = &p
	}
	if s.PendingOrder != nil {
		o := *s.PendingOrder
		c.PendingOrder = &o
	}
	return &c
}
