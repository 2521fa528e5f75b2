// Package models defines the core data structures for Avotech.
//
// It includes pharmacy candidates, live business information, pending orders,
// inbound channel messages and the audit records shared across modules.
package models

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Placeholders used when a nearby-search record lacks a name or an address.
// Candidates carrying either placeholder are never offered to the user.
const (
	UnnamedPharmacy = "Farmácia sem nome"
	UnknownAddress  = "Endereço não informado"
)

// MaxCandidates is the maximum number of pharmacies offered after a search.
const MaxCandidates = 5

// Error variables for the failure taxonomy. Adapters wrap these with %w so
// callers can match with errors.Is.
var (
	ErrAddressNotFound    = errors.New("address not found")
	ErrUnintelligible     = errors.New("audio could not be understood")
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	ErrNotRegistered      = errors.New("phone number not registered on the messaging channel")
	ErrTransportFailure   = errors.New("messaging transport failure")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Pharmacy is a candidate returned by a nearby search, optionally enriched
// with live contact data.
type Pharmacy struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone,omitempty"`
	Status  Status `json:"-"`
}

// IsValid reports whether the pharmacy has a usable name and address.
func (p Pharmacy) IsValid() bool {
	name := strings.TrimSpace(p.Name)
	addr := strings.TrimSpace(p.Address)
	if name == "" || addr == "" {
		return false
	}
	if strings.EqualFold(name, UnnamedPharmacy) || strings.EqualFold(addr, UnknownAddress) {
		return false
	}
	return true
}

// LiveInfo is the best-effort contact and opening data for a pharmacy.
// An empty Phone means no phone was found.
type LiveInfo struct {
	Phone  string `json:"phone,omitempty"`
	Status Status `json:"-"`
}

// HasPhone reports whether a phone number was found.
func (i LiveInfo) HasPhone() bool {
	return strings.TrimSpace(i.Phone) != ""
}

// PendingOrder is an order request sent to a pharmacy whose reply is still awaited.
type PendingOrder struct {
	PharmacyName  string    `json:"pharmacy_name"`
	PharmacyPhone string    `json:"pharmacy_phone"` // normalized channel address
	DrugName      string    `json:"drug_name"`
	SentAt        time.Time `json:"sent_at"`
}

// MediaKind classifies media attached to an inbound message.
type MediaKind string

const (
	// MediaKindVoice is a push-to-talk voice note.
	MediaKindVoice MediaKind = "voice"
	// MediaKindAudio is a regular audio attachment.
	MediaKindAudio MediaKind = "audio"
	// MediaKindOther covers images, documents and anything else.
	MediaKindOther MediaKind = "other"
)

// Media describes an attachment and knows how to fetch its bytes.
type Media struct {
	Kind     MediaKind
	MimeType string
	Download func(ctx context.Context) ([]byte, error)
}

// IsAudio reports whether the media can be sent to transcription.
func (m *Media) IsAudio() bool {
	return m != nil && (m.Kind == MediaKindVoice || m.Kind == MediaKindAudio)
}

// InboundMessage is a single event observed on the messaging channel.
type InboundMessage struct {
	From    string // canonical sender address (digits only)
	Body    string
	Time    int64
	FromMe  bool
	IsGroup bool
	Media   *Media
}

// HasMedia reports whether the message carries an attachment.
func (m InboundMessage) HasMedia() bool {
	return m.Media != nil
}

// MessageStatus represents the delivery status of a message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt records the delivery status of an outbound message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an inbound text seen on the channel.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// OrderRecord is the audit entry written for every dispatch attempt.
type OrderRecord struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	PharmacyName  string `json:"pharmacy_name"`
	PharmacyPhone string `json:"pharmacy_phone"`
	DrugName      string `json:"drug_name"`
	Address       string `json:"address"`
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Time          int64  `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with the given message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}
