package models

import (
	"fmt"
	"strings"
)

// StatusUnavailableText is rendered whenever no opening information is known.
const StatusUnavailableText = "Status não disponível"

// Status is the opening state of a business as reported by an enrichment
// source. It is either PlainText or StructuredHours.
type Status interface {
	isStatus()
}

// PlainText is a free-form status such as "Aberta agora" or "Fecha às 22:00".
type PlainText string

func (PlainText) isStatus() {}

// DayHours is the opening window of a single day.
type DayHours struct {
	Day   string `json:"day"`
	Hours string `json:"hours"`
}

// StructuredHours is a weekly schedule.
type StructuredHours []DayHours

func (StructuredHours) isStatus() {}

// Unavailable returns the status used when every source failed.
func Unavailable() Status {
	return PlainText(StatusUnavailableText)
}

// RenderStatus canonicalizes a status into one displayable string.
func RenderStatus(s Status) string {
	switch v := s.(type) {
	case PlainText:
		text := strings.TrimSpace(string(v))
		if text == "" {
			return StatusUnavailableText
		}
		return text
	case StructuredHours:
		if len(v) == 0 {
			return StatusUnavailableText
		}
		parts := make([]string, 0, len(v))
		for _, d := range v {
			if d.Day == "" {
				parts = append(parts, d.Hours)
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %s", d.Day, d.Hours))
		}
		return strings.Join(parts, "; ")
	default:
		return StatusUnavailableText
	}
}

// IsUnavailable reports whether the status carries no information.
func IsUnavailable(s Status) bool {
	return RenderStatus(s) == StatusUnavailableText
}
