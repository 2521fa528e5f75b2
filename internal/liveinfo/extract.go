package liveinfo

import (
	"regexp"
	"strings"

	"github.com/paulosouza-ec/Avotech/internal/models"
)

// DefaultPhonePattern matches Brazilian numbers such as "(11) 98765-4321".
const DefaultPhonePattern = `\(?\d{2}\)?\s?\d{4,5}-\d{4}`

var statusKeywords = []string{"Aberto", "Aberta", "Fechado", "Fechada"}

// ExtractLiveInfo picks the first line mentioning an open/closed keyword as the
// status and the first phone-pattern match as the phone from free page text.
func ExtractLiveInfo(text string, phoneRe *regexp.Regexp) models.LiveInfo {
	info := models.LiveInfo{Status: models.Unavailable()}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if containsAny(line, statusKeywords) {
			info.Status = models.PlainText(line)
			break
		}
	}
	if phoneRe != nil {
		info.Phone = phoneRe.FindString(text)
	}
	return info
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
