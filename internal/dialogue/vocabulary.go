package dialogue

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Vocabularies are stored folded (lower case, no diacritics).
var (
	cancelWords = wordSet("cancelar", "cancela", "cancel", "parar", "pare", "stop", "sair", "nao", "voltar", "back")
	// "no" is also the Portuguese "in the" ("no centro"), so it only cancels
	// as a message of its own.
	cancelAlone = wordSet("no")
	helpWords   = wordSet("ajuda", "help", "menu")

	affirmativeWords = wordSet("sim", "s", "confirmar", "confirmo", "yes")
	negativeWords    = wordSet("nao", "n", "no")

	greetingPhrases = [][]string{
		{"oi"}, {"oie"}, {"ola"}, {"hello"}, {"hi"},
		{"bom", "dia"}, {"boa", "tarde"}, {"boa", "noite"},
	}

	numberWords = map[string]int{
		"um": 1, "uma": 1, "primeiro": 1, "primeira": 1,
		"dois": 2, "duas": 2, "segundo": 2, "segunda": 2,
		"tres": 3, "terceiro": 3, "terceira": 3,
		"quatro": 4, "quarto": 4, "quarta": 4,
		"cinco": 5, "quinto": 5, "quinta": 5,
	}
)

// maxGreetingExtra is how many trailing words ("tudo bem") a greeting may carry.
const maxGreetingExtra = 2

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// fold lower-cases s and strips diacritics, so "Não" and "nao" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// tokens splits folded input into words and digit runs.
func tokens(s string) []string {
	return strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func anyToken(toks []string, set map[string]bool) bool {
	for _, t := range toks {
		if set[t] {
			return true
		}
	}
	return false
}

func isCancel(input string) bool {
	toks := tokens(input)
	if len(toks) == 1 && cancelAlone[toks[0]] {
		return true
	}
	return anyToken(toks, cancelWords)
}

func isHelp(input string) bool {
	toks := tokens(input)
	return len(toks) == 1 && helpWords[toks[0]]
}

// isGreeting matches a greeting phrase at the start of a short message.
func isGreeting(input string) bool {
	toks := tokens(input)
	for _, phrase := range greetingPhrases {
		if len(toks) < len(phrase) || len(toks) > len(phrase)+maxGreetingExtra {
			continue
		}
		match := true
		for i, w := range phrase {
			if toks[i] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// isAffirmative matches whole words for typed input and substrings for
// transcripts, which often wrap the answer in a sentence.
func isAffirmative(input string, isVoice bool) bool {
	if isVoice {
		f := fold(input)
		return strings.Contains(f, "sim") || strings.Contains(f, "confirm")
	}
	return anyToken(tokens(input), affirmativeWords)
}

func isNegative(input string, isVoice bool) bool {
	if isVoice {
		f := fold(input)
		return strings.Contains(f, "nao") || strings.Contains(f, "cancel")
	}
	return anyToken(tokens(input), negativeWords)
}

// parseSelection reads a 1-based choice: the whole input as a number, the
// first digit run, or a Portuguese number word.
func parseSelection(input string) (int, bool) {
	trimmed := strings.TrimSpace(input)
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n, true
	}
	toks := tokens(trimmed)
	for _, t := range toks {
		if n, err := strconv.Atoi(t); err == nil {
			return n, true
		}
	}
	for _, t := range toks {
		if n, ok := numberWords[t]; ok {
			return n, true
		}
	}
	return 0, false
}
