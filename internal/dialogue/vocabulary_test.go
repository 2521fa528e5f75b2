package dialogue

import "testing"

func TestIsCancel(t *testing.T) {
	tests := map[string]bool{
		"cancelar":              true,
		"CANCELA":               true,
		"Não":                   true,
		"nao quero mais":        true,
		"quero voltar":          true,
		"stop":                  true,
		"dipirona":              false,
		"Rua São Paulo, 100":    false,
		"cancelamento pendente": false,
		"No":                    true,
		"Rua Augusta no centro": false,
	}
	for in, want := range tests {
		if got := isCancel(in); got != want {
			t.Errorf("isCancel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsGreeting(t *testing.T) {
	tests := map[string]bool{
		"oi":                     true,
		"Olá!":                   true,
		"bom dia":                true,
		"Boa noite, tudo bem?":   true,
		"oi preciso de dipirona": false,
		"dipirona":               false,
		"boa":                    false,
	}
	for in, want := range tests {
		if got := isGreeting(in); got != want {
			t.Errorf("isGreeting(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestAffirmativeNegative(t *testing.T) {
	if !isAffirmative("Sim", false) || !isAffirmative("s", false) || !isAffirmative("confirmar", false) {
		t.Error("text affirmatives not recognized")
	}
	if isAffirmative("simples", false) {
		t.Error("text matching must be whole-word")
	}
	if !isAffirmative("simmm pode mandar", true) || !isAffirmative("eu confirmo", true) {
		t.Error("voice affirmatives not recognized")
	}
	if !isNegative("n", false) || !isNegative("no", false) {
		t.Error("text negatives not recognized")
	}
	if isNegative("talvez", false) || isNegative("talvez", true) {
		t.Error("unexpected negative")
	}
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1", 1, true},
		{" 3 ", 3, true},
		{"quero a 2", 2, true},
		{"número cinco", 5, true},
		{"a primeira", 1, true},
		{"Três", 3, true},
		{"nenhuma", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseSelection(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseSelection(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
