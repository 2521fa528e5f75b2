package util

import (
	"sort"
	"strings"
	"testing"
	"time"
)

func TestRandomHex(t *testing.T) {
	for _, n := range []int{-1, 0, 1, 16} {
		got := RandomHex(n)
		want := n
		if want < 0 {
			want = 0
		}
		if len(got) != want {
			t.Errorf("RandomHex(%d) length = %d, want %d", n, len(got), want)
		}
		if strings.Trim(got, "0123456789abcdef") != "" {
			t.Errorf("RandomHex(%d) = %q is not lowercase hex", n, got)
		}
	}
}

func TestNewOrderID_Format(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id := NewOrderID(now)

	if !strings.HasPrefix(id, "o_") {
		t.Fatalf("missing prefix: %s", id)
	}
	parts := strings.Split(strings.TrimPrefix(id, "o_"), "_")
	if len(parts) != 2 || len(parts[0]) != orderIDStampWidth || len(parts[1]) != orderIDSuffixLen {
		t.Fatalf("unexpected layout: %s", id)
	}

	got, ok := OrderIDTime(id)
	if !ok || !got.Equal(now) {
		t.Errorf("OrderIDTime(%s) = %v, %v; want %v", id, got, ok, now)
	}
}

func TestNewOrderID_SortsByTime(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 50; i++ {
		ids = append(ids, NewOrderID(base.Add(time.Duration(i)*time.Second)))
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("ids are not in creation order: %v", ids)
	}
}

func TestGenerateOrderID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := GenerateOrderID()
		if seen[id] {
			t.Fatalf("duplicate order id %s", id)
		}
		seen[id] = true
	}
}

func TestOrderIDTime_Invalid(t *testing.T) {
	for _, id := range []string{"", "x_abc_def", "o_nounderscore", "o_!!_abc"} {
		if _, ok := OrderIDTime(id); ok {
			t.Errorf("OrderIDTime(%q) should fail", id)
		}
	}
}
