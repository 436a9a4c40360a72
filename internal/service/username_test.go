package service

import (
	"fmt"
	"testing"
)

func TestBaseUsername(t *testing.T) {
	tests := []struct {
		first, last, birthday string
		expected              string
	}{
		{"Jean", "Dupont", "1990-05-01", "jd1990"},
		{"Jean  Luc", "de la Tour", "", "jldlt"},
		{"Émile", "Zola", "1840-04-02", "éz1840"},
		{"Ada", "Lovelace", "not-a-date", "al"},
	}

	for _, tt := range tests {
		if got := baseUsername(tt.first, tt.last, tt.birthday); got != tt.expected {
			t.Errorf("baseUsername(%q, %q, %q): expected %s, got %s", tt.first, tt.last, tt.birthday, tt.expected, got)
		}
	}
}

func TestUniqueUsername(t *testing.T) {
	taken := map[string]bool{}
	if name, _ := uniqueUsername("jd", taken); name != "jd" {
		t.Errorf("Expected jd, got %s", name)
	}

	taken["jd"] = true
	taken["jda"] = true
	if name, _ := uniqueUsername("jd", taken); name != "jdb" {
		t.Errorf("Expected jdb, got %s", name)
	}

	for c := 'a'; c <= 'z'; c++ {
		taken["jd"+string(c)] = true
	}
	taken["jda1"] = true
	if name, _ := uniqueUsername("jd", taken); name != "jda2" {
		t.Errorf("Expected jda2, got %s", name)
	}

	for c := 'a'; c <= 'z'; c++ {
		for i := 1; i <= maxUsernameSuffix; i++ {
			taken[fmt.Sprintf("jd%c%d", c, i)] = true
		}
	}
	if _, ok := uniqueUsername("jd", taken); ok {
		t.Error("Expected exhaustion to be reported")
	}
}
