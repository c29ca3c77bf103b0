package catalog_test

import (
	"sync"
	"testing"

	"shelfmark/internal/catalog"
)

func TestNormalizeNameConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if got := catalog.NormalizeName("Dune: Part Two"); got != "dune part two" {
					t.Errorf("NormalizeName = %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestNormalizeNameCollapsesVariants(t *testing.T) {
	variants := []string{
		"The Hobbit",
		" the hobbit ",
		"THE HOBBIT",
		"The  Hobbit",
		"The Hobbit!",
	}
	want := catalog.NormalizeName(variants[0])
	if want == "" {
		t.Fatal("expected non-empty normalized name")
	}
	for _, variant := range variants[1:] {
		if got := catalog.NormalizeName(variant); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", variant, got, want)
		}
	}
}

func TestNormalizeNameCases(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Dune: Part Two", "dune part two"},
		{"2001: A Space Odyssey", "2001 a space odyssey"},
		{"  Spaced   Out  ", "spaced out"},
		{"don't look up", "don t look up"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := catalog.NormalizeName(tc.in); got != tc.want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
