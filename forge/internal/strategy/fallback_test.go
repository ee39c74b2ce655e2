package strategy

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestExtractFallback_FirstMatchingPatternWins(t *testing.T) {
	sidebar := &fakeElement{sub: map[string][]*fakeElement{"a": {
		link("Electronics", "/c/electronics"),
		link("Books", "/c/books"),
	}}}
	nav := &fakeElement{sub: map[string][]*fakeElement{"a": {
		link("Toys", "/c/toys"),
		link("Sports", "/c/sports"),
		link("Grocery", "/c/grocery"),
	}}}
	d := &fakeDriver{matches: map[string][]*fakeElement{
		".sidebar": {sidebar},
		"nav":      {nav},
	}}

	cats, err := ExtractFallback(context.Background(), newPass(d))
	if err != nil {
		t.Fatalf("ExtractFallback: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("got %d categories, want 2 from the first matching pattern", len(cats))
	}
	for _, c := range cats {
		if strings.HasPrefix(c.URL, "/c/toys") {
			t.Errorf("later pattern leaked into the result: %+v", c)
		}
	}
}

func TestExtractFallback_SkipsServiceLinks(t *testing.T) {
	aside := &fakeElement{sub: map[string][]*fakeElement{"a": {
		link("Electronics", "/c/electronics"),
		link("Sign In Portal", "/customer/LOGIN"),
		link("Your Basket", "/cart/view"),
		link("Help Center", "/help-center"),
		link("Books", "/c/books"),
	}}}
	d := &fakeDriver{matches: map[string][]*fakeElement{"aside": {aside}}}

	cats, err := ExtractFallback(context.Background(), newPass(d))
	if err != nil {
		t.Fatalf("ExtractFallback: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("got %d categories, want 2 after service links are dropped", len(cats))
	}
	if cats[0].Name != "Electronics" || cats[1].Name != "Books" {
		t.Errorf("unexpected survivors: %+v", cats)
	}
}

func TestExtractFallback_NameLengthBounds(t *testing.T) {
	aside := &fakeElement{sub: map[string][]*fakeElement{"a": {
		link("OK", "/c/ok"),
		link("Toys", "/c/toys"),
		link(strings.Repeat("x", 100), "/c/long"),
		link(strings.Repeat("y", 99), "/c/just-under"),
	}}}
	d := &fakeDriver{matches: map[string][]*fakeElement{"aside": {aside}}}

	cats, err := ExtractFallback(context.Background(), newPass(d))
	if err != nil {
		t.Fatalf("ExtractFallback: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("got %d categories, want 2 inside the name bounds", len(cats))
	}
	if cats[0].Name != "Toys" {
		t.Errorf("two-character name survived: %+v", cats[0])
	}
}

func TestExtractFallback_DedupAcrossContainers(t *testing.T) {
	first := &fakeElement{sub: map[string][]*fakeElement{"a": {
		link("Electronics", "/c/electronics"),
	}}}
	second := &fakeElement{sub: map[string][]*fakeElement{"a": {
		link("Electronics Again", "/c/electronics"),
		link("Books", "/c/books"),
	}}}
	d := &fakeDriver{matches: map[string][]*fakeElement{"aside": {first, second}}}

	cats, err := ExtractFallback(context.Background(), newPass(d))
	if err != nil {
		t.Fatalf("ExtractFallback: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("got %d categories, want 2 after href dedup", len(cats))
	}
	if cats[0].Name != "Electronics" {
		t.Errorf("first occurrence should win, got %+v", cats[0])
	}
}

func TestExtractFallback_ContainerCap(t *testing.T) {
	var containers []*fakeElement
	for i := 0; i < 5; i++ {
		containers = append(containers, &fakeElement{sub: map[string][]*fakeElement{"a": {
			link(fmt.Sprintf("Container %d", i), fmt.Sprintf("/c/%d", i)),
		}}})
	}
	d := &fakeDriver{matches: map[string][]*fakeElement{"aside": containers}}

	cats, err := ExtractFallback(context.Background(), newPass(d))
	if err != nil {
		t.Fatalf("ExtractFallback: %v", err)
	}
	if len(cats) != maxFallbackContainers {
		t.Fatalf("got %d categories, want %d (one per scanned container)", len(cats), maxFallbackContainers)
	}
}

func TestExtractFallback_LinkCap(t *testing.T) {
	var links []*fakeElement
	for i := 0; i < 60; i++ {
		links = append(links, link(fmt.Sprintf("Category %d", i), fmt.Sprintf("/c/%d", i)))
	}
	aside := &fakeElement{sub: map[string][]*fakeElement{"a": links}}
	d := &fakeDriver{matches: map[string][]*fakeElement{"aside": {aside}}}

	cats, err := ExtractFallback(context.Background(), newPass(d))
	if err != nil {
		t.Fatalf("ExtractFallback: %v", err)
	}
	if len(cats) != maxFallbackLinks {
		t.Fatalf("got %d categories, want %d", len(cats), maxFallbackLinks)
	}
}

func TestExtractFallback_NothingMatches(t *testing.T) {
	d := &fakeDriver{matches: map[string][]*fakeElement{}}
	cats, err := ExtractFallback(context.Background(), newPass(d))
	if err != nil {
		t.Fatalf("ExtractFallback: %v", err)
	}
	if len(cats) != 0 {
		t.Fatalf("got %d categories from an empty page, want 0", len(cats))
	}
}
