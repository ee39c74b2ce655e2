package analyzer

import (
	"strings"
	"testing"
)

func TestBuildPrompt_Sections(t *testing.T) {
	out := BuildPrompt("https://shop.example", "<nav class='m'>x</nav>", "- [Dairy](https://shop.example/c/dairy)")
	for _, want := range []string{
		"STRICT JSON",
		"nav_models",
		"best_index",
		"URL: https://shop.example",
		"PAGE_DIGEST:",
		"[Dairy]",
		"truncated=false",
		"<nav class='m'>x</nav>",
		"END_OF_HTML",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPrompt_OmitsEmptyDigest(t *testing.T) {
	out := BuildPrompt("https://shop.example", "<nav>x</nav>", "")
	if strings.Contains(out, "PAGE_DIGEST") {
		t.Fatal("empty digest should be left out")
	}
}

func TestBuildPrompt_TruncatesLongPayload(t *testing.T) {
	payload := strings.Repeat("x", promptHeadBytes) + "TAILMARKER"
	out := BuildPrompt("https://shop.example", payload, "")
	if !strings.Contains(out, "truncated=true") {
		t.Fatal("truncation flag should be set")
	}
	if strings.Contains(out, "TAILMARKER") {
		t.Fatal("payload tail should be cut")
	}
}
