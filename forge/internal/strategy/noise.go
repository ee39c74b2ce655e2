package strategy

import (
	"strings"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/category"
)

// Phrases that mark a link as navigation chrome rather than a product
// category. Matched as substrings of the lowercased name.
var noiseKeywords = []string{
	"sign in", "login", "register", "cart", "basket", "wishlist",
	"account", "checkout", "search", "help", "contact", "about",
	"skip to", "menu", "close", "open", "toggle", "show", "hide",
	"store locator", "stores", "find a store", "rewards", "loyalty",
	"track order", "my orders", "my account", "sign up", "subscribe",
}

// Single words that are near-certainly chrome when they stand alone.
// Matched exactly, so "Home & Garden" stays while "Home" goes.
var genericWords = map[string]bool{
	"menu": true, "home": true, "shop": true,
	"browse": true, "stores": true, "rewards": true,
}

const noiseSampleSize = 10

// LooksLikeNoise reports whether the candidate list is dominated by
// navigation chrome: more than half of the first ten names match the
// noise vocabulary. A selector that grabbed the whole header produces
// exactly this shape.
func LooksLikeNoise(cats []*category.Category) bool {
	sample := cats
	if len(sample) > noiseSampleSize {
		sample = sample[:noiseSampleSize]
	}
	if len(sample) == 0 {
		return false
	}
	noisy := 0
	for _, c := range sample {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if matchesNoise(name) {
			noisy++
		}
	}
	return float64(noisy) > float64(len(sample))*0.5
}

func matchesNoise(name string) bool {
	for _, kw := range noiseKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return genericWords[name]
}
