package services

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/Sabyr2003/whatsapp-bot-store/internal/models"
)

// MatchKind ranks how a product was recognized in user text.
// Exact beats partial containment beats edit-distance matches.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchPartial
	MatchFuzzy
)

const fuzzyMaxDistance = 5

// Matcher recognizes catalog products in free user text. All product
// recognition goes through here so entry points cannot diverge.
type Matcher struct {
	maxDistance int
}

func NewMatcher() *Matcher {
	return &Matcher{maxDistance: fuzzyMaxDistance}
}

// Match returns the best product match for the message, or ok=false.
func (m *Matcher) Match(message string, products []models.Product) (models.Product, MatchKind, bool) {
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" || len(products) == 0 {
		return models.Product{}, 0, false
	}

	// 1. Exact: the message contains a full product name.
	for _, p := range products {
		if strings.Contains(text, strings.ToLower(p.Name)) {
			return p, MatchExact, true
		}
	}

	// 2. Partial containment over name/category/description, either
	// direction. Only an unambiguous single hit counts.
	var partial []models.Product
	for _, p := range products {
		for _, term := range []string{p.Name, p.Category, p.Description} {
			t := strings.ToLower(term)
			if t == "" {
				continue
			}
			if strings.Contains(t, text) || strings.Contains(text, t) {
				partial = append(partial, p)
				break
			}
		}
	}
	if len(partial) == 1 {
		return partial[0], MatchPartial, true
	}

	// 3. Fuzzy: edit distance against the product name, or a message
	// word contained in the name. Closest distance wins.
	type scored struct {
		product  models.Product
		distance int
	}
	words := strings.Fields(text)
	var fuzzy []scored
	for _, p := range products {
		name := strings.ToLower(p.Name)
		distance := levenshtein.ComputeDistance(text, name)
		wordHit := false
		for _, w := range words {
			if strings.Contains(name, w) {
				wordHit = true
				break
			}
		}
		if distance <= m.maxDistance || wordHit {
			fuzzy = append(fuzzy, scored{product: p, distance: distance})
		}
	}
	if len(fuzzy) > 0 {
		sort.SliceStable(fuzzy, func(i, j int) bool { return fuzzy[i].distance < fuzzy[j].distance })
		return fuzzy[0].product, MatchFuzzy, true
	}

	return models.Product{}, 0, false
}
