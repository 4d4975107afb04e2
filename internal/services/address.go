package services

import (
	"regexp"
	"strings"
)

// maxAddressVariants bounds the number of geocoding attempts per address.
const maxAddressVariants = 5

var (
	leadingPrepositionRe = regexp.MustCompile(`^(до|на|в|по|к)\s+`)
	whitespaceRe         = regexp.MustCompile(`\s+`)
	houseNumberRe        = regexp.MustCompile(`([а-яёa-z-]+)\s*(\d{1,4})$`)
)

// Inflected and abbreviated street-type tokens mapped to canonical forms.
// RE2 word boundaries do not cover Cyrillic, so matching is token-wise.
var streetSynonyms = map[string]string{
	"проспекта": "проспект",
	"проспекту": "проспект",
	"просп":     "проспект",
	"просп.":    "проспект",
	"улицы":     "улица",
	"улице":     "улица",
	"ул":        "улица",
	"ул.":       "улица",
}

// AddressNormalizer turns free-text address input into a bounded,
// ordered set of candidate queries for geocoding. Callers try the
// candidates in order and stop at the first success.
type AddressNormalizer struct {
	city      string
	cityLatin string
}

func NewAddressNormalizer(city, cityLatin string) *AddressNormalizer {
	return &AddressNormalizer{
		city:      strings.ToLower(city),
		cityLatin: strings.ToLower(cityLatin),
	}
}

// Variants returns up to maxAddressVariants deduplicated candidate
// strings, most likely first. Every candidate contains the city token.
func (n *AddressNormalizer) Variants(address string) []string {
	input := strings.ToLower(strings.TrimSpace(address))
	input = leadingPrepositionRe.ReplaceAllString(input, "")
	input = whitespaceRe.ReplaceAllString(input, " ")
	input = n.canonicalizeStreetTypes(input)

	// Degenerate input still gets the city prefix; geocoding will fail
	// naturally on it.
	if input == "" {
		return []string{n.city + ","}
	}

	if !strings.Contains(input, n.city) {
		input = n.city + ", " + input
	}

	variants := make([]string, 0, maxAddressVariants)
	seen := make(map[string]bool)
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			variants = append(variants, v)
		}
	}

	add(input)

	// Latin-script city fallback: Nominatim sometimes fails on the
	// Cyrillic city name.
	add(strings.Replace(input, n.city, n.cityLatin, 1))

	// A trailing "<name> <number>" usually means the street-type word is
	// missing or wrong; reconstruct the likely full forms.
	if m := houseNumberRe.FindStringSubmatch(input); m != nil {
		name, number := m[1], m[2]
		add(n.city + ", проспект " + name + " " + number)
		add(n.city + ", улица " + name + " " + number)
		add(n.city + ", " + name + " " + number)
	}

	if len(variants) > maxAddressVariants {
		variants = variants[:maxAddressVariants]
	}
	return variants
}

func (n *AddressNormalizer) canonicalizeStreetTypes(input string) string {
	tokens := strings.Split(input, " ")
	for i, tok := range tokens {
		bare := strings.Trim(tok, ",")
		canon, ok := streetSynonyms[bare]
		if !ok {
			continue
		}
		if strings.HasSuffix(tok, ",") {
			canon += ","
		}
		tokens[i] = canon
	}
	return strings.Join(tokens, " ")
}
