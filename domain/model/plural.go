package model

import "strings"

// Pluralize returns the plural form of a word using simple English rules.
// Table names and accessor fallbacks are derived through it.
func Pluralize(word string) string {
	if word == "" {
		return ""
	}

	if plural, ok := irregularPlurals[strings.ToLower(word)]; ok {
		if word[0] >= 'A' && word[0] <= 'Z' {
			return strings.ToUpper(plural[:1]) + plural[1:]
		}
		return plural
	}

	lower := strings.ToLower(word)

	// Sibilant endings take 'es'.
	for _, suffix := range []string{"s", "x", "z", "ch", "sh"} {
		if strings.HasSuffix(lower, suffix) {
			return word + "es"
		}
	}

	// Consonant + 'y' becomes 'ies'.
	if strings.HasSuffix(lower, "y") && len(word) > 1 && !isVowel(rune(lower[len(lower)-2])) {
		return word[:len(word)-1] + "ies"
	}

	if strings.HasSuffix(lower, "fe") {
		return word[:len(word)-2] + "ves"
	}
	if strings.HasSuffix(lower, "f") {
		return word[:len(word)-1] + "ves"
	}

	return word + "s"
}

// Singularize is the inverse of Pluralize.
func Singularize(word string) string {
	if word == "" {
		return ""
	}

	lower := strings.ToLower(word)

	for singular, plural := range irregularPlurals {
		if plural == lower {
			if word[0] >= 'A' && word[0] <= 'Z' {
				return strings.ToUpper(singular[:1]) + singular[1:]
			}
			return singular
		}
	}

	if strings.HasSuffix(lower, "ies") {
		return word[:len(word)-3] + "y"
	}
	if strings.HasSuffix(lower, "ves") {
		return word[:len(word)-3] + "f"
	}
	for _, suffix := range []string{"ses", "xes", "zes", "ches", "shes"} {
		if strings.HasSuffix(lower, suffix) {
			return word[:len(word)-2]
		}
	}
	if strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss") {
		return word[:len(word)-1]
	}

	return word
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	default:
		return false
	}
}

var irregularPlurals = map[string]string{
	"person": "people",
	"child":  "children",
	"index":  "indices",
	"matrix": "matrices",
	"status": "statuses",
	"schema": "schemas",
	"datum":  "data",
	"medium": "media",
}

// AccessorCandidates returns the ordered accessor names tried when resolving
// the data-access accessor for a definition: the declared override, the
// lowercase entity name, the derived table name, and plural/singular guesses.
// Exhaustion leaves the entity registered but inert.
func (d Definition) AccessorCandidates() []string {
	lower := strings.ToLower(d.Name)

	candidates := make([]string, 0, 5)
	add := func(name string) {
		if name == "" {
			return
		}
		for _, existing := range candidates {
			if existing == name {
				return
			}
		}
		candidates = append(candidates, name)
	}

	add(strings.ToLower(d.Accessor))
	add(lower)
	add(d.TableName)
	add(Pluralize(lower))
	add(Singularize(lower))

	return candidates
}
