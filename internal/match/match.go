// Package match ranks roster customers against an extracted calendar
// event. It combines two passes: an approximate name comparison, and
// exact-signal boosts for phone, email and address. Name similarity
// alone is noisy (common names, nicknames) while exact signals are
// high-confidence but rare, so candidates hit by both passes keep the
// maximum of the two scores.
package match

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"calimport/internal/extract"
	"calimport/internal/models"

	"github.com/xrash/smetrics"
)

// Config carries the matcher tunables. The defaults are a starting
// point, not tuned against labelled data.
type Config struct {
	// FuzzyThreshold is the maximum normalized edit distance the name
	// pass accepts, on a 0-1 scale. 0.3 keeps names that are at least
	// roughly 70% similar.
	FuzzyThreshold float64
	// PhoneBoost is added when event and customer phone digits are equal.
	PhoneBoost float64
	// EmailBoost is added when the emails are equal, case-insensitively.
	EmailBoost float64
	// AddressBoost is added when event location and customer address
	// contain one another.
	AddressBoost float64
	// MaxCandidates caps the ranked result list.
	MaxCandidates int
	// CountryCode canonicalizes roster phone numbers before the digit
	// comparison, so a stored domestic "030..." still matches an
	// extracted "+4930...".
	CountryCode string
}

// DefaultConfig returns the stock matcher configuration.
func DefaultConfig() Config {
	return Config{
		FuzzyThreshold: 0.3,
		PhoneBoost:     0.9,
		EmailBoost:     0.9,
		AddressBoost:   0.5,
		MaxCandidates:  5,
		CountryCode:    "+49",
	}
}

// Find returns the ranked, deduplicated candidates for one event. The
// result is freshly allocated per call and safe to hold onto; for a
// given event no two entries reference the same customer and entries
// are sorted by score descending, capped at MaxCandidates. Scores are
// always in (0, 1].
func Find(cfg Config, ev models.CalendarEvent, roster []models.CustomerRecord) []models.CustomerMatch {
	var matches []models.CustomerMatch

	// Fuzzy name pass.
	if ev.CustomerName != "" && ev.CustomerName != extract.UnknownName {
		for _, customer := range roster {
			d := nameDistance(ev.CustomerName, customer.Name)
			if d > cfg.FuzzyThreshold {
				continue
			}
			score := 1 - d
			matches = append(matches, models.CustomerMatch{
				Customer:     customer,
				Score:        score,
				MatchReasons: []string{fmt.Sprintf("Name: %d%% match", int(math.Round(score*100)))},
			})
		}
	}

	// Exact-signal pass, independent of the name pass.
	for _, customer := range roster {
		var score float64
		var reasons []string

		if ev.Phone != "" && customer.Phone != "" && phoneKey(cfg, ev.Phone) == phoneKey(cfg, customer.Phone) {
			score += cfg.PhoneBoost
			reasons = append(reasons, "phone match")
		}
		if ev.Email != "" && customer.Email != "" && strings.EqualFold(ev.Email, customer.Email) {
			score += cfg.EmailBoost
			reasons = append(reasons, "email match")
		}
		if ev.Location != "" && customer.FromAddress != "" {
			location := strings.ToLower(ev.Location)
			address := strings.ToLower(customer.FromAddress)
			if strings.Contains(location, address) || strings.Contains(address, location) {
				score += cfg.AddressBoost
				reasons = append(reasons, "address similar")
			}
		}

		if score > 0 {
			if score > 1 {
				score = 1
			}
			matches = merge(matches, models.CustomerMatch{
				Customer:     customer,
				Score:        score,
				MatchReasons: reasons,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > cfg.MaxCandidates {
		matches = matches[:cfg.MaxCandidates]
	}
	return matches
}

// merge folds a candidate into the list: a candidate for an already
// present customer keeps the maximum score and the union of reasons.
func merge(matches []models.CustomerMatch, candidate models.CustomerMatch) []models.CustomerMatch {
	for i := range matches {
		if matches[i].Customer.ID != candidate.Customer.ID {
			continue
		}
		if candidate.Score > matches[i].Score {
			matches[i].Score = candidate.Score
		}
		matches[i].MatchReasons = unionReasons(matches[i].MatchReasons, candidate.MatchReasons)
		return matches
	}
	return append(matches, candidate)
}

func unionReasons(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, r := range append(a, b...) {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// nameDistance is the normalized edit distance between the extracted
// name and a roster name, taking the best of the whole name and its
// individual words so that a bare family name still matches a
// "First Last" roster entry.
func nameDistance(query, name string) float64 {
	query = normalize(query)
	name = normalize(name)
	if query == "" || name == "" {
		return 1
	}
	best := normalizedLevenshtein(query, name)
	for _, word := range strings.Fields(name) {
		if d := normalizedLevenshtein(query, word); d < best {
			best = d
		}
	}
	return best
}

func normalizedLevenshtein(a, b string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	d := float64(smetrics.WagnerFischer(a, b, 1, 1, 1)) / float64(longest)
	if d > 1 {
		d = 1
	}
	return d
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// phoneKey reduces a phone number to comparable digits. Numbers are
// first rewritten into calling-code form so that a domestic and an
// international spelling of the same number compare equal.
func phoneKey(cfg Config, s string) string {
	normalized := extract.NormalizePhone(extract.Config{CountryCode: cfg.CountryCode}, s)
	if normalized == "" {
		normalized = s
	}
	return digitsOnly(normalized)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
