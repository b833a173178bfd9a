// Package extract derives customer attributes from the free-text
// fields of a calendar event. Name extraction is an ordered rule
// cascade; rules are tried in sequence and the first hit wins, so the
// precedence stays auditable rule by rule. Extraction never fails: a
// field with no match is simply left empty, except the name which
// falls back to UnknownName.
package extract

import (
	"regexp"
	"strings"

	"calimport/internal/models"
)

// UnknownName is the sentinel name used when no rule matches.
const UnknownName = "Unbekannt"

// Config carries the extraction tunables.
type Config struct {
	// CountryCode is the calling-code prefix a leading zero is replaced
	// with, and the prefix prepended to bare domestic numbers.
	CountryCode string
}

// DefaultConfig returns the extraction defaults for German exports.
func DefaultConfig() Config {
	return Config{CountryCode: "+49"}
}

// Extract returns a copy of the event with customer name, phone and
// email filled in from its text fields. Fields already present on the
// event are recomputed, so re-running extraction on unchanged text
// yields identical results.
func Extract(cfg Config, ev models.CalendarEvent) models.CalendarEvent {
	out := ev
	out.CustomerName = ExtractName(ev.Summary, ev.Description)

	allText := strings.ToLower(ev.Summary + "\n" + ev.Description + "\n" + ev.Location)

	out.Phone = ""
	for _, line := range strings.Split(allText, "\n") {
		if phone := ExtractPhone(cfg, line); phone != "" {
			out.Phone = phone
			break
		}
	}

	out.Email = emailPattern.FindString(allText)

	for _, attendee := range ev.Attendees {
		if out.Email == "" && strings.Contains(attendee, "@") {
			out.Email = emailPattern.FindString(attendee)
		}
		if out.CustomerName == UnknownName && strings.Contains(attendee, "CN=") {
			if m := cnPattern.FindStringSubmatch(attendee); m != nil {
				out.CustomerName = strings.TrimSpace(m[1])
			}
		}
	}

	return out
}

var (
	labelPattern     = regexp.MustCompile(`(?i)(?:name|kunde|customer)[\s:]+([^\n,;]+)`)
	leadingPattern   = regexp.MustCompile(`^([A-ZÄÖÜ][a-zäöüß]+(?:\s+[A-ZÄÖÜ][a-zäöüß-]+)*)`)
	honorificPattern = regexp.MustCompile(`(?i)(?:herr|frau|mr|mrs|ms|dr|prof)\s+([A-ZÄÖÜ][a-zäöüß]+(?:\s+[A-ZÄÖÜ][a-zäöüß-]+)*)`)
	familyPattern    = regexp.MustCompile(`(?i)(?:familie|family|fam\.)\s+([A-ZÄÖÜ][a-zäöüß]+)`)
	companyPattern   = regexp.MustCompile(`(?i)(?:firma|company|gmbh|ag|kg|ohg|gbr)\s*:?\s*([^,;\n]+)`)
	commaPattern     = regexp.MustCompile(`^([A-ZÄÖÜ][a-zäöüß-]+(?:\s+[A-ZÄÖÜ][a-zäöüß-]+)*)\s*,`)

	typePrefixPattern = regexp.MustCompile(`(?i)^(?:umzug|move|termin|appointment|kunde|customer|auftrag)[\s:]+`)
	codePrefixPattern = regexp.MustCompile(`(?i)^(?:UT|UC|UK|UM)[\s:-]+`)

	segmentSplitPattern = regexp.MustCompile(`[,;\-–|]`)
	upperStartPattern   = regexp.MustCompile(`^[A-ZÄÖÜ]`)
	twoDigitPattern     = regexp.MustCompile(`\d{2}`)

	cnPattern    = regexp.MustCompile(`CN=([^;,:]+)`)
	emailPattern = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)
)

// nameRule is one step of the name cascade.
type nameRule struct {
	name    string
	extract func(summary, description, cleaned string) string
}

// nameRules in precedence order. Pattern rules run against the summary
// first, against the description second; the positional fallbacks use
// the prefix-stripped summary.
var nameRules = []nameRule{
	{"label", func(s, _, _ string) string { return matchGroup(labelPattern, s) }},
	{"leading-capitals", func(_, _, c string) string { return matchGroup(leadingPattern, c) }},
	{"honorific", func(s, _, _ string) string { return matchGroup(honorificPattern, s) }},
	{"family", func(s, _, _ string) string { return matchGroup(familyPattern, s) }},
	{"company", func(s, _, _ string) string { return matchGroup(companyPattern, s) }},
	{"label-description", func(_, d, _ string) string { return matchGroup(labelPattern, d) }},
	{"honorific-description", func(_, d, _ string) string { return matchGroup(honorificPattern, d) }},
	{"family-description", func(_, d, _ string) string { return matchGroup(familyPattern, d) }},
	{"company-description", func(_, d, _ string) string { return matchGroup(companyPattern, d) }},
	{"comma-prefix", func(_, _, c string) string { return matchGroup(commaPattern, c) }},
	{"first-segment", func(_, _, c string) string { return firstSegment(c) }},
}

// ExtractName runs the cascade over summary and description and
// returns the first hit, or UnknownName.
func ExtractName(summary, description string) string {
	if summary == "" {
		return UnknownName
	}
	cleaned := stripPrefixes(summary)
	for _, rule := range nameRules {
		if name := rule.extract(summary, description, cleaned); name != "" {
			return name
		}
	}
	return UnknownName
}

// stripPrefixes removes appointment-type markers ("Umzug ...",
// "Termin: ...") and internal order codes from the start of a summary.
func stripPrefixes(summary string) string {
	cleaned := typePrefixPattern.ReplaceAllString(summary, "")
	cleaned = codePrefixPattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

func matchGroup(re *regexp.Regexp, text string) string {
	if text == "" {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// firstSegment accepts the first comma/dash/pipe-delimited part of the
// cleaned summary as a name, rejecting long fragments and anything
// with a two-digit run, which is usually a date.
func firstSegment(cleaned string) string {
	first := strings.TrimSpace(segmentSplitPattern.Split(cleaned, 2)[0])
	if first == "" || len(first) >= 50 {
		return ""
	}
	if !upperStartPattern.MatchString(first) || twoDigitPattern.MatchString(first) {
		return ""
	}
	return first
}

var (
	telPrefixPattern     = regexp.MustCompile(`(?i)tel(?:efon)?[.:]\s*`)
	intlPhonePattern     = regexp.MustCompile(`(\+\d[\d\s/()-]{8,})`)
	domesticPhonePattern = regexp.MustCompile(`(0[\d\s/()-]{10,})`)
	groupedPhonePattern  = regexp.MustCompile(`(\d{3,}[\s/-]?\d{3,}[\s/-]?\d{2,})`)

	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "/", "", "(", "", ")", "")
)

// phonePatterns in precedence order: international prefix, domestic
// leading-zero run, generic grouped digit run.
var phonePatterns = []*regexp.Regexp{intlPhonePattern, domesticPhonePattern, groupedPhonePattern}

// ExtractPhone scans one line of text for a phone number and returns
// it normalized, or "" when the line has no usable number.
func ExtractPhone(cfg Config, line string) string {
	cleaned := telPrefixPattern.ReplaceAllString(line, "")
	for _, re := range phonePatterns {
		m := re.FindStringSubmatch(cleaned)
		if m == nil {
			continue
		}
		if phone := NormalizePhone(cfg, m[1]); phone != "" {
			return phone
		}
	}
	return ""
}

// NormalizePhone strips separators and rewrites the number into
// calling-code form. A result outside 10 to 15 characters is rejected.
func NormalizePhone(cfg Config, raw string) string {
	phone := phoneSeparators.Replace(strings.TrimSpace(raw))
	bareCode := strings.TrimPrefix(cfg.CountryCode, "+")
	switch {
	case strings.HasPrefix(phone, "+"):
		// Already in international form.
	case strings.HasPrefix(phone, "0"):
		phone = cfg.CountryCode + phone[1:]
	case strings.HasPrefix(phone, bareCode):
		phone = "+" + phone
	case len(phone) >= 10:
		phone = cfg.CountryCode + phone
	}
	if len(phone) < 10 || len(phone) > 15 {
		return ""
	}
	return phone
}
