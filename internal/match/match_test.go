package match

import (
	"testing"

	"calimport/internal/extract"
	"calimport/internal/models"
)

func customer(id, name, phone, email, address string) models.CustomerRecord {
	return models.CustomerRecord{ID: id, Name: name, Phone: phone, Email: email, FromAddress: address}
}

func TestFind_FuzzyName(t *testing.T) {
	roster := []models.CustomerRecord{
		customer("c1", "Schmidt", "", "", ""),
		customer("c2", "Schmitt", "", "", ""),
		customer("c3", "Obermeier", "", "", ""),
	}
	ev := models.CalendarEvent{CustomerName: "Schmidt"}

	matches := Find(DefaultConfig(), ev, roster)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2: %+v", len(matches), matches)
	}
	if matches[0].Customer.ID != "c1" || matches[0].Score != 1 {
		t.Fatalf("unexpected best match %+v", matches[0])
	}
	if matches[1].Customer.ID != "c2" {
		t.Fatalf("unexpected second match %+v", matches[1])
	}
	if matches[0].Score <= matches[1].Score {
		t.Fatalf("expected descending scores, got %v then %v", matches[0].Score, matches[1].Score)
	}
}

func TestFind_TokenMatchAgainstFullName(t *testing.T) {
	roster := []models.CustomerRecord{customer("c1", "Hans Müller", "", "", "")}
	ev := models.CalendarEvent{CustomerName: "Müller"}

	matches := Find(DefaultConfig(), ev, roster)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Score != 1 {
		t.Fatalf("got score %v, want 1", matches[0].Score)
	}
}

func TestFind_SentinelNameSkipsFuzzyPass(t *testing.T) {
	roster := []models.CustomerRecord{customer("c1", extract.UnknownName, "", "", "")}
	ev := models.CalendarEvent{CustomerName: extract.UnknownName}

	if matches := Find(DefaultConfig(), ev, roster); len(matches) != 0 {
		t.Fatalf("expected no matches, got %+v", matches)
	}
}

func TestFind_PhoneMatchAfterNormalization(t *testing.T) {
	// A domestic roster number must match the event's international form.
	roster := []models.CustomerRecord{customer("c1", "Schmidt", "030123456", "", "")}
	ev := models.CalendarEvent{CustomerName: "Herr Dr", Phone: "+4930123456"}

	matches := Find(DefaultConfig(), ev, roster)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Score < 0.9 {
		t.Fatalf("got score %v, want >= 0.9", matches[0].Score)
	}
	if !hasReason(matches[0], "phone match") {
		t.Fatalf("missing phone reason: %v", matches[0].MatchReasons)
	}
}

func TestFind_EmailAndAddressSignals(t *testing.T) {
	roster := []models.CustomerRecord{
		customer("c1", "Weber", "", "Jana@Example.com", "Hauptstraße 5"),
	}
	ev := models.CalendarEvent{
		Email:    "jana@example.com",
		Location: "Hauptstraße 5, 10115 Berlin",
	}

	matches := Find(DefaultConfig(), ev, roster)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if !hasReason(matches[0], "email match") || !hasReason(matches[0], "address similar") {
		t.Fatalf("missing reasons: %v", matches[0].MatchReasons)
	}
	if matches[0].Score != 1 {
		t.Fatalf("expected score clamped to 1, got %v", matches[0].Score)
	}
}

func TestFind_MergesFuzzyAndExactForSameCustomer(t *testing.T) {
	roster := []models.CustomerRecord{
		customer("c1", "Weber", "0151 2345678", "", ""),
	}
	ev := models.CalendarEvent{CustomerName: "Weber", Phone: "+491512345678"}

	matches := Find(DefaultConfig(), ev, roster)
	if len(matches) != 1 {
		t.Fatalf("expected dedup to one entry, got %d", len(matches))
	}
	if matches[0].Score != 1 {
		t.Fatalf("expected max of both passes, got %v", matches[0].Score)
	}
	if len(matches[0].MatchReasons) != 2 {
		t.Fatalf("expected union of reasons, got %v", matches[0].MatchReasons)
	}
}

func TestFind_ScoreBoundsAndTruncation(t *testing.T) {
	var roster []models.CustomerRecord
	for _, id := range []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7"} {
		roster = append(roster, customer(id, "Kunde "+id, "030123456", "", ""))
	}
	ev := models.CalendarEvent{Phone: "030123456"}

	matches := Find(DefaultConfig(), ev, roster)
	if len(matches) != 5 {
		t.Fatalf("got %d matches, want cap of 5", len(matches))
	}
	seen := map[string]bool{}
	for i, m := range matches {
		if m.Score <= 0 || m.Score > 1 {
			t.Fatalf("score out of bounds: %v", m.Score)
		}
		if i > 0 && matches[i-1].Score < m.Score {
			t.Fatalf("matches not sorted descending at %d", i)
		}
		if seen[m.Customer.ID] {
			t.Fatalf("duplicate customer %s", m.Customer.ID)
		}
		seen[m.Customer.ID] = true
	}
}

func TestFind_ThresholdIsConfigurable(t *testing.T) {
	roster := []models.CustomerRecord{customer("c1", "Schmitt", "", "", "")}
	ev := models.CalendarEvent{CustomerName: "Schmidt"}

	strict := DefaultConfig()
	strict.FuzzyThreshold = 0.05
	if matches := Find(strict, ev, roster); len(matches) != 0 {
		t.Fatalf("expected strict threshold to reject, got %+v", matches)
	}
}

func hasReason(m models.CustomerMatch, reason string) bool {
	for _, r := range m.MatchReasons {
		if r == reason {
			return true
		}
	}
	return false
}
