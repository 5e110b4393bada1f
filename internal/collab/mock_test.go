package collab_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"craftline/internal/collab"
	"craftline/internal/domain"
	"craftline/internal/pricing"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

func TestAnalyzeRequestKeywords(t *testing.T) {
	m := collab.Mock{}
	ctx := context.Background()

	details, err := m.AnalyzeRequest(ctx, "Please install a PP650 power unit with a 50ft retractable hose and a HEPA filter.")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if details["item_requested"] != "power_unit" || details["model"] != "PP650" {
		t.Fatalf("expected power unit model, got %+v", details)
	}
	if details["hose_length_ft"] != 50 {
		t.Fatalf("expected hose length, got %+v", details["hose_length_ft"])
	}
	services, ok := details["services"].([]any)
	if !ok || len(services) != 2 || services[0] != "New_System_Installation" {
		t.Fatalf("expected installation services, got %+v", details["services"])
	}
	if _, ok := details["parts_needed"]; !ok {
		t.Fatalf("expected parts for hepa request")
	}

	details, err = m.AnalyzeRequest(ctx, "What are your opening hours?")
	if err != nil {
		t.Fatalf("analyze fallback: %v", err)
	}
	if details["item_requested"] != "general_inquiry" {
		t.Fatalf("expected general inquiry, got %+v", details)
	}
}

func TestAnalyzeRequestEmpty(t *testing.T) {
	m := collab.Mock{}
	_, err := m.AnalyzeRequest(context.Background(), "   ")
	var ce *collab.CollaboratorError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CollaboratorError, got %v", err)
	}
	if ce.Stage != collab.StageAnalyze {
		t.Fatalf("expected analyze stage, got %s", ce.Stage)
	}
}

func TestGenerateQuoteTotals(t *testing.T) {
	m := collab.Mock{}
	catalog := pricing.Default()
	details := domain.Payload{
		"model":    "PP650",
		"services": []any{"New_System_Installation", "Shipping_Standard"},
	}

	quote, err := m.GenerateQuote(context.Background(), details, catalog)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote["subtotal"] != 1950.0 {
		t.Fatalf("expected subtotal 1950, got %v", quote["subtotal"])
	}
	if quote["shipping"] != 50.0 {
		t.Fatalf("expected shipping routed separately, got %v", quote["shipping"])
	}
	if quote["total_estimated_cost"] != 2000.0 {
		t.Fatalf("expected total 2000, got %v", quote["total_estimated_cost"])
	}
	items, _ := quote["quote_items"].([]any)
	if len(items) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(items))
	}
	first, _ := items[0].(map[string]any)
	if first["item"] != "PP650" || first["line_total"] != 1200.0 {
		t.Fatalf("unexpected first line: %+v", first)
	}
}

func TestGenerateQuoteUnknownMaterial(t *testing.T) {
	m := collab.Mock{}
	details := domain.Payload{
		"parts_needed": []any{
			map[string]any{"part_name": "Unknown_Widget", "quantity": float64(2)},
		},
	}

	quote, err := m.GenerateQuote(context.Background(), details, pricing.Default())
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	items, _ := quote["quote_items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(items))
	}
	line, _ := items[0].(map[string]any)
	if line["unit_price"] != "TBD" || line["line_total"] != "TBD" {
		t.Fatalf("expected TBD pricing, got %+v", line)
	}
	if quote["subtotal"] != 0.0 {
		t.Fatalf("TBD lines must not count toward subtotal, got %v", quote["subtotal"])
	}
}

func TestGenerateQuoteNoDetails(t *testing.T) {
	m := collab.Mock{}
	_, err := m.GenerateQuote(context.Background(), nil, pricing.Default())
	var ce *collab.CollaboratorError
	if !errors.As(err, &ce) || ce.Stage != collab.StageQuote {
		t.Fatalf("expected quote stage error, got %v", err)
	}
}

func TestCheckAvailabilitySlots(t *testing.T) {
	m := collab.Mock{Now: fixedNow}

	avail, err := m.CheckAvailability(context.Background(), "New System Installation")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	slots, _ := avail["available_slots"].([]any)
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	first, _ := slots[0].(map[string]any)
	if first["date"] != "2026-03-04" || first["time"] != "9:00 AM - 12:00 PM" {
		t.Fatalf("unexpected first slot: %+v", first)
	}
	last, _ := slots[2].(map[string]any)
	if last["date"] != "2026-03-08" {
		t.Fatalf("unexpected last slot: %+v", last)
	}
}

func TestCheckAvailabilityNoVisitNeeded(t *testing.T) {
	m := collab.Mock{Now: fixedNow}

	avail, err := m.CheckAvailability(context.Background(), "")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	slots, _ := avail["available_slots"].([]any)
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %+v", slots)
	}
	note, _ := avail["note"].(string)
	if note == "" {
		t.Fatalf("expected explanatory note")
	}
}

func TestDraftEmail(t *testing.T) {
	m := collab.Mock{}
	quote := domain.Payload{
		"quote_items": []any{
			map[string]any{"item": "PP650", "line_total": 1200.0},
		},
		"total_estimated_cost": 1250.0,
		"notes":                "Final pricing may vary.",
	}
	availability := domain.Payload{
		"available_slots": []any{
			map[string]any{"date": "2026-03-04", "time": "9:00 AM - 12:00 PM"},
		},
	}

	email, err := m.DraftEmail(context.Background(), "request", nil, quote, availability)
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	for _, want := range []string{
		"Dear valued customer",
		"PP650: $1200.00",
		"Total Estimated Cost: $1250.00",
		"2026-03-04",
		"The CustomCraft Team",
	} {
		if !strings.Contains(email, want) {
			t.Fatalf("email missing %q:\n%s", want, email)
		}
	}
}

func TestDraftEmailRequiresQuote(t *testing.T) {
	m := collab.Mock{}
	_, err := m.DraftEmail(context.Background(), "request", nil, nil, nil)
	var ce *collab.CollaboratorError
	if !errors.As(err, &ce) || ce.Stage != collab.StageDraftEmail {
		t.Fatalf("expected draft stage error, got %v", err)
	}
}
