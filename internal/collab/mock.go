package collab

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"craftline/internal/domain"
	"craftline/internal/pricing"
)

// Mock is a deterministic collaborator set for local runs and tests. It
// answers every stage from keyword rules and the pricing catalog, with no
// network access.
type Mock struct {
	Now func() time.Time
}

var modelPattern = regexp.MustCompile(`PP\d{3}`)

func (m Mock) AnalyzeRequest(ctx context.Context, customerRequest string) (domain.Payload, error) {
	if strings.TrimSpace(customerRequest) == "" {
		return nil, &CollaboratorError{Stage: StageAnalyze, Err: errors.New("empty customer request")}
	}
	lower := strings.ToLower(customerRequest)
	details := domain.Payload{}

	if model := modelPattern.FindString(customerRequest); model != "" {
		details["item_requested"] = "power_unit"
		details["model"] = model
	}
	if strings.Contains(lower, "retractable hose") || strings.Contains(lower, "50ft") {
		details["hose_length_ft"] = 50
	}
	var services []string
	switch {
	case strings.Contains(lower, "install"):
		services = append(services, "New_System_Installation", "Shipping_Standard")
	case strings.Contains(lower, "repair"):
		services = append(services, "Labor_Rate")
	case strings.Contains(lower, "tune"):
		services = append(services, "System_Tune_Up")
	}
	if strings.Contains(lower, "hepa") {
		details["parts_needed"] = []any{
			map[string]any{"part_name": "HEPA_Filter", "quantity": 1},
		}
	}
	if len(services) > 0 {
		svcs := make([]any, len(services))
		for i, s := range services {
			svcs[i] = s
		}
		details["services"] = svcs
	}
	if len(details) == 0 {
		details["item_requested"] = "general_inquiry"
	}
	return details, nil
}

func (m Mock) GenerateQuote(ctx context.Context, details domain.Payload, catalog []domain.PricingEntry) (domain.Payload, error) {
	if details == nil {
		return nil, &CollaboratorError{Stage: StageQuote, Err: errors.New("no extracted details")}
	}
	var items []any
	subtotal := 0.0
	shipping := 0.0

	addLine := func(name string, qty float64) {
		entry, ok := pricing.Lookup(catalog, name)
		if !ok {
			items = append(items, map[string]any{
				"item":           name,
				"quantity":       qty,
				"unit_price":     "TBD",
				"line_total":     "TBD",
				"cost_breakdown": "Price not found in database.",
			})
			return
		}
		lineTotal := entry.UnitCost
		if entry.Unit != "flat_fee" {
			lineTotal = entry.UnitCost * qty
		}
		if entry.Material == "Shipping_Standard" {
			shipping += lineTotal
		} else {
			subtotal += lineTotal
		}
		items = append(items, map[string]any{
			"item":           strings.ReplaceAll(entry.Material, "_", " "),
			"quantity":       qty,
			"unit_price":     entry.UnitCost,
			"line_total":     lineTotal,
			"cost_breakdown": fmt.Sprintf("%g @ $%.2f/%s", qty, entry.UnitCost, entry.Unit),
		})
	}

	if model, ok := details["model"].(string); ok && model != "" {
		addLine(model, 1)
	}
	if _, ok := details["hose_length_ft"]; ok {
		addLine("50ft_Retractable", 1)
	}
	if parts, ok := details["parts_needed"].([]any); ok {
		for _, raw := range parts {
			part, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			name, _ := part["part_name"].(string)
			qty := 1.0
			if q, ok := part["quantity"].(float64); ok && q > 0 {
				qty = q
			} else if q, ok := part["quantity"].(int); ok && q > 0 {
				qty = float64(q)
			}
			if name != "" {
				addLine(name, qty)
			}
		}
	}
	if services, ok := details["services"].([]any); ok {
		for _, raw := range services {
			if name, ok := raw.(string); ok && name != "" {
				addLine(name, 1)
			}
		}
	}
	return domain.Payload{
		"quote_items":          items,
		"subtotal":             subtotal,
		"shipping":             shipping,
		"total_estimated_cost": subtotal + shipping,
		"notes":                "This is an estimated quote based on provided details and current pricing. Final pricing may vary upon site visit and detailed requirements.",
	}, nil
}

func (m Mock) CheckAvailability(ctx context.Context, serviceTypes string) (domain.Payload, error) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	lower := strings.ToLower(serviceTypes)
	needsVisit := strings.Contains(lower, "installation") ||
		strings.Contains(lower, "service") ||
		strings.Contains(lower, "tune-up") ||
		strings.Contains(lower, "repair")
	if !needsVisit {
		return domain.Payload{
			"available_slots": []any{},
			"note":            "No specific service installation/consultation requested, so no availability slots needed.",
		}, nil
	}
	today := now().UTC()
	day := func(offset int) string {
		return today.AddDate(0, 0, offset).Format("2006-01-02")
	}
	return domain.Payload{
		"available_slots": []any{
			map[string]any{"date": day(3), "time": "9:00 AM - 12:00 PM"},
			map[string]any{"date": day(5), "time": "1:00 PM - 4:00 PM"},
			map[string]any{"date": day(7), "time": "10:00 AM - 1:00 PM"},
		},
		"note": "These are preliminary availability slots. A representative will confirm exact timing.",
	}, nil
}

func (m Mock) DraftEmail(ctx context.Context, customerRequest string, details, quote, availability domain.Payload) (string, error) {
	if quote == nil {
		return "", &CollaboratorError{Stage: StageDraftEmail, Err: errors.New("no quote to reference")}
	}
	name := "valued customer"
	if details != nil {
		if n, ok := details["customer_name"].(string); ok && n != "" {
			name = n
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", name)
	b.WriteString("Thank you for your inquiry about a central vacuum system. Based on your request, here is your estimated quote:\n\n")
	if items, ok := quote["quote_items"].([]any); ok {
		for _, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "  - %v: %v\n", item["item"], formatAmount(item["line_total"]))
		}
	}
	fmt.Fprintf(&b, "\nTotal Estimated Cost: %v\n", formatAmount(quote["total_estimated_cost"]))
	if notes, ok := quote["notes"].(string); ok && notes != "" {
		fmt.Fprintf(&b, "\nPlease note: %s\n", notes)
	}
	if availability != nil {
		if slots, ok := availability["available_slots"].([]any); ok && len(slots) > 0 {
			b.WriteString("\nWe currently have the following preliminary availability:\n")
			for _, raw := range slots {
				slot, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				fmt.Fprintf(&b, "  - %v, %v\n", slot["date"], slot["time"])
			}
			b.WriteString("A representative will confirm exact timing.\n")
		}
	}
	b.WriteString("\nPlease reply or call us to discuss the quote, confirm availability, or schedule a site visit.\n\nBest regards,\nThe CustomCraft Team\n")
	return b.String(), nil
}

func formatAmount(v any) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("$%.2f", f)
	}
	return fmt.Sprintf("%v", v)
}

// NewMockSet returns a full collaborator set backed by Mock.
func NewMockSet(now func() time.Time) Set {
	m := Mock{Now: now}
	return Set{Analyzer: m, Quoter: m, Oracle: m, Drafter: m}
}
