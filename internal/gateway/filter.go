package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mce-digital/salesbridge/internal/erp"
)

// Client-supplied filters are parsed into typed conditions and checked
// against these allow-lists. Nothing from the query string is ever handed to
// the object layer unvalidated.
var allowedFilterFields = map[string]bool{
	"id":             true,
	"name":           true,
	"partner_id":     true,
	"date_order":     true,
	"amount_total":   true,
	"state":          true,
	"invoice_status": true,
	"currency_id":    true,
}

var allowedFieldSelection = map[string]bool{
	"id":             true,
	"name":           true,
	"partner_id":     true,
	"date_order":     true,
	"amount_total":   true,
	"amount_untaxed": true,
	"state":          true,
	"invoice_status": true,
	"currency_id":    true,
	"order_line":     true,
	"invoice_ids":    true,
}

var allowedOperators = map[string]bool{
	"=":      true,
	"!=":     true,
	">":      true,
	">=":     true,
	"<":      true,
	"<=":     true,
	"like":   true,
	"ilike":  true,
	"in":     true,
	"not in": true,
}

// parseDomain decodes a JSON list of [field, operator, value] triples into a
// typed domain. Malformed or disallowed input is rejected, never executed.
func parseDomain(raw string) (erp.Domain, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var triples [][]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &triples); err != nil {
		return nil, fmt.Errorf("domain must be a JSON list of [field, operator, value] triples")
	}

	domain := make(erp.Domain, 0, len(triples))
	for i, triple := range triples {
		if len(triple) != 3 {
			return nil, fmt.Errorf("domain entry %d must have exactly three elements", i)
		}

		var field, op string
		if err := json.Unmarshal(triple[0], &field); err != nil {
			return nil, fmt.Errorf("domain entry %d: field must be a string", i)
		}
		if err := json.Unmarshal(triple[1], &op); err != nil {
			return nil, fmt.Errorf("domain entry %d: operator must be a string", i)
		}
		if !allowedFilterFields[field] {
			return nil, fmt.Errorf("domain entry %d: field %q is not filterable", i, field)
		}
		if !allowedOperators[op] {
			return nil, fmt.Errorf("domain entry %d: operator %q is not allowed", i, op)
		}

		value, err := parseFilterValue(triple[2], op)
		if err != nil {
			return nil, fmt.Errorf("domain entry %d: %w", i, err)
		}
		domain = append(domain, erp.Condition{Field: field, Op: op, Value: value})
	}
	return domain, nil
}

func parseFilterValue(raw json.RawMessage, op string) (any, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("value is not valid JSON")
	}
	switch v := value.(type) {
	case string, float64, bool, nil:
		if op == "in" || op == "not in" {
			return nil, fmt.Errorf("operator %q requires a list value", op)
		}
		return v, nil
	case []any:
		if op != "in" && op != "not in" {
			return nil, fmt.Errorf("list values require the in/not in operators")
		}
		for _, item := range v {
			switch item.(type) {
			case string, float64, bool:
			default:
				return nil, fmt.Errorf("list values must be scalars")
			}
		}
		return v, nil
	default:
		return nil, fmt.Errorf("value must be a scalar or a list of scalars")
	}
}

// parseFields validates a comma-separated field selection.
func parseFields(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	fields := make([]string, 0, len(parts))
	for _, part := range parts {
		field := strings.TrimSpace(part)
		if field == "" {
			continue
		}
		if !allowedFieldSelection[field] {
			return nil, fmt.Errorf("field %q is not selectable", field)
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// parseOrder validates a sort expression of "field [asc|desc]" terms.
func parseOrder(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	terms := strings.Split(raw, ",")
	cleaned := make([]string, 0, len(terms))
	for _, term := range terms {
		parts := strings.Fields(term)
		if len(parts) == 0 || len(parts) > 2 {
			return "", fmt.Errorf("order term %q is malformed", strings.TrimSpace(term))
		}
		if !allowedFilterFields[parts[0]] {
			return "", fmt.Errorf("order field %q is not sortable", parts[0])
		}
		if len(parts) == 2 {
			dir := strings.ToLower(parts[1])
			if dir != "asc" && dir != "desc" {
				return "", fmt.Errorf("order direction %q must be asc or desc", parts[1])
			}
			cleaned = append(cleaned, parts[0]+" "+dir)
			continue
		}
		cleaned = append(cleaned, parts[0])
	}
	return strings.Join(cleaned, ", "), nil
}
