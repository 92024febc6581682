package assistant

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func intValue(v any) int {
	f, ok := floatValue(v)
	if !ok {
		return 0
	}
	return int(f)
}

// floatValue accepts the numeric shapes a snapshot or JSON payload carries.
func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return parseAmountString(n)
	}
	return 0, false
}

// parseAmountString accepts "1500", "1500.50", "1.500,50" and "1500,50".
func parseAmountString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"R$", "$", "US$"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func stringField(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// amountField requires a positive number or numeric string.
func amountField(payload map[string]any, key string) (float64, error) {
	raw, ok := payload[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("the %s is required", key)
	}
	f, ok := floatValue(raw)
	if !ok {
		return 0, fmt.Errorf("the %s %q is not a number", key, fmt.Sprint(raw))
	}
	if f <= 0 {
		return 0, fmt.Errorf("the %s must be greater than zero", key)
	}
	return f, nil
}

func dateField(payload map[string]any, key string) (time.Time, error) {
	s := stringField(payload, key)
	if s == "" {
		return time.Time{}, fmt.Errorf("the %s is required", key)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("the %s %q must use the YYYY-MM-DD format", key, s)
	}
	return t, nil
}

func positiveIntField(payload map[string]any, key string) (int, error) {
	raw, ok := payload[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("the %s is required", key)
	}
	f, ok := floatValue(raw)
	if !ok || f != math.Trunc(f) || f <= 0 {
		return 0, fmt.Errorf("the %s must be a positive whole number", key)
	}
	return int(f), nil
}
