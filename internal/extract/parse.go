package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/logger"
)

// cleanModelJSON strips Markdown fences and any text around the outermost open..end span.
func cleanModelJSON(raw, open, end string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(strings.TrimPrefix(s, "```json"), "```")
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if i := strings.Index(s, open); i != -1 {
		if j := strings.LastIndex(s, end); j != -1 && j > i {
			s = strings.TrimSpace(s[i : j+1])
		}
	}
	return s
}

// decodeRecords parses a model response expected to hold a JSON array of objects.
func decodeRecords(raw string) ([]interface{}, error) {
	clean := cleanModelJSON(raw, "[", "]")
	var parsed []interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	return parsed, nil
}

// decodeCommand parses a command interpreter response. "null" and anything unparseable
// mean no command.
func decodeCommand(raw string) *Command {
	clean := cleanModelJSON(raw, "{", "}")
	if clean == "" || strings.EqualFold(clean, "null") {
		return nil
	}
	var cmd Command
	if err := json.Unmarshal([]byte(clean), &cmd); err != nil {
		return nil
	}
	cmd.VendorKeyword = strings.TrimSpace(cmd.VendorKeyword)
	cmd.NewCategory = strings.TrimSpace(cmd.NewCategory)
	if cmd.VendorKeyword == "" || cmd.NewCategory == "" {
		return nil
	}
	return &cmd
}

// toTransactions converts decoded model records into transactions. Records that are not
// objects or lack a description or amount are skipped.
func toTransactions(ctx context.Context, records []interface{}) []*domain.Transaction {
	log := logger.FromContext(ctx)

	result := make([]*domain.Transaction, 0, len(records))
	for i, item := range records {
		obj, ok := item.(map[string]interface{})
		if !ok {
			log.Warn().Int("record", i).Str("type", fmt.Sprintf("%T", item)).Msg("skipping non-object model record")
			continue
		}
		tx, err := toTransaction(obj)
		if err != nil {
			log.Warn().Err(err).Int("record", i).Msg("skipping malformed model record")
			continue
		}
		result = append(result, tx)
	}
	return result
}

func toTransaction(obj map[string]interface{}) (*domain.Transaction, error) {
	desc, err := getStringField(obj, "description", true)
	if err != nil {
		return nil, err
	}
	amount, err := getFloat64Field(obj, "amount", true)
	if err != nil {
		return nil, err
	}
	date, err := getStringField(obj, "date", false)
	if err != nil {
		return nil, err
	}
	category, err := getStringField(obj, "category", false)
	if err != nil {
		return nil, err
	}
	merchant, err := getOptionalStringField(obj, "merchant")
	if err != nil {
		return nil, err
	}
	account, err := getOptionalStringField(obj, "account_name")
	if err != nil {
		return nil, err
	}

	txType := domain.TxType(strings.ToLower(getLenientString(obj, "type")))
	if txType != domain.TypeIncome && txType != domain.TypeExpense {
		txType = domain.TypeForAmount(amount)
	}

	tx := &domain.Transaction{
		Date:              strings.TrimSpace(date),
		Description:       strings.TrimSpace(desc),
		Amount:            amount,
		Type:              txType,
		Category:          strings.TrimSpace(category),
		Merchant:          merchant,
		AccountName:       domain.UnknownAccount,
		PotentialTransfer: getBoolField(obj, "potential_transfer") || getBoolField(obj, "is_transfer"),
	}
	if account != nil {
		tx.AccountName = *account
	}
	return tx, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

// getLenientString returns the field when it is a string and "" otherwise.
func getLenientString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func getFloat64Field(m map[string]interface{}, key string, required bool) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return 0, fmt.Errorf("missing required field %q", key)
		}
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case json.Number:
		return val.Float64()
	case string:
		// Some local models quote amounts and keep thousands separators.
		cleaned := strings.NewReplacer(",", "", "$", "", " ", "").Replace(val)
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q: cannot parse %q as number", key, val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

// getBoolField accepts JSON booleans and the strings "true"/"false".
func getBoolField(m map[string]interface{}, key string) bool {
	switch val := m[key].(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(strings.TrimSpace(val), "true")
	default:
		return false
	}
}
