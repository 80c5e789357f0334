// File: internal/intent/rules.go
package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

// Intent names recognized by the extractors. open_app is accepted from the
// model path but has no keyword rule; an utterance that matches nothing stays
// IntentUnknown at low confidence so the orchestrator can ask for a repeat.
const (
	IntentSendMoney          = "send_money"
	IntentSendMoneyPocket    = "send_money_from_pocket"
	IntentCheckBalance       = "check_balance"
	IntentTransferPocket     = "transfer_pocket"
	IntentPayBill            = "pay_bill"
	IntentTransactionHistory = "transaction_history"
	IntentOpenApp            = "open_app"
	IntentUnknown            = "unknown"
)

var (
	sendKeywords = []string{
		"envía", "envia", "enviar", "transfiere", "transferir",
		"manda", "mandar", "pasa", "pasar", "gira", "girar",
	}
	balanceKeywords = []string{
		"saldo", "cuánto tengo", "cuanto tengo", "balance",
		"plata tengo", "dinero tengo",
	}
	payKeywords     = []string{"paga", "pagar", "servicio", "factura", "recibo"}
	pocketKeywords  = []string{"bolsillo", "pocket", "ahorro"}
	historyKeywords = []string{"historial", "movimientos", "transacciones"}
)

// Amount patterns for colloquial Colombian Spanish. Multiplier patterns run
// before the bare "mil" rule so "2 millones" does not stop at the shared
// "mil" prefix.
var amountPatterns = []struct {
	re    *regexp.Regexp
	scale int64
}{
	{regexp.MustCompile(`(\d+)\s*mill[oó]n(?:es)?`), 1_000_000},
	{regexp.MustCompile(`(\d+)\s*palos?`), 1_000_000},
	{regexp.MustCompile(`(\d+)\s*mil`), 1_000},
	{regexp.MustCompile(`(\d+)\s*lucas?`), 1_000},
}

var (
	currencyRe  = regexp.MustCompile(`\$\s*([\d,.]+)`)
	rawAmountRe = regexp.MustCompile(`(\d{4,})`)
	recipientRe = regexp.MustCompile(`\ba\s+([A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(?:\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+)*)`)
)

// recipientSkip filters capitalized words that follow "a" but are not people.
var recipientSkip = map[string]struct{}{
	"Bancolombia": {},
	"Nequi":       {},
	"Daviplata":   {},
	"Cuenta":      {},
	"Bolsillo":    {},
}

// RuleExtractor recognizes banking intents from Spanish utterances with
// keyword tables and regex parameter capture. It needs no model or network
// and doubles as the fallback behind the generative extractor.
type RuleExtractor struct {
	logger *zap.Logger
}

var _ schemas.IntentExtractor = (*RuleExtractor)(nil)

// NewRuleExtractor creates a rule-based extractor.
func NewRuleExtractor(logger *zap.Logger) *RuleExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleExtractor{logger: logger.Named("intent.rules")}
}

// Ready always reports false: the rule path is the fallback, not a model.
func (e *RuleExtractor) Ready() bool { return false }

// Extract classifies the utterance. It always returns a usable Intent; the
// error return exists only to satisfy the extractor contract.
func (e *RuleExtractor) Extract(_ context.Context, text string) (schemas.Intent, error) {
	lower := strings.ToLower(strings.TrimSpace(text))

	name := IntentUnknown
	confidence := 0.6
	params := map[string]any{}

	if containsAny(lower, sendKeywords) {
		name = IntentSendMoney
		confidence = 0.85
	}
	if containsAny(lower, balanceKeywords) {
		name = IntentCheckBalance
		confidence = 0.9
	}
	if containsAny(lower, payKeywords) {
		name = IntentPayBill
		confidence = 0.8
	}
	if containsAny(lower, historyKeywords) {
		name = IntentTransactionHistory
		confidence = 0.8
	}
	if containsAny(lower, pocketKeywords) {
		if name == IntentSendMoney {
			params["source"] = "bolsillo_ahorros"
		} else {
			name = IntentTransferPocket
			confidence = 0.8
		}
	}

	if amount, ok := parseAmount(lower); ok {
		params["amount"] = amount
	}
	if recipient, ok := parseRecipient(text); ok {
		params["recipient"] = recipient
	}

	e.logger.Debug("rule extraction complete",
		zap.String("intent", name),
		zap.Float64("confidence", confidence),
	)

	return schemas.Intent{
		Name:       name,
		Confidence: confidence,
		Params:     params,
		RawText:    text,
	}, nil
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// parseAmount extracts a monetary amount from lowercased Spanish text.
// "50 mil" is 50000, "$1.500.000" is 1500000, a bare figure counts only from
// four digits up.
func parseAmount(text string) (int64, bool) {
	for _, p := range amountPatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			n, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				continue
			}
			return n * p.scale, true
		}
	}

	if m := currencyRe.FindStringSubmatch(text); m != nil {
		digits := strings.NewReplacer(",", "", ".", "").Replace(m[1])
		if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
			return n, true
		}
	}

	if m := rawAmountRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return n, true
		}
	}

	// "un millón" carries no digit.
	if strings.Contains(text, "un mill") {
		return 1_000_000, true
	}

	return 0, false
}

// parseRecipient captures the capitalized name after "a", as in
// "Envía 50 mil a María". Runs against the original casing.
func parseRecipient(text string) (string, bool) {
	m := recipientRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	name := m[1]
	if _, skip := recipientSkip[name]; skip {
		return "", false
	}
	return name, true
}
