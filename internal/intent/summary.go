// File: internal/intent/summary.go
package intent

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

// Summary renders a short Spanish description of the intent for display on
// the voice assistant's screen and for the plan payload.
func Summary(in schemas.Intent) string {
	switch in.Name {
	case IntentSendMoney, IntentSendMoneyPocket:
		recipient := in.Param("recipient")
		if recipient == "" {
			recipient = "?"
		}
		var s string
		if amount, ok := in.AmountParam(); ok {
			s = fmt.Sprintf("Enviar $%s a %s", FormatAmount(amount), recipient)
		} else {
			s = fmt.Sprintf("Enviar a %s", recipient)
		}
		if strings.HasPrefix(in.Param("source"), "bolsillo") {
			s += " desde el bolsillo"
		}
		return s
	case IntentCheckBalance:
		return "Consultar saldo"
	case IntentPayBill:
		service := in.Param("service")
		if service == "" {
			service = "servicio"
		}
		return "Pagar " + service
	case IntentTransferPocket:
		return "Mover dinero entre bolsillos"
	case IntentTransactionHistory:
		return "Ver historial de transacciones"
	case IntentOpenApp:
		return "Abrir la app"
	default:
		return in.Name
	}
}

// FormatAmount formats 1500000 as "1,500,000" for display strings.
func FormatAmount(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
