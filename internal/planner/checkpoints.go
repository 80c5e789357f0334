// File: internal/planner/checkpoints.go
package planner

import (
	"strings"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

// hubScreen is the one checkpoint allowed to repeat in a resolved sequence.
// Round-trips through the home screen are a normal part of multi-stage
// flows and must not be collapsed by deduplication.
const hubScreen = "home"

// intentCheckpoints maps an intent name to its canonical sub-goal sequence.
// The planner walks the navigation graph between each consecutive pair, so
// these are waypoints, not literal screen-by-screen routes.
var intentCheckpoints = map[string][]string{
	"send_money": {
		"home",
		"transfers",
		"send",
		"confirm",
		"success",
	},
	"send_money_from_pocket": {
		"home",
		"pockets",
		"pocket_detail",
		"withdraw_pocket",
		"home",
		"transfers",
		"send",
		"confirm",
		"success",
	},
	"check_balance": {
		// Balance is visible on the home screen.
		"home",
	},
	"transfer_pocket": {
		"home",
		"pockets",
		"pocket_detail",
		"withdraw_pocket",
	},
	"pay_bill": {
		"home",
		"payments",
		"pay_bill",
	},
	"transaction_history": {
		// History is accessible from home.
		"home",
	},
}

// ResolveCheckpoints determines the sub-goal sequence for an intent starting
// from the current screen. An intent absent from the table resolves to the
// current screen alone, which assembles into a zero-hop plan.
func ResolveCheckpoints(in schemas.Intent, currentScreen string) []string {
	key := in.Name

	// send_money funded from a pocket takes the longer withdraw-first route.
	if in.Name == "send_money" && strings.HasPrefix(in.Param("source"), "bolsillo") {
		key = "send_money_from_pocket"
	}

	checkpoints, ok := intentCheckpoints[key]
	if !ok || len(checkpoints) == 0 {
		return []string{currentScreen}
	}

	seq := make([]string, 0, len(checkpoints)+1)
	if checkpoints[0] != currentScreen {
		seq = append(seq, currentScreen)
	}
	seq = append(seq, checkpoints...)

	return dedupeCheckpoints(seq)
}

// dedupeCheckpoints removes repeated entries while preserving order. The hub
// screen is exempt and may reappear.
func dedupeCheckpoints(seq []string) []string {
	seen := make(map[string]struct{}, len(seq))
	out := make([]string, 0, len(seq))
	for _, cp := range seq {
		if _, dup := seen[cp]; dup && cp != hubScreen {
			continue
		}
		seen[cp] = struct{}{}
		out = append(out, cp)
	}
	return out
}
