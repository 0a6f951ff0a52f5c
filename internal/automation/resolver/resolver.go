// Package resolver turns the raw member list into the recipient set for one
// rule: deduplicated, reachable on at least one of the rule's channels, and
// carrying the billing data date-driven rules need.
package resolver

import (
	"dizimo_backend/internal/automation/ports"
	"dizimo_backend/internal/automation/repository"

	"github.com/google/uuid"
)

// Recipient is one resolved member together with their billing snapshot.
type Recipient struct {
	Member  ports.Member
	Billing ports.BillingSnapshot
}

// Resolve filters and dedupes the candidate members for a rule. Members are
// dropped when they cannot be reached on any enabled channel, when they
// appear more than once (first occurrence wins), or, for date-driven rules,
// when they have no scheduled due date.
func Resolve(rule repository.Rule, members []ports.Member, snapshots map[uuid.UUID]ports.BillingSnapshot) []Recipient {
	dateDriven := !rule.EventTrigger.IsEventDriven()

	seen := make(map[uuid.UUID]struct{}, len(members))
	recipients := make([]Recipient, 0, len(members))
	for _, m := range members {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}

		if !m.HasContactFor(rule.SendViaEmail, rule.SendViaWhatsapp) {
			continue
		}

		snap := snapshots[m.ID]
		if dateDriven && snap.NextDueDate == nil {
			continue
		}

		recipients = append(recipients, Recipient{Member: m, Billing: snap})
	}
	return recipients
}
