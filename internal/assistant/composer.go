package assistant

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/billing-assistant/internal/billing"
)

const defaultPersonality = `You are a friendly, professional billing assistant. Answer in the same language the user writes in, keep replies short and concrete, and never invent figures that are not in the business data below.`

var snapshotLabels = map[string]string{
	keyCustomers:             "Customers",
	keyResellers:             "Resellers",
	keyActiveCustomers:       "Active customers",
	keyActiveServiceCnt:      "Active services",
	keyRecurringRevenue:      "Monthly recurring revenue",
	keyPendingCount:          "Pending charges",
	keyPendingTotal:          "Pending amount",
	keyOverdueCount:          "Overdue charges",
	keyOverdueTotal:          "Overdue amount",
	keyReceivedMonth:         "Received this month",
	keyCommissionBalance:     "Commission balance",
	keyReferralBalance:       "Referral credit balance",
	keyOverduePreview:        "Overdue charges (preview)",
	keyPendingCharges:        "Your pending charges",
	keyExpiringServices:      "Services expiring soon",
	keyActiveServices:        "Your active services",
	keyExpensesPending:       "Upcoming expenses",
	keyExpensesOverdue:       "Overdue expenses",
	keyExpensesPendingCount:  "Upcoming expense count",
	keyExpensesOverdueCount:  "Overdue expense count",
	keyExpensesMonthDueTotal: "Expenses due this month",
	keyExpensesMonthPaid:     "Expenses paid this month",
}

// Composer renders the system prompt. It holds no per-request state.
type Composer struct{}

// Compose renders personality, business text, identity, snapshot, knowledge
// base, menu options and the command grammar, in that order. The output is
// deterministic for equal inputs.
func (Composer) Compose(cc ConversationContext, endpoint Endpoint, personalityOverride string) string {
	return compose(cc, endpoint, personalityOverride, writeGrammar)
}

// ComposeStructured is Compose for backends running under ReplySchema: the
// grammar section describes the JSON reply object instead of action tags.
func (Composer) ComposeStructured(cc ConversationContext, endpoint Endpoint, personalityOverride string) string {
	return compose(cc, endpoint, personalityOverride, writeReplyFormat)
}

func compose(cc ConversationContext, endpoint Endpoint, personalityOverride string, grammarFn func(*strings.Builder, []DirectiveType)) string {
	var b strings.Builder

	personality := strings.TrimSpace(personalityOverride)
	if personality == "" {
		personality = strings.TrimSpace(cc.Personality)
	}
	if personality == "" {
		personality = defaultPersonality
	}
	b.WriteString(personality)
	b.WriteString("\n")

	if desc := strings.TrimSpace(cc.BusinessDescription); desc != "" {
		b.WriteString("\n## About the business\n")
		b.WriteString(desc)
		b.WriteString("\n")
	}
	if hours := strings.TrimSpace(cc.BusinessHours); hours != "" {
		b.WriteString("\n## Business hours\n")
		b.WriteString(hours)
		b.WriteString("\n")
	}

	b.WriteString("\n## Who you are talking to\n")
	name := cc.Actor.Name
	if name == "" {
		name = "unknown"
	}
	fmt.Fprintf(&b, "Name: %s\nRole: %s\n", name, tierDescription(cc.Actor.Tier))

	if len(cc.Snapshot) > 0 {
		b.WriteString("\n## Business data\n")
		writeSnapshot(&b, cc.Snapshot)
	}

	if len(cc.KnowledgeBase) > 0 {
		b.WriteString("\n## Knowledge base\n")
		for _, k := range cc.KnowledgeBase {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", strings.TrimSpace(k.Question), strings.TrimSpace(k.Answer))
		}
	}

	if len(cc.MenuOptions) > 0 {
		b.WriteString("\n## Menu options you can offer\n")
		for _, opt := range cc.MenuOptions {
			fmt.Fprintf(&b, "- %s (%s)\n", opt.Label, opt.Action)
		}
	}

	grammarFn(&b, AllowedDirectives(endpoint, cc.Actor.Tier))
	return b.String()
}

func tierDescription(t RoleTier) string {
	switch t {
	case TierOperator:
		return "platform operator (sees every organization figure)"
	case TierAdmin:
		return "organization administrator"
	case TierReseller:
		return "reseller (sees only the customers they referred)"
	case TierCustomer:
		return "customer (sees only their own services and charges)"
	}
	return string(t)
}

func writeSnapshot(b *strings.Builder, s Snapshot) {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		label := snapshotLabels[k]
		if label == "" {
			label = k
		}
		switch v := s[k].(type) {
		case []billing.ChargePreview:
			fmt.Fprintf(b, "%s:", label)
			if len(v) == 0 {
				b.WriteString(" none\n")
				continue
			}
			b.WriteString("\n")
			for _, ch := range v {
				fmt.Fprintf(b, "  - [%s] %s: %s due %s\n", ch.ID, ch.CustomerName, formatAmount(ch.Amount), ch.DueDate.Format(dateLayout))
			}
		case []billing.ServicePreview:
			fmt.Fprintf(b, "%s:", label)
			if len(v) == 0 {
				b.WriteString(" none\n")
				continue
			}
			b.WriteString("\n")
			for _, svc := range v {
				who := ""
				if svc.CustomerName != "" {
					who = " for " + svc.CustomerName
				}
				fmt.Fprintf(b, "  - [%s] %s%s expires %s\n", svc.ID, svc.Name, who, svc.ExpiresAt.Format(dateLayout))
			}
		case []billing.ExpensePreview:
			fmt.Fprintf(b, "%s:", label)
			if len(v) == 0 {
				b.WriteString(" none\n")
				continue
			}
			b.WriteString("\n")
			for _, e := range v {
				fmt.Fprintf(b, "  - [%s] %s: %s due %s\n", e.ID, e.Description, formatAmount(e.Amount), e.DueDate.Format(dateLayout))
			}
		case float64:
			fmt.Fprintf(b, "%s: %s\n", label, formatAmount(v))
		case time.Time:
			fmt.Fprintf(b, "%s: %s\n", label, v.Format(dateLayout))
		default:
			fmt.Fprintf(b, "%s: %v\n", label, v)
		}
	}
}

func writeGrammar(b *strings.Builder, types []DirectiveType) {
	b.WriteString("\n## Actions\n")
	if len(types) == 0 {
		b.WriteString("You cannot perform actions in this conversation. Never emit an [ACTION:...] tag.\n")
		return
	}
	b.WriteString("When the user clearly asks for one of the operations below, add exactly one action tag at the very end of your reply, in the form [ACTION:<type>:<json-object>]. Emit at most one tag per reply, never explain the tag, and only use ids that appear in the business data or in earlier messages.\n")
	for _, t := range types {
		entry := grammar[t]
		fmt.Fprintf(b, "- %s: %s\n  Tag: [ACTION:%s:%s]\n", t, entry.summary, t, entry.example)
		writeFieldRules(b, t, entry)
	}
}

func writeReplyFormat(b *strings.Builder, types []DirectiveType) {
	b.WriteString("\n## Reply format\n")
	b.WriteString(`Reply with a JSON object {"message": "<text for the user>", "action": null}.` + "\n")
	if len(types) == 0 {
		b.WriteString("You cannot perform actions in this conversation. Always set action to null.\n")
		return
	}
	b.WriteString(`When the user clearly asks for one of the operations below, set action to {"type": "<type>", "payload": {...}} instead of null. Request at most one action per reply and only use ids that appear in the business data or in earlier messages.` + "\n")
	for _, t := range types {
		entry := grammar[t]
		fmt.Fprintf(b, "- %s: %s\n  Payload: %s\n", t, entry.summary, entry.example)
		writeFieldRules(b, t, entry)
	}
}

func writeFieldRules(b *strings.Builder, t DirectiveType, entry directiveDoc) {
	if len(entry.required) > 0 {
		fmt.Fprintf(b, "  Required: %s\n", strings.Join(entry.required, ", "))
	}
	if len(entry.optional) > 0 {
		fmt.Fprintf(b, "  Optional: %s\n", strings.Join(entry.optional, ", "))
	}
	if t.RequiresConfirmation() {
		b.WriteString("  This action is irreversible: describe what will happen and ask the user to reply yes to confirm.\n")
	}
}
