package assistant

import (
	"fmt"
	"time"

	"github.com/wolfman30/billing-assistant/internal/billing"
)

// expiryAlertDays is the inclusive forward window for service expiry alerts.
const expiryAlertDays = 7

// ComputeAlerts derives informational notices from a snapshot. Days are
// counted in UTC calendar days from now: a service expiring today or exactly
// seven days ahead qualifies, eight days does not.
func ComputeAlerts(snapshot Snapshot, now time.Time) []string {
	var alerts []string

	if n := intValue(snapshot[keyOverdueCount]); n > 0 {
		if total, ok := floatValue(snapshot[keyOverdueTotal]); ok && total > 0 {
			alerts = append(alerts, fmt.Sprintf("You have %d overdue %s totaling %s.", n, plural(n, "charge", "charges"), formatAmount(total)))
		} else {
			alerts = append(alerts, fmt.Sprintf("You have %d overdue %s.", n, plural(n, "charge", "charges")))
		}
	}

	today := utcDate(now)
	var (
		earliest     billing.ServicePreview
		earliestDays = -1
		expiring     int
	)
	for _, key := range []string{keyExpiringServices, keyActiveServices} {
		services, _ := snapshot[key].([]billing.ServicePreview)
		for _, svc := range services {
			days := int(utcDate(svc.ExpiresAt).Sub(today).Hours() / 24)
			if days < 0 || days > expiryAlertDays {
				continue
			}
			expiring++
			if earliestDays < 0 || days < earliestDays {
				earliest, earliestDays = svc, days
			}
		}
	}
	if expiring > 0 {
		alerts = append(alerts, expiryAlert(earliest, earliestDays, expiring))
	}
	return alerts
}

func expiryAlert(svc billing.ServicePreview, days, total int) string {
	name := svc.Name
	if svc.CustomerName != "" {
		name = fmt.Sprintf("%s (%s)", svc.Name, svc.CustomerName)
	}
	when := fmt.Sprintf("in %d %s", days, plural(days, "day", "days"))
	if days == 0 {
		when = "today"
	}
	msg := fmt.Sprintf("Service %s expires %s (%s).", name, when, svc.ExpiresAt.UTC().Format(dateLayout))
	if total > 1 {
		msg += fmt.Sprintf(" %d services expire within %d days.", total, expiryAlertDays)
	}
	return msg
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
