// Package presenter turns a membership record into the banner shown to its owner.
package presenter

import (
	"fmt"
	"math"
	"time"

	"github.com/covercompare/membergate/pkg/schema"
)

// WarnWindowDays is how close to expiry an active membership starts warning.
const WarnWindowDays = 7

const dateLayout = "2006-01-02"

// Present classifies p as of now. It never fails; unknown states yield an info banner.
func Present(p schema.Profile, now time.Time) schema.Banner {
	switch p.Status {
	case schema.StatusDeleted:
		return schema.Banner{Severity: schema.SeverityNone}

	case schema.StatusActive:
		return presentActive(p.PaidUntil, now)

	case schema.StatusPending, schema.StatusSuspended:
		return schema.Banner{
			Severity: schema.SeverityWarn,
			Message:  "Your membership is pending. Please contact an administrator.",
		}
	}

	return schema.Banner{
		Severity: schema.SeverityInfo,
		Message:  "Membership status unavailable.",
	}
}

func presentActive(paidUntil *time.Time, now time.Time) schema.Banner {
	if paidUntil == nil {
		return schema.Banner{Severity: schema.SeverityNone}
	}

	expiry := paidUntil.UTC().Format(dateLayout)
	if paidUntil.Before(now) {
		return schema.Banner{
			Severity: schema.SeverityError,
			Message:  fmt.Sprintf("Your membership expired on %s. Please renew to keep access.", expiry),
		}
	}

	days := DaysUntil(*paidUntil, now)
	if days > WarnWindowDays {
		return schema.Banner{Severity: schema.SeverityNone}
	}

	unit := "days"
	if days == 1 {
		unit = "day"
	}
	return schema.Banner{
		Severity: schema.SeverityWarn,
		Message:  fmt.Sprintf("Your membership expires in %d %s on %s.", days, unit, expiry),
	}
}

// DaysUntil is the calendar-day ceiling of the time from now to t.
func DaysUntil(t, now time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}
