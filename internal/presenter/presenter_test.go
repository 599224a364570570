package presenter

import (
	"testing"
	"time"

	"github.com/covercompare/membergate/pkg/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func profile(status schema.Status, paidUntil *time.Time) schema.Profile {
	p := schema.NewProfile(uuid.New(), "member", now)
	p.Status = status
	p.PaidUntil = paidUntil
	return p
}

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestPresent_Deleted(t *testing.T) {
	for _, paid := range []*time.Time{nil, at(-48 * time.Hour), at(2 * 24 * time.Hour)} {
		b := Present(profile(schema.StatusDeleted, paid), now)
		assert.Equal(t, schema.SeverityNone, b.Severity)
		assert.Empty(t, b.Message)
	}
}

func TestPresent_ActiveWithoutPaidUntil(t *testing.T) {
	b := Present(profile(schema.StatusActive, nil), now)
	assert.Equal(t, schema.SeverityNone, b.Severity)
}

func TestPresent_Expired(t *testing.T) {
	b := Present(profile(schema.StatusActive, at(-time.Minute)), now)
	assert.Equal(t, schema.SeverityError, b.Severity)
	assert.Contains(t, b.Message, "2025-03-10")
}

func TestPresent_ExpiryWindow(t *testing.T) {
	tests := []struct {
		name     string
		offset   time.Duration
		severity schema.Severity
		days     string
	}{
		{"expires now", 0, schema.SeverityWarn, "0 days"},
		{"in an hour", time.Hour, schema.SeverityWarn, "1 day "},
		{"three days", 3 * 24 * time.Hour, schema.SeverityWarn, "3 days"},
		{"seven days", 7 * 24 * time.Hour, schema.SeverityWarn, "7 days"},
		{"just past seven", 7*24*time.Hour + time.Second, schema.SeverityNone, ""},
		{"eight days", 8 * 24 * time.Hour, schema.SeverityNone, ""},
		{"a year", 365 * 24 * time.Hour, schema.SeverityNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Present(profile(schema.StatusActive, at(tt.offset)), now)
			assert.Equal(t, tt.severity, b.Severity)
			if tt.days != "" {
				assert.Contains(t, b.Message, tt.days)
			}
		})
	}
}

func TestPresent_ThreeDaysMentionsCountAndDate(t *testing.T) {
	b := Present(profile(schema.StatusActive, at(3*24*time.Hour)), now)
	assert.Equal(t, schema.SeverityWarn, b.Severity)
	assert.Contains(t, b.Message, "3")
	assert.Contains(t, b.Message, "2025-03-13")
}

func TestPresent_PendingAndSuspended(t *testing.T) {
	for _, s := range []schema.Status{schema.StatusPending, schema.StatusSuspended} {
		b := Present(profile(s, nil), now)
		assert.Equal(t, schema.SeverityWarn, b.Severity)
		assert.Contains(t, b.Message, "administrator")
	}
}

func TestPresent_UnknownStatus(t *testing.T) {
	b := Present(profile("archived", nil), now)
	assert.Equal(t, schema.SeverityInfo, b.Severity)
	assert.Contains(t, b.Message, "unavailable")
}

func TestDaysUntil(t *testing.T) {
	assert.Equal(t, 0, DaysUntil(now, now))
	assert.Equal(t, 1, DaysUntil(now.Add(time.Second), now))
	assert.Equal(t, 2, DaysUntil(now.Add(25*time.Hour), now))
}
