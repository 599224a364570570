package schema

// Severity tells the UI how to render a membership banner.
type Severity string

const (
	SeverityOK    Severity = "ok"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
	SeverityInfo  Severity = "info"
	// SeverityNone means no banner is shown.
	SeverityNone Severity = "none"
)

// Banner is the display classification of a profile's membership.
type Banner struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// FilterChanged is broadcast when an admin switches the list filter of the member dashboard.
type FilterChanged struct {
	Filter string `json:"filter"`
}
