package models

// Status is an agent's presence state. The zero value is not a valid status.
type Status string

const (
	StatusAvailable Status = "Available"
	StatusActive    Status = "Active"
	StatusWrapUp    Status = "Wrap Up"
	StatusNotReady  Status = "Not Ready"
	StatusOffline   Status = "Offline"
)

// AllStatuses returns every valid status in display order.
func AllStatuses() []Status {
	return []Status{StatusAvailable, StatusActive, StatusWrapUp, StatusNotReady, StatusOffline}
}

// Valid reports whether s is one of the five presence states.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusActive, StatusWrapUp, StatusNotReady, StatusOffline:
		return true
	}
	return false
}

// ParseStatus converts a wire value into a Status. It does not coerce:
// "available" or "WrapUp" are rejected.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, st.Valid()
}

func (s Status) String() string { return string(s) }
