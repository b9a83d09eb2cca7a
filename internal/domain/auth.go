package domain

// SubjectType differentiates members vs staff principals.
type SubjectType string

const (
	SubjectTypeUser  SubjectType = "USER"
	SubjectTypeStaff SubjectType = "STAFF"
)

// Actor is whoever triggers an operation, identified by platform user ID.
type Actor struct {
	ID          string
	DisplayName string
	Staff       bool
}
