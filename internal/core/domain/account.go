package domain

import "time"

// Role is the closed set of principal kinds. The zero value is not a valid role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole converts a raw claim into a Role. Unknown values are rejected.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// CanSubmitReadings reports whether the role creates meter records for itself.
func (r Role) CanSubmitReadings() bool { return r == RoleUser }

// CanReadAllRecords reports whether the role sees records it does not own.
func (r Role) CanReadAllRecords() bool { return r == RoleAdmin }

// CanManagePayments reports whether the role may change payment status.
func (r Role) CanManagePayments() bool { return r == RoleAdmin }

func (r Role) String() string { return string(r) }

// Account is a registered identity owning a single meter.
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	MeterNumber  string    `json:"meter_number"`
	Address      string    `json:"address"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is the authenticated actor of a single request. It is built from a
// verified credential and passed explicitly to every service call.
type Principal struct {
	AccountID string
	Role      Role
}

// Authenticated reports whether the principal came from a verified credential.
func (p Principal) Authenticated() bool {
	return p.AccountID != "" && p.Role.Valid()
}
