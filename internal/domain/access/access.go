// Package access decides who may act on a workspace: the owner, or an
// operator whose email is on the workspace allow-list.
package access

import (
	"errors"
	"strings"
)

var (
	// ErrAuthRequired indicates no actor identity was supplied.
	ErrAuthRequired = errors.New("authentication required")
	// ErrForbidden indicates the actor is neither owner nor allow-listed.
	ErrForbidden = errors.New("forbidden")
)

// Actor is the identity a request carries.
type Actor struct {
	UID   string `json:"uid,omitempty"`
	Email string `json:"email,omitempty"`
}

// Anonymous reports whether the actor carries no identity at all.
func (a Actor) Anonymous() bool {
	return strings.TrimSpace(a.UID) == "" && strings.TrimSpace(a.Email) == ""
}

// Operator is one allow-list entry.
type Operator struct {
	Email string `json:"email"`
	// Role is parsed from an "email:role" entry. It does not affect
	// permission checks.
	Role string `json:"role,omitempty"`
}

// ParseOperators parses a comma or newline separated allow-list. Entries
// may carry a ":role" suffix. Emails are lower-cased; blanks and
// duplicates are dropped.
func ParseOperators(raw string) []Operator {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == ';'
	})
	seen := make(map[string]bool, len(fields))
	operators := make([]Operator, 0, len(fields))
	for _, field := range fields {
		entry := strings.TrimSpace(field)
		if entry == "" {
			continue
		}
		email, role, _ := strings.Cut(entry, ":")
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		operators = append(operators, Operator{Email: email, Role: strings.ToLower(strings.TrimSpace(role))})
	}
	return operators
}

// Policy is the permission-relevant part of a workspace.
type Policy struct {
	OwnerUID  string
	Operators []Operator
}

// IsOwner reports whether the actor owns the workspace.
func (p Policy) IsOwner(actor Actor) bool {
	uid := strings.TrimSpace(actor.UID)
	return uid != "" && uid == p.OwnerUID
}

// IsOperator reports whether the actor's email is allow-listed.
func (p Policy) IsOperator(actor Actor) bool {
	email := strings.ToLower(strings.TrimSpace(actor.Email))
	if email == "" {
		return false
	}
	for _, op := range p.Operators {
		if op.Email == email {
			return true
		}
	}
	return false
}

// RequireOperator allows the owner or any allow-listed operator.
func (p Policy) RequireOperator(actor Actor) error {
	if actor.Anonymous() {
		return ErrAuthRequired
	}
	if p.IsOwner(actor) || p.IsOperator(actor) {
		return nil
	}
	return ErrForbidden
}

// RequireOwner allows only the owner.
func (p Policy) RequireOwner(actor Actor) error {
	if actor.Anonymous() {
		return ErrAuthRequired
	}
	if p.IsOwner(actor) {
		return nil
	}
	return ErrForbidden
}
