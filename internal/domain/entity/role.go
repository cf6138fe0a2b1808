// Package entity contains the core business objects of the project.
package entity

import "slices"

// Role is the closed set of actor roles. A role is assigned at signup and never changes.
type Role string

const (
	// RoleCustomer places and tracks orders.
	RoleCustomer Role = "customer"
	// RoleCook accepts, prepares and delivers orders.
	RoleCook Role = "cook"
	// RoleAdmin verifies cooks and watches the whole platform.
	RoleAdmin Role = "admin"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleCook, RoleAdmin:
		return true
	default:
		return false
	}
}

// Capability names one non-transition action an actor may perform.
// Order status changes are governed by the transition table in order_status.go.
type Capability string

const (
	CapPlaceOrder          Capability = "order:place"
	CapSetDeliveryEstimate Capability = "order:set-eta"
	CapWatchAllOrders      Capability = "order:watch-all"
	CapChatOnOrder         Capability = "order:chat"
	CapVerifyActors        Capability = "actor:verify"
	CapViewDashboard       Capability = "dashboard:view"
	CapUploadMedia         Capability = "media:upload"
)

var capabilities = map[Role][]Capability{
	RoleCustomer: {CapPlaceOrder, CapChatOnOrder, CapUploadMedia},
	RoleCook:     {CapSetDeliveryEstimate, CapChatOnOrder, CapUploadMedia},
	RoleAdmin:    {CapWatchAllOrders, CapVerifyActors, CapViewDashboard, CapUploadMedia},
}

// Can reports whether the role holds the capability.
func (r Role) Can(c Capability) bool {
	return slices.Contains(capabilities[r], c)
}

// Roles is a slice of Role for convenience.
type Roles []Role

// Contains checks if the roles slice contains a specific role.
func (rs Roles) Contains(role Role) bool {
	return slices.Contains(rs, role)
}

// ToStrings converts Roles to []string for JWT compatibility.
func (rs Roles) ToStrings() []string {
	result := make([]string, len(rs))
	for i, r := range rs {
		result[i] = r.String()
	}

	return result
}

// RolesFromStrings converts []string to Roles, filtering out invalid role strings.
func RolesFromStrings(ss []string) Roles {
	result := make(Roles, 0, len(ss))
	for _, s := range ss {
		role := Role(s)
		if role.IsValid() {
			result = append(result, role)
		}
	}

	return result
}
