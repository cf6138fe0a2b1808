package entity

import (
	"slices"
	"time"
)

// UnknownPartyName is shown wherever an order references an actor record that no longer exists.
const UnknownPartyName = "Unknown party"

// Actor is an authenticated identity holding exactly one role.
type Actor struct {
	ID                 string    // Stable identifier, equal to the auth provider's UID.
	Role               Role      // Immutable after creation.
	Email              string    // Login email, copied from the auth provider at signup.
	Profile            Profile   // Editable profile fields.
	Verified           bool      // Set by an admin. Cooks must be verified before they are listed.
	OnboardingComplete bool      // Set by the actor once the onboarding flow is finished.
	PushTokens         []string  // FCM registration tokens of the actor's devices.
	CreatedAt          time.Time // Timestamp of when the actor record was created.
	UpdatedAt          time.Time // Timestamp of the last modification.
}

// Profile holds the editable, role-agnostic profile fields of an actor.
type Profile struct {
	DisplayName string // Name shown to counterparties.
	Phone       string // Contact phone number.
	Address     string // Default delivery address (customers) or kitchen address (cooks).
	PhotoURL    string // Avatar uploaded through blob storage.
	Bio         string // Free text shown on the cook's page.
	DeliveryFee *int64 // Cook-specific delivery fee in minor units. Nil uses the platform default.
}

// ProfileUpdate carries optional profile changes. Nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName        *string
	Phone              *string
	Address            *string
	PhotoURL           *string
	Bio                *string
	DeliveryFee        *int64
	OnboardingComplete *bool
}

// Apply copies every non-nil field of u onto the actor.
func (u ProfileUpdate) Apply(a *Actor) {
	if u.DisplayName != nil {
		a.Profile.DisplayName = *u.DisplayName
	}
	if u.Phone != nil {
		a.Profile.Phone = *u.Phone
	}
	if u.Address != nil {
		a.Profile.Address = *u.Address
	}
	if u.PhotoURL != nil {
		a.Profile.PhotoURL = *u.PhotoURL
	}
	if u.Bio != nil {
		a.Profile.Bio = *u.Bio
	}
	if u.DeliveryFee != nil {
		fee := *u.DeliveryFee
		a.Profile.DeliveryFee = &fee
	}
	if u.OnboardingComplete != nil {
		a.OnboardingComplete = *u.OnboardingComplete
	}
}

// AddPushToken registers token once.
func (a *Actor) AddPushToken(token string) bool {
	if token == "" || slices.Contains(a.PushTokens, token) {
		return false
	}
	a.PushTokens = append(a.PushTokens, token)

	return true
}

// RemovePushTokens drops every token in tokens and reports how many were removed.
func (a *Actor) RemovePushTokens(tokens []string) int {
	before := len(a.PushTokens)
	a.PushTokens = slices.DeleteFunc(a.PushTokens, func(t string) bool {
		return slices.Contains(tokens, t)
	})

	return before - len(a.PushTokens)
}

// PartyName returns the display name of a, or UnknownPartyName when a is nil.
func PartyName(a *Actor) string {
	if a == nil {
		return UnknownPartyName
	}
	if a.Profile.DisplayName != "" {
		return a.Profile.DisplayName
	}

	return a.Email
}
