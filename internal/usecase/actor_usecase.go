package usecase

import (
	"context"

	"kitchenline/internal/domain/entity"
)

// UpdateProfileInput carries optional profile changes. Nil fields are left untouched.
type UpdateProfileInput struct {
	DisplayName        *string `validate:"omitempty,min=1,max=100"`
	Phone              *string `validate:"omitempty,max=32"`
	Address            *string `validate:"omitempty,max=500"`
	PhotoURL           *string `validate:"omitempty,url,max=2048"`
	Bio                *string `validate:"omitempty,max=2000"`
	DeliveryFee        *int64  `validate:"omitempty,gte=0"`
	OnboardingComplete *bool
}

// ActorUsecase defines profile and account management operations.
type ActorUsecase interface {
	// GetProfile returns the actor's current record.
	GetProfile(ctx context.Context, actor *entity.Actor) (*entity.Actor, error)

	// UpdateProfile applies the given changes to the actor's own profile.
	UpdateProfile(ctx context.Context, actor *entity.Actor, input UpdateProfileInput) (*entity.Actor, error)

	// AddPushToken registers a device token for push mirroring.
	AddPushToken(ctx context.Context, actor *entity.Actor, token string) error

	// VerifyActor marks another actor as verified. Admin only.
	VerifyActor(ctx context.Context, admin *entity.Actor, actorID string) (*entity.Actor, error)
}
