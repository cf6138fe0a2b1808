package repository

import (
	"context"
	"errors"

	"kitchenline/internal/domain/entity"
)

// Domain-specific errors for actor persistence.
var (
	// ErrActorNotFound is returned when an actor record does not exist.
	ErrActorNotFound = errors.New("actor not found")
	// ErrActorAlreadyExists is returned when an actor record with the same ID exists.
	ErrActorAlreadyExists = errors.New("actor already exists")
)

// ActorQuery filters actor feeds. Zero values match everything.
type ActorQuery struct {
	Role  entity.Role
	Limit int
}

// ActorRepository defines the interface for actor-related store operations.
type ActorRepository interface {
	// CreateActor persists a new actor. The ID must already be set.
	CreateActor(ctx context.Context, actor *entity.Actor) error

	// FindActorByID retrieves an actor by ID.
	FindActorByID(ctx context.Context, id string) (*entity.Actor, error)

	// UpdateActor overwrites the mutable fields of an existing actor.
	UpdateActor(ctx context.Context, actor *entity.Actor) error

	// WatchActors opens a live query over actors ordered by creation time.
	WatchActors(ctx context.Context, query ActorQuery, onSnapshot func([]*entity.Actor), onError func(error)) (Unsubscribe, error)
}
