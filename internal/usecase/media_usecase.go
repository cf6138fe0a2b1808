package usecase

import (
	"context"

	"kitchenline/internal/domain/entity"
)

// Upload kinds.
const (
	MediaKindProfile  = "profile"
	MediaKindDish     = "dish"
	MediaKindDocument = "document"
)

// UploadInput is one file captured by the UI.
type UploadInput struct {
	Kind        string `validate:"required,oneof=profile dish document"`
	ContentType string `validate:"required"`
	Data        []byte `validate:"required"`
}

// UploadOutput tells the caller where the file is stored.
type UploadOutput struct {
	Path string
	URL  string
}

// MediaUsecase stores photos and documents.
type MediaUsecase interface {
	// Upload stores the file under the actor's prefix. Profile uploads also
	// become the actor's photo.
	Upload(ctx context.Context, actor *entity.Actor, input UploadInput) (*UploadOutput, error)
}
