package impl

import (
	"context"
	"log/slog"
	"mime"
	"path"
	"strconv"
	"time"

	"kitchenline/config"
	deliverycontext "kitchenline/internal/delivery/context"
	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/domain/service"
	"kitchenline/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const defaultMaxUploadBytes = 5 << 20

// mediaExtensions is the content-type allow-list per upload kind.
var mediaExtensions = map[string]map[string]string{
	usecase.MediaKindProfile: {
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
	},
	usecase.MediaKindDish: {
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
	},
	usecase.MediaKindDocument: {
		"image/jpeg":      ".jpg",
		"image/png":       ".png",
		"application/pdf": ".pdf",
	},
}

type mediaService struct {
	storage   service.BlobStorage
	actorRepo repository.ActorRepository
	maxBytes  int64
	logger    *slog.Logger
	now       func() time.Time
}

// MediaServiceParams holds dependencies for MediaService, injected by Fx.
type MediaServiceParams struct {
	fx.In

	Storage   service.BlobStorage
	ActorRepo repository.ActorRepository
	Config    *config.Config
	Logger    *slog.Logger
}

// NewMediaService is the constructor for mediaService.
func NewMediaService(params MediaServiceParams) usecase.MediaUsecase {
	maxBytes := int64(defaultMaxUploadBytes)
	if params.Config != nil && params.Config.Blob != nil && params.Config.Blob.MaxUploadBytes > 0 {
		maxBytes = params.Config.Blob.MaxUploadBytes
	}

	return &mediaService{
		storage:   params.Storage,
		actorRepo: params.ActorRepo,
		maxBytes:  maxBytes,
		logger:    params.Logger,
		now:       time.Now,
	}
}

func (s *mediaService) Upload(ctx context.Context, actor *entity.Actor, input usecase.UploadInput) (*usecase.UploadOutput, error) {
	if err := requireCapability(actor, entity.CapUploadMedia); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if int64(len(input.Data)) > s.maxBytes {
		return nil, errors.WithStack(domainerrors.ErrMediaTooLarge.WithDetails("limit is " + strconv.FormatInt(s.maxBytes, 10) + " bytes"))
	}

	mediaType, _, err := mime.ParseMediaType(input.ContentType)
	if err != nil {
		return nil, errors.WithStack(domainerrors.ErrUnsupportedMedia.WithDetails(input.ContentType))
	}
	ext, ok := mediaExtensions[input.Kind][mediaType]
	if !ok {
		return nil, errors.WithStack(domainerrors.ErrUnsupportedMedia.WithDetails(mediaType + " is not accepted for " + input.Kind))
	}

	objectPath := path.Join("actors", actor.ID, input.Kind, uuid.NewString()+ext)
	url, err := s.storage.Upload(ctx, objectPath, input.Data, mediaType)
	if err != nil {
		deliverycontext.GetLoggerOrDefault(ctx, s.logger).Error("Failed to upload media", slog.String("path", objectPath), slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrInternalError.WithDetails("upload failed"), err.Error())
	}

	if input.Kind == usecase.MediaKindProfile {
		if err := s.setPhoto(ctx, actor.ID, url); err != nil {
			return nil, err
		}
	}

	return &usecase.UploadOutput{Path: objectPath, URL: url}, nil
}

func (s *mediaService) setPhoto(ctx context.Context, actorID, url string) error {
	current, err := s.actorRepo.FindActorByID(ctx, actorID)
	if errors.Is(err, repository.ErrActorNotFound) {
		return errors.WithStack(domainerrors.ErrActorNotFound)
	}
	if err != nil {
		return storeError(err, "failed to find actor")
	}

	current.Profile.PhotoURL = url
	current.UpdatedAt = s.now()
	if err := s.actorRepo.UpdateActor(ctx, current); err != nil {
		return storeError(err, "failed to update profile photo")
	}

	return nil
}
