package impl

import (
	"context"
	"strings"
	"testing"

	"kitchenline/config"
	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/infra/storage"
	"kitchenline/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMediaService(t *testing.T, st *testStore, maxBytes int64) usecase.MediaUsecase {
	t.Helper()

	blobs, err := storage.OpenBlobStorage(context.Background(), config.BlobConfig{
		BucketURL:     "mem://",
		PublicBaseURL: "https://cdn.example.com/media/",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = blobs.Close() })

	cfg := newTestConfig()
	cfg.Blob = &config.BlobConfig{MaxUploadBytes: maxBytes}

	return NewMediaService(MediaServiceParams{
		Storage:   blobs,
		ActorRepo: st.actors,
		Config:    cfg,
		Logger:    newDiscardLogger(),
	})
}

func TestMediaService_UploadProfilePhoto(t *testing.T) {
	st := newTestStore()
	cook := st.seedActor(t, entity.RoleCook, "May", true)
	svc := newTestMediaService(t, st, 1024)

	out, err := svc.Upload(context.Background(), cook, usecase.UploadInput{
		Kind:        usecase.MediaKindProfile,
		ContentType: "image/png; charset=binary",
		Data:        []byte("\x89PNG fake"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Path, "actors/"+cook.ID+"/profile/"))
	assert.True(t, strings.HasSuffix(out.Path, ".png"))
	assert.Equal(t, "https://cdn.example.com/media/"+out.Path, out.URL)

	stored, err := st.actors.FindActorByID(context.Background(), cook.ID)
	require.NoError(t, err)
	assert.Equal(t, out.URL, stored.Profile.PhotoURL)
}

func TestMediaService_UploadDishLeavesProfile(t *testing.T) {
	st := newTestStore()
	cook := st.seedActor(t, entity.RoleCook, "May", true)
	svc := newTestMediaService(t, st, 1024)

	out, err := svc.Upload(context.Background(), cook, usecase.UploadInput{
		Kind:        usecase.MediaKindDish,
		ContentType: "image/jpeg",
		Data:        []byte("jpeg"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out.Path, ".jpg"))

	stored, err := st.actors.FindActorByID(context.Background(), cook.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Profile.PhotoURL)
}

func TestMediaService_UploadRejections(t *testing.T) {
	st := newTestStore()
	cook := st.seedActor(t, entity.RoleCook, "May", true)
	svc := newTestMediaService(t, st, 8)

	tests := []struct {
		name    string
		actor   *entity.Actor
		input   usecase.UploadInput
		wantErr error
	}{
		{"signed out", nil, usecase.UploadInput{Kind: usecase.MediaKindDish, ContentType: "image/png", Data: []byte("x")}, domainerrors.ErrUnauthenticated},
		{"unknown kind", cook, usecase.UploadInput{Kind: "video", ContentType: "image/png", Data: []byte("x")}, domainerrors.ErrValidationFailed},
		{"too large", cook, usecase.UploadInput{Kind: usecase.MediaKindDish, ContentType: "image/png", Data: []byte("123456789")}, domainerrors.ErrMediaTooLarge},
		{"pdf dish", cook, usecase.UploadInput{Kind: usecase.MediaKindDish, ContentType: "application/pdf", Data: []byte("x")}, domainerrors.ErrUnsupportedMedia},
		{"garbage content type", cook, usecase.UploadInput{Kind: usecase.MediaKindDish, ContentType: ";;", Data: []byte("x")}, domainerrors.ErrUnsupportedMedia},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tt.actor, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
