package firestore

import (
	"context"

	"kitchenline/internal/domain/repository"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

// isTransient reports whether a Firestore call may succeed when retried.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func classify(err error, msg string) error {
	if isTransient(err) {
		return errors.Wrap(repository.Unavailable(err), msg)
	}

	return errors.Wrap(err, msg)
}
