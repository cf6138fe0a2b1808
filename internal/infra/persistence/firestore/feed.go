package firestore

import (
	"context"
	"sync"

	"kitchenline/internal/domain/repository"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// listen attaches a snapshot listener to q and decodes every query snapshot
// with decode. The listener stops on unsubscribe, on ctx cancellation or on
// the first error, which is reported through onError.
func listen[T any](ctx context.Context, q firestore.Query, decode func(*firestore.DocumentSnapshot) (T, error), onSnapshot func([]T), onError func(error)) (repository.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	listenCtx, cancel := context.WithCancel(ctx)
	it := q.Snapshots(listenCtx)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			it.Stop()
		})
	}

	go func() {
		for {
			qs, err := it.Next()
			if err != nil {
				if listenCtx.Err() != nil || status.Code(err) == codes.Canceled {
					return
				}
				onError(classify(err, "snapshot listener failed"))

				return
			}

			docs, err := qs.Documents.GetAll()
			if err != nil {
				onError(classify(err, "failed to read query snapshot"))

				return
			}

			records := make([]T, 0, len(docs))
			for _, doc := range docs {
				record, err := decode(doc)
				if err != nil {
					onError(err)

					return
				}
				records = append(records, record)
			}

			if listenCtx.Err() != nil {
				return
			}
			onSnapshot(records)
		}
	}()

	return unsubscribe, nil
}
