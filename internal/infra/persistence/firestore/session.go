package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
)

// session routes reads and writes through a transaction when one is open and
// through the client otherwise. Inside a transaction every read must happen
// before the first write.
type session struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func (s session) get(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	if s.tx != nil {
		return s.tx.Get(ref)
	}

	return ref.Get(ctx)
}

func (s session) all(ctx context.Context, q firestore.Query) ([]*firestore.DocumentSnapshot, error) {
	if s.tx != nil {
		return s.tx.Documents(q).GetAll()
	}

	return q.Documents(ctx).GetAll()
}

func (s session) create(ctx context.Context, ref *firestore.DocumentRef, data any) error {
	if s.tx != nil {
		return s.tx.Create(ref, data)
	}
	_, err := ref.Create(ctx, data)

	return err
}

func (s session) update(ctx context.Context, ref *firestore.DocumentRef, updates []firestore.Update) error {
	if s.tx != nil {
		return s.tx.Update(ref, updates)
	}
	_, err := ref.Update(ctx, updates)

	return err
}

func (s session) delete(ctx context.Context, ref *firestore.DocumentRef) error {
	if s.tx != nil {
		return s.tx.Delete(ref, firestore.Exists)
	}
	_, err := ref.Delete(ctx, firestore.Exists)

	return err
}

// atomically runs fn in the open transaction, or in a new one.
func (s session) atomically(ctx context.Context, fn func(ctx context.Context, s session) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, session{client: s.client, tx: tx})
	})
}
