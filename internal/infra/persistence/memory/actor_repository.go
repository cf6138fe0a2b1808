package memory

import (
	"cmp"
	"context"
	"slices"

	"kitchenline/internal/domain/constants"
	"kitchenline/internal/domain/entity"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/errors"
)

type actorRepository struct {
	store *Store
	tx    *txState
}

// NewActorRepository creates an ActorRepository over store.
func NewActorRepository(store *Store) repository.ActorRepository {
	return &actorRepository{store: store}
}

func (r *actorRepository) CreateActor(_ context.Context, actor *entity.Actor) error {
	if actor.ID == "" {
		return errors.New("actor id is required")
	}

	return write(r.store, r.tx, constants.CollectionActors, func(st *state) error {
		if _, ok := st.actors[actor.ID]; ok {
			return errors.WithStack(repository.ErrActorAlreadyExists)
		}
		st.actors[actor.ID] = record[entity.Actor]{seq: st.nextSeq(), value: *cloneActor(*actor)}

		return nil
	})
}

func (r *actorRepository) FindActorByID(_ context.Context, id string) (*entity.Actor, error) {
	var (
		found *entity.Actor
		ok    bool
	)
	read(r.store, r.tx, func(st *state) {
		var rec record[entity.Actor]
		if rec, ok = st.actors[id]; ok {
			found = cloneActor(rec.value)
		}
	})
	if !ok {
		return nil, errors.WithStack(repository.ErrActorNotFound)
	}

	return found, nil
}

func (r *actorRepository) UpdateActor(_ context.Context, actor *entity.Actor) error {
	return write(r.store, r.tx, constants.CollectionActors, func(st *state) error {
		rec, ok := st.actors[actor.ID]
		if !ok {
			return errors.WithStack(repository.ErrActorNotFound)
		}
		updated := *cloneActor(*actor)
		// Role and creation time are immutable.
		updated.Role = rec.value.Role
		updated.CreatedAt = rec.value.CreatedAt
		st.actors[actor.ID] = record[entity.Actor]{seq: rec.seq, value: updated}

		return nil
	})
}

func (r *actorRepository) WatchActors(ctx context.Context, query repository.ActorQuery, onSnapshot func([]*entity.Actor), _ func(error)) (repository.Unsubscribe, error) {
	return watch(ctx, r.store, constants.CollectionActors, func(st *state) []*entity.Actor {
		return queryActors(st, query)
	}, onSnapshot)
}

func queryActors(st *state, query repository.ActorQuery) []*entity.Actor {
	matched := make([]record[entity.Actor], 0, len(st.actors))
	for _, rec := range st.actors {
		if query.Role != "" && rec.value.Role != query.Role {
			continue
		}
		matched = append(matched, rec)
	}
	slices.SortFunc(matched, func(a, b record[entity.Actor]) int {
		if c := a.value.CreatedAt.Compare(b.value.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.seq, b.seq)
	})
	matched = limit(matched, query.Limit)

	out := make([]*entity.Actor, len(matched))
	for i, rec := range matched {
		out[i] = cloneActor(rec.value)
	}

	return out
}
