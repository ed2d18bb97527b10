package mapper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/docmap/internal/model"
	"github.com/rcliao/docmap/internal/store"
	"github.com/spf13/cast"
)

// Repository is a collection handle for models of type M: documents come
// from a store collection and are mapped through a Mapper.
type Repository[M model.Model] struct {
	coll   store.Collection
	mapper *Mapper[M]
}

// NewRepository pairs coll with mp.
func NewRepository[M model.Model](coll store.Collection, mp *Mapper[M]) *Repository[M] {
	return &Repository[M]{coll: coll, mapper: mp}
}

// Collection returns the underlying store collection.
func (r *Repository[M]) Collection() store.Collection { return r.coll }

// Mapper returns the mapper.
func (r *Repository[M]) Mapper() *Mapper[M] { return r.mapper }

// ByKey returns the model stored under key. found is false when no such
// document exists.
func (r *Repository[M]) ByKey(ctx context.Context, key string) (m M, found bool, err error) {
	doc, err := r.coll.LookupByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return m, false, nil
	}
	if err != nil {
		return m, false, err
	}
	m, err = r.mapper.ToModel(doc)
	if err != nil {
		return m, false, err
	}
	return m, true, nil
}

// ByExample returns the models whose documents match example.
func (r *Repository[M]) ByExample(ctx context.Context, example model.Fields) ([]M, error) {
	docs, err := r.coll.QueryByExample(ctx, example)
	if err != nil {
		return nil, err
	}
	return r.toModels(docs)
}

// All returns every model in the collection.
func (r *Repository[M]) All(ctx context.Context) ([]M, error) {
	docs, err := r.coll.All(ctx)
	if err != nil {
		return nil, err
	}
	return r.toModels(docs)
}

func (r *Repository[M]) toModels(docs []model.Document) ([]M, error) {
	out := make([]M, 0, len(docs))
	for _, d := range docs {
		m, err := r.mapper.ToModel(d)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Save validates and writes m. A model without a key is inserted and
// registered in the identity map; otherwise its document is replaced. Key,
// revision and timestamps on m are updated from the store's answer, and
// its unset reverse references are bound so later reads through the
// identity map see them. Lifecycle hooks run as documented in model.
func (r *Repository[M]) Save(ctx context.Context, m M) error {
	if isNilModel(m) {
		return fmt.Errorf("save %s: nil model", r.coll.Name())
	}
	create := m.GetKey() == ""

	if h, ok := any(m).(model.BeforeValidator); ok {
		if err := h.BeforeValidation(ctx); err != nil {
			return fmt.Errorf("before validation: %w", err)
		}
	}
	if err := r.mapper.Validate(m); err != nil {
		return err
	}
	if h, ok := any(m).(model.AfterValidator); ok {
		if err := h.AfterValidation(ctx); err != nil {
			return fmt.Errorf("after validation: %w", err)
		}
	}
	if h, ok := any(m).(model.BeforeSaver); ok {
		if err := h.BeforeSave(ctx); err != nil {
			return fmt.Errorf("before save: %w", err)
		}
	}
	if h, ok := any(m).(model.BeforeCreator); ok && create {
		if err := h.BeforeCreate(ctx); err != nil {
			return fmt.Errorf("before create: %w", err)
		}
	}
	if h, ok := any(m).(model.BeforeUpdater); ok && !create {
		if err := h.BeforeUpdate(ctx); err != nil {
			return fmt.Errorf("before update: %w", err)
		}
	}

	fields, err := r.mapper.ToDocument(m)
	if err != nil {
		return err
	}

	var saved model.Document
	if create {
		saved, err = r.coll.Insert(ctx, model.Document{Fields: fields})
	} else {
		saved, err = r.coll.Replace(ctx, model.Document{Key: m.GetKey(), Rev: m.GetRev(), Fields: fields})
	}
	if err != nil {
		return fmt.Errorf("save %s: %w", r.coll.Name(), err)
	}

	m.SetKey(saved.Key)
	m.SetRev(saved.Rev)
	if ts, ok := any(m).(model.Timestamped); ok {
		ts.SetTimestamps(timeField(saved.Fields[model.CreatedAtField]), timeField(saved.Fields[model.UpdatedAtField]))
	}
	r.mapper.attach(m)
	if create {
		_, err = r.mapper.identity.RetrieveOrStore(r.mapper.typ, saved.Key, func() (model.Model, error) { return m, nil })
	} else {
		// The saved instance reflects the stored document, so it becomes
		// canonical even if another instance was mapped for this key.
		_, err = r.mapper.identity.Store(m)
	}
	if err != nil {
		return err
	}
	r.mapper.logger.Debug().Str("collection", r.coll.Name()).Str("key", saved.Key).Str("rev", saved.Rev).Msg("saved model")

	if h, ok := any(m).(model.AfterCreator); ok && create {
		if err := h.AfterCreate(ctx); err != nil {
			return fmt.Errorf("after create: %w", err)
		}
	}
	if h, ok := any(m).(model.AfterUpdater); ok && !create {
		if err := h.AfterUpdate(ctx); err != nil {
			return fmt.Errorf("after update: %w", err)
		}
	}
	if h, ok := any(m).(model.AfterSaver); ok {
		if err := h.AfterSave(ctx); err != nil {
			return fmt.Errorf("after save: %w", err)
		}
	}
	return nil
}

// Delete removes m's document and evicts m from the identity map. The
// model keeps its attributes but loses its key and revision.
func (r *Repository[M]) Delete(ctx context.Context, m M) error {
	if isNilModel(m) || m.GetKey() == "" {
		return fmt.Errorf("delete %s: %w", r.coll.Name(), store.ErrNotFound)
	}
	if h, ok := any(m).(model.BeforeDestroyer); ok {
		if err := h.BeforeDestroy(ctx); err != nil {
			return fmt.Errorf("before destroy: %w", err)
		}
	}

	key := m.GetKey()
	if err := r.coll.Delete(ctx, key); err != nil {
		return err
	}
	r.mapper.identity.Delete(r.mapper.typ, key)
	m.SetKey("")
	m.SetRev("")
	r.mapper.logger.Debug().Str("collection", r.coll.Name()).Str("key", key).Msg("deleted model")

	if h, ok := any(m).(model.AfterDestroyer); ok {
		if err := h.AfterDestroy(ctx); err != nil {
			return fmt.Errorf("after destroy: %w", err)
		}
	}
	return nil
}

// LookupModel implements Source.
func (r *Repository[M]) LookupModel(ctx context.Context, key string) (model.Model, bool, error) {
	m, found, err := r.ByKey(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	return m, true, nil
}

// QueryModels implements Source.
func (r *Repository[M]) QueryModels(ctx context.Context, example model.Fields) ([]model.Model, error) {
	found, err := r.ByExample(ctx, example)
	if err != nil {
		return nil, err
	}
	out := make([]model.Model, len(found))
	for i, m := range found {
		out[i] = m
	}
	return out, nil
}

func timeField(v any) time.Time {
	if t, ok := v.(time.Time); ok {
		return t
	}
	t, _ := cast.ToTimeE(v)
	return t
}
