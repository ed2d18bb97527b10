package mapper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rcliao/docmap/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Shelf records every lifecycle hook it sees and fails the one named in
// failOn.
type Shelf struct {
	model.Base
	Label string `doc:"label" validate:"required"`

	calls  []string
	failOn string
}

func (s *Shelf) hook(name string) error {
	s.calls = append(s.calls, name)
	if s.failOn == name {
		return errors.New(name + " refused")
	}
	return nil
}

func (s *Shelf) BeforeValidation(context.Context) error {
	s.Label = strings.TrimSpace(s.Label)
	return s.hook("before_validation")
}
func (s *Shelf) AfterValidation(context.Context) error { return s.hook("after_validation") }
func (s *Shelf) BeforeSave(context.Context) error      { return s.hook("before_save") }
func (s *Shelf) AfterSave(context.Context) error       { return s.hook("after_save") }
func (s *Shelf) BeforeCreate(context.Context) error    { return s.hook("before_create") }
func (s *Shelf) AfterCreate(context.Context) error     { return s.hook("after_create") }
func (s *Shelf) BeforeUpdate(context.Context) error    { return s.hook("before_update") }
func (s *Shelf) AfterUpdate(context.Context) error     { return s.hook("after_update") }
func (s *Shelf) BeforeDestroy(context.Context) error   { return s.hook("before_destroy") }
func (s *Shelf) AfterDestroy(context.Context) error    { return s.hook("after_destroy") }

func newShelves(t *testing.T) (*Repository[*Shelf], *memCollection) {
	t.Helper()
	f := newFixture(t, nil)
	mp, err := New[*Shelf](nil, WithIdentityMap(f.identity), WithRegistry(f.registry))
	require.NoError(t, err)
	coll := newMemCollection("shelves")
	return NewRepository(coll, mp), coll
}

func TestHooksOnCreateUpdateDestroy(t *testing.T) {
	shelves, coll := newShelves(t)
	ctx := context.Background()

	s := &Shelf{Label: "  fiction "}
	require.NoError(t, shelves.Save(ctx, s))
	assert.Equal(t, []string{
		"before_validation", "after_validation", "before_save", "before_create",
		"after_create", "after_save",
	}, s.calls)
	assert.Equal(t, "fiction", coll.docs[s.GetKey()].Fields["label"])

	s.calls = nil
	require.NoError(t, shelves.Save(ctx, s))
	assert.Equal(t, []string{
		"before_validation", "after_validation", "before_save", "before_update",
		"after_update", "after_save",
	}, s.calls)

	s.calls = nil
	require.NoError(t, shelves.Delete(ctx, s))
	assert.Equal(t, []string{"before_destroy", "after_destroy"}, s.calls)
}

func TestBeforeHookErrorAbortsWrite(t *testing.T) {
	for _, hook := range []string{"before_validation", "after_validation", "before_save", "before_create"} {
		t.Run(hook, func(t *testing.T) {
			shelves, coll := newShelves(t)
			s := &Shelf{Label: "fiction", failOn: hook}

			err := shelves.Save(context.Background(), s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), hook+" refused")
			assert.Empty(t, coll.docs)
			assert.Empty(t, s.GetKey())
			assert.NotContains(t, s.calls, "after_save")
		})
	}
}

func TestBeforeUpdateErrorKeepsDocument(t *testing.T) {
	shelves, coll := newShelves(t)
	ctx := context.Background()

	s := &Shelf{Label: "fiction"}
	require.NoError(t, shelves.Save(ctx, s))
	rev := s.GetRev()

	s.Label, s.failOn = "poetry", "before_update"
	require.Error(t, shelves.Save(ctx, s))
	assert.Equal(t, "fiction", coll.docs[s.GetKey()].Fields["label"])
	assert.Equal(t, rev, s.GetRev())
}

func TestBeforeDestroyErrorKeepsDocument(t *testing.T) {
	shelves, coll := newShelves(t)
	ctx := context.Background()

	s := &Shelf{Label: "fiction"}
	require.NoError(t, shelves.Save(ctx, s))
	key := s.GetKey()

	s.failOn = "before_destroy"
	require.Error(t, shelves.Delete(ctx, s))
	assert.Contains(t, coll.docs, key)
	assert.Equal(t, key, s.GetKey())
	assert.True(t, shelves.Mapper().IdentityMap().Includes(shelves.Mapper().Type(), key))
}

func TestAfterHookErrorFollowsWrite(t *testing.T) {
	shelves, coll := newShelves(t)
	s := &Shelf{Label: "fiction", failOn: "after_create"}

	err := shelves.Save(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after create")
	require.NotEmpty(t, s.GetKey())
	assert.Contains(t, coll.docs, s.GetKey())
	assert.NotContains(t, s.calls, "after_save")
}

func TestBlankLabelFailsValidationAfterTrim(t *testing.T) {
	shelves, coll := newShelves(t)
	s := &Shelf{Label: "   "}

	err := shelves.Save(context.Background(), s)
	require.ErrorIs(t, err, ErrInvalidModel)
	assert.Empty(t, coll.docs)
	assert.Equal(t, []string{"before_validation"}, s.calls)
}
