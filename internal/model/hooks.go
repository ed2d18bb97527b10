package model

import "context"

// Lifecycle hooks. A model opts in by implementing any of these; the
// repository calls them around writes. An error from a Before hook aborts
// the write. An error from an After hook is returned after the write has
// happened.
//
// Save runs, in order: BeforeValidation, validation, AfterValidation,
// BeforeSave, BeforeCreate or BeforeUpdate, the write, AfterCreate or
// AfterUpdate, AfterSave. Delete runs BeforeDestroy, the delete and
// AfterDestroy.
type (
	BeforeValidator interface {
		BeforeValidation(ctx context.Context) error
	}
	AfterValidator interface {
		AfterValidation(ctx context.Context) error
	}
	BeforeSaver interface {
		BeforeSave(ctx context.Context) error
	}
	AfterSaver interface {
		AfterSave(ctx context.Context) error
	}
	BeforeCreator interface {
		BeforeCreate(ctx context.Context) error
	}
	AfterCreator interface {
		AfterCreate(ctx context.Context) error
	}
	BeforeUpdater interface {
		BeforeUpdate(ctx context.Context) error
	}
	AfterUpdater interface {
		AfterUpdate(ctx context.Context) error
	}
	BeforeDestroyer interface {
		BeforeDestroy(ctx context.Context) error
	}
	AfterDestroyer interface {
		AfterDestroy(ctx context.Context) error
	}
)
