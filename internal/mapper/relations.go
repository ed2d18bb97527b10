package mapper

import (
	"errors"
	"fmt"

	"github.com/rcliao/docmap/internal/assoc"
)

// Kind is the category of a relation.
type Kind int

const (
	// Embedded relations hold sub-models inline in the owning document.
	Embedded Kind = iota + 1
	// ReferencedBy relations are the "one" side of a one-to-many: the
	// related documents carry a foreign key to the owner.
	ReferencedBy
	// References relations are the "many" side: the owning document
	// carries the related key under <name>_id.
	References
)

func (k Kind) String() string {
	switch k {
	case Embedded:
		return "embeds"
	case ReferencedBy:
		return "referenced_by"
	case References:
		return "references"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Relation is one declared relation.
type Relation struct {
	Name string
	Kind Kind
	// ForeignKey is the document field holding the relation key. Empty
	// means the naming convention applies: <name>_id for References,
	// <owner model name>_id for ReferencedBy.
	ForeignKey string
	// Policy only applies to ReferencedBy.
	Policy assoc.Policy
}

// RelationOption customises a declared relation.
type RelationOption func(*Relation)

// ForeignKey overrides the conventional foreign-key field name.
func ForeignKey(field string) RelationOption {
	return func(r *Relation) { r.ForeignKey = field }
}

// Live makes a ReferencedBy relation re-run its query on every access
// instead of caching the first result.
func Live() RelationOption {
	return func(r *Relation) { r.Policy = assoc.Live }
}

// Relations declares which model attributes are relations. Declarations
// accumulate; declaring one name under two kinds is recorded as an error
// and reported by Err and by New.
type Relations struct {
	order []string
	byKey map[string]Relation
	errs  []error
}

// NewRelations returns an empty declaration set.
func NewRelations() *Relations {
	return &Relations{byKey: map[string]Relation{}}
}

// Embeds declares name as an inline array of sub-models.
func (r *Relations) Embeds(name string) *Relations {
	return r.add(Relation{Name: name, Kind: Embedded})
}

// ReferencedBy declares name as the reverse side of a one-to-many.
func (r *Relations) ReferencedBy(name string, opts ...RelationOption) *Relations {
	return r.add(Relation{Name: name, Kind: ReferencedBy}, opts...)
}

// References declares name as a forward reference to a single model.
func (r *Relations) References(name string, opts ...RelationOption) *Relations {
	return r.add(Relation{Name: name, Kind: References}, opts...)
}

func (r *Relations) add(rel Relation, opts ...RelationOption) *Relations {
	for _, o := range opts {
		o(&rel)
	}
	if rel.Name == "" {
		r.errs = append(r.errs, fmt.Errorf("%s: empty relation name", rel.Kind))
		return r
	}
	if prev, ok := r.byKey[rel.Name]; ok {
		if prev.Kind != rel.Kind {
			r.errs = append(r.errs, fmt.Errorf("%q declared as both %s and %s", rel.Name, prev.Kind, rel.Kind))
			return r
		}
		r.byKey[rel.Name] = rel
		return r
	}
	r.order = append(r.order, rel.Name)
	r.byKey[rel.Name] = rel
	return r
}

// Err returns the accumulated declaration errors.
func (r *Relations) Err() error {
	return errors.Join(r.errs...)
}

// Lookup returns the relation declared under name.
func (r *Relations) Lookup(name string) (Relation, bool) {
	rel, ok := r.byKey[name]
	return rel, ok
}

// Of returns the relations of kind k in declaration order.
func (r *Relations) Of(k Kind) []Relation {
	var out []Relation
	for _, name := range r.order {
		if rel := r.byKey[name]; rel.Kind == k {
			out = append(out, rel)
		}
	}
	return out
}

// Names returns every relation name of kind k.
func (r *Relations) Names(k Kind) []string {
	var out []string
	for _, rel := range r.Of(k) {
		out = append(out, rel.Name)
	}
	return out
}
