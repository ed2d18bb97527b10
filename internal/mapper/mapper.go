// Package mapper converts between store documents and domain models.
//
// A Mapper is built for one model type together with its Relations. Reading
// a keyed document goes through the identity map, so a given (type, key)
// yields the same instance until the map is reset. Embedded relations are
// decoded eagerly; References and ReferencedBy relations are bound to lazy
// association cells that resolve through a Registry on first access.
//
// Writing a model inlines embedded sub-models without key or revision,
// replaces each forward reference with its key under <name>_id, and drops
// reverse references, which are always derived on read.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/ettle/strcase"
	"github.com/rcliao/docmap/internal/assoc"
	"github.com/rcliao/docmap/internal/identitymap"
	"github.com/rcliao/docmap/internal/model"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
)

var (
	// ErrInvalidRelations is returned by New when the relation
	// declarations do not fit the model type.
	ErrInvalidRelations = errors.New("invalid relations")
	// ErrConstruction wraps failures of the model constructor.
	ErrConstruction = errors.New("cannot construct model")
	// ErrInvalidModel wraps validation failures of a model about to be
	// saved.
	ErrInvalidModel = errors.New("invalid model")
)

type config struct {
	identity  *identitymap.Map
	registry  *Registry
	name      string
	construct any
	logger    zerolog.Logger
}

// Option configures a Mapper.
type Option func(*config)

// WithIdentityMap makes the mapper use m instead of the process-wide map.
func WithIdentityMap(m *identitymap.Map) Option {
	return func(c *config) { c.identity = m }
}

// WithRegistry sets the registry used to resolve associations.
func WithRegistry(r *Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithName sets the model name used for the conventional reverse foreign
// key (<name>_id). Defaults to the snake_case Go type name.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithConstructor replaces the default Decode constructor.
func WithConstructor[M model.Model](fn Constructor[M]) Option {
	return func(c *config) { c.construct = fn }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

type boundRelation struct {
	Relation
	index []int
}

// Mapper maps documents to models of type M and back.
type Mapper[M model.Model] struct {
	typ       reflect.Type
	name      string
	relations *Relations
	schema    *schema
	identity  *identitymap.Map
	registry  *Registry
	construct Constructor[M]
	logger    zerolog.Logger

	embeds       []boundRelation
	references   []boundRelation
	referencedBy []boundRelation
	// derived holds every name that is removed before construction.
	derived []string
}

// New returns a mapper for M, which must be a pointer to a struct.
// Relation declarations are validated against M's fields.
func New[M model.Model](rel *Relations, opts ...Option) (*Mapper[M], error) {
	if rel == nil {
		rel = NewRelations()
	}
	t := reflect.TypeFor[M]()
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("mapper: %v is not a pointer to struct", t)
	}
	if err := rel.Err(); err != nil {
		return nil, fmt.Errorf("mapper %v: %w: %w", t, ErrInvalidRelations, err)
	}

	cfg := config{
		identity: identitymap.Default(),
		registry: DefaultRegistry(),
		name:     strcase.ToSnake(t.Elem().Name()),
		logger:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	s, err := schemaOf(t.Elem())
	if err != nil {
		return nil, fmt.Errorf("mapper: %w", err)
	}

	m := &Mapper[M]{
		typ:       t,
		name:      cfg.name,
		relations: rel,
		schema:    s,
		identity:  cfg.identity,
		registry:  cfg.registry,
		construct: Decode[M](),
		logger:    cfg.logger.With().Str("model", cfg.name).Logger(),
	}
	if cfg.construct != nil {
		fn, ok := cfg.construct.(Constructor[M])
		if !ok {
			return nil, fmt.Errorf("mapper %v: constructor builds %T", t, cfg.construct)
		}
		m.construct = fn
	}

	if err := m.bind(); err != nil {
		return nil, fmt.Errorf("mapper %v: %w: %w", t, ErrInvalidRelations, err)
	}
	return m, nil
}

func (m *Mapper[M]) bind() error {
	var errs []error
	for _, kind := range []Kind{Embedded, References, ReferencedBy} {
		for _, rel := range m.relations.Of(kind) {
			f, ok := m.schema.byName[rel.Name]
			if !ok {
				errs = append(errs, fmt.Errorf("%s %q: no such field", kind, rel.Name))
				continue
			}
			b := boundRelation{Relation: rel, index: f.index}
			switch kind {
			case Embedded:
				if f.kind != attributeField || (f.typ.Kind() != reflect.Slice && f.typ.Kind() != reflect.Array) {
					errs = append(errs, fmt.Errorf("embeds %q: field must be a slice of models", rel.Name))
					continue
				}
				m.embeds = append(m.embeds, b)
			case References:
				if f.kind != referenceField {
					errs = append(errs, fmt.Errorf("references %q: field must be an assoc.Ref", rel.Name))
					continue
				}
				if b.ForeignKey == "" {
					b.ForeignKey = rel.Name + "_id"
				}
				m.references = append(m.references, b)
				m.derived = append(m.derived, rel.Name)
			case ReferencedBy:
				if f.kind != collectionField {
					errs = append(errs, fmt.Errorf("referenced_by %q: field must be an assoc.Many", rel.Name))
					continue
				}
				if b.ForeignKey == "" {
					b.ForeignKey = m.name + "_id"
				}
				m.referencedBy = append(m.referencedBy, b)
				m.derived = append(m.derived, rel.Name)
			}
		}
	}
	return errors.Join(errs...)
}

// Type returns the model type M.
func (m *Mapper[M]) Type() reflect.Type { return m.typ }

// Name returns the model name used for reverse foreign keys.
func (m *Mapper[M]) Name() string { return m.name }

// Relations returns the relation declarations.
func (m *Mapper[M]) Relations() *Relations { return m.relations }

// IdentityMap returns the identity map the mapper consults.
func (m *Mapper[M]) IdentityMap() *identitymap.Map { return m.identity }

// ToModel maps doc to a model. A keyed document is looked up in the
// identity map first; on a hit the cached instance is returned and doc is
// not parsed again.
func (m *Mapper[M]) ToModel(doc model.Document) (M, error) {
	if doc.Key == "" {
		return m.build(doc)
	}
	obj, err := m.identity.RetrieveOrStore(m.typ, doc.Key, func() (model.Model, error) {
		built, err := m.build(doc)
		if err != nil {
			return nil, err
		}
		return built, nil
	})
	if err != nil {
		var zero M
		return zero, err
	}
	return obj.(M), nil
}

func (m *Mapper[M]) build(doc model.Document) (M, error) {
	var zero M
	fields := doc.Fields.Without(append([]string{model.KeyField, model.RevField}, m.derived...)...)

	obj, err := m.construct(fields)
	if err != nil {
		return zero, fmt.Errorf("%v %q: %w: %w", m.typ, doc.Key, ErrConstruction, err)
	}
	if isNilModel(obj) {
		return zero, fmt.Errorf("%v %q: %w: constructor returned nil", m.typ, doc.Key, ErrConstruction)
	}
	v := reflect.ValueOf(obj).Elem()

	for _, rel := range m.referencedBy {
		cell := v.FieldByIndex(rel.index).Addr().Interface().(assoc.Collection)
		cell.BindQuery(m.queryFunc(obj, rel), rel.Policy)
	}

	for _, rel := range m.references {
		cell := v.FieldByIndex(rel.index).Addr().Interface().(assoc.Reference)
		key := foreignKey(doc.Fields[rel.ForeignKey])
		if key == "" {
			cell.Clear()
			continue
		}
		cell.BindKey(key, m.lookupFunc(rel, key))
	}

	obj.SetKey(doc.Key)
	obj.SetRev(doc.Rev)
	m.logger.Debug().Str("key", doc.Key).Msg("built model")
	return obj, nil
}

// attach binds the unset reverse references of obj, a model built by
// application code rather than read from a document.
func (m *Mapper[M]) attach(obj M) {
	v := reflect.ValueOf(obj).Elem()
	for _, rel := range m.referencedBy {
		cell := v.FieldByIndex(rel.index).Addr().Interface().(assoc.Collection)
		if !cell.IsSet() {
			cell.BindQuery(m.queryFunc(obj, rel), rel.Policy)
		}
	}
}

func (m *Mapper[M]) queryFunc(owner M, rel boundRelation) assoc.QueryFunc {
	return func(ctx context.Context) ([]model.Model, error) {
		key := owner.GetKey()
		if key == "" {
			return nil, nil
		}
		src, err := m.registry.Lookup(rel.Name)
		if err != nil {
			return nil, err
		}
		m.logger.Debug().Str("relation", rel.Name).Str("key", key).Msg("resolving referenced_by")
		return src.QueryModels(ctx, model.Fields{rel.ForeignKey: key})
	}
}

func (m *Mapper[M]) lookupFunc(rel boundRelation, key string) assoc.LookupFunc {
	return func(ctx context.Context) (model.Model, bool, error) {
		src, err := m.registry.Lookup(rel.Name)
		if err != nil {
			return nil, false, err
		}
		m.logger.Debug().Str("relation", rel.Name).Str("key", key).Msg("resolving references")
		return src.LookupModel(ctx, key)
	}
}

// ToDocument maps obj to a document payload. Key and revision are not
// part of the payload; the store assigns them on write.
func (m *Mapper[M]) ToDocument(obj M) (model.Fields, error) {
	if isNilModel(obj) {
		return nil, fmt.Errorf("mapper %v: nil model", m.typ)
	}
	v := reflect.ValueOf(obj).Elem()
	out := m.schema.attributes(v).Without(model.KeyField, model.RevField)

	for _, rel := range m.embeds {
		fv := v.FieldByIndex(rel.index)
		if fv.Kind() == reflect.Slice && fv.IsNil() {
			delete(out, rel.Name)
			continue
		}
		inline := make([]model.Fields, 0, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			attrs, err := attributesOf(fv.Index(i))
			if err != nil {
				return nil, fmt.Errorf("embeds %q: %w", rel.Name, err)
			}
			if attrs == nil {
				continue
			}
			inline = append(inline, attrs.Without(model.KeyField, model.RevField))
		}
		out[rel.Name] = inline
	}

	for _, rel := range m.references {
		cell := v.FieldByIndex(rel.index).Addr().Interface().(assoc.Reference)
		delete(out, rel.Name)
		if key, ok := cell.Key(); ok {
			out[rel.ForeignKey] = key
		} else {
			delete(out, rel.ForeignKey)
		}
	}

	for _, rel := range m.referencedBy {
		delete(out, rel.Name)
	}

	return out, nil
}

func foreignKey(v any) string {
	if v == nil {
		return ""
	}
	return cast.ToString(v)
}

func isNilModel(obj model.Model) bool {
	if obj == nil {
		return true
	}
	rv := reflect.ValueOf(obj)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
