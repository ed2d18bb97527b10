package mapper

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/ettle/strcase"
	"github.com/rcliao/docmap/internal/assoc"
	"github.com/rcliao/docmap/internal/model"
)

// TagName is the struct tag holding a field's document name.
const TagName = "doc"

type fieldKind int

const (
	attributeField fieldKind = iota
	referenceField
	collectionField
)

type field struct {
	name      string
	index     []int
	kind      fieldKind
	omitEmpty bool
	typ       reflect.Type
}

// schema describes how a model struct maps onto document fields.
type schema struct {
	typ    reflect.Type
	fields []field
	byName map[string]field
}

var (
	referenceType  = reflect.TypeFor[assoc.Reference]()
	collectionType = reflect.TypeFor[assoc.Collection]()
	schemas        sync.Map // reflect.Type -> *schema
)

// schemaOf returns the schema of struct type t, caching it.
func schemaOf(t reflect.Type) (*schema, error) {
	if cached, ok := schemas.Load(t); ok {
		return cached.(*schema), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%v is not a struct", t)
	}

	s := &schema{typ: t, byName: map[string]field{}}
	if err := s.walk(t, nil); err != nil {
		return nil, err
	}
	actual, _ := schemas.LoadOrStore(t, s)
	return actual.(*schema), nil
}

func (s *schema) walk(t reflect.Type, prefix []int) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		name, opts, _ := strings.Cut(sf.Tag.Get(TagName), ",")
		if name == "-" {
			continue
		}

		if sf.Anonymous && name == "" && sf.Type.Kind() == reflect.Struct {
			if err := s.walk(sf.Type, index); err != nil {
				return err
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}

		if name == "" {
			name = strcase.ToSnake(sf.Name)
		}
		if _, dup := s.byName[name]; dup {
			return fmt.Errorf("%v: document name %q used by more than one field", s.typ, name)
		}

		f := field{
			name:      name,
			index:     index,
			omitEmpty: strings.Contains(opts, "omitempty"),
			typ:       sf.Type,
		}
		ptr := reflect.PointerTo(sf.Type)
		switch {
		case ptr.Implements(referenceType):
			f.kind = referenceField
		case ptr.Implements(collectionType):
			f.kind = collectionField
		}
		s.fields = append(s.fields, f)
		s.byName[name] = f
	}
	return nil
}

// attributes returns the plain attributes of v, a value of s.typ.
// Association cells are never included.
func (s *schema) attributes(v reflect.Value) model.Fields {
	out := make(model.Fields, len(s.fields))
	for _, f := range s.fields {
		if f.kind != attributeField {
			continue
		}
		fv := v.FieldByIndex(f.index)
		if f.omitEmpty && fv.IsZero() {
			continue
		}
		out[f.name] = fv.Interface()
	}
	return out
}

// attributesOf returns the attributes of a model value given as a struct
// or pointer to struct. A nil pointer yields nil.
func attributesOf(v reflect.Value) (model.Fields, error) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	s, err := schemaOf(v.Type())
	if err != nil {
		return nil, err
	}
	return s.attributes(v), nil
}

// matchName reports whether a document field name addresses a struct
// field. fieldName is the doc tag value when present, else the Go name.
func matchName(mapKey, fieldName string) bool {
	return strings.EqualFold(mapKey, fieldName) || mapKey == strcase.ToSnake(fieldName)
}
