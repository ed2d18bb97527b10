package mapper

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/rcliao/docmap/internal/model"
)

// Constructor builds a model from a document field map. It owns attribute
// coercion and validation; the mapper never coerces values itself.
type Constructor[M model.Model] func(fields model.Fields) (M, error)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode returns the default constructor for M: fields are decoded onto a
// new M by doc tag (weakly typed, RFC 3339 strings become times) and the
// result is checked against its validate tags.
func Decode[M model.Model]() Constructor[M] {
	t := reflect.TypeFor[M]()
	return func(fields model.Fields) (M, error) {
		var zero M
		if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
			return zero, fmt.Errorf("%v is not a pointer to struct", t)
		}
		m := reflect.New(t.Elem()).Interface().(M)

		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          TagName,
			Squash:           true,
			WeaklyTypedInput: true,
			MatchName:        matchName,
			Result:           m,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
				mapstructure.StringToTimeDurationHookFunc(),
			),
		})
		if err != nil {
			return zero, err
		}
		if err := dec.Decode(map[string]any(fields)); err != nil {
			return zero, err
		}
		if err := validate.Struct(m); err != nil {
			return zero, err
		}
		return m, nil
	}
}

// Validate checks obj against its validate tags.
func (m *Mapper[M]) Validate(obj M) error {
	if isNilModel(obj) {
		return fmt.Errorf("mapper %v: nil model", m.typ)
	}
	if err := validate.Struct(obj); err != nil {
		return fmt.Errorf("%v %q: %w: %w", m.typ, obj.GetKey(), ErrInvalidModel, err)
	}
	return nil
}
