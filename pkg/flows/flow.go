// Package flows declares the wizard flows of the platform: their steps, the
// typed payload each step produces and how a finished aggregate binds into
// the body the backend expects.
package flows

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/netkrida/myhome-sub001/pkg/domain"
)

// ErrUnknownFlow is returned when a flow name is not registered.
var ErrUnknownFlow = errors.New("unknown flow")

// Definition describes one wizard flow.
type Definition struct {
	// Name is the persistence namespace, e.g. "property-create".
	Name string
	// Endpoint is the backend path the bound submission is posted to.
	Endpoint string
	Steps    []domain.StepDescriptor

	// payloads[i] returns a zero value of the typed payload of step i.
	payloads []func() any
	bind     func(domain.Aggregate) (any, error)
}

// NewPayload returns a zero value of the typed payload of step index.
func (d *Definition) NewPayload(index int) (any, error) {
	if index < 0 || index >= len(d.payloads) {
		return nil, fmt.Errorf("%w: %d", domain.ErrStepOutOfRange, index)
	}
	return d.payloads[index](), nil
}

// Validate decodes raw into the typed payload of step index and runs its
// field rules. It returns the field errors, empty when the payload is valid.
// A payload that cannot be decoded at all is reported as an error.
func (d *Definition) Validate(index int, raw json.RawMessage) ([]domain.FieldError, error) {
	out, err := d.NewPayload(index)
	if err != nil {
		return nil, err
	}
	if err := Decode(raw, out); err != nil {
		return nil, err
	}
	return Check(out), nil
}

// Bind turns a complete aggregate into the typed submission body.
// A missing slot yields *domain.IncompleteError.
func (d *Definition) Bind(agg domain.Aggregate) (any, error) {
	var missing []domain.StepRef
	for i, s := range d.Steps {
		if !agg.Has(domain.SlotFor(i)) {
			missing = append(missing, domain.StepRef{Index: i, ID: s.ID, Title: s.Title})
		}
	}
	if len(missing) > 0 {
		return nil, &domain.IncompleteError{Missing: missing}
	}
	return d.bind(agg)
}

// Registry holds the known flow definitions.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]*Definition
}

// NewRegistry creates a registry with the given definitions.
func NewRegistry(defs ...*Definition) *Registry {
	r := &Registry{flows: make(map[string]*Definition)}
	for _, d := range defs {
		r.Register(d)
	}
	return r
}

// Default returns a registry with every built-in flow.
func Default() *Registry {
	return NewRegistry(Property(), Room(), RoomType())
}

// Register adds or replaces a definition.
func (r *Registry) Register(d *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[d.Name] = d
}

// Get returns the definition of flow.
func (r *Registry) Get(flow string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.flows[flow]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, flow)
	}
	return d, nil
}

// Names returns the registered flow names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.flows))
	for name := range r.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode maps a JSON payload onto out. Form inputs often arrive as strings,
// so scalar types are converted weakly ("3" decodes into an int field).
func Decode(raw json.RawMessage, out any) error {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(generic); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func fieldValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Check runs the field rules of payload and returns one FieldError per
// violation.
func Check(payload any) []domain.FieldError {
	err := fieldValidator().Struct(payload)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []domain.FieldError{{Message: err.Error()}}
	}

	fields := make([]domain.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, domain.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: describe(fe),
		})
	}
	return fields
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.String {
			return "must have at least " + fe.Param() + " item(s)"
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be " + fe.Param() + " or more"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "latitude", "longitude":
		return "is not a valid " + fe.Tag()
	case "url":
		return "must be a URL"
	}
	return "is invalid"
}

// decodeSlot decodes the payload of slot into a fresh T.
func decodeSlot[T any](agg domain.Aggregate, index int) (T, error) {
	var out T
	raw, ok := agg[domain.SlotFor(index)]
	if !ok {
		return out, fmt.Errorf("%s: %w", domain.SlotFor(index), domain.ErrSnapshotNotFound)
	}
	if err := Decode(raw, &out); err != nil {
		return out, fmt.Errorf("%s: %w", domain.SlotFor(index), err)
	}
	return out, nil
}

func payload[T any]() func() any {
	return func() any { return new(T) }
}

// encodeVariants places each variant in its slot.
func encodeVariants[V any](variants []V, slot func(V) int) (domain.Aggregate, error) {
	agg := make(domain.Aggregate, len(variants))
	for _, v := range variants {
		raw, err := domain.Encode(v)
		if err != nil {
			return nil, err
		}
		agg[domain.SlotFor(slot(v))] = raw
	}
	return agg, nil
}
