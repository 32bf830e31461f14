package policy

import (
	"reflect"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-scopecache/batch"
	"github.com/goliatone/go-scopecache/cache"
	"github.com/goliatone/go-scopecache/codec"
	"github.com/goliatone/go-scopecache/pkg/logging"
	"github.com/goliatone/go-scopecache/scope"
)

const tracerName = "github.com/goliatone/go-scopecache/policy"

// Options configures a policy. Tag, Identity, Source and Resolver are
// required; everything else has a default.
type Options[K comparable, E any] struct {
	// Tag names the entity type; it selects the cache partition and may
	// not contain cache.KeySeparator.
	Tag      string
	Identity func(E) K
	Source   Source[K, E]
	Resolver *scope.Resolver

	// Codec defaults to msgpack.
	Codec codec.Codec[E]
	// Serializer turns ids into partition keys.
	Serializer cache.KeySerializer
	// TTL applies to isolated cache entries on backends that honor it.
	TTL time.Duration
	// MaxGroupSize bounds the ids of one PerformGetAll call.
	MaxGroupSize int

	// SkipCountValidation trusts a cached full set without asking the
	// source for a live count.
	SkipCountValidation bool
	// AllowZeroCount caches an empty full set.
	AllowZeroCount bool

	// IndexBy derives a lookup code per entity for full dataset policies.
	IndexBy func(E) string

	Logger logging.Logger
	Hooks  Hooks
	Tracer trace.Tracer
}

// Validate checks the required options.
func (o Options[K, E]) Validate() error {
	err := validation.ValidateStruct(&o,
		validation.Field(&o.Tag, validation.Required, plainTag),
		validation.Field(&o.Identity, notNil),
		validation.Field(&o.Source, notNil),
		validation.Field(&o.Resolver, notNil),
		validation.Field(&o.TTL, validation.Min(time.Duration(0))),
		validation.Field(&o.MaxGroupSize, validation.Min(0)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid cache policy options")
	}
	return nil
}

// plainTag keeps a tag from reaching into another tag's key space.
var plainTag = validation.By(func(value any) error {
	tag, _ := value.(string)
	if strings.Contains(tag, cache.KeySeparator) {
		return validation.NewError("validation_tag_separator", "must not contain "+cache.KeySeparator)
	}
	return nil
})

var notNil = validation.By(func(value any) error {
	if value == nil {
		return validation.NewError("validation_required", "cannot be blank")
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan:
		if rv.IsNil() {
			return validation.NewError("validation_required", "cannot be blank")
		}
	}
	return nil
})

func (o Options[K, E]) withDefaults() Options[K, E] {
	if o.Codec == nil {
		o.Codec = codec.Msgpack[E]{}
	}
	if o.Serializer == nil {
		o.Serializer = cache.NewDefaultKeySerializer()
	}
	if o.MaxGroupSize <= 0 {
		o.MaxGroupSize = batch.DefaultMaxGroupSize
	}
	o.Logger = logging.OrNop(o.Logger)
	if o.Hooks == nil {
		o.Hooks = NopHooks{}
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}
	return o
}
