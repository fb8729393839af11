package veil

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/zoobzio/sentinel"
)

// Processor is a typed, codec-aware front end to a Pipeline.
// Store seals a clone of the value and marshals it; Load unmarshals and
// unseals.
//
// Processors are safe for concurrent use.
type Processor[T Cloner[T]] struct {
	codec    Codec
	pipeline *Pipeline
	plan     *typePlan
	typeName string

	// Validation state (runs once on first operation)
	validateOnce sync.Once
	validateErr  error
}

// NewProcessor creates a Processor for type T. Tag errors on T are
// reported here rather than on first use.
func NewProcessor[T Cloner[T]](codec Codec, pipeline *Pipeline) (*Processor[T], error) {
	if codec == nil {
		return nil, newConfigError(ErrInvalidConfig, "", "codec")
	}
	if pipeline == nil {
		return nil, newConfigError(ErrInvalidConfig, "", "pipeline")
	}

	typ := reflect.TypeFor[T]()
	if typ.Kind() == reflect.Struct {
		sentinel.Scan[T]()
	}
	plan, err := planFor(typ)
	if err != nil {
		return nil, err
	}

	p := &Processor[T]{
		codec:    codec,
		pipeline: pipeline,
		plan:     plan,
		typeName: typ.String(),
	}

	emitProcessorCreated(context.Background(), codec.ContentType(), p.typeName)
	return p, nil
}

// Validate checks that every mask tag on T has a registered masker.
//
// Validation also runs automatically on first operation. Calling Validate
// explicitly allows catching configuration errors at startup.
func (p *Processor[T]) Validate() error {
	p.validateOnce.Do(func() {
		p.validateErr = p.validateCapabilities()
	})
	return p.validateErr
}

func (p *Processor[T]) validateCapabilities() error {
	fields := append(append([]fieldPlan{}, p.plan.maskFields...), p.plan.nestedMasks...)
	for _, fp := range fields {
		if fp.maskType == MaskCustom {
			continue
		}
		if _, ok := p.pipeline.maskers[fp.maskType]; !ok {
			return fmt.Errorf("%s: no masker registered: %w", p.typeName, newConfigError(ErrMask, string(fp.maskType), fp.name))
		}
	}
	return nil
}

// Seal returns a digested and encrypted clone of obj. obj is not modified.
func (p *Processor[T]) Seal(ctx context.Context, obj *T) (*T, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	clone := (*obj).Clone()
	if _, err := p.pipeline.beforeWrite(ctx, "seal", []any{&clone}); err != nil {
		return nil, err
	}
	return &clone, nil
}

// Unseal decrypts and masks obj in place.
func (p *Processor[T]) Unseal(ctx context.Context, obj *T) *T {
	if obj == nil {
		return nil
	}
	p.pipeline.afterRead(ctx, "unseal", obj)
	return obj
}

// Store seals a clone of obj and marshals the result.
// Use for data going to storage (database, cache).
func (p *Processor[T]) Store(ctx context.Context, obj *T) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	if obj == nil {
		data, err := p.codec.Marshal(nil)
		if err != nil {
			return nil, newCodecError(ErrMarshal, err)
		}
		return data, nil
	}

	sealed, err := p.Seal(ctx, obj)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", p.typeName, err)
	}

	data, err := p.codec.Marshal(sealed)
	if err != nil {
		return nil, newCodecError(ErrMarshal, err)
	}
	p.pipeline.logger.DebugContext(ctx, "stored value",
		"operation", "store",
		"type", p.typeName,
		"content_type", p.codec.ContentType(),
		"size", len(data),
		"duration", time.Since(start),
	)
	return data, nil
}

// Load unmarshals data and unseals the result.
// Use for data coming from storage (database, cache).
func (p *Processor[T]) Load(ctx context.Context, data []byte) (*T, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var obj T
	if err := p.codec.Unmarshal(data, &obj); err != nil {
		return nil, newCodecError(ErrUnmarshal, err)
	}
	return p.Unseal(ctx, &obj), nil
}

// LoadPage unmarshals a page of T and unseals its items. Paging metadata
// is returned as decoded.
func (p *Processor[T]) LoadPage(ctx context.Context, data []byte) (*Page[T], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var page Page[T]
	if err := p.codec.Unmarshal(data, &page); err != nil {
		return nil, newCodecError(ErrUnmarshal, err)
	}
	p.pipeline.afterRead(ctx, "unseal", &page)
	return &page, nil
}
