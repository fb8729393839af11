package veil

import (
	"reflect"
	"sync"
)

type processorKey struct {
	typ         reflect.Type
	contentType string
	pipeline    *Pipeline
}

// processors caches one Processor per type, content type and pipeline.
var processors = struct {
	sync.RWMutex
	m map[processorKey]any
}{m: make(map[processorKey]any)}

// Use returns the shared Processor for T, codec and pipeline, building it on
// first call. Codecs with the same content type share an entry.
func Use[T Cloner[T]](codec Codec, pipeline *Pipeline) (*Processor[T], error) {
	if codec == nil {
		return nil, newConfigError(ErrInvalidConfig, "", "codec")
	}
	key := processorKey{typ: reflect.TypeFor[T](), contentType: codec.ContentType(), pipeline: pipeline}

	processors.RLock()
	cached, ok := processors.m[key]
	processors.RUnlock()
	if ok {
		return cached.(*Processor[T]), nil
	}

	built, err := NewProcessor[T](codec, pipeline)
	if err != nil {
		return nil, err
	}

	processors.Lock()
	defer processors.Unlock()
	if cached, ok := processors.m[key]; ok {
		return cached.(*Processor[T]), nil
	}
	processors.m[key] = built
	return built, nil
}

// Reset drops every cached Processor and type plan. Tests use it to start
// from a clean slate.
func Reset() {
	processors.Lock()
	processors.m = make(map[processorKey]any)
	processors.Unlock()
	ResetPlans()
}
