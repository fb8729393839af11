package veil

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"time"
)

// Pipeline applies tag-driven field transformations to arbitrary object
// graphs. Write paths digest then encrypt; read paths decrypt then mask.
//
// A Pipeline is safe for concurrent use.
type Pipeline struct {
	crypter    *Crypter
	digester   *Digester
	maskers    map[MaskType]Masker
	classifier *Classifier
	logger     *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithClassifier sets the operation classifier used by Intercept.
func WithClassifier(c *Classifier) PipelineOption {
	return func(p *Pipeline) { p.classifier = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithMasker registers or replaces the masker for mt.
func WithMasker(mt MaskType, m Masker) PipelineOption {
	return func(p *Pipeline) { p.maskers[mt] = m }
}

// NewPipeline returns a Pipeline using c for encryption and d for digests.
func NewPipeline(c *Crypter, d *Digester, opts ...PipelineOption) (*Pipeline, error) {
	if c == nil {
		return nil, newConfigError(ErrInvalidConfig, "", "crypter")
	}
	if d == nil {
		return nil, newConfigError(ErrInvalidConfig, "", "digester")
	}
	p := &Pipeline{
		crypter:    c,
		digester:   d,
		maskers:    builtinMaskers(),
		classifier: DefaultClassifier(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Toolkit returns the engines handed to Sealer and Unsealer overrides.
func (p *Pipeline) Toolkit() Toolkit {
	return Toolkit{Crypter: p.crypter, Digester: p.digester, Maskers: p.maskers}
}

// Crypter returns the pipeline's crypter.
func (p *Pipeline) Crypter() *Crypter {
	return p.crypter
}

// Digester returns the pipeline's digester.
func (p *Pipeline) Digester() *Digester {
	return p.digester
}

// BeforeWrite prepares write arguments. Pointers, slices and maps are
// mutated in place; struct and array values are transformed on a copy that
// replaces them in the returned slice. On error nothing should be written.
func (p *Pipeline) BeforeWrite(ctx context.Context, args ...any) ([]any, error) {
	return p.beforeWrite(ctx, "write", args)
}

// AfterRead prepares a read result. Field failures are logged and leave
// the field unchanged, so AfterRead never fails.
func (p *Pipeline) AfterRead(ctx context.Context, result any) any {
	return p.afterRead(ctx, "read", result)
}

// Intercept classifies op and runs call with the matching hook around it.
// Unclassified operations pass through untouched.
func (p *Pipeline) Intercept(ctx context.Context, op string, args []any, call func([]any) (any, error)) (any, error) {
	switch p.classifier.Classify(op) {
	case OpWrite:
		prepared, err := p.beforeWrite(ctx, op, args)
		if err != nil {
			return nil, err
		}
		return call(prepared)
	case OpRead:
		result, err := call(args)
		if err != nil {
			return result, err
		}
		return p.afterRead(ctx, op, result), nil
	default:
		return call(args)
	}
}

func (p *Pipeline) beforeWrite(ctx context.Context, op string, args []any) ([]any, error) {
	start := time.Now()
	emitWriteStart(ctx, op)

	w := p.newPass(ctx, dirWrite)
	out := make([]any, len(args))
	for i, arg := range args {
		out[i] = w.root(arg)
		if w.err != nil {
			break
		}
	}

	emitWriteComplete(ctx, op, time.Since(start), w.counts, w.err)
	if w.err != nil {
		return nil, w.err
	}
	return out, nil
}

func (p *Pipeline) afterRead(ctx context.Context, op string, result any) any {
	start := time.Now()
	emitReadStart(ctx, op)

	w := p.newPass(ctx, dirRead)
	out := w.root(result)

	emitReadComplete(ctx, op, time.Since(start), w.counts)
	return out
}

type direction int

const (
	dirWrite direction = iota
	dirRead
)

type visitKey struct {
	ptr uintptr
	typ reflect.Type
}

// pass is one traversal of an object graph.
type pass struct {
	*Pipeline
	ctx     context.Context
	dir     direction
	visited map[visitKey]bool
	counts  counts
	err     error
}

func (p *Pipeline) newPass(ctx context.Context, dir direction) *pass {
	return &pass{
		Pipeline: p,
		ctx:      ctx,
		dir:      dir,
		visited:  make(map[visitKey]bool),
	}
}

// root walks a top-level value and returns what should replace it.
func (w *pass) root(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map:
		w.walk(rv)
		return v
	case reflect.Struct, reflect.Array:
		cp := reflect.New(rv.Type()).Elem()
		cp.Set(rv)
		w.walk(cp)
		return cp.Interface()
	default:
		return v
	}
}

func (w *pass) walk(v reflect.Value) {
	if w.err != nil || !v.IsValid() {
		return
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return
		}
		key := visitKey{ptr: v.Pointer(), typ: v.Type()}
		if w.visited[key] {
			return
		}
		w.visited[key] = true
		w.walk(v.Elem())

	case reflect.Interface:
		if v.IsNil() {
			return
		}
		elem := v.Elem()
		switch elem.Kind() {
		case reflect.Struct, reflect.Array:
			cp := reflect.New(elem.Type()).Elem()
			cp.Set(elem)
			w.walk(cp)
			if v.CanSet() {
				v.Set(cp)
			}
		default:
			w.walk(elem)
		}

	case reflect.Slice:
		if !mayHoldStructs(v.Type().Elem()) {
			return
		}
		for i := 0; i < v.Len(); i++ {
			w.walk(v.Index(i))
		}

	case reflect.Array:
		if !v.CanAddr() || !mayHoldStructs(v.Type().Elem()) {
			return
		}
		for i := 0; i < v.Len(); i++ {
			w.walk(v.Index(i))
		}

	case reflect.Map:
		if v.IsNil() || !mayHoldStructs(v.Type().Elem()) {
			return
		}
		for _, k := range v.MapKeys() {
			val := v.MapIndex(k)
			cp := reflect.New(val.Type()).Elem()
			cp.Set(val)
			w.walk(cp)
			v.SetMapIndex(k, cp)
		}

	case reflect.Struct:
		w.visitStruct(v)
	}
}

func (w *pass) visitStruct(v reflect.Value) {
	if v.CanAddr() && v.Addr().CanInterface() {
		target := v.Addr().Interface()
		if pg, ok := target.(Pager); ok {
			w.walk(reflect.ValueOf(pg.PageItems()))
			return
		}
		if w.dir == dirWrite {
			if s, ok := target.(Sealer); ok {
				if err := s.Seal(w.ctx, w.Toolkit()); err != nil {
					w.err = newTransformError(ErrCrypto, "seal", v.Type().String(), err)
				}
				return
			}
		} else if u, ok := target.(Unsealer); ok {
			u.Unseal(w.ctx, w.Toolkit())
			return
		}
	}

	plan, err := planFor(v.Type())
	if err != nil {
		if w.dir == dirWrite {
			w.err = err
			return
		}
		w.logger.ErrorContext(w.ctx, "skipping type with invalid tags",
			"operation", "read",
			"type", v.Type().String(),
			"error", err,
		)
		return
	}

	if w.dir == dirWrite {
		w.digest(v, plan)
		w.encrypt(v, plan)
	} else {
		w.decrypt(v, plan)
		w.mask(v, plan)
	}

	for _, child := range plan.children {
		if w.err != nil {
			return
		}
		w.walk(getField(v, child))
	}
}

func (w *pass) digest(v reflect.Value, plan *typePlan) {
	for _, fp := range plan.digestFields {
		if w.err != nil {
			return
		}
		if fp.digestTo == nil {
			w.logger.WarnContext(w.ctx, "digest field missing",
				"operation", "digest",
				"type", plan.typeName,
				"field", fp.name,
				"target", fp.target,
			)
			emitDigestMissing(w.ctx, plan.typeName, fp.name)
			continue
		}

		value, ok := readString(getField(v, fp), fp)
		if !ok {
			continue
		}
		target := getField(v, *fp.digestTo)
		if !target.CanSet() {
			continue
		}

		sum, err := w.digester.Digest(value)
		if err != nil {
			w.err = newTransformError(ErrCrypto, "digest", fp.name, err)
			return
		}
		writeString(target, *fp.digestTo, sum)
		w.counts.digested++
	}
}

func (w *pass) encrypt(v reflect.Value, plan *typePlan) {
	for _, fp := range plan.encryptFields {
		if w.err != nil {
			return
		}
		field := getField(v, fp)
		err := transformField(field, fp, func(s string) (string, error) {
			if s == "" {
				return s, nil
			}
			out, err := w.crypter.Encrypt(w.ctx, s, fp.slot)
			if err != nil {
				return "", err
			}
			w.counts.encrypted++
			return out, nil
		})
		if err != nil {
			w.err = newTransformError(ErrCrypto, "encrypt", fp.name, err)
			return
		}
	}
}

func (w *pass) decrypt(v reflect.Value, plan *typePlan) {
	for _, fp := range plan.decryptFields {
		field := getField(v, fp)
		_ = transformField(field, fp, func(s string) (string, error) {
			if !w.crypter.LooksEncrypted(s) {
				return s, nil
			}
			out, err := w.crypter.Decrypt(w.ctx, s)
			if err != nil {
				w.logger.WarnContext(w.ctx, "decrypt failed, keeping stored value",
					"operation", "decrypt",
					"type", plan.typeName,
					"field", fp.name,
					"error", err,
				)
				emitDecryptDegraded(w.ctx, plan.typeName, fp.name, err)
				return s, nil
			}
			w.counts.decrypted++
			return out, nil
		})
	}
}

func (w *pass) mask(v reflect.Value, plan *typePlan) {
	for _, fp := range plan.maskFields {
		field := getField(v, fp)
		masker := w.masker(fp)
		_ = transformField(field, fp, func(s string) (string, error) {
			if s == "" || w.crypter.LooksEncrypted(s) {
				return s, nil
			}
			if masker == nil {
				err := errors.Join(ErrMask, newConfigError(ErrInvalidTag, string(fp.maskType), fp.name))
				w.logger.WarnContext(w.ctx, "no masker registered",
					"operation", "mask",
					"type", plan.typeName,
					"field", fp.name,
					"mask", string(fp.maskType),
				)
				emitMaskSkipped(w.ctx, plan.typeName, fp.name, err)
				return s, nil
			}
			w.counts.masked++
			return masker.Mask(s), nil
		})
	}
}

func (w *pass) masker(fp fieldPlan) Masker {
	if fp.maskType == MaskCustom {
		return CustomMasker(fp.pattern)
	}
	return w.maskers[fp.maskType]
}
