package veil

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/zoobzio/sentinel"
	"github.com/zoobzio/veil/keys"
)

func init() {
	// Register compound tags with sentinel
	sentinel.Tag(TagDigest)
	sentinel.Tag(TagEncrypt)
	sentinel.Tag(TagDecrypt)
	sentinel.Tag(TagMask)
}

// typePlan is the field descriptor table of one struct type.
type typePlan struct {
	typeName string

	// Write path, in order.
	digestFields  []fieldPlan
	encryptFields []fieldPlan

	// Read path, in order.
	decryptFields []fieldPlan
	maskFields    []fieldPlan

	// Fields that may hold further tagged structs (pointers, slices,
	// maps, interfaces); walked at runtime.
	children []fieldPlan

	// Mask fields of pointed-to types, for validation only.
	nestedMasks []fieldPlan
}

func (p *typePlan) hasWrite() bool {
	return len(p.digestFields) > 0 || len(p.encryptFields) > 0
}

func (p *typePlan) hasRead() bool {
	return len(p.decryptFields) > 0 || len(p.maskFields) > 0
}

// fieldPlan describes how to reach and transform a single field.
type fieldPlan struct {
	index      []int  // reflect.Value.FieldByIndex access path
	name       string // field path for logs and errors
	tagVal  string // raw tag value
	isBytes bool   // []byte
	isPtr   bool   // *string
	isSlice bool   // []string
	isMap   bool   // map[K]string

	slot     string    // encrypt
	maskType MaskType  // mask
	pattern  string    // custom mask
	digestTo *fieldPlan // digest target; nil when the type lacks it
	target   string    // digest target name, for logs
}

var (
	plans   = make(map[reflect.Type]*typePlan)
	plansMu sync.RWMutex
)

// planFor returns the cached plan for struct type rt, building it on first
// use.
func planFor(rt reflect.Type) (*typePlan, error) {
	plansMu.RLock()
	if p, ok := plans[rt]; ok {
		plansMu.RUnlock()
		return p, nil
	}
	plansMu.RUnlock()

	p, err := buildPlan(rt)
	if err != nil {
		return nil, err
	}

	plansMu.Lock()
	defer plansMu.Unlock()
	if cached, ok := plans[rt]; ok {
		return cached, nil
	}
	plans[rt] = p
	return p, nil
}

// ResetPlans clears the plan cache.
// This is primarily useful for test isolation.
func ResetPlans() {
	plansMu.Lock()
	defer plansMu.Unlock()
	plans = make(map[reflect.Type]*typePlan)
}

func buildPlan(rt reflect.Type) (*typePlan, error) {
	spec := scanType(rt)
	plan := &typePlan{typeName: rt.String()}
	if spec == nil {
		return plan, nil
	}
	visiting := map[reflect.Type]bool{rt: true}
	if err := buildFieldPlansRecursive(plan, *spec, nil, "", visiting); err != nil {
		return nil, err
	}
	return plan, nil
}

// buildFieldPlansRecursive processes fields and flattens nested struct
// values.
func buildFieldPlansRecursive(plan *typePlan, spec sentinel.Metadata, parentIndex []int, namePrefix string, visiting map[reflect.Type]bool) error {
	byName := make(map[string]sentinel.FieldMetadata, len(spec.Fields))
	for _, f := range spec.Fields {
		byName[f.Name] = f
	}

	for _, field := range spec.Fields {
		fullIndex := append(append([]int{}, parentIndex...), field.Index...)
		fullName := field.Name
		if namePrefix != "" {
			fullName = namePrefix + "." + field.Name
		}
		rt := field.ReflectType

		// Nested struct
		if rt.Kind() == reflect.Struct {
			if visiting[rt] {
				continue
			}
			if nested := scanType(rt); nested != nil {
				visiting[rt] = true
				err := buildFieldPlansRecursive(plan, *nested, fullIndex, fullName, visiting)
				delete(visiting, rt)
				if err != nil {
					return err
				}
			}
			continue
		}

		// Pointer to struct; walked at runtime so a pointee shared by
		// several parents is transformed once. Its tags are still checked
		// here.
		if rt.Kind() == reflect.Ptr && rt.Elem().Kind() == reflect.Struct {
			plan.children = append(plan.children, fieldPlan{index: fullIndex, name: fullName})
			if visiting[rt.Elem()] {
				continue
			}
			if nested := scanType(rt.Elem()); nested != nil {
				scratch := &typePlan{}
				visiting[rt.Elem()] = true
				err := buildFieldPlansRecursive(scratch, *nested, nil, fullName, visiting)
				delete(visiting, rt.Elem())
				if err != nil {
					return err
				}
				plan.nestedMasks = append(plan.nestedMasks, scratch.maskFields...)
				plan.nestedMasks = append(plan.nestedMasks, scratch.nestedMasks...)
			}
			continue
		}

		isString := rt.Kind() == reflect.String
		isBytes := rt.Kind() == reflect.Slice && rt.Elem().Kind() == reflect.Uint8
		isPtr := rt.Kind() == reflect.Ptr && rt.Elem().Kind() == reflect.String
		isStringSlice := rt.Kind() == reflect.Slice && rt.Elem().Kind() == reflect.String
		isStringMap := rt.Kind() == reflect.Map && rt.Elem().Kind() == reflect.String

		if !isString && !isBytes && !isPtr && !isStringSlice && !isStringMap {
			if mayHoldStructs(rt) {
				plan.children = append(plan.children, fieldPlan{index: fullIndex, name: fullName})
			}
			continue
		}

		base := fieldPlan{
			index:   fullIndex,
			name:    fullName,
			isBytes: isBytes,
			isPtr:   isPtr,
			isSlice: isStringSlice,
			isMap:   isStringMap,
		}

		if val, ok := field.Tags[TagDigest]; ok {
			if isStringSlice || isStringMap {
				return newConfigError(ErrInvalidTag, TagDigest, fullName)
			}
			fp := base
			fp.tagVal = val
			fp.target = field.Name + DigestSuffix
			if val != "" && val != DigestAuto {
				fp.target = val
			}
			if t, ok := byName[fp.target]; ok && isStringLike(t.ReflectType) {
				fp.digestTo = &fieldPlan{
					index:   append(append([]int{}, parentIndex...), t.Index...),
					name:    joinName(namePrefix, t.Name),
					isBytes: t.ReflectType.Kind() == reflect.Slice,
					isPtr:   t.ReflectType.Kind() == reflect.Ptr,
				}
			}
			plan.digestFields = append(plan.digestFields, fp)
		}

		if val, ok := field.Tags[TagEncrypt]; ok {
			if err := keys.ValidateSlot(val); err != nil {
				return newConfigError(ErrInvalidTag, val, fullName)
			}
			fp := base
			fp.tagVal = val
			fp.slot = val
			plan.encryptFields = append(plan.encryptFields, fp)
		}

		if val, ok := field.Tags[TagDecrypt]; ok {
			fp := base
			fp.tagVal = val
			plan.decryptFields = append(plan.decryptFields, fp)
		}

		if val, ok := field.Tags[TagMask]; ok {
			mt, pattern, err := ParseMaskTag(val)
			if err != nil {
				return newConfigError(ErrInvalidTag, val, fullName)
			}
			fp := base
			fp.tagVal = val
			fp.maskType = mt
			fp.pattern = pattern
			plan.maskFields = append(plan.maskFields, fp)
		}
	}

	return nil
}

// scanType returns sentinel metadata for struct type rt.
func scanType(rt reflect.Type) *sentinel.Metadata {
	if rt.Kind() != reflect.Struct {
		return nil
	}
	if spec, ok := sentinel.Lookup(rt.String()); ok {
		return &spec
	}

	spec := sentinel.Metadata{
		TypeName:    rt.Name(),
		PackageName: rt.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, rt.NumField()),
	}

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}

		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Tags:        parseContextTags(sf.Tag),
		}

		switch sf.Type.Kind() {
		case reflect.Struct:
			fm.Kind = sentinel.KindStruct
		case reflect.Ptr:
			fm.Kind = sentinel.KindPointer
		case reflect.Slice, reflect.Array:
			fm.Kind = sentinel.KindSlice
		case reflect.Map:
			fm.Kind = sentinel.KindMap
		case reflect.Interface:
			fm.Kind = sentinel.KindInterface
		default:
			fm.Kind = sentinel.KindScalar
		}

		spec.Fields = append(spec.Fields, fm)
	}

	return &spec
}

// parseContextTags extracts context.action tags from a struct tag.
func parseContextTags(tag reflect.StructTag) map[string]string {
	tags := make(map[string]string)
	for _, ca := range []string{TagDigest, TagEncrypt, TagDecrypt, TagMask} {
		if val, ok := tag.Lookup(ca); ok {
			tags[ca] = val
		}
	}
	return tags
}

// mayHoldStructs reports whether values of t can contain structs.
func mayHoldStructs(t reflect.Type) bool {
	for i := 0; i < 8; i++ {
		switch t.Kind() {
		case reflect.Struct, reflect.Interface:
			return true
		case reflect.Ptr, reflect.Slice, reflect.Array, reflect.Map:
			t = t.Elem()
		default:
			return false
		}
	}
	return true
}

func isStringLike(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String:
		return true
	case reflect.Ptr:
		return t.Elem().Kind() == reflect.String
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	}
	return false
}

func joinName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// getField returns the field at plan's path. Paths cross struct values
// only; pointers are walked as children.
func getField(rv reflect.Value, plan fieldPlan) reflect.Value {
	return rv.FieldByIndex(plan.index)
}

// transformField applies fn to every string the field holds.
func transformField(field reflect.Value, plan fieldPlan, fn func(string) (string, error)) error {
	switch {
	case plan.isSlice:
		for i := 0; i < field.Len(); i++ {
			elem := field.Index(i)
			if !elem.CanSet() {
				continue
			}
			out, err := fn(elem.String())
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", plan.name, i, err)
			}
			elem.SetString(out)
		}
		return nil

	case plan.isMap:
		if field.IsNil() {
			return nil
		}
		iter := field.MapRange()
		for iter.Next() {
			k, v := iter.Key(), iter.Value()
			out, err := fn(v.String())
			if err != nil {
				return fmt.Errorf("%s[%v]: %w", plan.name, k.Interface(), err)
			}
			field.SetMapIndex(k, reflect.ValueOf(out).Convert(field.Type().Elem()))
		}
		return nil
	}

	value, ok := readString(field, plan)
	if !ok {
		return nil
	}
	out, err := fn(value)
	if err != nil {
		return err
	}
	writeString(field, plan, out)
	return nil
}

// readString reads a scalar string-like field. A nil *string reads as
// absent.
func readString(field reflect.Value, plan fieldPlan) (string, bool) {
	if !field.CanSet() {
		return "", false
	}
	switch {
	case plan.isBytes:
		return string(field.Bytes()), true
	case plan.isPtr:
		if field.IsNil() {
			return "", false
		}
		return field.Elem().String(), true
	default:
		return field.String(), true
	}
}

func writeString(field reflect.Value, plan fieldPlan, s string) {
	switch {
	case plan.isBytes:
		field.SetBytes([]byte(s))
	case plan.isPtr:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		field.Elem().SetString(s)
	default:
		field.SetString(s)
	}
}
