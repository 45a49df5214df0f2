package quacksql

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"reflect"
)

var scannerIface = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// ScanOne consumes the remaining rows and stores exactly one of them in dest.
// dest may point to a struct (columns mapped via `db` tags or field names),
// to a sql.Scanner, or to a primitive (single column only).
// It returns sql.ErrNoRows if nothing remains and ErrMoreThanOneRow if more
// than one row remains.
func (r *Result) ScanOne(dest any) error {
	return r.ScanOneContext(context.Background(), dest)
}

// ScanOneContext is the context-aware variant of ScanOne.
func (r *Result) ScanOneContext(ctx context.Context, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrInvalidDest
	}
	cols, rows, err := r.take(ctx, -1)
	if err != nil {
		return err
	}
	switch len(rows) {
	case 0:
		return sql.ErrNoRows
	case 1:
	default:
		return ErrMoreThanOneRow
	}

	rv = rv.Elem()
	if isStructDest(rv.Type()) {
		plan, err := buildScanPlan(cols, rv.Type())
		if err != nil {
			return err
		}
		return plan.scan(rv, rows[0])
	}
	if len(cols) != 1 {
		return fmt.Errorf("quacksql: Scan on non-struct type requires 1 column, got %d", len(cols))
	}
	return assign(rv, rows[0][0])
}

// ScanAll consumes the remaining rows into dest, a pointer to a slice of
// structs, of *struct, or of primitives/Scanner types (one column only).
func (r *Result) ScanAll(dest any) error {
	return r.ScanAllContext(context.Background(), dest)
}

// ScanAllContext is the context-aware variant of ScanAll.
func (r *Result) ScanAllContext(ctx context.Context, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrInvalidDest
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Slice {
		return ErrDestNotSlice
	}

	cols, rows, err := r.take(ctx, -1)
	if err != nil {
		return err
	}

	elemT := rv.Type().Elem()
	out := reflect.MakeSlice(rv.Type(), 0, len(rows))

	if isStructDest(elemT) {
		isPtr := elemT.Kind() == reflect.Pointer
		structT := elemT
		if isPtr {
			structT = elemT.Elem()
		}
		plan, err := buildScanPlan(cols, structT)
		if err != nil {
			return err
		}
		for _, row := range rows {
			ptr := reflect.New(structT)
			if err := plan.scan(ptr.Elem(), row); err != nil {
				return err
			}
			if isPtr {
				out = reflect.Append(out, ptr)
			} else {
				out = reflect.Append(out, ptr.Elem())
			}
		}
		rv.Set(out)
		return nil
	}

	if len(cols) != 1 {
		return fmt.Errorf("quacksql: ScanAll on slice of non-struct requires 1 column, got %d", len(cols))
	}
	for _, row := range rows {
		item := reflect.New(elemT).Elem()
		if err := assign(item, row[0]); err != nil {
			return err
		}
		out = reflect.Append(out, item)
	}
	rv.Set(out)
	return nil
}

// scanPlan maps each result column to a struct field path; a nil path
// means the column has no matching field and is skipped.
type scanPlan struct {
	fPath [][]int
}

// buildScanPlan resolves cols against dstT's flattened field map.
func buildScanPlan(cols []Column, dstT reflect.Type) (*scanPlan, error) {
	fmap := fieldIndexMap(dstT)
	p := &scanPlan{fPath: make([][]int, len(cols))}
	for i, col := range cols {
		fi, ok := fmap[col.Name]
		if !ok {
			continue
		}
		if fi.ambiguous {
			return nil, fmt.Errorf("%w: %q", ErrFieldAmbiguous, col.Name)
		}
		p.fPath[i] = fi.index
	}
	return p, nil
}

// scan copies row into dst following the plan.
func (p *scanPlan) scan(dst reflect.Value, row Row) error {
	for i, path := range p.fPath {
		if path == nil {
			continue
		}
		if err := assign(fieldByIndexAlloc(dst, path), row[i]); err != nil {
			return fmt.Errorf("quacksql: column %d: %w", i, err)
		}
	}
	return nil
}

// isStructDest reports whether t (or *t) is a struct that should be mapped
// field by field rather than assigned as a single value.
func isStructDest(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	return shouldFlatten(t)
}

// assign stores a driver value in dst, converting between compatible
// numeric kinds and rendering values into string fields.
func assign(dst reflect.Value, src any) error {
	if dst.CanAddr() && reflect.PointerTo(dst.Type()).Implements(scannerIface) {
		return dst.Addr().Interface().(sql.Scanner).Scan(src)
	}

	if src == nil {
		switch dst.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
			dst.SetZero()
			return nil
		}
		return fmt.Errorf("%w: NULL into %s", ErrUnsupportedDest, dst.Type())
	}

	if dst.Kind() == reflect.Pointer {
		nv := reflect.New(dst.Type().Elem())
		if err := assign(nv.Elem(), src); err != nil {
			return err
		}
		dst.Set(nv)
		return nil
	}

	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}

	switch {
	case isNumeric(dst.Kind()) && isNumeric(sv.Kind()):
		if !numericFits(dst, sv) {
			return fmt.Errorf("%w: value %v out of range for %s", ErrUnsupportedDest, src, dst.Type())
		}
		dst.Set(sv.Convert(dst.Type()))
		return nil
	case dst.Kind() == reflect.String:
		if b, ok := src.([]byte); ok {
			dst.SetString(string(b))
		} else {
			dst.SetString(fmt.Sprint(src))
		}
		return nil
	case dst.Kind() == sv.Kind() && sv.Type().ConvertibleTo(dst.Type()):
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("%w: %T into %s", ErrUnsupportedDest, src, dst.Type())
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// numericFits reports whether sv converts to dst's type without wrapping,
// truncating a fraction or flipping a sign.
func numericFits(dst, sv reflect.Value) bool {
	switch {
	case dst.CanInt():
		switch {
		case sv.CanInt():
			return !dst.OverflowInt(sv.Int())
		case sv.CanUint():
			return sv.Uint() <= math.MaxInt64 && !dst.OverflowInt(int64(sv.Uint()))
		default:
			f := sv.Float()
			return f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 && !dst.OverflowInt(int64(f))
		}
	case dst.CanUint():
		switch {
		case sv.CanInt():
			return sv.Int() >= 0 && !dst.OverflowUint(uint64(sv.Int()))
		case sv.CanUint():
			return !dst.OverflowUint(sv.Uint())
		default:
			f := sv.Float()
			return f == math.Trunc(f) && f >= 0 && f < math.MaxUint64 && !dst.OverflowUint(uint64(f))
		}
	default:
		switch {
		case sv.CanInt():
			return !dst.OverflowFloat(float64(sv.Int()))
		case sv.CanUint():
			return !dst.OverflowFloat(float64(sv.Uint()))
		default:
			f := sv.Float()
			return math.IsNaN(f) || math.IsInf(f, 0) || !dst.OverflowFloat(f)
		}
	}
}

// fieldByIndexAlloc walks a struct by index path, allocating intermediate
// pointer nodes on the way (but NOT allocating the leaf pointer itself).
func fieldByIndexAlloc(root reflect.Value, path []int) reflect.Value {
	v := root
	for i, idx := range path {
		f := v.Field(idx)
		if i == len(path)-1 {
			return f
		}
		if f.Kind() == reflect.Pointer {
			if f.IsNil() {
				f.Set(reflect.New(f.Type().Elem()))
			}
			v = f.Elem()
		} else {
			v = f
		}
	}
	return v
}
