package quacksql

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

type Upper string

func (u *Upper) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		*u = Upper(strings.ToUpper(string(v)))
	case string:
		*u = Upper(strings.ToUpper(v))
	default:
		return fmt.Errorf("unsupported: %T", src)
	}
	return nil
}

// mockResult returns a Result whose execution yields rows.
func mockResult(t *testing.T, rows *sqlmock.Rows) *Result {
	t.Helper()
	db, mock := newMockDB(t)
	t.Cleanup(func() { db.Close() })
	mock.ExpectQuery(".*").WillReturnRows(rows)
	return newResult(db, "SELECT", nil)
}

// --------------------------------
// ScanOne
// --------------------------------

// TestMapper_ScanOne_Primitive reads a single value into a basic Go type,
// converting between numeric kinds.
func TestMapper_ScanOne_Primitive(t *testing.T) {
	res := mockResult(t, sqlmock.NewRows([]string{"v"}).AddRow(int64(42)))

	var v int32
	assertNoError(t, res.ScanOne(&v))
	if v != 42 {
		t.Fatalf("got=%d, want 42", v)
	}
}

// TestMapper_ScanOne_NoRows returns sql.ErrNoRows for an empty result.
func TestMapper_ScanOne_NoRows(t *testing.T) {
	res := mockResult(t, sqlmock.NewRows([]string{"v"}))

	var v int
	if err := res.ScanOne(&v); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err=%v, want sql.ErrNoRows", err)
	}
}

// TestMapper_ScanOne_MoreThanOneRow rejects multi-row results.
func TestMapper_ScanOne_MoreThanOneRow(t *testing.T) {
	res := mockResult(t, sqlmock.NewRows([]string{"v"}).AddRow(1).AddRow(2))

	var v int
	if err := res.ScanOne(&v); !errors.Is(err, ErrMoreThanOneRow) {
		t.Fatalf("err=%v, want ErrMoreThanOneRow", err)
	}
}

// TestMapper_ScanOne_PrimitiveNeedsOneColumn rejects multi-column results
// for non-struct destinations.
func TestMapper_ScanOne_PrimitiveNeedsOneColumn(t *testing.T) {
	res := mockResult(t, sqlmock.NewRows([]string{"a", "b"}).AddRow(1, 2))

	var v int
	if err := res.ScanOne(&v); err == nil {
		t.Fatalf("expected column count error")
	}
}

// TestMapper_ScanOne_BadDest requires a non-nil pointer.
func TestMapper_ScanOne_BadDest(t *testing.T) {
	res := newResult(nil, "SELECT 1", nil)
	var v int
	if err := res.ScanOne(v); !errors.Is(err, ErrInvalidDest) {
		t.Fatalf("err=%v, want ErrInvalidDest", err)
	}
	var p *int
	if err := res.ScanOne(p); !errors.Is(err, ErrInvalidDest) {
		t.Fatalf("err=%v, want ErrInvalidDest for nil pointer", err)
	}
}

// TestMapper_ScanOne_NumericRange rejects conversions that would wrap,
// drop a fraction or flip a sign, and accepts the ones that fit.
func TestMapper_ScanOne_NumericRange(t *testing.T) {
	tests := []struct {
		name string
		src  any
		dest any
		want string
		err  bool
	}{
		{"int64 overflows int8", int64(300), new(int8), "", true},
		{"int64 fits int8", int64(-128), new(int8), "-128", false},
		{"fraction into int", 3.9, new(int), "", true},
		{"whole float into int", 4.0, new(int), "4", false},
		{"negative into uint32", int64(-1), new(uint32), "", true},
		{"int64 fits uint32", int64(4294967295), new(uint32), "4294967295", false},
		{"uint64 overflows int64", uint64(1 << 63), new(int64), "", true},
		{"negative float into uint", -2.0, new(uint), "", true},
		{"float64 overflows float32", 1e300, new(float32), "", true},
		{"int64 into float64", int64(7), new(float64), "7", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mockResult(t, sqlmock.NewRows([]string{"v"}).AddRow(tt.src))
			err := res.ScanOne(tt.dest)
			if tt.err {
				if !errors.Is(err, ErrUnsupportedDest) {
					t.Fatalf("err=%v, want ErrUnsupportedDest", err)
				}
				return
			}
			assertNoError(t, err)
			if got := fmt.Sprint(reflect.ValueOf(tt.dest).Elem().Interface()); got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

type profile struct {
	City string `db:"city"`
}

type user struct {
	ID      int64      `db:"id"`
	Name    Upper      `db:"name"`
	Email   *string    `db:"email"`
	Joined  time.Time  `db:"joined"`
	Deleted *time.Time `db:"deleted"`
	Profile *profile
}

// TestMapper_ScanOne_Struct maps columns into fields, including Scanner
// fields, pointer fields, NULLs and nested pointer structs; unknown
// columns are skipped.
func TestMapper_ScanOne_Struct(t *testing.T) {
	joined := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	res := mockResult(t, sqlmock.NewRows([]string{"id", "name", "email", "joined", "deleted", "city", "extra"}).
		AddRow(int64(1), "ann", "ann@x.io", joined, nil, "Rome", "ignored"))

	var u user
	assertNoError(t, res.ScanOne(&u))

	if u.ID != 1 || u.Name != "ANN" || u.Email == nil || *u.Email != "ann@x.io" {
		t.Fatalf("user=%+v", u)
	}
	if !u.Joined.Equal(joined) || u.Deleted != nil {
		t.Fatalf("times: joined=%v deleted=%v", u.Joined, u.Deleted)
	}
	if u.Profile == nil || u.Profile.City != "Rome" {
		t.Fatalf("profile=%+v", u.Profile)
	}
}

// TestMapper_ScanOne_NullIntoValue fails for non-nullable fields.
func TestMapper_ScanOne_NullIntoValue(t *testing.T) {
	res := mockResult(t, sqlmock.NewRows([]string{"id"}).AddRow(nil))

	var v struct {
		ID int `db:"id"`
	}
	if err := res.ScanOne(&v); !errors.Is(err, ErrUnsupportedDest) {
		t.Fatalf("err=%v, want ErrUnsupportedDest", err)
	}
}

// TestMapper_ScanOne_NullScanner lets sql.Null* types absorb NULL.
func TestMapper_ScanOne_NullScanner(t *testing.T) {
	res := mockResult(t, sqlmock.NewRows([]string{"v"}).AddRow(nil))

	var v sql.NullInt64
	assertNoError(t, res.ScanOne(&v))
	if v.Valid {
		t.Fatalf("NullInt64 should be invalid, got %+v", v)
	}
}

// --------------------------------
// ScanAll
// --------------------------------

// TestMapper_ScanAll_Structs fills []struct and []*struct.
func TestMapper_ScanAll_Structs(t *testing.T) {
	type row struct {
		ID   int    `db:"id"`
		Name string `db:"name"`
	}

	res := mockResult(t, sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a").AddRow(2, "b"))
	var vals []row
	assertNoError(t, res.ScanAll(&vals))
	if len(vals) != 2 || vals[1] != (row{2, "b"}) {
		t.Fatalf("vals=%+v", vals)
	}

	res = mockResult(t, sqlmock.NewRows([]string{"id", "name"}).AddRow(3, "c"))
	ptrs := []*row{{ID: 99}}
	assertNoError(t, res.ScanAll(&ptrs))
	if len(ptrs) != 1 || *ptrs[0] != (row{3, "c"}) {
		t.Fatalf("ptrs=%+v", ptrs)
	}
}

// TestMapper_ScanAll_Primitives fills a slice from a single column and
// renders non-string values into string elements.
func TestMapper_ScanAll_Primitives(t *testing.T) {
	res := mockResult(t, sqlmock.NewRows([]string{"v"}).AddRow("x").AddRow([]byte("y")).AddRow(7))

	var out []string
	assertNoError(t, res.ScanAll(&out))
	if strings.Join(out, ",") != "x,y,7" {
		t.Fatalf("out=%v", out)
	}
}

// TestMapper_ScanAll_Ambiguous reports columns matching several fields.
func TestMapper_ScanAll_Ambiguous(t *testing.T) {
	type A struct {
		Name string `db:"name"`
	}
	type B struct {
		Name string `db:"name"`
	}
	type both struct {
		A
		B
	}
	res := mockResult(t, sqlmock.NewRows([]string{"name"}).AddRow("n"))
	var out []both
	if err := res.ScanAll(&out); !errors.Is(err, ErrFieldAmbiguous) {
		t.Fatalf("err=%v, want ErrFieldAmbiguous", err)
	}
}

// TestMapper_ScanAll_BadDest rejects non-slice destinations.
func TestMapper_ScanAll_BadDest(t *testing.T) {
	res := newResult(nil, "SELECT 1", nil)
	var v int
	if err := res.ScanAll(&v); !errors.Is(err, ErrDestNotSlice) {
		t.Fatalf("err=%v, want ErrDestNotSlice", err)
	}
	if err := res.ScanAll(nil); !errors.Is(err, ErrInvalidDest) {
		t.Fatalf("err=%v, want ErrInvalidDest", err)
	}
}

// TestMapper_ScanAll_UsesCursor only maps rows not yet consumed.
func TestMapper_ScanAll_UsesCursor(t *testing.T) {
	res := mockResult(t, sqlmock.NewRows([]string{"v"}).AddRow(1).AddRow(2).AddRow(3))

	_, err := res.FetchOne()
	assertNoError(t, err)

	var out []int
	assertNoError(t, res.ScanAll(&out))
	if fmt.Sprint(out) != "[2 3]" {
		t.Fatalf("out=%v", out)
	}
}
