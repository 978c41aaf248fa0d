package cursor

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var allTypesFields = Descriptors{
	{Name: "B", Type: TypeBoolean},
	{Name: "T", Type: TypeTinyInt},
	{Name: "S", Type: TypeSmallInt},
	{Name: "I", Type: TypeInteger},
	{Name: "L", Type: TypeBigInt},
	{Name: "F", Type: TypeFloat},
	{Name: "D", Type: TypeDouble},
	{Name: "N", Type: TypeNumeric, Size: 18, Scale: -2},
	{Name: "V", Type: TypeVarChar, Size: 10},
	{Name: "TS", Type: TypeTimestamp},
	{Name: "G", Type: TypeGuid},
	{Name: "BIN", Type: TypeBinary},
	{Name: "NUL", Type: TypeVarChar, Nullable: true},
}

var (
	sampleTime = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	sampleID   = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
)

func allTypesRow() []any {
	return []any{
		true,
		uint8(7),
		int16(-3),
		int32(42),
		int64(1 << 40),
		float32(1.5),
		float64(2.25),
		decimal.RequireFromString("12.34"),
		"hello",
		sampleTime,
		sampleID,
		[]byte{0, 1, 2, 3, 4, 5},
		nil,
	}
}

// getters calls every typed accessor on ordinal i.
func getters(r *Reader) map[string]func(i int) error {
	return map[string]func(int) error{
		"GetBoolean":  func(i int) error { _, err := r.GetBoolean(i); return err },
		"GetByte":     func(i int) error { _, err := r.GetByte(i); return err },
		"GetInt16":    func(i int) error { _, err := r.GetInt16(i); return err },
		"GetInt32":    func(i int) error { _, err := r.GetInt32(i); return err },
		"GetInt64":    func(i int) error { _, err := r.GetInt64(i); return err },
		"GetFloat":    func(i int) error { _, err := r.GetFloat(i); return err },
		"GetDouble":   func(i int) error { _, err := r.GetDouble(i); return err },
		"GetDecimal":  func(i int) error { _, err := r.GetDecimal(i); return err },
		"GetString":   func(i int) error { _, err := r.GetString(i); return err },
		"GetChar":     func(i int) error { _, err := r.GetChar(i); return err },
		"GetDateTime": func(i int) error { _, err := r.GetDateTime(i); return err },
		"GetGuid":     func(i int) error { _, err := r.GetGuid(i); return err },
		"GetValue":    func(i int) error { _, err := r.GetValue(i); return err },
		"IsDBNull":    func(i int) error { _, err := r.IsDBNull(i); return err },
		"GetBytes":    func(i int) error { _, err := r.GetBytes(i, 0, nil, 0, 0); return err },
		"GetChars":    func(i int) error { _, err := r.GetChars(i, 0, nil, 0, 0); return err },
	}
}

func TestGettersBeforeRead(t *testing.T) {
	r := NewReader(newFakeCommand(allTypesFields, allTypesRow()), nil, BehaviorDefault)
	for name, get := range getters(r) {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, get(0), ErrNoData)
		})
	}
}

func TestGettersOutOfRange(t *testing.T) {
	r := NewReader(newFakeCommand(allTypesFields, allTypesRow()), nil, BehaviorDefault)
	ok, err := r.Read()
	require.NoError(t, err)
	require.True(t, ok)

	for name, get := range getters(r) {
		t.Run(name, func(t *testing.T) {
			for _, i := range []int{-1, len(allTypesFields), len(allTypesFields) + 10} {
				require.ErrorIs(t, get(i), ErrOrdinalOutOfRange, "ordinal %d", i)
			}
		})
	}
}

func TestTypedGetters(t *testing.T) {
	require := require.New(t)

	r := NewReader(newFakeCommand(allTypesFields, allTypesRow()), nil, BehaviorDefault)
	ok, err := r.Read()
	require.NoError(err)
	require.True(ok)

	b, err := r.GetBoolean(0)
	require.NoError(err)
	require.True(b)

	u8, err := r.GetByte(1)
	require.NoError(err)
	require.EqualValues(7, u8)

	i16, err := r.GetInt16(2)
	require.NoError(err)
	require.EqualValues(-3, i16)

	i32, err := r.GetInt32(3)
	require.NoError(err)
	require.EqualValues(42, i32)

	i64, err := r.GetInt64(4)
	require.NoError(err)
	require.EqualValues(1<<40, i64)

	// Widening conversions between integer columns are allowed.
	i64, err = r.GetInt64(3)
	require.NoError(err)
	require.EqualValues(42, i64)

	f32, err := r.GetFloat(5)
	require.NoError(err)
	require.InDelta(1.5, f32, 0)

	f64, err := r.GetDouble(6)
	require.NoError(err)
	require.InDelta(2.25, f64, 0)

	d, err := r.GetDecimal(7)
	require.NoError(err)
	require.True(decimal.RequireFromString("12.34").Equal(d))

	s, err := r.GetString(8)
	require.NoError(err)
	require.Equal("hello", s)

	c, err := r.GetChar(8)
	require.NoError(err)
	require.Equal('h', c)

	ts, err := r.GetDateTime(9)
	require.NoError(err)
	require.True(sampleTime.Equal(ts))

	id, err := r.GetGuid(10)
	require.NoError(err)
	require.Equal(sampleID, id)

	null, err := r.IsDBNull(12)
	require.NoError(err)
	require.True(null)

	v, err := r.GetValue(12)
	require.NoError(err)
	require.Nil(v)
}

func TestGetterConversionFailure(t *testing.T) {
	require := require.New(t)

	r := NewReader(newFakeCommand(allTypesFields, allTypesRow()), nil, BehaviorDefault)
	_, err := r.Read()
	require.NoError(err)

	_, err = r.GetInt32(8)
	var pe *ProviderError
	require.ErrorAs(err, &pe)
	require.Equal("GetInt32", pe.Op)
	require.Equal(8, pe.Ordinal)

	var ee *EngineError
	require.ErrorAs(err, &ee)
	require.Equal("conversion", ee.Code)

	_, err = r.GetString(12)
	require.ErrorIs(err, ErrNullValue)
	require.ErrorAs(err, &pe)
}

func TestScaledIntegerIsDecimal(t *testing.T) {
	require := require.New(t)

	fields := Descriptors{{Name: "PRICE", Type: TypeBigInt, Scale: -2}}
	r := NewReader(newFakeCommand(fields, []any{int64(12345)}), nil, BehaviorDefault)
	_, err := r.Read()
	require.NoError(err)

	v, err := r.GetValue(0)
	require.NoError(err)
	require.IsType(decimal.Decimal{}, v)
	require.Equal("123.45", v.(decimal.Decimal).String())

	d, err := r.GetDecimal(0)
	require.NoError(err)
	require.Equal("123.45", d.String())
}

func TestGetBytes(t *testing.T) {
	fields := Descriptors{
		{Name: "DATA", Type: TypeBinary, Nullable: true},
	}
	payload := []byte{10, 11, 12, 13, 14, 15}

	t.Run("partial copy", func(t *testing.T) {
		require := require.New(t)

		r := NewReader(newFakeCommand(fields, []any{payload}), nil, BehaviorDefault)
		_, err := r.Read()
		require.NoError(err)

		buf := make([]byte, 4)
		n, err := r.GetBytes(0, 2, buf, 0, 4)
		require.NoError(err)
		require.EqualValues(4, n)
		require.Equal(payload[2:6], buf)
	})

	t.Run("length clipped to remaining data", func(t *testing.T) {
		require := require.New(t)

		r := NewReader(newFakeCommand(fields, []any{payload}), nil, BehaviorDefault)
		_, err := r.Read()
		require.NoError(err)

		buf := make([]byte, 8)
		n, err := r.GetBytes(0, 4, buf, 1, 8)
		require.NoError(err)
		require.EqualValues(2, n)
		require.Equal([]byte{0, 14, 15, 0, 0, 0, 0, 0}, buf)
	})

	t.Run("nil buffer returns total length", func(t *testing.T) {
		require := require.New(t)

		r := NewReader(newFakeCommand(fields, []any{payload}, []any{nil}), nil, BehaviorDefault)
		_, err := r.Read()
		require.NoError(err)

		n, err := r.GetBytes(0, 0, nil, 0, 0)
		require.NoError(err)
		require.EqualValues(6, n)

		_, err = r.Read()
		require.NoError(err)
		n, err = r.GetBytes(0, 0, nil, 0, 0)
		require.NoError(err)
		require.Zero(n)
	})

	t.Run("buffer too small", func(t *testing.T) {
		require := require.New(t)

		r := NewReader(newFakeCommand(fields, []any{payload}), nil, BehaviorDefault)
		_, err := r.Read()
		require.NoError(err)

		_, err = r.GetBytes(0, 0, make([]byte, 2), 0, 6)
		require.ErrorIs(err, ErrBufferRange)
		_, err = r.GetBytes(0, 7, make([]byte, 2), 0, 1)
		require.ErrorIs(err, ErrBufferRange)
	})
}

func TestGetChars(t *testing.T) {
	require := require.New(t)

	fields := Descriptors{{Name: "TXT", Type: TypeVarChar, Size: 10}}
	r := NewReader(newFakeCommand(fields, []any{"añoñimo"}), nil, BehaviorDefault)
	_, err := r.Read()
	require.NoError(err)

	n, err := r.GetChars(0, 0, nil, 0, 0)
	require.NoError(err)
	require.EqualValues(7, n)

	buf := make([]rune, 3)
	n, err = r.GetChars(0, 1, buf, 0, 3)
	require.NoError(err)
	require.EqualValues(3, n)
	require.Equal([]rune("ñoñ"), buf)
}

func TestGetValues(t *testing.T) {
	require := require.New(t)

	r := NewReader(newFakeCommand(allTypesFields, allTypesRow()), nil, BehaviorDefault)
	_, err := r.Read()
	require.NoError(err)

	short := make([]any, 3)
	n, err := r.GetValues(short)
	require.NoError(err)
	require.Equal(3, n)
	require.Equal([]any{true, uint8(7), int16(-3)}, short)

	long := make([]any, len(allTypesFields)+2)
	n, err = r.GetValues(long)
	require.NoError(err)
	require.Equal(len(allTypesFields), n)
	require.Nil(long[12])
}

func TestBooleanCoercion(t *testing.T) {
	fields := Descriptors{
		{Name: "FLAG", Type: TypeSmallInt, Nullable: true},
		{Name: "OPT", Type: TypeSmallInt, Nullable: true},
		{Name: "NB", Type: TypeSmallInt, Nullable: true},
		{Name: "RAW", Type: TypeSmallInt},
	}
	expected := []reflect.Type{
		reflect.TypeOf(false),
		reflect.TypeOf((*bool)(nil)),
		reflect.TypeOf(sql.NullBool{}),
	}

	t.Run("values are coerced to bool", func(t *testing.T) {
		require := require.New(t)

		cmd := newFakeCommand(fields, []any{int16(1), int16(0), int16(1), int16(1)})
		cmd.expected = expected
		r := NewReader(cmd, nil, BehaviorDefault)
		_, err := r.Read()
		require.NoError(err)

		values := make([]any, 4)
		_, err = r.GetValues(values)
		require.NoError(err)
		require.Equal([]any{true, false, true, int16(1)}, values)
	})

	t.Run("null stays null", func(t *testing.T) {
		require := require.New(t)

		cmd := newFakeCommand(fields, []any{int16(1), nil, nil, int16(0)})
		cmd.expected = expected
		r := NewReader(cmd, nil, BehaviorDefault)
		_, err := r.Read()
		require.NoError(err)

		v, err := r.GetValue(1)
		require.NoError(err)
		require.Nil(v)
		v, err = r.GetValue(2)
		require.NoError(err)
		require.Nil(v)

		p, err := GetFieldValue[*bool](r, 1)
		require.NoError(err)
		require.Nil(p)

		p, err = GetFieldValue[*bool](r, 0)
		require.NoError(err)
		require.NotNil(p)
		require.True(*p)
	})

	t.Run("policy can be disabled", func(t *testing.T) {
		require := require.New(t)

		cmd := newFakeCommand(fields, []any{int16(1), int16(0), int16(1), int16(1)})
		cmd.expected = expected
		r := NewReader(cmd, nil, BehaviorDefault, WithCoercionPolicy(nil))
		_, err := r.Read()
		require.NoError(err)

		v, err := r.GetValue(0)
		require.NoError(err)
		require.Equal(int16(1), v)
	})
}

func TestNullableUnderlying(t *testing.T) {
	tests := []struct {
		in   reflect.Type
		want reflect.Type
	}{
		{reflect.TypeOf((*bool)(nil)), typeBool},
		{reflect.TypeOf(sql.NullBool{}), typeBool},
		{reflect.TypeOf(sql.Null[bool]{}), typeBool},
		{reflect.TypeOf(sql.NullInt32{}), typeInt32},
		{reflect.TypeOf(false), nil},
		{reflect.TypeOf(struct{ A, B int }{}), nil},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			require.Equal(t, tt.want, nullableUnderlying(tt.in))
		})
	}
}

func TestGetFieldValue(t *testing.T) {
	require := require.New(t)

	r := NewReader(newFakeCommand(allTypesFields, allTypesRow()), nil, BehaviorDefault)
	_, err := r.Read()
	require.NoError(err)

	n, err := GetFieldValue[int64](r, 3)
	require.NoError(err)
	require.EqualValues(42, n)

	s, err := GetFieldValue[string](r, 8)
	require.NoError(err)
	require.Equal("hello", s)

	_, err = GetFieldValue[string](r, 3)
	var pe *ProviderError
	require.ErrorAs(err, &pe)

	_, err = GetFieldValue[string](r, 12)
	require.ErrorIs(err, ErrNullValue)

	v, err := GetFieldValue[any](r, 12)
	require.NoError(err)
	require.Nil(v)
}
