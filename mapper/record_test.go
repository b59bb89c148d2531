package mapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordGetCaseInsensitive(t *testing.T) {
	rec := Record{"UserName": "ann"}
	v, ok := rec.Get("username")
	require.True(t, ok)
	assert.Equal(t, "ann", v)

	_, ok = rec.Get("missing")
	assert.False(t, ok)
}

func TestRecordGetString(t *testing.T) {
	rec := Record{"s": "x", "i": int64(5), "f": 2.5, "b": true, "raw": []byte("bin")}

	for field, want := range map[string]string{
		"s": "x", "i": "5", "f": "2.5", "b": "true", "raw": "bin",
	} {
		got, err := rec.GetString(field)
		require.NoError(t, err, field)
		assert.Equal(t, want, got, field)
	}
}

func TestRecordGetInt64(t *testing.T) {
	rec := Record{"i": int64(42), "f": 3.0, "s": "17", "frac": 3.5, "junk": "abc"}

	got, err := rec.GetInt64("i")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	got, err = rec.GetInt64("f")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	got, err = rec.GetInt64("s")
	require.NoError(t, err)
	assert.Equal(t, int64(17), got)

	var tme *TypeMismatchError
	_, err = rec.GetInt64("frac")
	require.ErrorAs(t, err, &tme)
	_, err = rec.GetInt64("junk")
	require.ErrorAs(t, err, &tme)
}

func TestRecordGetBool(t *testing.T) {
	rec := Record{"b": true, "one": int64(1), "zero": int64(0), "s": "true", "bad": "maybe"}

	for field, want := range map[string]bool{"b": true, "one": true, "zero": false, "s": true} {
		got, err := rec.GetBool(field)
		require.NoError(t, err, field)
		assert.Equal(t, want, got, field)
	}

	var tme *TypeMismatchError
	_, err := rec.GetBool("bad")
	require.ErrorAs(t, err, &tme)
}

func TestRecordGetTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	rec := Record{"t": now, "s": "2024-05-01 12:30:00", "d": "2024-05-01", "bad": "not a time"}

	got, err := rec.GetTime("t")
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = rec.GetTime("s")
	require.NoError(t, err)
	assert.Equal(t, now, got.UTC())

	_, err = rec.GetTime("d")
	require.NoError(t, err)

	var tme *TypeMismatchError
	_, err = rec.GetTime("bad")
	require.ErrorAs(t, err, &tme)
}

func TestRecordNullValueMismatch(t *testing.T) {
	rec := Record{"n": nil}
	var tme *TypeMismatchError
	_, err := rec.GetInt64("n")
	require.ErrorAs(t, err, &tme)
	assert.Equal(t, "n", tme.Field)
}
