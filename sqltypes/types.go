package sqltypes

import (
	"fmt"
	"time"
)

// TypeTag identifies the SQL type a parameter value should be sent as.
// Use a tagged Value when the host type alone is ambiguous (e.g. string
// could be VARCHAR or NVARCHAR, float64 could be FLOAT or MONEY).
type TypeTag int

const (
	// TagUnspecified means the type is inferred from the host value.
	TagUnspecified TypeTag = iota

	// Character types
	TagVarchar
	TagChar
	TagText
	TagNVarchar
	TagNChar
	TagNText

	// Exact numerics
	TagBit
	TagTinyInt
	TagSmallInt
	TagInteger
	TagBigInt
	TagDecimal
	TagNumeric
	TagMoney
	TagSmallMoney

	// Approximate numerics
	TagFloat
	TagReal

	// Date and time
	TagDate
	TagTime
	TagDateTime
	TagDateTime2
	TagSmallDateTime
	TagDateTimeOffset

	// Binary
	TagBinary
	TagVarBinary
	TagImage

	TagUniqueIdentifier
)

var tagNames = map[TypeTag]string{
	TagUnspecified:      "UNSPECIFIED",
	TagVarchar:          "VARCHAR",
	TagChar:             "CHAR",
	TagText:             "TEXT",
	TagNVarchar:         "NVARCHAR",
	TagNChar:            "NCHAR",
	TagNText:            "NTEXT",
	TagBit:              "BIT",
	TagTinyInt:          "TINYINT",
	TagSmallInt:         "SMALLINT",
	TagInteger:          "INTEGER",
	TagBigInt:           "BIGINT",
	TagDecimal:          "DECIMAL",
	TagNumeric:          "NUMERIC",
	TagMoney:            "MONEY",
	TagSmallMoney:       "SMALLMONEY",
	TagFloat:            "FLOAT",
	TagReal:             "REAL",
	TagDate:             "DATE",
	TagTime:             "TIME",
	TagDateTime:         "DATETIME",
	TagDateTime2:        "DATETIME2",
	TagSmallDateTime:    "SMALLDATETIME",
	TagDateTimeOffset:   "DATETIMEOFFSET",
	TagBinary:           "BINARY",
	TagVarBinary:        "VARBINARY",
	TagImage:            "IMAGE",
	TagUniqueIdentifier: "UNIQUEIDENTIFIER",
}

// String returns the SQL name of the type tag.
func (t TypeTag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TypeTag(%d)", int(t))
}

// Value wraps a raw scalar with an explicit SQL type tag.
// A Value is immutable once constructed; binding never mutates it.
type Value struct {
	Tag TypeTag
	Raw interface{}
}

// IsNull reports whether the wrapped scalar is SQL NULL.
func (v Value) IsNull() bool {
	return v.Raw == nil
}

// String returns a diagnostic representation of the value.
func (v Value) String() string {
	if v.IsNull() {
		return fmt.Sprintf("%s(NULL)", v.Tag)
	}
	return fmt.Sprintf("%s(%v)", v.Tag, v.Raw)
}

// Typed value constructors. Each produces an immutable Value carrying the
// given scalar under an explicit SQL type tag.

func Varchar(s string) Value          { return Value{Tag: TagVarchar, Raw: s} }
func Char(s string) Value             { return Value{Tag: TagChar, Raw: s} }
func Text(s string) Value             { return Value{Tag: TagText, Raw: s} }
func NVarchar(s string) Value         { return Value{Tag: TagNVarchar, Raw: s} }
func NChar(s string) Value            { return Value{Tag: TagNChar, Raw: s} }
func NText(s string) Value            { return Value{Tag: TagNText, Raw: s} }
func Bit(b bool) Value                { return Value{Tag: TagBit, Raw: b} }
func TinyInt(i int8) Value            { return Value{Tag: TagTinyInt, Raw: int64(i)} }
func SmallInt(i int16) Value          { return Value{Tag: TagSmallInt, Raw: int64(i)} }
func Integer(i int32) Value           { return Value{Tag: TagInteger, Raw: int64(i)} }
func BigInt(i int64) Value            { return Value{Tag: TagBigInt, Raw: i} }
func Decimal(s string) Value          { return Value{Tag: TagDecimal, Raw: s} }
func Numeric(s string) Value          { return Value{Tag: TagNumeric, Raw: s} }
func Money(f float64) Value           { return Value{Tag: TagMoney, Raw: f} }
func SmallMoney(f float64) Value      { return Value{Tag: TagSmallMoney, Raw: f} }
func Float(f float64) Value           { return Value{Tag: TagFloat, Raw: f} }
func Real(f float32) Value            { return Value{Tag: TagReal, Raw: float64(f)} }
func Date(t time.Time) Value          { return Value{Tag: TagDate, Raw: t} }
func Time(t time.Time) Value          { return Value{Tag: TagTime, Raw: t} }
func DateTime(t time.Time) Value      { return Value{Tag: TagDateTime, Raw: t} }
func DateTime2(t time.Time) Value     { return Value{Tag: TagDateTime2, Raw: t} }
func SmallDateTime(t time.Time) Value { return Value{Tag: TagSmallDateTime, Raw: t} }
func DateTimeOffset(t time.Time) Value {
	return Value{Tag: TagDateTimeOffset, Raw: t}
}
func Binary(b []byte) Value    { return Value{Tag: TagBinary, Raw: b} }
func VarBinary(b []byte) Value { return Value{Tag: TagVarBinary, Raw: b} }
func Image(b []byte) Value     { return Value{Tag: TagImage, Raw: b} }
func UniqueIdentifier(s string) Value {
	return Value{Tag: TagUniqueIdentifier, Raw: s}
}

// Null returns a NULL value carrying the given type tag.
func Null(tag TypeTag) Value { return Value{Tag: tag, Raw: nil} }
