package sqltypes

import (
	"fmt"
	"time"
)

// Infer maps a host scalar onto a tagged Value using the fixed inference
// table below. Values that already carry a tag pass through unchanged.
//
// Inference table:
//
//	string    -> VARCHAR
//	bool      -> BIT
//	int8      -> TINYINT
//	int16     -> SMALLINT
//	int32     -> INTEGER
//	int,int64 -> BIGINT
//	float32   -> REAL
//	float64   -> FLOAT
//	[]byte    -> VARBINARY
//	time.Time -> DATETIME2
//	nil       -> NULL (untagged)
//
// Any other host type is rejected; callers must wrap such values with an
// explicit constructor from this package.
func Infer(raw interface{}) (Value, error) {
	switch v := raw.(type) {
	case Value:
		return v, nil
	case *Value:
		if v == nil {
			return Value{}, nil
		}
		return *v, nil
	case nil:
		return Value{}, nil
	case string:
		return Varchar(v), nil
	case bool:
		return Bit(v), nil
	case int8:
		return TinyInt(v), nil
	case int16:
		return SmallInt(v), nil
	case int32:
		return Integer(v), nil
	case int:
		return BigInt(int64(v)), nil
	case int64:
		return BigInt(v), nil
	case float32:
		return Real(v), nil
	case float64:
		return Float(v), nil
	case []byte:
		return VarBinary(v), nil
	case time.Time:
		return DateTime2(v), nil
	default:
		return Value{}, fmt.Errorf("sqltypes: cannot infer SQL type for host type %T", raw)
	}
}
