package common

import (
	"fmt"
	"strings"
)

// LType is the declared value type of a column or symbol.
// Elem is only set for arrays.
type LType struct {
	Id    LTypeId
	Elem  LTypeId
	Width int
	Scale int
}

func MakeLType(id LTypeId) LType {
	return LType{Id: id}
}

func Null() LType {
	return MakeLType(LTID_NULL)
}

func UndefinedType() LType {
	return MakeLType(LTID_UNDEFINED)
}

func BooleanType() LType {
	return MakeLType(LTID_BOOLEAN)
}

func TinyintType() LType {
	return MakeLType(LTID_TINYINT)
}

func SmallintType() LType {
	return MakeLType(LTID_SMALLINT)
}

func IntegerType() LType {
	return MakeLType(LTID_INTEGER)
}

func BigintType() LType {
	return MakeLType(LTID_BIGINT)
}

func FloatType() LType {
	return MakeLType(LTID_FLOAT)
}

func DoubleType() LType {
	return MakeLType(LTID_DOUBLE)
}

func DecimalType(width, scale int) LType {
	ret := MakeLType(LTID_DECIMAL)
	ret.Width = width
	ret.Scale = scale
	return ret
}

func VarcharType() LType {
	return MakeLType(LTID_VARCHAR)
}

func TimestampType() LType {
	return MakeLType(LTID_TIMESTAMP)
}

func IpType() LType {
	return MakeLType(LTID_IP)
}

func GeoPointType() LType {
	return MakeLType(LTID_GEO_POINT)
}

func GeoShapeType() LType {
	return MakeLType(LTID_GEO_SHAPE)
}

func ObjectType() LType {
	return MakeLType(LTID_OBJECT)
}

func ArrayType(elem LTypeId) LType {
	ret := MakeLType(LTID_ARRAY)
	ret.Elem = elem
	return ret
}

var Numerics = map[LTypeId]int{
	LTID_TINYINT:  0,
	LTID_SMALLINT: 0,
	LTID_INTEGER:  0,
	LTID_BIGINT:   0,
	LTID_FLOAT:    0,
	LTID_DOUBLE:   0,
	LTID_DECIMAL:  0,
}

func (lt LType) IsNumeric() bool {
	if _, has := Numerics[lt.Id]; has {
		return true
	}
	return false
}

func (lt LType) IsObject() bool {
	return lt.Id == LTID_OBJECT
}

func (lt LType) IsUndefined() bool {
	return lt.Id == LTID_UNDEFINED
}

func (lt LType) Equal(o LType) bool {
	if lt.Id != o.Id {
		return false
	}
	switch lt.Id {
	case LTID_DECIMAL:
		return lt.Width == o.Width && lt.Scale == o.Scale
	case LTID_ARRAY:
		return lt.Elem == o.Elem
	default:
	}
	return true
}

var lTypeIdToName = map[LTypeId]string{
	LTID_NULL:      "null",
	LTID_UNDEFINED: "undefined",
	LTID_BOOLEAN:   "boolean",
	LTID_TINYINT:   "byte",
	LTID_SMALLINT:  "short",
	LTID_INTEGER:   "integer",
	LTID_BIGINT:    "long",
	LTID_TIMESTAMP: "timestamp",
	LTID_DECIMAL:   "numeric",
	LTID_FLOAT:     "float",
	LTID_DOUBLE:    "double",
	LTID_VARCHAR:   "string",
	LTID_IP:        "ip",
	LTID_GEO_POINT: "geo_point",
	LTID_GEO_SHAPE: "geo_shape",
	LTID_OBJECT:    "object",
	LTID_ARRAY:     "array",
}

func (lt LType) String() string {
	name, has := lTypeIdToName[lt.Id]
	if !has {
		return lt.Id.String()
	}
	switch lt.Id {
	case LTID_DECIMAL:
		if lt.Width != 0 {
			return fmt.Sprintf("%s(%d,%d)", name, lt.Width, lt.Scale)
		}
	case LTID_ARRAY:
		return fmt.Sprintf("%s(%s)", name, MakeLType(lt.Elem))
	}
	return name
}

// nameToLTypeId covers both the index mapping type names and the
// sql type names accepted by casts.
var nameToLTypeId = map[string]LTypeId{
	"undefined":        LTID_UNDEFINED,
	"boolean":          LTID_BOOLEAN,
	"bool":             LTID_BOOLEAN,
	"byte":             LTID_TINYINT,
	"char":             LTID_TINYINT,
	"short":            LTID_SMALLINT,
	"smallint":         LTID_SMALLINT,
	"int2":             LTID_SMALLINT,
	"integer":          LTID_INTEGER,
	"int":              LTID_INTEGER,
	"int4":             LTID_INTEGER,
	"long":             LTID_BIGINT,
	"bigint":           LTID_BIGINT,
	"int8":             LTID_BIGINT,
	"float":            LTID_FLOAT,
	"real":             LTID_FLOAT,
	"float4":           LTID_FLOAT,
	"double":           LTID_DOUBLE,
	"float8":           LTID_DOUBLE,
	"double precision": LTID_DOUBLE,
	"numeric":          LTID_DECIMAL,
	"decimal":          LTID_DECIMAL,
	"string":           LTID_VARCHAR,
	"keyword":          LTID_VARCHAR,
	"text":             LTID_VARCHAR,
	"varchar":          LTID_VARCHAR,
	"timestamp":        LTID_TIMESTAMP,
	"timestamptz":      LTID_TIMESTAMP,
	"date":             LTID_TIMESTAMP,
	"ip":               LTID_IP,
	"geo_point":        LTID_GEO_POINT,
	"geo_shape":        LTID_GEO_SHAPE,
	"object":           LTID_OBJECT,
	"nested":           LTID_OBJECT,
}

// ParseLType resolves a type name, e.g. "long" or "array(string)".
func ParseLType(name string) (LType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if strings.HasPrefix(name, "array(") && strings.HasSuffix(name, ")") {
		elem, err := ParseLType(name[len("array(") : len(name)-1])
		if err != nil {
			return LType{}, err
		}
		if elem.Id == LTID_ARRAY {
			return LType{}, fmt.Errorf("nested arrays are not supported: %s", name)
		}
		return ArrayType(elem.Id), nil
	}
	if id, has := nameToLTypeId[name]; has {
		return MakeLType(id), nil
	}
	return LType{}, fmt.Errorf("unknown type name %q", name)
}
