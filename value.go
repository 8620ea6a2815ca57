package jscore

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

var (
	valueFalse     Value = valueBool(false)
	valueTrue      Value = valueBool(true)
	_null          Value = valueNull{}
	_undefined     Value = valueUndefined{}
	_uninitialized Value = valueUninitialized{}
	_NaN           Value = valueFloat(math.NaN())
	_positiveInf   Value = valueFloat(math.Inf(+1))
	_negativeInf   Value = valueFloat(math.Inf(-1))
	_positiveZero  Value = valueInt(0)
	negativeZero         = math.Float64frombits(0 | (1 << 63))
	_negativeZero  Value = valueFloat(negativeZero)
	stringEmpty    Value = valueString("")
)

const maxSafeInteger = 1<<53 - 1

// Value is a script value. Immediates (numbers, booleans, null, undefined)
// carry no ownership. *Object is reference counted: every Value returned by
// the runtime that may be an object must be released with FreeValue.
type Value interface {
	ToBoolean() bool
	// ToFloat converts primitives; objects give NaN without running script
	// code. Use Runtime.ToNumber for the full conversion.
	ToFloat() float64
	String() string
	// SameAs implements SameValue.
	SameAs(Value) bool
	StrictEquals(Value) bool
	Export() interface{}
}

type valueInt int32
type valueFloat float64
type valueBool bool
type valueNull struct{}
type valueUndefined struct{}

// valueUninitialized marks lexical bindings before initialization.
type valueUninitialized struct{}

type valueString string

type Symbol struct {
	desc string
	atom atom
}

type valueBigInt struct {
	v *big.Int
}

func intToValue(i int64) Value {
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return valueInt(i)
	}
	return valueFloat(float64(i))
}

func floatToValue(f float64) Value {
	if f >= math.MinInt32 && f <= math.MaxInt32 && f == math.Trunc(f) && !(f == 0 && math.Signbit(f)) {
		return valueInt(int32(f))
	}
	return valueFloat(f)
}

func newStringValue(s string) Value {
	return valueString(s)
}

func (i valueInt) ToBoolean() bool {
	return i != 0
}

func (i valueInt) ToFloat() float64 {
	return float64(i)
}

func (i valueInt) String() string {
	return strconv.FormatInt(int64(i), 10)
}

func (i valueInt) SameAs(other Value) bool {
	switch o := other.(type) {
	case valueInt:
		return i == o
	case valueFloat:
		return float64(i) == float64(o) && !(i == 0 && math.Signbit(float64(o)))
	}
	return false
}

func (i valueInt) StrictEquals(other Value) bool {
	switch o := other.(type) {
	case valueInt:
		return i == o
	case valueFloat:
		return float64(i) == float64(o)
	}
	return false
}

func (i valueInt) Export() interface{} {
	return int64(i)
}

func (f valueFloat) ToBoolean() bool {
	return float64(f) != 0 && !math.IsNaN(float64(f))
}

func (f valueFloat) ToFloat() float64 {
	return float64(f)
}

func (f valueFloat) String() string {
	return formatNumber(float64(f))
}

func (f valueFloat) SameAs(other Value) bool {
	switch o := other.(type) {
	case valueFloat:
		this := float64(f)
		o1 := float64(o)
		if math.IsNaN(this) && math.IsNaN(o1) {
			return true
		}
		return this == o1 && math.Signbit(this) == math.Signbit(o1)
	case valueInt:
		return o.SameAs(f)
	}
	return false
}

func (f valueFloat) StrictEquals(other Value) bool {
	switch o := other.(type) {
	case valueFloat:
		return f == o
	case valueInt:
		return float64(f) == float64(o)
	}
	return false
}

func (f valueFloat) Export() interface{} {
	return float64(f)
}

func (b valueBool) ToBoolean() bool {
	return bool(b)
}

func (b valueBool) ToFloat() float64 {
	if b {
		return 1
	}
	return 0
}

func (b valueBool) String() string {
	if b {
		return "true"
	}
	return "false"
}

func (b valueBool) SameAs(other Value) bool {
	return b.StrictEquals(other)
}

func (b valueBool) StrictEquals(other Value) bool {
	if o, ok := other.(valueBool); ok {
		return b == o
	}
	return false
}

func (b valueBool) Export() interface{} {
	return bool(b)
}

func (n valueNull) ToBoolean() bool {
	return false
}

func (n valueNull) ToFloat() float64 {
	return 0
}

func (n valueNull) String() string {
	return "null"
}

func (n valueNull) SameAs(other Value) bool {
	return n.StrictEquals(other)
}

func (n valueNull) StrictEquals(other Value) bool {
	_, ok := other.(valueNull)
	return ok
}

func (n valueNull) Export() interface{} {
	return nil
}

func (u valueUndefined) ToBoolean() bool {
	return false
}

func (u valueUndefined) ToFloat() float64 {
	return math.NaN()
}

func (u valueUndefined) String() string {
	return "undefined"
}

func (u valueUndefined) SameAs(other Value) bool {
	return u.StrictEquals(other)
}

func (u valueUndefined) StrictEquals(other Value) bool {
	_, ok := other.(valueUndefined)
	return ok
}

func (u valueUndefined) Export() interface{} {
	return nil
}

func (valueUninitialized) ToBoolean() bool         { return false }
func (valueUninitialized) ToFloat() float64        { return math.NaN() }
func (valueUninitialized) String() string          { return "<uninitialized>" }
func (valueUninitialized) SameAs(Value) bool       { return false }
func (valueUninitialized) StrictEquals(Value) bool { return false }
func (valueUninitialized) Export() interface{}     { return nil }

func (s valueString) ToBoolean() bool {
	return len(s) > 0
}

func (s valueString) ToFloat() float64 {
	return stringToNumber(string(s))
}

func (s valueString) String() string {
	return string(s)
}

func (s valueString) SameAs(other Value) bool {
	return s.StrictEquals(other)
}

func (s valueString) StrictEquals(other Value) bool {
	if o, ok := other.(valueString); ok {
		return s == o
	}
	return false
}

func (s valueString) Export() interface{} {
	return string(s)
}

func (s *Symbol) ToBoolean() bool {
	return true
}

func (s *Symbol) ToFloat() float64 {
	return math.NaN()
}

func (s *Symbol) String() string {
	return "Symbol(" + s.desc + ")"
}

func (s *Symbol) SameAs(other Value) bool {
	return s.StrictEquals(other)
}

func (s *Symbol) StrictEquals(other Value) bool {
	o, ok := other.(*Symbol)
	return ok && s == o
}

func (s *Symbol) Export() interface{} {
	return s.String()
}

// Description returns the text given when the symbol was created.
func (s *Symbol) Description() string {
	return s.desc
}

func (b *valueBigInt) ToBoolean() bool {
	return b.v.Sign() != 0
}

func (b *valueBigInt) ToFloat() float64 {
	f, _ := new(big.Float).SetInt(b.v).Float64()
	return f
}

func (b *valueBigInt) String() string {
	return b.v.String()
}

func (b *valueBigInt) SameAs(other Value) bool {
	return b.StrictEquals(other)
}

func (b *valueBigInt) StrictEquals(other Value) bool {
	o, ok := other.(*valueBigInt)
	return ok && b.v.Cmp(o.v) == 0
}

func (b *valueBigInt) Export() interface{} {
	return new(big.Int).Set(b.v)
}

// NewBigInt returns a BigInt primitive holding a copy of v.
func NewBigInt(v *big.Int) Value {
	return &valueBigInt{v: new(big.Int).Set(v)}
}

func isNumber(v Value) (float64, bool) {
	switch n := v.(type) {
	case valueInt:
		return float64(n), true
	case valueFloat:
		return float64(n), true
	}
	return 0, false
}

func sameValueZero(a, b Value) bool {
	if x, ok := isNumber(a); ok {
		if y, ok := isNumber(b); ok {
			if math.IsNaN(x) && math.IsNaN(y) {
				return true
			}
			return x == y
		}
		return false
	}
	return a.StrictEquals(b)
}

// IsUndefined reports whether v is nil or undefined.
func IsUndefined(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(valueUndefined)
	return ok
}

// IsNull reports whether v is null.
func IsNull(v Value) bool {
	_, ok := v.(valueNull)
	return ok
}

func isNullish(v Value) bool {
	switch v.(type) {
	case nil, valueNull, valueUndefined:
		return true
	}
	return false
}

// Undefined returns the undefined value.
func Undefined() Value {
	return _undefined
}

// Null returns the null value.
func Null() Value {
	return _null
}

// formatNumber renders f the way Number.prototype.toString does with radix
// 10: shortest round-trip digits, positional notation for exponents in
// [-7, 21), exponential notation otherwise.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		if math.Abs(f) < 1<<63 {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	var sb strings.Builder
	if f < 0 {
		sb.WriteByte('-')
		f = -f
	}
	e := strconv.FormatFloat(f, 'e', -1, 64)
	mant, expPart, _ := strings.Cut(e, "e")
	digits := strings.Replace(mant, ".", "", 1)
	exp, _ := strconv.Atoi(expPart)
	k := len(digits)
	n := exp + 1
	switch {
	case k <= n && n <= 21:
		sb.WriteString(digits)
		sb.WriteString(strings.Repeat("0", n-k))
	case 0 < n && n <= 21:
		sb.WriteString(digits[:n])
		sb.WriteByte('.')
		sb.WriteString(digits[n:])
	case -6 < n && n <= 0:
		sb.WriteString("0.")
		sb.WriteString(strings.Repeat("0", -n))
		sb.WriteString(digits)
	default:
		sb.WriteByte(digits[0])
		if k > 1 {
			sb.WriteByte('.')
			sb.WriteString(digits[1:])
		}
		sb.WriteByte('e')
		if n-1 >= 0 {
			sb.WriteByte('+')
		}
		sb.WriteString(strconv.Itoa(n - 1))
	}
	return sb.String()
}

func isJSSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', 0xA0, 0x1680, 0x2028, 0x2029, 0x202F, 0x205F, 0x3000, 0xFEFF:
		return true
	}
	return r >= 0x2000 && r <= 0x200A
}

// stringToNumber implements StringToNumber.
func stringToNumber(s string) float64 {
	s = strings.TrimFunc(s, isJSSpace)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, ok := new(big.Int).SetString(s[2:], base)
			if !ok || strings.ContainsAny(s[2:], "_+-") {
				return math.NaN()
			}
			f, _ := new(big.Float).SetInt(n).Float64()
			return f
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-') {
			return math.NaN()
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}
