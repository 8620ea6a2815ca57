package jscore

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// localePrinter returns the printer for the configured locale, creating it
// on first use.
func (r *Runtime) localePrinter() *message.Printer {
	if r.printer == nil {
		r.printer = message.NewPrinter(r.opts.locale)
	}
	return r.printer
}

// formatLocaleNumber renders f with the locale's grouping and decimal
// separators and at most three fraction digits.
func (r *Runtime) formatLocaleNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "∞"
	case math.IsInf(f, -1):
		return "-∞"
	}
	return r.localePrinter().Sprint(number.Decimal(f, number.MaxFractionDigits(3)))
}

// thisNumberValue unwraps a number primitive or Number object.
func (r *Runtime) thisNumberValue(v Value, method string) (float64, error) {
	if f, ok := isNumber(v); ok {
		return f, nil
	}
	if p, ok := primitiveOf(v, ClassNumber); ok {
		return p.ToFloat(), nil
	}
	return 0, r.throwTypeError("Number.prototype.%s requires that 'this' be a Number", method)
}

// toNumeric converts v for the Number constructor. BigInts convert to
// their nearest float.
func (r *Runtime) toNumeric(v Value) (Value, error) {
	p, err := r.toPrimitive(v, hintNumber)
	if err != nil {
		return nil, err
	}
	if b, ok := p.(*valueBigInt); ok {
		f, _ := new(big.Float).SetInt(b.v).Float64()
		return floatToValue(f), nil
	}
	return r.toNumber(p)
}

func (r *Runtime) builtin_Number(call FunctionCall) (Value, error) {
	var n Value = _positiveZero
	if len(call.Arguments) > 0 {
		var err error
		if n, err = r.toNumeric(call.Arguments[0]); err != nil {
			return nil, err
		}
	}
	if call.NewTarget == nil {
		return n, nil
	}
	proto, err := r.getPrototypeFromConstructor(call.NewTarget, r.realm.numberProto)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(proto)
	return r.newPrimitiveObject(n, proto, ClassNumber)
}

func (r *Runtime) numberproto_valueOf(call FunctionCall) (Value, error) {
	f, err := r.thisNumberValue(call.This, "valueOf")
	if err != nil {
		return nil, err
	}
	return floatToValue(f), nil
}

func (r *Runtime) numberproto_toString(call FunctionCall) (Value, error) {
	f, err := r.thisNumberValue(call.This, "toString")
	if err != nil {
		return nil, err
	}
	radix := 10
	if arg := call.Argument(0); !IsUndefined(arg) {
		rf, err := r.toIntegerOrInfinity(arg)
		if err != nil {
			return nil, err
		}
		if rf < 2 || rf > 36 {
			return nil, r.throwRangeError("toString() radix argument must be between 2 and 36")
		}
		radix = int(rf)
	}
	if radix == 10 {
		return newStringValue(formatNumber(f)), nil
	}
	return newStringValue(formatRadix(f, radix)), nil
}

// formatRadix renders f in the given base with up to 52 fraction digits.
func formatRadix(f float64, radix int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if f == math.Trunc(f) && math.Abs(f) <= maxSafeInteger {
		return strconv.FormatInt(int64(f), radix)
	}
	neg := f < 0
	if neg {
		f = -f
	}
	ip, fp := math.Modf(f)
	bi, _ := new(big.Float).SetFloat64(ip).Int(nil)
	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	sb.WriteString(bi.Text(radix))
	if fp > 0 {
		sb.WriteByte('.')
		for i := 0; i < 52 && fp > 0; i++ {
			fp *= float64(radix)
			d := int(fp)
			fp -= float64(d)
			sb.WriteByte(strconv.FormatInt(int64(d), radix)[0])
		}
	}
	return sb.String()
}

func (r *Runtime) numberproto_toFixed(call FunctionCall) (Value, error) {
	f, err := r.thisNumberValue(call.This, "toFixed")
	if err != nil {
		return nil, err
	}
	df, err := r.toIntegerOrInfinity(call.Argument(0))
	if err != nil {
		return nil, err
	}
	if df < 0 || df > 100 {
		return nil, r.throwRangeError("toFixed() digits argument must be between 0 and 100")
	}
	if math.IsNaN(f) || math.Abs(f) >= 1e21 {
		return newStringValue(formatNumber(f)), nil
	}
	return newStringValue(formatFixed(f, int(df))), nil
}

// formatFixed rounds f to digits fraction digits, ties away from zero on
// the exact binary value.
func formatFixed(f float64, digits int) string {
	neg := f < 0
	if neg {
		f = -f
	}
	scaled := new(big.Float).SetPrec(1200).SetFloat64(f)
	pow := new(big.Float).SetPrec(1200).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil))
	scaled.Mul(scaled, pow)
	scaled.Add(scaled, big.NewFloat(0.5))
	n, _ := scaled.Int(nil)
	s := n.String()
	if digits > 0 {
		if len(s) <= digits {
			s = strings.Repeat("0", digits-len(s)+1) + s
		}
		s = s[:len(s)-digits] + "." + s[len(s)-digits:]
	}
	if neg {
		s = "-" + s
	}
	return s
}

func (r *Runtime) numberproto_toLocaleString(call FunctionCall) (Value, error) {
	f, err := r.thisNumberValue(call.This, "toLocaleString")
	if err != nil {
		return nil, err
	}
	return newStringValue(r.formatLocaleNumber(f)), nil
}

func (r *Runtime) number_isFinite(call FunctionCall) (Value, error) {
	f, ok := isNumber(call.Argument(0))
	return valueBool(ok && !math.IsNaN(f) && !math.IsInf(f, 0)), nil
}

func (r *Runtime) number_isInteger(call FunctionCall) (Value, error) {
	f, ok := isNumber(call.Argument(0))
	return valueBool(ok && !math.IsInf(f, 0) && f == math.Trunc(f)), nil
}

func (r *Runtime) number_isNaN(call FunctionCall) (Value, error) {
	f, ok := isNumber(call.Argument(0))
	return valueBool(ok && math.IsNaN(f)), nil
}

func (r *Runtime) number_isSafeInteger(call FunctionCall) (Value, error) {
	f, ok := isNumber(call.Argument(0))
	return valueBool(ok && f == math.Trunc(f) && math.Abs(f) <= maxSafeInteger), nil
}

func (r *Runtime) builtin_parseFloat(call FunctionCall) (Value, error) {
	s, err := r.toStringValue(call.Argument(0))
	if err != nil {
		return nil, err
	}
	s = strings.TrimLeftFunc(s, isJSSpace)
	end := 0
	for _, prefix := range []string{"Infinity", "+Infinity", "-Infinity"} {
		if strings.HasPrefix(s, prefix) {
			return floatToValue(stringToNumber(prefix)), nil
		}
	}
	seenDot, seenExp, digits := false, false, false
scan:
	for end < len(s) {
		c := s[end]
		switch {
		case c >= '0' && c <= '9':
			digits = true
		case (c == '+' || c == '-') && (end == 0 || s[end-1] == 'e' || s[end-1] == 'E'):
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && digits && !seenExp:
			seenExp = true
		default:
			break scan
		}
		end++
	}
	for end > 0 {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil || isRangeErr(err) {
			return floatToValue(f), nil
		}
		end--
	}
	return _NaN, nil
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

func (r *Runtime) builtin_parseInt(call FunctionCall) (Value, error) {
	s, err := r.toStringValue(call.Argument(0))
	if err != nil {
		return nil, err
	}
	rf, err := r.toIntegerOrInfinity(call.Argument(1))
	if err != nil {
		return nil, err
	}
	s = strings.TrimLeftFunc(s, isJSSpace)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	radix := int(toUint32(rf))
	if radix != 0 && (radix < 2 || radix > 36) {
		return _NaN, nil
	}
	if (radix == 0 || radix == 16) && len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
		radix = 16
	}
	if radix == 0 {
		radix = 10
	}
	end := 0
	for end < len(s) {
		d, err := strconv.ParseUint(s[end:end+1], radix, 8)
		if err != nil || int(d) >= radix {
			break
		}
		end++
	}
	if end == 0 {
		return _NaN, nil
	}
	n, ok := new(big.Int).SetString(s[:end], radix)
	if !ok {
		return _NaN, nil
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	if neg {
		f = -f
	}
	return floatToValue(f), nil
}

func (r *Runtime) initNumber(b *builder) {
	c := r.realm
	proto := c.numberProto
	b.method(proto, "toFixed", 1, r.numberproto_toFixed)
	b.method(proto, "toLocaleString", 0, r.numberproto_toLocaleString)
	b.method(proto, "toString", 1, r.numberproto_toString)
	b.method(proto, "valueOf", 0, r.numberproto_valueOf)

	n := b.ctor("Number", 1, r.builtin_Number, proto)
	if b.err != nil {
		return
	}
	b.method(n, "isFinite", 1, r.number_isFinite)
	b.method(n, "isInteger", 1, r.number_isInteger)
	b.method(n, "isNaN", 1, r.number_isNaN)
	b.method(n, "isSafeInteger", 1, r.number_isSafeInteger)
	b.value(n, "EPSILON", floatToValue(math.Nextafter(1, 2)-1), flagNone)
	b.value(n, "MAX_SAFE_INTEGER", floatToValue(maxSafeInteger), flagNone)
	b.value(n, "MIN_SAFE_INTEGER", floatToValue(-maxSafeInteger), flagNone)
	b.value(n, "MAX_VALUE", floatToValue(math.MaxFloat64), flagNone)
	b.value(n, "MIN_VALUE", floatToValue(math.SmallestNonzeroFloat64), flagNone)
	b.value(n, "NaN", _NaN, flagNone)
	b.value(n, "NEGATIVE_INFINITY", _negativeInf, flagNone)
	b.value(n, "POSITIVE_INFINITY", _positiveInf, flagNone)

	b.method(c.global, "parseFloat", 1, r.builtin_parseFloat)
	b.method(c.global, "parseInt", 2, r.builtin_parseInt)
	if b.err != nil {
		return
	}
	for _, name := range []string{"parseFloat", "parseInt"} {
		a := r.atoms.intern(name)
		if f, ok := r.ownDataProperty(c.global, a); ok {
			b.err = r.definePropertyValue(n, a, f, flagCW)
		}
	}
}
