package jscore

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/anode-js/jscore/unistring"
)

type jsonParser struct {
	r   *Runtime
	src string
	pos int
	ext bool
}

func (p *jsonParser) errorf(format string, args ...interface{}) error {
	line, col := 1, 1
	for _, c := range p.src[:p.pos] {
		if c == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return p.r.throwSyntaxError(p.pos, line, col, format, args...)
}

func (p *jsonParser) unexpected() error {
	if p.pos >= len(p.src) {
		return p.errorf("Unexpected end of JSON input")
	}
	c, _ := utf8.DecodeRuneInString(p.src[p.pos:])
	return p.errorf("Unexpected token '%c' in JSON at position %d", c, p.pos)
}

func (p *jsonParser) skipSpace() error {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		case '/':
			if !p.ext || p.pos+1 >= len(p.src) {
				return nil
			}
			switch p.src[p.pos+1] {
			case '/':
				if i := strings.IndexByte(p.src[p.pos:], '\n'); i >= 0 {
					p.pos += i + 1
				} else {
					p.pos = len(p.src)
				}
			case '*':
				i := strings.Index(p.src[p.pos+2:], "*/")
				if i < 0 {
					p.pos = len(p.src)
					return p.errorf("Unterminated comment in JSON")
				}
				p.pos += i + 4
			default:
				return nil
			}
		default:
			return nil
		}
	}
	return nil
}

// peek skips white space and returns the next byte, or 0 at the end.
func (p *jsonParser) peek() (byte, error) {
	if err := p.skipSpace(); err != nil {
		return 0, err
	}
	if p.pos >= len(p.src) {
		return 0, nil
	}
	return p.src[p.pos], nil
}

func (p *jsonParser) expect(c byte) error {
	n, err := p.peek()
	if err != nil {
		return err
	}
	if n != c {
		return p.unexpected()
	}
	p.pos++
	return nil
}

// parse reads one complete JSON text. The result is owned by the caller.
func (p *jsonParser) parse() (Value, error) {
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if c, err := p.peek(); err != nil || c != 0 || p.pos < len(p.src) {
		p.r.FreeValue(v)
		if err != nil {
			return nil, err
		}
		return nil, p.errorf("Unexpected non-whitespace character after JSON at position %d", p.pos)
	}
	return v, nil
}

func (p *jsonParser) parseValue() (Value, error) {
	r := p.r
	if r.callDepth >= r.opts.maxStackDepth {
		return nil, r.throwStackOverflow()
	}
	r.callDepth++
	defer func() { r.callDepth-- }()

	c, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"' || (c == '\'' && p.ext):
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		return newStringValue(s), nil
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	}
	for _, lit := range []struct {
		name string
		v    Value
	}{{"true", valueTrue}, {"false", valueFalse}, {"null", _null}} {
		if strings.HasPrefix(p.src[p.pos:], lit.name) {
			p.pos += len(lit.name)
			return lit.v, nil
		}
	}
	return nil, p.unexpected()
}

func (p *jsonParser) parseObject() (Value, error) {
	r := p.r
	p.pos++
	o, err := r.NewObject()
	if err != nil {
		return nil, err
	}
	fail := func(err error) (Value, error) {
		r.freeObjectRef(o)
		return nil, err
	}
	c, err := p.peek()
	if err != nil {
		return fail(err)
	}
	if c == '}' {
		p.pos++
		return o, nil
	}
	for {
		key, err := p.parseKey()
		if err != nil {
			return fail(err)
		}
		if err := p.expect(':'); err != nil {
			return fail(err)
		}
		v, err := p.parseValue()
		if err != nil {
			return fail(err)
		}
		err = r.definePropertyValue(o, r.atoms.intern(key), v, FlagCWE)
		r.FreeValue(v)
		if err != nil {
			return fail(err)
		}
		if c, err = p.peek(); err != nil {
			return fail(err)
		}
		if c != ',' {
			break
		}
		p.pos++
		if p.ext {
			if c, err = p.peek(); err != nil {
				return fail(err)
			}
			if c == '}' {
				break
			}
		}
	}
	if err := p.expect('}'); err != nil {
		return fail(err)
	}
	return o, nil
}

func (p *jsonParser) parseKey() (string, error) {
	c, err := p.peek()
	if err != nil {
		return "", err
	}
	if c == '"' || (c == '\'' && p.ext) {
		return p.parseString()
	}
	if p.ext && isIdentStart(c) {
		start := p.pos
		for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
			p.pos++
		}
		return p.src[start:p.pos], nil
	}
	if c == 0 {
		return "", p.unexpected()
	}
	return "", p.errorf("Expected property name or '}' in JSON at position %d", p.pos)
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (p *jsonParser) parseArray() (Value, error) {
	r := p.r
	p.pos++
	a, err := r.newArrayObject(r.realm.arrayProto)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (Value, error) {
		r.freeObjectRef(a)
		return nil, err
	}
	c, err := p.peek()
	if err != nil {
		return fail(err)
	}
	if c == ']' {
		p.pos++
		return a, nil
	}
	for {
		v, err := p.parseValue()
		if err != nil {
			return fail(err)
		}
		if err := r.addFastArrayElement(a, v); err != nil {
			return fail(err)
		}
		if c, err = p.peek(); err != nil {
			return fail(err)
		}
		if c != ',' {
			break
		}
		p.pos++
		if p.ext {
			if c, err = p.peek(); err != nil {
				return fail(err)
			}
			if c == ']' {
				break
			}
		}
	}
	if err := p.expect(']'); err != nil {
		return fail(err)
	}
	return a, nil
}

func (p *jsonParser) parseString() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == quote {
			s := p.src[start:p.pos]
			p.pos++
			return s, nil
		}
		if c == '\\' || c < 0x20 {
			break
		}
		p.pos++
	}
	var sb strings.Builder
	sb.WriteString(p.src[start:p.pos])
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return sb.String(), nil
		case c < 0x20:
			return "", p.errorf("Bad control character in string literal in JSON at position %d", p.pos)
		case c != '\\':
			sb.WriteByte(c)
			p.pos++
			continue
		}
		p.pos++
		if p.pos >= len(p.src) {
			break
		}
		e := p.src[p.pos]
		p.pos++
		switch e {
		case '"', '\\', '/':
			sb.WriteByte(e)
		case '\'':
			if !p.ext {
				p.pos--
				return "", p.errorf("Bad escaped character in JSON at position %d", p.pos)
			}
			sb.WriteByte(e)
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'u':
			u, ok := p.hex4()
			if !ok {
				return "", p.errorf("Bad Unicode escape in JSON at position %d", p.pos)
			}
			ru := rune(u)
			if utf16.IsSurrogate(ru) && strings.HasPrefix(p.src[p.pos:], `\u`) {
				save := p.pos
				p.pos += 2
				if u2, ok := p.hex4(); ok {
					if dr := utf16.DecodeRune(ru, rune(u2)); dr != utf8.RuneError {
						ru = dr
					} else {
						p.pos = save
					}
				} else {
					p.pos = save
				}
			}
			if utf16.IsSurrogate(ru) {
				sb.WriteString(unistring.FromUTF16([]uint16{uint16(ru)}))
			} else {
				sb.WriteRune(ru)
			}
		default:
			p.pos--
			return "", p.errorf("Bad escaped character in JSON at position %d", p.pos)
		}
	}
	return "", p.errorf("Unterminated string in JSON at position %d", p.pos)
}

func (p *jsonParser) hex4() (uint16, bool) {
	if p.pos+4 > len(p.src) {
		return 0, false
	}
	n, err := strconv.ParseUint(p.src[p.pos:p.pos+4], 16, 16)
	if err != nil {
		return 0, false
	}
	p.pos += 4
	return uint16(n), true
}

func (p *jsonParser) parseNumber() (Value, error) {
	start := p.pos
	digits := func() int {
		n := 0
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
			n++
		}
		return n
	}
	if p.src[p.pos] == '-' {
		p.pos++
	}
	if p.pos < len(p.src) && p.src[p.pos] == '0' {
		p.pos++
	} else if digits() == 0 {
		return nil, p.errorf("No number after minus sign in JSON at position %d", p.pos)
	}
	if p.pos < len(p.src) && p.src[p.pos] == '.' {
		p.pos++
		if digits() == 0 {
			return nil, p.errorf("Unterminated fractional number in JSON at position %d", p.pos)
		}
	}
	if p.pos < len(p.src) && (p.src[p.pos] == 'e' || p.src[p.pos] == 'E') {
		p.pos++
		if p.pos < len(p.src) && (p.src[p.pos] == '+' || p.src[p.pos] == '-') {
			p.pos++
		}
		if digits() == 0 {
			return nil, p.errorf("Exponent part is missing a number in JSON at position %d", p.pos)
		}
	}
	f, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil && !isRangeErr(err) {
		return nil, p.errorf("Unexpected number in JSON at position %d", start)
	}
	return floatToValue(f), nil
}

// ParseJSON parses text into a value owned by the caller. ext enables the
// relaxed grammar regardless of the runtime option.
func (r *Runtime) ParseJSON(text string, ext bool) (Value, error) {
	p := &jsonParser{r: r, src: text, ext: ext || r.opts.extendedJSON}
	return p.parse()
}

// internalizeJSONProperty walks the parsed value bottom-up, replacing every
// property with the reviver's result. An undefined result deletes it.
func (r *Runtime) internalizeJSONProperty(holder *Object, name atom, reviver *Object) (Value, error) {
	if r.callDepth >= r.opts.maxStackDepth {
		return nil, r.throwStackOverflow()
	}
	r.callDepth++
	defer func() { r.callDepth-- }()

	val, err := r.getProperty(holder, name, holder)
	if err != nil {
		return nil, err
	}
	if o, ok := val.(*Object); ok {
		revive := func(k atom) error {
			nv, err := r.internalizeJSONProperty(o, k, reviver)
			if err != nil {
				return err
			}
			if IsUndefined(nv) {
				_, err = r.deleteProperty(o, k)
			} else {
				_, err = r.createDataProperty(o, k, nv, false)
				r.FreeValue(nv)
			}
			return err
		}
		if isArray(o) {
			n, err := r.lengthOfArrayLike(o)
			for i := int64(0); i < n && err == nil; i++ {
				err = revive(r.atoms.fromInt64(i))
			}
		} else {
			for _, k := range r.ownKeys(o, keysStrings|keysEnumOnly) {
				if err = revive(k); err != nil {
					break
				}
			}
		}
		if err != nil {
			r.FreeValue(val)
			return nil, err
		}
	}
	res, err := r.callObject(reviver, holder, []Value{r.atomToValue(name), val})
	r.FreeValue(val)
	return res, err
}

func (r *Runtime) builtinJSON_parse(call FunctionCall) (Value, error) {
	text, err := r.toStringValue(call.Argument(0))
	if err != nil {
		return nil, err
	}
	v, err := r.ParseJSON(text, false)
	if err != nil {
		return nil, err
	}
	reviver, ok := call.Argument(1).(*Object)
	if !ok || !r.isCallable(reviver) {
		return v, nil
	}
	root, err := r.NewObject()
	if err != nil {
		r.FreeValue(v)
		return nil, err
	}
	defer r.freeObjectRef(root)
	err = r.definePropertyValue(root, atomEmptyString, v, FlagCWE)
	r.FreeValue(v)
	if err != nil {
		return nil, err
	}
	return r.internalizeJSONProperty(root, atomEmptyString, reviver)
}

type jsonStringifyCtx struct {
	r        *Runtime
	replacer *Object
	propList []atom
	hasList  bool
	gap      string
	stack    []*Object
	buf      strings.Builder
}

// check applies toJSON and the replacer to val, which it consumes. The
// result is undefined when the value has no JSON form.
func (ctx *jsonStringifyCtx) check(holder *Object, val Value, key Value) (Value, error) {
	r := ctx.r
	switch val.(type) {
	case *Object, *valueBigInt:
		f, err := r.getProperty(val, atomToJSON, val)
		if err != nil {
			r.FreeValue(val)
			return nil, err
		}
		if r.isCallable(f) {
			v, err := r.callObject(f.(*Object), val, []Value{key})
			r.FreeValue(f)
			r.FreeValue(val)
			if err != nil {
				return nil, err
			}
			val = v
		} else {
			r.FreeValue(f)
		}
	}
	if ctx.replacer != nil {
		v, err := r.callObject(ctx.replacer, holder, []Value{key, val})
		r.FreeValue(val)
		if err != nil {
			return nil, err
		}
		val = v
	}
	switch v := val.(type) {
	case *Object:
		if !r.isCallable(v) {
			return v, nil
		}
	case valueString, valueInt, valueFloat, valueBool, valueNull, *valueBigInt:
		return v, nil
	}
	r.FreeValue(val)
	return _undefined, nil
}

// str serializes val, which it consumes, after check has accepted it.
func (ctx *jsonStringifyCtx) str(val Value, indent string) error {
	r := ctx.r
	defer r.FreeValue(val)
	switch v := val.(type) {
	case valueString:
		ctx.quote(string(v))
	case valueInt, valueFloat:
		ctx.number(v.ToFloat())
	case valueBool, valueNull:
		ctx.buf.WriteString(v.String())
	case *valueBigInt:
		return r.throwTypeError("BigInt value can't be serialized in JSON")
	case *Object:
		switch v.class {
		case ClassString:
			s, err := r.toStringValue(v)
			if err != nil {
				return err
			}
			ctx.quote(s)
			return nil
		case ClassNumber:
			f, err := r.toFloat(v)
			if err != nil {
				return err
			}
			ctx.number(f)
			return nil
		case ClassBoolean:
			p, _ := primitiveOf(v, ClassBoolean)
			ctx.buf.WriteString(p.String())
			return nil
		}
		if d, ok := v.payload.(*primitiveData); ok {
			if _, ok := d.v.(*valueBigInt); ok {
				return r.throwTypeError("BigInt value can't be serialized in JSON")
			}
		}
		for _, s := range ctx.stack {
			if s == v {
				return r.throwTypeError("Converting circular structure to JSON")
			}
		}
		if r.callDepth >= r.opts.maxStackDepth {
			return r.throwStackOverflow()
		}
		r.callDepth++
		defer func() { r.callDepth-- }()
		ctx.stack = append(ctx.stack, v)
		defer func() { ctx.stack = ctx.stack[:len(ctx.stack)-1] }()
		if isArray(v) {
			return ctx.array(v, indent)
		}
		return ctx.object(v, indent)
	}
	return nil
}

func (ctx *jsonStringifyCtx) number(f float64) {
	if f != f || f-f != 0 {
		ctx.buf.WriteString("null")
		return
	}
	ctx.buf.WriteString(formatNumber(f))
}

func (ctx *jsonStringifyCtx) array(a *Object, indent string) error {
	r := ctx.r
	length, err := r.lengthOfArrayLike(a)
	if err != nil {
		return err
	}
	inner := indent + ctx.gap
	ctx.buf.WriteByte('[')
	for i := int64(0); i < length; i++ {
		if i > 0 {
			ctx.buf.WriteByte(',')
		}
		if ctx.gap != "" {
			ctx.buf.WriteByte('\n')
			ctx.buf.WriteString(inner)
		}
		el, err := r.getIndex(a, i)
		if err != nil {
			return err
		}
		el, err = ctx.check(a, el, newStringValue(strconv.FormatInt(i, 10)))
		if err != nil {
			return err
		}
		if IsUndefined(el) {
			ctx.buf.WriteString("null")
			continue
		}
		if err := ctx.str(el, inner); err != nil {
			return err
		}
	}
	if length > 0 && ctx.gap != "" {
		ctx.buf.WriteByte('\n')
		ctx.buf.WriteString(indent)
	}
	ctx.buf.WriteByte(']')
	return nil
}

func (ctx *jsonStringifyCtx) object(o *Object, indent string) error {
	r := ctx.r
	keys := ctx.propList
	if !ctx.hasList {
		keys = r.ownKeys(o, keysStrings|keysEnumOnly)
	}
	inner := indent + ctx.gap
	ctx.buf.WriteByte('{')
	empty := true
	for _, k := range keys {
		v, err := r.getProperty(o, k, o)
		if err != nil {
			return err
		}
		name := r.atoms.name(k)
		v, err = ctx.check(o, v, newStringValue(name))
		if err != nil {
			return err
		}
		if IsUndefined(v) {
			continue
		}
		if !empty {
			ctx.buf.WriteByte(',')
		}
		empty = false
		if ctx.gap != "" {
			ctx.buf.WriteByte('\n')
			ctx.buf.WriteString(inner)
		}
		ctx.quote(name)
		ctx.buf.WriteByte(':')
		if ctx.gap != "" {
			ctx.buf.WriteByte(' ')
		}
		if err := ctx.str(v, inner); err != nil {
			return err
		}
	}
	if !empty && ctx.gap != "" {
		ctx.buf.WriteByte('\n')
		ctx.buf.WriteString(indent)
	}
	ctx.buf.WriteByte('}')
	return nil
}

const hexDigits = "0123456789abcdef"

func (ctx *jsonStringifyCtx) quote(s string) {
	b := &ctx.buf
	b.WriteByte('"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' && c != 0xED {
			continue
		}
		if c == 0xED {
			u, ok := unistring.Surrogate(s, i)
			if !ok {
				continue
			}
			b.WriteString(s[start:i])
			b.WriteString(`\u`)
			for shift := 12; shift >= 0; shift -= 4 {
				b.WriteByte(hexDigits[u>>uint(shift)&0xF])
			}
			i += 2
			start = i + 1
			continue
		}
		b.WriteString(s[start:i])
		switch c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteString(`\u00`)
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xF])
		}
		start = i + 1
	}
	b.WriteString(s[start:])
	b.WriteByte('"')
}

func (ctx *jsonStringifyCtx) setReplacer(replacer Value) error {
	r := ctx.r
	ro, ok := replacer.(*Object)
	if !ok {
		return nil
	}
	if r.isCallable(ro) {
		ctx.replacer = ro
		return nil
	}
	if !isArray(ro) {
		return nil
	}
	length, err := r.lengthOfArrayLike(ro)
	if err != nil {
		return err
	}
	ctx.hasList = true
	seen := make(map[atom]bool)
	for i := int64(0); i < length; i++ {
		v, err := r.getIndex(ro, i)
		if err != nil {
			return err
		}
		var item string
		switch e := v.(type) {
		case valueString:
			item = string(e)
		case valueInt, valueFloat:
			item = e.String()
		case *Object:
			if e.class == ClassString || e.class == ClassNumber {
				item, err = r.toStringValue(e)
			} else {
				r.FreeValue(v)
				continue
			}
		default:
			continue
		}
		r.FreeValue(v)
		if err != nil {
			return err
		}
		if a := r.atoms.intern(item); !seen[a] {
			seen[a] = true
			ctx.propList = append(ctx.propList, a)
		}
	}
	return nil
}

func (ctx *jsonStringifyCtx) setGap(space Value) error {
	r := ctx.r
	if o, ok := space.(*Object); ok {
		var err error
		switch o.class {
		case ClassNumber:
			space, err = r.toNumber(o)
		case ClassString:
			var s string
			s, err = r.toStringValue(o)
			space = newStringValue(s)
		}
		if err != nil {
			return err
		}
	}
	switch s := space.(type) {
	case valueInt, valueFloat:
		n, err := r.toIntegerOrInfinity(s)
		if err != nil {
			return err
		}
		n = min(max(n, 0), 10)
		ctx.gap = strings.Repeat(" ", int(n))
	case valueString:
		str := string(s)
		if unistring.Length(str) > 10 {
			str = unistring.Substring(str, 0, 10)
		}
		ctx.gap = str
	}
	return nil
}

// StringifyJSON implements JSON.stringify. The result is a string, or
// undefined when value has no JSON form.
func (r *Runtime) StringifyJSON(value, replacer, space Value) (Value, error) {
	ctx := &jsonStringifyCtx{r: r}
	if err := ctx.setReplacer(valueOrUndefined(replacer)); err != nil {
		return nil, err
	}
	if err := ctx.setGap(valueOrUndefined(space)); err != nil {
		return nil, err
	}
	value = valueOrUndefined(value)
	wrapper, err := r.NewObject()
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(wrapper)
	if err := r.definePropertyValue(wrapper, atomEmptyString, value, FlagCWE); err != nil {
		return nil, err
	}
	v, err := ctx.check(wrapper, r.DupValue(value), stringEmpty)
	if err != nil {
		return nil, err
	}
	if IsUndefined(v) {
		return _undefined, nil
	}
	if err := ctx.str(v, ""); err != nil {
		return nil, err
	}
	return newStringValue(ctx.buf.String()), nil
}

func (r *Runtime) builtinJSON_stringify(call FunctionCall) (Value, error) {
	return r.StringifyJSON(call.Argument(0), call.Argument(1), call.Argument(2))
}

// MarshalJSON lets encoding/json serialize script objects through
// JSON.stringify.
func (o *Object) MarshalJSON() ([]byte, error) {
	r := o.runtime
	v, err := r.StringifyJSON(o, nil, nil)
	if err != nil {
		r.ClearException()
		return nil, err
	}
	if IsUndefined(v) {
		return []byte("null"), nil
	}
	return []byte(v.String()), nil
}

func (r *Runtime) initJSON(b *builder) {
	j := b.object(r.realm.objectProto, ClassObject)
	if b.err != nil {
		return
	}
	defer r.freeObjectRef(j)
	b.method(j, "parse", 2, r.builtinJSON_parse)
	b.method(j, "stringify", 3, r.builtinJSON_stringify)
	if b.err == nil {
		b.err = r.definePropertyValue(j, r.atoms.symToStringTag, newStringValue("JSON"), FlagConfigurable)
	}
	b.value(r.realm.global, "JSON", j, flagCW)
}
