package jscore

import "strconv"

// atom is an interned property key. Integer keys up to 2^31-1 are tagged
// and carry their value directly; everything else indexes the atom table.
//
// Atoms are not reference counted: every distinct non-index name and every
// symbol ever created stays in the table until the runtime is closed, so
// a script that builds keys like "k"+i grows the table by one entry per
// distinct key. Index keys never enter the table. MemoryUsage.Atoms
// reports the current size.
type atom uint32

const (
	atomNull   atom = 0
	atomTagInt atom = 1 << 31
	maxAtomInt      = 1<<31 - 1
)

const (
	atomEmptyString atom = iota + 1
	atomLength
	atomPrototype
	atomConstructor
	atomToJSON
	atomToString
	atomToLocaleString
	atomValueOf
	atomMessage
	atomName
	atomCause
	atomJoin
	atomIndex
	atomInput
	atomObject
	atomArray
	atomFunction
	atomNumber
	atomString
	atomBoolean
	atomSymbol
	atomJSON
	atomError
	atomGlobalThis
)

var predefinedAtoms = [...]string{
	atomEmptyString:    "",
	atomLength:         "length",
	atomPrototype:      "prototype",
	atomConstructor:    "constructor",
	atomToJSON:         "toJSON",
	atomToString:       "toString",
	atomToLocaleString: "toLocaleString",
	atomValueOf:        "valueOf",
	atomMessage:        "message",
	atomName:           "name",
	atomCause:          "cause",
	atomJoin:           "join",
	atomIndex:          "index",
	atomInput:          "input",
	atomObject:         "Object",
	atomArray:          "Array",
	atomFunction:       "Function",
	atomNumber:         "Number",
	atomString:         "String",
	atomBoolean:        "Boolean",
	atomSymbol:         "Symbol",
	atomJSON:           "JSON",
	atomError:          "Error",
	atomGlobalThis:     "globalThis",
}

type atomEntry struct {
	name   string
	symbol *Symbol
}

type atomTable struct {
	entries []atomEntry
	byName  map[string]atom

	symToPrimitive        atom
	symSpecies            atom
	symIsConcatSpreadable atom
	symToStringTag        atom
	symIterator           atom
}

func (t *atomTable) init() {
	t.entries = make([]atomEntry, len(predefinedAtoms), 256)
	t.byName = make(map[string]atom, 256)
	for i := 1; i < len(predefinedAtoms); i++ {
		t.entries[i].name = predefinedAtoms[i]
		t.byName[predefinedAtoms[i]] = atom(i)
	}
	t.symToPrimitive = t.newSymbol("Symbol.toPrimitive").atom
	t.symSpecies = t.newSymbol("Symbol.species").atom
	t.symIsConcatSpreadable = t.newSymbol("Symbol.isConcatSpreadable").atom
	t.symToStringTag = t.newSymbol("Symbol.toStringTag").atom
	t.symIterator = t.newSymbol("Symbol.iterator").atom
}

func (t *atomTable) newSymbol(desc string) *Symbol {
	s := &Symbol{desc: desc}
	s.atom = atom(len(t.entries))
	t.entries = append(t.entries, atomEntry{name: desc, symbol: s})
	return s
}

// parseIndex recognizes canonical decimal integers ("0", "17", not "017").
func parseIndex(s string) (uint64, bool) {
	if len(s) == 0 || len(s) > 16 {
		return 0, false
	}
	if s[0] == '0' {
		return 0, len(s) == 1
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	return n, true
}

func (t *atomTable) intern(s string) atom {
	if n, ok := parseIndex(s); ok && n <= maxAtomInt {
		return atomTagInt | atom(n)
	}
	if a, ok := t.byName[s]; ok {
		return a
	}
	a := atom(len(t.entries))
	t.entries = append(t.entries, atomEntry{name: s})
	t.byName[s] = a
	return a
}

func (t *atomTable) fromInt64(i int64) atom {
	if i >= 0 && i <= maxAtomInt {
		return atomTagInt | atom(i)
	}
	return t.intern(strconv.FormatInt(i, 10))
}

func (a atom) isTaggedInt() bool {
	return a&atomTagInt != 0
}

func (a atom) toUint32() uint32 {
	return uint32(a &^ atomTagInt)
}

func (t *atomTable) name(a atom) string {
	if a.isTaggedInt() {
		return strconv.FormatUint(uint64(a.toUint32()), 10)
	}
	return t.entries[a].name
}

func (t *atomTable) symbol(a atom) *Symbol {
	if a.isTaggedInt() {
		return nil
	}
	return t.entries[a].symbol
}

func (t *atomTable) isSymbol(a atom) bool {
	return t.symbol(a) != nil
}

// arrayIndex reports whether a names an array index (0 .. 2^32-2).
func (t *atomTable) arrayIndex(a atom) (uint32, bool) {
	if a.isTaggedInt() {
		return a.toUint32(), true
	}
	e := &t.entries[a]
	if e.symbol != nil {
		return 0, false
	}
	if n, ok := parseIndex(e.name); ok && n < 1<<32-1 {
		return uint32(n), true
	}
	return 0, false
}

func (r *Runtime) atomToValue(a atom) Value {
	if s := r.atoms.symbol(a); s != nil {
		return s
	}
	return newStringValue(r.atoms.name(a))
}

// toPropertyKey converts v to an atom, running toString for objects.
func (r *Runtime) toPropertyKey(v Value) (atom, error) {
	switch v := v.(type) {
	case valueInt:
		if v >= 0 {
			return atomTagInt | atom(v), nil
		}
	case valueString:
		return r.atoms.intern(string(v)), nil
	case *Symbol:
		return v.atom, nil
	case *Object:
		p, err := r.toPrimitive(v, hintString)
		if err != nil {
			return atomNull, err
		}
		defer r.FreeValue(p)
		return r.toPropertyKey(p)
	}
	s, err := r.toStringValue(v)
	if err != nil {
		return atomNull, err
	}
	return r.atoms.intern(s), nil
}
