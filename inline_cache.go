package jscore

import "fmt"

const (
	icRingSize        = 4
	icInitialHashBits = 2
	icHashMultiplier  = 0x9e370001
	icMaxHashBits     = 30
)

type icEntry struct {
	shape   *Shape
	offset  uint32
	lastUse uint64
}

type icRing struct {
	atom    atom
	index   uint8
	entries [icRingSize]icEntry
}

type icBucketEntry struct {
	atom atom
	slot uint32
}

// InlineCache remembers, per property-access site, where a property lives
// for the last few shapes seen at that site. Each site owns a ring of four
// entries; when all four are taken the least recently used one is replaced.
// Cached shapes are retained so they are never modified in place.
type InlineCache struct {
	rt       *Runtime
	count    uint32
	hashBits uint
	buckets  [][]icBucketEntry
	rings    []icRing
	clock    uint64

	hits, misses, evictions uint64
}

// ICStats summarizes cache behavior.
type ICStats struct {
	Slots     int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

func (r *Runtime) newInlineCache() (*InlineCache, error) {
	if err := r.memAlloc(sizeInlineCache); err != nil {
		return nil, err
	}
	ic := &InlineCache{
		rt:       r,
		hashBits: icInitialHashBits,
	}
	ic.buckets = make([][]icBucketEntry, 1<<ic.hashBits)
	return ic, nil
}

// NewInlineCache returns an empty cache bound to r.
func (r *Runtime) NewInlineCache() (*InlineCache, error) {
	return r.newInlineCache()
}

func (ic *InlineCache) bucket(a atom) uint32 {
	return (uint32(a) * icHashMultiplier) >> (32 - ic.hashBits)
}

func (ic *InlineCache) resize() {
	bits := ic.hashBits + 1
	if bits > icMaxHashBits {
		bits = icMaxHashBits
	}
	ic.hashBits = bits
	old := ic.buckets
	ic.buckets = make([][]icBucketEntry, 1<<bits)
	for _, b := range old {
		for _, e := range b {
			i := ic.bucket(e.atom)
			ic.buckets[i] = append(ic.buckets[i], e)
		}
	}
	if log := ic.rt.logs.ic; log.AllowLevel(debugLevel) {
		log.Debugf("inline cache resized to %d buckets for %d slots", len(ic.buckets), ic.count)
	}
}

// AddSlot returns the slot for property a, creating it when needed. Slots
// are keyed by atom, so every site reading the same name shares one ring.
func (ic *InlineCache) AddSlot(name string) (uint32, error) {
	return ic.addSlot(ic.rt.atoms.intern(name))
}

func (ic *InlineCache) addSlot(a atom) (uint32, error) {
	for _, e := range ic.buckets[ic.bucket(a)] {
		if e.atom == a {
			return e.slot, nil
		}
	}
	if ic.count+1 >= uint32(len(ic.buckets)) {
		ic.resize()
	}
	if err := ic.rt.memAlloc(sizeICRing); err != nil {
		return 0, err
	}
	slot := ic.count
	ic.count++
	ic.rings = append(ic.rings, icRing{atom: a})
	i := ic.bucket(a)
	ic.buckets[i] = append(ic.buckets[i], icBucketEntry{atom: a, slot: slot})
	return slot, nil
}

// Atom returns the property name a slot caches.
func (ic *InlineCache) Atom(slot uint32) string {
	return ic.rt.atoms.name(ic.rings[slot].atom)
}

func (ic *InlineCache) atom(slot uint32) atom {
	return ic.rings[slot].atom
}

// Lookup returns the property offset cached for sh at slot. The probe
// starts at the entry that hit last.
func (ic *InlineCache) Lookup(slot uint32, sh *Shape) (uint32, bool) {
	ring := &ic.rings[slot]
	i := ring.index
	for n := 0; n < icRingSize; n++ {
		e := &ring.entries[i]
		if e.shape == sh {
			ic.clock++
			e.lastUse = ic.clock
			ring.index = i
			ic.hits++
			return e.offset, true
		}
		i = (i + 1) % icRingSize
	}
	ic.misses++
	return 0, false
}

// Insert records that sh keeps the slot's property at offset.
func (ic *InlineCache) Insert(slot uint32, sh *Shape, offset uint32) {
	ring := &ic.rings[slot]
	ic.clock++
	victim := -1
	for i := range ring.entries {
		e := &ring.entries[i]
		if e.shape == sh {
			e.offset = offset
			e.lastUse = ic.clock
			ring.index = uint8(i)
			return
		}
		if victim < 0 && e.shape == nil {
			victim = i
		}
	}
	if victim < 0 {
		victim = 0
		for i := 1; i < icRingSize; i++ {
			if ring.entries[i].lastUse < ring.entries[victim].lastUse {
				victim = i
			}
		}
		ic.evictions++
	}
	e := &ring.entries[victim]
	old := e.shape
	e.shape = ic.rt.dupShape(sh)
	e.offset = offset
	e.lastUse = ic.clock
	ring.index = uint8(victim)
	if old != nil {
		ic.rt.freeShape(old)
	}
}

// Shapes returns the shapes currently cached at slot, in ring order.
func (ic *InlineCache) Shapes(slot uint32) []*Shape {
	var res []*Shape
	for _, e := range ic.rings[slot].entries {
		if e.shape != nil {
			res = append(res, e.shape)
		}
	}
	return res
}

// Stats returns hit, miss and eviction counters.
func (ic *InlineCache) Stats() ICStats {
	return ICStats{
		Slots:     int(ic.count),
		Hits:      ic.hits,
		Misses:    ic.misses,
		Evictions: ic.evictions,
	}
}

// usage reports the number of slots and of cached shape entries.
func (ic *InlineCache) usage() (slots, cached int64) {
	for i := range ic.rings {
		for _, e := range ic.rings[i].entries {
			if e.shape != nil {
				cached++
			}
		}
	}
	return int64(ic.count), cached
}

func (ic *InlineCache) String() string {
	return fmt.Sprintf("InlineCache{slots: %d, hits: %d, misses: %d, evictions: %d}", ic.count, ic.hits, ic.misses, ic.evictions)
}

func (ic *InlineCache) markShapes(mark func(gcObject)) {
	for i := range ic.rings {
		for _, e := range ic.rings[i].entries {
			if e.shape != nil {
				mark(e.shape)
			}
		}
	}
}

// Free releases every cached shape. The cache must not be used afterwards.
func (ic *InlineCache) Free() {
	r := ic.rt
	for i := range ic.rings {
		ring := &ic.rings[i]
		for j := range ring.entries {
			if sh := ring.entries[j].shape; sh != nil {
				ring.entries[j].shape = nil
				r.freeShape(sh)
			}
		}
	}
	r.memFree(sizeInlineCache + int64(len(ic.rings))*sizeICRing)
	ic.rings = nil
	ic.buckets = nil
	ic.count = 0
}

// GetPropertyCached reads property slot of obj, consulting and filling
// the cache. Only own data properties are cached; everything else takes
// the ordinary path.
func (ic *InlineCache) GetPropertyCached(obj Value, slot uint32) (Value, error) {
	r := ic.rt
	o, ok := obj.(*Object)
	if !ok {
		return r.getProperty(obj, ic.atom(slot), obj)
	}
	sh := o.shape
	if off, ok := ic.Lookup(slot, sh); ok {
		return r.DupValue(o.prop[off].value), nil
	}
	a := ic.atom(slot)
	if i, pr := sh.find(a); pr != nil && pr.flags&(flagGetSet|flagLength) == 0 {
		ic.Insert(slot, sh, uint32(i))
		return r.DupValue(o.prop[i].value), nil
	}
	return r.getProperty(o, a, o)
}

// SetPropertyCached assigns property slot of obj. The cached offset is only
// used for writable own data properties.
func (ic *InlineCache) SetPropertyCached(obj Value, slot uint32, v Value) error {
	r := ic.rt
	o, ok := obj.(*Object)
	if !ok {
		return r.setProperty(obj, ic.atom(slot), v, obj, true)
	}
	sh := o.shape
	if off, ok := ic.Lookup(slot, sh); ok {
		if sh.props[off].flags&FlagWritable != 0 {
			old := o.prop[off].value
			o.prop[off].value = r.DupValue(v)
			r.FreeValue(old)
			return nil
		}
		return r.setProperty(o, ic.atom(slot), v, o, true)
	}
	a := ic.atom(slot)
	if i, pr := sh.find(a); pr != nil && pr.flags&(flagGetSet|flagLength) == 0 {
		ic.Insert(slot, sh, uint32(i))
		if pr.flags&FlagWritable != 0 {
			old := o.prop[i].value
			o.prop[i].value = r.DupValue(v)
			r.FreeValue(old)
			return nil
		}
	}
	return r.setProperty(o, a, v, o, true)
}
