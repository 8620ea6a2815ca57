package jscore

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/pprof/profile"
)

// ClassUsage is the number of live objects of one class and their
// estimated size including property storage and payload.
type ClassUsage struct {
	Count int64
	Bytes int64
}

// MemoryUsage is a snapshot of what the runtime holds. Byte figures are
// the same estimates used for the collection threshold and memory limit.
type MemoryUsage struct {
	Allocated   int64
	MemoryLimit int64

	Atoms       int64
	StringCount int64
	StringBytes int64

	Objects       int64
	Properties    int64
	PropertyBytes int64

	Shapes     int64
	ShapeBytes int64

	Arrays            int64
	FastArrays        int64
	FastArrayElements int64

	NativeFunctions   int64
	Closures          int64
	BoundFunctions    int64
	Bytecodes         int64
	BytecodeBytes     int64
	AsyncFunctions    int64
	InlineCacheSlots  int64
	InlineCacheShapes int64

	Classes map[ClassID]ClassUsage
}

// ComputeMemoryUsage walks the live list and tallies every structure.
// Strings are counted once per property slot that holds them, which
// overstates shared strings.
func (r *Runtime) ComputeMemoryUsage() MemoryUsage {
	u := MemoryUsage{
		Allocated:   r.gc.allocated,
		MemoryLimit: r.opts.memoryLimit,
		Atoms:       int64(len(r.atoms.entries)),
		Classes:     make(map[ClassID]ClassUsage),
	}
	str := func(v Value) {
		if s, ok := v.(valueString); ok {
			u.StringCount++
			u.StringBytes += int64(len(s))
		}
	}
	shapes := make(map[*Shape]bool)
	r.gc.arena.each(gcListLive, func(obj gcObject) {
		switch o := obj.(type) {
		case *Object:
			size := int64(sizeObject) + int64(cap(o.prop))*sizePropSlot
			u.Objects++
			u.Properties += int64(len(o.prop))
			u.PropertyBytes += int64(cap(o.prop)) * sizePropSlot
			for _, slot := range o.prop {
				str(slot.value)
			}
			if o.shape != nil {
				shapes[o.shape] = true
			}
			switch d := o.payload.(type) {
			case *arrayStore:
				u.Arrays++
				if o.fastArray {
					u.FastArrays++
					u.FastArrayElements += int64(len(d.values))
					size += int64(cap(d.values)) * sizeValueSlot
					for _, v := range d.values {
						str(v)
					}
				}
			case *nativeFunc:
				u.NativeFunctions++
			case *closureData:
				u.Closures++
			case *boundFunction:
				u.BoundFunctions++
			}
			cu := u.Classes[o.class]
			cu.Count++
			cu.Bytes += size
			u.Classes[o.class] = cu
		case *FunctionBytecode:
			u.Bytecodes++
			u.BytecodeBytes += sizeBytecode + int64(len(o.Code)) + int64(len(o.cpool))*sizeValueSlot
			for _, v := range o.cpool {
				str(v)
			}
			if o.ic != nil {
				slots, cached := o.ic.usage()
				u.InlineCacheSlots += slots
				u.InlineCacheShapes += cached
			}
		case *Shape:
			shapes[o] = true
		case *AsyncFunction:
			u.AsyncFunctions++
		}
	})
	for _, b := range r.shapes.buckets {
		for _, sh := range b {
			shapes[sh] = true
		}
	}
	for sh := range shapes {
		u.Shapes++
		u.ShapeBytes += sizeShape + int64(cap(sh.props))*sizeShapeProp
	}
	return u
}

// Dump writes the snapshot as a table, one category per line.
func (u *MemoryUsage) Dump(w io.Writer) {
	fmt.Fprintf(w, "%-24s %10s %12s\n", "NAME", "COUNT", "SIZE")
	row := func(name string, count, size int64) {
		if size < 0 {
			fmt.Fprintf(w, "%-24s %10d\n", name, count)
			return
		}
		fmt.Fprintf(w, "%-24s %10d %12d\n", name, count, size)
	}
	row("memory allocated", 1, u.Allocated)
	if u.MemoryLimit > 0 {
		row("memory limit", 1, u.MemoryLimit)
	}
	row("atoms", u.Atoms, -1)
	row("strings", u.StringCount, u.StringBytes)
	row("objects", u.Objects, -1)
	row("properties", u.Properties, u.PropertyBytes)
	row("shapes", u.Shapes, u.ShapeBytes)
	row("bytecode functions", u.Bytecodes, u.BytecodeBytes)
	row("closures", u.Closures, -1)
	row("native functions", u.NativeFunctions, -1)
	row("bound functions", u.BoundFunctions, -1)
	row("async functions", u.AsyncFunctions, -1)
	row("arrays", u.Arrays, -1)
	row("fast arrays", u.FastArrays, -1)
	row("fast array elements", u.FastArrayElements, u.FastArrayElements*sizeValueSlot)
	row("inline cache slots", u.InlineCacheSlots, -1)
	row("inline cache shapes", u.InlineCacheShapes, -1)
}

// WriteMemoryProfile writes live objects by class as a gzipped pprof
// profile with an objects/count and a space/bytes sample per class.
func (r *Runtime) WriteMemoryProfile(w io.Writer) error {
	u := r.ComputeMemoryUsage()
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "objects", Unit: "count"},
			{Type: "space", Unit: "bytes"},
		},
		DefaultSampleType: "space",
		TimeNanos:         time.Now().UnixNano(),
	}
	classes := make([]ClassID, 0, len(u.Classes))
	for c := range u.Classes {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool {
		return classes[i] < classes[j]
	})
	add := func(name string, count, size int64) {
		id := uint64(len(p.Function) + 1)
		fn := &profile.Function{ID: id, Name: name, SystemName: name}
		loc := &profile.Location{ID: id, Line: []profile.Line{{Function: fn}}}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{count, size},
		})
	}
	for _, c := range classes {
		cu := u.Classes[c]
		add("object "+c.String(), cu.Count, cu.Bytes)
	}
	add("shapes", u.Shapes, u.ShapeBytes)
	add("bytecode", u.Bytecodes, u.BytecodeBytes)
	add("strings", u.StringCount, u.StringBytes)
	if err := p.CheckValid(); err != nil {
		return err
	}
	return p.Write(w)
}
