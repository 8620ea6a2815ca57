package jscore

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/google/pprof/profile"
)

func TestComputeMemoryUsage(t *testing.T) {
	r := newTestRuntime(t)
	base := r.ComputeMemoryUsage()

	newTestArray(t, r, "abc", 1, 2)
	o := newTestObject(t, r, "x", "y")
	if err := o.Set("s", r.ToValue("hello")); err != nil {
		t.Fatal(err)
	}
	newTestFunc(t, r, func(FunctionCall) (Value, error) { return nil, nil })

	u := r.ComputeMemoryUsage()
	if d := u.Objects - base.Objects; d != 3 {
		t.Fatalf("Unexpected object delta: %d", d)
	}
	if d := u.FastArrays - base.FastArrays; d != 1 {
		t.Fatalf("Unexpected fast array delta: %d", d)
	}
	if d := u.FastArrayElements - base.FastArrayElements; d != 3 {
		t.Fatalf("Unexpected element delta: %d", d)
	}
	if d := u.NativeFunctions - base.NativeFunctions; d != 1 {
		t.Fatalf("Unexpected native function delta: %d", d)
	}
	if d := u.StringBytes - base.StringBytes; d < int64(len("abchello")) {
		t.Fatalf("Unexpected string bytes delta: %d", d)
	}
	if u.Allocated <= base.Allocated {
		t.Fatalf("allocation not accounted: %d <= %d", u.Allocated, base.Allocated)
	}
	if u.Classes[ClassArray].Count != base.Classes[ClassArray].Count+1 {
		t.Fatalf("Unexpected array class usage: %+v", u.Classes[ClassArray])
	}
	if u.Shapes == 0 || u.ShapeBytes == 0 {
		t.Fatalf("shapes not counted: %+v", u)
	}
}

func TestMemoryUsageDump(t *testing.T) {
	r := newTestRuntime(t, WithMemoryLimit(1<<30))
	u := r.ComputeMemoryUsage()
	var buf bytes.Buffer
	u.Dump(&buf)
	out := buf.String()
	for _, row := range []string{"memory allocated", "memory limit", "shapes", "fast array elements", "inline cache shapes"} {
		if !strings.Contains(out, row) {
			t.Errorf("row %q missing from:\n%s", row, out)
		}
	}
}

func TestWriteMemoryProfile(t *testing.T) {
	r := newTestRuntime(t)
	newTestArray(t, r, 1, 2, 3)
	var buf bytes.Buffer
	if err := r.WriteMemoryProfile(&buf); err != nil {
		t.Fatal(err)
	}
	p, err := profile.Parse(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.SampleType) != 2 || p.SampleType[0].Type != "objects" || p.SampleType[1].Unit != "bytes" {
		t.Fatalf("Unexpected sample types: %v", p.SampleType)
	}
	found := false
	for _, s := range p.Sample {
		if s.Location[0].Line[0].Function.Name == "object Array" {
			found = true
			if s.Value[0] < 1 || s.Value[1] <= 0 {
				t.Fatalf("Unexpected array sample: %v", s.Value)
			}
		}
	}
	if !found {
		t.Fatal("no sample for arrays")
	}
}

func TestAtomTableGrowth(t *testing.T) {
	r := newTestRuntime(t)
	o := keepObject(t, r)(r.NewObject())
	base := r.ComputeMemoryUsage().Atoms
	for i := 0; i < 100; i++ {
		if err := o.SetIdx(int64(i), r.ToValue(i)); err != nil {
			t.Fatal(err)
		}
	}
	if n := r.ComputeMemoryUsage().Atoms; n != base {
		t.Fatalf("index keys entered the atom table: %d -> %d", base, n)
	}
	for round := 0; round < 2; round++ {
		for i := 0; i < 10; i++ {
			if err := o.Set(fmt.Sprintf("k%d", i), _null); err != nil {
				t.Fatal(err)
			}
			if _, err := o.Delete(fmt.Sprintf("k%d", i)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if n := r.ComputeMemoryUsage().Atoms; n != base+10 {
		t.Fatalf("Unexpected atom count: %d, expected %d", n, base+10)
	}
}
