package runtime

import (
	"bytes"
	"strings"
	"testing"

	"github.com/OldKrab/lama-interpreter/internal/vm"
)

func assert(t *testing.T, cond bool, msg string, args ...any) {
	if !cond {
		t.Fatalf(msg, args...)
	}
}

func newTestLibrary(stdin string) (*Library, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return New(strings.NewReader(stdin), out), out
}

func TestStringRoundTrip(t *testing.T) {
	l, _ := newTestLibrary("")
	h := l.Bstring([]byte("hi"))
	assert(t, vm.Boxed(h), "expected a boxed handle")
	n, err := l.Llength(h)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, n == 2, "got length %d", n)
}

func TestLstringFormatsComposites(t *testing.T) {
	l, _ := newTestLibrary("")
	arr := l.BarrayInitFromEnd([]vm.Word{vm.Box(1), vm.Box(2), vm.Box(3)})

	s := l.Lstring(arr)
	obj, _ := l.heap.get(s)
	assert(t, obj.(*stringObj) != nil, "expected Lstring to return a string handle")
	got := string(obj.(*stringObj).data)
	assert(t, got == "[1, 2, 3]", "got %q", got)

	inner := l.Bstring([]byte("hi"))
	nested := l.BarrayInitFromEnd([]vm.Word{inner, vm.Box(9)})
	s = l.Lstring(nested)
	obj, _ = l.heap.get(s)
	got = string(obj.(*stringObj).data)
	assert(t, got == "[hi, 9]", "got %q", got)
}

func TestArrayElemAndSta(t *testing.T) {
	l, _ := newTestLibrary("")
	arr := l.BarrayInitFromEnd([]vm.Word{vm.Box(1), vm.Box(2), vm.Box(3)})

	v, err := l.Belem(arr, vm.Box(1))
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, v == vm.Box(2), "got %v", v)

	_, err = l.Bsta(vm.Box(9), vm.Box(1), arr)
	assert(t, err == nil, "unexpected error: %v", err)
	v, _ = l.Belem(arr, vm.Box(1))
	assert(t, v == vm.Box(9), "store did not take effect: got %v", v)
}

func TestStaThroughReference(t *testing.T) {
	l, _ := newTestLibrary("")
	var cell vm.Word = vm.Box(1)
	ref := l.NewRef(&cell)

	result, err := l.Bsta(vm.Box(42), ref, vm.Box(0))
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, result == vm.Box(42), "expected Bsta to return the stored value, got %v", result)
	assert(t, cell == vm.Box(42), "write did not go through the reference, got %v", cell)
}

func TestSexpAndTag(t *testing.T) {
	l, _ := newTestLibrary("")
	tag := l.LtagHash("Cons")
	s := l.BsexpInitFromEnd(tag, []vm.Word{vm.Box(1), vm.Box(2)})

	assert(t, l.Btag(s, tag, 2) == vm.Box(1), "expected tag match")
	assert(t, l.Btag(s, tag, 3) == vm.Box(0), "expected arity mismatch to fail")
	assert(t, l.Btag(s, l.LtagHash("Nil"), 2) == vm.Box(0), "expected tag name mismatch to fail")
}

func TestPatternPredicates(t *testing.T) {
	l, _ := newTestLibrary("")
	arr := l.BarrayInitFromEnd([]vm.Word{vm.Box(1)})
	str := l.Bstring([]byte("x"))

	assert(t, l.BarrayPatt(arr, 1) == vm.Box(1), "expected array length match")
	assert(t, l.BarrayPatt(arr, 2) == vm.Box(0), "expected array length mismatch")
	assert(t, l.BarrayPatt(arr, -1) == vm.Box(1), "expected type-only array test to pass")
	assert(t, l.BboxedPatt(arr) == vm.Box(1), "expected boxed test to pass on array")
	assert(t, l.BunboxedPatt(vm.Box(5)) == vm.Box(1), "expected unboxed test to pass on a small int")
	assert(t, l.BstringPatt(str, str) == vm.Box(1), "expected the string type-test to pass on itself")
	assert(t, l.BstringPatt(arr, arr) == vm.Box(0), "expected the string type-test to fail on an array")
}

func TestClosureEntryRoundTrip(t *testing.T) {
	l, _ := newTestLibrary("")
	c := l.BclosureInitFromEnd(123, []vm.Word{vm.Box(7)})
	entry, captured, ok := l.ClosureEntry(c)
	assert(t, ok, "expected a closure handle to resolve")
	assert(t, entry == 123, "got entry %d", entry)
	assert(t, len(captured) == 1 && captured[0] == vm.Box(7), "got captured %v", captured)
}

func TestReadWrite(t *testing.T) {
	l, out := newTestLibrary("41\n")
	n, err := l.Lread()
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, n == 41, "got %d", n)

	got, err := l.Lwrite(n + 1)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, got == 42, "got %d", got)
	assert(t, out.String() == "42\n", "got %q", out.String())
}
