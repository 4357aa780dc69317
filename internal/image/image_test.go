package image

import (
	"encoding/binary"
	"testing"
)

func assert(t *testing.T, cond bool, msg string, args ...any) {
	if !cond {
		t.Fatalf(msg, args...)
	}
}

func header(stringtabSize, globalAreaSize, publicCount int32) []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:4], uint32(stringtabSize))
	binary.LittleEndian.PutUint32(b[4:8], uint32(globalAreaSize))
	binary.LittleEndian.PutUint32(b[8:12], uint32(publicCount))
	return b
}

func TestParseEmptyImage(t *testing.T) {
	code := []byte{0xF0} // EXIT
	data := append(header(0, 3, 0), code...)

	img, err := Parse(data)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, img.GlobalAreaSize() == 3, "got %d globals", img.GlobalAreaSize())
	assert(t, len(img.Publics()) == 0, "expected no public symbols")
	assert(t, len(img.Code()) == 1 && img.Code()[0] == 0xF0, "code mismatch: %v", img.Code())
}

func TestParseWithStringsAndPublics(t *testing.T) {
	strTab := []byte("hello\x00world\x00")
	var pub []byte
	pub = binary.LittleEndian.AppendUint32(pub, 0) // name offset
	pub = binary.LittleEndian.AppendUint32(pub, 5) // code offset

	data := append(header(int32(len(strTab)), 0, 1), pub...)
	data = append(data, strTab...)
	data = append(data, 0xF0)

	img, err := Parse(data)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, len(img.Publics()) == 1, "expected one public symbol")
	assert(t, img.Publics()[0].CodeOffset == 5, "got %+v", img.Publics()[0])
	assert(t, string(img.StringAt(0)) == "hello", "got %q", img.StringAt(0))
	assert(t, string(img.StringAt(6)) == "world", "got %q", img.StringAt(6))
}

func TestParseTruncatedHeader(t *testing.T) {
	_, err := Parse([]byte{1, 2, 3})
	assert(t, err != nil, "expected an error for a truncated header")
}

func TestParseStringTableOverrunsFile(t *testing.T) {
	data := header(100, 0, 0)
	_, err := Parse(data)
	assert(t, err != nil, "expected an error when the string table size overruns the file")
}

func TestStringAtOutOfRangeReturnsEmpty(t *testing.T) {
	data := append(header(0, 0, 0), 0xF0)
	img, err := Parse(data)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, img.StringAt(50) == nil, "expected nil for an out-of-range offset")
}
