package matching

import (
	"strings"
)

// NormalizeKey canonicalises a matching key. Spreadsheet loaders hand back
// integral identifiers as "1" or "1.0" depending on the cell type, so an
// all-zero fraction after a run of digits is dropped. Leading zeros, signs and
// exponents are kept: "0012" and "12" are different keys.
func NormalizeKey(raw string) string {
	k := strings.TrimSpace(raw)
	dot := strings.IndexByte(k, '.')
	if dot <= 0 || dot == len(k)-1 {
		return k
	}
	if !allBytes(k[:dot], isDigit) || !allBytes(k[dot+1:], func(b byte) bool { return b == '0' }) {
		return k
	}
	return k[:dot]
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func allBytes(s string, ok func(byte) bool) bool {
	for i := 0; i < len(s); i++ {
		if !ok(s[i]) {
			return false
		}
	}
	return true
}

// Index maps a key to the rows carrying it, in table order.
type Index struct {
	buckets map[string][]int
}

// NewIndex builds an index over keys, where keys[i] is the normalised key of
// row i. Empty keys are never indexed.
func NewIndex(keys []string) *Index {
	buckets := make(map[string][]int)
	for row, k := range keys {
		if k == "" {
			continue
		}
		buckets[k] = append(buckets[k], row)
	}
	return &Index{buckets: buckets}
}

// Lookup returns the rows for key in ascending order. The slice must not be modified.
func (i *Index) Lookup(key string) []int {
	if key == "" {
		return nil
	}
	return i.buckets[key]
}

// Len returns the number of distinct keys.
func (i *Index) Len() int {
	return len(i.buckets)
}
