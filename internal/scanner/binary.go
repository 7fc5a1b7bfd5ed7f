package scanner

const (
	binarySampleSize = 8192
	// Above this fraction of non-text bytes the sample is judged binary.
	binaryThreshold = 0.30
)

// Predicate decides whether file content should be treated as binary and
// skipped. The scanner takes one so callers can swap the heuristic.
type Predicate func(content []byte) bool

// LooksBinary is the default heuristic: a NUL byte anywhere in the leading
// sample, or a high proportion of bytes outside the printable-plus-whitespace
// range, marks the content as binary.
func LooksBinary(content []byte) bool {
	sample := content
	if len(sample) > binarySampleSize {
		sample = sample[:binarySampleSize]
	}
	if len(sample) == 0 {
		return false
	}

	nonText := 0
	for _, b := range sample {
		if b == 0 {
			return true
		}
		if b < 0x09 || (b > 0x0d && b < 0x20) || b == 0x7f {
			nonText++
		}
	}
	return float64(nonText)/float64(len(sample)) > binaryThreshold
}
