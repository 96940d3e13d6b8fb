package decode

import "fmt"

// Instructions are stored as little-endian 16-bit granules. A candidate
// window reassembles the granules into the bit order the grammar is written
// in: the first granule byte-swapped, then the following granules
// byte-swapped in reverse order, except that the 8 and 10 byte forms keep
// the 32-bit immediate of granules 1-2 ahead of the trailing granules.
//
// The permutations were derived from observed encodings; other lengths are
// rejected rather than guessed.
var permutations = map[int][]int{
	2:  {1, 0},
	4:  {1, 0, 3, 2},
	6:  {1, 0, 5, 4, 3, 2},
	8:  {1, 0, 5, 4, 3, 2, 7, 6},
	10: {1, 0, 5, 4, 3, 2, 9, 8, 7, 6},
}

// MaxInstructionLength is the longest supported encoding in bytes.
const MaxInstructionLength = 10

// UnsupportedLengthError is returned for a window length without a known
// byte permutation.
type UnsupportedLengthError struct {
	Length int
}

func (e *UnsupportedLengthError) Error() string {
	return fmt.Sprintf("unsupported instruction length %d", e.Length)
}

// Window returns the candidate window of the given length starting at
// buf[i]. ok is false when fewer than length bytes remain.
func Window(buf []byte, i, length int) (window []byte, ok bool, err error) {
	perm, known := permutations[length]
	if !known {
		return nil, false, &UnsupportedLengthError{Length: length}
	}
	if i < 0 || len(buf)-i < length {
		return nil, false, nil
	}

	window = make([]byte, length)
	for k, src := range perm {
		window[k] = buf[i+src]
	}
	return window, true, nil
}

// Candidates returns every candidate window at buf[i], shortest first,
// stopping at the end of the buffer.
func Candidates(buf []byte, i int) [][]byte {
	var windows [][]byte
	for length := 2; length <= MaxInstructionLength; length += 2 {
		w, ok, _ := Window(buf, i, length)
		if !ok {
			break
		}
		windows = append(windows, w)
	}
	return windows
}
