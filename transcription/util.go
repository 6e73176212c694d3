package transcription

import "math"

func denseMapGet[M ~[]T, K ~uint32, T any](m M, k K) T {
	if int(k) >= len(m) {
		var zero T
		return zero
	}
	return m[k]
}

func denseMapSet[M ~[]T, K ~uint32, T any](mptr *M, k K, v T) {
	m := *mptr
	if int(k) >= len(m) {
		newlen := roundUpToPowerOf2(int(k) + 1)
		m = make([]T, newlen)
		copy(m, *mptr)
		*mptr = m
	}
	m[k] = v
}

func roundUpToPowerOf2(n int) int {
	if n < 4 {
		return 4
	}
	p := n - 1
	p |= p >> 1
	p |= p >> 2
	p |= p >> 4
	p |= p >> 8
	p |= p >> 16
	p |= p >> 32
	p++
	if p < 0 {
		return n
	} else {
		return p
	}
}

func float32ToWord(v float32) uint64 { return uint64(math.Float32bits(v)) }
func float64ToWord(v float64) uint64 { return math.Float64bits(v) }
func wordToFloat32(w uint64) float32 { return math.Float32frombits(uint32(w)) }
func wordToFloat64(w uint64) float64 { return math.Float64frombits(w) }
