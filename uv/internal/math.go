package internal

const (
	// 整型的bit数
	bitsize = 32 << (^uint(0) >> 63)
	// 最高的可用bit，超过它再向上取整会溢出
	maxintHeadBit = 1 << (bitsize - 2)
)

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// CeilToPowerOfTwo rounds n up to a power of two, never returning less than 2.
func CeilToPowerOfTwo(n int) int {
	if n&maxintHeadBit != 0 && n > maxintHeadBit {
		panic("argument is too large")
	}
	if n <= 2 {
		return 2
	}
	return fillBits(n-1) + 1
}

// ClampPowerOfTwo rounds n up to a power of two within [lo, hi].
// lo and hi must themselves be powers of two.
func ClampPowerOfTwo(n, lo, hi int) int {
	if n <= lo {
		return lo
	}
	if n >= hi {
		return hi
	}
	return CeilToPowerOfTwo(n)
}

// 填充最高位之后的所有位，例如 1010(2) -> 1111(2)
func fillBits(n int) int {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n
}
