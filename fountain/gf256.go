package fountain

// GF(2^8) with the reducing polynomial x^8+x^4+x^3+x^2+1 (0x11d).
const gfPoly = 0x11d

var (
	gfExp [512]byte
	gfLog [256]byte
)

func init() {
	x := 1
	for i := 0; i < 255; i++ {
		gfExp[i] = byte(x)
		gfLog[x] = byte(i)
		x <<= 1
		if x&0x100 != 0 {
			x ^= gfPoly
		}
	}
	for i := 255; i < len(gfExp); i++ {
		gfExp[i] = gfExp[i-255]
	}
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfExp[int(gfLog[a])+int(gfLog[b])]
}

// gfInv panics on zero, callers only invert pivots.
func gfInv(a byte) byte {
	if a == 0 {
		panic("fountain: inverse of zero")
	}
	return gfExp[255-int(gfLog[a])]
}

// mulAdd sets dst ^= c*src.
func mulAdd(dst, src []byte, c byte) {
	if c == 0 {
		return
	}
	if c == 1 {
		for i := range src {
			dst[i] ^= src[i]
		}
		return
	}
	lc := int(gfLog[c])
	for i, s := range src {
		if s != 0 {
			dst[i] ^= gfExp[int(gfLog[s])+lc]
		}
	}
}

// scale sets v = c*v.
func scale(v []byte, c byte) {
	if c == 1 {
		return
	}
	for i := range v {
		v[i] = gfMul(v[i], c)
	}
}
