package tracker

// xorshift is a xorshift64* generator. It is not safe for concurrent use;
// the tracker only draws from it under its write lock.
type xorshift struct {
	state uint64
}

func newXorshift(seed uint64) xorshift {
	if seed == 0 {
		// An all-zero state would stay zero forever.
		seed = 1
	}
	return xorshift{state: seed}
}

func (x *xorshift) next() uint64 {
	s := x.state
	s ^= s >> 12
	s ^= s << 25
	s ^= s >> 27
	x.state = s
	return s * 0x2545F4914F6CDD1D
}
