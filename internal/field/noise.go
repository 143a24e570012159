package field

import (
	"math"

	"github.com/MichaelTJones/pcg"
)

// pcgStream matches the stream selector used for every seeded generator in
// the simulator so a given seed always produces the same lattice.
const pcgStream = 0xda3e39cb94b95bdb

// perlin is improved gradient noise over a 256-cell repeating lattice.
// Output is continuous with continuous first derivatives and lies in
// roughly [-1, 1]; it is exactly 0 on lattice points.
type perlin struct {
	perm [512]uint8
}

func newPerlin(seed int64) *perlin {
	rng := pcg.NewPCG32()
	rng.Seed(uint64(seed), pcgStream)

	var p [256]uint8
	for i := range p {
		p[i] = uint8(i)
	}
	// Fisher-Yates
	for i := len(p) - 1; i > 0; i-- {
		j := int(rng.Bounded(uint32(i + 1)))
		p[i], p[j] = p[j], p[i]
	}

	n := &perlin{}
	for i := range n.perm {
		n.perm[i] = p[i&255]
	}
	return n
}

func (n *perlin) noise2(x, y float64) float64 {
	xf, yf := math.Floor(x), math.Floor(y)
	xi, yi := int(xf)&255, int(yf)&255
	x -= xf
	y -= yf

	u, v := fade(x), fade(y)

	a := int(n.perm[xi])
	b := int(n.perm[xi+1])
	aa, ab := n.perm[a+yi], n.perm[a+yi+1]
	ba, bb := n.perm[b+yi], n.perm[b+yi+1]

	return lerp(v,
		lerp(u, grad(aa, x, y), grad(ba, x-1, y)),
		lerp(u, grad(ab, x, y-1), grad(bb, x-1, y-1)))
}

func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float64) float64 {
	return a + t*(b-a)
}

func grad(h uint8, x, y float64) float64 {
	switch h & 7 {
	case 0:
		return x + y
	case 1:
		return -x + y
	case 2:
		return x - y
	case 3:
		return -x - y
	case 4:
		return x
	case 5:
		return -x
	case 6:
		return y
	default:
		return -y
	}
}
