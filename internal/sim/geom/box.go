package geom

// Box is an inclusive axis-aligned block volume.
type Box struct {
	Min Vec3i
	Max Vec3i
}

// WorkBox is the working volume of an area seal: area holds half-extents per axis,
// centered on the block in front of the anchor. A zero area covers just that block.
func WorkBox(a Anchor, area Vec3i) Box {
	c := a.Front()
	area = Vec3i{X: absInt(area.X), Y: absInt(area.Y), Z: absInt(area.Z)}
	return Box{Min: c.Sub(area), Max: c.Add(area)}
}

// Around is a cube of radius r centered on c.
func Around(c Vec3i, r int) Box {
	r = absInt(r)
	d := Vec3i{X: r, Y: r, Z: r}
	return Box{Min: c.Sub(d), Max: c.Add(d)}
}

func (b Box) Contains(p Vec3i) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b Box) Volume() int {
	return (b.Max.X - b.Min.X + 1) * (b.Max.Y - b.Min.Y + 1) * (b.Max.Z - b.Min.Z + 1)
}

// Each visits every position in x, y, z order. Stops early when fn returns false.
func (b Box) Each(fn func(p Vec3i) bool) {
	for x := b.Min.X; x <= b.Max.X; x++ {
		for y := b.Min.Y; y <= b.Max.Y; y++ {
			for z := b.Min.Z; z <= b.Max.Z; z++ {
				if !fn(Vec3i{X: x, Y: y, Z: z}) {
					return
				}
			}
		}
	}
}

// At returns the i-th position in Each order; i is taken modulo the volume.
func (b Box) At(i int) Vec3i {
	dx := b.Max.X - b.Min.X + 1
	dy := b.Max.Y - b.Min.Y + 1
	dz := b.Max.Z - b.Min.Z + 1
	n := dx * dy * dz
	if n <= 0 {
		return b.Min
	}
	i %= n
	if i < 0 {
		i += n
	}
	z := i % dz
	y := (i / dz) % dy
	x := i / (dz * dy)
	return Vec3i{X: b.Min.X + x, Y: b.Min.Y + y, Z: b.Min.Z + z}
}
