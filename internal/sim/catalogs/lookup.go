package catalogs

// Tags returns the item's tags, falling back to the tags of the block it places.
func (c *Catalogs) Tags(item string) []string {
	d, ok := c.Items.Defs[item]
	if !ok {
		return nil
	}
	if len(d.Tags) > 0 || d.PlaceAs == "" {
		return d.Tags
	}
	return c.Blocks.Defs[d.PlaceAs].Tags
}

func (c *Catalogs) Group(item string) string {
	return c.Items.Defs[item].Group
}

func (c *Catalogs) Block(id string) (BlockDef, bool) {
	d, ok := c.Blocks.Defs[id]
	return d, ok
}

func (c *Catalogs) BlockHasTag(id, tag string) bool {
	for _, t := range c.Blocks.Defs[id].Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MaxStack is the per-slot limit for item (64 when unset).
func (c *Catalogs) MaxStack(item string) int {
	if n := c.Items.Defs[item].MaxStack; n > 0 {
		return n
	}
	return 64
}

// CropBySeed finds the crop block planted by seed.
func (c *Catalogs) CropBySeed(seed string) (string, bool) {
	best := ""
	for id, b := range c.Blocks.Defs {
		if b.Crop == nil || b.Crop.Seed != seed {
			continue
		}
		if best == "" || id < best {
			best = id
		}
	}
	return best, best != ""
}

func (c *Catalogs) Creature(kind string) (CreatureDef, bool) {
	d, ok := c.Creatures.Defs[kind]
	return d, ok
}
