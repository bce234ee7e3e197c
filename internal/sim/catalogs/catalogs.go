package catalogs

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

//go:embed defaults/*.json
var defaultsFS embed.FS

type Catalogs struct {
	Blocks    BlockCatalog
	Items     ItemCatalog
	Creatures CreatureCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID        string   `json:"id"`
	Solid     bool     `json:"solid"`
	Breakable bool     `json:"breakable"`
	Hardness  int      `json:"hardness,omitempty"`
	DropsItem string   `json:"drops_item,omitempty"`
	Tags      []string `json:"tags,omitempty"`

	// ContainerSlots > 0 means the block exposes an inventory.
	ContainerSlots int  `json:"container_slots,omitempty"`
	Interactive    bool `json:"interactive,omitempty"`

	Crop *CropDef `json:"crop,omitempty"`
}

type CropDef struct {
	MaxAge  int    `json:"max_age"`
	Seed    string `json:"seed"`
	Produce string `json:"produce"`
	Soil    string `json:"soil,omitempty"`
}

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"` // "BLOCK","TOOL","MATERIAL","FOOD","MECH"
	PlaceAs  string   `json:"place_as,omitempty"`
	Group    string   `json:"group,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	MaxStack int      `json:"max_stack,omitempty"`
}

type CreatureClass string

const (
	ClassPassive CreatureClass = "PASSIVE"
	ClassHostile CreatureClass = "HOSTILE"
	ClassPlayer  CreatureClass = "PLAYER"
)

type CreatureCatalog struct {
	Defs   map[string]CreatureDef
	Digest string
}

type CreatureDef struct {
	ID    string        `json:"id"`
	Class CreatureClass `json:"class"`
	HP    int           `json:"hp"`
	Drops string        `json:"drops,omitempty"`
}

// Load reads blocks.json, items.json and creatures.json from configDir.
func Load(configDir string) (*Catalogs, error) {
	read := func(name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(configDir, name))
	}
	return load(read)
}

// Default returns the catalogs compiled into the binary.
func Default() *Catalogs {
	c, err := load(func(name string) ([]byte, error) {
		return defaultsFS.ReadFile("defaults/" + name)
	})
	if err != nil {
		panic(fmt.Sprintf("catalogs: built-in defaults: %v", err))
	}
	return c
}

func load(read func(name string) ([]byte, error)) (*Catalogs, error) {
	var c Catalogs
	raw, err := read("blocks.json")
	if err != nil {
		return nil, err
	}
	if err := loadBlocks(raw, &c.Blocks); err != nil {
		return nil, err
	}
	if raw, err = read("items.json"); err != nil {
		return nil, err
	}
	if err := loadItems(raw, &c.Items); err != nil {
		return nil, err
	}
	if raw, err = read("creatures.json"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		raw = []byte("[]")
	}
	if err := loadCreatures(raw, &c.Creatures); err != nil {
		return nil, err
	}
	for id, b := range c.Blocks.Defs {
		if b.Crop == nil {
			continue
		}
		if _, ok := c.Items.Defs[b.Crop.Seed]; !ok {
			return nil, fmt.Errorf("blocks.json: crop %s: unknown seed item %q", id, b.Crop.Seed)
		}
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(raw []byte, out *BlockCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadItems(raw []byte, out *ItemCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadCreatures(raw []byte, out *CreatureCatalog) error {
	out.Digest = sha256Hex(raw)
	var defs []CreatureDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("creatures.json: %w", err)
	}
	out.Defs = map[string]CreatureDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("creatures.json: empty id")
		}
		switch d.Class {
		case ClassPassive, ClassHostile, ClassPlayer:
		default:
			return fmt.Errorf("creatures.json: %s: bad class %q", d.ID, d.Class)
		}
		out.Defs[d.ID] = d
	}
	return nil
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
