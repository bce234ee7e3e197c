package filter

import "golemcraft.ai/internal/sim/items"

const DefaultSize = 9

// Tagger resolves catalog metadata used by the loose match modes.
type Tagger interface {
	Tags(item string) []string
	Group(item string) string
}

type Slot struct {
	Template items.Stack `json:"template"`
	// Quantity is an optional target amount (0 = unset). Stock seals use it as
	// the level to keep; other seals may use it as a per-task cap.
	Quantity int `json:"quantity,omitempty"`
}

// Filter decides which item stacks a seal acts on.
//
// Blacklist (the zero value) accepts everything except matches; whitelist accepts
// only matches. With every slot empty a blacklist accepts all and a whitelist none.
type Filter struct {
	Slots     []Slot `json:"slots"`
	Whitelist bool   `json:"whitelist,omitempty"`

	StrictMeta bool `json:"strict_meta,omitempty"`
	StrictData bool `json:"strict_data,omitempty"`
	MatchTags  bool `json:"match_tags,omitempty"`
	MatchGroup bool `json:"match_group,omitempty"`
}

func New(size int) *Filter {
	if size <= 0 {
		size = DefaultSize
	}
	return &Filter{Slots: make([]Slot, size)}
}

func (f *Filter) Empty() bool {
	for _, s := range f.Slots {
		if !s.Template.IsEmpty() {
			return false
		}
	}
	return true
}

// Set places a template into slot i. Out of range indexes are ignored.
func (f *Filter) Set(i int, tmpl items.Stack, quantity int) {
	if i < 0 || i >= len(f.Slots) {
		return
	}
	f.Slots[i] = Slot{Template: tmpl, Quantity: quantity}
}

// MatchIndex returns the first non-empty slot matching s, or -1.
func (f *Filter) MatchIndex(s items.Stack, tags Tagger) int {
	if s.Item == "" {
		return -1
	}
	for i, slot := range f.Slots {
		if slot.Template.IsEmpty() {
			continue
		}
		if f.matches(slot.Template, s, tags) {
			return i
		}
	}
	return -1
}

// Accepts applies polarity: a slot match flips the default answer.
func (f *Filter) Accepts(s items.Stack, tags Tagger) bool {
	if s.Item == "" {
		return false
	}
	matched := f.MatchIndex(s, tags) >= 0
	if f.Whitelist {
		return matched
	}
	return !matched
}

func (f *Filter) matches(tmpl, s items.Stack, tags Tagger) bool {
	if tags != nil {
		if f.MatchGroup {
			if g := tags.Group(tmpl.Item); g != "" && g == tags.Group(s.Item) {
				return true
			}
		}
		if f.MatchTags && sharesTag(tags.Tags(tmpl.Item), tags.Tags(s.Item)) {
			return true
		}
	}
	if tmpl.Item != s.Item {
		return false
	}
	if f.StrictMeta && tmpl.Meta != s.Meta {
		return false
	}
	if f.StrictData && tmpl.Data != s.Data {
		return false
	}
	return true
}

func sharesTag(a, b []string) bool {
	for _, x := range a {
		if x == "" {
			continue
		}
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy.
func (f *Filter) Clone() *Filter {
	if f == nil {
		return nil
	}
	out := *f
	out.Slots = append([]Slot(nil), f.Slots...)
	return &out
}

// Resize keeps existing slots and pads or truncates to size.
func (f *Filter) Resize(size int) {
	if size <= 0 || size == len(f.Slots) {
		return
	}
	if size < len(f.Slots) {
		f.Slots = f.Slots[:size]
		return
	}
	f.Slots = append(f.Slots, make([]Slot, size-len(f.Slots))...)
}
