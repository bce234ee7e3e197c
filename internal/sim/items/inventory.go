package items

// Inventory is a slot-addressed item store. Insert/Extract with simulate=true
// report what would happen without mutating anything.
type Inventory interface {
	Size() int
	Slot(i int) Stack
	// Insert returns the part of s that did not fit.
	Insert(s Stack, simulate bool) Stack
	// Extract removes up to n items from slot i and returns them.
	Extract(i, n int, simulate bool) Stack
}

// Count sums the stacks accepted by match.
func Count(inv Inventory, match func(Stack) bool) int {
	if inv == nil {
		return 0
	}
	total := 0
	for i := 0; i < inv.Size(); i++ {
		s := inv.Slot(i)
		if s.IsEmpty() {
			continue
		}
		if match == nil || match(s) {
			total += s.Count
		}
	}
	return total
}

// Capacity is how many more items like s the inventory would accept (dry run).
func Capacity(inv Inventory, s Stack, limit int) int {
	if inv == nil || s.Item == "" || limit <= 0 {
		return 0
	}
	rest := inv.Insert(s.WithCount(limit), true)
	return limit - rest.Count
}

// ExtractMatching pulls up to n matching items out of inv, scanning slots from 0.
func ExtractMatching(inv Inventory, n int, match func(Stack) bool, simulate bool) Stack {
	var out Stack
	if inv == nil || n <= 0 {
		return out
	}
	for i := 0; i < inv.Size() && out.Count < n; i++ {
		s := inv.Slot(i)
		if s.IsEmpty() || !match(s) {
			continue
		}
		if !out.IsEmpty() && !out.SameKind(s) {
			continue
		}
		got := inv.Extract(i, n-out.Count, simulate)
		if got.IsEmpty() {
			continue
		}
		if out.IsEmpty() {
			out = got
		} else {
			out.Count += got.Count
		}
	}
	return out
}

// SlotInventory is a fixed-size slot array with a shared per-slot stack limit.
type SlotInventory struct {
	Slots    []Stack
	MaxStack int
}

func NewSlotInventory(size int) *SlotInventory {
	if size < 0 {
		size = 0
	}
	return &SlotInventory{Slots: make([]Stack, size), MaxStack: DefaultMaxStack}
}

func (inv *SlotInventory) Size() int { return len(inv.Slots) }

func (inv *SlotInventory) Slot(i int) Stack {
	if i < 0 || i >= len(inv.Slots) {
		return Stack{}
	}
	return inv.Slots[i]
}

func (inv *SlotInventory) maxStack() int {
	if inv.MaxStack <= 0 {
		return DefaultMaxStack
	}
	return inv.MaxStack
}

func (inv *SlotInventory) Insert(s Stack, simulate bool) Stack {
	if s.IsEmpty() {
		return Stack{}
	}
	left := s.Count
	max := inv.maxStack()
	// Merge into matching stacks first, then fill empty slots.
	for pass := 0; pass < 2 && left > 0; pass++ {
		for i := range inv.Slots {
			cur := inv.Slots[i]
			if pass == 0 && (cur.IsEmpty() || !cur.SameKind(s)) {
				continue
			}
			if pass == 1 && !cur.IsEmpty() {
				continue
			}
			room := max - cur.Count
			if cur.IsEmpty() {
				room = max
			}
			if room <= 0 {
				continue
			}
			n := left
			if n > room {
				n = room
			}
			left -= n
			if !simulate {
				if cur.IsEmpty() {
					inv.Slots[i] = s.WithCount(n)
				} else {
					inv.Slots[i].Count += n
				}
			}
			if left == 0 {
				break
			}
		}
	}
	if left == 0 {
		return Stack{}
	}
	return s.WithCount(left)
}

func (inv *SlotInventory) Extract(i, n int, simulate bool) Stack {
	if i < 0 || i >= len(inv.Slots) || n <= 0 {
		return Stack{}
	}
	cur := inv.Slots[i]
	if cur.IsEmpty() {
		return Stack{}
	}
	if n > cur.Count {
		n = cur.Count
	}
	if !simulate {
		inv.Slots[i].Count -= n
		if inv.Slots[i].Count <= 0 {
			inv.Slots[i] = Stack{}
		}
	}
	return cur.WithCount(n)
}

// Clone returns a deep copy.
func (inv *SlotInventory) Clone() *SlotInventory {
	if inv == nil {
		return nil
	}
	out := &SlotInventory{Slots: make([]Stack, len(inv.Slots)), MaxStack: inv.MaxStack}
	copy(out.Slots, inv.Slots)
	return out
}

// IsEmpty reports whether every slot is empty.
func (inv *SlotInventory) IsEmpty() bool {
	for _, s := range inv.Slots {
		if !s.IsEmpty() {
			return false
		}
	}
	return true
}
