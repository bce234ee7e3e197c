package items

import "fmt"

const DefaultMaxStack = 64

// Stack is an item descriptor plus a quantity. Meta is the variant/damage value,
// Data is an opaque canonical encoding of any embedded data (empty if none).
type Stack struct {
	Item  string `json:"item"`
	Meta  int    `json:"meta,omitempty"`
	Data  string `json:"data,omitempty"`
	Count int    `json:"count"`
}

func Of(item string, count int) Stack { return Stack{Item: item, Count: count} }

func (s Stack) IsEmpty() bool { return s.Item == "" || s.Count <= 0 }

// SameKind reports whether two stacks can merge (item, meta and data equal).
func (s Stack) SameKind(o Stack) bool {
	return s.Item == o.Item && s.Meta == o.Meta && s.Data == o.Data
}

func (s Stack) WithCount(n int) Stack {
	s.Count = n
	return s
}

func (s Stack) String() string {
	if s.IsEmpty() {
		return "EMPTY"
	}
	if s.Meta != 0 {
		return fmt.Sprintf("%dx%s:%d", s.Count, s.Item, s.Meta)
	}
	return fmt.Sprintf("%dx%s", s.Count, s.Item)
}
