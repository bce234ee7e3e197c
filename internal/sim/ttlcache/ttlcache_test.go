package ttlcache

import "testing"

func TestExpireIsIndependentOfCadence(t *testing.T) {
	c := New[int, string](10)
	c.Put(1, "a", 0)
	c.Put(2, "b", 5)

	if n := c.Expire(9); n != 0 {
		t.Fatalf("expired %d entries before deadline", n)
	}
	if n := c.Expire(10); n != 1 || c.Has(1) || !c.Has(2) {
		t.Fatalf("Expire(10)=%d has1=%v has2=%v", n, c.Has(1), c.Has(2))
	}
	c.Touch(2, 12)
	if n := c.Expire(20); n != 0 {
		t.Fatalf("touched entry expired early")
	}
	if n := c.Expire(22); n != 1 || c.Len() != 0 {
		t.Fatalf("Expire(22)=%d len=%d", n, c.Len())
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := New[string, int](0)
	c.Put("x", 1, 100)
	if c.Expire(1<<40) != 0 || !c.Has("x") {
		t.Fatalf("zero ttl entry expired")
	}
	if n := c.DeleteFunc(func(k string, v int) bool { return v == 1 }); n != 1 {
		t.Fatalf("DeleteFunc removed %d", n)
	}
}

func TestFindKeyAndKeys(t *testing.T) {
	c := New[int, string](0)
	c.Put(3, "c", 0)
	c.Put(1, "a", 0)
	c.Put(2, "b", 0)
	k, ok := c.FindKey(func(v string) bool { return v == "b" })
	if !ok || k != 2 {
		t.Fatalf("FindKey=%d,%v", k, ok)
	}
	keys := c.Keys(func(a, b int) bool { return a < b })
	if len(keys) != 3 || keys[0] != 1 || keys[2] != 3 {
		t.Fatalf("keys=%v", keys)
	}
}
