package trie

import "testing"

func TestPutGet(t *testing.T) {
	tr := New()
	tr.Put("foo", "bar")
	tr.Put("food", "protbar")

	v, ok := tr.Get("food")
	if !ok || v != "protbar" {
		t.Fatalf("Get(food) = %q, %v, want protbar, true", v, ok)
	}

	v, ok = tr.Get("foo")
	if !ok || v != "bar" {
		t.Fatalf("Get(foo) = %q, %v, want bar, true", v, ok)
	}
}

func TestGetMissing(t *testing.T) {
	tr := New()
	tr.Put("foo", "bar")

	if _, ok := tr.Get("bar"); ok {
		t.Fatal("Get(bar) should be absent")
	}
	if _, ok := tr.Get("fooo"); ok {
		t.Fatal("Get(fooo) should be absent")
	}
}

func TestRootHashChangesOnPut(t *testing.T) {
	tr := New()
	empty := tr.RootHash
	tr.Put("a", "1")
	if tr.RootHash == empty {
		t.Fatal("root hash should change after Put")
	}
}

func TestRootHashStableAfterExternalMutation(t *testing.T) {
	tr := New()
	tr.Put("foo", "bar")
	before := tr.RootHash

	// Mutating a value obtained by Get (a copy, since Go strings are
	// immutable) must not affect the trie's stored hash.
	v, _ := tr.Get("foo")
	v += "mutated"
	_ = v

	if tr.RootHash != before {
		t.Fatal("root hash should be unaffected by external copies")
	}
}

func TestClone(t *testing.T) {
	tr := New()
	tr.Put("abc", "1")

	clone := tr.Clone()
	clone.Put("abc", "2")

	v, _ := tr.Get("abc")
	if v != "1" {
		t.Fatalf("original trie mutated by clone: got %q, want 1", v)
	}

	cv, _ := clone.Get("abc")
	if cv != "2" {
		t.Fatalf("clone.Get(abc) = %q, want 2", cv)
	}

	if tr.RootHash == clone.RootHash {
		t.Fatal("clone root hash should diverge after independent mutation")
	}
}

func TestDeterministicRootHash(t *testing.T) {
	a := New()
	a.Put("x", "1")
	a.Put("y", "2")

	b := New()
	b.Put("x", "1")
	b.Put("y", "2")

	if a.RootHash != b.RootHash {
		t.Fatalf("identical puts produced different root hashes: %s != %s", a.RootHash, b.RootHash)
	}
}
