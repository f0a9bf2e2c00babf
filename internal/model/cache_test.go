package model

import "testing"

func TestCacheWriteReadback(t *testing.T) {
	c := newKVCache(2, 4, 2, 3) // stride 6
	k := []float32{1, 2, 3, 4, 5, 6}
	v := []float32{-1, -2, -3, -4, -5, -6}
	c.write(1, 2, k, v)

	kr, vr := c.row(1)
	off := 2 * c.kvStride
	for i := 0; i < c.kvStride; i++ {
		if kr[off+i] != k[i] {
			t.Fatalf("k[%d]=%g want %g", i, kr[off+i], k[i])
		}
		if vr[off+i] != v[i] {
			t.Fatalf("v[%d]=%g want %g", i, vr[off+i], v[i])
		}
	}
}

func TestCacheRowsAreIndependent(t *testing.T) {
	c := newKVCache(2, 4, 1, 2)
	c.write(0, 0, []float32{1, 1}, []float32{1, 1})

	kr, vr := c.row(1)
	for i := range kr {
		if kr[i] != 0 || vr[i] != 0 {
			t.Fatalf("write to row 0 leaked into row 1 at %d", i)
		}
	}
}

func TestCacheWritePreservesEarlierPositions(t *testing.T) {
	c := newKVCache(1, 3, 1, 2)
	c.write(0, 0, []float32{1, 2}, []float32{3, 4})
	c.write(0, 1, []float32{5, 6}, []float32{7, 8})

	kr, _ := c.row(0)
	if kr[0] != 1 || kr[1] != 2 {
		t.Fatalf("position 0 overwritten: %v", kr[:2])
	}
	if kr[2] != 5 || kr[3] != 6 {
		t.Fatalf("position 1 missing: %v", kr[2:4])
	}
}

func TestCacheReset(t *testing.T) {
	c := newKVCache(1, 2, 1, 2)
	c.write(0, 0, []float32{9, 9}, []float32{9, 9})
	c.reset()
	kr, vr := c.row(0)
	for i := range kr {
		if kr[i] != 0 || vr[i] != 0 {
			t.Fatalf("reset left stale value at %d", i)
		}
	}
}
