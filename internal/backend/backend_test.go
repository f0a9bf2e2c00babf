package backend

import (
	"testing"

	"github.com/samcharles93/strand/internal/tensor"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", Auto},
		{"auto", Auto},
		{"cpu", CPU},
		{" CPU ", CPU},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Normalize(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
	if _, err := Normalize("cuda"); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestNewCPUOps(t *testing.T) {
	ops, err := New("cpu")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w := tensor.NewMatFromData(2, 2, []float32{1, 0, 0, 1})
	dst := make([]float32, 2)
	ops.MatVec(dst, &w, []float32{3, 4})
	if dst[0] != 3 || dst[1] != 4 {
		t.Fatalf("identity matvec = %v", dst)
	}
}
