package mathutil

import "testing"

func TestMat4IdentityIsIdentity(t *testing.T) {
	if !Mat4Identity().IsIdentity() {
		t.Errorf("Mat4Identity() should report IsIdentity() true")
	}
}

func TestMat4MulByIdentity(t *testing.T) {
	m := Mat4{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}
	got := Mat4Mul(Mat4Identity(), m)
	if got != m {
		t.Errorf("Identity * m = %v, want %v", got, m)
	}
}

func TestMat4MulNotCommutative(t *testing.T) {
	a := Mat4{
		2, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	b := Mat4{
		1, 1, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	ab := Mat4Mul(a, b)
	ba := Mat4Mul(b, a)
	if ab == ba {
		t.Errorf("expected a*b != b*a for these matrices")
	}
}
