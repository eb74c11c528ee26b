package backend

import "fmt"

// BroadcastShapes combines two shapes under NumPy-style broadcasting rules:
// shapes are aligned on their trailing dimensions and a size of one stretches
// to match the other side. The second return value reports whether the shapes
// are compatible.
func BroadcastShapes(a, b []int) ([]int, bool) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int, n)
	for i := 1; i <= n; i++ {
		da, db := 1, 1
		if i <= len(a) {
			da = a[len(a)-i]
		}
		if i <= len(b) {
			db = b[len(b)-i]
		}
		switch {
		case da == db:
			out[n-i] = da
		case da == 1:
			out[n-i] = db
		case db == 1:
			out[n-i] = da
		default:
			return nil, false
		}
	}
	return out, true
}

// Broadcastable reports whether all shapes combine under broadcasting.
func Broadcastable(shapes ...[]int) bool {
	acc := []int{}
	for _, s := range shapes {
		next, ok := BroadcastShapes(acc, s)
		if !ok {
			return false
		}
		acc = next
	}
	return true
}

// shapeSize returns the element count of a shape; the empty shape holds one.
func shapeSize(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// rowMajorStrides returns the strides of a contiguous row-major layout.
func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// broadcastStrides aligns the strides of an operand shape to a broadcast
// output shape, substituting zero for stretched dimensions.
func broadcastStrides(op, out []int) []int {
	strides := rowMajorStrides(op)
	aligned := make([]int, len(out))
	offset := len(out) - len(op)
	for i := range op {
		if op[i] == 1 && out[offset+i] != 1 {
			aligned[offset+i] = 0
		} else {
			aligned[offset+i] = strides[i]
		}
	}
	return aligned
}

// normAxis resolves a possibly negative axis against ndim, panicking when the
// axis is out of range.
func normAxis(axis, ndim int) int {
	a := axis
	if a < 0 {
		a += ndim
	}
	if a < 0 || a >= ndim {
		panic(fmt.Sprintf("backend: axis %d out of range for %d dimensions", axis, ndim))
	}
	return a
}
