package backend

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Native is the in-process Backend over dense row-major []float64 storage.
// The zero value is ready to use; all methods are safe for concurrent use
// since no state is shared between calls.
type Native struct{}

// dense is the Array produced by Native: contiguous row-major storage.
type dense struct {
	shape []int
	data  []float64
}

func (d *dense) Shape() []int    { return d.shape }
func (d *dense) Size() int       { return len(d.data) }
func (d *dense) Data() []float64 { return d.data }

func (d *dense) At(idx ...int) float64 {
	if len(idx) != len(d.shape) {
		panic(fmt.Sprintf("backend: got %d indices for %d dimensions", len(idx), len(d.shape)))
	}
	offset := 0
	for i, stride := range rowMajorStrides(d.shape) {
		if idx[i] < 0 || idx[i] >= d.shape[i] {
			panic(fmt.Sprintf("backend: index %d out of range for axis %d of size %d", idx[i], i, d.shape[i]))
		}
		offset += idx[i] * stride
	}
	return d.data[offset]
}

// Name implements Backend.
func (Native) Name() string { return "native" }

// FromSlice implements Backend.
func (Native) FromSlice(data []float64, shape ...int) Array {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	if shapeSize(shape) != len(data) {
		panic(fmt.Sprintf("backend: shape %v does not hold %d elements", shape, len(data)))
	}
	return &dense{shape: slices.Clone(shape), data: slices.Clone(data)}
}

// FromScalar implements Backend.
func (Native) FromScalar(v float64) Array {
	return &dense{shape: []int{}, data: []float64{v}}
}

// Arange implements Backend.
func (Native) Arange(n int) Array {
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i)
	}
	return &dense{shape: []int{n}, data: data}
}

// binary evaluates op over the broadcast of x and y using an odometer walk
// with zero strides on stretched dimensions.
func binary(x, y Array, op func(a, b float64) float64) Array {
	xs, ys := x.Shape(), y.Shape()
	shape, ok := BroadcastShapes(xs, ys)
	if !ok {
		panic(fmt.Sprintf("backend: shapes %v and %v are not broadcastable", xs, ys))
	}
	xd, yd := x.Data(), y.Data()
	xstr := broadcastStrides(xs, shape)
	ystr := broadcastStrides(ys, shape)
	n := shapeSize(shape)
	out := make([]float64, n)
	counter := make([]int, len(shape))
	xi, yi := 0, 0
	for i := 0; i < n; i++ {
		out[i] = op(xd[xi], yd[yi])
		for d := len(shape) - 1; d >= 0; d-- {
			counter[d]++
			xi += xstr[d]
			yi += ystr[d]
			if counter[d] < shape[d] {
				break
			}
			counter[d] = 0
			xi -= xstr[d] * shape[d]
			yi -= ystr[d] * shape[d]
		}
	}
	return &dense{shape: shape, data: out}
}

// Add implements Backend.
func (Native) Add(x, y Array) Array { return binary(x, y, func(a, b float64) float64 { return a + b }) }

// Sub implements Backend.
func (Native) Sub(x, y Array) Array { return binary(x, y, func(a, b float64) float64 { return a - b }) }

// Mul implements Backend.
func (Native) Mul(x, y Array) Array { return binary(x, y, func(a, b float64) float64 { return a * b }) }

// Div implements Backend.
func (Native) Div(x, y Array) Array { return binary(x, y, func(a, b float64) float64 { return a / b }) }

// Gte implements Backend.
func (Native) Gte(x, y Array) Array {
	return binary(x, y, func(a, b float64) float64 {
		if a >= b {
			return 1
		}
		return 0
	})
}

// Minimum implements Backend.
func (Native) Minimum(x, y Array) Array { return binary(x, y, math.Min) }

// Maximum implements Backend.
func (Native) Maximum(x, y Array) Array { return binary(x, y, math.Max) }

// Abs implements Backend.
func (n Native) Abs(x Array) Array { return n.Map(x, math.Abs) }

// Map implements Backend.
func (Native) Map(x Array, f func(float64) float64) Array {
	src := x.Data()
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = f(v)
	}
	return &dense{shape: slices.Clone(x.Shape()), data: out}
}

// Sort implements Backend.
func (n Native) Sort(x Array, axis int) Array {
	shape := x.Shape()
	axis = normAxis(axis, len(shape))
	last := len(shape) - 1

	moved := x
	if axis != last {
		moved = n.MoveAxis(x, axis, last)
	}
	data := slices.Clone(moved.Data())
	lane := moved.Shape()[len(moved.Shape())-1]
	for i := 0; i < len(data); i += lane {
		slices.Sort(data[i : i+lane])
	}
	sorted := &dense{shape: slices.Clone(moved.Shape()), data: data}
	if axis != last {
		return n.MoveAxis(sorted, last, axis)
	}
	return sorted
}

// MoveAxis implements Backend.
func (Native) MoveAxis(x Array, src, dst int) Array {
	shape := x.Shape()
	ndim := len(shape)
	src = normAxis(src, ndim)
	dst = normAxis(dst, ndim)
	if src == dst {
		return x
	}

	// Build the axis permutation: remove src, insert it at dst.
	perm := make([]int, 0, ndim)
	for i := 0; i < ndim; i++ {
		if i != src {
			perm = append(perm, i)
		}
	}
	perm = slices.Insert(perm, dst, src)
	return permute(x, perm)
}

// permute reorders axes so that output axis d is input axis perm[d].
func permute(x Array, perm []int) Array {
	inShape := x.Shape()
	inStrides := rowMajorStrides(inShape)
	outShape := make([]int, len(perm))
	srcStrides := make([]int, len(perm))
	for d, p := range perm {
		outShape[d] = inShape[p]
		srcStrides[d] = inStrides[p]
	}
	return gather(x.Data(), outShape, srcStrides, 0)
}

// gather materializes a strided view (with base offset) into dense storage.
func gather(src []float64, shape, strides []int, offset int) *dense {
	n := shapeSize(shape)
	out := make([]float64, n)
	counter := make([]int, len(shape))
	pos := offset
	for i := 0; i < n; i++ {
		out[i] = src[pos]
		for d := len(shape) - 1; d >= 0; d-- {
			counter[d]++
			pos += strides[d]
			if counter[d] < shape[d] {
				break
			}
			counter[d] = 0
			pos -= strides[d] * shape[d]
		}
	}
	return &dense{shape: slices.Clone(shape), data: out}
}

// ExpandDims implements Backend.
func (Native) ExpandDims(x Array, axis int) Array {
	shape := x.Shape()
	a := axis
	if a < 0 {
		a += len(shape) + 1
	}
	if a < 0 || a > len(shape) {
		panic(fmt.Sprintf("backend: axis %d out of range for expansion of %d dimensions", axis, len(shape)))
	}
	expanded := slices.Insert(slices.Clone(shape), a, 1)
	return &dense{shape: expanded, data: slices.Clone(x.Data())}
}

// Slice implements Backend.
func (Native) Slice(x Array, axis, start, stop int) Array {
	shape := x.Shape()
	axis = normAxis(axis, len(shape))
	if start < 0 || stop > shape[axis] || start > stop {
		panic(fmt.Sprintf("backend: slice [%d:%d) out of range for axis %d of size %d", start, stop, axis, shape[axis]))
	}
	strides := rowMajorStrides(shape)
	outShape := slices.Clone(shape)
	outShape[axis] = stop - start
	return gather(x.Data(), outShape, strides, start*strides[axis])
}

// Roll implements Backend.
func (n Native) Roll(x Array, shift, axis int) Array {
	shape := x.Shape()
	axis = normAxis(axis, len(shape))
	last := len(shape) - 1

	moved := x
	if axis != last {
		moved = n.MoveAxis(x, axis, last)
	}
	lane := moved.Shape()[len(moved.Shape())-1]
	src := moved.Data()
	out := make([]float64, len(src))
	s := ((shift % lane) + lane) % lane
	for base := 0; base < len(src); base += lane {
		for i := 0; i < lane; i++ {
			out[base+(i+s)%lane] = src[base+i]
		}
	}
	rolled := &dense{shape: slices.Clone(moved.Shape()), data: out}
	if axis != last {
		return n.MoveAxis(rolled, last, axis)
	}
	return rolled
}

// Sum implements Backend.
func (n Native) Sum(x Array, axis int) Array {
	return reduce(n, x, axis, floats.Sum)
}

// Mean implements Backend.
func (n Native) Mean(x Array, axis int) Array {
	return reduce(n, x, axis, func(lane []float64) float64 {
		return floats.Sum(lane) / float64(len(lane))
	})
}

// reduce collapses one axis with a lane aggregate, removing it from the shape.
func reduce(n Native, x Array, axis int, agg func([]float64) float64) Array {
	shape := x.Shape()
	axis = normAxis(axis, len(shape))
	last := len(shape) - 1

	moved := x
	if axis != last {
		moved = n.MoveAxis(x, axis, last)
	}
	lane := moved.Shape()[len(moved.Shape())-1]
	src := moved.Data()
	outShape := slices.Clone(moved.Shape()[:len(moved.Shape())-1])
	out := make([]float64, len(src)/lane)
	for i := range out {
		out[i] = agg(src[i*lane : (i+1)*lane])
	}
	return &dense{shape: outShape, data: out}
}
