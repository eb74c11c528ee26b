// Package backend defines the minimal array capability consumed by the
// scoring algorithms: construction, elementwise arithmetic and comparison,
// axis manipulation, and reductions, all under NumPy-style broadcasting
// (trailing-dimension alignment, size-1 stretch).
//
// Scoring code is written only against the Backend and Array interfaces,
// never against a concrete array type, so a new array ecosystem is adopted
// by implementing Backend once.
//
// Conventions:
//   - Axis arguments accept negative values counted from the last dimension.
//   - Operations on incompatible shapes panic, following the gonum/mat
//     convention; callers that face untrusted shapes should validate with
//     BroadcastShapes first.
//   - All operations are pure: inputs are never mutated.
package backend

// Array is an immutable n-dimensional numeric array handle. A 0-d array
// (empty shape) holds a single scalar.
type Array interface {
	// Shape returns the dimension sizes. The returned slice must not be
	// mutated by the caller.
	Shape() []int

	// Size returns the total number of elements.
	Size() int

	// Data returns the elements in row-major order. The returned slice must
	// not be mutated by the caller.
	Data() []float64

	// At returns the element at the given index, one entry per dimension.
	At(idx ...int) float64
}

// Backend exposes the operation set required by the scoring algorithms.
type Backend interface {
	// Name identifies the backend implementation.
	Name() string

	// FromSlice builds an array from row-major data with the given shape.
	// With no shape it builds a 1-d array over the whole slice. Panics if
	// the shape product does not match len(data).
	FromSlice(data []float64, shape ...int) Array

	// FromScalar builds a 0-d array.
	FromScalar(v float64) Array

	// Arange builds the 1-d array [0, 1, ..., n-1].
	Arange(n int) Array

	// Elementwise binary arithmetic with broadcasting.
	Add(x, y Array) Array
	Sub(x, y Array) Array
	Mul(x, y Array) Array
	Div(x, y Array) Array

	// Abs returns the elementwise absolute value.
	Abs(x Array) Array

	// Gte returns 1.0 where x >= y and 0.0 elsewhere, with broadcasting.
	Gte(x, y Array) Array

	// Minimum and Maximum return the elementwise extrema, with broadcasting.
	Minimum(x, y Array) Array
	Maximum(x, y Array) Array

	// Map applies f to every element.
	Map(x Array, f func(float64) float64) Array

	// Sort returns x with values sorted ascending along axis. The sort is
	// stable with respect to equal values.
	Sort(x Array, axis int) Array

	// MoveAxis moves the axis at position src to position dst, keeping the
	// order of the remaining axes.
	MoveAxis(x Array, src, dst int) Array

	// ExpandDims inserts a new axis of size one at the given position.
	ExpandDims(x Array, axis int) Array

	// Slice restricts axis to the half-open index range [start, stop).
	Slice(x Array, axis, start, stop int) Array

	// Roll shifts elements along axis by shift positions, wrapping around.
	Roll(x Array, shift, axis int) Array

	// Mean and Sum reduce along axis, removing it from the shape.
	Mean(x Array, axis int) Array
	Sum(x Array, axis int) Array
}
