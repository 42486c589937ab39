package mathutil

// NewMat creates a rows x cols matrix backed by one contiguous slice.
func NewMat[T Float](rows, cols int) [][]T {
	m := make([][]T, rows)
	data := make([]T, rows*cols)
	for i := range m {
		m[i] = data[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return m
}

// NewMatFill creates a rows x cols matrix filled with val.
func NewMatFill[T Float](rows, cols int, val T) [][]T {
	m := NewMat[T](rows, cols)
	for i := range m {
		FillVec(m[i], val)
	}
	return m
}

// FillVec fills all elements of v with val.
func FillVec[T Float](v []T, val T) {
	for i := range v {
		v[i] = val
	}
}
