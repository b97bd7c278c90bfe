package grid

// GetGridCoords maps a row-major cell index onto column and row.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// Rows returns how many rows n cells need at cols per row.
func Rows(n, cols int) int {
	return (n + cols - 1) / cols
}
