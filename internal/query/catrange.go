package query

// CategoryBounds returns the [low, high) id window a category-id prefix
// covers, following the catalog convention that descendant ids share a
// decimal prefix (100 covers 100-199, 110 covers 110-119). The upper bound
// doubles the least significant non-zero digit in place: 100 -> 200,
// 110 -> 120, 250 -> 300, 205 -> 210. Ids without a non-zero digit fall back
// to a single-id window.
func CategoryBounds(id int) (int, int) {
	if id <= 0 {
		return id, id + 1
	}
	n, pow := id, 1
	for n > 0 && n%10 == 0 {
		n /= 10
		pow *= 10
	}
	if n == 0 {
		return id, id + 1
	}
	return id, id + (n%10)*pow
}
