package oracle

func floorDiv(a, b int64) int64 {
	// b > 0
	q := a / b
	if r := a % b; r < 0 {
		q--
	}
	return q
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, z int64) uint64 {
	v := uint64(seed) ^ (uint64(x) * 0x9e3779b97f4a7c15) ^ (uint64(z) * 0xbf58476d1ce4e5b9)
	return mix64(v)
}
