package vulkan

// FindFirstZeroInByteArray returns the index of the first zero byte, or the
// length of the array when there is none.
func FindFirstZeroInByteArray(arr []byte) int {
	for i, b := range arr {
		if b == 0 {
			return i
		}
	}
	return len(arr)
}
