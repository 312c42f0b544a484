package containers

import "bytes"

// EmptyRecordByte fills every byte of a RecordBuffer that has not been written.
// It is not zero so that unbound records stand out when inspecting the table.
const EmptyRecordByte byte = 0xA7

// RecordBuffer is a growable byte buffer split in fixed-stride records.
// It never shrinks on writes; newly exposed bytes are set to EmptyRecordByte.
type RecordBuffer struct {
	data   []byte
	stride uint32
}

// Create a new RecordBuffer
func NewRecordBuffer(stride uint32) *RecordBuffer {
	return &RecordBuffer{
		stride: stride,
	}
}

// Stride returns the size in bytes of a single record
func (rb *RecordBuffer) Stride() uint32 {
	return rb.stride
}

// SetStride changes the record size and drops the current content
func (rb *RecordBuffer) SetStride(stride uint32) {
	rb.stride = stride
	rb.data = nil
}

// Len returns the size of the buffer in bytes
func (rb *RecordBuffer) Len() int {
	return len(rb.data)
}

// Count returns the number of whole records held by the buffer
func (rb *RecordBuffer) Count() uint32 {
	if rb.stride == 0 {
		return 0
	}
	return uint32(len(rb.data)) / rb.stride
}

// IsEmpty checks if nothing was ever written to the buffer
func (rb *RecordBuffer) IsEmpty() bool {
	return len(rb.data) == 0
}

// Bytes returns the buffer content. The slice is only valid until the next write.
func (rb *RecordBuffer) Bytes() []byte {
	return rb.data
}

// Grow makes the buffer at least size bytes long
func (rb *RecordBuffer) Grow(size int) {
	if size <= len(rb.data) {
		return
	}
	rb.data = append(rb.data, bytes.Repeat([]byte{EmptyRecordByte}, size-len(rb.data))...)
}

// Resize sets the buffer length to exactly size bytes, keeping the common prefix
func (rb *RecordBuffer) Resize(size int) {
	if size <= len(rb.data) {
		rb.data = rb.data[:size]
		return
	}
	rb.Grow(size)
}

// Record grows the buffer to cover record index and returns its bytes
func (rb *RecordBuffer) Record(index uint32) []byte {
	begin := int(index) * int(rb.stride)
	end := begin + int(rb.stride)
	rb.Grow(end)
	return rb.data[begin:end:end]
}

// Reset drops the buffer content
func (rb *RecordBuffer) Reset() {
	rb.data = nil
}
