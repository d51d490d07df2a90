package vm

// Memory is the EVM's linear, byte-addressed memory. It grows lazily
// in 32-byte words and is zero-filled on expansion.
type Memory struct {
	store []byte
}

func newMemory() *Memory {
	return &Memory{}
}

// Len returns the number of bytes currently allocated.
func (m *Memory) Len() int { return len(m.store) }

// Resize grows the memory to at least size bytes, zero-filling the new region.
// size must already be rounded up to a 32-byte boundary by the caller.
func (m *Memory) Resize(size uint64) {
	if uint64(len(m.store)) >= size {
		return
	}
	grown := make([]byte, size)
	copy(grown, m.store)
	m.store = grown
}

// Set writes value into memory starting at offset.
func (m *Memory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	copy(m.store[offset:offset+size], value)
}

// Set32 writes a left-padded 32-byte big-endian value at offset.
func (m *Memory) Set32(offset uint64, value []byte) {
	copy(m.store[offset:offset+32], make([]byte, 32))
	if len(value) > 32 {
		value = value[len(value)-32:]
	}
	copy(m.store[offset+32-uint64(len(value)):offset+32], value)
}

// Get returns a copy of size bytes at offset.
func (m *Memory) Get(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, m.store[offset:offset+size])
	return out
}

// GetPtr returns a slice view (not a copy) of size bytes at offset.
func (m *Memory) GetPtr(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	return m.store[offset : offset+size]
}

// Data returns the full backing slice.
func (m *Memory) Data() []byte { return m.store }
