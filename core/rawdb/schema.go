package rawdb

import "encoding/binary"

// Key prefixes for the database schema: one byte per spec.md's persistent
// layout table, shared by the trie, account, and blockchain layers so they
// can all sit on one KV backend without colliding.
//
//	T - trie nodes (owned by the trie package's NodeDatabase adapter)
//	A - account metadata (owned by core/state, keyed by address)
//	C - contract code, content-addressed by code hash
//	B - block header/body, keyed by number+hash
//	H - block-by-hash indices (hash -> number)
//	R - receipts, keyed by number+hash
//	L - transaction/log lookups, keyed by hash
//	M - chain metadata: canonical mapping, head pointers, total difficulty
var (
	headerPrefix = append([]byte("B"), 0x00) // B0x00 + num (8 bytes BE) + hash -> header RLP
	bodyPrefix   = append([]byte("B"), 0x01) // B0x01 + num (8 bytes BE) + hash -> body RLP

	headerNumberPrefix = []byte("H") // H + hash -> num (8 bytes BE)

	receiptPrefix = []byte("R") // R + num (8 bytes BE) + hash -> receipts RLP

	txLookupPrefix = append([]byte("L"), 0x00) // L0x00 + tx hash -> block num (8 bytes BE)

	canonicalPrefix = append([]byte("M"), 0x00) // M0x00 + num (8 bytes BE) -> canonical hash
	headHeaderKey   = append([]byte("M"), 0x01) // M0x01 -> hash of the current head header
	headBlockKey    = append([]byte("M"), 0x02) // M0x02 -> hash of the current head block

	codePrefix = []byte("C") // C + code hash -> contract bytecode

	trieNodePrefix = []byte("T") // T + node hash -> trie node data
)

// encodeBlockNumber encodes a block number as an 8-byte big-endian value.
func encodeBlockNumber(number uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

// headerKey = headerPrefix + num + hash
func headerKey(number uint64, hash [32]byte) []byte {
	key := append([]byte{}, headerPrefix...)
	key = append(key, encodeBlockNumber(number)...)
	return append(key, hash[:]...)
}

// headerNumberKey = headerNumberPrefix + hash
func headerNumberKey(hash [32]byte) []byte {
	return append(append([]byte{}, headerNumberPrefix...), hash[:]...)
}

// bodyKey = bodyPrefix + num + hash
func bodyKey(number uint64, hash [32]byte) []byte {
	key := append([]byte{}, bodyPrefix...)
	key = append(key, encodeBlockNumber(number)...)
	return append(key, hash[:]...)
}

// receiptKey = receiptPrefix + num + hash
func receiptKey(number uint64, hash [32]byte) []byte {
	key := append([]byte{}, receiptPrefix...)
	key = append(key, encodeBlockNumber(number)...)
	return append(key, hash[:]...)
}

// txLookupKey = txLookupPrefix + txHash
func txLookupKey(txHash [32]byte) []byte {
	return append(append([]byte{}, txLookupPrefix...), txHash[:]...)
}

// canonicalKey = canonicalPrefix + num
func canonicalKey(number uint64) []byte {
	return append(append([]byte{}, canonicalPrefix...), encodeBlockNumber(number)...)
}

// codeKey = codePrefix + codeHash
func codeKey(codeHash [32]byte) []byte {
	return append(append([]byte{}, codePrefix...), codeHash[:]...)
}
