package types

import (
	"fmt"

	"github.com/evmcore/evmcore/rlp"
)

// EncodeRLP returns the RLP encoding of the block: [header, [tx1, tx2, ...]].
func (b *Block) EncodeRLP() ([]byte, error) {
	headerEnc, err := b.header.EncodeRLP()
	if err != nil {
		return nil, fmt.Errorf("encoding header: %w", err)
	}

	var txsPayload []byte
	for i, tx := range b.body.Transactions {
		txEnc, err := tx.EncodeRLP()
		if err != nil {
			return nil, fmt.Errorf("encoding tx %d: %w", i, err)
		}
		wrapped, err := rlp.EncodeToBytes(txEnc)
		if err != nil {
			return nil, fmt.Errorf("wrapping tx %d: %w", i, err)
		}
		txsPayload = append(txsPayload, wrapped...)
	}

	var blockPayload []byte
	blockPayload = append(blockPayload, headerEnc...)
	blockPayload = append(blockPayload, rlp.WrapList(txsPayload)...)

	return rlp.WrapList(blockPayload), nil
}

// DecodeBlockRLP decodes an RLP-encoded block.
func DecodeBlockRLP(data []byte) (*Block, error) {
	s := rlp.NewStreamFromBytes(data)
	_, err := s.List()
	if err != nil {
		return nil, fmt.Errorf("opening block list: %w", err)
	}

	headerBytes, err := s.RawItem()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header, err := DecodeHeaderRLP(headerBytes)
	if err != nil {
		return nil, fmt.Errorf("decoding header: %w", err)
	}

	_, err = s.List()
	if err != nil {
		return nil, fmt.Errorf("opening txs list: %w", err)
	}
	var txs []*Transaction
	for !s.AtListEnd() {
		txBytes, err := s.Bytes()
		if err != nil {
			return nil, fmt.Errorf("reading tx bytes: %w", err)
		}
		tx, err := DecodeTxRLP(txBytes)
		if err != nil {
			return nil, fmt.Errorf("decoding tx: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := s.ListEnd(); err != nil {
		return nil, fmt.Errorf("closing txs list: %w", err)
	}

	if err := s.ListEnd(); err != nil {
		return nil, fmt.Errorf("closing block list: %w", err)
	}

	block := &Block{header: header}
	block.body.Transactions = txs
	return block, nil
}
