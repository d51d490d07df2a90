package core

import (
	"math/big"

	"github.com/evmcore/evmcore/core/types"
)

// Message represents a transaction message prepared for EVM execution.
type Message struct {
	From     types.Address
	To       *types.Address // nil for contract creation
	Nonce    uint64
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Data     []byte
}

// TransactionToMessage converts a transaction into a Message for execution.
// If the transaction has a cached sender (via SetSender), it is used.
// Otherwise the From field must be set by the caller after signature recovery.
func TransactionToMessage(tx *types.Transaction) Message {
	msg := Message{
		Nonce:    tx.Nonce(),
		GasLimit: tx.Gas(),
		GasPrice: tx.GasPrice(),
		Data:     tx.Data(),
	}
	if sender := tx.Sender(); sender != nil {
		msg.From = *sender
	}
	if tx.To() != nil {
		to := *tx.To()
		msg.To = &to
	}
	if tx.Value() != nil {
		msg.Value = new(big.Int).Set(tx.Value())
	} else {
		msg.Value = new(big.Int)
	}
	return msg
}
