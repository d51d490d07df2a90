package rpc

import (
	"encoding/json"
	"math/big"

	"github.com/evmcore/evmcore/core/types"
)

// SendTxArgs are the parameters of eth_sendTransaction. Unlike
// eth_sendRawTransaction, the transaction carries no signature: the caller
// names the sending account directly and the node trusts it, since this
// provider has no wallet or keystore of its own.
type SendTxArgs struct {
	From     string  `json:"from"`
	To       *string `json:"to"`
	Gas      *string `json:"gas"`
	GasPrice *string `json:"gasPrice"`
	Value    *string `json:"value"`
	Nonce    *string `json:"nonce"`
	Data     *string `json:"data"`
	Input    *string `json:"input"`
}

// getTransactionByHash returns transaction info by hash.
func (api *EthAPI) getTransactionByHash(req *Request) *Response {
	if len(req.Params) < 1 {
		return errorResponse(req.ID, ErrCodeInvalidParams, "missing transaction hash")
	}

	var hashHex string
	if err := json.Unmarshal(req.Params[0], &hashHex); err != nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	hash := types.HexToHash(hashHex)
	tx, blockNum, index := api.backend.GetTransaction(hash)
	if tx == nil {
		return successResponse(req.ID, nil)
	}

	var blockHash *types.Hash
	if blockNum > 0 {
		header := api.backend.HeaderByNumber(BlockNumber(blockNum))
		if header != nil {
			h := header.Hash()
			blockHash = &h
		}
	}

	return successResponse(req.ID, FormatTransaction(tx, blockHash, &blockNum, &index))
}

// getTransactionReceipt returns a receipt for a transaction hash.
func (api *EthAPI) getTransactionReceipt(req *Request) *Response {
	if len(req.Params) < 1 {
		return errorResponse(req.ID, ErrCodeInvalidParams, "missing transaction hash")
	}

	var hashHex string
	if err := json.Unmarshal(req.Params[0], &hashHex); err != nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	txHash := types.HexToHash(hashHex)
	tx, blockNum, _ := api.backend.GetTransaction(txHash)
	if tx == nil {
		return successResponse(req.ID, nil)
	}

	// Get the block header for block hash
	header := api.backend.HeaderByNumber(BlockNumber(blockNum))
	if header == nil {
		return successResponse(req.ID, nil)
	}

	blockHash := header.Hash()
	receipts := api.backend.GetReceipts(blockHash)

	// Find the receipt matching our tx hash
	for _, receipt := range receipts {
		if receipt.TxHash == txHash {
			return successResponse(req.ID, FormatReceipt(receipt, tx))
		}
	}

	return successResponse(req.ID, nil)
}

// sendRawTransaction decodes an RLP-encoded transaction and submits it.
func (api *EthAPI) sendRawTransaction(req *Request) *Response {
	if len(req.Params) < 1 {
		return errorResponse(req.ID, ErrCodeInvalidParams, "missing raw transaction data")
	}

	var dataHex string
	if err := json.Unmarshal(req.Params[0], &dataHex); err != nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	rawBytes := fromHexBytes(dataHex)
	if len(rawBytes) == 0 {
		return errorResponse(req.ID, ErrCodeInvalidParams, "empty transaction data")
	}

	tx, err := types.DecodeTxRLP(rawBytes)
	if err != nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, "invalid transaction encoding: "+err.Error())
	}

	signer := types.NewEIP155Signer(api.backend.ChainID().Uint64())
	sender, err := signer.Sender(tx)
	if err != nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, "invalid transaction signature: "+err.Error())
	}
	tx.SetSender(sender)

	if err := api.backend.SendTransaction(tx); err != nil {
		return errorResponse(req.ID, ErrCodeInternal, err.Error())
	}

	return successResponse(req.ID, encodeHash(tx.Hash()))
}

// sendTransaction builds, executes, and inserts a block containing a single
// unsigned transaction, returning its hash once included. The sending
// account's nonce and a default gas price are filled in when omitted.
func (api *EthAPI) sendTransaction(req *Request) *Response {
	if len(req.Params) < 1 {
		return errorResponse(req.ID, ErrCodeInvalidParams, "missing transaction arguments")
	}

	var args SendTxArgs
	if err := json.Unmarshal(req.Params[0], &args); err != nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}
	if args.From == "" {
		return errorResponse(req.ID, ErrCodeInvalidParams, "missing from address")
	}

	from := types.HexToAddress(args.From)

	var to *types.Address
	if args.To != nil {
		addr := types.HexToAddress(*args.To)
		to = &addr
	}

	value := new(big.Int)
	if args.Value != nil {
		value = parseHexBigInt(*args.Value)
	}

	gas := uint64(90_000)
	if args.Gas != nil {
		gas = parseHexUint64(*args.Gas)
	}

	gasPrice := big.NewInt(DefaultGasPrice)
	if args.GasPrice != nil {
		gasPrice = parseHexBigInt(*args.GasPrice)
	}

	var data []byte
	if args.Input != nil {
		data = fromHexBytes(*args.Input)
	} else if args.Data != nil {
		data = fromHexBytes(*args.Data)
	}

	nonce := uint64(0)
	if args.Nonce != nil {
		nonce = parseHexUint64(*args.Nonce)
	} else {
		header := api.backend.CurrentHeader()
		if header == nil {
			return errorResponse(req.ID, ErrCodeInternal, "no current block")
		}
		statedb, err := api.backend.StateAt(header.Root)
		if err != nil {
			return errorResponse(req.ID, ErrCodeInternal, err.Error())
		}
		nonce = statedb.GetNonce(from)
	}

	tx := types.NewTransaction(nonce, to, value, gas, gasPrice, data)
	tx.SetSender(from)

	if err := api.backend.SendTransaction(tx); err != nil {
		return errorResponse(req.ID, ErrCodeInternal, err.Error())
	}

	return successResponse(req.ID, encodeHash(tx.Hash()))
}
