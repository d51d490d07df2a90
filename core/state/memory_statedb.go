package state

import (
	"math/big"
	"sort"

	"github.com/evmcore/evmcore/core/types"
	"github.com/evmcore/evmcore/crypto"
	"github.com/evmcore/evmcore/rlp"
	"github.com/evmcore/evmcore/trie"
)

// stateObject represents an Ethereum account with its associated state.
type stateObject struct {
	account          types.Account
	code             []byte
	dirtyStorage     map[types.Hash]types.Hash
	committedStorage map[types.Hash]types.Hash
	selfDestructed   bool
}

func newStateObject() *stateObject {
	return &stateObject{
		account:          types.NewAccount(),
		dirtyStorage:     make(map[types.Hash]types.Hash),
		committedStorage: make(map[types.Hash]types.Hash),
	}
}

// MemoryStateDB is an in-memory implementation of the StateDB interface. It
// keeps every account in a Go map and only materializes a Merkle-Patricia
// trie on demand (Commit, GetRoot, BuildStateTrie) since most reads and
// writes during transaction execution never need the trie structure itself.
type MemoryStateDB struct {
	stateObjects     map[types.Address]*stateObject
	journal          *journal
	logs             map[types.Hash][]*types.Log
	refund           uint64
	accessList       *accessList
	transientStorage map[types.Address]map[types.Hash]types.Hash

	// Current transaction context for log attribution.
	txHash  types.Hash
	txIndex int
}

// NewMemoryStateDB creates a new, empty in-memory state database.
func NewMemoryStateDB() *MemoryStateDB {
	return &MemoryStateDB{
		stateObjects:     make(map[types.Address]*stateObject),
		journal:          newJournal(),
		logs:             make(map[types.Hash][]*types.Log),
		accessList:       newAccessList(),
		transientStorage: make(map[types.Address]map[types.Hash]types.Hash),
	}
}

func (s *MemoryStateDB) getStateObject(addr types.Address) *stateObject {
	return s.stateObjects[addr]
}

func (s *MemoryStateDB) getOrNewStateObject(addr types.Address) *stateObject {
	if obj := s.stateObjects[addr]; obj != nil {
		return obj
	}
	obj := newStateObject()
	s.stateObjects[addr] = obj
	return obj
}

// --- Account operations ---

func (s *MemoryStateDB) CreateAccount(addr types.Address) {
	prev := s.stateObjects[addr] // may be nil
	s.journal.append(createAccountChange{addr: addr, prev: prev})
	s.stateObjects[addr] = newStateObject()
}

func (s *MemoryStateDB) SubBalance(addr types.Address, amount *big.Int) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(balanceChange{addr: addr, prev: new(big.Int).Set(obj.account.Balance)})
	obj.account.Balance = new(big.Int).Sub(obj.account.Balance, amount)
}

func (s *MemoryStateDB) AddBalance(addr types.Address, amount *big.Int) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(balanceChange{addr: addr, prev: new(big.Int).Set(obj.account.Balance)})
	obj.account.Balance = new(big.Int).Add(obj.account.Balance, amount)
}

func (s *MemoryStateDB) GetBalance(addr types.Address) *big.Int {
	if obj := s.getStateObject(addr); obj != nil {
		return new(big.Int).Set(obj.account.Balance)
	}
	return new(big.Int)
}

func (s *MemoryStateDB) GetNonce(addr types.Address) uint64 {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.account.Nonce
	}
	return 0
}

func (s *MemoryStateDB) SetNonce(addr types.Address, nonce uint64) {
	obj := s.getOrNewStateObject(addr)
	s.journal.append(nonceChange{addr: addr, prev: obj.account.Nonce})
	obj.account.Nonce = nonce
}

func (s *MemoryStateDB) GetCode(addr types.Address) []byte {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.code
	}
	return nil
}

func (s *MemoryStateDB) SetCode(addr types.Address, code []byte) {
	obj := s.getOrNewStateObject(addr)
	prevCode := obj.code
	prevHash := make([]byte, len(obj.account.CodeHash))
	copy(prevHash, obj.account.CodeHash)
	s.journal.append(codeChange{addr: addr, prevCode: prevCode, prevHash: prevHash})
	obj.code = code
	obj.account.CodeHash = crypto.Keccak256(code)
}

func (s *MemoryStateDB) GetCodeHash(addr types.Address) types.Hash {
	if obj := s.getStateObject(addr); obj != nil {
		return types.BytesToHash(obj.account.CodeHash)
	}
	return types.Hash{}
}

func (s *MemoryStateDB) GetCodeSize(addr types.Address) int {
	if obj := s.getStateObject(addr); obj != nil {
		return len(obj.code)
	}
	return 0
}

// --- Self-destruct ---

func (s *MemoryStateDB) SelfDestruct(addr types.Address) {
	obj := s.getStateObject(addr)
	if obj == nil {
		return
	}
	s.journal.append(selfDestructChange{
		addr:           addr,
		prevDestructed: obj.selfDestructed,
		prevBalance:    new(big.Int).Set(obj.account.Balance),
	})
	obj.selfDestructed = true
	obj.account.Balance = new(big.Int)
}

func (s *MemoryStateDB) HasSelfDestructed(addr types.Address) bool {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.selfDestructed
	}
	return false
}

// --- Storage operations ---

func (s *MemoryStateDB) GetState(addr types.Address, key types.Hash) types.Hash {
	if obj := s.getStateObject(addr); obj != nil {
		if val, ok := obj.dirtyStorage[key]; ok {
			return val
		}
		return obj.committedStorage[key]
	}
	return types.Hash{}
}

func (s *MemoryStateDB) SetState(addr types.Address, key types.Hash, value types.Hash) {
	obj := s.getOrNewStateObject(addr)
	prevDirty, prevExists := obj.dirtyStorage[key]
	var prev types.Hash
	if prevExists {
		prev = prevDirty
	} else {
		prev = obj.committedStorage[key]
	}
	s.journal.append(storageChange{addr: addr, key: key, prev: prev, prevExists: prevExists})
	obj.dirtyStorage[key] = value
}

func (s *MemoryStateDB) GetCommittedState(addr types.Address, key types.Hash) types.Hash {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.committedStorage[key]
	}
	return types.Hash{}
}

// --- Account existence ---

func (s *MemoryStateDB) Exist(addr types.Address) bool {
	return s.stateObjects[addr] != nil
}

func (s *MemoryStateDB) Empty(addr types.Address) bool {
	obj := s.getStateObject(addr)
	if obj == nil {
		return true
	}
	return obj.account.Nonce == 0 &&
		obj.account.Balance.Sign() == 0 &&
		types.BytesToHash(obj.account.CodeHash) == types.EmptyCodeHash
}

// --- Snapshot and revert ---

func (s *MemoryStateDB) Snapshot() int {
	return s.journal.snapshot()
}

func (s *MemoryStateDB) RevertToSnapshot(id int) {
	s.journal.revertToSnapshot(id, s)
}

// --- Logs ---

func (s *MemoryStateDB) AddLog(log *types.Log) {
	txHash := s.txHash
	log.TxHash = txHash
	log.TxIndex = uint(s.txIndex)
	s.journal.append(logChange{txHash: txHash, prevLen: len(s.logs[txHash])})
	s.logs[txHash] = append(s.logs[txHash], log)
}

func (s *MemoryStateDB) GetLogs(txHash types.Hash) []*types.Log {
	return s.logs[txHash]
}

// SetTxContext sets the current transaction hash and index for log attribution.
func (s *MemoryStateDB) SetTxContext(txHash types.Hash, txIndex int) {
	s.txHash = txHash
	s.txIndex = txIndex
}

// --- Refund counter ---

func (s *MemoryStateDB) AddRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	s.refund += gas
}

func (s *MemoryStateDB) SubRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	s.refund -= gas
}

func (s *MemoryStateDB) GetRefund() uint64 {
	return s.refund
}

// --- Access list (EIP-2929) ---

func (s *MemoryStateDB) AddAddressToAccessList(addr types.Address) {
	if !s.accessList.AddAddress(addr) {
		s.journal.append(accessListAddAccountChange{addr: addr})
	}
}

func (s *MemoryStateDB) AddSlotToAccessList(addr types.Address, slot types.Hash) {
	addrPresent, slotPresent := s.accessList.AddSlot(addr, slot)
	if !addrPresent {
		s.journal.append(accessListAddAccountChange{addr: addr})
	}
	if !slotPresent {
		s.journal.append(accessListAddSlotChange{addr: addr, slot: slot})
	}
}

func (s *MemoryStateDB) AddressInAccessList(addr types.Address) bool {
	return s.accessList.ContainsAddress(addr)
}

func (s *MemoryStateDB) SlotInAccessList(addr types.Address, slot types.Hash) (addressOk bool, slotOk bool) {
	return s.accessList.ContainsSlot(addr, slot)
}

// --- Transient storage (EIP-1153) ---

func (s *MemoryStateDB) GetTransientState(addr types.Address, key types.Hash) types.Hash {
	if slots, ok := s.transientStorage[addr]; ok {
		return slots[key]
	}
	return types.Hash{}
}

func (s *MemoryStateDB) SetTransientState(addr types.Address, key types.Hash, value types.Hash) {
	prev := s.GetTransientState(addr, key)
	s.journal.append(transientStorageChange{addr: addr, key: key, prev: prev})
	if _, ok := s.transientStorage[addr]; !ok {
		s.transientStorage[addr] = make(map[types.Hash]types.Hash)
	}
	s.transientStorage[addr][key] = value
}

// ClearTransientStorage resets all transient storage. Per EIP-1153, transient
// storage is cleared at the end of each transaction.
func (s *MemoryStateDB) ClearTransientStorage() {
	s.transientStorage = make(map[types.Address]map[types.Hash]types.Hash)
}

// --- Commit ---

// rlpAccount is the RLP-serializable form of an Ethereum account.
type rlpAccount struct {
	Nonce    uint64
	Balance  *big.Int
	Root     []byte // storage trie root hash (32 bytes)
	CodeHash []byte // keccak256 of code (32 bytes)
}

// mergeStorage builds a merged view of committed+dirty storage for an account,
// deleting any zero-valued entries (which represent slot deletions).
func mergeStorage(obj *stateObject) map[types.Hash]types.Hash {
	merged := make(map[types.Hash]types.Hash, len(obj.committedStorage)+len(obj.dirtyStorage))
	for k, v := range obj.committedStorage {
		merged[k] = v
	}
	for k, v := range obj.dirtyStorage {
		if v == (types.Hash{}) {
			delete(merged, k)
		} else {
			merged[k] = v
		}
	}
	return merged
}

// computeStorageRoot builds a storage trie from the account's committed+dirty
// storage and returns its Merkle root hash:
//
//	key   = Keccak256(slot)
//	value = RLP(trimmedValue)
func computeStorageRoot(obj *stateObject) types.Hash {
	merged := mergeStorage(obj)
	if len(merged) == 0 {
		return types.EmptyRootHash
	}

	storageTrie := trie.New()
	for slot, val := range merged {
		hashedSlot := crypto.Keccak256(slot[:])
		trimmed := trimLeadingZeros(val[:])
		encoded, err := rlp.EncodeToBytes(trimmed)
		if err != nil {
			continue
		}
		storageTrie.Put(hashedSlot, encoded)
	}
	return storageTrie.Hash()
}

// trimLeadingZeros removes leading zero bytes from a byte slice.
// Returns an empty slice if the input is all zeros.
func trimLeadingZeros(b []byte) []byte {
	for i, v := range b {
		if v != 0 {
			return b[i:]
		}
	}
	return []byte{}
}

func (s *MemoryStateDB) Commit() (types.Hash, error) {
	// Flush dirty storage to committed storage.
	for _, obj := range s.stateObjects {
		for key, val := range obj.dirtyStorage {
			if val == (types.Hash{}) {
				delete(obj.committedStorage, key)
			} else {
				obj.committedStorage[key] = val
			}
		}
		obj.dirtyStorage = make(map[types.Hash]types.Hash)
	}

	if len(s.stateObjects) == 0 {
		return types.EmptyRootHash, nil
	}

	stateTrie := trie.New()

	addrs := make([]types.Address, 0, len(s.stateObjects))
	for addr := range s.stateObjects {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].Hex() < addrs[j].Hex()
	})

	for _, addr := range addrs {
		obj := s.stateObjects[addr]
		if obj.selfDestructed {
			continue
		}

		storageRoot := computeStorageRoot(obj)
		obj.account.Root = storageRoot

		codeHash := obj.account.CodeHash
		if len(codeHash) == 0 {
			codeHash = types.EmptyCodeHash.Bytes()
		}

		acc := rlpAccount{
			Nonce:    obj.account.Nonce,
			Balance:  obj.account.Balance,
			Root:     storageRoot[:],
			CodeHash: codeHash,
		}
		encoded, err := rlp.EncodeToBytes(acc)
		if err != nil {
			return types.Hash{}, err
		}

		hashedAddr := crypto.Keccak256(addr[:])
		stateTrie.Put(hashedAddr, encoded)
	}

	return stateTrie.Hash(), nil
}

// StorageRoot computes and returns the storage trie root for the given address.
// Returns EmptyRootHash if the account does not exist or has no storage.
func (s *MemoryStateDB) StorageRoot(addr types.Address) types.Hash {
	obj := s.getStateObject(addr)
	if obj == nil {
		return types.EmptyRootHash
	}
	return computeStorageRoot(obj)
}

// GetRoot returns the current state root without flushing dirty storage.
// Useful for computing the root mid-block.
func (s *MemoryStateDB) GetRoot() types.Hash {
	if len(s.stateObjects) == 0 {
		return types.EmptyRootHash
	}

	stateTrie := trie.New()
	for addr, obj := range s.stateObjects {
		if obj.selfDestructed {
			continue
		}

		storageRoot := computeStorageRoot(obj)
		codeHash := obj.account.CodeHash
		if len(codeHash) == 0 {
			codeHash = types.EmptyCodeHash.Bytes()
		}

		acc := rlpAccount{
			Nonce:    obj.account.Nonce,
			Balance:  obj.account.Balance,
			Root:     storageRoot[:],
			CodeHash: codeHash,
		}
		encoded, err := rlp.EncodeToBytes(acc)
		if err != nil {
			continue
		}

		hashedAddr := crypto.Keccak256(addr[:])
		stateTrie.Put(hashedAddr, encoded)
	}

	return stateTrie.Hash()
}

// BuildStateTrie constructs a Merkle-Patricia trie containing every account in
// the state, for use by eth_getProof. Each account is keyed by
// keccak256(address) and the value is the RLP-encoded account.
func (s *MemoryStateDB) BuildStateTrie() *trie.Trie {
	stateTrie := trie.New()
	for addr, obj := range s.stateObjects {
		if obj.selfDestructed {
			continue
		}
		storageRoot := computeStorageRoot(obj)
		codeHash := obj.account.CodeHash
		if len(codeHash) == 0 {
			codeHash = types.EmptyCodeHash.Bytes()
		}
		acc := rlpAccount{
			Nonce:    obj.account.Nonce,
			Balance:  obj.account.Balance,
			Root:     storageRoot[:],
			CodeHash: codeHash,
		}
		encoded, err := rlp.EncodeToBytes(acc)
		if err != nil {
			continue
		}
		hashedAddr := crypto.Keccak256(addr[:])
		stateTrie.Put(hashedAddr, encoded)
	}
	return stateTrie
}

// BuildStorageTrie constructs a Merkle-Patricia trie for the given account's
// storage. Returns nil if the account does not exist or has no storage.
func (s *MemoryStateDB) BuildStorageTrie(addr types.Address) *trie.Trie {
	obj := s.getStateObject(addr)
	if obj == nil {
		return nil
	}
	merged := mergeStorage(obj)
	if len(merged) == 0 {
		return nil
	}
	storageTrie := trie.New()
	for slot, val := range merged {
		hashedSlot := crypto.Keccak256(slot[:])
		trimmed := trimLeadingZeros(val[:])
		encoded, err := rlp.EncodeToBytes(trimmed)
		if err != nil {
			continue
		}
		storageTrie.Put(hashedSlot, encoded)
	}
	return storageTrie
}

// Copy returns a deep copy of the MemoryStateDB. The copy shares no mutable
// state with the original, making it safe to hand out to concurrent readers
// (eth_call, eth_getBalance, ...) while the chain keeps executing.
func (s *MemoryStateDB) Copy() *MemoryStateDB {
	cp := &MemoryStateDB{
		stateObjects:     make(map[types.Address]*stateObject, len(s.stateObjects)),
		journal:          newJournal(),
		logs:             make(map[types.Hash][]*types.Log, len(s.logs)),
		refund:           s.refund,
		accessList:       s.accessList.Copy(),
		transientStorage: make(map[types.Address]map[types.Hash]types.Hash, len(s.transientStorage)),
	}

	for addr, obj := range s.stateObjects {
		newObj := &stateObject{
			account: types.Account{
				Nonce:    obj.account.Nonce,
				Balance:  new(big.Int).Set(obj.account.Balance),
				Root:     obj.account.Root,
				CodeHash: make([]byte, len(obj.account.CodeHash)),
			},
			code:             make([]byte, len(obj.code)),
			dirtyStorage:     make(map[types.Hash]types.Hash, len(obj.dirtyStorage)),
			committedStorage: make(map[types.Hash]types.Hash, len(obj.committedStorage)),
			selfDestructed:   obj.selfDestructed,
		}
		copy(newObj.account.CodeHash, obj.account.CodeHash)
		copy(newObj.code, obj.code)
		for k, v := range obj.dirtyStorage {
			newObj.dirtyStorage[k] = v
		}
		for k, v := range obj.committedStorage {
			newObj.committedStorage[k] = v
		}
		cp.stateObjects[addr] = newObj
	}

	for txHash, logs := range s.logs {
		cpLogs := make([]*types.Log, len(logs))
		for i, log := range logs {
			cpLog := *log
			cpLogs[i] = &cpLog
		}
		cp.logs[txHash] = cpLogs
	}

	for addr, slots := range s.transientStorage {
		cpSlots := make(map[types.Hash]types.Hash, len(slots))
		for k, v := range slots {
			cpSlots[k] = v
		}
		cp.transientStorage[addr] = cpSlots
	}

	return cp
}

// Prefetch pre-loads state objects for the given addresses so parallel
// transaction processing avoids lazy-initialization contention. No-op for
// addresses already present.
func (s *MemoryStateDB) Prefetch(addrs []types.Address) {
	for _, addr := range addrs {
		if s.stateObjects[addr] == nil {
			s.stateObjects[addr] = newStateObject()
		}
	}
}

// FinalizePreState copies current dirty storage into committed storage for
// all accounts. Call this after loading pre-state (e.g. genesis alloc) but
// before executing transactions, so GetCommittedState reflects the loaded
// values rather than treating them as pending writes.
func (s *MemoryStateDB) FinalizePreState() {
	for _, obj := range s.stateObjects {
		for key, value := range obj.dirtyStorage {
			obj.committedStorage[key] = value
		}
		obj.dirtyStorage = make(map[types.Hash]types.Hash)
	}
}

// Verify interface compliance at compile time.
var _ StateDB = (*MemoryStateDB)(nil)
