// Package testutils provides in-process fakes of the ledger and content store.
package testutils

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rxtech-lab/webhost-mcp/internal/contracts"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
)

// SimulatedChainID is the chain id used by SimulatedLedger.
var SimulatedChainID = big.NewInt(31337)

// SimulatedContractAddress is where SimulatedLedger serves the contract.
var SimulatedContractAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// SimulatedGenesisTime is the timestamp of block 0.
const SimulatedGenesisTime int64 = 1_700_000_000

// ErrExecutionReverted mirrors the error nodes return for a reverted eth_call.
var ErrExecutionReverted = errors.New("execution reverted: Deployment does not exist")

type storedDeployment struct {
	owner       common.Address
	contentHash string
	projectName string
	description string
	timestamp   int64
	version     uint64
}

type logSubscriber struct {
	query ethereum.FilterQuery
	feed  chan types.Log
	drop  chan error
}

// nodeError is a JSON-RPC error response, as ethclient surfaces it.
type nodeError struct {
	err error
}

func (e *nodeError) Error() string  { return e.err.Error() }
func (e *nodeError) ErrorCode() int { return -32000 }
func (e *nodeError) Unwrap() error  { return e.err }

var _ rpc.Error = (*nodeError)(nil)

// SimulatedLedger is an in-memory DecentralizedWebHost contract behind the
// go-ethereum backend interfaces. Every accepted transaction is mined
// immediately into its own block.
type SimulatedLedger struct {
	Address common.Address

	mu       sync.Mutex
	abi      abi.ABI
	block    uint64
	nonces   map[common.Address]uint64
	items    []storedDeployment
	byOwner  map[common.Address][]uint64
	receipts map[common.Hash]*types.Receipt
	logs     []types.Log
	subs     map[*logSubscriber]struct{}

	rejectNext    error
	dropAfterSend error
	revertNext    bool
	omitNextEvent bool
	holdReceipts  bool
	noPush        bool
	readFailures  map[uint64]error
	failAllReads  error
	callCount     map[string]int
}

var (
	_ bind.ContractBackend = (*SimulatedLedger)(nil)
	_ bind.DeployBackend   = (*SimulatedLedger)(nil)
)

// NewSimulatedLedger creates an empty ledger at a fixed contract address.
func NewSimulatedLedger() *SimulatedLedger {
	parsed, err := contracts.WebHostABI()
	if err != nil {
		panic(err)
	}
	return &SimulatedLedger{
		Address:      SimulatedContractAddress,
		abi:          parsed,
		nonces:       map[common.Address]uint64{},
		byOwner:      map[common.Address][]uint64{},
		receipts:     map[common.Hash]*types.Receipt{},
		subs:         map[*logSubscriber]struct{}{},
		readFailures: map[uint64]error{},
		callCount:    map[string]int{},
	}
}

// NewSigner creates a fresh key and a transactor for the simulated chain.
func NewSigner() (*bind.TransactOpts, *ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, SimulatedChainID)
	if err != nil {
		return nil, nil, err
	}
	return opts, key, nil
}

// RejectNext makes the node answer the next SendTransaction with err.
func (l *SimulatedLedger) RejectNext(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejectNext = &nodeError{err: err}
}

// DropAfterSend makes the next SendTransaction accept and mine the
// transaction, then fail with err as a broken connection would.
func (l *SimulatedLedger) DropAfterSend(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dropAfterSend = err
}

// DropSubscriptions ends every open log subscription with err.
func (l *SimulatedLedger) DropSubscriptions(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for sub := range l.subs {
		select {
		case sub.drop <- err:
		default:
		}
	}
}

// SubscriptionCount returns the number of open log subscriptions.
func (l *SimulatedLedger) SubscriptionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// RevertNext makes the next transaction mine with a failed status.
func (l *SimulatedLedger) RevertNext() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revertNext = true
}

// OmitNextEvent makes the next transaction succeed without emitting its event.
func (l *SimulatedLedger) OmitNextEvent() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.omitNextEvent = true
}

// HoldReceipts hides receipts so confirmation is never observed.
func (l *SimulatedLedger) HoldReceipts(hold bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holdReceipts = hold
}

// DisablePush makes SubscribeFilterLogs behave like an HTTP endpoint.
func (l *SimulatedLedger) DisablePush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.noPush = true
}

// FailRead makes getDeployment(id) fail with err.
func (l *SimulatedLedger) FailRead(id uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readFailures[id] = err
}

// FailAllReads makes every contract call fail with err. A nil err clears it.
func (l *SimulatedLedger) FailAllReads(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failAllReads = err
}

// CallCount returns how many times method was called through CallContract.
func (l *SimulatedLedger) CallCount(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.callCount[method]
}

// Seed records a deployment directly, as if owner had submitted it at timestamp.
func (l *SimulatedLedger) Seed(owner common.Address, contentHash, projectName, description string, timestamp int64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.block++
	id, _ := l.storeLocked(owner, contentHash, projectName, description, timestamp)
	return id
}

func (l *SimulatedLedger) storeLocked(owner common.Address, contentHash, projectName, description string, timestamp int64) (uint64, storedDeployment) {
	d := storedDeployment{
		owner:       owner,
		contentHash: contentHash,
		projectName: projectName,
		description: description,
		timestamp:   timestamp,
		version:     uint64(len(l.byOwner[owner]) + 1),
	}
	l.items = append(l.items, d)
	id := uint64(len(l.items))
	l.byOwner[owner] = append(l.byOwner[owner], id)
	return id, d
}

func (l *SimulatedLedger) blockTime(block uint64) int64 {
	return SimulatedGenesisTime + int64(block)*12
}

// CodeAt implements bind.ContractCaller.
func (l *SimulatedLedger) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	if contract == l.Address {
		return []byte{0x60, 0x80, 0x60, 0x40}, nil
	}
	return nil, nil
}

// PendingCodeAt implements bind.ContractTransactor.
func (l *SimulatedLedger) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return l.CodeAt(ctx, account, nil)
}

// CallContract implements bind.ContractCaller.
func (l *SimulatedLedger) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if call.To == nil || *call.To != l.Address {
		return nil, nil
	}
	method, args, err := l.decodeCall(call.Data)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.callCount[method.Name]++
	if l.failAllReads != nil {
		return nil, l.failAllReads
	}

	switch method.Name {
	case contracts.MethodGetDeployment:
		id := args[0].(*big.Int).Uint64()
		if err, ok := l.readFailures[id]; ok {
			return nil, err
		}
		if id == 0 || id > uint64(len(l.items)) {
			return nil, ErrExecutionReverted
		}
		d := l.items[id-1]
		return method.Outputs.Pack(d.owner, d.contentHash, big.NewInt(d.timestamp), new(big.Int).SetUint64(d.version), d.projectName, d.description)
	case contracts.MethodGetDeploymentsByOwner:
		owner := args[0].(common.Address)
		ids := make([]*big.Int, 0, len(l.byOwner[owner]))
		for _, id := range l.byOwner[owner] {
			ids = append(ids, new(big.Int).SetUint64(id))
		}
		return method.Outputs.Pack(ids)
	case contracts.MethodGetOwnerDeploymentCount:
		owner := args[0].(common.Address)
		return method.Outputs.Pack(big.NewInt(int64(len(l.byOwner[owner]))))
	case contracts.MethodGetTotalDeployments:
		return method.Outputs.Pack(big.NewInt(int64(len(l.items))))
	default:
		return nil, fmt.Errorf("execution reverted: %s is not callable", method.Name)
	}
}

func (l *SimulatedLedger) decodeCall(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("execution reverted: missing selector")
	}
	method, err := l.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, fmt.Errorf("execution reverted: %w", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("execution reverted: %w", err)
	}
	return method, args, nil
}

// HeaderByNumber implements bind.ContractTransactor. Headers carry no base fee,
// so bound contracts build legacy transactions.
func (l *SimulatedLedger) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	block := l.block
	if number != nil && number.Sign() >= 0 {
		block = number.Uint64()
	}
	return &types.Header{Number: new(big.Int).SetUint64(block), Time: uint64(l.blockTime(block))}, nil
}

// PendingNonceAt implements bind.ContractTransactor.
func (l *SimulatedLedger) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nonces[account], nil
}

// SuggestGasPrice implements bind.ContractTransactor.
func (l *SimulatedLedger) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

// SuggestGasTipCap implements bind.ContractTransactor.
func (l *SimulatedLedger) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

// EstimateGas implements bind.ContractTransactor.
func (l *SimulatedLedger) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if call.To == nil || *call.To != l.Address {
		return 21_000, nil
	}
	if _, _, err := l.decodeCall(call.Data); err != nil {
		return 0, err
	}
	return 120_000 + uint64(len(call.Data))*16, nil
}

// SendTransaction implements bind.ContractTransactor.
func (l *SimulatedLedger) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rejectNext != nil {
		err := l.rejectNext
		l.rejectNext = nil
		return err
	}
	if tx.Nonce() != l.nonces[from] {
		return &nodeError{err: fmt.Errorf("nonce too low: address %s, tx: %d state: %d", from.Hex(), tx.Nonce(), l.nonces[from])}
	}
	if err := l.mineLocked(from, tx); err != nil {
		return err
	}
	if l.dropAfterSend != nil {
		err := l.dropAfterSend
		l.dropAfterSend = nil
		return err
	}
	return nil
}

func (l *SimulatedLedger) mineLocked(from common.Address, tx *types.Transaction) error {
	l.nonces[from]++
	l.block++

	receipt := &types.Receipt{
		Type:             tx.Type(),
		Status:           types.ReceiptStatusSuccessful,
		TxHash:           tx.Hash(),
		GasUsed:          tx.Gas() / 2,
		BlockNumber:      new(big.Int).SetUint64(l.block),
		TransactionIndex: 0,
	}
	l.receipts[tx.Hash()] = receipt

	if tx.To() == nil || *tx.To() != l.Address {
		return nil
	}

	method, args, err := l.decodeCall(tx.Data())
	if err != nil || method.Name != contracts.MethodDeployWebsite || l.revertNext {
		l.revertNext = false
		receipt.Status = types.ReceiptStatusFailed
		return nil
	}

	id, stored := l.storeLocked(from, args[0].(string), args[1].(string), args[2].(string), l.blockTime(l.block))

	if l.omitNextEvent {
		l.omitNextEvent = false
		return nil
	}

	log, err := contracts.EncodeWebsiteDeployed(l.Address, models.DeploymentEvent{
		ID:          id,
		Owner:       from,
		ContentHash: stored.contentHash,
		Timestamp:   stored.timestamp,
		TxHash:      tx.Hash(),
		BlockNumber: l.block,
	})
	if err != nil {
		return err
	}
	log.BlockHash = common.BigToHash(new(big.Int).SetUint64(l.block))
	receipt.Logs = []*types.Log{&log}
	receipt.BlockHash = log.BlockHash
	l.logs = append(l.logs, log)

	for sub := range l.subs {
		if matches(sub.query, log) {
			select {
			case sub.feed <- log:
			default:
			}
		}
	}
	return nil
}

// TransactionReceipt implements bind.DeployBackend.
func (l *SimulatedLedger) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	receipt, ok := l.receipts[txHash]
	if !ok || l.holdReceipts {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// FilterLogs implements bind.ContractFilterer.
func (l *SimulatedLedger) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []types.Log
	for _, log := range l.logs {
		if query.FromBlock != nil && log.BlockNumber < query.FromBlock.Uint64() {
			continue
		}
		if query.ToBlock != nil && log.BlockNumber > query.ToBlock.Uint64() {
			continue
		}
		if matches(query, log) {
			out = append(out, log)
		}
	}
	return out, nil
}

// SubscribeFilterLogs implements bind.ContractFilterer.
func (l *SimulatedLedger) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	l.mu.Lock()
	if l.noPush {
		l.mu.Unlock()
		return nil, rpc.ErrNotificationsUnsupported
	}
	sub := &logSubscriber{query: query, feed: make(chan types.Log, 128), drop: make(chan error, 1)}
	l.subs[sub] = struct{}{}
	l.mu.Unlock()

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer func() {
			l.mu.Lock()
			delete(l.subs, sub)
			l.mu.Unlock()
		}()
		for {
			select {
			case log := <-sub.feed:
				select {
				case ch <- log:
				case <-quit:
					return nil
				}
			case err := <-sub.drop:
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

// EmitRemoved pushes a copy of the latest log flagged as removed, as a reorg would.
func (l *SimulatedLedger) EmitRemoved() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.logs) == 0 {
		return
	}
	log := l.logs[len(l.logs)-1]
	log.Removed = true
	for sub := range l.subs {
		if matches(sub.query, log) {
			select {
			case sub.feed <- log:
			default:
			}
		}
	}
}

func matches(query ethereum.FilterQuery, log types.Log) bool {
	if len(query.Addresses) > 0 {
		found := false
		for _, addr := range query.Addresses {
			if addr == log.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for i, alternatives := range query.Topics {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(log.Topics) {
			return false
		}
		found := false
		for _, topic := range alternatives {
			if topic == log.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
