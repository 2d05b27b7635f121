package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/txpool"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/webhost-mcp/internal/contracts"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"golang.org/x/time/rate"
)

// DefaultConfirmTimeout bounds the wait for a transaction receipt.
const DefaultConfirmTimeout = 2 * time.Minute

// LedgerBackend is the node connection used by LedgerService and EventService.
// *ethclient.Client satisfies it.
type LedgerBackend interface {
	bind.ContractBackend
	bind.DeployBackend
}

type LedgerConfig struct {
	ContractAddress common.Address
	ConfirmTimeout  time.Duration
	// ReadLimiter throttles read calls. Nil means unlimited.
	ReadLimiter *rate.Limiter
}

// SubmissionUpdate is one transition of the Building → Submitted → Confirmed | Rejected machine.
type SubmissionUpdate struct {
	State        models.SubmissionState
	TxHash       common.Hash
	DeploymentID uint64
	Err          error
}

type SubmissionObserver func(update SubmissionUpdate)

type RecordDeploymentArgs struct {
	Signer      *bind.TransactOpts `validate:"required"`
	ContentHash string             `validate:"required"`
	ProjectName string             `validate:"required,max=256"`
	Description string             `validate:"max=4096"`
	// OnStateChange is called synchronously for every state transition.
	OnStateChange SubmissionObserver
}

type RecordResult struct {
	DeploymentID uint64
	TxHash       common.Hash
	BlockNumber  uint64
	Event        models.DeploymentEvent
	State        models.SubmissionState
}

type LedgerService interface {
	// RecordDeployment sends exactly one deployWebsite transaction and waits for it
	// to be mined. It never resubmits.
	RecordDeployment(ctx context.Context, args RecordDeploymentArgs) (RecordResult, error)
	EstimateRecordGas(ctx context.Context, args RecordDeploymentArgs) (uint64, error)
	GetDeployment(ctx context.Context, id uint64) (models.Deployment, error)
	GetDeploymentIDsForOwner(ctx context.Context, owner common.Address) ([]uint64, error)
	GetTotalDeploymentCount(ctx context.Context) (uint64, error)
	GetOwnerDeploymentCount(ctx context.Context, owner common.Address) (uint64, error)
	ContractAddress() common.Address
}

type ledgerService struct {
	backend        LedgerBackend
	contract       *bind.BoundContract
	abi            abi.ABI
	address        common.Address
	decoder        *contracts.EventDecoder
	confirmTimeout time.Duration
	limiter        *rate.Limiter
	validator      *validator.Validate
	metrics        *Metrics
}

func NewLedgerService(backend LedgerBackend, config LedgerConfig, metrics *Metrics) (LedgerService, error) {
	if config.ContractAddress == (common.Address{}) {
		return nil, errors.New("contract address is required")
	}

	parsed, err := contracts.WebHostABI()
	if err != nil {
		return nil, err
	}
	decoder, err := contracts.NewEventDecoder(config.ContractAddress)
	if err != nil {
		return nil, err
	}

	confirmTimeout := config.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}

	return &ledgerService{
		backend:        backend,
		contract:       bind.NewBoundContract(config.ContractAddress, parsed, backend, backend, backend),
		abi:            parsed,
		address:        config.ContractAddress,
		decoder:        decoder,
		confirmTimeout: confirmTimeout,
		limiter:        config.ReadLimiter,
		validator:      validator.New(),
		metrics:        metrics,
	}, nil
}

func (s *ledgerService) ContractAddress() common.Address {
	return s.address
}

// RecordDeployment submits the deployment and resolves its id from the
// WebsiteDeployed event of the receipt.
func (s *ledgerService) RecordDeployment(ctx context.Context, args RecordDeploymentArgs) (RecordResult, error) {
	if err := s.validator.Struct(args); err != nil {
		return RecordResult{}, &ValidationError{Reason: err.Error()}
	}

	notify := func(update SubmissionUpdate) {
		if args.OnStateChange != nil {
			args.OnStateChange(update)
		}
	}

	// Keep signer failures apart from node rejections.
	var (
		signErr error
		signed  *types.Transaction
	)
	opts := *args.Signer
	opts.Context = ctx
	opts.Signer = func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		out, err := args.Signer.Signer(from, tx)
		if err != nil {
			signErr = err
			return nil, err
		}
		signed = out
		return out, nil
	}

	notify(SubmissionUpdate{State: models.SubmissionStateBuilding})

	tx, err := s.contract.Transact(&opts, contracts.MethodDeployWebsite, args.ContentHash, args.ProjectName, args.Description)
	switch {
	case err == nil:
	case signed != nil && isAlreadyKnown(err):
		log.Printf("Deployment transaction %s already known to the node", signed.Hash().Hex())
		tx = signed
	case signed != nil && !isNodeRejection(err):
		txHash := signed.Hash()
		submissionErr := &LedgerSubmissionError{Reason: FailureSendUnknown, Sent: true, TxHash: txHash, Err: err}
		s.metrics.observeSubmission(string(FailureSendUnknown))
		log.Printf("Sending transaction %s failed without a node answer: %v", txHash.Hex(), err)
		notify(SubmissionUpdate{State: models.SubmissionStateSubmitted, TxHash: txHash, Err: submissionErr})
		return RecordResult{TxHash: txHash, State: models.SubmissionStateSubmitted}, submissionErr
	default:
		reason := FailureRejected
		if signErr != nil {
			reason = FailureSignerRejected
		}
		submissionErr := &LedgerSubmissionError{Reason: reason, Err: err}
		s.metrics.observeSubmission(string(reason))
		notify(SubmissionUpdate{State: models.SubmissionStateRejected, Err: submissionErr})
		return RecordResult{State: models.SubmissionStateRejected}, submissionErr
	}

	txHash := tx.Hash()
	sentAt := time.Now()
	log.Printf("Deployment transaction sent: %s", txHash.Hex())
	notify(SubmissionUpdate{State: models.SubmissionStateSubmitted, TxHash: txHash})

	waitCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, s.backend, tx)
	if err != nil {
		s.metrics.observeSubmission(string(FailureConfirmationTimeout))
		log.Printf("Transaction %s not confirmed: %v", txHash.Hex(), err)
		return RecordResult{TxHash: txHash, State: models.SubmissionStateSubmitted}, &LedgerSubmissionError{
			Reason: FailureConfirmationTimeout,
			Sent:   true,
			TxHash: txHash,
			Err:    err,
		}
	}
	s.metrics.observeConfirmation(sentAt)

	blockNumber := receiptBlock(receipt)
	if receipt.Status != types.ReceiptStatusSuccessful {
		submissionErr := &LedgerSubmissionError{
			Reason: FailureReverted,
			Sent:   true,
			TxHash: txHash,
			Err:    fmt.Errorf("transaction reverted in block %d", blockNumber),
		}
		s.metrics.observeSubmission(string(FailureReverted))
		notify(SubmissionUpdate{State: models.SubmissionStateRejected, TxHash: txHash, Err: submissionErr})
		return RecordResult{TxHash: txHash, BlockNumber: blockNumber, State: models.SubmissionStateRejected}, submissionErr
	}

	event, err := s.decoder.FindWebsiteDeployed(receipt.Logs)
	if err == nil && event == nil {
		err = fmt.Errorf("no %s event among %d log(s)", contracts.EventWebsiteDeployed, len(receipt.Logs))
	}
	if err != nil {
		s.metrics.observeSubmission("protocol_error")
		return RecordResult{TxHash: txHash, BlockNumber: blockNumber, State: models.SubmissionStateSubmitted}, &LedgerProtocolError{
			TxHash:      txHash,
			BlockNumber: blockNumber,
			Err:         err,
		}
	}

	s.metrics.observeSubmission("confirmed")
	log.Printf("Deployment %d confirmed in block %d", event.ID, blockNumber)
	notify(SubmissionUpdate{State: models.SubmissionStateConfirmed, TxHash: txHash, DeploymentID: event.ID})

	return RecordResult{
		DeploymentID: event.ID,
		TxHash:       txHash,
		BlockNumber:  blockNumber,
		Event:        *event,
		State:        models.SubmissionStateConfirmed,
	}, nil
}

// isNodeRejection reports whether err is an answer from the node. Anything
// else after signing is a transport failure with an unknown outcome.
func isNodeRejection(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return true
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	for _, known := range []error{
		core.ErrNonceTooLow,
		core.ErrNonceTooHigh,
		core.ErrInsufficientFunds,
		core.ErrIntrinsicGas,
		core.ErrGasLimitReached,
		core.ErrFeeCapTooLow,
		core.ErrTipAboveFeeCap,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

func isAlreadyKnown(err error) bool {
	return errors.Is(err, txpool.ErrAlreadyKnown) || strings.Contains(err.Error(), txpool.ErrAlreadyKnown.Error())
}

func (s *ledgerService) EstimateRecordGas(ctx context.Context, args RecordDeploymentArgs) (uint64, error) {
	if err := s.validator.Struct(args); err != nil {
		return 0, &ValidationError{Reason: err.Error()}
	}

	input, err := s.abi.Pack(contracts.MethodDeployWebsite, args.ContentHash, args.ProjectName, args.Description)
	if err != nil {
		return 0, fmt.Errorf("failed to pack %s: %w", contracts.MethodDeployWebsite, err)
	}

	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: args.Signer.From,
		To:   &s.address,
		Data: input,
	})
	if err != nil {
		return 0, &LedgerReadError{Op: "estimateGas", Err: err}
	}
	return gas, nil
}

func (s *ledgerService) GetDeployment(ctx context.Context, id uint64) (models.Deployment, error) {
	out, err := s.call(ctx, contracts.MethodGetDeployment, new(big.Int).SetUint64(id))
	if err != nil {
		if isExecutionReverted(err) {
			return models.Deployment{}, &NotFoundError{ID: id}
		}
		return models.Deployment{}, err
	}
	if len(out) != 6 {
		return models.Deployment{}, &LedgerReadError{Op: contracts.MethodGetDeployment, Err: fmt.Errorf("expected 6 outputs, got %d", len(out))}
	}

	owner, ok := out[0].(common.Address)
	if !ok {
		return models.Deployment{}, unexpectedOutput("owner", out[0])
	}
	if owner == (common.Address{}) {
		return models.Deployment{}, &NotFoundError{ID: id}
	}
	contentHash, ok := out[1].(string)
	if !ok {
		return models.Deployment{}, unexpectedOutput("contentHash", out[1])
	}
	timestamp, err := bigOutput("timestamp", out[2])
	if err != nil {
		return models.Deployment{}, err
	}
	version, err := bigOutput("version", out[3])
	if err != nil {
		return models.Deployment{}, err
	}
	projectName, ok := out[4].(string)
	if !ok {
		return models.Deployment{}, unexpectedOutput("projectName", out[4])
	}
	description, ok := out[5].(string)
	if !ok {
		return models.Deployment{}, unexpectedOutput("description", out[5])
	}

	return models.Deployment{
		ID:          id,
		Owner:       owner,
		ContentHash: contentHash,
		ProjectName: projectName,
		Description: description,
		Version:     version,
		Timestamp:   int64(timestamp),
	}, nil
}

func (s *ledgerService) GetDeploymentIDsForOwner(ctx context.Context, owner common.Address) ([]uint64, error) {
	out, err := s.call(ctx, contracts.MethodGetDeploymentsByOwner, owner)
	if err != nil {
		return nil, err
	}
	raw, ok := out[0].([]*big.Int)
	if !ok {
		return nil, unexpectedOutput("deployment ids", out[0])
	}
	ids := make([]uint64, 0, len(raw))
	for _, v := range raw {
		id, err := bigOutput("deployment id", v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *ledgerService) GetTotalDeploymentCount(ctx context.Context) (uint64, error) {
	out, err := s.call(ctx, contracts.MethodGetTotalDeployments)
	if err != nil {
		return 0, err
	}
	return bigOutput("total deployments", out[0])
}

func (s *ledgerService) GetOwnerDeploymentCount(ctx context.Context, owner common.Address) (uint64, error) {
	out, err := s.call(ctx, contracts.MethodGetOwnerDeploymentCount, owner)
	if err != nil {
		return 0, err
	}
	return bigOutput("owner deployment count", out[0])
}

// call runs a read-only method. Transport failures become LedgerReadError.
func (s *ledgerService) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, &LedgerReadError{Op: method, Err: err}
		}
	}

	var out []interface{}
	err := s.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...)
	s.metrics.observeRead(method, err)
	if err != nil {
		return nil, &LedgerReadError{Op: method, Err: err}
	}
	if len(out) == 0 {
		return nil, &LedgerReadError{Op: method, Err: errors.New("empty result")}
	}
	return out, nil
}

func receiptBlock(receipt *types.Receipt) uint64 {
	if receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}

func isExecutionReverted(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

func bigOutput(name string, v interface{}) (uint64, error) {
	b, ok := v.(*big.Int)
	if !ok {
		return 0, unexpectedOutput(name, v)
	}
	n, err := contracts.BigToUint64(name, b)
	if err != nil {
		return 0, &LedgerReadError{Op: name, Err: err}
	}
	return n, nil
}

func unexpectedOutput(name string, v interface{}) error {
	return &LedgerReadError{Op: name, Err: fmt.Errorf("unexpected type %T", v)}
}
