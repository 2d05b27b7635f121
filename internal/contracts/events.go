package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
)

// Event is a decoded log of the DecentralizedWebHost contract.
// The set of implementations is closed: WebsiteDeployed or Unrecognized.
type Event interface {
	isEvent()
}

// WebsiteDeployed is emitted once per confirmed deployWebsite call.
type WebsiteDeployed struct {
	Deployment models.DeploymentEvent
}

// Unrecognized is any log that is not a known event of the configured contract.
type Unrecognized struct {
	Reason string
}

func (WebsiteDeployed) isEvent() {}
func (Unrecognized) isEvent()    {}

// EventDecoder maps raw logs to typed events for one contract address.
type EventDecoder struct {
	abi     abi.ABI
	address common.Address
}

// NewEventDecoder creates a decoder for logs emitted by address.
func NewEventDecoder(address common.Address) (*EventDecoder, error) {
	parsed, err := WebHostABI()
	if err != nil {
		return nil, err
	}
	return &EventDecoder{abi: parsed, address: address}, nil
}

// Decode classifies a log. Logs from other contracts or with unknown topics
// are reported as Unrecognized with a nil error; an error means the log claims
// to be a known event but its payload cannot be decoded.
func (d *EventDecoder) Decode(log types.Log) (Event, error) {
	if log.Address != d.address {
		return Unrecognized{Reason: fmt.Sprintf("log emitted by %s", log.Address.Hex())}, nil
	}
	if len(log.Topics) == 0 {
		return Unrecognized{Reason: "anonymous log"}, nil
	}

	event, err := d.abi.EventByID(log.Topics[0])
	if err != nil {
		return Unrecognized{Reason: fmt.Sprintf("unknown topic %s", log.Topics[0].Hex())}, nil
	}

	switch event.Name {
	case EventWebsiteDeployed:
		deployment, err := d.decodeWebsiteDeployed(event, log)
		if err != nil {
			return nil, err
		}
		return WebsiteDeployed{Deployment: deployment}, nil
	default:
		return Unrecognized{Reason: fmt.Sprintf("unhandled event %s", event.Name)}, nil
	}
}

// FindWebsiteDeployed returns the first WebsiteDeployed event in logs.
func (d *EventDecoder) FindWebsiteDeployed(logs []*types.Log) (*models.DeploymentEvent, error) {
	for _, log := range logs {
		if log == nil {
			continue
		}
		decoded, err := d.Decode(*log)
		if err != nil {
			return nil, err
		}
		if deployed, ok := decoded.(WebsiteDeployed); ok {
			return &deployed.Deployment, nil
		}
	}
	return nil, nil
}

func (d *EventDecoder) decodeWebsiteDeployed(event *abi.Event, log types.Log) (models.DeploymentEvent, error) {
	values := map[string]interface{}{}
	if err := d.abi.UnpackIntoMap(values, event.Name, log.Data); err != nil {
		return models.DeploymentEvent{}, fmt.Errorf("failed to unpack %s data: %w", event.Name, err)
	}

	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(log.Topics)-1 != len(indexed) {
		return models.DeploymentEvent{}, fmt.Errorf("%s has %d indexed topics, expected %d", event.Name, len(log.Topics)-1, len(indexed))
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
		return models.DeploymentEvent{}, fmt.Errorf("failed to parse %s topics: %w", event.Name, err)
	}

	id, err := uint64Field(values, "deploymentId")
	if err != nil {
		return models.DeploymentEvent{}, err
	}
	timestamp, err := uint64Field(values, "timestamp")
	if err != nil {
		return models.DeploymentEvent{}, err
	}
	owner, ok := values["owner"].(common.Address)
	if !ok {
		return models.DeploymentEvent{}, fmt.Errorf("owner has unexpected type %T", values["owner"])
	}
	contentHash, ok := values["contentHash"].(string)
	if !ok {
		return models.DeploymentEvent{}, fmt.Errorf("contentHash has unexpected type %T", values["contentHash"])
	}

	return models.DeploymentEvent{
		ID:          id,
		Owner:       owner,
		ContentHash: contentHash,
		Timestamp:   int64(timestamp),
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
	}, nil
}

func uint64Field(values map[string]interface{}, name string) (uint64, error) {
	v, ok := values[name].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%s has unexpected type %T", name, values[name])
	}
	return BigToUint64(name, v)
}

// BigToUint64 converts a uint256 contract value, rejecting values that do not fit.
func BigToUint64(name string, v *big.Int) (uint64, error) {
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%s %v does not fit in uint64", name, v)
	}
	return v.Uint64(), nil
}

// EncodeWebsiteDeployed builds the log a contract at address emits for deployment.
// It is the inverse of Decode and is used by simulated backends.
func EncodeWebsiteDeployed(address common.Address, deployment models.DeploymentEvent) (types.Log, error) {
	parsed, err := WebHostABI()
	if err != nil {
		return types.Log{}, err
	}
	event, ok := parsed.Events[EventWebsiteDeployed]
	if !ok {
		return types.Log{}, fmt.Errorf("event %s missing from ABI", EventWebsiteDeployed)
	}

	data, err := event.Inputs.NonIndexed().Pack(deployment.ContentHash, new(big.Int).SetInt64(deployment.Timestamp))
	if err != nil {
		return types.Log{}, fmt.Errorf("failed to pack %s data: %w", EventWebsiteDeployed, err)
	}

	return types.Log{
		Address: address,
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(new(big.Int).SetUint64(deployment.ID)),
			common.BytesToHash(deployment.Owner.Bytes()),
		},
		Data:        data,
		TxHash:      deployment.TxHash,
		BlockNumber: deployment.BlockNumber,
		Index:       deployment.LogIndex,
	}, nil
}
