package contracts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed webhost/DecentralizedWebHost.json
var webHostJSON []byte

// Method and event names of the DecentralizedWebHost contract.
const (
	MethodDeployWebsite           = "deployWebsite"
	MethodGetDeployment           = "getDeployment"
	MethodGetDeploymentsByOwner   = "getDeploymentsByOwner"
	MethodGetTotalDeployments     = "getTotalDeployments"
	MethodGetOwnerDeploymentCount = "getOwnerDeploymentCount"

	EventWebsiteDeployed = "WebsiteDeployed"
)

// ContractArtifact represents a compiled contract artifact
type ContractArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode,omitempty"`
}

// GetWebHostArtifact returns the DecentralizedWebHost contract artifact
func GetWebHostArtifact() (*ContractArtifact, error) {
	var artifact ContractArtifact
	if err := json.Unmarshal(webHostJSON, &artifact); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DecentralizedWebHost artifact: %w", err)
	}
	return &artifact, nil
}

var parseWebHostABI = sync.OnceValues(func() (abi.ABI, error) {
	artifact, err := GetWebHostArtifact()
	if err != nil {
		return abi.ABI{}, err
	}
	parsed, err := abi.JSON(bytes.NewReader(artifact.ABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse DecentralizedWebHost ABI: %w", err)
	}
	return parsed, nil
})

// WebHostABI returns the parsed contract ABI. The result is shared and must not be modified.
func WebHostABI() (abi.ABI, error) {
	return parseWebHostABI()
}
