package utils

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var cidPattern = regexp.MustCompile(`^(Qm[1-9A-HJ-NP-Za-km-z]{44}|bafy[a-z0-9]{50,})$`)

// IsValidEthereumAddress reports whether address is a 0x-prefixed 20-byte hex address.
func IsValidEthereumAddress(address string) bool {
	return strings.HasPrefix(address, "0x") && common.IsHexAddress(address)
}

// ParseAddress parses a 0x-prefixed address. The zero address is rejected.
func ParseAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if !IsValidEthereumAddress(address) {
		return common.Address{}, fmt.Errorf("invalid address %q", address)
	}
	parsed := common.HexToAddress(address)
	if parsed == (common.Address{}) {
		return common.Address{}, errors.New("zero address is not allowed")
	}
	return parsed, nil
}

// IsValidCID accepts CIDv0 (Qm...) and base32 CIDv1 (bafy...) content addresses.
func IsValidCID(cid string) bool {
	return cidPattern.MatchString(cid)
}

// ParsePrivateKey parses a hex private key with or without the 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("private key is empty")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// NewTransactor builds signing options for hexKey on chainID.
func NewTransactor(hexKey string, chainID int64) (*bind.TransactOpts, error) {
	key, err := ParsePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	if chainID <= 0 {
		return nil, fmt.Errorf("invalid chain id %d", chainID)
	}
	return bind.NewKeyedTransactorWithChainID(key, big.NewInt(chainID))
}
