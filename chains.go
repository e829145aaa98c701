// Package walletsession holds the wallet session core: the registry of known
// wallets, the lock gate guarding access to the external signer, the session
// store that combines them with the active-wallet selection, and the
// connection broker that folds concurrent connect requests into a single
// unlock episode.
//
// The core never sees private key material. Signing is delegated to a Signer
// collaborator (hardware device, browser extension, or local encrypted store)
// reachable only through the challenge capability defined in signer.go.
package walletsession

import (
	"fmt"
	"strings"
)

// Chain identifies the network a wallet is used on.
type Chain string

const (
	ChainSolana   Chain = "solana"
	ChainEthereum Chain = "ethereum"
	ChainBase     Chain = "base"
	ChainArbitrum Chain = "arbitrum"
)

// NetworkType represents the blockchain virtual machine family of a chain.
// Chains of the same family share an address format and signature scheme.
type NetworkType int

const (
	// NetworkTypeUnknown represents an unrecognized network.
	NetworkTypeUnknown NetworkType = iota
	// NetworkTypeEVM represents Ethereum Virtual Machine chains.
	NetworkTypeEVM
	// NetworkTypeSVM represents Solana Virtual Machine chains.
	NetworkTypeSVM
)

func (t NetworkType) String() string {
	switch t {
	case NetworkTypeEVM:
		return "evm"
	case NetworkTypeSVM:
		return "svm"
	default:
		return "unknown"
	}
}

// ChainConfig describes a supported chain.
type ChainConfig struct {
	// Chain is the identifier stored on wallets (e.g., "base", "solana").
	Chain Chain

	// Name is the human-readable chain name.
	Name string

	// Type is the virtual machine family.
	Type NetworkType

	// ChainID is the EIP-155 chain id (zero for non-EVM chains).
	ChainID int64
}

var (
	// Solana is the configuration for Solana mainnet.
	Solana = ChainConfig{
		Chain: ChainSolana,
		Name:  "Solana",
		Type:  NetworkTypeSVM,
	}

	// Ethereum is the configuration for Ethereum mainnet.
	Ethereum = ChainConfig{
		Chain:   ChainEthereum,
		Name:    "Ethereum",
		Type:    NetworkTypeEVM,
		ChainID: 1,
	}

	// Base is the configuration for Base mainnet.
	Base = ChainConfig{
		Chain:   ChainBase,
		Name:    "Base",
		Type:    NetworkTypeEVM,
		ChainID: 8453,
	}

	// Arbitrum is the configuration for Arbitrum One.
	Arbitrum = ChainConfig{
		Chain:   ChainArbitrum,
		Name:    "Arbitrum",
		Type:    NetworkTypeEVM,
		ChainID: 42161,
	}
)

var chainConfigs = map[Chain]ChainConfig{
	ChainSolana:   Solana,
	ChainEthereum: Ethereum,
	ChainBase:     Base,
	ChainArbitrum: Arbitrum,
}

// Chains returns the supported chains in display order.
func Chains() []ChainConfig {
	return []ChainConfig{Solana, Ethereum, Base, Arbitrum}
}

// LookupChain returns the configuration for chain.
func LookupChain(chain Chain) (ChainConfig, error) {
	cfg, ok := chainConfigs[chain]
	if !ok {
		return ChainConfig{}, fmt.Errorf("%w: %q", ErrUnsupportedChain, chain)
	}
	return cfg, nil
}

// ParseChain converts user input into a supported Chain.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseChain(s string) (Chain, error) {
	chain := Chain(strings.ToLower(strings.TrimSpace(s)))
	if _, err := LookupChain(chain); err != nil {
		return "", err
	}
	return chain, nil
}

// ValidateChain validates a chain identifier and returns its network type.
//
// Supported chains:
//   - EVM: ethereum, base, arbitrum
//   - SVM: solana
func ValidateChain(chain Chain) (NetworkType, error) {
	if chain == "" {
		return NetworkTypeUnknown, fmt.Errorf("%w: chain cannot be empty", ErrUnsupportedChain)
	}
	cfg, err := LookupChain(chain)
	if err != nil {
		return NetworkTypeUnknown, err
	}
	return cfg.Type, nil
}

// NetworkTypeOf returns the network type of chain, or NetworkTypeUnknown.
func NetworkTypeOf(chain Chain) NetworkType {
	return chainConfigs[chain].Type
}
