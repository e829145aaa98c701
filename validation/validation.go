// Package validation checks wallet records before they enter the registry.
//
// NormalizeWallet is a walletsession.Normalizer:
//
//	session, err := walletsession.New(walletsession.WithNormalizer(validation.NormalizeWallet))
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/0xWizop/incubator-sub002"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
)

var (
	// evmAddressRegex matches Ethereum-style addresses (0x followed by 40 hex chars)
	evmAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

	// solanaAddressRegex matches Solana base58 addresses (32-44 chars, base58 charset)
	solanaAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

	// signerRefRegex matches signer handles: short identifiers without whitespace
	signerRefRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/-]{0,63}$`)
)

// MaxLabelLength bounds wallet labels, counted in runes.
const MaxLabelLength = 64

// ValidateAddress validates an address for the given chain.
//
// EVM addresses must be 0x-prefixed hex. Mixed-case addresses must carry a
// valid EIP-55 checksum; all-lowercase and all-uppercase forms are accepted.
// Solana addresses must decode to a 32-byte ed25519 public key.
func ValidateAddress(chain walletsession.Chain, address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	networkType, err := walletsession.ValidateChain(chain)
	if err != nil {
		return fmt.Errorf("cannot validate address: %w", err)
	}

	switch networkType {
	case walletsession.NetworkTypeEVM:
		if !evmAddressRegex.MatchString(address) {
			return fmt.Errorf("invalid EVM address format: %s (expected 0x followed by 40 hex characters)", address)
		}
		if isMixedCase(address[2:]) && common.HexToAddress(address).Hex() != address {
			return fmt.Errorf("invalid EVM address checksum: %s", address)
		}
		return nil

	case walletsession.NetworkTypeSVM:
		if !solanaAddressRegex.MatchString(address) {
			return fmt.Errorf("invalid Solana address format: %s (expected base58 string 32-44 chars)", address)
		}
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return fmt.Errorf("invalid Solana address: %s: %v", address, err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported network type for address validation: %s", networkType)
	}
}

// NormalizeAddress validates address and returns its canonical form:
// EIP-55 checksummed for EVM chains, unchanged for Solana.
func NormalizeAddress(chain walletsession.Chain, address string) (string, error) {
	address = strings.TrimSpace(address)
	if err := ValidateAddress(chain, address); err != nil {
		return "", err
	}
	if walletsession.NetworkTypeOf(chain) == walletsession.NetworkTypeEVM {
		return common.HexToAddress(address).Hex(), nil
	}
	return address, nil
}

// ValidateLabel checks an optional display label.
func ValidateLabel(label string) error {
	if n := len([]rune(label)); n > MaxLabelLength {
		return fmt.Errorf("label too long: %d characters (max %d)", n, MaxLabelLength)
	}
	if strings.ContainsAny(label, "\r\n\t") {
		return fmt.Errorf("label cannot contain control whitespace")
	}
	return nil
}

// ValidateSignerRef checks an optional signer handle.
func ValidateSignerRef(ref walletsession.SignerRef) error {
	if ref == "" {
		return nil
	}
	if !signerRefRegex.MatchString(string(ref)) {
		return fmt.Errorf("invalid signer reference: %q", ref)
	}
	return nil
}

// NormalizeWallet performs comprehensive validation of a wallet record and
// returns it with a canonical address and trimmed label.
func NormalizeWallet(w walletsession.Wallet) (walletsession.Wallet, error) {
	chain, err := walletsession.ParseChain(string(w.Chain))
	if err != nil {
		return walletsession.Wallet{}, fmt.Errorf("%w: %w", walletsession.ErrInvalidWallet, err)
	}
	w.Chain = chain

	w.Address, err = NormalizeAddress(chain, w.Address)
	if err != nil {
		return walletsession.Wallet{}, fmt.Errorf("%w: %v", walletsession.ErrInvalidWallet, err)
	}

	w.Label = strings.TrimSpace(w.Label)
	if err := ValidateLabel(w.Label); err != nil {
		return walletsession.Wallet{}, fmt.Errorf("%w: %v", walletsession.ErrInvalidWallet, err)
	}

	if err := ValidateSignerRef(w.SignerRef); err != nil {
		return walletsession.Wallet{}, fmt.Errorf("%w: %v", walletsession.ErrInvalidWallet, err)
	}

	return w, nil
}

func isMixedCase(hex string) bool {
	return strings.ToLower(hex) != hex && strings.ToUpper(hex) != hex
}
