package cdp

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gagliardetto/solana-go"

	"github.com/0xWizop/incubator-sub002"
)

// DefaultPriority ranks hosted signers after local keys.
const DefaultPriority = 10

// Signer answers unlock challenges for one CDP account. It implements
// walletsession.WalletSigner.
type Signer struct {
	client   *Client
	account  Account
	ref      walletsession.SignerRef
	priority int
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner creates a signer for account. A client is required.
func NewSigner(account Account, opts ...SignerOption) (*Signer, error) {
	if account.Address == "" {
		return nil, fmt.Errorf("cdp: account address is required")
	}
	if _, err := accountsPath(account.NetworkType); err != nil {
		return nil, err
	}

	s := &Signer{account: account, priority: DefaultPriority}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.client == nil {
		return nil, fmt.Errorf("cdp: credentials not provided")
	}
	if s.ref == "" {
		s.ref = walletsession.SignerRef("cdp:" + strings.ToLower(account.Address))
	}
	return s, nil
}

// WithClient uses an existing API client.
func WithClient(client *Client) SignerOption {
	return func(s *Signer) error {
		s.client = client
		return nil
	}
}

// WithCredentials builds a client from an API key and wallet secret.
func WithCredentials(apiKeyName, apiKeySecret, walletSecret string, opts ...ClientOption) SignerOption {
	return func(s *Signer) error {
		auth, err := NewAuth(apiKeyName, apiKeySecret, walletSecret)
		if err != nil {
			return err
		}
		s.client, err = NewClient(auth, opts...)
		return err
	}
}

// WithCredentialsFromEnv reads CDP_API_KEY_NAME, CDP_API_KEY_SECRET and
// CDP_WALLET_SECRET.
func WithCredentialsFromEnv(opts ...ClientOption) SignerOption {
	return func(s *Signer) error {
		name := os.Getenv("CDP_API_KEY_NAME")
		secret := os.Getenv("CDP_API_KEY_SECRET")
		if name == "" || secret == "" {
			return fmt.Errorf("cdp: CDP_API_KEY_NAME and CDP_API_KEY_SECRET must be set")
		}
		return WithCredentials(name, secret, os.Getenv("CDP_WALLET_SECRET"), opts...)(s)
	}
}

// WithSignerRef sets the handle wallets use to reference this signer.
func WithSignerRef(ref walletsession.SignerRef) SignerOption {
	return func(s *Signer) error {
		s.ref = ref
		return nil
	}
}

// WithPriority sets the routing priority. Lower wins.
func WithPriority(priority int) SignerOption {
	return func(s *Signer) error {
		s.priority = priority
		return nil
	}
}

// Account returns the signing account.
func (s *Signer) Account() Account { return s.account }

// Wallet returns the wallet record for the account on chain.
func (s *Signer) Wallet(chain walletsession.Chain, label string) walletsession.Wallet {
	return walletsession.Wallet{
		Address:   s.account.Address,
		Chain:     chain,
		Label:     label,
		SignerRef: s.ref,
	}
}

// Ref implements walletsession.WalletSigner.
func (s *Signer) Ref() walletsession.SignerRef { return s.ref }

// Priority implements walletsession.WalletSigner.
func (s *Signer) Priority() int { return s.priority }

// CanSign implements walletsession.WalletSigner.
func (s *Signer) CanSign(wallet walletsession.Wallet) bool {
	if walletsession.NetworkTypeOf(wallet.Chain) != s.account.NetworkType {
		return false
	}
	if s.account.NetworkType == walletsession.NetworkTypeEVM {
		return strings.EqualFold(wallet.Address, s.account.Address)
	}
	return wallet.Address == s.account.Address
}

type signMessageRequest struct {
	Message string `json:"message"`
}

type signMessageResponse struct {
	Signature string `json:"signature"`
}

// Challenge implements walletsession.Signer by asking CDP to sign the
// challenge message with the account key.
func (s *Signer) Challenge(ctx context.Context, challenge walletsession.Challenge) (*walletsession.Signature, error) {
	if !s.CanSign(challenge.Wallet) {
		return nil, fmt.Errorf("%w: cdp account %s cannot sign for %s", walletsession.ErrNoSigner, s.account.Address, challenge.Wallet.Key())
	}
	base, err := accountsPath(s.account.NetworkType)
	if err != nil {
		return nil, err
	}

	path := base + "/" + s.account.Address + "/sign/message"
	var resp signMessageResponse
	if err := s.client.do(ctx, "POST", path, signMessageRequest{Message: string(challenge.Message)}, &resp, true); err != nil {
		return nil, fmt.Errorf("cdp: sign message: %w", err)
	}

	sig, err := decodeSignature(s.account.NetworkType, resp.Signature)
	if err != nil {
		return nil, err
	}
	return &walletsession.Signature{
		Wallet:  challenge.Wallet.Key(),
		Message: challenge.Message,
		Bytes:   sig,
	}, nil
}

// decodeSignature decodes the hex EVM or base58 Solana signature CDP returns.
func decodeSignature(nt walletsession.NetworkType, encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, fmt.Errorf("cdp: empty signature returned")
	}
	if nt == walletsession.NetworkTypeEVM {
		sig, err := hexutil.Decode(encoded)
		if err != nil {
			return nil, fmt.Errorf("cdp: decode signature: %w", err)
		}
		return sig, nil
	}
	sig, err := solana.SignatureFromBase58(encoded)
	if err != nil {
		return nil, fmt.Errorf("cdp: decode signature: %w", err)
	}
	return sig[:], nil
}
