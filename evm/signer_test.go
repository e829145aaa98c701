package evm

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/0xWizop/incubator-sub002"
	"github.com/ethereum/go-ethereum/accounts/keystore"
)

const (
	testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	testMnemonic        = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testMnemonicAddress = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
)

func TestNewSigner(t *testing.T) {
	tests := []struct {
		name     string
		opts     []SignerOption
		wantErr  error
		wantAddr string
	}{
		{
			name:     "hex key",
			opts:     []SignerOption{WithPrivateKey(testKey)},
			wantAddr: testAddress,
		},
		{
			name:     "hex key with prefix",
			opts:     []SignerOption{WithPrivateKey("0x" + testKey)},
			wantAddr: testAddress,
		},
		{
			name:     "mnemonic",
			opts:     []SignerOption{WithMnemonic(testMnemonic, 0)},
			wantAddr: testMnemonicAddress,
		},
		{
			name:    "invalid key",
			opts:    []SignerOption{WithPrivateKey("not-hex")},
			wantErr: walletsession.ErrInvalidKey,
		},
		{
			name:    "invalid mnemonic",
			opts:    []SignerOption{WithMnemonic("abandon abandon", 0)},
			wantErr: walletsession.ErrInvalidMnemonic,
		},
		{
			name:    "missing key",
			opts:    nil,
			wantErr: walletsession.ErrInvalidKey,
		},
		{
			name:    "non-EVM chain",
			opts:    []SignerOption{WithPrivateKey(testKey), WithChains(walletsession.ChainSolana)},
			wantErr: walletsession.ErrUnsupportedChain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSigner(tt.opts...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewSigner() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSigner() unexpected error: %v", err)
			}
			if got := s.Address().Hex(); got != tt.wantAddr {
				t.Errorf("Address() = %s, want %s", got, tt.wantAddr)
			}
		})
	}
}

func TestWithKeystore(t *testing.T) {
	raw, _ := hex.DecodeString(testKey)
	cryptoJSON, err := keystore.EncryptDataV3(raw, []byte("hunter2"), keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		t.Fatalf("EncryptDataV3: %v", err)
	}
	data, _ := json.Marshal(map[string]any{"crypto": cryptoJSON, "version": 3})

	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := NewSigner(WithKeystore(path, "hunter2"))
	if err != nil {
		t.Fatalf("NewSigner() unexpected error: %v", err)
	}
	if s.Address().Hex() != testAddress {
		t.Errorf("Address() = %s", s.Address().Hex())
	}

	if _, err := NewSigner(WithKeystore(path, "wrong")); !errors.Is(err, walletsession.ErrInvalidKeystore) {
		t.Errorf("wrong password error = %v, want ErrInvalidKeystore", err)
	}
	if _, err := NewSigner(WithKeystore(filepath.Join(t.TempDir(), "missing.json"), "")); !errors.Is(err, walletsession.ErrInvalidKeystore) {
		t.Errorf("missing file error = %v, want ErrInvalidKeystore", err)
	}
}

func TestSignerCanSign(t *testing.T) {
	s, err := NewSigner(WithPrivateKey(testKey), WithChains(walletsession.ChainBase))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		wallet walletsession.Wallet
		want   bool
	}{
		{"checksummed", walletsession.Wallet{Chain: walletsession.ChainBase, Address: testAddress}, true},
		{"lowercase", walletsession.Wallet{Chain: walletsession.ChainBase, Address: "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"}, true},
		{"other chain", walletsession.Wallet{Chain: walletsession.ChainArbitrum, Address: testAddress}, false},
		{"other address", walletsession.Wallet{Chain: walletsession.ChainBase, Address: testMnemonicAddress}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.CanSign(tt.wallet); got != tt.want {
				t.Errorf("CanSign() = %v, want %v", got, tt.want)
			}
		})
	}

	if s.Ref() != "evm:0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266" {
		t.Errorf("Ref() = %q", s.Ref())
	}
}

func TestChallengeRoundTrip(t *testing.T) {
	s, err := NewSigner(WithPrivateKey(testKey))
	if err != nil {
		t.Fatal(err)
	}
	wallet := s.Wallet(walletsession.ChainEthereum, "hot")
	challenge := walletsession.Challenge{ID: "c1", Wallet: wallet, Message: []byte("Unlock wallet ethereum:" + wallet.Address)}

	sig, err := s.Challenge(context.Background(), challenge)
	if err != nil {
		t.Fatalf("Challenge() unexpected error: %v", err)
	}
	if len(sig.Bytes) != 65 || sig.Bytes[64] < 27 {
		t.Fatalf("signature = %x", sig.Bytes)
	}
	if sig.Wallet != wallet.Key() {
		t.Errorf("signature wallet = %v", sig.Wallet)
	}

	if err := (Verifier{}).Verify(wallet, challenge.Message, sig.Bytes); err != nil {
		t.Errorf("Verify() unexpected error: %v", err)
	}

	other := walletsession.Wallet{Chain: walletsession.ChainEthereum, Address: testMnemonicAddress}
	if err := (Verifier{}).Verify(other, challenge.Message, sig.Bytes); !errors.Is(err, walletsession.ErrSignatureMismatch) {
		t.Errorf("Verify(other) error = %v, want ErrSignatureMismatch", err)
	}
	if err := (Verifier{}).Verify(wallet, []byte("tampered"), sig.Bytes); !errors.Is(err, walletsession.ErrSignatureMismatch) {
		t.Errorf("Verify(tampered) error = %v, want ErrSignatureMismatch", err)
	}
	if err := (Verifier{}).Verify(wallet, challenge.Message, sig.Bytes[:64]); !errors.Is(err, walletsession.ErrSignatureMismatch) {
		t.Errorf("Verify(short) error = %v, want ErrSignatureMismatch", err)
	}
}

func TestChallengeApprover(t *testing.T) {
	declined := 0
	s, err := NewSigner(WithPrivateKey(testKey), WithApprover(func(context.Context, walletsession.Challenge) error {
		declined++
		return walletsession.ErrUnlockDenied
	}))
	if err != nil {
		t.Fatal(err)
	}

	challenge := walletsession.Challenge{Wallet: s.Wallet(walletsession.ChainBase, ""), Message: []byte("m")}
	if _, err := s.Challenge(context.Background(), challenge); !errors.Is(err, walletsession.ErrUnlockDenied) {
		t.Errorf("Challenge() error = %v, want ErrUnlockDenied", err)
	}
	if declined != 1 {
		t.Errorf("approver called %d times", declined)
	}

	foreign := walletsession.Challenge{Wallet: walletsession.Wallet{Chain: walletsession.ChainBase, Address: testMnemonicAddress}}
	if _, err := s.Challenge(context.Background(), foreign); !errors.Is(err, walletsession.ErrNoSigner) {
		t.Errorf("Challenge(foreign) error = %v, want ErrNoSigner", err)
	}
}

func TestSignerUnlocksSession(t *testing.T) {
	s, err := NewSigner(WithPrivateKey(testKey))
	if err != nil {
		t.Fatal(err)
	}
	session, err := walletsession.New(
		walletsession.WithSigner(walletsession.NewSignerRouter(s)),
		walletsession.WithVerifier(walletsession.NetworkTypeEVM, Verifier{}),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	wallet, err := session.AddWallet(context.Background(), s.Wallet(walletsession.ChainBase, "hot"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := session.BeginUnlock(context.Background(), &wallet)
	if err != nil {
		t.Fatalf("BeginUnlock() unexpected error: %v", err)
	}
	if got.Address != testAddress {
		t.Errorf("unlocked %s", got.Address)
	}
}
