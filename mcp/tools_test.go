package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"testing"

	mcpproto "github.com/mark3labs/mcp-go/mcp"

	"github.com/0xWizop/incubator-sub002"
)

const addrA = "0x00000000000000000000000000000000000000a1"

func newTestServer(t *testing.T, signer walletsession.SignerFunc) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session, err := walletsession.New(
		walletsession.WithLogger(logger),
		walletsession.WithSigner(signer),
		walletsession.WithSelector(walletsession.SelectorFunc(func(ctx context.Context, wallets []walletsession.Wallet) (walletsession.Wallet, error) {
			return wallets[0], nil
		})),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return NewServer(session, "walletsession", "test", logger)
}

func approve(ctx context.Context, ch walletsession.Challenge) (*walletsession.Signature, error) {
	return &walletsession.Signature{Wallet: ch.Wallet.Key(), Message: ch.Message, Bytes: []byte("ok")}, nil
}

func deny(ctx context.Context, ch walletsession.Challenge) (*walletsession.Signature, error) {
	return nil, walletsession.ErrUnlockDenied
}

func call(name string, args map[string]interface{}) mcpproto.CallToolRequest {
	return mcpproto.CallToolRequest{Params: mcpproto.CallToolParams{Name: name, Arguments: args}}
}

func text(t *testing.T, res *mcpproto.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content = %+v", res.Content)
	}
	tc, ok := res.Content[0].(mcpproto.TextContent)
	if !ok {
		t.Fatalf("content type = %T", res.Content[0])
	}
	return tc.Text
}

func TestToolsRegistered(t *testing.T) {
	s := newTestServer(t, approve)
	want := []string{ToolStatus, ToolConnect, ToolLock, ToolSwitch, ToolListWallets, ToolAddWallet, ToolRemoveWallet}
	if got := s.ToolNames(); !slices.Equal(got, want) {
		t.Errorf("ToolNames() = %v, want %v", got, want)
	}
}

func TestWalletTools(t *testing.T) {
	s := newTestServer(t, approve)
	ctx := context.Background()

	res, err := s.handleAddWallet(ctx, call(ToolAddWallet, map[string]interface{}{
		"chain": "Base", "address": addrA, "label": "main",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("add failed: %s", text(t, res))
	}

	res, _ = s.handleAddWallet(ctx, call(ToolAddWallet, map[string]interface{}{"chain": "base", "address": addrA}))
	if !res.IsError {
		t.Error("duplicate add succeeded")
	}

	res, _ = s.handleAddWallet(ctx, call(ToolAddWallet, map[string]interface{}{"chain": "dogecoin", "address": addrA}))
	if !res.IsError {
		t.Error("unsupported chain accepted")
	}

	res, _ = s.handleListWallets(ctx, call(ToolListWallets, map[string]interface{}{"chain": "base"}))
	var wallets []walletsession.Wallet
	if err := json.Unmarshal([]byte(text(t, res)), &wallets); err != nil {
		t.Fatal(err)
	}
	if len(wallets) != 1 || wallets[0].Label != "main" {
		t.Errorf("wallets = %+v", wallets)
	}

	res, _ = s.handleListWallets(ctx, call(ToolListWallets, map[string]interface{}{"chain": "solana"}))
	if got := text(t, res); got != "[]" {
		t.Errorf("solana wallets = %s, want []", got)
	}

	res, _ = s.handleRemoveWallet(ctx, call(ToolRemoveWallet, map[string]interface{}{"chain": "base", "address": addrA}))
	if res.IsError {
		t.Fatalf("remove failed: %s", text(t, res))
	}
	res, _ = s.handleRemoveWallet(ctx, call(ToolRemoveWallet, map[string]interface{}{"chain": "base", "address": addrA}))
	if !res.IsError {
		t.Error("second remove succeeded")
	}
}

func TestSessionTools(t *testing.T) {
	tests := []struct {
		name      string
		signer    walletsession.SignerFunc
		wantError bool
	}{
		{"approved", approve, false},
		{"denied", deny, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.signer)
			ctx := context.Background()
			if _, err := s.session.AddWallet(ctx, walletsession.Wallet{Chain: walletsession.ChainBase, Address: addrA}); err != nil {
				t.Fatal(err)
			}

			res, err := s.handleConnect(ctx, call(ToolConnect, nil))
			if err != nil {
				t.Fatal(err)
			}
			if res.IsError != tt.wantError {
				t.Fatalf("IsError = %v, text %q", res.IsError, text(t, res))
			}
			if tt.wantError {
				if got := text(t, res); got != "connection failed, try again" {
					t.Errorf("error text = %q", got)
				}
				return
			}

			res, _ = s.handleStatus(ctx, call(ToolStatus, nil))
			var p walletsession.Projection
			if err := json.Unmarshal([]byte(text(t, res)), &p); err != nil {
				t.Fatal(err)
			}
			if !p.IsConnected || p.Address != addrA {
				t.Errorf("projection = %+v", p)
			}

			res, _ = s.handleLock(ctx, call(ToolLock, nil))
			if err := json.Unmarshal([]byte(text(t, res)), &p); err != nil {
				t.Fatal(err)
			}
			if p.IsConnected || p.LockState != walletsession.Locked {
				t.Errorf("projection after lock = %+v", p)
			}

			res, _ = s.handleSwitch(ctx, call(ToolSwitch, map[string]interface{}{"chain": "base", "address": addrA}))
			if !res.IsError {
				t.Error("switch while locked succeeded")
			}
		})
	}
}
