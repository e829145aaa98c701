package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	mcpproto "github.com/mark3labs/mcp-go/mcp"

	"github.com/0xWizop/incubator-sub002"
)

const connectionFailedMessage = "connection failed, try again"

func (s *Server) registerTools() {
	s.addTool(mcpproto.NewTool(ToolStatus,
		mcpproto.WithDescription("Report the connected wallet and lock state"),
	), s.handleStatus)

	s.addTool(mcpproto.NewTool(ToolConnect,
		mcpproto.WithDescription("Connect a wallet, asking the user to pick and approve one if the session is locked"),
	), s.handleConnect)

	s.addTool(mcpproto.NewTool(ToolLock,
		mcpproto.WithDescription("Lock the session"),
	), s.handleLock)

	s.addTool(mcpproto.NewTool(ToolSwitch,
		mcpproto.WithDescription("Make another registered wallet active"),
		mcpproto.WithString("chain", mcpproto.Required(), mcpproto.Description("Chain of the wallet")),
		mcpproto.WithString("address", mcpproto.Required(), mcpproto.Description("Wallet address")),
	), s.handleSwitch)

	s.addTool(mcpproto.NewTool(ToolListWallets,
		mcpproto.WithDescription("List registered wallets"),
		mcpproto.WithString("chain", mcpproto.Description("Only list wallets on this chain")),
	), s.handleListWallets)

	s.addTool(mcpproto.NewTool(ToolAddWallet,
		mcpproto.WithDescription("Register a wallet"),
		mcpproto.WithString("chain", mcpproto.Required(), mcpproto.Description("Chain of the wallet")),
		mcpproto.WithString("address", mcpproto.Required(), mcpproto.Description("Wallet address")),
		mcpproto.WithString("label", mcpproto.Description("Display label")),
		mcpproto.WithString("signer_ref", mcpproto.Description("Signer that holds the key")),
	), s.handleAddWallet)

	s.addTool(mcpproto.NewTool(ToolRemoveWallet,
		mcpproto.WithDescription("Unregister a wallet"),
		mcpproto.WithString("chain", mcpproto.Required(), mcpproto.Description("Chain of the wallet")),
		mcpproto.WithString("address", mcpproto.Required(), mcpproto.Description("Wallet address")),
	), s.handleRemoveWallet)
}

func (s *Server) handleStatus(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	return jsonResult(s.session.Projection())
}

func (s *Server) handleConnect(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	if _, err := s.session.Connect(ctx); err != nil {
		return s.errorResult(err), nil
	}
	return jsonResult(s.session.Projection())
}

func (s *Server) handleLock(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	s.session.Lock()
	return jsonResult(s.session.Projection())
}

func (s *Server) handleSwitch(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	chain, address, err := walletArgs(req)
	if err != nil {
		return s.errorResult(err), nil
	}
	if _, err := s.session.Switch(ctx, chain, address); err != nil {
		return s.errorResult(err), nil
	}
	return jsonResult(s.session.Projection())
}

func (s *Server) handleListWallets(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	var chains []walletsession.Chain
	if raw := stringArg(req, "chain"); raw != "" {
		chain, err := walletsession.ParseChain(raw)
		if err != nil {
			return s.errorResult(err), nil
		}
		chains = append(chains, chain)
	}
	wallets := slices.Collect(s.session.Wallets(chains...))
	if wallets == nil {
		wallets = []walletsession.Wallet{}
	}
	return jsonResult(wallets)
}

func (s *Server) handleAddWallet(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	chain, address, err := walletArgs(req)
	if err != nil {
		return s.errorResult(err), nil
	}
	added, err := s.session.AddWallet(ctx, walletsession.Wallet{
		Chain:     chain,
		Address:   address,
		Label:     stringArg(req, "label"),
		SignerRef: walletsession.SignerRef(stringArg(req, "signer_ref")),
	})
	if err != nil {
		return s.errorResult(err), nil
	}
	return jsonResult(added)
}

func (s *Server) handleRemoveWallet(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	chain, address, err := walletArgs(req)
	if err != nil {
		return s.errorResult(err), nil
	}
	removed, err := s.session.RemoveWallet(ctx, chain, address)
	if err != nil {
		return s.errorResult(err), nil
	}
	return jsonResult(removed)
}

func stringArg(req mcpproto.CallToolRequest, name string) string {
	v, _ := req.GetArguments()[name].(string)
	return v
}

func walletArgs(req mcpproto.CallToolRequest) (walletsession.Chain, string, error) {
	chain, err := walletsession.ParseChain(stringArg(req, "chain"))
	if err != nil {
		return "", "", err
	}
	address := stringArg(req, "address")
	if address == "" {
		return "", "", fmt.Errorf("%w: address is required", walletsession.ErrInvalidWallet)
	}
	return chain, address, nil
}

func jsonResult(v any) (*mcpproto.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{mcpproto.NewTextContent(string(data))},
	}, nil
}

// errorResult reports err to the agent. Unlock failures carry no detail.
func (s *Server) errorResult(err error) *mcpproto.CallToolResult {
	msg := err.Error()
	if walletsession.IsConnectionFailure(err) {
		msg = connectionFailedMessage
	}
	s.logger.Debug("tool call failed", "error", err, "code", walletsession.CodeOf(err))
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{mcpproto.NewTextContent(msg)},
		IsError: true,
	}
}
