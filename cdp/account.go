package cdp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/0xWizop/incubator-sub002"
)

// Account is a CDP server wallet account.
type Account struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`

	// NetworkType is the chain family the account signs for.
	NetworkType walletsession.NetworkType `json:"-"`
}

type listAccountsResponse struct {
	Accounts  []Account `json:"accounts"`
	NextToken string    `json:"nextPageToken,omitempty"`
}

type createAccountRequest struct {
	Name string `json:"name,omitempty"`
}

func accountsPath(nt walletsession.NetworkType) (string, error) {
	switch nt {
	case walletsession.NetworkTypeEVM:
		return "/platform/v2/evm/accounts", nil
	case walletsession.NetworkTypeSVM:
		return "/platform/v2/solana/accounts", nil
	default:
		return "", fmt.Errorf("%w: cdp has no accounts for network type %s", walletsession.ErrUnsupportedChain, nt)
	}
}

// GetOrCreateAccount returns the account named name, creating it when no
// such account exists.
func (c *Client) GetOrCreateAccount(ctx context.Context, nt walletsession.NetworkType, name string) (Account, error) {
	if name == "" {
		return Account{}, fmt.Errorf("cdp: account name is required")
	}
	base, err := accountsPath(nt)
	if err != nil {
		return Account{}, err
	}

	pageToken := ""
	for {
		path := base
		if pageToken != "" {
			path += "?pageToken=" + url.QueryEscape(pageToken)
		}
		var page listAccountsResponse
		if err := c.do(ctx, "GET", path, nil, &page, false); err != nil {
			return Account{}, fmt.Errorf("cdp: list accounts: %w", err)
		}
		for _, a := range page.Accounts {
			if a.Name == name {
				a.NetworkType = nt
				return a, nil
			}
		}
		if page.NextToken == "" {
			break
		}
		pageToken = page.NextToken
	}

	var created Account
	if err := c.do(ctx, "POST", base, createAccountRequest{Name: name}, &created, true); err != nil {
		return Account{}, fmt.Errorf("cdp: create account: %w", err)
	}
	if created.Address == "" {
		return Account{}, fmt.Errorf("cdp: create account returned no address")
	}
	created.NetworkType = nt
	return created, nil
}
