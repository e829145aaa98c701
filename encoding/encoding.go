// Package encoding provides the base64 JSON codecs for wallet records and
// session projections. Records are what storage backends keep under a wallet
// key; projections travel in the X-Wallet-Session HTTP header.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/0xWizop/incubator-sub002"
)

// Record is a persisted registry entry. Seq preserves insertion order across
// backends that do not keep it themselves.
type Record struct {
	Seq    uint64               `json:"seq"`
	Wallet walletsession.Wallet `json:"wallet"`
}

// EncodeRecord converts a Record to a base64-encoded JSON string.
func EncodeRecord(record Record) (string, error) {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}
	return base64.StdEncoding.EncodeToString(recordJSON), nil
}

// DecodeRecord converts a base64-encoded JSON string to a Record.
//
// Returns an error if base64 decoding or JSON unmarshaling fails, or if the
// record has no address or chain.
func DecodeRecord(encoded string) (Record, error) {
	var record Record

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return record, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(decoded, &record); err != nil {
		return record, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	if record.Wallet.Address == "" || record.Wallet.Chain == "" {
		return record, fmt.Errorf("%w: record missing address or chain", walletsession.ErrInvalidWallet)
	}

	return record, nil
}

// EncodeProjection converts a Projection to a base64-encoded JSON string.
func EncodeProjection(p walletsession.Projection) (string, error) {
	projectionJSON, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal projection: %w", err)
	}
	return base64.StdEncoding.EncodeToString(projectionJSON), nil
}

// DecodeProjection converts a base64-encoded JSON string to a Projection.
func DecodeProjection(encoded string) (walletsession.Projection, error) {
	var p walletsession.Projection

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return p, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(decoded, &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal projection: %w", err)
	}

	return p, nil
}
