package adapter

import (
	"fmt"

	"github.com/portfolio-engine/internal/types"
)

// Common adapter errors
var (
	// ErrInvalidAddress is returned when an owner or contract address is malformed
	ErrInvalidAddress = fmt.Errorf("invalid address format")

	// ErrChainNotConfigured is returned when no RPC endpoint exists for a chain
	ErrChainNotConfigured = fmt.Errorf("chain not configured")

	// ErrAllEndpointsRateLimited is returned when every endpoint of a pool is cooling down
	ErrAllEndpointsRateLimited = fmt.Errorf("all RPC endpoints are rate limited")
)

// AdapterError wraps errors with additional context
type AdapterError struct {
	Chain   types.ChainID
	Op      string // Operation that failed (e.g., "GetBalances", "balanceOf")
	Err     error
	Details map[string]interface{}
}

func (e *AdapterError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("chain adapter error [%s:%s]: %v (details: %+v)", e.Chain, e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("chain adapter error [%s:%s]: %v", e.Chain, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError creates a new AdapterError
func NewAdapterError(chain types.ChainID, op string, err error, details map[string]interface{}) *AdapterError {
	return &AdapterError{
		Chain:   chain,
		Op:      op,
		Err:     err,
		Details: details,
	}
}
