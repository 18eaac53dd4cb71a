package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// HolderSnapshot is the supply and largest balances of one SPL token, in raw
// base units.
type HolderSnapshot struct {
	Supply   decimal.Decimal
	Decimals uint8
	// Largest holds the biggest account balances, descending.
	Largest []decimal.Decimal
}

// Solana reads SPL token holder data over JSON-RPC.
type Solana struct {
	rpc     *rpc.Client
	limiter *rate.Limiter
}

func NewSolana(endpoint string) *Solana {
	if endpoint == "" {
		endpoint = rpc.MainNetBeta_RPC
	}
	return &Solana{
		rpc:     rpc.New(endpoint),
		limiter: rate.NewLimiter(5, 5),
	}
}

func (s *Solana) Name() string { return "solana_rpc" }

// ValidMint reports whether address is a well-formed base58 public key.
func ValidMint(address string) bool {
	_, err := solana.PublicKeyFromBase58(address)
	return err == nil
}

// Holders fetches the token supply and the largest token accounts for mint.
func (s *Solana) Holders(ctx context.Context, mint string) (*HolderSnapshot, error) {
	if mint == "" {
		return nil, Missing(s.Name(), "token_address")
	}
	pk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, newError(s.Name(), ErrNotFound, fmt.Errorf("invalid mint: %w", err))
	}

	if err := s.limiter.WaitN(ctx, 2); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", s.Name(), ctx.Err())
		}
		return nil, newError(s.Name(), ErrRateLimited, err)
	}

	supply, err := s.rpc.GetTokenSupply(ctx, pk, rpc.CommitmentFinalized)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	if supply == nil || supply.Value == nil {
		return nil, newError(s.Name(), ErrMalformedResponse, errors.New("empty token supply"))
	}
	total, err := decimal.NewFromString(supply.Value.Amount)
	if err != nil {
		return nil, newError(s.Name(), ErrMalformedResponse, fmt.Errorf("parse supply: %w", err))
	}

	largest, err := s.rpc.GetTokenLargestAccounts(ctx, pk, rpc.CommitmentFinalized)
	if err != nil {
		return nil, s.classify(ctx, err)
	}

	snap := &HolderSnapshot{Supply: total, Decimals: supply.Value.Decimals}
	if largest != nil {
		for _, acct := range largest.Value {
			if acct == nil {
				continue
			}
			amt, err := decimal.NewFromString(acct.Amount)
			if err != nil {
				continue
			}
			snap.Largest = append(snap.Largest, amt)
		}
	}
	sort.Slice(snap.Largest, func(i, j int) bool { return snap.Largest[i].GreaterThan(snap.Largest[j]) })
	return snap, nil
}

func (s *Solana) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", s.Name(), ctx.Err())
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == 429 {
			return newError(s.Name(), ErrRateLimited, err)
		}
		return newError(s.Name(), ErrNotFound, err)
	}
	return newError(s.Name(), ErrTimeout, err)
}

// Close releases the RPC connection.
func (s *Solana) Close() error { return s.rpc.Close() }
