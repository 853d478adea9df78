package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teahouse-finance/tvault/internal/chain"
	"github.com/teahouse-finance/tvault/internal/fixedpoint"
)

var ErrInvalidPayload = errors.New("router: invalid payload")

// SwapPayload is the call data understood by Router.
type SwapPayload struct {
	ZeroForOne bool        `json:"zero_for_one"`
	AmountIn   sdkmath.Int `json:"amount_in"`
}

// EncodeSwapPayload builds Router call data.
func EncodeSwapPayload(zeroForOne bool, amountIn sdkmath.Int) ([]byte, error) {
	return json.Marshal(SwapPayload{ZeroForOne: zeroForOne, AmountIn: amountIn})
}

// Router pulls the approved input from the caller, swaps it on a pool and pays
// the output back, less an optional skim in parts per million.
type Router struct {
	address common.Address
	pool    *Pool
	skim    uint32
}

var _ chain.Router = (*Router)(nil)

// NewRouter returns a router trading on pool.
func NewRouter(address common.Address, pool *Pool) *Router {
	return &Router{address: address, pool: pool}
}

// WithSkim makes the router keep skim parts per million of every output.
func (r *Router) WithSkim(skim uint32) *Router {
	r.skim = skim
	return r
}

func (r *Router) Address() common.Address { return r.address }

func (r *Router) Execute(ctx context.Context, caller common.Address, payload []byte) error {
	var call SwapPayload
	if err := json.Unmarshal(payload, &call); err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}
	if call.AmountIn.IsNil() || !call.AmountIn.IsPositive() {
		return fmt.Errorf("%w: amount_in must be positive", ErrInvalidPayload)
	}

	tokenIn, tokenOut := r.pool.token0, r.pool.token1
	if !call.ZeroForOne {
		tokenIn, tokenOut = r.pool.token1, r.pool.token0
	}
	if err := tokenIn.TransferFrom(ctx, r.address, caller, r.address, call.AmountIn); err != nil {
		return errors.Join(chain.ErrRouterCallFailed, err)
	}
	_, out, err := r.pool.Swap(ctx, r.address, call.ZeroForOne, call.AmountIn, nil)
	if err != nil {
		return errors.Join(chain.ErrRouterCallFailed, err)
	}
	if r.skim > 0 {
		kept, err := fixedpoint.MulDivInt(out, sdkmath.NewInt(int64(r.skim)), sdkmath.NewInt(feeUnit), false)
		if err != nil {
			return err
		}
		out = out.Sub(kept)
	}
	if err := tokenOut.Transfer(ctx, r.address, caller, out); err != nil {
		return errors.Join(chain.ErrRouterCallFailed, err)
	}
	return nil
}
