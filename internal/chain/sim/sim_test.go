package sim

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/teahouse-finance/tvault/internal/chain"
)

var alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func newDevnet(t *testing.T) *Devnet {
	t.Helper()
	d, err := NewDevnet(DefaultDevnetConfig())
	require.NoError(t, err)
	return d
}

func TestTokenTransferAndAllowance(t *testing.T) {
	ctx := context.Background()
	d := newDevnet(t)
	bob := common.HexToAddress("0xb0b")

	d.Token0.Mint(alice, sdkmath.NewInt(100))
	require.NoError(t, d.Token0.Transfer(ctx, alice, bob, sdkmath.NewInt(40)))

	err := d.Token0.Transfer(ctx, alice, bob, sdkmath.NewInt(61))
	require.ErrorIs(t, err, chain.ErrInsufficientBalance)

	err = d.Token0.TransferFrom(ctx, bob, alice, bob, sdkmath.NewInt(10))
	require.ErrorIs(t, err, chain.ErrInsufficientAllowance)

	require.NoError(t, d.Token0.Approve(ctx, alice, bob, sdkmath.NewInt(10)))
	require.NoError(t, d.Token0.TransferFrom(ctx, bob, alice, bob, sdkmath.NewInt(10)))
	left, err := d.Token0.Allowance(ctx, alice, bob)
	require.NoError(t, err)
	require.True(t, left.IsZero())

	balance, err := d.Token0.BalanceOf(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, int64(50), balance.Int64())
}

func TestSnapshotRevertRestoresEverything(t *testing.T) {
	ctx := context.Background()
	d := newDevnet(t)
	d.Token0.Mint(alice, sdkmath.NewIntWithDecimal(10, 18))
	d.Token1.Mint(alice, sdkmath.NewIntWithDecimal(10, 18))
	before, err := d.Pool.Slot0(ctx)
	require.NoError(t, err)

	id := d.Chain.Snapshot()
	_, _, err = d.Pool.Mint(ctx, alice, -600, 600, sdkmath.NewIntWithDecimal(1, 18))
	require.NoError(t, err)
	_, _, err = d.Pool.Swap(ctx, alice, true, sdkmath.NewIntWithDecimal(1, 18), nil)
	require.NoError(t, err)
	d.Chain.RevertToSnapshot(id)

	after, err := d.Pool.Slot0(ctx)
	require.NoError(t, err)
	require.True(t, before.SqrtPriceX96.Eq(after.SqrtPriceX96))
	require.True(t, d.Pool.PositionLiquidity(alice, -600, 600).IsZero())
	balance, err := d.Token0.BalanceOf(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewIntWithDecimal(10, 18).String(), balance.String())
}

func TestMintBurnCollect(t *testing.T) {
	ctx := context.Background()
	d := newDevnet(t)
	d.Token0.Mint(alice, sdkmath.NewIntWithDecimal(10, 18))
	d.Token1.Mint(alice, sdkmath.NewIntWithDecimal(10, 18))
	liquidity := sdkmath.NewIntWithDecimal(1, 20)

	in0, in1, err := d.Pool.Mint(ctx, alice, -600, 600, liquidity)
	require.NoError(t, err)
	require.True(t, in0.IsPositive())
	require.True(t, in1.IsPositive())

	_, _, err = d.Pool.Burn(ctx, alice, -600, 600, liquidity.AddRaw(1))
	require.ErrorIs(t, err, ErrBurnExceeds)

	out0, out1, err := d.Pool.Burn(ctx, alice, -600, 600, liquidity)
	require.NoError(t, err)
	require.True(t, out0.LTE(in0))
	require.True(t, out1.LTE(in1))

	got0, got1, err := d.Pool.Collect(ctx, alice, -600, 600, out0, out1)
	require.NoError(t, err)
	require.Equal(t, out0.String(), got0.String())
	require.Equal(t, out1.String(), got1.String())

	_, _, err = d.Pool.Collect(ctx, alice, -600, 600, out0, out1)
	require.ErrorIs(t, err, chain.ErrUnknownPosition)
}

func TestSwapAccruesFeesToInRangePositions(t *testing.T) {
	ctx := context.Background()
	d := newDevnet(t)
	d.Token0.Mint(alice, sdkmath.NewIntWithDecimal(1, 24))
	d.Token1.Mint(alice, sdkmath.NewIntWithDecimal(1, 24))

	_, _, err := d.Pool.Mint(ctx, alice, -600, 600, sdkmath.NewIntWithDecimal(1, 23))
	require.NoError(t, err)
	_, _, err = d.Pool.Mint(ctx, alice, 6000, 6600, sdkmath.NewIntWithDecimal(1, 23))
	require.NoError(t, err)

	in, out, err := d.Pool.Swap(ctx, alice, true, sdkmath.NewIntWithDecimal(1, 18), nil)
	require.NoError(t, err)
	require.True(t, in.IsPositive())
	require.True(t, out.IsPositive())
	require.True(t, out.LT(in))

	fee0, fee1, err := d.Pool.PositionFees(ctx, alice, -600, 600)
	require.NoError(t, err)
	require.True(t, fee0.IsPositive())
	require.True(t, fee1.IsZero())

	fee0, _, err = d.Pool.PositionFees(ctx, alice, 6000, 6600)
	require.NoError(t, err)
	require.True(t, fee0.IsZero())
}

func TestRouterSwapsApprovedInput(t *testing.T) {
	ctx := context.Background()
	d := newDevnet(t)
	amount := sdkmath.NewIntWithDecimal(1, 18)
	d.Token1.Mint(alice, amount)
	payload, err := EncodeSwapPayload(false, amount)
	require.NoError(t, err)

	err = d.Router.Execute(ctx, alice, payload)
	require.ErrorIs(t, err, chain.ErrRouterCallFailed)

	require.NoError(t, d.Token1.Approve(ctx, alice, d.Router.Address(), amount))
	require.NoError(t, d.Router.Execute(ctx, alice, payload))

	got0, err := d.Token0.BalanceOf(ctx, alice)
	require.NoError(t, err)
	require.True(t, got0.IsPositive())

	err = d.Router.Execute(ctx, alice, []byte("not json"))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestFaucetFundsAndApproves(t *testing.T) {
	ctx := context.Background()
	d := newDevnet(t)
	spender := common.HexToAddress("0x5e")
	f := NewFaucet(d, spender)

	require.NoError(t, f.Fund(ctx, alice, sdkmath.NewInt(500), sdkmath.ZeroInt()))
	require.NoError(t, f.Fund(ctx, alice, sdkmath.NewInt(250), sdkmath.NewInt(7)))

	b0, err := d.Token0.BalanceOf(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(750), b0.Int64())
	a0, err := d.Token0.Allowance(ctx, alice, spender)
	require.NoError(t, err)
	require.Equal(t, int64(750), a0.Int64())
	a1, err := d.Token1.Allowance(ctx, alice, spender)
	require.NoError(t, err)
	require.Equal(t, int64(7), a1.Int64())

	require.ErrorIs(t, f.Fund(ctx, alice, sdkmath.NewInt(-1), sdkmath.ZeroInt()), ErrNegativeAmount)

	start := d.Chain.BlockTime()
	require.Equal(t, start+60, f.AdvanceTime(60))
}
