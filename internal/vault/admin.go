package vault

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/teahouse-finance/tvault/internal/fees"
	"github.com/teahouse-finance/tvault/internal/types"
)

// SetFeeConfig replaces the whole fee configuration. Management fee owed under
// the previous configuration is accrued to the previous treasury first.
func (v *Vault) SetFeeConfig(ctx context.Context, caller common.Address, cfg types.FeeConfig) error {
	_, err := v.execute(ctx, types.OpSetFeeConfig, caller, func(op *operation) error {
		if err := v.requireOwner(op); err != nil {
			return err
		}
		if err := fees.Validate(cfg); err != nil {
			return err
		}
		if _, err := v.accrueManagementFee(op); err != nil {
			return err
		}
		op.state.FeeConfig = cfg
		op.log.Info().
			Str("treasury", cfg.Treasury.Hex()).
			Uint32("entry_fee", cfg.EntryFee).
			Uint32("exit_fee", cfg.ExitFee).
			Uint32("performance_fee", cfg.PerformanceFee).
			Uint32("management_fee", cfg.ManagementFee).
			Msg("Fee config updated")
		return nil
	})
	return err
}

// AssignManager replaces the manager.
func (v *Vault) AssignManager(ctx context.Context, caller, manager common.Address) error {
	_, err := v.execute(ctx, types.OpAssignManager, caller, func(op *operation) error {
		if err := v.requireOwner(op); err != nil {
			return err
		}
		op.log.Info().
			Str("previous", op.state.Manager.Hex()).
			Str("manager", manager.Hex()).
			Msg("Manager assigned")
		op.state.Manager = manager
		return nil
	})
	return err
}
