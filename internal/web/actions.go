package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teahouse-finance/tvault/internal/types"
)

// maxBodyBytes caps devnet request bodies.
const maxBodyBytes = 1 << 20

type callerRequest struct {
	Caller common.Address `json:"caller"`
}

type depositRequest struct {
	Caller     common.Address `json:"caller"`
	Shares     sdkmath.Int    `json:"shares"`
	Amount0Max sdkmath.Int    `json:"amount0_max"`
	Amount1Max sdkmath.Int    `json:"amount1_max"`
}

type withdrawRequest struct {
	Caller     common.Address `json:"caller"`
	Shares     sdkmath.Int    `json:"shares"`
	Amount0Min sdkmath.Int    `json:"amount0_min"`
	Amount1Min sdkmath.Int    `json:"amount1_min"`
}

type transferRequest struct {
	Caller common.Address `json:"caller"`
	To     common.Address `json:"to"`
	Shares sdkmath.Int    `json:"shares"`
}

type feeConfigRequest struct {
	Caller    common.Address  `json:"caller"`
	FeeConfig types.FeeConfig `json:"fee_config"`
}

type managerRequest struct {
	Caller  common.Address `json:"caller"`
	Manager common.Address `json:"manager"`
}

type swapRequest struct {
	Caller       common.Address  `json:"caller"`
	ZeroForOne   bool            `json:"zero_for_one"`
	AmountIn     sdkmath.Int     `json:"amount_in"`
	AmountOutMin sdkmath.Int     `json:"amount_out_min"`
	Payload      json.RawMessage `json:"payload,omitempty"` // Router calldata, only for execute-swap.
}

type liquidityRequest struct {
	Caller     common.Address `json:"caller"`
	TickLower  int32          `json:"tick_lower"`
	TickUpper  int32          `json:"tick_upper"`
	Liquidity  sdkmath.Int    `json:"liquidity"`
	Amount0Min sdkmath.Int    `json:"amount0_min"`
	Amount1Min sdkmath.Int    `json:"amount1_min"`
	Deadline   uint64         `json:"deadline"`
}

type fundRequest struct {
	Account common.Address `json:"account"`
	Amount0 sdkmath.Int    `json:"amount0"`
	Amount1 sdkmath.Int    `json:"amount1"`
}

type advanceTimeRequest struct {
	Seconds uint64 `json:"seconds"`
}

// decodeRequest reads a JSON body into dst, writing a 400 on failure.
func (ws *WebServer) decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		msg := "Invalid request body"
		if !errors.Is(err, io.EOF) {
			msg += ": " + err.Error()
		}
		ws.writeErrorResponse(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

func (ws *WebServer) writeAmounts(w http.ResponseWriter, amount0, amount1 sdkmath.Int) {
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"amount0": amount0,
		"amount1": amount1,
	})
}

func (ws *WebServer) writeSwap(w http.ResponseWriter, amountIn, amountOut sdkmath.Int) {
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"amount_in":  amountIn,
		"amount_out": amountOut,
	})
}

func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !ws.decodeRequest(w, r, &req) {
		return
	}
	amount0, amount1, err := ws.cfg.Vault.Deposit(r.Context(), req.Caller, req.Shares, req.Amount0Max, req.Amount1Max)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeAmounts(w, amount0, amount1)
}

func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !ws.decodeRequest(w, r, &req) {
		return
	}
	amount0, amount1, err := ws.cfg.Vault.Withdraw(r.Context(), req.Caller, req.Shares, req.Amount0Min, req.Amount1Min)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeAmounts(w, amount0, amount1)
}

func (ws *WebServer) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !ws.decodeRequest(w, r, &req) {
		return
	}
	if err := ws.cfg.Vault.Transfer(r.Context(), req.Caller, req.To, req.Shares); err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"shares": req.Shares})
}

func (ws *WebServer) handleCollectManagementFee(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !ws.decodeRequest(w, r, &req) {
		return
	}
	minted, err := ws.cfg.Vault.CollectManagementFee(r.Context(), req.Caller)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"fee_shares": minted})
}

func (ws *WebServer) handleSetFeeConfig(w http.ResponseWriter, r *http.Request) {
	var req feeConfigRequest
	if !ws.decodeRequest(w, r, &req) {
		return
	}
	if err := ws.cfg.Vault.SetFeeConfig(r.Context(), req.Caller, req.FeeConfig); err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, ws.cfg.Vault.FeeConfig())
}

func (ws *WebServer) handleAssignManager(w http.ResponseWriter, r *http.Request) {
	var req managerRequest
	if !ws.decodeRequest(w, r, &req) {
		return
	}
	if err := ws.cfg.Vault.AssignManager(r.Context(), req.Caller, req.Manager); err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"manager": ws.cfg.Vault.Manager().Hex()})
}

func (ws *WebServer) handleInPoolSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if !ws.decodeRequest(w, r, &req) {
		return
	}
	in, out, err := ws.cfg.Vault.InPoolSwap(r.Context(), req.Caller, req.ZeroForOne, req.AmountIn, req.AmountOutMin)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeSwap(w, in, out)
}

func (ws *WebServer) handleExecuteSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if !ws.decodeRequest(w, r, &req) {
		return
	}
	if ws.cfg.Router == nil {
		ws.writeErrorResponse(w, http.StatusNotImplemented, "No swap router configured")
		return
	}
	in, out, err := ws.cfg.Vault.ExecuteSwap(r.Context(), req.Caller, req.ZeroForOne, req.AmountIn, req.AmountOutMin, ws.cfg.Router, req.Payload)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeSwap(w, in, out)
}

func (ws *WebServer) handleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	var req liquidityRequest
	if !ws.decodeRequest(w, r, &req) {
		return
	}
	amount0, amount1, err := ws.cfg.Vault.AddLiquidity(r.Context(), req.Caller, req.TickLower, req.TickUpper,
		req.Liquidity, req.Amount0Min, req.Amount1Min, req.Deadline)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeAmounts(w, amount0, amount1)
}

func (ws *WebServer) handleRemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	var req liquidityRequest
	if !ws.decodeRequest(w, r, &req) {
		return
	}
	amount0, amount1, err := ws.cfg.Vault.RemoveLiquidity(r.Context(), req.Caller, req.TickLower, req.TickUpper,
		req.Liquidity, req.Amount0Min, req.Amount1Min, req.Deadline)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeAmounts(w, amount0, amount1)
}

func (ws *WebServer) handleCollectSwapFees(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !ws.decodeRequest(w, r, &req) {
		return
	}
	amount0, amount1, err := ws.cfg.Vault.CollectPositionSwapFees(r.Context(), req.Caller)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeAmounts(w, amount0, amount1)
}

func (ws *WebServer) handleFund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if !ws.decodeRequest(w, r, &req) {
		return
	}
	if req.Account == (common.Address{}) {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Account is required")
		return
	}
	if req.Amount0.IsNil() {
		req.Amount0 = sdkmath.ZeroInt()
	}
	if req.Amount1.IsNil() {
		req.Amount1 = sdkmath.ZeroInt()
	}
	if req.Amount0.IsNegative() || req.Amount1.IsNegative() {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Amounts cannot be negative")
		return
	}
	if err := ws.cfg.Faucet.Fund(r.Context(), req.Account, req.Amount0, req.Amount1); err != nil {
		webLogger.Error().Err(err).Str("account", req.Account.Hex()).Msg("Failed to fund account")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to fund account")
		return
	}
	ws.writeAmounts(w, req.Amount0, req.Amount1)
}

func (ws *WebServer) handleAdvanceTime(w http.ResponseWriter, r *http.Request) {
	var req advanceTimeRequest
	if !ws.decodeRequest(w, r, &req) {
		return
	}
	now := ws.cfg.Faucet.AdvanceTime(req.Seconds)
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"block_time": now})
}
