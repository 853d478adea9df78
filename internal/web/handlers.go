package web

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/teahouse-finance/tvault/internal/utils"
)

// handleGetVault returns roles, fee config, supply and tokens
func (ws *WebServer) handleGetVault(w http.ResponseWriter, r *http.Request) {
	v := ws.cfg.Vault
	token0, token1 := v.Tokens()
	supply := v.TotalSupply()

	formatted, err := utils.FormatUnits(supply, int(v.Decimals()))
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}

	response := map[string]interface{}{
		"address":                     v.Address().Hex(),
		"owner":                       v.Owner().Hex(),
		"manager":                     v.Manager().Hex(),
		"fee_config":                  v.FeeConfig(),
		"decimals":                    v.Decimals(),
		"token0":                      token0,
		"token1":                      token1,
		"total_supply":                supply.String(),
		"total_supply_formatted":      formatted,
		"holders":                     len(v.Holders()),
		"positions":                   len(v.AllPositions()),
		"last_management_fee_collect": v.LastManagementFeeCollectionTime(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetAssets returns the idle and in-position holdings and value estimates
func (ws *WebServer) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assets, err := ws.cfg.Vault.Assets(ctx)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	value0, err := ws.cfg.Vault.EstimatedValueInToken0(ctx)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	value1, err := ws.cfg.Vault.EstimatedValueInToken1(ctx)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}

	response := map[string]interface{}{
		"assets":          assets,
		"amount0":         assets.Amount0(),
		"amount1":         assets.Amount1(),
		"value_in_token0": value0,
		"value_in_token1": value1,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPositions returns every position with its token breakdown
func (ws *WebServer) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	all := ws.cfg.Vault.AllPositions()
	infos := make([]interface{}, 0, len(all))
	for i := range all {
		info, err := ws.cfg.Vault.PositionInfo(r.Context(), i)
		if err != nil {
			ws.writeVaultError(w, err)
			return
		}
		infos = append(infos, info)
	}

	response := map[string]interface{}{
		"positions": infos,
		"count":     len(infos),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPosition returns a specific position by index
func (ws *WebServer) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid position index")
		return
	}

	info, err := ws.cfg.Vault.PositionInfo(r.Context(), index)
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, info)
}

// handleGetBalance returns the share balance of an address
func (ws *WebServer) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addr) {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid address")
		return
	}
	holder := common.HexToAddress(addr)

	response := map[string]interface{}{
		"address": holder.Hex(),
		"shares":  ws.cfg.Vault.BalanceOf(holder),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPool returns the pool's tokens, fee and current price
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	info, err := ws.cfg.Vault.PoolInfo(r.Context())
	if err != nil {
		ws.writeVaultError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, info)
}

// handleGetReceipts returns recent operation receipts
func (ws *WebServer) handleGetReceipts(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.Receipts == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Receipts are not recorded")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	receipts, err := ws.cfg.Receipts.RecentReceipts(r.Context(), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent receipts")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve receipts")
		return
	}

	response := map[string]interface{}{
		"receipts": receipts,
		"count":    len(receipts),
		"limit":    limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}
