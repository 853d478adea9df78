package types

import "github.com/ethereum/go-ethereum/common"

// Token identifies one of the two assets held by the vault.
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}
