// internal/domain/payment/dto.go
package payment

import "nftsub-service/internal/pkg/money"

type ApproveRequest struct {
	Amount uint64 `json:"amount"`
}

type BalanceResponse struct {
	Account   string       `json:"account"`
	Balance   money.Amount `json:"balance"`
	Formatted string       `json:"formatted"`
}

type AllowanceResponse struct {
	Owner     string       `json:"owner"`
	Spender   string       `json:"spender"`
	Allowance money.Amount `json:"allowance"`
	Formatted string       `json:"formatted"`
}

type FaucetResponse struct {
	Account   string       `json:"account"`
	Minted    money.Amount `json:"minted"`
	Balance   money.Amount `json:"balance"`
	Remaining int64        `json:"remaining_requests"`
}
