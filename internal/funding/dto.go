package funding

// DepositRequest credits a multisig wallet from the external funding rail.
type DepositRequest struct {
	Amount     uint64 `json:"amount"`
	ClientTxID string `json:"client_tx_id"`
}

// DepositResponse represents the API response for a deposit.
type DepositResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	WalletBalance uint64 `json:"wallet_balance"`
	Duplicate     bool   `json:"duplicate,omitempty"`
}
