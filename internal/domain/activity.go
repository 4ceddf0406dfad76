package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Notification kinds
const (
	NotifySuccess = "success"
	NotifyError   = "error"
	NotifyInfo    = "info"
)

// Notification is a user-visible message emitted by the trading session
// (fills, cancellations, alerts, rejections).
type Notification struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Transaction types
const (
	TxTrade    = "Trade"
	TxDeposit  = "Deposit"
	TxWithdraw = "Withdraw"
)

// Transaction is one entry of the session's activity log.
type Transaction struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Status  string          `json:"status"` // Always "Completed" in the simulation
	Asset   string          `json:"asset"`
	Amount  decimal.Decimal `json:"amount"`
	Details string          `json:"details"`
	Date    time.Time       `json:"date"`
}

// Chat roles for the AI assistant.
const (
	ChatRoleUser  = "user"
	ChatRoleModel = "model"
)

// ChatMessage is one turn of the AI assistant conversation.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}
