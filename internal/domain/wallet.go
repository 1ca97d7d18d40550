package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TransactionTypeTopUp  = "TOPUP"
	TransactionTypeSpend  = "SPEND"
	TransactionTypeRefund = "REFUND"
)

// Wallet holds a user's reservation credits.
type Wallet struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID  int64     `json:"user_id" gorm:"not null;uniqueIndex"`
	Balance int64     `json:"balance" gorm:"not null;default:0"`

	User *User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (w *Wallet) BeforeCreate(_ *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// WalletTransaction records one balance movement. Spends and refunds point at the reservation that caused them.
type WalletTransaction struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	WalletID      uuid.UUID `json:"wallet_id" gorm:"type:uuid;not null;index"`
	Amount        int64     `json:"amount" gorm:"not null"`
	Type          string    `json:"type" gorm:"type:varchar(16);not null;index"`
	ReservationID *int64    `json:"reservation_id,omitempty" gorm:"index"`
	BalanceAfter  int64     `json:"balance_after" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (t *WalletTransaction) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
