package wallet

import (
	"context"
	"errors"
	"strings"

	"lessonbook/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient balance")
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GetBalance returns the user's credits. A user without a wallet has none.
func (s *Service) GetBalance(ctx context.Context, userID int64) (int64, error) {
	wallet, err := s.getWalletByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return wallet.Balance, nil
}

func (s *Service) GetOrCreateWallet(ctx context.Context, userID int64) (*domain.Wallet, error) {
	wallet, err := s.getWalletByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	wallet = &domain.Wallet{UserID: userID, Balance: 0}
	if err := s.db.WithContext(ctx).Create(wallet).Error; err != nil {
		if isUniqueConstraintError(err) {
			return s.getWalletByUserID(ctx, userID)
		}
		return nil, err
	}
	return wallet, nil
}

func (s *Service) TopUp(ctx context.Context, userID int64, amount int64) (*domain.Wallet, *domain.WalletTransaction, error) {
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	var wallet domain.Wallet
	var txn *domain.WalletTransaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = move(tx, userID, amount, domain.TransactionTypeTopUp, nil, &wallet)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return &wallet, txn, nil
}

// SpendTx debits amount inside the caller's transaction. A zero amount records nothing.
func (s *Service) SpendTx(tx *gorm.DB, userID, amount, reservationID int64) (*domain.WalletTransaction, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	if amount == 0 {
		return nil, nil
	}
	var wallet domain.Wallet
	return move(tx, userID, -amount, domain.TransactionTypeSpend, &reservationID, &wallet)
}

// RefundTx credits amount back inside the caller's transaction. A zero amount records nothing.
func (s *Service) RefundTx(tx *gorm.DB, userID, amount, reservationID int64) (*domain.WalletTransaction, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	if amount == 0 {
		return nil, nil
	}
	var wallet domain.Wallet
	return move(tx, userID, amount, domain.TransactionTypeRefund, &reservationID, &wallet)
}

func (s *Service) ListTransactions(ctx context.Context, userID int64) ([]domain.WalletTransaction, error) {
	wallet, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	var txns []domain.WalletTransaction
	if err := s.db.WithContext(ctx).Where("wallet_id = ?", wallet.ID).Order("created_at desc").Find(&txns).Error; err != nil {
		return nil, err
	}

	return txns, nil
}

func (s *Service) getWalletByUserID(ctx context.Context, userID int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// move applies a signed delta to the user's wallet under a row lock and records it.
// The ledger stores the absolute amount; the type carries the direction.
func move(tx *gorm.DB, userID, delta int64, typ string, reservationID *int64, wallet *domain.Wallet) (*domain.WalletTransaction, error) {
	if err := getOrCreateWalletForUpdate(tx, userID, wallet); err != nil {
		return nil, err
	}

	if wallet.Balance+delta < 0 {
		return nil, ErrInsufficientFunds
	}

	wallet.Balance += delta
	if err := tx.Model(&domain.Wallet{}).Where("id = ?", wallet.ID).Update("balance", wallet.Balance).Error; err != nil {
		return nil, err
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	txn := &domain.WalletTransaction{
		WalletID:      wallet.ID,
		Amount:        amount,
		Type:          typ,
		ReservationID: reservationID,
		BalanceAfter:  wallet.Balance,
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func getOrCreateWalletForUpdate(tx *gorm.DB, userID int64, wallet *domain.Wallet) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(wallet).Error
	if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	// a concurrent creator wins silently; the locked re-read below sees its row
	*wallet = domain.Wallet{UserID: userID, Balance: 0}
	err = tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).Create(wallet).Error
	if err != nil {
		return err
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(wallet).Error
}

func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "unique failed")
}
