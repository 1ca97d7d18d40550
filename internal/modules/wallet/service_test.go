package wallet

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"lessonbook/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:wallet_test_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Wallet{}, &domain.WalletTransaction{}); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return db
}

func setupTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(setupTestDB(t))
}

func TestGetOrCreateWalletCreatesOnFirstRequest(t *testing.T) {
	svc := setupTestService(t)

	wallet, err := svc.GetOrCreateWallet(context.Background(), 1001)
	if err != nil {
		t.Fatalf("GetOrCreateWallet returned error: %v", err)
	}
	if wallet.Balance != 0 {
		t.Fatalf("expected zero initial balance, got %d", wallet.Balance)
	}

	again, err := svc.GetOrCreateWallet(context.Background(), 1001)
	if err != nil {
		t.Fatalf("GetOrCreateWallet second call returned error: %v", err)
	}
	if wallet.ID != again.ID {
		t.Fatalf("expected same wallet id, got %s and %s", wallet.ID, again.ID)
	}
}

func TestGetBalanceWithoutWallet(t *testing.T) {
	svc := setupTestService(t)

	balance, err := svc.GetBalance(context.Background(), 555)
	if err != nil {
		t.Fatalf("GetBalance returned error: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected 0, got %d", balance)
	}
}

func TestTopUpSpendRefundFlow(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	wallet, topUp, err := svc.TopUp(ctx, 101, 150)
	if err != nil {
		t.Fatalf("TopUp returned error: %v", err)
	}
	if wallet.Balance != 150 {
		t.Fatalf("expected balance 150, got %d", wallet.Balance)
	}
	if topUp.Type != domain.TransactionTypeTopUp {
		t.Fatalf("expected txn type %s, got %s", domain.TransactionTypeTopUp, topUp.Type)
	}

	err = svc.db.Transaction(func(tx *gorm.DB) error {
		spend, err := svc.SpendTx(tx, 101, 40, 7)
		if err != nil {
			return err
		}
		if spend.BalanceAfter != 110 || spend.Amount != 40 || *spend.ReservationID != 7 {
			return fmt.Errorf("unexpected spend %+v", spend)
		}
		refund, err := svc.RefundTx(tx, 101, 40, 7)
		if err != nil {
			return err
		}
		if refund.BalanceAfter != 150 || refund.Type != domain.TransactionTypeRefund {
			return fmt.Errorf("unexpected refund %+v", refund)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("spend/refund failed: %v", err)
	}

	balance, err := svc.GetBalance(ctx, 101)
	if err != nil {
		t.Fatalf("GetBalance returned error: %v", err)
	}
	if balance != 150 {
		t.Fatalf("expected balance 150, got %d", balance)
	}

	txns, err := svc.ListTransactions(ctx, 101)
	if err != nil {
		t.Fatalf("ListTransactions returned error: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txns))
	}
}

func TestSpendTxZeroAmountRecordsNothing(t *testing.T) {
	svc := setupTestService(t)

	err := svc.db.Transaction(func(tx *gorm.DB) error {
		txn, err := svc.SpendTx(tx, 102, 0, 1)
		if txn != nil {
			t.Errorf("expected no transaction for a free lesson, got %+v", txn)
		}
		return err
	})
	if err != nil {
		t.Fatalf("SpendTx returned error: %v", err)
	}

	var count int64
	svc.db.Model(&domain.WalletTransaction{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected empty ledger, got %d rows", count)
	}
}

func TestSpendTxInsufficientFundsRollsBack(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	if _, _, err := svc.TopUp(ctx, 104, 5); err != nil {
		t.Fatalf("TopUp returned error: %v", err)
	}

	err := svc.db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.SpendTx(tx, 104, 10, 1)
		return err
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	balance, _ := svc.GetBalance(ctx, 104)
	if balance != 5 {
		t.Fatalf("expected balance 5, got %d", balance)
	}
}

func TestTopUpRejectsNonPositiveAmount(t *testing.T) {
	svc := setupTestService(t)
	_, _, err := svc.TopUp(context.Background(), 102, 0)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestListTransactionsCreatesEmptyWallet(t *testing.T) {
	svc := setupTestService(t)

	txns, err := svc.ListTransactions(context.Background(), 999)
	if err != nil {
		t.Fatalf("ListTransactions returned error: %v", err)
	}
	if len(txns) != 0 {
		t.Fatalf("expected 0 transactions, got %d", len(txns))
	}
}
