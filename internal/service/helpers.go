package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/oddsmith/peerbet/internal/domain"
	"github.com/oddsmith/peerbet/internal/repository"
)

// decimalZero returns a fresh decimal.Zero value.
// Using a helper avoids repeating decimal.NewFromInt(0) callsites.
func decimalZero() decimal.Decimal {
	return decimal.NewFromInt(0)
}

// ──────────────────────────────────────────────────────────────────────────────
// Money movement helpers
//
// Every wallet mutation pairs the balance change with an immutable audit row
// in the same transaction, so the wallet_transactions log always reconciles
// against the balance column.  Trade, settlement, and escrow flows all route
// through these two functions.
// ──────────────────────────────────────────────────────────────────────────────

// debitWallet locks the wallet, checks the balance, deducts amount, and logs
// the audit record, all inside the caller's transaction.
func debitWallet(
	ctx context.Context,
	tx *sqlx.Tx,
	walletRepo *repository.WalletRepository,
	userID uuid.UUID,
	amount decimal.Decimal,
	txType domain.TxType,
	refID *uuid.UUID,
	description string,
) error {
	wallet, err := walletRepo.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return fmt.Errorf("debitWallet: lock: %w", err)
	}
	if wallet.Balance.LessThan(amount) {
		return domain.ErrInsufficientBalance
	}
	if err := walletRepo.AddBalance(ctx, tx, userID, amount.Neg()); err != nil {
		return fmt.Errorf("debitWallet: update: %w", err)
	}
	txn := &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		Type:          txType,
		Amount:        amount.Neg(),
		BalanceBefore: wallet.Balance,
		BalanceAfter:  wallet.Balance.Sub(amount),
		RefID:         refID,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
	if err := walletRepo.LogTransaction(ctx, tx, txn); err != nil {
		return fmt.Errorf("debitWallet: log: %w", err)
	}
	return nil
}

// creditWallet locks the wallet, credits amount, and logs the audit record,
// all inside the caller's transaction.
func creditWallet(
	ctx context.Context,
	tx *sqlx.Tx,
	walletRepo *repository.WalletRepository,
	userID uuid.UUID,
	amount decimal.Decimal,
	txType domain.TxType,
	refID *uuid.UUID,
	description string,
) error {
	wallet, err := walletRepo.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return fmt.Errorf("creditWallet: lock: %w", err)
	}
	if err := walletRepo.AddBalance(ctx, tx, userID, amount); err != nil {
		return fmt.Errorf("creditWallet: update: %w", err)
	}
	txn := &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: wallet.Balance,
		BalanceAfter:  wallet.Balance.Add(amount),
		RefID:         refID,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
	if err := walletRepo.LogTransaction(ctx, tx, txn); err != nil {
		return fmt.Errorf("creditWallet: log: %w", err)
	}
	return nil
}

// appendPlatformLedger records one platform money movement inside the
// caller's transaction.
func appendPlatformLedger(
	ctx context.Context,
	tx *sqlx.Tx,
	walletRepo *repository.WalletRepository,
	entryType domain.LedgerEntryType,
	amount decimal.Decimal,
	marketID *uuid.UUID,
	description string,
) error {
	entry := &domain.PlatformLedgerEntry{
		ID:          uuid.New(),
		EntryType:   entryType,
		Amount:      amount,
		MarketID:    marketID,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := walletRepo.AppendLedger(ctx, tx, entry); err != nil {
		return fmt.Errorf("appendPlatformLedger: %w", err)
	}
	return nil
}
