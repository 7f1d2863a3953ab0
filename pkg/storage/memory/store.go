// Package memory is a process-local Storage used for local runs and tests.
// It enforces the same conditional-write rules as the DynamoDB store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/chris/vtu-ledger/pkg/storage"
)

type Store struct {
	mu           sync.RWMutex
	wallets      map[string]models.Wallet
	entries      map[string][]models.LedgerEntry
	references   map[string]struct{}
	transactions map[string]models.Transaction
	payments     map[string]models.Payment
}

func New() *Store {
	return &Store{
		wallets:      make(map[string]models.Wallet),
		entries:      make(map[string][]models.LedgerEntry),
		references:   make(map[string]struct{}),
		transactions: make(map[string]models.Transaction),
		payments:     make(map[string]models.Payment),
	}
}

var _ storage.Storage = (*Store)(nil)

func (s *Store) GetWallet(_ context.Context, userID string) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[userID]
	if !ok {
		return nil, storage.ErrWalletNotFound
	}
	return &w, nil
}

func (s *Store) CreateWallet(_ context.Context, wallet *models.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wallets[wallet.UserID]; ok {
		return storage.ErrWalletExists
	}
	s.wallets[wallet.UserID] = *wallet
	return nil
}

func (s *Store) CommitWalletMutation(_ context.Context, m storage.WalletMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.wallets[m.Wallet.UserID]
	if !ok || current.Version != m.ExpectedVersion {
		return storage.ErrVersionConflict
	}
	for _, e := range m.Entries {
		if _, dup := s.references[refKey(e)]; dup {
			return storage.ErrDuplicateEntry
		}
	}
	var payment models.Payment
	if m.Settlement != nil {
		payment, ok = s.payments[m.Settlement.TxRef]
		if !ok || payment.Status != models.PaymentPending {
			return storage.ErrPaymentNotPending
		}
	}

	next := m.Wallet
	next.Version = m.ExpectedVersion + 1
	s.wallets[next.UserID] = next
	for _, e := range m.Entries {
		s.references[refKey(e)] = struct{}{}
		s.entries[e.UserID] = append(s.entries[e.UserID], e)
	}
	if m.Settlement != nil {
		verifiedAt := m.Settlement.VerifiedAt
		payment.Status = models.PaymentSuccess
		payment.ProviderResponse = m.Settlement.ProviderResponse
		payment.VerifiedAt = &verifiedAt
		s.payments[payment.TxRef] = payment
	}
	return nil
}

func (s *Store) ListLedgerEntries(_ context.Context, userID string, limit int32) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.entries[userID]
	out := make([]models.LedgerEntry, 0, len(all))
	for i := len(all) - 1; i >= 0 && (limit <= 0 || int32(len(out)) < limit); i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[tx.ID]; ok {
		return storage.ErrDuplicateTransaction
	}
	s.transactions[tx.ID] = *tx
	return nil
}

func (s *Store) GetTransaction(_ context.Context, txID string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[txID]
	if !ok {
		return nil, storage.ErrTransactionNotFound
	}
	return &tx, nil
}

func (s *Store) UpdateTransactionStatus(_ context.Context, txID string, u storage.TransactionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[txID]
	if !ok {
		return storage.ErrTransactionNotFound
	}
	if tx.Status != models.TransactionPending {
		return storage.ErrTransactionNotPending
	}
	tx.Status = u.Status
	tx.ProviderReference = u.ProviderReference
	tx.ProviderResponse = u.ProviderResponse
	tx.FailureReason = u.FailureReason
	tx.UpdatedAt = u.UpdatedAt
	s.transactions[txID] = tx
	return nil
}

func (s *Store) ListTransactionsByUserID(_ context.Context, userID string, limit int32) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreatePayment(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[p.TxRef]; ok {
		return storage.ErrPaymentExists
	}
	s.payments[p.TxRef] = *p
	return nil
}

func (s *Store) GetPayment(_ context.Context, txRef string) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[txRef]
	if !ok {
		return nil, storage.ErrPaymentNotFound
	}
	return &p, nil
}

func (s *Store) MarkPaymentFailed(_ context.Context, txRef, providerResponse string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[txRef]
	if !ok || p.Status != models.PaymentPending {
		return storage.ErrPaymentNotPending
	}
	p.Status = models.PaymentFailed
	p.ProviderResponse = providerResponse
	p.VerifiedAt = &at
	s.payments[txRef] = p
	return nil
}

func (s *Store) ListPendingPayments(_ context.Context, provider string, limit int32) ([]models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Payment
	for _, p := range s.payments {
		if p.Status == models.PaymentPending && p.Provider == provider && p.UserID != "" {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func refKey(e models.LedgerEntry) string {
	return e.UserID + "#" + e.Reference
}
