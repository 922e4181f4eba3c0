package handler_test

import (
	"context"
	"errors"
	"sync"

	"otp-wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// memStore backs every repository port with maps. A single lock held from
// Begin until Commit or Rollback stands in for row locks, so transactions
// run one at a time. Writes are applied immediately; rollback does not undo
// them.
type memStore struct {
	txLock sync.Mutex
	mu     sync.Mutex

	accounts     map[uuid.UUID]domain.Account
	wallets      map[uuid.UUID]domain.Wallet
	transactions []domain.Transaction
	intents      map[uuid.UUID]domain.PaymentIntent
	banks        []domain.BankAccount
	audits       []domain.AuditLog
}

var errNoRow = errors.New("no rows")

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[uuid.UUID]domain.Account),
		wallets:  make(map[uuid.UUID]domain.Wallet),
		intents:  make(map[uuid.UUID]domain.PaymentIntent),
	}
}

// --- Transactor ---

type memTx struct {
	pgx.Tx
	once    sync.Once
	release func()
}

func (t *memTx) Commit(context.Context) error {
	t.once.Do(t.release)
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	t.once.Do(t.release)
	return nil
}

func (s *memStore) Begin(ctx context.Context) (pgx.Tx, error) {
	s.txLock.Lock()
	return &memTx{release: s.txLock.Unlock}, nil
}

// --- Accounts ---

type memAccountRepo struct{ *memStore }

func (r memAccountRepo) Create(_ context.Context, _ pgx.Tx, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Phone == a.Phone {
			return domain.ErrDuplicateKey
		}
	}
	r.accounts[a.ID] = *a
	return nil
}

func (r memAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r memAccountRepo) GetByPhone(_ context.Context, phone string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Phone == phone {
			return &a, nil
		}
	}
	return nil, nil
}

// --- Wallets ---

type memWalletRepo struct{ *memStore }

func (r memWalletRepo) Create(_ context.Context, _ pgx.Tx, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.wallets {
		if existing.UserID == w.UserID {
			return nil
		}
	}
	r.wallets[w.ID] = *w
	return nil
}

func (r memWalletRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.UserID == userID {
			return &w, nil
		}
	}
	return nil, nil
}

func (r memWalletRepo) GetByUserIDForUpdate(ctx context.Context, _ pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	return r.GetByUserID(ctx, userID)
}

func (r memWalletRepo) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r memWalletRepo) UpdateBalance(_ context.Context, _ pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return errNoRow
	}
	w.Balance = balance
	r.wallets[walletID] = w
	return nil
}

func (s *memStore) balanceOf(userID uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		if w.UserID == userID {
			return w.Balance
		}
	}
	return decimal.Zero
}

// --- Transactions ---

type memTransactionRepo struct{ *memStore }

func (r memTransactionRepo) Create(_ context.Context, _ pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.transactions {
		if existing.WalletID == t.WalletID && existing.TransactionID == t.TransactionID {
			return domain.ErrDuplicateKey
		}
	}
	r.transactions = append(r.transactions, *t)
	return nil
}

func (r memTransactionRepo) GetForUpdate(_ context.Context, _ pgx.Tx, walletID uuid.UUID, transactionID string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.transactions {
		if t.WalletID == walletID && t.TransactionID == transactionID {
			return &t, nil
		}
	}
	return nil, nil
}

func (r memTransactionRepo) UpdateStatus(_ context.Context, _ pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.transactions {
		if r.transactions[i].ID == id {
			r.transactions[i].Status = status
			return nil
		}
	}
	return errNoRow
}

func (r memTransactionRepo) ListByWallet(_ context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, t := range r.transactions {
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memTransactionRepo) ListPending(_ context.Context) ([]domain.PendingTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PendingTransaction
	for _, t := range r.transactions {
		if t.Status != domain.TransactionStatusPending {
			continue
		}
		w := r.wallets[t.WalletID]
		out = append(out, domain.PendingTransaction{
			Transaction: t,
			UserID:      w.UserID,
			Phone:       r.accounts[w.UserID].Phone,
		})
	}
	return out, nil
}

// --- Payment intents ---

type memIntentRepo struct{ *memStore }

func (r memIntentRepo) Create(_ context.Context, p *domain.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.intents {
		if existing.Address == p.Address {
			return domain.ErrDuplicateKey
		}
	}
	r.intents[p.ID] = *p
	return nil
}

func (r memIntentRepo) GetPendingByAddressForUpdate(_ context.Context, _ pgx.Tx, address string) (*domain.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.intents {
		if p.Address == address && p.Status == domain.PaymentStatusPending {
			return &p, nil
		}
	}
	return nil, nil
}

func (r memIntentRepo) MarkCompleted(_ context.Context, _ pgx.Tx, id uuid.UUID, payload []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.intents[id]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	p.Status = domain.PaymentStatusCompleted
	p.Payload = append([]byte(nil), payload...)
	r.intents[id] = p
	return true, nil
}

func (r memIntentRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PaymentIntent
	for _, p := range r.intents {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- Bank accounts ---

type memBankRepo struct{ *memStore }

func (r memBankRepo) Create(_ context.Context, _ pgx.Tx, b *domain.BankAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.banks {
		if existing.AccountNo == b.AccountNo {
			return domain.ErrDuplicateKey
		}
	}
	r.banks = append(r.banks, *b)
	return nil
}

func (r memBankRepo) CountByUserForUpdate(_ context.Context, _ pgx.Tx, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.banks {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r memBankRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.BankAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.BankAccount
	for _, b := range r.banks {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

// --- Audit ---

type memAuditRepo struct{ *memStore }

func (r memAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, *entry)
	return nil
}

func (s *memStore) auditActions() []domain.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(s.audits))
	for _, a := range s.audits {
		out = append(out, a.Action)
	}
	return out
}
