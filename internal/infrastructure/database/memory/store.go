// Package memory provides a map-backed implementation of every repository
// interface, for development and tests. Transactions take the store's write
// lock for their whole lifetime, so they serialize globally rather than per
// row; the semantics visible to callers match the PostgreSQL repositories.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"pawn-ledger/internal/domain/customer"
	"pawn-ledger/internal/domain/ledger"
	"pawn-ledger/internal/domain/loan"
	"pawn-ledger/internal/domain/user"
	"pawn-ledger/internal/pkg/apperrors"
)

type Store struct {
	mu sync.RWMutex

	serial int64

	nextLoanID     int64
	nextCustomerID int64
	nextUserID     int64

	loans    map[int64]*loan.Loan
	bySerial map[string]int64
	payments []ledger.Payment

	customers map[int64]*customer.Customer
	users     map[string]*user.User
}

var _ loan.Repository = (*Store)(nil)
var _ ledger.PaymentRepository = (*Store)(nil)
var _ customer.CustomerRepository = (*Store)(nil)
var _ user.UserRepository = (*Store)(nil)

// NewStore seeds the serial counter so the first allocated serial equals
// serialSeed, matching the loan_serial_seq START value in the migrations.
func NewStore(serialSeed int64) *Store {
	if serialSeed <= 0 {
		serialSeed = 150
	}
	return &Store{
		serial:         serialSeed,
		nextLoanID:     1,
		nextCustomerID: 1,
		nextUserID:     1,
		loans:          make(map[int64]*loan.Loan),
		bySerial:       make(map[string]int64),
		customers:      make(map[int64]*customer.Customer),
		users:          make(map[string]*user.User),
	}
}

// memTx is the transaction token handed to ...InTx methods. The store's write
// lock is held from BeginTx until Commit or Rollback; the embedded pgx.Tx is
// never called.
type memTx struct {
	pgx.Tx
	store    *Store
	snapshot txSnapshot
	done     bool
}

type txSnapshot struct {
	loans    map[int64]*loan.Loan
	bySerial map[string]int64
	payments []ledger.Payment
}

func (t *memTx) Commit(_ context.Context) error {
	return t.store.commit(t)
}

func (t *memTx) Rollback(_ context.Context) error {
	return t.store.rollback(t)
}

func (s *Store) BeginTx(_ context.Context) (pgx.Tx, error) {
	s.mu.Lock()
	return &memTx{store: s, snapshot: s.snapshotLocked()}, nil
}

func (s *Store) CommitTx(ctx context.Context, tx pgx.Tx) error {
	t, err := s.ownTx(tx)
	if err != nil {
		return err
	}
	return t.Commit(ctx)
}

func (s *Store) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	t, err := s.ownTx(tx)
	if err != nil {
		return err
	}
	return t.Rollback(ctx)
}

func (s *Store) ownTx(tx pgx.Tx) (*memTx, error) {
	t, ok := tx.(*memTx)
	if !ok || t.store != s {
		return nil, fmt.Errorf("%w: transaction does not belong to this store", apperrors.ErrInvalidArgument)
	}
	return t, nil
}

func (s *Store) commit(t *memTx) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.snapshot = txSnapshot{}
	s.mu.Unlock()
	return nil
}

// rollback restores the snapshot taken at BeginTx. Rolling back a finished
// transaction is a no-op, mirroring the pgx.ErrTxClosed tolerance in the
// PostgreSQL repositories.
func (s *Store) rollback(t *memTx) error {
	if t.done {
		return nil
	}
	t.done = true
	s.loans = t.snapshot.loans
	s.bySerial = t.snapshot.bySerial
	s.payments = t.snapshot.payments
	t.snapshot = txSnapshot{}
	s.mu.Unlock()
	return nil
}

func (s *Store) snapshotLocked() txSnapshot {
	snap := txSnapshot{
		loans:    make(map[int64]*loan.Loan, len(s.loans)),
		bySerial: make(map[string]int64, len(s.bySerial)),
		payments: make([]ledger.Payment, len(s.payments)),
	}
	for id, l := range s.loans {
		snap.loans[id] = cloneLoan(l)
	}
	for serial, id := range s.bySerial {
		snap.bySerial[serial] = id
	}
	copy(snap.payments, s.payments)
	return snap
}

func cloneLoan(l *loan.Loan) *loan.Loan {
	c := *l
	c.Items = append([]loan.Item(nil), l.Items...)
	if l.LastInterestPaymentDate != nil {
		d := *l.LastInterestPaymentDate
		c.LastInterestPaymentDate = &d
	}
	return &c
}

func (s *Store) NextSerial(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.serial
	s.serial++
	return next, nil
}

func (s *Store) CreateLoan(_ context.Context, newLoan *loan.Loan) (*loan.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySerial[newLoan.SerialNo]; exists {
		return nil, fmt.Errorf("%w: loans_serial_no_key", apperrors.ErrAlreadyExists)
	}

	stored := cloneLoan(newLoan)
	stored.ID = s.nextLoanID
	s.nextLoanID++
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.loans[stored.ID] = stored
	s.bySerial[stored.SerialNo] = stored.ID
	return cloneLoan(stored), nil
}

func (s *Store) GetLoanBySerial(_ context.Context, serialNo string) (*loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loanBySerialLocked(serialNo)
}

// GetLoanBySerialForUpdate runs inside a transaction, which already holds the
// store's write lock. Concurrent payments therefore serialize exactly as they
// do behind the FOR UPDATE row lock in PostgreSQL, only coarser.
func (s *Store) GetLoanBySerialForUpdate(_ context.Context, tx pgx.Tx, serialNo string) (*loan.Loan, error) {
	if _, err := s.ownTx(tx); err != nil {
		return nil, err
	}
	return s.loanBySerialLocked(serialNo)
}

func (s *Store) loanBySerialLocked(serialNo string) (*loan.Loan, error) {
	id, ok := s.bySerial[serialNo]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneLoan(s.loans[id]), nil
}

func (s *Store) ListLoans(_ context.Context, filter loan.LoanFilter) ([]loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loans := make([]loan.Loan, 0, len(s.loans))
	for _, l := range s.loans {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.CustomerID > 0 && l.CustomerID != filter.CustomerID {
			continue
		}
		loans = append(loans, *cloneLoan(l))
	}

	sort.Slice(loans, func(i, j int) bool {
		if !loans[i].CreatedAt.Equal(loans[j].CreatedAt) {
			return loans[i].CreatedAt.After(loans[j].CreatedAt)
		}
		return loans[i].ID > loans[j].ID
	})

	if filter.Limit > 0 && len(loans) > filter.Limit {
		loans = loans[:filter.Limit]
	}
	return loans, nil
}

func (s *Store) CountLoansByCustomer(_ context.Context, customerID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, l := range s.loans {
		if l.CustomerID == customerID {
			count++
		}
	}
	return count, nil
}

func (s *Store) UpdateLoanInTx(_ context.Context, tx pgx.Tx, l *loan.Loan) error {
	if _, err := s.ownTx(tx); err != nil {
		return err
	}

	stored, ok := s.loans[l.ID]
	if !ok {
		return fmt.Errorf("%w: loan update affected zero rows", apperrors.ErrDatabase)
	}
	stored.Status = l.Status
	stored.Notes = l.Notes
	if l.LastInterestPaymentDate != nil {
		d := *l.LastInterestPaymentDate
		stored.LastInterestPaymentDate = &d
	} else {
		stored.LastInterestPaymentDate = nil
	}
	stored.UpdatedAt = time.Now()
	return nil
}

func (s *Store) UpdateLoanStatus(_ context.Context, loanID int64, from, to loan.LoanStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.loans[loanID]
	if !ok || stored.Status != from {
		return false, nil
	}
	stored.Status = to
	stored.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) DeleteLoanInTx(_ context.Context, tx pgx.Tx, loanID int64) error {
	if _, err := s.ownTx(tx); err != nil {
		return err
	}

	stored, ok := s.loans[loanID]
	if !ok {
		return apperrors.ErrNotFound
	}
	delete(s.bySerial, stored.SerialNo)
	delete(s.loans, loanID)
	return nil
}

func (s *Store) AppendPaymentInTx(_ context.Context, tx pgx.Tx, p *ledger.Payment) error {
	if _, err := s.ownTx(tx); err != nil {
		return err
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.payments = append(s.payments, *p)
	return nil
}

func (s *Store) SumPrincipalPaid(_ context.Context, loanID int64) (loan.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sumPrincipalPaidLocked(loanID), nil
}

func (s *Store) SumPrincipalPaidInTx(_ context.Context, tx pgx.Tx, loanID int64) (loan.Money, error) {
	if _, err := s.ownTx(tx); err != nil {
		return 0, err
	}
	return s.sumPrincipalPaidLocked(loanID), nil
}

func (s *Store) sumPrincipalPaidLocked(loanID int64) loan.Money {
	var total loan.Money
	for _, p := range s.payments {
		if p.LoanID == loanID {
			total += p.PrincipalPaid
		}
	}
	return total
}

func (s *Store) ListPaymentsByLoan(_ context.Context, loanID int64) ([]ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]ledger.Payment, 0)
	for _, p := range s.payments {
		if p.LoanID == loanID {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		if !payments[i].PaymentDate.Equal(payments[j].PaymentDate) {
			return payments[i].PaymentDate.Before(payments[j].PaymentDate)
		}
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
	return payments, nil
}

func (s *Store) ListPayments(_ context.Context, limit int) ([]ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]ledger.Payment, len(s.payments))
	copy(payments, s.payments)
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
	if limit > 0 && len(payments) > limit {
		payments = payments[:limit]
	}
	return payments, nil
}

func (s *Store) DeletePaymentsByLoanInTx(_ context.Context, tx pgx.Tx, loanID int64) error {
	if _, err := s.ownTx(tx); err != nil {
		return err
	}

	kept := s.payments[:0]
	for _, p := range s.payments {
		if p.LoanID != loanID {
			kept = append(kept, p)
		}
	}
	s.payments = kept
	return nil
}

func (s *Store) Save(_ context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if cust.CustomerID == 0 {
		cust.CustomerID = s.nextCustomerID
		s.nextCustomerID++
		cust.CreatedAt = now
		cust.UpdatedAt = now
		stored := *cust
		s.customers[stored.CustomerID] = &stored
		return nil
	}

	if _, ok := s.customers[cust.CustomerID]; !ok {
		return apperrors.ErrNotFound
	}
	cust.UpdatedAt = now
	stored := *cust
	s.customers[stored.CustomerID] = &stored
	return nil
}

func (s *Store) FindByID(_ context.Context, customerID int64) (*customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.customers[customerID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *stored
	return &c, nil
}

func (s *Store) FindAll(_ context.Context) ([]*customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]*customer.Customer, 0, len(s.customers))
	for _, stored := range s.customers {
		c := *stored
		customers = append(customers, &c)
	}
	sort.Slice(customers, func(i, j int) bool {
		if customers[i].Name != customers[j].Name {
			return customers[i].Name < customers[j].Name
		}
		return customers[i].CustomerID < customers[j].CustomerID
	})
	return customers, nil
}

func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.customers)), nil
}

func (s *Store) Delete(_ context.Context, customerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[customerID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(s.customers, customerID)
	return nil
}

func (s *Store) Create(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, exists := s.users[key]; exists {
		return fmt.Errorf("%w: users_email_key", apperrors.ErrAlreadyExists)
	}

	u.ID = s.nextUserID
	s.nextUserID++
	u.CreatedAt = time.Now()
	stored := *u
	s.users[key] = &stored
	return nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	u := *stored
	return &u, nil
}
