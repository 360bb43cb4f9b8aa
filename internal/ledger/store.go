package ledger

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"crypto-ledger-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store owns the canonical set of transactions. All mutations go through it
// and are serialized behind a single writer lock, so readers (List, Balances)
// always observe a fully applied state.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	mu     sync.RWMutex
}

// NewStore creates a transaction store on top of an already migrated database.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.Named("store"),
	}
}

// Create validates the draft, assigns a new id and persists the record.
func (s *Store) Create(draft models.Transaction) (models.Transaction, error) {
	if err := validate(draft); err != nil {
		return models.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft.ID = 0 // ids are assigned here, never taken from the draft
	if err := s.db.Create(&draft).Error; err != nil {
		return models.Transaction{}, fmt.Errorf("failed to create transaction: %w", err)
	}

	s.logger.Debug("Transaction created",
		zap.Uint("id", draft.ID),
		zap.String("pair", draft.Pair),
		zap.String("type", draft.Type))
	return draft, nil
}

// Update replaces all fields of the transaction identified by id, keeping the id.
func (s *Store) Update(id uint, draft models.Transaction) (models.Transaction, error) {
	if err := validate(draft); err != nil {
		return models.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing models.Transaction
	if err := s.db.First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Transaction{}, &NotFoundError{ID: id}
		}
		return models.Transaction{}, fmt.Errorf("failed to load transaction %d: %w", id, err)
	}

	existing.Date = draft.Date
	existing.Pair = draft.Pair
	existing.Amount = draft.Amount
	existing.Price = draft.Price
	existing.Total = draft.Total
	existing.Fees = draft.Fees
	existing.Type = draft.Type

	if err := s.db.Save(&existing).Error; err != nil {
		return models.Transaction{}, fmt.Errorf("failed to update transaction %d: %w", id, err)
	}

	s.logger.Debug("Transaction updated", zap.Uint("id", id))
	return existing, nil
}

// Delete removes the transaction identified by id. Deleting an unknown id is
// an explicit NotFoundError, matching the update semantics.
func (s *Store) Delete(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.Delete(&models.Transaction{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete transaction %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{ID: id}
	}

	s.logger.Debug("Transaction deleted", zap.Uint("id", id))
	return nil
}

// List returns all transactions in insertion order.
func (s *Store) List() ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var transactions []models.Transaction
	if err := s.db.Order("id asc").Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

// Balances recomputes the per-currency balance snapshot from the store's
// current contents. Transactions with a malformed pair are skipped and logged.
func (s *Store) Balances() (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var transactions []models.Transaction
	if err := s.db.Order("id asc").Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to load transactions for balances: %w", err)
	}

	balances, warnings := ComputeBalances(transactions)
	for _, w := range warnings {
		s.logger.Warn("Skipping transaction during balance computation",
			zap.Uint("id", w.TransactionID),
			zap.String("pair", w.Pair))
	}
	return balances, nil
}

// validate checks the required fields of a draft before it is persisted.
// Transfers may carry a negative amount (outbound direction); buys and sells
// must be strictly positive.
func validate(draft models.Transaction) error {
	if draft.Date == "" {
		return &ValidationError{Field: "date", Reason: "is required"}
	}
	if draft.Pair == "" {
		return &ValidationError{Field: "pair", Reason: "is required"}
	}
	if !models.ValidType(draft.Type) {
		return &ValidationError{Field: "type", Reason: "must be buy, sell or transfer"}
	}
	for field, value := range map[string]float64{
		"amount": draft.Amount,
		"price":  draft.Price,
		"total":  draft.Total,
		"fees":   draft.Fees,
	} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return &ValidationError{Field: field, Reason: "must be a finite number"}
		}
	}
	if draft.Amount == 0 {
		return &ValidationError{Field: "amount", Reason: "must be non-zero"}
	}
	if draft.Amount < 0 && draft.Type != models.TypeTransfer {
		return &ValidationError{Field: "amount", Reason: "must be positive for buy and sell"}
	}
	// A buy or sell must carry a price or a total; transfers move a single
	// currency and have neither.
	if draft.Price == 0 && draft.Total == 0 && draft.Type != models.TypeTransfer {
		return &ValidationError{Field: "price", Reason: "is required"}
	}
	if draft.Price < 0 {
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if draft.Fees < 0 {
		return &ValidationError{Field: "fees", Reason: "must not be negative"}
	}
	return nil
}
