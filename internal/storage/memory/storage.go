package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	users            map[model.UserID]*model.User
	contactIndex     map[string]model.UserID
	products         map[model.ProductID]*model.Product
	transactions     map[model.TransactionID]*model.Transaction
	userTransactions map[model.UserID][]model.TransactionID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:            make(map[model.UserID]*model.User),
		contactIndex:     make(map[string]model.UserID),
		products:         make(map[model.ProductID]*model.Product),
		transactions:     make(map[model.TransactionID]*model.Transaction),
		userTransactions: make(map[model.UserID][]model.TransactionID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Records are copied on the way in and out so callers never share memory
// with the store.

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Embedding = slices.Clone(u.Embedding)
	c.FaceImage = slices.Clone(u.FaceImage)
	return &c
}

func cloneTransaction(tx *model.Transaction) *model.Transaction {
	c := *tx
	c.Items = slices.Clone(tx.Items)
	return &c
}

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.contactIndex[user.Contact]; taken {
		return model.ErrContactExists
	}
	s.users[user.ID] = cloneUser(user)
	s.contactIndex[user.Contact] = user.ID
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (s *Storage) GetUserByContact(ctx context.Context, contact string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.contactIndex[contact]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, cloneUser(u))
	}
	slices.SortFunc(users, func(a, b *model.User) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return users, nil
}

func (s *Storage) TouchUserLastVisit(ctx context.Context, id model.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	user.LastVisit = &at
	return nil
}

// Product operations

func (s *Storage) SaveProduct(ctx context.Context, product *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *product
	s.products[product.ID] = &p
	return nil
}

func (s *Storage) ListProducts(ctx context.Context) ([]*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	products := make([]*model.Product, 0, len(s.products))
	for _, p := range s.products {
		c := *p
		products = append(products, &c)
	}
	slices.SortFunc(products, func(a, b *model.Product) int { return a.ClassID - b.ClassID })
	return products, nil
}

// Transaction operations

func (s *Storage) SaveTransaction(ctx context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.ID] = cloneTransaction(tx)
	s.userTransactions[tx.UserID] = append(s.userTransactions[tx.UserID], tx.ID)
	return nil
}

func (s *Storage) GetTransaction(ctx context.Context, id model.TransactionID) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, model.ErrTransactionNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Storage) ListTransactionsForUser(ctx context.Context, userID model.UserID) ([]*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.userTransactions[userID]
	txs := make([]*model.Transaction, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		txs = append(txs, cloneTransaction(s.transactions[ids[i]]))
	}
	slices.SortStableFunc(txs, func(a, b *model.Transaction) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return txs, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return nil
}
