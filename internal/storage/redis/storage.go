package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// getJSON loads the value at key into v, mapping a missing key to notFound
func (s *Storage) getJSON(ctx context.Context, key string, v any, notFound error) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	// Claim the contact first; SETNX makes the uniqueness check atomic
	claimed, err := s.client.SetNX(ctx, contactIndexKey(user.Contact), string(user.ID), 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return model.ErrContactExists
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, userKey(user.ID), data, 0)
	pipe.SAdd(ctx, usersIndexKey(), string(user.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		// Release the claim so the contact can be registered again
		s.client.Del(ctx, contactIndexKey(user.Contact))
		return err
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	var user model.User
	if err := s.getJSON(ctx, userKey(id), &user, model.ErrUserNotFound); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Storage) GetUserByContact(ctx context.Context, contact string) (*model.User, error) {
	id, err := s.client.Get(ctx, contactIndexKey(contact)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUser(ctx, model.UserID(id))
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	ids, err := s.client.SMembers(ctx, usersIndexKey()).Result()
	if err != nil {
		return nil, err
	}

	users := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.GetUser(ctx, model.UserID(id))
		if errors.Is(err, model.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b *model.User) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return users, nil
}

func (s *Storage) TouchUserLastVisit(ctx context.Context, id model.UserID, at time.Time) error {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	user.LastVisit = &at

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, userKey(id), data, 0).Err()
}

// Product operations

func (s *Storage) SaveProduct(ctx context.Context, product *model.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, productKey(product.ID), data, 0)
	pipe.SAdd(ctx, productsIndexKey(), string(product.ID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) ListProducts(ctx context.Context) ([]*model.Product, error) {
	ids, err := s.client.SMembers(ctx, productsIndexKey()).Result()
	if err != nil {
		return nil, err
	}

	products := make([]*model.Product, 0, len(ids))
	for _, id := range ids {
		var p model.Product
		err := s.getJSON(ctx, productKey(model.ProductID(id)), &p, model.ErrProductNotFound)
		if errors.Is(err, model.ErrProductNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		products = append(products, &p)
	}
	slices.SortFunc(products, func(a, b *model.Product) int { return a.ClassID - b.ClassID })
	return products, nil
}

// Transaction operations

func (s *Storage) SaveTransaction(ctx context.Context, tx *model.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	// Transaction record and the per-user index are written together
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, transactionKey(tx.ID), data, 0)
	pipe.ZAdd(ctx, userTransactionsIndexKey(tx.UserID), redis.Z{
		Score:  float64(tx.CreatedAt.UnixMilli()),
		Member: string(tx.ID),
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetTransaction(ctx context.Context, id model.TransactionID) (*model.Transaction, error) {
	var tx model.Transaction
	if err := s.getJSON(ctx, transactionKey(id), &tx, model.ErrTransactionNotFound); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Storage) ListTransactionsForUser(ctx context.Context, userID model.UserID) ([]*model.Transaction, error) {
	ids, err := s.client.ZRevRange(ctx, userTransactionsIndexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Transaction{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = transactionKey(model.TransactionID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	txs := make([]*model.Transaction, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // index entry without a record
		}
		var tx model.Transaction
		if err := json.Unmarshal([]byte(raw), &tx); err != nil {
			return nil, fmt.Errorf("decode transaction %s: %w", ids[i], err)
		}
		txs = append(txs, &tx)
	}
	return txs, nil
}
