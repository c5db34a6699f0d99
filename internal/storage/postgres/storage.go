package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcoot/smartkiosk/internal/model"
	"github.com/mcoot/smartkiosk/internal/storage"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

// Storage is a PostgreSQL-backed implementation of the storage interface
type Storage struct {
	pool *pgxpool.Pool
}

// New connects to the database and ensures the schema exists
func New(ctx context.Context, cfg Config) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(dialCtx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Storage{pool: pool}, nil
}

// Close releases all pooled connections
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// User operations

const userColumns = `id, name, contact, birthday, embedding, face_image, created_at, last_visit`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var id string
	if err := row.Scan(&id, &u.Name, &u.Contact, &u.Birthday, &u.Embedding, &u.FaceImage, &u.CreatedAt, &u.LastVisit); err != nil {
		return nil, err
	}
	u.ID = model.UserID(id)
	return &u, nil
}

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, string(user.ID), user.Name, user.Contact, user.Birthday, user.Embedding, user.FaceImage, user.CreatedAt, user.LastVisit)
	if isUniqueViolation(err) {
		return model.ErrContactExists
	}
	return err
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, string(id))
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	return user, err
}

func (s *Storage) GetUserByContact(ctx context.Context, contact string) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE contact = $1`, contact)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	return user, err
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Storage) TouchUserLastVisit(ctx context.Context, id model.UserID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET last_visit = $2 WHERE id = $1`, string(id), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// Product operations

func (s *Storage) SaveProduct(ctx context.Context, product *model.Product) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, name, price, class_id, class_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			class_id = EXCLUDED.class_id,
			class_name = EXCLUDED.class_name
	`, string(product.ID), product.Name, product.Price, product.ClassID, product.ClassName, product.CreatedAt)
	return err
}

func (s *Storage) ListProducts(ctx context.Context) ([]*model.Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, price, class_id, class_name, created_at
		FROM products ORDER BY class_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		var p model.Product
		var id string
		if err := rows.Scan(&id, &p.Name, &p.Price, &p.ClassID, &p.ClassName, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.ID = model.ProductID(id)
		products = append(products, &p)
	}
	return products, rows.Err()
}

// Transaction operations

const transactionColumns = `id, user_id, user_name, items, total_quantity, total_amount, receipt_code, created_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var tx model.Transaction
	var id, userID string
	var items []byte
	if err := row.Scan(&id, &userID, &tx.UserName, &items, &tx.TotalQuantity, &tx.TotalAmount, &tx.ReceiptCode, &tx.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &tx.Items); err != nil {
		return nil, fmt.Errorf("decode transaction items: %w", err)
	}
	tx.ID = model.TransactionID(id)
	tx.UserID = model.UserID(userID)
	return &tx, nil
}

func (s *Storage) SaveTransaction(ctx context.Context, tx *model.Transaction) error {
	items, err := json.Marshal(tx.Items)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, string(tx.ID), string(tx.UserID), tx.UserName, items, tx.TotalQuantity, tx.TotalAmount, tx.ReceiptCode, tx.CreatedAt)
	return err
}

func (s *Storage) GetTransaction(ctx context.Context, id model.TransactionID) (*model.Transaction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, string(id))
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrTransactionNotFound
	}
	return tx, err
}

func (s *Storage) ListTransactionsForUser(ctx context.Context, userID model.UserID) ([]*model.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 ORDER BY created_at DESC
	`, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := []*model.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
