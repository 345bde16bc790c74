package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeni5888/mayalens/internal/domain"
	"github.com/jeni5888/mayalens/internal/repository"
)

var _ repository.ProductStore = (*pgProductStore)(nil)

type pgProductStore struct {
	pool *pgxpool.Pool
}

// NewProductStore creates a PostgreSQL-backed read-only product resolver.
func NewProductStore(pool *pgxpool.Pool) repository.ProductStore {
	return &pgProductStore{pool: pool}
}

func (s *pgProductStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT product_id, owner_id, name FROM products WHERE product_id = $1`

	product := &domain.Product{}
	err := s.pool.QueryRow(ctx, query, id).Scan(&product.ID, &product.OwnerID, &product.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("postgres: get product by id: %w", err)
	}
	return product, nil
}
