package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (b *Batch) CreateCategory(c Category) {
	b.exec("create category", Categories,
		`INSERT INTO categories (id, uid, label, color, ord) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UID, c.Label, c.Color, c.Order,
	)
}

func (b *Batch) UpdateCategory(c Category) {
	b.exec("update category", Categories,
		`UPDATE categories SET label = ?, color = ?, ord = ? WHERE id = ?`,
		c.Label, c.Color, c.Order, c.ID,
	)
}

func (b *Batch) SetCategoryOrder(id string, order float64) {
	b.exec("set category order", Categories,
		`UPDATE categories SET ord = ? WHERE id = ?`, order, id,
	)
}

func (b *Batch) DeleteCategory(id string) {
	b.exec("delete category", Categories, `DELETE FROM categories WHERE id = ?`, id)
}

func (s *Store) GetCategory(ctx context.Context, id string) (*Category, error) {
	c := &Category{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, uid, label, color, ord FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.UID, &c.Label, &c.Color, &c.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get category %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get category %s: %w", id, err)
	}
	return c, nil
}

// ListCategories returns the user's categories in display order.
func (s *Store) ListCategories(ctx context.Context, uid string) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, uid, label, color, ord FROM categories WHERE uid = ? ORDER BY ord, id`, uid,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.UID, &c.Label, &c.Color, &c.Order); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}
