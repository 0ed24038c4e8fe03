// Package gormstore implements the store on PostgreSQL through gorm.
package gormstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-service/internal/model"
	"storefront-service/internal/store"
	"storefront-service/prometheus"
)

// Store is a store.Store over a gorm connection
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates every table and index
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(Models()...)
}

func (s *Store) Products() store.Products { return productRepo{s.db} }
func (s *Store) Orders() store.Orders     { return orderRepo{s.db} }
func (s *Store) Users() store.Users       { return userRepo{s.db} }
func (s *Store) Payments() store.Payments { return paymentRepo{s.db} }

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isUniqueViolation reports a PostgreSQL unique constraint failure
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// translate maps driver errors onto the store sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case isUniqueViolation(err):
		return store.ErrConflict
	}
	return err
}

// likePattern escapes LIKE wildcards in a user search and wraps it for a
// substring match.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}

// --- products ---

type productRepo struct{ db *gorm.DB }

func (r productRepo) List(ctx context.Context, filter store.ProductFilter) ([]model.Product, error) {
	defer prometheus.TrackDBOperation("product_list")(time.Now())

	q := r.db.WithContext(ctx).Model(&productRow{})
	if filter.Category != "" {
		q = q.Where("category = ?", string(filter.Category))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		p := likePattern(s)
		q = q.Where("name ILIKE ? OR description ILIKE ? OR EXISTS (SELECT 1 FROM unnest(keywords) AS k WHERE k ILIKE ?)", p, p, p)
	}

	var rows []productRow
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Product, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (r productRepo) Get(ctx context.Context, id string) (*model.Product, error) {
	defer prometheus.TrackDBOperation("product_get")(time.Now())

	var row productRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	p := row.toModel()
	return &p, nil
}

func (r productRepo) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
	defer prometheus.TrackDBOperation("product_get")(time.Now())

	var row productRow
	if err := r.db.WithContext(ctx).First(&row, "slug = ?", slug).Error; err != nil {
		return nil, translate(err)
	}
	p := row.toModel()
	return &p, nil
}

func (r productRepo) Create(ctx context.Context, p *model.Product) error {
	defer prometheus.TrackDBOperation("product_insert")(time.Now())

	row := productToRow(p)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	*p = row.toModel()
	return nil
}

func (r productRepo) Update(ctx context.Context, id string, patch model.ProductPatch) (*model.Product, error) {
	defer prometheus.TrackDBOperation("product_update")(time.Now())

	var out model.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row productRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "id = ?", id).Error; err != nil {
			return err
		}
		p := row.toModel()
		if err := patch.Apply(&p); err != nil {
			return err
		}
		updated := productToRow(&p)
		if err := tx.Save(&updated).Error; err != nil {
			return err
		}
		out = updated.toModel()
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func (r productRepo) Delete(ctx context.Context, id string) error {
	defer prometheus.TrackDBOperation("product_delete")(time.Now())

	res := r.db.WithContext(ctx).Delete(&productRow{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r productRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&productRow{}).Count(&n).Error
	return n, err
}

func (r productRepo) InsertMany(ctx context.Context, products []model.Product) error {
	defer prometheus.TrackDBOperation("product_insert")(time.Now())

	rows := make([]productRow, 0, len(products))
	for i := range products {
		rows = append(rows, productToRow(&products[i]))
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return translate(err)
	}
	for i := range rows {
		products[i] = rows[i].toModel()
	}
	return nil
}

func (r productRepo) DeleteAll(ctx context.Context) error {
	defer prometheus.TrackDBOperation("product_delete")(time.Now())
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&productRow{}).Error
}

// --- orders ---

type orderRepo struct{ db *gorm.DB }

func (r orderRepo) Place(ctx context.Context, o *model.Order, transactionID string) error {
	row := orderToRow(o)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if transactionID != "" {
			var m markerRow
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "transaction_id = ?", transactionID).Error
			switch {
			case err == nil && m.Status == string(model.MarkerCompleted):
				return store.ErrConflict
			case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}

		need := make(map[string]int)
		for _, l := range o.Lines {
			need[l.ProductID] += l.Quantity
		}
		// Lock rows in a stable order so concurrent orders cannot deadlock
		ids := make([]string, 0, len(need))
		for id := range need {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			res := tx.Model(&productRow{}).
				Where("id = ? AND stock >= ?", id, need[id]).
				UpdateColumn("stock", gorm.Expr("stock - ?", need[id]))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				var exists int64
				if err := tx.Model(&productRow{}).Where("id = ?", id).Count(&exists).Error; err != nil {
					return err
				}
				if exists == 0 {
					return store.ErrNotFound
				}
				return store.ErrInsufficientStock
			}
		}

		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		if transactionID != "" {
			if err := tx.Model(&markerRow{}).
				Where("transaction_id = ? AND status = ?", transactionID, string(model.MarkerPending)).
				Updates(map[string]interface{}{
					"status":     string(model.MarkerCompleted),
					"order_id":   row.ID,
					"updated_at": time.Now(),
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translate(err)
	}

	o.ID = row.ID
	o.CreatedAt = row.CreatedAt
	o.UpdatedAt = row.UpdatedAt
	return nil
}

func (r orderRepo) Get(ctx context.Context, id string) (*model.Order, error) {
	defer prometheus.TrackDBOperation("order_get")(time.Now())

	var row orderRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	o := row.toModel()
	return &o, nil
}

func (r orderRepo) List(ctx context.Context, filter store.OrderFilter) ([]model.Order, error) {
	defer prometheus.TrackDBOperation("order_list")(time.Now())

	q := r.db.WithContext(ctx).Model(&orderRow{})
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Email != "" {
		q = q.Where("LOWER(customer_email) = ?", strings.ToLower(filter.Email))
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}

	var rows []orderRow
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Order, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (r orderRepo) UpdateStatus(ctx context.Context, id string, from, to model.OrderStatus) (*model.Order, error) {
	defer prometheus.TrackDBOperation("order_update")(time.Now())

	var row orderRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&orderRow{}).Where("id = ? AND status = ?", id, string(from)).
			Updates(map[string]interface{}{"status": string(to), "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return store.ErrConflict
		}
		if to == model.OrderStatusCancelled {
			return restock(tx, row.toModel().Lines)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	o := row.toModel()
	return &o, nil
}

func (r orderRepo) Delete(ctx context.Context, id string) error {
	defer prometheus.TrackDBOperation("order_delete")(time.Now())

	res := r.db.WithContext(ctx).Delete(&orderRow{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// restock returns the line quantities to their products. Deleted products
// simply match no row.
func restock(tx *gorm.DB, lines []model.OrderLine) error {
	for _, l := range lines {
		if err := tx.Model(&productRow{}).Where("id = ?", l.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", l.Quantity)).Error; err != nil {
			return err
		}
	}
	return nil
}

// --- users ---

type userRepo struct{ db *gorm.DB }

func (r userRepo) Create(ctx context.Context, u *model.User) error {
	defer prometheus.TrackDBOperation("user_insert")(time.Now())

	row := userRow{
		ID:           u.ID,
		Email:        strings.ToLower(u.Email),
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	*u = *row.toModel()
	return nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).First(&row, "email = ?", strings.ToLower(email)).Error; err != nil {
		return nil, translate(err)
	}
	return row.toModel(), nil
}

func (r userRepo) Get(ctx context.Context, id string) (*model.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return row.toModel(), nil
}

// --- payment markers ---

type paymentRepo struct{ db *gorm.DB }

func (r paymentRepo) RecordPending(ctx context.Context, m *model.PaymentMarker) error {
	row := markerRow{
		TransactionID: m.TransactionID,
		Status:        string(model.MarkerPending),
		Amount:        m.Amount,
		Snapshot:      m.Snapshot,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err)
	}
	*m = *row.toModel()
	return nil
}

func (r paymentRepo) Get(ctx context.Context, transactionID string) (*model.PaymentMarker, error) {
	var row markerRow
	if err := r.db.WithContext(ctx).First(&row, "transaction_id = ?", transactionID).Error; err != nil {
		return nil, translate(err)
	}
	return row.toModel(), nil
}

func (r paymentRepo) Fail(ctx context.Context, transactionID string, reason string) error {
	res := r.db.WithContext(ctx).Model(&markerRow{}).Where("transaction_id = ?", transactionID).
		Updates(map[string]interface{}{
			"last_error": reason,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r paymentRepo) ListPending(ctx context.Context) ([]model.PaymentMarker, error) {
	var rows []markerRow
	if err := r.db.WithContext(ctx).Where("status = ?", string(model.MarkerPending)).
		Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.PaymentMarker, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toModel())
	}
	return out, nil
}
