package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront-service/internal/model"
)

// productRow is the products table
type productRow struct {
	ID             string          `gorm:"type:varchar(36);primaryKey"`
	Name           string          `gorm:"type:varchar(255);not null"`
	Slug           *string         `gorm:"type:varchar(255);uniqueIndex"`
	Description    string          `gorm:"type:text"`
	Price          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Category       string          `gorm:"type:varchar(32);index;not null"`
	Image          string          `gorm:"type:text"`
	Stock          int             `gorm:"not null;default:0;check:stock >= 0"`
	Customizable   bool            `gorm:"default:false"`
	Colors         pq.StringArray  `gorm:"type:text[]"`
	Designs        pq.StringArray  `gorm:"type:text[]"`
	Keywords       pq.StringArray  `gorm:"type:text[]"`
	SEOTitle       string          `gorm:"column:seo_title;type:varchar(255)"`
	SEODescription string          `gorm:"column:seo_description;type:text"`
	CreatedAt      time.Time       `gorm:"index"`
	UpdatedAt      time.Time
}

func (productRow) TableName() string { return "products" }

func (r *productRow) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func productToRow(p *model.Product) productRow {
	row := productRow{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		Category:       string(p.Category),
		Image:          p.Image,
		Stock:          p.Stock,
		Customizable:   p.Customizable,
		Colors:         pq.StringArray(p.Colors),
		Designs:        pq.StringArray(p.Designs),
		Keywords:       pq.StringArray(p.Keywords),
		SEOTitle:       p.SEOTitle,
		SEODescription: p.SEODescription,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	// Products without a slug stay NULL so the unique index ignores them
	if p.Slug != "" {
		s := p.Slug
		row.Slug = &s
	}
	return row
}

func (r *productRow) toModel() model.Product {
	p := model.Product{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		Price:          r.Price,
		Category:       model.Category(r.Category),
		Image:          r.Image,
		Stock:          r.Stock,
		Customizable:   r.Customizable,
		Colors:         []string(r.Colors),
		Designs:        []string(r.Designs),
		Keywords:       []string(r.Keywords),
		SEOTitle:       r.SEOTitle,
		SEODescription: r.SEODescription,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.Slug != nil {
		p.Slug = *r.Slug
	}
	return p
}

// orderRow is the orders table. Lines are stored by value as jsonb.
type orderRow struct {
	ID              string            `gorm:"type:varchar(36);primaryKey"`
	Lines           []model.OrderLine `gorm:"type:jsonb;serializer:json;not null"`
	Subtotal        decimal.Decimal   `gorm:"type:numeric(12,2);not null"`
	Tax             decimal.Decimal   `gorm:"type:numeric(12,2);not null"`
	Total           decimal.Decimal   `gorm:"type:numeric(12,2);not null"`
	Status          string            `gorm:"type:varchar(20);index;not null"`
	CustomerName    string            `gorm:"type:varchar(255);not null"`
	CustomerEmail   string            `gorm:"type:varchar(255);index;not null"`
	CustomerPhone   string            `gorm:"type:varchar(50)"`
	CustomerAddress string            `gorm:"type:text"`
	CustomerCity    string            `gorm:"type:varchar(100)"`
	CustomerZipCode string            `gorm:"type:varchar(20)"`
	PaymentMethod   string            `gorm:"type:varchar(32);not null"`
	PaymentStatus   string            `gorm:"type:varchar(20);not null"`
	TransactionID   string            `gorm:"type:varchar(255);index"`
	UserID          string            `gorm:"type:varchar(36);index"`
	CreatedAt       time.Time         `gorm:"index"`
	UpdatedAt       time.Time
}

func (orderRow) TableName() string { return "orders" }

func (r *orderRow) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func orderToRow(o *model.Order) orderRow {
	return orderRow{
		ID:              o.ID,
		Lines:           o.Lines,
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Total:           o.Total,
		Status:          string(o.Status),
		CustomerName:    o.Name,
		CustomerEmail:   o.Email,
		CustomerPhone:   o.Phone,
		CustomerAddress: o.Address,
		CustomerCity:    o.City,
		CustomerZipCode: o.ZipCode,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		TransactionID:   o.TransactionID,
		UserID:          o.UserID,
	}
}

func (r *orderRow) toModel() model.Order {
	return model.Order{
		ID:       r.ID,
		Lines:    r.Lines,
		Subtotal: r.Subtotal,
		Tax:      r.Tax,
		Total:    r.Total,
		Status:   model.OrderStatus(r.Status),
		Customer: model.Customer{
			Name:    r.CustomerName,
			Email:   r.CustomerEmail,
			Phone:   r.CustomerPhone,
			Address: r.CustomerAddress,
			City:    r.CustomerCity,
			ZipCode: r.CustomerZipCode,
		},
		PaymentMethod: model.PaymentMethod(r.PaymentMethod),
		PaymentStatus: model.PaymentStatus(r.PaymentStatus),
		TransactionID: r.TransactionID,
		UserID:        r.UserID,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// userRow is the users table
type userRow struct {
	ID           string `gorm:"type:varchar(36);primaryKey"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name         string `gorm:"type:varchar(255)"`
	PasswordHash string `gorm:"type:varchar(255);not null"`
	Role         string `gorm:"type:varchar(20);not null;default:customer"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func (r *userRow) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r *userRow) toModel() *model.User {
	return &model.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		Role:         model.Role(r.Role),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// markerRow is the payment_markers table
type markerRow struct {
	TransactionID string                 `gorm:"type:varchar(255);primaryKey"`
	Status        string                 `gorm:"type:varchar(20);index;not null"`
	OrderID       string                 `gorm:"type:varchar(36)"`
	Amount        decimal.Decimal        `gorm:"type:numeric(12,2);not null"`
	Snapshot      model.CheckoutSnapshot `gorm:"type:jsonb;serializer:json;not null"`
	LastError     string                 `gorm:"type:text"`
	Attempts      int                    `gorm:"not null;default:0"`
	CreatedAt     time.Time              `gorm:"index"`
	UpdatedAt     time.Time
}

func (markerRow) TableName() string { return "payment_markers" }

func (r *markerRow) toModel() *model.PaymentMarker {
	return &model.PaymentMarker{
		TransactionID: r.TransactionID,
		Status:        model.MarkerStatus(r.Status),
		OrderID:       r.OrderID,
		Amount:        r.Amount,
		Snapshot:      r.Snapshot,
		LastError:     r.LastError,
		Attempts:      r.Attempts,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// Models lists every table for AutoMigrate
func Models() []interface{} {
	return []interface{}{&productRow{}, &orderRow{}, &userRow{}, &markerRow{}}
}
