package mongostore

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-service/internal/model"
)

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

type productDoc struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty"`
	Name           string               `bson:"name"`
	Slug           string               `bson:"slug,omitempty"`
	Description    string               `bson:"description"`
	Price          primitive.Decimal128 `bson:"price"`
	Category       string               `bson:"category"`
	Image          string               `bson:"image"`
	Stock          int                  `bson:"stock"`
	Customizable   bool                 `bson:"customizable"`
	Colors         []string             `bson:"colors,omitempty"`
	Designs        []string             `bson:"designs,omitempty"`
	Keywords       []string             `bson:"keywords,omitempty"`
	SEOTitle       string               `bson:"seoTitle,omitempty"`
	SEODescription string               `bson:"seoDescription,omitempty"`
	CreatedAt      time.Time            `bson:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"`
}

func productToDoc(p *model.Product) productDoc {
	d := productDoc{
		Name:           p.Name,
		Slug:           p.Slug,
		Description:    p.Description,
		Price:          toDecimal128(p.Price),
		Category:       string(p.Category),
		Image:          p.Image,
		Stock:          p.Stock,
		Customizable:   p.Customizable,
		Colors:         p.Colors,
		Designs:        p.Designs,
		Keywords:       p.Keywords,
		SEOTitle:       p.SEOTitle,
		SEODescription: p.SEODescription,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if id, err := primitive.ObjectIDFromHex(p.ID); err == nil {
		d.ID = id
	}
	return d
}

func (d *productDoc) toModel() model.Product {
	return model.Product{
		ID:             d.ID.Hex(),
		Name:           d.Name,
		Slug:           d.Slug,
		Description:    d.Description,
		Price:          fromDecimal128(d.Price),
		Category:       model.Category(d.Category),
		Image:          d.Image,
		Stock:          d.Stock,
		Customizable:   d.Customizable,
		Colors:         d.Colors,
		Designs:        d.Designs,
		Keywords:       d.Keywords,
		SEOTitle:       d.SEOTitle,
		SEODescription: d.SEODescription,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type lineDoc struct {
	ProductID     string               `bson:"productId"`
	Name          string               `bson:"name"`
	Price         primitive.Decimal128 `bson:"price"`
	Quantity      int                  `bson:"quantity"`
	Customization *customizationDoc    `bson:"customization,omitempty"`
}

type customizationDoc struct {
	Color  string `bson:"color,omitempty"`
	Design string `bson:"design,omitempty"`
	Text   string `bson:"text,omitempty"`
}

func linesToDocs(lines []model.OrderLine) []lineDoc {
	out := make([]lineDoc, 0, len(lines))
	for _, l := range lines {
		d := lineDoc{ProductID: l.ProductID, Name: l.Name, Price: toDecimal128(l.UnitPrice), Quantity: l.Quantity}
		if c := l.Customization; c != nil {
			d.Customization = &customizationDoc{Color: c.Color, Design: c.Design, Text: c.Text}
		}
		out = append(out, d)
	}
	return out
}

func docsToLines(docs []lineDoc) []model.OrderLine {
	out := make([]model.OrderLine, 0, len(docs))
	for _, d := range docs {
		l := model.OrderLine{ProductID: d.ProductID, Name: d.Name, UnitPrice: fromDecimal128(d.Price), Quantity: d.Quantity}
		if c := d.Customization; c != nil {
			l.Customization = &model.Customization{Color: c.Color, Design: c.Design, Text: c.Text}
		}
		out = append(out, l)
	}
	return out
}

type customerDoc struct {
	Name    string `bson:"customerName"`
	Email   string `bson:"customerEmail"`
	Phone   string `bson:"customerPhone"`
	Address string `bson:"customerAddress"`
	City    string `bson:"customerCity"`
	ZipCode string `bson:"customerZipCode"`
}

func customerToDoc(c model.Customer) customerDoc {
	return customerDoc(c)
}

func (d customerDoc) toModel() model.Customer {
	return model.Customer(d)
}

type orderDoc struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty"`
	Items          []lineDoc            `bson:"items"`
	Subtotal       primitive.Decimal128 `bson:"subtotal"`
	Tax            primitive.Decimal128 `bson:"tax"`
	Total          primitive.Decimal128 `bson:"total"`
	Status         string               `bson:"status"`
	Customer       customerDoc          `bson:",inline"`
	PaymentMethod  string               `bson:"paymentMethod"`
	PaymentStatus  string               `bson:"paymentStatus"`
	TransactionID  string               `bson:"transactionId,omitempty"`
	UserID         string               `bson:"userId,omitempty"`
	RestockPending bool                 `bson:"restockPending,omitempty"`
	CreatedAt      time.Time            `bson:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"`
}

func orderToDoc(o *model.Order) orderDoc {
	d := orderDoc{
		Items:         linesToDocs(o.Lines),
		Subtotal:      toDecimal128(o.Subtotal),
		Tax:           toDecimal128(o.Tax),
		Total:         toDecimal128(o.Total),
		Status:        string(o.Status),
		Customer:      customerToDoc(o.Customer),
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		TransactionID: o.TransactionID,
		UserID:        o.UserID,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if id, err := primitive.ObjectIDFromHex(o.ID); err == nil {
		d.ID = id
	}
	return d
}

func (d *orderDoc) toModel() model.Order {
	return model.Order{
		ID:            d.ID.Hex(),
		Lines:         docsToLines(d.Items),
		Subtotal:      fromDecimal128(d.Subtotal),
		Tax:           fromDecimal128(d.Tax),
		Total:         fromDecimal128(d.Total),
		Status:        model.OrderStatus(d.Status),
		Customer:      d.Customer.toModel(),
		PaymentMethod: model.PaymentMethod(d.PaymentMethod),
		PaymentStatus: model.PaymentStatus(d.PaymentStatus),
		TransactionID: d.TransactionID,
		UserID:        d.UserID,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	Name         string             `bson:"name"`
	PasswordHash string             `bson:"passwordHash"`
	Role         string             `bson:"role"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func (d *userDoc) toModel() *model.User {
	return &model.User{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		Name:         d.Name,
		PasswordHash: d.PasswordHash,
		Role:         model.Role(d.Role),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type snapshotDoc struct {
	Items         []lineDoc   `bson:"items"`
	Customer      customerDoc `bson:"customer"`
	PaymentMethod string      `bson:"paymentMethod"`
	PaymentStatus string      `bson:"paymentStatus"`
	UserID        string      `bson:"userId,omitempty"`
}

type markerDoc struct {
	TransactionID string               `bson:"_id"`
	Status        string               `bson:"status"`
	OrderID       string               `bson:"orderId,omitempty"`
	Amount        primitive.Decimal128 `bson:"amount"`
	Snapshot      snapshotDoc          `bson:"snapshot"`
	LastError     string               `bson:"lastError,omitempty"`
	Attempts      int                  `bson:"attempts"`
	CreatedAt     time.Time            `bson:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
}

func markerToDoc(m *model.PaymentMarker) markerDoc {
	return markerDoc{
		TransactionID: m.TransactionID,
		Status:        string(m.Status),
		OrderID:       m.OrderID,
		Amount:        toDecimal128(m.Amount),
		Snapshot: snapshotDoc{
			Items:         linesToDocs(m.Snapshot.Lines),
			Customer:      customerToDoc(m.Snapshot.Customer),
			PaymentMethod: string(m.Snapshot.PaymentMethod),
			PaymentStatus: string(m.Snapshot.PaymentStatus),
			UserID:        m.Snapshot.UserID,
		},
		LastError: m.LastError,
		Attempts:  m.Attempts,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (d *markerDoc) toModel() *model.PaymentMarker {
	return &model.PaymentMarker{
		TransactionID: d.TransactionID,
		Status:        model.MarkerStatus(d.Status),
		OrderID:       d.OrderID,
		Amount:        fromDecimal128(d.Amount),
		Snapshot: model.CheckoutSnapshot{
			Lines:         docsToLines(d.Snapshot.Items),
			Customer:      d.Snapshot.Customer.toModel(),
			PaymentMethod: model.PaymentMethod(d.Snapshot.PaymentMethod),
			PaymentStatus: model.PaymentStatus(d.Snapshot.PaymentStatus),
			UserID:        d.Snapshot.UserID,
		},
		LastError: d.LastError,
		Attempts:  d.Attempts,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
