// Package mongostore implements the store on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"storefront-service/internal/model"
	"storefront-service/internal/store"
	"storefront-service/prometheus"
)

const (
	productsCollection = "products"
	ordersCollection   = "orders"
	usersCollection    = "users"
	markersCollection  = "payment_markers"
)

// Store is a store.Store over one MongoDB database
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

var _ store.Store = (*Store)(nil)

func New(client *mongo.Client, database string, log *zap.Logger) *Store {
	return &Store{client: client, db: client.Database(database), log: log}
}

// EnsureIndexes creates the unique and lookup indexes
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		productsCollection: {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		ordersCollection: {
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "customerEmail", Value: 1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
			{Keys: bson.D{{Key: "restockPending", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		markersCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Products() store.Products {
	return productRepo{coll: s.db.Collection(productsCollection)}
}

func (s *Store) Orders() store.Orders {
	return orderRepo{
		coll:     s.db.Collection(ordersCollection),
		products: s.db.Collection(productsCollection),
		markers:  s.db.Collection(markersCollection),
		log:      s.log,
	}
}

func (s *Store) Users() store.Users {
	return userRepo{coll: s.db.Collection(usersCollection)}
}

func (s *Store) Payments() store.Payments {
	return paymentRepo{coll: s.db.Collection(markersCollection)}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrConflict
	}
	return err
}

// objectID parses a hex id; malformed ids cannot exist so they are not found
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, store.ErrNotFound
	}
	return oid, nil
}

// containsRegex matches text anywhere, case-insensitively
func containsRegex(text string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(text)), Options: "i"}
}

// productQuery builds the catalog filter. Search covers name, description and
// any keyword element.
func productQuery(f store.ProductFilter) bson.M {
	q := bson.M{}
	if f.Category != "" {
		q["category"] = string(f.Category)
	}
	if strings.TrimSpace(f.Search) != "" {
		re := containsRegex(f.Search)
		q["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"description": re},
			bson.M{"keywords": re},
		}
	}
	return q
}

func orderQuery(f store.OrderFilter) bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = string(f.Status)
	}
	if f.Email != "" {
		q["customerEmail"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(f.Email) + "$", Options: "i"}
	}
	if f.UserID != "" {
		q["userId"] = f.UserID
	}
	return q
}

var newestFirst = options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

// --- products ---

type productRepo struct{ coll *mongo.Collection }

func (r productRepo) List(ctx context.Context, filter store.ProductFilter) ([]model.Product, error) {
	defer prometheus.TrackDBOperation("product_list")(time.Now())

	cur, err := r.coll.Find(ctx, productQuery(filter), newestFirst)
	if err != nil {
		return nil, err
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Product, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

func (r productRepo) findOne(ctx context.Context, q bson.M) (*model.Product, error) {
	var doc productDoc
	if err := r.coll.FindOne(ctx, q).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	p := doc.toModel()
	return &p, nil
}

func (r productRepo) Get(ctx context.Context, id string) (*model.Product, error) {
	defer prometheus.TrackDBOperation("product_get")(time.Now())

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r productRepo) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
	defer prometheus.TrackDBOperation("product_get")(time.Now())
	return r.findOne(ctx, bson.M{"slug": slug})
}

func stamp(createdAt *time.Time, updatedAt *time.Time) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}

func (r productRepo) Create(ctx context.Context, p *model.Product) error {
	defer prometheus.TrackDBOperation("product_insert")(time.Now())

	doc := productToDoc(p)
	stamp(&doc.CreatedAt, &doc.UpdatedAt)
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return translate(err)
	}
	*p = doc.toModel()
	return nil
}

func (r productRepo) Update(ctx context.Context, id string, patch model.ProductPatch) (*model.Product, error) {
	defer prometheus.TrackDBOperation("product_update")(time.Now())

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc productDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	p := doc.toModel()
	if err := patch.Apply(&p); err != nil {
		return nil, err
	}

	// Stock is owned by order placement; only overwrite it when the patch sets it
	set := productToDoc(&p)
	set.UpdatedAt = time.Now().UTC()
	update := bson.M{"$set": setFields(set, patch.Stock != nil)}
	if p.Slug == "" {
		update["$unset"] = bson.M{"slug": ""}
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return nil, translate(err)
	}
	if res.MatchedCount == 0 {
		return nil, store.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func setFields(d productDoc, withStock bool) bson.M {
	m := bson.M{
		"name":           d.Name,
		"description":    d.Description,
		"price":          d.Price,
		"category":       d.Category,
		"image":          d.Image,
		"customizable":   d.Customizable,
		"colors":         d.Colors,
		"designs":        d.Designs,
		"keywords":       d.Keywords,
		"seoTitle":       d.SEOTitle,
		"seoDescription": d.SEODescription,
		"updatedAt":      d.UpdatedAt,
	}
	if d.Slug != "" {
		m["slug"] = d.Slug
	}
	if withStock {
		m["stock"] = d.Stock
	}
	return m
}

func (r productRepo) Delete(ctx context.Context, id string) error {
	defer prometheus.TrackDBOperation("product_delete")(time.Now())

	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r productRepo) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}

func (r productRepo) InsertMany(ctx context.Context, products []model.Product) error {
	defer prometheus.TrackDBOperation("product_insert")(time.Now())

	if len(products) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(products))
	for i := range products {
		doc := productToDoc(&products[i])
		stamp(&doc.CreatedAt, &doc.UpdatedAt)
		if doc.ID.IsZero() {
			doc.ID = primitive.NewObjectID()
		}
		products[i] = doc.toModel()
		docs = append(docs, doc)
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return translate(err)
}

func (r productRepo) DeleteAll(ctx context.Context) error {
	defer prometheus.TrackDBOperation("product_delete")(time.Now())
	_, err := r.coll.DeleteMany(ctx, bson.M{})
	return err
}

// --- orders ---

type orderRepo struct {
	coll     *mongo.Collection
	products *mongo.Collection
	markers  *mongo.Collection
	log      *zap.Logger
}

// compensationTimeout bounds the undo writes that run after the request
// context may already be done.
const compensationTimeout = 10 * time.Second

// compensationContext keeps the request's values but not its cancellation, so
// undo writes still run when the request timed out.
func compensationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
}

type stockMove struct {
	id  primitive.ObjectID
	qty int
}

// Place decrements stock with conditional $inc updates and undoes them if any
// later step fails.
func (r orderRepo) Place(ctx context.Context, o *model.Order, transactionID string) error {
	defer prometheus.TrackDBOperation("order_place")(time.Now())

	if transactionID != "" {
		var m markerDoc
		err := r.markers.FindOne(ctx, bson.M{"_id": transactionID}).Decode(&m)
		switch {
		case err == nil && m.Status == string(model.MarkerCompleted):
			return store.ErrConflict
		case err != nil && !errors.Is(err, mongo.ErrNoDocuments):
			return err
		}
	}

	need := make(map[string]int)
	for _, l := range o.Lines {
		need[l.ProductID] += l.Quantity
	}
	ids := make([]string, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var applied []stockMove
	for _, id := range ids {
		oid, err := objectID(id)
		if err != nil {
			r.rollbackStock(ctx, applied)
			return err
		}
		res, err := r.products.UpdateOne(ctx,
			bson.M{"_id": oid, "stock": bson.M{"$gte": need[id]}},
			bson.M{"$inc": bson.M{"stock": -need[id]}},
		)
		if err != nil {
			r.rollbackStock(ctx, applied)
			return err
		}
		if res.MatchedCount == 0 {
			r.rollbackStock(ctx, applied)
			n, err := r.products.CountDocuments(ctx, bson.M{"_id": oid})
			if err != nil {
				return err
			}
			if n == 0 {
				return store.ErrNotFound
			}
			return store.ErrInsufficientStock
		}
		applied = append(applied, stockMove{id: oid, qty: need[id]})
	}

	doc := orderToDoc(o)
	doc.ID = primitive.NewObjectID()
	stamp(&doc.CreatedAt, &doc.UpdatedAt)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		r.rollbackStock(ctx, applied)
		return translate(err)
	}

	if transactionID != "" {
		res, err := r.markers.UpdateOne(ctx,
			bson.M{"_id": transactionID, "status": bson.M{"$ne": string(model.MarkerCompleted)}},
			bson.M{"$set": bson.M{
				"status":    string(model.MarkerCompleted),
				"orderId":   doc.ID.Hex(),
				"updatedAt": time.Now().UTC(),
			}},
		)
		if err == nil && res.MatchedCount == 0 {
			// A concurrent placement completed the marker first; undo ours
			var exists int64
			exists, err = r.markers.CountDocuments(ctx, bson.M{"_id": transactionID})
			if err == nil && exists > 0 {
				err = store.ErrConflict
			}
		}
		if err != nil {
			cctx, cancel := compensationContext(ctx)
			if _, derr := r.coll.DeleteOne(cctx, bson.M{"_id": doc.ID}); derr != nil {
				r.log.Error("Failed to remove order after marker failure", zap.String("order_id", doc.ID.Hex()), zap.Error(derr))
			}
			cancel()
			r.rollbackStock(ctx, applied)
			return err
		}
	}

	o.ID = doc.ID.Hex()
	o.CreatedAt = doc.CreatedAt
	o.UpdatedAt = doc.UpdatedAt
	return nil
}

func (r orderRepo) rollbackStock(ctx context.Context, moves []stockMove) {
	if len(moves) == 0 {
		return
	}
	ctx, cancel := compensationContext(ctx)
	defer cancel()

	for _, m := range moves {
		if _, err := r.products.UpdateOne(ctx, bson.M{"_id": m.id}, bson.M{"$inc": bson.M{"stock": m.qty}}); err != nil {
			r.log.Error("Failed to roll back stock",
				zap.String("product_id", m.id.Hex()),
				zap.Int("quantity", m.qty),
				zap.Error(err))
		}
	}
}

func (r orderRepo) Get(ctx context.Context, id string) (*model.Order, error) {
	defer prometheus.TrackDBOperation("order_get")(time.Now())

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc orderDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	o := doc.toModel()
	return &o, nil
}

func (r orderRepo) List(ctx context.Context, filter store.OrderFilter) ([]model.Order, error) {
	defer prometheus.TrackDBOperation("order_list")(time.Now())

	cur, err := r.coll.Find(ctx, orderQuery(filter), newestFirst)
	if err != nil {
		return nil, err
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Order, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

// UpdateStatus flags a cancelled order with restockPending in the same write
// that changes its status, and clears the flag once the stock is back. An
// order left flagged still owes its stock to the catalog.
func (r orderRepo) UpdateStatus(ctx context.Context, id string, from, to model.OrderStatus) (*model.Order, error) {
	defer prometheus.TrackDBOperation("order_update")(time.Now())

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"status": string(to), "updatedAt": time.Now().UTC()}
	cancelling := to == model.OrderStatusCancelled
	if cancelling {
		set["restockPending"] = true
	}

	var doc orderDoc
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "status": string(from)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if n, cerr := r.coll.CountDocuments(ctx, bson.M{"_id": oid}); cerr == nil && n > 0 {
			return nil, store.ErrConflict
		}
	}
	if err != nil {
		return nil, translate(err)
	}

	o := doc.toModel()
	if cancelling {
		r.restockCancelled(ctx, oid, o.Lines)
	}
	return &o, nil
}

// restockCancelled returns a cancelled order's stock. The status change is
// already stored, so this runs on a compensation context and failures leave
// restockPending set.
func (r orderRepo) restockCancelled(ctx context.Context, oid primitive.ObjectID, lines []model.OrderLine) {
	defer prometheus.TrackDBOperation("product_restock")(time.Now())

	ctx, cancel := compensationContext(ctx)
	defer cancel()

	for _, l := range lines {
		pid, err := objectID(l.ProductID)
		if err != nil {
			continue
		}
		if _, err := r.products.UpdateOne(ctx, bson.M{"_id": pid}, bson.M{"$inc": bson.M{"stock": l.Quantity}}); err != nil {
			r.log.Error("Failed to restock cancelled order",
				zap.String("order_id", oid.Hex()),
				zap.String("product_id", l.ProductID),
				zap.Error(err))
			return
		}
	}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$unset": bson.M{"restockPending": ""}}); err != nil {
		r.log.Error("Failed to clear restock flag", zap.String("order_id", oid.Hex()), zap.Error(err))
	}
}

func (r orderRepo) Delete(ctx context.Context, id string) error {
	defer prometheus.TrackDBOperation("order_delete")(time.Now())

	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- users ---

type userRepo struct{ coll *mongo.Collection }

func (r userRepo) Create(ctx context.Context, u *model.User) error {
	defer prometheus.TrackDBOperation("user_insert")(time.Now())

	doc := userDoc{
		ID:           primitive.NewObjectID(),
		Email:        strings.ToLower(u.Email),
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
	}
	stamp(&doc.CreatedAt, &doc.UpdatedAt)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return translate(err)
	}
	*u = *doc.toModel()
	return nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return doc.toModel(), nil
}

func (r userRepo) Get(ctx context.Context, id string) (*model.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc userDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return doc.toModel(), nil
}

// --- payment markers ---

type paymentRepo struct{ coll *mongo.Collection }

func (r paymentRepo) RecordPending(ctx context.Context, m *model.PaymentMarker) error {
	m.Status = model.MarkerPending
	doc := markerToDoc(m)
	stamp(&doc.CreatedAt, &doc.UpdatedAt)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return translate(err)
	}
	*m = *doc.toModel()
	return nil
}

func (r paymentRepo) Get(ctx context.Context, transactionID string) (*model.PaymentMarker, error) {
	var doc markerDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": transactionID}).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return doc.toModel(), nil
}

func (r paymentRepo) Fail(ctx context.Context, transactionID string, reason string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": transactionID},
		bson.M{
			"$set": bson.M{"lastError": reason, "updatedAt": time.Now().UTC()},
			"$inc": bson.M{"attempts": 1},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r paymentRepo) ListPending(ctx context.Context) ([]model.PaymentMarker, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"status": string(model.MarkerPending)},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	var docs []markerDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.PaymentMarker, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toModel())
	}
	return out, nil
}
