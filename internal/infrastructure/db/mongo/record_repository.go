package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/powerbill/electricity-records/internal/core/domain"
	"github.com/powerbill/electricity-records/internal/core/ports"
)

const collectionRecords = "meter_records"

// newestFirst orders by creation time, breaking ties on the monotonic ObjectID.
var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

type RecordRepository struct {
	col *mongo.Collection
}

func NewRecordRepository(db *mongo.Database) *RecordRepository {
	return &RecordRepository{col: db.Collection(collectionRecords)}
}

type recordDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	AccountID       primitive.ObjectID `bson:"account_id"`
	MeterNumber     string             `bson:"meter_number"`
	PreviousReading float64            `bson:"previous_reading"`
	CurrentReading  float64            `bson:"current_reading"`
	RatePerUnit     float64            `bson:"rate_per_unit"`
	UnitsConsumed   float64            `bson:"units_consumed"`
	TotalAmount     float64            `bson:"total_amount"`
	DueDate         time.Time          `bson:"due_date"`
	PaymentStatus   string             `bson:"payment_status"`
	PaymentDate     *time.Time         `bson:"payment_date,omitempty"`
	BillImage       string             `bson:"bill_image,omitempty"`
	Remarks         string             `bson:"remarks,omitempty"`
	Anomaly         string             `bson:"anomaly,omitempty"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}

func toRecordDocument(rec *domain.MeterRecord) (recordDocument, error) {
	accountID, ok := parseID(rec.AccountID)
	if !ok {
		return recordDocument{}, domain.ErrAccountNotFound
	}
	doc := recordDocument{
		AccountID:       accountID,
		MeterNumber:     rec.MeterNumber,
		PreviousReading: rec.PreviousReading,
		CurrentReading:  rec.CurrentReading,
		RatePerUnit:     rec.RatePerUnit,
		UnitsConsumed:   rec.UnitsConsumed,
		TotalAmount:     rec.TotalAmount,
		DueDate:         rec.DueDate.UTC(),
		PaymentStatus:   string(rec.PaymentStatus),
		BillImage:       rec.BillImage,
		Remarks:         rec.Remarks,
		Anomaly:         rec.Anomaly,
		CreatedAt:       rec.CreatedAt.UTC(),
		UpdatedAt:       rec.UpdatedAt.UTC(),
	}
	if rec.PaymentDate != nil {
		paid := rec.PaymentDate.UTC()
		doc.PaymentDate = &paid
	}
	return doc, nil
}

func (d recordDocument) toDomain() *domain.MeterRecord {
	rec := &domain.MeterRecord{
		ID:              d.ID.Hex(),
		AccountID:       d.AccountID.Hex(),
		MeterNumber:     d.MeterNumber,
		PreviousReading: d.PreviousReading,
		CurrentReading:  d.CurrentReading,
		RatePerUnit:     d.RatePerUnit,
		UnitsConsumed:   d.UnitsConsumed,
		TotalAmount:     d.TotalAmount,
		DueDate:         d.DueDate.UTC(),
		PaymentStatus:   domain.PaymentStatus(d.PaymentStatus),
		BillImage:       d.BillImage,
		Remarks:         d.Remarks,
		Anomaly:         d.Anomaly,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
	if rec.PaymentStatus == "" {
		rec.PaymentStatus = domain.PaymentPending
	}
	if d.PaymentDate != nil {
		paid := d.PaymentDate.UTC()
		rec.PaymentDate = &paid
	}
	return rec
}

// Create inserts a new record document and assigns rec.ID.
func (r *RecordRepository) Create(ctx context.Context, rec *domain.MeterRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc, err := toRecordDocument(rec)
	if err != nil {
		return err
	}
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return storageErr("insert record", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		rec.ID = oid.Hex()
	}
	return nil
}

// Latest returns the newest record of the account, or (nil, nil) if there is none.
func (r *RecordRepository) Latest(ctx context.Context, accountID string) (*domain.MeterRecord, error) {
	oid, ok := parseID(accountID)
	if !ok {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc recordDocument
	err := r.col.FindOne(ctx, bson.M{"account_id": oid}, options.FindOne().SetSort(newestFirst)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("find latest record", err)
	}
	return doc.toDomain(), nil
}

func (r *RecordRepository) Recent(ctx context.Context, accountID string, limit int) ([]*domain.MeterRecord, error) {
	oid, ok := parseID(accountID)
	if !ok || limit <= 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"account_id": oid}, options.Find().SetSort(newestFirst).SetLimit(int64(limit)))
}

func (r *RecordRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.MeterRecord, error) {
	oid, ok := parseID(accountID)
	if !ok {
		return []*domain.MeterRecord{}, nil
	}
	return r.find(ctx, bson.M{"account_id": oid}, options.Find().SetSort(newestFirst))
}

// List returns records matching f, newest first.
func (r *RecordRepository) List(ctx context.Context, f ports.ListRecordsFilter) ([]*domain.MeterRecord, error) {
	filter, ok := listFilter(f)
	if !ok {
		return []*domain.MeterRecord{}, nil
	}
	return r.find(ctx, filter, options.Find().SetSort(newestFirst))
}

func listFilter(f ports.ListRecordsFilter) (bson.M, bool) {
	filter := bson.M{}
	if f.AccountID != "" {
		oid, ok := parseID(f.AccountID)
		if !ok {
			return nil, false
		}
		filter["account_id"] = oid
	}
	if f.Status != "" {
		filter["payment_status"] = string(f.Status)
	}
	return filter, true
}

func (r *RecordRepository) FindByID(ctx context.Context, id string) (*domain.MeterRecord, error) {
	oid, ok := parseID(id)
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc recordDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, storageErr("find record", err)
	}
	return doc.toDomain(), nil
}

// UpdatePaymentStatus sets the payment status and sets or clears the payment
// date in a single document update, guarded by the expected current status.
func (r *RecordRepository) UpdatePaymentStatus(ctx context.Context, id string, from, to domain.PaymentStatus, paymentDate *time.Time, updatedAt time.Time) (*domain.MeterRecord, error) {
	oid, ok := parseID(id)
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc recordDocument
	err := r.col.FindOneAndUpdate(ctx, paymentFilter(oid, from), paymentUpdate(to, paymentDate, updatedAt), opts).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storageErr("update payment status", err)
	}

	// No match: either the record is gone or its status moved underneath us.
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return nil, storageErr("update payment status", err)
	}
	if n == 0 {
		return nil, domain.ErrRecordNotFound
	}
	return nil, domain.ErrStatusConflict
}

// paymentFilter matches the record only while it still holds status from.
// Documents written without a status read back as pending.
func paymentFilter(oid primitive.ObjectID, from domain.PaymentStatus) bson.M {
	if from == domain.PaymentPending {
		return bson.M{"_id": oid, "payment_status": bson.M{"$in": bson.A{string(from), "", nil}}}
	}
	return bson.M{"_id": oid, "payment_status": string(from)}
}

func paymentUpdate(status domain.PaymentStatus, paymentDate *time.Time, updatedAt time.Time) bson.M {
	set := bson.M{
		"payment_status": string(status),
		"updated_at":     updatedAt.UTC(),
	}
	if paymentDate != nil {
		set["payment_date"] = paymentDate.UTC()
		return bson.M{"$set": set}
	}
	return bson.M{"$set": set, "$unset": bson.M{"payment_date": ""}}
}

// EnsureIndexes creates the per-account chronological index and the status index.
func (r *RecordRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "payment_status", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *RecordRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.MeterRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, storageErr("find records", err)
	}
	defer cur.Close(ctx)

	var docs []recordDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storageErr("decode records", err)
	}

	out := make([]*domain.MeterRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
