package repositories

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/truesuntrading/warranty_backend/models"
)

const requestPageSize = 20

// RequestRepository persists verification requests in the requests
// collection.
type RequestRepository struct {
	collection *mongo.Collection
}

func NewRequestRepository(db *mongo.Database) *RequestRepository {
	return &RequestRepository{
		collection: db.Collection("requests"),
	}
}

// Create inserts a new pending request. The creation timestamp is assigned
// here, on the server.
func (r *RequestRepository) Create(ctx context.Context, req *models.VerificationRequest) (*models.VerificationRequest, error) {
	req.ID = primitive.NewObjectID()
	req.Status = models.StatusPending
	req.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to insert request: %w", err)
	}
	return req, nil
}

// Get fetches a single request by its hex id.
func (r *RequestRepository) Get(ctx context.Context, id string) (*models.VerificationRequest, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid request id: %w", err)
	}

	var req models.VerificationRequest
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&req)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to find request: %w", err)
	}
	return &req, nil
}

// LoadPage returns one page of requests filtered by status (use "all" to
// disable the filter), newest first, resuming after the opaque cursor.
func (r *RequestRepository) LoadPage(ctx context.Context, status, cursor string) ([]models.VerificationRequest, string, bool, error) {
	filter := bson.M{}
	if status != "" && status != "all" {
		filter["status"] = status
	}

	if cursor != "" {
		createdAt, lastID, err := DecodePageCursor(cursor)
		if err != nil {
			return nil, "", false, err
		}
		filter["$or"] = bson.A{
			bson.M{"createdAt": bson.M{"$lt": createdAt}},
			bson.M{"createdAt": createdAt, "_id": bson.M{"$lt": lastID}},
		}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(requestPageSize)

	mongoCursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to query requests: %w", err)
	}
	defer mongoCursor.Close(ctx)

	var requests []models.VerificationRequest
	if err = mongoCursor.All(ctx, &requests); err != nil {
		return nil, "", false, fmt.Errorf("failed to decode requests: %w", err)
	}

	nextCursor := ""
	if len(requests) > 0 {
		last := requests[len(requests)-1]
		nextCursor = EncodePageCursor(last.CreatedAt, last.ID)
	}

	return requests, nextCursor, len(requests) == requestPageSize, nil
}

// SetStatus atomically moves a request from one status to another. It
// returns false when the request exists but is no longer in the expected
// source status, which callers treat as an already-processed signal.
func (r *RequestRepository) SetStatus(ctx context.Context, id, from, to string, set map[string]interface{}) (bool, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("invalid request id: %w", err)
	}

	update := bson.M{"status": to}
	for key, value := range set {
		update[key] = value
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "status": from},
		bson.M{"$set": update},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update request status: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

// UpdateCertificateFields sets the admin-entered certificate and contact
// fields, leaving status untouched. Empty fields in the update are skipped.
func (r *RequestRepository) UpdateCertificateFields(ctx context.Context, id string, fields models.CertificateFieldsRequest) (*models.VerificationRequest, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid request id: %w", err)
	}

	set := bson.M{"updatedAt": time.Now()}
	if fields.WarrantyCertificateNo != "" {
		set["warrantyCertificateNo"] = fields.WarrantyCertificateNo
	}
	if fields.PremierInvoiceNo != "" {
		set["premierInvoiceNo"] = fields.PremierInvoiceNo
	}
	if fields.CertificateIssueDate != "" {
		set["certificateIssueDate"] = fields.CertificateIssueDate
	}
	if fields.ProductDescription != "" {
		set["productDescription"] = fields.ProductDescription
	}
	if fields.ContactPerson != "" {
		set["contactPerson"] = fields.ContactPerson
	}
	if fields.ContactNo != "" {
		set["contactNo"] = fields.ContactNo
	}
	if fields.Email != "" {
		set["email"] = fields.Email
	}

	var updated models.VerificationRequest
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update certificate fields: %w", err)
	}
	return &updated, nil
}

// EncodePageCursor encodes the sort position of the last item of a page into
// an opaque cursor.
func EncodePageCursor(createdAt time.Time, id primitive.ObjectID) string {
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + id.Hex()
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodePageCursor reverses EncodePageCursor.
func DecodePageCursor(cursor string) (time.Time, primitive.ObjectID, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, primitive.NilObjectID, fmt.Errorf("invalid cursor: %w", err)
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, primitive.NilObjectID, fmt.Errorf("invalid cursor format")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, primitive.NilObjectID, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	id, err := primitive.ObjectIDFromHex(parts[1])
	if err != nil {
		return time.Time{}, primitive.NilObjectID, fmt.Errorf("invalid cursor id: %w", err)
	}
	return createdAt, id, nil
}
