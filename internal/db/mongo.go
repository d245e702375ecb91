package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cnsr/cta-inspection/internal/models"
)

const (
	InspectionsCollection = "fiches"
	UsersCollection       = "users"
)

// ConnectMongo connects to MongoDB and pings it within timeout.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the API queries rely on.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(InspectionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "immatriculation", Value: 1}}},
		{Keys: bson.D{{Key: "statut_validation", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "cta_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create inspection indexes: %w", err)
	}
	_, err = database.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

// MongoInspectionCollection stores inspection records ("fiches").
type MongoInspectionCollection struct {
	Collection *mongo.Collection
}

// InsertInspection stores a new record. The server owns the id, the
// creation time and the initial status.
func (c *MongoInspectionCollection) InsertInspection(ctx context.Context, rec models.InspectionRecord) (models.InspectionRecord, error) {
	if c.Collection == nil {
		return rec, ErrNilCollection
	}
	rec.ID = primitive.NewObjectID().Hex()
	rec.Status = models.StatusPending
	rec.ReviewComment = ""
	rec.ReviewedBy = ""
	rec.ReviewedAt = nil
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if _, err := c.Collection.InsertOne(ctx, rec); err != nil {
		return rec, err
	}
	log.WithFields(log.Fields{
		"id":              rec.ID,
		"cta_id":          rec.CTAID,
		"immatriculation": rec.LicensePlate,
		"photo_size":      len(rec.PhotoBase64),
	}).Info("Inspection record stored")
	return rec, nil
}

// FindInspections returns records matching filter, newest first.
func (c *MongoInspectionCollection) FindInspections(ctx context.Context, filter InspectionFilter) ([]models.InspectionRecord, error) {
	q := bson.M{}
	if filter.Status != "" {
		q["statut_validation"] = filter.Status
	}
	if filter.CTAID != "" {
		q["cta_id"] = filter.CTAID
	}
	if filter.TechnicianID != "" {
		q["technicien_id"] = filter.TechnicianID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	return c.find(ctx, q, opts)
}

// FindInspectionByID finds a record by its id.
func (c *MongoInspectionCollection) FindInspectionByID(ctx context.Context, id string) (*models.InspectionRecord, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	var rec models.InspectionRecord
	err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByPlate matches plate as a case-insensitive substring.
func (c *MongoInspectionCollection) FindByPlate(ctx context.Context, plate string) ([]models.InspectionRecord, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return []models.InspectionRecord{}, nil
	}
	q := bson.M{"immatriculation": primitive.Regex{Pattern: regexp.QuoteMeta(plate), Options: "i"}}
	return c.find(ctx, q, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// UpdateStatus applies a review decision. The update only matches a record
// that is still pending, so two supervisors cannot both decide.
func (c *MongoInspectionCollection) UpdateStatus(ctx context.Context, id string, update StatusUpdate) (*models.InspectionRecord, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	if !models.CanTransition(models.StatusPending, update.Status) {
		return nil, models.ErrInvalidTransition
	}
	if update.ReviewedAt.IsZero() {
		update.ReviewedAt = time.Now().UTC()
	}
	set := bson.M{
		"statut_validation": update.Status,
		"valide_par":        update.ReviewedBy,
		"date_validation":   update.ReviewedAt,
	}
	if update.Comment != "" {
		set["commentaires"] = update.Comment
	}

	var rec models.InspectionRecord
	err := c.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "statut_validation": models.StatusPending},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := c.Collection.CountDocuments(ctx, bson.M{"_id": id})
		if cerr != nil {
			return nil, cerr
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *MongoInspectionCollection) find(ctx context.Context, q bson.M, opts *options.FindOptions) ([]models.InspectionRecord, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	cursor, err := c.Collection.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []models.InspectionRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
