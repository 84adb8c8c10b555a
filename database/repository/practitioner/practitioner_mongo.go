package practitionerRepo

import (
	"context"
	"fmt"
	"time"

	"clinicvoice/config"
	"clinicvoice/database"
	"clinicvoice/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPractitionerRepo implements PractitionerRepository using MongoDB.
type MongoPractitionerRepo struct {
	coll *mongo.Collection
}

// NewMongoPractitionerRepo creates a new instance of PractitionerRepository using MongoDB.
func NewMongoPractitionerRepo() PractitionerRepository {
	coll := database.MongoClient.Database(config.AppConfig.DatabaseName).Collection("practitioners")
	repo := &MongoPractitionerRepo{coll: coll}

	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create indexes: %v\n", err)
	}
	return repo
}

func newContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func (r *MongoPractitionerRepo) ensureIndexes() error {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "specialties", Value: 1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Create inserts a new practitioner document.
func (r *MongoPractitionerRepo) Create(practitioner *models.Practitioner) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	now := time.Now()
	practitioner.CreatedAt = now
	practitioner.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, practitioner)
	if err != nil {
		return fmt.Errorf("failed to create practitioner: %w", err)
	}
	return nil
}

// Update modifies an existing practitioner document.
func (r *MongoPractitionerRepo) Update(practitioner *models.Practitioner) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	practitioner.UpdatedAt = time.Now()
	filter := bson.M{"id": practitioner.ID}
	update := bson.M{"$set": practitioner}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update practitioner with id %s: %w", practitioner.ID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("practitioner with id %s not found", practitioner.ID)
	}
	return nil
}

// Delete removes a practitioner document by its ID.
func (r *MongoPractitionerRepo) Delete(id string) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	result, err := r.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete practitioner with id %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("practitioner with id %s not found", id)
	}
	return nil
}

// GetByID retrieves a practitioner by its unique ID.
func (r *MongoPractitionerRepo) GetByID(id string) (*models.Practitioner, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	var practitioner models.Practitioner
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&practitioner); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch practitioner with id %s: %w", id, err)
	}
	return &practitioner, nil
}

// GetAllActive retrieves all active practitioners.
func (r *MongoPractitionerRepo) GetAllActive() ([]models.Practitioner, error) {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{"active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve practitioners: %w", err)
	}
	defer cursor.Close(ctx)

	var practitioners []models.Practitioner
	for cursor.Next(ctx) {
		var p models.Practitioner
		if err := cursor.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode practitioner: %w", err)
		}
		practitioners = append(practitioners, p)
	}
	return practitioners, nil
}
