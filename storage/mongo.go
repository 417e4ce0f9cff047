package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yeremiapane/table-service/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps one document per table in a shared collection, with the
// order history embedded. Writes are compare-and-swap on the version field.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	seed       Seeder
}

func NewMongoStore(ctx context.Context, uri, database, collection string, seed Seeder) (*MongoStore, error) {
	if seed == nil {
		seed = models.DefaultTables
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	s := &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		seed:       seed,
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "number", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create number index: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) GetAll(ctx context.Context) ([]models.Table, error) {
	opts := options.Find().SetSort(bson.D{{Key: "number", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer cursor.Close(ctx)

	var tables []models.Table
	if err := cursor.All(ctx, &tables); err != nil {
		return nil, fmt.Errorf("failed to decode tables: %w", err)
	}
	for i := range tables {
		normalize(&tables[i])
	}
	return tables, nil
}

func (s *MongoStore) GetByNumber(ctx context.Context, number int) (*models.Table, error) {
	return s.findOne(ctx, bson.M{"number": number})
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (*models.Table, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.Table, error) {
	var table models.Table
	err := s.collection.FindOne(ctx, filter).Decode(&table)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	normalize(&table)
	return &table, nil
}

func (s *MongoStore) Save(ctx context.Context, table *models.Table) error {
	next := table.Clone()
	next.Version = table.Version + 1
	next.UpdatedAt = time.Now().UTC()

	res, err := s.collection.ReplaceOne(ctx, versionFilter(table.ID, table.Version), next)
	if err != nil {
		return fmt.Errorf("failed to save table %d: %w", table.Number, err)
	}

	if res.MatchedCount == 0 {
		count, err := s.collection.CountDocuments(ctx, bson.M{"_id": table.ID})
		if err != nil {
			return fmt.Errorf("failed to save table %d: %w", table.Number, err)
		}
		if count > 0 {
			return ErrVersionConflict
		}
		if next.CreatedAt.IsZero() {
			next.CreatedAt = next.UpdatedAt
		}
		if _, err := s.collection.InsertOne(ctx, next); err != nil {
			return fmt.Errorf("failed to insert table %d: %w", table.Number, err)
		}
	}

	table.Version = next.Version
	table.UpdatedAt = next.UpdatedAt
	return nil
}

// ResetAll clears and reseeds the collection. Standalone deployments have
// no multi-document transactions, so the manager's reset barrier is what
// keeps readers from observing the gap.
func (s *MongoStore) ResetAll(ctx context.Context) error {
	if _, err := s.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear tables: %w", err)
	}

	seeded := s.seed()
	if len(seeded) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(seeded))
	for i := range seeded {
		docs = append(docs, seeded[i])
	}
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to seed tables: %w", err)
	}
	return nil
}

func versionFilter(id string, version int64) bson.M {
	return bson.M{"_id": id, "version": version}
}
