package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/Badsnus/mediashare-bot/internal/domain/entity"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const journalCollection = "entitlement_journal"

// Journal keeps the lifecycle history of entitlements (warnings, expirations, renewals)
type Journal struct {
	collection *mongo.Collection
}

// Connect opens the database and returns a journal backed by it.
func Connect(ctx context.Context, url, database string) (*Journal, func(context.Context) error, error) {
	client, err := mongo.Connect(
		options.Client().
			ApplyURI(url).
			SetConnectTimeout(10 * time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return NewJournal(client.Database(database)), client.Disconnect, nil
}

func NewJournal(db *mongo.Database) *Journal {
	return &Journal{
		collection: db.Collection(journalCollection),
	}
}

func (j *Journal) Record(ctx context.Context, entry entity.JournalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	_, err := j.collection.InsertOne(ctx, entry)
	return err
}

// History returns the latest entries of the user, newest first.
func (j *Journal) History(ctx context.Context, userID int64, limit int64) ([]entity.JournalEntry, error) {
	cursor, err := j.collection.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "at", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}

	var entries []entity.JournalEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// NopJournal is used when no mongo url is configured
type NopJournal struct{}

func (NopJournal) Record(context.Context, entity.JournalEntry) error { return nil }

func (NopJournal) History(context.Context, int64, int64) ([]entity.JournalEntry, error) {
	return nil, nil
}
