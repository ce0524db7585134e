package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/blob"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoMetadata is the metadata document; the payload lives in object
// storage under the record id.
type mongoMetadata struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Kind        string    `bson:"type"`
	ContentType string    `bson:"content_type"`
	Size        int64     `bson:"size"`
	Pages       int       `bson:"pages"`
	Checksum    string    `bson:"checksum,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
	Status      Status    `bson:"status"`
	RemoteURL   string    `bson:"remote_url,omitempty"`
	ObjectKey   string    `bson:"object_key"`
}

type mongoStore struct {
	collection *mongo.Collection
	payloads   blob.ObjectStorage
	disconnect func(context.Context) error
	now        func() time.Time
}

// OpenMongo connects to uri and keeps metadata in database.collection.
func OpenMongo(ctx context.Context, uri, database, collection string, payloads blob.ObjectStorage) (Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := NewMongo(client.Database(database).Collection(collection), payloads)
	s.(*mongoStore).disconnect = client.Disconnect
	return s, nil
}

func NewMongo(collection *mongo.Collection, payloads blob.ObjectStorage) Store {
	return &mongoStore{
		collection: collection,
		payloads:   payloads,
		now:        time.Now,
	}
}

func (s *mongoStore) Put(ctx context.Context, file File) (Record, error) {
	rec, err := newRecord(file, s.now())
	if err != nil {
		return Record{}, err
	}

	saveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.payloads.Save(saveCtx, rec.ID, rec.ContentType, bytes.NewReader(file.Data), rec.Size); err != nil {
		return Record{}, fmt.Errorf("save payload: %w", err)
	}

	meta := toMongo(rec)
	insertCtx, cancelInsert := context.WithTimeout(ctx, 10*time.Second)
	defer cancelInsert()
	if _, err := s.collection.InsertOne(insertCtx, meta); err != nil {
		_ = s.payloads.Delete(context.Background(), rec.ID)
		return Record{}, fmt.Errorf("insert document: %w", err)
	}
	return rec, nil
}

func (s *mongoStore) ListAll(ctx context.Context) ([]Record, error) {
	cur, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer cur.Close(ctx)

	var recs []Record
	for cur.Next(ctx) {
		var meta mongoMetadata
		if err := cur.Decode(&meta); err != nil {
			return nil, err
		}
		recs = append(recs, meta.record())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *mongoStore) GetPayload(ctx context.Context, id string) ([]byte, bool, error) {
	var meta mongoMetadata
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&meta); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("find document: %w", err)
	}

	reader, _, err := s.payloads.Get(ctx, meta.ObjectKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get payload: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, err
	}
	return content, true, nil
}

// Delete removes the metadata before the payload; a record without metadata
// is never listed or served.
func (s *mongoStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	var meta mongoMetadata
	err := s.collection.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&meta)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return fmt.Errorf("delete document: %w", err)
	}
	if err := s.payloads.Delete(ctx, meta.ObjectKey); err != nil {
		return fmt.Errorf("delete payload: %w", err)
	}
	return nil
}

func (s *mongoStore) UpdateStatus(ctx context.Context, id string, status Status, remoteURL string) error {
	if !status.Valid() {
		return ErrBadStatus
	}
	set := bson.M{"status": status}
	if remoteURL != "" {
		set["remote_url"] = remoteURL
	}
	if _, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (s *mongoStore) Close() error {
	if s.disconnect == nil {
		return nil
	}
	return s.disconnect(context.Background())
}

func toMongo(rec Record) mongoMetadata {
	return mongoMetadata{
		ID:          rec.ID,
		Name:        rec.Name,
		Kind:        rec.Kind,
		ContentType: rec.ContentType,
		Size:        rec.Size,
		Pages:       rec.Pages,
		Checksum:    rec.Checksum,
		CreatedAt:   rec.CreatedAt,
		Status:      rec.Status,
		RemoteURL:   rec.RemoteURL,
		ObjectKey:   rec.ID,
	}
}

func (m mongoMetadata) record() Record {
	return Record{
		ID:          m.ID,
		Name:        m.Name,
		Kind:        m.Kind,
		ContentType: m.ContentType,
		Size:        m.Size,
		Pages:       m.Pages,
		Checksum:    m.Checksum,
		CreatedAt:   m.CreatedAt,
		Status:      m.Status,
		RemoteURL:   m.RemoteURL,
	}
}
