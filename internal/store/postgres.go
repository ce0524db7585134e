package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// documentRow is the single documents table. Metadata and payload live in the
// same row so every write and delete is one statement.
type documentRow struct {
	ID          string    `gorm:"type:text;primaryKey"`
	Name        string    `gorm:"type:text;not null"`
	Kind        string    `gorm:"type:text;not null;default:'PDF'"`
	ContentType string    `gorm:"type:text"`
	Size        int64     `gorm:"not null"`
	Pages       int       `gorm:"not null;default:0"`
	Checksum    string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null;index"`
	Status      Status    `gorm:"type:text;not null;default:'completed';check:status IN ('processing', 'completed', 'error')"`
	RemoteURL   string    `gorm:"type:text"`
	Payload     []byte    `gorm:"type:bytea"`
}

func (documentRow) TableName() string {
	return "documents"
}

type postgresStore struct {
	db  *gorm.DB
	now func() time.Time
}

func OpenPostgres(dsn string) (Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgres(db)
}

// NewPostgres migrates the documents table on an existing connection.
func NewPostgres(db *gorm.DB) (Store, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	return &postgresStore{db: db, now: time.Now}, nil
}

func (s *postgresStore) Put(ctx context.Context, file File) (Record, error) {
	rec, err := newRecord(file, s.now())
	if err != nil {
		return Record{}, err
	}
	row := toRow(rec)
	row.Payload = file.Data
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Record{}, fmt.Errorf("insert document: %w", err)
	}
	return rec, nil
}

func (s *postgresStore) ListAll(ctx context.Context) ([]Record, error) {
	var rows []documentRow
	if err := s.db.WithContext(ctx).Omit("payload").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	recs := make([]Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.record())
	}
	return recs, nil
}

func (s *postgresStore) GetPayload(ctx context.Context, id string) ([]byte, bool, error) {
	var row documentRow
	err := s.db.WithContext(ctx).Select("id", "payload").Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get payload: %w", err)
	}
	return row.Payload, true, nil
}

func (s *postgresStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&documentRow{}).Error; err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *postgresStore) UpdateStatus(ctx context.Context, id string, status Status, remoteURL string) error {
	if !status.Valid() {
		return ErrBadStatus
	}
	updates := map[string]interface{}{"status": status}
	if remoteURL != "" {
		updates["remote_url"] = remoteURL
	}
	if err := s.db.WithContext(ctx).Model(&documentRow{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (s *postgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(rec Record) documentRow {
	return documentRow{
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
	}
}

func (r documentRow) record() Record {
	return Record{
		ID:          r.ID,
		Name:        r.Name,
		Kind:        r.Kind,
		ContentType: r.ContentType,
		Size:        r.Size,
		Pages:       r.Pages,
		Checksum:    r.Checksum,
		CreatedAt:   r.CreatedAt,
		Status:      r.Status,
		RemoteURL:   r.RemoteURL,
	}
}
