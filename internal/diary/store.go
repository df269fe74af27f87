package diary

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// Field names accepted by Store.Update. Anything else is dropped, except
// FieldCropConfig which is routed to UpdateCropConfig.
const (
	FieldURI         = "uri"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldCreatedAt   = "createdAt"
	FieldDuration    = "duration"
	FieldThumbnail   = "thumbnail"
	FieldCropConfig  = "cropConfig"
)

var updatableColumns = []string{
	FieldURI, FieldTitle, FieldDescription, FieldCreatedAt, FieldDuration, FieldThumbnail,
}

// Fields is a partial update keyed by column name.
type Fields map[string]any

// Store is the durable home of Video records.
type Store interface {
	GetAll(ctx context.Context) ([]*Video, error)
	GetCropped(ctx context.Context) ([]*Video, error)
	Get(ctx context.Context, id string) (*Video, error)
	Insert(ctx context.Context, v *Video) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	Update(ctx context.Context, id string, fields Fields) error
	UpdateCropConfig(ctx context.Context, id string, cfg *CropConfig) error
	Count(ctx context.Context) (total, cropped int, err error)
}

type SQLiteStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const videoColumns = "id, uri, title, description, createdAt, duration, thumbnail, cropConfig"

func (s *SQLiteStore) GetAll(ctx context.Context) ([]*Video, error) {
	videos, err := s.query(ctx, "SELECT "+videoColumns+" FROM videos ORDER BY createdAt DESC, id DESC")
	return videos, persistErr("get all", err)
}

func (s *SQLiteStore) GetCropped(ctx context.Context) ([]*Video, error) {
	videos, err := s.query(ctx, "SELECT "+videoColumns+" FROM videos WHERE cropConfig IS NOT NULL ORDER BY createdAt DESC, id DESC")
	return videos, persistErr("get cropped", err)
}

// Get returns nil, nil when no video has the id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Video, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+videoColumns+" FROM videos WHERE id = ?", id)
	v, err := scanVideo(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get", err)
	}
	return v, nil
}

// Insert rejects a duplicate id with ErrDuplicateID.
func (s *SQLiteStore) Insert(ctx context.Context, v *Video) error {
	cropJSON, err := encodeCropConfig(v.CropConfig)
	if err != nil {
		return persistErr("insert", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, v.ID, v.URI, v.Title, nullString(v.Description), v.CreatedAt, v.Duration, v.Thumbnail, cropJSON)
	if err != nil {
		return persistErr("insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("insert", err)
	}
	if n == 0 {
		return persistErr("insert", fmt.Errorf("%w: %s", ErrDuplicateID, v.ID))
	}
	return nil
}

// Delete is idempotent.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM videos WHERE id = ?", id)
	return persistErr("delete", err)
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM videos")
	return persistErr("delete all", err)
}

// Update writes the whitelisted columns present in fields. A FieldCropConfig
// key sets the crop config (*CropConfig or CropConfig) or clears it (nil).
func (s *SQLiteStore) Update(ctx context.Context, id string, fields Fields) error {
	var sets []string
	var args []any
	for _, col := range updatableColumns {
		val, ok := fields[col]
		if !ok {
			continue
		}
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if len(sets) > 0 {
		args = append(args, id)
		query := "UPDATE videos SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return persistErr("update", err)
		}
	}

	raw, ok := fields[FieldCropConfig]
	if !ok {
		return nil
	}
	switch cfg := raw.(type) {
	case nil:
		return s.UpdateCropConfig(ctx, id, nil)
	case *CropConfig:
		return s.UpdateCropConfig(ctx, id, cfg)
	case CropConfig:
		return s.UpdateCropConfig(ctx, id, &cfg)
	default:
		return persistErr("update", fmt.Errorf("%w: cropConfig has type %T", ErrInvalidInput, raw))
	}
}

// UpdateCropConfig serializes cfg into the cropConfig column; nil clears it.
func (s *SQLiteStore) UpdateCropConfig(ctx context.Context, id string, cfg *CropConfig) error {
	cropJSON, err := encodeCropConfig(cfg)
	if err != nil {
		return persistErr("update crop config", err)
	}
	_, err = s.db.ExecContext(ctx, "UPDATE videos SET cropConfig = ? WHERE id = ?", cropJSON, id)
	return persistErr("update crop config", err)
}

func (s *SQLiteStore) Count(ctx context.Context) (total, cropped int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(cropConfig) FROM videos
	`).Scan(&total, &cropped)
	return total, cropped, persistErr("count", err)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]*Video, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := []*Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(row scanner) (*Video, error) {
	var v Video
	var description, cropConfig sql.NullString

	err := row.Scan(&v.ID, &v.URI, &v.Title, &description, &v.CreatedAt, &v.Duration, &v.Thumbnail, &cropConfig)
	if err != nil {
		return nil, err
	}
	v.Description = description.String

	// Most rows carry no crop config; only decode when present.
	if cropConfig.Valid && cropConfig.String != "" {
		var cfg CropConfig
		if err := json.Unmarshal([]byte(cropConfig.String), &cfg); err != nil {
			return nil, fmt.Errorf("decode cropConfig for %s: %w", v.ID, err)
		}
		v.CropConfig = &cfg
	}
	return &v, nil
}

func encodeCropConfig(cfg *CropConfig) (sql.NullString, error) {
	if cfg == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode cropConfig: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
