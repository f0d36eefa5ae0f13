package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"photoagent/internal/library"
)

const photoColumns = "uri, embedding, location, taken_at, width, height, people, deleted"

// All 按插入顺序返回所有照片（包括软删除的）
// All returns every photo in insertion order, soft-deleted ones included.
func (s *SQLiteStore) All(ctx context.Context) ([]library.Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+photoColumns+" FROM photos ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	var out []library.Record
	for rows.Next() {
		rec, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ByURI(ctx context.Context, uri string) (library.Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+photoColumns+" FROM photos WHERE uri=?", strings.TrimSpace(uri))
	rec, err := scanPhoto(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return library.Record{}, library.ErrNotFound
		}
		return library.Record{}, err
	}
	return rec, nil
}

// Put 插入或更新一张照片；更新时保留原有顺序
// Put upserts a photo. Re-indexing keeps the original position.
func (s *SQLiteStore) Put(ctx context.Context, rec library.Record) error {
	rec.URI = strings.TrimSpace(rec.URI)
	if rec.URI == "" {
		return fmt.Errorf("photo uri is empty")
	}
	takenAt := ""
	if !rec.TakenAt.IsZero() {
		takenAt = rec.TakenAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO photos (uri, embedding, location, taken_at, width, height, people, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			embedding=excluded.embedding,
			location=excluded.location,
			taken_at=excluded.taken_at,
			width=excluded.width,
			height=excluded.height,
			people=excluded.people,
			deleted=excluded.deleted`,
		rec.URI, encodeEmbedding(rec.Embedding), rec.Location, takenAt,
		rec.Width, rec.Height, marshalList(rec.People), boolToInt(rec.Deleted),
	)
	if err != nil {
		return fmt.Errorf("put photo %s: %w", rec.URI, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteByURI(ctx context.Context, uri string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM photos WHERE uri=?", uri); err != nil {
		return fmt.Errorf("delete photo %s: %w", uri, err)
	}
	return nil
}

// SoftDelete 将照片移入回收站 / SoftDelete moves photos to the trash.
func (s *SQLiteStore) SoftDelete(ctx context.Context, uris []string) error {
	return s.setDeleted(ctx, uris, true)
}

// Restore 从回收站恢复照片 / Restore brings photos back from the trash.
func (s *SQLiteStore) Restore(ctx context.Context, uris []string) error {
	return s.setDeleted(ctx, uris, false)
}

func (s *SQLiteStore) setDeleted(ctx context.Context, uris []string, deleted bool) error {
	if len(uris) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "UPDATE photos SET deleted=? WHERE uri=?")
	if err != nil {
		return fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	flag := boolToInt(deleted)
	for _, uri := range uris {
		if _, err := stmt.ExecContext(ctx, flag, uri); err != nil {
			return fmt.Errorf("mark %s: %w", uri, err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (library.Record, error) {
	var (
		rec     library.Record
		blob    []byte
		takenAt string
		people  string
		deleted int
	)
	if err := row.Scan(&rec.URI, &blob, &rec.Location, &takenAt, &rec.Width, &rec.Height, &people, &deleted); err != nil {
		return library.Record{}, err
	}
	rec.Embedding = decodeEmbedding(blob)
	if takenAt != "" {
		if ts, err := time.Parse(time.RFC3339, takenAt); err == nil {
			rec.TakenAt = ts
		}
	}
	if people != "" && people != "[]" {
		_ = json.Unmarshal([]byte(people), &rec.People)
	}
	rec.Deleted = deleted != 0
	return rec, nil
}

// 嵌入向量以 little-endian float32 编码存储
// Embeddings are stored as little-endian float32.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
