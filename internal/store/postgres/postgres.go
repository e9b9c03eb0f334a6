// Package postgres implements internal/store.Store against a real
// Postgres+pgvector database using github.com/jackc/pgx/v5, following the
// pgxpool wiring pattern used across the retrieval pack (see DESIGN.md).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

// postgresUniqueViolation is the driver error code Postgres raises on a
// unique constraint violation.
const postgresUniqueViolation = "23505"

// Store wraps a pgxpool.Pool and implements store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open creates the pool eagerly — a DB unreachable at startup is a fatal
// condition per spec.md §4.1's ErrorKind taxonomy, not something deferred
// to first use.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, engine.Fatal(fmt.Errorf("postgres: connect: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, engine.Fatal(fmt.Errorf("postgres: ping: %w", err))
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func wrapUnique(constraint string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolation {
		return &store.ErrUniqueViolation{Constraint: constraint, Err: err}
	}
	return err
}

// --- DocumentStore ---

func (s *Store) CreateDocument(ctx context.Context, doc *engine.Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, file_hash, filename, file_path, size, page_count, manufacturer, model,
			document_type, language, version, status, search_ready, thumbnail_url, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (file_hash) DO NOTHING`,
		doc.ID, doc.FileHash, doc.Filename, doc.FilePath, doc.Size, doc.PageCount, doc.Manufacturer, doc.Model,
		doc.DocumentType, doc.Language, doc.Version, doc.Status, doc.SearchReady, doc.ThumbnailURL, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return engine.Transient(wrapUnique("documents_file_hash_key", err))
	}
	return nil
}

func (s *Store) FindByFileHash(ctx context.Context, fileHash string) (*engine.Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, file_hash, filename, file_path, size, page_count, manufacturer, model,
			document_type, language, version, status, search_ready, thumbnail_url, created_at, updated_at
		FROM documents WHERE file_hash=$1`, fileHash)
	return scanDocument(row)
}

func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*engine.Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, file_hash, filename, file_path, size, page_count, manufacturer, model,
			document_type, language, version, status, search_ready, thumbnail_url, created_at, updated_at
		FROM documents WHERE id=$1`, id)
	return scanDocument(row)
}

func scanDocument(row pgx.Row) (*engine.Document, error) {
	d := &engine.Document{}
	err := row.Scan(&d.ID, &d.FileHash, &d.Filename, &d.FilePath, &d.Size, &d.PageCount, &d.Manufacturer, &d.Model,
		&d.DocumentType, &d.Language, &d.Version, &d.Status, &d.SearchReady, &d.ThumbnailURL, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, engine.Transient(err)
	}
	return d, nil
}

func (s *Store) UpdateDocument(ctx context.Context, doc *engine.Document) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE documents SET manufacturer=$2, model=$3, document_type=$4, language=$5, version=$6,
			status=$7, search_ready=$8, updated_at=$9 WHERE id=$1`,
		doc.ID, doc.Manufacturer, doc.Model, doc.DocumentType, doc.Language, doc.Version,
		doc.Status, doc.SearchReady, time.Now().UTC())
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

func (s *Store) SetSearchReady(ctx context.Context, id uuid.UUID, ready bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE documents SET search_ready=$2, updated_at=now() WHERE id=$1`, id, ready)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

func (s *Store) SetThumbnail(ctx context.Context, id uuid.UUID, thumbnailURL string) error {
	_, err := s.pool.Exec(ctx, `UPDATE documents SET thumbnail_url=$2, updated_at=now() WHERE id=$1`, id, thumbnailURL)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

// --- StageTrackingStore ---

func (s *Store) GetCompletionMarker(ctx context.Context, documentID uuid.UUID, stage string) (*engine.StageCompletionMarker, error) {
	var m engine.StageCompletionMarker
	var metaRaw []byte
	row := s.pool.QueryRow(ctx, `
		SELECT document_id, stage_name, completed_at, data_hash, metadata
		FROM stage_completion_markers WHERE document_id=$1 AND stage_name=$2`, documentID, stage)
	err := row.Scan(&m.DocumentID, &m.StageName, &m.CompletedAt, &m.DataHash, &metaRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, engine.Transient(err)
	}
	if len(metaRaw) > 0 {
		_ = json.Unmarshal(metaRaw, &m.Metadata)
	}
	return &m, nil
}

func (s *Store) PutCompletionMarker(ctx context.Context, m *engine.StageCompletionMarker) error {
	metaRaw, _ := json.Marshal(m.Metadata)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO stage_completion_markers (document_id, stage_name, completed_at, data_hash, metadata)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (document_id, stage_name) DO UPDATE SET completed_at=$3, data_hash=$4, metadata=$5`,
		m.DocumentID, m.StageName, m.CompletedAt, m.DataHash, metaRaw)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

func (s *Store) DeleteCompletionMarker(ctx context.Context, documentID uuid.UUID, stage string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM stage_completion_markers WHERE document_id=$1 AND stage_name=$2`, documentID, stage)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

func (s *Store) GetStageStatus(ctx context.Context, documentID uuid.UUID, stage string) (*engine.StageStatusRow, error) {
	var r engine.StageStatusRow
	row := s.pool.QueryRow(ctx, `
		SELECT document_id, stage_name, status, started_at, finished_at, error, progress,
			next_attempt_at, retry_attempt, correlation_id
		FROM stage_status WHERE document_id=$1 AND stage_name=$2`, documentID, stage)
	err := row.Scan(&r.DocumentID, &r.StageName, &r.Status, &r.StartedAt, &r.FinishedAt, &r.Error, &r.Progress,
		&r.NextAttemptAt, &r.RetryAttempt, &r.CorrelationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, engine.Transient(err)
	}
	return &r, nil
}

func (s *Store) GetAllStageStatus(ctx context.Context, documentID uuid.UUID) (map[string]*engine.StageStatusRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT document_id, stage_name, status, started_at, finished_at, error, progress,
			next_attempt_at, retry_attempt, correlation_id
		FROM stage_status WHERE document_id=$1`, documentID)
	if err != nil {
		return nil, engine.Transient(err)
	}
	defer rows.Close()
	out := make(map[string]*engine.StageStatusRow)
	for rows.Next() {
		var r engine.StageStatusRow
		if err := rows.Scan(&r.DocumentID, &r.StageName, &r.Status, &r.StartedAt, &r.FinishedAt, &r.Error, &r.Progress,
			&r.NextAttemptAt, &r.RetryAttempt, &r.CorrelationID); err != nil {
			return nil, engine.Transient(err)
		}
		out[r.StageName] = &r
	}
	return out, nil
}

func (s *Store) PutStageStatus(ctx context.Context, row *engine.StageStatusRow) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO stage_status (document_id, stage_name, status, started_at, finished_at, error, progress,
			next_attempt_at, retry_attempt, correlation_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (document_id, stage_name) DO UPDATE SET
			status=$3, started_at=$4, finished_at=$5, error=$6, progress=$7,
			next_attempt_at=$8, retry_attempt=$9, correlation_id=$10`,
		row.DocumentID, row.StageName, row.Status, row.StartedAt, row.FinishedAt, row.Error, row.Progress,
		row.NextAttemptAt, row.RetryAttempt, row.CorrelationID)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

func (s *Store) DueStageStatus(ctx context.Context, before time.Time) (*engine.StageStatusRow, error) {
	var r engine.StageStatusRow
	row := s.pool.QueryRow(ctx, `
		SELECT document_id, stage_name, status, started_at, finished_at, error, progress,
			next_attempt_at, retry_attempt, correlation_id
		FROM stage_status
		WHERE status=$1 AND next_attempt_at IS NOT NULL AND next_attempt_at <= $2
		ORDER BY next_attempt_at ASC LIMIT 1`, engine.StatusInProgress, before)
	err := row.Scan(&r.DocumentID, &r.StageName, &r.Status, &r.StartedAt, &r.FinishedAt, &r.Error, &r.Progress,
		&r.NextAttemptAt, &r.RetryAttempt, &r.CorrelationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, engine.Transient(err)
	}
	return &r, nil
}

func (s *Store) StuckStageStatus(ctx context.Context, olderThan time.Time) ([]*engine.StageStatusRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT document_id, stage_name, status, started_at, finished_at, error, progress,
			next_attempt_at, retry_attempt, correlation_id
		FROM stage_status
		WHERE status=$1 AND next_attempt_at IS NULL AND started_at <= $2`,
		engine.StatusInProgress, olderThan)
	if err != nil {
		return nil, engine.Transient(err)
	}
	defer rows.Close()

	var out []*engine.StageStatusRow
	for rows.Next() {
		var r engine.StageStatusRow
		if err := rows.Scan(&r.DocumentID, &r.StageName, &r.Status, &r.StartedAt, &r.FinishedAt, &r.Error, &r.Progress,
			&r.NextAttemptAt, &r.RetryAttempt, &r.CorrelationID); err != nil {
			return nil, engine.Transient(err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, engine.Transient(err)
	}
	return out, nil
}

// --- QueueStore ---

func (s *Store) Enqueue(ctx context.Context, item *engine.ProcessingQueueItem) error {
	payload, _ := json.Marshal(item.Payload)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO processing_queue (id, document_id, stage, artifact_type, status, payload)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		item.ID, item.DocumentID, item.Stage, item.ArtifactType, item.Status, payload)
	if err != nil {
		return engine.Permanent(err)
	}
	return nil
}

func (s *Store) PendingItems(ctx context.Context, documentID uuid.UUID, stage string) ([]*engine.ProcessingQueueItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, stage, artifact_type, status, payload
		FROM processing_queue WHERE document_id=$1 AND stage=$2 AND status=$3`,
		documentID, stage, engine.StatusPending)
	if err != nil {
		return nil, engine.Transient(err)
	}
	defer rows.Close()
	var out []*engine.ProcessingQueueItem
	for rows.Next() {
		item := &engine.ProcessingQueueItem{}
		var payload []byte
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.Stage, &item.ArtifactType, &item.Status, &payload); err != nil {
			return nil, engine.Transient(err)
		}
		_ = json.Unmarshal(payload, &item.Payload)
		out = append(out, item)
	}
	return out, nil
}

func (s *Store) CompleteItem(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM processing_queue WHERE id=$1`, id)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

func (s *Store) UpdatePayload(ctx context.Context, id uuid.UUID, payload engine.QueuePayload) error {
	encoded, _ := json.Marshal(payload)
	_, err := s.pool.Exec(ctx, `UPDATE processing_queue SET payload=$2 WHERE id=$1`, id, encoded)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

// --- ContentStore ---

func (s *Store) InsertChunks(ctx context.Context, chunks []*engine.Chunk) error {
	batch := &pgx.Batch{}
	for _, c := range chunks {
		meta, _ := json.Marshal(c.Metadata)
		batch.Queue(`
			INSERT INTO chunks (id, document_id, chunk_index, text, fingerprint, page_start, page_end, chunk_type, metadata)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (document_id, fingerprint) DO NOTHING`,
			c.ID, c.DocumentID, c.ChunkIndex, c.Text, c.Fingerprint, c.PageStart, c.PageEnd, c.ChunkType, meta)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			return engine.Transient(err)
		}
	}
	return nil
}

func (s *Store) GetChunks(ctx context.Context, documentID uuid.UUID) ([]*engine.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, text, fingerprint, page_start, page_end, chunk_type, metadata
		FROM chunks WHERE document_id=$1 ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, engine.Transient(err)
	}
	defer rows.Close()
	var out []*engine.Chunk
	for rows.Next() {
		c := &engine.Chunk{}
		var meta []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.Fingerprint, &c.PageStart, &c.PageEnd, &c.ChunkType, &meta); err != nil {
			return nil, engine.Transient(err)
		}
		_ = json.Unmarshal(meta, &c.Metadata)
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) ChunkExistsByFingerprint(ctx context.Context, documentID uuid.UUID, fingerprint string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT id FROM chunks WHERE document_id=$1 AND fingerprint=$2`, documentID, fingerprint).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, engine.Transient(err)
	}
	return id, true, nil
}

func (s *Store) InsertTable(ctx context.Context, t *engine.StructuredTable) error {
	rows, _ := json.Marshal(t.Rows)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO structured_tables (id, document_id, page_number, markdown, rows, cols, bbox, context_text)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.DocumentID, t.PageNumber, t.Markdown, rows, t.Cols, bboxJSON(t.BBox), t.ContextText)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

func (s *Store) GetTables(ctx context.Context, documentID uuid.UUID) ([]*engine.StructuredTable, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, page_number, markdown, rows, cols, bbox, context_text
		FROM structured_tables WHERE document_id=$1 ORDER BY page_number`, documentID)
	if err != nil {
		return nil, engine.Transient(err)
	}
	defer rows.Close()
	var out []*engine.StructuredTable
	for rows.Next() {
		t := &engine.StructuredTable{}
		var rawRows, bbox []byte
		if err := rows.Scan(&t.ID, &t.DocumentID, &t.PageNumber, &t.Markdown, &rawRows, &t.Cols, &bbox, &t.ContextText); err != nil {
			return nil, engine.Transient(err)
		}
		_ = json.Unmarshal(rawRows, &t.Rows)
		if len(bbox) > 0 {
			t.BBox = &engine.BBox{}
			_ = json.Unmarshal(bbox, t.BBox)
		}
		out = append(out, t)
	}
	return out, nil
}

func bboxJSON(b *engine.BBox) []byte {
	if b == nil {
		return nil
	}
	out, _ := json.Marshal(b)
	return out
}

func (s *Store) UpsertImage(ctx context.Context, img *engine.Image) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO images (id, document_id, storage_url, filename, page_number, bbox, image_type, file_hash,
			context_caption, related_error_codes, related_products, svg_storage_url, has_png_derivative)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (document_id, file_hash) DO UPDATE SET storage_url=$3, has_png_derivative=$13`,
		img.ID, img.DocumentID, img.StorageURL, img.Filename, img.PageNumber, bboxJSON(img.BBox), img.ImageType,
		img.FileHash, img.ContextCaption, img.RelatedErrorCodes, img.RelatedProducts, img.SVGStorageURL, img.HasPNGDerivative)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

func (s *Store) UpsertLink(ctx context.Context, l *engine.Link) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO links (id, document_id, url, page_number, context_description, related_error_codes, related_products)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (document_id, url) DO NOTHING`,
		l.ID, l.DocumentID, l.URL, l.PageNumber, l.ContextDescription, l.RelatedErrorCodes, l.RelatedProducts)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

func (s *Store) UpsertVideo(ctx context.Context, v *engine.Video) error {
	var youtubeID *string
	_, err := s.pool.Exec(ctx, `
		INSERT INTO videos (id, document_id, url, page_number, platform, title, description,
			thumbnail_url, enrichment_error, enriched_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (platform, youtube_id) WHERE youtube_id IS NOT NULL DO NOTHING`,
		v.ID, v.DocumentID, v.URL, v.PageNumber, v.Platform, v.Title, v.Description,
		v.ThumbnailURL, v.EnrichmentError, v.EnrichedAt)
	_ = youtubeID
	if err != nil {
		// videos without a youtube_id fall back to the (document_id, url) path,
		// per spec.md §4.10's alternate uniqueness rule.
		_, err2 := s.pool.Exec(ctx, `
			INSERT INTO videos (id, document_id, url, page_number, platform, title, description, thumbnail_url)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (document_id, url) DO NOTHING`,
			v.ID, v.DocumentID, v.URL, v.PageNumber, v.Platform, v.Title, v.Description, v.ThumbnailURL)
		if err2 != nil {
			return engine.Transient(err2)
		}
	}
	return nil
}

func (s *Store) CountChunks(ctx context.Context, documentID uuid.UUID) (int, error) {
	return s.countWhere(ctx, "chunks", documentID)
}
func (s *Store) CountEmbeddings(ctx context.Context, documentID uuid.UUID) (int, error) {
	return s.countWhere(ctx, "unified_embeddings", documentID)
}
func (s *Store) CountLinks(ctx context.Context, documentID uuid.UUID) (int, error) {
	return s.countWhere(ctx, "links", documentID)
}
func (s *Store) CountVideos(ctx context.Context, documentID uuid.UUID) (int, error) {
	return s.countWhere(ctx, "videos", documentID)
}

func (s *Store) countWhere(ctx context.Context, table string, documentID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s WHERE document_id=$1`, table), documentID).Scan(&n)
	if err != nil {
		return 0, engine.Transient(err)
	}
	return n, nil
}

// --- GraphStore ---

func (s *Store) UpsertManufacturer(ctx context.Context, name string) (*engine.Manufacturer, error) {
	m := &engine.Manufacturer{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO manufacturers (id, name) VALUES (gen_random_uuid(), $1)
		ON CONFLICT (name) DO UPDATE SET name=$1
		RETURNING id, name`, name).Scan(&m.ID, &m.Name)
	if err != nil {
		return nil, engine.Transient(err)
	}
	return m, nil
}

func (s *Store) UpsertProduct(ctx context.Context, p *engine.Product) (*engine.Product, error) {
	out := &engine.Product{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (id, manufacturer_id, model, series_id)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (manufacturer_id, model) DO UPDATE SET
			series_id = COALESCE(products.series_id, $4)
		RETURNING id, manufacturer_id, model, series_id`,
		p.ID, p.ManufacturerID, p.Model, p.SeriesID).
		Scan(&out.ID, &out.ManufacturerID, &out.Model, &out.SeriesID)
	if err != nil {
		return nil, engine.Transient(err)
	}
	return out, nil
}

func (s *Store) CreateProductSeries(ctx context.Context, ps *engine.ProductSeries) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO product_series (id, manufacturer_id, series_name, model_pattern)
		VALUES ($1,$2,$3,$4)`, ps.ID, ps.ManufacturerID, ps.SeriesName, ps.ModelPattern)
	if err != nil {
		return wrapUnique("product_series_manufacturer_id_series_name_model_pattern_key", err)
	}
	return nil
}

func (s *Store) FindProductSeries(ctx context.Context, manufacturerID uuid.UUID, seriesName, modelPattern string) (*engine.ProductSeries, error) {
	ps := &engine.ProductSeries{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, manufacturer_id, series_name, model_pattern FROM product_series
		WHERE manufacturer_id=$1 AND series_name=$2 AND model_pattern=$3`,
		manufacturerID, seriesName, modelPattern).Scan(&ps.ID, &ps.ManufacturerID, &ps.SeriesName, &ps.ModelPattern)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, engine.Transient(err)
	}
	return ps, nil
}

func (s *Store) LinkProductToSeries(ctx context.Context, productID, seriesID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE products SET series_id=$2 WHERE id=$1`, productID, seriesID)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

func (s *Store) UpsertPart(ctx context.Context, p *engine.Part) (*engine.Part, error) {
	out := &engine.Part{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO parts_catalog (id, part_number, manufacturer_id, name, description, category)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (part_number, manufacturer_id) DO UPDATE SET
			description = CASE WHEN length($5) > length(parts_catalog.description) THEN $5 ELSE parts_catalog.description END,
			name = COALESCE(parts_catalog.name, $4)
		RETURNING id, part_number, manufacturer_id, name, description, category`,
		p.ID, p.PartNumber, p.ManufacturerID, p.Name, p.Description, p.Category).
		Scan(&out.ID, &out.PartNumber, &out.ManufacturerID, &out.Name, &out.Description, &out.Category)
	if err != nil {
		return nil, engine.Transient(err)
	}
	return out, nil
}

func (s *Store) InsertErrorCode(ctx context.Context, ec *engine.ErrorCode) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO error_codes (id, document_id, chunk_id, code, description, solution, page_number,
			confidence, severity, extraction_method, requires_technician, requires_parts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		ec.ID, ec.DocumentID, ec.ChunkID, ec.Code, ec.Description, ec.Solution, ec.PageNumber,
		ec.Confidence, ec.Severity, ec.ExtractionMethod, ec.RequiresTechnician, ec.RequiresParts)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

func (s *Store) GetErrorCodes(ctx context.Context, documentID uuid.UUID) ([]*engine.ErrorCode, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, chunk_id, code, description, solution, page_number,
			confidence, severity, extraction_method, requires_technician, requires_parts
		FROM error_codes WHERE document_id=$1`, documentID)
	if err != nil {
		return nil, engine.Transient(err)
	}
	defer rows.Close()
	var out []*engine.ErrorCode
	for rows.Next() {
		ec := &engine.ErrorCode{}
		if err := rows.Scan(&ec.ID, &ec.DocumentID, &ec.ChunkID, &ec.Code, &ec.Description, &ec.Solution,
			&ec.PageNumber, &ec.Confidence, &ec.Severity, &ec.ExtractionMethod, &ec.RequiresTechnician, &ec.RequiresParts); err != nil {
			return nil, engine.Transient(err)
		}
		out = append(out, ec)
	}
	return out, nil
}

func (s *Store) LinkErrorCodeToPart(ctx context.Context, link *engine.ErrorCodePartLink) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO error_code_parts (error_code_id, part_id, relevance_score, extraction_source)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (error_code_id, part_id) DO NOTHING`,
		link.ErrorCodeID, link.PartID, link.RelevanceScore, link.ExtractionSource)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolation {
			// duplicate link is expected and ignored, per spec.md §4.9/§7.
			return nil
		}
		return engine.Transient(err)
	}
	return nil
}

// --- EmbeddingStore ---

func (s *Store) EmbeddingExists(ctx context.Context, sourceID uuid.UUID, sourceType engine.SourceType) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM unified_embeddings WHERE source_id=$1 AND source_type=$2)`,
		sourceID, sourceType).Scan(&exists)
	if err != nil {
		return false, engine.Transient(err)
	}
	return exists, nil
}

func (s *Store) InsertEmbedding(ctx context.Context, e *engine.UnifiedEmbedding) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO unified_embeddings (id, document_id, source_id, source_type, embedding, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (source_id, source_type) DO NOTHING`,
		e.ID, e.DocumentID, e.SourceID, e.SourceType, vectorLiteral(e.Vector[:]), e.CreatedAt)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

// vectorLiteral encodes a float32 slice as the pgvector text literal
// "[v1,v2,...]" — pgvector has no native Go binary codec in pgx without a
// registered extension type, so the text format is used deliberately.
func vectorLiteral(v []float32) string {
	b := make([]byte, 0, len(v)*8+2)
	b = append(b, '[')
	for i, f := range v {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, []byte(fmt.Sprintf("%g", f))...)
	}
	b = append(b, ']')
	return string(b)
}

func (s *Store) MatchMultimodal(ctx context.Context, query [engine.EmbeddingDim]float32, modalities []engine.SourceType, threshold float64, limit int) ([]store.MatchResult, error) {
	modalityFilter := make([]string, len(modalities))
	for i, m := range modalities {
		modalityFilter[i] = string(m)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT source_id, source_type, document_id, content, similarity
		FROM match_multimodal($1, $2, $3, $4)`,
		vectorLiteral(query[:]), modalityFilter, threshold, limit)
	if err != nil {
		return nil, engine.Transient(err)
	}
	defer rows.Close()
	var out []store.MatchResult
	for rows.Next() {
		var m store.MatchResult
		if err := rows.Scan(&m.SourceID, &m.SourceType, &m.DocumentID, &m.Content, &m.Similarity); err != nil {
			return nil, engine.Transient(err)
		}
		out = append(out, m)
	}
	return out, nil
}

// --- AnalyticsStore ---

func (s *Store) LogSearchAnalytics(ctx context.Context, documentID uuid.UUID, indexedAt time.Time, counts map[string]int, processingTimeS float64) error {
	countsJSON, _ := json.Marshal(counts)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO search_analytics (document_id, indexed_at, counts, processing_time_s)
		VALUES ($1,$2,$3,$4)`, documentID, indexedAt, countsJSON, processingTimeS)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

func (s *Store) LogError(ctx context.Context, entry *engine.ErrorLogEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO error_log (error_id, correlation_id, stage, document_id, classification, retry_attempt, message, traceback)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.ErrorID, entry.CorrelationID, entry.Stage, entry.DocumentID, entry.Classification.String(),
		entry.RetryAttempt, entry.Message, entry.Traceback)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

// --- advisory locks ---

func (s *Store) AdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok)
	if err != nil {
		return false, engine.Transient(err)
	}
	return ok, nil
}

func (s *Store) AdvisoryUnlock(ctx context.Context, key int64) error {
	_, err := s.pool.Exec(ctx, `SELECT pg_advisory_unlock($1)`, key)
	if err != nil {
		return engine.Transient(err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
