package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fireblob/internal/domain"
	"fireblob/internal/repository"
)

const createTransfersTable = `
CREATE TABLE IF NOT EXISTS transfers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	object_path TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	spool_path TEXT NOT NULL,
	status TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	bytes_done INTEGER NOT NULL DEFAULT 0,
	total_bytes INTEGER NOT NULL DEFAULT 0,
	download_url TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	completed_at DATETIME NULL
);
`

type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) repository.TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTransfersTable); err != nil {
		return fmt.Errorf("create transfers table: %w", err)
	}
	return nil
}

func (r *TransferRepository) Create(ctx context.Context, transfer *domain.Transfer) (int64, error) {
	now := time.Now().UTC()
	transfer.CreatedAt = now
	transfer.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO transfers (object_path, content_type, spool_path, status, progress, bytes_done, total_bytes, download_url, error_message, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		transfer.ObjectPath,
		transfer.ContentType,
		transfer.SpoolPath,
		string(transfer.Status),
		transfer.Progress,
		transfer.BytesDone,
		transfer.TotalBytes,
		transfer.DownloadURL,
		transfer.ErrorMessage,
		transfer.CreatedAt,
		transfer.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert transfer: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	transfer.ID = id
	return id, nil
}

func (r *TransferRepository) UpdateStatus(ctx context.Context, id int64, status domain.TransferStatus, errorMessage *string) error {
	now := time.Now().UTC()
	msg := ""
	if errorMessage != nil {
		msg = *errorMessage
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE transfers
SET status=?, error_message=?, updated_at=?
WHERE id=?`,
		string(status),
		msg,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update transfer status: %w", err)
	}
	return nil
}

func (r *TransferRepository) UpdateProgress(ctx context.Context, id int64, progress int, bytesDone, totalBytes int64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
UPDATE transfers
SET progress=?, bytes_done=?, total_bytes=?, updated_at=?
WHERE id=?`,
		progress,
		bytesDone,
		totalBytes,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update transfer progress: %w", err)
	}
	return nil
}

func (r *TransferRepository) MarkCompleted(ctx context.Context, id int64, downloadURL string, completedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE transfers
SET status=?, download_url=?, progress=100, bytes_done=total_bytes, completed_at=?, updated_at=?
WHERE id=?`,
		string(domain.TransferStatusCompleted),
		downloadURL,
		completedAt.UTC(),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark transfer completed: %w", err)
	}
	return nil
}

func (r *TransferRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transfers WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete transfer: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transfer delete rows affected: %w", err)
	}
	if aff == 0 {
		return repository.ErrTransferNotFound
	}
	return nil
}

func (r *TransferRepository) Get(ctx context.Context, id int64) (*domain.Transfer, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, object_path, content_type, spool_path, status, progress, bytes_done, total_bytes, download_url, error_message, created_at, updated_at, completed_at
FROM transfers
WHERE id=?`,
		id,
	)
	return scanTransfer(row)
}

func (r *TransferRepository) List(ctx context.Context) ([]domain.Transfer, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, object_path, content_type, spool_path, status, progress, bytes_done, total_bytes, download_url, error_message, created_at, updated_at, completed_at
FROM transfers
ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *transfer)
	}

	return transfers, rows.Err()
}

func (r *TransferRepository) ListByStatuses(ctx context.Context, statuses ...domain.TransferStatus) ([]domain.Transfer, error) {
	if len(statuses) == 0 {
		return []domain.Transfer{}, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = string(status)
	}

	query := fmt.Sprintf(`
SELECT id, object_path, content_type, spool_path, status, progress, bytes_done, total_bytes, download_url, error_message, created_at, updated_at, completed_at
FROM transfers
WHERE status IN (%s)
ORDER BY id ASC`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transfers by status: %w", err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *transfer)
	}

	return transfers, rows.Err()
}

func scanTransfer(scanner interface {
	Scan(dest ...any) error
}) (*domain.Transfer, error) {
	var (
		transfer    domain.Transfer
		status      string
		createdAt   time.Time
		updatedAt   time.Time
		completedAt sql.NullTime
	)

	if err := scanner.Scan(
		&transfer.ID,
		&transfer.ObjectPath,
		&transfer.ContentType,
		&transfer.SpoolPath,
		&status,
		&transfer.Progress,
		&transfer.BytesDone,
		&transfer.TotalBytes,
		&transfer.DownloadURL,
		&transfer.ErrorMessage,
		&createdAt,
		&updatedAt,
		&completedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrTransferNotFound
		}
		return nil, fmt.Errorf("scan transfer: %w", err)
	}

	transfer.Status = domain.TransferStatus(status)
	transfer.CreatedAt = createdAt.Local()
	transfer.UpdatedAt = updatedAt.Local()
	if completedAt.Valid {
		t := completedAt.Time.Local()
		transfer.CompletedAt = &t
	}

	return &transfer, nil
}
