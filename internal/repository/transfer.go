package repository

import (
	"context"
	"errors"
	"time"

	"fireblob/internal/domain"
)

// ErrTransferNotFound is returned when a transfer id matches no record.
var ErrTransferNotFound = errors.New("transfer not found")

// TransferRepository exposes persistence operations for Transfer records.
type TransferRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, transfer *domain.Transfer) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status domain.TransferStatus, errorMessage *string) error
	UpdateProgress(ctx context.Context, id int64, progress int, bytesDone, totalBytes int64) error
	MarkCompleted(ctx context.Context, id int64, downloadURL string, completedAt time.Time) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*domain.Transfer, error)
	List(ctx context.Context) ([]domain.Transfer, error)
	ListByStatuses(ctx context.Context, statuses ...domain.TransferStatus) ([]domain.Transfer, error)
}
