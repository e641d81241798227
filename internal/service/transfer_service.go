package service

import (
	"context"
	"errors"
	"time"

	"fireblob/internal/domain"
	"fireblob/internal/repository"
)

// TransferService coordinates transfer journal operations backed by the
// repository.
type TransferService interface {
	Create(ctx context.Context, objectPath, contentType, spoolPath string, totalBytes int64) (*domain.Transfer, error)
	Get(ctx context.Context, id int64) (*domain.Transfer, error)
	List(ctx context.Context) ([]domain.Transfer, error)
	ListByStatuses(ctx context.Context, statuses ...domain.TransferStatus) ([]domain.Transfer, error)
	MarkUploading(ctx context.Context, id int64) error
	UpdateProgress(ctx context.Context, id int64, bytesDone, totalBytes int64) error
	MarkCompleted(ctx context.Context, id int64, downloadURL string) error
	MarkFailed(ctx context.Context, id int64, failErr error) error
	MarkCanceled(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

type transferService struct {
	transfers repository.TransferRepository
}

func NewTransferService(transfers repository.TransferRepository) TransferService {
	return &transferService{transfers: transfers}
}

func (s *transferService) Create(ctx context.Context, objectPath, contentType, spoolPath string, totalBytes int64) (*domain.Transfer, error) {
	if objectPath == "" {
		return nil, errors.New("object path is required")
	}
	if spoolPath == "" {
		return nil, errors.New("spool path is required")
	}

	transfer := &domain.Transfer{
		ObjectPath:  objectPath,
		ContentType: contentType,
		SpoolPath:   spoolPath,
		Status:      domain.TransferStatusPending,
		TotalBytes:  totalBytes,
	}

	if _, err := s.transfers.Create(ctx, transfer); err != nil {
		return nil, err
	}
	return transfer, nil
}

func (s *transferService) Get(ctx context.Context, id int64) (*domain.Transfer, error) {
	return s.transfers.Get(ctx, id)
}

func (s *transferService) List(ctx context.Context) ([]domain.Transfer, error) {
	return s.transfers.List(ctx)
}

func (s *transferService) ListByStatuses(ctx context.Context, statuses ...domain.TransferStatus) ([]domain.Transfer, error) {
	return s.transfers.ListByStatuses(ctx, statuses...)
}

func (s *transferService) MarkUploading(ctx context.Context, id int64) error {
	return s.transfers.UpdateStatus(ctx, id, domain.TransferStatusUploading, nil)
}

func (s *transferService) UpdateProgress(ctx context.Context, id int64, bytesDone, totalBytes int64) error {
	progress := 0
	if totalBytes > 0 {
		progress = int((bytesDone * 100) / totalBytes)
	}
	if progress > 100 {
		progress = 100
	}
	return s.transfers.UpdateProgress(ctx, id, progress, bytesDone, totalBytes)
}

func (s *transferService) MarkCompleted(ctx context.Context, id int64, downloadURL string) error {
	return s.transfers.MarkCompleted(ctx, id, downloadURL, time.Now())
}

func (s *transferService) MarkFailed(ctx context.Context, id int64, failErr error) error {
	msg := failErr.Error()
	return s.transfers.UpdateStatus(ctx, id, domain.TransferStatusFailed, &msg)
}

func (s *transferService) MarkCanceled(ctx context.Context, id int64) error {
	return s.transfers.UpdateStatus(ctx, id, domain.TransferStatusCanceled, nil)
}

func (s *transferService) Delete(ctx context.Context, id int64) error {
	return s.transfers.Delete(ctx, id)
}

var _ TransferService = (*transferService)(nil)
