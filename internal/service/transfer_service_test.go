package service

import (
	"context"
	"testing"
	"time"

	"fireblob/internal/domain"
	"fireblob/internal/repository"
)

// fakeTransferRepo records the calls the service forwards to it.
type fakeTransferRepo struct {
	created      []domain.Transfer
	lastProgress struct {
		progress  int
		bytesDone int64
		total     int64
	}
	lastStatus struct {
		status domain.TransferStatus
		msg    string
	}
}

func (f *fakeTransferRepo) Init(context.Context) error { return nil }

func (f *fakeTransferRepo) Create(_ context.Context, transfer *domain.Transfer) (int64, error) {
	transfer.ID = int64(len(f.created) + 1)
	f.created = append(f.created, *transfer)
	return transfer.ID, nil
}

func (f *fakeTransferRepo) UpdateStatus(_ context.Context, _ int64, status domain.TransferStatus, errorMessage *string) error {
	f.lastStatus.status = status
	f.lastStatus.msg = ""
	if errorMessage != nil {
		f.lastStatus.msg = *errorMessage
	}
	return nil
}

func (f *fakeTransferRepo) UpdateProgress(_ context.Context, _ int64, progress int, bytesDone, totalBytes int64) error {
	f.lastProgress.progress = progress
	f.lastProgress.bytesDone = bytesDone
	f.lastProgress.total = totalBytes
	return nil
}

func (f *fakeTransferRepo) MarkCompleted(context.Context, int64, string, time.Time) error {
	return nil
}

func (f *fakeTransferRepo) Delete(context.Context, int64) error { return nil }

func (f *fakeTransferRepo) Get(context.Context, int64) (*domain.Transfer, error) {
	return nil, repository.ErrTransferNotFound
}

func (f *fakeTransferRepo) List(context.Context) ([]domain.Transfer, error) { return nil, nil }

func (f *fakeTransferRepo) ListByStatuses(context.Context, ...domain.TransferStatus) ([]domain.Transfer, error) {
	return nil, nil
}

var _ repository.TransferRepository = (*fakeTransferRepo)(nil)

func TestTransferCreateValidation(t *testing.T) {
	tests := []struct {
		name       string
		objectPath string
		spoolPath  string
		wantErr    bool
	}{
		{name: "valid", objectPath: "docs/a.txt", spoolPath: "/spool/x", wantErr: false},
		{name: "missing object path", objectPath: "", spoolPath: "/spool/x", wantErr: true},
		{name: "missing spool path", objectPath: "docs/a.txt", spoolPath: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewTransferService(&fakeTransferRepo{})
			transfer, err := svc.Create(context.Background(), tt.objectPath, "text/plain", tt.spoolPath, 10)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Create() error = nil, want failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if transfer.Status != domain.TransferStatusPending {
				t.Errorf("Status = %q, want pending", transfer.Status)
			}
			if transfer.ID == 0 {
				t.Error("ID not assigned")
			}
		})
	}
}

func TestTransferUpdateProgressPercent(t *testing.T) {
	tests := []struct {
		name      string
		bytesDone int64
		total     int64
		want      int
	}{
		{name: "zero total", bytesDone: 10, total: 0, want: 0},
		{name: "halfway", bytesDone: 500, total: 1000, want: 50},
		{name: "rounds down", bytesDone: 999, total: 1000, want: 99},
		{name: "clamped", bytesDone: 1500, total: 1000, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeTransferRepo{}
			svc := NewTransferService(repo)
			if err := svc.UpdateProgress(context.Background(), 1, tt.bytesDone, tt.total); err != nil {
				t.Fatalf("UpdateProgress() error = %v", err)
			}
			if repo.lastProgress.progress != tt.want {
				t.Errorf("progress = %d, want %d", repo.lastProgress.progress, tt.want)
			}
			if repo.lastProgress.bytesDone != tt.bytesDone || repo.lastProgress.total != tt.total {
				t.Errorf("bytes = %d/%d, want %d/%d",
					repo.lastProgress.bytesDone, repo.lastProgress.total, tt.bytesDone, tt.total)
			}
		})
	}
}

func TestTransferMarkFailedKeepsMessage(t *testing.T) {
	repo := &fakeTransferRepo{}
	svc := NewTransferService(repo)

	if err := svc.MarkFailed(context.Background(), 1, context.DeadlineExceeded); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if repo.lastStatus.status != domain.TransferStatusFailed {
		t.Errorf("status = %q, want failed", repo.lastStatus.status)
	}
	if repo.lastStatus.msg != context.DeadlineExceeded.Error() {
		t.Errorf("message = %q", repo.lastStatus.msg)
	}
}
