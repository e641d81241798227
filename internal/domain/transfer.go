package domain

import "time"

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusUploading TransferStatus = "uploading"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
	TransferStatusCanceled  TransferStatus = "canceled"
)

// Transfer represents one spooled upload journaled by the gateway.
type Transfer struct {
	ID           int64
	ObjectPath   string
	ContentType  string
	SpoolPath    string
	Status       TransferStatus
	Progress     int
	BytesDone    int64
	TotalBytes   int64
	DownloadURL  string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}
