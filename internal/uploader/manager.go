package uploader

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fireblob"
	"fireblob/internal/domain"
	"fireblob/internal/service"
)

// persistTimeout bounds the journal writes that record a transfer's terminal
// state. They use a fresh context so a canceled transfer can still be
// journaled.
const persistTimeout = 5 * time.Second

// Manager coordinates background uploads and their journal lifecycle.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	Enqueue(ctx context.Context, transferID int64) error
	Resume(ctx context.Context) error
	Cancel(ctx context.Context, transferID int64) error
}

type Config struct {
	SpoolDir      string
	MaxConcurrent int
	Logger        *logrus.Logger
}

type manager struct {
	cfg       Config
	transfers service.TransferService
	storage   *fireblob.Storage

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	active map[int64]*transferHandle
}

type transferHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, transfers service.TransferService, storage *fireblob.Storage) Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &manager{
		cfg:       cfg,
		transfers: transfers,
		storage:   storage,
		sem:       make(chan struct{}, cfg.MaxConcurrent),
		active:    make(map[int64]*transferHandle),
	}
}

func (m *manager) Start(ctx context.Context) error {
	if err := os.MkdirAll(m.cfg.SpoolDir, 0o755); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.cfg.Logger.Infof("upload manager started, bucket: %s, spool dir: %s", m.storage.Bucket(), m.cfg.SpoolDir)
	return nil
}

func (m *manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("upload manager stopped")
}

func (m *manager) Enqueue(ctx context.Context, transferID int64) error {
	transfer, err := m.transfers.Get(ctx, transferID)
	if err != nil {
		return err
	}
	m.spawnTransfer(*transfer)
	return nil
}

// Resume re-queues transfers left unfinished by a previous run. Their spool
// files are still on disk, so uploads simply start over.
func (m *manager) Resume(ctx context.Context) error {
	transfers, err := m.transfers.ListByStatuses(ctx,
		domain.TransferStatusPending,
		domain.TransferStatusUploading,
	)
	if err != nil {
		return err
	}

	for i := range transfers {
		m.spawnTransfer(transfers[i])
	}
	return nil
}

func (m *manager) spawnTransfer(transfer domain.Transfer) {
	transferCtx, cancel := context.WithCancel(m.ctx)
	handle := &transferHandle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.registerTransfer(transfer.ID, handle)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.unregisterTransfer(transfer.ID)
			close(handle.done)
		}()
		select {
		case <-m.ctx.Done():
			return
		case <-transferCtx.Done():
			return
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
			m.handleTransfer(transferCtx, &transfer)
		}
	}()
}

func (m *manager) registerTransfer(id int64, handle *transferHandle) {
	m.mu.Lock()
	m.active[id] = handle
	m.mu.Unlock()
}

func (m *manager) unregisterTransfer(id int64) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *manager) getTransferHandle(id int64) (*transferHandle, bool) {
	m.mu.Lock()
	handle, ok := m.active[id]
	m.mu.Unlock()
	return handle, ok
}

func (m *manager) Cancel(ctx context.Context, transferID int64) error {
	handle, ok := m.getTransferHandle(transferID)
	if !ok {
		return nil
	}

	handle.cancel()

	select {
	case <-handle.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *manager) handleTransfer(ctx context.Context, transfer *domain.Transfer) {
	logger := m.cfg.Logger.WithField("transfer_id", transfer.ID)
	switch transfer.Status {
	case domain.TransferStatusCompleted:
		logger.Debug("transfer already completed, skipping")
		return
	case domain.TransferStatusFailed, domain.TransferStatusCanceled:
		logger.Debug("transfer already terminal, skipping")
		return
	case domain.TransferStatusUploading:
		logger.Info("transfer interrupted mid-upload, restarting")
	}

	if err := m.transfers.MarkUploading(ctx, transfer.ID); err != nil {
		logger.Errorf("update status failed: %v", err)
		return
	}
	transfer.Status = domain.TransferStatusUploading

	src, err := os.Open(transfer.SpoolPath)
	if err != nil {
		m.failTransfer(transfer.ID, fmt.Errorf("open spool file: %w", err))
		return
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		m.failTransfer(transfer.ID, fmt.Errorf("stat spool file: %w", err))
		return
	}
	totalBytes := info.Size()

	logger.Infof("upload started, %s -> %s (%d bytes)", transfer.SpoolPath, transfer.ObjectPath, totalBytes)

	ref := m.storage.Ref(transfer.ObjectPath)
	task := ref.Put(ctx, src, totalBytes, transfer.ContentType)

	// The subscriber channel closes when the task reaches a terminal state,
	// so this loop doubles as the wait for completion.
	for p := range task.Progress() {
		if err := m.transfers.UpdateProgress(ctx, transfer.ID, p.BytesTransferred, p.TotalBytes); err != nil {
			logger.Warnf("update progress: %v", err)
		}
	}

	downloadURL, err := task.Wait(context.Background())

	persistCtx, cancelPersist := context.WithTimeout(context.Background(), persistTimeout)
	defer cancelPersist()

	switch {
	case ctx.Err() != nil:
		// Canceled, regardless of how the cancellation policy dressed up
		// the result.
		if err := m.transfers.MarkCanceled(persistCtx, transfer.ID); err != nil {
			logger.Errorf("mark canceled: %v", err)
		}
		logger.Info("upload canceled")
	case err != nil:
		m.failTransfer(transfer.ID, err)
	default:
		if err := m.transfers.MarkCompleted(persistCtx, transfer.ID, downloadURL); err != nil {
			logger.Errorf("mark completed: %v", err)
			return
		}
		if err := os.Remove(transfer.SpoolPath); err != nil && !os.IsNotExist(err) {
			logger.Warnf("remove spool file: %v", err)
		}
		logger.Infof("upload completed, available at %s", downloadURL)
	}
}

func (m *manager) failTransfer(transferID int64, failErr error) {
	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := m.transfers.MarkFailed(persistCtx, transferID, failErr); err != nil {
		m.cfg.Logger.WithField("transfer_id", transferID).Errorf("persist failure status: %v", err)
	}
	m.cfg.Logger.WithField("transfer_id", transferID).Error(failErr.Error())
}

var _ Manager = (*manager)(nil)
