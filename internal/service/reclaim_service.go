package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-notice-api/internal/models"
	"github.com/noah-isme/campus-notice-api/pkg/jobs"
	"github.com/noah-isme/campus-notice-api/pkg/storage"
)

const reclaimJobType = "attachment.reclaim"

// ReclaimService removes attachment files for purged notices in the
// background. Reclamation is best-effort: the record is already gone, so a
// failed delete only leaves an orphaned file behind.
type ReclaimService struct {
	backend storage.Backend
	queue   *jobs.Queue[models.PurgedNotice]
	logger  *zap.Logger
}

// NewReclaimService constructs the service with its queue.
func NewReclaimService(backend storage.Backend, logger *zap.Logger, cfg jobs.QueueConfig) *ReclaimService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReclaimService{backend: backend, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("attachment-reclaim", s.handle, cfg)
	return s
}

// Start begins background processing.
func (s *ReclaimService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *ReclaimService) Stop() {
	s.queue.Stop()
}

// Reclaim schedules file removal for each purged notice. Enqueue failures
// are logged, never propagated: the purge itself already succeeded.
func (s *ReclaimService) Reclaim(purged []models.PurgedNotice) {
	for _, item := range purged {
		job := jobs.Job[models.PurgedNotice]{
			ID:      fmt.Sprintf("%s-%s", reclaimJobType, item.ID),
			Type:    reclaimJobType,
			Payload: item,
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue attachment reclamation",
				zap.String("noticeId", item.ID),
				zap.Error(err))
		}
	}
}

func (s *ReclaimService) handle(ctx context.Context, job jobs.Job[models.PurgedNotice]) error {
	item := job.Payload

	descriptor := storage.Descriptor{Locator: item.FileLocator, Key: item.FileKey}
	if err := s.backend.Delete(ctx, descriptor); err != nil {
		return fmt.Errorf("delete attachment %s: %w", item.FileKey, err)
	}
	// Attachments replaced by updates were archived under the key that was
	// current at archive time; address each of them, not the final key.
	for _, archivedKey := range item.ArchivedFileKeys {
		if err := s.backend.DeleteArchived(ctx, archivedKey); err != nil {
			s.logger.Warn("failed to delete archived attachment",
				zap.String("key", archivedKey),
				zap.Error(err))
		}
	}
	return nil
}
