package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-notice-api/internal/dto"
	"github.com/noah-isme/campus-notice-api/internal/models"
	appErrors "github.com/noah-isme/campus-notice-api/pkg/errors"
	"github.com/noah-isme/campus-notice-api/pkg/storage"
)

type noticeStore interface {
	Create(ctx context.Context, notice *models.Notice) error
	GetByID(ctx context.Context, id string) (*models.Notice, error)
	Update(ctx context.Context, notice *models.Notice) error
	List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error)
	ListDeleted(ctx context.Context) ([]models.Notice, error)
	SoftDelete(ctx context.Context, id string, deletedAt time.Time) error
	RestoreMany(ctx context.Context, ids []string) ([]models.RestoredNotice, error)
	PurgeMany(ctx context.Context, ids []string) ([]models.PurgedNotice, error)
	IncrementViewCount(ctx context.Context, id string) error
	IncrementDownloadCount(ctx context.Context, id string) error
	Counts(ctx context.Context) (*models.NoticeCounts, error)
}

type noticeRoleResolver interface {
	FindByNames(ctx context.Context, names []string) ([]models.Role, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Role, error)
}

type auditRecorder interface {
	Record(ctx context.Context, actorID *string, action, targetType, targetID string, meta interface{})
}

type attachmentReclaimer interface {
	Reclaim(purged []models.PurgedNotice)
}

type dashboardInvalidator interface {
	Invalidate(ctx context.Context)
}

type downloadLinkSigner interface {
	Generate(noticeID, locator string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (noticeID, locator string, expiresAt time.Time, err error)
}

// NoticeUpload carries upload metadata and the stream for an attachment.
type NoticeUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

// NoticeDownload bundles the attachment stream with response metadata.
type NoticeDownload struct {
	Content   io.ReadCloser
	Filename  string
	MimeType  string
	SizeBytes int64
}

// NoticeDownloadLink is a pre-authorized, expiring token for an attachment.
type NoticeDownloadLink struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NoticeServiceConfig holds upload validation parameters.
type NoticeServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
}

// NoticeService drives the notice lifecycle: create, partial update with
// archive-on-replace, soft delete, bulk restore, bulk purge, and the
// counted read paths.
type NoticeService struct {
	repo      noticeStore
	roles     noticeRoleResolver
	backend   storage.Backend
	audit     auditRecorder
	reclaimer attachmentReclaimer
	dashboard dashboardInvalidator
	signer    downloadLinkSigner
	logger    *zap.Logger
	cfg       NoticeServiceConfig
	mimeSet   map[string]struct{}
}

// NewNoticeService constructs the service with defaults. A nil signer
// disables signed download links.
func NewNoticeService(repo noticeStore, roles noticeRoleResolver, backend storage.Backend, audit auditRecorder, reclaimer attachmentReclaimer, dashboard dashboardInvalidator, signer downloadLinkSigner, logger *zap.Logger, cfg NoticeServiceConfig) *NoticeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{
			"application/pdf",
			"image/png",
			"image/jpeg",
			"application/zip",
		}
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &NoticeService{
		repo:      repo,
		roles:     roles,
		backend:   backend,
		audit:     audit,
		reclaimer: reclaimer,
		dashboard: dashboard,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
		mimeSet:   mimeSet,
	}
}

// Create publishes a new notice. The attachment is required; unknown role
// names in the allow-list are dropped, not rejected.
func (s *NoticeService) Create(ctx context.Context, req dto.CreateNoticeRequest, upload *NoticeUpload, actor *models.JWTClaims) (*models.Notice, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	if err := s.validateUpload(upload); err != nil {
		return nil, err
	}

	roleNames := dto.ParseStringValues(req.AllowedRoles)
	roleIDs, resolvedNames, err := s.resolveRoleNames(ctx, roleNames)
	if err != nil {
		return nil, err
	}
	categories := dto.ParseStringValues(req.Categories)

	descriptor, key, err := s.storeUpload(ctx, upload)
	if err != nil {
		return nil, err
	}

	notice := &models.Notice{
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		FileName:        upload.Filename,
		FileKey:         key,
		FileLocator:     descriptor.Locator,
		FileContentType: upload.MimeType,
		FileSizeBytes:   upload.Size,
		Categories:      pq.StringArray(categories),
		AllowedRoles:    pq.StringArray(roleIDs),
		CreatedBy:       actor.UserID,
	}
	if err := s.repo.Create(ctx, notice); err != nil {
		// Record insertion failed; reclaim the freshly stored file.
		if delErr := s.backend.Delete(ctx, descriptor); delErr != nil {
			s.logger.Warn("failed to remove orphaned attachment", zap.String("key", key), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notice")
	}

	s.audit.Record(ctx, &actor.UserID, models.AuditActionNoticeCreate, models.AuditTargetNotice, notice.ID, map[string]interface{}{
		"title":        notice.Title,
		"categories":   categories,
		"allowedRoles": resolvedNames,
	})
	s.invalidateDashboard(ctx)
	return notice, nil
}

// Update applies a partial update. Only fields present in the patch change;
// a new attachment archives the previous one before replacing it. Updates
// are allowed on trashed records too.
func (s *NoticeService) Update(ctx context.Context, id string, patch dto.UpdateNoticeRequest, upload *NoticeUpload, actor *models.JWTClaims) (*models.Notice, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	notice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notice")
	}

	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title cannot be empty")
		}
		notice.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		notice.Description = *patch.Description
	}
	if patch.Categories != nil {
		notice.Categories = pq.StringArray(*patch.Categories)
	}
	if patch.AllowedRoles != nil {
		roleIDs, _, err := s.resolveRoleNames(ctx, *patch.AllowedRoles)
		if err != nil {
			return nil, err
		}
		notice.AllowedRoles = pq.StringArray(roleIDs)
	}

	if upload != nil {
		if err := s.validateUpload(upload); err != nil {
			return nil, err
		}
		// Keep the old attachment recoverable before swapping it out. The
		// archive is addressed by the key being replaced, so remember it for
		// reclamation after a purge.
		old := storage.Descriptor{Locator: notice.FileLocator, Key: notice.FileKey}
		if err := s.backend.Archive(ctx, old); err != nil {
			s.logger.Warn("failed to archive previous attachment", zap.String("noticeId", notice.ID), zap.Error(err))
		}
		if old.Key != "" {
			notice.ArchivedFileKeys = append(notice.ArchivedFileKeys, old.Key)
		}
		descriptor, key, err := s.storeUpload(ctx, upload)
		if err != nil {
			return nil, err
		}
		notice.FileName = upload.Filename
		notice.FileKey = key
		notice.FileLocator = descriptor.Locator
		notice.FileContentType = upload.MimeType
		notice.FileSizeBytes = upload.Size
	}

	if err := s.repo.Update(ctx, notice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notice")
	}

	s.audit.Record(ctx, &actor.UserID, models.AuditActionNoticeUpdate, models.AuditTargetNotice, notice.ID, map[string]interface{}{
		"title": notice.Title,
	})
	s.invalidateDashboard(ctx)
	return notice, nil
}

// SoftDelete moves an active notice to the trash.
func (s *NoticeService) SoftDelete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}

	notice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notice")
	}

	if err := s.repo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notice")
	}

	s.audit.Record(ctx, &actor.UserID, models.AuditActionNoticeDelete, models.AuditTargetNotice, id, map[string]interface{}{
		"title": notice.Title,
	})
	s.invalidateDashboard(ctx)
	return nil
}

// Restore flips trashed notices back to active. Ids that are missing or not
// trashed are excluded from the count rather than erroring individually.
func (s *NoticeService) Restore(ctx context.Context, ids []string, actor *models.JWTClaims) (int, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	if len(ids) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "ids are required")
	}

	restored, err := s.repo.RestoreMany(ctx, ids)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore notices")
	}
	if len(restored) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "no trashed notices matched the given ids")
	}

	// One transition, one audit entry per affected record.
	for _, item := range restored {
		s.audit.Record(ctx, &actor.UserID, models.AuditActionNoticeRestore, models.AuditTargetNotice, item.ID, map[string]interface{}{
			"title": item.Title,
		})
	}
	s.invalidateDashboard(ctx)
	return len(restored), nil
}

// Purge permanently removes trashed notices. Active ids are ignored, never
// deleted. Attachment reclamation is dispatched to the background queue.
func (s *NoticeService) Purge(ctx context.Context, ids []string, actor *models.JWTClaims) (*dto.BulkPurgeResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ids are required")
	}

	purged, err := s.repo.PurgeMany(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge notices")
	}

	for _, item := range purged {
		s.audit.Record(ctx, &actor.UserID, models.AuditActionNoticePermanentDelete, models.AuditTargetNotice, item.ID, map[string]interface{}{
			"title": item.Title,
		})
	}
	if len(purged) > 0 {
		if s.reclaimer != nil {
			s.reclaimer.Reclaim(purged)
		}
		s.invalidateDashboard(ctx)
	}
	return &dto.BulkPurgeResponse{Requested: len(ids), Deleted: len(purged)}, nil
}

// Get fetches one notice for the viewer and counts the view. Trashed
// notices are visible by id to admins only.
func (s *NoticeService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Notice, error) {
	notice, err := s.authorizeRead(ctx, id, claims)
	if err != nil {
		return nil, err
	}

	if err := s.repo.IncrementViewCount(ctx, id); err != nil {
		s.logger.Warn("failed to increment view count", zap.String("noticeId", id), zap.Error(err))
	} else {
		notice.ViewCount++
	}
	s.audit.Record(ctx, actorIDOf(claims), models.AuditActionNoticeView, models.AuditTargetNotice, id, map[string]interface{}{
		"title": notice.Title,
	})
	return notice, nil
}

// Download streams the attachment for the viewer and counts the download.
// The counter moves before the stream starts, so client disconnects cannot
// corrupt it.
func (s *NoticeService) Download(ctx context.Context, id string, claims *models.JWTClaims) (*NoticeDownload, error) {
	notice, err := s.authorizeRead(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	if notice.FileLocator == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}

	content, err := s.backend.Open(ctx, storage.Descriptor{Locator: notice.FileLocator, Key: notice.FileKey})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "attachment unreachable")
	}

	if err := s.repo.IncrementDownloadCount(ctx, id); err != nil {
		s.logger.Warn("failed to increment download count", zap.String("noticeId", id), zap.Error(err))
	}
	s.audit.Record(ctx, actorIDOf(claims), models.AuditActionNoticeDownload, models.AuditTargetNotice, id, map[string]interface{}{
		"title": notice.Title,
	})

	return &NoticeDownload{
		Content:   content,
		Filename:  notice.FileName,
		MimeType:  notice.FileContentType,
		SizeBytes: notice.FileSizeBytes,
	}, nil
}

// DownloadLink issues an expiring pre-authorized token for the attachment.
// The token embeds the current locator, so replacing the attachment
// invalidates previously issued links.
func (s *NoticeService) DownloadLink(ctx context.Context, id string, claims *models.JWTClaims) (*NoticeDownloadLink, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "signed downloads are not enabled")
	}
	notice, err := s.authorizeRead(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	if notice.FileLocator == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}

	token, expiresAt, err := s.signer.Generate(notice.ID, notice.FileLocator)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &NoticeDownloadLink{Token: token, ExpiresAt: expiresAt}, nil
}

// DownloadSigned redeems a signed token without further authorization and
// counts the download like the authenticated path.
func (s *NoticeService) DownloadSigned(ctx context.Context, token string) (*NoticeDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "signed downloads are not enabled")
	}
	noticeID, locator, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}

	notice, err := s.repo.GetByID(ctx, noticeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notice")
	}
	if notice.IsDeleted || notice.FileLocator == "" || notice.FileLocator != locator {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}

	content, err := s.backend.Open(ctx, storage.Descriptor{Locator: notice.FileLocator, Key: notice.FileKey})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "attachment unreachable")
	}

	if err := s.repo.IncrementDownloadCount(ctx, noticeID); err != nil {
		s.logger.Warn("failed to increment download count", zap.String("noticeId", noticeID), zap.Error(err))
	}
	s.audit.Record(ctx, nil, models.AuditActionNoticeDownload, models.AuditTargetNotice, noticeID, map[string]interface{}{
		"title": notice.Title,
		"via":   "signedUrl",
	})

	return &NoticeDownload{
		Content:   content,
		Filename:  notice.FileName,
		MimeType:  notice.FileContentType,
		SizeBytes: notice.FileSizeBytes,
	}, nil
}

// List returns the visible page of notices for the viewer. Non-admins only
// ever see the active partition, filtered by their role; anonymous viewers
// see public notices only.
func (s *NoticeService) List(ctx context.Context, query dto.NoticeListQuery, claims *models.JWTClaims) ([]models.Notice, *models.Pagination, error) {
	filter := models.NoticeFilter{
		Search:     strings.TrimSpace(query.Search),
		CategoryID: strings.TrimSpace(query.Category),
		Page:       query.Page,
		Limit:      query.Limit,
	}

	if claims.IsAdmin() {
		if query.Deleted != "" {
			deleted := strings.EqualFold(query.Deleted, "true")
			filter.Deleted = &deleted
		}
	} else if claims == nil {
		filter.PublicOnly = true
	} else {
		filter.ViewerRoleID = claims.RoleID
	}

	notices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notices")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return notices, models.NewPagination(total, filter.Page, limit), nil
}

// ListDeleted returns the trash, most recently deleted first.
func (s *NoticeService) ListDeleted(ctx context.Context) ([]models.Notice, error) {
	notices, err := s.repo.ListDeleted(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trashed notices")
	}
	return notices, nil
}

// Counts summarises the published and trashed partitions.
func (s *NoticeService) Counts(ctx context.Context) (*models.NoticeCounts, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notices")
	}
	return counts, nil
}

// authorizeRead loads the notice and applies the visibility policy,
// translating the decision into the error taxonomy.
func (s *NoticeService) authorizeRead(ctx context.Context, id string, claims *models.JWTClaims) (*models.Notice, error) {
	notice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notice")
	}

	decision := DecideNoticeAccess(claims, notice)
	switch decision.Effect {
	case AccessAllow:
		return notice, nil
	case AccessRequireLogin:
		names, err := s.roleNames(ctx, decision.GrantingRoleIDs)
		if err != nil {
			s.logger.Warn("failed to resolve granting role names", zap.String("noticeId", id), zap.Error(err))
		}
		loginErr := appErrors.Clone(appErrors.ErrLoginRequired, "login required to view this notice")
		return nil, &requireLoginError{err: loginErr, AllowedRoles: names}
	default:
		if decision.HiddenAsNotFound {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied")
	}
}

// requireLoginError decorates the 401 with the granting role names so the
// handler can surface them in the response meta.
type requireLoginError struct {
	err          *appErrors.Error
	AllowedRoles []string
}

func (e *requireLoginError) Error() string { return e.err.Error() }

func (e *requireLoginError) Unwrap() error { return e.err }

// RequireLoginRoles extracts the granting role names when err is a
// require-login denial.
func RequireLoginRoles(err error) ([]string, bool) {
	var rl *requireLoginError
	if errors.As(err, &rl) {
		return rl.AllowedRoles, true
	}
	return nil, false
}

func (s *NoticeService) resolveRoleNames(ctx context.Context, names []string) (ids []string, resolved []string, err error) {
	if len(names) == 0 {
		return []string{}, []string{}, nil
	}
	roles, err := s.roles.FindByNames(ctx, names)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve roles")
	}
	ids = make([]string, 0, len(roles))
	resolved = make([]string, 0, len(roles))
	for _, role := range roles {
		ids = append(ids, role.ID)
		resolved = append(resolved, role.Name)
	}
	return ids, resolved, nil
}

func (s *NoticeService) roleNames(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	roles, err := s.roles.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names, nil
}

func (s *NoticeService) validateUpload(upload *NoticeUpload) error {
	if upload == nil || upload.Content == nil || upload.Size <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	if upload.MimeType != "" {
		if _, ok := s.mimeSet[strings.ToLower(upload.MimeType)]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %s is not allowed", upload.MimeType))
		}
	}
	return nil
}

func (s *NoticeService) storeUpload(ctx context.Context, upload *NoticeUpload) (storage.Descriptor, string, error) {
	key := uuid.NewString() + strings.ToLower(filepath.Ext(upload.Filename))
	descriptor, err := s.backend.Store(ctx, key, upload.Content)
	if err != nil {
		return storage.Descriptor{}, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}
	return descriptor, key, nil
}

func (s *NoticeService) invalidateDashboard(ctx context.Context) {
	if s.dashboard != nil {
		s.dashboard.Invalidate(ctx)
	}
}

func actorIDOf(claims *models.JWTClaims) *string {
	if claims == nil || claims.UserID == "" {
		return nil
	}
	id := claims.UserID
	return &id
}
