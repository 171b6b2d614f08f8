package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unioncase/unioncase-api/internal/models"
	appErrors "github.com/unioncase/unioncase-api/pkg/errors"
)

type documentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, id string) (*models.Document, error)
	ListByGrievance(ctx context.Context, grievanceID string) ([]models.Document, error)
	Delete(ctx context.Context, id string) error
}

type documentGrievanceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Grievance, error)
}

type documentStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type documentSigner interface {
	Generate(documentID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (documentID, relPath string, expiresAt time.Time, err error)
}

// DocumentUpload carries one multipart upload into the service.
type DocumentUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Label       string
	Description string
	Reader      io.Reader
}

// SignedDownload is a time-limited download grant.
type SignedDownload struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DocumentServiceConfig constrains uploads.
type DocumentServiceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// DocumentService manages evidence files attached to grievances.
type DocumentService struct {
	repo       documentRepository
	grievances documentGrievanceRepository
	storage    documentStorage
	signer     documentSigner
	logger     *zap.Logger
	config     DocumentServiceConfig
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(repo documentRepository, grievances documentGrievanceRepository, storage documentStorage, signer documentSigner, logger *zap.Logger, config DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 10 << 20
	}
	return &DocumentService{repo: repo, grievances: grievances, storage: storage, signer: signer, logger: logger, config: config}
}

func (s *DocumentService) mimeAllowed(contentType string) bool {
	if len(s.config.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.config.AllowedMIMEs {
		if allowed == contentType {
			return true
		}
	}
	return false
}

// Upload stores the file and its metadata under the grievance.
func (s *DocumentService) Upload(ctx context.Context, scope models.AccessScope, grievanceID string, upload DocumentUpload) (*models.Document, error) {
	if upload.Size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d MB limit", s.config.MaxFileSizeBytes>>20))
	}
	if !s.mimeAllowed(upload.ContentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type is not allowed")
	}

	grievance, err := s.loadScopedGrievance(ctx, scope, grievanceID)
	if err != nil {
		return nil, err
	}

	relPath := filepath.Join("grievances", grievance.ID, uuid.NewString()+"_"+filepath.Base(upload.FileName))
	if _, err := s.storage.SaveStream(relPath, upload.Reader); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	doc := &models.Document{
		GrievanceID: grievance.ID,
		UploadedBy:  scope.UserID,
		FileName:    upload.FileName,
		FilePath:    relPath,
		FileType:    upload.ContentType,
		FileSize:    upload.Size,
		Label:       upload.Label,
	}
	if upload.Description != "" {
		doc.Description = &upload.Description
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if delErr := s.storage.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}
	return doc, nil
}

// List returns the documents attached to a grievance the caller may view.
func (s *DocumentService) List(ctx context.Context, scope models.AccessScope, grievanceID string) ([]models.Document, error) {
	if _, err := s.loadScopedGrievance(ctx, scope, grievanceID); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListByGrievance(ctx, grievanceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// SignedURL issues a time-limited download token for one document.
func (s *DocumentService) SignedURL(ctx context.Context, scope models.AccessScope, documentID string) (*SignedDownload, error) {
	doc, err := s.loadScopedDocument(ctx, scope, documentID)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return &SignedDownload{URL: token, ExpiresAt: expiresAt}, nil
}

// OpenByToken validates a signed token and opens the underlying file.
func (s *DocumentService) OpenByToken(ctx context.Context, token string) (*models.Document, *os.File, error) {
	documentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link")
	}
	doc, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "download link does not match document")
	}
	f, err := s.storage.Open(doc.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return doc, f, nil
}

// Delete removes a document. Only the uploader may delete it.
func (s *DocumentService) Delete(ctx context.Context, scope models.AccessScope, documentID string) error {
	doc, err := s.loadScopedDocument(ctx, scope, documentID)
	if err != nil {
		return err
	}
	if doc.UploadedBy != scope.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the uploader may delete a document")
	}

	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if err := s.storage.Delete(doc.FilePath); err != nil {
		s.logger.Warn("failed to remove file from storage", zap.String("path", doc.FilePath), zap.Error(err))
	}
	return nil
}

func (s *DocumentService) loadScopedGrievance(ctx context.Context, scope models.AccessScope, grievanceID string) (*models.Grievance, error) {
	grievance, err := s.grievances.FindByID(ctx, grievanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grievance")
	}
	if !canAccess(scope, grievance) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this grievance")
	}
	return grievance, nil
}

func (s *DocumentService) loadScopedDocument(ctx context.Context, scope models.AccessScope, documentID string) (*models.Document, error) {
	doc, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if _, err := s.loadScopedGrievance(ctx, scope, doc.GrievanceID); err != nil {
		return nil, err
	}
	return doc, nil
}
