package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sekurigo/privacy-api/internal/dto"
	"github.com/sekurigo/privacy-api/internal/models"
	appErrors "github.com/sekurigo/privacy-api/pkg/errors"
	"github.com/sekurigo/privacy-api/pkg/export"
	"github.com/sekurigo/privacy-api/pkg/storage"
)

type exportRequestStore interface {
	FindByID(ctx context.Context, id string) (*models.DataSubjectRequest, error)
}

// ExportFormat names a supported artifact encoding.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// ExportService renders fulfilment artifacts for access and portability
// requests and hands out time-limited signed download links. Raw subject data
// never leaves the service through any other path.
type ExportService struct {
	requests exportRequestStore
	storage  *storage.LocalStorage
	signer   *storage.SignedURLSigner
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// ExportArtifact describes a rendered, stored artifact.
type ExportArtifact struct {
	RequestID string    `json:"requestId"`
	Format    string    `json:"format"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewExportService constructs the exporter.
func NewExportService(requests exportRequestStore, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		requests: requests,
		storage:  store,
		signer:   signer,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// BuildArtifact renders the request's response payload into the requested
// format, stores it and returns a signed download token.
func (s *ExportService) BuildArtifact(ctx context.Context, requestID, format string, actor *models.JWTClaims) (*ExportArtifact, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load request")
	}
	if actor.Role == models.RoleSubject && request.SubjectID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	if request.RightType != models.RightAccess && request.RightType != models.RightDataPortability {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only access and portability requests produce artifacts")
	}
	if request.Status != models.StatusCompleted && request.Status != models.StatusPartiallyCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "request has not been fulfilled yet")
	}
	if len(request.ResponsePayload) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request carries no response payload to export")
	}

	dataset, err := datasetFromPayload(request.ResponsePayload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode response payload")
	}

	var content []byte
	switch format {
	case ExportFormatCSV:
		content, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		title := dto.RightTypeLabel(request.RightType)
		content, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render artifact")
	}

	filename := fmt.Sprintf("%s.%s", request.ID, format)
	if _, err := s.storage.Save(filename, content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store artifact")
	}

	token, expiresAt, err := s.signer.Generate(request.ID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &ExportArtifact{
		RequestID: request.ID,
		Format:    format,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Open validates a signed token and returns the artifact file handle with its
// filename. Callers own closing the file.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "artifact no longer available")
	}
	return file, relPath, nil
}

// CleanupExpired removes artifacts older than the ttl, returning how many
// were deleted.
func (s *ExportService) CleanupExpired(ttl time.Duration) (int, error) {
	deleted, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clean up artifacts")
	}
	return len(deleted), nil
}

// datasetFromPayload flattens the response payload into field/value rows.
// Nested structures are serialised inline rather than expanded.
func datasetFromPayload(payload []byte) (export.Dataset, error) {
	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return export.Dataset{}, err
	}
	fields := make([]string, 0, len(decoded))
	for field := range decoded {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	rows := make([]map[string]string, 0, len(fields))
	for _, field := range fields {
		rows = append(rows, map[string]string{
			"field": field,
			"value": renderValue(decoded[field]),
		})
	}
	return export.Dataset{
		Headers: []string{"field", "value"},
		Rows:    rows,
	}, nil
}

func renderValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
