package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	model "github.com/ankitm14/ContractSage/models"

	"github.com/agiledragon/gomonkey/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// FixedTime for consistent time patching
var FixedTime = time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)

const docxMime = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// stubStrategy records dispatches and returns a canned result.
type stubStrategy struct {
	result  *model.AnalysisResult
	err     error
	lastDoc documentInput
	calls   int
}

func (s *stubStrategy) Extract(ctx context.Context, doc documentInput) (*model.AnalysisResult, error) {
	s.calls++
	s.lastDoc = doc
	return s.result, s.err
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := db.AutoMigrate(&model.Contract{}); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// newFakeBlobStore serves objects at path-style /{bucket}/{key} URLs the
// way the S3 client requests them.
func newFakeBlobStore(t *testing.T, objects map[string][]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")
		data, ok := objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(data)
	}))
}

func newTestService(t *testing.T, db *gorm.DB, endpoint string, text, file extractionStrategy) *AnalysisService {
	t.Helper()
	cfg := Config{
		S3Region:    "us-east-1",
		S3Endpoint:  endpoint,
		S3AccessKey: "test",
		S3SecretKey: "test",
	}
	cfg.applyDefaults()
	s3Client, err := newS3Client(cfg)
	if err != nil {
		t.Fatalf("building S3 client: %v", err)
	}
	return &AnalysisService{db: db, s3Client: s3Client, text: text, file: file, cfg: cfg}
}

func seedContract(t *testing.T, db *gorm.DB, contract *model.Contract) {
	t.Helper()
	if contract.UploadedAt.IsZero() {
		contract.UploadedAt = time.Now().Add(-time.Hour)
	}
	if err := db.Create(contract).Error; err != nil {
		t.Fatalf("seeding contract: %v", err)
	}
}

func reload(t *testing.T, db *gorm.DB, id string) model.Contract {
	t.Helper()
	var contract model.Contract
	if err := db.First(&contract, "id = ?", id).Error; err != nil {
		t.Fatalf("reloading contract %s: %v", id, err)
	}
	return contract
}

func TestAnalyzeContractDocxHappyPath(t *testing.T) {
	db := newTestDB(t)
	docx := buildDocx(t, map[string]string{
		docxBodyEntry: `<w:p><w:r><w:t>Price: $500,000</w:t></w:r></w:p>`,
	})
	store := newFakeBlobStore(t, map[string][]byte{"b/c1.docx": docx})
	defer store.Close()

	text := &stubStrategy{result: &model.AnalysisResult{
		Summary: "Purchase contract for $500,000.",
		Risks:   []model.RiskFinding{{Level: "medium", Category: "financing", Description: "No financing contingency."}},
	}}
	file := &stubStrategy{}
	s := newTestService(t, db, store.URL, text, file)

	seedContract(t, db, &model.Contract{
		ID:            "c1",
		OwnerID:       "u1",
		Name:          "c1.docx",
		MimeType:      docxMime,
		StorageBucket: "b",
		StoragePath:   "c1.docx",
		Status:        model.StatusUploaded,
	})

	contract, err := s.AnalyzeContract(context.Background(), "u1", "c1")
	assert.NoError(t, err)
	assert.Equal(t, model.StatusAnalyzed, contract.Status)
	assert.Equal(t, model.RiskMedium, contract.RiskLevel)
	assert.Equal(t, "Purchase contract for $500,000.", contract.SummaryText)

	// The extractor output, not raw XML, reaches the dispatcher.
	assert.Equal(t, 1, text.calls)
	assert.Equal(t, "Price: $500,000", text.lastDoc.Text)
	assert.Equal(t, 0, file.calls)

	persisted := reload(t, db, "c1")
	assert.Equal(t, model.StatusAnalyzed, persisted.Status)
	assert.Equal(t, model.RiskMedium, persisted.RiskLevel)
	assert.Empty(t, persisted.Error)
	assert.NotNil(t, persisted.AnalysisStartedAt)
	assert.NotNil(t, persisted.AnalysisCompletedAt)
	assert.Contains(t, string(persisted.Analysis), "Purchase contract for $500,000.")
}

func TestAnalyzeContractForbiddenLeavesRecordUntouched(t *testing.T) {
	db := newTestDB(t)
	store := newFakeBlobStore(t, nil)
	defer store.Close()

	text := &stubStrategy{}
	s := newTestService(t, db, store.URL, text, &stubStrategy{})

	seedContract(t, db, &model.Contract{
		ID: "c1", OwnerID: "u1", Name: "c1.docx", MimeType: docxMime,
		StorageBucket: "b", StoragePath: "c1.docx", Status: model.StatusUploaded,
	})

	_, err := s.AnalyzeContract(context.Background(), "u2", "c1")
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, 0, text.calls)

	persisted := reload(t, db, "c1")
	assert.Equal(t, model.StatusUploaded, persisted.Status)
	assert.Nil(t, persisted.AnalysisStartedAt)
}

func TestAnalyzeContractUnknownID(t *testing.T) {
	db := newTestDB(t)
	store := newFakeBlobStore(t, nil)
	defer store.Close()
	s := newTestService(t, db, store.URL, &stubStrategy{}, &stubStrategy{})

	_, err := s.AnalyzeContract(context.Background(), "u1", "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.AnalyzeContract(context.Background(), "u1", "  ")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestAnalyzeContractStorageFailurePersistsErrorState(t *testing.T) {
	db := newTestDB(t)
	store := newFakeBlobStore(t, nil) // object missing
	defer store.Close()

	s := newTestService(t, db, store.URL, &stubStrategy{}, &stubStrategy{})

	seedContract(t, db, &model.Contract{
		ID: "c1", OwnerID: "u1", Name: "c1.docx", MimeType: docxMime,
		StorageBucket: "b", StoragePath: "c1.docx", Status: model.StatusUploaded,
	})

	_, err := s.AnalyzeContract(context.Background(), "u1", "c1")
	assert.True(t, errors.Is(err, ErrStorageUnavailable))

	persisted := reload(t, db, "c1")
	assert.Equal(t, model.StatusError, persisted.Status)
	assert.NotEmpty(t, persisted.Error)
	assert.NotNil(t, persisted.AnalysisStartedAt)
	assert.Empty(t, persisted.RiskLevel)
	assert.Empty(t, persisted.Analysis)
}

func TestAnalyzeContractExtractionFailurePersistsErrorState(t *testing.T) {
	db := newTestDB(t)
	docx := buildDocx(t, map[string]string{docxBodyEntry: `<w:p><w:r><w:t>text</w:t></w:r></w:p>`})
	store := newFakeBlobStore(t, map[string][]byte{"b/c1.docx": docx})
	defer store.Close()

	text := &stubStrategy{err: fmt.Errorf("%w: completion returned no choices", ErrExtractionFailed)}
	s := newTestService(t, db, store.URL, text, &stubStrategy{})

	seedContract(t, db, &model.Contract{
		ID: "c1", OwnerID: "u1", Name: "c1.docx", MimeType: docxMime,
		StorageBucket: "b", StoragePath: "c1.docx", Status: model.StatusUploaded,
	})

	_, err := s.AnalyzeContract(context.Background(), "u1", "c1")
	assert.True(t, errors.Is(err, ErrExtractionFailed))

	persisted := reload(t, db, "c1")
	assert.Equal(t, model.StatusError, persisted.Status)
	assert.Contains(t, persisted.Error, "no choices")
}

func TestAnalyzeContractEmptyBodyStillClassifiesLow(t *testing.T) {
	db := newTestDB(t)
	// docx container with no document body entry at all
	docx := buildDocx(t, map[string]string{"word/styles.xml": `<w:styles/>`})
	store := newFakeBlobStore(t, map[string][]byte{"b/c1.docx": docx})
	defer store.Close()

	text := &stubStrategy{result: &model.AnalysisResult{Summary: "No readable content."}}
	s := newTestService(t, db, store.URL, text, &stubStrategy{})

	seedContract(t, db, &model.Contract{
		ID: "c1", OwnerID: "u1", Name: "c1.docx", MimeType: docxMime,
		StorageBucket: "b", StoragePath: "c1.docx", Status: model.StatusUploaded,
	})

	contract, err := s.AnalyzeContract(context.Background(), "u1", "c1")
	assert.NoError(t, err)
	assert.Equal(t, "", text.lastDoc.Text)
	assert.Equal(t, model.StatusAnalyzed, contract.Status)
	assert.Equal(t, model.RiskLow, contract.RiskLevel)
}

func TestAnalyzeContractRoutesPDFToFileStrategy(t *testing.T) {
	db := newTestDB(t)
	store := newFakeBlobStore(t, map[string][]byte{"b/c1.pdf": []byte("%PDF-1.7 fake")})
	defer store.Close()

	text := &stubStrategy{}
	file := &stubStrategy{result: &model.AnalysisResult{
		Summary: "PDF contract.",
		Risks:   []model.RiskFinding{{Level: "high"}},
	}}
	s := newTestService(t, db, store.URL, text, file)

	seedContract(t, db, &model.Contract{
		ID: "c1", OwnerID: "u1", Name: "c1.pdf", MimeType: "application/pdf",
		StorageBucket: "b", StoragePath: "c1.pdf", Status: model.StatusUploaded,
	})

	contract, err := s.AnalyzeContract(context.Background(), "u1", "c1")
	assert.NoError(t, err)
	assert.Equal(t, 0, text.calls)
	assert.Equal(t, 1, file.calls)
	assert.Equal(t, []byte("%PDF-1.7 fake"), file.lastDoc.Bytes)
	assert.Equal(t, model.RiskHigh, contract.RiskLevel)
}

func TestReanalysisOverwritesPriorTerminalState(t *testing.T) {
	db := newTestDB(t)
	docx := buildDocx(t, map[string]string{docxBodyEntry: `<w:p><w:r><w:t>text</w:t></w:r></w:p>`})
	store := newFakeBlobStore(t, map[string][]byte{"b/c1.docx": docx})
	defer store.Close()

	text := &stubStrategy{result: &model.AnalysisResult{
		Summary: "First pass.",
		Risks:   []model.RiskFinding{{Level: "high"}},
	}}
	s := newTestService(t, db, store.URL, text, &stubStrategy{})

	seedContract(t, db, &model.Contract{
		ID: "c1", OwnerID: "u1", Name: "c1.docx", MimeType: docxMime,
		StorageBucket: "b", StoragePath: "c1.docx", Status: model.StatusUploaded,
	})

	_, err := s.AnalyzeContract(context.Background(), "u1", "c1")
	assert.NoError(t, err)
	assert.Equal(t, model.RiskHigh, reload(t, db, "c1").RiskLevel)

	// Second run fails: the error state must fully replace the results.
	text.result = nil
	text.err = fmt.Errorf("%w: upstream down", ErrExtractionFailed)
	_, err = s.AnalyzeContract(context.Background(), "u1", "c1")
	assert.Error(t, err)
	persisted := reload(t, db, "c1")
	assert.Equal(t, model.StatusError, persisted.Status)
	assert.Empty(t, persisted.RiskLevel)
	assert.Empty(t, persisted.SummaryText)
	assert.Empty(t, persisted.Analysis)

	// Third run succeeds from the error state: results replace the error.
	text.err = nil
	text.result = &model.AnalysisResult{Summary: "Third pass."}
	_, err = s.AnalyzeContract(context.Background(), "u1", "c1")
	assert.NoError(t, err)
	persisted = reload(t, db, "c1")
	assert.Equal(t, model.StatusAnalyzed, persisted.Status)
	assert.Equal(t, model.RiskLow, persisted.RiskLevel)
	assert.Empty(t, persisted.Error)
}

func TestMarkAnalyzingStampsStartTime(t *testing.T) {
	patches := gomonkey.ApplyFunc(time.Now, func() time.Time {
		return FixedTime
	})
	defer patches.Reset()

	db := newTestDB(t)
	store := newFakeBlobStore(t, nil)
	defer store.Close()
	s := newTestService(t, db, store.URL, &stubStrategy{}, &stubStrategy{})

	seedContract(t, db, &model.Contract{
		ID: "c1", OwnerID: "u1", Status: model.StatusError, Error: "old failure",
		UploadedAt: FixedTime.Add(-time.Hour),
	})

	contract := reload(t, db, "c1")
	assert.NoError(t, s.markAnalyzing(&contract))
	assert.Equal(t, model.StatusAnalyzing, contract.Status)
	assert.Equal(t, FixedTime, contract.AnalysisStartedAt.UTC())
	assert.Empty(t, contract.Error)

	persisted := reload(t, db, "c1")
	assert.Equal(t, model.StatusAnalyzing, persisted.Status)
	assert.Empty(t, persisted.Error)
}

func TestRecoverStaleAnalyses(t *testing.T) {
	db := newTestDB(t)
	store := newFakeBlobStore(t, nil)
	defer store.Close()
	s := newTestService(t, db, store.URL, &stubStrategy{}, &stubStrategy{})

	staleStart := time.Now().Add(-2 * time.Hour)
	freshStart := time.Now().Add(-1 * time.Minute)
	seedContract(t, db, &model.Contract{
		ID: "stale", OwnerID: "u1", Status: model.StatusAnalyzing, AnalysisStartedAt: &staleStart,
	})
	seedContract(t, db, &model.Contract{
		ID: "fresh", OwnerID: "u1", Status: model.StatusAnalyzing, AnalysisStartedAt: &freshStart,
	})
	seedContract(t, db, &model.Contract{
		ID: "done", OwnerID: "u1", Status: model.StatusAnalyzed,
	})

	recovered, err := s.RecoverStaleAnalyses()
	assert.NoError(t, err)
	assert.Equal(t, int64(1), recovered)

	assert.Equal(t, model.StatusError, reload(t, db, "stale").Status)
	assert.Equal(t, model.StatusAnalyzing, reload(t, db, "fresh").Status)
	assert.Equal(t, model.StatusAnalyzed, reload(t, db, "done").Status)
}

func TestGetAndListContracts(t *testing.T) {
	db := newTestDB(t)
	store := newFakeBlobStore(t, nil)
	defer store.Close()
	s := newTestService(t, db, store.URL, &stubStrategy{}, &stubStrategy{})

	seedContract(t, db, &model.Contract{ID: "c1", OwnerID: "u1", Status: model.StatusUploaded})
	seedContract(t, db, &model.Contract{ID: "c2", OwnerID: "u2", Status: model.StatusUploaded})

	contract, err := s.GetContract("u1", "c1")
	assert.NoError(t, err)
	assert.Equal(t, "c1", contract.ID)

	_, err = s.GetContract("u1", "c2")
	assert.True(t, errors.Is(err, ErrForbidden))

	_, err = s.GetContract("u1", "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	contracts, err := s.ListContracts("u1")
	assert.NoError(t, err)
	assert.Len(t, contracts, 1)
	assert.Equal(t, "c1", contracts[0].ID)
}
