package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	model "github.com/ankitm14/ContractSage/models"

	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/elastic/go-elasticsearch/v8"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// summaryTextLimit caps the short derived summary stored on the record.
const summaryTextLimit = 280

// AnalysisService drives the contract analysis pipeline: fetch the stored
// file, route by format, extract structured data through the completion
// service, classify risk, and persist every lifecycle transition.
type AnalysisService struct {
	db       *gorm.DB
	s3Client *s3.S3
	esClient *elasticsearch.Client
	text     extractionStrategy
	file     extractionStrategy
	cfg      Config
}

// NewAnalysisService wires the pipeline from an explicit Config so tests
// can inject fake endpoints and credentials.
func NewAnalysisService(db *gorm.DB, cfg Config) (*AnalysisService, error) {
	cfg.applyDefaults()
	if err := cfg.validateStorage(); err != nil {
		return nil, err
	}

	s3Client, err := newS3Client(cfg)
	if err != nil {
		return nil, err
	}

	return &AnalysisService{
		db:       db,
		s3Client: s3Client,
		esClient: newElasticsearchClient(cfg.ElasticsearchURL),
		text:     newTextCompletionStrategy(cfg),
		file:     newFileCompletionStrategy(cfg),
		cfg:      cfg,
	}, nil
}

// AnalyzeContract runs one full analysis for the given contract on behalf
// of userID. Authorization failures and unknown ids return without touching
// the record; once the record enters "analyzing" every outcome is persisted
// as a terminal state.
func (s *AnalysisService) AnalyzeContract(ctx context.Context, userID, contractID string) (*model.Contract, error) {
	if strings.TrimSpace(contractID) == "" {
		return nil, fmt.Errorf("%w: contract_id is required", ErrInvalidInput)
	}

	var contract model.Contract
	if err := s.db.First(&contract, "id = ?", contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading contract %s: %w", contractID, err)
	}

	if contract.OwnerID != userID {
		log.Printf("User %s attempted to analyze contract %s owned by %s", userID, contract.ID, contract.OwnerID)
		return nil, ErrForbidden
	}

	if err := s.markAnalyzing(&contract); err != nil {
		return nil, err
	}
	log.Printf("Contract %s entered analyzing", contract.ID)

	result, err := s.runExtraction(ctx, &contract)
	if err != nil {
		log.Printf("Analysis of contract %s failed: %v", contract.ID, err)
		if ferr := s.failAnalysis(&contract, err); ferr != nil {
			log.Printf("ERROR persisting failure for contract %s: %v", contract.ID, ferr)
		}
		return nil, err
	}

	riskLevel := OverallRiskLevel(result.Risks)
	if err := s.completeAnalysis(&contract, result, riskLevel); err != nil {
		return nil, err
	}
	log.Printf("Contract %s analyzed with risk level %s", contract.ID, riskLevel)

	s.indexContract(&contract)

	return &contract, nil
}

// runExtraction covers the fallible middle of the pipeline: fetch, route,
// extract, dispatch. It is the outermost failure boundary — a panic here
// must still end in a persisted error state, never a record stranded
// mid-flight.
func (s *AnalysisService) runExtraction(ctx context.Context, contract *model.Contract) (result *model.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC during analysis of contract %s: %v", contract.ID, r)
			result = nil
			err = fmt.Errorf("%w: unexpected failure: %v", ErrExtractionFailed, r)
		}
	}()

	raw, contentType, err := s.fetchContractObject(contract.StorageBucket, contract.StoragePath)
	if err != nil {
		return nil, err
	}

	mimeType := contract.MimeType
	if mimeType == "" {
		mimeType = contentType
	}
	doc := documentInput{Bytes: raw, MimeType: mimeType, Filename: contract.Name}

	switch detectDocumentFormat(mimeType, contract.Name) {
	case formatPDF:
		log.Printf("Contract %s routed to file-native extraction", contract.ID)
		return s.file.Extract(ctx, doc)
	case formatDocx:
		text, err := extractDocxText(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		}
		if text == "" {
			log.Printf("Contract %s has no document body; extraction continues on empty text", contract.ID)
		}
		doc.Text = text
		return s.text.Extract(ctx, doc)
	default:
		doc.Text = string(raw)
		return s.text.Extract(ctx, doc)
	}
}

// markAnalyzing is the single atomic transition into "analyzing". Prior
// results and errors are cleared so a re-analysis starts from a clean
// slate.
func (s *AnalysisService) markAnalyzing(contract *model.Contract) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":                model.StatusAnalyzing,
		"analysis_started_at":   now,
		"analysis_completed_at": nil,
		"error":                 "",
		"analysis":              nil,
		"risk_level":            "",
		"summary_text":          "",
	}
	if err := s.db.Model(&model.Contract{}).Where("id = ?", contract.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("marking contract %s analyzing: %w", contract.ID, err)
	}

	contract.Status = model.StatusAnalyzing
	contract.AnalysisStartedAt = &now
	contract.AnalysisCompletedAt = nil
	contract.Error = ""
	contract.Analysis = nil
	contract.RiskLevel = ""
	contract.SummaryText = ""
	return nil
}

// completeAnalysis is the single atomic transition into "analyzed": result
// payload, summary, risk tier and completion timestamp land together.
func (s *AnalysisService) completeAnalysis(contract *model.Contract, result *model.AnalysisResult, riskLevel string) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling analysis for contract %s: %w", contract.ID, err)
	}

	now := time.Now()
	summary := deriveSummaryText(result)
	updates := map[string]interface{}{
		"status":                model.StatusAnalyzed,
		"analysis":              datatypes.JSON(payload),
		"summary_text":          summary,
		"risk_level":            riskLevel,
		"analysis_completed_at": now,
		"error":                 "",
	}
	if err := s.db.Model(&model.Contract{}).Where("id = ?", contract.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("persisting analysis for contract %s: %w", contract.ID, err)
	}

	contract.Status = model.StatusAnalyzed
	contract.Analysis = datatypes.JSON(payload)
	contract.SummaryText = summary
	contract.RiskLevel = riskLevel
	contract.AnalysisCompletedAt = &now
	contract.Error = ""
	return nil
}

// failAnalysis is the single atomic transition into "error". Analysis
// fields stay null so error and results are never present together.
func (s *AnalysisService) failAnalysis(contract *model.Contract, cause error) error {
	updates := map[string]interface{}{
		"status":       model.StatusError,
		"error":        cause.Error(),
		"analysis":     nil,
		"risk_level":   "",
		"summary_text": "",
	}
	if err := s.db.Model(&model.Contract{}).Where("id = ?", contract.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("persisting failure for contract %s: %w", contract.ID, err)
	}

	contract.Status = model.StatusError
	contract.Error = cause.Error()
	contract.Analysis = nil
	contract.RiskLevel = ""
	contract.SummaryText = ""
	return nil
}

// RecoverStaleAnalyses sweeps records stuck in "analyzing" longer than the
// configured age into "error". Run once at startup: a crash mid-pipeline
// leaves no other trace, and re-invocation is the recovery path.
func (s *AnalysisService) RecoverStaleAnalyses() (int64, error) {
	cutoff := time.Now().Add(-s.cfg.StaleAnalysisAge)
	res := s.db.Model(&model.Contract{}).
		Where("status = ? AND analysis_started_at < ?", model.StatusAnalyzing, cutoff).
		Updates(map[string]interface{}{
			"status": model.StatusError,
			"error":  "analysis interrupted; re-run analysis",
		})
	if res.Error != nil {
		return 0, fmt.Errorf("sweeping stale analyses: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("Recovered %d contract(s) stuck in analyzing", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// GetContract returns one contract for status/result read-back, enforcing
// ownership the same way analysis does.
func (s *AnalysisService) GetContract(userID, contractID string) (*model.Contract, error) {
	var contract model.Contract
	if err := s.db.First(&contract, "id = ?", contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading contract %s: %w", contractID, err)
	}
	if contract.OwnerID != userID {
		return nil, ErrForbidden
	}
	return &contract, nil
}

// ListContracts returns every contract owned by userID, newest first.
func (s *AnalysisService) ListContracts(userID string) ([]model.Contract, error) {
	var contracts []model.Contract
	if err := s.db.Where("owner_id = ?", userID).Order("uploaded_at DESC").Find(&contracts).Error; err != nil {
		return nil, fmt.Errorf("listing contracts for user %s: %w", userID, err)
	}
	return contracts, nil
}

func deriveSummaryText(result *model.AnalysisResult) string {
	return truncateText(strings.TrimSpace(result.Summary), summaryTextLimit)
}
