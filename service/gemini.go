package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	model "github.com/ankitm14/ContractSage/models"
)

// fileCompletionStrategy is the file-native extraction variant for PDFs:
// the raw file is uploaded to the service's file store, then referenced in
// a JSON-constrained generateContent request against the file-aware
// completion endpoint.
type fileCompletionStrategy struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func newFileCompletionStrategy(cfg Config) *fileCompletionStrategy {
	return &fileCompletionStrategy{
		apiKey:  cfg.GeminiAPIKey,
		baseURL: strings.TrimRight(cfg.GeminiBaseURL, "/"),
		model:   cfg.GeminiModel,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (f *fileCompletionStrategy) Extract(ctx context.Context, doc documentInput) (*model.AnalysisResult, error) {
	if f.apiKey == "" {
		return nil, fmt.Errorf("%w: completion service credential is not configured", ErrExtractionFailed)
	}

	mimeType := doc.MimeType
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	fileURI, err := f.uploadFile(ctx, doc.Bytes, mimeType)
	if err != nil {
		return nil, err
	}
	log.Printf("Uploaded %s to completion file store: %s", doc.Filename, fileURI)

	content, err := f.generateFromFile(ctx, fileURI, mimeType)
	if err != nil {
		return nil, err
	}

	return parseAnalysisResult(content)
}

// uploadFile pushes the raw bytes to the file endpoint and returns the
// handle the completion endpoint expects.
func (f *fileCompletionStrategy) uploadFile(ctx context.Context, data []byte, mimeType string) (string, error) {
	uploadURL := fmt.Sprintf("%s/upload/v1beta/files?key=%s", f.baseURL, f.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: creating upload request: %v", ErrExtractionFailed, err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: file upload failed: %v", ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading upload response: %v", ErrExtractionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("File upload returned %d: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("%w: file upload returned status %d", ErrExtractionFailed, resp.StatusCode)
	}

	var uploaded struct {
		File struct {
			Name string `json:"name"`
			URI  string `json:"uri"`
		} `json:"file"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil {
		return "", fmt.Errorf("%w: parsing upload response: %v", ErrExtractionFailed, err)
	}
	if uploaded.File.URI == "" {
		return "", fmt.Errorf("%w: upload response missing file uri", ErrExtractionFailed)
	}
	return uploaded.File.URI, nil
}

// generateFromFile issues the file-aware completion request and returns the
// raw JSON text of the first candidate.
func (f *fileCompletionStrategy) generateFromFile(ctx context.Context, fileURI, mimeType string) (string, error) {
	genURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", f.baseURL, f.model, f.apiKey)

	payload := map[string]interface{}{
		"systemInstruction": map[string]interface{}{
			"parts": []map[string]string{{"text": extractionSystemPrompt}},
		},
		"contents": []map[string]interface{}{
			{
				"role": "user",
				"parts": []map[string]interface{}{
					{"text": buildFilePrompt()},
					{"fileData": map[string]string{"mimeType": mimeType, "fileUri": fileURI}},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":      0.1,
			"maxOutputTokens":  maxCompletionTokens,
			"responseMimeType": "application/json",
		},
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling completion request: %v", ErrExtractionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, genURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("%w: creating completion request: %v", ErrExtractionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: completion request failed: %v", ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading completion response: %v", ErrExtractionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("Completion endpoint returned %d: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("%w: completion returned status %d", ErrExtractionFailed, resp.StatusCode)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: parsing completion response: %v", ErrExtractionFailed, err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: completion returned no candidates", ErrExtractionFailed)
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}
