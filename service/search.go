package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	model "github.com/ankitm14/ContractSage/models"

	"github.com/elastic/go-elasticsearch/v8"
)

const contractsIndex = "contracts"

// newElasticsearchClient returns nil when search is not configured; callers
// treat a nil client as "indexing and search disabled".
func newElasticsearchClient(url string) *elasticsearch.Client {
	if url == "" {
		return nil
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		log.Printf("Warning: Failed to create Elasticsearch client: %v", err)
		return nil
	}
	return client
}

// indexContract pushes a just-analyzed contract into the search index.
// Indexing is best-effort: a failure is logged and never breaks the
// analysis response.
func (s *AnalysisService) indexContract(contract *model.Contract) {
	if s.esClient == nil {
		return
	}

	doc := map[string]interface{}{
		"contract_id":  contract.ID,
		"owner_id":     contract.OwnerID,
		"name":         contract.Name,
		"summary_text": contract.SummaryText,
		"risk_level":   contract.RiskLevel,
		"timestamp":    time.Now().UTC(),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		log.Printf("ERROR marshaling contract %s for indexing: %v", contract.ID, err)
		return
	}

	res, err := s.esClient.Index(
		contractsIndex,
		bytes.NewReader(body),
		s.esClient.Index.WithDocumentID(contract.ID),
		s.esClient.Index.WithContext(context.Background()),
	)
	if err != nil {
		log.Printf("Elasticsearch indexing error for contract %s: %v", contract.ID, err)
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Printf("Elasticsearch indexing failed for contract %s: %s", contract.ID, res.String())
		return
	}
	log.Printf("Contract %s indexed for search", contract.ID)
}

// SearchContracts runs a full-text query over indexed analyses. Results are
// scoped to the caller: the index holds every owner's contracts, so the query
// filters on owner_id the same way the record reads do.
func (s *AnalysisService) SearchContracts(userID, query string) ([]map[string]interface{}, error) {
	if s.esClient == nil {
		return nil, ErrSearchUnavailable
	}

	searchQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"name", "summary_text"},
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"owner_id": userID},
				},
			},
		},
	}
	body, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(context.Background()),
		s.esClient.Search.WithIndex(contractsIndex),
		s.esClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search failed: %s", res.String())
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hitsMap, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid hits structure in search response")
	}
	hitsArray, ok := hitsMap["hits"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid hits array in search response")
	}

	var contracts []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		contracts = append(contracts, source)
	}

	return contracts, nil
}
