package eventlog

import (
	"fmt"
	"os"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// eventDocument is the indexed representation of an event.
type eventDocument struct {
	TaskID    string    `json:"task_id"`
	Type      string    `json:"event_type"`
	Payload   string    `json:"payload"`
	AgentName string    `json:"agent_name"`
	Timestamp time.Time `json:"timestamp"`
}

// SearchHit is one match from a search query.
type SearchHit struct {
	EventID string
	TaskID  string
	Score   float64
}

// SearchIndex provides full-text search over event payloads and types,
// for operator queries across task history. It is an optional sidecar to a
// Log: callers index events after appending them.
type SearchIndex struct {
	index bleve.Index
}

// NewSearchIndex opens or creates a bleve index at path.
func NewSearchIndex(path string) (*SearchIndex, error) {
	var index bleve.Index
	var err error

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		index, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create search index: %w", err)
		}
	} else {
		index, err = bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open search index: %w", err)
		}
	}
	return &SearchIndex{index: index}, nil
}

// buildIndexMapping creates the bleve index mapping for events.
func buildIndexMapping() mapping.IndexMapping {
	eventMapping := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name

	keywordField := bleve.NewKeywordFieldMapping()
	dateField := bleve.NewDateTimeFieldMapping()

	eventMapping.AddFieldMappingsAt("payload", textField)
	eventMapping.AddFieldMappingsAt("task_id", keywordField)
	eventMapping.AddFieldMappingsAt("event_type", keywordField)
	eventMapping.AddFieldMappingsAt("agent_name", keywordField)
	eventMapping.AddFieldMappingsAt("timestamp", dateField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = eventMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// Index adds an appended event to the search index.
func (s *SearchIndex) Index(e *Event) error {
	if e == nil || e.ID == "" {
		return ErrInvalidTaskID
	}
	doc := eventDocument{
		TaskID:    e.TaskID,
		Type:      e.Type,
		Payload:   string(e.Payload),
		AgentName: e.AgentName,
		Timestamp: e.Timestamp,
	}
	return s.index.Index(e.ID, doc)
}

// Search runs a query-string search (bleve syntax, e.g.
// `event_type:pr_created +payload:conflict`) and returns up to limit hits
// ranked by relevance.
func (s *SearchIndex) Search(queryString string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	query := bleve.NewQueryStringQuery(queryString)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Fields = []string{"task_id"}

	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}

	hits := make([]SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := SearchHit{EventID: h.ID, Score: h.Score}
		if taskID, ok := h.Fields["task_id"].(string); ok {
			hit.TaskID = taskID
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close releases the underlying index.
func (s *SearchIndex) Close() error {
	return s.index.Close()
}
