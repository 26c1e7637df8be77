package searchdb

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/meghashyamc/clinicsearch/config"
	"github.com/meghashyamc/clinicsearch/logger"
)

const IndexingBatchSize = 100

const (
	indexFieldKey         = "key"
	indexFieldRecordID    = "record_id"
	indexFieldSource      = "source"
	indexFieldTitle       = "title"
	indexFieldSubtitle    = "subtitle"
	indexFieldDescription = "description"
	indexFieldCategory    = "category"
	indexFieldPage        = "page"
	indexFieldIcon        = "icon"
)

var quotedPhraseRegex = regexp.MustCompile(`"([^"]*)"`)

type BleveDB struct {
	indexPath string
	logger    logger.Logger
	index     bleve.Index
	// serializes category replacement so two refreshes of one source cannot interleave
	writeMu sync.Mutex
}

// New opens the catalog at the configured index path, creating it if needed.
// An empty index path keeps the catalog in memory.
func New(logger logger.Logger, cfg *config.Config) (*BleveDB, error) {
	mapping := createIndexMapping()
	indexPath := cfg.GetIndexPath()

	if indexPath == "" {
		index, err := bleve.NewMemOnly(mapping)
		if err != nil {
			logger.Error("could not create in-memory index", "err", err.Error())
			return nil, err
		}
		return &BleveDB{logger: logger, index: index}, nil
	}

	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		logger.Error("could not create index directory", "path", indexPath, "err", err.Error())
		return nil, fmt.Errorf("could not create index directory: %w", err)
	}
	index, err := bleve.New(indexPath, mapping)
	if err != nil {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Error("could not open index", "err", err.Error())
			return nil, err
		}
	}
	return &BleveDB{indexPath: indexPath, logger: logger, index: index}, nil
}

func createIndexMapping() mapping.IndexMapping {

	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	for _, field := range []string{indexFieldKey, indexFieldRecordID, indexFieldSource, indexFieldPage, indexFieldIcon} {
		keywordFieldMapping := bleve.NewTextFieldMapping()
		keywordFieldMapping.Analyzer = keyword.Name
		docMapping.AddFieldMappingsAt(field, keywordFieldMapping)
	}

	for _, field := range []string{indexFieldTitle, indexFieldSubtitle, indexFieldDescription, indexFieldCategory} {
		textFieldMapping := bleve.NewTextFieldMapping()
		textFieldMapping.Analyzer = standard.Name
		textFieldMapping.IncludeTermVectors = true
		docMapping.AddFieldMappingsAt(field, textFieldMapping)
	}

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// ReplaceCategory swaps every document of a source for the given documents.
func (b *BleveDB) ReplaceCategory(source string, documents []Document) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	existing, err := b.keysForSource(source)
	if err != nil {
		return err
	}

	incoming := make(map[string]struct{}, len(documents))
	for _, doc := range documents {
		incoming[doc.Key] = struct{}{}
	}

	var stale []string
	for _, key := range existing {
		if _, ok := incoming[key]; !ok {
			stale = append(stale, key)
		}
	}

	if err := b.deleteDocuments(stale); err != nil {
		return err
	}

	return b.indexDocuments(documents)
}

func (b *BleveDB) keysForSource(source string) ([]string, error) {
	docCount, err := b.index.DocCount()
	if err != nil {
		b.logger.Error("could not count documents", "err", err.Error())
		return nil, err
	}
	if docCount == 0 {
		return nil, nil
	}

	sourceQuery := bleve.NewTermQuery(source)
	sourceQuery.SetField(indexFieldSource)
	searchRequest := bleve.NewSearchRequestOptions(sourceQuery, int(docCount), 0, false)

	searchResult, err := b.index.Search(searchRequest)
	if err != nil {
		b.logger.Error("could not list documents for source", "source", source, "err", err.Error())
		return nil, fmt.Errorf("could not list documents for source %s: %w", source, err)
	}

	keys := make([]string, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		keys = append(keys, hit.ID)
	}

	return keys, nil
}

func (b *BleveDB) indexDocuments(documents []Document) error {

	batch := b.index.NewBatch()

	for i, doc := range documents {

		if err := batch.Index(doc.Key, doc); err != nil {
			b.logger.Error("could not index document", "key", doc.Key, "err", err.Error())
			return err
		}

		// Execute batch when it reaches the batch size
		if (i+1)%IndexingBatchSize == 0 {
			if err := b.index.Batch(batch); err != nil {
				return err
			}
			batch = b.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			b.logger.Error("could not index document", "err", err.Error())
			return err
		}
	}

	return nil
}

func (b *BleveDB) deleteDocuments(documentKeys []string) error {
	batch := b.index.NewBatch()

	for i, key := range documentKeys {
		batch.Delete(key)

		if (i+1)%IndexingBatchSize == 0 {
			if err := b.index.Batch(batch); err != nil {
				return err
			}
			batch = b.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			b.logger.Error("could not delete documents", "err", err.Error())
			return err
		}
	}

	return nil
}

func (b *BleveDB) Search(queryString string, limit int, offset int) (*Response, error) {
	start := time.Now()

	searchQuery := b.buildSearchQuery(queryString)

	searchRequest := bleve.NewSearchRequestOptions(searchQuery, limit, offset, false)
	searchRequest.Fields = []string{
		indexFieldRecordID, indexFieldSource, indexFieldTitle, indexFieldSubtitle,
		indexFieldDescription, indexFieldCategory, indexFieldPage, indexFieldIcon,
	}

	searchResult, err := b.index.Search(searchRequest)
	if err != nil {
		b.logger.Error("search failed", "err", err.Error())
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, len(searchResult.Hits))
	for i, hit := range searchResult.Hits {
		results[i] = Result{
			Key:         hit.ID,
			ID:          stringField(hit.Fields, indexFieldRecordID),
			Source:      stringField(hit.Fields, indexFieldSource),
			Title:       stringField(hit.Fields, indexFieldTitle),
			Subtitle:    stringField(hit.Fields, indexFieldSubtitle),
			Description: stringField(hit.Fields, indexFieldDescription),
			Category:    stringField(hit.Fields, indexFieldCategory),
			Page:        stringField(hit.Fields, indexFieldPage),
			Icon:        stringField(hit.Fields, indexFieldIcon),
			Score:       hit.Score,
		}
	}

	return &Response{
		Results:    results,
		Total:      searchResult.Total,
		MaxScore:   searchResult.MaxScore,
		SearchTime: time.Since(start).String(),
	}, nil
}

func stringField(fields map[string]interface{}, name string) string {
	if value, ok := fields[name].(string); ok {
		return value
	}
	return ""
}

type fieldBoost struct {
	field string
	boost float64
}

// Title outranks subtitle, which outranks description, same as the
// substring ranking used by the search box.
var textFieldBoosts = []fieldBoost{
	{field: indexFieldTitle, boost: 3.0},
	{field: indexFieldSubtitle, boost: 2.0},
	{field: indexFieldDescription, boost: 1.0},
	{field: indexFieldCategory, boost: 1.0},
}

func (b *BleveDB) buildSearchQuery(queryString string) query.Query {

	phrases, remaining := parseQuotedQuery(queryString)
	if len(phrases) == 0 && remaining == "" {
		return bleve.NewMatchAllQuery()
	}

	if len(phrases) == 0 {
		return buildTermsQuery(remaining)
	}

	// every quoted phrase must match somewhere; loose terms only add score
	conjunctQuery := bleve.NewConjunctionQuery()
	for _, phrase := range phrases {
		phraseQuery := bleve.NewDisjunctionQuery()
		for _, fb := range textFieldBoosts {
			fieldPhraseQuery := bleve.NewMatchPhraseQuery(phrase)
			fieldPhraseQuery.SetField(fb.field)
			fieldPhraseQuery.SetBoost(fb.boost)
			phraseQuery.AddQuery(fieldPhraseQuery)
		}
		conjunctQuery.AddQuery(phraseQuery)
	}

	if remaining == "" {
		return conjunctQuery
	}

	booleanQuery := bleve.NewBooleanQuery()
	booleanQuery.AddMust(conjunctQuery)
	booleanQuery.AddShould(buildTermsQuery(remaining))

	return booleanQuery
}

func buildTermsQuery(queryString string) query.Query {

	const (
		boostForPhraseMatch  = 5.0
		boostForPartialMatch = 1.5
	)

	queryString = strings.ToLower(queryString)

	disjunctQuery := bleve.NewDisjunctionQuery()

	for _, fb := range textFieldBoosts {
		matchQuery := bleve.NewMatchQuery(queryString)
		matchQuery.SetField(fb.field)
		matchQuery.SetBoost(fb.boost)
		disjunctQuery.AddQuery(matchQuery)
	}

	phraseQuery := bleve.NewMatchPhraseQuery(queryString)
	phraseQuery.SetField(indexFieldDescription)
	phraseQuery.SetBoost(boostForPhraseMatch)
	disjunctQuery.AddQuery(phraseQuery)

	if len(queryString) > 2 && !strings.Contains(queryString, " ") {
		titlePrefixQuery := bleve.NewPrefixQuery(queryString)
		titlePrefixQuery.SetField(indexFieldTitle)
		titlePrefixQuery.SetBoost(boostForPartialMatch)
		disjunctQuery.AddQuery(titlePrefixQuery)

		descriptionPrefixQuery := bleve.NewPrefixQuery(queryString)
		descriptionPrefixQuery.SetField(indexFieldDescription)
		descriptionPrefixQuery.SetBoost(boostForPartialMatch)
		disjunctQuery.AddQuery(descriptionPrefixQuery)
	}

	return disjunctQuery
}

// parseQuotedQuery splits `"chest pain" smith` into the quoted phrases and
// the remaining loose terms.
func parseQuotedQuery(queryString string) ([]string, string) {
	var phrases []string
	for _, match := range quotedPhraseRegex.FindAllStringSubmatch(queryString, -1) {
		phrase := strings.Join(strings.Fields(match[1]), " ")
		if phrase != "" {
			phrases = append(phrases, phrase)
		}
	}

	remaining := quotedPhraseRegex.ReplaceAllString(queryString, " ")
	remaining = strings.Join(strings.Fields(remaining), " ")

	return phrases, remaining
}

func (b *BleveDB) GetDocCount() (uint64, error) {
	return b.index.DocCount()
}

func (b *BleveDB) Close() error {

	if b.index != nil {
		if err := b.index.Close(); err != nil {
			b.logger.Error("could not close search index", "err", err.Error())
			return err
		}
	}
	return nil
}
