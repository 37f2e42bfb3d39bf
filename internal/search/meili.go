package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxEquipment = "spindb_equipment"
	idxPlayers   = "spindb_players"
	idxReviews   = "spindb_reviews"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes.
// Returns nil if the initial connection fails (caller should proceed without it).
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	// Initial health check
	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		primaryKey string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxEquipment,
			primaryKey: "id",
			filterable: []string{"category", "brand"},
			searchable: []string{"name", "brand"},
		},
		{
			uid:        idxPlayers,
			primaryKey: "id",
			filterable: []string{"country"},
			searchable: []string{"name", "blade"},
		},
		{
			uid:        idxReviews,
			primaryKey: "id",
			filterable: []string{"category", "equipmentId"},
			searchable: []string{"title", "body"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: idx.primaryKey,
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		filterableInterface := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterableInterface[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
			log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries all three indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxEquipment, ResultEquipment},
		{idxPlayers, ResultPlayer},
		{idxReviews, ResultReview},
	}

	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              ti.uid,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
		}

		if q.FilterCategory != "" && ti.rtyp != ResultPlayer {
			sr.Filter = []string{fmt.Sprintf("category = %q", q.FilterCategory)}
		}
		queries = append(queries, sr)
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}

	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxEquipment:
		return ResultEquipment
	case idxPlayers:
		return ResultPlayer
	case idxReviews:
		return ResultReview
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.Slug = decodeString(hit, "slug")
	r.EquipmentID = decodeString(hit, "equipmentId")
	r.Category = decodeString(hit, "category")

	switch rtyp {
	case ResultEquipment:
		r.Title = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "brand"), decodeString(hit, "brand"))
	case ResultPlayer:
		r.Title = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "blade"), decodeString(hit, "blade"))
	case ResultReview:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "body"), decodeString(hit, "body"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexEquipment adds or updates a catalog item in the search index.
func (m *Meili) IndexEquipment(e EquipmentRecord) error {
	_, err := m.client.Index(idxEquipment).AddDocuments([]EquipmentRecord{e}, nil)
	return err
}

// IndexPlayer adds or updates a player in the search index.
func (m *Meili) IndexPlayer(p PlayerRecord) error {
	_, err := m.client.Index(idxPlayers).AddDocuments([]PlayerRecord{p}, nil)
	return err
}

// IndexReview adds or updates a published review in the search index.
func (m *Meili) IndexReview(r ReviewRecord) error {
	_, err := m.client.Index(idxReviews).AddDocuments([]ReviewRecord{r}, nil)
	return err
}

// DeleteEquipment removes a catalog item from the search index.
func (m *Meili) DeleteEquipment(id string) error {
	_, err := m.client.Index(idxEquipment).DeleteDocument(id, nil)
	return err
}

// DeleteReview removes a review from the search index.
func (m *Meili) DeleteReview(id string) error {
	_, err := m.client.Index(idxReviews).DeleteDocument(id, nil)
	return err
}

// IndexEquipmentBatch bulk-indexes catalog items.
func (m *Meili) IndexEquipmentBatch(items []EquipmentRecord) error {
	if len(items) == 0 {
		return nil
	}
	_, err := m.client.Index(idxEquipment).AddDocuments(items, nil)
	return err
}

// IndexPlayers bulk-indexes player profiles.
func (m *Meili) IndexPlayers(players []PlayerRecord) error {
	if len(players) == 0 {
		return nil
	}
	_, err := m.client.Index(idxPlayers).AddDocuments(players, nil)
	return err
}

// IndexReviews bulk-indexes published reviews.
func (m *Meili) IndexReviews(reviews []ReviewRecord) error {
	if len(reviews) == 0 {
		return nil
	}
	_, err := m.client.Index(idxReviews).AddDocuments(reviews, nil)
	return err
}
