package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexEquipment indexes a catalog item (fire-and-forget to Meilisearch).
func (s *Service) IndexEquipment(e EquipmentRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexEquipment(e); err != nil {
			log.Printf("search: index equipment %s: %v", e.ID, err)
		}
	}()
}

// IndexPlayer indexes a player profile (fire-and-forget to Meilisearch).
func (s *Service) IndexPlayer(p PlayerRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexPlayer(p); err != nil {
			log.Printf("search: index player %s: %v", p.ID, err)
		}
	}()
}

// IndexReview indexes a published review (fire-and-forget to Meilisearch).
func (s *Service) IndexReview(r ReviewRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexReview(r); err != nil {
			log.Printf("search: index review %s: %v", r.ID, err)
		}
	}()
}

// DeleteEquipment removes a catalog item from the search index (fire-and-forget).
func (s *Service) DeleteEquipment(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteEquipment(id); err != nil {
			log.Printf("search: delete equipment %s: %v", id, err)
		}
	}()
}

// DeleteReview removes a review from the search index (fire-and-forget).
func (s *Service) DeleteReview(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteReview(id); err != nil {
			log.Printf("search: delete review %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes the given records to Meilisearch.
func (s *Service) ReindexAll(equipment []EquipmentRecord, players []PlayerRecord, reviews []ReviewRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if len(equipment) > 0 {
		if err := s.meili.IndexEquipmentBatch(equipment); err != nil {
			log.Printf("search: reindex equipment: %v", err)
		}
	}
	if len(players) > 0 {
		if err := s.meili.IndexPlayers(players); err != nil {
			log.Printf("search: reindex players: %v", err)
		}
	}
	if len(reviews) > 0 {
		if err := s.meili.IndexReviews(reviews); err != nil {
			log.Printf("search: reindex reviews: %v", err)
		}
	}
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	equipment, players, reviews, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(equipment, players, reviews)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
