package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across equipment, players, and published
// reviews using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Equipment sub-query
	if q.FilterType == "" || q.FilterType == ResultEquipment {
		eqWhere := "e.fts @@ " + tsQuery
		if q.FilterCategory != "" {
			eqWhere += fmt.Sprintf(" AND e.category = $%d", argN)
			args = append(args, q.FilterCategory)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'equipment'::text AS type, e.id, e.slug, e.name AS title,
				ts_headline('english', coalesce(e.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				e.id AS equipment_id, e.category,
				ts_rank(e.fts, %s) AS rank
			FROM equipment e
			WHERE %s`, tsQuery, tsQuery, eqWhere))
	}

	// Players sub-query
	if q.FilterType == "" || q.FilterType == ResultPlayer {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'player'::text AS type, pl.id, pl.slug, pl.name AS title,
				ts_headline('english', coalesce(pl.blade, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS equipment_id, ''::text AS category,
				ts_rank(pl.fts, %s) AS rank
			FROM players pl
			WHERE pl.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	// Published reviews sub-query
	if q.FilterType == "" || q.FilterType == ResultReview {
		revWhere := "r.fts @@ " + tsQuery + " AND r.published = TRUE"
		if q.FilterCategory != "" {
			revWhere += fmt.Sprintf(" AND e.category = $%d", argN)
			args = append(args, q.FilterCategory)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'review'::text AS type, r.id, ''::text AS slug, r.title,
				ts_headline('english', coalesce(r.body, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				r.equipment_id, e.category,
				ts_rank(r.fts, %s) AS rank
			FROM reviews r
			JOIN equipment e ON e.id = r.equipment_id
			WHERE %s`, tsQuery, tsQuery, revWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	// Count query
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	// Data query
	dataSQL := fmt.Sprintf(`SELECT type, id, slug, title, snippet, equipment_id, category
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Slug, &r.Title, &r.Snippet, &r.EquipmentID, &r.Category); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]EquipmentRecord, []PlayerRecord, []ReviewRecord, error) {
	eqRows, err := p.db.QueryContext(ctx, `
		SELECT id, slug, name, brand, category
		FROM equipment
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load equipment: %w", err)
	}
	defer eqRows.Close()

	equipment := make([]EquipmentRecord, 0)
	for eqRows.Next() {
		var e EquipmentRecord
		if err := eqRows.Scan(&e.ID, &e.Slug, &e.Name, &e.Brand, &e.Category); err != nil {
			return nil, nil, nil, fmt.Errorf("scan equipment: %w", err)
		}
		equipment = append(equipment, e)
	}
	if err := eqRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate equipment: %w", err)
	}

	playerRows, err := p.db.QueryContext(ctx, `
		SELECT id, slug, name, coalesce(country, ''), coalesce(blade, '')
		FROM players
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load players: %w", err)
	}
	defer playerRows.Close()

	players := make([]PlayerRecord, 0)
	for playerRows.Next() {
		var pl PlayerRecord
		if err := playerRows.Scan(&pl.ID, &pl.Slug, &pl.Name, &pl.Country, &pl.Blade); err != nil {
			return nil, nil, nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, pl)
	}
	if err := playerRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate players: %w", err)
	}

	reviewRows, err := p.db.QueryContext(ctx, `
		SELECT r.id, r.title, r.body, r.equipment_id, e.category
		FROM reviews r
		JOIN equipment e ON e.id = r.equipment_id
		WHERE r.published = TRUE
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load reviews: %w", err)
	}
	defer reviewRows.Close()

	reviews := make([]ReviewRecord, 0)
	for reviewRows.Next() {
		var r ReviewRecord
		if err := reviewRows.Scan(&r.ID, &r.Title, &r.Body, &r.EquipmentID, &r.Category); err != nil {
			return nil, nil, nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := reviewRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate reviews: %w", err)
	}

	return equipment, players, reviews, nil
}
