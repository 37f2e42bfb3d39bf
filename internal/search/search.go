package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultEquipment ResultType = "equipment"
	ResultPlayer    ResultType = "player"
	ResultReview    ResultType = "review"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type        ResultType `json:"type"`
	ID          string     `json:"id"`
	Slug        string     `json:"slug,omitempty"`
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet"`
	EquipmentID string     `json:"equipmentId,omitempty"`
	Category    string     `json:"category,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text           string
	FilterType     ResultType // empty = all types
	FilterCategory string     // equipment category, e.g. "rubber"
	Limit          int
	Offset         int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexEquipment(e EquipmentRecord) error
	IndexPlayer(p PlayerRecord) error
	IndexReview(r ReviewRecord) error
	DeleteEquipment(id string) error
	DeleteReview(id string) error
}

// EquipmentRecord is the data we index for a catalog item.
type EquipmentRecord struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Brand    string `json:"brand"`
	Category string `json:"category"`
}

// PlayerRecord is the data we index for a player profile.
type PlayerRecord struct {
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Blade   string `json:"blade"`
}

// ReviewRecord is the data we index for a published review.
type ReviewRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	EquipmentID string `json:"equipmentId"`
	Category    string `json:"category"`
}
