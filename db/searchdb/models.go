package searchdb

// Document is a searchable record as stored in the full-text catalog. Key is
// the catalog document ID and is unique across sources.
type Document struct {
	Key         string `json:"key"`
	ID          string `json:"record_id"`
	Source      string `json:"source"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Page        string `json:"page"`
	Icon        string `json:"icon"`
}

type Result struct {
	Key         string  `json:"key"`
	ID          string  `json:"id"`
	Source      string  `json:"source"`
	Title       string  `json:"title"`
	Subtitle    string  `json:"subtitle"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Page        string  `json:"page"`
	Icon        string  `json:"icon"`
	Score       float64 `json:"score"`
}

type Response struct {
	Results    []Result `json:"results"`
	Total      uint64   `json:"total"`
	MaxScore   float64  `json:"max_score"`
	SearchTime string   `json:"search_time"`
}
