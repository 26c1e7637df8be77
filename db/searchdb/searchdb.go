package searchdb

type DB interface {
	ReplaceCategory(source string, documents []Document) error
	Search(queryString string, limit int, offset int) (*Response, error)
	GetDocCount() (uint64, error)
	Close() error
}
