package search

import "errors"

var ErrCatalogUnavailable = errors.New("full-text catalog is not available")
