package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/clinicsearch/db/searchdb"
	"github.com/meghashyamc/clinicsearch/logger"
	"github.com/meghashyamc/clinicsearch/services/index"
	"github.com/meghashyamc/clinicsearch/services/search"
	"github.com/meghashyamc/clinicsearch/validation"
)

const defaultResultsPerPage = 20

// QuickSearchRequest backs the search box. Short queries are answered with
// no results rather than rejected.
type QuickSearchRequest struct {
	Query string `form:"query" validate:"max=1000"`
}

type QuickSearchResponse struct {
	Results []index.Record `json:"results"`
	Warming bool           `json:"warming"`
}

type CategorySearchResponse struct {
	Results map[index.Category][]index.Record `json:"results"`
	Warming bool                              `json:"warming"`
}

type FullTextSearchRequest struct {
	Query   string `form:"query" validate:"required,valid_query,min=1,max=1000"`
	PerPage int    `form:"per_page" validate:"min=0,max=100"`
	Page    int    `form:"page" validate:"min=0"`
}

func (r *FullTextSearchRequest) setDefaults() {
	if r.PerPage == 0 {
		r.PerPage = defaultResultsPerPage
	}

	if r.Page == 0 {
		r.Page = 1
	}
}

type FullTextSearchResponse struct {
	Results     []searchdb.Result `json:"results"`
	PageDetails Pagination        `json:"page_details"`
}

func SetupSearch(router *gin.Engine, logger logger.Logger, service *search.Service, validator *validation.Validator) {
	router.GET("/search", handleSearch(service, logger, validator))
	router.GET("/search/categories", handleSearchByCategory(service, logger, validator))
	router.GET("/search/fulltext", handleFullTextSearch(service, logger, validator))
}

func bindQuickSearch(c *gin.Context, logger logger.Logger, validator *validation.Validator) (*QuickSearchRequest, bool) {
	request := QuickSearchRequest{}
	if err := c.ShouldBindQuery(&request); err != nil {
		logger.Warn("could not extract expected params from search request", "err", err.Error())
		c.Abort()
		writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request query parameters"})
		return nil, false
	}

	if err := validator.Validate(request); err != nil {
		logger.Warn("could not validate search request", "err", err.Error())
		c.Abort()
		writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
		return nil, false
	}

	return &request, true
}

func handleSearch(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request, ok := bindQuickSearch(c, logger, validator)
		if !ok {
			return
		}

		writeResponse(c, QuickSearchResponse{
			Results: service.Search(request.Query),
			Warming: service.Warming(),
		}, http.StatusOK, nil)
	}
}

func handleSearchByCategory(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request, ok := bindQuickSearch(c, logger, validator)
		if !ok {
			return
		}

		writeResponse(c, CategorySearchResponse{
			Results: service.ResultsByCategory(request.Query),
			Warming: service.Warming(),
		}, http.StatusOK, nil)
	}
}

func handleFullTextSearch(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := FullTextSearchRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request query parameters"})
			return
		}
		request.setDefaults()

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		limit := request.PerPage
		offset := (request.Page - 1) * request.PerPage
		results, err := service.FullText(request.Query, limit, offset)
		if err != nil {
			logger.Error("full-text search failed", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		c.Header(HeaderPaginationTotalCount, strconv.FormatUint(results.Total, 10))
		writeResponse(c, FullTextSearchResponse{
			Results: results.Results,
			PageDetails: calculatePagination(
				int(results.Total),
				limit,
				offset),
		}, http.StatusOK, nil)
	}
}
