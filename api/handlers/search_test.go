package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordPayload struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Category string `json:"category"`
	Page     string `json:"page"`
	Icon     string `json:"icon"`
}

type quickSearchPayload struct {
	Results []recordPayload `json:"results"`
	Warming bool            `json:"warming"`
}

type categorySearchPayload struct {
	Results map[string][]recordPayload `json:"results"`
	Warming bool                       `json:"warming"`
}

type fullTextPayload struct {
	Results []struct {
		Key   string  `json:"key"`
		ID    string  `json:"id"`
		Title string  `json:"title"`
		Page  string  `json:"page"`
		Score float64 `json:"score"`
	} `json:"results"`
	PageDetails Pagination `json:"page_details"`
}

func keys(records []recordPayload) []string {
	result := make([]string, 0, len(records))
	for _, r := range records {
		result = append(result, r.Key)
	}
	return result
}

var searchHandlerTestCases = []struct {
	testCase
	expectedKeys []string
}{
	{
		testCase:     testCase{name: "NoQuery", queryParams: map[string]string{}, expectedStatus: http.StatusOK},
		expectedKeys: []string{},
	},
	{
		testCase:     testCase{name: "SingleCharacter", queryParams: map[string]string{"query": "a"}, expectedStatus: http.StatusOK},
		expectedKeys: []string{},
	},
	{
		testCase: testCase{name: "QueryTooLong", queryParams: map[string]string{"query": strings.Repeat("a", 1001)}, expectedStatus: http.StatusNotAcceptable},
	},
	{
		testCase:     testCase{name: "PatientName", queryParams: map[string]string{"query": "smith"}, expectedStatus: http.StatusOK},
		expectedKeys: []string{"patients:1", "consultations:1", "consultations:2", "medicalRecords:1"},
	},
	{
		testCase:     testCase{name: "TitleMatchesFirst", queryParams: map[string]string{"query": "Dental"}, expectedStatus: http.StatusOK},
		expectedKeys: []string{"supplies:dental-6", "equipment:dental-6", "patients:2", "consultations:3", "medicalRecords:2"},
	},
	{
		testCase:     testCase{name: "Medicine", queryParams: map[string]string{"query": "amox"}, expectedStatus: http.StatusOK},
		expectedKeys: []string{"medicines:2"},
	},
	{
		testCase:     testCase{name: "SerialNumber", queryParams: map[string]string{"query": "s/n bp-2231"}, expectedStatus: http.StatusOK},
		expectedKeys: []string{"equipment:medical-6"},
	},
}

func TestHandleSearch(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	for _, testCase := range searchHandlerTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/search", testCase.requestHeaders, testCase.requestBody, testCase.queryParams)
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", w.Body.String()))
			if w.Code != http.StatusOK {
				return
			}

			payload := quickSearchPayload{}
			decodeData(assert, w, &payload)
			assert.False(payload.Warming)
			assert.Equal(testCase.expectedKeys, keys(payload.Results))
		})
	}
}

func TestHandleSearchSinglePatientResult(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/search", nil, nil, map[string]string{"query": "smith"})
	assert.Equal(http.StatusOK, w.Code)
	payload := quickSearchPayload{}
	decodeData(assert, w, &payload)

	var patients []recordPayload
	for _, r := range payload.Results {
		if r.Page == "Patients" {
			patients = append(patients, r)
		}
	}
	assert.Len(patients, 1)
	assert.Equal("Smith, John", patients[0].Title)
	assert.Equal("PAT001 - Medical Patient", patients[0].Subtitle)
	assert.Equal("user", patients[0].Icon)
}

func TestHandleSearchByCategory(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/search/categories", nil, nil, map[string]string{"query": "dental"})
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	payload := categorySearchPayload{}
	decodeData(assert, w, &payload)

	assert.Len(payload.Results, 6)
	assert.Equal([]string{"patients:2"}, keys(payload.Results["patients"]))
	assert.Equal([]string{"consultations:3"}, keys(payload.Results["consultations"]))
	assert.Equal([]string{"medicalRecords:2"}, keys(payload.Results["medicalRecords"]))
	assert.Empty(payload.Results["medicines"])
	assert.Equal([]string{"supplies:dental-6"}, keys(payload.Results["supplies"]))
	assert.Equal([]string{"equipment:dental-6"}, keys(payload.Results["equipment"]))

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, "/search/categories", nil, nil, map[string]string{"query": "d"})
	assert.Equal(http.StatusOK, w.Code)
	payload = categorySearchPayload{}
	decodeData(assert, w, &payload)
	assert.Len(payload.Results, 6)
	for category, results := range payload.Results {
		assert.NotNil(results, category)
		assert.Empty(results, category)
	}
}

var fullTextHandlerTestCases = []testCase{
	{
		name:           "NoQuery",
		queryParams:    map[string]string{},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "BlankQuery",
		queryParams:    map[string]string{"query": "   "},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "InvalidPerPage",
		queryParams:    map[string]string{"query": "gauze", "per_page": "-1"},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "InvalidPage",
		queryParams:    map[string]string{"query": "gauze", "page": "-1"},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "NonNumericPage",
		queryParams:    map[string]string{"query": "gauze", "page": "two"},
		expectedStatus: http.StatusUnprocessableEntity,
	},
}

func TestHandleFullTextSearchValidation(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	for _, testCase := range fullTextHandlerTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/search/fulltext", testCase.requestHeaders, testCase.requestBody, testCase.queryParams)
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", w.Body.String()))
		})
	}
}

func TestHandleFullTextSearch(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/search/fulltext", nil, nil, map[string]string{"query": "gauze"})
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	assert.Equal("1", w.Header().Get(HeaderPaginationTotalCount))
	payload := fullTextPayload{}
	decodeData(assert, w, &payload)
	assert.Len(payload.Results, 1)
	assert.Equal("supplies:medical-6", payload.Results[0].Key)
	assert.Equal("medical-6", payload.Results[0].ID)
	assert.Equal(1, payload.PageDetails.CurrentPage)
	assert.Equal(1, payload.PageDetails.TotalResults)

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, "/search/fulltext", nil, nil, map[string]string{"query": `"blood pressure"`})
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	payload = fullTextPayload{}
	decodeData(assert, w, &payload)
	assert.Len(payload.Results, 1)
	assert.Equal("equipment:medical-6", payload.Results[0].Key)

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, "/search/fulltext", nil, nil, map[string]string{"query": "dental", "per_page": "2", "page": "2"})
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	payload = fullTextPayload{}
	decodeData(assert, w, &payload)
	assert.Equal(2, payload.PageDetails.CurrentPage)
	assert.Equal(2, payload.PageDetails.PageSize)
	assert.True(payload.PageDetails.HasPrevPage)
	assert.LessOrEqual(len(payload.Results), 2)
}
