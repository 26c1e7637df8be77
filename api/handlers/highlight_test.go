package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meghashyamc/clinicsearch/events"
	"github.com/stretchr/testify/require"
)

type outcomePayload struct {
	Stored    bool   `json:"stored"`
	Broadcast bool   `json:"broadcast"`
	Navigated bool   `json:"navigated"`
	Route     string `json:"route"`
}

type changePayload struct {
	Event       string `json:"event"`
	HighlightID string `json:"highlight_id"`
	ScrollTo    string `json:"scroll_to"`
}

func selectHighlight(server *testServer, assert *require.Assertions, body map[string]any) outcomePayload {
	w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/highlight", defaultTestRequestHeaders, body, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	outcome := outcomePayload{}
	decodeData(assert, w, &outcome)
	return outcome
}

func TestHandleSelectHighlightValidation(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)
	session := uuid.NewString()

	testCases := []testCase{
		{
			name:           "NoRequestBody",
			requestHeaders: defaultTestRequestHeaders,
			requestBody:    nil,
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "InvalidSession",
			requestHeaders: defaultTestRequestHeaders,
			requestBody:    map[string]any{"session": "not-a-session", "id": "1", "page": "Patients"},
			expectedStatus: http.StatusNotAcceptable,
		},
		{
			name:           "MissingID",
			requestHeaders: defaultTestRequestHeaders,
			requestBody:    map[string]any{"session": session, "page": "Patients"},
			expectedStatus: http.StatusNotAcceptable,
		},
		{
			name:           "UnknownPage",
			requestHeaders: defaultTestRequestHeaders,
			requestBody:    map[string]any{"session": session, "id": "1", "page": "Billing"},
			expectedStatus: http.StatusNotAcceptable,
		},
		{
			name:           "UnknownCurrentPage",
			requestHeaders: defaultTestRequestHeaders,
			requestBody:    map[string]any{"session": session, "id": "1", "page": "Patients", "current_page": "Billing"},
			expectedStatus: http.StatusNotAcceptable,
		},
		{
			name:           "Valid",
			requestHeaders: defaultTestRequestHeaders,
			requestBody:    map[string]any{"session": session, "id": "1", "page": "Patients"},
			expectedStatus: http.StatusOK,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/highlight", testCase.requestHeaders, testCase.requestBody, testCase.queryParams)
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", w.Body.String()))
		})
	}
}

func TestHandleSelectHighlightOnCurrentPage(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)
	session := uuid.NewString()

	subscriber := server.hub.Subscribe(session)
	defer subscriber.Close()

	outcome := selectHighlight(server, assert, map[string]any{
		"session":      session,
		"id":           "medical-6",
		"page":         "Supplies",
		"current_page": "Supplies",
	})
	assert.True(outcome.Stored)
	assert.True(outcome.Broadcast)
	assert.False(outcome.Navigated)

	select {
	case msg := <-subscriber.C():
		assert.Equal(events.EventHighlight, msg.Event)
		assert.Equal("medical-6", msg.HighlightID)
	case <-time.After(time.Second):
		assert.Fail("no highlight was broadcast")
	}
}

func TestHandleSelectHighlightOnOtherPage(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)
	session := uuid.NewString()

	outcome := selectHighlight(server, assert, map[string]any{
		"session":      session,
		"id":           "dental-6",
		"page":         "Equipment",
		"current_page": "Patients",
	})
	assert.True(outcome.Stored)
	assert.False(outcome.Broadcast)
	assert.True(outcome.Navigated)
	assert.Equal("/equipment", outcome.Route)

	w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/highlight", nil, nil, map[string]string{"session": session, "page": "Equipment"})
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	state := HighlightStateResponse{}
	decodeData(assert, w, &state)
	assert.True(state.Active)
	assert.Equal("dental-6", state.ID)

	// another session sees nothing
	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, "/highlight", nil, nil, map[string]string{"session": uuid.NewString(), "page": "Equipment"})
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	state = HighlightStateResponse{}
	decodeData(assert, w, &state)
	assert.False(state.Active)
	assert.Empty(state.ID)
}

func TestHandleGetHighlightValidation(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	testCases := []testCase{
		{
			name:           "NoSession",
			queryParams:    map[string]string{"page": "Patients"},
			expectedStatus: http.StatusNotAcceptable,
		},
		{
			name:           "NoPage",
			queryParams:    map[string]string{"session": uuid.NewString()},
			expectedStatus: http.StatusNotAcceptable,
		},
		{
			name:           "UnknownPage",
			queryParams:    map[string]string{"session": uuid.NewString(), "page": "Billing"},
			expectedStatus: http.StatusNotAcceptable,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/highlight", testCase.requestHeaders, testCase.requestBody, testCase.queryParams)
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", w.Body.String()))
		})
	}
}

type streamEvent struct {
	name string
	data string
}

// readStreamEvent returns the next named event, skipping heartbeats.
func readStreamEvent(scanner *bufio.Scanner) (streamEvent, bool) {
	event := streamEvent{}
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			event.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && event.name != "":
			return event, true
		}
	}
	return event, false
}

func TestHandleHighlightStream(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)
	session := uuid.NewString()

	httpServer := httptest.NewServer(server.router)
	defer httpServer.Close()

	selectHighlight(server, assert, map[string]any{
		"session":      session,
		"id":           "medical-6",
		"page":         "Equipment",
		"current_page": "Medicines",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	query := url.Values{"session": {session}, "page": {"Equipment"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpServer.URL+"/highlight/stream?"+query.Encode(), nil)
	assert.NoError(err)
	resp, err := http.DefaultClient.Do(req)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Contains(resp.Header.Get("Content-Type"), "text/event-stream")

	scanner := bufio.NewScanner(resp.Body)

	event, ok := readStreamEvent(scanner)
	assert.True(ok)
	assert.Equal("highlight", event.name)
	change := changePayload{}
	assert.NoError(json.Unmarshal([]byte(event.data), &change))
	assert.Equal("medical-6", change.HighlightID)
	assert.Equal(`[data-highlight-id="medical-6"]`, change.ScrollTo)

	// a selection made while the page is open arrives live
	eventually(assert, func() bool { return server.hub.Subscribers(session) > 0 })
	outcome := selectHighlight(server, assert, map[string]any{
		"session":      session,
		"id":           "dental-6",
		"page":         "Equipment",
		"current_page": "Equipment",
	})
	assert.True(outcome.Broadcast)

	event, ok = readStreamEvent(scanner)
	assert.True(ok)
	assert.Equal("highlight", event.name)
	change = changePayload{}
	assert.NoError(json.Unmarshal([]byte(event.data), &change))
	assert.Equal("dental-6", change.HighlightID)

	cancel()
	eventually(assert, func() bool { return server.hub.Subscribers(session) == 0 })
}
