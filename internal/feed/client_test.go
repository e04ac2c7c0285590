package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDate = time.Date(2026, 8, 12, 15, 4, 5, 0, time.UTC)

// TestFetchPageRequest tests URL construction and payload decoding
func TestFetchPageRequest(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"results":[{"id":287,"adult":false},{"id":"1245","adult":true}],"page":1,"total_pages":3,"total_results":41}`)
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "secret")
	page, err := client.FetchPage(context.Background(), testDate, 1)
	require.NoError(t, err)

	assert.Equal(t, "/changes", gotPath)
	assert.Equal(t, "start_date=2026-08-12&api_key=secret&page=1", gotQuery)
	assert.Equal(t, []string{"287", "1245"}, page.IDs)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 3, page.TotalPages)
}

// TestFetchPageTransportError tests that network failures surface as TransportError
func TestFetchPageTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewClient(http.DefaultClient, server.URL, "secret")
	_, err := client.FetchPage(context.Background(), testDate, 1)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

// TestFetchPageHTTPStatusError tests that non-200 responses surface as TransportError
func TestFetchPageHTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "bad-key")
	_, err := client.FetchPage(context.Background(), testDate, 1)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Contains(t, err.Error(), "401")
}

// TestFetchPageDecodeError tests that malformed payloads surface as DecodeError
func TestFetchPageDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "secret")
	_, err := client.FetchPage(context.Background(), testDate, 1)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

// TestFetchAllChangesPagination tests that a feed with k pages issues
// exactly k fetches and concatenates the results in page order
func TestFetchAllChangesPagination(t *testing.T) {
	pages := map[string]string{
		"1": `{"results":[{"id":"10"},{"id":"11"}],"page":1,"total_pages":3,"total_results":5}`,
		"2": `{"results":[{"id":"12"},{"id":"13"}],"page":2,"total_pages":3,"total_results":5}`,
		"3": `{"results":[{"id":"14"}],"page":3,"total_pages":3,"total_results":5}`,
	}
	var fetches int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		fmt.Fprint(w, pages[r.URL.Query().Get("page")])
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "secret")
	ids, err := client.FetchAllChanges(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, 3, fetches)
	assert.Equal(t, []string{"10", "11", "12", "13", "14"}, ids)
}

// TestFetchAllChangesStopsOnEmptyPage tests the zero-results stop condition
func TestFetchAllChangesStopsOnEmptyPage(t *testing.T) {
	var fetches int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"results":[{"id":"10"}],"page":1,"total_pages":5,"total_results":1}`)
			return
		}
		fmt.Fprint(w, `{"results":[],"page":2,"total_pages":5,"total_results":1}`)
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "secret")
	ids, err := client.FetchAllChanges(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, 2, fetches)
	assert.Equal(t, []string{"10"}, ids)
}

// TestFetchAllChangesSinglePage tests that a one-page feed is fetched once
func TestFetchAllChangesSinglePage(t *testing.T) {
	var fetches int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		fmt.Fprint(w, `{"results":[{"id":"7"}],"page":1,"total_pages":1,"total_results":1}`)
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "secret")
	ids, err := client.FetchAllChanges(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, 1, fetches)
	assert.Equal(t, []string{"7"}, ids)
}

// TestFetchAllChangesPropagatesErrors tests that a mid-walk failure
// aborts the aggregation with no partial result
func TestFetchAllChangesPropagatesErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"results":[{"id":"10"}],"page":1,"total_pages":2,"total_results":2}`)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, "secret")
	ids, err := client.FetchAllChanges(context.Background(), testDate)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Nil(t, ids)
}

// TestFetchAllChangesCancellation tests that a cancelled context stops
// the walk before the next fetch
func TestFetchAllChangesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(http.DefaultClient, "http://127.0.0.1:0", "secret")
	_, err := client.FetchAllChanges(ctx, testDate)
	assert.True(t, errors.Is(err, context.Canceled))
}
