package noticesource

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	apperrors "notice-push/internal/common/errors"
	"notice-push/internal/common/logger"
	"notice-push/internal/notice"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeES(t *testing.T, status int, body string, gotQuery *map[string]interface{}) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if gotQuery != nil && r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(gotQuery)
		}
		assert.Equal(t, "/animal-notices/_search", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestElasticsearch_Fetch(t *testing.T) {
	var query map[string]interface{}
	client := fakeES(t, http.StatusOK, `{
		"hits": {
			"total": {"value": 2},
			"hits": [
				{"_source": {"notice_no": "N-1", "upr_cd": "6110000", "upkind": "417000", "sex_cd": "M"}},
				{"_source": {"desertion_no": "D-2", "org_cd": "3220000", "upkind": "422400"}}
			]
		}
	}`, &query)

	src := NewElasticsearch(client, "animal-notices", 50, logger.NewTestLogger(t))
	notices, err := src.Fetch(testContext(t), notice.DateWindow{Bgupd: "20260221", Enupd: "20260223"})
	require.NoError(t, err)
	require.Len(t, notices, 2)
	assert.Equal(t, "N-1", notices[0].NoticeNo)
	assert.Equal(t, "D-2", notices[1].DesertionNo)

	assert.EqualValues(t, 50, query["size"])
	filter := query["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	rng := filter[0].(map[string]interface{})["range"].(map[string]interface{})[UpdateDateField].(map[string]interface{})
	assert.Equal(t, "20260221", rng["gte"])
	assert.Equal(t, "20260223", rng["lte"])
}

func TestElasticsearch_Fetch_MissingIndex(t *testing.T) {
	client := fakeES(t, http.StatusNotFound, `{"error":{"type":"index_not_found_exception"},"status":404}`, nil)

	notices, err := NewElasticsearch(client, "animal-notices", 0, logger.NewNoOpLogger()).
		Fetch(testContext(t), notice.DateWindow{Bgupd: "20260222", Enupd: "20260223"})
	require.NoError(t, err)
	assert.Empty(t, notices)
}

func TestElasticsearch_Fetch_ServerError(t *testing.T) {
	client := fakeES(t, http.StatusBadRequest, `{"error":{"type":"parse_exception"},"status":400}`, nil)

	_, err := NewElasticsearch(client, "animal-notices", 10, logger.NewNoOpLogger()).
		Fetch(testContext(t), notice.DateWindow{Bgupd: "20260222", Enupd: "20260223"})
	require.Error(t, err)
	stdErr := apperrors.AsStandardError(err)
	require.NotNil(t, stdErr)
	assert.Equal(t, apperrors.ErrCodeNoticeSource, stdErr.Code)
}

type esPage struct {
	status int
	body   string
}

// pagedES answers successive search requests with pages in order and records
// every request body.
func pagedES(t *testing.T, pages []esPage, queries *[]map[string]interface{}) *elasticsearch.Client {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		var q map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&q)
		*queries = append(*queries, q)

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if !assert.LessOrEqual(t, len(*queries), len(pages), "unexpected extra page request") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		page := pages[len(*queries)-1]
		w.WriteHeader(page.status)
		_, _ = w.Write([]byte(page.body))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestElasticsearch_Fetch_PagesThroughWindow(t *testing.T) {
	var queries []map[string]interface{}
	client := pagedES(t, []esPage{
		{http.StatusOK, `{"hits":{"total":{"value":5},"hits":[
			{"_source":{"desertion_no":"D-1"},"sort":["20260221","D-1"]},
			{"_source":{"desertion_no":"D-2"},"sort":["20260221","D-2"]}
		]}}`},
		{http.StatusOK, `{"hits":{"total":{"value":5},"hits":[
			{"_source":{"desertion_no":"D-3"},"sort":["20260222","D-3"]},
			{"_source":{"desertion_no":"D-4"},"sort":["20260223","D-4"]}
		]}}`},
		{http.StatusOK, `{"hits":{"total":{"value":5},"hits":[
			{"_source":{"desertion_no":"D-5"},"sort":["20260223","D-5"]}
		]}}`},
	}, &queries)

	notices, err := NewElasticsearch(client, "animal-notices", 2, logger.NewTestLogger(t)).
		Fetch(testContext(t), notice.DateWindow{Bgupd: "20260221", Enupd: "20260223"})
	require.NoError(t, err)

	ids := make([]string, 0, len(notices))
	for _, n := range notices {
		ids = append(ids, n.DesertionNo)
	}
	assert.Equal(t, []string{"D-1", "D-2", "D-3", "D-4", "D-5"}, ids, "the newest notices are not dropped")

	require.Len(t, queries, 3)
	assert.NotContains(t, queries[0], "search_after")
	assert.Equal(t, []interface{}{"20260221", "D-2"}, queries[1]["search_after"])
	assert.Equal(t, []interface{}{"20260223", "D-4"}, queries[2]["search_after"])
	for _, q := range queries {
		assert.EqualValues(t, 2, q["size"])
	}
}

func TestElasticsearch_Fetch_ExactPageThenEmpty(t *testing.T) {
	var queries []map[string]interface{}
	client := pagedES(t, []esPage{
		{http.StatusOK, `{"hits":{"total":{"value":2},"hits":[
			{"_source":{"notice_no":"N-1"},"sort":["20260222","D-1"]},
			{"_source":{"notice_no":"N-2"},"sort":["20260222","D-2"]}
		]}}`},
		{http.StatusOK, `{"hits":{"total":{"value":2},"hits":[]}}`},
	}, &queries)

	notices, err := NewElasticsearch(client, "animal-notices", 2, logger.NewNoOpLogger()).
		Fetch(testContext(t), notice.DateWindow{Bgupd: "20260222", Enupd: "20260223"})
	require.NoError(t, err)
	assert.Len(t, notices, 2)
	assert.Len(t, queries, 2)
}

func TestElasticsearch_Fetch_FailedPageFailsFetch(t *testing.T) {
	var queries []map[string]interface{}
	client := pagedES(t, []esPage{
		{http.StatusOK, `{"hits":{"total":{"value":3},"hits":[
			{"_source":{"notice_no":"N-1"},"sort":["20260222","D-1"]}
		]}}`},
		{http.StatusBadRequest, `{"error":{"type":"illegal_argument_exception"},"status":400}`},
	}, &queries)

	_, err := NewElasticsearch(client, "animal-notices", 1, logger.NewNoOpLogger()).
		Fetch(testContext(t), notice.DateWindow{Bgupd: "20260222", Enupd: "20260223"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNoticeSource, apperrors.AsStandardError(err).Code)
}
