// Package noticesource reads shelter notices updated inside a dispatch window.
package noticesource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"notice-push/internal/common/errors"
	"notice-push/internal/common/logger"
	"notice-push/internal/models"
	"notice-push/internal/notice"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// UpdateDateField holds the notice update date as a yyyyMMdd keyword/date.
const UpdateDateField = "upd_date"

// TiebreakField is the unique rescue record id; it keeps search_after paging
// stable between notices updated on the same day.
const TiebreakField = "desertion_no"

// Elasticsearch fetches notices from a single index with a range query on
// UpdateDateField, paging with search_after until the window is exhausted.
type Elasticsearch struct {
	client   *elasticsearch.Client
	index    string
	pageSize int
	logger   logger.Logger
}

func NewElasticsearch(client *elasticsearch.Client, index string, pageSize int, log logger.Logger) *Elasticsearch {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &Elasticsearch{
		client:   client,
		index:    index,
		pageSize: pageSize,
		logger:   log.WithFields(map[string]interface{}{"component": "noticesource", "index": index}),
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source models.Notice `json:"_source"`
			Sort   []interface{} `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

// BuildQuery returns the search body for window, both ends inclusive. A
// non-empty after continues from the sort values of the previous page.
func BuildQuery(window notice.DateWindow, size int, after []interface{}) map[string]interface{} {
	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{
						"range": map[string]interface{}{
							UpdateDateField: map[string]interface{}{
								"gte":    window.Bgupd,
								"lte":    window.Enupd,
								"format": "yyyyMMdd",
							},
						},
					},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{UpdateDateField: map[string]interface{}{"order": "asc"}},
			map[string]interface{}{TiebreakField: map[string]interface{}{"order": "asc", "missing": "_last"}},
		},
	}
	if len(after) > 0 {
		query["search_after"] = after
	}
	return query
}

// Fetch returns every notice updated between window.Bgupd and window.Enupd.
// A missing index yields no notices. Any failed page fails the whole fetch,
// so a run never advances its checkpoint past notices it did not see.
func (s *Elasticsearch) Fetch(ctx context.Context, window notice.DateWindow) ([]models.Notice, error) {
	var (
		notices []models.Notice
		after   []interface{}
		total   int64
		pages   int
	)
	for {
		page, err := s.search(ctx, BuildQuery(window, s.pageSize, after))
		if err != nil {
			return nil, err
		}
		if page == nil {
			if pages > 0 {
				return nil, errors.NewNoticeSourceError(fmt.Errorf("index disappeared after page %d", pages))
			}
			s.logger.Warn("notice index not found", nil)
			return []models.Notice{}, nil
		}
		if pages == 0 {
			total = page.Hits.Total.Value
			notices = make([]models.Notice, 0, len(page.Hits.Hits))
		}
		pages++

		for _, hit := range page.Hits.Hits {
			notices = append(notices, hit.Source)
		}

		hits := page.Hits.Hits
		if len(hits) < s.pageSize {
			break
		}
		last := hits[len(hits)-1].Sort
		if len(last) == 0 {
			return nil, errors.NewNoticeSourceError(fmt.Errorf("page %d has no sort values to continue from", pages))
		}
		after = last
	}

	s.logger.Debug("notices fetched", map[string]interface{}{
		"bgupd": window.Bgupd,
		"enupd": window.Enupd,
		"count": len(notices),
		"total": total,
		"pages": pages,
	})
	return notices, nil
}

// search runs one page. A nil response means the index does not exist.
func (s *Elasticsearch) search(ctx context.Context, query map[string]interface{}) (*searchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, errors.NewNoticeSourceError(err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, errors.NewNoticeSourceError(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, errors.NewNoticeSourceError(fmt.Errorf("search failed: %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewNoticeSourceError(err)
	}
	return &parsed, nil
}
