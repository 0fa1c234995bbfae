package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "notice-push/internal/common/errors"
	httpclient "notice-push/internal/common/http"

	"sigs.k8s.io/yaml"
)

type apiClient struct {
	baseURL string
	key     string
	http    *httpclient.Client
}

func newAPIClient(opts *globalOptions) (*apiClient, error) {
	if strings.TrimSpace(opts.key) == "" {
		return nil, fmt.Errorf("service-role key is required (--key or STORE_SERVICE_ROLE_KEY)")
	}
	return &apiClient{
		baseURL: strings.TrimRight(opts.baseURL, "/"),
		key:     opts.key,
		http:    httpclient.NewClient(opts.timeout),
	}, nil
}

// post sends body to path and decodes a 2xx response into out. Error
// envelopes come back as *apperrors.APIError.
func (c *apiClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.http.PostJSON(ctx, c.baseURL+path, c.key, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error *apperrors.APIError `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
			envelope.Error.HTTPStatus = resp.StatusCode
			return envelope.Error
		}
		return fmt.Errorf("%s returned %s", path, http.StatusText(resp.StatusCode))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func writeResult(w io.Writer, format string, result interface{}) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "yaml":
		data, err := yaml.Marshal(result)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
