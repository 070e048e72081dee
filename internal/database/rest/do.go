package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"docsample/internal/docdb"
	apierrors "docsample/internal/lib/errors"
	"docsample/internal/lib/sl"
)

func (c *Client) do(ctx context.Context, cl call) (*docdb.Response, error) {
	resp, _, err := c.exec(ctx, cl)
	return resp, err
}

// exec signs and sends one request. Error statuses come back as *docdb.Error
// with the service message; a 304 is a regular response without body.
func (c *Client) exec(ctx context.Context, cl call) (*docdb.Response, http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", cl.op, err)
	}

	var body io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: marshal body: %w", cl.op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.host.JoinPath(cl.path).String(), body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: create request: %w", cl.op, err)
	}
	for k, v := range cl.headers {
		req.Header[k] = v
	}
	if cl.body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if err = docdb.SignRequest(req, c.masterKey, c.now()); err != nil {
		return nil, nil, fmt.Errorf("%s: sign request: %w", cl.op, err)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: send request: %w", cl.op, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: read response: %w", cl.op, err)
	}

	resp := &docdb.Response{
		StatusCode: httpResp.StatusCode,
		ETag:       httpResp.Header.Get("ETag"),
		ActivityID: httpResp.Header.Get(docdb.HeaderActivityID),
	}
	if v := httpResp.Header.Get(docdb.HeaderRequestCharge); v != "" {
		resp.RequestCharge, _ = strconv.ParseFloat(v, 64)
	}

	log := c.log.With(
		slog.String("op", cl.op),
		slog.Int("status", resp.StatusCode),
		slog.String("activity_id", resp.ActivityID),
		sl.Charge(resp.RequestCharge),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		err = statusError(cl.op, resp.StatusCode, data)
		log.Debug("request failed", sl.Err(err))
		return nil, nil, err
	}
	log.Debug("request done")

	if cl.out != nil && resp.StatusCode != http.StatusNotModified && resp.StatusCode != http.StatusNoContent && len(data) > 0 {
		if err = json.Unmarshal(data, cl.out); err != nil {
			return nil, nil, fmt.Errorf("%s: decode response: %w", cl.op, err)
		}
	}
	return resp, httpResp.Header, nil
}

func statusError(op string, status int, data []byte) error {
	var apiErr apierrors.APIError
	if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.Message == "" {
		return docdb.NewError(op, status, http.StatusText(status))
	}
	apiErr.HTTPStatus = status
	return docdb.Wrap(op, status, &apiErr)
}
