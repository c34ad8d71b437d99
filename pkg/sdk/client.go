package sdk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/refbase-dev/refbase-admin/pkg/schema"
)

// Client is a remote MasterStore over the store daemon's REST API. The
// request context is injected into every call as headers; nothing is read
// from ambient state.
type Client struct {
	baseURL string
	http    *http.Client
}

// Connect builds a client for the daemon at baseURL and verifies it answers.
func Connect(baseURL string) (*Client, error) {
	c := NewClient(baseURL)
	if err := c.Ping(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewClient builds a client without probing the daemon.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Ping checks that the daemon is reachable.
func (c *Client) Ping() error {
	return c.do(schema.RequestContext{}, http.MethodGet, "/api/ping", nil, nil)
}

// Tables fetches the daemon's served table definitions.
func (c *Client) Tables(rctx schema.RequestContext) ([]schema.TableDef, error) {
	var out []schema.TableDef
	if err := c.do(rctx, http.MethodGet, "/api/tables", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) List(rctx schema.RequestContext, table string, params schema.ListParams) ([]schema.Record, error) {
	path := "/api/tables/" + table + "/records"
	if params.ActiveOnly {
		path += "?active=1"
	}
	var out []schema.Record
	if err := c.do(rctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Get(rctx schema.RequestContext, table string, id int64) (schema.Record, error) {
	var out schema.Record
	err := c.do(rctx, http.MethodGet, recordPath(table, id), nil, &out)
	return out, err
}

func (c *Client) Create(rctx schema.RequestContext, table string, parentID int64, fields map[string]any) (schema.Record, error) {
	body := map[string]any{"fields": fields}
	if parentID != 0 {
		body["parent_id"] = parentID
	}
	var out schema.Record
	err := c.do(rctx, http.MethodPost, "/api/tables/"+table+"/records", body, &out)
	return out, err
}

func (c *Client) Update(rctx schema.RequestContext, table string, id int64, diff schema.DiffPayload) (schema.Record, error) {
	var out schema.Record
	err := c.do(rctx, http.MethodPut, recordPath(table, id), diff, &out)
	return out, err
}

// Delete performs the soft delete. A 409 is a rejection, not a transport
// failure: it comes back as a tagged outcome with a nil error.
func (c *Client) Delete(rctx schema.RequestContext, table string, id int64) (schema.DeleteOutcome, error) {
	err := c.do(rctx, http.MethodDelete, recordPath(table, id), nil, nil)
	if err == nil {
		return schema.DeleteOutcome{Status: schema.Deleted}, nil
	}
	var rerr *RequestError
	if errors.As(err, &rerr) && rerr.Status == http.StatusConflict {
		if rerr.Code == CodeReferentialIntegrity {
			return schema.DeleteOutcome{Status: schema.RejectedReferentialIntegrity, Reason: rerr.Reason}, nil
		}
		return schema.DeleteOutcome{Status: schema.RejectedOther, Reason: rerr.Reason}, nil
	}
	return schema.DeleteOutcome{}, err
}

func (c *Client) ResolveLookup(rctx schema.RequestContext, table string) (schema.LookupTable, error) {
	var out schema.LookupTable
	if err := c.do(rctx, http.MethodGet, "/api/lookups/"+table, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Translate upserts one locale's text. The daemon's PUT updates an existing
// translation; when it answers 404 the client falls back to POST, creating
// the missing translation instead of failing the propagation.
func (c *Client) Translate(rctx schema.RequestContext, table string, id int64, localeID int, text string) error {
	body := map[string]any{"text": text}
	err := c.do(rctx, http.MethodPut, recordPath(table, id)+"/translations/"+strconv.Itoa(localeID), body, nil)
	var rerr *RequestError
	if errors.As(err, &rerr) && rerr.Status == http.StatusNotFound {
		body["locale_id"] = localeID
		return c.do(rctx, http.MethodPost, recordPath(table, id)+"/translations", body, nil)
	}
	return err
}

func (c *Client) Audit(rctx schema.RequestContext, table string, recordID int64) ([]schema.AuditEntry, error) {
	var out []schema.AuditEntry
	if err := c.do(rctx, http.MethodGet, recordPath(table, recordID)+"/audit", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func recordPath(table string, id int64) string {
	return "/api/tables/" + table + "/records/" + strconv.FormatInt(id, 10)
}

// do runs one request: marshals the body, injects the request-context
// headers, and maps failures onto the error taxonomy (no response at all ->
// NetworkError; a 4xx/5xx answer -> RequestError with the wire code).
func (c *Client) do(rctx schema.RequestContext, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rctx.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+rctx.AuthToken)
	}
	if rctx.LocaleID != 0 {
		req.Header.Set("X-Locale-Id", strconv.Itoa(rctx.LocaleID))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var wire struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&wire)
		if wire.Error == "" {
			wire.Error = resp.Status
		}
		return &RequestError{Status: resp.StatusCode, Code: wire.Code, Reason: wire.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
