package content

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
)

const (
	cdnQueryURL = "https://l2w4m5p0.apicdn.sanity.io/v2023-05-03/data/query/production"
	apiQueryURL = "https://l2w4m5p0.api.sanity.io/v2023-05-03/data/query/production"
	mutateURL   = "https://l2w4m5p0.api.sanity.io/v2023-05-03/data/mutate/production"
)

func newMockClient(t *testing.T, token string) (*Client, *httpmock.MockTransport) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Token = token
	transport := httpmock.NewMockTransport()
	c, err := NewClient(cfg, WithTransport(transport))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, transport
}

func TestClientQueryUsesCDNAndParams(t *testing.T) {
	c, transport := newMockClient(t, "")

	transport.RegisterResponder(http.MethodGet, cdnQueryURL, func(req *http.Request) (*http.Response, error) {
		q := req.URL.Query()
		if got := q.Get("query"); got != `*[_type == $type && id == $w0]` {
			t.Errorf("query = %q", got)
		}
		if got := q.Get("$type"); got != `"inventory"` {
			t.Errorf("$type = %q", got)
		}
		if got := q.Get("$w0"); got != `"TR-1"` {
			t.Errorf("$w0 = %q", got)
		}
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
			"result": []map[string]any{{"_id": "inventory-TR-1", "_type": "inventory", "id": "TR-1"}},
		})
	})

	docs, err := c.Query(context.Background(), ByType("inventory").Eq("id", "TR-1"))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 || docs[0].ID() != "inventory-TR-1" {
		t.Fatalf("docs = %+v", docs)
	}
}

func TestClientReadsBypassCDNWithToken(t *testing.T) {
	c, transport := newMockClient(t, "secret")

	transport.RegisterResponder(http.MethodGet, apiQueryURL, func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"result": "inventory-TR-1"})
	})

	var id string
	if err := c.Fetch(context.Background(), `*[_type == "inventory"][0]._id`, nil, &id); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if id != "inventory-TR-1" {
		t.Fatalf("id = %q", id)
	}
}

func TestClientMutateRequiresToken(t *testing.T) {
	c, _ := newMockClient(t, "")
	_, err := c.Transaction().Create(Document{"_type": "inventory"}).Commit(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
}

func TestClientMutateRequestShape(t *testing.T) {
	c, transport := newMockClient(t, "secret")

	transport.RegisterResponder(http.MethodPost, mutateURL, func(req *http.Request) (*http.Response, error) {
		if got := req.URL.Query().Get("returnDocuments"); got != "true" {
			t.Errorf("returnDocuments = %q", got)
		}
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		var body struct {
			Mutations []map[string]json.RawMessage `json:"mutations"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(body.Mutations) != 3 {
			t.Errorf("mutations = %d, want 3", len(body.Mutations))
		}
		if _, ok := body.Mutations[0]["createOrReplace"]; !ok {
			t.Errorf("first mutation = %s", raw)
		}
		if _, ok := body.Mutations[1]["patch"]; !ok {
			t.Errorf("second mutation = %s", raw)
		}
		if _, ok := body.Mutations[2]["delete"]; !ok {
			t.Errorf("third mutation = %s", raw)
		}
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
			"transactionId": "tx-1",
			"results": []map[string]any{
				{"id": "inventory-TR-1", "operation": "update"},
				{"id": "inventory-TR-2", "operation": "update"},
				{"id": "inventory-TR-3", "operation": "delete"},
			},
		})
	})

	res, err := c.Transaction().
		CreateOrReplace(Document{"_id": "inventory-TR-1", "_type": "inventory"}).
		Patch(c.Patch("inventory-TR-2").Set(map[string]any{"price": "$1"})).
		Delete("inventory-TR-3").
		Commit(context.Background())
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.TransactionID != "tx-1" || len(res.Results) != 3 {
		t.Fatalf("result = %+v", res)
	}
}

func TestClientGetNotFound(t *testing.T) {
	c, transport := newMockClient(t, "")

	transport.RegisterResponder(http.MethodGet, "https://l2w4m5p0.apicdn.sanity.io/v2023-05-03/data/doc/production/missing",
		httpmock.NewStringResponder(http.StatusOK, `{"documents":[]}`))
	transport.RegisterResponder(http.MethodGet, "https://l2w4m5p0.apicdn.sanity.io/v2023-05-03/data/doc/production/gone",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error":{"type":"notFound","description":"document not found"}}`))

	if _, err := c.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty documents error = %v, want ErrNotFound", err)
	}

	_, err := c.Get(context.Background(), "gone")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("404 error = %v, want ErrNotFound", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Description != "document not found" {
		t.Fatalf("api error = %+v", apiErr)
	}
}

func TestClientUpload(t *testing.T) {
	c, transport := newMockClient(t, "secret")

	transport.RegisterResponder(http.MethodPost, "https://l2w4m5p0.api.sanity.io/v2023-05-03/assets/images/production",
		func(req *http.Request) (*http.Response, error) {
			if got := req.URL.Query().Get("filename"); got != "unit.jpg" {
				t.Errorf("filename = %q", got)
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"document": map[string]any{
					"_id": "image-abc-800x600-jpg",
					"url": "https://cdn.sanity.io/images/l2w4m5p0/production/abc-800x600.jpg",
				},
			})
		})

	asset, err := c.Upload(context.Background(), AssetImage, "unit.jpg", []byte{0xff, 0xd8, 0xff})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if asset.ID != "image-abc-800x600-jpg" || asset.Kind != AssetImage {
		t.Fatalf("asset = %+v", asset)
	}
}
