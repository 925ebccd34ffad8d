package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/taxomigrate/pkg/taxonomy"
)

func testServer(t *testing.T) (*httptest.Server, *taxonomy.Resolver) {
	t.Helper()
	res, err := taxonomy.Load("", "")
	if err != nil {
		t.Fatalf("taxonomy.Load: %v", err)
	}
	ts := httptest.NewServer(NewRouter(res, slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(ts.Close)
	return ts, res
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestResolve(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/v1/resolve/" + url.PathEscape("EPIs"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got taxonomy.Resolution
	decode(t, resp, &got)
	if got.Label != "Segurança e Sinalização > EPI - Capacetes" || got.Method != taxonomy.MethodSynonym {
		t.Errorf("resolution = %+v", got)
	}
}

func TestResolveBatch(t *testing.T) {
	ts, _ := testServer(t)

	body := `{"labels":["Britadores","xyzxyz"]}`
	resp, err := http.Post(ts.URL+"/v1/resolve/batch", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got batchResponse
	decode(t, resp, &got)
	if len(got.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(got.Results))
	}
	if got.Results[0].Label != "Britagem e Peneiramento > Britadores - Mandíbulas" {
		t.Errorf("results[0] = %+v", got.Results[0])
	}
	if !got.Results[1].Unmapped() || got.Results[1].Label != "Outros > Diversos" {
		t.Errorf("results[1] = %+v", got.Results[1])
	}
}

func TestResolveBatch_Errors(t *testing.T) {
	ts, _ := testServer(t)

	many := make([]string, MaxBatch+1)
	for i := range many {
		many[i] = "x"
	}
	tooMany, _ := json.Marshal(httpBatchRequest{Labels: many})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"empty", `{"labels":[]}`},
		{"too many", string(tooMany)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/v1/resolve/batch", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}

	resp, err := http.Get(ts.URL + "/v1/resolve/batch")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET batch status = %d, want 405", resp.StatusCode)
	}
}

func TestTaxonomyAndHealth(t *testing.T) {
	ts, res := testServer(t)

	resp, err := http.Get(ts.URL + "/v1/taxonomy")
	if err != nil {
		t.Fatal(err)
	}
	var tax taxonomyResponse
	decode(t, resp, &tax)
	if tax.ID != res.Catalog().ID || tax.Fallback != "Outros > Diversos" {
		t.Errorf("taxonomy = %+v", tax)
	}
	if len(tax.Labels) != res.Catalog().Len() {
		t.Errorf("labels = %d, want %d", len(tax.Labels), res.Catalog().Len())
	}
	if tax.Threshold != taxonomy.DefaultThreshold {
		t.Errorf("threshold = %v", tax.Threshold)
	}

	resp, err = http.Get(ts.URL + "/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	var health healthResponse
	decode(t, resp, &health)
	if health.Status != "ok" || health.Labels == 0 {
		t.Errorf("health = %+v", health)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := testServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/v1/resolve/batch", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestMCPResolveLabel(t *testing.T) {
	res, err := taxonomy.Load("", "")
	if err != nil {
		t.Fatalf("taxonomy.Load: %v", err)
	}
	srv := server.NewMCPServer("taxomigrate-test", "0.0.0", server.WithToolCapabilities(false))
	RegisterMCPTools(srv, res, slog.New(slog.NewTextHandler(io.Discard, nil)))

	msg := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"resolve_label","arguments":{"label":"Capacete"}}}`
	out, err := json.Marshal(srv.HandleMessage(context.Background(), json.RawMessage(msg)))
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	if s := string(out); !strings.Contains(s, "EPI - Capacetes") || !strings.Contains(s, "synonym") {
		t.Errorf("tool response = %s", s)
	}
}

func TestSplitLabels(t *testing.T) {
	got := splitLabels(" Britadores, ,EPIs ,")
	if len(got) != 2 || got[0] != "Britadores" || got[1] != "EPIs" {
		t.Errorf("splitLabels = %v", got)
	}
}
