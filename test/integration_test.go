//go:build integration

package test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/FranksOps/jobsweep/internal/app"
	"github.com/FranksOps/jobsweep/internal/config"
	"github.com/FranksOps/jobsweep/internal/report"
	"github.com/FranksOps/jobsweep/internal/storage"
)

// fakeS3 records path-style PutObject requests.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.objects[r.URL.Path] = body
	f.types[r.URL.Path] = r.Header.Get("Content-Type")
	f.mu.Unlock()
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(http.StatusOK)
}

func TestIntegration_Sweep(t *testing.T) {
	// 1. Setup mock search API: two queries, the second page of each is empty.
	var searches []string
	var mu sync.Mutex
	serpAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		searches = append(searches, q.Get("q")+"@"+q.Get("start"))
		mu.Unlock()
		if q.Get("start") != "0" {
			_, _ = w.Write([]byte(`{"organic_results": []}`))
			return
		}
		switch q.Get("q") {
		case "cloud jobs":
			_, _ = w.Write([]byte(`{"organic_results": [
				{"title": "Cloud Engineer at Acme", "snippet": "AWS", "link": "https://acme.example/1"},
				{"title": "Barista", "snippet": "coffee", "link": "https://cafe.example/2"}
			]}`))
		case "security jobs":
			_, _ = w.Write([]byte(`{"organic_results": [
				{"title": "Cloud Security Engineer", "snippet": "DevSecOps team", "link": "https://acme.example/1"},
				{"title": "Staff SRE", "snippet": "site reliability engineer wanted", "link": "https://sre.example/3"}
			]}`))
		}
	}))
	defer serpAPI.Close()

	s3 := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	s3Server := httptest.NewServer(s3)
	defer s3Server.Close()

	// 2. Configure through the environment like a deployment would.
	dir := t.TempDir()
	chdir(t, dir)
	queryFile := filepath.Join(dir, "urls_to_scan.txt")
	if err := os.WriteFile(queryFile, []byte("cloud jobs\n\nsecurity jobs\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("S3_BUCKET_NAME", "findings")
	t.Setenv("SERPAPI_API_KEY", "test-key")
	t.Setenv("JOBSWEEP_SEARCH_ENDPOINT", serpAPI.URL)
	t.Setenv("JOBSWEEP_STORAGE_SINKS", "s3,file,sqlite")
	t.Setenv("JOBSWEEP_STORAGE_DIR", filepath.Join(dir, "out"))
	t.Setenv("JOBSWEEP_STORAGE_SQLITE_PATH", filepath.Join(dir, "jobsweep.db"))
	t.Setenv("JOBSWEEP_S3_ENDPOINT", s3Server.URL)
	t.Setenv("JOBSWEEP_S3_USE_PATH_STYLE", "true")
	t.Setenv("JOBSWEEP_S3_REGION", "us-east-1")
	t.Setenv("JOBSWEEP_S3_ACCESS_KEY_ID", "test")
	t.Setenv("JOBSWEEP_S3_SECRET_ACCESS_KEY", "test")

	cfg, err := config.Load(config.LoadOptions{})
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	// 3. Run one sweep.
	handler := app.NewHandler(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	resp := handler.Invoke(context.Background())

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}
	if !strings.HasPrefix(resp.Message(), "Success! 2 findings saved to s3://findings/multi_query_findings_") {
		t.Errorf("unexpected message %q", resp.Message())
	}
	if len(searches) != 4 {
		t.Errorf("expected 4 search calls, got %v", searches)
	}

	// 4. The S3 object is the indented findings array.
	if len(s3.objects) != 1 {
		t.Fatalf("expected one S3 object, got %d", len(s3.objects))
	}
	for path, body := range s3.objects {
		if !strings.HasPrefix(path, "/findings/multi_query_findings_") || !strings.HasSuffix(path, ".json") {
			t.Errorf("unexpected object path %s", path)
		}
		if s3.types[path] != "application/json" {
			t.Errorf("unexpected content type %q", s3.types[path])
		}
		var findings []storage.Finding
		if err := json.Unmarshal(body, &findings); err != nil {
			t.Fatalf("object is not a findings array: %v", err)
		}
		if len(findings) != 2 {
			t.Fatalf("expected 2 findings, got %d", len(findings))
		}
		if findings[0].FoundKeyword != "cloud engineer" || findings[0].SourceQuery != "cloud jobs" {
			t.Errorf("unexpected first finding %+v", findings[0])
		}
		if findings[1].FoundKeyword != "site reliability engineer" || findings[1].Link != "https://sre.example/3" {
			t.Errorf("unexpected second finding %+v", findings[1])
		}
		if !strings.Contains(string(body), "\n    {\n        \"source_query\"") {
			t.Errorf("expected 4-space indentation, got:\n%s", body)
		}
	}

	// 5. The archives agree and feed the report.
	for _, sink := range []string{config.SinkFile, config.SinkSQLite} {
		archive, err := app.OpenArchive(context.Background(), cfg, sink)
		if err != nil {
			t.Fatalf("open %s: %v", sink, err)
		}
		got, err := archive.Query(context.Background(), storage.Filter{})
		archive.Close()
		if err != nil {
			t.Fatalf("query %s: %v", sink, err)
		}
		summary := report.GenerateSummary(got)
		if summary.TotalFindings != 2 || summary.ByQuery["security jobs"] != 1 {
			t.Errorf("%s: unexpected summary %+v", sink, summary)
		}
	}
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
