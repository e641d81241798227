package fireblob

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestListFiles(t *testing.T) {
	tests := []struct {
		name           string
		refPath        string
		maxResults     int
		pageToken      string
		wantPrefix     string
		wantMaxResults string
	}{
		{name: "defaults at root", refPath: "", maxResults: 0, wantPrefix: "", wantMaxResults: ""},
		{name: "explicit page size", refPath: "docs", maxResults: 25, wantPrefix: "docs/", wantMaxResults: "25"},
		{name: "oversized page clamped", refPath: "docs", maxResults: 5000, wantPrefix: "docs/", wantMaxResults: "1000"},
		{name: "page token passthrough", refPath: "docs", maxResults: 10, pageToken: "tok-2", wantPrefix: "docs/", wantMaxResults: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery url.Values
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.Query()
				fmt.Fprint(w, `{
					"prefixes": ["docs/reports/"],
					"items": [
						{"name": "docs/a.txt", "bucket": "demo-bucket"},
						{"name": "docs/b.txt", "bucket": "demo-bucket"}
					],
					"nextPageToken": "tok-3"
				}`)
			}))
			defer srv.Close()

			st := New("demo-bucket", Options{Endpoint: srv.URL + "/v0/b"})
			list, err := st.Ref(tt.refPath).ListFiles(context.Background(), tt.maxResults, tt.pageToken)
			if err != nil {
				t.Fatalf("ListFiles() error = %v", err)
			}

			if got := gotQuery.Get("delimiter"); got != "/" {
				t.Errorf("delimiter = %q, want /", got)
			}
			if got := gotQuery.Get("prefix"); got != tt.wantPrefix {
				t.Errorf("prefix = %q, want %q", got, tt.wantPrefix)
			}
			if got := gotQuery.Get("maxResults"); got != tt.wantMaxResults {
				t.Errorf("maxResults = %q, want %q", got, tt.wantMaxResults)
			}
			if got := gotQuery.Get("pageToken"); got != tt.pageToken {
				t.Errorf("pageToken = %q, want %q", got, tt.pageToken)
			}

			if len(list.Objects) != 2 {
				t.Fatalf("len(Objects) = %d, want 2", len(list.Objects))
			}
			if list.Objects[0].Name != "docs/a.txt" || list.Objects[0].Bucket != "demo-bucket" {
				t.Errorf("Objects[0] = %+v", list.Objects[0])
			}
			if list.NextPageToken != "tok-3" {
				t.Errorf("NextPageToken = %q, want tok-3", list.NextPageToken)
			}
		})
	}
}

func TestListPrefixes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("prefix"); got != "docs/" {
			t.Errorf("prefix = %q, want docs/", got)
		}
		fmt.Fprint(w, `{"prefixes": ["docs/2025/", "docs/2026/"], "items": []}`)
	}))
	defer srv.Close()

	st := New("demo-bucket", Options{Endpoint: srv.URL + "/v0/b"})
	list, err := st.Ref("docs").ListPrefixes(context.Background(), 0, "")
	if err != nil {
		t.Fatalf("ListPrefixes() error = %v", err)
	}

	want := []string{"docs/2025/", "docs/2026/"}
	if len(list.Prefixes) != len(want) {
		t.Fatalf("len(Prefixes) = %d, want %d", len(list.Prefixes), len(want))
	}
	for i := range want {
		if list.Prefixes[i] != want[i] {
			t.Errorf("Prefixes[%d] = %q, want %q", i, list.Prefixes[i], want[i])
		}
	}
	if list.NextPageToken != "" {
		t.Errorf("NextPageToken = %q, want empty", list.NextPageToken)
	}
}

func TestListServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"bad prefix"}`)
	}))
	defer srv.Close()

	st := New("demo-bucket", Options{Endpoint: srv.URL + "/v0/b"})
	if _, err := st.Ref("docs").ListFiles(context.Background(), 0, ""); err == nil {
		t.Fatal("ListFiles() error = nil, want *StorageError")
	}
}
