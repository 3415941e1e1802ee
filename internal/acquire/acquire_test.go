package acquire

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/repoharvest/internal/extract"
	"github.com/huangsam/repoharvest/internal/progress"
	"github.com/huangsam/repoharvest/schema"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// archiveServer serves archives per branch path and records every requested path.
type archiveServer struct {
	mu       sync.Mutex
	requests []string
	auth     []string
	routes   map[string]int // path -> status, 200 serves body
	body     []byte
}

func (s *archiveServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL.Path)
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	s.mu.Unlock()

	status, ok := s.routes[r.URL.Path]
	if !ok {
		status = http.StatusNotFound
	}
	w.WriteHeader(status)
	if status == http.StatusOK {
		_, _ = w.Write(s.body)
	}
}

func newFetcher(token string) *Fetcher {
	return NewFetcher(token, 5*time.Second, 0, progress.Config{}, nil)
}

func TestFetch_BranchFallback(t *testing.T) {
	const mainPath = "/org/repo/archive/refs/heads/main.zip"
	const masterPath = "/org/repo/archive/refs/heads/master.zip"

	tests := []struct {
		name             string
		routes           map[string]int
		expectedBranch   string
		expectedRequests []string
		expectNotFound   bool
		expectErr        bool
	}{
		{
			name:             "main exists",
			routes:           map[string]int{mainPath: http.StatusOK},
			expectedBranch:   "main",
			expectedRequests: []string{mainPath},
		},
		{
			name:             "main missing, master exists",
			routes:           map[string]int{masterPath: http.StatusOK},
			expectedBranch:   "master",
			expectedRequests: []string{mainPath, masterPath},
		},
		{
			name:             "neither branch exists",
			routes:           map[string]int{},
			expectedRequests: []string{mainPath, masterPath},
			expectNotFound:   true,
			expectErr:        true,
		},
		{
			name:             "server error is terminal",
			routes:           map[string]int{mainPath: http.StatusInternalServerError, masterPath: http.StatusOK},
			expectedRequests: []string{mainPath},
			expectErr:        true,
		},
		{
			name:             "master server error after main 404",
			routes:           map[string]int{masterPath: http.StatusBadGateway},
			expectedRequests: []string{mainPath, masterPath},
			expectErr:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &archiveServer{routes: tt.routes, body: []byte("PK-data")}
			ts := httptest.NewServer(srv)
			defer ts.Close()

			dest := filepath.Join(t.TempDir(), "r0001.zip")
			branch, n, err := newFetcher("").Fetch(context.Background(), ts.URL+"/org/repo", dest)

			assert.Equal(t, tt.expectedRequests, srv.requests)
			if tt.expectErr {
				require.Error(t, err)
				if tt.expectNotFound {
					assert.ErrorIs(t, err, ErrBranchNotFound)
				} else {
					assert.NotErrorIs(t, err, ErrBranchNotFound)
				}
				assert.NoFileExists(t, dest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedBranch, branch)
			assert.Equal(t, int64(len("PK-data")), n)
			assert.FileExists(t, dest)
		})
	}
}

func TestFetch_BearerToken(t *testing.T) {
	srv := &archiveServer{routes: map[string]int{"/o/r/archive/refs/heads/main.zip": http.StatusOK}, body: []byte("x")}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	_, _, err := newFetcher("secret").Fetch(context.Background(), ts.URL+"/o/r", filepath.Join(t.TempDir(), "a.zip"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer secret"}, srv.auth)

	srv.auth = nil
	_, _, err = newFetcher("").Fetch(context.Background(), ts.URL+"/o/r", filepath.Join(t.TempDir(), "b.zip"))
	require.NoError(t, err)
	assert.Equal(t, []string{""}, srv.auth)
}

func TestFetch_SizeLimit(t *testing.T) {
	srv := &archiveServer{routes: map[string]int{"/o/r/archive/refs/heads/main.zip": http.StatusOK}, body: bytes.Repeat([]byte("x"), 2048)}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	f := NewFetcher("", 5*time.Second, 1024, progress.Config{}, nil)
	dest := filepath.Join(t.TempDir(), "big.zip")
	_, _, err := f.Fetch(context.Background(), ts.URL+"/o/r", dest)
	assert.ErrorIs(t, err, ErrArchiveTooLarge)
	assert.NoFileExists(t, dest)
}

func TestArchiveURL(t *testing.T) {
	assert.Equal(t, "https://github.com/o/r/archive/refs/heads/main.zip", ArchiveURL("https://github.com/o/r/", "main"))
}

func TestAcquire(t *testing.T) {
	body := zipBytes(t, map[string]string{
		"repo-master/src/A.java": "class A {}",
		"repo-master/README.md":  "# hi",
	})
	srv := &archiveServer{routes: map[string]int{"/org/repo/archive/refs/heads/master.zip": http.StatusOK}, body: body}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	scratch := filepath.Join(t.TempDir(), "scratch")
	require.NoError(t, os.MkdirAll(filepath.Join(scratch, "leftover"), 0o755))

	a := &ArchiveAcquirer{
		ScratchDir: scratch,
		Fetcher:    newFetcher(""),
		Extractor:  extract.NewExtractor(extract.ShortPathPolicy("java"), nil),
	}
	repo := schema.RepositoryDescriptor{Name: "repo", Owner: "org", URL: ts.URL + "/org/repo"}

	tree, err := a.Acquire(context.Background(), repo, "r0001")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(scratch, "r0001"), tree.Dir)
	assert.Equal(t, "master", tree.Branch)
	assert.Equal(t, 1, tree.Extracted)
	assert.Equal(t, 1, tree.Skipped)
	assert.FileExists(t, filepath.Join(tree.Dir, "src", "A.java"))

	// Only the materialized tree remains in the scratch area.
	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "r0001", entries[0].Name())
}

func TestAcquire_FailureLeavesNothing(t *testing.T) {
	tests := []struct {
		name   string
		routes map[string]int
		body   []byte
	}{
		{"download fails", map[string]int{}, nil},
		{"archive not a zip", map[string]int{"/org/repo/archive/refs/heads/main.zip": http.StatusOK}, []byte("garbage")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(&archiveServer{routes: tt.routes, body: tt.body})
			defer ts.Close()

			scratch := filepath.Join(t.TempDir(), "scratch")
			a := &ArchiveAcquirer{
				ScratchDir: scratch,
				Fetcher:    newFetcher(""),
				Extractor:  extract.NewExtractor(extract.LongPathPolicy(), nil),
			}
			_, err := a.Acquire(context.Background(), schema.RepositoryDescriptor{Name: "repo", URL: ts.URL + "/org/repo"}, "r0002")
			require.Error(t, err)

			entries, err := os.ReadDir(scratch)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}
