//go:build basic

package integration

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/huangsam/repoharvest/internal/persist"
	"github.com/huangsam/repoharvest/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// searchServer answers every search with two repositories and serves an archive for the first.
func searchServer(t *testing.T) *httptest.Server {
	t.Helper()
	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	for _, name := range []string{"alpha-main/src/A.java", "alpha-main/README.md"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("class A {}"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/graphql":
			_, _ = fmt.Fprintf(w, `{"data":{"search":{"pageInfo":{"hasNextPage":false,"endCursor":"c1"},"nodes":[
				{"name":"alpha","owner":{"login":"acme"},"stargazerCount":5000,"createdAt":"2019-05-01T00:00:00Z",
				 "primaryLanguage":{"name":"Java"},"releases":{"totalCount":7},"url":"%[1]s/acme/alpha","description":"first"},
				{"name":"beta","owner":{"login":"acme"},"stargazerCount":2000,"createdAt":"2021-05-01T00:00:00Z",
				 "primaryLanguage":null,"releases":{"totalCount":0},"url":"%[1]s/acme/beta","description":"second"}]}}}`, srv.URL)
		case "/acme/alpha/archive/refs/heads/main.zip":
			_, _ = w.Write(archive.Bytes())
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVersion(t *testing.T) {
	out, err := runCommand(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "repoharvest CLI")
	assert.Contains(t, out, "Runtime:")
}

func TestDiscover(t *testing.T) {
	srv := searchServer(t)
	outFile := filepath.Join(t.TempDir(), "repos.csv")

	_, err := runCommand(t, nil, "discover",
		"--token", "tok",
		"--api-url", srv.URL+"/graphql",
		"--cache-backend", "none",
		"--limit", "5",
		"--output", "csv",
		"--output-file", outFile,
	)
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "acme/alpha")
	assert.Contains(t, string(data), schema.UnknownLanguage)
}

func TestDiscoverRequiresToken(t *testing.T) {
	_, err := runCommand(t, []string{"GITHUB_TOKEN="}, "discover", "--cache-backend", "none")
	assert.Error(t, err)
}

func TestRunWithFakeAnalyzer(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes require a POSIX shell")
	}
	srv := searchServer(t)
	dir := t.TempDir()

	java := filepath.Join(dir, "java")
	script := "#!/bin/sh\nprintf 'file,class,type,cbo,wmc,dit,noc,rfc,lcom,loc\\nA.java,A,class,3,1,1,0,1,0,12\\n' > \"${7}class.csv\"\n"
	require.NoError(t, os.WriteFile(java, []byte(script), 0o755))
	jar := filepath.Join(dir, "ck.jar")
	require.NoError(t, os.WriteFile(jar, nil, 0o644))
	table := filepath.Join(dir, "results.csv")
	scratch := filepath.Join(dir, "scratch")

	out, err := runCommand(t, nil, "run",
		"--token", "tok",
		"--api-url", srv.URL+"/graphql",
		"--cache-backend", "none",
		"--page-delay", "0s",
		"--java-bin", java,
		"--ck-jar", jar,
		"--scratch-dir", scratch,
		"--table", table,
		"--progress", "no",
		"--color", "no",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Analyzed 1 of 2 discovered repositories (1 skipped)")

	records, err := persist.ReadTable(table)
	require.NoError(t, err)
	require.Len(t, records, 1, "beta has no archive and must not produce a row")
	assert.Equal(t, "alpha", records[0].Name)
	assert.Equal(t, 3.0, records[0].CBO)
	assert.Equal(t, 12.0, records[0].LOC)
	assert.NoDirExists(t, scratch)
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.csv")
	second := filepath.Join(dir, "second.csv")
	merged := filepath.Join(dir, "merged.csv")

	rec := func(name string, stars int) schema.CombinedRecord {
		return schema.CombinedRecord{RepositoryDescriptor: schema.RepositoryDescriptor{
			Owner: "acme", Name: name, URL: "https://github.com/acme/" + name, Stars: stars, PrimaryLanguage: "Java",
		}}
	}
	require.NoError(t, persist.WriteTable(first, []schema.CombinedRecord{rec("a", 10), rec("b", 30)}))
	require.NoError(t, persist.WriteTable(second, []schema.CombinedRecord{rec("b", 99), rec("c", 20)}))

	out, err := runCommand(t, nil, "merge", first, second, "--output-file", merged, "--cache-backend", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "Merged 3 repositories")

	records, err := persist.ReadTable(merged)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "b", records[0].Name)
	assert.Equal(t, 30, records[0].Stars)
}
