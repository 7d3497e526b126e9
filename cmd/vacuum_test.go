package cmd

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestVacuumDryRunReportsOrphanWithoutDeleting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("content"))
	}))
	defer srv.Close()

	env := newTestEnv(t)
	env.run("seed", "doj-foia", srv.URL+"/record")
	env.run("crawl", "--source", "doj-foia")

	casRoot := filepath.Join(env.dir, "cas")
	orphanPath := filepath.Join(casRoot, "orphan", "blob.bin")
	if err := os.MkdirAll(filepath.Dir(orphanPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(orphanPath, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := env.run("vacuum", "--dry-run")
	env.contains(out, "Would reclaim 1 blob(s)")

	if _, err := os.Stat(orphanPath); err != nil {
		t.Errorf("dry-run vacuum removed orphan: %v", err)
	}
}

func TestVacuumForceDeletesOrphan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("content"))
	}))
	defer srv.Close()

	env := newTestEnv(t)
	env.run("seed", "doj-foia", srv.URL+"/record")
	env.run("crawl", "--source", "doj-foia")

	casRoot := filepath.Join(env.dir, "cas")
	orphanPath := filepath.Join(casRoot, "orphan", "blob.bin")
	if err := os.MkdirAll(filepath.Dir(orphanPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(orphanPath, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	env.run("vacuum", "--force")

	if _, err := os.Stat(orphanPath); !os.IsNotExist(err) {
		t.Errorf("expected orphan to be removed, stat err = %v", err)
	}
}

func TestVacuumNoOrphansIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	out := env.run("vacuum", "--force")
	env.contains(out, "No blobs to vacuum")
}
