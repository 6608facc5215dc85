package pdf

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func writeArtifact(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
	return path
}

func TestLoadArtifactDetectsPDF(t *testing.T) {
	path := writeArtifact(t, "cheat_sheet.pdf", samplePDF)

	artifact, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("LoadArtifact returned error: %v", err)
	}
	if artifact.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type: %s", artifact.ContentType)
	}
	if !artifact.IsPDF() {
		t.Fatal("expected IsPDF to be true")
	}
	if artifact.Filename != "cheat_sheet.pdf" {
		t.Fatalf("unexpected filename: %s", artifact.Filename)
	}
	if artifact.Size != int64(len(samplePDF)) {
		t.Fatalf("unexpected size: %d", artifact.Size)
	}
}

func TestLoadArtifactMissing(t *testing.T) {
	if _, err := LoadArtifact(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestLoadArtifactDirectory(t *testing.T) {
	if _, err := LoadArtifact(t.TempDir()); err == nil {
		t.Fatal("expected error for directory path")
	}
}

func TestCountPagesRejectsNonPDF(t *testing.T) {
	path := writeArtifact(t, "notes.txt", []byte("plain text"))
	artifact, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("LoadArtifact returned error: %v", err)
	}
	if artifact.IsPDF() {
		t.Fatalf("text file detected as pdf: %s", artifact.ContentType)
	}
	if err := artifact.CountPages(); err == nil {
		t.Fatal("expected CountPages to fail for non-pdf")
	}
}

func TestDownloadHandlerStreamsArtifact(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := writeArtifact(t, "cheat_sheet.pdf", samplePDF)
	artifact, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("LoadArtifact returned error: %v", err)
	}

	router := gin.New()
	router.POST("/download", DownloadHandler(artifact))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/download", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "inline;") || !strings.Contains(cd, "cheat_sheet.pdf") {
		t.Fatalf("unexpected Content-Disposition header: %s", cd)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("unexpected Cache-Control header: %s", cc)
	}
	if !bytes.Equal(rec.Body.Bytes(), samplePDF) {
		t.Fatal("artifact bytes were modified")
	}
}

func TestDownloadHandlerMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := writeArtifact(t, "cheat_sheet.pdf", samplePDF)
	artifact, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("LoadArtifact returned error: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove artifact: %v", err)
	}

	router := gin.New()
	router.POST("/download", DownloadHandler(artifact))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/download", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ARTIFACT_NOT_FOUND") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
