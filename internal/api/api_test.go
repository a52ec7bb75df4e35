package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/magplayer/magd/internal/ingest"
	"github.com/magplayer/magd/internal/magservice"
	"github.com/magplayer/magd/internal/models"
	"github.com/magplayer/magd/internal/testutil"
)

type testEnv struct {
	server *httptest.Server
	svc    *magservice.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.TestDB(t)
	_, blobs := testutil.TestBlobs(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pipeline := ingest.New(db, blobs, logger, 0)
	svc := magservice.New(db, blobs, pipeline, logger, 0)

	srv := httptest.NewServer(NewRouter(svc, false, "", nil, 0))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, svc: svc}
}

// uploadMag posts an archive as multipart/form-data under field "file".
func (e *testEnv) uploadMag(t *testing.T, fileName string, archive []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(archive); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	resp, err := http.Post(e.server.URL+"/mags", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func sampleArchive(t *testing.T) []byte {
	t.Helper()
	return testutil.MagArchive(t,
		testutil.ArchiveFile{Name: "Depoimento/Testemunho.mp3", Data: []byte("audio")},
		testutil.Text("Arquivos/relato.md", "# Relato\nVeja Testemunho.mp3"),
	)
}

func TestIngestEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.uploadMag(t, "pacote.mag", sampleArchive(t))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var report ingest.Report
	decodeJSON(t, resp, &report)
	if report.Package.FileName != "pacote.mag" {
		t.Errorf("package = %+v", report.Package)
	}
	if len(report.MediaItems) != 1 || report.MediaItems[0].Role != models.RolePrimary {
		t.Errorf("media = %+v", report.MediaItems)
	}
	if len(report.Documents) != 1 || report.Documents[0].Title != "Relato" {
		t.Errorf("documents = %+v", report.Documents)
	}
	if len(report.Relationships) != 1 {
		t.Errorf("relationships = %+v", report.Relationships)
	}
}

func TestIngestRejectsWrongExtension(t *testing.T) {
	env := newTestEnv(t)
	resp := env.uploadMag(t, "pacote.zip", sampleArchive(t))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestIngestRejectsGarbageArchive(t *testing.T) {
	env := newTestEnv(t)
	resp := env.uploadMag(t, "pacote.mag", []byte("not a zip"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestIngestRequiresFileField(t *testing.T) {
	env := newTestEnv(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.Close()

	resp, err := http.Post(env.server.URL+"/mags", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetAndListPackages(t *testing.T) {
	env := newTestEnv(t)
	resp := env.uploadMag(t, "pacote.mag", sampleArchive(t))
	var report ingest.Report
	decodeJSON(t, resp, &report)

	getResp, err := http.Get(env.server.URL + "/mags/" + report.Package.ID)
	if err != nil {
		t.Fatal(err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", getResp.StatusCode)
	}
	var detail magservice.PackageDetail
	decodeJSON(t, getResp, &detail)
	if detail.Package.ID != report.Package.ID || len(detail.MediaItems) != 1 {
		t.Errorf("detail = %+v", detail)
	}

	listResp, err := http.Get(env.server.URL + "/mags")
	if err != nil {
		t.Fatal(err)
	}
	var listBody struct {
		Packages []models.Package `json:"packages"`
	}
	decodeJSON(t, listResp, &listBody)
	if len(listBody.Packages) != 1 {
		t.Errorf("packages = %+v", listBody.Packages)
	}
}

func TestGetPackageNotFound(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/mags/missing")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeletePackage(t *testing.T) {
	env := newTestEnv(t)
	resp := env.uploadMag(t, "pacote.mag", sampleArchive(t))
	var report ingest.Report
	decodeJSON(t, resp, &report)

	req, _ := http.NewRequest(http.MethodDelete, env.server.URL+"/mags/"+report.Package.ID, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", delResp.StatusCode)
	}

	getResp, err := http.Get(env.server.URL + "/mags/" + report.Package.ID)
	if err != nil {
		t.Fatal(err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", getResp.StatusCode)
	}
}

func TestDeleteMediaAndDocument(t *testing.T) {
	env := newTestEnv(t)
	resp := env.uploadMag(t, "pacote.mag", sampleArchive(t))
	var report ingest.Report
	decodeJSON(t, resp, &report)

	for _, path := range []string{
		"/media/" + report.MediaItems[0].ID,
		"/documents/" + report.Documents[0].ID,
	} {
		req, _ := http.NewRequest(http.MethodDelete, env.server.URL+path, nil)
		delResp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		delResp.Body.Close()
		if delResp.StatusCode != http.StatusNoContent {
			t.Errorf("DELETE %s = %d, want 204", path, delResp.StatusCode)
		}
	}
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp := env.uploadMag(t, "pacote.mag", sampleArchive(t))
	resp.Body.Close()

	searchResp, err := http.Get(env.server.URL + "/search?term=testemunho")
	if err != nil {
		t.Fatal(err)
	}
	var result magservice.SearchResult
	decodeJSON(t, searchResp, &result)
	if len(result.MediaItems) != 1 {
		t.Errorf("media hits = %+v", result.MediaItems)
	}
	if len(result.Documents) != 1 {
		t.Errorf("doc hits = %+v", result.Documents)
	}
}

func TestRelationshipsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp := env.uploadMag(t, "pacote.mag", sampleArchive(t))
	var report ingest.Report
	decodeJSON(t, resp, &report)

	relResp, err := http.Get(env.server.URL + "/relationships/" + report.Documents[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Relationships []models.Relationship `json:"relationships"`
	}
	decodeJSON(t, relResp, &body)
	if len(body.Relationships) != 1 || body.Relationships[0].TargetKind != models.KindAudio {
		t.Errorf("relationships = %+v", body.Relationships)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp := env.uploadMag(t, "pacote.mag", sampleArchive(t))
	resp.Body.Close()

	histResp, err := http.Get(env.server.URL + "/history?limit=10")
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		History []models.HistoryEntry `json:"history"`
	}
	decodeJSON(t, histResp, &body)
	if len(body.History) != 1 || body.History[0].Origin != magservice.OriginServer {
		t.Errorf("history = %+v", body.History)
	}
}

func TestAuthMiddleware(t *testing.T) {
	db := testutil.TestDB(t)
	_, blobs := testutil.TestBlobs(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pipeline := ingest.New(db, blobs, logger, 0)
	svc := magservice.New(db, blobs, pipeline, logger, 0)

	srv := httptest.NewServer(NewRouter(svc, true, "secret", nil, 0))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/mags")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/mags", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/mags", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("good token status = %d, want 200", resp.StatusCode)
	}
}

func TestStorageRouterServesAudio(t *testing.T) {
	db := testutil.TestDB(t)
	root, blobs := testutil.TestBlobs(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pipeline := ingest.New(db, blobs, logger, 0)
	svc := magservice.New(db, blobs, pipeline, logger, 0)

	mux := http.NewServeMux()
	mux.Handle("/storage/", http.StripPrefix("/storage", NewStorageRouter(root)))
	mux.Handle("/", NewRouter(svc, false, "", nil, 0))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "pacote.mag")
	fw.Write(sampleArchive(t))
	mw.Close()
	resp, err := http.Post(srv.URL+"/mags", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	var report ingest.Report
	decodeJSON(t, resp, &report)

	audioResp, err := http.Get(srv.URL + report.MediaItems[0].FileURL)
	if err != nil {
		t.Fatal(err)
	}
	defer audioResp.Body.Close()
	if audioResp.StatusCode != http.StatusOK {
		t.Fatalf("audio status = %d", audioResp.StatusCode)
	}
	data, _ := io.ReadAll(audioResp.Body)
	if string(data) != "audio" {
		t.Errorf("audio body = %q", data)
	}
}
