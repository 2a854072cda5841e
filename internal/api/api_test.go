package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sinorat/sinorat/internal/agenda"
	"github.com/sinorat/sinorat/internal/backend"
	"github.com/sinorat/sinorat/internal/disposisi"
	"github.com/sinorat/sinorat/internal/letters"
	"github.com/sinorat/sinorat/internal/models"
	"github.com/sinorat/sinorat/internal/numbering"
	"github.com/sinorat/sinorat/internal/sse"
	"github.com/sinorat/sinorat/internal/testutil"
)

// fakeUpstream simulates the remote SINORAT backend with a small in-memory
// letter and disposition table.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	letter := models.Letter{
		ID:       "ltr-001",
		Tahun:    "2024",
		NoAgenda: 142,
		Perihal:  "Undangan rapat koordinasi",
		Pengirim: "Dinas Pendidikan",
	}
	dispos := []models.Disposisi{
		{ID: "d-1", LetterInID: "ltr-001", NoDispo: 17, TglDispo: "2024-03-01", DispoKe: []string{"Sekretaris"}, IsiDispo: "Mohon ditindaklanjuti"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /letterin/search/", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/letterin/search/")
		if key == "142" || key == "2024/142" {
			_ = json.NewEncoder(w).Encode(letter)
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("GET /disposisi-letterin/next-number", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"nextNumber": 18})
	})
	mux.HandleFunc("GET /disposisi-letterin/check-letter/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/disposisi-letterin/check-letter/")
		if id != "ltr-001" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"isDisposed": true, "disposisi": dispos})
	})
	mux.HandleFunc("GET /disposisi-letterin", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(dispos)
	})
	mux.HandleFunc("POST /disposisi-letterin", func(w http.ResponseWriter, r *http.Request) {
		var p models.DisposisiPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, `{"message":"bad payload"}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.Disposisi{
			ID: "d-new", LetterInID: p.LetterInID, NoDispo: p.NoDispo,
			TglDispo: p.TglDispo, DispoKe: p.DispoKe, IsiDispo: p.IsiDispo,
		})
	})
	mux.HandleFunc("POST /agenda-letterin", func(w http.ResponseWriter, r *http.Request) {
		var e models.AgendaEntry
		_ = json.NewDecoder(r.Body).Decode(&e)
		e.ID = "ag-1"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(e)
	})
	mux.HandleFunc("GET /agenda-letterin", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]models.AgendaEntry{
			{ID: "ag-1", Kegiatan: "Rapat koordinasi", Tempat: "Aula", TglMulai: "2024-03-05"},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// testEnv wires the full stack against the given upstream base URL.
// authToken empty means auth disabled.
func testEnv(t *testing.T, upstreamURL, authToken string) http.Handler {
	t.Helper()
	router, _ := testEnvWithBroker(t, upstreamURL, authToken)
	return router
}

func testEnvWithBroker(t *testing.T, upstreamURL, authToken string) (http.Handler, *sse.Broker) {
	t.Helper()
	db := testutil.TestCache(t)
	logger := testutil.DiscardLogger()

	client := backend.New(upstreamURL, nil, 2*time.Second, 500*time.Millisecond)
	ls := letters.NewService(client, logger)
	ds := disposisi.NewService(client, db, logger)
	as := agenda.NewService(client)
	res := numbering.NewResolver(client, db, logger)

	broker := sse.NewBroker()
	t.Cleanup(broker.Close)

	return NewRouter(ls, ds, as, res, authToken != "", authToken, broker, t.TempDir()), broker
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSearchLetterFound(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	w := doJSON(t, router, http.MethodGet, "/letters/search?tahun=2024&noAgenda=142", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got models.Letter
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "ltr-001" || got.NoAgenda != 142 {
		t.Fatalf("letter = %+v", got)
	}
}

func TestSearchLetterNotFound(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	w := doJSON(t, router, http.MethodGet, "/letters/search?tahun=2024&noAgenda=999", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestSearchLetterRequiresNoAgenda(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	w := doJSON(t, router, http.MethodGet, "/letters/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestDisposisiStatus(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	w := doJSON(t, router, http.MethodGet, "/letters/disposisi-status?tahun=2024&noAgenda=142", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got letters.DisposisiStatus
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.IsDisposed || len(got.Dispositions) != 1 || got.Dispositions[0].NoDispo != 17 {
		t.Fatalf("status = %+v", got)
	}
}

func TestNextNumberFromServer(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	w := doJSON(t, router, http.MethodGet, "/disposisi/next-number", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got NextNumberResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	// Hint 18 and listed max 17 reconcile to 18.
	if got.NextNumber != 18 || got.Source != "server" {
		t.Fatalf("resolution = %+v", got)
	}
}

func TestNextNumberManual(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	w := doJSON(t, router, http.MethodGet, "/disposisi/next-number?manual=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got NextNumberResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.NextNumber != 1 || got.Source != "manual" {
		t.Fatalf("resolution = %+v", got)
	}

	// The manual path persists its increment, so a second call advances.
	w = doJSON(t, router, http.MethodGet, "/disposisi/next-number?manual=true", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.NextNumber != 2 {
		t.Fatalf("second manual resolution = %+v", got)
	}
}

func TestCreateDisposisi(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	payload := models.DisposisiPayload{
		LetterInID: "ltr-001",
		NoDispo:    18,
		TglDispo:   "2024-03-02",
		DispoKe:    []string{"Kabid Umum"},
		IsiDispo:   "Segera diproses sesuai arahan",
	}
	w := doJSON(t, router, http.MethodPost, "/disposisi", payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got CreateDisposisiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Disposisi.ID != "d-new" || got.Disposisi.NoDispo != 18 {
		t.Fatalf("created = %+v", got.Disposisi)
	}
	// The response carries a fresh resolution so the form can show the next
	// usable number without a second round trip.
	if got.Next == nil || got.Next.NextNumber != 18 || got.Next.Source != "server" {
		t.Fatalf("next resolution = %+v", got.Next)
	}
}

func TestCreateDisposisiPublishesEvent(t *testing.T) {
	upstream := fakeUpstream(t)
	router, broker := testEnvWithBroker(t, upstream.URL, "")

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	payload := models.DisposisiPayload{
		LetterInID: "ltr-001",
		NoDispo:    18,
		TglDispo:   "2024-03-02",
		DispoKe:    []string{"Kabid Umum"},
		IsiDispo:   "Segera diproses sesuai arahan",
	}
	w := doJSON(t, router, http.MethodPost, "/disposisi", payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	select {
	case frame := <-sub:
		if !strings.Contains(string(frame), "event: "+sse.EventDisposisiCreated) {
			t.Fatalf("frame = %q, want %s event", frame, sse.EventDisposisiCreated)
		}
		if !strings.Contains(string(frame), `"d-new"`) {
			t.Fatalf("frame = %q, want created record data", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received after disposition create")
	}
}

func TestCreateDisposisiValidationReasons(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	w := doJSON(t, router, http.MethodPost, "/disposisi", models.DisposisiPayload{})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var got validationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Errors) < 5 {
		t.Fatalf("got %d validation reasons, want at least 5: %v", len(got.Errors), got.Errors)
	}
}

func TestCreateDisposisiBackendDown(t *testing.T) {
	// Upstream is closed immediately to force a transport failure.
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()
	router := testEnv(t, url, "")

	payload := models.DisposisiPayload{
		LetterInID: "ltr-001",
		NoDispo:    18,
		TglDispo:   "2024-03-02",
		DispoKe:    []string{"Kabid Umum"},
		IsiDispo:   "Segera diproses sesuai arahan",
	}
	w := doJSON(t, router, http.MethodPost, "/disposisi", payload)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502, body = %s", w.Code, w.Body.String())
	}
	// Even with the backend down the error body carries a resolution, which
	// falls through to the local floor.
	var got struct {
		Error string              `json:"error"`
		Next  *NextNumberResponse `json:"next"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Error == "" {
		t.Fatalf("body = %s, want error message", w.Body.String())
	}
	if got.Next == nil || got.Next.NextNumber != 1 || got.Next.Source != "local" {
		t.Fatalf("next resolution = %+v", got.Next)
	}
}

func TestOfflineDisposisiRoundTrip(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	payload := models.DisposisiPayload{
		LetterInID: "ltr-001",
		NoDispo:    23,
		TglDispo:   "2024-03-02",
		DispoKe:    []string{"Sekretaris"},
		IsiDispo:   "Disimpan sambil menunggu server",
	}
	w := doJSON(t, router, http.MethodPost, "/disposisi/offline", payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var created OfflineCreateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(created.Disposisi.ID, "offline-") {
		t.Fatalf("offline id = %q, want offline- prefix", created.Disposisi.ID)
	}
	if created.Next == nil || created.Next.NextNumber != 18 || created.Next.Source != "server" {
		t.Fatalf("next resolution = %+v", created.Next)
	}

	w = doJSON(t, router, http.MethodGet, "/disposisi/offline", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list OfflineListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || list.Disposisi[0].NoDispo != 23 {
		t.Fatalf("offline list = %+v", list)
	}
}

func TestOfflineDisposisiPublishesEvent(t *testing.T) {
	upstream := fakeUpstream(t)
	router, broker := testEnvWithBroker(t, upstream.URL, "")

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	payload := models.DisposisiPayload{
		LetterInID: "ltr-001",
		NoDispo:    23,
		TglDispo:   "2024-03-02",
		DispoKe:    []string{"Sekretaris"},
		IsiDispo:   "Disimpan sambil menunggu server",
	}
	w := doJSON(t, router, http.MethodPost, "/disposisi/offline", payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	select {
	case frame := <-sub:
		if !strings.Contains(string(frame), "event: "+sse.EventDisposisiOffline) {
			t.Fatalf("frame = %q, want %s event", frame, sse.EventDisposisiOffline)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received after offline save")
	}
}

func TestReplayOfflineDisposisi(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	payload := models.DisposisiPayload{
		LetterInID: "ltr-001",
		NoDispo:    23,
		TglDispo:   "2024-03-02",
		DispoKe:    []string{"Sekretaris"},
		IsiDispo:   "Disimpan sambil menunggu server",
	}
	w := doJSON(t, router, http.MethodPost, "/disposisi/offline", payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("offline save status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/disposisi/offline/replay", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("replay status = %d, body = %s", w.Code, w.Body.String())
	}
	var res disposisi.ReplayResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Replayed) != 1 || res.Remaining != 0 {
		t.Fatalf("replay result = %+v", res)
	}
	if res.Replayed[0].NoDispo != 23 {
		t.Fatalf("replayed record = %+v", res.Replayed[0])
	}

	// The queue is drained after a successful replay.
	w = doJSON(t, router, http.MethodGet, "/disposisi/offline", nil)
	var list OfflineListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 0 {
		t.Fatalf("offline list after replay = %+v", list)
	}
}

func TestAgendaCreateAndList(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	entry := models.AgendaEntry{
		Kegiatan: "Rapat koordinasi",
		Tempat:   "Aula",
		TglMulai: "2024-03-05",
	}
	w := doJSON(t, router, http.MethodPost, "/agenda", entry)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/agenda", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list AgendaListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || list.Agenda[0].Kegiatan != "Rapat koordinasi" {
		t.Fatalf("agenda list = %+v", list)
	}
}

func TestAgendaValidationRejected(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	w := doJSON(t, router, http.MethodPost, "/agenda", models.AgendaEntry{})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestAuthTokenMode(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "rahasia")

	// Missing token.
	w := doJSON(t, router, http.MethodGet, "/letters/search?noAgenda=142", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no-token status = %d, want 401", w.Code)
	}

	// Wrong token.
	req := httptest.NewRequest(http.MethodGet, "/letters/search?noAgenda=142", nil)
	req.Header.Set("Authorization", "Bearer salah")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong-token status = %d, want 401", w.Code)
	}

	// Correct token.
	req = httptest.NewRequest(http.MethodGet, "/letters/search?noAgenda=142", nil)
	req.Header.Set("Authorization", "Bearer rahasia")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid-token status = %d, want 200", w.Code)
	}
}

func TestAttachmentUploadAndServe(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "surat-0142.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("%PDF-1.4 scan content")); err != nil {
		t.Fatal(err)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}

	get := httptest.NewRequest(http.MethodGet, "/attachments/surat-0142.pdf", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, get)
	if w.Code != http.StatusOK {
		t.Fatalf("serve status = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("%PDF-1.4")) {
		t.Fatalf("served body = %q", w.Body.String())
	}
}

func TestAttachmentRejectsNonScanUpload(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "script.sh")
	_, _ = part.Write([]byte("#!/bin/sh"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("upload status = %d, want 400", w.Code)
	}
}

func TestAttachmentTraversalBlocked(t *testing.T) {
	upstream := fakeUpstream(t)
	router := testEnv(t, upstream.URL, "")

	req := httptest.NewRequest(http.MethodGet, "/attachments/..%2F..%2Fetc%2Fpasswd", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest && w.Code != http.StatusNotFound {
		t.Fatalf("traversal status = %d, want 400 or 404", w.Code)
	}
}
