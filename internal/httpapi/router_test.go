package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/recipe-snap/internal/ai"
	"github.com/suPer8Hu/recipe-snap/internal/config"
	"github.com/suPer8Hu/recipe-snap/internal/db"
	"github.com/suPer8Hu/recipe-snap/internal/httpapi/handlers"
	"github.com/suPer8Hu/recipe-snap/internal/job"
	"github.com/suPer8Hu/recipe-snap/internal/logging"
	"github.com/suPer8Hu/recipe-snap/internal/points"
	"github.com/suPer8Hu/recipe-snap/internal/users"
)

var jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01")

type testAPI struct {
	router *gin.Engine
	engine *job.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Connect("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		UploadMaxBytes: 1 << 20,
		Points:         config.PointsConfig{JobPrice: 10, StartingGrant: 100, ChargeOnPartial: true, RetryAttempts: 1},
	}
	log := logging.Nop()
	ledger := points.NewLedger(points.NewGormStore(gdb), cfg.Points, log)
	engine := job.NewEngine(job.NewGormStore(gdb), ledger, ai.NewMockProvider(),
		job.Options{Price: cfg.Points.JobPrice, ChargeOnPartial: true, ProviderName: "mock"}, log)
	us := users.NewService(gdb, cfg.JWTSecret, cfg.TokenTTL, cfg.Points.StartingGrant)

	h := handlers.NewHandler(cfg, us, ledger, engine, job.NewFeedbackRepo(gdb), log)
	return &testAPI{router: NewRouter(cfg, h, log), engine: engine}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.serve(t, req)
}

func (a *testAPI) serve(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
	return w.Code, out
}

func (a *testAPI) upload(t *testing.T, token, field string, data []byte) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, "dish.jpg")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		_, _ = fw.Write(data)
	} else {
		_ = mw.WriteField("note", "no file")
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/jobs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return a.serve(t, req)
}

func (a *testAPI) register(t *testing.T, username string) string {
	t.Helper()
	code, body := a.do(t, http.MethodPost, "/auth/register", "", gin.H{"username": username, "password": "secret123"})
	if code != http.StatusCreated {
		t.Fatalf("register: %d %v", code, body)
	}
	if body["points"].(float64) != 100 {
		t.Fatalf("unexpected starting points: %v", body["points"])
	}
	return body["token"].(string)
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "chef")

	if code, _ := api.do(t, http.MethodPost, "/auth/register", "", gin.H{"username": "chef", "password": "secret123"}); code != http.StatusConflict {
		t.Fatalf("duplicate register: %d", code)
	}
	if code, body := api.do(t, http.MethodPost, "/auth/register", "", gin.H{"username": "ab", "password": "secret123"}); code != http.StatusBadRequest || body["error"] == "" {
		t.Fatalf("short username: %d %v", code, body)
	}

	code, body := api.do(t, http.MethodPost, "/auth/login", "", gin.H{"username": "chef", "password": "secret123"})
	if code != http.StatusOK || body["success"] != true || body["points"].(float64) != 100 {
		t.Fatalf("login: %d %v", code, body)
	}
	if code, _ := api.do(t, http.MethodPost, "/auth/login", "", gin.H{"username": "chef", "password": "wrong-pass"}); code != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", code)
	}

	code, body = api.do(t, http.MethodGet, "/auth/user", token, nil)
	if code != http.StatusOK || body["username"] != "chef" || body["points"].(float64) != 100 {
		t.Fatalf("current user: %d %v", code, body)
	}
	if code, _ := api.do(t, http.MethodGet, "/auth/user", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", code)
	}
	if code, _ := api.do(t, http.MethodGet, "/auth/user", "garbage", nil); code != http.StatusUnauthorized {
		t.Fatalf("invalid token: %d", code)
	}

	if code, body := api.do(t, http.MethodPost, "/auth/logout", token, nil); code != http.StatusOK || body["success"] != true {
		t.Fatalf("logout: %d %v", code, body)
	}
}

func TestPointsEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "baker")

	code, body := api.do(t, http.MethodPost, "/auth/check-points", token, gin.H{"requiredPoints": 200})
	if code != http.StatusOK || body["hasEnough"] != false || body["currentPoints"].(float64) != 100 {
		t.Fatalf("check: %d %v", code, body)
	}

	code, body = api.do(t, http.MethodPost, "/auth/consume-points", token, gin.H{"points": 1000})
	if code != http.StatusBadRequest || body["currentPoints"].(float64) != 100 {
		t.Fatalf("overdraw: %d %v", code, body)
	}

	code, body = api.do(t, http.MethodPost, "/auth/consume-points", token, gin.H{"points": 30})
	if code != http.StatusOK || body["newPoints"].(float64) != 70 || body["consumedPoints"].(float64) != 30 {
		t.Fatalf("consume: %d %v", code, body)
	}

	code, body = api.do(t, http.MethodPost, "/auth/reward-points", token, gin.H{"points": 5})
	if code != http.StatusOK || body["newPoints"].(float64) != 75 || body["rewardedPoints"].(float64) != 5 {
		t.Fatalf("reward: %d %v", code, body)
	}

	for _, p := range []any{0, -3, 1.5, "ten"} {
		if code, _ := api.do(t, http.MethodPost, "/auth/reward-points", token, gin.H{"points": p}); code != http.StatusBadRequest {
			t.Fatalf("reward %v: expected 400, got %d", p, code)
		}
	}
}

func TestJobLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "cook")

	if code, body := api.upload(t, token, "", nil); code != http.StatusBadRequest {
		t.Fatalf("missing file: %d %v", code, body)
	}

	code, body := api.upload(t, token, "image", jpegBytes)
	if code != http.StatusCreated || body["status"] != "queued" || body["userPoints"].(float64) != 100 {
		t.Fatalf("create job: %d %v", code, body)
	}
	id := body["id"].(string)

	if err := api.engine.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}

	code, body = api.do(t, http.MethodGet, "/jobs/"+id, "", nil)
	if code != http.StatusOK || body["status"] != "succeeded" || body["pointsDeducted"].(float64) != 10 {
		t.Fatalf("get job: %d %v", code, body)
	}
	rec := body["recipe"].(map[string]any)
	if rec["name"] != "红烧排骨" {
		t.Fatalf("unexpected recipe: %v", rec)
	}

	_, body = api.do(t, http.MethodGet, "/auth/user", token, nil)
	if body["points"].(float64) != 90 {
		t.Fatalf("expected 90 points after one job, got %v", body["points"])
	}

	// "file" is accepted as an alias
	if code, _ := api.upload(t, token, "file", jpegBytes); code != http.StatusCreated {
		t.Fatalf("file alias: %d", code)
	}

	if code, _ := api.do(t, http.MethodGet, "/jobs/does-not-exist", "", nil); code != http.StatusNotFound {
		t.Fatalf("unknown job: %d", code)
	}
}

func TestJobAdmissionRejected(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "saver")

	if code, _ := api.do(t, http.MethodPost, "/auth/consume-points", token, gin.H{"points": 91}); code != http.StatusOK {
		t.Fatalf("consume failed: %d", code)
	}

	code, body := api.upload(t, token, "image", jpegBytes)
	if code != http.StatusBadRequest || body["currentPoints"].(float64) != 9 || body["requiredPoints"].(float64) != 10 {
		t.Fatalf("expected admission rejection: %d %v", code, body)
	}

	_, body = api.do(t, http.MethodGet, "/jobs", token, nil)
	if jobs := body["jobs"].([]any); len(jobs) != 0 {
		t.Fatalf("rejected submission left %d jobs", len(jobs))
	}
}

func TestUploadTooLarge(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "big")

	big := append([]byte{}, jpegBytes...)
	big = append(big, make([]byte, 2<<20)...)
	if code, _ := api.upload(t, token, "image", big); code != http.StatusRequestEntityTooLarge && code != http.StatusBadRequest {
		t.Fatalf("oversized upload: %d", code)
	}
}

func TestFeedbackAndHealth(t *testing.T) {
	api := newTestAPI(t)

	if code, _ := api.do(t, http.MethodPost, "/feedback", "", gin.H{"jobId": "j1"}); code != http.StatusBadRequest {
		t.Fatalf("missing rating: %d", code)
	}
	if code, _ := api.do(t, http.MethodPost, "/feedback", "", gin.H{"jobId": "j1", "rating": 4, "comment": "tasty"}); code != http.StatusNoContent {
		t.Fatalf("feedback: %d", code)
	}

	code, body := api.do(t, http.MethodGet, "/health", "", nil)
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health: %d %v", code, body)
	}
	if code, body := api.do(t, http.MethodGet, "/nope", "", nil); code != http.StatusNotFound || body["code"].(float64) != 40400 {
		t.Fatalf("no route: %d %v", code, body)
	}
}
