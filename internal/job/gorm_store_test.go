package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/suPer8Hu/recipe-snap/internal/recipe"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&Job{}, &Feedback{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestGormStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(openTestDB(t))

	j := &Job{ID: "01J0000000000000000000000A", UserID: "u1", Status: StatusQueued,
		ImageData: jpeg.Data, ImageMIME: "image/jpeg", PointsBalanceBeforeJob: 100}
	if err := s.Create(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.ImageData) != 0 {
		t.Fatalf("Get must not load image bytes")
	}
	if got.Status != StatusQueued || got.PointsBalanceBeforeJob != 100 || got.Recipe != nil {
		t.Fatalf("unexpected job: %+v", got)
	}

	img, err := s.LoadImage(ctx, j.ID)
	if err != nil || string(img.Data) != string(jpeg.Data) || img.MIMEType != "image/jpeg" {
		t.Fatalf("load image: %+v %v", img, err)
	}

	if ok, err := s.MarkRunning(ctx, j.ID); err != nil || !ok {
		t.Fatalf("mark running: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.MarkRunning(ctx, j.ID); ok {
		t.Fatalf("second MarkRunning must not apply")
	}

	rec := recipe.Parse("**菜品名称：** 番茄炒蛋\n**主要食材：**\n- 番茄 2个\n**烹饪步骤：**\n1. 炒蛋\n2. 加番茄")
	if ok, err := s.Finish(ctx, j.ID, Result{Status: StatusSucceeded, Recipe: &rec}); err != nil || !ok {
		t.Fatalf("finish: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Finish(ctx, j.ID, Result{Status: StatusFailed, Error: &Error{Code: CodeTimeout}}); ok {
		t.Fatalf("terminal job must not transition again")
	}

	got, _ = s.Get(ctx, j.ID)
	if got.Status != StatusSucceeded || got.CompletedAt == nil || got.Error != nil {
		t.Fatalf("unexpected finished job: %+v", got)
	}
	if got.Recipe == nil || got.Recipe.Name != "番茄炒蛋" || len(got.Recipe.Steps) != 2 {
		t.Fatalf("recipe did not round trip: %+v", got.Recipe)
	}

	if ok, _ := s.ClaimCharge(ctx, j.ID); !ok {
		t.Fatalf("first claim must win")
	}
	if ok, _ := s.ClaimCharge(ctx, j.ID); ok {
		t.Fatalf("second claim must lose")
	}

	deducted, remaining := int64(10), int64(90)
	if err := s.RecordCharge(ctx, j.ID, Charge{Deducted: &deducted, Remaining: &remaining}); err != nil {
		t.Fatalf("record charge: %v", err)
	}
	got, _ = s.Get(ctx, j.ID)
	if got.PointsDeducted == nil || *got.PointsDeducted != 10 || *got.RemainingPointsAfterJob != 90 || got.PointsDeductionError != nil {
		t.Fatalf("unexpected charge fields: %+v", got)
	}
}

func TestGormStore_NotFound(t *testing.T) {
	s := NewGormStore(openTestDB(t))
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.LoadImage(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGormStore_EngineEndToEnd(t *testing.T) {
	f := newFixture(t, &stubProvider{text: "**菜品名称：** 番茄炒蛋\n**烹饪步骤：**\n1. 炒"}, Options{}, 100)
	gs := NewGormStore(openTestDB(t))
	f.engine = NewEngine(gs, f.ledger, f.engine.provider, Options{Price: 10}, nil)

	j := f.submitAndRun(t)
	if j.Status != StatusSucceeded || j.PointsDeducted == nil || *j.PointsDeducted != 10 {
		t.Fatalf("unexpected job: %+v", j)
	}
	if f.balance(t) != 90 {
		t.Fatalf("expected 90, got %d", f.balance(t))
	}

	jobs, err := gs.ListByUser(context.Background(), "u1", 10)
	if err != nil || len(jobs) != 1 || jobs[0].ID != j.ID {
		t.Fatalf("list: %+v %v", jobs, err)
	}
}

func TestFeedbackRepo_SaveAndList(t *testing.T) {
	ctx := context.Background()
	r := NewFeedbackRepo(openTestDB(t))

	if err := r.Save(ctx, &Feedback{JobID: "j1", Rating: 6}); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}
	for _, rating := range []int{5, 3} {
		if err := r.Save(ctx, &Feedback{JobID: "j1", UserID: "u1", Rating: rating}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	out, err := r.ListByJob(ctx, "j1")
	if err != nil || len(out) != 2 || out[0].Rating != 5 {
		t.Fatalf("list: %+v %v", out, err)
	}
}
