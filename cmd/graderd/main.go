package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/opencourse/grader/internal/api/http"
	auth "github.com/opencourse/grader/internal/auth/middleware"
	"github.com/opencourse/grader/internal/config"
	"github.com/opencourse/grader/internal/course"
	"github.com/opencourse/grader/internal/db"
	"github.com/opencourse/grader/internal/grading"
	"github.com/opencourse/grader/internal/problem"
	"github.com/opencourse/grader/internal/rbac"
	"github.com/opencourse/grader/internal/state"
)

func main() {
	_ = godotenv.Load() // dev convenience; env wins over .env
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := state.NewSQLStore(dbh)

	// --- Courses ---
	reg, err := course.LoadDir(cfg.CourseDir)
	if err != nil {
		log.Fatalf("load courses from %s: %v", cfg.CourseDir, err)
	}
	for _, c := range reg.List() {
		log.Printf("loaded course %s (%s)", c.ID(), c.DisplayName())
	}

	// --- Grading ---
	rt := &course.Runtime{States: store, Problems: problem.NewGrader()}
	engine := &grading.Engine{States: store, RandomScores: cfg.RandomScores}
	if cfg.RandomScores {
		log.Printf("WARNING: GENERATE_PROFILE_SCORES is on; grades are synthetic")
	}

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Protected API (JWT → subject+role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("course:view")).
			Get("/courses", api.ListCoursesHandler(reg))
		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}", api.GetCourseHandler(reg))

		// Student flow
		pr.With(rbac.Require("problem:submit")).
			Post("/courses/{courseID}/problems/{problemURLName}/submit", api.SubmitProblemHandler(reg, rt, dbh))
		pr.With(rbac.RequireAny("grade:view-own", "grade:view-any"),
			rbac.RequireOwnerOr("grade:view-any", api.OwnRecord)).
			Get("/courses/{courseID}/grade", api.GetGradeHandler(engine, reg, rt, dbh))
		pr.With(rbac.RequireAny("progress:view-own", "progress:view-any"),
			rbac.RequireOwnerOr("progress:view-any", api.OwnRecord)).
			Get("/courses/{courseID}/progress", api.ProgressHandler(engine, reg, rt, dbh))

		// Instructor reports
		pr.With(rbac.Require("grade:export")).
			Get("/courses/{courseID}/grades/export", api.ExportGradesHandler(engine, reg, rt, dbh))
		pr.With(rbac.Require("distributions:view")).
			Get("/courses/{courseID}/distributions", api.DistributionsHandler(reg, store))

		// Users (instructor/admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s, courses=%d)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, len(reg.List()))
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
