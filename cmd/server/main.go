package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	api "github.com/campushub/campushub-sms/internal/api/http"
	"github.com/campushub/campushub-sms/internal/audit"
	auth "github.com/campushub/campushub-sms/internal/auth/middleware"
	"github.com/campushub/campushub-sms/internal/config"
	"github.com/campushub/campushub-sms/internal/db"
	"github.com/campushub/campushub-sms/internal/rbac"
	"github.com/campushub/campushub-sms/internal/school"
	"github.com/campushub/campushub-sms/internal/storage"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	if err := ensureAdminUser(ctx, dbh, cfg); err != nil {
		log.Fatalf("admin bootstrap: %v", err)
	}

	events := audit.NewLog(dbh)
	store := school.NewSQLStore(dbh, cfg.DBDriver, events)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	authSvc := auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := dbh.PingContext(req.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.Get("/auth/me", api.MeHandler(dbh))
		pr.With(rbac.Require("user:create")).
			Post("/auth/register", api.RegisterHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/auth/change-password", api.ChangePasswordHandler(dbh))
		pr.With(rbac.Require("user:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:create")).
			Post("/users/bulk", api.BulkImportUsersHandler(dbh))

		pr.Route("/students", func(sr chi.Router) {
			sr.With(rbac.Require("student:create")).Post("/", api.CreateStudentHandler(store))
			sr.With(rbac.Require("student:list")).Get("/", api.ListStudentsHandler(store))
			sr.With(rbac.RequireOwnerOr("student:view", api.OwnStudent(store))).
				Get("/{id}", api.GetStudentHandler(store))
			sr.With(rbac.Require("student:update")).Put("/{id}", api.UpdateStudentHandler(store))
			sr.With(rbac.RequireOwnerOr("student:view", api.OwnStudent(store))).
				Get("/{id}/courses", api.StudentCoursesHandler(store))
		})

		pr.Route("/teachers", func(tr chi.Router) {
			tr.With(rbac.Require("teacher:create")).Post("/", api.CreateTeacherHandler(store))
			tr.With(rbac.Require("teacher:list")).Get("/", api.ListTeachersHandler(store))
			tr.With(rbac.Require("teacher:view")).Get("/{id}", api.GetTeacherHandler(store))
			tr.With(rbac.Require("teacher:update")).Put("/{id}", api.UpdateTeacherHandler(store))
			tr.With(rbac.Require("teacher:view")).Get("/{id}/courses", api.TeacherCoursesHandler(store))
		})

		pr.Route("/courses", func(cr chi.Router) {
			cr.With(rbac.Require("course:create")).Post("/", api.CreateCourseHandler(store))
			cr.With(rbac.Require("course:view")).Get("/", api.ListCoursesHandler(store))
			cr.With(rbac.Require("course:view")).Get("/{id}", api.GetCourseHandler(store))
			cr.With(rbac.Require("course:update")).Put("/{id}", api.UpdateCourseHandler(store))
			cr.With(rbac.Require("course:delete")).Delete("/{id}", api.DeleteCourseHandler(store))
		})

		pr.Route("/enrollments", func(er chi.Router) {
			er.With(rbac.Require("enrollment:create")).Post("/", api.CreateEnrollmentHandler(store))
			er.With(rbac.RequireAny("enrollment:view-all", "enrollment:view-own")).
				Get("/", api.ListEnrollmentsHandler(store))
			er.With(rbac.Require("enrollment:update")).Put("/{id}", api.UpdateEnrollmentHandler(store))
			er.With(rbac.Require("enrollment:drop")).Delete("/{id}", api.DropEnrollmentHandler(store))
		})

		pr.Route("/attendance", func(ar chi.Router) {
			ar.With(rbac.Require("attendance:mark")).Post("/", api.MarkAttendanceHandler(store))
			ar.With(rbac.RequireAny("attendance:view-all", "attendance:view-own")).
				Get("/", api.ListAttendanceHandler(store))
			ar.With(rbac.RequireAny("attendance:view-all", "attendance:view-own")).
				Get("/summary", api.AttendanceSummaryHandler(store))
		})

		pr.Route("/grades", func(gr chi.Router) {
			gr.With(rbac.Require("grade:create")).Post("/", api.CreateGradeHandler(store))
			gr.With(rbac.RequireAny("grade:view-all", "grade:view-own")).
				Get("/", api.ListGradesHandler(store))
			gr.With(rbac.Require("grade:update")).Put("/{id}", api.UpdateGradeHandler(store))
			gr.With(rbac.Require("grade:publish")).Post("/{id}/publish", api.PublishGradeHandler(store))
		})

		pr.Route("/announcements", func(ar chi.Router) {
			ar.With(rbac.Require("announcement:create")).Post("/", api.CreateAnnouncementHandler(store))
			ar.With(rbac.Require("announcement:view")).Get("/", api.ListAnnouncementsHandler(store))
			ar.With(rbac.Require("announcement:update")).Put("/{id}", api.UpdateAnnouncementHandler(store))
			ar.With(rbac.Require("announcement:delete")).Delete("/{id}", api.DeleteAnnouncementHandler(store))
		})

		pr.With(rbac.Require("asset:upload")).Post("/assets", api.UploadAssetHandler(bs))
		pr.Get("/assets/*", api.DownloadAssetHandler(bs))

		pr.Get("/dashboard", api.DashboardHandler(store, events))
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// ensureAdminUser seeds the first admin account when the users table is
// empty. The hash comes pre-computed from the environment so plaintext
// never touches config.
func ensureAdminUser(ctx context.Context, dbh *sql.DB, cfg config.Config) error {
	if cfg.AdminPassHash == "" {
		return nil
	}
	var n int
	if err := dbh.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := dbh.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, role, first_name, last_name, phone, is_active, created_at)
		 VALUES ($1,$2,$3,$4,'admin','','','',$5,$6)`,
		uuid.NewString(), cfg.AdminUser, cfg.AdminUser+"@campushub.local", cfg.AdminPassHash,
		true, time.Now().Unix())
	if err == nil {
		log.Printf("seeded admin user %q", cfg.AdminUser)
	}
	return err
}
