package router

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/resivalidator/service-core/internal/auth"
	"github.com/resivalidator/service-core/internal/catalog"
	"github.com/resivalidator/service-core/internal/receipt"
	"github.com/resivalidator/service-core/internal/report"
	"github.com/resivalidator/service-core/internal/user"
	userentity "github.com/resivalidator/service-core/internal/user/entity"
	"github.com/resivalidator/service-core/pkg/utilities"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := utilities.NewRequestID()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
// It is intentionally simple and conservative so it works with most setups.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Clickjacking protection
			w.Header().Set("X-Frame-Options", "DENY")

			// Referrer policy
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")

			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RecoveryMiddleware converts panics into a JSON 500 with the details kept
// in the log only.
func RecoveryMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorw("panic recovered",
						"method", r.Method,
						"path", r.URL.Path,
						"panic", rec,
					)
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "terjadi kesalahan internal"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// AllowedOriginsFromEnv reads the comma separated ALLOWED_ORIGINS list,
// falling back to the deployment defaults.
func AllowedOriginsFromEnv() []string {
	if raw := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); raw != "" {
		var origins []string
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			return origins
		}
	}
	return []string{
		"https://resi-validator.vercel.app",
		"http://localhost:3000",
		"http://localhost:5173",
	}
}

// CORSMiddleware mirrors the browser contract: listed origins are echoed
// back, requests without an Origin header get a wildcard, everything else
// falls back to the first allowed origin. Preflight requests are answered
// directly.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
			case origin == "":
				w.Header().Set("Access-Control-Allow-Origin", "*")
			default:
				if len(allowedOrigins) > 0 {
					w.Header().Set("Access-Control-Allow-Origin", allowedOrigins[0])
				}
			}
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-admin-key, x-checker-username")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly guards a handler behind the static x-admin-key secret or a
// session token whose role is admin or owner.
func AdminOnly(authSvc *auth.Service, adminKey string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth.VerifyAdminKey(r.Header.Get("x-admin-key"), adminKey) {
			next(w, r)
			return
		}
		if token := auth.BearerToken(r); token != "" && authSvc != nil {
			claims, err := authSvc.Validate(r.Context(), token)
			if err == nil && (claims.Role == userentity.RoleAdmin || claims.Role == userentity.RoleOwner) {
				next(w, r)
				return
			}
		}
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Admin access required"})
	}
}

type pingResponse struct {
	OK   bool   `json:"ok"`
	Time int64  `json:"time"`
	Env  string `json:"env"`
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, db *sqlx.DB, userSvc *user.Service, authSvc *auth.Service, adminKey string) http.Handler {
	mux := http.NewServeMux()

	// liveness, no DB involved
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		env := os.Getenv("APP_ENV")
		if env == "" {
			env = "development"
		}
		writeJSON(w, http.StatusOK, pingResponse{OK: true, Time: time.Now().UnixMilli(), Env: env})
	})

	itemHandler := catalog.NewHandler(db, logger)
	mux.HandleFunc("GET /api/items", itemHandler.List)
	mux.HandleFunc("GET /api/items/{itemCode}", itemHandler.GetByCode)
	mux.HandleFunc("GET /api/admin/items", AdminOnly(authSvc, adminKey, itemHandler.List))
	mux.HandleFunc("POST /api/admin/items", AdminOnly(authSvc, adminKey, itemHandler.Create))
	mux.HandleFunc("PUT /api/admin/items/{id}", AdminOnly(authSvc, adminKey, itemHandler.Update))
	mux.HandleFunc("DELETE /api/admin/items/{id}", AdminOnly(authSvc, adminKey, itemHandler.Delete))

	resiHandler := receipt.NewHandler(db, logger)
	mux.HandleFunc("POST /api/resi", resiHandler.Create)
	mux.HandleFunc("GET /api/resi/pending", resiHandler.Pending)
	mux.HandleFunc("GET /api/resi/{id}", resiHandler.Get)
	mux.HandleFunc("GET /api/admin/resi", AdminOnly(authSvc, adminKey, resiHandler.AdminList))
	mux.HandleFunc("PUT /api/admin/resi/{id}", AdminOnly(authSvc, adminKey, resiHandler.Replace))
	mux.HandleFunc("DELETE /api/admin/resi/{id}", AdminOnly(authSvc, adminKey, resiHandler.Delete))
	mux.HandleFunc("POST /api/resi_items/{id}/verify", resiHandler.Verify)
	mux.HandleFunc("GET /api/checker/history", resiHandler.History)

	reportHandler := report.NewHandler(db, logger)
	mux.HandleFunc("GET /api/stats/daily", reportHandler.Today)
	mux.HandleFunc("GET /api/admin/reports/daily", AdminOnly(authSvc, adminKey, reportHandler.Daily))

	userHandler := user.NewHandler(userSvc, db, logger)
	mux.HandleFunc("GET /api/admin/users", AdminOnly(authSvc, adminKey, userHandler.List))
	mux.HandleFunc("POST /api/admin/users", AdminOnly(authSvc, adminKey, userHandler.Create))
	mux.HandleFunc("PUT /api/admin/users/{id}/block", AdminOnly(authSvc, adminKey, userHandler.Block))
	mux.HandleFunc("DELETE /api/admin/users/{id}", AdminOnly(authSvc, adminKey, userHandler.Delete))

	authHandler := auth.NewHandler(authSvc, logger)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("PUT /api/auth/change-password", authHandler.ChangePassword)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		logger.Debugw("route not found", "method", r.Method, "path", r.URL.Path)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Route not found"})
	})

	handler := RecoveryMiddleware(logger)(
		LoggingMiddleware(logger)(
			CORSMiddleware(AllowedOriginsFromEnv())(
				SecurityHeadersMiddleware()(mux))))
	return handler
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
