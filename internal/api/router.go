package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/wallet-engine/internal/api/handlers"
	"github.com/baharkarakas/wallet-engine/internal/auth"
	"github.com/baharkarakas/wallet-engine/internal/config"
	"github.com/baharkarakas/wallet-engine/internal/metrics"
	"github.com/baharkarakas/wallet-engine/internal/middleware"
	"github.com/baharkarakas/wallet-engine/internal/notify"
	"github.com/baharkarakas/wallet-engine/internal/services"
)

type RouterDeps struct {
	Cfg     config.Config
	TM      *auth.TokenManager
	Wallets *services.WalletService
	Txns    *services.TransactionService
	Admin   *services.AdminService
	Hub     *notify.Hub
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.Cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	authH := handlers.NewAuthHandler(d.TM, d.Cfg.Env)
	walletH := handlers.NewWalletHandler(d.Wallets)
	txnH := handlers.NewTransactionHandler(d.Txns)
	adminH := handlers.NewAdminHandler(d.Admin, d.Wallets)
	am := middleware.NewAuthMiddleware(d.TM, d.Cfg.Env)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(d.Cfg.RateRPS)).Post("/auth/refresh", authH.Refresh)
		if d.Cfg.Env == "dev" {
			r.Post("/auth/dev-login", authH.DevLogin)
		}

		r.Group(func(r chi.Router) {
			r.Use(am.Auth, middleware.RateLimit(d.Cfg.RateRPS))

			r.Get("/wallet", walletH.Get)
			r.Post("/wallet/add-funds", walletH.AddFunds)

			r.Post("/transactions/send", txnH.Send)
			r.Get("/transactions", txnH.List)
			r.Get("/transactions/stats", txnH.Stats)
			r.Get("/transactions/{id}", txnH.Get)

			if d.Hub != nil {
				r.Get("/ws", handlers.NewWSHandler(d.Hub).Serve)
			}

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(auth.RoleAdmin))
				r.Post("/wallets", adminH.OpenWallet)
				r.Get("/wallets", adminH.ListWallets)
				r.Post("/wallets/{id}/adjust", adminH.Adjust)
				r.Get("/wallets/{id}/reconcile", adminH.Reconcile)
				r.Get("/transactions", adminH.ListTransactions)
				r.Get("/stats", adminH.Stats)
				r.Get("/audit", adminH.Audit)
			})
		})
	})

	return r
}
