package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/annapurna-pos/api/internal/config"
	"github.com/annapurna-pos/api/internal/database"
	"github.com/annapurna-pos/api/internal/handler"
	mw "github.com/annapurna-pos/api/internal/middleware"
	"github.com/annapurna-pos/api/internal/service"
	"github.com/annapurna-pos/api/internal/terminal"
	"github.com/annapurna-pos/api/internal/ws"
)

// New wires the full route tree: public auth, the relay websocket, and the
// hotel-scoped API. Everything under /hotels/{hid} requires a token bound to
// that hotel; admin surfaces additionally require the admin role.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, term terminal.Store, hub *ws.Hub, log *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	handler.NewAuthHandler(queries, cfg.JWTSecret).RegisterRoutes(r)

	// Relay socket; auth runs inside ServeWS via the token query param.
	r.Get("/ws/hotels/{hid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// This register's hotel identity. Empty parses to uuid.Nil, which only
	// matters for relay publishes from an unconfigured dev instance.
	hotelID, err := uuid.Parse(cfg.HotelID)
	if err != nil && cfg.HotelID != "" {
		log.Warn("invalid HOTEL_ID, relay publishes unscoped", zap.String("hotel_id", cfg.HotelID))
	}

	agg := service.NewAggregator(term, cfg.TakeawayMergeWindow)
	kots := service.NewKOTService(term, agg, hub, hotelID, log)
	lifecycle := service.NewLifecycleService(queries, hub, cfg.PendingOrderWindow, log)
	bills := service.NewBillService(
		pool,
		queries,
		func(db database.DBTX) service.BillStore { return database.New(db) },
		term,
		hub,
		log,
	)

	r.Route("/hotels/{hid}", func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireHotel)

		r.Route("/kots", handler.NewKOTHandler(kots, agg, term).RegisterRoutes)
		r.Route("/orders", handler.NewOrderHandler(lifecycle, term).RegisterRoutes)

		billHandler := handler.NewBillHandler(bills, cfg.HotelName)
		r.Route("/bills", func(r chi.Router) {
			billHandler.RegisterRoutes(r)
			r.Group(func(admin chi.Router) {
				admin.Use(mw.RequireAdmin)
				billHandler.RegisterAdminRoutes(admin)
			})
		})

		productHandler := handler.NewProductHandler(queries)
		r.Route("/products", func(r chi.Router) {
			productHandler.RegisterRoutes(r)
			r.Group(func(admin chi.Router) {
				admin.Use(mw.RequireAdmin)
				productHandler.RegisterAdminRoutes(admin)
			})
		})

		r.Route("/customers", handler.NewCustomerHandler(queries).RegisterRoutes)

		r.Group(func(admin chi.Router) {
			admin.Use(mw.RequireAdmin)
			admin.Route("/staff", handler.NewStaffHandler(queries).RegisterRoutes)
		})
	})

	return r
}
