package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/oasis-community/opsbot/internal/api/http/handlers"
	"github.com/oasis-community/opsbot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Deliveries     *handlers.DeliveriesHandler
	Ranking        *handlers.RankingHandler
	Metrics        http.Handler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	authenticated := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAnyRole()}
	app.Post("/tickets", append(authenticated, cfg.Tickets.OpenTicket)...)
	app.Get("/tickets", append(authenticated, cfg.Tickets.GetTicket)...)
	app.Delete("/tickets", append(authenticated, cfg.Tickets.CloseTicket)...)
	app.Get("/deliveries", append(authenticated, cfg.Deliveries.ListMine)...)
	app.Get("/ranking", append(authenticated, cfg.Ranking.Status)...)

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	staff.Get("/deliveries/:id", cfg.Deliveries.GetDelivery)
	staff.Post("/deliveries/:id/decision", cfg.Deliveries.Decide)
	staff.Post("/ranking/start", cfg.Ranking.Start)
	staff.Post("/ranking/stop", cfg.Ranking.Stop)
	staff.Post("/ranking/refresh", cfg.Ranking.Refresh)
}
