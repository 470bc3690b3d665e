package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskhand/helpdesk-service/internal/api/http/handlers"
	"github.com/deskhand/helpdesk-service/internal/auth"
	"github.com/deskhand/helpdesk-service/internal/domain"
	"github.com/deskhand/helpdesk-service/internal/observability"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Health        *handlers.HealthHandler
	Users         *handlers.UsersHandler
	Tickets       *handlers.TicketsHandler
	Assignments   *handlers.AssignmentsHandler
	Notifications *handlers.NotificationsHandler
	Chat          *handlers.ChatHandler
}

// RegisterRoutes wires all endpoints onto the fiber app.
func RegisterRoutes(app *fiber.App, h Handlers, authMW *auth.AuthMiddleware, metrics *observability.Metrics) {
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", func(c *fiber.Ctx) error {
		notified, merged := metrics.Snapshot()
		return c.JSON(fiber.Map{"data": fiber.Map{
			"notifications_total":  notified,
			"notifications_merged": merged,
		}})
	})

	api := app.Group("/api/v1")

	api.Post("/auth/register", h.Users.Register)
	api.Post("/auth/login", h.Users.Login)
	api.Get("/auth/me", authMW.Handle, h.Users.Me)

	// Admin provisioning of agent/admin accounts goes through the
	// authenticated path; the handler checks the principal's role.
	api.Post("/users", authMW.Handle, auth.RequireRole(domain.RoleAdmin), h.Users.Register)

	api.Get("/categories", authMW.Handle, h.Tickets.Categories)

	tickets := api.Group("/tickets", authMW.Handle)
	tickets.Post("/", h.Tickets.Create)
	tickets.Get("/", h.Tickets.List)
	tickets.Get("/number/:number", h.Tickets.GetByNumber)
	tickets.Get("/:id", h.Tickets.Get)
	tickets.Post("/:id/status", h.Tickets.Transition)
	tickets.Get("/:id/history", h.Tickets.History)

	tickets.Post("/:id/claim", auth.RequireRole(domain.RoleAgent), h.Assignments.Claim)
	tickets.Post("/:id/assignment/accept", auth.RequireRole(domain.RoleAgent), h.Assignments.Accept)
	tickets.Post("/:id/assignment/reject", auth.RequireRole(domain.RoleAgent), h.Assignments.Reject)
	tickets.Post("/:id/assign", auth.RequireRole(domain.RoleAdmin), h.Assignments.AssignDirect)
	tickets.Get("/:id/assignment/requests", auth.RequireRole(domain.RoleAgent, domain.RoleAdmin), h.Assignments.Requests)

	tickets.Get("/:id/chat/access", h.Chat.Access)
	tickets.Get("/:id/chat", h.Chat.List)
	tickets.Post("/:id/chat", h.Chat.Post)

	api.Get("/assignments/claimable", authMW.Handle, auth.RequireRole(domain.RoleAgent), h.Assignments.Claimable)

	notifications := api.Group("/notifications", authMW.Handle)
	notifications.Get("/", h.Notifications.List)
	notifications.Get("/unread-count", h.Notifications.UnreadCount)
	notifications.Post("/read-all", h.Notifications.MarkAllRead)
	notifications.Post("/:id/read", h.Notifications.MarkRead)
	notifications.Post("/:id/archive", h.Notifications.Archive)
}
