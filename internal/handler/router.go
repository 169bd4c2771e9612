package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware applied per route group; main wires the real auth and rate
// limiting, tests substitute passthroughs.
type Middleware func(http.Handler) http.Handler

// Routes assembles the /displays subtree.
//
//	POST   /pairing/init                  device, rate limited per IP
//	GET    /pairing/status/{deviceID}     device
//	POST   /pairing/register              admin
//	POST   /pairing/{deviceID}/disconnect device/operator
//	POST   /pairing/{deviceID}/reset      device/operator
//	GET    /events/{deviceID}             device, SSE
//	GET    /?organisationId=              admin
//	PATCH  /{deviceID}/plan               admin (PUT accepted too)
//	DELETE /{deviceID}/plan               admin
func Routes(
	display *DisplayHandler,
	admin *AdminHandler,
	events *EventsHandler,
	adminAuth Middleware,
	initLimiter Middleware,
) chi.Router {
	r := chi.NewRouter()

	r.With(adminAuth).Get("/", admin.List)

	r.Route("/pairing", func(r chi.Router) {
		r.With(initLimiter).Post("/init", display.Init)
		r.Get("/status/{deviceID}", display.Status)
		r.With(adminAuth).Post("/register", admin.Register)
		r.Post("/{deviceID}/disconnect", display.Disconnect)
		r.Post("/{deviceID}/reset", display.Reset)
	})

	r.Get("/events/{deviceID}", events.ServeHTTP)

	r.Route("/{deviceID}/plan", func(r chi.Router) {
		r.Use(adminAuth)
		r.Patch("/", admin.AssignPlan)
		r.Put("/", admin.AssignPlan)
		r.Delete("/", admin.ClearPlan)
	})

	return r
}
