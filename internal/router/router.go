// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/bulk-messenger/internal/controller"
	"github.com/unclebandit/bulk-messenger/internal/handler"
	"github.com/unclebandit/bulk-messenger/internal/middleware"
)

// Deps are the handlers mounted by New. Templates and Tasks are optional.
type Deps struct {
	Middleware *middleware.Middleware
	Messaging  *controller.MessagingController
	Templates  *handler.TemplateHandler
	Tasks      *handler.TaskHandler
	// APILimit requests per APIWindow per client; zero disables
	APILimit  int
	APIWindow time.Duration
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	if d.Middleware != nil {
		r.Use(d.Middleware.RequestID)
		r.Use(d.Middleware.Logger)
		r.Use(d.Middleware.Recover)
	}

	r.Get("/health", d.Messaging.Health)

	r.Route("/api", func(r chi.Router) {
		if d.Middleware != nil {
			r.Use(d.Middleware.RateLimit(d.APILimit, d.APIWindow))
		}

		r.Post("/process-ai-message", d.Messaging.ProcessAIMessage)
		r.Post("/send-messages", d.Messaging.SendMessages)
		r.Get("/customization-patterns", d.Messaging.CustomizationPatterns)
		r.Post("/customization-rules", d.Messaging.AddCustomizationRule)
		r.Post("/test-customization", d.Messaging.TestCustomization)
		r.Get("/contacts/{file}", d.Messaging.GetContacts)
		r.Get("/campaigns/{id}/stats", d.Messaging.CampaignStats)

		if d.Templates != nil {
			r.Get("/templates", d.Templates.ListTemplatesHandler)
			r.Post("/templates", d.Templates.SaveTemplateHandler)
			r.Get("/templates/{name}", d.Templates.GetTemplateHandler)
			r.Delete("/templates/{name}", d.Templates.DeleteTemplateHandler)
			r.Post("/templates/{name}/preview", d.Templates.PreviewTemplateHandler)
		}

		if d.Tasks != nil {
			r.Get("/tasks", d.Tasks.ListTasksHandler)
			r.Post("/tasks", d.Tasks.CreateTaskHandler)
			r.Get("/tasks/{id}", d.Tasks.GetTaskHandler)
			r.Delete("/tasks/{id}", d.Tasks.PurgeTaskHandler)
			r.Post("/tasks/{id}/pause", d.Tasks.PauseTaskHandler)
			r.Post("/tasks/{id}/resume", d.Tasks.ResumeTaskHandler)
			r.Post("/tasks/{id}/cancel", d.Tasks.CancelTaskHandler)
			r.Post("/tasks/{id}/run", d.Tasks.RunTaskHandler)
			r.Get("/schedules/common", d.Tasks.CommonSchedulesHandler)
		}
	})

	r.NotFound(controller.NotFound)
	r.MethodNotAllowed(controller.NotFound)
	return r
}
