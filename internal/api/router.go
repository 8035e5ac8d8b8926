package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/taskhive/taskhive-backend/internal/api/recovery"
	"github.com/taskhive/taskhive-backend/internal/auth"
	"github.com/taskhive/taskhive-backend/internal/health"
	"github.com/taskhive/taskhive-backend/internal/services"
)

// Deps bundles everything the router needs. Construction happens in the
// service bootstrap, not here.
type Deps struct {
	Authorizer    auth.Authorizer
	Chat          *services.ChatService
	Conversations *services.ConversationService
	Tasks         *services.TaskService
	Tags          *services.TagService
	Health        *health.ServiceHealthChecker
	Log           zerolog.Logger
}

// NewRouter builds the HTTP routing table. Health endpoints are public;
// everything else sits behind bearer-token auth.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	healthHandler := NewHealthHandler(d.Health)
	router.HandleFunc("/api/health", healthHandler.Live).Methods("GET")
	router.HandleFunc("/api/health/ready", healthHandler.Ready).Methods("GET")

	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(auth.Middleware(d.Authorizer))

	chatHandler := NewChatHandler(d.Chat, d.Log)
	authed.HandleFunc("/chat", chatHandler.HandleChat).Methods("POST")
	authed.HandleFunc("/chat/", chatHandler.HandleChat).Methods("POST")

	convHandler := NewConversationHandler(d.Conversations)
	authed.HandleFunc("/conversations", convHandler.List).Methods("GET")
	authed.HandleFunc("/conversations/", convHandler.List).Methods("GET")
	authed.HandleFunc("/conversations/{id:[0-9]+}", convHandler.Get).Methods("GET")
	authed.HandleFunc("/conversations/{id:[0-9]+}/messages", convHandler.Messages).Methods("GET")
	authed.HandleFunc("/conversations/{id:[0-9]+}", convHandler.Delete).Methods("DELETE")

	taskHandler := NewTaskHandler(d.Tasks)
	authed.HandleFunc("/tasks", taskHandler.Create).Methods("POST")
	authed.HandleFunc("/tasks/", taskHandler.Create).Methods("POST")
	authed.HandleFunc("/tasks", taskHandler.List).Methods("GET")
	authed.HandleFunc("/tasks/", taskHandler.List).Methods("GET")
	// fixed segments go before the {id} routes so they are not shadowed
	authed.HandleFunc("/tasks/overdue", taskHandler.Overdue).Methods("GET")
	authed.HandleFunc("/tasks/statistics", taskHandler.Statistics).Methods("GET")
	authed.HandleFunc("/tasks/{id:[0-9]+}", taskHandler.Get).Methods("GET")
	authed.HandleFunc("/tasks/{id:[0-9]+}", taskHandler.Update).Methods("PATCH")
	authed.HandleFunc("/tasks/{id:[0-9]+}", taskHandler.Delete).Methods("DELETE")
	authed.HandleFunc("/tasks/{id:[0-9]+}/complete", taskHandler.Complete).Methods("POST")

	tagHandler := NewTagHandler(d.Tags)
	authed.HandleFunc("/tags", tagHandler.Create).Methods("POST")
	authed.HandleFunc("/tags/", tagHandler.Create).Methods("POST")
	authed.HandleFunc("/tags", tagHandler.List).Methods("GET")
	authed.HandleFunc("/tags/", tagHandler.List).Methods("GET")
	authed.HandleFunc("/tags/{id:[0-9]+}", tagHandler.Delete).Methods("DELETE")

	return router
}
