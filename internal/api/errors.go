package api

import (
	"errors"
	"net/http"

	"github.com/taskhive/taskhive-backend/internal/api/respond"
	"github.com/taskhive/taskhive-backend/internal/model"
	"github.com/taskhive/taskhive-backend/internal/services"
)

// writeDomainError maps service and store failures onto the HTTP taxonomy.
// Messages stay generic; internals are logged, not leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		respond.WriteBadRequest(w, err.Error())
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, "resource not found")
	case errors.Is(err, model.ErrConflict):
		respond.WriteConflict(w, "resource already exists")
	case errors.Is(err, services.ErrUpstreamUnavailable):
		respond.WriteBadGateway(w, "model upstream unavailable")
	case errors.Is(err, services.ErrUpstreamProtocol):
		respond.WriteBadGateway(w, "model upstream protocol violation")
	case errors.Is(err, services.ErrGatewayNotConfigured):
		respond.WriteInternalError(w, "chat is not configured on this deployment")
	case errors.Is(err, services.ErrPersistenceFailed):
		respond.WriteInternalError(w, "could not persist the turn")
	default:
		respond.WriteInternalError(w, "internal error")
	}
}
