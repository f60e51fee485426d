package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"docbucket/dataaccess"
	"docbucket/internal/validation"
	"docbucket/view"
)

// ViewHandlers serves view queries
type ViewHandlers struct {
	container *Container
}

// NewViewHandlers creates a new ViewHandlers instance
func NewViewHandlers(container *Container) *ViewHandlers {
	return &ViewHandlers{container: container}
}

// QueryView runs a view with couch-style query parameters and returns its rows
func (h *ViewHandlers) QueryView(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	for _, field := range []string{"design", "view"} {
		if err := validation.ValidateName(field, vars[field]); err != nil {
			HandleError(w, r, dataaccess.NewInvalidArgument("query view", err))
			return
		}
	}

	q, err := view.ParseQuery(r.URL.Query())
	if err != nil {
		HandleError(w, r, dataaccess.NewInvalidArgument("query view", err))
		return
	}

	resp, err := h.container.Operations.QueryView(r.Context(), vars["design"], vars["view"], q)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
