package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"docbucket/core"
	"docbucket/dataaccess"
	"docbucket/internal/validation"
)

// DocumentHandlers serves single documents and batches of documents
type DocumentHandlers struct {
	container *Container
}

// NewDocumentHandlers creates a new DocumentHandlers instance
func NewDocumentHandlers(container *Container) *DocumentHandlers {
	return &DocumentHandlers{container: container}
}

// WriteResult is the body of a successful write
type WriteResult struct {
	Success bool     `json:"success"`
	ID      string   `json:"id,omitempty"`
	IDs     []string `json:"ids,omitempty"`
}

// GetDocument returns the stored body of a document
func (h *DocumentHandlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := checkID("find by id", id); err != nil {
		HandleError(w, r, err)
		return
	}

	var body json.RawMessage
	found, err := h.container.Operations.FindByID(r.Context(), id, &body)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	if !found {
		HandleError(w, r, dataaccess.Errorf(dataaccess.NotFound, "find by id", id, "document %q does not exist", id))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HeadDocument answers 200 when the document exists and 404 otherwise
func (h *DocumentHandlers) HeadDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := checkID("exists", id); err != nil {
		HandleError(w, r, err)
		return
	}
	ok, err := h.container.Operations.Exists(r.Context(), id)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// PutDocument stores the body under the id of the path. The mode parameter
// selects insert or update semantics; without it the document is saved.
func (h *DocumentHandlers) PutDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := checkID("put", id); err != nil {
		HandleError(w, r, err)
		return
	}

	doc, err := decodeDocument(r.Body)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	if bodyID, ok := doc["id"]; ok && bodyID != id {
		HandleError(w, r, dataaccess.Errorf(dataaccess.InvalidArgument, "put", id,
			"body id %v does not match path id %q", bodyID, id))
		return
	}
	doc["id"] = id

	ops := h.container.Operations
	code := http.StatusOK
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "save":
		err = ops.Save(r.Context(), doc)
	case "insert":
		err = ops.Insert(r.Context(), doc)
		code = http.StatusCreated
	case "update":
		err = ops.Update(r.Context(), doc)
	default:
		err = dataaccess.Errorf(dataaccess.InvalidArgument, "put", id, "unknown mode %q (supported: save, insert, update)", mode)
	}
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, code, WriteResult{Success: true, ID: id})
}

// PostDocument inserts a new document, generating its id when the body has none
func (h *DocumentHandlers) PostDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDocument(r.Body)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	id, err := assignID(doc)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	if err := h.container.Operations.Insert(r.Context(), doc); err != nil {
		HandleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/docs/"+id)
	writeJSON(w, http.StatusCreated, WriteResult{Success: true, ID: id})
}

// PostBulk saves an array of documents. Elements that fail are reported with
// 207 while the others stay written.
func (h *DocumentHandlers) PostBulk(w http.ResponseWriter, r *http.Request) {
	var docs []map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&docs); err != nil {
		HandleError(w, r, dataaccess.NewInvalidArgument("bulk", fmt.Errorf("body must be a JSON array of objects: %w", err)))
		return
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			HandleError(w, r, dataaccess.NewInvalidArgument("bulk", errors.New("null element in batch")))
			return
		}
		id, err := assignID(doc)
		if err != nil {
			HandleError(w, r, err)
			return
		}
		ids = append(ids, id)
	}

	if err := h.container.Operations.SaveAll(r.Context(), core.Entities(docs)); err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WriteResult{Success: true, IDs: ids})
}

// DeleteDocument removes a document; removing an absent document succeeds
func (h *DocumentHandlers) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := checkID("remove", id); err != nil {
		HandleError(w, r, err)
		return
	}
	if err := h.container.Operations.Remove(r.Context(), id); err != nil {
		HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeDocument reads one JSON object, keeping numbers exact
func decodeDocument(body io.Reader) (map[string]any, error) {
	var doc map[string]any
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, dataaccess.NewInvalidArgument("decode", errors.New("request body is empty"))
		}
		return nil, dataaccess.NewInvalidArgument("decode", fmt.Errorf("body must be a JSON object: %w", err))
	}
	if doc == nil {
		return nil, dataaccess.NewInvalidArgument("decode", errors.New("body must be a JSON object"))
	}
	return doc, nil
}

// assignID returns the id of doc, generating one when it is absent or empty
func assignID(doc map[string]any) (string, error) {
	switch v := doc["id"].(type) {
	case nil:
	case string:
		if v != "" {
			return v, checkID("assign id", v)
		}
	default:
		return "", dataaccess.Errorf(dataaccess.InvalidArgument, "assign id", "", "id must be a string, got %T", v)
	}
	id := uuid.NewString()
	doc["id"] = id
	return id, nil
}

// checkID rejects ids that cannot be stored as document keys
func checkID(op, id string) error {
	if err := validation.ValidateDocumentID(id); err != nil {
		return dataaccess.NewInvalidArgument(op, err)
	}
	return nil
}
