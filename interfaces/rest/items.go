package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/felixgeelhaar/dynamic-mcp/domain/calc"
	"github.com/felixgeelhaar/dynamic-mcp/domain/item"
)

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// MessageResponse carries a confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// calcBody is the /calculate request. The operation is a plain string so an
// unsupported value reaches calc.Evaluate and gets a specific error.
type calcBody struct {
	Operation string  `json:"operation" description:"The arithmetic operation to perform: add, subtract, multiply or divide"`
	A         float64 `json:"a" description:"First operand"`
	B         float64 `json:"b" description:"Second operand"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.config.Items.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []item.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	it, err := s.config.Items.Get(r.Context(), id)
	if err != nil {
		writeItemError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	in, ok := itemInput(w, r)
	if !ok {
		return
	}
	it, err := s.config.Items.Create(r.Context(), in)
	if err != nil {
		writeItemError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	in, ok := itemInput(w, r)
	if !ok {
		return
	}
	it, err := s.config.Items.Update(r.Context(), id, in)
	if err != nil {
		writeItemError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	if err := s.config.Items.Delete(r.Context(), id); err != nil {
		writeItemError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Item %d deleted successfully", id)})
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var body calcBody
	if err := decodeJSON(r, &body, false); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp, err := calc.Evaluate(calc.Request{Operation: calc.Operation(body.Operation), A: body.A, B: body.B})
	switch {
	case errors.Is(err, calc.ErrDivideByZero):
		writeError(w, http.StatusBadRequest, "Cannot divide by zero")
	case errors.Is(err, calc.ErrUnknownOperation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: "dynamic-mcp-tools"})
}

func itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("item_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "item_id must be an integer")
		return 0, false
	}
	return id, true
}

func itemInput(w http.ResponseWriter, r *http.Request) (item.Input, bool) {
	var in item.Input
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return in, false
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return in, false
	}
	return in, true
}

func writeItemError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, item.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, item.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
