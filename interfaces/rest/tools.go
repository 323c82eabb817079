package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/dynamic-mcp/application"
	"github.com/felixgeelhaar/dynamic-mcp/domain/config"
	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/logging"
)

// ToolList is returned by GET /tools.
type ToolList struct {
	TotalTools    int      `json:"total_tools"`
	Tools         []string `json:"tools"`
	ExternalTools []string `json:"external_tools"`
	Revision      uint64   `json:"revision"`
}

// RegisteredTool summarizes a tool added through POST /tools/register.
type RegisteredTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Endpoint    string `json:"endpoint"`
	Method      string `json:"method"`
}

// RegisterResponse is returned by POST /tools/register.
type RegisterResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Tool    RegisteredTool `json:"tool"`
}

// UnregisterResponse is returned by DELETE /tools/unregister/{name}.
type UnregisterResponse struct {
	Tool    string `json:"tool"`
	Removed bool   `json:"removed"`
	Message string `json:"message"`
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	tools, revision := s.config.Runtime.Snapshot()

	resp := ToolList{
		TotalTools:    len(tools),
		Tools:         make([]string, 0, len(tools)),
		ExternalTools: []string{},
		Revision:      revision,
	}
	for _, d := range tools {
		resp.Tools = append(resp.Tools, d.Name())
		if d.HasTag(tool.TagExternal) {
			resp.ExternalTools = append(resp.ExternalTools, d.Name())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	d, ok := s.config.Runtime.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Tool '%s' not found", name))
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

func (s *Server) handleRegisterTool(w http.ResponseWriter, r *http.Request) {
	var ext config.ExternalToolConfig
	if err := decodeJSON(r, &ext, false); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	existing, exists := s.config.Runtime.Lookup(ext.Name)
	if exists && !existing.HasTag(tool.TagExternal) {
		writeError(w, http.StatusConflict, fmt.Sprintf("Tool '%s' already exists and is not an external tool", ext.Name))
		return
	}

	d, err := s.config.Tools.Build(ext)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.config.Runtime.Register(d); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, verb := "registered", "registered"
	if exists {
		status, verb = "updated", "updated"
	}
	method := strings.ToUpper(ext.HTTPMethod)
	if method == "" {
		method = http.MethodGet
	}

	logging.Info().
		Add(logging.Component("rest")).
		Add(logging.ToolName(ext.Name)).
		Add(logging.Str("endpoint", ext.EndpointURL)).
		Add(logging.Str("method", method)).
		Msg("external tool " + verb)

	writeJSON(w, http.StatusOK, RegisterResponse{
		Status:  status,
		Message: fmt.Sprintf("Tool '%s' %s successfully", ext.Name, verb),
		Tool: RegisteredTool{
			Name:        d.Name(),
			Description: d.Description(),
			Endpoint:    ext.EndpointURL,
			Method:      method,
		},
	})
}

func (s *Server) handleUnregisterTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	removed, err := s.config.Runtime.Unregister(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg := fmt.Sprintf("Tool '%s' removed successfully", name)
	if removed {
		s.config.Tools.Forget(name)
	} else {
		msg = fmt.Sprintf("Tool '%s' was not registered", name)
	}
	writeJSON(w, http.StatusOK, UnregisterResponse{Tool: name, Removed: removed, Message: msg})
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.config.Runtime.InvokeJSON(r.Context(), name, json.RawMessage(raw))
	if err != nil {
		writeInvocationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// invocationStatus maps an invocation outcome to an HTTP status.
func invocationStatus(outcome application.Outcome) int {
	switch outcome {
	case application.OutcomeNotFound:
		return http.StatusNotFound
	case application.OutcomeValidationError:
		return http.StatusBadRequest
	case application.OutcomeTimeout:
		return http.StatusGatewayTimeout
	case application.OutcomeRejected:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeInvocationError(w http.ResponseWriter, err error) {
	outcome := application.Classify(err)
	resp := ErrorResponse{Detail: err.Error(), Outcome: string(outcome)}

	var mismatch *tool.SchemaMismatchError
	if errors.As(err, &mismatch) {
		resp.Violations = mismatch.Violations
	}
	writeJSON(w, invocationStatus(outcome), resp)
}
