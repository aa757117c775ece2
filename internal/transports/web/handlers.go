package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kefctl/internal/core"
	"kefctl/internal/storage"
)

const webSource = "web"

var errInvalidBody = errors.New("invalid request body")

type controlRequest struct {
	Value interface{} `json:"value"`
}

type commandDTO struct {
	Name          string   `json:"name"`
	Aliases       []string `json:"aliases,omitempty"`
	RequiresValue bool     `json:"requires_value"`
	ValueType     string   `json:"value_type,omitempty"`
	Help          string   `json:"help"`
}

type auditDTO struct {
	Source    string `json:"source"`
	Command   string `json:"command"`
	Value     string `json:"value,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TS        string `json:"ts"`
}

// handleStatus отдает полный статус колонки. HTTP-код всегда 200,
// результат передается полем success.
func (a *Adapter) handleStatus(w http.ResponseWriter, r *http.Request) {
	res := a.deps.Service.Status(r.Context())
	if !res.Success {
		writeJSON(w, r, http.StatusOK, failureBody(res.Message()))
		return
	}
	st, _ := res.Payload.(core.Status)
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"state":   st.State,
		"volume":  st.Volume,
		"source":  st.Source,
		"mode":    st.Mode,
	})
}

func (a *Adapter) handleControl(w http.ResponseWriter, r *http.Request) {
	command := chi.URLParam(r, "command")
	args, err := decodeControlArgs(r.Body)
	if err != nil {
		writeJSON(w, r, http.StatusOK, failureBody(err.Error()))
		return
	}

	res := a.deps.Service.Execute(r.Context(), webSource, requestIDFromContext(r.Context()), command, args...)
	if !res.Success {
		writeJSON(w, r, http.StatusOK, failureBody(res.Message()))
		return
	}
	body := map[string]interface{}{"success": true}
	if res.Payload != nil {
		body["result"] = res.Payload
	}
	writeJSON(w, r, http.StatusOK, body)
}

// decodeControlArgs читает необязательное тело {"value": ...}.
// Пустое тело и null означают отсутствие значения.
func decodeControlArgs(body io.Reader) ([]string, error) {
	if body == nil {
		return nil, nil
	}
	var req controlRequest
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errInvalidBody
	}
	switch v := req.Value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case json.Number:
		return []string{v.String()}, nil
	default:
		// Прочие типы уходят в проверку значения и отклоняются там.
		return []string{fmt.Sprint(v)}, nil
	}
}

func (a *Adapter) handleCommands(w http.ResponseWriter, r *http.Request) {
	cmds := a.deps.Service.Commands()
	items := make([]commandDTO, 0, len(cmds))
	for _, c := range cmds {
		dto := commandDTO{Name: c.Name, Aliases: c.Aliases, RequiresValue: c.RequiresValue(), Help: c.Help}
		if c.RequiresValue() {
			dto.ValueType = c.Value.String()
		}
		items = append(items, dto)
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"commands": items})
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	online := a.deps.Service.Online(r.Context())
	status := "ok"
	if !online {
		status = "degraded"
	}
	body := map[string]interface{}{"status": status, "online": online}
	if info, err := a.deps.HostInfo(r.Context()); err == nil {
		body["host"] = info
	} else {
		a.deps.Logger.Warn("host info unavailable", "err", err)
	}
	writeJSON(w, r, http.StatusOK, body)
}

func (a *Adapter) handleAudit(w http.ResponseWriter, r *http.Request) {
	if a.deps.Store == nil {
		writeJSON(w, r, http.StatusNotFound, failureBody("audit store is not configured"))
		return
	}
	q := storage.AuditQuery{
		Source: r.URL.Query().Get("source"),
		Limit:  parseLimit(r.URL.Query().Get("limit")),
	}
	events, err := a.deps.Store.QueryAudit(r.Context(), q)
	if err != nil {
		a.deps.Logger.Error("audit query failed", "err", err)
		writeJSON(w, r, http.StatusInternalServerError, failureBody("audit query failed"))
		return
	}
	items := make([]auditDTO, 0, len(events))
	for _, ev := range events {
		items = append(items, auditDTO{
			Source:    ev.Source,
			Command:   ev.Command,
			Value:     ev.Value,
			Status:    ev.Status,
			Error:     ev.Error,
			RequestID: ev.RequestID,
			TS:        ev.TS.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"success": true, "items": items})
}

func parseLimit(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 50
	}
	return n
}

func failureBody(msg string) map[string]interface{} {
	return map[string]interface{}{"success": false, "error": msg}
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if id := requestIDFromContext(r.Context()); id != "" {
		w.Header().Set("X-Request-ID", id)
	}
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
