package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rodinstudio/internal/domain"
	"rodinstudio/internal/i18n"
	"rodinstudio/internal/middleware"
	"rodinstudio/internal/providers/rodin"
)

// proxyFailure is the error body of the pass-through routes.
type proxyFailure struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ProxyGenerate validates a generation form and forwards it to /rodin with the
// server-held key. Only the option fields the client sent are forwarded.
func (a *App) ProxyGenerate(w http.ResponseWriter, r *http.Request) {
	form, err := parseSubmissionForm(w, r)
	if err == nil {
		sub := form.Submission
		sub.Options.Normalize()
		err = sub.Validate()
	}
	if err != nil {
		ue := i18n.UserError(middleware.LocaleFromContext(r.Context()), err)
		a.json(w, http.StatusBadRequest, proxyFailure{Error: ue.Message, Details: domain.DetailOf(err)})
		return
	}

	body, contentType, err := rodin.EncodeForm(form.Submission.Images, form.Submission.Prompt, form.Fields)
	if err != nil {
		a.json(w, http.StatusInternalServerError, proxyFailure{Error: "Invalid form data. Please check your inputs.", Details: err.Error()})
		return
	}
	start := time.Now()
	resp, err := a.Rodin.Submit(r.Context(), body, contentType)
	if err != nil {
		a.Metrics.ObserveUpstream("proxy_submit", "transport", time.Since(start))
		a.Logger.Error().Err(err).Msg("proxy submit failed")
		a.json(w, http.StatusInternalServerError, proxyFailure{Error: "Failed to connect to the AI service. Please try again.", Details: err.Error()})
		return
	}
	a.Metrics.ObserveUpstream("proxy_submit", outcomeOf(resp), time.Since(start))
	if !resp.OK() {
		a.json(w, resp.StatusCode, proxyFailure{Error: upstreamMessage(resp), Details: string(resp.Body)})
		return
	}
	if !resp.IsJSON() || !json.Valid(resp.Body) {
		a.json(w, http.StatusBadGateway, proxyFailure{Error: "Invalid response from AI service. Please try again.", Details: string(resp.Body)})
		return
	}
	a.raw(w, resp.Body)
}

// ProxyStatus forwards {subscription_key} to /status.
func (a *App) ProxyStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubscriptionKey string `json:"subscription_key"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	key := strings.TrimSpace(req.SubscriptionKey)
	if key == "" {
		a.json(w, http.StatusBadRequest, proxyFailure{Error: "Missing subscription_key"})
		return
	}
	start := time.Now()
	resp, err := a.Rodin.Status(r.Context(), key)
	a.forward(w, "status", start, resp, err, "Failed to check status")
}

// ProxyDownload forwards {task_uuid} to /download.
func (a *App) ProxyDownload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskUUID string `json:"task_uuid"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	id := strings.TrimSpace(req.TaskUUID)
	if id == "" {
		a.json(w, http.StatusBadRequest, proxyFailure{Error: "Missing task_uuid"})
		return
	}
	start := time.Now()
	resp, err := a.Rodin.Download(r.Context(), id)
	a.forward(w, "download", start, resp, err, "Failed to download model")
}

// forward relays a JSON reply. Non-2xx replies keep their status; non-JSON
// success replies become 502.
func (a *App) forward(w http.ResponseWriter, op string, start time.Time, resp *rodin.Response, err error, failure string) {
	if err != nil {
		a.Metrics.ObserveUpstream("proxy_"+op, "transport", time.Since(start))
		a.Logger.Error().Err(err).Str("op", op).Msg("proxy call failed")
		a.json(w, http.StatusInternalServerError, proxyFailure{Error: failure, Details: err.Error()})
		return
	}
	a.Metrics.ObserveUpstream("proxy_"+op, outcomeOf(resp), time.Since(start))
	label := strings.ToUpper(op[:1]) + op[1:]
	if !resp.OK() {
		a.json(w, resp.StatusCode, proxyFailure{Error: fmt.Sprintf("%s failed: %d", label, resp.StatusCode), Details: string(resp.Body)})
		return
	}
	if !resp.IsJSON() {
		a.json(w, http.StatusBadGateway, proxyFailure{Error: label + " API returned non-JSON response", Details: string(resp.Body)})
		return
	}
	a.raw(w, resp.Body)
}

func (a *App) raw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// upstreamMessage picks the most useful message from a failed reply: the
// `error` field, else `message`, else the raw text.
func upstreamMessage(resp *rodin.Response) string {
	var payload struct {
		Error   any `json:"error"`
		Message any `json:"message"`
	}
	text := strings.TrimSpace(string(resp.Body))
	if err := json.Unmarshal(resp.Body, &payload); err == nil {
		if s := nonEmpty(payload.Error); s != "" {
			return s
		}
		if s := nonEmpty(payload.Message); s != "" {
			return s
		}
	} else if text != "" {
		return text
	}
	return fmt.Sprintf("API request failed: %d", resp.StatusCode)
}

func nonEmpty(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
	}
	raw, _ := json.Marshal(v)
	return string(raw)
}

func outcomeOf(resp *rodin.Response) string {
	switch {
	case !resp.OK():
		return "http_error"
	case !resp.IsJSON():
		return "non_json"
	default:
		return "ok"
	}
}
