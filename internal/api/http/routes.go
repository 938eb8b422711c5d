package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"adc-acquisition/internal/domain"
)

const (
	paramChannel = "channel"
	queryTimeout = "timeout"
	queryFrom    = "from"
	queryTo      = "to"
)

// handler contains the HTTP handlers and shared dependencies for the REST API.
type handler struct {
	service        domain.AcquisitionService
	defaultTimeout time.Duration
}

func registerRoutes(router chi.Router, h *handler) {
	router.Get("/health", h.handleHealth)
	router.Get("/channels", h.handleChannels)
	router.Route("/channels/{"+paramChannel+"}", func(r chi.Router) {
		r.Get("/sample", h.handleSample)
		r.Get("/latest", h.handleLatest)
		r.Get("/history", h.handleHistory)
	})
}

type sampleResponse struct {
	RequestID string  `json:"request_id"`
	Channel   int     `json:"channel"`
	Index     int     `json:"index"`
	Converter string  `json:"converter"`
	Raw       uint32  `json:"raw"`
	Value     float64 `json:"value"`
	Attempts  int     `json:"attempts"`
	Timestamp string  `json:"timestamp"`
}

type channelResponse struct {
	Channel          int     `json:"channel"`
	Index            int     `json:"index"`
	Name             string  `json:"name,omitempty"`
	Converter        string  `json:"converter"`
	Input            int     `json:"input"`
	Reference        string  `json:"reference"`
	ReferenceVoltage float64 `json:"reference_voltage"`
	Resolution       uint8   `json:"resolution"`
	Gain             float64 `json:"gain"`
	AcquisitionTime  string  `json:"acquisition_time"`
	Differential     bool    `json:"differential"`
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"channels": h.service.ChannelCount(),
	})
}

func (h *handler) handleChannels(w http.ResponseWriter, _ *http.Request) {
	descriptors := h.service.Channels()
	response := make([]channelResponse, len(descriptors))
	for i, d := range descriptors {
		lo, hi := d.Bounds()
		response[i] = channelResponse{
			Channel:          i,
			Index:            d.Index,
			Name:             d.Name,
			Converter:        d.Converter,
			Input:            d.Input,
			Reference:        d.Reference,
			ReferenceVoltage: d.ReferenceVoltage,
			Resolution:       d.Resolution,
			Gain:             d.Gain,
			AcquisitionTime:  d.AcquisitionTime.String(),
			Differential:     d.Differential,
			Min:              lo,
			Max:              hi,
		}
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) handleSample(w http.ResponseWriter, r *http.Request) {
	channel, ok := h.channelParam(w, r)
	if !ok {
		return
	}

	timeout := h.defaultTimeout
	if raw := r.URL.Query().Get(queryTimeout); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid timeout")
			return
		}
		timeout = parsed
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	result, err := h.service.Sample(r.Context(), channel, deadline)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toSampleResponse(result))
}

func (h *handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	channel, ok := h.channelParam(w, r)
	if !ok {
		return
	}

	result, err := h.service.Latest(r.Context(), channel)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toSampleResponse(result))
}

func (h *handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	channel, ok := h.channelParam(w, r)
	if !ok {
		return
	}

	params := r.URL.Query()
	fromParam, toParam := params.Get(queryFrom), params.Get(queryTo)
	if fromParam == "" || toParam == "" {
		h.writeError(w, http.StatusBadRequest, "both from and to parameters are required")
		return
	}

	from, err := time.Parse(time.RFC3339Nano, fromParam)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}

	to, err := time.Parse(time.RFC3339Nano, toParam)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}

	if from.After(to) {
		h.writeError(w, http.StatusBadRequest, "from must be before to")
		return
	}

	results, err := h.service.History(r.Context(), channel, from, to)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	response := make([]sampleResponse, len(results))
	for i, result := range results {
		response[i] = toSampleResponse(result)
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) channelParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	channel, err := strconv.Atoi(chi.URLParam(r, paramChannel))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid channel")
		return 0, false
	}
	return channel, true
}

func toSampleResponse(result domain.SampleResult) sampleResponse {
	return sampleResponse{
		RequestID: result.RequestID,
		Channel:   result.Channel,
		Index:     result.Index,
		Converter: result.Converter,
		Raw:       result.Raw,
		Value:     result.Value,
		Attempts:  result.Attempts,
		Timestamp: result.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func (h *handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidChannel):
		h.writeError(w, http.StatusNotFound, "channel not found")
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "sample not found")
	case errors.Is(err, domain.ErrTimeout):
		h.writeError(w, http.StatusGatewayTimeout, "sample timed out")
	case errors.Is(err, domain.ErrAcquisitionFailed):
		h.writeError(w, http.StatusBadGateway, "acquisition failed")
	case errors.Is(err, domain.ErrCancelled), errors.Is(err, domain.ErrClosed):
		h.writeError(w, http.StatusServiceUnavailable, "sample request withdrawn")
	default:
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message, Code: status})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
