package ingest

import (
	"io"
	"log/slog"
	"net/http"
)

// HTTPHandler decodes JSON samples and forwards them to sink.
// Params: sink receives validated samples, max body limits payload size.
// Returns: HTTP handler accepting one sample object or an array of samples.
type HTTPHandler struct {
	sink        SampleSink
	maxBodySize int64
	recorder    Recorder
	logger      *slog.Logger
}

// NewHTTPHandler creates ingest HTTP handler.
// Params: sink, max request body size in bytes, optional recorder and logger.
// Returns: configured handler.
func NewHTTPHandler(sink SampleSink, maxBodySize int64, recorder Recorder, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{sink: sink, maxBodySize: maxBodySize, recorder: recorder, logger: logger}
}

// ServeHTTP handles one ingest request.
// Params: HTTP request/response writer pair.
// Returns: 202 on success, 400 on malformed payload, 503 when sink fails.
func (h *HTTPHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	request.Body = http.MaxBytesReader(writer, request.Body, h.maxBodySize)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		record(h.recorder, "http", resultRejected, 1)
		http.Error(writer, "request body too large or unreadable", http.StatusBadRequest)
		return
	}

	scratch := acquireDecodeScratch()
	defer releaseDecodeScratch(scratch)
	samples, err := decodeSamplePayloadInto(body, scratch)
	if err != nil {
		record(h.recorder, "http", resultRejected, 1)
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}

	if err := pushSamples(request.Context(), h.sink, samples); err != nil {
		record(h.recorder, "http", resultFailed, len(samples))
		h.logger.Error("http ingest push failed", "samples", len(samples), "error", err.Error())
		writer.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	record(h.recorder, "http", resultAccepted, len(samples))
	writer.WriteHeader(http.StatusAccepted)
}
