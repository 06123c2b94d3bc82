package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coreman2200/funtimes-gpiozero/device"
	"github.com/coreman2200/funtimes-gpiozero/internal/hub"
	"github.com/coreman2200/funtimes-gpiozero/internal/store"
	"github.com/coreman2200/funtimes-gpiozero/playback"
	"github.com/coreman2200/funtimes-gpiozero/waveform"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respond(w http.ResponseWriter, data interface{}, httpCode int) {
	var resp interface{}
	if v, ok := data.(error); ok {
		resp = errorResponse{Error: v.Error()}
	} else {
		resp = data
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)

	if resp != nil {
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// respondErr picks the status for an error from the device stack.
func respondErr(w http.ResponseWriter, err error) {
	respond(w, err, statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, hub.ErrUnknownDevice), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, hub.ErrUnsupported), errors.Is(err, device.ErrFadeUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, device.ErrOutOfRange),
		errors.Is(err, waveform.ErrEmptyWaveform),
		errors.Is(err, waveform.ErrNegativeDuration),
		errors.Is(err, waveform.ErrInvalidRepeat),
		errors.Is(err, waveform.ErrUnknownEase),
		errors.Is(err, playback.ErrZeroLength):
		return http.StatusUnprocessableEntity
	case errors.Is(err, device.ErrClosed):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond(w, err, http.StatusUnprocessableEntity)
		return false
	}
	return true
}
