package server

import (
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/coreman2200/funtimes-gpiozero/waveform"
)

var errNoStore = errors.New("presets need a store")

// blinkRequest is a BlinkSpec in milliseconds. A missing repeat plays
// forever.
type blinkRequest struct {
	OnMs      int64 `json:"on_ms"`
	OffMs     int64 `json:"off_ms"`
	FadeInMs  int64 `json:"fade_in_ms"`
	FadeOutMs int64 `json:"fade_out_ms"`
	Repeat    int   `json:"repeat"`

	Ease waveform.Ease `json:"ease,omitempty"`
}

func (b blinkRequest) spec() waveform.BlinkSpec {
	ms := func(v int64) time.Duration { return time.Duration(v) * time.Millisecond }
	return waveform.BlinkSpec{
		OnTime:  ms(b.OnMs),
		OffTime: ms(b.OffMs),
		FadeIn:  ms(b.FadeInMs),
		FadeOut: ms(b.FadeOutMs),
		Repeat:  b.Repeat,
		Ease:    b.Ease,
	}
}

func toRequest(s waveform.BlinkSpec) blinkRequest {
	return blinkRequest{
		OnMs:      s.OnTime.Milliseconds(),
		OffMs:     s.OffTime.Milliseconds(),
		FadeInMs:  s.FadeIn.Milliseconds(),
		FadeOutMs: s.FadeOut.Milliseconds(),
		Repeat:    s.Repeat,
		Ease:      s.Ease,
	}
}

func param(req *http.Request, name string) string {
	return httprouter.ParamsFromContext(req.Context()).ByName(name)
}

func (s *Server) health(res http.ResponseWriter, req *http.Request) {
	respond(res, map[string]interface{}{"ok": true, "devices": len(s.Hub.Names())}, http.StatusOK)
}

func (s *Server) devices(res http.ResponseWriter, req *http.Request) {
	respond(res, s.Hub.States(), http.StatusOK)
}

func (s *Server) getDevice(res http.ResponseWriter, req *http.Request) {
	state, err := s.Hub.State(param(req, "name"))
	if err != nil {
		respondErr(res, err)
		return
	}

	respond(res, state, http.StatusOK)
}

// command adapts a hub operation on a named device into a handler that
// answers with the resulting state.
func (s *Server) command(op func(name string) error) http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		name := param(req, "name")
		if err := op(name); err != nil {
			respondErr(res, err)
			return
		}
		s.getDevice(res, req)
	}
}

func (s *Server) putValue(res http.ResponseWriter, req *http.Request) {
	var body struct {
		Value *float64 `json:"value"`
	}
	if !decode(res, req, &body) {
		return
	}
	if body.Value == nil {
		respond(res, errors.New("value is required"), http.StatusUnprocessableEntity)
		return
	}

	if err := s.Hub.SetValue(param(req, "name"), *body.Value); err != nil {
		respondErr(res, err)
		return
	}
	s.getDevice(res, req)
}

func (s *Server) putColor(res http.ResponseWriter, req *http.Request) {
	var body struct {
		Color string `json:"color"`
	}
	if !decode(res, req, &body) {
		return
	}
	c, err := parseHex(body.Color)
	if err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	if err := s.Hub.SetColor(param(req, "name"), c); err != nil {
		respondErr(res, err)
		return
	}
	s.getDevice(res, req)
}

func parseHex(s string) (color.NRGBA, error) {
	c := color.NRGBA{A: 0xff}
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("color %q is not #rrggbb", s)
	}
	return c, nil
}

func (s *Server) blink(res http.ResponseWriter, req *http.Request) {
	var body blinkRequest
	if !decode(res, req, &body) {
		return
	}
	s.play(res, req, body.spec())
}

func (s *Server) pulse(res http.ResponseWriter, req *http.Request) {
	var body blinkRequest
	if !decode(res, req, &body) {
		return
	}
	spec := waveform.Pulse(
		time.Duration(body.FadeInMs)*time.Millisecond,
		time.Duration(body.FadeOutMs)*time.Millisecond,
		body.Repeat)
	spec.Ease = body.Ease
	s.play(res, req, spec)
}

func (s *Server) play(res http.ResponseWriter, req *http.Request, spec waveform.BlinkSpec) {
	if err := s.Hub.Play(param(req, "name"), spec); err != nil {
		respondErr(res, err)
		return
	}
	respond(res, nil, http.StatusAccepted)
}

func (s *Server) playPreset(res http.ResponseWriter, req *http.Request) {
	if err := s.Hub.PlayPreset(param(req, "name"), param(req, "preset")); err != nil {
		respondErr(res, err)
		return
	}
	respond(res, nil, http.StatusAccepted)
}

func (s *Server) presets(res http.ResponseWriter, req *http.Request) {
	if s.Store == nil {
		respond(res, errNoStore, http.StatusNotImplemented)
		return
	}
	names, err := s.Store.ListPresets()
	if err != nil {
		respondErr(res, err)
		return
	}

	respond(res, names, http.StatusOK)
}

func (s *Server) getPreset(res http.ResponseWriter, req *http.Request) {
	if s.Store == nil {
		respond(res, errNoStore, http.StatusNotImplemented)
		return
	}
	spec, err := s.Store.Preset(param(req, "name"))
	if err != nil {
		respondErr(res, err)
		return
	}

	respond(res, toRequest(spec), http.StatusOK)
}

func (s *Server) putPreset(res http.ResponseWriter, req *http.Request) {
	if s.Store == nil {
		respond(res, errNoStore, http.StatusNotImplemented)
		return
	}
	var body blinkRequest
	if !decode(res, req, &body) {
		return
	}

	if err := s.Store.PutPreset(param(req, "name"), body.spec()); err != nil {
		respondErr(res, err)
		return
	}
	respond(res, nil, http.StatusNoContent)
}

func (s *Server) deletePreset(res http.ResponseWriter, req *http.Request) {
	if s.Store == nil {
		respond(res, errNoStore, http.StatusNotImplemented)
		return
	}
	if err := s.Store.DeletePreset(param(req, "name")); err != nil {
		respondErr(res, err)
		return
	}
	respond(res, nil, http.StatusNoContent)
}
