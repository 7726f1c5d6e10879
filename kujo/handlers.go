package kujo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	. "nyiyui.ca/hato/routeman"
	"nyiyui.ca/hato/routeman/auto"
	"nyiyui.ca/hato/routeman/signal"
)

type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Warnw("kujo: write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, details map[string]interface{}) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// parseLoco parses the loco URL parameter, writing an error response if it is invalid.
func parseLoco(w http.ResponseWriter, r *http.Request) (CarID, bool) {
	raw := chi.URLParam(r, "loco")
	id, err := ParseCarID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid locomotive id %q", raw), nil)
		return CarID{}, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", map[string]interface{}{"internal": err.Error()})
		return false
	}
	return true
}

func (s *Server) getStops(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"stops": s.conf.Catalog.AllStops()})
}

// LocoResponse is the JSON response for GET /locos/{loco}.
type LocoResponse struct {
	auto.Status
	Passengers  int      `json:"passengers"`
	Diesel      float64  `json:"diesel"`
	CenterCoach *CarID   `json:"centerCoach"`
	Relevant    []StopID `json:"relevant"`
}

func (s *Server) getLoco(w http.ResponseWriter, r *http.Request) {
	id, ok := parseLoco(w, r)
	if !ok {
		return
	}
	a := s.conf.Auto
	resp := LocoResponse{
		Status:     a.Status(id),
		Passengers: a.PassengerTotal(id),
		Diesel:     a.FuelLoad(id, auto.DieselFuel),
		Relevant:   a.RelevantStops(id),
	}
	if center, ok := a.CenterCoach(id); ok {
		resp.CenterCoach = &center
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) initSelection(w http.ResponseWriter, r *http.Request) {
	id, ok := parseLoco(w, r)
	if !ok {
		return
	}
	s.conf.Auto.InitializeSelection(id)
	writeJSON(w, http.StatusOK, s.conf.Auto.Status(id))
}

type selectedRequest struct {
	Selected bool `json:"selected"`
}

func (s *Server) putStop(w http.ResponseWriter, r *http.Request) {
	id, ok := parseLoco(w, r)
	if !ok {
		return
	}
	stop := StopID(chi.URLParam(r, "stop"))
	if _, ok := s.conf.Catalog.IndexOf(stop); !ok {
		details := map[string]interface{}{}
		if suggestion, ok := s.conf.Catalog.Suggest(stop); ok {
			details["suggestion"] = suggestion
		}
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown stop %q", stop), details)
		return
	}
	var req selectedRequest
	if !decode(w, r, &req) {
		return
	}
	s.conf.Auto.SetStopSelected(stop, id, req.Selected)
	writeJSON(w, http.StatusOK, s.conf.Auto.Status(id))
}

type routeModeRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) putRouteMode(w http.ResponseWriter, r *http.Request) {
	id, ok := parseLoco(w, r)
	if !ok {
		return
	}
	var req routeModeRequest
	if !decode(w, r, &req) {
		return
	}
	err := s.conf.Auto.SetRouteMode(id, req.Enabled)
	if errors.Is(err, auto.ErrNoStopsSelected) {
		writeError(w, http.StatusConflict, "select at least one stop before enabling route mode", map[string]interface{}{"internal": err.Error()})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "route mode change failed", map[string]interface{}{"internal": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.conf.Auto.Status(id))
}

func (s *Server) propagate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseLoco(w, r)
	if !ok {
		return
	}
	p, err := s.conf.Auto.PropagateDestinations(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "consist not found", map[string]interface{}{"internal": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) signal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseLoco(w, r)
	if !ok {
		return
	}
	// pattern names from config are case-folded
	name := strings.ToLower(chi.URLParam(r, "pattern"))
	_, err := s.conf.Auto.TriggerSignalPattern(id, name)
	switch {
	case errors.Is(err, signal.ErrUnknownPattern):
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown pattern %q", name), nil)
	case errors.Is(err, auto.ErrNoSequencer):
		writeError(w, http.StatusServiceUnavailable, err.Error(), nil)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "signal failed", map[string]interface{}{"internal": err.Error()})
	default:
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"loco": id, "pattern": name})
	}
}

type bellRequest struct {
	On bool `json:"on"`
}

func (s *Server) putBell(w http.ResponseWriter, r *http.Request) {
	id, ok := parseLoco(w, r)
	if !ok {
		return
	}
	var req bellRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.conf.Auto.SetBell(id, req.On); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
