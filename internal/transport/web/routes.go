package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/avstrong/staycal/internal/calendar"
	"github.com/avstrong/staycal/internal/stay"
)

// statusClientClosedRequest is the nginx convention for a request the client gave up on.
const statusClientClosedRequest = 499

type dayRequest struct {
	Date calendar.Date `json:"date"`
}

type roomRequest struct {
	RoomID string `json:"roomId"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.LogErrorf("Could not encode response: %v", err.Error())
	}
}

// decode answers 400 itself and returns false when the body is not valid JSON for v.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string][]string{"body": {err.Error()}})

		return false
	}

	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if inputErr := stay.IsInputError(err); inputErr != nil {
		s.writeJSON(w, http.StatusBadRequest, inputErr.Fields())

		return
	}

	switch {
	case errors.Is(err, stay.ErrRecordNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, calendar.ErrSelectionIncomplete):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, context.Canceled):
		s.l.LogInfo("Request cancelled: %v", err.Error())
		w.WriteHeader(statusClientClosedRequest)
	default:
		s.l.LogErrorf("Could not process request: %v", err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) calendarHandler(w http.ResponseWriter, r *http.Request) {
	var basePrice float64

	if raw := r.URL.Query().Get("basePrice"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string][]string{"basePrice": {"provide a number"}})

			return
		}

		basePrice = parsed
	}

	out, err := s.sManager.Calendar(r.Context(), r.PathValue("roomID"), r.URL.Query().Get("month"), basePrice)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	var input stay.QuoteInput

	if !s.decode(w, r, &input) {
		return
	}

	out, err := s.sManager.Quote(r.Context(), input)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) openSelectionHandler(w http.ResponseWriter, r *http.Request) {
	var input stay.OpenInput

	if !s.decode(w, r, &input) {
		return
	}

	out, err := s.sManager.Open(r.Context(), input)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, out)
}

func (s *Server) getSelectionHandler(w http.ResponseWriter, r *http.Request) {
	out, err := s.sManager.Get(r.Context(), r.PathValue("id"), r.URL.Query().Get("month"))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) clickHandler(w http.ResponseWriter, r *http.Request) {
	var input dayRequest

	if !s.decode(w, r, &input) {
		return
	}

	out, err := s.sManager.Click(r.Context(), r.PathValue("id"), input.Date)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) hoverHandler(w http.ResponseWriter, r *http.Request) {
	var input dayRequest

	if !s.decode(w, r, &input) {
		return
	}

	out, err := s.sManager.Hover(r.Context(), r.PathValue("id"), input.Date)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) leaveHandler(w http.ResponseWriter, r *http.Request) {
	out, err := s.sManager.Leave(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) changeRoomHandler(w http.ResponseWriter, r *http.Request) {
	var input roomRequest

	if !s.decode(w, r, &input) {
		return
	}

	out, err := s.sManager.ChangeRoom(r.Context(), r.PathValue("id"), input.RoomID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) confirmHandler(w http.ResponseWriter, r *http.Request) {
	out, err := s.sManager.Confirm(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) closeSelectionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.sManager.Close(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) refreshRulesHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.sManager.RefreshRules(r.Context()); err != nil {
		s.writeError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addRoutes(r *http.ServeMux) {
	routes := map[string]http.HandlerFunc{
		"GET /api/rooms/v1/{roomID}/calendar":    s.calendarHandler,
		"POST /api/quotes/v1":                    s.quoteHandler,
		"POST /api/selections/v1":                s.openSelectionHandler,
		"GET /api/selections/v1/{id}":            s.getSelectionHandler,
		"DELETE /api/selections/v1/{id}":         s.closeSelectionHandler,
		"POST /api/selections/v1/{id}/clicks":    s.clickHandler,
		"PUT /api/selections/v1/{id}/hover":      s.hoverHandler,
		"DELETE /api/selections/v1/{id}/hover":   s.leaveHandler,
		"PUT /api/selections/v1/{id}/room":       s.changeRoomHandler,
		"POST /api/selections/v1/{id}/confirm":   s.confirmHandler,
		"POST /api/price-adjustments/v1/refresh": s.refreshRulesHandler,
	}

	for pattern, handler := range routes {
		r.Handle(pattern, s.applyMiddlewares(handler, s.loggerMiddleware(), s.recoverMiddleware()))
	}

	r.Handle(
		fmt.Sprintf("GET %s", s.conf.LivenessEndpoint),
		s.applyMiddlewares(http.HandlerFunc(s.livenessHandler), s.loggerMiddleware(), s.recoverMiddleware()),
	)
}
