package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dosada05/rating-system/services"
	"github.com/go-chi/chi/v5"
)

func TestMapServiceErrorToHTTP(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
	}{
		{services.ErrMatchNotFound, http.StatusNotFound},
		{services.ErrTournamentNotFound, http.StatusNotFound},
		{services.ErrRegistrationNotFound, http.StatusNotFound},
		{services.ErrVersionConflict, http.StatusConflict},
		{services.ErrAlreadyRegistered, http.StatusConflict},
		{services.ErrTournamentFull, http.StatusConflict},
		{services.ErrFinalizedScoreDiffer, http.StatusConflict},
		{services.ErrValidationFailed, http.StatusBadRequest},
		{services.ErrScoreRequired, http.StatusBadRequest},
		{services.ErrScoreInvalid, http.StatusBadRequest},
		{services.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{services.ErrRegistrationClosed, http.StatusUnprocessableEntity},
		{services.ErrNotAuthorized, http.StatusForbidden},
		{services.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		mapServiceErrorToHTTP(rec, req, tc.err)
		if rec.Code != tc.wantStatus {
			t.Errorf("%v: got status %d, want %d", tc.err, rec.Code, tc.wantStatus)
		}
		var body map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Errorf("%v: response is not JSON: %v", tc.err, err)
			continue
		}
		if _, ok := body["error"]; !ok {
			t.Errorf("%v: response lacks error field", tc.err)
		}
	}
}

func TestMapServiceErrorDoesNotLeakInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	mapServiceErrorToHTTP(rec, req, errors.New("pq: connection refused to 10.0.0.5"))

	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Error("internal error details must not leak into the response body")
	}
}

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name": "ok"}`, false},
		{"empty body", ``, true},
		{"malformed", `{"name":`, true},
		{"unknown field", `{"nope": 1}`, true},
		{"wrong type", `{"name": 5}`, true},
		{"two documents", `{"name": "a"}{"name": "b"}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst payload
			err := readJSON(httptest.NewRecorder(), req, &dst)
			if (err != nil) != tc.wantErr {
				t.Errorf("got err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestGetIDFromURL(t *testing.T) {
	newRequest := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("matchID", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	if id, err := getIDFromURL(newRequest("42"), "matchID"); err != nil || id != 42 {
		t.Errorf("got (%d, %v), want (42, nil)", id, err)
	}
	for _, bad := range []string{"", "abc", "0", "-3"} {
		if _, err := getIDFromURL(newRequest(bad), "matchID"); err == nil {
			t.Errorf("value %q should be rejected", bad)
		}
	}
}
