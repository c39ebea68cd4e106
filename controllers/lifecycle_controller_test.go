package controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/truesuntrading/warranty_backend/services"
)

func TestLifecycleErrorResponse(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation failure", &services.ValidationError{Field: "reason", Reason: "required"}, http.StatusBadRequest},
		{"already processed", services.ErrAlreadyProcessed, http.StatusConflict},
		{"invalid transition", services.ErrInvalidTransition, http.StatusConflict},
		{"unknown request", services.ErrNotFound, http.StatusNotFound},
		{"missing document", mongo.ErrNoDocuments, http.StatusNotFound},
		{"reverted generation failure", &services.CollaboratorError{Collaborator: "certificate generation", Err: errors.New("boom"), Reverted: true}, http.StatusBadGateway},
		{"store failure", &services.CollaboratorError{Collaborator: "request store", Err: errors.New("boom")}, http.StatusBadGateway},
		{"unexpected failure", errors.New("boom"), http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if err := lifecycleErrorResponse(c, tc.err); err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
