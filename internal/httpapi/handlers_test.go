package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"docpipeline/internal/extraction"
	"docpipeline/internal/metadata"
	"docpipeline/internal/store"
)

func TestStatusFromErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{metadata.ErrUnknownGroup, http.StatusBadRequest},
		{metadata.ErrNoGroups, http.StatusBadRequest},
		{extraction.ErrNoEligibleDocuments, http.StatusBadRequest},
		{store.ErrConflict, http.StatusConflict},
		{store.ErrDefaultGroupProtected, http.StatusConflict},
		{metadata.ErrDuplicateName, http.StatusConflict},
		{metadata.ErrCannotRenameDefaultGroup, http.StatusConflict},
	}
	for _, tc := range cases {
		if got := statusFromError(tc.err); got != tc.want {
			t.Errorf("statusFromError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestHandleUploadDocumentRejectsMissingDisplayName(t *testing.T) {
	e := echo.New()
	body := strings.NewReader(`{"uri":"local://doc.pdf"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	s := &Server{}
	if err := s.handleUploadDocument(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleUploadDocumentRejectsMissingURIAndContent(t *testing.T) {
	e := echo.New()
	body := strings.NewReader(`{"display_name":"10-K.pdf"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	s := &Server{}
	if err := s.handleUploadDocument(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
