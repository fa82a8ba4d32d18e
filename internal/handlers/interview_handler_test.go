package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/orchestrator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadForm(t *testing.T, fields map[string]string, resumeType string, resume []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if resume != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="resume"; filename="cv.pdf"`)
		h.Set("Content-Type", resumeType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(resume)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func postUpload(router http.Handler, body *bytes.Buffer, contentType, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/interviews", body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestLoginHandler(t *testing.T) {
	router := newTestRouter(&fakeInterviews{}, &fakeSessions{}, nil)

	rec := doRequest(router, http.MethodPost, "/api/v1/auth/login", "", `{"name":" Ada ","email":"ADA@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Ada", resp.Name)
	assert.Equal(t, "ada@example.com", resp.Email)
	assert.Equal(t, "tok", resp.Token)

	rec = doRequest(router, http.MethodPost, "/api/v1/auth/login", "", `{"name":"Ada","email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_credential", decodeError(t, rec).Code)
}

func TestLoginHandler_ServiceFailureIsOpaque(t *testing.T) {
	router := newTestRouter(&fakeInterviews{err: errBoom}, &fakeSessions{}, nil)

	rec := doRequest(router, http.MethodPost, "/api/v1/auth/login", "", `{"name":"Ada","email":"ada@example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "internal_error", resp.Code)
	assert.NotContains(t, resp.Message, "boom")
}

func TestUploadHandler_WithResume(t *testing.T) {
	svc := &fakeInterviews{}
	router := newTestRouter(svc, &fakeSessions{}, nil)

	body, ct := uploadForm(t, map[string]string{"jobRole": "Backend Engineer", "skillRating": "7"},
		"application/pdf", []byte("%PDF-1.4"))
	rec := postUpload(router, body, ct, "user-1")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp models.UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "iv-1", resp.InterviewID)
	assert.Equal(t, "http://blobs/cv.pdf", resp.ResumeURL)
	assert.Equal(t, "user-1", svc.userID)
	assert.Equal(t, 7, svc.upload.SkillRating)
	assert.Equal(t, "%PDF-1.4", string(svc.resume))
	assert.Equal(t, "application/pdf", svc.resType)
}

func TestUploadHandler_ResumeOptional(t *testing.T) {
	svc := &fakeInterviews{}
	router := newTestRouter(svc, &fakeSessions{}, nil)

	body, ct := uploadForm(t, map[string]string{"jobRole": "QA", "skillRating": "3"}, "", nil)
	rec := postUpload(router, body, ct, "user-1")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, svc.resume)
}

func TestUploadHandler_Validation(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]string
		code   string
	}{
		{"missing role", map[string]string{"skillRating": "5"}, "invalid_interview"},
		{"rating out of range", map[string]string{"jobRole": "QA", "skillRating": "11"}, "invalid_interview"},
		{"rating not a number", map[string]string{"jobRole": "QA", "skillRating": "high"}, "invalid_interview"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&fakeInterviews{}, &fakeSessions{}, nil)
			body, ct := uploadForm(t, tc.fields, "", nil)
			rec := postUpload(router, body, ct, "user-1")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.code, decodeError(t, rec).Code)
		})
	}
}

func TestUploadHandler_NotMultipart(t *testing.T) {
	router := newTestRouter(&fakeInterviews{}, &fakeSessions{}, nil)
	rec := doRequest(router, http.MethodPost, "/api/v1/interviews", "user-1", `{"jobRole":"QA"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_form", decodeError(t, rec).Code)
}

func TestUploadHandler_RequiresUser(t *testing.T) {
	router := newTestRouter(&fakeInterviews{}, &fakeSessions{}, nil)
	body, ct := uploadForm(t, map[string]string{"jobRole": "QA", "skillRating": "3"}, "", nil)
	rec := postUpload(router, body, ct, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{orchestrator.ErrResumeNotPDF, http.StatusBadRequest, "Please upload a PDF file"},
		{orchestrator.ErrResumeTooLarge, http.StatusRequestEntityTooLarge, ""},
		{orchestrator.ErrStoreNotAvailable, http.StatusServiceUnavailable, ""},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			router := newTestRouter(&fakeInterviews{err: tc.err}, &fakeSessions{}, nil)
			body, ct := uploadForm(t, map[string]string{"jobRole": "QA", "skillRating": "3"}, "text/plain", []byte("x"))
			rec := postUpload(router, body, ct, "user-1")
			assert.Equal(t, tc.status, rec.Code)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, decodeError(t, rec).Message)
			}
		})
	}
}

func TestGetInterviewHandler(t *testing.T) {
	router := newTestRouter(&fakeInterviews{}, &fakeSessions{}, nil)
	rec := doRequest(router, http.MethodGet, "/api/v1/interviews/iv-9", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var record models.Interview
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&record))
	assert.Equal(t, "iv-9", record.ID)
	assert.Equal(t, "user-1", record.UserID)
}

func TestGetInterviewHandler_Errors(t *testing.T) {
	router := newTestRouter(&fakeInterviews{err: orchestrator.ErrForbidden}, &fakeSessions{}, nil)
	rec := doRequest(router, http.MethodGet, "/api/v1/interviews/iv-9", "user-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	router = newTestRouter(&fakeInterviews{err: orchestrator.ErrNotFound}, &fakeSessions{}, nil)
	rec = doRequest(router, http.MethodGet, "/api/v1/interviews/iv-9", "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Code)
}

func TestResultsHandler(t *testing.T) {
	router := newTestRouter(&fakeInterviews{}, &fakeSessions{}, nil)
	rec := doRequest(router, http.MethodGet, "/api/v1/interviews/iv-9/results", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ResultsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "A+", resp.Grade)
	assert.Equal(t, float64(91), resp.Score)

	router = newTestRouter(&fakeInterviews{err: orchestrator.ErrNotGraded}, &fakeSessions{}, nil)
	rec = doRequest(router, http.MethodGet, "/api/v1/interviews/iv-9/results", "user-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_graded", decodeError(t, rec).Code)
}
