package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"aiproctor/interview/internal/identity"
	"aiproctor/interview/internal/interview"
	"aiproctor/interview/internal/middleware"
	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/orchestrator"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// tokens are the user ids themselves
type fakeVerifier struct{}

func (fakeVerifier) VerifyToken(token string) (*identity.Claims, error) {
	if token == "" || token == "bad" {
		return nil, identity.ErrInvalidToken
	}
	return &identity.Claims{UserID: token}, nil
}

type fakeInterviews struct {
	mu      sync.Mutex
	err     error
	upload  models.UploadRequest
	resume  []byte
	resType string
	userID  string
}

func (f *fakeInterviews) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.LoginResponse{UserID: "u-1", Name: req.Name, Email: req.Email, Token: "tok"}, nil
}

func (f *fakeInterviews) Upload(ctx context.Context, userID string, req models.UploadRequest, resume *orchestrator.Resume) (*models.UploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.userID, f.upload = userID, req
	resp := &models.UploadResponse{InterviewID: "iv-1", JobRole: req.JobRole, SkillRating: req.SkillRating}
	if resume != nil {
		data, err := io.ReadAll(resume.Body)
		if err != nil {
			return nil, err
		}
		f.resume, f.resType = data, resume.ContentType
		resp.ResumeURL = "http://blobs/" + resume.Filename
	}
	return resp, nil
}

func (f *fakeInterviews) Interview(ctx context.Context, userID, interviewID string) (*models.Interview, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Interview{ID: interviewID, UserID: userID, Status: models.InterviewStatusInProgress}, nil
}

func (f *fakeInterviews) Results(ctx context.Context, userID, interviewID string) (*models.ResultsResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.ResultsResponse{
		InterviewID: interviewID,
		GradeResult: models.GradeResult{Score: 91, Feedback: "great"},
		Grade:       models.GradeLetter(91),
	}, nil
}

type fakeSessions struct {
	mu      sync.Mutex
	err     error
	calls   []string
	answer  string
	hostErr error
	served  chan string
}

func (f *fakeSessions) record(op, userID, interviewID string) (*orchestrator.SessionView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+":"+userID+":"+interviewID)
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.SessionView{
		Snapshot: interview.Snapshot{InterviewID: interviewID, Status: interview.StatusInProgress},
	}, nil
}

func (f *fakeSessions) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeSessions) Mount(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error) {
	return f.record("mount", userID, interviewID)
}

func (f *fakeSessions) Session(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error) {
	return f.record("session", userID, interviewID)
}

func (f *fakeSessions) Unmount(ctx context.Context, userID, interviewID string) error {
	_, err := f.record("unmount", userID, interviewID)
	return err
}

func (f *fakeSessions) Start(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error) {
	return f.record("start", userID, interviewID)
}

func (f *fakeSessions) Answer(ctx context.Context, userID, interviewID, answer string) (*orchestrator.SessionView, error) {
	f.mu.Lock()
	f.answer = answer
	f.mu.Unlock()
	return f.record("answer", userID, interviewID)
}

func (f *fakeSessions) Restart(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error) {
	return f.record("restart", userID, interviewID)
}

func (f *fakeSessions) Acquire(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error) {
	return f.record("acquire", userID, interviewID)
}

func (f *fakeSessions) ToggleAudio(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error) {
	return f.record("audio", userID, interviewID)
}

func (f *fakeSessions) ToggleVideo(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error) {
	return f.record("video", userID, interviewID)
}

func (f *fakeSessions) ToggleFullscreen(ctx context.Context, userID, interviewID string) (*orchestrator.SessionView, error) {
	return f.record("fullscreen", userID, interviewID)
}

func (f *fakeSessions) ServeHost(ctx context.Context, userID, interviewID string, conn *websocket.Conn) error {
	if f.served != nil {
		f.served <- userID + ":" + interviewID
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	if f.hostErr != nil {
		return f.hostErr
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}

type fakeAssessor struct {
	err       error
	questions []string
	graded    models.GradeInterviewRequest
}

func (f *fakeAssessor) GenerateQuestions(ctx context.Context, jobRole string, skillRating int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.questions, nil
}

func (f *fakeAssessor) GradeInterview(ctx context.Context, req models.GradeInterviewRequest) (*models.GradeResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.graded = req
	return &models.GradeResult{Score: 72, Feedback: "ok", TabSwitchCount: req.TabSwitchCount}, nil
}

var errBoom = errors.New("boom")

// newTestRouter mounts the handlers the way the service does, minus metrics.
func newTestRouter(interviews InterviewService, sessions SessionService, assessor Assessor) *chi.Mux {
	logger := zap.NewNop()
	ih := NewInterviewHandler(interviews, logger)
	sh := NewSessionHandler(sessions, logger)
	fh := NewFunctionHandler(assessor, "stub", logger)

	r := chi.NewRouter()
	r.With(middleware.ValidateRequest[*models.LoginRequest]()).Post("/api/v1/auth/login", ih.LoginHandler)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser(fakeVerifier{}))
		r.Post("/api/v1/interviews", ih.UploadHandler)
		r.Get("/api/v1/interviews/{id}", ih.GetInterviewHandler)
		r.Get("/api/v1/interviews/{id}/results", ih.ResultsHandler)
		r.Route("/api/v1/interviews/{id}/session", func(r chi.Router) {
			r.Post("/", sh.MountHandler)
			r.Get("/", sh.GetSessionHandler)
			r.Delete("/", sh.UnmountHandler)
			r.Post("/start", sh.StartHandler)
			r.With(middleware.ValidateRequest[*models.AnswerRequest]()).Post("/answers", sh.AnswerHandler)
			r.Post("/restart", sh.RestartHandler)
			r.Post("/media/acquire", sh.AcquireHandler)
			r.Post("/media/audio", sh.ToggleAudioHandler)
			r.Post("/media/video", sh.ToggleVideoHandler)
			r.Post("/fullscreen", sh.ToggleFullscreenHandler)
			r.Get("/ws", sh.HostHandler)
		})
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireServiceToken("svc"))
		r.With(middleware.ValidateRequestWith[*models.GenerateQuestionsRequest](middleware.RenderFunctionError)).
			Post("/functions/v1/generate-questions", fh.GenerateQuestionsHandler)
		r.With(middleware.ValidateRequestWith[*models.GradeInterviewRequest](middleware.RenderFunctionError)).
			Post("/functions/v1/grade-interview", fh.GradeInterviewHandler)
	})
	return r
}

func doRequest(router http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}
