package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"substitute_sms_notifier/internal/app"
	"substitute_sms_notifier/internal/domain/assignment"
	"substitute_sms_notifier/internal/domain/sms"
	"substitute_sms_notifier/internal/infra/metrics"
)

// StatusSource is the read-only view of the session served over HTTP.
type StatusSource interface {
	Status() app.Status
	Teachers() []app.TeacherView
	Worklist() app.Worklist
	History() []sms.SentMessage
}

type teacherResponse struct {
	Name        string              `json:"name"`
	Selected    bool                `json:"selected"`
	Phone       string              `json:"phone"`
	PhoneSource string              `json:"phoneSource"`
	PhoneValid  bool                `json:"phoneValid"`
	Summary     string              `json:"summary"`
	Assignments []assignment.Record `json:"assignments"`
}

type worklistEntryResponse struct {
	Name        string              `json:"name"`
	Phone       string              `json:"phone"`
	Assignments []assignment.Record `json:"assignments"`
}

type worklistResponse struct {
	Entries        []worklistEntryResponse `json:"entries"`
	AllPhonesValid bool                    `json:"allPhonesValid"`
	MissingPhones  []string                `json:"missingPhones"`
}

// Server is the read-only status API.
type Server struct {
	engine  *gin.Engine
	srv     *http.Server
	source  StatusSource
	metrics *metrics.Metrics
	log     *logrus.Entry
}

func NewServer(addr string, source StatusSource, m *metrics.Metrics, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{
		engine:  gin.New(),
		source:  source,
		metrics: m,
		log:     log.WithField("component", "http"),
	}
	s.engine.Use(gin.Recovery(), s.observe)
	s.engine.GET("/healthz", s.health)
	s.engine.GET("/metrics", s.prometheus)
	api := s.engine.Group("/api")
	api.GET("/teachers", s.teachers)
	api.GET("/worklist", s.worklist)
	api.GET("/history", s.history)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.log.WithField("addr", s.srv.Addr).Info("Status server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Status server stopped")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown status server: %w", err)
	}
	return nil
}

func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()
	if s.metrics == nil {
		return
	}
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	s.metrics.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
}

func (s *Server) health(c *gin.Context) {
	st := s.source.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"loading":         st.Loading,
		"inProgress":      st.InProgress,
		"needsPermission": st.NeedsPermission,
		"errorMessage":    st.ErrorMessage,
		"campaign":        st.Campaign,
	})
}

func (s *Server) prometheus(c *gin.Context) {
	if s.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	s.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

func (s *Server) teachers(c *gin.Context) {
	views := s.source.Teachers()
	out := make([]teacherResponse, 0, len(views))
	for _, v := range views {
		out = append(out, teacherResponse{
			Name:        v.Name,
			Selected:    v.Selected,
			Phone:       v.Phone,
			PhoneSource: string(v.PhoneSource),
			PhoneValid:  v.PhoneValid,
			Summary:     v.Summary,
			Assignments: v.Assignments,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *Server) worklist(c *gin.Context) {
	list := s.source.Worklist()
	entries := make([]worklistEntryResponse, 0, len(list))
	for _, e := range list {
		entries = append(entries, worklistEntryResponse{Name: e.Name, Phone: e.Phone, Assignments: e.Assignments})
	}
	missing := list.MissingPhoneTeachers()
	if missing == nil {
		missing = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"data": worklistResponse{
		Entries:        entries,
		AllPhonesValid: list.AllPhonesValid(),
		MissingPhones:  missing,
	}})
}

func (s *Server) history(c *gin.Context) {
	msgs := s.source.History()
	if msgs == nil {
		msgs = []sms.SentMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}
