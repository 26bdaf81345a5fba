package handler

import (
	"context"
	"image"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"faceattend/internal/attendance"
	"faceattend/internal/auth"
	"faceattend/internal/domain"
	"faceattend/internal/enroll"
	"faceattend/internal/face"
	"faceattend/internal/httpmiddleware"
	"faceattend/internal/stats"
)

// AuthService is the credential/session surface the handlers use.
type AuthService interface {
	Signup(ctx context.Context, email, password, fullName, role string) (auth.User, error)
	Login(ctx context.Context, email, password string) (auth.User, auth.Session, error)
	ValidateSession(ctx context.Context, token string) (auth.User, error)
	Logout(ctx context.Context, token string) error
}

// EnrollService is the enrollment surface the handlers use.
type EnrollService interface {
	Enroll(ctx context.Context, req enroll.Request) (enroll.Result, error)
	FindStudent(ctx context.Context, studentID string) (enroll.Student, error)
	ListStudents(ctx context.Context) ([]enroll.Student, error)
}

// AttendanceService is the pipeline surface the handlers use.
type AttendanceService interface {
	MarkAttendance(ctx context.Context, studentID, className string, confidenceScore float64) (attendance.Record, error)
	MarkAttendanceByFace(ctx context.Context, img image.Image, className string) (attendance.Outcome, error)
	ListLogs(ctx context.Context, f attendance.LogFilter) ([]attendance.Log, int, int, error)
	CountForDay(ctx context.Context, day time.Time) (int, error)
}

// StatsReader serves dashboard counters.
type StatsReader interface {
	ForDay(ctx context.Context, day time.Time) (stats.DayStats, error)
}

// StudentCounter reports how many students are enrolled.
type StudentCounter interface {
	CountStudents(ctx context.Context) (int, error)
}

// Handler wires the HTTP surface to the services.
type Handler struct {
	auth       AuthService
	enrollment EnrollService
	attendance AttendanceService
	stats      StatsReader
	students   StudentCounter
}

// New creates a handler. stats and students may be nil; the dashboard
// endpoint then returns 503.
func New(a AuthService, e EnrollService, att AttendanceService, st StatsReader, sc StudentCounter) *Handler {
	return &Handler{auth: a, enrollment: e, attendance: att, stats: st, students: sc}
}

// Register mounts all routes. Everything except signup/login/logout sits
// behind the session middleware.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/auth/signup", h.Signup)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout)

	protected := api.Group("", auth.RequireSession(h.auth))
	protected.POST("/students/enroll", h.Enroll)
	protected.GET("/students", h.ListStudents)
	protected.GET("/students/:studentId", h.GetStudent)
	protected.POST("/attendance/mark", h.Mark)
	protected.GET("/attendance/logs", h.Logs)
	protected.GET("/dashboard/stats", h.Stats)
}

// ---------- Auth ----------

type signupRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}
	user, err := h.auth.Signup(c.Request.Context(), req.Email, req.Password, req.FullName, req.Role)
	if err != nil {
		h.fail(c, "signup", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	user, sess, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, "login", err)
		return
	}
	http.SetCookie(c.Writer, auth.NewSessionCookie(c.Request, sess.Token, sess.ExpiresAt))
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) Logout(c *gin.Context) {
	token := auth.TokenFromRequest(c.Request)
	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		h.fail(c, "logout", err)
		return
	}
	http.SetCookie(c.Writer, auth.ExpireSessionCookie(c.Request))
	c.Status(http.StatusNoContent)
}

// ---------- Enrollment ----------

type enrollFace struct {
	DataURL string `json:"dataUrl" binding:"required"`
}

type enrollRequest struct {
	StudentID string       `json:"studentId" binding:"required"`
	FullName  string       `json:"fullName" binding:"required"`
	ClassName string       `json:"className" binding:"required"`
	Email     string       `json:"email"`
	Faces     []enrollFace `json:"faces" binding:"required"`
}

func (h *Handler) Enroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}
	images := make([]string, 0, len(req.Faces))
	for _, f := range req.Faces {
		images = append(images, f.DataURL)
	}
	res, err := h.enrollment.Enroll(c.Request.Context(), enroll.Request{
		StudentID:  req.StudentID,
		FullName:   req.FullName,
		ClassName:  req.ClassName,
		Email:      req.Email,
		FaceImages: images,
	})
	if err != nil {
		h.fail(c, "enroll", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.enrollment.ListStudents(c.Request.Context())
	if err != nil {
		h.fail(c, "list students", err)
		return
	}
	if students == nil {
		students = []enroll.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) GetStudent(c *gin.Context) {
	student, err := h.enrollment.FindStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		h.fail(c, "find student", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": student})
}

// ---------- Attendance ----------

type markRequest struct {
	FaceImage string `json:"faceImage"`
	StudentID string `json:"studentId"`
	ClassName string `json:"className"`
}

// Mark records attendance either from a captured frame or, as a manual
// fallback, from an explicit studentId.
func (h *Handler) Mark(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	switch {
	case req.FaceImage != "":
		img, err := face.DecodeDataURL(req.FaceImage)
		if err != nil {
			h.fail(c, "mark attendance", err)
			return
		}
		outcome, err := h.attendance.MarkAttendanceByFace(c.Request.Context(), img, req.ClassName)
		if err != nil {
			h.fail(c, "mark attendance", err)
			return
		}
		if !outcome.Recognized {
			c.JSON(http.StatusOK, gin.H{"recognized": false})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"recognized":      true,
			"attendanceId":    outcome.Record.ID,
			"checkInTime":     outcome.Record.CheckInTime,
			"studentId":       outcome.Student.StudentID,
			"className":       outcome.Record.ClassName,
			"confidenceScore": outcome.Confidence,
		})

	case req.StudentID != "":
		// Manual entry carries full confidence.
		rec, err := h.attendance.MarkAttendance(c.Request.Context(), req.StudentID, req.ClassName, 1.0)
		if err != nil {
			h.fail(c, "mark attendance", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"attendanceId":    rec.ID,
			"checkInTime":     rec.CheckInTime,
			"studentId":       req.StudentID,
			"className":       rec.ClassName,
			"confidenceScore": rec.Confidence,
		})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "faceImage or studentId is required"})
	}
}

func (h *Handler) Logs(c *gin.Context) {
	var filter attendance.LogFilter
	if v := c.Query("date"); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		filter.Date = &day
	}
	filter.ClassName = c.Query("className")
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	logs, total, limit, err := h.attendance.ListLogs(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "list logs", err)
		return
	}
	if logs == nil {
		logs = []attendance.Log{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "total": total, "limit": limit})
}

// ---------- Dashboard ----------

func (h *Handler) Stats(c *gin.Context) {
	if h.stats == nil || h.students == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stats not configured"})
		return
	}
	count, err := h.students.CountStudents(c.Request.Context())
	if err != nil {
		h.fail(c, "dashboard stats", err)
		return
	}
	today, err := h.stats.ForDay(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.fail(c, "dashboard stats", err)
		return
	}
	if today.Total == 0 {
		// Counters may be cold after a Redis restart; the record store
		// is authoritative for the day's total.
		n, err := h.attendance.CountForDay(c.Request.Context(), time.Now().UTC())
		if err != nil {
			h.fail(c, "dashboard stats", err)
			return
		}
		today.Total = n
	}
	c.JSON(http.StatusOK, gin.H{"students": count, "today": today})
}

// fail translates a domain error into an HTTP response. The client gets a
// short message; the full error is logged with the request id.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	kind := domain.KindOf(err)
	log.Printf("request=%s op=%s kind=%s error=%v", httpmiddleware.RequestIDFrom(c), op, kind, err)
	c.JSON(statusFor(kind), gin.H{"error": domain.Message(err)})
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation, domain.KindCapacity:
		return http.StatusBadRequest
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindDuplicate:
		return http.StatusConflict
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
