package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"feetrack/internal/roster"
)

// Roster is the roster surface the student handlers need.
type Roster interface {
	List(ctx context.Context) ([]roster.Student, error)
	Search(ctx context.Context, term string) ([]roster.Student, error)
	AdmittedOn(ctx context.Context, date string) ([]roster.Student, error)
	Get(ctx context.Context, id int64) (*roster.Student, error)
	Create(ctx context.Context, ns roster.NewStudent) (roster.Student, error)
}

// StudentHandler serves the /api/students endpoints.
type StudentHandler struct {
	repo           Roster
	maxUploadBytes int64
	log            *logrus.Logger
}

// NewStudentHandler creates a handler.
func NewStudentHandler(repo Roster, maxUploadBytes int64, log *logrus.Logger) *StudentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 * 1024 * 1024
	}
	if log == nil {
		log = logrus.New()
	}
	return &StudentHandler{repo: repo, maxUploadBytes: maxUploadBytes, log: log}
}

// List handles GET /api/students.
func (h *StudentHandler) List(c *gin.Context) {
	students, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("list students failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch students"})
		return
	}
	c.JSON(http.StatusOK, roster.RenderAll(students))
}

// Search handles GET /api/students/search?name=term.
func (h *StudentHandler) Search(c *gin.Context) {
	term := c.Query("name")
	if strings.TrimSpace(term) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Search term cannot be empty."})
		return
	}
	students, err := h.repo.Search(c.Request.Context(), term)
	if err != nil {
		h.log.WithError(err).Error("student search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search for students."})
		return
	}
	c.JSON(http.StatusOK, roster.RenderAll(students))
}

// AdmittedOn handles GET /api/students/admitted/:date.
func (h *StudentHandler) AdmittedOn(c *gin.Context) {
	date, err := ParseDate(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Use YYYY-MM-DD."})
		return
	}
	students, err := h.repo.AdmittedOn(c.Request.Context(), date.Format("2006-01-02"))
	if err != nil {
		h.log.WithError(err).Error("admitted-on lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch students by admission date"})
		return
	}
	c.JSON(http.StatusOK, roster.RenderAll(students))
}

// Get handles GET /api/students/:id.
func (h *StudentHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student ID."})
		return
	}
	student, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		h.log.WithError(err).WithField("student_id", id).Error("fetch student failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch student.", "details": err.Error()})
		return
	}
	if student == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found."})
		return
	}
	c.JSON(http.StatusOK, student.Render())
}

// Create handles POST /api/students (multipart form). Uploaded photo and id
// proof stay in memory for this request only.
func (h *StudentHandler) Create(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	admissionDate := c.PostForm("admissionDate")
	mobileNo := c.PostForm("mobile_no")
	address := strings.TrimSpace(c.PostForm("address"))
	grade := strings.TrimSpace(c.PostForm("grade"))

	if name == "" || admissionDate == "" || mobileNo == "" || address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: name, admissionDate, mobile_no, address."})
		return
	}
	if _, err := ParseDate(admissionDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid admission date format. Use YYYY-MM-DD."})
		return
	}

	photo, err := h.readUpload(c, "student_photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	idProof, err := h.readUpload(c, "id_proof")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ns := roster.NewStudent{
		Name:          name,
		AdmissionDate: admissionDate,
		MobileNo:      mobileNo,
		Address:       address,
		Photo:         photo,
		IDProof:       idProof,
	}
	if grade != "" {
		ns.Grade = &grade
	}

	student, err := h.repo.Create(c.Request.Context(), ns)
	if err != nil {
		switch {
		case errors.Is(err, roster.ErrDuplicate):
			c.JSON(http.StatusConflict, gin.H{"error": "Failed to add student. Possible duplicate entry (e.g., unique constraint on name or mobile)."})
		case errors.Is(err, roster.ErrGradeRequired):
			h.log.WithError(err).Error("schema rejects null grade")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database configuration error: 'grade' cannot be empty."})
		default:
			h.log.WithError(err).Error("create student failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add new student.", "details": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, student.Render())
}

// readUpload returns the bytes of an optional multipart file field, enforcing
// the size limit. A missing field is not an error.
func (h *StudentHandler) readUpload(c *gin.Context, field string) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errors.New("invalid " + field + " upload")
	}
	if header.Size > h.maxUploadBytes {
		return nil, errors.New(field + " exceeds the upload size limit")
	}
	file, err := header.Open()
	if err != nil {
		return nil, errors.New("invalid " + field + " upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return nil, errors.New("invalid " + field + " upload")
	}
	if int64(len(data)) > h.maxUploadBytes {
		return nil, errors.New(field + " exceeds the upload size limit")
	}
	return data, nil
}
