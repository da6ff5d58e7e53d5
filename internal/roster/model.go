package roster

import (
	"encoding/base64"
	"time"
)

// Student is a roster entry as stored. Photo and IDProof hold raw bytea
// contents; they are only ever rendered outward as data URIs.
type Student struct {
	ID            int64
	Name          string
	Grade         *string
	AdmissionDate *time.Time
	MobileNo      string
	Address       string
	Photo         []byte
	IDProof       []byte
}

// View is the JSON shape of a student as served by the API.
type View struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Grade         *string `json:"grade"`
	AdmissionDate *string `json:"admission_date"`
	MobileNo      string  `json:"mobile_no"`
	Address       string  `json:"address"`
	Photo         *string `json:"student_photo"`
	IDProof       *string `json:"id_proof"`
}

// Render converts a student to its API shape: admission date as YYYY-MM-DD,
// photo as a JPEG data URI, id proof as a PDF data URI, null when absent.
func (s Student) Render() View {
	v := View{
		ID:       s.ID,
		Name:     s.Name,
		Grade:    s.Grade,
		MobileNo: s.MobileNo,
		Address:  s.Address,
	}
	if s.AdmissionDate != nil {
		d := s.AdmissionDate.Format("2006-01-02")
		v.AdmissionDate = &d
	}
	if len(s.Photo) > 0 {
		uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(s.Photo)
		v.Photo = &uri
	}
	if len(s.IDProof) > 0 {
		uri := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(s.IDProof)
		v.IDProof = &uri
	}
	return v
}

// RenderAll maps a slice of students to views, preserving order.
func RenderAll(students []Student) []View {
	views := make([]View, 0, len(students))
	for _, s := range students {
		views = append(views, s.Render())
	}
	return views
}
