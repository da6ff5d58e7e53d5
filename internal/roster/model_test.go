package roster

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func TestRender_FullRecord(t *testing.T) {
	admitted := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	grade := "5"
	s := Student{
		ID:            7,
		Name:          "Meena",
		Grade:         &grade,
		AdmissionDate: &admitted,
		MobileNo:      "9876543210",
		Address:       "12 Lake Road",
		Photo:         []byte{0xff, 0xd8, 0xff, 0xe0},
		IDProof:       []byte("%PDF-1.4 proof"),
	}

	v := s.Render()
	if v.ID != 7 || v.Name != "Meena" || v.MobileNo != "9876543210" {
		t.Errorf("scalar fields wrong: %+v", v)
	}
	if v.AdmissionDate == nil || *v.AdmissionDate != "2024-03-15" {
		t.Errorf("want admission_date 2024-03-15, got %v", v.AdmissionDate)
	}
	wantPhoto := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(s.Photo)
	if v.Photo == nil || *v.Photo != wantPhoto {
		t.Errorf("photo data URI wrong: %v", v.Photo)
	}
	if v.IDProof == nil || !strings.HasPrefix(*v.IDProof, "data:application/pdf;base64,") {
		t.Errorf("id proof data URI wrong: %v", v.IDProof)
	}
}

func TestRender_AbsentOptionalFields(t *testing.T) {
	v := Student{ID: 1, Name: "Anil"}.Render()
	if v.Grade != nil || v.AdmissionDate != nil || v.Photo != nil || v.IDProof != nil {
		t.Errorf("absent fields must render as null: %+v", v)
	}
}

func TestRenderAll_PreservesOrder(t *testing.T) {
	views := RenderAll([]Student{{ID: 2, Name: "B"}, {ID: 1, Name: "A"}})
	if len(views) != 2 || views[0].ID != 2 || views[1].ID != 1 {
		t.Errorf("order not preserved: %+v", views)
	}
}
