package roster

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/storage/document"
)

// Roster is a teacher's class list, backing the picker & grouping tools.
// One roster per teacher; teacher-private, never student-visible.
type Roster struct {
	Students []string `json:"students"`
}

// UpdateRoster replaces the teacher's student list.
type UpdateRoster struct {
	Students []string `json:"students" validate:"required,max=100,dive,required,max=100"`
}

func (ur *UpdateRoster) Validate(validate *validator.Validate) error {
	for i, s := range ur.Students {
		ur.Students[i] = core.CleanString(s)
	}
	return validate.Struct(ur)
}

// Group is one dealt group of students.
type Group struct {
	Name     string   `json:"name"`
	Students []string `json:"students"`
}

func rosterPath(teacherID string) string {
	return "users/" + teacherID + "/roster/current"
}

func (r Roster) toFields() map[string]interface{} {
	students := make([]interface{}, 0, len(r.Students))
	for _, s := range r.Students {
		students = append(students, s)
	}
	return map[string]interface{}{"students": students}
}

func fromDoc(doc document.Document) Roster {
	r := Roster{Students: []string{}}
	raw, ok := doc.Fields["students"].([]interface{})
	if !ok {
		return r
	}
	for _, v := range raw {
		if s, ok := v.(string); ok {
			r.Students = append(r.Students, s)
		}
	}
	return r
}
