package session

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/core/content"
	"github.com/trezcool/ubao/storage/document"
)

// Settings holds the per-content-kind visibility flags of a session.
type Settings struct {
	AllowNotices      bool `json:"allow_notices"`
	AllowLinks        bool `json:"allow_links"`
	AllowClassContent bool `json:"allow_class_content"`
	AllowBookContent  bool `json:"allow_book_content"`
}

// DefaultSettings: everything visible; the teacher opts kinds out, not in.
func DefaultSettings() Settings {
	return Settings{
		AllowNotices:      true,
		AllowLinks:        true,
		AllowClassContent: true,
		AllowBookContent:  true,
	}
}

// Allows reports whether kind is exposed to students by these settings.
// Teacher-private kinds (timetable, events) are never exposed.
func (s Settings) Allows(kind content.Kind) bool {
	switch kind {
	case content.KindNotice:
		return s.AllowNotices
	case content.KindLink:
		return s.AllowLinks
	case content.KindClassContent:
		return s.AllowClassContent
	case content.KindBookContent:
		return s.AllowBookContent
	}
	return false
}

// Session is the public-code-to-teacher binding plus its activation &
// visibility state. The same record is written at the teacher's own pointer
// path and at the public code-keyed lookup path.
type Session struct {
	Code        string    `json:"code"`
	TeacherID   string    `json:"teacher_id"`
	TeacherName string    `json:"teacher_name"`
	ClassName   string    `json:"class_name"`
	IsActive    bool      `json:"is_active"`
	Settings    Settings  `json:"settings"`
	CreatedAt   time.Time `json:"created_at"`   // UTC
	UpdatedAt   time.Time `json:"last_updated"` // UTC
}

// NewSession contains information needed to create a new Session.
type NewSession struct {
	ClassName string `json:"class_name" validate:"required,max=100"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.ClassName = core.CleanString(ns.ClassName)
	return validate.Struct(ns)
}

// SettingsPatch defines a partial update of the visibility flags;
// nil fields are left untouched.
type SettingsPatch struct {
	AllowNotices      *bool `json:"allow_notices"`
	AllowLinks        *bool `json:"allow_links"`
	AllowClassContent *bool `json:"allow_class_content"`
	AllowBookContent  *bool `json:"allow_book_content"`
}

func (p SettingsPatch) apply(s Settings) Settings {
	if p.AllowNotices != nil {
		s.AllowNotices = *p.AllowNotices
	}
	if p.AllowLinks != nil {
		s.AllowLinks = *p.AllowLinks
	}
	if p.AllowClassContent != nil {
		s.AllowClassContent = *p.AllowClassContent
	}
	if p.AllowBookContent != nil {
		s.AllowBookContent = *p.AllowBookContent
	}
	return s
}

func (p SettingsPatch) isEmpty() bool {
	return p.AllowNotices == nil && p.AllowLinks == nil && p.AllowClassContent == nil && p.AllowBookContent == nil
}

// document field names; kept stable for interop with the stored layout.

func currentPath(teacherID string) string {
	return "teachers/" + teacherID + "/session/current"
}

func publicPath(code string) string {
	return "sessions/" + code
}

func (s Session) toFields() map[string]interface{} {
	return map[string]interface{}{
		"sessionCode": s.Code,
		"teacherId":   s.TeacherID,
		"teacherName": s.TeacherName,
		"className":   s.ClassName,
		"isActive":    s.IsActive,
		"settings":    s.Settings.toFields(),
		"createdAt":   document.EncodeTime(s.CreatedAt),
		"lastUpdated": document.EncodeTime(s.UpdatedAt),
	}
}

func (s Settings) toFields() map[string]interface{} {
	return map[string]interface{}{
		"allowNotices":      s.AllowNotices,
		"allowLinks":        s.AllowLinks,
		"allowClassContent": s.AllowClassContent,
		"allowBookContent":  s.AllowBookContent,
	}
}

func fromDoc(doc document.Document) Session {
	sess := Session{
		Code:        str(doc.Fields["sessionCode"]),
		TeacherID:   str(doc.Fields["teacherId"]),
		TeacherName: str(doc.Fields["teacherName"]),
		ClassName:   str(doc.Fields["className"]),
		IsActive:    boolean(doc.Fields["isActive"]),
		CreatedAt:   document.DecodeTime(doc.Fields["createdAt"]),
		UpdatedAt:   document.DecodeTime(doc.Fields["lastUpdated"]),
	}
	if settings, ok := doc.Fields["settings"].(map[string]interface{}); ok {
		sess.Settings = Settings{
			AllowNotices:      boolean(settings["allowNotices"]),
			AllowLinks:        boolean(settings["allowLinks"]),
			AllowClassContent: boolean(settings["allowClassContent"]),
			AllowBookContent:  boolean(settings["allowBookContent"]),
		}
	}
	return sess
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func boolean(v interface{}) bool {
	b, _ := v.(bool)
	return b
}
