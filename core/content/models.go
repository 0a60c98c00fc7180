package content

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/storage/document"
)

// Kind identifies one workspace content collection. All kinds share the same
// CRUD contract; they differ only in collection path, validation and whether
// a session may expose them to students.
type Kind string

const (
	KindNotice       Kind = "notice"
	KindLink         Kind = "link"
	KindBookContent  Kind = "book"
	KindClassContent Kind = "class" // chalkboard notes explicitly shared to students

	// teacher-private kinds; never student-visible
	KindTimetable Kind = "timetable"
	KindEvent     Kind = "event"
)

var (
	ErrNotFound    = errors.New("content item not found")
	ErrUnknownKind = errors.New("unknown content kind")

	kindCollections = map[Kind]string{
		KindNotice:       "notices",
		KindLink:         "savedLinks",
		KindBookContent:  "bookContents",
		KindClassContent: "sharedClassContent",
		KindTimetable:    "timetable",
		KindEvent:        "events",
	}

	// StudentKinds are the kinds a session's settings may expose.
	StudentKinds = []Kind{KindNotice, KindLink, KindClassContent, KindBookContent}
)

// ParseKind maps a route segment to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(core.CleanString(s, true /* lower */))
	if _, ok := kindCollections[k]; !ok {
		return "", ErrUnknownKind
	}
	return k, nil
}

func (k Kind) collection() string {
	return kindCollections[k]
}

// Item is one workspace content document, owned exclusively by the teacher
// whose path prefix it lives under.
type Item struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	URL       string    `json:"url,omitempty"`
	Category  string    `json:"category,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewItem contains information needed to create a new Item.
// Body is required for every kind but links; links require a URL instead.
type NewItem struct {
	Title    string `json:"title" validate:"required,max=200"`
	Body     string `json:"body" validate:"max=10000"`
	URL      string `json:"url" validate:"omitempty,url,max=2000"`
	Category string `json:"category" validate:"max=50"`
	Priority string `json:"priority" validate:"omitempty,oneof=low normal high"`
}

func (ni *NewItem) Validate(kind Kind, validate *validator.Validate) error {
	ni.Title = core.CleanString(ni.Title)
	ni.Body = core.CleanString(ni.Body)
	ni.URL = core.CleanString(ni.URL)
	ni.Category = core.CleanString(ni.Category)
	ni.Priority = core.CleanString(ni.Priority, true /* lower */)

	if err := validate.Struct(ni); err != nil {
		return err
	}
	switch kind {
	case KindLink:
		if ni.URL == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "url", Error: "this field is required"})
		}
	default:
		if ni.Body == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "body", Error: "this field is required"})
		}
	}
	return nil
}

// UpdateItem defines what may be modified on an existing Item;
// nil fields are left untouched.
type UpdateItem struct {
	Title    *string `json:"title" validate:"omitempty,max=200"`
	Body     *string `json:"body" validate:"omitempty,max=10000"`
	URL      *string `json:"url" validate:"omitempty,url,max=2000"`
	Category *string `json:"category" validate:"omitempty,max=50"`
	Priority *string `json:"priority" validate:"omitempty,oneof=low normal high"`
}

func (ui *UpdateItem) Validate(kind Kind, validate *validator.Validate) error {
	clean := func(p *string, lower ...bool) {
		if p != nil {
			*p = core.CleanString(*p, lower...)
		}
	}
	clean(ui.Title)
	clean(ui.Body)
	clean(ui.URL)
	clean(ui.Category)
	clean(ui.Priority, true /* lower */)

	if err := validate.Struct(ui); err != nil {
		return err
	}
	if ui.Title != nil && *ui.Title == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field is required"})
	}
	// an update may not strip the field the kind depends on
	switch kind {
	case KindLink:
		if ui.URL != nil && *ui.URL == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "url", Error: "this field is required"})
		}
	default:
		if ui.Body != nil && *ui.Body == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "body", Error: "this field is required"})
		}
	}
	return nil
}

func (ui UpdateItem) toPatch() map[string]interface{} {
	patch := make(map[string]interface{})
	if ui.Title != nil {
		patch["title"] = *ui.Title
	}
	if ui.Body != nil {
		patch["body"] = *ui.Body
	}
	if ui.URL != nil {
		patch["url"] = *ui.URL
	}
	if ui.Category != nil {
		patch["category"] = *ui.Category
	}
	if ui.Priority != nil {
		patch["priority"] = *ui.Priority
	}
	return patch
}

// document field names; kept stable for interop with the stored layout.

func collectionPath(teacherID string, kind Kind) string {
	return "users/" + teacherID + "/" + kind.collection()
}

func itemPath(teacherID string, kind Kind, id string) string {
	return collectionPath(teacherID, kind) + "/" + id
}

func (it Item) toFields() map[string]interface{} {
	return map[string]interface{}{
		"title":     it.Title,
		"body":      it.Body,
		"url":       it.URL,
		"category":  it.Category,
		"priority":  it.Priority,
		"isActive":  it.IsActive,
		"createdAt": document.EncodeTime(it.CreatedAt),
		"updatedAt": document.EncodeTime(it.UpdatedAt),
	}
}

func fromDoc(kind Kind, doc document.Document) Item {
	return Item{
		ID:        document.Key(doc.Path),
		Kind:      kind,
		Title:     str(doc.Fields["title"]),
		Body:      str(doc.Fields["body"]),
		URL:       str(doc.Fields["url"]),
		Category:  str(doc.Fields["category"]),
		Priority:  str(doc.Fields["priority"]),
		IsActive:  boolean(doc.Fields["isActive"]),
		CreatedAt: document.DecodeTime(doc.Fields["createdAt"]),
		UpdatedAt: document.DecodeTime(doc.Fields["updatedAt"]),
	}
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func boolean(v interface{}) bool {
	b, _ := v.(bool)
	return b
}
