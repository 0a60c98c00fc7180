package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/ubao/apps/api/echo"
	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/core/aigen"
	"github.com/trezcool/ubao/core/content"
	"github.com/trezcool/ubao/core/roster"
	"github.com/trezcool/ubao/core/session"
	"github.com/trezcool/ubao/core/student"
	"github.com/trezcool/ubao/core/teacher"
	appfs "github.com/trezcool/ubao/fs"
	emailsvc "github.com/trezcool/ubao/services/email"
	"github.com/trezcool/ubao/storage/cache"
	inmemstore "github.com/trezcool/ubao/storage/document/inmem"
)

var (
	conf       *core.Config
	sessionSvc *session.Service
	contentSvc *content.Service
	rosterSvc  *roster.Service

	// verifier backs the sign-in endpoint; each test points it where it wants
	verifier = &stubVerifier{}

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errInvalidCode  = httpErr{Error: "session code is not valid"}
	errNoSession    = httpErr{Error: "no session created yet"}
)

type stubVerifier struct {
	teacher teacher.Teacher
	err     error
}

func (v *stubVerifier) Verify(context.Context, string) (teacher.Teacher, error) {
	if v.err != nil {
		return teacher.Teacher{}, v.err
	}
	return v.teacher, nil
}

func setup(t *testing.T) Server {
	t.Helper()

	conf = core.NewConfig()
	conf.TestMode = true

	logger := core.NewStdLogger(nil)
	store := inmemstore.NewStore()

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	emailsvc.ClearSentMessages()
	sessionSvc = session.NewService(store, cache.NewMemCache(), conf, logger)
	contentSvc = content.NewService(store, logger)
	rosterSvc = roster.NewService(store, nil)
	resolver := student.NewResolver(sessionSvc, contentSvc, conf, logger)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	core.ParseEmailTemplates(appfs.FS, conf, logger)

	return NewServer(
		ServerDeps{
			Conf:       conf,
			Logger:     logger,
			TeacherSvc: teacher.NewService(verifier),
			SessionSvc: sessionSvc,
			ContentSvc: contentSvc,
			Resolver:   resolver,
			RosterSvc:  rosterSvc,
			AIClient:   aigen.NewClient(conf, logger),
			EmailSvc:   mailSvc,
			Validate:   validate,
			Translator: translator,
		},
	)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, tch teacher.Teacher) string {
	claims := GetTeacherClaims(conf, tch)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
