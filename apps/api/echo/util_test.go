package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/exam"
	"github.com/trezcool/evaledge/core/integrity"
	"github.com/trezcool/evaledge/core/session"
	inmemdb "github.com/trezcool/evaledge/storage/database/inmem"
)

const aliceImage = "data:image/jpeg;base64,YWxpY2U="

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*Server
	conf    *core.Config
	svc     *session.Service
	backend *exam.BackendMock
	monitor *session.MonitorMock
	logger  *core.LoggerMock
}

func setup(t *testing.T) *testApp {
	conf := core.NewTestConfig()
	conf.Debug = false

	app := &testApp{
		conf:    conf,
		backend: &exam.BackendMock{ProblemList: exam.SampleProblems()},
		monitor: &session.MonitorMock{},
		logger:  new(core.LoggerMock),
	}
	app.svc = session.NewService(conf, session.Deps{
		Repo:    inmemdb.NewSessionRepository(inmemdb.Open()),
		Backend: app.backend,
		Monitor: app.monitor,
		Verifier: &session.VerifierMock{People: map[string]session.VerifyResult{
			aliceImage: {OK: true, Person: "alice", Score: 0.71},
		}},
		Mailer: new(core.MailerMock),
		Logger: app.logger,
		Clock:  integrity.NewManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	})

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	app.Server = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         app.logger,
		SessionSvc:     app.svc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { app.svc.Shutdown(context.Background()) })
	return app
}

// startSession verifies alice and opens a session for her; it returns the session and its token.
func (app *testApp) startSession(t *testing.T) (session.Session, string) {
	req, rec := newRequest(http.MethodPost, "/v1/verify", marchallObj(t, session.VerifyRequest{Image: aliceImage}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var vr VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vr))

	body := []byte(`{"viewport": {"width": 1920, "height": 1080}}`)
	req, rec = newAuthRequest(http.MethodPost, "/v1/sessions", vr.Token, body)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sr SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sr))
	return sr.Session, sr.Token
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

func getToken(t *testing.T, conf *core.Config, claims *Claims) string {
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
