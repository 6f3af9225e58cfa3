package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	alertdomain "github.com/pulseboard/pulseboard/internal/alert/domain"
	alertrepository "github.com/pulseboard/pulseboard/internal/alert/repository"
	alertservice "github.com/pulseboard/pulseboard/internal/alert/service"
	authdomain "github.com/pulseboard/pulseboard/internal/auth/domain"
	authrepository "github.com/pulseboard/pulseboard/internal/auth/repository"
	authservice "github.com/pulseboard/pulseboard/internal/auth/service"
	"github.com/pulseboard/pulseboard/internal/auth/session"
	"github.com/pulseboard/pulseboard/internal/cache"
	"github.com/pulseboard/pulseboard/internal/clock"
	"github.com/pulseboard/pulseboard/internal/config"
	connectdomain "github.com/pulseboard/pulseboard/internal/connect/domain"
	datapointdomain "github.com/pulseboard/pulseboard/internal/datapoint/domain"
	datapointrepository "github.com/pulseboard/pulseboard/internal/datapoint/repository"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	integrationrepository "github.com/pulseboard/pulseboard/internal/integration/repository"
	integrationservice "github.com/pulseboard/pulseboard/internal/integration/service"
	organizationdomain "github.com/pulseboard/pulseboard/internal/organization/domain"
	organizationrepository "github.com/pulseboard/pulseboard/internal/organization/repository"
	organizationservice "github.com/pulseboard/pulseboard/internal/organization/service"
	syncdomain "github.com/pulseboard/pulseboard/internal/sync/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeConnectService struct {
	authorizeURL string
	authorizeErr error

	callbackResult *connectdomain.CallbackResult
	callbackErr    error

	keyResult *connectdomain.CallbackResult
	keyErr    error

	lastAuthorize connectdomain.AuthorizeParams
	lastKey       connectdomain.ConnectWithKeyParams
}

func (f *fakeConnectService) Authorize(_ context.Context, params connectdomain.AuthorizeParams) (string, error) {
	f.lastAuthorize = params
	if f.authorizeErr != nil {
		return "", f.authorizeErr
	}
	return f.authorizeURL, nil
}

func (f *fakeConnectService) Callback(_ context.Context, _ integrationdomain.Platform, _ url.Values) (*connectdomain.CallbackResult, error) {
	if f.callbackErr != nil {
		return nil, f.callbackErr
	}
	return f.callbackResult, nil
}

func (f *fakeConnectService) ConnectWithKey(_ context.Context, params connectdomain.ConnectWithKeyParams) (*connectdomain.CallbackResult, error) {
	f.lastKey = params
	if f.keyErr != nil {
		return nil, f.keyErr
	}
	return f.keyResult, nil
}

type fakeSyncService struct {
	points int
	err    error
	lastID snowflake.ID
}

func (f *fakeSyncService) SyncIntegration(_ context.Context, id snowflake.ID) (int, error) {
	f.lastID = id
	if f.err != nil {
		return 0, f.err
	}
	return f.points, nil
}

func (f *fakeSyncService) SyncAll(context.Context) (syncdomain.RunSummary, error) {
	return syncdomain.RunSummary{}, f.err
}

type testEnv struct {
	engine *gin.Engine
	srv    *Server
	db     *gorm.DB
	clk    *clock.FakeClock
	node   *snowflake.Node
	cfg    config.Config

	connectSvc     *fakeConnectService
	syncSvc        *fakeSyncService
	alertSvc       alertdomain.Service
	integrationSvc integrationdomain.Service
	dataPoints     datapointdomain.Repository
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&authdomain.User{},
		&authdomain.Session{},
		&organizationdomain.Organization{},
		&organizationdomain.Member{},
		&integrationdomain.Integration{},
		&alertdomain.Alert{},
		&datapointdomain.DataPoint{},
	))

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	cfg := config.Config{
		AppBaseURL: "http://app.test",
		Shopify: config.ShopifyConfig{
			APIKey:        "test-key",
			APISecret:     "shpss_test",
			WebhookSecret: "whsec_test",
		},
	}

	authSvc := authservice.New(authservice.Params{
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Repo:        authrepository.Provide(db),
		SessionRepo: authrepository.ProvideSessions(db),
	})
	organizationSvc := organizationservice.New(organizationservice.Params{
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  organizationrepository.Provide(db),
	})
	integrationSvc := integrationservice.New(integrationservice.Params{
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  integrationrepository.Provide(db),
	})
	alertSvc := alertservice.New(alertservice.Params{
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  alertrepository.Provide(db),
	})
	dataPoints := datapointrepository.Provide(db)

	connectSvc := &fakeConnectService{}
	syncSvc := &fakeSyncService{}

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:             engine,
		Cfg:             cfg,
		Log:             log,
		Clock:           clk,
		GenID:           node,
		Sessions:        session.NewManager(cfg),
		AuthSvc:         authSvc,
		OrganizationSvc: organizationSvc,
		IntegrationSvc:  integrationSvc,
		ConnectSvc:      connectSvc,
		AlertSvc:        alertSvc,
		SyncSvc:         syncSvc,
		DataPoints:      dataPoints,
		Dedup:           cache.NewMemoryDedup(clk),
	})

	return &testEnv{
		engine:         engine,
		srv:            srv,
		db:             db,
		clk:            clk,
		node:           node,
		cfg:            cfg,
		connectSvc:     connectSvc,
		syncSvc:        syncSvc,
		alertSvc:       alertSvc,
		integrationSvc: integrationSvc,
		dataPoints:     dataPoints,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, target string, payload any) *http.Request {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// signup creates an account and returns the session cookie.
func (e *testEnv) signup(t *testing.T, email string) *http.Cookie {
	t.Helper()
	w := e.do(jsonRequest(http.MethodPost, "/auth/signup", gin.H{
		"email":    email,
		"name":     "Test Merchant",
		"password": "correct horse battery",
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == session.DefaultCookieName && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatal("signup response carried no session cookie")
	return nil
}

// createOrg creates an organization through the API and returns its ID.
func (e *testEnv) createOrg(t *testing.T, cookie *http.Cookie, name string) snowflake.ID {
	t.Helper()
	req := jsonRequest(http.MethodPost, "/api/organizations", gin.H{"name": name})
	req.AddCookie(cookie)
	w := e.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decodeBody(t, w)
	id, err := snowflake.ParseString(body["id"].(string))
	require.NoError(t, err)
	return id
}
