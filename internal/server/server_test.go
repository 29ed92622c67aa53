package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/liptonj/wpn-provisioner/internal/services/meraki"
	"github.com/liptonj/wpn-provisioner/internal/services/meraki/merakitest"
	"github.com/liptonj/wpn-provisioner/internal/services/provisioner"
	"github.com/liptonj/wpn-provisioner/internal/services/settings"
	"github.com/liptonj/wpn-provisioner/internal/services/share"
	"github.com/liptonj/wpn-provisioner/internal/services/status"
	"github.com/liptonj/wpn-provisioner/internal/services/validator"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testNetwork = "N_1"
	testSSID    = 2
)

type mockProvisioner struct {
	applyFunc func(ctx context.Context, desired models.DesiredConfiguration) (*models.ConfigureResult, error)
}

func (m *mockProvisioner) Apply(ctx context.Context, desired models.DesiredConfiguration) (*models.ConfigureResult, error) {
	return m.applyFunc(ctx, desired)
}

// cancellingClient cancels the request context once the SSID update lands and fails
// later calls made with a cancelled context, the way the HTTP client does.
type cancellingClient struct {
	*merakitest.Fake
	cancel context.CancelFunc
}

func (c *cancellingClient) UpdateSSID(ctx context.Context, networkID string, number int, patch models.SSIDPatch) (*models.SSIDSummary, error) {
	ssid, err := c.Fake.UpdateSSID(ctx, networkID, number, patch)
	c.cancel()
	return ssid, err
}

func (c *cancellingClient) GetSSID(ctx context.Context, networkID string, number int) (*models.SSIDSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Fake.GetSSID(ctx, networkID, number)
}

func (c *cancellingClient) ListIdentityPSKs(ctx context.Context, networkID string, number int) ([]models.IdentityPSK, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Fake.ListIdentityPSKs(ctx, networkID, number)
}

func (c *cancellingClient) CreateIdentityPSK(ctx context.Context, networkID string, number int, spec models.IdentityPSKSpec) (*models.IdentityPSK, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Fake.CreateIdentityPSK(ctx, networkID, number, spec)
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testConfig() models.AppConfig {
	return models.AppConfig{
		Network: models.NetworkTarget{NetworkID: testNetwork, SSIDNumber: testSSID},
		Portal:  models.PortalConfig{PublicURL: "https://portal.example.com"},
		WPN: models.WPNConfig{
			RegisteredPolicyName: "WPN-Users",
			PSKLength:            12,
			ConfirmTimeout:       time.Second,
			ConfirmInterval:      time.Millisecond,
		},
	}
}

type harness struct {
	fake     *merakitest.Fake
	store    *settings.Store
	server   *Server
	services Services
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := merakitest.New()
	fake.PutSSID(testNetwork, models.SSIDSummary{Number: testSSID, Name: "Residents", AuthMode: "open"})

	store, err := settings.Open(context.Background(), testLogger(), models.SettingsConfig{
		DSN: filepath.Join(t.TempDir(), "portal.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := testConfig()
	statusSvc := status.New(testLogger(), fake, store)
	svc := Services{
		Status:      statusSvc,
		Provisioner: provisioner.New(testLogger(), fake, cfg),
		Validator:   validator.New(testLogger(), fake, statusSvc, store),
		Settings:    store,
		Share:       share.New(testLogger()),
	}
	return &harness{
		fake:     fake,
		store:    store,
		server:   New(testLogger(), cfg, svc),
		services: svc,
	}
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestStatus_NeedsConfiguration(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/wpn/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[models.SSIDStatus](t, rec)
	assert.Equal(t, models.StatusNeedsConfiguration, st.OverallStatus)
	assert.NotEmpty(t, st.Issues)
}

func TestStatus_RemoteFailure(t *testing.T) {
	h := newHarness(t)
	h.fake.FailOn(merakitest.OpGetSSID, &meraki.APIError{Method: "GET", Path: "/x", StatusCode: 403})

	rec := h.do(t, http.MethodGet, "/api/wpn/status", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestApply_PersistsSettings(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/wpn/apply", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[models.ConfigureResult](t, rec)
	assert.True(t, result.Success)
	assert.Equal(t, "WPN-Users", result.GroupPolicyName)
	assert.Equal(t, "https://portal.example.com/api/splash", result.SplashURL)

	ps, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testNetwork, ps.NetworkID)
	assert.Equal(t, result.DefaultPSK, ps.DefaultSSIDPSK)
	assert.Equal(t, result.DefaultIPSKID, ps.DefaultIPSKID)

	rec = h.do(t, http.MethodGet, "/api/wpn/status", "")
	st := decode[models.SSIDStatus](t, rec)
	assert.Equal(t, models.StatusNeedsManualStep, st.OverallStatus)
}

func TestApply_BodyOverridesDefaults(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/wpn/apply", `{"guestPolicyName":"Visitors","splashUrl":"https://splash.example.com/welcome"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[models.ConfigureResult](t, rec)
	assert.Equal(t, "WPN-Users", result.GroupPolicyName)
	assert.Equal(t, "Visitors", result.GuestGroupPolicyName)
	assert.Equal(t, "https://splash.example.com/welcome", result.SplashURL)
}

func TestApply_InvalidBody(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/wpn/apply", `{"guestPolicyName":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, h.fake.Calls(merakitest.OpUpdateSSID))
}

func TestApply_ConfigurationError(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/wpn/apply", `{"guestPolicyName":"WPN-Users"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, string(provisioner.KindConfigurationError), resp.Error)
	assert.Equal(t, provisioner.StepValidate, resp.Step)
	assert.NotEmpty(t, resp.RunID)
}

func TestApply_RemoteFailureReportsProgress(t *testing.T) {
	h := newHarness(t)
	h.fake.FailOn(merakitest.OpUpdateSSID, &meraki.APIError{
		Method: "PUT", Path: "/networks/N_1/wireless/ssids/2", StatusCode: 400, Errors: []string{"Invalid splash URL"},
	})

	rec := h.do(t, http.MethodPost, "/api/wpn/apply", "")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, string(provisioner.KindApplyFailed), resp.Error)
	assert.Equal(t, provisioner.StepUpdateSSID, resp.Step)
	assert.Equal(t, []string{provisioner.StepRegisteredPolicy}, resp.Completed)

	_, err := h.store.Load(context.Background())
	assert.ErrorIs(t, err, settings.ErrNotConfigured)
}

func TestApply_RejectsConcurrentRun(t *testing.T) {
	h := newHarness(t)
	started := make(chan struct{})
	release := make(chan struct{})
	h.services.Provisioner = &mockProvisioner{
		applyFunc: func(ctx context.Context, desired models.DesiredConfiguration) (*models.ConfigureResult, error) {
			close(started)
			<-release
			return &models.ConfigureResult{Success: true}, nil
		},
	}
	h.server = New(testLogger(), testConfig(), h.services)

	done := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/wpn/apply", nil)
		rec := httptest.NewRecorder()
		h.server.Router().ServeHTTP(rec, req)
		done <- rec.Code
	}()

	<-started
	rec := h.do(t, http.MethodPost, "/api/wpn/apply", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestApply_ClientDisconnectDoesNotAbortRun(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &cancellingClient{Fake: h.fake, cancel: cancel}
	h.services.Provisioner = provisioner.New(testLogger(), client, testConfig())
	h.server = New(testLogger(), testConfig(), h.services)

	req := httptest.NewRequest(http.MethodPost, "/api/wpn/apply", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Error(t, ctx.Err())
	assert.Len(t, h.fake.IdentityPSKs(testNetwork, testSSID), 1)

	ps, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testNetwork, ps.NetworkID)
	assert.NotEmpty(t, ps.DefaultSSIDPSK)
}

func TestValidate_BeforeApply(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/wpn/validate", "")

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestValidate_AfterApply(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/wpn/apply", "").Code)

	rec := h.do(t, http.MethodPost, "/api/wpn/validate", "")

	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[models.ValidationResult](t, rec)
	assert.True(t, result.Valid, result.Issues)
	assert.Len(t, result.Checks, 5)
}

func TestConfirmWPN_MakesSSIDReady(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/wpn/apply", "").Code)

	rec := h.do(t, http.MethodPost, "/api/wpn/confirm-wpn", "")

	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[models.SSIDStatus](t, rec)
	assert.Equal(t, models.StatusReady, st.OverallStatus)
	assert.True(t, st.WPNEnabled)
	assert.Empty(t, st.Warnings)
}

func TestSharePNG(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/wpn/share.png", "")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/wpn/apply", "").Code)

	rec = h.do(t, http.MethodGet, "/api/wpn/share.png?size=128", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestSharePNG_InvalidSize(t *testing.T) {
	h := newHarness(t)

	for _, size := range []string{"abc", "10", "5000"} {
		rec := h.do(t, http.MethodGet, "/api/wpn/share.png?size="+size, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, size)
	}
}

func TestMetrics(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodGet, "/api/wpn/status", "")

	rec := h.do(t, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wpn_")
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.server.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
