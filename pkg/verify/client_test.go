package verify

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agriconnect/agriconnect-backend/pkg/config"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	c, err := NewClient(config.TwilioConfig{
		AccountSID:       "AC123",
		AuthToken:        "token",
		VerifyServiceSID: "VA456",
		BaseURL:          "http://twilio.test/v2",
	}, logger.Nop(), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)
	return c
}

func TestRequestCodeSendsSMSVerification(t *testing.T) {
	var form url.Values
	var path string
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		path = req.URL.Path
		body, _ := io.ReadAll(req.Body)
		form, _ = url.ParseQuery(string(body))
		user, _, _ := req.BasicAuth()
		require.Equal(t, "AC123", user)
		return jsonResponse(http.StatusCreated, `{"sid":"VE1","status":"pending"}`), nil
	})

	require.NoError(t, c.RequestCode(context.Background(), "98765 43210"))
	require.Equal(t, "/v2/Services/VA456/Verifications", path)
	require.Equal(t, "+919876543210", form.Get("To"))
	require.Equal(t, "sms", form.Get("Channel"))
}

func TestCheckCodeApproved(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		require.True(t, strings.HasSuffix(req.URL.Path, "/VerificationCheck"))
		return jsonResponse(http.StatusOK, `{"status":"approved","valid":true}`), nil
	})
	ok, err := c.CheckCode(context.Background(), "+919876543210", "123456")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCheckCodeRejectedAndExpired(t *testing.T) {
	responses := []*http.Response{
		jsonResponse(http.StatusOK, `{"status":"pending","valid":false}`),
		jsonResponse(http.StatusNotFound, `{"code":20404,"message":"not found"}`),
	}
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		resp := responses[0]
		responses = responses[1:]
		return resp, nil
	})

	ok, err := c.CheckCode(context.Background(), "9876543210", "000000")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = c.CheckCode(context.Background(), "9876543210", "000000")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRequestCodeGatewayFailure(t *testing.T) {
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusServiceUnavailable, `unavailable`), nil
	})
	err := c.RequestCode(context.Background(), "9876543210")
	require.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}

func TestNormalizePhone(t *testing.T) {
	c := newTestClient(t, nil)
	got, err := c.NormalizePhone("+1 (415) 555-0100")
	require.NoError(t, err)
	require.Equal(t, "+14155550100", got)

	_, err = c.NormalizePhone("  ")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
