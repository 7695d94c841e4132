package fingerprintapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codatta/codattaOnchainDataVerify/pkgs/canonical"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/crypto"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/submissions"
)

const (
	testAddress = "0xAbC123000000000000000000000000000000dEaD"
	fixtureA    = "8e4dcae36148be1dd7c124c02957747bf1577dc7f508a510e4d61be1a74ba951"
	fixtureNone = "73c25b4aa3e37083735a8ac6c56783b13f01fff6ab59a25189535cb34eeb66a0"
)

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, Path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHandlerComputesFingerprint(t *testing.T) {
	h := NewHandler(crypto.NewCalculator())

	rec, resp := post(t, h, `{"address":"`+testAddress+`","quality":"A","submit_data":{ "x" : 1 }}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, CodeOK, resp.Code)
	require.NotNil(t, resp.Data)
	assert.Equal(t, fixtureA, resp.Data.Fingerprint)
}

func TestHandlerNullSubmitDataIsAbsent(t *testing.T) {
	h := NewHandler(crypto.NewCalculator())

	for _, body := range []string{
		`{"address":"` + testAddress + `","quality":"","submit_data":null}`,
		`{"address":"` + testAddress + `","quality":""}`,
	} {
		rec, resp := post(t, h, body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, fixtureNone, resp.Data.Fingerprint)
	}
}

func TestHandlerRejectsBadInput(t *testing.T) {
	h := NewHandler(crypto.NewCalculator())

	cases := map[string]string{
		"not json":    `{`,
		"bad address": `{"address":"0x12","quality":"A","submit_data":{}}`,
		"bad quality": `{"address":"` + testAddress + `","quality":"Q","submit_data":{}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec, resp := post(t, h, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, CodeBadRequest, resp.Code)
			assert.Nil(t, resp.Data)
		})
	}
}

func TestClientAgainstHandler(t *testing.T) {
	srv := httptest.NewServer(NewHandler(crypto.NewCalculator()))
	defer srv.Close()

	v, err := canonical.Parse([]byte(`{"x":1}`))
	require.NoError(t, err)

	client := NewClient(srv.URL+"/", time.Second)
	fp, err := client.Generate(context.Background(), submissions.SubmissionInput{
		SubmissionJSON: &v,
		SubmissionID:   "sub-1",
		WalletAddress:  testAddress,
		Quality:        submissions.QualityA,
	})
	require.NoError(t, err)
	assert.Equal(t, crypto.Fingerprint("0x"+fixtureA), fp)

	local, err := crypto.NewCalculator().Generate(context.Background(), submissions.SubmissionInput{
		SubmissionJSON: &v,
		SubmissionID:   "sub-1",
		WalletAddress:  testAddress,
		Quality:        submissions.QualityA,
	})
	require.NoError(t, err)
	assert.Equal(t, local, fp)
}

func TestClientSendsWireShape(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, Path, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"code":0,"message":"ok","data":{"fingerprint":"ABCDEF"}}`))
	}))
	defer srv.Close()

	fp, err := NewClient(srv.URL, time.Second).Generate(context.Background(), submissions.SubmissionInput{
		SubmissionID:  "sub-1",
		WalletAddress: testAddress,
	})
	require.NoError(t, err)
	assert.Equal(t, crypto.Fingerprint("0xabcdef"), fp)

	assert.JSONEq(t, `"`+testAddress+`"`, string(got["address"]))
	assert.JSONEq(t, `""`, string(got["quality"]))
	assert.JSONEq(t, `null`, string(got["submit_data"]))
}

func TestClientErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"non-zero code", http.StatusOK, `{"code":1001,"message":"submission not found","data":null}`},
		{"server error", http.StatusInternalServerError, `{"code":500,"message":"boom"}`},
		{"html error page", http.StatusBadGateway, `<html>bad gateway</html>`},
		{"missing fingerprint", http.StatusOK, `{"code":0,"message":"ok","data":{"fingerprint":""}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Generate(context.Background(), submissions.SubmissionInput{
				SubmissionID:  "sub-1",
				WalletAddress: testAddress,
			})
			assert.ErrorIs(t, err, ErrRequestFailed)
		})
	}
}

func TestClientHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL, 5*time.Second).Generate(ctx, submissions.SubmissionInput{
		SubmissionID:  "sub-1",
		WalletAddress: testAddress,
	})
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
