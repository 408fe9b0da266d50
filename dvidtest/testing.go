/*
	This file contains functions useful for testing against the server in other packages.
	Since *_test.go files are unavailable to test files in external packages, these
	functions are exported and contain the "Test" keyword.
*/

package dvidtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/janelia-flyem/libdvid-go/dvid"
)

// TestHTTPResponse returns the response of the server to a request without going
// through the network.  urlStr is a path like "/api/server/info".
func TestHTTPResponse(t testing.TB, srv *Server, method, urlStr string, payload io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, urlStr, payload)
	if err != nil {
		t.Fatalf("Unsuccessful %s on %q: %v\n", method, urlStr, err)
	}
	if token := srv.testToken(t); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	srv.ServeHTTP(resp, req)
	return resp
}

// TestHTTP returns the response body bytes for a test request, making sure any response
// has status OK.
func TestHTTP(t testing.TB, srv *Server, method, urlStr string, payload io.Reader) []byte {
	t.Helper()
	resp := TestHTTPResponse(t, srv, method, urlStr, payload)
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad server response (%d) to %s on %q: %s\n", resp.Code, method, urlStr, resp.Body.String())
	}
	return resp.Body.Bytes()
}

// TestBadHTTP expects a HTTP response with an error status code.
func TestBadHTTP(t testing.TB, srv *Server, method, urlStr string, payload io.Reader) {
	t.Helper()
	resp := TestHTTPResponse(t, srv, method, urlStr, payload)
	if resp.Code == http.StatusOK {
		t.Fatalf("Expected bad server response to %s on %q, got %d instead.\n", method, urlStr, resp.Code)
	}
}

// testToken returns a JWT for test requests if the server requires one.
func (s *Server) testToken(t testing.TB) string {
	if len(s.secret) == 0 {
		return ""
	}
	token, err := s.GenerateToken("tester")
	if err != nil {
		t.Fatalf("Unable to generate test JWT: %v\n", err)
	}
	return token
}

// NewTestRepo returns the root UUID of a new repo on the server.
func NewTestRepo(t testing.TB, srv *Server) dvid.UUID {
	t.Helper()
	metadata := `{"alias": "testRepo", "description": "A test repository"}`
	response := TestHTTP(t, srv, "POST", WebAPIPath+"repos", bytes.NewBufferString(metadata))

	parsedResponse := struct {
		Root string `json:"root"`
	}{}
	if err := json.Unmarshal(response, &parsedResponse); err != nil {
		t.Fatalf("Couldn't decode JSON response to new repo request: %v\n", err)
	}
	uuid, err := dvid.StringToUUID(parsedResponse.Root)
	if err != nil {
		t.Fatalf("Bad root UUID for new repo: %v\n", err)
	}
	return uuid
}

// CreateTestInstance creates a data instance of the given type in the repo.
func CreateTestInstance(t testing.TB, srv *Server, uuid dvid.UUID, typename, name string, config dvid.Config) {
	t.Helper()
	config.Set("typename", typename)
	config.Set("dataname", name)
	jsonData, err := config.MarshalJSON()
	if err != nil {
		t.Fatalf("Unable to make JSON for instance creation: %v\n", config)
	}
	apiStr := fmt.Sprintf("%srepo/%s/instance", WebAPIPath, uuid)
	TestHTTP(t, srv, "POST", apiStr, bytes.NewBuffer(jsonData))
}
