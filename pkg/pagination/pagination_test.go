package pagination

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Sternrassler/mwapi-client/pkg/request"
	"github.com/Sternrassler/mwapi-client/pkg/result"
)

// scriptedExecutor answers with canned JSON bodies and records the
// parameters of every request.
type scriptedExecutor struct {
	bodies []string
	err    error
	errAt  int

	requests []*request.Request
}

func (s *scriptedExecutor) Execute(_ context.Context, req *request.Request) (*result.Result, error) {
	s.requests = append(s.requests, req.Clone())
	call := len(s.requests)

	if s.err != nil && call == s.errAt {
		return nil, s.err
	}
	if call > len(s.bodies) {
		return nil, fmt.Errorf("unexpected request %d", call)
	}
	return result.Decode([]byte(s.bodies[call-1]), nil)
}

func (s *scriptedExecutor) param(t *testing.T, call int, key string) (string, bool) {
	t.Helper()
	if call >= len(s.requests) {
		t.Fatalf("request %d was not sent (%d requests)", call, len(s.requests))
	}
	v, ok := s.requests[call].Param(key)
	if !ok {
		return "", false
	}
	return fmt.Sprint(v), true
}

func newRequest(t *testing.T, pairs ...string) *request.Request {
	t.Helper()
	req, err := request.New(
		request.Site{Endpoint: "https://example.org/w/api.php", UserAgent: "test", MaxLag: request.DisableMaxLag},
		request.NewParams(pairs...),
		false,
		request.ModeForm,
	)
	if err != nil {
		t.Fatalf("request.New() failed: %v", err)
	}
	return req
}

func mustDecode(t *testing.T, body string) *result.Result {
	t.Helper()
	res, err := result.Decode([]byte(body), nil)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	return res
}

var errBoom = errors.New("boom")
