// Package testutil provides common test utilities and helpers for Orbit tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/orbitplan/orbit/internal/api"
	"github.com/orbitplan/orbit/internal/notify"
	"github.com/orbitplan/orbit/internal/planner"
	"github.com/orbitplan/orbit/internal/sms"
	"github.com/orbitplan/orbit/internal/store"
)

// Identity header values used by authenticated test requests.
const (
	TestAuthID = "auth-user-1"
	TestEmail  = "test@example.com"
	TestName   = "Test User"
)

// FakeGenerator implements planner.Generator with canned content or a fixed
// error, and records how often it was called.
type FakeGenerator struct {
	Content string
	Err     error
	Calls   int
}

func (g *FakeGenerator) GeneratePlan(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.Calls++
	if g.Err != nil {
		return "", g.Err
	}
	return g.Content, nil
}

// SentMessage is one message recorded by FakeSender.
type SentMessage struct {
	To   string
	Body string
}

// FakeSender implements sms.Sender and records sent messages.
type FakeSender struct {
	Messages []SentMessage
	Err      error
}

func (s *FakeSender) SendMessage(ctx context.Context, to string, body string) error {
	if s.Err != nil {
		return s.Err
	}
	s.Messages = append(s.Messages, SentMessage{To: to, Body: body})
	return nil
}

// NewTestServer creates a test API server on an in-memory store with the
// given fakes. Billing is left unconfigured; its endpoints report that.
func NewTestServer(gen planner.Generator, sender sms.Sender) (*api.Server, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	pl := planner.New(st, gen)
	notifier := notify.NewService(st, pl, sender)
	return api.NewServer(st, pl, nil, notifier), st
}

// SamplePlanJSON builds a generated-plan document with the given number of
// weekly rhythm entries, the shape a successful generation call returns.
func SamplePlanJSON(weeks int) string {
	var rhythm []string
	for w := 1; w <= weeks; w++ {
		rhythm = append(rhythm, fmt.Sprintf(
			`{"week":%d,"focus":"Focus for week %d","actions":["Action %d-a","Action %d-b"]}`, w, w, w, w))
	}
	return fmt.Sprintf(`{
		"summary":"A sample plan.",
		"milestones":[{"label":"First milestone","description":"Get started","targetWeek":2}],
		"weeklyRhythm":[%s],
		"startingSteps":["Lace up"],
		"obstaclesAndSafeties":[{"obstacle":"Rain","workaround":"Treadmill"}],
		"notes":"Keep it sustainable."
	}`, strings.Join(rhythm, ","))
}

// Authenticate sets the proxy identity headers for the default test user.
func Authenticate(req *http.Request) *http.Request {
	req.Header.Set("X-Orbit-User-Id", TestAuthID)
	req.Header.Set("X-Orbit-User-Email", TestEmail)
	req.Header.Set("X-Orbit-User-Name", TestName)
	return req
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// DecodeJSONResponse decodes the recorded response body into target.
func DecodeJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}
