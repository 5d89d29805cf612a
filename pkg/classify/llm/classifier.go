package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/arvhal/causeway/pkg/debug"
)

// Outcome discriminates the result of a classification call. Everything
// other than OutcomeChosen is a recoverable condition for the caller.
type Outcome string

const (
	// OutcomeChosen means the model named a capability and gave a rationale.
	OutcomeChosen Outcome = "chosen"
	// OutcomeUndecided means the model answered well-formed but declined
	// to pick a capability.
	OutcomeUndecided Outcome = "undecided"
	// OutcomeUnavailable covers transport failures, timeouts, and non-2xx
	// responses from the backend.
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomeMalformed means the backend answered 2xx but the payload could
	// not be parsed into a classification.
	OutcomeMalformed Outcome = "malformed"
)

// Candidate is one capability offered to the model for selection.
type Candidate struct {
	ID          string
	Label       string
	Description string
}

// Result is the typed outcome of a single classification call. CapabilityID
// and Rationale are set only for OutcomeChosen; Detail carries a short
// operator-facing explanation for the failure outcomes.
type Result struct {
	Outcome      Outcome
	CapabilityID string
	Rationale    string
	Detail       string
}

// Config holds the connection settings for the classification backend.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Timeout bounds the whole call. A classifier that cannot answer
	// quickly is worse than the rule-based fallback.
	Timeout time.Duration
}

// DefaultTimeout is applied when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Classifier asks an OpenAI-compatible Chat Completions backend to pick one
// capability for a request. Calls are single-shot; the caller decides what a
// failure means.
type Classifier struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewClassifier creates a Classifier for an OpenAI-compatible backend.
func NewClassifier(cfg Config) *Classifier {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Classifier{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

const systemPrompt = `You are a strict request router for a statistical analysis service.
Pick exactly one capability id from the provided list, or decline.
Respond with a single JSON object and nothing else:
  {"capability_id": "<one of the listed ids>", "reason": "<one short sentence>"}
If no listed capability clearly matches the request, respond with:
  {"capability_id": null, "reason": "<one short sentence>"}
Never invent an id that is not in the list.`

// chat completions wire types, reduced to what classification needs.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// classification is the JSON object the model is instructed to emit.
type classification struct {
	CapabilityID *string `json:"capability_id"`
	Reason       string  `json:"reason"`
}

// Classify asks the backend to pick one of the candidates for the given
// request text. It never retries and never returns an error: every failure
// shape maps to a Result the caller can recover from.
func (c *Classifier) Classify(ctx context.Context, requestText string, candidates []Candidate) Result {
	if len(candidates) == 0 {
		return Result{Outcome: OutcomeUndecided, Detail: "no candidates offered"}
	}

	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       buildMessages(requestText, candidates),
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return Result{Outcome: OutcomeUnavailable, Detail: fmt.Sprintf("marshal request: %s", err)}
	}

	url := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{Outcome: OutcomeUnavailable, Detail: fmt.Sprintf("create request: %s", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{Outcome: OutcomeUnavailable, Detail: describeTransportError(err)}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		// Drain a little of the body for the detail, ignoring read errors.
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 256))
		return Result{
			Outcome: OutcomeUnavailable,
			Detail:  fmt.Sprintf("backend returned HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return Result{Outcome: OutcomeMalformed, Detail: fmt.Sprintf("parse response: %s", err)}
	}
	if len(chatResp.Choices) == 0 {
		return Result{Outcome: OutcomeMalformed, Detail: "response has no choices"}
	}

	debug.Log("router", "llm raw answer",
		"content", debug.Truncate(chatResp.Choices[0].Message.Content, 200))

	return parseClassification(chatResp.Choices[0].Message.Content, candidates)
}

func buildMessages(requestText string, candidates []Candidate) []chatMessage {
	var b strings.Builder
	b.WriteString("Available capabilities:\n")
	for _, cand := range candidates {
		fmt.Fprintf(&b, "- %s: %s. %s\n", cand.ID, cand.Label, cand.Description)
	}
	b.WriteString("\nRequest:\n")
	b.WriteString(requestText)

	return []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// parseClassification interprets the model's message content. A chosen id
// that is not in the candidate list counts as a malformed answer, not as a
// selection.
func parseClassification(content string, candidates []Candidate) Result {
	content = strings.TrimSpace(content)

	// Some backends wrap JSON in a fenced code block even in json_object
	// mode. Strip a single fence before parsing.
	content = stripFence(content)

	var cls classification
	if err := json.Unmarshal([]byte(content), &cls); err != nil {
		return Result{Outcome: OutcomeMalformed, Detail: fmt.Sprintf("parse classification: %s", err)}
	}

	if cls.CapabilityID == nil || *cls.CapabilityID == "" {
		return Result{Outcome: OutcomeUndecided, Detail: cls.Reason}
	}

	id := *cls.CapabilityID
	for _, cand := range candidates {
		if cand.ID == id {
			return Result{
				Outcome:      OutcomeChosen,
				CapabilityID: id,
				Rationale:    cls.Reason,
			}
		}
	}

	return Result{Outcome: OutcomeMalformed, Detail: fmt.Sprintf("model chose unknown capability %q", id)}
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func describeTransportError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err):
		return "backend did not answer within the timeout"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	default:
		return fmt.Sprintf("backend unreachable: %s", err)
	}
}
