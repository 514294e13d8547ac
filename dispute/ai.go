package dispute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrAIEmptyResponse signals the backend returned no usable choice.
	ErrAIEmptyResponse = errors.New("dispute: ai backend returned empty response")
	// ErrNoJSONObject signals no balanced JSON object in the response text.
	ErrNoJSONObject = errors.New("dispute: no JSON object in ai response")
)

// ChatClient calls an opaque chat-completion HTTP endpoint. The response is
// free text expected to contain one JSON object somewhere inside it.
type ChatClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewChatClient builds a client with a bounded per-call timeout. The timeout
// is the strategy's whole budget: when it elapses the analysis abandons the
// AI path rather than waiting.
func NewChatClient(baseURL, apiKey, model string, temperature float64, timeout time.Duration) *ChatClient {
	return &ChatClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user exchange and returns the raw assistant text.
func (c *ChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("dispute: marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("dispute: build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("dispute: chat call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("dispute: chat call status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("dispute: decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", ErrAIEmptyResponse
	}
	return parsed.Choices[0].Message.Content, nil
}

// AIStrategy sends the normalized summary to the reasoning backend and parses
// a structured verdict out of its reply. Any failure is surfaced as an error
// so the composing FallbackStrategy can substitute the rule engine.
type AIStrategy struct {
	client *ChatClient
	rules  *RuleStrategy
}

// NewAIStrategy builds the AI-backed strategy. The rule engine supplies
// defaults for any field the model omits.
func NewAIStrategy(client *ChatClient, rules *RuleStrategy) *AIStrategy {
	return &AIStrategy{client: client, rules: rules}
}

// Name returns the persisted strategy identifier.
func (s *AIStrategy) Name() string { return StrategyAI }

const systemPrompt = `You are a dispute resolution analyst for a task marketplace.
You weigh evidence summaries and respond with a single JSON object:
{"risk_score": <0-100>, "confidence_score": <0-100>, "recommendation": "favor_giver"|"favor_doer"|"split"|"escalate"|"insufficient_evidence", "reasoning": "...", "inconsistencies": ["..."], "suggested_resolution": "..."}`

// Score builds a deterministic prompt from the summary, calls the backend,
// and extracts the first balanced JSON object from the reply.
func (s *AIStrategy) Score(ctx context.Context, summary EvidenceSummary) (Assessment, error) {
	text, err := s.client.Complete(ctx, systemPrompt, buildPrompt(summary))
	if err != nil {
		return Assessment{}, err
	}

	raw, ok := extractJSONObject(text)
	if !ok {
		return Assessment{}, ErrNoJSONObject
	}

	var verdict aiVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return Assessment{}, fmt.Errorf("dispute: parse ai verdict: %w", err)
	}

	return s.merge(summary, verdict), nil
}

// aiVerdict is the untrusted shape the model returns. Pointer fields detect
// omissions; every value is validated before it reaches an Assessment.
type aiVerdict struct {
	RiskScore           *float64 `json:"risk_score"`
	ConfidenceScore     *float64 `json:"confidence_score"`
	Recommendation      string   `json:"recommendation"`
	Reasoning           string   `json:"reasoning"`
	Inconsistencies     []string `json:"inconsistencies"`
	SuggestedResolution string   `json:"suggested_resolution"`
}

// merge overlays validated model output on rule-based defaults so a partial
// verdict never produces a half-populated assessment.
func (s *AIStrategy) merge(summary EvidenceSummary, v aiVerdict) Assessment {
	a := s.rules.assess(summary)
	a.Strategy = StrategyAI

	if v.RiskScore != nil && !math.IsNaN(*v.RiskScore) {
		a.RiskScore = clampScore(int(math.Round(*v.RiskScore)))
	}
	if v.ConfidenceScore != nil && !math.IsNaN(*v.ConfidenceScore) {
		a.ConfidenceScore = clampScore(int(math.Round(*v.ConfidenceScore)))
	}
	if rec := Recommendation(v.Recommendation); validRecommendation(rec) {
		a.Recommendation = rec
	}
	if v.Reasoning != "" {
		a.Reasoning = v.Reasoning
	}
	if v.SuggestedResolution != "" {
		a.SuggestedResolution = v.SuggestedResolution
	}

	seen := make(map[string]bool, len(a.Inconsistencies))
	for _, inc := range a.Inconsistencies {
		seen[inc] = true
	}
	for _, inc := range v.Inconsistencies {
		if inc != "" && !seen[inc] {
			a.Inconsistencies = append(a.Inconsistencies, inc)
			seen[inc] = true
		}
	}

	return a
}

func validRecommendation(r Recommendation) bool {
	switch r {
	case RecommendFavorGiver, RecommendFavorDoer, RecommendSplit, RecommendEscalate, RecommendInsufficientEvidence:
		return true
	default:
		return false
	}
}

// buildPrompt renders the summary as stable key: value lines. Only the
// normalized summary is embedded, never raw records: this bounds prompt size
// and keeps unrelated data out of the backend.
func buildPrompt(s EvidenceSummary) string {
	var b strings.Builder
	b.WriteString("Analyze this marketplace dispute and respond with the JSON object described in your instructions.\n\n")
	fmt.Fprintf(&b, "dispute_reason: %s\n", s.DisputeReason)
	fmt.Fprintf(&b, "dispute_details: %s\n", s.DisputeDetails)
	fmt.Fprintf(&b, "task_category: %s\n", s.TaskCategory)
	fmt.Fprintf(&b, "booking_status: %s\n", s.BookingStatus)
	fmt.Fprintf(&b, "dispute_evidence_count: %d\n", s.DisputeEvidenceCount)
	fmt.Fprintf(&b, "work_evidence_count: %d\n", s.WorkEvidenceCount)
	fmt.Fprintf(&b, "checkin_count: %d\n", s.CheckinCount)
	fmt.Fprintf(&b, "task_started: %t\n", s.TaskStarted)
	fmt.Fprintf(&b, "task_completed: %t\n", s.TaskCompleted)
	fmt.Fprintf(&b, "locations_verified: %d\n", s.LocationsVerified)
	fmt.Fprintf(&b, "checklist: %d total, %d approved, %d rejected, %d pending, %d requiring photo proof\n",
		s.ChecklistTotal, s.ChecklistApproved, s.ChecklistRejected, s.ChecklistPending, s.PhotoProofRequired)
	fmt.Fprintf(&b, "audit_event_count: %d\n", s.AuditEventCount)
	fmt.Fprintf(&b, "giver_profile: %s\n", renderParty(s.Giver))
	fmt.Fprintf(&b, "doer_profile: %s\n", renderParty(s.Doer))
	return b.String()
}

func renderParty(p PartySummary) string {
	trust := "unknown"
	if p.TrustScore != nil {
		trust = fmt.Sprintf("%d", *p.TrustScore)
	}
	rating := "unknown"
	if p.Rating != nil {
		rating = fmt.Sprintf("%.1f", *p.Rating)
	}
	completed := "unknown"
	if p.CompletedTasks != nil {
		completed = fmt.Sprintf("%d", *p.CompletedTasks)
	}
	return fmt.Sprintf("trust=%s rating=%s completed_tasks=%s", trust, rating, completed)
}

// extractJSONObject returns the first balanced {...} span in text, tolerating
// conversational wrappers and code fences around it. String literals are
// honored so braces inside quoted values do not break the balance count.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
