package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
)

// LLM is the contract for the chat completion backend behind the gateway.
type LLM interface {
	Generate(ctx context.Context, model, system, user string) (string, int64, int64, error)
}

// EmailSender sends a composed report email and returns a provider message id.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) (string, error)
}

// LLMGateway implements AgentGateway by routing each role to a configured
// model with a role-specific instruction, and parsing the role's output shape.
// The delivery role additionally sends the composed email through the
// configured EmailSender.
type LLMGateway struct {
	cfg       *config.Config
	llm       LLM
	emailer   EmailSender
	logger    *log.Logger
	telemetry *telemetry.Telemetry
}

// NewLLMGateway creates a gateway over the given LLM backend. emailer may be
// nil when report delivery is disabled; invoking the delivery role then fails.
func NewLLMGateway(cfg *config.Config, llm LLM, emailer EmailSender, logger *log.Logger, tele *telemetry.Telemetry) *LLMGateway {
	if logger == nil {
		logger = log.New(log.Writer(), "[GATEWAY] ", log.LstdFlags)
	}
	return &LLMGateway{cfg: cfg, llm: llm, emailer: emailer, logger: logger, telemetry: tele}
}

func (g *LLMGateway) clarifierInstructions() string {
	return fmt.Sprintf(`You are a research assistant. Your task is to ask %d clarifying questions that help refine and understand a research query better.

RESPONSE FORMAT:
Respond ONLY with valid JSON in the following format:
{"questions": ["question 1", "question 2", "question 3"]}
Do not include any other text or explanation.`, g.cfg.Research.NumClarifyQuestions)
}

func (g *LLMGateway) plannerInstructions() string {
	return fmt.Sprintf(`You are a helpful research assistant. Given a query, come up with a set of web searches to perform to best answer the query. Output %d terms to query for.

RESPONSE FORMAT:
Respond ONLY with valid JSON in the following format:
{"searches": [{"query": "search term", "reason": "why this search matters"}]}
Do not include any other text or explanation.`, g.cfg.Research.NumSearches)
}

const searcherInstructions = `You are a research assistant. Given a search term and the reason it matters, produce a concise summary of what the web currently says about it. Capture the main points in 2-3 paragraphs of plain text. Respond with the summary only.`

const writerInstructions = `You are a senior researcher writing a cohesive report for a research query. You will be provided with the original query and summarized search results.

RESPONSE FORMAT:
Respond ONLY with valid JSON in the following format:
{"short_summary": "2-3 sentence summary of the findings", "markdown_report": "the full report in markdown", "follow_up_questions": "suggested topics to research further"}
Do not include any other text or explanation.`

const deliveryInstructions = `You are able to compose a nicely formatted HTML email based on a detailed report. You will be provided with a detailed report. Compose one email with an appropriate subject line, providing the report as HTML.

RESPONSE FORMAT:
Respond ONLY with valid JSON in the following format:
{"subject": "email subject", "html_body": "email body as HTML"}
Do not include any other text or explanation.`

// Invoke calls the remote role and parses its output shape.
func (g *LLMGateway) Invoke(ctx context.Context, role Role, input AgentInput) (AgentOutput, error) {
	model := g.cfg.LLM.Routing.Model(string(role))

	switch role {
	case RoleClarifier:
		raw, err := g.generate(ctx, role, model, g.clarifierInstructions(), input.Text)
		if err != nil {
			return AgentOutput{}, err
		}
		var out struct {
			Questions []string `json:"questions"`
		}
		if err := unmarshalAgentJSON(raw, &out); err != nil {
			return AgentOutput{}, fmt.Errorf("clarifier output: %w", err)
		}
		return AgentOutput{Questions: out.Questions}, nil

	case RolePlanner:
		raw, err := g.generate(ctx, role, model, g.plannerInstructions(), input.Text)
		if err != nil {
			return AgentOutput{}, err
		}
		var plan SearchPlan
		if err := unmarshalAgentJSON(raw, &plan); err != nil {
			return AgentOutput{}, fmt.Errorf("planner output: %w", err)
		}
		return AgentOutput{Plan: plan}, nil

	case RoleSearcher:
		raw, err := g.generate(ctx, role, model, searcherInstructions, input.Text)
		if err != nil {
			return AgentOutput{}, err
		}
		return AgentOutput{Text: raw}, nil

	case RoleWriter:
		raw, err := g.generate(ctx, role, model, writerInstructions, input.Text)
		if err != nil {
			return AgentOutput{}, err
		}
		var report Report
		if err := unmarshalAgentJSON(raw, &report); err != nil {
			return AgentOutput{}, fmt.Errorf("writer output: %w", err)
		}
		return AgentOutput{Report: report}, nil

	case RoleDelivery:
		if g.emailer == nil {
			return AgentOutput{}, fmt.Errorf("email delivery is not configured")
		}
		raw, err := g.generate(ctx, role, model, deliveryInstructions, input.Text)
		if err != nil {
			return AgentOutput{}, err
		}
		var mail struct {
			Subject  string `json:"subject"`
			HTMLBody string `json:"html_body"`
		}
		if err := unmarshalAgentJSON(raw, &mail); err != nil {
			return AgentOutput{}, fmt.Errorf("delivery output: %w", err)
		}
		msgID, err := g.emailer.Send(ctx, input.Recipient, mail.Subject, mail.HTMLBody)
		if err != nil {
			return AgentOutput{}, fmt.Errorf("sending email: %w", err)
		}
		g.logger.Printf("email sent to %s (message id %s)", input.Recipient, msgID)
		return AgentOutput{Confirmation: msgID}, nil

	default:
		return AgentOutput{}, fmt.Errorf("unknown agent role: %s", role)
	}
}

func (g *LLMGateway) generate(ctx context.Context, role Role, model, system, user string) (string, error) {
	content, inTok, outTok, err := g.llm.Generate(ctx, model, system, user)
	if g.telemetry != nil {
		g.telemetry.RecordAgentCall(string(role), inTok, outTok, err)
	}
	if err != nil {
		return "", err
	}
	return content, nil
}

// unmarshalAgentJSON decodes a JSON object from model output, tolerating
// markdown code fences and surrounding prose.
func unmarshalAgentJSON(raw string, v interface{}) error {
	payload := extractJSONObject(raw)
	if payload == "" {
		return fmt.Errorf("no JSON object in output")
	}
	return json.Unmarshal([]byte(payload), v)
}

func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
