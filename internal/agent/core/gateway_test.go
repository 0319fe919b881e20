package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/mohammad-safakhou/deepresearch/config"
)

type stubLLM struct {
	response   string
	err        error
	lastModel  string
	lastSystem string
	lastUser   string
}

func (s *stubLLM) Generate(ctx context.Context, model, system, user string) (string, int64, int64, error) {
	s.lastModel = model
	s.lastSystem = system
	s.lastUser = user
	if s.err != nil {
		return "", 0, 0, s.err
	}
	return s.response, 10, 20, nil
}

type stubEmailer struct {
	to, subject, body string
	err               error
}

func (s *stubEmailer) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	s.to, s.subject, s.body = to, subject, htmlBody
	if s.err != nil {
		return "", s.err
	}
	return "ses-msg-1", nil
}

func gatewayConfig() *config.Config {
	cfg := testConfig()
	cfg.LLM.Routing.Planner = "plan-model"
	return cfg
}

func TestInvokeClarifierParsesQuestions(t *testing.T) {
	llm := &stubLLM{response: `{"questions":["q1","q2","q3"]}`}
	gw := NewLLMGateway(gatewayConfig(), llm, nil, nil, nil)

	out, err := gw.Invoke(context.Background(), RoleClarifier, AgentInput{Text: "remote work"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(out.Questions) != 3 || out.Questions[1] != "q2" {
		t.Fatalf("unexpected questions: %v", out.Questions)
	}
	if llm.lastUser != "remote work" {
		t.Fatalf("prompt not forwarded: %q", llm.lastUser)
	}
}

func TestInvokePlannerRoutesModelAndParsesPlan(t *testing.T) {
	llm := &stubLLM{response: "```json\n{\"searches\":[{\"query\":\"a\",\"reason\":\"b\"}]}\n```"}
	gw := NewLLMGateway(gatewayConfig(), llm, nil, nil, nil)

	out, err := gw.Invoke(context.Background(), RolePlanner, AgentInput{Text: "Query: x"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(out.Plan.Searches) != 1 || out.Plan.Searches[0].Query != "a" {
		t.Fatalf("unexpected plan: %+v", out.Plan)
	}
	if llm.lastModel != "plan-model" {
		t.Fatalf("expected planner routing, got model %q", llm.lastModel)
	}
}

func TestInvokeSearcherFallsBackToDefaultModel(t *testing.T) {
	llm := &stubLLM{response: "plain text summary"}
	gw := NewLLMGateway(gatewayConfig(), llm, nil, nil, nil)

	out, err := gw.Invoke(context.Background(), RoleSearcher, AgentInput{Text: "Search: a\nReason: b"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Text != "plain text summary" {
		t.Fatalf("unexpected text: %q", out.Text)
	}
	if llm.lastModel != "gpt-4o-mini" {
		t.Fatalf("expected fallback model, got %q", llm.lastModel)
	}
}

func TestInvokeWriterParsesReport(t *testing.T) {
	llm := &stubLLM{response: `Here you go:
{"short_summary":"s","markdown_report":"# r","follow_up_questions":"f"}`}
	gw := NewLLMGateway(gatewayConfig(), llm, nil, nil, nil)

	out, err := gw.Invoke(context.Background(), RoleWriter, AgentInput{Text: "Original query: x"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Report.ShortSummary != "s" || out.Report.MarkdownReport != "# r" {
		t.Fatalf("unexpected report: %+v", out.Report)
	}
}

func TestInvokeWriterMalformedOutput(t *testing.T) {
	llm := &stubLLM{response: "sorry, I cannot help with that"}
	gw := NewLLMGateway(gatewayConfig(), llm, nil, nil, nil)

	if _, err := gw.Invoke(context.Background(), RoleWriter, AgentInput{Text: "x"}); err == nil {
		t.Fatalf("expected error for non-JSON writer output")
	}
}

func TestInvokeDeliveryComposesAndSends(t *testing.T) {
	llm := &stubLLM{response: `{"subject":"Research Report","html_body":"<h1>r</h1>"}`}
	emailer := &stubEmailer{}
	gw := NewLLMGateway(gatewayConfig(), llm, emailer, nil, nil)

	out, err := gw.Invoke(context.Background(), RoleDelivery, AgentInput{
		Text:      "Send the following research report as an email:...",
		Recipient: "reader@example.com",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Confirmation != "ses-msg-1" {
		t.Fatalf("unexpected confirmation: %q", out.Confirmation)
	}
	if emailer.to != "reader@example.com" || emailer.subject != "Research Report" || emailer.body != "<h1>r</h1>" {
		t.Fatalf("unexpected send: %+v", emailer)
	}
}

func TestInvokeDeliveryWithoutEmailer(t *testing.T) {
	llm := &stubLLM{response: `{"subject":"s","html_body":"b"}`}
	gw := NewLLMGateway(gatewayConfig(), llm, nil, nil, nil)

	if _, err := gw.Invoke(context.Background(), RoleDelivery, AgentInput{Recipient: "reader@example.com"}); err == nil {
		t.Fatalf("expected error when email delivery is not configured")
	}
}

func TestInvokeDeliverySendFailure(t *testing.T) {
	llm := &stubLLM{response: `{"subject":"s","html_body":"b"}`}
	emailer := &stubEmailer{err: fmt.Errorf("ses throttled")}
	gw := NewLLMGateway(gatewayConfig(), llm, emailer, nil, nil)

	if _, err := gw.Invoke(context.Background(), RoleDelivery, AgentInput{Recipient: "reader@example.com"}); err == nil {
		t.Fatalf("expected send failure to propagate")
	}
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose", `Sure: {"a":1} hope that helps`, `{"a":1}`},
		{"none", "no json here", ""},
	}
	for _, tc := range cases {
		if got := extractJSONObject(tc.in); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}
