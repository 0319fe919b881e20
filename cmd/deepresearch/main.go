package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/core"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/internal/email"
	srv "github.com/mohammad-safakhou/deepresearch/internal/server"
	openai "github.com/mohammad-safakhou/deepresearch/provider/openai"
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "deepresearch"}

	root.AddCommand(serveCMD(), clarifyCMD(), researchCMD())
	_ = root.Execute()
}

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			return srv.Run(cfg)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}

func clarifyCMD() *cobra.Command {
	var cfgPath string
	var query string
	var clarify = &cobra.Command{
		Use:   "clarify",
		Short: "Generate clarifying questions for a research query",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			gateway, err := buildGateway(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			stage := core.NewClarificationStage(gateway, nil)
			questions, err := stage.Clarify(cmd.Context(), query)
			if err != nil {
				return err
			}
			for i, q := range questions {
				fmt.Printf("Q%d: %s\n", i+1, q)
			}
			return nil
		},
	}
	clarify.Flags().StringVarP(&query, "query", "q", "", "research query")
	clarify.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	_ = clarify.MarkFlagRequired("query")

	return clarify
}

func researchCMD() *cobra.Command {
	var cfgPath string
	var query, recipient string
	var questions, answers []string
	var sendEmail bool
	var research = &cobra.Command{
		Use:   "research",
		Short: "Run the research pipeline and print the progress stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			gateway, err := buildGateway(ctx, cfg)
			if err != nil {
				return err
			}
			orch := core.NewOrchestrator(cfg, nil, nil, gateway)

			req := core.PipelineRequest{
				Query:          query,
				Questions:      questions,
				Answers:        answers,
				SendEmail:      sendEmail,
				RecipientEmail: recipient,
			}
			for ev := range orch.Run(ctx, req) {
				fmt.Println(ev)
			}
			return ctx.Err()
		},
	}
	research.Flags().StringVarP(&query, "query", "q", "", "research query")
	research.Flags().StringArrayVar(&questions, "question", nil, "clarifying question (repeatable)")
	research.Flags().StringArrayVar(&answers, "answer", nil, "answer to the matching question (repeatable)")
	research.Flags().BoolVar(&sendEmail, "send-email", false, "send the report via email")
	research.Flags().StringVar(&recipient, "email-to", "", "recipient email address")
	research.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	_ = research.MarkFlagRequired("query")

	return research
}

func buildGateway(ctx context.Context, cfg *config.Config) (core.AgentGateway, error) {
	llm := openai.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Temperature, cfg.LLM.MaxTokens, cfg.LLM.Timeout)

	var emailer core.EmailSender
	if cfg.Email.Enabled {
		sender, err := email.NewSESSender(ctx, cfg.Email.Region, cfg.Email.Sender)
		if err != nil {
			return nil, err
		}
		emailer = sender
	}

	var tele *telemetry.Telemetry
	if cfg.Telemetry.Enabled {
		tele = telemetry.NewTelemetry(nil)
	}

	logger := log.New(log.Writer(), "[GATEWAY] ", log.LstdFlags)
	return core.NewLLMGateway(cfg, llm, emailer, logger, tele), nil
}
