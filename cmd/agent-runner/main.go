package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cnap-oss/agent-runner/internal/client"
	"github.com/cnap-oss/agent-runner/internal/common"
	"github.com/cnap-oss/agent-runner/internal/connector"
	"github.com/cnap-oss/agent-runner/internal/controller"
	"github.com/cnap-oss/agent-runner/internal/provider"
	"github.com/cnap-oss/agent-runner/internal/storage"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 종료 시 진행 중인 요청과 제공자 호출을 기다리는 시간
const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var agentURL string

	rootCmd := &cobra.Command{
		Use:           "agent-runner",
		Short:         "A2A agent runner",
		Long:          `agent-runner는 LLM 제공자를 감싸는 단일 A2A 에이전트 프로세스를 실행하고 관리합니다.`,
		Version:       fmt.Sprintf("%s (built at %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&agentURL, "url", "http://localhost:9000", "에이전트 주소 (health, card, task 명령어)")

	// serve 명령어
	var configPath string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent process",
		Long:  `설정을 로드하고 A2A HTTP 서버를 시작합니다. listen 준비가 끝나면 표준 출력에 AGENT_READY를 기록합니다.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML 설정 파일 경로 (기본값: $AGENT_CONFIG)")

	// health 명령어
	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check agent health status",
		Long:  `실행 중인 에이전트의 /health 응답을 출력합니다.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			health, err := client.New(agentURL).Health(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), health)
		},
	}

	// card 명령어
	cardCmd := &cobra.Command{
		Use:   "card",
		Short: "Show the agent card",
		Long:  `실행 중인 에이전트의 A2A 에이전트 카드를 출력합니다.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			card, err := client.New(agentURL).AgentCard(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), card)
		},
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(cardCmd)
	rootCmd.AddCommand(buildTaskCommands(&agentURL))

	return rootCmd
}

// runServe는 에이전트 프로세스를 시작하고 종료 신호를 기다립니다.
func runServe(configPath string) error {
	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := common.NewLoggerWithConfig("agent-runner", cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	kind, known := provider.ParseKind(cfg.Agent.Provider)
	for _, warning := range cfg.Warnings(known) {
		logger.Warn(warning)
	}

	printBanner(os.Stderr, cfg)
	logger.Info("Starting agent runner",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("agent", cfg.Agent.Name),
		zap.String("provider", string(kind)),
		zap.String("store", cfg.Store.Driver),
	)

	store, err := storage.NewStore(cfg.Store, logger.Named("storage"))
	if err != nil {
		logger.Error("Failed to initialize storage", zap.Error(err))
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close storage", zap.Error(err))
		}
	}()

	completer := provider.NewClient(
		provider.New(provider.Config{
			Provider:  cfg.Agent.Provider,
			Model:     cfg.Agent.Model,
			APIKey:    cfg.Agent.APIKey,
			Endpoint:  cfg.Agent.APIEndpoint,
			MaxTokens: cfg.Runner.MaxTokens,
		}),
		provider.WithTimeout(cfg.Runner.Timeout),
		provider.WithLogger(logger.Named("provider")),
	)

	ctrl, err := controller.NewController(logger.Named("controller"), controller.ConfigFromCommon(cfg), store, completer)
	if err != nil {
		return err
	}
	srv := connector.NewServer(logger.Named("connector"), cfg.Agent, ctrl, ctrl,
		connector.WithShutdownTimeout(shutdownTimeout),
	)

	// Graceful shutdown을 위한 signal 처리
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := srv.Start(ctx)
	if serveErr != nil {
		logger.Error("Server error", zap.Error(serveErr))
	}

	// 남아있는 제공자 호출 정리
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ctrl.Stop(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}

	logger.Info("Agent runner stopped")
	return serveErr
}

// printBanner는 사람이 읽는 시작 배너를 w에 출력합니다.
func printBanner(w io.Writer, cfg *common.Config) {
	title := color.New(color.FgCyan, color.Bold)
	_, _ = title.Fprintf(w, "Agent %s starting on port %d\n", cfg.Agent.Name, cfg.Agent.Port)
	fmt.Fprintf(w, "  Model:   %s\n", cfg.Agent.ModelLabel())
	fmt.Fprintf(w, "  Kitchen: %s\n", cfg.Agent.Kitchen)
	fmt.Fprintf(w, "  PID:     %d\n", os.Getpid())
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
