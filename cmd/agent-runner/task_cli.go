package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cnap-oss/agent-runner/internal/a2a"
	"github.com/cnap-oss/agent-runner/internal/client"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func buildTaskCommands(agentURL *string) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Task 관리 명령어",
		Long:  "실행 중인 에이전트에 A2A JSON-RPC로 Task 전송, 조회, 취소 기능을 제공합니다.",
	}

	// task send
	var sendID string
	var sendTimeout time.Duration
	taskSendCmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Task 전송",
		Long:  "메시지로 새 Task를 전송하고 완료될 때까지 기다립니다. --id를 생략하면 에이전트가 ID를 생성합니다.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
			defer cancel()

			task, err := client.New(*agentURL, client.WithTimeout(sendTimeout)).
				SendTask(ctx, sendID, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("Task 전송 실패: %w", err)
			}
			printTask(cmd.OutOrStdout(), task)
			return nil
		},
	}
	taskSendCmd.Flags().StringVar(&sendID, "id", "", "Task ID")
	taskSendCmd.Flags().DurationVar(&sendTimeout, "timeout", client.DefaultTimeout, "응답 대기 시간")

	// task get
	var historyLength int
	taskGetCmd := &cobra.Command{
		Use:   "get <task-id>",
		Short: "Task 상세 정보 조회",
		Long:  "Task의 상태, 결과, 이력을 조회합니다. --history로 최근 N개 이력만 볼 수 있습니다.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			task, err := client.New(*agentURL).GetTask(ctx, args[0], historyLength)
			if err != nil {
				return fmt.Errorf("Task 조회 실패: %w", err)
			}
			printTask(cmd.OutOrStdout(), task)
			return nil
		},
	}
	taskGetCmd.Flags().IntVar(&historyLength, "history", 0, "최근 이력 개수 (0이면 전체)")

	// task cancel
	taskCancelCmd := &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Task 취소",
		Long:  "Task를 canceled 상태로 변경합니다. 진행 중인 제공자 호출의 결과는 버려집니다.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			task, err := client.New(*agentURL).CancelTask(ctx, args[0])
			if err != nil {
				return fmt.Errorf("Task 취소 실패: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Task '%s' %s\n", task.ID, stateText(task.Status.State))
			return nil
		},
	}

	taskCmd.AddCommand(taskSendCmd)
	taskCmd.AddCommand(taskGetCmd)
	taskCmd.AddCommand(taskCancelCmd)

	return taskCmd
}

// printTask는 Task를 사람이 읽는 형식으로 출력합니다.
func printTask(out io.Writer, task *a2a.Task) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", task.ID)
	fmt.Fprintf(w, "State:\t%s\n", stateText(task.Status.State))
	if task.Status.Timestamp != "" {
		fmt.Fprintf(w, "Updated:\t%s\n", task.Status.Timestamp)
	}
	if task.Status.Message != nil {
		fmt.Fprintf(w, "Message:\t%s\n", messageText(*task.Status.Message))
	}
	if text := task.FirstArtifactText(); text != "" {
		fmt.Fprintf(w, "Result:\t%s\n", text)
	}
	_ = w.Flush()

	if len(task.History) == 0 {
		return
	}

	fmt.Fprintln(out, "\nHistory:")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ROLE\tTEXT")
	for _, msg := range task.History {
		fmt.Fprintf(w, "  %s\t%s\n", msg.Role, truncateString(messageText(msg), 80))
	}
	_ = w.Flush()
}

func stateText(state a2a.TaskState) string {
	switch state {
	case a2a.TaskStateCompleted:
		return color.GreenString(string(state))
	case a2a.TaskStateFailed:
		return color.RedString(string(state))
	case a2a.TaskStateCanceled:
		return color.YellowString(string(state))
	default:
		return color.CyanString(string(state))
	}
}

func messageText(msg a2a.Message) string {
	var b strings.Builder
	for _, p := range msg.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func truncateString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
