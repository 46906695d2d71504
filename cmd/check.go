package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/reply-tracker/internal/directive"
	"github.com/spigell/reply-tracker/internal/logger"
	"github.com/spigell/reply-tracker/internal/mail"
	"github.com/spigell/reply-tracker/internal/tracker"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Classify a single message and record the result",
	Long: "Classify the latest message of a stream's mailbox, or the text of --message-file, " +
		"and apply the answer to the tracking document once.",
	Run: func(cmd *cobra.Command, _ []string) {
		check(cmd)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringP("stream", "s", "", "stream to check (default is the first configured one)")
	checkCmd.Flags().StringP("message-file", "m", "", "classify the text of this file instead of the mailbox")
	checkCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before updating the document")
	checkCmd.Flags().Bool("no-notify", false, "do not deliver the note of the answer")
}

func check(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	streamName, _ := cmd.Flags().GetString("stream")
	cfg, err := findStream(config, streamName)
	if err != nil {
		logger.Fatal("selecting stream", zap.Error(err))
	}

	classifier, instruction, err := newClassifier(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building classifier", zap.Error(err))
	}

	opts := streamOptions{}
	opts.noNotify, _ = cmd.Flags().GetBool("no-notify")

	if path, _ := cmd.Flags().GetString("message-file"); path != "" {
		opts.source = &mail.FileSource{Path: path}
	}

	if approve, _ := cmd.Flags().GetBool("auto-approve"); !approve {
		opts.confirm = confirmDirective
	}

	s, err := newStream(config, cfg, classifier, instruction, opts, logger)
	if err != nil {
		logger.Fatal("preparing stream", zap.Error(err))
	}
	defer s.Close()

	message, err := s.source.FetchLatestInboundText(ctx)
	if err != nil {
		logger.Fatal("fetching message", zap.Error(err))
	}

	result, err := s.tracker.Process(ctx, message)
	if err != nil {
		logger.Fatal("processing message", zap.Error(err))
	}

	report(result)
}

// confirmDirective shows the answer and asks before the document is touched.
func confirmDirective(_ context.Context, d directive.Directive, answer string) (bool, error) {
	fmt.Printf("Model answer:\n%s\n\n", answer)
	fmt.Printf("Update: %s\n", d)

	return promptConfirm("Apply the update?")
}

func promptConfirm(label string) (bool, error) {
	prompt := promptui.Select{
		Label: label,
		Items: []string{PromptYes, PromptNo},
	}

	_, action, err := prompt.Run()
	if err != nil {
		return false, err
	}

	return action == PromptYes, nil
}

func report(result tracker.Result) {
	fmt.Printf("status: %s\n", result.Status)
	if result.Directive != nil {
		fmt.Printf("directive: %s\n", result.Directive)
	}
	if result.Applied {
		fmt.Println("tracking document updated")
	}
	if result.Notified {
		fmt.Println("note delivered")
	}
}
