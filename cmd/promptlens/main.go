package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saikrishnan/promptlens/internal/analyzer"
	"github.com/saikrishnan/promptlens/internal/config"
)

// Exit codes: automation needs to tell "nothing is configured" apart from a
// transient runtime failure.
const (
	exitRuntimeError = 1
	exitNoProvider   = 2
)

func main() {
	var (
		file     string
		date     string
		noCache  bool
		priority string
		verbose  bool
	)

	root := &cobra.Command{
		Use:   "promptlens",
		Short: "Analyze your AI assistant prompts for recurring weaknesses",
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run an analysis over a list of prompts",
		Long: "Reads prompts from --file (a JSON array, or line-delimited text) or stdin,\n" +
			"delegates the judgment to the first available provider, and prints the\n" +
			"merged report as JSON on stdout.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(file, date, noCache, priority, verbose)
		},
	}

	analyzeCmd.Flags().StringVarP(&file, "file", "f", "", "prompt list file (JSON array or one prompt per line); defaults to stdin")
	analyzeCmd.Flags().StringVarP(&date, "date", "d", time.Now().Format("2006-01-02"), "date the prompts were written")
	analyzeCmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the result cache")
	analyzeCmd.Flags().StringVar(&priority, "providers", "", "comma-separated provider priority override (e.g. ollama,openai)")
	analyzeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(analyzeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(exitRuntimeError)
	}
}

func runAnalyze(file, date string, noCache bool, priority string, verbose bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := buildLogger(verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	prompts, err := readPrompts(file)
	if err != nil {
		return err
	}

	opts := analyzer.Options{
		NoCache: noCache,
		OnFallback: func(from, to string) {
			fmt.Fprintf(os.Stderr, "%s unavailable, trying %s\n", from, to)
		},
		OnProgress: func(i, total int) {
			fmt.Fprintf(os.Stderr, "batch %d/%d done\n", i+1, total)
		},
	}

	if priority != "" {
		for _, part := range strings.Split(priority, ",") {
			pt, err := config.ParseProviderType(part)
			if err != nil {
				return err
			}
			opts.ProviderPriority = append(opts.ProviderPriority, pt)
		}
	}

	orch, err := analyzer.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := orch.RunAnalysis(ctx, prompts, date, opts)
	if err != nil {
		var unavailable *analyzer.ProviderUnavailableError
		var confErr *analyzer.ConfigurationError
		if errors.As(err, &unavailable) || errors.As(err, &confErr) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitNoProvider)
		}
		// A cancelled run can still carry the partial report.
		if result == nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "analysis interrupted, partial report follows: %v\n", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// readPrompts accepts either a JSON string array or line-delimited text.
func readPrompts(file string) ([]string, error) {
	var data []byte
	var err error

	if file == "" {
		data, err = readAllStdin()
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var prompts []string
		if err := json.Unmarshal([]byte(trimmed), &prompts); err != nil {
			return nil, fmt.Errorf("parse prompt list: %w", err)
		}
		return prompts, nil
	}

	var prompts []string
	for _, line := range strings.Split(trimmed, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			prompts = append(prompts, line)
		}
	}
	return prompts, nil
}

func readAllStdin() ([]byte, error) {
	var sb strings.Builder
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}
