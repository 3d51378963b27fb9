// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Scamscan CLI
//
// Scans a single URL, e-mail address, file or block of text from the
// terminal and prints the verdict the mobile client would show.
//
// Usage:
//
//	go run ./cmd/scamscan/ --url http://cpf-update.xyz
//	go run ./cmd/scamscan/ --email alerts@bank-secure.co.uk
//	go run ./cmd/scamscan/ --file invoice.pdf [--mime application/pdf]
//	echo "Your parcel is held: http://dhl-fees.top" | go run ./cmd/scamscan/ --text -
//
// Exit status is 0 when nothing suspicious was found, 2 when something was
// flagged and 1 on error.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"

	"github.com/phishnchips/scamscan/internal/analysis"
	"github.com/phishnchips/scamscan/internal/config"
	"github.com/phishnchips/scamscan/internal/history"
	"github.com/phishnchips/scamscan/internal/models"
	"github.com/phishnchips/scamscan/internal/scanner"
	"github.com/phishnchips/scamscan/internal/textscan"
	"github.com/phishnchips/scamscan/internal/verdict"
)

const (
	exitOK         = 0
	exitError      = 1
	exitSuspicious = 2
)

var (
	red    = color.New(color.FgRed, color.Bold)
	green  = color.New(color.FgGreen, color.Bold)
	yellow = color.New(color.FgYellow)
	faint  = color.New(color.Faint)
)

func main() {
	os.Exit(run())
}

func run() int {
	// --- CLI Flags ---
	urlFlag := flag.String("url", "", "URL or bare domain to scan")
	emailFlag := flag.String("email", "", "E-mail address to scan")
	fileFlag := flag.String("file", "", "Path of a file to upload and scan")
	mimeFlag := flag.String("mime", "", "MIME type of --file (default application/octet-stream)")
	textFlag := flag.String("text", "", `Text to scan for URLs and e-mail addresses ("-" reads stdin)`)
	historyFlag := flag.String("history", "", "Record verdicts in this SQLite file (optional)")
	quietFlag := flag.Bool("quiet", false, "Suppress the banner and progress output")
	verboseFlag := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verboseFlag {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	set := 0
	for _, v := range []string{*urlFlag, *emailFlag, *fileFlag, *textFlag} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		fmt.Fprintf(os.Stderr, "Error: exactly one of --url, --email, --file or --text is required\n\n")
		flag.Usage()
		return exitError
	}

	if !*quietFlag {
		printBanner()
	}

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := analysis.NewClient(analysis.NewHTTPClient(ctx, cfg.Analysis), analysis.OptionsFromConfig(cfg.Analysis))
	policy := verdict.NewPolicy(cfg.SuspiciousRatio)

	var verifier scanner.Verifier
	if cfg.Verifier.APIKey != "" {
		verifier = scanner.NewEmailVerifier(nil, cfg.Verifier.BaseURL, cfg.Verifier.APIKey)
	}
	urls := scanner.NewURLScanner(client, policy)
	emails := scanner.NewEmailScanner(client, policy, verifier)

	var store history.Store
	if *historyFlag != "" {
		s, err := history.OpenSQLite(ctx, *historyFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
		defer s.Close()
		store = s
	}

	var progress func(models.ScanEvent)
	if !*quietFlag {
		progress = printEvent
	}
	// The scanners set the user-facing message on failure too.
	var message string
	obs := scanner.Observer{
		OnMessage: func(msg string) { message = msg },
		OnEvent:   progress,
	}

	switch {
	case *urlFlag != "":
		v, err := urls.Scan(ctx, *urlFlag, obs)
		return finish(ctx, store, v, message, err)

	case *emailFlag != "":
		v, err := emails.Scan(ctx, *emailFlag, obs)
		return finish(ctx, store, v, message, err)

	case *fileFlag != "":
		f, err := os.Open(*fileFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
		defer f.Close()

		in := scanner.FileInput{Name: filepath.Base(*fileFlag), MIMEType: *mimeFlag, Content: f}
		v, err := scanner.NewFileScanner(client, policy).Scan(ctx, in, obs)
		return finish(ctx, store, v, message, err)

	default:
		text := *textFlag
		if text == "-" {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: read stdin: %v\n", err)
				return exitError
			}
			text = string(b)
		}

		orch := textscan.New(urls, emails, textscan.Options{Concurrency: cfg.TextScanConcurrency})
		report, err := orch.Scan(ctx, text, textscan.TextObserver{OnEvent: progress})
		return finishText(ctx, store, report, err)
	}
}

func finish(ctx context.Context, store history.Store, v *models.Verdict, message string, err error) int {
	if err != nil {
		yellow.Fprintln(os.Stdout, message)
		faint.Fprintf(os.Stderr, "%v\n", err)
		return exitError
	}

	record(ctx, store, v)
	if v.IsSuspicious() {
		red.Fprintln(os.Stdout, v.Message)
		return exitSuspicious
	}
	green.Fprintln(os.Stdout, v.Message)
	return exitOK
}

func finishText(ctx context.Context, store history.Store, report *textscan.Report, err error) int {
	if report == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	for _, res := range report.Results {
		record(ctx, store, res.Verdict)
	}

	if report.ScamMessage != "" {
		red.Fprintln(os.Stdout, report.ScamMessage)
	}
	if report.TrustedMessage != "" {
		green.Fprintln(os.Stdout, report.TrustedMessage)
	}
	if report.UncheckedMessage != "" {
		yellow.Fprintln(os.Stdout, report.UncheckedMessage)
	}

	switch {
	case report.Suspicious():
		return exitSuspicious
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	default:
		return exitOK
	}
}

func record(ctx context.Context, store history.Store, v *models.Verdict) {
	if store == nil || v == nil {
		return
	}
	if err := store.Record(context.WithoutCancel(ctx), history.FromVerdict(v)); err != nil {
		slog.Warn("failed to record scan history", "subject", v.Subject, "error", err)
	}
}

func printEvent(ev models.ScanEvent) {
	switch ev.Type {
	case models.EventStarted:
		faint.Fprintf(os.Stderr, "scanning %s\n", ev.Subject)
	case models.EventSubmitted:
		faint.Fprintf(os.Stderr, "  submitted %s (job %s)\n", ev.Subject, ev.JobID)
	case models.EventPolling:
		faint.Fprintf(os.Stderr, "  waiting for %s (%d/%d)\n", ev.Subject, ev.Attempt, ev.MaxAttempts)
	case models.EventFailed:
		yellow.Fprintf(os.Stderr, "  %s: %s\n", ev.Subject, ev.Reason)
	}
}

func printBanner() {
	figure.NewColorFigure("SCAMSCAN", "doom", "red", true).Print()

	cyan := color.New(color.FgCyan)
	_, _ = cyan.Fprintln(os.Stderr, "════════════════════════════════════════════════")
}
