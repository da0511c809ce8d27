package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/kerlexov/bugreport-go-sdk/pkg/bugreport"
	"github.com/kerlexov/bugreport-go-sdk/pkg/config"
	"github.com/kerlexov/bugreport-go-sdk/pkg/crash"
	"github.com/kerlexov/bugreport-go-sdk/pkg/issue"
	"github.com/kerlexov/bugreport-go-sdk/pkg/logging"
	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
)

func main() {
	var (
		action      = flag.String("action", "", "Action to perform: submit, flush, serve, crash, init")
		configPath  = flag.String("config", "", "Path to a YAML config file (default: BUGREPORT_CONFIG or ./bugreport.yaml)")
		title       = flag.String("title", "", "Issue title")
		description = flag.String("description", "", "Issue description")
		reportType  = flag.String("type", "bug", "Report type: bug, suggestion, question, crash")
		email       = flag.String("email", "", "Reporter email")
		logFile     = flag.String("logs", "", "File whose lines are attached as native logs")
		jsLogFile   = flag.String("js-logs", "", "File whose lines are attached as JavaScript logs")
		addr        = flag.String("addr", "", "Listen address for serve (overrides config)")
		force       = flag.Bool("force", false, "With -action=crash, trigger a test crash instead of printing the pending record")
		timeout     = flag.Duration("timeout", 30*time.Second, "Timeout for network operations")
	)
	flag.Parse()

	if *action == "" {
		fmt.Println("Usage: bugreport -action=<submit|flush|serve|crash|init> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *action == "init" {
		path := *configPath
		if path == "" {
			path = "./bugreport.yaml"
		}
		if err := config.DefaultConfig().SaveToFile(path); err != nil {
			fatal("Failed to write config: %v", err)
		}
		color.Green("Wrote default configuration to %s", path)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logging.Sync(logger)

	switch *action {
	case "submit":
		cfg.Crash.Enabled = false
		r := newReporter(cfg, logger)
		defer r.Close()

		if *logFile != "" {
			data, err := os.ReadFile(*logFile)
			if err != nil {
				fatal("Failed to read logs: %v", err)
			}
			r.Store().Writer(logstore.LevelLog).Write(data)
		}
		if *jsLogFile != "" {
			data, err := os.ReadFile(*jsLogFile)
			if err != nil {
				fatal("Failed to read JavaScript logs: %v", err)
			}
			r.AddJSLogs(string(data))
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()

		url, err := r.SubmitReport(ctx, issue.Form{
			Title:       *title,
			Email:       *email,
			Description: *description,
			Type:        issue.ReportType(*reportType),
		})
		if err != nil {
			fatal("Report not submitted: %v", err)
		}
		color.Green("Issue created: %s", url)

	case "flush":
		cfg.Crash.Enabled = false
		r := newReporter(cfg, logger)
		defer r.Close()

		records := r.Crash().Records()
		if !records.Exists() {
			color.Yellow("No pending crash record in %s", records.Dir())
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		if err := r.Crash().ResubmitPending(ctx); err != nil {
			fatal("Pending crash not submitted: %v", err)
		}
		color.Green("Pending crash submitted")

	case "serve":
		cfg.Diagnostics.Enabled = true
		if *addr != "" {
			cfg.Diagnostics.Addr = *addr
		}
		r := newReporter(cfg, logger)
		defer r.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		color.Cyan("Diagnostics listening on http://%s", cfg.Diagnostics.Addr)
		if err := r.Diagnostics().Serve(ctx, cfg.Diagnostics.Addr); err != nil {
			fatal("Diagnostics server error: %v", err)
		}
		color.Yellow("Shutting down")

	case "crash":
		if *force {
			cfg.Crash.Enabled = true
			r := newReporter(cfg, logger)
			r.Log("Forced crash requested from the command line")
			r.CrashNative()
			return
		}

		rec, err := crash.NewRecordStore(cfg.Crash.Dir).Load()
		if err != nil {
			fatal("Failed to read crash record: %v", err)
		}
		if rec == nil {
			color.Yellow("No pending crash record")
			return
		}
		out, _ := json.MarshalIndent(rec, "", "  ")
		color.Red("Pending crash: %s", rec.CrashType)
		fmt.Println(string(out))

	default:
		fatal("Unknown action %q", *action)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		os.Setenv("BUGREPORT_CONFIG", path)
	}
	return config.Load()
}

func newReporter(cfg *config.Config, logger *zap.Logger) *bugreport.Reporter {
	r, err := bugreport.New(cfg, bugreport.WithLogger(logger))
	if err != nil {
		fatal("Failed to start reporter: %v", err)
	}
	return r
}

func fatal(format string, args ...any) {
	color.Red(format, args...)
	os.Exit(1)
}
