package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"reelsync/config"
	"reelsync/describe"
	rshttp "reelsync/http"
	"reelsync/internal/history"
	"reelsync/internal/logging"
	"reelsync/internal/staging"
	"reelsync/pipeline"
	"reelsync/platform"
	"reelsync/platform/instagram"
	"reelsync/platform/tiktok"
	"reelsync/platform/youtube"
	"reelsync/transcribe"
	"reelsync/video"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	if len(argv) == 0 {
		printUsage()
		return 1
	}

	command := argv[0]
	args := argv[1:]

	switch command {
	case "upload":
		return cmdUpload(args)
	case "check-config":
		return cmdCheckConfig(args)
	case "history":
		return cmdHistory(args)
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		// a bare video path means upload
		return cmdUpload(argv)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `reelsync - publish a short vertical video to YouTube, Instagram and TikTok

Usage:
  reelsync upload [flags] <video>   Validate, describe and upload a video
  reelsync check-config [flags]     Show which platforms are ready
  reelsync history [flags]          List recent runs
  reelsync help                     Show this help message

Examples:
  reelsync clip.mp4                                   # Upload to every enabled platform
  reelsync upload --only-youtube clip.mp4             # YouTube only
  reelsync upload --skip-tiktok --title "Hi" clip.mp4 # Custom YouTube title
  reelsync upload --dry-run clip.mp4                  # Generate descriptions only
  reelsync upload --no-confirm clip.mp4               # Upload without review
  reelsync history --limit 5

For help on specific command: reelsync <command> -h
`)
}

// platformFlags registers --only-<platform> and --skip-<platform> for every
// platform.
type platformFlags struct {
	only map[platform.Target]*bool
	skip map[platform.Target]*bool
}

func registerPlatformFlags(fs *flag.FlagSet) *platformFlags {
	pf := &platformFlags{
		only: make(map[platform.Target]*bool),
		skip: make(map[platform.Target]*bool),
	}
	for _, t := range platform.All {
		pf.only[t] = fs.Bool("only-"+string(t), false, fmt.Sprintf("Upload to %s (combinable with other --only flags)", t.DisplayName()))
		pf.skip[t] = fs.Bool("skip-"+string(t), false, fmt.Sprintf("Do not upload to %s", t.DisplayName()))
	}
	return pf
}

// selection builds the pipeline selection. Naming a platform in both
// --only and --skip is a usage error.
func (pf *platformFlags) selection() (pipeline.Selection, error) {
	var sel pipeline.Selection
	for _, t := range platform.All {
		if *pf.only[t] {
			sel.Only = append(sel.Only, t)
		}
		if *pf.skip[t] {
			sel.Skip = append(sel.Skip, t)
		}
	}
	if err := sel.Validate(); err != nil {
		return pipeline.Selection{}, err
	}
	return sel, nil
}

func cmdUpload(args []string) int {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	pf := registerPlatformFlags(fs)
	title := fs.String("title", "", "YouTube title (default: generated)")
	dryRun := fs.Bool("dry-run", false, "Generate descriptions without uploading")
	preview := fs.Bool("preview", false, "Alias for --dry-run")
	noConfirm := fs.Bool("no-confirm", false, "Upload without reviewing the descriptions")
	verbose := fs.Bool("verbose", false, "Log debug output to the console")
	configFile := fs.String("config", "", "Config file (default: ./reelsync.yaml or ~/.config/reelsync/)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reelsync upload [flags] <video>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing video path\n")
		fs.Usage()
		return 2
	}

	sel, err := pf.selection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	cfg, err := config.Load(config.Options{ConfigFile: *configFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 2
	}
	if *verbose {
		cfg.Log.Verbose = true
	}

	log, err := logging.New(logging.Options{Dir: cfg.Log.Dir, Verbose: cfg.Log.Verbose})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return 2
	}
	defer log.Sync()

	app, err := newApp(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := pipeline.Request{
		VideoPath: argv[0],
		Title:     *title,
		Selection: sel,
		DryRun:    *dryRun || *preview,
	}
	if !*noConfirm {
		req.Confirm = newConfirmer(os.Stdin, os.Stderr).Confirm
	}

	if req.DryRun {
		fmt.Fprintf(os.Stderr, "Previewing %s...\n", req.VideoPath)
	} else {
		fmt.Fprintf(os.Stderr, "Uploading %s...\n", req.VideoPath)
	}
	report, err := app.orchestrator.Run(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	printReport(os.Stdout, report)
	return report.ExitCode()
}

// app holds everything a run needs.
type app struct {
	orchestrator *pipeline.Orchestrator
	uploaders    []platform.Uploader
	whisper      *transcribe.WhisperClient
	generator    *describe.OpenAIClient
	publisher    staging.Publisher
	history      *history.JSONStore
	clients      []*rshttp.Client
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{}
	client := func() *rshttp.Client {
		c := rshttp.New(rshttp.DefaultConfig())
		a.clients = append(a.clients, c)
		return c
	}

	prober := video.NewFFprobe()
	prober.Path = cfg.Tools.FFprobe
	validator := video.NewValidator(prober, log)

	ffmpeg := transcribe.NewFFmpeg()
	ffmpeg.Path = cfg.Tools.FFmpeg
	a.whisper = transcribe.NewWhisperClient(client(), transcribe.WhisperConfig{
		APIKey:   cfg.OpenAI.APIKey,
		BaseURL:  cfg.OpenAI.BaseURL,
		Model:    cfg.OpenAI.TranscriptionModel,
		Language: cfg.OpenAI.Language,
	}, ffmpeg, log)

	a.generator = describe.NewOpenAIClient(client(), describe.OpenAIConfig{
		APIKey:       cfg.OpenAI.APIKey,
		BaseURL:      cfg.OpenAI.BaseURL,
		Model:        cfg.OpenAI.ChatModel,
		SystemPrompt: cfg.OpenAI.SystemPrompt,
		Hashtags:     cfg.OpenAI.Hashtags,
	}, log)

	publisher, err := staging.New(cfg.Staging, log)
	switch {
	case errors.Is(err, staging.ErrNotConfigured):
		log.Debug("no staging configured, Instagram uploads will fail")
	case err != nil:
		return nil, fmt.Errorf("staging: %w", err)
	default:
		a.publisher = publisher
	}

	var igPublisher instagram.Publisher
	if a.publisher != nil {
		igPublisher = a.publisher
	}
	a.uploaders = []platform.Uploader{
		youtube.New(cfg.YouTube, log),
		instagram.New(cfg.Instagram, client(), igPublisher, log),
		tiktok.New(cfg.TikTok, client(), log),
	}

	deps := pipeline.Deps{
		Validator:   validator,
		Transcriber: a.whisper,
		Generator:   a.generator,
		Uploaders:   a.uploaders,
		Logger:      log,
	}
	if cfg.History.Enabled {
		a.history = history.NewJSONStore(cfg.History.Path, cfg.History.MaxRecords)
		deps.History = a.history
	}

	a.orchestrator, err = pipeline.New(cfg, deps)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	for _, c := range a.clients {
		c.Close()
	}
}

func printReport(out io.Writer, report *pipeline.Report) {
	if report == nil {
		return
	}

	if report.DryRun && len(report.Descriptions) > 0 {
		for _, t := range report.Descriptions.Targets() {
			d := report.Descriptions[t]
			fmt.Fprintf(out, "== %s ==\n", t.DisplayName())
			if d.Title != "" {
				fmt.Fprintf(out, "Title: %s\n", d.Title)
			}
			fmt.Fprintf(out, "%s\n\n", d.Text)
		}
	}

	if len(report.Outcomes) == 0 {
		return
	}
	if report.Declined {
		fmt.Fprintln(out, "Upload canceled.")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLATFORM\tSTATUS\tATTEMPTS\tRESULT")
	for _, o := range report.Outcomes {
		result := o.URL
		if result == "" {
			result = o.RemoteID
		}
		if o.Status != pipeline.StatusSucceeded {
			result = platform.Truncate(o.Detail(), 80)
		}
		attempts := ""
		if o.Attempts > 0 {
			attempts = fmt.Sprintf("%d", o.Attempts)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Target.DisplayName(), o.Status, attempts, result)
	}
	w.Flush()

	succeeded, failed, skipped := report.Counts()
	fmt.Fprintf(out, "\n%d succeeded, %d failed, %d skipped in %s\n",
		succeeded, failed, skipped, report.Duration().Round(time.Second))
}

func cmdCheckConfig(args []string) int {
	fs := flag.NewFlagSet("check-config", flag.ExitOnError)
	configFile := fs.String("config", "", "Config file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reelsync check-config [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, err := config.Load(config.Options{ConfigFile: *configFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 2
	}

	a, err := newApp(cfg, logging.Nop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	defer a.close()

	printConfigCheck(os.Stdout, cfg, a)
	return 0
}

func printConfigCheck(out io.Writer, cfg *config.Config, a *app) {
	if cfg.File != "" {
		fmt.Fprintf(out, "Config file: %s\n\n", cfg.File)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMPONENT\tENABLED\tCONFIGURED")
	for _, u := range a.uploaders {
		fmt.Fprintf(w, "%s\t%s\t%s\n", u.Target().DisplayName(), yesNo(cfg.Enabled(u.Target())), yesNo(u.IsConfigured()))
	}
	fmt.Fprintf(w, "OpenAI\t-\t%s\n", yesNo(a.whisper.IsConfigured() && a.generator.IsConfigured()))
	fmt.Fprintf(w, "Staging\t-\t%s\n", yesNo(cfg.StagingConfigured()))
	fmt.Fprintf(w, "History\t%s\t-\n", yesNo(cfg.History.Enabled))
	w.Flush()
}

func cmdHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 10, "Maximum runs to list (0 = all)")
	configFile := fs.String("config", "", "Config file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reelsync history [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg, err := config.Load(config.Options{ConfigFile: *configFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 2
	}

	store := history.NewJSONStore(cfg.History.Path, cfg.History.MaxRecords)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runs, err := store.List(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return 0
	}

	printHistory(os.Stdout, runs)
	return 0
}

func printHistory(out io.Writer, runs []*history.Record) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tVIDEO\tEXIT\tPLATFORMS")
	for _, r := range runs {
		var parts []string
		for _, o := range r.Outcomes {
			parts = append(parts, fmt.Sprintf("%s:%s", o.Target, o.Status))
		}
		if r.FailedStage != "" {
			parts = append(parts, "aborted at "+r.FailedStage)
		}
		if r.DryRun {
			parts = append(parts, "(dry run)")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			platform.Truncate(r.VideoPath, 50),
			r.ExitCode,
			strings.Join(parts, " "),
		)
	}
	w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
