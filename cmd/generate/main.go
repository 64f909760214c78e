package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rodinstudio/internal/domain"
	"rodinstudio/internal/i18n"
	"rodinstudio/internal/infra"
	"rodinstudio/internal/infra/credentials"
	"rodinstudio/internal/orchestrator"
	"rodinstudio/internal/providers/rodin"
	"rodinstudio/internal/transport"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code so deferred cleanup always runs before
// main exits.
func run(args []string, stdout, stderr io.Writer) int {
	var (
		images  stringList
		prompt  string
		out     string
		locale  string
		timeout time.Duration
		opts    = domain.DefaultOptions()
	)
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Var(&images, "image", "input image path (repeatable, up to 5)")
	fs.StringVar(&prompt, "prompt", "", "text prompt")
	fs.StringVar(&out, "out", "", "write the generated model to this path")
	fs.StringVar(&locale, "locale", i18n.LocaleEnglish, "message locale (en or km)")
	fs.DurationVar(&timeout, "timeout", 15*time.Minute, "give up after this long")
	fs.StringVar(&opts.ConditionMode, "condition-mode", opts.ConditionMode, "concat or fuse")
	fs.StringVar(&opts.Quality, "quality", opts.Quality, "high, medium, low or extra-low")
	fs.StringVar(&opts.FileFormat, "format", opts.FileFormat, "glb, usdz, fbx, obj or stl")
	fs.StringVar(&opts.Material, "material", opts.Material, "PBR or Shaded")
	fs.StringVar(&opts.Tier, "tier", opts.Tier, "Regular or Sketch")
	fs.BoolVar(&opts.UseHyper, "hyper", opts.UseHyper, "enable hyper mode")
	fs.BoolVar(&opts.TAPose, "tapose", opts.TAPose, "force a T/A pose")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	fail := func(err error) int {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	sub := domain.Submission{Prompt: prompt, Options: opts}
	for _, p := range images {
		img, err := loadImage(p)
		if err != nil {
			return fail(err)
		}
		sub.Images = append(sub.Images, img)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fail(err)
	}
	logger := infra.NewLogger("cli", cfg.LogLevel).With().Str("cmd", "generate").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	keys, closeDB := keySource(ctx, cfg, logger)
	defer closeDB()

	client := rodin.NewClient(rodin.Options{Keys: keys, BaseURL: cfg.RodinBaseURL, Logger: &logger})
	session := orchestrator.NewSession("cli", orchestrator.Deps{
		Transport: transport.NewAdapter(client, transport.Options{
			SubmitTimeout:  cfg.SubmitTimeout,
			ResolveTimeout: cfg.ResolveTimeout,
			Logger:         &logger,
		}),
		Config: orchestrator.Config{
			PollInterval:    cfg.PollInterval,
			MaxPollDuration: cfg.PollMaxDuration,
			Locale:          locale,
		},
		Logger: &logger,
	})
	defer session.Close()

	updates, unsubscribe := session.Subscribe()
	defer unsubscribe()

	if _, err := session.Submit(sub, locale); err != nil {
		return fail(errors.New(i18n.UserError(locale, err).Message))
	}

	snap, err := follow(ctx, stdout, updates)
	if err != nil {
		return fail(err)
	}
	if snap.State == orchestrator.StateFailed {
		msg := "generation failed"
		if snap.Error != nil {
			msg = snap.Error.Message
		}
		return fail(errors.New(msg))
	}

	fmt.Fprintf(stdout, "ready: %s\n", snap.DownloadURL)
	for _, f := range snap.Files {
		fmt.Fprintf(stdout, "  %s\t%s\n", f.Name, f.URL)
	}
	if out != "" {
		if err := save(ctx, client, snap.DownloadURL, out); err != nil {
			return fail(err)
		}
		fmt.Fprintf(stdout, "saved %s\n", out)
	}
	return 0
}

// follow prints progress until the session stops on its own.
func follow(ctx context.Context, w io.Writer, updates <-chan orchestrator.Snapshot) (orchestrator.Snapshot, error) {
	var last orchestrator.Snapshot
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case snap, ok := <-updates:
			if !ok {
				return last, errors.New("session closed")
			}
			if snap.Epoch == 0 {
				continue
			}
			last = snap
			switch {
			case snap.Progress.Indeterminate:
				fmt.Fprintf(w, "[%s] waiting for jobs (~%ds)\n", snap.State, snap.EstimatedTimeSeconds)
			default:
				fmt.Fprintf(w, "[%s] %d/%d jobs, %.0f%%\n", snap.State, snap.Progress.Completed, snap.Progress.Total, snap.Progress.Percent)
			}
			if snap.Terminal() {
				return snap, nil
			}
		}
	}
}

func loadImage(path string) (domain.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Image{}, fmt.Errorf("read image: %w", err)
	}
	return domain.Image{
		Name:        filepath.Base(path),
		ContentType: domain.DetectImageType(data),
		Data:        data,
	}, nil
}

func save(ctx context.Context, client *rodin.Client, url, path string) error {
	resp, err := client.Fetch(ctx, url, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download model: unexpected status %d", resp.StatusCode)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}

// keySource prefers RODIN_API_KEY and falls back to the credentials table.
func keySource(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*credentials.KeySource, func()) {
	if cfg.RodinAPIKey != "" {
		return credentials.NewKeySource(cfg.RodinAPIKey, nil, 0), func() {}
	}
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("credentials store unavailable")
	}
	if pool == nil {
		return credentials.NewKeySource("", nil, 0), func() {}
	}
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	return credentials.NewKeySource("", store, time.Hour), pool.Close
}
