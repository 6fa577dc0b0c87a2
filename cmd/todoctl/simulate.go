package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/smstodo/smstodo/internal/app"
	"github.com/smstodo/smstodo/internal/config"
	"github.com/smstodo/smstodo/internal/model"
	"github.com/smstodo/smstodo/internal/phone"
	"github.com/smstodo/smstodo/internal/repository"
	"github.com/smstodo/smstodo/internal/service"
	"github.com/smstodo/smstodo/internal/sms"
	"github.com/smstodo/smstodo/internal/store"
	"github.com/smstodo/smstodo/internal/store/memstore"
)

type simulateOptions struct {
	from    string
	to      string
	region  string
	memory  bool
	verbose bool
}

func newSimulateCmd() *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   `simulate --from NUMBER [--to NUMBER] "message" ["message"...]`,
		Short: "Run messages through the pipeline and print the SMS it would send",
		Long: `Feeds each message, in order, through parsing, list resolution and execution as if
it arrived from --from on channel --to. Outbound SMS are printed instead of sent.

By default the configured database is used and changes are persisted. With --memory
an empty in-process store is used and discarded on exit.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.from, "from", "", "sender phone number")
	f.StringVar(&opts.to, "to", "+16502530999", "service phone number the message was sent to")
	f.StringVar(&opts.region, "region", "", "default region for numbers without a country code (default: DEFAULT_REGION or US)")
	f.BoolVar(&opts.memory, "memory", false, "use an in-memory store instead of DATABASE_URL")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline events to stderr")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runSimulate(cmd *cobra.Command, opts *simulateOptions, texts []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	logger := slog.New(slog.DiscardHandler)
	if opts.verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	var (
		st     store.Store
		region = opts.region
	)
	if opts.memory {
		st = memstore.New()
	} else {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if region == "" {
			region = cfg.DefaultRegion
		}
		repo, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %s", app.SanitizeError(err, cfg.DatabaseURL))
		}
		defer repo.Close()
		st = repo
	}

	phones := phone.NewNormalizer(region)
	from, ok := phones.Normalize(opts.from)
	if !ok {
		return fmt.Errorf("invalid --from number %q", opts.from)
	}
	to, ok := phones.Normalize(opts.to)
	if !ok {
		return fmt.Errorf("invalid --to number %q", opts.to)
	}

	sender := sms.NewDryRunSender(logger)
	svc := service.NewTodoService(st, sender, phones, logger, nil, service.Options{})

	var errs []error
	for i, text := range texts {
		fmt.Fprintf(out, "> %s\n", text)
		_, err := svc.HandleMessage(ctx, model.InboundMessage{
			From:      from,
			To:        to,
			Text:      text,
			MessageID: fmt.Sprintf("simulate-%d-%d", os.Getpid(), i),
		})
		if err != nil {
			errs = append(errs, err)
		}
		printOutbound(out, sender.Messages())
		sender.Reset()
	}
	return errors.Join(errs...)
}

func printOutbound(out io.Writer, msgs []model.OutboundMessage) {
	if len(msgs) == 0 {
		fmt.Fprintln(out, "  (no reply)")
		return
	}
	for _, m := range msgs {
		fmt.Fprintf(out, "  %s -> %s: %s\n", m.From, m.To, m.Text)
	}
}
