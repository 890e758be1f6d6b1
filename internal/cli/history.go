package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/okian/contestlens/internal/adapters/upstream"
	"github.com/okian/contestlens/internal/domain/session"
	"github.com/okian/contestlens/internal/render"
	"github.com/okian/contestlens/pkg/logger"
)

// ErrEmptyHandle is returned when the handle argument is blank.
var ErrEmptyHandle = errors.New("handle must not be empty")

type historyOptions struct {
	via     string
	pngPath string
	svgPath string
	asJSON  bool
}

func newHistoryCommand(g *globals) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history <handle>",
		Short: "Print the contest history report of a user",
		Example: `  contestlens history alice
  contestlens history alice --svg alice.svg
  contestlens history alice --via http://localhost:9080`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, g, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.via, "via", "", "fetch through a running contestlens proxy at this base URL")
	cmd.Flags().StringVar(&opts.pngPath, "png", "", "write the rating trend chart as PNG to this path")
	cmd.Flags().StringVar(&opts.svgPath, "svg", "", "write the rating trend chart as SVG to this path")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the dashboard view as JSON instead of a table")
	return cmd
}

func runHistory(cmd *cobra.Command, g *globals, opts *historyOptions, handle string) error {
	ctx := cmd.Context()

	var fetcher upstream.Fetcher
	if opts.via != "" {
		fetcher = upstream.NewProxyClient(opts.via, g.cfg.UpstreamTimeout())
	} else {
		fetcher = newUpstreamClient(g.cfg, g.log)
	}
	svc := newService(g.cfg, fetcher, g.log)

	sess := svc.NewSession()
	defer sess.Close()

	if err := svc.Run(ctx, sess, handle); err != nil {
		switch {
		case errors.Is(err, session.ErrBlankHandle):
			return ErrEmptyHandle
		case errors.Is(err, upstream.ErrFetchFailed):
			g.log.Debug(ctx, "history fetch failed", logger.String("handle", handle), logger.Error(err))
			return errors.New(session.FailureMessage)
		default:
			return err
		}
	}

	st := sess.State()
	ready, ok := st.(session.Ready)
	if !ok {
		return fmt.Errorf("unexpected session state %q", st.Status())
	}

	switch {
	case opts.pngPath == "" && opts.svgPath == "":
	case ready.Report.Empty():
		// An empty history still prints its baseline table.
		g.log.Warn(ctx, "no attended contests; skipping trend chart", logger.String("handle", ready.Handle))
	default:
		if err := writeCharts(ready, opts); err != nil {
			return err
		}
	}

	view := render.NewView(st)
	if opts.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	return render.WriteTable(cmd.OutOrStdout(), view)
}

func writeCharts(ready session.Ready, opts *historyOptions) error {
	for format, path := range map[render.ChartFormat]string{
		render.FormatPNG: opts.pngPath,
		render.FormatSVG: opts.svgPath,
	} {
		if path == "" {
			continue
		}
		if err := writeChart(path, ready, format); err != nil {
			return err
		}
	}
	return nil
}

func writeChart(path string, ready session.Ready, format render.ChartFormat) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create chart directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if err := render.WriteTrendChart(f, ready.Report.Entries, format); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("render %s chart for %s: %w", format, ready.Handle, err)
	}
	return f.Close()
}
