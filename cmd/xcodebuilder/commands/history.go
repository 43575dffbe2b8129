package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/xcodebuilder/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of builds to show" default:"20"`
	JSON  bool   `help:"Print records as JSON"`
	ID    string `arg:"" optional:"" help:"Show a single build"`
}

type historyEntry struct {
	BuildID        string    `json:"build_id"`
	StartedAt      time.Time `json:"started_at"`
	DurationMS     int64     `json:"duration_ms"`
	Outcome        string    `json:"outcome"`
	RawExitCode    int       `json:"raw_exit_code"`
	ParserExitCode int       `json:"parser_exit_code"`
	Version        string    `json:"version,omitempty"`
	ShortVersion   string    `json:"short_version,omitempty"`
	Commit         string    `json:"commit,omitempty"`
	Branch         string    `json:"branch,omitempty"`
	Selection      string    `json:"selection,omitempty"`
	Artifacts      []string  `json:"artifacts,omitempty"`
	Error          string    `json:"error,omitempty"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return errs.ConfigError("build history is not configured").
			WithContext("setting", "history.path").Build()
	}
	store, err := history.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return errs.WrapError(err, errs.CategoryStorage, "cannot open build history").Build()
	}
	defer func() { _ = store.Close() }()

	records, err := h.query(context.Background(), store)
	if err != nil {
		return err
	}
	return h.print(g, records)
}

func (h *HistoryCmd) query(ctx context.Context, store history.Store) ([]history.Record, error) {
	if h.ID != "" {
		rec, err := store.Get(ctx, h.ID)
		if err != nil {
			return nil, errs.WrapError(err, errs.CategoryNotFound, "unknown build").WithContext("build_id", h.ID).Build()
		}
		return []history.Record{rec}, nil
	}
	records, err := store.Recent(ctx, h.Limit)
	if err != nil {
		return nil, errs.WrapError(err, errs.CategoryStorage, "cannot read build history").Build()
	}
	return records, nil
}

func (h *HistoryCmd) print(g *Global, records []history.Record) error {
	if h.JSON {
		entries := make([]historyEntry, 0, len(records))
		for _, r := range records {
			entries = append(entries, historyEntry{
				BuildID:        r.BuildID,
				StartedAt:      r.StartedAt.UTC(),
				DurationMS:     r.Duration().Milliseconds(),
				Outcome:        r.Outcome,
				RawExitCode:    r.RawExitCode,
				ParserExitCode: r.ParserExitCode,
				Version:        r.Version,
				ShortVersion:   r.ShortVersion,
				Commit:         r.Commit,
				Branch:         r.Branch,
				Selection:      r.Selection,
				Artifacts:      r.Artifacts,
				Error:          r.Error,
			})
		}
		enc := json.NewEncoder(g.out())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BUILD\tSTARTED\tDURATION\tOUTCOME\tVERSION\tCOMMIT")
	for _, r := range records {
		version := ""
		if r.ShortVersion != "" || r.Version != "" {
			version = r.ShortVersion + " (" + r.Version + ")"
		}
		commit := r.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.BuildID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Duration().Round(time.Second),
			r.Outcome,
			version,
			commit)
	}
	return tw.Flush()
}
