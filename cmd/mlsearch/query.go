package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/mlcatalog/mlsearch/internal/domain/search/result"
	"github.com/mlcatalog/mlsearch/internal/present"
	"github.com/mlcatalog/mlsearch/internal/usecase/urlsync"
)

func compileCommand() *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Usage:     "Print the backend query for a search URL without running it",
		ArgsUsage: "<entity> [query]",
		Action: func(_ context.Context, c *cli.Command) error {
			d, err := newDeps(c)
			if err != nil {
				return err
			}
			entity, raw, err := queryArgs(c)
			if err != nil {
				return err
			}
			cfg, err := d.catalog.Lookup(entity)
			if err != nil {
				return err //nolint:wrapcheck // already names the entity
			}
			q, err := d.search.Compile(cfg, urlsync.ParseQuery(raw, cfg))
			if err != nil {
				return fmt.Errorf("compile: %w", err)
			}
			fmt.Fprintf(os.Stdout, "POST /%s%s/_search\n", d.cfg.Index.IndexPrefix, q.Index)
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(q) //nolint:wrapcheck // stdout
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run a search URL against the backend and print one page",
		ArgsUsage: "<entity> [query]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "facets",
				Usage: "Also print the facet sidebar",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			d, err := newDeps(c)
			if err != nil {
				return err
			}
			defer func() { _ = d.logger.Sync() }()
			entity, raw, err := queryArgs(c)
			if err != nil {
				return err
			}
			cfg, err := d.catalog.Lookup(entity)
			if err != nil {
				return err //nolint:wrapcheck // already names the entity
			}

			out, err := d.search.Search(ctx, cfg, urlsync.ParseQuery(raw, cfg))
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if out.Capped {
				fmt.Fprintf(os.Stderr, "page capped to %d; refine the search to see more\n", out.State.Page())
			}
			printPage(os.Stdout, urlsync.Encode(out.State, cfg), out.State.Page(), &out.Page)
			if c.Bool("facets") {
				printFacets(os.Stdout, present.Facets(cfg, out.State, &out.Page))
			}
			return nil
		},
	}
}

func queryArgs(c *cli.Command) (entity, raw string, err error) {
	if c.NArg() < 1 || c.NArg() > 2 {
		return "", "", fmt.Errorf("expected <entity> [query], got %d arguments", c.NArg())
	}
	return c.Args().Get(0), c.Args().Get(1), nil
}

func printPage(w io.Writer, canonical string, page int, p *result.Page) {
	total := strconv.Itoa(p.TotalCount())
	if p.TotalIsLowerBound() {
		total = "≥" + total
	}
	fmt.Fprintf(w, "?%s  page %d  total %s\n\n", canonical, page, total)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSCORE")
	records := p.Records()
	for i := range records {
		score := "-"
		if s := records[i].Score(); s != nil {
			score = fmt.Sprintf("%.3f", *s)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", records[i].ID(), records[i].DisplayName(), score)
	}
	_ = tw.Flush()
}

func printFacets(w io.Writer, facets []present.Facet) {
	for _, f := range facets {
		fmt.Fprintf(w, "\n%s\n", f.Label)
		if f.Stats != nil {
			fmt.Fprintf(w, "  %s\n", rangeLine(f))
			continue
		}
		for _, o := range f.Options {
			mark := " "
			if o.Selected {
				mark = "x"
			}
			fmt.Fprintf(w, "  [%s] %s (%d)\n", mark, o.Label, o.Count)
		}
	}
}

func rangeLine(f present.Facet) string {
	bound := func(v *float64) string {
		if v == nil {
			return "*"
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	line := fmt.Sprintf("%s..%s over %d records", bound(f.Stats.Min), bound(f.Stats.Max), f.Stats.Count)
	if f.Min != nil || f.Max != nil {
		line += fmt.Sprintf(", filtered to %s..%s", bound(f.Min), bound(f.Max))
	}
	return line
}
