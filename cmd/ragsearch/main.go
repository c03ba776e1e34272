package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kitbuilder587/rag-search/internal/config"
	"github.com/kitbuilder587/rag-search/internal/domain"
)

func main() {
	if err := newApp(config.Load, config.LoadCLI).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type configLoader func() (*config.Config, error)

func newApp(loadServe, loadSearch configLoader) *cli.App {
	return &cli.App{
		Name:  "ragsearch",
		Usage: "Web search with optional semantic rerank, page fetch and content filtering",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override LOG_LEVEL (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP API (POST /rag-search)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Override HTTP_ADDR",
					},
				},
				Action: func(c *cli.Context) error {
					return serveCommand(c, loadServe)
				},
			},
			{
				Name:      "search",
				Usage:     "Run one query through the pipeline and print the results as JSON",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "provider",
						Usage: "Search provider (google, tavily); empty uses the default",
					},
					&cli.StringFlag{
						Name:  "locale",
						Usage: "Result language hint, e.g. zh-cn",
					},
					&cli.IntFlag{
						Name:    "n",
						Aliases: []string{"search-n"},
						Usage:   "Number of search results",
						Value:   domain.DefaultSearchCount,
					},
					&cli.BoolFlag{
						Name:  "rerank",
						Usage: "Rerank results by snippet relevance",
					},
					&cli.BoolFlag{
						Name:  "detail",
						Usage: "Fetch page content for top results",
					},
					&cli.IntFlag{
						Name:  "detail-top-k",
						Value: domain.DefaultDetailTopK,
					},
					&cli.Float64Flag{
						Name:  "detail-min-score",
						Value: domain.DefaultDetailMinScore,
					},
					&cli.BoolFlag{
						Name:  "filter",
						Usage: "Re-score fetched content against the query",
					},
					&cli.IntFlag{
						Name:  "filter-top-k",
						Value: domain.DefaultFilterTopK,
					},
					&cli.Float64Flag{
						Name:  "filter-min-score",
						Value: domain.DefaultFilterMinScore,
					},
				},
				Action: func(c *cli.Context) error {
					return searchCommand(c, loadSearch)
				},
			},
		},
	}
}
