package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/creastat/retrieval"
	"github.com/creastat/retrieval/config"
	"github.com/creastat/retrieval/filter"
	"github.com/creastat/retrieval/internal/app"
	"github.com/creastat/retrieval/internal/logging"
	"github.com/creastat/retrieval/search"
	"github.com/creastat/retrieval/thread"
	"github.com/creastat/retrieval/vectorstore"
	"github.com/urfave/cli/v3"
)

type cliError struct {
	Code    int
	Message string
}

func run(ctx context.Context, argv []string) *cliError {
	if err := newCommand().Run(ctx, argv); err != nil {
		return &cliError{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "retrieval",
		Usage: "Semantic search and learning thread assembly over the course catalog",
		Commands: []*cli.Command{
			searchCommand(),
			relatedCommand(),
			recommendCommand(),
			reindexCommand(),
			assembleCommand(),
		},
	}
}

// withApp loads configuration, wires the app and closes it after action runs.
func withApp(action func(ctx context.Context, c *cli.Command, a *app.App) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}
		logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
		defer func() { _ = logger.Sync() }()

		a, err := app.New(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		return action(ctx, c, a)
	}
}

func kindFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "kind",
		Aliases: []string{"k"},
		Usage:   "Item kind: course, path or concept",
		Value:   string(retrieval.KindCourse),
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Semantic search over one item kind",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			kindFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of results",
				Value:   search.DefaultSearchLimit,
			},
			&cli.StringSliceFlag{
				Name:  "category",
				Usage: "Match any of these categories",
			},
			&cli.StringSliceFlag{
				Name:  "difficulty",
				Usage: "Match any of these difficulties",
			},
			&cli.FloatFlag{
				Name:  "min-hours",
				Usage: "Minimum estimated hours (requires --max-hours)",
			},
			&cli.FloatFlag{
				Name:  "max-hours",
				Usage: "Maximum estimated hours (requires --min-hours)",
			},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			query := strings.Join(c.Args().Slice(), " ")
			if query == "" {
				return fmt.Errorf("query is required")
			}
			kind, err := retrieval.ParseKind(c.String("kind"))
			if err != nil {
				return err
			}

			spec := &filter.Spec{
				Category:   c.StringSlice("category"),
				Difficulty: c.StringSlice("difficulty"),
			}
			if c.IsSet("min-hours") || c.IsSet("max-hours") {
				spec.EstimatedHours = &filter.Range{}
				if c.IsSet("min-hours") {
					lo := c.Float("min-hours")
					spec.EstimatedHours.Min = &lo
				}
				if c.IsSet("max-hours") {
					hi := c.Float("max-hours")
					spec.EstimatedHours.Max = &hi
				}
			}

			results, err := a.Search.Search(ctx, kind, query, spec, int(c.Int("limit")))
			return printResults(c.Root().Writer, a, results, err)
		}),
	}
}

func relatedCommand() *cli.Command {
	return &cli.Command{
		Name:      "related",
		Usage:     "List items related to a stored item",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			kindFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of results",
				Value:   search.DefaultRelatedLimit,
			},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("item id is required")
			}
			kind, err := retrieval.ParseKind(c.String("kind"))
			if err != nil {
				return err
			}

			results, err := a.Search.RelatedTo(ctx, kind, c.Args().Get(0), int(c.Int("limit")))
			return printResults(c.Root().Writer, a, results, err)
		}),
	}
}

func recommendCommand() *cli.Command {
	return &cli.Command{
		Name:  "recommend",
		Usage: "Personalized recommendations for a student profile",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "profile",
				Aliases:  []string{"p"},
				Usage:    "Student profile ID",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of results",
				Value:   search.DefaultRecommendationLimit,
			},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			if a.Catalog == nil {
				return fmt.Errorf("recommend requires SUPABASE_URL and SUPABASE_API_KEY: %w", retrieval.ErrInvalidConfig)
			}
			profile, err := a.Catalog.GetStudentProfile(ctx, c.String("profile"))
			if err != nil {
				return err
			}
			if profile == nil {
				return fmt.Errorf("student profile %q: %w", c.String("profile"), retrieval.ErrNotFound)
			}

			results, err := a.Search.PersonalizedRecommendations(ctx, *profile, int(c.Int("limit")))
			return printResults(c.Root().Writer, a, results, err)
		}),
	}
}

func reindexCommand() *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "Embed the whole catalog and write it to the vector index",
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
			n, err := a.Reindex(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Indexed %d items\n", n)
			return nil
		}),
	}
}

func assembleCommand() *cli.Command {
	return &cli.Command{
		Name:      "assemble",
		Usage:     "Assemble a learning thread from concept candidates",
		ArgsUsage: "<candidates.json|->",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "strategy",
				Aliases: []string{"s"},
				Usage:   "Sequencing strategy: prerequisite-count or topological",
				Value:   thread.StrategyPrerequisiteCount,
			},
			&cli.StringFlag{
				Name:    "goal",
				Aliases: []string{"g"},
				Usage:   "Learning goal the candidates were mapped from",
			},
			&cli.BoolFlag{
				Name:  "with-content",
				Usage: "Retrieve content chunks for each concept from the vector index",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			strategy, err := thread.ParseStrategy(c.String("strategy"))
			if err != nil {
				return err
			}
			candidates, err := readCandidates(c.Args().First())
			if err != nil {
				return err
			}

			if !c.Bool("with-content") {
				t, err := thread.NewAssembler(strategy).Assemble(c.String("goal"), candidates)
				if err != nil {
					return err
				}
				return writeJSON(c.Root().Writer, t)
			}

			return withApp(func(ctx context.Context, c *cli.Command, a *app.App) error {
				t, err := a.Builder(strategy).Build(ctx, c.String("goal"), candidates)
				if err != nil {
					return err
				}
				return writeJSON(c.Root().Writer, t)
			})(ctx, c)
		},
	}
}

// printResults applies the degrade policy: input errors surface, retrieval
// failures print an empty list and log a warning.
func printResults(w io.Writer, a *app.App, results []vectorstore.SearchResult, err error) error {
	if errors.Is(err, retrieval.ErrInvalidInput) {
		return err
	}
	return writeJSON(w, search.OrEmpty(results, err, a.Logger))
}

func readCandidates(path string) ([]thread.ConceptCandidate, error) {
	var r io.Reader
	switch path {
	case "":
		return nil, fmt.Errorf("candidates file is required")
	case "-":
		r = os.Stdin
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open candidates: %w", err)
		}
		defer f.Close()
		r = f
	}

	var candidates []thread.ConceptCandidate
	if err := json.NewDecoder(r).Decode(&candidates); err != nil {
		return nil, fmt.Errorf("failed to decode candidates: %w", err)
	}
	return candidates, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
