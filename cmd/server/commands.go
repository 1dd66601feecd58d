package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/actuallystonmai/movie-recommender/internal/domain"
	"github.com/actuallystonmai/movie-recommender/internal/service"
)

const usage = `usage: server [command]

commands:
  (none)                                    run the HTTP server
  train [--force]                           retrain the model unless it is fresh
  info                                      print model status and usage statistics
  clear-cache [--user-id N]                 clear one user's or every cached list
  test (--user-id N [--count C] | --all-users)
                                            print recommendations
  migrate-down                              drop the schema`

// runCommand executes one administrative command against the service.
func runCommand(ctx context.Context, svc *service.Service, logger zerolog.Logger, args []string) error {
	return dispatch(ctx, svc, logger, os.Stdout, args)
}

func dispatch(ctx context.Context, svc *service.Service, logger zerolog.Logger, out io.Writer, args []string) error {
	name, rest := args[0], args[1:]
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)

	switch name {
	case "train":
		force := fs.Bool("force", false, "retrain even when the model is fresh")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		loadInstalled(svc, logger)
		if !*force && !svc.ShouldRetrain() {
			fmt.Fprintln(out, "model is fresh, use --force to retrain")
			return nil
		}
		if err := svc.Train(ctx, *force); err != nil {
			return fmt.Errorf("training failed: %w", err)
		}
		return printJSON(out, svc.Info())

	case "info":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		loadInstalled(svc, logger)
		return printJSON(out, svc.Info())

	case "clear-cache":
		userID := fs.Int64("user-id", 0, "only clear this user's lists")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		var target *int64
		if *userID > 0 {
			target = userID
		}
		if err := svc.ClearCache(ctx, target); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		if target != nil {
			fmt.Fprintf(out, "cleared cache for user %d\n", *target)
		} else {
			fmt.Fprintln(out, "cleared recommendation cache")
		}
		return nil

	case "test":
		userID := fs.Int64("user-id", 0, "user to recommend for")
		count := fs.Int("count", 10, "number of recommendations")
		allUsers := fs.Bool("all-users", false, "recommend for every user with ratings")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		loadInstalled(svc, logger)
		switch {
		case *allUsers:
			results, err := svc.RecommendForRatedUsers(ctx, *count)
			if err != nil {
				return err
			}
			return printJSON(out, results)
		case *userID > 0:
			result := svc.GetRecommendations(ctx, *userID, *count)
			return printJSON(out, domain.BatchUserResult{
				UserID:          *userID,
				Recommendations: result.Recommendations,
				Status:          domain.StatusSuccess,
			})
		default:
			return fmt.Errorf("test: --user-id or --all-users is required")
		}

	default:
		fmt.Fprintln(out, usage)
		return fmt.Errorf("unknown command %q", name)
	}
}

// loadInstalled brings up the persisted model so read-only commands report on
// it without training. A missing model leaves the service untrained.
func loadInstalled(svc *service.Service, logger zerolog.Logger) {
	if svc.Current() != nil {
		return
	}
	if err := svc.LoadPersisted(); err != nil {
		logger.Warn().Err(err).Msg("no persisted model available")
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
