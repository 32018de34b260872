// cmd/vocadrill/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/vocadrill/vocadrill/pkg/auth"
	"github.com/vocadrill/vocadrill/pkg/config"
	"github.com/vocadrill/vocadrill/pkg/db"
	"github.com/vocadrill/vocadrill/pkg/kvstore"
	"github.com/vocadrill/vocadrill/pkg/logger"
	"github.com/vocadrill/vocadrill/pkg/progress"
	"github.com/vocadrill/vocadrill/pkg/storage"
	"github.com/vocadrill/vocadrill/pkg/syncer"
)

const usage = `usage: vocadrill [flags] <command> [args]

commands:
  login <email> <password>     authenticate and push-merge local data
  logout                       drop the stored session
  sync                         push-merge local data now
  add <word> <definition>      add a word with one meaning
  list                         list all words, newest first
  due [n]                      show up to n practice words (default 10)
  review <id> <yes|no>         record a review result
  master <id>                  stop reminders for a word
  score-sentence <id> <score>  record a scored sentence attempt
  stats                        show practice statistics
`

func main() {
	flags := flag.NewFlagSet("vocadrill", flag.ExitOnError)
	configPath := flags.String("config", "", "path to config file")
	flags.String("database.driver", "", "database driver (sqlite or postgres)")
	flags.String("database.path", "", "sqlite database path")
	flags.String("sync.base_url", "", "sync service base URL")
	flags.String("logging.level", "", "log level (debug, info, warn, error)")
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	if err := config.Load(*configPath, flags); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := logger.Configure(logger.Options{
		Level: config.AppConfig.Logging.Level,
		File:  config.AppConfig.Logging.File,
	}); err != nil {
		logger.Error("failed to configure logger", "error", err)
	}
	if err := db.InitDB(config.AppConfig.Database); err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	store := kvstore.NewSQLStore(db.DB)
	storageSvc := storage.NewService(store)
	tracker := progress.NewTracker(storageSvc)

	timeout := time.Duration(config.AppConfig.Sync.TimeoutSeconds) * time.Second
	baseURL := config.AppConfig.Sync.BaseURL
	authClient := auth.NewClient(baseURL, timeout, store)
	syncSvc := syncer.NewService(syncer.NewClient(baseURL, timeout, authClient.Token), storageSvc)

	// Cold-start pull: refresh from the server when one is configured,
	// but never block usage on it.
	if baseURL != "" {
		syncSvc.PullAtLaunch(ctx)
	}

	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	if err := run(ctx, args, storageSvc, tracker, authClient, syncSvc, baseURL); err != nil {
		logger.Error("command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, storageSvc *storage.Service, tracker *progress.Tracker, authClient *auth.Client, syncSvc *syncer.Service, baseURL string) error {
	switch args[0] {
	case "login":
		if len(args) != 3 {
			return fmt.Errorf("usage: login <email> <password>")
		}
		if baseURL == "" {
			return fmt.Errorf("sync.base_url is not configured")
		}
		session, err := authClient.Login(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		// Losing local progress silently is unacceptable; a failed merge
		// after login must reach the user.
		if err := syncSvc.PushMerge(ctx); err != nil {
			return fmt.Errorf("logged in, but sync failed: %w", err)
		}
		fmt.Printf("logged in as %s\n", session.Email)
		return nil

	case "logout":
		return authClient.Logout(ctx)

	case "sync":
		if baseURL == "" {
			return fmt.Errorf("sync.base_url is not configured")
		}
		return syncSvc.PushMerge(ctx)

	case "add":
		if len(args) < 3 {
			return fmt.Errorf("usage: add <word> <definition>")
		}
		word := storage.Word{
			Word:     args[1],
			Meanings: []storage.Meaning{{Definition: strings.Join(args[2:], " ")}},
		}
		if err := storageSvc.SaveWord(ctx, &word); err != nil {
			return err
		}
		fmt.Printf("added %s (%s)\n", word.Word, word.ID)
		return nil

	case "list":
		for _, word := range storageSvc.Words(ctx) {
			fmt.Printf("%s\t%s\t(reviews %d, views %d)\n", word.ID, word.Word, word.ReviewCount, word.ViewCount)
			for _, meaning := range word.Meanings {
				fmt.Printf("\t- %s\n", meaning.Definition)
			}
		}
		return nil

	case "due":
		limit, err := optionalLimit(args, 10)
		if err != nil {
			return err
		}
		for _, word := range tracker.PracticeWords(ctx, limit) {
			fmt.Printf("%s\t%s\n", word.ID, word.Word)
		}
		return nil

	case "review":
		if len(args) != 3 {
			return fmt.Errorf("usage: review <id> <yes|no>")
		}
		remembered, err := parseYesNo(args[2])
		if err != nil {
			return err
		}
		if err := tracker.MarkReviewed(ctx, args[1], remembered); err != nil {
			return err
		}
		return tracker.UpdateStats(ctx, 1, progress.KindWord)

	case "master":
		if len(args) != 2 {
			return fmt.Errorf("usage: master <id>")
		}
		return tracker.MarkMastered(ctx, args[1])

	case "score-sentence":
		if len(args) != 3 {
			return fmt.Errorf("usage: score-sentence <id> <score>")
		}
		score, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid score %q", args[2])
		}
		if err := tracker.RecordSentencePractice(ctx, args[1], score); err != nil {
			return err
		}
		return tracker.UpdateStats(ctx, 1, progress.KindSentence)

	case "stats":
		stats := storageSvc.Stats(ctx)
		fmt.Printf("sessions: %d\n", stats.TotalSessions)
		fmt.Printf("streak: %d (longest %d)\n", stats.CurrentStreak, stats.LongestStreak)
		fmt.Printf("words practiced: %d\n", stats.TotalWordsPracticed)
		fmt.Printf("sentences practiced: %d\n", stats.TotalSentencesPracticed)
		return nil

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func optionalLimit(args []string, fallback int) (int, error) {
	if len(args) < 2 {
		return fallback, nil
	}
	limit, err := strconv.Atoi(args[1])
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit %q", args[1])
	}
	return limit, nil
}

func parseYesNo(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "yes", "y", "remembered":
		return true, nil
	case "no", "n", "forgot":
		return false, nil
	default:
		return false, fmt.Errorf("expected yes or no, got %q", value)
	}
}
