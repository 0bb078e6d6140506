// Command chatctl runs operator maintenance jobs against the configured store.
//
//	chatctl create-default-rooms [-dry-run]
//	chatctl cleanup-activity [-days 7]
//	chatctl clear-chat [-room name]... [-before 2006-01-02] [-dry-run]
//	chatctl extract-mentions
//	chatctl backfill-employee-ids
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/staffchat/internal/app"
	"github.com/spec-kit/staffchat/internal/config"
	"github.com/spec-kit/staffchat/internal/observability"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, deps *app.App, args []string) error
}

var commands = []command{
	{"create-default-rooms", "create the announcements and department rooms", createDefaultRooms},
	{"cleanup-activity", "mark idle users offline and delete stale activity", cleanupActivity},
	{"clear-chat", "delete messages by room and age", clearChat},
	{"extract-mentions", "rebuild mention sets from message bodies", extractMentions},
	{"backfill-employee-ids", "assign missing employee IDs to staff users", backfillEmployeeIDs},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := lookup(os.Args[1])
	if !ok {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// the background bus and dispatcher are irrelevant to one-shot jobs
	cfg.Chat.BroadcastBackend = config.BroadcastMemory
	cfg.Metrics.Enabled = false

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer deps.Close()

	if err := cmd.run(ctx, deps, os.Args[2:]); err != nil {
		logger.Error("command failed", zap.String("command", cmd.name), zap.Error(err))
		deps.Close()
		os.Exit(1)
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: chatctl <command> [flags]")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-22s %s\n", c.name, c.usage)
	}
}

func createDefaultRooms(ctx context.Context, deps *app.App, args []string) error {
	fs := flag.NewFlagSet("create-default-rooms", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "report without creating")
	if err := fs.Parse(args); err != nil {
		return err
	}
	created, err := deps.Maintenance.EnsureDefaultRooms(ctx, *dryRun)
	if err != nil {
		return err
	}
	deps.Logger.Info("default rooms", zap.Strings("rooms", created), zap.Bool("dry_run", *dryRun))
	return nil
}

func cleanupActivity(ctx context.Context, deps *app.App, args []string) error {
	fs := flag.NewFlagSet("cleanup-activity", flag.ContinueOnError)
	days := fs.Int("days", deps.Config.Chat.ActivityRetentionDays, "delete offline records idle longer than this")
	if err := fs.Parse(args); err != nil {
		return err
	}
	offline, deleted, err := deps.Maintenance.CleanupActivity(ctx, *days)
	if err != nil {
		return err
	}
	deps.Logger.Info("activity cleaned", zap.Int("marked_offline", offline), zap.Int("deleted", deleted))
	return nil
}

type roomList []string

func (r *roomList) String() string     { return strings.Join(*r, ",") }
func (r *roomList) Set(v string) error { *r = append(*r, v); return nil }

func clearChat(ctx context.Context, deps *app.App, args []string) error {
	fs := flag.NewFlagSet("clear-chat", flag.ContinueOnError)
	var rooms roomList
	fs.Var(&rooms, "room", "room to clear; repeatable, all rooms when omitted")
	beforeRaw := fs.String("before", "", "only messages older than this date (YYYY-MM-DD)")
	dryRun := fs.Bool("dry-run", false, "count without deleting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var before *time.Time
	if *beforeRaw != "" {
		t, err := time.Parse("2006-01-02", *beforeRaw)
		if err != nil {
			return fmt.Errorf("invalid -before: %w", err)
		}
		before = &t
	}
	n, err := deps.Maintenance.ClearChat(ctx, rooms, before, *dryRun)
	if err != nil {
		return err
	}
	deps.Logger.Info("chat cleared", zap.Strings("rooms", rooms), zap.Int("messages", n), zap.Bool("dry_run", *dryRun))
	return nil
}

func extractMentions(ctx context.Context, deps *app.App, _ []string) error {
	n, err := deps.Maintenance.RebuildMentions(ctx)
	if err != nil {
		return err
	}
	deps.Logger.Info("mentions rebuilt", zap.Int("messages_updated", n))
	return nil
}

func backfillEmployeeIDs(ctx context.Context, deps *app.App, _ []string) error {
	assigned, err := deps.Maintenance.BackfillEmployeeIDs(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(assigned))
	for id := range assigned {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		deps.Logger.Info("employee id assigned", zap.String("user_id", id), zap.String("employee_id", assigned[id]))
	}
	deps.Logger.Info("backfill complete", zap.Int("assigned", len(assigned)))
	return nil
}
