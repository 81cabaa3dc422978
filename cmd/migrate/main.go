// 数据库迁移命令行工具，支持向上/向下迁移、定点迁移和脏状态修复。
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Lucassml-boop/commerce-e/internal/config"
	"github.com/Lucassml-boop/commerce-e/internal/database"
	"github.com/Lucassml-boop/commerce-e/internal/logger"
)

const usage = `Usage: migrate -action=[up|down|goto|force] [options]

Options:
  -action string   migration action: up, down, goto, force (default "up")
  -steps int       number of steps for down migration (default 1)
  -target uint     target version for goto or force (default 0)

Examples:
  migrate -action=up                # apply all pending migrations
  migrate -action=down -steps=1     # roll back one migration
  migrate -action=goto -target=2    # migrate to version 2
  migrate -action=force -target=0   # reset version, clearing dirty state
`

func main() {
	var (
		action = flag.String("action", "up", "migration action: up, down, goto, force")
		steps  = flag.Int("steps", 1, "number of steps for down migration")
		target = flag.Uint("target", 0, "target version for goto or force")
	)
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, "migrate", cfg.App.Version)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	db, err := database.New(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("connect to database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			lg.Sugar().Errorw("close database", "error", err)
		}
	}()

	dir := cfg.Migrations.Dir

	switch *action {
	case "up":
		if err := db.RunMigrations(dir); err != nil {
			lg.Sugar().Fatalw("up migrations failed", "error", err)
		}
	case "down":
		if err := db.MigrateDown(dir, *steps); err != nil {
			lg.Sugar().Fatalw("down migrations failed", "steps", *steps, "error", err)
		}
	case "goto":
		if *target == 0 {
			lg.Fatal("goto requires -target > 0")
		}
		if err := db.MigrateToVersion(dir, *target); err != nil {
			lg.Sugar().Fatalw("goto migration failed", "target", *target, "error", err)
		}
	case "force":
		// force 允许 target=0，表示重置到无迁移状态
		lg.Sugar().Warnw("forcing migration version, dirty state will be cleared", "target", *target)
		if err := db.ForceMigrationVersion(dir, *target); err != nil {
			lg.Sugar().Fatalw("force migration failed", "target", *target, "error", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}
