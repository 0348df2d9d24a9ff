package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/aquapure/waterbot/core/bootstrap"
	"github.com/aquapure/waterbot/core/cmd"
	coredatabase "github.com/aquapure/waterbot/core/database"
	"github.com/aquapure/waterbot/internal/bot"
	"github.com/aquapure/waterbot/internal/service"
)

func main() {
	app := &cli.App{
		Name:  "waterbot",
		Usage: "Telegram bot for water delivery orders and subscriptions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config",
				EnvVars: []string{"CONFIG_PATH"},
				Value:   "config.yaml",
			},
		},
		DefaultCommand: "run",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "start the bot",
				Action: runBot,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: runMigrations,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runBot(cliCtx *cli.Context) error {
	return cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: cliCtx.String("config"),
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return bot.Load(path)
		},
		Bootstrap: func(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			cfg, ok := carrier.(*bot.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", carrier)
			}
			res, err := bootstrap.Run(context.Background(), bootstrap.Options{
				Config:   cfg.CoreConfig(),
				Database: cfg.Database,
				Seeders:  []bootstrap.Seeder{bootstrap.SeederFunc(service.SeedProducts)},
			})
			if err != nil {
				return nil, err
			}
			return bot.New(cfg, res.DB)
		},
	})
}

func runMigrations(cliCtx *cli.Context) error {
	cfg, err := bot.Load(cliCtx.String("config"))
	if err != nil {
		return err
	}
	if err := coredatabase.RunMigrations(cfg.Database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Println("migrations applied")
	return nil
}
