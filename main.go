package main

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/customeros/mailscan/config"
	"github.com/customeros/mailscan/dto"
	"github.com/customeros/mailscan/internal/database"
	"github.com/customeros/mailscan/internal/enum"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/repository"
	"github.com/customeros/mailscan/server"
	"github.com/customeros/mailscan/services"
	"github.com/customeros/mailscan/services/events"
)

func main() {
	app := &cli.App{
		Name:  "mailscan",
		Usage: "ingest a mailbox and flag invoice attachments",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: migrate,
			},
			{
				Name:   "server",
				Usage:  "Start the application server",
				Action: serve,
			},
			{
				Name:   "fetch",
				Usage:  "Run one batch and print the summary",
				Action: fetchOnce,
			},
			{
				Name:  "request-fetch",
				Usage: "Ask a running server to fetch through RabbitMQ",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "requested-by",
						Value: "cli",
						Usage: "recorded on the FetchRequested event",
					},
				},
				Action: requestFetch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg == nil {
		return nil, nil, cli.Exit("config is empty", 1)
	}

	mailscanDB, err := database.InitMailscanDatabase(cfg.MailscanDatabaseConfig)
	if err != nil {
		return nil, nil, err
	}
	return cfg, mailscanDB, nil
}

func migrate(_ *cli.Context) error {
	cfg, mailscanDB, err := setup()
	if err != nil {
		return err
	}

	if err = repository.MigrateMailscanDB(cfg.MailscanDatabaseConfig, mailscanDB); err != nil {
		return cli.Exit("Database migration failed: "+err.Error(), 1)
	}
	log.Println("Database migration completed successfully")
	return nil
}

func serve(_ *cli.Context) error {
	cfg, mailscanDB, err := setup()
	if err != nil {
		return err
	}
	if err = cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Mailscan starting up...")

	srv, err := server.NewServer(cfg, mailscanDB)
	if err != nil {
		return cli.Exit("Server setup failed: "+err.Error(), 1)
	}

	if err = srv.Run(); err != nil {
		return cli.Exit("Server startup failed: "+err.Error(), 1)
	}

	log.Println("Shutdown complete")
	return nil
}

func fetchOnce(c *cli.Context) error {
	cfg, mailscanDB, err := setup()
	if err != nil {
		return err
	}
	if err = cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	svcs, err := services.InitServices(cfg, appLogger, repository.InitRepositories(mailscanDB))
	if err != nil {
		return err
	}
	defer svcs.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := svcs.Pipeline.RunBatch(ctx, enum.BatchTriggerCLI)
	if result != nil {
		printJSON(result.Summary)
	}
	if runErr != nil {
		return cli.Exit("Batch failed: "+runErr.Error(), 2)
	}
	return nil
}

func requestFetch(c *cli.Context) error {
	cfg, err := config.InitConfig()
	if err != nil {
		return err
	}
	if cfg.AppConfig.RabbitMQURL == "" {
		return cli.Exit("RABBITMQ_URL is required", 1)
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	publisher, err := events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, appLogger, events.DefaultPublisherConfig())
	if err != nil {
		return cli.Exit("RabbitMQ connection failed: "+err.Error(), 1)
	}
	defer publisher.Close()

	if err = publisher.PublishFetchRequested(c.Context, dto.FetchRequested{RequestedBy: c.String("requested-by")}); err != nil {
		return cli.Exit("Publish failed: "+err.Error(), 1)
	}
	log.Println("Fetch requested")
	return nil
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		log.Printf("Failed to print summary: %v", err)
	}
}
