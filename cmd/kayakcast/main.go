package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"kayakcast/internal/api"
	"kayakcast/internal/export"
	"kayakcast/internal/ingest"
	"kayakcast/internal/models"
	"kayakcast/internal/score"
	"kayakcast/internal/store"
	"kayakcast/internal/windows"
)

// Merrimack River gauge sites with their kayaking configuration. Upserted
// into the store at startup; read-only for the lifetime of a run.
var defaultSites = []models.Site{
	{SiteID: "01073500", Name: "Merrimack River below Concord River at Lowell, MA", Latitude: 42.6334, Longitude: -71.3162, DischargeMin: 800, DischargeMax: 2000, GageMin: 2.0, GageMax: 4.5, Difficulty: "Class I-II", Active: true},
	{SiteID: "01100000", Name: "Merrimack River at Lowell, MA", Latitude: 42.65, Longitude: -71.30, DischargeMin: 1000, DischargeMax: 2500, GageMin: 1.5, GageMax: 5.0, Difficulty: "Class I-II", Active: true},
	{SiteID: "01096500", Name: "Merrimack River at North Chelmsford, MA", Latitude: 42.6278, Longitude: -71.3667, DischargeMin: 800, DischargeMax: 2200, GageMin: 2.0, GageMax: 4.8, Difficulty: "Class I-II", Active: true},
	{SiteID: "01094000", Name: "Merrimack River near Goffs Falls below Manchester, NH", Latitude: 43.0167, Longitude: -71.4833, DischargeMin: 600, DischargeMax: 1800, GageMin: 1.8, GageMax: 4.2, Difficulty: "Class II", Active: true},
	{SiteID: "01092000", Name: "Merrimack River at Franklin Junction, NH", Latitude: 43.4361, Longitude: -71.6472, DischargeMin: 400, DischargeMax: 1500, GageMin: 1.5, GageMax: 3.8, Difficulty: "Class I", Active: true},
}

type CLI struct {
	DB          string `name:"db" help:"Path to SQLite database." default:"data/kayakcast.db" env:"KAYAKCAST_DB"`
	Port        string `help:"HTTP server port." default:"8080" env:"KAYAKCAST_PORT"`
	Horizon     int    `help:"Forecast horizon in hours." default:"240" env:"KAYAKCAST_HORIZON"`
	MinScore    int    `help:"Minimum kayakability score for an optimal window." default:"70" env:"KAYAKCAST_MIN_SCORE"`
	MinDuration int    `help:"Minimum optimal window duration in hours." default:"3" env:"KAYAKCAST_MIN_DURATION"`
	Scorer      string `help:"Scoring variant." enum:"simple,weighted" default:"simple" env:"KAYAKCAST_SCORER"`
	HistoryDays int    `help:"Days of history to fetch and train on." default:"7" env:"KAYAKCAST_HISTORY_DAYS"`
	NoPoll      bool   `help:"Disable polling (server only, for local dev)."`
	Once        bool   `help:"Ingest and forecast once, then exit."`
	Export      string `help:"Write CSV exports to this folder and exit." type:"path"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("kayakcast"),
		kong.Description("River kayaking condition forecaster driven by USGS gauge telemetry."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	for _, site := range defaultSites {
		if err := st.UpsertSite(site); err != nil {
			log.Fatalf("upsert site %s: %v", site.SiteID, err)
		}
	}
	log.Printf("seeded %d sites", len(defaultSites))

	scoreCfg := score.DefaultConfig()
	scoreCfg.Variant = cli.Scorer
	scorer, err := score.New(scoreCfg)
	if err != nil {
		log.Fatalf("scorer: %v", err)
	}

	windowOpts := windows.Options{
		MinScore:         cli.MinScore,
		MinDurationHours: cli.MinDuration,
		GapTolerance:     90 * time.Minute,
	}

	usgs := ingest.NewUSGSClient()
	scheduler := ingest.NewScheduler(st, usgs, scorer, cli.Horizon, cli.HistoryDays, windowOpts)
	server := api.NewServer(st, scorer, cli.Port)

	if cli.Export != "" {
		log.Printf("exporting to %s", cli.Export)
		exporter := export.NewExporter(st, scorer)
		if err := exporter.WriteAll(cli.Export, cli.HistoryDays); err != nil {
			log.Fatalf("export: %v", err)
		}
		log.Println("done")
		return
	}

	if cli.Once {
		log.Println("running single ingest and forecast")
		if err := scheduler.IngestOnce(); err != nil {
			log.Fatalf("ingest: %v", err)
		}
		if err := scheduler.RefreshForecasts(); err != nil {
			log.Fatalf("forecast: %v", err)
		}
		log.Println("done")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !cli.NoPoll {
		go scheduler.Run(ctx)
	} else {
		log.Println("polling disabled (--no-poll)")
	}

	log.Printf("starting server on :%s", cli.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
