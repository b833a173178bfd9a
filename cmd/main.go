package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"calimport/internal/caldav"
	"calimport/internal/extract"
	"calimport/internal/google"
	"calimport/internal/ics"
	"calimport/internal/importer"
	"calimport/internal/match"
	"calimport/internal/models"
	"calimport/internal/preview"
	"calimport/internal/store"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "calimport",
		Usage: "Import customer appointments from a calendar export into the customer roster.",
		Commands: []*cli.Command{
			authCommand(),
			fetchCommand(),
			previewCommand(),
			importCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			config, err := google.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(config, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			tokenFile := "token-" + accountName + ".json"

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch appointments from a remote calendar and stage them as a local .ics export.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Value: "google", Usage: "Calendar source: 'google' or 'caldav'."},
			&cli.StringFlag{Name: "account", Usage: "Google account name used during 'auth'."},
			&cli.StringFlag{Name: "calendar", Value: "primary", Usage: "Google calendar id, or CalDAV calendar display name."},
			&cli.StringFlag{Name: "from", Usage: "Fetch events starting at this day (YYYY-MM-DD, default today)."},
			&cli.IntFlag{Name: "days", Value: 90, Usage: "Length of the fetch window in days."},
			&cli.StringFlag{Name: "out", Value: "calendar-export.ics", Usage: "Output .ics file."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(os.Getenv("LOG_LEVEL"))

			from, err := parseDayFlag(c.String("from"))
			if err != nil {
				return err
			}
			if from.IsZero() {
				from = time.Now()
			}

			var events []models.CalendarEvent
			switch c.String("source") {
			case "google":
				account := c.String("account")
				if account == "" {
					accounts, err := google.GetTokenAccounts()
					if err != nil || len(accounts) == 0 {
						return fmt.Errorf("no google accounts found. Run the 'auth' command first")
					}
					account = accounts[0]
				}
				client, err := google.NewClient(c.Context, logger, os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"), account)
				if err != nil {
					return fmt.Errorf("failed to create google client: %w", err)
				}
				events, err = client.FetchEvents(c.String("calendar"), from, c.Int("days"))
				if err != nil {
					return err
				}
			case "caldav":
				client, err := caldav.NewClient(logger, os.Getenv("CALDAV_ENDPOINT"), os.Getenv("CALDAV_USERNAME"), os.Getenv("CALDAV_PASSWORD"), c.String("calendar"))
				if err != nil {
					return fmt.Errorf("failed to create caldav client: %w", err)
				}
				events, err = client.FetchEvents(c.Context, from, c.Int("days"))
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown source '%s'", c.String("source"))
			}

			f, err := os.Create(c.String("out"))
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			if err := ics.Write(f, events); err != nil {
				return fmt.Errorf("failed to write calendar export: %w", err)
			}

			logger.Info("Staged calendar export.", "file", c.String("out"), "events", len(events))
			return nil
		},
	}
}

func previewCommand() *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Parse a calendar export and show extracted customers with their roster matches.",
		Flags: pipelineFlags(),
		Action: func(c *cli.Context) error {
			logger := setupLogger(os.Getenv("LOG_LEVEL"))

			session, _, err := buildSession(c, logger)
			if err != nil {
				return err
			}
			printSession(session)
			return nil
		},
	}
}

func importCommand() *cli.Command {
	flags := append(pipelineFlags(),
		&cli.BoolFlag{Name: "yes", Usage: "Skip the interactive review; bind each event to its best match, or a new customer."},
	)
	return &cli.Command{
		Name:  "import",
		Usage: "Review the decision surface and run the import against the customer store.",
		Flags: flags,
		Action: func(c *cli.Context) error {
			logger := setupLogger(os.Getenv("LOG_LEVEL"))

			session, st, err := buildSession(c, logger)
			if err != nil {
				return err
			}

			if c.Bool("yes") {
				applyDefaults(session)
			} else {
				reviewSession(session, bufio.NewReader(os.Stdin))
			}

			confirmed := session.Confirmed()
			if len(confirmed) == 0 {
				fmt.Println("Nothing selected, nothing imported.")
				return nil
			}

			imp := importer.New(st, logger)
			bar := progressbar.Default(int64(len(confirmed)))
			imp.OnProgress = func(done, total int) {
				_ = bar.Set(done)
			}

			stats, runErr := imp.Run(c.Context, confirmed)
			printStats(stats)
			if runErr != nil {
				fmt.Println("Import did not complete.")
				return runErr
			}
			return nil
		},
	}
}

// pipelineFlags are shared by preview and import.
func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "file", Required: true, Usage: "Calendar export (.ics) to import."},
		&cli.StringFlag{Name: "from", Usage: "Only stage events on or after this day (YYYY-MM-DD)."},
		&cli.StringFlag{Name: "customers", Value: "customers.json", Usage: "Customer store file."},
		&cli.Float64Flag{Name: "fuzzy-threshold", Value: 0.3, Usage: "Maximum normalized edit distance for a name match."},
		&cli.IntFlag{Name: "max-candidates", Value: 5, Usage: "Candidates shown per event."},
	}
}

// buildSession loads the roster snapshot and the export file and
// stages the decision surface.
func buildSession(c *cli.Context, logger *slog.Logger) (*preview.Session, *store.FileStore, error) {
	st, err := store.Open(logger, c.String("customers"))
	if err != nil {
		return nil, nil, err
	}
	roster, err := st.ListCustomers(c.Context)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list customers: %w", err)
	}

	f, err := os.Open(c.String("file"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open calendar export: %w", err)
	}
	defer f.Close()

	events, err := ics.Decode(f)
	if err != nil {
		var parseErr *ics.ParseError
		if errors.As(err, &parseErr) {
			return nil, nil, fmt.Errorf("the calendar export could not be read, please provide a corrected file: %w", err)
		}
		return nil, nil, err
	}
	logger.Info("Parsed calendar export.", "file", c.String("file"), "events", len(events))

	from, err := parseDayFlag(c.String("from"))
	if err != nil {
		return nil, nil, err
	}
	events = preview.FilterFromDate(events, from)

	matchCfg := match.DefaultConfig()
	matchCfg.FuzzyThreshold = c.Float64("fuzzy-threshold")
	matchCfg.MaxCandidates = c.Int("max-candidates")

	extractCfg := extract.DefaultConfig()
	if cc := os.Getenv("COUNTRY_CODE"); cc != "" {
		extractCfg.CountryCode = cc
	}

	return preview.New(extractCfg, matchCfg, events, roster), st, nil
}

func parseDayFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date '%s', expected YYYY-MM-DD: %w", value, err)
	}
	return day, nil
}

func printSession(s *preview.Session) {
	for i, p := range s.Previews {
		printPreview(i, p)
	}
	fmt.Printf("%d events staged.\n", len(s.Previews))
}

func printPreview(i int, p models.EventPreview) {
	fmt.Printf("\n[%d] %s (%s)\n", i+1, p.Event.Summary, p.Event.Date.Format("2006-01-02"))
	fmt.Printf("    name: %s", p.Event.CustomerName)
	if p.Event.Phone != "" {
		fmt.Printf("  phone: %s", p.Event.Phone)
	}
	if p.Event.Email != "" {
		fmt.Printf("  email: %s", p.Event.Email)
	}
	fmt.Println()
	if len(p.Matches) == 0 {
		fmt.Println("    no roster matches")
		return
	}
	for j, m := range p.Matches {
		fmt.Printf("    %d) %s (%.0f%%) - %s\n", j+1, m.Customer.Name, m.Score*100, strings.Join(m.MatchReasons, ", "))
	}
}

// reviewSession walks the staged events and records the user's
// decision for each: bind to a candidate, create a new customer, or
// skip the event.
func reviewSession(s *preview.Session, in *bufio.Reader) {
	for i := range s.Previews {
		printPreview(i, s.Previews[i])
		fmt.Print("    [enter=best match or new, n=new customer, s=skip, number=pick candidate]: ")
		line, _ := in.ReadString('\n')
		choice := strings.TrimSpace(line)

		switch {
		case choice == "s":
			s.ToggleSelected(i)
		case choice == "n":
			s.ChooseCustomer(i, "")
		case choice == "":
			applyDefault(s, i)
		default:
			pick, err := strconv.Atoi(choice)
			if err != nil || pick < 1 || pick > len(s.Previews[i].Matches) {
				fmt.Println("    unknown choice, keeping the default")
				applyDefault(s, i)
				continue
			}
			s.ChooseCustomer(i, s.Previews[i].Matches[pick-1].Customer.ID)
		}
	}
}

// applyDefaults binds every staged event without asking: the top
// candidate when one exists, a new customer otherwise.
func applyDefaults(s *preview.Session) {
	for i := range s.Previews {
		applyDefault(s, i)
	}
}

func applyDefault(s *preview.Session, i int) {
	if len(s.Previews[i].Matches) > 0 {
		s.ChooseCustomer(i, s.Previews[i].Matches[0].Customer.ID)
	} else {
		s.ChooseCustomer(i, "")
	}
}

func printStats(stats models.ImportStats) {
	fmt.Printf("\nImport summary:\n")
	fmt.Printf("  %d events in batch\n", stats.TotalEvents)
	fmt.Printf("  %d imported (%d matched to existing customers, %d new customers)\n", stats.Imported, stats.Matched, stats.NewCustomers)
	fmt.Printf("  %d skipped (undecided)\n", stats.Skipped)
	fmt.Printf("  %d errors\n", stats.Errors)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
