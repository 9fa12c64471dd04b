package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cloudx-io/outcry/ledger"
	"github.com/cloudx-io/outcry/outcry"
)

var (
	cliName           = "outcry-sim"
	defaultConfigPath = filepath.Join(os.Getenv("HOME"), "."+cliName)
	v                 = viper.New()
)

// Flag describes a configuration flag.
type Flag struct {
	Name        string
	DefValue    interface{}
	Description string
}

var flags = []Flag{
	{Name: "scenario", DefValue: "all", Description: "Scenario to run: " + strings.Join(scenarios, ", ") + " or all"},
	{Name: "bidders", DefValue: 3, Description: "Number of bidders"},
	{Name: "rounds", DefValue: 2, Description: "Bids per bidder"},
	{Name: "crankers", DefValue: 4, Description: "Concurrent crankers racing end and settle"},
	{Name: "delegate", DefValue: true, Description: "Run bidding on the fast tier"},
	{Name: "sessions", DefValue: true, Description: "Bid through signed session envelopes"},
	{Name: "start-time", DefValue: int64(1_700_000_000), Description: "Simulated unix time at creation"},
	{Name: "fund", DefValue: uint64(10_000_000_000), Description: "Lamports funded to every wallet"},
	{Name: "reserve-price", DefValue: uint64(1_000_000), Description: "Auction reserve price"},
	{Name: "min-bid-increment", DefValue: uint64(100_000), Description: "Minimum raise over the current bid"},
	{Name: "duration", DefValue: uint64(300), Description: "Auction duration in seconds"},
	{Name: "extension-seconds", DefValue: 60, Description: "Anti-snipe extension in seconds"},
	{Name: "extension-window", DefValue: 30, Description: "Anti-snipe window in seconds"},
	{Name: "min-duration", DefValue: uint64(outcry.DefaultConfig().MinDuration), Description: "Shortest allowed duration"},
	{Name: "max-duration", DefValue: uint64(outcry.DefaultConfig().MaxDuration), Description: "Longest allowed duration"},
	{Name: "max-extension", DefValue: outcry.DefaultConfig().MaxExtension, Description: "Ceiling on total anti-snipe extension"},
	{Name: "grace-period", DefValue: outcry.DefaultConfig().GracePeriod, Description: "Seconds before a finished auction may be force closed"},
	{Name: "protocol-fee-bps", DefValue: 0, Description: "Protocol fee in basis points of the post-royalty remainder"},
	{Name: "treasury", DefValue: "", Description: "Base58 treasury address receiving the protocol fee"},
	{Name: "max-pending", DefValue: ledger.DefaultOptions().MaxPending, Description: "Transactions admitted per tier before rejecting"},
	{Name: "format", DefValue: "text", Description: "Output format: text or json"},
	{Name: "log-debug", DefValue: false, Description: "Enable debug level logging"},
	{Name: "log-json", DefValue: false, Description: "Enable structured logging"},
}

func init() {
	cobra.OnInitialize(func() {
		v.SetConfigType("json")
		v.SetConfigName("config")
		v.AddConfigPath(os.Getenv("OUTCRY_PATH"))
		v.AddConfigPath(defaultConfigPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				checkErrf("reading configuration: %s", err)
			}
		}
	})

	configureCLI(v, "OUTCRY", flags, rootCmd)
}

// configureCLI configures a Viper environment with flags and envs.
func configureCLI(v *viper.Viper, envPrefix string, flags []Flag, cmd *cobra.Command) {
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	for _, flag := range flags {
		switch defval := flag.DefValue.(type) {
		case string:
			cmd.Flags().String(flag.Name, defval, flag.Description)
		case bool:
			cmd.Flags().Bool(flag.Name, defval, flag.Description)
		case int:
			cmd.Flags().Int(flag.Name, defval, flag.Description)
		case int64:
			cmd.Flags().Int64(flag.Name, defval, flag.Description)
		case uint64:
			cmd.Flags().Uint64(flag.Name, defval, flag.Description)
		default:
			log.Fatal().Msgf("unknown flag type: %T", defval)
		}
		v.SetDefault(flag.Name, flag.DefValue)
		if err := v.BindPFlag(flag.Name, cmd.Flags().Lookup(flag.Name)); err != nil {
			log.Fatal().Err(err).Str("flag", flag.Name).Msg("binding flag")
		}
	}
}

// configureLogging sets the global zerolog level and writer from flags/envs.
func configureLogging(v *viper.Viper) {
	if !v.GetBool("log-json") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if v.GetBool("log-debug") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// loadSimConfig builds the simulation settings from viper.
func loadSimConfig(v *viper.Viper) (simConfig, error) {
	cfg := outcry.DefaultConfig()
	cfg.MinDuration = v.GetUint64("min-duration")
	cfg.MaxDuration = v.GetUint64("max-duration")
	cfg.MaxExtension = v.GetInt64("max-extension")
	cfg.GracePeriod = v.GetInt64("grace-period")

	fee := v.GetInt("protocol-fee-bps")
	if fee < 0 || fee > math.MaxUint16 {
		return simConfig{}, fmt.Errorf("protocol fee %d out of range", fee)
	}
	cfg.ProtocolFeeBps = uint16(fee)
	if s := v.GetString("treasury"); s != "" {
		addr, err := ledger.ParseAddress(s)
		if err != nil {
			return simConfig{}, fmt.Errorf("parse treasury: %w", err)
		}
		cfg.Treasury = addr
	}
	if err := cfg.Validate(); err != nil {
		return simConfig{}, err
	}

	extSeconds, extWindow := v.GetInt("extension-seconds"), v.GetInt("extension-window")
	if extSeconds < 0 || extWindow < 0 || extSeconds > math.MaxUint32 || extWindow > math.MaxUint32 {
		return simConfig{}, errors.New("extension settings out of range")
	}

	opts := ledger.DefaultOptions()
	opts.MaxPending = v.GetInt("max-pending")

	return simConfig{
		Program: cfg,
		Params: outcry.CreateAuctionParams{
			ReservePrice:     v.GetUint64("reserve-price"),
			DurationSeconds:  v.GetUint64("duration"),
			ExtensionSeconds: uint32(extSeconds),
			ExtensionWindow:  uint32(extWindow),
			MinBidIncrement:  v.GetUint64("min-bid-increment"),
		},
		Ledger:   opts,
		Start:    v.GetInt64("start-time"),
		Fund:     v.GetUint64("fund"),
		Bidders:  v.GetInt("bidders"),
		Rounds:   v.GetInt("rounds"),
		Crankers: v.GetInt("crankers"),
		Delegate: v.GetBool("delegate"),
		Sessions: v.GetBool("sessions"),
	}, nil
}

var rootCmd = &cobra.Command{
	Use:   cliName,
	Short: "outcry-sim drives escrowed ascending auctions across both ledger tiers",
	Long: `outcry-sim drives escrowed ascending auctions across both ledger tiers.

Each scenario runs one auction end to end (deposits, bidding, racing end and
settlement cranks, refunds and closure) and validates the ledger invariants
at every checkpoint. Settings come from flags, OUTCRY_* environment variables
or a config.json under $OUTCRY_PATH or ~/.outcry-sim.`,
	Args: cobra.NoArgs,
	PersistentPreRun: func(c *cobra.Command, args []string) {
		configureLogging(v)
	},
	Run: func(c *cobra.Command, args []string) {
		cfg, err := loadSimConfig(v)
		checkErrf("loading config: %v", err)

		names := scenarios
		if s := v.GetString("scenario"); s != "all" {
			names = []string{s}
		}

		ctx := context.Background()
		reports := make([]*report, 0, len(names))
		for _, name := range names {
			log.Info().Str("scenario", name).Msg("running scenario")
			rep, err := runScenario(ctx, cfg, name)
			checkErrf("scenario failed: %v", err)
			reports = append(reports, rep)
		}

		if v.GetString("format") == "json" {
			outputJSON(reports)
		} else {
			outputText(reports)
		}

		for _, rep := range reports {
			if !rep.IsValid() {
				os.Exit(1)
			}
		}
	},
}

// checkErrf exits with status 2 if err is not nil.
func checkErrf(format string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, format+"\n", err)
		os.Exit(2)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}
