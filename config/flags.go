package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	DataDir string
	Config  string

	// Node
	NodeURL      string
	NodeUser     string
	NodePassword string

	// HTTP
	HTTP        bool
	HTTPAddr    string
	HTTPPort    int
	HTTPAllowed string
	HTTPCORS    string

	// Workflow
	Miner         string
	Trader        string
	InitialBlocks int64
	SendAmount    float64
	Sink          string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetHTTP    bool
	SetLogJSON bool
}

// ParseFlags parses command-line flags.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("regforge", flag.ContinueOnError)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Node
	fs.StringVar(&f.NodeURL, "node-url", "", "Bitcoin node RPC address (host:port)")
	fs.StringVar(&f.NodeUser, "node-user", "", "Bitcoin node RPC username")
	fs.StringVar(&f.NodePassword, "node-password", "", "Bitcoin node RPC password")

	// HTTP
	fs.BoolVar(&f.HTTP, "http", true, "Enable HTTP API server")
	fs.StringVar(&f.HTTPAddr, "http-addr", "", "HTTP listen address")
	fs.IntVar(&f.HTTPPort, "http-port", 0, "HTTP listen port")
	fs.StringVar(&f.HTTPAllowed, "http-allowed", "", "Allowed IPs for the HTTP API")
	fs.StringVar(&f.HTTPCORS, "http-cors", "", "Allowed CORS origins (comma-separated)")

	// Workflow
	fs.StringVar(&f.Miner, "miner", "", "Name of the mining wallet")
	fs.StringVar(&f.Trader, "trader", "", "Name of the receiving wallet")
	fs.Int64Var(&f.InitialBlocks, "initial-blocks", 0, "Blocks mined during funding")
	fs.Float64Var(&f.SendAmount, "send-amount", 0, "Demo payment size in BTC")
	fs.StringVar(&f.Sink, "sink", "", "Output file for the reconciled record")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	// Custom usage
	fs.Usage = func() {
		printUsage()
	}

	// Parse
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	f.SetHTTP = isFlagSet(fs, "http")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()

	// Detect unparsed flags caused by positional arguments stopping the
	// parser, e.g. "--http false --miner Miner" where "false" stops parsing.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			fmt.Fprintf(os.Stderr, "Error: flag %q was not parsed (positional argument stopped parsing)\n", arg)
			fmt.Fprintf(os.Stderr, "Hint: --http is a boolean flag. Use --http=false (not --http false)\n")
			os.Exit(1)
		}
	}

	return f
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) error {
	// Core
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Node
	if f.NodeURL != "" {
		cfg.Node.URL = f.NodeURL
	}
	if f.NodeUser != "" {
		cfg.Node.User = f.NodeUser
	}
	if f.NodePassword != "" {
		cfg.Node.Password = f.NodePassword
	}

	// HTTP
	if f.SetHTTP {
		cfg.HTTP.Enabled = f.HTTP
	}
	if f.HTTPAddr != "" {
		cfg.HTTP.Addr = f.HTTPAddr
	}
	if f.HTTPPort != 0 {
		cfg.HTTP.Port = f.HTTPPort
	}
	if f.HTTPAllowed != "" {
		cfg.HTTP.AllowedIPs = parseStringList(f.HTTPAllowed)
	}
	if f.HTTPCORS != "" {
		cfg.HTTP.CORSOrigins = parseStringList(f.HTTPCORS)
	}

	// Workflow
	if f.Miner != "" {
		cfg.Workflow.MinerWallet = f.Miner
	}
	if f.Trader != "" {
		cfg.Workflow.TraderWallet = f.Trader
	}
	if f.InitialBlocks != 0 {
		cfg.Workflow.InitialBlocks = f.InitialBlocks
	}
	if f.SendAmount != 0 {
		amount, err := btcutil.NewAmount(f.SendAmount)
		if err != nil {
			return fmt.Errorf("flag send-amount: %w", err)
		}
		cfg.Workflow.SendAmount = amount
	}
	if f.Sink != "" {
		cfg.Workflow.SinkFile = f.Sink
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}

	return nil
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `Regforge - regtest transaction workflow over a Bitcoin Core node

Usage:
  regforged [options]
  regforged --help

Commands:
  --help, -h        Show this help message
  --version, -v     Show version information

Core Options:
  --datadir         Data directory (default: ~/.regforge)
  --config, -c      Config file path (default: <datadir>/regforge.conf)

Node Options:
  --node-url        Bitcoin node RPC address (default: 127.0.0.1:18443)
  --node-user       Bitcoin node RPC username
  --node-password   Bitcoin node RPC password

  Credentials can also come from RPC_URL, RPC_USER and RPC_PASSWORD in
  the environment or a .env file, which take precedence.

HTTP Options:
  --http            Enable the HTTP API server (default: true)
  --http-addr       HTTP listen address (default: 127.0.0.1)
  --http-port       HTTP listen port (default: 8021)
  --http-allowed    Allowed client IPs (comma-separated)
  --http-cors       Allowed CORS origins (comma-separated)

Workflow Options:
  --miner           Mining wallet name (default: Miner)
  --trader          Receiving wallet name (default: Trader)
  --initial-blocks  Blocks mined during funding (default: 101)
  --send-amount     Demo payment size in BTC (default: 20.0)
  --sink            Output file for the reconciled record

Logging Options:
  --log-level       Log level: debug, info, warn, error (default: info)
  --log-file        Log file path
  --log-json        Output logs as JSON
`
	fmt.Fprint(os.Stderr, usage)
}
