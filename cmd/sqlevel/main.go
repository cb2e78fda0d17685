package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fedkv/sqlevel/internal/database"
	"github.com/fedkv/sqlevel/pkg/kv"
	"github.com/fedkv/sqlevel/pkg/logger"
)

const version = "0.3.0"

var (
	flagEndpoint string
	flagTable    string
	flagBinary   bool
	flagVerbose  bool

	rootCmd = &cobra.Command{
		Use:   "sqlevel",
		Short: "ordered key-value store over SQL and file backends",
		Long: fmt.Sprintf(`sqlevel (v%s)

Inspect and manipulate ordered key-value stores backed by SQLite,
PostgreSQL, MySQL, or a local file database. The backend is selected by
the endpoint scheme, e.g. sqlite:/tmp/data.db, postgres://host/db,
mysql://host/db, file:/tmp/data.`, version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of sqlevel",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sqlevel v%s\n", version)
		},
	}
)

func init() {
	cobra.OnInitialize(loadEnv)

	rootCmd.PersistentFlags().StringVar(&flagEndpoint, "endpoint", "", "backend endpoint URL (env SQLEVEL_ENDPOINT)")
	rootCmd.PersistentFlags().StringVar(&flagTable, "table", "kv", "table holding the store (env SQLEVEL_TABLE)")
	rootCmd.PersistentFlags().BoolVar(&flagBinary, "binary", false, "treat keys as raw bytes instead of utf8 text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log connection activity")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(delCmd)
	rootCmd.AddCommand(hasCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(benchCmd)
}

// loadEnv fills unset flags from a .env file and the process environment.
func loadEnv() {
	_ = godotenv.Load()
	if flagEndpoint == "" {
		flagEndpoint = os.Getenv("SQLEVEL_ENDPOINT")
	}
	if t := os.Getenv("SQLEVEL_TABLE"); t != "" && flagTable == "kv" {
		flagTable = t
	}
}

// withStore opens the configured store, runs fn, and tears everything down.
func withStore(cmd *cobra.Command, fn func(kv.Store) error) error {
	if flagEndpoint == "" {
		return fmt.Errorf("no endpoint: pass --endpoint or set SQLEVEL_ENDPOINT")
	}

	log := logger.New("sqlevel")
	if !flagVerbose {
		log.DisableConsoleOutput()
	}
	enc := kv.EncodingUTF8
	if flagBinary {
		enc = kv.EncodingBinary
	}

	factory := database.NewFactory(
		database.WithLogger(log),
		database.WithEncoding(enc),
	)
	defer factory.Shutdown()

	store, err := factory.Store(flagEndpoint, flagTable)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := store.Open(ctx); err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
