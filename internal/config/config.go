package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DatabaseSchemePostgres is the postgres database scheme identifier
	DatabaseSchemePostgres = "postgres"
	// DatabaseSchemeMySQL is the mysql database scheme identifier
	DatabaseSchemeMySQL = "mysql"

	// BaseMainnetChainID is the chain the raffle contract is deployed on.
	BaseMainnetChainID uint64 = 8453
	// DefaultRaffleAddress is the deployed raffle contract on Base.
	DefaultRaffleAddress = "0x0C8020F0F4D4fb6fe708B0ED91cc3BAd00D419A8"
)

type Config struct {
	RPCURL       string            // JSON-RPC endpoint for the required chain
	ChainRPCURLs map[uint64]string // chain id -> endpoint; used when the wallet switches chain
	ChainID      uint64            // required chain id
	TokenAddress string            // optional: resolved from the raffle contract when empty
	RaffleAddr   string
	RaffleNumber int64
	EntryFee     *big.Int // optional: resolved from the raffle contract when nil

	WalletKey string // hex private key for the CLI wallet provider

	StoreURL    string // base URL of the guess store API
	ListenAddr  string // guess store listen address
	CORSOrigins []string
	RateLimit   float64 // requests per second per client on the store API
	RateBurst   int

	DBDialect string // postgres or mysql
	DBDsn     string // DSN string passed to GORM driver
	RedisURL  string // optional: enables the redis in-flight guard

	FIDAPIURL string // optional: Farcaster user-by-address API
	FIDAPIKey string

	JournalPath string

	SwitchTimeout  time.Duration
	SettleDelay    time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration

	Debug bool
}

func getenv(v *viper.Viper, key, def string) string {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def
	}
	return s
}

func getenvBool(v *viper.Viper, key string, def bool) bool {
	s := strings.ToLower(strings.TrimSpace(v.GetString(key)))
	if s == "" {
		return def
	}
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func getenvDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using %s\n", key, s, def)
		return def
	}
	return d
}

func getenvInt(v *viper.Viper, key string, def int64) int64 {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using %d\n", key, s, def)
		return def
	}
	return n
}

func getenvFloat(v *viper.Viper, key string, def float64) float64 {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using %g\n", key, s, def)
		return def
	}
	return f
}

// parseDatabaseURL interprets DATABASE_URL and returns (dialect, dsn).
// Supported schemes: postgres, postgresql, mysql.
func parseDatabaseURL(databaseURL string) (string, string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", err
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case DatabaseSchemePostgres, "postgresql":
		// GORM postgres driver accepts URL DSN as-is
		return DatabaseSchemePostgres, databaseURL, nil
	case DatabaseSchemeMySQL:
		// go-sql-driver expects user:pass@tcp(host:port)/db?params
		dsn := ""
		if u.User != nil {
			dsn = u.User.String() + "@"
		}
		dsn += fmt.Sprintf("tcp(%s)%s", u.Host, u.Path)
		q := u.Query()
		if q.Get("parseTime") == "" {
			q.Set("parseTime", "true")
		}
		dsn += "?" + q.Encode()
		return DatabaseSchemeMySQL, dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme: %s", u.Scheme)
	}
}

// parseChainRPCURLs reads "8453=https://...,1=https://..." pairs.
func parseChainRPCURLs(s string) (map[uint64]string, error) {
	out := map[uint64]string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, endpoint, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("chain rpc entry %q: expected <chain id>=<url>", part)
		}
		n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chain rpc entry %q: %w", part, err)
		}
		out[n] = strings.TrimSpace(endpoint)
	}
	return out, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	if file := strings.TrimSpace(os.Getenv("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: reading %s: %v\n", file, err)
		}
	}
	return v
}

func Load() Config {
	return load(newViper())
}

func load(v *viper.Viper) Config {
	cfg := Config{
		RPCURL:         getenv(v, "RPC_URL", "https://mainnet.base.org"),
		ChainID:        uint64(getenvInt(v, "CHAIN_ID", int64(BaseMainnetChainID))),
		TokenAddress:   getenv(v, "TOKEN_ADDRESS", ""),
		RaffleAddr:     getenv(v, "RAFFLE_ADDRESS", DefaultRaffleAddress),
		RaffleNumber:   getenvInt(v, "RAFFLE_NUMBER", 1),
		WalletKey:      strings.TrimPrefix(getenv(v, "WALLET_PRIVATE_KEY", ""), "0x"),
		StoreURL:       strings.TrimSuffix(getenv(v, "STORE_URL", "http://localhost:8080"), "/"),
		ListenAddr:     getenv(v, "LISTEN_ADDR", ":8080"),
		RateLimit:      getenvFloat(v, "RATE_LIMIT_RPS", 5),
		RateBurst:      int(getenvInt(v, "RATE_LIMIT_BURST", 10)),
		RedisURL:       getenv(v, "REDIS_URL", ""),
		FIDAPIURL:      getenv(v, "FID_API_URL", ""),
		FIDAPIKey:      getenv(v, "FID_API_KEY", ""),
		JournalPath:    getenv(v, "JOURNAL_PATH", ".raffle-journal"),
		SwitchTimeout:  getenvDuration(v, "CHAIN_SWITCH_TIMEOUT", 5*time.Second),
		SettleDelay:    getenvDuration(v, "CHAIN_SETTLE_DELAY", time.Second),
		ConfirmTimeout: getenvDuration(v, "CONFIRM_TIMEOUT", 2*time.Minute),
		PollInterval:   getenvDuration(v, "RECEIPT_POLL_INTERVAL", 2*time.Second),
		Debug:          getenvBool(v, "DEBUG", false),
	}

	if fee := getenv(v, "ENTRY_FEE", ""); fee != "" {
		if n, ok := new(big.Int).SetString(fee, 10); ok && n.Sign() > 0 {
			cfg.EntryFee = n
		} else {
			fmt.Fprintf(os.Stderr, "warning: invalid ENTRY_FEE=%q, reading it from the raffle contract\n", fee)
		}
	}

	if origins := getenv(v, "CORS_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	cfg.ChainRPCURLs = map[uint64]string{}
	if raw := getenv(v, "CHAIN_RPC_URLS", ""); raw != "" {
		m, err := parseChainRPCURLs(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: invalid CHAIN_RPC_URLS, ignoring: %v\n", err)
		} else {
			cfg.ChainRPCURLs = m
		}
	}
	if _, ok := cfg.ChainRPCURLs[cfg.ChainID]; !ok {
		cfg.ChainRPCURLs[cfg.ChainID] = cfg.RPCURL
	}

	if dbURL := getenv(v, "DATABASE_URL", ""); dbURL != "" {
		if dialect, dsn, err := parseDatabaseURL(dbURL); err == nil {
			cfg.DBDialect = dialect
			cfg.DBDsn = dsn
		} else {
			fmt.Fprintf(os.Stderr, "warning: invalid DATABASE_URL, disabling persistence: %v\n", err)
		}
	}

	return cfg
}

func (c Config) String() string {
	return fmt.Sprintf("rpc=%s chain=%d raffle=%s#%d store=%s db=%s", c.RPCURL, c.ChainID, c.RaffleAddr, c.RaffleNumber, c.StoreURL, c.DBDialect)
}

// DebugString returns a human-friendly configuration string with masked secrets.
func (c Config) DebugString() string {
	fee := "contract"
	if c.EntryFee != nil {
		fee = c.EntryFee.String()
	}
	return fmt.Sprintf(
		"rpc=%s chain=%d raffle=%s#%d token=%s fee=%s store=%s db=%s dsn=%s redis=%s wallet_key=%s",
		c.RPCURL,
		c.ChainID,
		c.RaffleAddr,
		c.RaffleNumber,
		c.TokenAddress,
		fee,
		c.StoreURL,
		c.DBDialect,
		maskDSN(c.DBDialect, c.DBDsn),
		maskURL(c.RedisURL),
		maskSecret(c.WalletKey),
	)
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func maskURL(raw string) string {
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		if u.User != nil {
			u.User = url.User(u.User.Username())
		}
		return u.String()
	}
	return raw
}

func maskDSN(dialect, dsn string) string {
	switch strings.ToLower(dialect) {
	case DatabaseSchemePostgres:
		if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
			if u.User != nil {
				username := u.User.Username()
				u.User = url.User(username)
			}
			return u.String()
		}
		// Fallback for DSN as key-value list
		parts := strings.Fields(dsn)
		for i, p := range parts {
			lower := strings.ToLower(p)
			if strings.HasPrefix(lower, "password=") {
				parts[i] = "password=***"
			}
		}
		return strings.Join(parts, " ")
	case DatabaseSchemeMySQL:
		at := strings.LastIndex(dsn, "@")
		if at < 0 {
			return dsn
		}
		creds := dsn[:at]
		if user, _, ok := strings.Cut(creds, ":"); ok {
			return user + ":***" + dsn[at:]
		}
		return dsn
	default:
		return dsn
	}
}
