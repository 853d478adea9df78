package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/teahouse-finance/tvault/internal/state"
)

// Application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// Mode is the safety switch. The binary only runs when it equals ModeDevnet.
	Mode string
	// LogLevel is one of debug, info, warn, error or disabled.
	LogLevel string
	// LogFile, when set, receives a copy of the console log.
	LogFile string

	// DBDriver selects the store: "sqlite", "postgres" or "memory".
	DBDriver   string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string

	// VaultAddress is the account that holds the vault's tokens.
	VaultAddress common.Address
	// OwnerAddress may change fees and assign the manager.
	OwnerAddress common.Address
	// ManagerAddress may swap and manage liquidity.
	ManagerAddress common.Address
	// TreasuryAddress receives every fee.
	TreasuryAddress common.Address

	EntryFee       uint32
	ExitFee        uint32
	PerformanceFee uint32
	ManagementFee  uint32

	// DecimalOffset is added to token0's decimals to give the share decimals.
	DecimalOffset uint8

	// KeeperSchedule is a cron expression or descriptor such as "@every 10m".
	// Empty disables the keeper.
	KeeperSchedule string
	// KeeperAddress is the account the keeper acts as. Swap fees are only
	// collected when it is the manager.
	KeeperAddress common.Address

	Token0Decimals uint8
	Token1Decimals uint8
	PoolFee        uint32
	TickSpacing    int32
	InitialTick    int32
)

// ModeDevnet runs the vault against the in-process simulated chain.
const ModeDevnet = "devnet"

// LoadConfig loads configuration from environment variables and sets the global config vars.
// TVAULT_MODE is required. Other settings come from the environment, then from
// the YAML file named by TVAULT_CONFIG_FILE, then from the defaults in Parameters.go.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	fileValues = nil
	Mode, err = getEnv("TVAULT_MODE")
	if err != nil {
		return err
	}

	if path, ok := os.LookupEnv("TVAULT_CONFIG_FILE"); ok && path != "" {
		if fileValues, err = loadConfigFile(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Int("settings", len(fileValues)).Msg("Loaded configuration file")
	}

	LogLevel = getEnvWithDefault("LOG_LEVEL", DefaultLogLevel)
	LogFile = getEnvWithDefault("LOG_FILE", "")

	if err := loadStoreConfig(); err != nil {
		return err
	}
	if err := loadVaultConfig(); err != nil {
		return err
	}
	if err := loadPoolConfig(); err != nil {
		return err
	}
	if err := loadKeeperConfig(); err != nil {
		return err
	}
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("Mode", Mode).
		Str("DBDriver", DBDriver).
		Str("Vault", VaultAddress.Hex()).
		Str("Manager", ManagerAddress.Hex()).
		Msg("Configuration loaded successfully.")

	return nil
}

func loadStoreConfig() error {
	DBDriver = strings.ToLower(getEnvWithDefault("DB_DRIVER", DefaultDBDriver))
	switch DBDriver {
	case "sqlite", "postgres", "memory":
	default:
		return errors.New("environment variable DB_DRIVER must be sqlite, postgres or memory, got: " + DBDriver)
	}

	DBHost = getEnvWithDefault("DB_HOST", "localhost")
	port, err := getEnvAsUint64WithDefault("DB_PORT", 5432)
	if err != nil {
		return err
	}
	if port > math.MaxUint16 {
		return fmt.Errorf("environment variable DB_PORT out of range: %d", port)
	}
	DBPort = int(port)
	DBUser = getEnvWithDefault("DB_USER", "postgres")
	DBPassword = getEnvWithDefault("DB_PASSWORD", "")
	DBName = getEnvWithDefault("DB_NAME", "tvault")
	DBSSLMode = getEnvWithDefault("DB_SSLMODE", "disable")

	SQLitePath = getEnvWithDefault("SQLITE_PATH", DefaultSQLitePath)
	// Expand the tilde (~) in the database path to the user's home directory.
	if strings.HasPrefix(SQLitePath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		SQLitePath = filepath.Join(home, SQLitePath[2:])
	}
	return nil
}

func loadVaultConfig() error {
	var err error

	if VaultAddress, err = getEnvAsAddress("VAULT_ADDRESS", DefaultVaultAddress); err != nil {
		return err
	}
	if OwnerAddress, err = getEnvAsAddress("VAULT_OWNER", DefaultOwnerAddress); err != nil {
		return err
	}
	if ManagerAddress, err = getEnvAsAddress("VAULT_MANAGER", DefaultManagerAddress); err != nil {
		return err
	}
	if TreasuryAddress, err = getEnvAsAddress("VAULT_TREASURY", DefaultTreasuryAddress); err != nil {
		return err
	}

	if EntryFee, err = getEnvAsUint32("FEE_ENTRY", DefaultFeeConfig.EntryFee); err != nil {
		return err
	}
	if ExitFee, err = getEnvAsUint32("FEE_EXIT", DefaultFeeConfig.ExitFee); err != nil {
		return err
	}
	if PerformanceFee, err = getEnvAsUint32("FEE_PERFORMANCE", DefaultFeeConfig.PerformanceFee); err != nil {
		return err
	}
	if ManagementFee, err = getEnvAsUint32("FEE_MANAGEMENT", DefaultFeeConfig.ManagementFee); err != nil {
		return err
	}

	offset, err := getEnvAsUint64WithDefault("VAULT_DECIMAL_OFFSET", uint64(DefaultDecimalOffset))
	if err != nil {
		return err
	}
	if offset > math.MaxUint8 {
		return fmt.Errorf("environment variable VAULT_DECIMAL_OFFSET out of range: %d", offset)
	}
	DecimalOffset = uint8(offset)
	return nil
}

func loadPoolConfig() error {
	var err error

	d0, err := getEnvAsUint64WithDefault("TOKEN0_DECIMALS", uint64(DefaultPool.Decimals0))
	if err != nil {
		return err
	}
	d1, err := getEnvAsUint64WithDefault("TOKEN1_DECIMALS", uint64(DefaultPool.Decimals1))
	if err != nil {
		return err
	}
	if d0 > math.MaxUint8 || d1 > math.MaxUint8 {
		return errors.New("token decimals must fit in a uint8")
	}
	Token0Decimals, Token1Decimals = uint8(d0), uint8(d1)

	if PoolFee, err = getEnvAsUint32("POOL_FEE", DefaultPool.Fee); err != nil {
		return err
	}
	if TickSpacing, err = getEnvAsInt32("POOL_TICK_SPACING", DefaultPool.TickSpacing); err != nil {
		return err
	}
	if TickSpacing <= 0 {
		return errors.New("environment variable POOL_TICK_SPACING must be positive")
	}
	if InitialTick, err = getEnvAsInt32("POOL_INITIAL_TICK", DefaultPool.InitialTick); err != nil {
		return err
	}
	return nil
}

func loadKeeperConfig() error {
	KeeperSchedule = strings.TrimSpace(getEnvWithDefault("KEEPER_SCHEDULE", DefaultKeeperSchedule))
	if strings.EqualFold(KeeperSchedule, KeeperDisabled) {
		KeeperSchedule = ""
	}
	if KeeperSchedule != "" {
		if _, err := cron.ParseStandard(KeeperSchedule); err != nil {
			return fmt.Errorf("environment variable KEEPER_SCHEDULE is not a valid schedule: %w", err)
		}
	}

	var err error
	KeeperAddress, err = getEnvAsAddress("KEEPER_ADDRESS", ManagerAddress)
	return err
}

// StoreConfig is the database configuration for the selected driver.
func StoreConfig() state.DBConfig {
	return state.DBConfig{
		Driver:   DBDriver,
		Host:     DBHost,
		Port:     DBPort,
		User:     DBUser,
		Password: DBPassword,
		DBName:   DBName,
		SSLMode:  DBSSLMode,
		Path:     SQLitePath,
	}
}

// lookupEnv reads key from the environment, falling back to the config file.
func lookupEnv(key string) (string, bool) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value, true
	}
	value, exists := fileValues[key]
	return value, exists
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := lookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvWithDefault retrieves a string environment variable or fallback when unset or empty.
func getEnvWithDefault(key, fallback string) string {
	if value, exists := lookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

func getEnvAsUint64WithDefault(key string, fallback uint64) (uint64, error) {
	if value, exists := lookupEnv(key); !exists || value == "" {
		return fallback, nil
	}
	return getEnvAsUint64(key)
}

func getEnvAsUint32(key string, fallback uint32) (uint32, error) {
	value, err := getEnvAsUint64WithDefault(key, uint64(fallback))
	if err != nil {
		return 0, err
	}
	if value > math.MaxUint32 {
		return 0, fmt.Errorf("environment variable %s out of range: %d", key, value)
	}
	return uint32(value), nil
}

func getEnvAsInt32(key string, fallback int32) (int32, error) {
	valueStr := getEnvWithDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 32)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int32, got: " + valueStr)
	}
	return int32(value), nil
}

// getEnvAsAddress parses a hex account address, falling back when unset.
func getEnvAsAddress(key string, fallback common.Address) (common.Address, error) {
	valueStr := getEnvWithDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	if !common.IsHexAddress(valueStr) {
		return common.Address{}, errors.New("environment variable " + key + " must be a hex address, got: " + valueStr)
	}
	return common.HexToAddress(valueStr), nil
}
