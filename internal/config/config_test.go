package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TVAULT_MODE", ModeDevnet)
	for _, key := range []string{"DB_DRIVER", "FEE_ENTRY", "VAULT_MANAGER", "POOL_TICK_SPACING", "WEB_PORT", "WEB_HOST", "LOG_LEVEL", "DB_PORT", "SQLITE_PATH", "KEEPER_SCHEDULE", "KEEPER_ADDRESS", "TVAULT_CONFIG_FILE"} {
		t.Setenv(key, "")
	}

	require.NoError(t, LoadConfig())
	assert.Equal(t, ModeDevnet, Mode)
	assert.Equal(t, DefaultLogLevel, LogLevel)
	assert.Equal(t, DefaultDBDriver, DBDriver)
	assert.Equal(t, DefaultManagerAddress, ManagerAddress)
	assert.Equal(t, DefaultFeeConfig, FeeConfig())
	assert.Equal(t, DefaultPool.TickSpacing, TickSpacing)
	assert.Equal(t, "0.0.0.0:8080", ListenAddress())
	assert.Equal(t, 5432, StoreConfig().Port)
	assert.Equal(t, DefaultKeeperSchedule, KeeperSchedule)
	assert.Equal(t, ManagerAddress, KeeperAddress)
	assert.Equal(t, DefaultSQLitePath, StoreConfig().Path)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("TVAULT_MODE", ModeDevnet)
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("VAULT_MANAGER", "0x00000000000000000000000000000000000000aa")
	t.Setenv("FEE_EXIT", "5000")
	t.Setenv("VAULT_DECIMAL_OFFSET", "6")
	t.Setenv("POOL_INITIAL_TICK", "-120")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("KEEPER_SCHEDULE", "OFF")

	require.NoError(t, LoadConfig())
	assert.Equal(t, "postgres", DBDriver)
	assert.Equal(t, common.HexToAddress("0xaa"), ManagerAddress)
	assert.Equal(t, uint32(5000), ExitFee)
	assert.Equal(t, uint8(6), DecimalOffset)
	assert.Equal(t, int32(-120), InitialTick)
	assert.Equal(t, "9090", WebPort)
	assert.Empty(t, KeeperSchedule)
	assert.Equal(t, ManagerAddress, KeeperAddress, "keeper follows the manager override")
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown driver", "DB_DRIVER", "mysql"},
		{"bad address", "VAULT_OWNER", "not-an-address"},
		{"bad fee", "FEE_ENTRY", "-1"},
		{"fee overflow", "FEE_MANAGEMENT", "5000000000"},
		{"offset overflow", "VAULT_DECIMAL_OFFSET", "300"},
		{"bad port", "DB_PORT", "70000"},
		{"zero spacing", "POOL_TICK_SPACING", "0"},
		{"bad tick", "POOL_INITIAL_TICK", "up"},
		{"bad schedule", "KEEPER_SCHEDULE", "every now and then"},
		{"missing file", "TVAULT_CONFIG_FILE", "/nonexistent/tvault.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TVAULT_MODE", ModeDevnet)
			t.Setenv(tt.key, tt.val)
			assert.Error(t, LoadConfig())
		})
	}
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
store:
  driver: memory
vault:
  manager: "0x00000000000000000000000000000000000000bb"
  decimal_offset: 3
fees:
  entry: 2500
  exit: 0
pool:
  tick_spacing: 10
keeper:
  schedule: "*/5 * * * *"
web:
  port: 9191
`)
	t.Setenv("TVAULT_MODE", ModeDevnet)
	t.Setenv("TVAULT_CONFIG_FILE", path)
	for _, key := range []string{"DB_DRIVER", "VAULT_MANAGER", "VAULT_DECIMAL_OFFSET", "FEE_ENTRY", "FEE_EXIT", "POOL_TICK_SPACING", "KEEPER_SCHEDULE", "KEEPER_ADDRESS"} {
		t.Setenv(key, "")
	}
	t.Setenv("WEB_PORT", "7070")

	require.NoError(t, LoadConfig())
	assert.Equal(t, "memory", DBDriver)
	assert.Equal(t, common.HexToAddress("0xbb"), ManagerAddress)
	assert.Equal(t, uint8(3), DecimalOffset)
	assert.Equal(t, uint32(2500), EntryFee)
	assert.Zero(t, ExitFee)
	assert.Equal(t, int32(10), TickSpacing)
	assert.Equal(t, "*/5 * * * *", KeeperSchedule)
	assert.Equal(t, "7070", WebPort, "environment wins over the file")
	assert.Equal(t, DefaultFeeConfig.PerformanceFee, PerformanceFee, "unset keys keep their defaults")
}

func TestLoadConfigFileRejectsUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, "vault:\n  owners: \"0x01\"\n")
	t.Setenv("TVAULT_MODE", ModeDevnet)
	t.Setenv("TVAULT_CONFIG_FILE", path)
	assert.ErrorContains(t, LoadConfig(), "owners")
}

func TestLoadConfigEmptyFile(t *testing.T) {
	t.Setenv("TVAULT_MODE", ModeDevnet)
	t.Setenv("TVAULT_CONFIG_FILE", writeConfigFile(t, ""))
	t.Setenv("POOL_FEE", "")
	require.NoError(t, LoadConfig())
	assert.Equal(t, DefaultPool.Fee, PoolFee)
}

func TestGetEnvHelpers(t *testing.T) {
	_, err := getEnv("TVAULT_TEST_SURELY_UNSET")
	assert.Error(t, err)

	t.Setenv("TVAULT_TEST_VALUE", "42")
	v, err := getEnvAsUint64("TVAULT_TEST_VALUE")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)
	assert.Equal(t, "fallback", getEnvWithDefault("TVAULT_TEST_SURELY_UNSET", "fallback"))

	t.Setenv("TVAULT_TEST_VALUE", "4x")
	_, err = getEnvAsUint64("TVAULT_TEST_VALUE")
	assert.Error(t, err)
}
