package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "kuctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"migrate", "seed", "stores", "export-ledger", "token"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.DefValue)
}

func TestExportLedgerCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	exportCmd, _, err := cmd.Find([]string{"export-ledger"})
	require.NoError(t, err)

	storeFlag := exportCmd.Flags().Lookup("store")
	require.NotNil(t, storeFlag)
	assert.Equal(t, "s", storeFlag.Shorthand)

	outFlag := exportCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag)
	assert.Equal(t, "o", outFlag.Shorthand)
}

// run executes kuctl with args, ignoring any .env in the working tree.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestInvalidFormatIsRejected(t *testing.T) {
	_, err := run(t, "--format", "yaml", "token", "--subject", "u-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestToken_SignsVerifiableToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret")

	out, err := run(t, "token", "--subject", "u-acme", "--store", "acme")
	require.NoError(t, err)

	claims, err := service.NewAuthService("cli-test-secret", 0, zap.NewNop()).ValidateAccessToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u-acme", claims.Subject)
	assert.Equal(t, "acme", claims.StoreID)
}

func TestToken_RequiresSubject(t *testing.T) {
	_, err := run(t, "token")
	require.Error(t, err)
}

func TestMigrate_MemoryNeedsNone(t *testing.T) {
	out, err := run(t, "--driver", "memory", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "needs no migration")
}

func TestSeedStoresAndExport_SQLite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "ku.db"))

	out, err := run(t, "--driver", "sqlite", "seed", "--file", "../../deploy/seed/demo.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "stores:   2 created, 0 skipped")

	// Re-applying the fixture leaves existing stores alone.
	out, err = run(t, "--driver", "sqlite", "seed", "--file", "../../deploy/seed/demo.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "0 created, 2 skipped")

	out, err = run(t, "--driver", "sqlite", "--format", "json", "stores")
	require.NoError(t, err)
	var stores []domain.Store
	require.NoError(t, json.Unmarshal([]byte(out), &stores))
	assert.Len(t, stores, 2)

	book := filepath.Join(dir, "ledger.xlsx")
	out, err = run(t, "--driver", "sqlite", "export-ledger", "--store", "store-1", "--out", book)
	require.NoError(t, err)
	assert.Contains(t, out, "ledger rows")

	raw, err := os.ReadFile(book)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("PK")), "xlsx is a zip archive")
}

func TestExportLedger_UnknownStore(t *testing.T) {
	_, err := run(t, "--driver", "memory", "export-ledger", "--store", "nowhere", "--out", filepath.Join(t.TempDir(), "x.xlsx"))
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitCommandError, exitErr.Code)
}
