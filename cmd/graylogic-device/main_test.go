package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-device/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-device/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-device/internal/storage"
	"github.com/nerrad567/gray-logic-device/migrations"
)

// writeConfig writes a minimal config with the database under dir.
func writeConfig(t *testing.T, dir, extra string) (configPath, dbPath string) {
	t.Helper()

	dbPath = filepath.Join(dir, "device.db")
	configPath = filepath.Join(dir, "config.yaml")
	content := `
database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

logging:
  level: error
  format: text
  output: stderr
` + extra
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath, dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	for _, want := range []string{"graylogic-device", "version", version, "target"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q:\n%s", want, out)
		}
	}
}

func TestRoot_RejectsUnknownInput(t *testing.T) {
	if _, err := execute(t, "--unknown-flag"); err == nil {
		t.Error("unknown flag should fail")
	}
	if _, err := execute(t, "run", "extra"); err == nil {
		t.Error("positional argument should fail")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(configEnv, "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv(configEnv, "/etc/graylogic/device.yaml")
	if got := getConfigPath(); got != "/etc/graylogic/device.yaml" {
		t.Errorf("getConfigPath() = %q, want env value", got)
	}
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv(configEnv, "/nonexistent/path/config.yaml")

	_, err := execute(t, "run")
	if err == nil {
		t.Fatal("run should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config", err)
	}
}

// TestRun_InvalidLogging verifies trace initialisation rejects a bad output.
func TestRun_InvalidLogging(t *testing.T) {
	configPath, _ := writeConfig(t, t.TempDir(), "")
	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	bad := strings.Replace(string(content), "output: stderr", "output: /dev/ttyUSB0", 1)
	if err := os.WriteFile(configPath, []byte(bad), 0600); err != nil {
		t.Fatal(err)
	}

	_, err = execute(t, "--config", configPath)
	if !errors.Is(err, logging.ErrInvalidConfig) {
		t.Errorf("run error = %v, want ErrInvalidConfig", err)
	}
}

// TestRun_UnreachableSensor verifies startup errors surface from run.
func TestRun_UnreachableSensor(t *testing.T) {
	configPath, _ := writeConfig(t, t.TempDir(), `
platform:
  startup_delay: 0s
  sensor:
    driver: modbus
    modbus:
      endpoint: "127.0.0.1:1"
      timeout: 200ms
`)

	_, err := execute(t, "run", "--config", configPath)
	if err == nil {
		t.Fatal("run should fail when the sensor cannot be reached")
	}
	if !strings.Contains(err.Error(), "platform init") {
		t.Errorf("error = %v, want platform init failure", err)
	}
}

func TestFactoryResetCommand(t *testing.T) {
	configPath, dbPath := writeConfig(t, t.TempDir(), "")

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: dbPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	store := storage.New(db.DB)
	if err := store.Put(ctx, storage.KindConfig, "endpoint_name", []byte("dev-0001"), false); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, storage.KindCertificate, "ca", []byte("factory-ca"), true); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	db.Close() //nolint:errcheck // Reopened by the command

	out, err := execute(t, "factory-reset", "--config", configPath)
	if err != nil {
		t.Fatalf("factory-reset error = %v", err)
	}
	if !strings.Contains(out, "secure storage erased") {
		t.Errorf("output = %q, want confirmation", out)
	}

	db, err = database.Open(ctx, database.Config{Path: dbPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup
	store = storage.New(db.DB)

	names, err := store.Names(ctx, storage.KindConfig)
	if err != nil {
		t.Fatalf("Names() error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("config items after reset = %v, want none", names)
	}
	if _, err := store.Get(ctx, storage.KindCertificate, "ca"); err != nil {
		t.Errorf("factory item should survive reset: %v", err)
	}
}

func TestFactoryResetCommand_InvalidConfig(t *testing.T) {
	if _, err := execute(t, "factory-reset", "--config", "/nonexistent/config.yaml"); err == nil {
		t.Error("factory-reset should fail with invalid config path")
	}
}
