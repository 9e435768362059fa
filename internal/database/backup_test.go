package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"guestms/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	tempDir := t.TempDir()
	logger := zerolog.Nop()

	db, err := NewDB(filepath.Join(tempDir, "source.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	seedRoom(t, db, "101", 2, 100)

	storagePath := filepath.Join(tempDir, "backups")
	cfg := config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}
	s := NewBackupService(db, cfg, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)
		assert.FileExists(t, path)

		// the snapshot is a usable database with the same rows
		snap, err := sql.Open("sqlite3", path)
		require.NoError(t, err)
		defer snap.Close()

		var count int
		require.NoError(t, snap.QueryRow(`SELECT COUNT(*) FROM rooms`).Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, backupPrefix+"old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		foreign := filepath.Join(storagePath, "keep.txt")
		require.NoError(t, os.WriteFile(foreign, []byte("keep"), 0o644))

		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))
		require.NoError(t, os.Chtimes(foreign, oldTime, oldTime))

		assert.Equal(t, 1, s.CleanupOldBackups())
		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, foreign)
	})

	t.Run("Fallback", func(t *testing.T) {
		target := filepath.Join(storagePath, "copy.db")
		require.NoError(t, s.copyFile(target))
		assert.FileExists(t, target)
	})
}

func TestBackupService_Loop(t *testing.T) {
	tempDir := t.TempDir()
	logger := zerolog.Nop()

	db, err := NewDB(filepath.Join(tempDir, "loop.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	cfg := config.BackupConfig{Enabled: true, Schedule: "20ms", StoragePath: filepath.Join(tempDir, "backups")}
	s := NewBackupService(db, cfg, &logger)
	assert.Equal(t, 20*time.Millisecond, s.Interval())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	files, err := os.ReadDir(cfg.StoragePath)
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}

func TestBackupService_Disabled(t *testing.T) {
	logger := zerolog.Nop()
	db := setupTestDB(t)
	defer db.Close()

	storage := filepath.Join(t.TempDir(), "never")
	s := NewBackupService(db, config.BackupConfig{Enabled: false, StoragePath: storage}, &logger)
	s.Start(context.Background())

	assert.NoDirExists(t, storage)
}

func TestBackupService_BadSchedule(t *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, config.BackupConfig{Schedule: "daily"}, &logger)
	assert.Equal(t, 24*time.Hour, s.Interval())
}

func TestBackupService_StorageIsFile(t *testing.T) {
	logger := zerolog.Nop()
	db := setupTestDB(t)
	defer db.Close()

	file := filepath.Join(t.TempDir(), "notadir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	s := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: filepath.Join(file, "sub")}, &logger)
	_, err := s.PerformBackup(context.Background())
	assert.Error(t, err)
}
