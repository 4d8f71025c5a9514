// Package reliability backs up the fund databases to S3-compatible storage
// and runs routine database maintenance.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	backupPrefix    = "fundval-backup-"
	backupSuffix    = ".tar.gz"
	timestampLayout = "2006-01-02-150405"
	metadataFile    = "backup-metadata.json"
	formatVersion   = "1"
)

// minBackupsToKeep is never rotated away, whatever the retention.
const minBackupsToKeep = 3

// Snapshotter writes a consistent copy of a database to a file.
type Snapshotter interface {
	BackupTo(ctx context.Context, destPath string) error
}

// R2BackupService manages cloud backups to Cloudflare R2
type R2BackupService struct {
	store     ObjectStore
	databases map[string]Snapshotter
	dataDir   string
	log       zerolog.Logger
	now       func() time.Time
}

// BackupMetadata contains metadata about a backup
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata contains metadata about a single database in the backup
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo represents information about a backup stored in R2
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// NewR2BackupService creates a new R2 backup service. databases maps backup
// names to the databases to snapshot.
func NewR2BackupService(store ObjectStore, databases map[string]Snapshotter, dataDir string, log zerolog.Logger) *R2BackupService {
	return &R2BackupService{
		store:     store,
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("service", "r2_backup").Logger(),
		now:       time.Now,
	}
}

// CreateAndUploadBackup snapshots every database into a tar.gz archive and
// uploads it. It returns the object key.
func (s *R2BackupService) CreateAndUploadBackup(ctx context.Context) (string, error) {
	s.log.Info().Msg("Starting R2 backup")
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, "r2-staging-"+uuid.New().String()[:8])
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	metadata := BackupMetadata{
		Timestamp: s.now().UTC(),
		Version:   formatVersion,
		Databases: make([]DatabaseMetadata, 0, len(names)),
	}

	files := make([]string, 0, len(names)+1)
	for _, name := range names {
		filename := name + ".db"
		dbPath := filepath.Join(stagingDir, filename)

		if err := s.databases[name].BackupTo(ctx, dbPath); err != nil {
			return "", fmt.Errorf("failed to backup %s: %w", name, err)
		}

		info, err := os.Stat(dbPath)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s backup: %w", name, err)
		}
		checksum, err := calculateChecksum(dbPath)
		if err != nil {
			return "", fmt.Errorf("failed to calculate checksum for %s: %w", name, err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      name,
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		files = append(files, filename)
	}

	if err := writeMetadata(filepath.Join(stagingDir, metadataFile), metadata); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}
	files = append(files, metadataFile)

	archiveName := fmt.Sprintf("%s%s-%s%s", backupPrefix, s.now().UTC().Format(timestampLayout), uuid.New().String()[:8], backupSuffix)
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := createArchive(archivePath, stagingDir, files); err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.store.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return "", fmt.Errorf("failed to upload to r2: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_kb", archiveInfo.Size()/1024).
		Msg("R2 backup completed successfully")

	return archiveName, nil
}

// ListBackups lists backups stored in R2, newest first.
func (s *R2BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list r2 backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := s.now()

	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		// fundval-backup-2026-01-08-143022-1a2b3c4d.tar.gz
		filename := *obj.Key
		timestamp, ok := parseBackupTimestamp(filename)
		if !ok {
			s.log.Warn().Str("filename", filename).Msg("Failed to parse timestamp from filename")
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}

		backups = append(backups, BackupInfo{
			Filename:  filename,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups keeps the newest keep backups (never fewer than three)
// and deletes the rest.
func (s *R2BackupService) RotateOldBackups(ctx context.Context, keep int) (int, error) {
	if keep < minBackupsToKeep {
		keep = minBackupsToKeep
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) <= keep {
		s.log.Debug().Int("count", len(backups)).Msg("Too few backups to rotate")
		return 0, nil
	}

	deletedCount := 0
	for _, backup := range backups[keep:] {
		if err := s.store.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", backup.Filename).Msg("Failed to delete old backup")
			continue
		}
		deletedCount++
	}

	s.log.Info().
		Int("deleted", deletedCount).
		Int("remaining", len(backups)-deletedCount).
		Msg("R2 backup rotation completed")

	return deletedCount, nil
}

func parseBackupTimestamp(filename string) (time.Time, bool) {
	if !strings.HasPrefix(filename, backupPrefix) || !strings.HasSuffix(filename, backupSuffix) {
		return time.Time{}, false
	}
	rest := strings.TrimPrefix(filename, backupPrefix)
	if len(rest) < len(timestampLayout) {
		return time.Time{}, false
	}
	timestamp, err := time.Parse(timestampLayout, rest[:len(timestampLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return timestamp, true
}

// calculateChecksum calculates SHA256 checksum of a file
func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// writeMetadata writes backup metadata to a JSON file
func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive creates a tar.gz archive of the named files in sourceDir
func createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, filename := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}

	return nil
}

// addFileToArchive adds a single file to a tar archive
func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}
