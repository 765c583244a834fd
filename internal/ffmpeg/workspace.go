package ffmpeg

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Workspace manages local file storage for one pipeline run. Encoder output
// lands here and is only published to the content store once complete, so
// readers never observe a half-written rendition.
type Workspace struct {
	root  string
	runID uuid.UUID
	paths WorkspacePaths
}

// WorkspacePaths holds all workspace directory paths
type WorkspacePaths struct {
	Root      string
	Input     string
	Output    string
	Subtitles string
	Frames    string
	Sprites   string
}

// NewWorkspace creates a workspace for a run, keyed by the rendition,
// subtitle or video id the run serves.
func NewWorkspace(root string, runID uuid.UUID) *Workspace {
	runDir := filepath.Join(root, runID.String())
	return &Workspace{
		root:  root,
		runID: runID,
		paths: WorkspacePaths{
			Root:      runDir,
			Input:     filepath.Join(runDir, "input"),
			Output:    filepath.Join(runDir, "output"),
			Subtitles: filepath.Join(runDir, "subtitles"),
			Frames:    filepath.Join(runDir, "frames"),
			Sprites:   filepath.Join(runDir, "sprites"),
		},
	}
}

// Create creates all workspace directories
func (w *Workspace) Create() error {
	dirs := []string{
		w.paths.Input,
		w.paths.Output,
		w.paths.Subtitles,
		w.paths.Frames,
		w.paths.Sprites,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	lockPath := filepath.Join(w.paths.Root, ".lock")
	lockFile, err := os.Create(lockPath)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	lockFile.Close()

	return nil
}

// Cleanup removes the workspace
func (w *Workspace) Cleanup() error {
	return os.RemoveAll(w.paths.Root)
}

// Paths returns workspace paths
func (w *Workspace) Paths() WorkspacePaths {
	return w.paths
}

// InputPath returns the path for the downloaded source file
func (w *Workspace) InputPath(filename string) string {
	return filepath.Join(w.paths.Input, filename)
}

// OutputPath returns a path under the encoder output directory
func (w *Workspace) OutputPath(filename string) string {
	return filepath.Join(w.paths.Output, filename)
}

// SubtitlePath returns the path for a subtitle artifact
func (w *Workspace) SubtitlePath(filename string) string {
	return filepath.Join(w.paths.Subtitles, filename)
}

// FramePattern returns the ffmpeg output pattern for timeline frames
func (w *Workspace) FramePattern() string {
	return filepath.Join(w.paths.Frames, "frame_%04d.jpg")
}

// FramePath returns the path of one extracted frame (ffmpeg numbering is
// 1-based)
func (w *Workspace) FramePath(index int) string {
	return filepath.Join(w.paths.Frames, fmt.Sprintf("frame_%04d.jpg", index))
}

// SpritePath returns the path for a sprite sheet
func (w *Workspace) SpritePath(index int) string {
	return filepath.Join(w.paths.Sprites, fmt.Sprintf("sprite_%03d.jpg", index))
}

// GetDiskUsage returns workspace disk usage in bytes
func (w *Workspace) GetDiskUsage() (int64, error) {
	var size int64
	err := filepath.Walk(w.paths.Root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// CleanupOrphans removes workspaces older than maxAge that are not locked
func CleanupOrphans(root string, maxAge time.Duration) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to read workspace root: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}

		dirPath := filepath.Join(root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().After(cutoff) {
			continue
		}

		lockPath := filepath.Join(dirPath, ".lock")
		if _, err := os.Stat(lockPath); err == nil {
			continue
		}

		os.RemoveAll(dirPath)
	}

	return nil
}
