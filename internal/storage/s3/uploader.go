package s3

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// UploadProgress tracks upload progress
type UploadProgress struct {
	TotalFiles     int
	CompletedFiles int
	TotalBytes     int64
	UploadedBytes  int64
}

// DirectoryUploader uploads an encoder's output directory concurrently.
// The workers use it to publish a rendition's segments after the encode
// finishes, so a half-written rendition never reaches the store.
type DirectoryUploader struct {
	client        *Client
	maxConcurrent int
}

// NewDirectoryUploader creates a new directory uploader
func NewDirectoryUploader(client *Client, maxConcurrent int) *DirectoryUploader {
	return &DirectoryUploader{
		client:        client,
		maxConcurrent: maxConcurrent,
	}
}

// UploadedFile describes one published object
type UploadedFile struct {
	RelPath string
	Key     string
	Size    int64
	ETag    string
}

// UploadDirectory uploads every file under localDir to bucket with the
// given key prefix and returns one entry per uploaded file.
func (u *DirectoryUploader) UploadDirectory(
	ctx context.Context,
	localDir string,
	bucket string,
	prefix string,
	progressFn func(UploadProgress),
) ([]UploadedFile, error) {
	var files []fileInfo
	err := filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		files = append(files, fileInfo{
			localPath: path,
			relPath:   relPath,
			key:       filepath.Join(prefix, relPath),
			size:      info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	var totalBytes int64
	for _, f := range files {
		totalBytes += f.size
	}

	var uploaded []UploadedFile
	var uploadedMu sync.Mutex
	var uploadedBytes int64
	var completedFiles int32

	sem := make(chan struct{}, u.maxConcurrent)
	errChan := make(chan error, len(files))
	var wg sync.WaitGroup

	for _, f := range files {
		wg.Add(1)
		go func(f fileInfo) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}

			result, err := u.client.Upload(ctx, bucket, f.key, f.localPath)
			if err != nil {
				errChan <- fmt.Errorf("failed to upload %s: %w", f.key, err)
				return
			}

			uploadedMu.Lock()
			uploaded = append(uploaded, UploadedFile{
				RelPath: f.relPath,
				Key:     result.Key,
				Size:    result.Size,
				ETag:    result.ETag,
			})
			uploadedMu.Unlock()

			atomic.AddInt64(&uploadedBytes, f.size)
			atomic.AddInt32(&completedFiles, 1)

			if progressFn != nil {
				progressFn(UploadProgress{
					TotalFiles:     len(files),
					CompletedFiles: int(atomic.LoadInt32(&completedFiles)),
					TotalBytes:     totalBytes,
					UploadedBytes:  atomic.LoadInt64(&uploadedBytes),
				})
			}
		}(f)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("upload errors: %v", errs)
	}

	return uploaded, nil
}

type fileInfo struct {
	localPath string
	relPath   string
	key       string
	size      int64
}
