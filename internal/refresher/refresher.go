// Package refresher re-downloads the detail record for a single person
// from the remote provider.
package refresher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/mediakeep/peoplesync/internal/retry"
)

// DetailFileName is the file each entity's refreshed record is written to.
const DetailFileName = "person.json"

// Doer abstracts the HTTP transport so tests can inject a fake client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Downloader fetches person detail payloads and stores them in the
// entity's data directory. Transient transport failures and 5xx
// responses are retried with backoff; 4xx responses are permanent.
type Downloader struct {
	httpClient Doer
	baseURL    string
	apiKey     string
	retryCfg   *retry.Config
}

// NewDownloader creates a refresher backed by the remote detail endpoint.
func NewDownloader(httpClient Doer, baseURL, apiKey string) *Downloader {
	return &Downloader{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		retryCfg:   retry.DownloadDefaults(),
	}
}

// Refresh downloads the current detail record for the given entity and
// writes it to dataPath. The caller is expected to have created dataPath.
func (d *Downloader) Refresh(ctx context.Context, id, dataPath string) error {
	requestURL := fmt.Sprintf("%s/person/%s?api_key=%s",
		d.baseURL, url.PathEscape(id), url.QueryEscape(d.apiKey))

	var body []byte
	err := retry.WithOperation(ctx, d.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode >= 500:
			return fmt.Errorf("unexpected status %s", resp.Status)
		default:
			return retry.Permanent(fmt.Errorf("unexpected status %s", resp.Status))
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}, "person detail download")
	if err != nil {
		return fmt.Errorf("failed to download detail record for person %s: %w", id, err)
	}

	if err := writeFileAtomic(filepath.Join(dataPath, DetailFileName), body); err != nil {
		return fmt.Errorf("failed to store detail record for person %s: %w", id, err)
	}

	logrus.WithFields(logrus.Fields{
		"person_id": id,
		"bytes":     len(body),
	}).Debug("Refreshed person detail record")

	return nil
}

// writeFileAtomic writes data via a temp file and rename so a crashed
// refresh never leaves a truncated record behind.
func writeFileAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".peoplesync-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(0644); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
