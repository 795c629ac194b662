package acquire

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"roslyn-wrapper/logger"
)

// nugetFlatContainer is the Azure DevOps NuGet v3 flat-container feed the
// official Roslyn packages are published to. Package names must be
// lowercased in the URL.
const nugetFlatContainer = "https://pkgs.dev.azure.com/azure-public/vside/_packaging/msft_consumption/nuget/v3/flat2"

// contentPrefix is the archive subtree that holds the language server files.
const contentPrefix = "content/LanguageServer/"

// downloadAndExtract fetches the platform package for version and installs it
// into targetDir. Extraction goes through a uniquely named staging directory
// so a failed run never leaves a half-populated version directory behind.
func downloadAndExtract(targetDir, version string, lg *logger.Logger, notify Notifier) error {
	pkg := strings.ToLower(serverBinaryBase + "." + platformRID())
	url := fmt.Sprintf("%s/%s/%s/%s.%s.nupkg", nugetFlatContainer, pkg, version, pkg, version)
	lg.Debug("acquire: download URL %s", url)

	resp, err := http.Get(url)
	if err != nil {
		msg := fmt.Sprintf("Network error downloading Roslyn: %v", err)
		notify(msg)
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("Failed to download Roslyn %s: HTTP %d", version, resp.StatusCode)
		notify(msg)
		return fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read package body: %w", err)
	}
	lg.Debug("acquire: downloaded %d bytes", len(data))

	notify("Extracting Roslyn LSP...")

	parent := filepath.Dir(targetDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create cache version parent: %w", err)
	}
	staging := filepath.Join(parent, ".tmp_"+uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := extractServerFiles(data, staging, lg); err != nil {
		return err
	}

	if err := os.RemoveAll(targetDir); err != nil {
		return fmt.Errorf("clear target directory: %w", err)
	}
	if err := os.Rename(staging, targetDir); err != nil {
		return fmt.Errorf("move extracted files into place: %w", err)
	}
	lg.Debug("acquire: extraction complete")
	return nil
}

// extractServerFiles unpacks the LanguageServer subtree of the nupkg (nupkgs
// are plain ZIP archives) into dir, restoring the executable bit on the
// server binary.
func extractServerFiles(data []byte, dir string, lg *logger.Logger) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open package archive: %w", err)
	}

	for _, f := range zr.File {
		idx := strings.Index(f.Name, contentPrefix)
		if idx < 0 {
			continue
		}
		rel := f.Name[idx+len(contentPrefix):]
		if rel == "" || strings.HasSuffix(f.Name, "/") {
			continue
		}
		// Zip entry names use forward slashes and may attempt traversal.
		rel = filepath.FromSlash(rel)
		if strings.Contains(rel, "..") {
			continue
		}

		target := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", rel, err)
		}

		src, err := f.Open()
		if err != nil {
			return fmt.Errorf("open archive entry %s: %w", f.Name, err)
		}
		dst, err := os.Create(target)
		if err != nil {
			src.Close()
			return fmt.Errorf("create %s: %w", target, err)
		}
		_, err = io.Copy(dst, src)
		src.Close()
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("extract %s: %w", rel, err)
		}

		if runtime.GOOS != "windows" && filepath.Base(rel) == serverBinaryBase {
			if err := os.Chmod(target, 0o755); err != nil {
				return fmt.Errorf("mark %s executable: %w", rel, err)
			}
		}
		lg.Debug("acquire: extracted %s", rel)
	}
	return nil
}

// platformRID maps the current platform to the NuGet runtime identifier used
// in the package name.
func platformRID() string {
	switch runtime.GOOS {
	case "windows":
		if runtime.GOARCH == "arm64" {
			return "win-arm64"
		}
		return "win-x64"
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "osx-arm64"
		}
		return "osx-x64"
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "linux-arm64"
		}
		return "linux-x64"
	default:
		return "neutral"
	}
}
