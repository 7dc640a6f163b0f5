package extension

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/credentials"
	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/pkg/logger"
)

// SizeWarnLimit is the AgentCore per-extension archive limit.
const SizeWarnLimit = 10 * 1024 * 1024

// Setup stages one extension in a working directory, configures it, and
// packages it into a zip.
type Setup struct {
	workDir      string
	extensionDir string
	repoURL      string
	ownsWorkDir  bool
}

// NewSetup creates a Setup. An empty workDir means a fresh temp directory
// that Cleanup will remove.
func NewSetup(workDir, repoURL string) (*Setup, error) {
	owns := false
	if workDir == "" {
		tmp, err := os.MkdirTemp("", "extension_")
		if err != nil {
			return nil, fmt.Errorf("failed to create work dir: %w", err)
		}
		workDir = tmp
		owns = true
	} else if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir %s: %w", workDir, err)
	}

	// Each Setup stages into its own directory so extensions prepared
	// through a shared work dir cannot bleed into each other's archives.
	extensionDir, err := os.MkdirTemp(workDir, "extension-")
	if err != nil {
		return nil, fmt.Errorf("failed to create extension dir: %w", err)
	}

	return &Setup{
		workDir:      workDir,
		extensionDir: extensionDir,
		repoURL:      repoURL,
		ownsWorkDir:  owns,
	}, nil
}

// ExtensionDir returns the staged extension directory.
func (s *Setup) ExtensionDir() string {
	return s.extensionDir
}

// UseExisting stages a caller-supplied extension: a .zip is extracted, a
// directory is copied. Anything else is rejected.
func (s *Setup) UseExisting(path string) error {
	logger.Log.Info().Str("path", path).Msg("Using existing extension")

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("extension path %s: %w", path, err)
	}

	switch {
	case info.Mode().IsRegular() && strings.EqualFold(filepath.Ext(path), ".zip"):
		if err := Extract(path, s.extensionDir); err != nil {
			return err
		}
	case info.IsDir():
		if err := copyTree(path, s.extensionDir); err != nil {
			return fmt.Errorf("failed to copy extension directory: %w", err)
		}
	default:
		return fmt.Errorf("invalid extension path: %s (want a .zip file or a directory)", path)
	}

	logger.Log.Info().Msg("Extension loaded")
	return nil
}

// FetchFromGitHub clones the extension repository, builds it with npm, and
// stages the build output. git and npm must be on PATH.
func (s *Setup) FetchFromGitHub(ctx context.Context) error {
	builder := NewBuilder(s.workDir, s.repoURL)

	if err := builder.Clone(ctx); err != nil {
		return err
	}
	if err := builder.Build(ctx); err != nil {
		return err
	}

	out, err := builder.BuildOutput()
	if err != nil {
		return err
	}

	if err := copyTree(out, s.extensionDir); err != nil {
		return fmt.Errorf("failed to stage build output: %w", err)
	}

	logger.Log.Info().Msg("Extension downloaded and built")
	return nil
}

// Package zips the staged extension. An empty outPath yields a
// timestamped file name in the current directory.
func (s *Setup) Package(outPath string) (string, error) {
	logger.Log.Info().Msg("Packaging extension")

	if outPath == "" {
		outPath = fmt.Sprintf("bedrock-summary-extension-%d.zip", time.Now().UnixNano())
	}

	if err := Pack(s.extensionDir, outPath); err != nil {
		return "", err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat archive %s: %w", outPath, err)
	}

	logger.Log.Info().
		Str("archive", outPath).
		Int64("size", info.Size()).
		Msg("Extension packaged")

	if info.Size() > SizeWarnLimit {
		logger.Log.Warn().Msg("Extension size exceeds the 10 MB limit")
	}

	return outPath, nil
}

// Prepare runs the full preparation workflow for one extension: acquire,
// optionally configure credentials, package. A nil creds skips injection.
func (s *Setup) Prepare(ctx context.Context, existingPath string, creds *credentials.Credentials) (string, error) {
	if existingPath != "" {
		if err := s.UseExisting(existingPath); err != nil {
			return "", err
		}
	} else {
		if err := s.FetchFromGitHub(ctx); err != nil {
			return "", err
		}
	}

	if creds != nil {
		if err := InjectCredentials(s.extensionDir, *creds); err != nil {
			return "", err
		}
	} else {
		logger.Log.Info().Msg("Skipping credential configuration")
	}

	base := "bedrock-summary-extension"
	if existingPath != "" {
		base = strings.TrimSuffix(filepath.Base(existingPath), filepath.Ext(existingPath))
	}
	zipPath, err := s.Package(fmt.Sprintf("%s-%d.zip", base, time.Now().UnixNano()))
	if err != nil {
		return "", err
	}

	logger.Log.Info().Str("archive", zipPath).Msg("Extension preparation complete")
	return zipPath, nil
}

// Cleanup removes the working directory if Setup created it.
func (s *Setup) Cleanup() {
	if s.ownsWorkDir {
		os.RemoveAll(s.workDir)
	}
}
