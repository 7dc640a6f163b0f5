package extension

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/credentials"
	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/pkg/logger"
)

// Builder clones and builds the Bedrock summary extension from GitHub.
type Builder struct {
	workDir string
	repoURL string
	repoDir string
}

// NewBuilder creates a Builder that clones repoURL under workDir.
func NewBuilder(workDir, repoURL string) *Builder {
	name := strings.TrimSuffix(filepath.Base(repoURL), ".git")
	return &Builder{
		workDir: workDir,
		repoURL: repoURL,
		repoDir: filepath.Join(workDir, name),
	}
}

// RepoDir returns the clone destination.
func (b *Builder) RepoDir() string {
	return b.repoDir
}

// CheckTools verifies git and npm are installed.
func (b *Builder) CheckTools(ctx context.Context) error {
	for _, tool := range []string{"git", "npm"} {
		out, err := exec.CommandContext(ctx, tool, "--version").Output()
		if err != nil {
			return fmt.Errorf("%s not found, please install it: %w", tool, err)
		}
		logger.Log.Info().Str("tool", tool).Str("version", strings.TrimSpace(string(out))).Msg("Tool available")
	}
	return nil
}

// Clone performs a shallow clone of the extension repository. An existing
// clone is reused.
func (b *Builder) Clone(ctx context.Context) error {
	if _, err := os.Stat(b.repoDir); err == nil {
		logger.Log.Info().Str("dir", b.repoDir).Msg("Repository already cloned, reusing")
		return nil
	}

	logger.Log.Info().Str("repo", b.repoURL).Msg("Cloning extension repository")

	if err := runCommand(ctx, b.workDir, "git", "clone", "--depth", "1", b.repoURL, b.repoDir); err != nil {
		return fmt.Errorf("failed to clone %s: %w", b.repoURL, err)
	}
	return nil
}

// Build runs npm install and npm run build in the clone.
func (b *Builder) Build(ctx context.Context) error {
	logger.Log.Info().Msg("Installing npm dependencies (this may take a few minutes)")
	if err := runCommand(ctx, b.repoDir, "npm", "install"); err != nil {
		return fmt.Errorf("npm install failed: %w", err)
	}

	logger.Log.Info().Msg("Building extension")
	if err := runCommand(ctx, b.repoDir, "npm", "run", "build"); err != nil {
		return fmt.Errorf("npm run build failed: %w", err)
	}
	return nil
}

// BuildOutput locates the directory holding the built extension: the first of
// dist/, build/, out/ or the repository root that contains a manifest.json.
func (b *Builder) BuildOutput() (string, error) {
	dir, err := findBuildOutput(b.repoDir)
	if err != nil {
		return "", err
	}
	logger.Log.Info().Str("dir", dir).Msg("Found build output")
	return dir, nil
}

func findBuildOutput(repoDir string) (string, error) {
	candidates := []string{
		filepath.Join(repoDir, "dist"),
		filepath.Join(repoDir, "build"),
		filepath.Join(repoDir, "out"),
		repoDir,
	}

	for _, dir := range candidates {
		if _, err := os.Stat(filepath.Join(dir, "manifest.json")); err == nil {
			return dir, nil
		}
	}

	return "", fmt.Errorf("no build output with manifest.json found under %s", repoDir)
}

// RewriteSource patches the cloned sources before building: swaps the Bedrock
// model to Claude 3 Haiku, reshapes the invoke payload for the messages API,
// sets a default capture rule, and injects credentials. All of it is plain
// text substitution against a pinned upstream, so misses are tolerated.
func (b *Builder) RewriteSource(creds *credentials.Credentials) error {
	logger.Log.Info().Msg("Patching extension sources")

	sdkPath := filepath.Join(b.repoDir, "sdk.js")
	if data, err := os.ReadFile(sdkPath); err == nil {
		if err := os.WriteFile(sdkPath, []byte(rewriteSDK(string(data))), 0o644); err != nil {
			return fmt.Errorf("failed to write sdk.js: %w", err)
		}
		logger.Log.Info().Msg("Updated model to Claude 3 Haiku")
	}

	popupPath := filepath.Join(b.repoDir, "popup.js")
	data, err := os.ReadFile(popupPath)
	if err != nil {
		logger.Log.Warn().Msg("popup.js not found, skipping source patch")
		return nil
	}

	patched := rewritePopup(string(data))
	if creds != nil {
		patched = credentialBootstrap(*creds) + patched
	}
	if err := os.WriteFile(popupPath, []byte(patched), 0o644); err != nil {
		return fmt.Errorf("failed to write popup.js: %w", err)
	}

	logger.Log.Info().Msg("Default rule and credentials injected into popup.js")
	return nil
}

// defaultCaptureRule captures paragraphs, headings, list items and articles
// so the summarizer sees useful content out of the box.
const defaultCaptureRule = `<p>(.*?)</p>|<h[1-6]>(.*?)</h[1-6]>|<li>(.*?)</li>|<article>(.*?)</article>`

const (
	oldModelID = `modelId: "anthropic.claude-v2:1"`
	newModelID = `modelId: "anthropic.claude-3-haiku-20240307-v1:0"`

	oldInvokeBody = `body: JSON.stringify({
      prompt,
      max_tokens_to_sample: 8000,
    })`
	newInvokeBody = `body: JSON.stringify({
      anthropic_version: "bedrock-2023-05-31",
      max_tokens: 4096,
      messages: [{
        role: "user",
        content: prompt.replace(/\n\nHuman: |\n\nAssistant:/g, '')
      }]
    })`

	oldParseResult = `const jsonResult = JSON.parse(result);
        callback && callback(jsonResult);`
	newParseResult = `const jsonResult = JSON.parse(result);
        // Claude 3 returns content in messages format
        if (jsonResult.content && jsonResult.content[0]) {
          callback && callback({ completion: jsonResult.content[0].text });
        } else {
          callback && callback(jsonResult);
        }`
)

func rewriteSDK(src string) string {
	src = strings.ReplaceAll(src, oldModelID, newModelID)
	src = strings.ReplaceAll(src, oldInvokeBody, newInvokeBody)
	src = strings.ReplaceAll(src, oldParseResult, newParseResult)
	return src
}

func rewritePopup(src string) string {
	src = strings.Replace(src,
		`regexp = currentSetting?.regexp || '';`,
		`regexp = currentSetting?.regexp || '`+defaultCaptureRule+`';`,
		1)

	src = strings.Replace(src,
		`if (currentHost) {`,
		`if (currentHost) {
    // Auto-inject default rule if not exists
    if (!localStorage.getItem(currentHost)) {
      localStorage.setItem(currentHost, JSON.stringify({ regexp: '`+defaultCaptureRule+`' }));
      console.log('Default rule set for: ' + currentHost);
    }`,
		1)

	return src
}

// runCommand runs an external tool as a blocking subprocess. A non-zero exit
// is a failure carrying the combined output.
func runCommand(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w\n%s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
