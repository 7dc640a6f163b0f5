package extension

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/credentials"
	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/pkg/logger"
)

// manifest holds the fields we read from manifest.json for logging.
type manifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InjectCredentials splices a credential bootstrap into the extension's
// popup.js and popup.html so the extension starts pre-configured. The
// extension reads credentials from localStorage under "keys".
//
// This writes live temporary credentials into static files that end up in S3;
// acceptable for a time-boxed demo, do not reuse the pattern elsewhere.
func InjectCredentials(extensionDir string, creds credentials.Credentials) error {
	logger.Log.Info().Msg("Configuring extension with AWS credentials")

	manifestPath := filepath.Join(extensionDir, "manifest.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		logger.Log.Warn().Msg("manifest.json not found, extension may not work")
		return nil
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err == nil && m.Name != "" {
		logger.Log.Info().Str("name", m.Name).Str("version", m.Version).Msg("Extension manifest found")
	}

	if err := injectIntoScript(filepath.Join(extensionDir, "popup.js"), creds); err != nil {
		return err
	}
	if err := injectIntoHTML(filepath.Join(extensionDir, "popup.html"), creds); err != nil {
		return err
	}

	logger.Log.Info().Time("valid_until", creds.Expiration).Msg("AWS credentials configured")
	return nil
}

// credentialBootstrap renders the self-executing snippet that stores the
// credentials in localStorage on extension startup.
func credentialBootstrap(creds credentials.Credentials) string {
	return fmt.Sprintf(`
// Auto-injected AWS credentials
(function() {
    const credentials = {
        accessKeyId: '%s',
        secretAccessKey: '%s',
        sessionToken: '%s'
    };
    localStorage.setItem('keys', JSON.stringify(credentials));
    console.log('AWS credentials auto-configured');
})();

`, creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
}

// injectIntoScript prepends the bootstrap to a script file if present.
func injectIntoScript(path string, creds credentials.Credentials) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	patched := credentialBootstrap(creds) + string(data)
	if err := os.WriteFile(path, []byte(patched), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logger.Log.Info().Str("file", filepath.Base(path)).Msg("Credentials injected")
	return nil
}

// injectIntoHTML inserts the bootstrap as a script tag right after <body>.
func injectIntoHTML(path string, creds credentials.Credentials) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	patched := spliceAfterBody(string(data), "<script>"+credentialBootstrap(creds)+"</script>\n")
	if err := os.WriteFile(path, []byte(patched), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logger.Log.Info().Str("file", filepath.Base(path)).Msg("Credentials injected")
	return nil
}

// spliceAfterBody inserts snippet after the opening <body> tag. If the page
// has no <body> tag the document is returned unchanged.
func spliceAfterBody(html, snippet string) string {
	return strings.Replace(html, "<body>", "<body>\n"+snippet, 1)
}
