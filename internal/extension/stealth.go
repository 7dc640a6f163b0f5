package extension

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/pkg/logger"
)

// GenerateStealth writes a self-contained MV3 extension into outputDir that
// makes the managed browser look like a regular user browser (webdriver flag,
// user agent, fingerprinting surfaces). Returns the extension directory.
func GenerateStealth(outputDir string) (string, error) {
	logger.Log.Info().Str("dir", outputDir).Msg("Creating stealth extension")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", outputDir, err)
	}

	manifestJSON, err := json.MarshalIndent(stealthManifest(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}

	files := map[string][]byte{
		"manifest.json": manifestJSON,
		"background.js": []byte(stealthBackgroundJS),
		"content.js":    []byte(stealthContentJS),
		"inject.js":     []byte(stealthInjectJS),
		"icon16.png":    placeholderPNG,
		"icon48.png":    placeholderPNG,
		"icon128.png":   placeholderPNG,
	}

	for name, data := range files {
		if err := os.WriteFile(filepath.Join(outputDir, name), data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	logger.Log.Info().Msg("Stealth extension created")
	return outputDir, nil
}

func stealthManifest() map[string]any {
	return map[string]any{
		"manifest_version": 3,
		"name":             "Stealth Mode for AgentCore Browser",
		"version":          "1.0.0",
		"description":      "Makes the browser appear more human-like to bypass bot detection",
		"permissions":      []string{"webNavigation", "webRequest", "storage"},
		"host_permissions": []string{"<all_urls>"},
		"background": map[string]any{
			"service_worker": "background.js",
		},
		"content_scripts": []map[string]any{
			{
				"matches":    []string{"<all_urls>"},
				"js":         []string{"content.js"},
				"run_at":     "document_start",
				"all_frames": true,
			},
		},
		"web_accessible_resources": []map[string]any{
			{
				"resources": []string{"inject.js"},
				"matches":   []string{"<all_urls>"},
			},
		},
		"icons": map[string]any{
			"16":  "icon16.png",
			"48":  "icon48.png",
			"128": "icon128.png",
		},
	}
}

const stealthBackgroundJS = `// Background script for stealth mode

// Override User-Agent for all requests
chrome.webRequest.onBeforeSendHeaders.addListener(
  function(details) {
    const headers = details.requestHeaders;

    for (let i = 0; i < headers.length; i++) {
      if (headers[i].name.toLowerCase() === 'user-agent') {
        headers[i].value = 'Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36';
      }
    }

    // Remove automation-related headers
    const headersToRemove = [
      'x-devtools-emulate-network-conditions-client-id',
      'x-client-data'
    ];

    for (let i = headers.length - 1; i >= 0; i--) {
      if (headersToRemove.includes(headers[i].name.toLowerCase())) {
        headers.splice(i, 1);
      }
    }

    return { requestHeaders: headers };
  },
  { urls: ['<all_urls>'] },
  ['blocking', 'requestHeaders']
);

console.log('Stealth mode background script loaded');
`

const stealthContentJS = `// Content script to inject stealth code

(function() {
  'use strict';

  const script = document.createElement('script');
  script.src = chrome.runtime.getURL('inject.js');
  script.onload = function() {
    this.remove();
  };
  (document.head || document.documentElement).appendChild(script);
})();
`

const stealthInjectJS = `// Stealth mode injection script
// Runs in the page context to modify browser properties

(function() {
  'use strict';

  // Override navigator.webdriver (most important)
  Object.defineProperty(navigator, 'webdriver', {
    get: () => undefined,
    configurable: true
  });

  const navigatorProps = {
    platform: 'MacIntel',
    vendor: 'Google Inc.',
    hardwareConcurrency: 8,
    deviceMemory: 8,
    maxTouchPoints: 0
  };

  for (const [key, value] of Object.entries(navigatorProps)) {
    try {
      Object.defineProperty(navigator, key, {
        get: () => value,
        configurable: true
      });
    } catch (e) {
      console.warn('Failed to override navigator.' + key, e);
    }
  }

  Object.defineProperty(navigator, 'plugins', {
    get: () => [
      { name: 'Chrome PDF Plugin', description: 'Portable Document Format', filename: 'internal-pdf-viewer', length: 1 },
      { name: 'Chrome PDF Viewer', description: '', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai', length: 1 },
      { name: 'Native Client', description: '', filename: 'internal-nacl-plugin', length: 2 }
    ],
    configurable: true
  });

  Object.defineProperty(navigator, 'languages', {
    get: () => ['en-US', 'en'],
    configurable: true
  });

  const originalQuery = window.navigator.permissions.query;
  window.navigator.permissions.query = (parameters) => (
    parameters.name === 'notifications' ?
      Promise.resolve({ state: Notification.permission }) :
      originalQuery(parameters)
  );

  // Prevent canvas fingerprinting
  const originalToDataURL = HTMLCanvasElement.prototype.toDataURL;
  HTMLCanvasElement.prototype.toDataURL = function(type) {
    const context = this.getContext('2d');
    if (context) {
      const imageData = context.getImageData(0, 0, this.width, this.height);
      for (let i = 0; i < imageData.data.length; i += 4) {
        imageData.data[i] += Math.floor(Math.random() * 2);
      }
      context.putImageData(imageData, 0, 0);
    }
    return originalToDataURL.apply(this, arguments);
  };

  // Override WebGL fingerprinting
  const getParameter = WebGLRenderingContext.prototype.getParameter;
  WebGLRenderingContext.prototype.getParameter = function(parameter) {
    if (parameter === 37445) {
      return 'Intel Inc.';
    }
    if (parameter === 37446) {
      return 'Intel Iris OpenGL Engine';
    }
    return getParameter.apply(this, arguments);
  };

  console.log('Stealth mode: All overrides applied successfully');
})();
`

// placeholderPNG is a 1x1 white PNG used for the required icon sizes.
var placeholderPNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53,
	0xDE, 0x00, 0x00, 0x00, 0x0C, 0x49, 0x44, 0x41,
	0x54, 0x08, 0xD7, 0x63, 0xF8, 0xFF, 0xFF, 0x3F,
	0x00, 0x05, 0xFE, 0x02, 0xFE, 0xDC, 0xCC, 0x59,
	0xE7, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E,
	0x44, 0xAE, 0x42, 0x60, 0x82,
}
