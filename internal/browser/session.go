package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore/types"

	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/storage"
	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/pkg/logger"
)

// Config holds the AgentCore browser session parameters.
type Config struct {
	Region            string
	BrowserIdentifier string
	TimeoutSeconds    int
}

// agentCoreAPI is the slice of the AgentCore data plane the session uses.
type agentCoreAPI interface {
	StartBrowserSession(ctx context.Context, in *bedrockagentcore.StartBrowserSessionInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.StartBrowserSessionOutput, error)
	StopBrowserSession(ctx context.Context, in *bedrockagentcore.StopBrowserSessionInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.StopBrowserSessionOutput, error)
	GetBrowserSession(ctx context.Context, in *bedrockagentcore.GetBrowserSessionInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.GetBrowserSessionOutput, error)
}

// Session manages one AgentCore browser session loaded with extensions.
type Session struct {
	client    agentCoreAPI
	cfg       Config
	sessionID string
}

// NewSession builds a Session for the given region. No session is started yet.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.BrowserIdentifier == "" {
		cfg.BrowserIdentifier = "aws.browser.v1"
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 1800
	}

	return &Session{
		client: bedrockagentcore.NewFromConfig(awsCfg),
		cfg:    cfg,
	}, nil
}

// ID returns the active session id, empty if none.
func (s *Session) ID() string {
	return s.sessionID
}

// Start creates a browser session that loads the extensions at the given
// locators. Returns the session id.
func (s *Session) Start(ctx context.Context, locators []storage.Locator, name string) (string, error) {
	if name == "" {
		name = fmt.Sprintf("extension-demo-%d", time.Now().Unix())
	}

	logger.Log.Info().
		Str("name", name).
		Int("extensions", len(locators)).
		Str("region", s.cfg.Region).
		Msg("Creating browser session with extensions")
	for _, loc := range locators {
		logger.Log.Info().Str("uri", loc.String()).Msg("Extension to load")
	}

	out, err := s.client.StartBrowserSession(ctx, &bedrockagentcore.StartBrowserSessionInput{
		BrowserIdentifier:     aws.String(s.cfg.BrowserIdentifier),
		Name:                  aws.String(name),
		SessionTimeoutSeconds: aws.Int32(int32(s.cfg.TimeoutSeconds)),
		Extensions:            extensionConfigs(locators),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create browser session: %w", err)
	}

	s.sessionID = aws.ToString(out.SessionId)

	logger.Log.Info().
		Str("session_id", s.sessionID).
		Str("console", fmt.Sprintf("https://console.aws.amazon.com/agentcore/home?region=%s#/browsers", s.cfg.Region)).
		Msg("Browser session created")

	return s.sessionID, nil
}

// extensionConfigs maps uploaded archive locators to the session request's
// extension locations.
func extensionConfigs(locators []storage.Locator) []types.BrowserExtension {
	exts := make([]types.BrowserExtension, 0, len(locators))
	for _, loc := range locators {
		exts = append(exts, types.BrowserExtension{
			Location: &types.ResourceLocationMemberS3{
				Value: types.S3Location{
					Bucket: aws.String(loc.Bucket),
					Prefix: aws.String(loc.Key),
				},
			},
		})
	}
	return exts
}

// Verify checks the session state. Best effort: a failed lookup is reported
// but never fails the pipeline, and actually confirming the extension works
// needs a manual look at chrome://extensions in the live session.
func (s *Session) Verify(ctx context.Context) bool {
	if s.sessionID == "" {
		logger.Log.Error().Msg("No active browser session")
		return false
	}

	out, err := s.client.GetBrowserSession(ctx, &bedrockagentcore.GetBrowserSessionInput{
		BrowserIdentifier: aws.String(s.cfg.BrowserIdentifier),
		SessionId:         aws.String(s.sessionID),
	})
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Could not verify browser session")
		return false
	}

	logger.Log.Info().
		Str("status", string(out.Status)).
		Msg("Browser session is active; check chrome://extensions in the session to verify the extension")

	return true
}

// Stop ends the browser session. Stopping with no active session is a no-op,
// and API errors on this cleanup path are logged rather than raised.
func (s *Session) Stop(ctx context.Context) {
	if s.sessionID == "" {
		logger.Log.Debug().Msg("No active session to close")
		return
	}

	logger.Log.Info().Str("session_id", s.sessionID).Msg("Closing browser session")

	_, err := s.client.StopBrowserSession(ctx, &bedrockagentcore.StopBrowserSessionInput{
		BrowserIdentifier: aws.String(s.cfg.BrowserIdentifier),
		SessionId:         aws.String(s.sessionID),
	})
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Error stopping session")
		return
	}

	s.sessionID = ""
	logger.Log.Info().Msg("Browser session stopped")
}
