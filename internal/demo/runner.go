package demo

import (
	"context"
	"fmt"
	"os"

	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/browser"
	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/config"
	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/credentials"
	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/extension"
	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/storage"
	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/pkg/logger"
)

// Options are the per-invocation knobs of the demo pipeline.
type Options struct {
	Bucket          string
	Region          string
	ExtensionPaths  []string
	ExtensionURIs   []string
	PrepareOnly     bool
	SkipCredentials bool
	Cleanup         bool
	SessionName     string
	KeepLatest      int
	SessionTimeout  int
}

// Runner sequences the demo: prerequisites, extension preparation, S3 upload,
// browser session. Stages run in order and the first failure halts the run.
type Runner struct {
	opts Options
	cfg  *config.Config

	issuer  *credentials.Issuer
	store   storage.ExtensionStore
	session *browser.Session

	archives  []string
	preloaded []storage.Locator
	locators  []storage.Locator
	cleanups  []func()
}

// NewRunner creates a Runner. No AWS clients are built until Run.
func NewRunner(opts Options, cfg *config.Config) *Runner {
	if opts.Region == "" {
		opts.Region = cfg.AWS.Region
	}
	if opts.Bucket == "" {
		opts.Bucket = cfg.Storage.Bucket
	}
	if opts.KeepLatest <= 0 {
		opts.KeepLatest = cfg.Storage.KeepLatest
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = cfg.Session.TimeoutSeconds
	}
	return &Runner{opts: opts, cfg: cfg}
}

// Locators returns the uploaded extension locators.
func (r *Runner) Locators() []storage.Locator {
	return r.locators
}

// SessionID returns the browser session id, empty if none was created.
func (r *Runner) SessionID() string {
	if r.session == nil {
		return ""
	}
	return r.session.ID()
}

// Run executes the pipeline. On success with PrepareOnly unset, a browser
// session is left running; the caller must invoke Close when done with it.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.checkPrerequisites(ctx); err != nil {
		return err
	}
	if err := r.prepareExtensions(ctx); err != nil {
		return fmt.Errorf("extension preparation failed: %w", err)
	}
	if err := r.uploadExtensions(ctx); err != nil {
		return fmt.Errorf("S3 upload failed: %w", err)
	}

	if r.opts.PrepareOnly {
		logger.Log.Info().Msg("Prepare-only mode: skipping browser creation")
		for i, loc := range r.locators {
			logger.Log.Info().Int("n", i+1).Str("uri", loc.String()).Msg("Extension ready")
		}
		return nil
	}

	if err := r.createBrowser(ctx); err != nil {
		return fmt.Errorf("browser creation failed: %w", err)
	}

	r.printSummary()
	return nil
}

// Close stops the browser session (if any) and removes temporary working
// directories. Safe to call unconditionally.
func (r *Runner) Close(ctx context.Context) {
	logger.Log.Info().Msg("Cleaning up")

	if r.session != nil {
		r.session.Stop(ctx)
	}
	for _, fn := range r.cleanups {
		fn()
	}

	logger.Log.Info().Msg("Cleanup complete")
}

// checkPrerequisites validates local inputs before any network call, then
// confirms AWS credentials work at all via the caller identity.
func (r *Runner) checkPrerequisites(ctx context.Context) error {
	logger.Log.Info().Msg("Checking prerequisites")

	if len(r.opts.ExtensionPaths) == 0 && len(r.opts.ExtensionURIs) == 0 {
		return fmt.Errorf("no extensions specified, use --extension-zip or --extension-uri")
	}
	for _, path := range r.opts.ExtensionPaths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("extension file not found: %s", path)
		}
		logger.Log.Info().Str("path", path).Msg("Using existing extension")
	}
	for _, uri := range r.opts.ExtensionURIs {
		loc, err := storage.ParseLocator(uri)
		if err != nil {
			return err
		}
		logger.Log.Info().Str("uri", loc.String()).Msg("Using pre-uploaded extension")
		r.preloaded = append(r.preloaded, loc)
	}

	issuer, err := credentials.NewIssuer(ctx, r.opts.Region)
	if err != nil {
		return err
	}
	r.issuer = issuer

	identity, err := r.issuer.CallerIdentity(ctx)
	if err != nil {
		return fmt.Errorf("AWS credentials not configured properly: %w", err)
	}

	logger.Log.Info().Str("account", identity.Account).Str("identity", identity.Name()).Msg("AWS identity")
	logger.Log.Info().Str("region", r.opts.Region).Str("bucket", r.opts.Bucket).Msg("Prerequisites check complete")
	return nil
}

// prepareExtensions stages, configures and packages every requested
// extension. Temporary credentials are issued once and shared. Runs that
// reference only pre-uploaded extensions have nothing to prepare.
func (r *Runner) prepareExtensions(ctx context.Context) error {
	if len(r.opts.ExtensionPaths) == 0 {
		return nil
	}

	var creds *credentials.Credentials
	if !r.opts.SkipCredentials {
		issued, err := r.issuer.Issue(ctx, r.cfg.AWS.CredentialDuration)
		if err != nil {
			return err
		}
		creds = &issued
	}

	for _, path := range r.opts.ExtensionPaths {
		setup, err := extension.NewSetup(r.cfg.Extension.WorkDir, r.cfg.Extension.RepoURL)
		if err != nil {
			return err
		}
		r.cleanups = append(r.cleanups, setup.Cleanup)

		zipPath, err := setup.Prepare(ctx, path, creds)
		if err != nil {
			return err
		}
		r.archives = append(r.archives, zipPath)
	}

	return nil
}

// uploadExtensions ensures the bucket, uploads every archive and verifies the
// round trip. Verification failure is logged but does not halt the pipeline.
// Pre-uploaded locators join the result without touching the bucket.
func (r *Runner) uploadExtensions(ctx context.Context) error {
	if len(r.archives) == 0 {
		r.locators = append(r.locators, r.preloaded...)
		return nil
	}

	if r.store == nil {
		store, err := storage.NewS3Client(storage.S3Config{
			Bucket: r.opts.Bucket,
			Region: r.opts.Region,
			Prefix: r.cfg.Storage.Prefix,
		})
		if err != nil {
			return err
		}
		r.store = store
	}

	if err := r.store.EnsureBucket(ctx); err != nil {
		return err
	}

	for _, archive := range r.archives {
		loc, err := r.store.Upload(ctx, archive)
		if err != nil {
			return err
		}

		info, err := os.Stat(archive)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", archive, err)
		}
		if err := r.store.Verify(ctx, loc, info.Size()); err != nil {
			logger.Log.Warn().Err(err).Msg("Upload succeeded but verification failed, continuing anyway")
		}

		r.locators = append(r.locators, loc)
	}

	if r.opts.Cleanup {
		if err := r.store.CleanupOld(ctx, r.opts.KeepLatest); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to clean up old extensions")
		}
	}

	r.locators = append(r.locators, r.preloaded...)
	return nil
}

func (r *Runner) createBrowser(ctx context.Context) error {
	session, err := browser.NewSession(ctx, browser.Config{
		Region:            r.opts.Region,
		BrowserIdentifier: r.cfg.Session.BrowserIdentifier,
		TimeoutSeconds:    r.opts.SessionTimeout,
	})
	if err != nil {
		return err
	}
	r.session = session

	if _, err := session.Start(ctx, r.locators, r.opts.SessionName); err != nil {
		return err
	}

	session.Verify(ctx)
	return nil
}

func (r *Runner) printSummary() {
	logger.Log.Info().Msg("Demo summary")

	for i, archive := range r.archives {
		logger.Log.Info().Int("n", i+1).Str("archive", archive).Msg("Packaged extension")
	}
	for i, loc := range r.locators {
		logger.Log.Info().Int("n", i+1).Str("uri", loc.String()).Msg("Uploaded extension")
	}
	if id := r.SessionID(); id != "" {
		logger.Log.Info().
			Str("session_id", id).
			Str("console", fmt.Sprintf("https://console.aws.amazon.com/agentcore/home?region=%s#/browsers", r.opts.Region)).
			Msg("Browser session")
	}
}
