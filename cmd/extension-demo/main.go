package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/config"
	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/credentials"
	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/demo"
	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/extension"
	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "extension-demo",
		Usage: "Load Chrome extensions into AWS AgentCore Browser",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "bucket",
				Usage:   "S3 bucket name for extension archives",
				EnvVars: []string{"S3_BUCKET_NAME"},
			},
			&cli.StringFlag{
				Name:    "region",
				Usage:   "AWS region",
				EnvVars: []string{"AWS_REGION"},
			},
			&cli.StringSliceFlag{
				Name:  "extension-zip",
				Usage: "Path to an extension zip or directory (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "extension-uri",
				Usage: "s3:// URI of an already uploaded extension archive (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "prepare-only",
				Usage: "Only prepare and upload extensions, don't create a browser session",
			},
			&cli.BoolFlag{
				Name:  "skip-credentials",
				Usage: "Skip AWS credential configuration in the extension",
			},
			&cli.BoolFlag{
				Name:  "cleanup",
				Usage: "Prune old extension versions from the bucket after upload",
			},
			&cli.IntFlag{
				Name:    "keep-latest",
				Usage:   "Number of extension versions to keep when pruning",
				EnvVars: []string{"EXTENSION_KEEP_LATEST"},
			},
			&cli.IntFlag{
				Name:    "session-timeout",
				Usage:   "Browser session timeout in seconds",
				EnvVars: []string{"SESSION_TIMEOUT_SECONDS"},
			},
			&cli.StringFlag{
				Name:  "session-name",
				Usage: "Browser session name (auto-generated if empty)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.SetLevel(c.String("log-level"))
			return nil
		},
		Action: runDemo,
		Commands: []*cli.Command{
			{
				Name:  "stealth",
				Usage: "Generate and package the bundled stealth extension",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory to generate the extension in",
						Value: "stealth_extension",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output zip path",
						Value: "stealth-extension.zip",
					},
				},
				Action: runStealth,
			},
			{
				Name:  "build",
				Usage: "Clone, patch and build the Bedrock summary extension",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "region",
						Usage:   "AWS region",
						EnvVars: []string{"AWS_REGION"},
					},
					&cli.StringFlag{
						Name:  "work-dir",
						Usage: "Directory to clone and build in",
						Value: ".",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output zip path",
						Value: "bedrock-summary-extension.zip",
					},
					&cli.BoolFlag{
						Name:  "skip-credentials",
						Usage: "Skip AWS credential injection into the sources",
					},
				},
				Action: runBuild,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
			logger.Log.Warn().Msg("Interrupted by user")
			os.Exit(130)
		}
		logger.Log.Error().Err(err).Msg("Demo failed")
		os.Exit(1)
	}
}

func runDemo(c *cli.Context) error {
	cfg := config.Load()

	runner := demo.NewRunner(demo.Options{
		Bucket:          c.String("bucket"),
		Region:          c.String("region"),
		ExtensionPaths:  c.StringSlice("extension-zip"),
		ExtensionURIs:   c.StringSlice("extension-uri"),
		PrepareOnly:     c.Bool("prepare-only"),
		SkipCredentials: c.Bool("skip-credentials"),
		Cleanup:         c.Bool("cleanup"),
		SessionName:     c.String("session-name"),
		KeepLatest:      c.Int("keep-latest"),
		SessionTimeout:  c.Int("session-timeout"),
	}, cfg)

	// Cleanup must run even when the run context was interrupted, so it gets
	// its own bounded context.
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		runner.Close(ctx)
	}()

	if err := runner.Run(c.Context); err != nil {
		return err
	}

	if !c.Bool("prepare-only") {
		logger.Log.Info().Msg("Browser session is active, press Enter (or Ctrl+C) to close it")
		waitForEnter(c.Context)
		if err := c.Context.Err(); err != nil {
			return err
		}
	}

	return nil
}

// waitForEnter blocks until the user hits Enter, stdin closes, or the context
// is cancelled.
func waitForEnter(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		bufio.NewReader(os.Stdin).ReadString('\n')
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func runStealth(c *cli.Context) error {
	dir, err := extension.GenerateStealth(c.String("dir"))
	if err != nil {
		return err
	}

	output := c.String("output")
	if err := extension.Pack(dir, output); err != nil {
		return err
	}

	logger.Log.Info().Str("archive", output).Msg("Stealth extension ready")
	logger.Log.Info().Msgf("Usage: extension-demo --extension-zip %s", output)
	return nil
}

func runBuild(c *cli.Context) error {
	cfg := config.Load()

	region := c.String("region")
	if region == "" {
		region = cfg.AWS.Region
	}

	builder := extension.NewBuilder(c.String("work-dir"), cfg.Extension.RepoURL)

	if err := builder.CheckTools(c.Context); err != nil {
		return err
	}
	if err := builder.Clone(c.Context); err != nil {
		return err
	}

	var creds *credentials.Credentials
	if !c.Bool("skip-credentials") {
		issuer, err := credentials.NewIssuer(c.Context, region)
		if err != nil {
			return err
		}
		issued, err := issuer.Issue(c.Context, cfg.AWS.CredentialDuration)
		if err != nil {
			return err
		}
		creds = &issued
	}

	if err := builder.RewriteSource(creds); err != nil {
		return err
	}
	if err := builder.Build(c.Context); err != nil {
		return err
	}

	out, err := builder.BuildOutput()
	if err != nil {
		return err
	}

	output := c.String("output")
	if err := extension.Pack(out, output); err != nil {
		return err
	}

	info, err := os.Stat(output)
	if err != nil {
		return err
	}

	logger.Log.Info().
		Str("archive", output).
		Str("size", fmt.Sprintf("%.2f MB", float64(info.Size())/1024/1024)).
		Msg("Bedrock summary extension ready")

	if info.Size() > extension.SizeWarnLimit {
		logger.Log.Warn().Msg("Extension size exceeds the 10 MB limit")
	}

	return nil
}
