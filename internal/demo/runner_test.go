package demo

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/config"
	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/internal/storage"
)

func TestRunFailsWithoutExtensions(t *testing.T) {
	r := NewRunner(Options{Bucket: "demo-bucket", Region: "us-east-1"}, config.Load())

	// Must fail before any AWS client is constructed or any network call made.
	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error with zero extension paths")
	}
	if !strings.Contains(err.Error(), "no extensions specified") {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.issuer != nil || r.store != nil || r.session != nil {
		t.Fatal("clients constructed despite failed prerequisites")
	}
}

func TestRunFailsOnMissingExtensionFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.zip")
	r := NewRunner(Options{
		Bucket:         "demo-bucket",
		Region:         "us-east-1",
		ExtensionPaths: []string{missing},
	}, config.Load())

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for missing extension file")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.issuer != nil {
		t.Fatal("issuer constructed despite missing input file")
	}
}

func TestRunFailsOnInvalidExtensionURI(t *testing.T) {
	r := NewRunner(Options{
		Bucket:        "demo-bucket",
		Region:        "us-east-1",
		ExtensionURIs: []string{"http://example.com/ext.zip"},
	}, config.Load())

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for non-s3 extension URI")
	}
	if r.issuer != nil {
		t.Fatal("issuer constructed despite invalid extension URI")
	}
}

func TestPreloadedExtensionsSkipPrepareAndUpload(t *testing.T) {
	r := NewRunner(Options{
		Bucket:        "demo-bucket",
		Region:        "us-east-1",
		ExtensionURIs: []string{"s3://demo-bucket/extensions/ready.zip"},
	}, config.Load())

	if len(r.opts.ExtensionPaths) != 0 {
		t.Fatal("no local paths expected")
	}
	if err := r.prepareExtensions(context.Background()); err != nil {
		t.Fatalf("prepareExtensions: %v", err)
	}
	if r.issuer != nil {
		t.Fatal("credentials issued with nothing to prepare")
	}

	loc, err := storage.ParseLocator(r.opts.ExtensionURIs[0])
	if err != nil {
		t.Fatal(err)
	}
	r.preloaded = []storage.Locator{loc}

	if err := r.uploadExtensions(context.Background()); err != nil {
		t.Fatalf("uploadExtensions: %v", err)
	}
	if r.store != nil {
		t.Fatal("S3 client constructed with nothing to upload")
	}
	if len(r.locators) != 1 || r.locators[0].String() != "s3://demo-bucket/extensions/ready.zip" {
		t.Fatalf("locators=%v want the pre-uploaded one", r.locators)
	}
}

func TestNewRunnerDefaults(t *testing.T) {
	cfg := config.Load()
	r := NewRunner(Options{}, cfg)

	if r.opts.Region != cfg.AWS.Region {
		t.Errorf("region=%q want config default %q", r.opts.Region, cfg.AWS.Region)
	}
	if r.opts.Bucket != cfg.Storage.Bucket {
		t.Errorf("bucket=%q want config default %q", r.opts.Bucket, cfg.Storage.Bucket)
	}
	if r.opts.KeepLatest != cfg.Storage.KeepLatest {
		t.Errorf("keepLatest=%d want config default %d", r.opts.KeepLatest, cfg.Storage.KeepLatest)
	}
	if r.opts.SessionTimeout != cfg.Session.TimeoutSeconds {
		t.Errorf("sessionTimeout=%d want config default %d", r.opts.SessionTimeout, cfg.Session.TimeoutSeconds)
	}
}

func TestNewRunnerOverrides(t *testing.T) {
	r := NewRunner(Options{KeepLatest: 7, SessionTimeout: 900}, config.Load())

	if r.opts.KeepLatest != 7 {
		t.Errorf("keepLatest=%d want 7", r.opts.KeepLatest)
	}
	if r.opts.SessionTimeout != 900 {
		t.Errorf("sessionTimeout=%d want 900", r.opts.SessionTimeout)
	}
}

func TestCloseWithoutSessionIsNoOp(t *testing.T) {
	r := NewRunner(Options{}, config.Load())
	// Nothing started; Close must not panic or touch the network.
	r.Close(context.Background())
}
