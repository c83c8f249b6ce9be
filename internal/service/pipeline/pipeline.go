package pipeline

import (
	"context"
	"fmt"

	"github.com/oshokin/deploy-manager/internal/domain/deployment"
	"github.com/oshokin/deploy-manager/internal/logger"
	"github.com/oshokin/deploy-manager/internal/repository/state"
)

// Stage names, in execution order.
const (
	StageLatestVersion   = "latest-version"
	StageBlocklist       = "blocklist"
	StagePrepare         = "prepare"
	StageVerifySignature = "verify-signature"
	StageLaunch          = "launch"
	StageRetireOld       = "retire-old"
	StagePersist         = "persist"
)

// Repository lists published builds.
type Repository interface {
	LatestVersion(ctx context.Context, groupID, artifactID string) (string, error)
}

// Artifacts downloads a build and its detached signature.
type Artifacts interface {
	Fetch(ctx context.Context, version string) (string, error)
	Signature(ctx context.Context, version string) ([]byte, error)
}

// SignatureChecker confirms an artifact signature and returns the signer key.
type SignatureChecker interface {
	Check(ctx context.Context, artifactPath string, signature []byte) (deployment.SignerKey, error)
}

// KeyVerifier checks the signer key validity.
type KeyVerifier interface {
	Verify(ctx context.Context, key deployment.SignerKey) error
}

// Launcher starts a build and waits for it to come up.
type Launcher interface {
	Launch(ctx context.Context, artifactPath string) deployment.LaunchResult
}

// Retirer stops the previous instance.
type Retirer interface {
	Retire(ctx context.Context, app *deployment.Application) (*deployment.Application, error)
}

// Options identifies the payload.
type Options struct {
	// RepositoryID is recorded in the metadata of discovered builds.
	RepositoryID string
	// GroupID and ArtifactID are the payload coordinates.
	GroupID    string
	ArtifactID string
}

// Dependencies are the collaborators of a cycle. Blocklist and State may be nil.
type Dependencies struct {
	Repository Repository
	Artifacts  Artifacts
	Signatures SignatureChecker
	Keys       KeyVerifier
	Launcher   Launcher
	Retirer    Retirer
	Blocklist  *deployment.Blocklist
	State      state.Repository
}

// Pipeline runs deployment cycles. Cycles must not overlap.
type Pipeline struct {
	opts   Options
	deps   Dependencies
	stages []stage
}

// stage transforms the cycle record or fails the cycle.
type stage struct {
	name  string
	apply func(ctx context.Context, c *cycle) error
}

// cycle is the record the stages of one Run share.
type cycle struct {
	// app is the deployment state being transformed.
	app *deployment.Application
	// signature is the detached signature of the fetched artifact.
	signature []byte
	// done ends the cycle early without failure.
	done bool
}

// New creates a pipeline.
func New(opts Options, deps Dependencies) *Pipeline {
	p := &Pipeline{
		opts: opts,
		deps: deps,
	}

	p.stages = []stage{
		{name: StageLatestVersion, apply: p.latestVersion},
		{name: StageBlocklist, apply: p.checkBlocklist},
		{name: StagePrepare, apply: p.prepare},
		{name: StageVerifySignature, apply: p.verifySignature},
		{name: StageLaunch, apply: p.launch},
		{name: StageRetireOld, apply: p.retireOld},
		{name: StagePersist, apply: p.persist},
	}

	return p
}

// Run executes one cycle on app and returns the state to carry into the next
// cycle. The returned state is valid even when the error is not nil: a failed
// cycle leaves Current untouched.
func (p *Pipeline) Run(ctx context.Context, app *deployment.Application) (*deployment.Application, error) {
	if app == nil {
		logger.Error(ctx, "Pipeline started without application state")
		return nil, ErrApplicationRequired
	}

	c := &cycle{app: app}

	for _, s := range p.stages {
		if c.done {
			break
		}

		stageCtx := logger.WithKV(ctx, "stage", s.name)
		logger.Debug(stageCtx, "Stage started")

		if err := s.apply(stageCtx, c); err != nil {
			return c.app, &Error{Stage: s.name, Err: err}
		}
	}

	return c.app, nil
}

func (p *Pipeline) latestVersion(ctx context.Context, c *cycle) error {
	version, err := p.deps.Repository.LatestVersion(ctx, p.opts.GroupID, p.opts.ArtifactID)
	if err != nil {
		return err
	}

	c.app.Latest = &deployment.Metadata{
		Version:      version,
		RepositoryID: p.opts.RepositoryID,
	}

	if !c.app.ShouldLaunch() {
		logger.InfoKV(ctx, "Latest version is already running", "version", version)

		c.done = true
	}

	return nil
}

func (p *Pipeline) checkBlocklist(ctx context.Context, c *cycle) error {
	if p.deps.Blocklist == nil || !p.deps.Blocklist.Contains(c.app.Latest.Version) {
		return nil
	}

	logger.InfoKV(ctx, "Latest version is blocklisted, skipping", "version", c.app.Latest.Version)

	c.done = true

	return nil
}

func (p *Pipeline) prepare(ctx context.Context, c *cycle) error {
	version := c.app.Latest.Version

	path, err := p.deps.Artifacts.Fetch(ctx, version)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", version, err)
	}

	signature, err := p.deps.Artifacts.Signature(ctx, version)
	if err != nil {
		return fmt.Errorf("fetch signature of %s: %w", version, err)
	}

	c.app.Latest = c.app.Latest.WithArtifactLocation(path)
	c.signature = signature

	return nil
}

func (p *Pipeline) verifySignature(ctx context.Context, c *cycle) error {
	key, err := p.deps.Signatures.Check(ctx, c.app.Latest.ArtifactLocation, c.signature)
	if err != nil {
		return err
	}

	return p.deps.Keys.Verify(ctx, key)
}

func (p *Pipeline) launch(ctx context.Context, c *cycle) error {
	latest := c.app.Latest

	result := p.deps.Launcher.Launch(ctx, latest.ArtifactLocation)
	if result.Succeeded() {
		c.app.Latest = latest.WithProcessID(result.ProcessID)
		return nil
	}

	// An interrupted launch says nothing about the build.
	if err := ctx.Err(); err != nil {
		logger.WarnKV(ctx, "Launch interrupted", "version", latest.Version, "error", err)
		return fmt.Errorf("launch %s: %w", latest.Version, err)
	}

	logger.ErrorKV(ctx, "Payload failed to start",
		"version", latest.Version, "jar", result.JarPath, "startup_log", result.StartupLog)

	if p.deps.Blocklist != nil && p.deps.Blocklist.Enabled() {
		until := p.deps.Blocklist.Add(latest.Version)
		logger.WarnKV(ctx, "Version blocklisted", "version", latest.Version, "until", until)

		if err := p.save(ctx, c.app.Current); err != nil {
			logger.ErrorKV(ctx, "Failed to persist blocklist", "error", err)
		}
	}

	return fmt.Errorf("%s: %w", latest.Version, ErrLaunchFailed)
}

func (p *Pipeline) retireOld(ctx context.Context, c *cycle) error {
	app, err := p.deps.Retirer.Retire(ctx, c.app)
	if err != nil {
		// The new build is up, it replaces the old one regardless.
		c.app.Current = c.app.Latest

		if saveErr := p.save(ctx, c.app.Current); saveErr != nil {
			logger.ErrorKV(ctx, "Failed to persist state", "error", saveErr)
		}

		return err
	}

	app.Current = app.Latest
	c.app = app

	logger.InfoKV(ctx, "Deployment completed", "version", app.Current.Version, "pid", app.Current.ProcessID)

	return nil
}

func (p *Pipeline) persist(ctx context.Context, c *cycle) error {
	return p.save(ctx, c.app.Current)
}

func (p *Pipeline) save(ctx context.Context, current *deployment.Metadata) error {
	if p.deps.State == nil {
		return nil
	}

	snapshot := &state.Snapshot{Current: current}
	if p.deps.Blocklist != nil {
		snapshot.Blocklist = p.deps.Blocklist.Entries()
	}

	if err := p.deps.State.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	return nil
}
