package supervisor

import (
	apistatus "github.com/oshokin/deploy-manager/internal/api/grpc/status"
	"github.com/oshokin/deploy-manager/internal/config"
	"github.com/oshokin/deploy-manager/internal/domain/deployment"
	"github.com/oshokin/deploy-manager/internal/repository/state"
	"github.com/oshokin/deploy-manager/internal/service/actuator"
	"github.com/oshokin/deploy-manager/internal/service/codesigner"
	"github.com/oshokin/deploy-manager/internal/service/environment"
	"github.com/oshokin/deploy-manager/internal/service/launcher"
	"github.com/oshokin/deploy-manager/internal/service/maven"
	"github.com/oshokin/deploy-manager/internal/service/pipeline"
	"github.com/oshokin/deploy-manager/internal/service/shutdown"
)

// build wires the components described by cfg. statusServer may be nil.
func build(cfg *config.Config, statusServer *apistatus.Server) (*Supervisor, error) {
	management, err := actuator.New(actuator.Options{
		BaseURL:        cfg.Actuator.URL,
		ConnectTimeout: cfg.Actuator.ConnectTimeout,
		ReadTimeout:    cfg.Actuator.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}

	repository, err := maven.New(maven.Options{
		URL:            cfg.Repository.URL,
		GroupID:        cfg.Repository.GroupID,
		ArtifactID:     cfg.Repository.ArtifactID,
		Home:           cfg.Launch.Home,
		ConnectTimeout: cfg.Repository.ConnectTimeout,
		ReadTimeout:    cfg.Repository.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}

	env := environment.NewProvider(environment.Options{
		ExcludedPrefixes: cfg.Environment.PrefixesRemovedFromChildProcess,
		EnvFile:          cfg.Environment.EnvFile,
	})

	payloadLauncher := launcher.New(launcher.Options{
		Runtime:      cfg.Launch.Runtime,
		Home:         cfg.Launch.Home,
		Profile:      cfg.Launch.Profile,
		Timeout:      cfg.Launch.Timeout,
		PollInterval: cfg.Launch.PollInterval,
		IncludeLog:   cfg.Launch.IncludeLog,
		LogLimit:     cfg.Launch.LogLimit,
	}, management, env)

	coordinator := shutdown.New(shutdown.Options{
		Retries:      cfg.Shutdown.Retries,
		PollInterval: cfg.Shutdown.PollInterval,
	}, management)

	blocklistDuration := cfg.Blocklist.Duration
	if !cfg.Blocklist.Enabled {
		blocklistDuration = 0
	}

	blocklist := deployment.NewBlocklist(blocklistDuration, nil)
	repo := state.NewFileRepository(cfg.StateFile)
	signatures := codesigner.NewSignatureChecker(
		cfg.Verification.PublicKeyURLs,
		cfg.Repository.ConnectTimeout+cfg.Repository.ReadTimeout,
	)

	p := pipeline.New(pipeline.Options{
		RepositoryID: cfg.Repository.ID,
		GroupID:      cfg.Repository.GroupID,
		ArtifactID:   cfg.Repository.ArtifactID,
	}, pipeline.Dependencies{
		Repository: repository,
		Artifacts:  repository,
		Signatures: signatures,
		Keys:       codesigner.NewPublicKeyVerifier(),
		Launcher:   payloadLauncher,
		Retirer:    coordinator,
		Blocklist:  blocklist,
		State:      repo,
	})

	sup := newSupervisor(p, management, repo, blocklist)
	if statusServer != nil {
		sup.status = statusServer
	}

	return sup, nil
}
