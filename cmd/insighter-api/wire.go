package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PabloGalante/insighter/internal/adapters/filestore"
	httpadapter "github.com/PabloGalante/insighter/internal/adapters/http"
	"github.com/PabloGalante/insighter/internal/adapters/llm"
	"github.com/PabloGalante/insighter/internal/adapters/mysqldb"
	firestorestore "github.com/PabloGalante/insighter/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/insighter/internal/adapters/storage/memory"
	redisstore "github.com/PabloGalante/insighter/internal/adapters/storage/redis"
	"github.com/PabloGalante/insighter/internal/app/agentflow"
	"github.com/PabloGalante/insighter/internal/app/conversation"
	"github.com/PabloGalante/insighter/internal/app/routing"
	"github.com/PabloGalante/insighter/internal/app/runlog"
	"github.com/PabloGalante/insighter/internal/app/tools"
	"github.com/PabloGalante/insighter/internal/config"
	"github.com/PabloGalante/insighter/internal/domain"
	"github.com/PabloGalante/insighter/internal/observability"
)

type application struct {
	conversations *conversation.Service
	handler       http.Handler
	closers       []func() error
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			observability.Logger().Warn("close failed", "error", err)
		}
	}
}

type stores struct {
	sessions domain.SessionStore
	messages domain.MessageStore
	state    domain.StateStore
	runs     domain.RunStore
}

func build(ctx context.Context, cfg *config.Config) (*application, error) {
	a := &application{}
	log := observability.WithFields("component", "wire")

	model, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init llm: %w", err)
	}
	log.Info("llm ready", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	st, err := buildStores(ctx, cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	files, err := buildFiles(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	setups, err := buildAgentSetups(ctx, cfg, files, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	ids := make([]domain.AgentID, 0, len(setups))
	for _, s := range setups {
		ids = append(ids, s.ID)
	}

	policy := routing.DefaultPolicy()
	if cfg.Orchestrator.PolicyFile != "" {
		if policy, err = routing.LoadPolicy(cfg.Orchestrator.PolicyFile); err != nil {
			a.Close()
			return nil, err
		}
	}

	engine, err := routing.NewEngine(model, routing.DefaultCatalog(ids...), policy, cfg.LLM.RoutingTemperature)
	if err != nil {
		a.Close()
		return nil, err
	}

	agents, err := agentflow.BuildAgents(model, cfg.LLM.AgentTemperature, cfg.Orchestrator.AgentMaxSteps, setups...)
	if err != nil {
		a.Close()
		return nil, err
	}

	orch, err := agentflow.NewOrchestrator(engine, engine.Policy(), agents, cfg.Orchestrator.MaxTurns)
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Info("orchestrator ready", "agents", orch.AgentIDs(), "max_turns", cfg.Orchestrator.MaxTurns)

	runs := runlog.NewService(st.runs)
	a.conversations = conversation.NewService(st.sessions, st.messages, st.state, runs, orch, cfg.Orchestrator.HistoryLimit)
	a.handler = httpadapter.NewServer(a.conversations, runs, files, httpadapter.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.Files.MaxBytes,
	})
	return a, nil
}

func buildStores(ctx context.Context, cfg *config.Config, a *application) (stores, error) {
	log := observability.WithFields("component", "storage")
	var st stores

	var fs *firestorestore.Store
	openFirestore := func() (*firestorestore.Store, error) {
		if fs != nil {
			return fs, nil
		}
		var err error
		fs, err = firestorestore.NewStore(ctx, cfg.GCP.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init firestore: %w", err)
		}
		a.closers = append(a.closers, fs.Close)
		return fs, nil
	}

	switch cfg.Storage.Backend {
	case "firestore":
		s, err := openFirestore()
		if err != nil {
			return st, err
		}
		st.sessions, st.messages, st.runs = s, s, s
		log.Info("storage ready", "backend", "firestore", "project", cfg.GCP.ProjectID)
	default:
		st.sessions = memstore.NewSessionStore()
		st.messages = memstore.NewMessageStore()
		st.runs = memstore.NewRunStore()
		log.Info("storage ready", "backend", "memory")
	}

	switch cfg.Storage.StateBackend {
	case "redis":
		rs, err := redisstore.NewStateStore(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB, cfg.Storage.StateTTL)
		if err != nil {
			return st, fmt.Errorf("init redis state store: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		st.state = rs
	case "firestore":
		s, err := openFirestore()
		if err != nil {
			return st, err
		}
		st.state = s
	default:
		st.state = memstore.NewStateStore()
	}
	log.Info("checkpoint store ready", "backend", cfg.Storage.StateBackend)
	return st, nil
}

func buildFiles(ctx context.Context, cfg *config.Config) (domain.FileStorage, error) {
	fc := cfg.Files
	if fc.Backend == "s3" {
		s, err := filestore.NewS3(ctx, filestore.S3Options{
			Bucket:   fc.S3Bucket,
			Region:   fc.S3Region,
			Endpoint: fc.S3Endpoint,
			Prefix:   fc.S3Prefix,
			BaseURL:  fc.PublicBaseURL,
			MaxBytes: fc.MaxBytes,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 file storage: %w", err)
		}
		return s, nil
	}
	l, err := filestore.NewLocal(fc.Dir, fc.PublicBaseURL, fc.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("init local file storage: %w", err)
	}
	return l, nil
}

// buildAgentSetups registers an agent only when its backing service is configured.
func buildAgentSetups(ctx context.Context, cfg *config.Config, files domain.FileStorage, a *application) ([]agentflow.AgentSetup, error) {
	log := observability.WithFields("component", "agents")
	fetcher := tools.NewFetcher(files, &http.Client{Timeout: 60 * time.Second}, cfg.Files.MaxBytes)

	var images *llm.ImageClient
	if cfg.Images.Enabled() {
		images = llm.NewImageClient(cfg.Images.APIKey, cfg.Images.BaseURL, cfg.Images.Model, cfg.Images.Size, cfg.LLM.VisionModel, fetcher)
	}

	var setups []agentflow.AgentSetup

	if cfg.Database.Enabled() {
		db, err := mysqldb.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		setups = append(setups, agentflow.AgentSetup{
			ID:    domain.AgentDataExplorer,
			Tools: tools.NewToolset(tools.SQLTools(db, cfg.Database.MaxRows)...),
		})
	} else {
		log.Warn("database not configured, data explorer disabled")
	}

	reporterTools := []tools.Tool{tools.NewPublishDocumentTool(files)}
	if images != nil {
		reporterTools = append(reporterTools, tools.NewGenerateImageTool(images, files))
	}
	setups = append(setups, agentflow.AgentSetup{ID: domain.AgentReporter, Tools: tools.NewToolset(reporterTools...)})

	var describer tools.ImageDescriber
	if images != nil && cfg.LLM.VisionModel != "" {
		describer = images
	}
	setups = append(setups,
		agentflow.AgentSetup{ID: domain.AgentFileAnalyzer, Tools: tools.NewToolset(tools.DocumentTools(fetcher, describer)...)},
		agentflow.AgentSetup{ID: domain.AgentHTMLGen, Tools: tools.NewToolset(tools.NewPublishHTMLTool(files))},
	)

	if cfg.Knowledge.Enabled() {
		kb := llm.NewKnowledgeClient(cfg.Knowledge.BaseURL, cfg.Knowledge.APIKey, cfg.Knowledge.Model)
		setups = append(setups, agentflow.AgentSetup{
			ID:    domain.AgentKnowledge,
			Tools: tools.NewToolset(tools.NewKnowledgeTool(kb)),
		})
	} else {
		log.Info("knowledge base not configured, knowledge agent disabled")
	}

	return setups, nil
}
