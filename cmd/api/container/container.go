package container

import (
	"github.com/arborhq/lineage/cmd/api/service"
	"github.com/arborhq/lineage/common/bootstrap"
	"github.com/arborhq/lineage/common/repository"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	// Repositories
	TreeRepo         *repository.TreeRepository
	PersonRepo       *repository.PersonRepository
	RelationshipRepo *repository.RelationshipRepository
	SuggestionRepo   *repository.SuggestionRepository
	HistoryRepo      *repository.HistoryRepository

	// Services
	TreeService   *service.TreeService
	GraphService  *service.GraphService
	PersonService *service.PersonService
	MergeService  *service.MergeService
	ImportService *service.ImportService
	ExportService *service.ExportService
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	treeRepo := repository.NewTreeRepository(components.DB)
	personRepo := repository.NewPersonRepository(components.DB)
	relationshipRepo := repository.NewRelationshipRepository(components.DB)
	suggestionRepo := repository.NewSuggestionRepository(components.DB)
	historyRepo := repository.NewHistoryRepository(components.DB)

	// Services bottom-up: the graph engine first, everything that mutates
	// relationships goes through it
	graphService := service.NewGraphService(personRepo, relationshipRepo, treeRepo, components.Queue, components.Logger)
	personService := service.NewPersonService(personRepo, treeRepo, historyRepo, graphService, components.Queue, components.Logger)
	treeService := service.NewTreeService(treeRepo, personRepo, relationshipRepo, components.Queue, components.Logger)
	mergeService := service.NewMergeService(personRepo, relationshipRepo, treeRepo, suggestionRepo, historyRepo, components.Queue, components.Logger)
	importService := service.NewImportService(personService, graphService, treeRepo, components.Logger)
	exportService := service.NewExportService(treeRepo, personRepo, relationshipRepo, components.Logger)

	return &Container{
		Components:       components,
		TreeRepo:         treeRepo,
		PersonRepo:       personRepo,
		RelationshipRepo: relationshipRepo,
		SuggestionRepo:   suggestionRepo,
		HistoryRepo:      historyRepo,
		TreeService:      treeService,
		GraphService:     graphService,
		PersonService:    personService,
		MergeService:     mergeService,
		ImportService:    importService,
		ExportService:    exportService,
	}, nil
}
