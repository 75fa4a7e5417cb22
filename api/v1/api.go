package v1

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/01phanto/EcoLedger/internal/holdings"
	"github.com/01phanto/EcoLedger/internal/issuance"
	"github.com/01phanto/EcoLedger/internal/ledger"
	"github.com/01phanto/EcoLedger/internal/marketplace"
	"github.com/01phanto/EcoLedger/internal/portfolio"
	"github.com/01phanto/EcoLedger/internal/projects"
	"github.com/01phanto/EcoLedger/internal/stats"
)

// API bundles the engine services and their HTTP handlers.
type API struct {
	Projects    *projects.Service
	Issuance    *issuance.Service
	Marketplace *marketplace.Service
	Holdings    *holdings.Service
	Portfolio   *portfolio.Service
	Stats       *stats.Service

	projectsHandler    *projects.Handler
	marketplaceHandler *marketplace.Handler
	holdingsHandler    *holdings.Handler
	portfolioHandler   *portfolio.Handler
	statsHandler       *stats.Handler
	ledgerHandler      *LedgerHandler
}

// Setup wires repositories, the ledger store and issuance parameters
// into the full service graph.
func Setup(projectRepo projects.Repository, marketRepo marketplace.Repository, store ledger.Store, params issuance.Params, logger *zap.Logger) *API {
	issuanceService := issuance.NewService(marketRepo, store, params, logger)
	projectService := projects.NewService(projectRepo, issuanceService, logger)
	marketplaceService := marketplace.NewService(marketRepo, store, logger)
	holdingsService := holdings.NewService(marketRepo, store, logger)
	portfolioService := portfolio.NewService(store)
	statsService := stats.NewService(projectRepo, marketRepo, portfolioService, store)

	return &API{
		Projects:    projectService,
		Issuance:    issuanceService,
		Marketplace: marketplaceService,
		Holdings:    holdingsService,
		Portfolio:   portfolioService,
		Stats:       statsService,

		projectsHandler:    projects.NewHandler(projectService, logger),
		marketplaceHandler: marketplace.NewHandler(marketplaceService, logger),
		holdingsHandler:    holdings.NewHandler(holdingsService, logger),
		portfolioHandler:   portfolio.NewHandler(portfolioService, logger),
		statsHandler:       stats.NewHandler(statsService, logger),
		ledgerHandler:      NewLedgerHandler(store, logger),
	}
}

// RegisterRoutes registers every feature's routes on the group.
func (a *API) RegisterRoutes(router *gin.RouterGroup) {
	a.projectsHandler.RegisterRoutes(router)
	a.marketplaceHandler.RegisterRoutes(router)
	a.holdingsHandler.RegisterRoutes(router)
	a.portfolioHandler.RegisterRoutes(router)
	a.statsHandler.RegisterRoutes(router)
	a.ledgerHandler.RegisterRoutes(router)
}
