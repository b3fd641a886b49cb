package main

import (
	"github.com/gin-gonic/gin"

	"oft-bridge.backend/internal/interfaces/http/handlers"
	"oft-bridge.backend/internal/interfaces/http/middleware"
)

type routeDeps struct {
	transferHandler *handlers.TransferHandler
	statusHandler   *handlers.StatusHandler
	feeHandler      *handlers.FeeHandler
	registryHandler *handlers.RegistryHandler
	envHandler      *handlers.EnvHandler
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		v1.POST("/estimate-fee", d.feeHandler.EstimateFee)
		v1.GET("/env-check", d.envHandler.Check)

		// Single-source status lookups
		v1.POST("/agg-status", d.statusHandler.AggregatorStatus)
		v1.POST("/lz-status", d.statusHandler.ScannerStatus)
		v1.POST("/lz-status-onchain", d.statusHandler.OnchainStatus)

		transfers := v1.Group("/transfers")
		{
			transfers.POST("", middleware.IdempotencyMiddleware(), d.transferHandler.CreateTransfer)
			transfers.POST("/track", d.transferHandler.Track)
			transfers.GET("/history", d.transferHandler.ListHistory)
			transfers.GET("/:txHash/status", d.transferHandler.GetStatus)
		}

		// Registry (read only)
		v1.GET("/networks", d.registryHandler.ListNetworks)
		v1.GET("/tokens", d.registryHandler.ListTokens)
		v1.GET("/pairs", d.registryHandler.ListPairs)
	}
}
