package main

import (
	"context"
	"strconv"
	"time"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/itsjamie/gin-cors"
	"github.com/urfave/cli/v2"

	"github.com/lagrangedao/go-akash-deployer/conf"
	"github.com/lagrangedao/go-akash-deployer/internal/computing"
	"github.com/lagrangedao/go-akash-deployer/internal/initializer"
	"github.com/lagrangedao/go-akash-deployer/internal/metrics"
	"github.com/lagrangedao/go-akash-deployer/util"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "Start the deployer api server",
	Action: func(cctx *cli.Context) error {
		logs.GetLogger().Info("Start in deployer server mode.")

		deployer, err := initializer.ProjectInit(repoPath(cctx))
		if err != nil {
			return err
		}
		defer deployer.Close()

		apiConf := conf.GetConfig().API
		redisPool := computing.NewRedisPool(apiConf.RedisUrl, apiConf.RedisPassword)
		defer redisPool.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		celeryService := computing.NewCeleryService(redisPool)
		service := computing.NewDeployService(ctx, deployer.Orchestrator, deployer.Signer,
			computing.NewRunStore(redisPool), celeryService)
		celeryService.Start()

		r := gin.Default()
		r.Use(cors.Middleware(cors.Config{
			Origins:         "*",
			Methods:         "GET, PUT, POST, DELETE",
			RequestHeaders:  "Origin, Authorization, Content-Type",
			ExposedHeaders:  "",
			MaxAge:          50 * time.Second,
			ValidateHeaders: false,
		}))
		r.Use(requestMetrics())
		pprof.Register(r)
		r.GET("/metrics", gin.WrapH(metrics.Handler()))

		v1 := r.Group("/api/v1")
		deployerManager(v1, service)

		shutdownChan := make(chan struct{})
		httpStopper, err := util.ServeHttp(r, "deployer-api", ":"+strconv.Itoa(apiConf.Port), apiConf.CrtFile, apiConf.KeyFile)
		if err != nil {
			return err
		}

		finishCh := util.MonitorShutdown(shutdownChan,
			util.ShutdownHandler{Component: "deployer-api", StopFunc: httpStopper},
			util.ShutdownHandler{Component: "deploy-worker", StopFunc: func(context.Context) error {
				cancel()
				celeryService.Stop()
				service.Wait()
				return nil
			}},
		)
		<-finishCh

		return nil
	},
}

func deployerManager(router *gin.RouterGroup, service *computing.DeployService) {
	router.POST("/deployments", service.CreateDeployment)
	router.GET("/deployments", service.ListDeployments)
	router.DELETE("/deployments", service.DeleteDeployments)
	router.GET("/runs/:run_id", service.GetRun)
	router.GET("/runs/:run_id/ws", service.WatchRun)
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
