package computing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/gin-gonic/gin"

	"github.com/lagrangedao/go-akash-deployer/constants"
	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
	"github.com/lagrangedao/go-akash-deployer/util"
	"github.com/lagrangedao/go-akash-deployer/yaml"
)

// TaskQueue runs registered tasks off the request path.
type TaskQueue interface {
	RegisterTask(taskName string, task interface{})
	Delay(taskName string, params ...interface{}) error
}

// RunRecorder keeps the progress of queued deployment runs.
type RunRecorder interface {
	RunReader
	Create() (string, error)
	Observer(runID string) Observer
	Fail(runID string, err error)
}

type DeployService struct {
	orchestrator *Orchestrator
	signer       ledger.Signer
	runs         RunRecorder
	queue        TaskQueue

	// ctx bounds the queued deployment runs.
	ctx context.Context
	wg  sync.WaitGroup
}

func NewDeployService(ctx context.Context, orchestrator *Orchestrator, signer ledger.Signer, runs RunRecorder, queue TaskQueue) *DeployService {
	s := &DeployService{
		orchestrator: orchestrator,
		signer:       signer,
		runs:         runs,
		queue:        queue,
		ctx:          ctx,
	}
	queue.RegisterTask(constants.TASK_DEPLOY, s.DeployTask)
	return s
}

// DeployTask is the queued deployment run. sdl is the raw SDL document.
func (s *DeployService) DeployTask(runID, sdl string) string {
	s.wg.Add(1)
	defer s.wg.Done()

	workload, err := yaml.ParseSDL([]byte(sdl))
	if err != nil {
		s.runs.Fail(runID, err)
		return ""
	}
	result, err := s.orchestrator.Deploy(s.ctx, s.signer, workload, s.runs.Observer(runID))
	if err != nil {
		logs.GetLogger().Errorf("run %s failed, error: %v", runID, err)
		return ""
	}
	logs.GetLogger().Infof("run %s finished, dseq: %d, state: %s, url: %s", runID, result.DSeq, result.State, result.URL)
	return result.URL
}

// Wait blocks until running deployment tasks returned.
func (s *DeployService) Wait() {
	s.wg.Wait()
}

type deployRequest struct {
	SDL string `json:"sdl"`
}

type teardownRequest struct {
	DSeqs []uint64 `json:"dseqs"`
}

func (s *DeployService) CreateDeployment(c *gin.Context) {
	sdl, err := readSDL(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.JsonError, err.Error()))
		return
	}
	if _, err := yaml.ParseSDL([]byte(sdl)); err != nil {
		c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.SdlError, err.Error()))
		return
	}

	runID, err := s.runs.Create()
	if err != nil {
		logs.GetLogger().Errorf("failed create run, error: %v", err)
		c.JSON(http.StatusInternalServerError, util.CreateErrorResponse(util.ServerError))
		return
	}
	if err := s.queue.Delay(constants.TASK_DEPLOY, runID, sdl); err != nil {
		logs.GetLogger().Errorf("failed queue deploy task, error: %v", err)
		s.runs.Fail(runID, err)
		c.JSON(http.StatusInternalServerError, util.CreateErrorResponse(util.ServerError))
		return
	}
	logs.GetLogger().Infof("deploy run %s queued", runID)
	c.JSON(http.StatusOK, util.CreateSuccessResponse(map[string]string{"run_id": runID}))
}

func readSDL(c *gin.Context) (string, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req deployRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return "", err
		}
		if req.SDL == "" {
			return "", errors.New("sdl is required")
		}
		return req.SDL, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	if len(body) == 0 {
		return "", errors.New("sdl is required")
	}
	return string(body), nil
}

func (s *DeployService) ListDeployments(c *gin.Context) {
	views, err := s.orchestrator.List(c.Request.Context(), s.signer.Address())
	if err != nil {
		logs.GetLogger().Errorf("failed list deployments, error: %v", err)
		c.JSON(http.StatusBadGateway, util.CreateErrorResponse(util.LedgerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, util.CreateSuccessResponse(views))
}

// DeleteDeployments closes the requested deployments. It answers 207 when
// some of them could not be closed. Closing all deployments is left to the
// CLI, the request must name its targets.
func (s *DeployService) DeleteDeployments(c *gin.Context) {
	var req teardownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.JsonError, err.Error()))
		return
	}
	if len(req.DSeqs) == 0 {
		c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.JsonError, "dseqs is required"))
		return
	}

	results, err := s.orchestrator.Teardown(c.Request.Context(), s.signer, req.DSeqs, nil)
	if err != nil {
		c.JSON(http.StatusBadGateway, util.CreateErrorResponse(util.LedgerError, err.Error()))
		return
	}
	status := http.StatusOK
	for _, r := range results {
		if !r.Closed() {
			status = http.StatusMultiStatus
			break
		}
	}
	c.JSON(status, util.CreateSuccessResponse(results))
}

func (s *DeployService) GetRun(c *gin.Context) {
	record, err := s.runs.Get(c.Param("run_id"))
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			c.JSON(http.StatusNotFound, util.CreateErrorResponse(util.NotFoundError))
			return
		}
		c.JSON(http.StatusInternalServerError, util.CreateErrorResponse(util.ServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, util.CreateSuccessResponse(record))
}

func (s *DeployService) WatchRun(c *gin.Context) {
	runID := c.Param("run_id")
	if _, err := s.runs.Get(runID); err != nil {
		if errors.Is(err, ErrRunNotFound) {
			c.JSON(http.StatusNotFound, util.CreateErrorResponse(util.NotFoundError))
			return
		}
		c.JSON(http.StatusInternalServerError, util.CreateErrorResponse(util.ServerError, err.Error()))
		return
	}

	conn, err := upgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logs.GetLogger().Errorf("failed upgrade websocket, error: %v", err)
		return
	}
	NewWsClient(conn).HandleRunProgress(s.runs, runID)
}
