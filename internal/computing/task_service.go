package computing

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"

	"github.com/lagrangedao/go-akash-deployer/constants"
)

var ErrRunNotFound = errors.New("run not found")

// RunRecord is the progress of one queued deployment run.
type RunRecord struct {
	RunID     string      `json:"run_id"`
	State     DeployState `json:"state"`
	DSeq      uint64      `json:"dseq"`
	Provider  string      `json:"provider"`
	URL       string      `json:"url"`
	Error     string      `json:"error"`
	UpdatedAt int64       `json:"updated_at"`
}

func (r *RunRecord) Finished() bool {
	switch r.State {
	case StateReady, StateDegraded, StateFailed:
		return true
	}
	return false
}

// RunStore keeps run records in redis hashes that expire after
// constants.RunRecordTTL.
type RunStore struct {
	pool *redis.Pool
}

func NewRunStore(pool *redis.Pool) *RunStore {
	return &RunStore{pool: pool}
}

func runKey(runID string) string {
	return constants.REDIS_RUN_PREFIX + runID
}

// Create registers a new run in the created state and returns its id.
func (s *RunStore) Create() (string, error) {
	runID := uuid.NewString()
	if err := s.update(runID, map[string]string{"state": string(StateCreated)}); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *RunStore) update(runID string, fields map[string]string) error {
	conn := s.pool.Get()
	defer conn.Close()

	key := runKey(runID)
	fullArgs := []interface{}{key}
	fields["updated_at"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	for k, v := range fields {
		fullArgs = append(fullArgs, k, v)
	}
	if _, err := conn.Do("HSET", fullArgs...); err != nil {
		return fmt.Errorf("failed set run %s, error: %w", runID, err)
	}
	if _, err := conn.Do("EXPIRE", key, int64(constants.RunRecordTTL/time.Second)); err != nil {
		return fmt.Errorf("failed set expire time of run %s, error: %w", runID, err)
	}
	return nil
}

func (s *RunStore) Get(runID string) (*RunRecord, error) {
	conn := s.pool.Get()
	defer conn.Close()

	fields, err := redis.StringMap(conn.Do("HGETALL", runKey(runID)))
	if err != nil {
		return nil, fmt.Errorf("failed get run %s, error: %w", runID, err)
	}
	if len(fields) == 0 {
		return nil, ErrRunNotFound
	}

	record := &RunRecord{
		RunID:    runID,
		State:    DeployState(fields["state"]),
		Provider: fields["provider"],
		URL:      fields["url"],
		Error:    fields["error"],
	}
	record.DSeq, _ = strconv.ParseUint(fields["dseq"], 10, 64)
	record.UpdatedAt, _ = strconv.ParseInt(fields["updated_at"], 10, 64)
	return record, nil
}

// Observer returns an Observer that writes the transitions of a workflow
// into the record of runID.
func (s *RunStore) Observer(runID string) Observer {
	return ObserverFunc(func(t Transition) {
		fields := map[string]string{"state": string(t.State)}
		if t.DSeq != 0 {
			fields["dseq"] = strconv.FormatUint(t.DSeq, 10)
		}
		switch t.State {
		case StateLeasing:
			fields["provider"] = t.Detail
		case StateReady, StateDegraded:
			fields["url"] = t.Detail
		case StateFailed:
			fields["error"] = t.Detail
		}
		if err := s.update(runID, fields); err != nil {
			logs.GetLogger().Errorf("failed record transition of run %s, error: %v", runID, err)
		}
	})
}

// Fail marks a run failed before the workflow could start.
func (s *RunStore) Fail(runID string, err error) {
	fields := map[string]string{"state": string(StateFailed), "error": err.Error()}
	if uErr := s.update(runID, fields); uErr != nil {
		logs.GetLogger().Errorf("failed record failure of run %s, error: %v", runID, uErr)
	}
}
