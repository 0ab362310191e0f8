package computing

import (
	"sync"
	"time"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/gocelery/gocelery"
	"github.com/gomodule/redigo/redis"
)

var celeryService *CeleryService
var celeryOnce sync.Once

type CeleryService struct {
	cli *gocelery.CeleryClient
}

func NewRedisPool(url string, password string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     5,                 // maximum number of idle connections in the pool
		MaxActive:   0,                 // maximum number of connections allocated by the pool at a given time
		IdleTimeout: 240 * time.Second, // close connections after remaining idle for this duration
		Dial: func() (redis.Conn, error) {
			if password != "" {
				return redis.DialURL(url, redis.DialPassword(password))
			}
			return redis.DialURL(url)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			_, err := c.Do("PING")
			return err
		},
	}
}

func NewCeleryService(pool *redis.Pool) *CeleryService {
	celeryOnce.Do(
		func() {
			celeryClient, err := gocelery.NewCeleryClient(
				gocelery.NewRedisBroker(pool),
				gocelery.NewRedisBackend(pool),
				2)
			if err != nil {
				logs.GetLogger().Fatalf("Failed init celery service, error: %+v", err)
			}
			celeryService = &CeleryService{
				cli: celeryClient,
			}
		})

	return celeryService
}

func (s *CeleryService) RegisterTask(taskName string, task interface{}) {
	s.cli.Register(taskName, task)
}

func (s *CeleryService) DelayTask(taskName string, params ...interface{}) (*gocelery.AsyncResult, error) {
	return s.cli.Delay(taskName, params...)
}

func (s *CeleryService) Start() {
	s.cli.StartWorker()
}

func (s *CeleryService) Stop() {
	s.cli.StopWorker()
}

func (s *CeleryService) Delay(taskName string, params ...interface{}) error {
	_, err := s.DelayTask(taskName, params...)
	return err
}
