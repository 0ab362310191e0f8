package conf

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lagrangedao/go-akash-deployer/constants"
)

var config *DeployerNode

// DeployerNode is the deployer config
type DeployerNode struct {
	API    API
	CHAIN  CHAIN
	BID    BID
	WALLET WALLET
}

type API struct {
	Port          int
	RedisUrl      string
	RedisPassword string
	CrtFile       string
	KeyFile       string
}

type CHAIN struct {
	ChainId       string
	Endpoints     []string
	Denom         string
	GasPrice      string
	GasAdjustment string
	Deposit       string
	QueryTimeout  duration
}

type BID struct {
	PreferredProviders []string
	GracePeriod        duration
	PollInterval       duration
	Timeout            duration
}

type WALLET struct {
	Address string
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func InitConfig(repoPath string) error {
	configFile := filepath.Join(repoPath, "config.toml")

	var node DeployerNode
	metaData, err := toml.DecodeFile(configFile, &node)
	if err != nil {
		return fmt.Errorf("failed load config file, path: %s, error: %w", configFile, err)
	}
	if err := requiredFieldsAreGiven(metaData); err != nil {
		return err
	}
	node.applyDefaults()
	config = &node
	return nil
}

func GetConfig() *DeployerNode {
	return config
}

// SetConfig replaces the loaded config, used by commands that build one in memory.
func SetConfig(node *DeployerNode) {
	node.applyDefaults()
	config = node
}

func (c *DeployerNode) applyDefaults() {
	if c.CHAIN.ChainId == "" {
		c.CHAIN.ChainId = constants.DefaultChainId
	}
	if c.CHAIN.Denom == "" {
		c.CHAIN.Denom = constants.DefaultDenom
	}
	if c.CHAIN.GasPrice == "" {
		c.CHAIN.GasPrice = constants.DefaultGasPrice
	}
	if c.CHAIN.GasAdjustment == "" {
		c.CHAIN.GasAdjustment = constants.DefaultGasAdjustment
	}
	if c.CHAIN.Deposit == "" {
		c.CHAIN.Deposit = constants.DefaultDeposit
	}
	if c.CHAIN.QueryTimeout.Duration == 0 {
		c.CHAIN.QueryTimeout.Duration = constants.QueryTimeout
	}
	if c.BID.GracePeriod.Duration == 0 {
		c.BID.GracePeriod.Duration = constants.BidGracePeriod
	}
	if c.BID.PollInterval.Duration == 0 {
		c.BID.PollInterval.Duration = constants.BidPollInterval
	}
	if c.BID.Timeout.Duration == 0 {
		c.BID.Timeout.Duration = constants.BidTimeout
	}
	if c.API.Port == 0 {
		c.API.Port = 8085
	}
}

func requiredFieldsAreGiven(metaData toml.MetaData) error {
	requiredFields := [][]string{
		{"CHAIN"},
		{"WALLET"},

		{"CHAIN", "Endpoints"},
		{"WALLET", "Address"},
	}

	for _, v := range requiredFields {
		if !metaData.IsDefined(v...) {
			return fmt.Errorf("required fields %v not given", v)
		}
	}
	return nil
}
