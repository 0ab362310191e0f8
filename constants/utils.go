package constants

import "time"

const DefaultDenom = "uakt"
const DefaultChainId = "akashnet-2"
const AddressPrefix = "akash"

// fee policy
const DefaultGasPrice = "0.025"
const DefaultGasAdjustment = "1.7"
const DefaultDeposit = "1000000"

const EndpointCooldown = 5 * time.Minute

// bidding windows
const BidGracePeriod = 30 * time.Second
const BidPollInterval = 5 * time.Second
const BidTimeout = 5 * time.Minute

const TxConfirmTimeout = 60 * time.Second
const TxConfirmInterval = 3 * time.Second
const QueryTimeout = 15 * time.Second
const ProviderTimeout = 30 * time.Second

const TeardownParallelism = 4

// broadcast attempts that fail before reaching the ledger report this code
const LocalFailureCode uint32 = 100

const MemoCreateDeployment = "create deployment"
const MemoCreateLease = "create lease"
const MemoCloseDeployment = "take down deployment"
const MemoCreateCertificate = "create certificate"

const TASK_DEPLOY string = "worker.deploy"

const REDIS_RUN_PREFIX = "RUN:"
const RunRecordTTL = 24 * time.Hour

// lease status snapshots taken before a deployment is reported degraded
const FinalizeAttempts = 6
const FinalizeInterval = 10 * time.Second
const HeightPollInterval = time.Second
