package model

import (
	"gorm.io/gorm"
)

type NetworkType string

const (
	NetworkTypeEVM      NetworkType = "evm"
	NetworkTypeSolana   NetworkType = "solana"
	NetworkTypeStarknet NetworkType = "starknet"
	NetworkTypeFuel     NetworkType = "fuel"
	NetworkTypeAztec    NetworkType = "aztec"
)

// Network is read-only reference configuration. LastProcessedBlock is the
// only field the solver writes: the scanner checkpoints its cursor there so
// a restarted process resumes instead of re-basing from head.
type Network struct {
	gorm.Model
	Name                  string      `gorm:"column:name;type:varchar(50);not null;uniqueIndex"`
	Type                  NetworkType `gorm:"column:type;type:varchar(20);not null"`
	ChainID               string      `gorm:"column:chain_id;type:varchar(50)"`
	RPCEndpoint           string      `gorm:"column:rpc_endpoint;type:varchar(255);not null"`
	HTLCContractAddress   string      `gorm:"column:htlc_contract_address;type:varchar(255);not null"`
	SolverAddress         string      `gorm:"column:solver_address;type:varchar(255);not null"`
	NativeAsset           string      `gorm:"column:native_asset;type:varchar(20);not null"`
	FinalityConfirmations uint64      `gorm:"column:finality_confirmations;default:1"`
	LastProcessedBlock    uint64      `gorm:"column:last_processed_block;default:0"`
	// RequiresLockSignature marks chains whose unlock step needs a
	// pre-authorized signature before the redeem can be submitted.
	RequiresLockSignature bool `gorm:"column:requires_lock_signature;default:false"`
}

func (Network) TableName() string {
	return "networks"
}

type Token struct {
	gorm.Model
	NetworkName     string `gorm:"column:network_name;type:varchar(50);not null;uniqueIndex:idx_tokens_network_symbol"`
	Symbol          string `gorm:"column:symbol;type:varchar(20);not null;uniqueIndex:idx_tokens_network_symbol"`
	ContractAddress string `gorm:"column:contract_address;type:varchar(255)"`
	Decimals        int    `gorm:"column:decimals;not null"`
}

func (Token) TableName() string {
	return "tokens"
}

// Route declares a tradable pair. FeeBps is the solver's spread in basis
// points, applied by the quoting service when deriving the destination amount.
type Route struct {
	gorm.Model
	SourceNetwork      string `gorm:"column:source_network;type:varchar(50);not null;uniqueIndex:idx_routes_pair"`
	SourceAsset        string `gorm:"column:source_asset;type:varchar(20);not null;uniqueIndex:idx_routes_pair"`
	DestinationNetwork string `gorm:"column:destination_network;type:varchar(50);not null;uniqueIndex:idx_routes_pair"`
	DestinationAsset   string `gorm:"column:destination_asset;type:varchar(20);not null;uniqueIndex:idx_routes_pair"`
	FeeBps             int64  `gorm:"column:fee_bps;not null;default:0"`
	Enabled            bool   `gorm:"column:enabled;not null;default:true"`
}

func (Route) TableName() string {
	return "routes"
}
