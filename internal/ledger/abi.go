package ledger

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed contract_abi.json
var contractABIJSON string

// ContractABI is the parsed interface of the device registry contract.
var ContractABI = mustParseABI(contractABIJSON)

// DeviceRegisteredTopic is topic0 of DeviceRegistered(uint256,string,address,uint256).
var DeviceRegisteredTopic = ContractABI.Events["DeviceRegistered"].ID

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("ledger: parse contract abi: %v", err))
	}
	return parsed
}
