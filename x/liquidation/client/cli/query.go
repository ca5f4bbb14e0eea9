package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"

	"github.com/openalpha/tranche-protocol/x/liquidation/types"
)

// RiskLevelInfo is a CLI-friendly risk ladder entry
type RiskLevelInfo struct {
	Level uint8  `json:"level"`
	Name  string `json:"name"`
}

// GetQueryCmd returns the cli query commands for the liquidation module
func GetQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        "liquidation",
		Short:                      "Querying commands for the liquidation module",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdQueryRiskLevels(),
		CmdQueryStatus(),
		CmdQueryRecords(),
	)

	return cmd
}

// CmdQueryRiskLevels returns the command to list the risk ladder
func CmdQueryRiskLevels() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk-levels",
		Short: "List the risk classification levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			levels := make([]RiskLevelInfo, 0, 5)
			for level := types.RiskHealthy; level <= types.RiskLiquidatable; level++ {
				levels = append(levels, RiskLevelInfo{
					Level: level,
					Name:  types.RiskLevelName(level),
				})
			}
			output, _ := json.MarshalIndent(levels, "", "  ")
			fmt.Println(string(output))
			return nil
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryStatus returns the command to query a position's liquidation status
func CmdQueryStatus() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [position-id]",
		Short: "Query the liquidation status of a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Status query requires running node connection")
			fmt.Println("Use REST API: GET /tranchefi/liquidation/v1/status/{position_id}")
			return nil
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryRecords returns the command to query recent liquidation records
func CmdQueryRecords() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Query recent liquidation records",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Records query requires running node connection")
			fmt.Println("Use REST API: GET /tranchefi/liquidation/v1/records")
			return nil
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}
