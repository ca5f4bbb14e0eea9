package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"

	"github.com/openalpha/tranche-protocol/x/custodian/types"
)

// TierInfo is a CLI-friendly tier description
type TierInfo struct {
	Tier          uint8  `json:"tier"`
	Name          string `json:"name"`
	Divisor       string `json:"divisor"`
	LeverageRatio string `json:"leverage_ratio"`
}

// GetQueryCmd returns the cli query commands for the custodian module
func GetQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        "custodian",
		Short:                      "Querying commands for the custodian module",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdQueryTiers(),
		CmdQueryPosition(),
		CmdQueryPositions(),
		CmdQueryLedger(),
		CmdQueryPrice(),
	)

	return cmd
}

// CmdQueryTiers returns the command to list the mint tiers
func CmdQueryTiers() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "List the available mint tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			tiers := make([]TierInfo, 0, 3)
			for _, tier := range []uint8{types.TierConservative, types.TierModerate, types.TierAggressive} {
				tiers = append(tiers, TierInfo{
					Tier:          tier,
					Name:          types.TierName(tier),
					Divisor:       types.TierDivisor(tier).String(),
					LeverageRatio: types.TierLeverageRatio(tier).String(),
				})
			}
			output, _ := json.MarshalIndent(tiers, "", "  ")
			fmt.Println(string(output))
			return nil
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryPosition returns the command to query a position
func CmdQueryPosition() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "position [position-id]",
		Short: "Query a position by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Position query requires running node connection")
			fmt.Println("Use REST API: GET /tranchefi/custodian/v1/position/{position_id}")
			return nil
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryPositions returns the command to query an owner's positions
func CmdQueryPositions() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions [owner]",
		Short: "Query all positions of an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Positions query requires running node connection")
			fmt.Println("Use REST API: GET /tranchefi/custodian/v1/positions/{owner}")
			return nil
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryLedger returns the command to query the claim totals
func CmdQueryLedger() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Query the outstanding claim totals and deficit",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Ledger query requires running node connection")
			fmt.Println("Use REST API: GET /tranchefi/custodian/v1/ledger")
			return nil
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryPrice returns the command to query the oracle price
func CmdQueryPrice() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Query the current collateral oracle price",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Price query requires running node connection")
			fmt.Println("Use REST API: GET /tranchefi/custodian/v1/price")
			return nil
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}
