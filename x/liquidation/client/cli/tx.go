package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/cosmos/cosmos-sdk/client/tx"

	"github.com/openalpha/tranche-protocol/x/liquidation/types"
)

// GetTxCmd returns the transaction commands for the liquidation module
func GetTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        "liquidation",
		Short:                      "Liquidation module transaction commands",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdBark(),
		CmdUpdateRiskLevel(),
	)

	return cmd
}

// CmdBark returns the command to trigger a liquidation
func CmdBark() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bark [owner] [position-id]",
		Short: "Trigger the liquidation of an undercollateralized position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			positionID, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid position id: %v", err)
			}

			msg := &types.MsgBark{
				Triggerer:  clientCtx.GetFromAddress().String(),
				Owner:      args[0],
				PositionID: positionID,
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdUpdateRiskLevel returns the command to reclassify a position
func CmdUpdateRiskLevel() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-risk-level [owner] [position-id]",
		Short: "Recompute the stored risk level of a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			positionID, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid position id: %v", err)
			}

			msg := &types.MsgUpdateRiskLevel{
				Caller:     clientCtx.GetFromAddress().String(),
				Owner:      args[0],
				PositionID: positionID,
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	flags.AddTxFlagsToCmd(cmd)
	return cmd
}
