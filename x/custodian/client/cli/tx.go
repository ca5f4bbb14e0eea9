package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/cosmos/cosmos-sdk/client/tx"

	"github.com/openalpha/tranche-protocol/x/custodian/types"
)

// GetTxCmd returns the transaction commands for the custodian module
func GetTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        "custodian",
		Short:                      "Custodian module transaction commands",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdMint(),
		CmdBurn(),
		CmdUpdatePrice(),
	)

	return cmd
}

// CmdMint returns the command to mint claims against deposited collateral
func CmdMint() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint [collateral] [tier]",
		Short: "Deposit collateral and mint stable and lever claims",
		Long: `Deposit collateral and mint stable and lever claims at the given tier.
Tiers: 0 (conservative), 1 (moderate), 2 (aggressive).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			tier, err := strconv.ParseUint(args[1], 10, 8)
			if err != nil {
				return fmt.Errorf("invalid tier: %v", err)
			}

			msg := &types.MsgMint{
				Creditor:   clientCtx.GetFromAddress().String(),
				Collateral: args[0],
				Tier:       uint8(tier),
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdBurn returns the command to redeem lever claims
func CmdBurn() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "burn [position-id] [percentage]",
		Short: "Redeem a percentage of a position's lever claims for collateral",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			positionID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid position id: %v", err)
			}

			msg := &types.MsgBurn{
				Owner:      clientCtx.GetFromAddress().String(),
				PositionID: positionID,
				Percentage: args[1],
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdUpdatePrice returns the command to post an oracle price
func CmdUpdatePrice() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-price [price]",
		Short: "Post a new oracle price for the collateral asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			msg := &types.MsgUpdatePrice{
				Updater: clientCtx.GetFromAddress().String(),
				Price:   args[0],
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	flags.AddTxFlagsToCmd(cmd)
	return cmd
}
