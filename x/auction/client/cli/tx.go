package cli

import (
	"fmt"
	"strconv"

	"cosmossdk.io/math"
	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/cosmos/cosmos-sdk/client/tx"

	"github.com/openalpha/tranche-protocol/x/auction/types"
)

// GetTxCmd returns the transaction commands for the auction module
func GetTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        "auction",
		Short:                      "Auction module transaction commands",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdPurchaseUnderlying(),
		CmdResetAuction(),
	)

	return cmd
}

// CmdPurchaseUnderlying returns the command to buy from an open auction
func CmdPurchaseUnderlying() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purchase [auction-id] [max-underlying] [max-price]",
		Short: "Buy underlying from an open auction at the current clearing price",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			auctionID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid auction id: %v", err)
			}
			maxUnderlying, err := math.LegacyNewDecFromStr(args[1])
			if err != nil {
				return fmt.Errorf("invalid max underlying: %v", err)
			}
			maxPrice, err := math.LegacyNewDecFromStr(args[2])
			if err != nil {
				return fmt.Errorf("invalid max price: %v", err)
			}

			recipient, err := cmd.Flags().GetString("recipient")
			if err != nil {
				return err
			}

			msg := &types.MsgPurchaseUnderlying{
				Buyer:              clientCtx.GetFromAddress().String(),
				AuctionID:          auctionID,
				MaxUnderlying:      maxUnderlying,
				MaxAcceptablePrice: maxPrice,
				Recipient:          recipient,
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().String("recipient", "", "Address to receive the underlying (defaults to buyer)")
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdResetAuction returns the command to reset a stale auction
func CmdResetAuction() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset [auction-id]",
		Short: "Re-anchor a stale auction to the live oracle price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			auctionID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid auction id: %v", err)
			}

			msg := &types.MsgResetAuction{
				Caller:    clientCtx.GetFromAddress().String(),
				AuctionID: auctionID,
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	flags.AddTxFlagsToCmd(cmd)
	return cmd
}
