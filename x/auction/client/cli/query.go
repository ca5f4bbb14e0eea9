package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
)

// GetQueryCmd returns the cli query commands for the auction module
func GetQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        "auction",
		Short:                      "Querying commands for the auction module",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdQueryAuction(),
		CmdQueryAuctions(),
	)

	return cmd
}

// CmdQueryAuction returns the command to query an auction
func CmdQueryAuction() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auction [auction-id]",
		Short: "Query an auction and its current clearing price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Auction query requires running node connection")
			fmt.Println("Use REST API: GET /tranchefi/auction/v1/auction/{auction_id}")
			return nil
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryAuctions returns the command to query open auctions
func CmdQueryAuctions() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auctions",
		Short: "Query all open auctions",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Auctions query requires running node connection")
			fmt.Println("Use REST API: GET /tranchefi/auction/v1/auctions")
			return nil
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}
