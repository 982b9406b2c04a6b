package main

import (
	"context"
	"fmt"
	"os"

	"github.com/agrimarket/agridash/cmd/agridash/commands"
	"github.com/agrimarket/agridash/config"
	"github.com/agrimarket/agridash/libs/log"
)

func main() {
	ctx := context.Background()

	conf := config.DefaultConfig()
	logger := log.MustNewDefaultLogger(log.LogFormatPlain, log.LogLevelInfo)

	rcmd := commands.RootCommand(conf, logger)
	rcmd.AddCommand(
		commands.MakeInitFilesCommand(conf, logger),
		commands.MakeStartCommand(conf, logger),
		commands.MakeProductsCommand(conf, logger),
		commands.MakeOrdersCommand(conf, logger),
		commands.MakeBidsCommand(conf, logger),
		commands.MakeFeeCommand(conf),
		commands.MakeBalanceCommand(conf, logger),
		commands.MakeTransactionsCommand(conf),
		commands.MakeBuyCommand(conf, logger),
		commands.MakeBidCommand(conf, logger),
		commands.MakeAcceptBidCommand(conf, logger),
		commands.MakeCompleteBidCommand(conf, logger),
		commands.MakeCreateProductCommand(conf, logger),
		commands.MakeSetFeeCommand(conf, logger),
		commands.MakeTransferCommand(conf, logger),
		commands.MakeSetProfileCommand(conf, logger),
		commands.MakeAnalyzeCommand(conf, logger),
		commands.NewCompletionCmd(rcmd, true),
		commands.VersionCmd,
	)

	if err := rcmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
