// regforge-cli is a command-line client for a running regforged daemon.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/regforge/regforge/internal/apiclient"
	"github.com/regforge/regforge/internal/reconcile"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	apiURL := "http://127.0.0.1:8021"

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--api" && len(args) > 1:
			apiURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--api="):
			apiURL = args[0][len("--api="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := apiclient.New(apiURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "wallet":
		cmdWallet(client, cmdArgs)
	case "address":
		cmdAddress(client, cmdArgs)
	case "mine":
		cmdMine(client, cmdArgs)
	case "balance":
		cmdBalance(client, cmdArgs)
	case "send":
		cmdSend(client, cmdArgs)
	case "mempool":
		cmdMempool(client, cmdArgs)
	case "tx":
		cmdTx(client, cmdArgs)
	case "reconcile":
		cmdReconcile(client, cmdArgs)
	case "run":
		cmdRun(client)
	case "records":
		cmdRecords(client, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: regforge-cli [global flags] <command> [flags]

Global flags:
  --api <url>         API endpoint (default: http://127.0.0.1:8021)

Commands:
  wallet <name>                   Create or load a wallet
  address --wallet <w> [--label <l>]
                                  Get a fresh receiving address
  mine --wallet <w> [--address <a>] --blocks <n>
                                  Mine blocks, rewards to the address
                                  or a fresh wallet address
  balance <wallet>                Show wallet balance
  send --from <w> --to <addr> --amount <btc> [--message <m>]
                                  Send a payment
  mempool <wallet> <txid>         Show a pending transaction
  tx <wallet> <txid>              Show a wallet transaction
  reconcile --wallet <w> --txid <t> --to <addr>
                                  Reconcile and persist a payment
  run                             Run the full demo workflow
  records [txid]                  Show stored records
`)
}

func cmdWallet(client *apiclient.Client, args []string) {
	if len(args) != 1 {
		fatal("usage: wallet <name>")
	}
	handle, err := client.EnsureWallet(args[0])
	if err != nil {
		fatal("%v", err)
	}
	if handle.Created {
		fmt.Printf("Created wallet %s\n", handle.Name)
	} else {
		fmt.Printf("Loaded wallet %s\n", handle.Name)
	}
}

func cmdAddress(client *apiclient.Client, args []string) {
	fs := flag.NewFlagSet("address", flag.ExitOnError)
	walletName := fs.String("wallet", "", "wallet name")
	label := fs.String("label", "", "address label")
	fs.Parse(args)
	if *walletName == "" {
		fatal("usage: address --wallet <w> [--label <l>]")
	}

	addr, err := client.NewAddress(*walletName, *label)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Println(addr.Address)
}

func cmdMine(client *apiclient.Client, args []string) {
	fs := flag.NewFlagSet("mine", flag.ExitOnError)
	walletName := fs.String("wallet", "", "wallet name")
	toAddress := fs.String("address", "", "reward address (default: fresh wallet address)")
	blocks := fs.Int64("blocks", 1, "number of blocks")
	fs.Parse(args)
	if *walletName == "" {
		fatal("usage: mine --wallet <w> [--address <a>] --blocks <n>")
	}

	result, err := client.Mine(*walletName, *toAddress, *blocks)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Mined %d blocks\n", len(result.Blocks))
	if len(result.Blocks) > 0 {
		fmt.Printf("Tip: %s\n", result.Blocks[len(result.Blocks)-1])
	}
}

func cmdBalance(client *apiclient.Client, args []string) {
	if len(args) != 1 {
		fatal("usage: balance <wallet>")
	}
	result, err := client.Balance(args[0])
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("%s: %s\n", result.Wallet, result.Balance)
}

func cmdSend(client *apiclient.Client, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	from := fs.String("from", "", "source wallet")
	to := fs.String("to", "", "destination address")
	amountBTC := fs.String("amount", "", "amount in BTC")
	message := fs.String("message", "", "optional comment")
	fs.Parse(args)
	if *from == "" || *to == "" || *amountBTC == "" {
		fatal("usage: send --from <w> --to <addr> --amount <btc> [--message <m>]")
	}

	btc, err := strconv.ParseFloat(*amountBTC, 64)
	if err != nil {
		fatal("invalid amount %q", *amountBTC)
	}
	amount, err := btcutil.NewAmount(btc)
	if err != nil {
		fatal("invalid amount: %v", err)
	}

	result, err := client.Send(*from, *to, amount, *message)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Sent %s to %s\n", amount, *to)
	fmt.Printf("TxID: %s\n", result.TxID)
}

func cmdMempool(client *apiclient.Client, args []string) {
	if len(args) != 2 {
		fatal("usage: mempool <wallet> <txid>")
	}
	entry, err := client.MempoolEntry(args[0], args[1])
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("TxID:    %s\n", entry.TxID)
	fmt.Printf("Fee:     %s\n", entry.Fee)
	fmt.Printf("VSize:   %d\n", entry.VSize)
	fmt.Printf("Weight:  %d\n", entry.Weight)
	fmt.Printf("Seen at: %d\n", entry.Time)
}

func cmdTx(client *apiclient.Client, args []string) {
	if len(args) != 2 {
		fatal("usage: tx <wallet> <txid>")
	}
	tx, err := client.Transaction(args[0], args[1])
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("TxID:          %s\n", tx.TxID)
	fmt.Printf("Confirmations: %d\n", tx.Confirmations)
	if tx.BlockHash != "" {
		fmt.Printf("Block:         %s\n", tx.BlockHash)
	}
	fmt.Printf("Fee:           %s\n", tx.Fee)
	fmt.Printf("Amount:        %s\n", tx.Amount)
}

func cmdReconcile(client *apiclient.Client, args []string) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	walletName := fs.String("wallet", "", "source wallet")
	txid := fs.String("txid", "", "transaction id")
	to := fs.String("to", "", "destination address")
	fs.Parse(args)
	if *walletName == "" || *txid == "" || *to == "" {
		fatal("usage: reconcile --wallet <w> --txid <t> --to <addr>")
	}

	record, err := client.Reconcile(*walletName, *txid, *to)
	if err != nil {
		fatal("%v", err)
	}
	printRecord(record)
}

func cmdRun(client *apiclient.Client) {
	fmt.Println("Running demo workflow (mines 102 blocks, may take a while)...")
	record, err := client.Run()
	if err != nil {
		fatal("%v", err)
	}
	printRecord(record)
}

func cmdRecords(client *apiclient.Client, args []string) {
	if len(args) > 0 {
		record, err := client.Record(args[0])
		if err != nil {
			fatal("%v", err)
		}
		printRecord(record)
		return
	}

	records, err := client.Records()
	if err != nil {
		fatal("%v", err)
	}
	if len(records) == 0 {
		fmt.Println("No records")
		return
	}
	for i := range records {
		if i > 0 {
			fmt.Println()
		}
		printRecord(&records[i])
	}
}

func printRecord(r *reconcile.TransactionRecord) {
	fmt.Printf("TxID:        %s\n", r.TxID)
	fmt.Printf("Input:       %s  %s\n", r.Input.Address, r.Input.Amount)
	fmt.Printf("Destination: %s  %s\n", r.Output.Address, r.Output.Amount)
	if r.Change != nil {
		fmt.Printf("Change:      %s  %s\n", r.Change.Address, r.Change.Amount)
	} else {
		fmt.Printf("Change:      none\n")
	}
	fmt.Printf("Fee:         %s\n", r.Fee)
	if r.Confirmation.Confirmed {
		fmt.Printf("Confirmed:   block %d (%s)\n",
			r.Confirmation.BlockHeight, r.Confirmation.BlockHash)
	} else {
		fmt.Printf("Confirmed:   no\n")
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
