// klingnet-cli is a command-line client for interacting with a klingnetd node.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/rpcclient"
	"github.com/Klingon-tech/klingnet-chain/internal/wallet"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
	"github.com/Klingon-tech/klingnet-chain/pkg/vm"
	"golang.org/x/term"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	rpcURL := "http://127.0.0.1:8545"
	dataDir := config.DefaultDataDir()

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
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

	ksDir := filepath.Join(dataDir, "keystore")
	client := rpcclient.New(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "status":
		cmdStatus(client)
	case "block":
		cmdBlock(client, cmdArgs)
	case "balance":
		cmdBalance(client, cmdArgs)
	case "account":
		cmdAccount(client, cmdArgs, ksDir)
	case "send":
		cmdSend(client, cmdArgs)
	case "state":
		cmdState(client)
	case "storage":
		cmdStorage(client)
	case "mine":
		cmdMine(client)
	case "wallet":
		cmdWallet(cmdArgs, ksDir)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: klingnet-cli [global flags] <command> [flags]

Global flags:
  --rpc <url>         RPC endpoint (default: http://127.0.0.1:8545)
  --datadir <path>    Data directory; wallets live in <path>/keystore (default: ~/.klingnet)

Commands:
  status                          Show chain height and tip
  block <height>                  Show block details
  balance <address>               Show address balance
  mine                            Mine a block from the current mempool
  state                           Show the state trie root
  storage                         Show contract storage trie roots

  account new [--code file.json] [--wallet <name>]
                                  Create a new account (optionally with
                                  contract code), recording its address
                                  under a wallet if --wallet is given
  send --to <addr> --value <n> [--gas-limit <n>] [--code file.json]
                                  Send value from the node's miner
                                  account to an address (a contract
                                  recipient runs its own stored code;
                                  the node ignores --code for sends)

  wallet create --name <n>        Create a local wallet (address bookkeeping)
  wallet list                     List local wallets
  wallet address --wallet <w>     List addresses recorded under a wallet
`)
}

// ── status / block / state / storage ─────────────────────────────────

func cmdStatus(client *rpcclient.Client) {
	blocks, err := client.Blockchain(context.Background())
	if err != nil {
		fatal("blockchain: %v", err)
	}
	if len(blocks) == 0 {
		fatal("empty chain")
	}
	tip := blocks[len(blocks)-1]
	tipHash, err := tip.Hash()
	if err != nil {
		fatal("hash tip: %v", err)
	}
	fmt.Printf("Height: %d\n", tip.Number())
	fmt.Printf("Tip:    %s\n", tipHash)
	fmt.Printf("Blocks: %d\n", len(blocks))
}

func cmdBlock(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: klingnet-cli block <height>")
	}
	height, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fatal("invalid height: %v", err)
	}

	blocks, err := client.Blockchain(context.Background())
	if err != nil {
		fatal("blockchain: %v", err)
	}
	if height >= uint64(len(blocks)) {
		fatal("no block at height %d (chain has %d blocks)", height, len(blocks))
	}

	blk := blocks[height]
	hash, err := blk.Hash()
	if err != nil {
		fatal("hash block: %v", err)
	}
	fmt.Printf("Height:     %d\n", blk.Number())
	fmt.Printf("Hash:       %s\n", hash)
	fmt.Printf("Difficulty: %d\n", blk.Difficulty())
	fmt.Printf("Txs:        %d\n", len(blk.TxSeries))
	for i, t := range blk.TxSeries {
		fmt.Printf("  [%d] %s value=%d gas_limit=%d\n", i, t.UnsignedBody.Data.TxType, t.UnsignedBody.Value, t.UnsignedBody.GasLimit)
	}
}

func cmdBalance(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: klingnet-cli balance <address>")
	}
	balance, err := client.Balance(context.Background(), args[0])
	if err != nil {
		fatal("balance: %v", err)
	}
	fmt.Printf("Address: %s\n", args[0])
	fmt.Printf("Balance: %d\n", balance)
}

func cmdState(client *rpcclient.Client) {
	trie, err := client.State(context.Background())
	if err != nil {
		fatal("state: %v", err)
	}
	fmt.Printf("Root hash: %s\n", trie.RootHash)
}

func cmdStorage(client *rpcclient.Client) {
	tries, err := client.StorageTrie(context.Background())
	if err != nil {
		fatal("storage: %v", err)
	}
	if len(tries) == 0 {
		fmt.Println("No contract accounts yet.")
		return
	}
	for addr, t := range tries {
		fmt.Printf("  %s: %s\n", addr, t.RootHash)
	}
}

func cmdMine(client *rpcclient.Client) {
	msg, err := client.Mine(context.Background())
	if err != nil {
		fatal("mine: %v", err)
	}
	fmt.Println(msg)
}

// ── account / send ──────────────────────────────────────────────────

func cmdAccount(client *rpcclient.Client, args []string, ksDir string) {
	if len(args) < 1 || args[0] != "new" {
		fatal("Usage: klingnet-cli account new [--code file.json] [--wallet <name>]")
	}
	fs := flag.NewFlagSet("account new", flag.ExitOnError)
	codeFile := fs.String("code", "", "Path to a JSON-encoded VM instruction array")
	walletName := fs.String("wallet", "", "Record the new address under this local wallet")
	fs.Parse(args[1:])

	code, err := loadCode(*codeFile)
	if err != nil {
		fatal("load code: %v", err)
	}

	transaction, err := client.Transact(context.Background(), rpcclient.TransactRequest{
		Code:     code,
		GasLimit: 100,
	})
	if err != nil {
		fatal("transact: %v", err)
	}
	if transaction.UnsignedBody.Data.AccountData == nil {
		fatal("node did not return a created account")
	}
	addr := transaction.UnsignedBody.Data.AccountData.Address

	fmt.Printf("Account created: %s\n", addr.String())
	fmt.Printf("Balance:         %d\n", transaction.UnsignedBody.Data.AccountData.Balance)

	if *walletName != "" {
		ks, err := wallet.NewKeystore(ksDir)
		if err != nil {
			fatal("open keystore: %v", err)
		}
		entry := wallet.AccountEntry{Name: "account-" + addr.String()[:8], Address: addr.String()}
		if err := ks.AddAccount(*walletName, entry); err != nil {
			fatal("record address: %v", err)
		}
		fmt.Printf("Recorded under wallet %q\n", *walletName)
	}
}

func cmdSend(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	to := fs.String("to", "", "Recipient address (hex)")
	value := fs.Uint64("value", 0, "Amount to transfer")
	gasLimit := fs.Uint64("gas-limit", 100, "Gas limit for this transaction")
	codeFile := fs.String("code", "", "Path to a JSON-encoded VM instruction array (sent with the request; the node ignores it for transfers)")
	fs.Parse(args)

	if *to == "" {
		fatal("Usage: klingnet-cli send --to <addr> --value <n> [--gas-limit <n>] [--code file.json]")
	}
	if _, err := types.ParseAddress(*to); err != nil {
		fatal("invalid recipient address: %v", err)
	}

	code, err := loadCode(*codeFile)
	if err != nil {
		fatal("load code: %v", err)
	}

	transaction, err := client.Transact(context.Background(), rpcclient.TransactRequest{
		Value:    *value,
		To:       to,
		Code:     code,
		GasLimit: *gasLimit,
	})
	if err != nil {
		fatal("transact: %v", err)
	}
	fmt.Printf("Submitted: %s\n", transaction.ID())
	fmt.Printf("  From:  %s\n", transaction.UnsignedBody.From.String())
	fmt.Printf("  To:    %s\n", *to)
	fmt.Printf("  Value: %d\n", *value)
}

func loadCode(path string) ([]vm.Instr, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var code []vm.Instr
	if err := json.Unmarshal(data, &code); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return code, nil
}

// ── wallet (local address bookkeeping) ───────────────────────────────
//
// There is no client-side signing key in this protocol: /transact
// always signs from the node's own miner account, or mints a brand new
// server-side keypair for account creation. The wallet subcommands here
// exist only to track the addresses a user has created, under a
// human-readable name, for later lookups with `balance`.

func cmdWallet(args []string, ksDir string) {
	if len(args) < 1 {
		fatal("Usage: klingnet-cli wallet <create|list|address> [flags]")
	}
	switch args[0] {
	case "create":
		cmdWalletCreate(args[1:], ksDir)
	case "list":
		cmdWalletList(ksDir)
	case "address":
		cmdWalletAddress(args[1:], ksDir)
	default:
		fatal("Unknown wallet command: %s\nUsage: klingnet-cli wallet <create|list|address> [flags]", args[0])
	}
}

func cmdWalletCreate(args []string, ksDir string) {
	fs := flag.NewFlagSet("wallet create", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	fs.Parse(args)
	if *name == "" {
		fatal("Usage: klingnet-cli wallet create --name <name>")
	}

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}
	fmt.Println("Mnemonic (write this down; the wallet seed is derived from it):")
	fmt.Printf("  %s\n\n", mnemonic)

	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}

	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive seed: %v", err)
	}

	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("create keystore: %v", err)
	}
	if err := ks.Create(*name, seed, password, wallet.DefaultParams()); err != nil {
		fatal("create wallet: %v", err)
	}
	for i := range seed {
		seed[i] = 0
	}

	fmt.Printf("Wallet created: %s\n", *name)
	fmt.Println("Use 'klingnet-cli account new --wallet " + *name + "' to record addresses under it.")
}

func cmdWalletList(ksDir string) {
	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}
	names, err := ks.List()
	if err != nil {
		fatal("list wallets: %v", err)
	}
	if len(names) == 0 {
		fmt.Println("No wallets found.")
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func cmdWalletAddress(args []string, ksDir string) {
	fs := flag.NewFlagSet("wallet address", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)
	if *walletName == "" {
		fatal("Usage: klingnet-cli wallet address --wallet <name>")
	}

	ks, err := wallet.NewKeystore(ksDir)
	if err != nil {
		fatal("open keystore: %v", err)
	}
	accounts, err := ks.ListAccounts(*walletName)
	if err != nil {
		fatal("list accounts: %v", err)
	}
	if len(accounts) == 0 {
		fmt.Println("No addresses recorded.")
		return
	}
	for _, a := range accounts {
		fmt.Printf("  %s  %s\n", a.Address, a.Name)
	}
}

// ── helpers ─────────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return password, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
