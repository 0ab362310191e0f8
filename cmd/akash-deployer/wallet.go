package main

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/lagrangedao/go-akash-deployer/conf"
	"github.com/lagrangedao/go-akash-deployer/internal/initializer"
	"github.com/lagrangedao/go-akash-deployer/wallet"
)

var walletCmd = &cli.Command{
	Name:  "wallet",
	Usage: "Manage wallets",
	Subcommands: []*cli.Command{
		walletNew,
		walletList,
		walletExport,
		walletImport,
		walletDelete,
		walletSign,
		walletVerify,
	},
}

var walletNew = &cli.Command{
	Name:  "new",
	Usage: "Generate a new key",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "mnemonic",
			Usage: "derive the key from a new bip39 mnemonic and print it",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := reqContext(cctx)
		localWallet, err := wallet.SetupWallet(wallet.WalletRepo)
		if err != nil {
			return err
		}
		defer localWallet.Close()

		if !cctx.Bool("mnemonic") {
			addr, err := localWallet.WalletNew(ctx)
			if err != nil {
				return err
			}
			fmt.Println(addr)
			return nil
		}

		mnemonic, err := wallet.NewMnemonic()
		if err != nil {
			return err
		}
		addr, err := localWallet.WalletImportMnemonic(ctx, mnemonic, "")
		if err != nil {
			return err
		}
		fmt.Println(addr)
		color.Yellow("write down the mnemonic, it is the only way to recover the key:")
		fmt.Println(mnemonic)
		return nil
	},
}

var walletList = &cli.Command{
	Name:  "list",
	Usage: "List wallet addresses and their balances",
	Action: func(cctx *cli.Context) error {
		ctx := reqContext(cctx)
		localWallet, err := wallet.SetupWallet(wallet.WalletRepo)
		if err != nil {
			return err
		}
		defer localWallet.Close()

		var querier wallet.BalanceQuerier
		denom := ""
		if err := conf.InitConfig(repoPath(cctx)); err != nil {
			color.Yellow("balances unavailable: %v", err)
		} else {
			q, err := initializer.NewQuerier(conf.GetConfig())
			if err != nil {
				return err
			}
			querier = q
			denom = conf.GetConfig().CHAIN.Denom
		}

		wallets, err := localWallet.WalletList(ctx, querier, denom)
		if err != nil {
			return err
		}

		var data [][]string
		var rowColors []RowColor
		for i, w := range wallets {
			data = append(data, []string{w.Address, w.Balance, w.Error})
			if w.Error != "" {
				rowColors = append(rowColors, stateColor(i, 2, false))
			}
		}
		NewVisualTable([]string{"ADDRESS", "BALANCE", "ERROR"}, data, rowColors).Generate()
		return nil
	},
}

var walletExport = &cli.Command{
	Name:      "export",
	Usage:     "export keys",
	ArgsUsage: "[address]",
	Action: func(cctx *cli.Context) error {
		ctx := reqContext(cctx)
		if !cctx.Args().Present() {
			return fmt.Errorf("must specify key to export")
		}

		localWallet, err := wallet.SetupWallet(wallet.WalletRepo)
		if err != nil {
			return err
		}
		defer localWallet.Close()

		ki, err := localWallet.WalletExport(ctx, cctx.Args().First())
		if err != nil {
			return err
		}
		fmt.Println(ki.PrivateKey)
		return nil
	},
}

var walletImport = &cli.Command{
	Name:      "import",
	Usage:     "import keys",
	ArgsUsage: "[<path> (optional, will read from stdin if omitted)]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "mnemonic",
			Usage: "the input is a bip39 mnemonic instead of a hex private key",
		},
		&cli.StringFlag{
			Name:  "passphrase",
			Usage: "bip39 passphrase of the mnemonic",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := reqContext(cctx)

		var inpdata []byte
		if !cctx.Args().Present() || cctx.Args().First() == "-" {
			reader := bufio.NewReader(os.Stdin)
			if cctx.Bool("mnemonic") {
				fmt.Print("Enter mnemonic: ")
			} else {
				fmt.Print("Enter private key: ")
			}
			indata, err := reader.ReadBytes('\n')
			if err != nil {
				return err
			}
			inpdata = indata
		} else {
			fdata, err := os.ReadFile(cctx.Args().First())
			if err != nil {
				return err
			}
			inpdata = fdata
		}
		input := strings.TrimSpace(string(inpdata))

		localWallet, err := wallet.SetupWallet(wallet.WalletRepo)
		if err != nil {
			return err
		}
		defer localWallet.Close()

		var addr string
		if cctx.Bool("mnemonic") {
			addr, err = localWallet.WalletImportMnemonic(ctx, input, cctx.String("passphrase"))
		} else {
			addr, err = localWallet.WalletImport(ctx, &wallet.KeyInfo{PrivateKey: input})
		}
		if err != nil {
			return err
		}

		fmt.Printf("imported key %s successfully!\n", addr)
		return nil
	},
}

var walletDelete = &cli.Command{
	Name:      "delete",
	Usage:     "Delete an account from the wallet",
	ArgsUsage: "<address> ",
	Action: func(cctx *cli.Context) error {
		ctx := reqContext(cctx)
		if !cctx.Args().Present() || cctx.NArg() != 1 {
			return fmt.Errorf("must specify address to delete")
		}

		localWallet, err := wallet.SetupWallet(wallet.WalletRepo)
		if err != nil {
			return err
		}
		defer localWallet.Close()

		return localWallet.WalletDelete(ctx, cctx.Args().First())
	},
}

var walletSign = &cli.Command{
	Name:      "sign",
	Usage:     "Sign the sha256 digest of a message",
	ArgsUsage: "<signing address> <Message>",
	Action: func(cctx *cli.Context) error {
		ctx := reqContext(cctx)
		if cctx.NArg() != 2 {
			return fmt.Errorf("must specify signing address and message to sign")
		}

		addr := cctx.Args().First()
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("failed to parse sign address")
		}
		msg := cctx.Args().Get(1)
		if strings.TrimSpace(msg) == "" {
			return fmt.Errorf("failed to parse message")
		}

		localWallet, err := wallet.SetupWallet(wallet.WalletRepo)
		if err != nil {
			return err
		}
		defer localWallet.Close()

		digest := sha256.Sum256([]byte(msg))
		sig, err := localWallet.WalletSign(ctx, addr, digest[:])
		if err != nil {
			return err
		}
		fmt.Println(sig)
		return nil
	},
}

var walletVerify = &cli.Command{
	Name:      "verify",
	Usage:     "verify the signature of a message",
	ArgsUsage: "<signing address> <signature> <rawMessage>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 3 {
			return fmt.Errorf("incorrect number of arguments, requires 3 parameters")
		}

		addr := cctx.Args().First()
		sigBytes, err := hex.DecodeString(strings.TrimPrefix(cctx.Args().Get(1), "0x"))
		if err != nil {
			return err
		}
		messageData := cctx.Args().Get(2)
		if strings.TrimSpace(messageData) == "" {
			return fmt.Errorf("failed to get raw message")
		}

		localWallet, err := wallet.SetupWallet(wallet.WalletRepo)
		if err != nil {
			return err
		}
		defer localWallet.Close()

		account, err := localWallet.Account(addr)
		if err != nil {
			return err
		}
		digest := sha256.Sum256([]byte(messageData))
		fmt.Println(wallet.Verify(account.PubKey(), digest[:], sigBytes))
		return nil
	},
}
