package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lagrangedao/go-akash-deployer/build"
)

const (
	FlagRepo = "repo"
)

func main() {
	app := &cli.App{
		Name:                 "akash-deployer",
		Usage:                "Deploy containerized workloads to the Akash network: broadcast the deployment, pick a provider bid, lease it, ship the manifest and report the public address.",
		EnableBashCompletion: true,
		Version:              build.UserVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    FlagRepo,
				EnvVars: []string{"DEPLOYER_PATH"},
				Usage:   "deployer repo path",
				Value:   "~/.akash-deployer",
			},
		},
		Before: func(cctx *cli.Context) error {
			return os.Setenv("DEPLOYER_PATH", expandHome(cctx.String(FlagRepo)))
		},
		Commands: []*cli.Command{
			runCmd,
			deployCmd,
			closeCmd,
			listCmd,
			statusCmd,
			certCmd,
			walletCmd,
		},
	}
	app.Setup()

	if err := app.Run(os.Args); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func repoPath(cctx *cli.Context) string {
	return expandHome(cctx.String(FlagRepo))
}

func expandHome(p string) string {
	if len(p) > 1 && p[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return home + p[1:]
		}
	}
	return p
}
