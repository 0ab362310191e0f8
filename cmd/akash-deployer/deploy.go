package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/lagrangedao/go-akash-deployer/internal/computing"
	"github.com/lagrangedao/go-akash-deployer/internal/initializer"
	"github.com/lagrangedao/go-akash-deployer/internal/ledger"
	"github.com/lagrangedao/go-akash-deployer/util"
	"github.com/lagrangedao/go-akash-deployer/yaml"
)

var deployCmd = &cli.Command{
	Name:      "deploy",
	Usage:     "Deploy an SDL file and wait until the provider runs it",
	ArgsUsage: "<sdl file>",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "provider",
			Usage: "preferred provider address, overrides the config, may be repeated",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := reqContext(cctx)
		if cctx.NArg() != 1 {
			return fmt.Errorf("must specify the sdl file to deploy")
		}

		workload, err := yaml.LoadSDL(cctx.Args().First())
		if err != nil {
			return err
		}

		deployer, err := initializer.ProjectInit(repoPath(cctx))
		if err != nil {
			return err
		}
		defer deployer.Close()

		if preferred := cctx.StringSlice("provider"); len(preferred) > 0 {
			deployer.Orchestrator.PreferredProviders = preferred
		}

		progress := computing.ObserverFunc(func(t computing.Transition) {
			line := fmt.Sprintf("%s  %-16s %s", t.At.Format("15:04:05"), t.State, t.Detail)
			if t.State == computing.StateFailed {
				color.Red("%s", line)
				return
			}
			fmt.Println(line)
		})

		result, err := deployer.Orchestrator.Deploy(ctx, deployer.Signer, workload, progress)
		if err != nil {
			return err
		}

		fmt.Printf("dseq:     %d\n", result.DSeq)
		fmt.Printf("provider: %s\n", result.Provider)
		fmt.Printf("price:    %s%s\n", result.Price.Amount, result.Price.Denom)
		if result.URL == "" {
			color.Yellow("no public endpoint")
		} else {
			fmt.Printf("url:      %s\n", result.URL)
		}
		if result.State == computing.StateReady {
			color.Green("state:    %s", result.State)
		} else {
			color.Yellow("state:    %s", result.State)
		}
		return nil
	},
}

var closeCmd = &cli.Command{
	Name:      "close",
	Usage:     "Close deployments, all active ones when no dseq is given",
	ArgsUsage: "[dseq...]",
	Action: func(cctx *cli.Context) error {
		ctx := reqContext(cctx)

		var dseqs []uint64
		for _, arg := range cctx.Args().Slice() {
			dseq, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid dseq %q", arg)
			}
			dseqs = append(dseqs, dseq)
		}

		deployer, err := initializer.ProjectInit(repoPath(cctx))
		if err != nil {
			return err
		}
		defer deployer.Close()

		results, err := deployer.Orchestrator.Teardown(ctx, deployer.Signer, dseqs, nil)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no active deployments")
			return nil
		}

		var data [][]string
		var rowColors []RowColor
		failed := 0
		for i, r := range results {
			data = append(data, []string{strconv.FormatUint(r.DSeq, 10), string(r.State), r.TxHash, r.Error})
			rowColors = append(rowColors, stateColor(i, 1, r.Closed()))
			if !r.Closed() {
				failed++
			}
		}
		NewVisualTable([]string{"DSEQ", "STATE", "TX HASH", "ERROR"}, data, rowColors).Generate()
		if failed > 0 {
			return fmt.Errorf("%d of %d deployments could not be closed", failed, len(results))
		}
		return nil
	},
}

var listCmd = &cli.Command{
	Name:  "list",
	Usage: "List active deployments with their provider and public address",
	Action: func(cctx *cli.Context) error {
		ctx := reqContext(cctx)
		deployer, err := initializer.ProjectInit(repoPath(cctx))
		if err != nil {
			return err
		}
		defer deployer.Close()

		views, err := deployer.Orchestrator.List(ctx, deployer.Signer.Address())
		if err != nil {
			return err
		}

		var data [][]string
		var rowColors []RowColor
		for i, v := range views {
			price := ""
			if v.Price.Amount != "" {
				price = v.Price.Amount + v.Price.Denom
			}
			data = append(data, []string{
				strconv.FormatUint(v.DSeq, 10),
				strconv.FormatUint(v.CPU, 10) + "m",
				strconv.FormatUint(v.Memory, 10),
				strconv.FormatUint(v.Storage, 10),
				v.Provider,
				price,
				v.PublicURL,
				strconv.FormatBool(v.Ready),
			})
			rowColors = append(rowColors, stateColor(i, 7, v.Ready))
		}
		NewVisualTable([]string{"DSEQ", "CPU", "MEMORY", "STORAGE", "PROVIDER", "PRICE", "URL", "READY"}, data, rowColors).Generate()
		return nil
	},
}

var statusCmd = &cli.Command{
	Name:      "status",
	Usage:     "Show the services of a deployment and the urls recorded for it",
	ArgsUsage: "<dseq>",
	Action: func(cctx *cli.Context) error {
		ctx := reqContext(cctx)
		if cctx.NArg() != 1 {
			return fmt.Errorf("must specify the dseq")
		}
		dseq, err := strconv.ParseUint(cctx.Args().First(), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid dseq %q", cctx.Args().First())
		}

		deployer, err := initializer.ProjectInit(repoPath(cctx))
		if err != nil {
			return err
		}
		defer deployer.Close()

		owner := deployer.Signer.Address()
		info, err := deployer.Querier.Deployment(ctx, ledger.DeploymentID{Owner: owner, DSeq: dseq})
		if err != nil {
			return err
		}
		fmt.Printf("dseq:  %d\n", dseq)
		fmt.Printf("state: %s\n", info.Deployment.State)

		recorded, err := deployer.Store.LatestURL(dseq)
		if err != nil {
			return err
		}
		if recorded != "" {
			fmt.Printf("recorded url: %s\n", recorded)
		}

		views, err := deployer.Orchestrator.List(ctx, owner)
		if err != nil {
			return err
		}
		for _, v := range views {
			if v.DSeq != dseq {
				continue
			}
			fmt.Printf("provider: %s (%s)\n", v.Provider, v.HostURI)
			fmt.Printf("url:      %s\n", v.PublicURL)

			var data [][]string
			var rowColors []RowColor
			for i, s := range v.Services {
				data = append(data, []string{s.Name, strconv.Itoa(int(s.Available)), strconv.Itoa(int(s.Total)), fmt.Sprint(s.URIs)})
				rowColors = append(rowColors, stateColor(i, 1, s.Ready()))
			}
			NewVisualTable([]string{"SERVICE", "AVAILABLE", "TOTAL", "URIS"}, data, rowColors).Generate()
		}
		return nil
	},
}

var certCmd = &cli.Command{
	Name:  "cert",
	Usage: "Create and register the client certificate of the configured wallet if it has none",
	Action: func(cctx *cli.Context) error {
		ctx := reqContext(cctx)
		deployer, err := initializer.ProjectInit(repoPath(cctx))
		if err != nil {
			return err
		}
		defer deployer.Close()

		cert, err := deployer.Certs.GetOrCreate(ctx, deployer.Signer)
		if err != nil {
			return err
		}
		color.Green("certificate of %s ready", cert.Address)
		fmt.Print(string(cert.Cert))
		return nil
	},
}

func reqContext(cctx *cli.Context) context.Context {
	return util.ReqContext(cctx.Context)
}
