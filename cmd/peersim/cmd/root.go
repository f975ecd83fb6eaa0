package cmd

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"kvstore/internal/config"
	"kvstore/internal/logsink"
	"kvstore/internal/params"
	"kvstore/internal/peer"
	"kvstore/internal/storage"
	"kvstore/internal/transport"
	"kvstore/internal/wire"
)

const usage = `peersim drives an in-process simulation of the gossip-DHT cluster
described by a scenario file, advancing every peer tick by tick and
printing log-facade events as they occur.

EXAMPLE:
  peersim run scenario.yaml`

var rootCmd = &cobra.Command{
	Use:   "peersim",
	Short: "simulate a gossip-membership, DHT-replicated cluster",
	Long:  usage,
}

var runCmd = &cobra.Command{
	Use:   "run [scenario.yaml]",
	Short: "run a scenario file to completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		peersFlag, err := cmd.Flags().GetString("peers")
		if err != nil {
			return err
		}
		return runScenario(args[0], peersFlag)
	},
}

func init() {
	runCmd.Flags().String("peers", "", `explicit node list as "id=addr,id=addr,...", overriding the scenario's generated node addresses`)
	rootCmd.AddCommand(runCmd)
}

// Execute runs the root command, printing any error and exiting with
// status 1, the usual cobra entry point convention.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runScenario(path, peersFlag string) error {
	scenario, err := config.LoadScenario(path)
	if err != nil {
		return err
	}
	p := scenario.Params()
	introducer, err := scenario.IntroducerAddress()
	if err != nil {
		return err
	}

	sim := transport.NewSimulator()
	sim.LossRate = scenario.LossRate

	sink := logsink.StdSink{}
	peers, err := buildPeers(scenario, peersFlag, p, sink)
	if err != nil {
		return err
	}
	if _, ok := peers[introducer]; !ok {
		return fmt.Errorf("peersim: introducer %s is not among the %d simulated nodes", introducer, len(peers))
	}

	ticks := scenario.Ticks
	if ticks <= 0 {
		ticks = 50
	}

	for _, pr := range peers {
		pr.Bootstrap(0, sim)
	}
	for now := int64(1); now <= ticks; now++ {
		for _, pr := range peers {
			pr.Tick(now, sim)
		}
		sim.AdvanceTick()
	}

	fmt.Printf("peersim: ran %d nodes for %d ticks\n", len(peers), ticks)
	return nil
}

// buildPeers constructs the simulated node set. With no --peers override
// it generates scenario.NumNodes sequential addresses via
// config.NodeAddress; with an override it parses the explicit "id=addr"
// list instead, letting a caller pin specific wire addresses rather than
// accept the generated sequence.
func buildPeers(scenario *config.Scenario, peersFlag string, p params.Params, sink logsink.Sink) (map[wire.Address]*peer.Peer, error) {
	if peersFlag == "" {
		peers := make(map[wire.Address]*peer.Peer, scenario.NumNodes)
		for i := 0; i < scenario.NumNodes; i++ {
			addr := config.NodeAddress(i)
			peers[addr] = peer.New(addr, p, sink, storage.NewMapStore(), rand.New(rand.NewSource(int64(i)+1)))
		}
		return peers, nil
	}

	entries, err := config.ParsePeers(peersFlag)
	if err != nil {
		return nil, fmt.Errorf("peersim: %w", err)
	}
	peers := make(map[wire.Address]*peer.Peer, len(entries))
	for i, e := range entries {
		addr, err := wire.ParseAddress(e.Addr)
		if err != nil {
			return nil, fmt.Errorf("peersim: peer %s: %w", e, err)
		}
		peers[addr] = peer.New(addr, p, sink, storage.NewMapStore(), rand.New(rand.NewSource(int64(i)+1)))
	}
	return peers, nil
}
