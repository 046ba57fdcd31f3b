package main

import (
	"context"
	goflag "flag"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/golang/glog"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"

	"github.com/valkeykit/valkey-router/pkg/cluster"
	"github.com/valkeykit/valkey-router/pkg/config"
	"github.com/valkeykit/valkey-router/pkg/signal"
	"github.com/valkeykit/valkey-router/pkg/utils"
	"github.com/valkeykit/valkey-router/pkg/watcher"
)

const usage = `usage: clusterctl <action> [flags]

actions:
  info                      print the cluster topology
  watch                     poll the topology, expose health and metrics over http
  meet <host> <port>        introduce a node to the cluster
  forget <node-id>          remove a node from the cluster
  replicate <addr> <id>     attach the replica at addr to the master with the given id
  addslots <addr> <slots>   assign slots (e.g. 0-5460,10000) to the node at addr
  delslots <addr> <slots>   remove slots from the node at addr
`

func main() {
	utils.BuildInfos()
	runtime.GOMAXPROCS(runtime.NumCPU())

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	action := os.Args[1]

	cfg := watcher.NewConfig()
	cfg.AddFlags(pflag.CommandLine)

	pflag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	pflag.CommandLine.Parse(os.Args[2:])
	goflag.CommandLine.Parse([]string{})

	if cfg.ConfigFile != "" {
		if err := config.LoadFile(cfg.ConfigFile, &cfg.Cluster); err != nil {
			glog.Errorf("Unable to load configuration: %v", err)
			os.Exit(1)
		}
	}
	if len(cfg.Cluster.Addrs) == 0 {
		fmt.Fprintln(os.Stderr, "no cluster addresses given, use --addrs or --config")
		os.Exit(2)
	}

	if err := run(action, cfg, pflag.CommandLine.Args()); err != nil {
		glog.Errorf("clusterctl %s returns an error: %v", action, err)
		os.Exit(1)
	}
	os.Exit(0)
}

func run(action string, cfg *watcher.Config, args []string) error {
	if action == "watch" {
		ctx, cancelFunc := context.WithCancel(context.Background())
		go signal.HandleSignal(cancelFunc)
		return watcher.NewWatcher(cfg).Run(ctx.Done())
	}

	channel := cluster.NewConnections(cfg.Cluster.Addrs, &cluster.ConnectionsOptions{
		ConnectionTimeout:  cfg.Cluster.GetDialTimeout(),
		ClientName:         cfg.Cluster.ClientName,
		RenameCommandsFile: cfg.Cluster.GetRenameCommandsFile(),
	})
	defer channel.Close()
	router := cluster.NewRouter(channel, &cluster.RouterOptions{
		TopologyCacheTTL: cfg.Cluster.GetTopologyCacheTTL(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Cluster.GetDialTimeout())
	defer cancel()

	switch action {
	case "info":
		return printInfo(ctx, router)
	case "meet":
		if len(args) != 2 {
			return fmt.Errorf("meet expects <host> <port>")
		}
		return router.MeetNode(ctx, args[0], args[1])
	case "forget":
		if len(args) != 1 {
			return fmt.Errorf("forget expects <node-id>")
		}
		return router.ForgetNode(ctx, args[0])
	case "replicate":
		if len(args) != 2 {
			return fmt.Errorf("replicate expects <addr> <master-id>")
		}
		return router.AttachReplica(ctx, args[0], args[1])
	case "addslots":
		addr, slots, err := parseSlotsArgs(args)
		if err != nil {
			return err
		}
		return router.AddSlots(ctx, addr, slots)
	case "delslots":
		addr, slots, err := parseSlotsArgs(args)
		if err != nil {
			return err
		}
		return router.DelSlots(ctx, addr, slots)
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown action %q", action)
}

func parseSlotsArgs(args []string) (string, cluster.SlotSlice, error) {
	if len(args) != 2 {
		return "", nil, fmt.Errorf("expected <addr> <slots>")
	}
	slots, err := parseSlotsSpec(args[1])
	if err != nil {
		return "", nil, err
	}
	return args[0], slots, nil
}

// parseSlotsSpec parses a comma separated list of slots and slot ranges,
// e.g. "0-5460,10000"
func parseSlotsSpec(spec string) (cluster.SlotSlice, error) {
	var slots cluster.SlotSlice
	start := 0
	for i := 0; i <= len(spec); i++ {
		if i != len(spec) && spec[i] != ',' {
			continue
		}
		item := spec[start:i]
		start = i + 1
		if item == "" {
			continue
		}
		if rangeSlots, err := cluster.DecodeSlotRange(item); err == nil {
			slots = append(slots, rangeSlots...)
			continue
		}
		slot, err := cluster.DecodeSlot(item)
		if err != nil {
			return nil, fmt.Errorf("invalid slot %q: %v", item, err)
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func printInfo(ctx context.Context, router *cluster.Router) error {
	topology, err := router.Topology(ctx)
	if err != nil {
		return err
	}

	data := [][]string{}
	for _, node := range topology.Nodes() {
		master := ""
		if node.MasterReferent != "" {
			master = node.MasterReferent
		}
		data = append(data, []string{
			node.ID,
			node.IPPort(),
			node.Role,
			master,
			strconv.Itoa(node.TotalSlots()),
			cluster.SlotSlice(node.Slots).String(),
		})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Addr", "Role", "Master", "Nb Slots", "Slots"})
	table.SetBorders(tablewriter.Border{Left: false, Top: false, Right: false, Bottom: false})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetRowLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)

	for _, v := range data {
		table.Append(v)
	}
	table.Render()

	if !topology.Covered() {
		fmt.Println("warning: slot table has uncovered slots")
	}
	return nil
}
