// Command sandboxctl is the sandbox-side client: it dials the host bridge
// over WebSocket and exposes the declared channels as subcommands. It is the
// only way code on this side reaches the host.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"

	"github.com/prismshell/prism/internal/bridge"
	"github.com/prismshell/prism/internal/contract"
	"github.com/prismshell/prism/internal/handlers/storage"
	"github.com/prismshell/prism/internal/handlers/system"
	"github.com/prismshell/prism/internal/handlers/telemetry"
	"github.com/prismshell/prism/internal/transport/ws"
)

// declaredContract mirrors the host catalog. Channels the host disabled by
// manifest fail fast with an unknown-channel error before anything is sent.
func declaredContract() *contract.Contract {
	return contract.MustNew(
		contract.Channel{Name: system.ChannelInfo, Shape: contract.ShapeRequest},
		contract.Channel{Name: system.ChannelTime, Shape: contract.ShapeRequest},
		contract.Channel{Name: storage.ChannelGet, Shape: contract.ShapeRequest},
		contract.Channel{Name: storage.ChannelSet, Shape: contract.ShapeRequest},
		contract.Channel{Name: storage.ChannelDelete, Shape: contract.ShapeRequest},
		contract.Channel{Name: storage.ChannelList, Shape: contract.ShapeRequest},
		contract.Channel{Name: storage.ChannelChanged, Shape: contract.ShapePush},
		contract.Channel{Name: telemetry.ChannelEvent, Shape: contract.ShapeEvent},
		contract.Channel{Name: telemetry.ChannelHeartbeat, Shape: contract.ShapePush},
	)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: sandboxctl [-addr host:port] <command> [args]

Commands:
  info                 host platform information
  time                 host clock
  get <key>            read a stored value
  set <key> <json>     store a JSON value
  del <key>            delete a key
  list                 list stored keys
  emit <level> <msg>   send a telemetry event (fire and forget)
  watch                print pushes (heartbeats, storage changes) until interrupted
  channels             print the declared channel contract
`)
	os.Exit(2)
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8090", "bridge host address")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request deadline")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	ct := declaredContract()
	if args[0] == "channels" {
		for _, ch := range ct.Channels() {
			fmt.Printf("%-20s %s\n", ch.Name, ch.Shape)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	tr, err := ws.Dial(ctx, "ws://"+*addr+"/bridge")
	if err != nil {
		fatal("connect: %v", err)
	}
	defer tr.Close()

	facade := bridge.NewFacade(bridge.NewRouter(tr, ct, bridge.WithRequestTimeout(*timeout)))

	if err := run(ctx, facade, args); err != nil {
		fatal("%v", err)
	}
}

func run(ctx context.Context, facade *bridge.Facade, args []string) error {
	switch cmd, rest := args[0], args[1:]; cmd {
	case "info":
		return invoke(ctx, facade, system.ChannelInfo, nil)

	case "time":
		return invoke(ctx, facade, system.ChannelTime, nil)

	case "get":
		if len(rest) != 1 {
			return errors.New("get needs exactly one key")
		}
		return invokeWith(ctx, facade, storage.ChannelGet, storage.KeyRequest{Key: rest[0]})

	case "set":
		if len(rest) != 2 {
			return errors.New("set needs a key and a JSON value")
		}
		if !json.Valid([]byte(rest[1])) {
			return fmt.Errorf("value is not valid JSON: %s", rest[1])
		}
		return invokeWith(ctx, facade, storage.ChannelSet, storage.SetRequest{
			Key:   rest[0],
			Value: json.RawMessage(rest[1]),
		})

	case "del":
		if len(rest) != 1 {
			return errors.New("del needs exactly one key")
		}
		return invokeWith(ctx, facade, storage.ChannelDelete, storage.KeyRequest{Key: rest[0]})

	case "list":
		return invoke(ctx, facade, storage.ChannelList, nil)

	case "emit":
		if len(rest) != 2 {
			return errors.New("emit needs a level and a message")
		}
		payload, err := sonic.Marshal(telemetry.Event{Level: rest[0], Message: rest[1]})
		if err != nil {
			return err
		}
		return facade.Emit(ctx, telemetry.ChannelEvent, payload)

	case "watch":
		return watch(facade)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func invoke(ctx context.Context, facade *bridge.Facade, channel string, payload json.RawMessage) error {
	resp, err := facade.Invoke(ctx, channel, payload)
	if err != nil {
		return err
	}
	fmt.Println(string(resp))
	return nil
}

func invokeWith(ctx context.Context, facade *bridge.Facade, channel string, req any) error {
	payload, err := sonic.Marshal(req)
	if err != nil {
		return err
	}
	return invoke(ctx, facade, channel, payload)
}

// watch subscribes to every push channel and prints frames until the process
// is interrupted or the host goes away.
func watch(facade *bridge.Facade) error {
	print := func(channel string) func(json.RawMessage) {
		return func(p json.RawMessage) {
			fmt.Printf("%s %s %s\n", time.Now().Format(time.RFC3339), channel, string(p))
		}
	}

	for _, channel := range []string{telemetry.ChannelHeartbeat, storage.ChannelChanged} {
		cancel, err := facade.Subscribe(channel, print(channel))
		if err != nil {
			return err
		}
		defer cancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
