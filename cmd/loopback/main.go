// Command loopback demos a reliant.Channel over a real UDP socket, the
// direct descendant of the teacher's cmd/example: one process listens as the
// server, a second dials in as the client, and whatever is typed on one
// side's stdin is sent as a message and printed on the other's screen.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pterm/pterm"

	"github.com/jakecoffman/reliant"
	"github.com/jakecoffman/reliant/udpcarrier"
)

var (
	name = flag.String("name", "server", "server or client")
	addr = flag.String("addr", "0.0.0.0:8987", "host and port")
)

func main() {
	flag.Parse()

	var carrier reliant.Carrier
	if *name == "server" {
		srv, err := udpcarrier.Listen(*addr)
		if err != nil {
			log.Fatal(err)
		}
		defer srv.Close()
		carrier = srv
	} else {
		cli, err := udpcarrier.Dial(*addr)
		if err != nil {
			log.Fatal(err)
		}
		defer cli.Close()
		carrier = cli
	}

	config := reliant.NewDefaultConfig()
	config.Name = *name
	channel := reliant.NewChannel(config, carrier)

	opened := make(chan struct{})
	channel.OnOpen = func() {
		pterm.Success.Println("connected")
		close(opened)
	}
	channel.OnMessage = func(data []byte) {
		pterm.Info.Printfln("peer: %s", string(data))
	}
	channel.OnError = func(err error) {
		pterm.Error.Printfln("carrier error: %v", err)
	}
	channel.OnClose = func(ev reliant.CloseEvent) {
		pterm.Warning.Printfln("closed (code=%d clean=%v reason=%q)", ev.Code, ev.WasClean, ev.Reason)
		os.Exit(0)
	}

	pterm.Info.Printfln("waiting for handshake as %s on %s", *name, *addr)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "/quit" {
				channel.Close(reliant.CloseNormal, "user quit")
				return
			}
			if err := channel.Send(line); err != nil {
				pterm.Error.Printfln("send failed: %v", err)
			}
		}
	}()

	select {
	case <-opened:
	case <-time.After(config.ConnectionTimeout + time.Second):
		fmt.Println("timed out waiting to connect")
		os.Exit(1)
	}

	select {}
}
